package reflective

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/roach88/classmodel/internal/ir"
	"github.com/roach88/classmodel/internal/values"
)

// Struct tag keys understood by the reflective backend.
const (
	// TagKind on the blank field selects the class kind: "class" (the
	// default), "record", "enum" or "annotation".
	TagKind = "kind"

	// TagModel lists annotation usages as Go composite literals:
	// `model:"demo.Id, demo.Column{Length: 40}"`.
	TagModel = "model"

	// TagImplements on the blank field lists implemented interfaces.
	TagImplements = "implements"

	// TagTypeParams on the blank field declares type parameters,
	// separated by ';': `typeparams:"T extends demo.Named; K"`.
	TagTypeParams = "typeparams"

	// TagDefault on an annotation type field holds the attribute default.
	TagDefault = "default"

	// TagModifiers lists extra member modifiers: `modifiers:"transient"`.
	TagModifiers = "modifiers"

	// TagType overrides the declared type of a field with the textual
	// type syntax, e.g. `type:"T[]"` inside a generic class.
	TagType = "type"
)

// tagUsage is one annotation usage parsed from a model tag.
type tagUsage struct {
	typeName string
	names    []string
	attrs    map[string]ast.Expr
}

func (u *tagUsage) AnnotationType() string   { return u.typeName }
func (u *tagUsage) AttributeNames() []string { return u.names }

// parseUsages parses the contents of a model tag.
func parseUsages(tag string) ([]*tagUsage, error) {
	if strings.TrimSpace(tag) == "" {
		return nil, nil
	}
	expr, err := parser.ParseExpr("[]any{" + tag + "}")
	if err != nil {
		return nil, fmt.Errorf("parse model tag %q: %w", tag, err)
	}
	list, ok := expr.(*ast.CompositeLit)
	if !ok {
		return nil, fmt.Errorf("parse model tag %q: not a usage list", tag)
	}

	usages := make([]*tagUsage, 0, len(list.Elts))
	for _, elt := range list.Elts {
		u, err := parseUsage(elt)
		if err != nil {
			return nil, fmt.Errorf("model tag %q: %w", tag, err)
		}
		usages = append(usages, u)
	}
	return usages, nil
}

func parseUsage(expr ast.Expr) (*tagUsage, error) {
	switch e := expr.(type) {
	case *ast.Ident, *ast.SelectorExpr:
		name, ok := dottedName(e)
		if !ok {
			return nil, fmt.Errorf("invalid annotation name")
		}
		return &tagUsage{typeName: name}, nil
	case *ast.CompositeLit:
		if e.Type == nil {
			return nil, fmt.Errorf("annotation usage needs a type name")
		}
		name, ok := dottedName(e.Type)
		if !ok {
			return nil, fmt.Errorf("invalid annotation name")
		}
		u := &tagUsage{typeName: name, attrs: make(map[string]ast.Expr, len(e.Elts))}
		for _, elt := range e.Elts {
			kv, ok := elt.(*ast.KeyValueExpr)
			if !ok {
				return nil, fmt.Errorf("%s: attributes must be written as Name: value", name)
			}
			key, ok := kv.Key.(*ast.Ident)
			if !ok {
				return nil, fmt.Errorf("%s: attribute name must be an identifier", name)
			}
			attr := attributeName(key.Name)
			if _, dup := u.attrs[attr]; dup {
				return nil, fmt.Errorf("%s: duplicate attribute %s", name, attr)
			}
			u.attrs[attr] = kv.Value
			u.names = append(u.names, attr)
		}
		return u, nil
	default:
		return nil, fmt.Errorf("unexpected %T in usage list", expr)
	}
}

// dottedName flattens an identifier or selector chain: demo.sub.Entity.
func dottedName(expr ast.Expr) (string, bool) {
	switch e := expr.(type) {
	case *ast.Ident:
		return e.Name, true
	case *ast.SelectorExpr:
		prefix, ok := dottedName(e.X)
		if !ok {
			return "", false
		}
		return prefix + "." + e.Sel.Name, true
	}
	return "", false
}

// attributeName maps a Go field or key name to a model attribute name by
// lowering its first rune: Length -> length.
func attributeName(goName string) string {
	r, size := utf8.DecodeRuneInString(goName)
	if r == utf8.RuneError {
		return goName
	}
	return string(unicode.ToLower(r)) + goName[size:]
}

// evaluator turns tag expressions into raw values for the converters.
type evaluator struct {
	resolver values.Resolver
	load     func(name string) (any, error)
}

// extract implements values.Extractor for tag usages.
func (ev *evaluator) extract(usage values.RawUsage, attr ir.AttributeRecord) (any, bool, error) {
	tu, ok := usage.(*tagUsage)
	if !ok {
		return nil, false, fmt.Errorf("reflective backend cannot read %T", usage)
	}
	expr, ok := tu.attrs[attr.Name]
	if !ok {
		return nil, false, nil
	}
	raw, err := ev.eval(expr, attr)
	if err != nil {
		return nil, false, err
	}
	return raw, true, nil
}

// eval converts expr into the raw form expected for attr's kind.
func (ev *evaluator) eval(expr ast.Expr, attr ir.AttributeRecord) (any, error) {
	switch attr.Kind {
	case ir.KindArray:
		elemKind, err := values.KindOf(attr.Type.Component, ev.resolver)
		if err != nil {
			return nil, err
		}
		elem := ir.AttributeRecord{Name: attr.Name, Kind: elemKind, Type: attr.Type.Component}
		lit, ok := expr.(*ast.CompositeLit)
		if !ok || (lit.Type != nil && !isArrayType(lit.Type)) {
			return ev.eval(expr, elem)
		}
		items := make([]any, 0, len(lit.Elts))
		for _, e := range lit.Elts {
			v, err := ev.eval(e, elem)
			if err != nil {
				return nil, err
			}
			items = append(items, v)
		}
		return items, nil

	case ir.KindAnnotation:
		lit, ok := expr.(*ast.CompositeLit)
		if !ok {
			if name, ok := dottedName(expr); ok {
				return &tagUsage{typeName: name}, nil
			}
			return nil, fmt.Errorf("%s: expected annotation usage", attr.Name)
		}
		if lit.Type == nil {
			// Untyped literal inside an array: the element type is implied.
			lit = &ast.CompositeLit{Type: ast.NewIdent(attr.Type.Name), Elts: lit.Elts}
		}
		return parseUsage(lit)

	case ir.KindClass:
		name, ok := dottedName(expr)
		if !ok {
			return nil, fmt.Errorf("%s: expected class name", attr.Name)
		}
		return ev.load(name)

	case ir.KindEnum:
		name, ok := dottedName(expr)
		if !ok {
			return nil, fmt.Errorf("%s: expected enum constant", attr.Name)
		}
		return name, nil
	}
	return literal(expr)
}

func isArrayType(expr ast.Expr) bool {
	_, ok := expr.(*ast.ArrayType)
	return ok
}

// literal evaluates a scalar literal expression.
func literal(expr ast.Expr) (any, error) {
	switch e := expr.(type) {
	case *ast.BasicLit:
		switch e.Kind {
		case token.STRING:
			return strconv.Unquote(e.Value)
		case token.CHAR:
			r, _, _, err := strconv.UnquoteChar(strings.Trim(e.Value, "'"), '\'')
			if err != nil {
				return nil, err
			}
			return int64(r), nil
		case token.INT:
			if n, err := strconv.ParseInt(e.Value, 0, 64); err == nil {
				return n, nil
			}
			return strconv.ParseUint(e.Value, 0, 64)
		case token.FLOAT:
			return strconv.ParseFloat(e.Value, 64)
		}
	case *ast.UnaryExpr:
		if e.Op != token.SUB {
			break
		}
		v, err := literal(e.X)
		if err != nil {
			return nil, err
		}
		switch n := v.(type) {
		case int64:
			return -n, nil
		case float64:
			return -n, nil
		}
	case *ast.ParenExpr:
		return literal(e.X)
	case *ast.Ident:
		switch e.Name {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
		return nil, fmt.Errorf("unexpected identifier %s", e.Name)
	}
	return nil, fmt.Errorf("unsupported literal %T", expr)
}
