package ir

import (
	"fmt"
	"strings"
	"unicode"
)

// TypeKind tags the shape of a TypeRef.
type TypeKind string

const (
	TypeVoid          TypeKind = "void"
	TypePrimitive     TypeKind = "primitive"
	TypeClass         TypeKind = "class"
	TypeArray         TypeKind = "array"
	TypeParameterized TypeKind = "parameterized"
	TypeWildcard      TypeKind = "wildcard"
	TypeVariable      TypeKind = "type_variable"
	TypeVariableRef   TypeKind = "type_variable_ref"
	TypeOther         TypeKind = "other"
)

// Well-known names.
const (
	VoidName           = "void"
	ClassReferenceName = "reflect.Type"
	AnyName            = "any"
)

// PrimitiveNames lists the primitive type names. byte and rune are
// accepted by the parser as aliases of uint8 and int32.
var PrimitiveNames = map[string]bool{
	"bool": true, "string": true,
	"int": true, "int8": true, "int16": true, "int32": true, "int64": true,
	"uint": true, "uint8": true, "uint16": true, "uint32": true, "uint64": true, "uintptr": true,
	"float32": true, "float64": true,
}

// TypeRef is a tagged reference to a type.
//
// Name holds the class or primitive name, the raw class of a parameterized
// type, or the name of a type variable. Component is set for arrays, Args
// for parameterized types, and Bounds for type variables and wildcards.
// A parameterized type's raw class is always present even when some of
// its arguments degrade to TypeOther.
type TypeRef struct {
	Kind      TypeKind   `json:"kind"`
	Name      string     `json:"name,omitempty"`
	Component *TypeRef   `json:"component,omitempty"`
	Args      []*TypeRef `json:"args,omitempty"`
	Bounds    []*TypeRef `json:"bounds,omitempty"`
	Lower     bool       `json:"lower,omitempty"`
}

// Void is the well-known void type. Shape dispatch checks identity
// against it before anything else.
var Void = &TypeRef{Kind: TypeVoid, Name: VoidName}

// PrimitiveType returns a primitive type reference.
func PrimitiveType(name string) *TypeRef {
	return &TypeRef{Kind: TypePrimitive, Name: name}
}

// ClassType returns a class type reference.
func ClassType(name string) *TypeRef {
	return &TypeRef{Kind: TypeClass, Name: name}
}

// ArrayOf returns an array of component.
func ArrayOf(component *TypeRef) *TypeRef {
	return &TypeRef{Kind: TypeArray, Component: component}
}

// Parameterized returns raw<args...>.
func Parameterized(raw string, args ...*TypeRef) *TypeRef {
	return &TypeRef{Kind: TypeParameterized, Name: raw, Args: args}
}

// WildcardType returns "?" with an optional bound. lower selects
// "? super bound" instead of "? extends bound".
func WildcardType(bound *TypeRef, lower bool) *TypeRef {
	t := &TypeRef{Kind: TypeWildcard, Lower: lower}
	if bound != nil {
		t.Bounds = []*TypeRef{bound}
	}
	return t
}

// TypeVar declares a type variable with optional bounds.
func TypeVar(name string, bounds ...*TypeRef) *TypeRef {
	return &TypeRef{Kind: TypeVariable, Name: name, Bounds: bounds}
}

// TypeVarRef references a type variable by name without its bounds.
// It appears inside the bounds of the variable being declared.
func TypeVarRef(name string) *TypeRef {
	return &TypeRef{Kind: TypeVariableRef, Name: name}
}

// OtherType describes a shape no other tag covers, e.g. a func type.
func OtherType(desc string) *TypeRef {
	return &TypeRef{Kind: TypeOther, Name: desc}
}

// IsVoid reports whether t denotes the void type.
func (t *TypeRef) IsVoid() bool {
	return t == Void || (t != nil && t.Kind == TypeVoid)
}

// Equal reports whether two type references are structurally equal.
func (t *TypeRef) Equal(o *TypeRef) bool {
	if t == nil || o == nil {
		return t == nil && o == nil
	}
	if t.Kind != o.Kind || t.Name != o.Name || t.Lower != o.Lower {
		return false
	}
	if !t.Component.Equal(o.Component) {
		return false
	}
	return equalRefs(t.Args, o.Args) && equalRefs(t.Bounds, o.Bounds)
}

func equalRefs(a, b []*TypeRef) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// String renders t in the textual syntax accepted by ParseTypeRef.
// Type variable declarations render with their bounds.
func (t *TypeRef) String() string {
	if t == nil {
		return "<nil>"
	}
	switch t.Kind {
	case TypeVoid:
		return VoidName
	case TypeArray:
		return t.Component.String() + "[]"
	case TypeParameterized:
		return t.Name + "<" + joinRefs(t.Args) + ">"
	case TypeWildcard:
		if len(t.Bounds) == 0 {
			return "?"
		}
		if t.Lower {
			return "? super " + t.Bounds[0].String()
		}
		return "? extends " + t.Bounds[0].String()
	case TypeVariable:
		if len(t.Bounds) == 0 {
			return t.Name
		}
		parts := make([]string, len(t.Bounds))
		for i, b := range t.Bounds {
			parts[i] = b.String()
		}
		return t.Name + " extends " + strings.Join(parts, " & ")
	default:
		return t.Name
	}
}

func joinRefs(refs []*TypeRef) string {
	parts := make([]string, len(refs))
	for i, r := range refs {
		parts[i] = r.String()
	}
	return strings.Join(parts, ", ")
}

// TypeScope names the type variables visible while parsing.
type TypeScope map[string]bool

// ParseTypeRef parses the textual type syntax:
//
//	int64  string  void  demo.Person  demo.Person[]  map<string, int64>
//	demo.Box<? extends demo.Named>  T  T[]
//
// Identifiers found in scope become type-variable references; everything
// else is a class unless it names a primitive.
func ParseTypeRef(text string, scope TypeScope) (*TypeRef, error) {
	p := &typeParser{src: text, scope: scope}
	t, err := p.parseType()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, p.errorf("unexpected %q", p.src[p.pos:])
	}
	return t, nil
}

// ParseTypeParameter parses a type variable declaration such as
// "T" or "T extends demo.Comparable<T> & demo.Named". The declared
// name and every scope name parse as type-variable references.
func ParseTypeParameter(text string, scope TypeScope) (*TypeRef, error) {
	p := &typeParser{src: text, scope: scope}
	name := p.parseName()
	if name == "" {
		return nil, p.errorf("expected type parameter name")
	}
	inner := TypeScope{name: true}
	for k := range scope {
		inner[k] = true
	}
	p.scope = inner
	tv := TypeVar(name)
	p.skipSpace()
	if p.consumeWord("extends") {
		for {
			b, err := p.parseType()
			if err != nil {
				return nil, err
			}
			tv.Bounds = append(tv.Bounds, b)
			p.skipSpace()
			if !p.consume('&') {
				break
			}
		}
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, p.errorf("unexpected %q", p.src[p.pos:])
	}
	return tv, nil
}

// MustParseTypeRef is like ParseTypeRef but panics on error.
// Use only in tests or with constant inputs.
func MustParseTypeRef(text string) *TypeRef {
	t, err := ParseTypeRef(text, nil)
	if err != nil {
		panic(err)
	}
	return t
}

type typeParser struct {
	src   string
	pos   int
	scope TypeScope
}

func (p *typeParser) errorf(format string, args ...any) error {
	return fmt.Errorf("type %q at %d: %s", p.src, p.pos, fmt.Sprintf(format, args...))
}

func (p *typeParser) skipSpace() {
	for p.pos < len(p.src) && p.src[p.pos] == ' ' {
		p.pos++
	}
}

func (p *typeParser) consume(c byte) bool {
	p.skipSpace()
	if p.pos < len(p.src) && p.src[p.pos] == c {
		p.pos++
		return true
	}
	return false
}

func (p *typeParser) consumeWord(w string) bool {
	p.skipSpace()
	if strings.HasPrefix(p.src[p.pos:], w) {
		end := p.pos + len(w)
		if end == len(p.src) || p.src[end] == ' ' {
			p.pos = end
			return true
		}
	}
	return false
}

func (p *typeParser) parseName() string {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) {
		r := rune(p.src[p.pos])
		if r == '.' || r == '_' || r == '$' || unicode.IsLetter(r) || unicode.IsDigit(r) || r >= 0x80 {
			p.pos++
			continue
		}
		break
	}
	return p.src[start:p.pos]
}

func (p *typeParser) parseType() (*TypeRef, error) {
	p.skipSpace()
	var t *TypeRef
	if p.consume('?') {
		switch {
		case p.consumeWord("extends"):
			b, err := p.parseType()
			if err != nil {
				return nil, err
			}
			t = WildcardType(b, false)
		case p.consumeWord("super"):
			b, err := p.parseType()
			if err != nil {
				return nil, err
			}
			t = WildcardType(b, true)
		default:
			t = WildcardType(nil, false)
		}
		return t, nil
	}

	name := p.parseName()
	if name == "" {
		return nil, p.errorf("expected type name")
	}
	switch {
	case name == VoidName:
		t = Void
	case name == "byte":
		t = PrimitiveType("uint8")
	case name == "rune":
		t = PrimitiveType("int32")
	case PrimitiveNames[name]:
		t = PrimitiveType(name)
	case p.scope[name]:
		t = TypeVarRef(name)
	default:
		t = ClassType(name)
	}

	if p.consume('<') {
		if t.Kind != TypeClass {
			return nil, p.errorf("%s cannot take type arguments", name)
		}
		var args []*TypeRef
		for {
			a, err := p.parseType()
			if err != nil {
				return nil, err
			}
			args = append(args, a)
			if p.consume(',') {
				continue
			}
			if !p.consume('>') {
				return nil, p.errorf("expected '>'")
			}
			break
		}
		t = Parameterized(name, args...)
	}

	for {
		p.skipSpace()
		if strings.HasPrefix(p.src[p.pos:], "[]") {
			if t.IsVoid() {
				return nil, p.errorf("void cannot be an array component")
			}
			p.pos += 2
			t = ArrayOf(t)
			continue
		}
		break
	}
	return t, nil
}
