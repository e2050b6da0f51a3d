// Package render writes a human-readable dump of resolved classes.
//
// The output is stable: members keep declaration order, usages keep
// attachment order and attribute values follow the order their
// annotation type declares them. It is read-only and never triggers
// resolution beyond what AttributeValue already does.
package render

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/roach88/classmodel/internal/ir"
	"github.com/roach88/classmodel/internal/model"
)

// Options controls what is rendered.
type Options struct {
	// Defaults includes attributes that take their declared default.
	// Otherwise only explicitly supplied values are shown.
	Defaults bool
}

// usageTarget is what every annotated element in the model offers.
type usageTarget interface {
	DirectAnnotationUsages() []*model.AnnotationUsage
}

// Class writes cd to w.
func Class(w io.Writer, cd *model.ClassDetails, opts Options) error {
	p := &printer{opts: opts}
	p.class(cd)
	if p.err != nil {
		return fmt.Errorf("render %s: %w", cd.Name(), p.err)
	}
	_, err := w.Write(p.buf.Bytes())
	return err
}

// Classes writes each class in turn, separated by a blank line.
func Classes(w io.Writer, classes []*model.ClassDetails, opts Options) error {
	for i, cd := range classes {
		if i > 0 {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
		}
		if err := Class(w, cd, opts); err != nil {
			return err
		}
	}
	return nil
}

// String renders cd into a string.
func String(cd *model.ClassDetails, opts Options) (string, error) {
	var b strings.Builder
	if err := Class(&b, cd, opts); err != nil {
		return "", err
	}
	return b.String(), nil
}

type printer struct {
	buf  bytes.Buffer
	opts Options
	err  error
}

func (p *printer) line(indent int, format string, args ...any) {
	p.buf.WriteString(strings.Repeat("  ", indent))
	fmt.Fprintf(&p.buf, format, args...)
	p.buf.WriteByte('\n')
}

func (p *printer) class(cd *model.ClassDetails) {
	header := string(cd.Kind()) + " " + cd.Name()
	if tps := cd.TypeParameters(); len(tps) > 0 {
		header += "<" + joinTypes(tps) + ">"
	}
	p.line(0, "%s", header)

	if v := cd.Visibility(); v != "" {
		p.line(1, "visibility: %s", v)
	}
	if mods := cd.Modifiers(); len(mods) > 0 {
		p.line(1, "modifiers: %s", joinModifiers(mods))
	}
	if cd.IsDynamic() {
		p.line(1, "dynamic: true")
	}
	if s := cd.Super(); s != nil {
		p.line(1, "extends: %s", s)
	}
	if ifaces := cd.Interfaces(); len(ifaces) > 0 {
		p.line(1, "implements: %s", joinTypes(ifaces))
	}
	if consts := cd.EnumConstants(); len(consts) > 0 {
		p.line(1, "constants: %s", strings.Join(consts, ", "))
	}
	p.usages(1, cd)

	if fields := cd.Fields(); len(fields) > 0 {
		p.line(1, "fields:")
		for _, f := range fields {
			p.line(2, "%s", memberLine(f.Visibility(), f.Modifiers(), f.Name()+" "+f.Type().String()))
			p.usages(3, f)
		}
	}
	if comps := cd.RecordComponents(); len(comps) > 0 {
		p.line(1, "components:")
		for _, rc := range comps {
			p.line(2, "%s", memberLine(rc.Visibility(), rc.Modifiers(), rc.Name()+" "+rc.Type().String()))
			p.usages(3, rc)
		}
	}
	if methods := cd.Methods(); len(methods) > 0 {
		p.line(1, "methods:")
		for _, m := range methods {
			sig := m.Name() + "(" + joinTypes(m.Parameters()) + ") " + m.ReturnType().String()
			if def := m.Default(); def != nil {
				sig += " default " + Value(def)
			}
			p.line(2, "%s", memberLine(m.Visibility(), m.Modifiers(), sig))
			p.usages(3, m)
		}
	}
}

func (p *printer) usages(indent int, t usageTarget) {
	for _, u := range t.DirectAnnotationUsages() {
		s, err := p.usage(u)
		if err != nil && p.err == nil {
			p.err = err
		}
		p.line(indent, "%s", s)
	}
}

func (p *printer) usage(u *model.AnnotationUsage) (string, error) {
	var parts []string
	for _, attr := range u.Descriptor().Attributes() {
		if !u.IsExplicit(attr.Name) && (!p.opts.Defaults || attr.Default == nil) {
			continue
		}
		v, err := u.AttributeValue(attr.Name)
		if err != nil {
			return "", err
		}
		parts = append(parts, attr.Name+"="+Value(v))
	}
	if len(parts) == 0 {
		return "@" + u.Name(), nil
	}
	return "@" + u.Name() + "(" + strings.Join(parts, ", ") + ")", nil
}

// Value formats an attribute value. Nested usages show their explicit
// values in canonical key order.
func Value(v ir.Value) string {
	switch x := v.(type) {
	case nil:
		return "<nil>"
	case ir.String:
		return strconv.Quote(string(x))
	case ir.Bool:
		return strconv.FormatBool(bool(x))
	case ir.Int:
		return strconv.FormatInt(int64(x), 10)
	case ir.Float:
		return strconv.FormatFloat(float64(x), 'g', -1, 64)
	case ir.EnumConst:
		return x.Type + "." + x.Name
	case ir.ClassRef:
		return x.Name
	case ir.Nested:
		keys := x.Values.SortedKeys()
		if len(keys) == 0 {
			return "@" + x.Type
		}
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + "=" + Value(x.Values[k])
		}
		return "@" + x.Type + "(" + strings.Join(parts, ", ") + ")"
	case ir.Array:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = Value(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return fmt.Sprintf("%v", v)
	}
}

func memberLine(vis ir.Visibility, mods []ir.Modifier, rest string) string {
	var prefix []string
	if vis != "" {
		prefix = append(prefix, string(vis))
	}
	for _, m := range mods {
		prefix = append(prefix, string(m))
	}
	if len(prefix) == 0 {
		return rest
	}
	return strings.Join(prefix, " ") + " " + rest
}

func joinTypes(ts []*ir.TypeRef) string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = t.String()
	}
	return strings.Join(parts, ", ")
}

func joinModifiers(mods []ir.Modifier) string {
	parts := make([]string, len(mods))
	for i, m := range mods {
		parts[i] = string(m)
	}
	return strings.Join(parts, ", ")
}
