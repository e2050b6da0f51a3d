// Package backend defines how program structure is read from a metadata
// source.
//
// A Backend turns one class name into an ir.ClassRecord: supertype,
// interfaces, type parameters, members, enum constants and direct
// annotation usages with values already converted to canonical form.
// Three implementations exist:
//
//   - reflective: Go types registered with the class-loading capability
//   - index: a pre-built CUE index compiled once and shared
//   - pool: YAML unit resources fetched lazily through class loading
//
// Backends never cache descriptions themselves; the model's registries own
// resolution and caching. A backend may be asked for the same name more
// than once and must tolerate it.
package backend

import (
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	"go.uber.org/zap"

	"github.com/roach88/classmodel/internal/ir"
	"github.com/roach88/classmodel/internal/values"
)

// ErrClassNotFound is returned (possibly wrapped) when a name has no
// program unit in the backend's source.
var ErrClassNotFound = errors.New("class not found")

// ClassLoading resolves fully-qualified names into loadable program units
// and locates raw byte resources. It is supplied by the embedding
// application; only the reflective and pool backends call it.
type ClassLoading interface {
	// ClassForName loads the program unit registered under name.
	ClassForName(name string) (reflect.Type, error)

	// LocateResource opens a byte resource by slash-separated path.
	LocateResource(path string) (io.ReadCloser, error)
}

// TypeNamer is implemented by class-loading capabilities that can map a
// loaded type back to its registered name.
type TypeNamer interface {
	NameOf(t reflect.Type) (string, bool)
}

// BuildContext is what a backend may consult while building a record.
// It is provided by the model and tracks the resolution chain, so lookups
// that would re-enter a name already being built fail instead of blocking.
type BuildContext interface {
	values.Resolver

	// ClassLoading returns the capability bound to the model context.
	ClassLoading() ClassLoading

	// Logger returns the context logger.
	Logger() *zap.Logger
}

// Backend builds class records from one metadata source.
type Backend interface {
	// Name identifies the backend, e.g. "reflective".
	Name() string

	// BuildClass builds the record of the class named name.
	BuildClass(name string, bc BuildContext) (*ir.ClassRecord, error)
}

// ResourcePath maps a class name to the slash-separated resource path of
// its unit: "demo.Person" with ext ".unit.yaml" is "demo/Person.unit.yaml".
func ResourcePath(name, ext string) string {
	return strings.ReplaceAll(name, ".", "/") + ext
}

// IOError wraps a failure reading bytes or metadata for a class.
type IOError struct {
	Class string
	Path  string
	Err   error
}

func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("read %s for %s: %v", e.Path, e.Class, e.Err)
	}
	return fmt.Sprintf("read metadata for %s: %v", e.Class, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// NotFound returns an error wrapping ErrClassNotFound for name.
func NotFound(name string) error {
	return fmt.Errorf("%w: %s", ErrClassNotFound, name)
}

// AttributeMembers derives attribute records from the attribute methods of
// an annotation type record. Kinds are computed with values.KindOf.
func AttributeMembers(methods []ir.MemberRecord, r values.Resolver) ([]ir.AttributeRecord, error) {
	attrs := make([]ir.AttributeRecord, 0, len(methods))
	for _, m := range methods {
		kind, err := values.KindOf(m.Type, r)
		if err != nil {
			return nil, fmt.Errorf("attribute %s: %w", m.Name, err)
		}
		attrs = append(attrs, ir.AttributeRecord{Name: m.Name, Kind: kind, Type: m.Type, Default: m.Default})
	}
	return attrs, nil
}

// Visibility derives a Go-style visibility from an identifier: exported
// names are public, others package-private.
func Visibility(name string) ir.Visibility {
	if name != "" && strings.ToUpper(name[:1]) == name[:1] && strings.ToLower(name[:1]) != name[:1] {
		return ir.VisibilityPublic
	}
	return ir.VisibilityPackage
}

// AddModifier appends mod unless already present.
func AddModifier(mods []ir.Modifier, mod ir.Modifier) []ir.Modifier {
	for _, m := range mods {
		if m == mod {
			return mods
		}
	}
	return append(mods, mod)
}

// ApplyKindConventions fills in what a class kind implies, so every
// backend yields the same record for the same unit:
//
//   - records and enums are final
//   - a record's fields are final copies of its components
//   - interfaces and their methods are abstract
//   - annotation attribute methods are public and abstract
//   - missing visibilities follow the Go export rule
func ApplyKindConventions(rec *ir.ClassRecord) {
	if rec.Visibility == "" {
		rec.Visibility = Visibility(simpleName(rec.Name))
	}
	switch rec.Kind {
	case ir.RecordClass:
		rec.Modifiers = AddModifier(rec.Modifiers, ir.ModifierFinal)
		if len(rec.Fields) == 0 {
			for _, c := range rec.RecordComponents {
				f := c
				f.Kind = ir.MemberField
				f.Modifiers = AddModifier(append([]ir.Modifier(nil), c.Modifiers...), ir.ModifierFinal)
				rec.Fields = append(rec.Fields, f)
			}
		}
	case ir.EnumClass:
		rec.Modifiers = AddModifier(rec.Modifiers, ir.ModifierFinal)
	case ir.InterfaceClass:
		rec.Modifiers = AddModifier(rec.Modifiers, ir.ModifierAbstract)
		for i := range rec.Methods {
			rec.Methods[i].Modifiers = AddModifier(rec.Methods[i].Modifiers, ir.ModifierAbstract)
		}
	case ir.AnnotationClass:
		for i := range rec.Methods {
			rec.Methods[i].Visibility = ir.VisibilityPublic
			rec.Methods[i].Modifiers = AddModifier(rec.Methods[i].Modifiers, ir.ModifierAbstract)
		}
	}
	for _, ms := range [][]ir.MemberRecord{rec.Fields, rec.Methods, rec.RecordComponents} {
		for i := range ms {
			if ms[i].Visibility == "" {
				ms[i].Visibility = Visibility(ms[i].Name)
			}
		}
	}
}

func simpleName(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i+1:]
	}
	return name
}
