// Package shape dispatches on the shape of a type reference.
//
// Every backend produces ir.TypeRef values, so consumers classify
// parameterized types, arrays, wildcards and type variables the same way
// regardless of where the reference came from. Switch evaluates the shape
// in a fixed order and invokes exactly one handler case:
//
//  1. void (identity against ir.Void, or the void tag)
//  2. primitive
//  3. array, including generic arrays whose component is parameterized
//     or a type variable
//  4. class, parameterized, wildcard, type variable, type variable ref
//  5. Default for anything else, including nil and ir.TypeOther
package shape

import "github.com/roach88/classmodel/internal/ir"

// Handler receives exactly one call per Switch.
type Handler[R any] interface {
	Void(t *ir.TypeRef) R
	Primitive(t *ir.TypeRef) R
	Array(t *ir.TypeRef) R
	Class(t *ir.TypeRef) R
	Parameterized(t *ir.TypeRef) R
	Wildcard(t *ir.TypeRef) R
	TypeVariable(t *ir.TypeRef) R
	TypeVariableRef(t *ir.TypeRef) R
	Default(t *ir.TypeRef) R
}

// Switch classifies t and invokes the matching case of h.
func Switch[R any](t *ir.TypeRef, h Handler[R]) R {
	if t == nil {
		return h.Default(t)
	}
	if t == ir.Void || t.Kind == ir.TypeVoid {
		return h.Void(t)
	}
	if t.Kind == ir.TypePrimitive {
		return h.Primitive(t)
	}
	if t.Kind == ir.TypeArray && t.Component != nil {
		return h.Array(t)
	}

	switch t.Kind {
	case ir.TypeClass:
		return h.Class(t)
	case ir.TypeParameterized:
		return h.Parameterized(t)
	case ir.TypeWildcard:
		return h.Wildcard(t)
	case ir.TypeVariable:
		return h.TypeVariable(t)
	case ir.TypeVariableRef:
		return h.TypeVariableRef(t)
	default:
		return h.Default(t)
	}
}

// Cases adapts a set of functions to Handler. Nil entries fall back to
// OnDefault, which must be set.
type Cases[R any] struct {
	OnVoid            func(*ir.TypeRef) R
	OnPrimitive       func(*ir.TypeRef) R
	OnArray           func(*ir.TypeRef) R
	OnClass           func(*ir.TypeRef) R
	OnParameterized   func(*ir.TypeRef) R
	OnWildcard        func(*ir.TypeRef) R
	OnTypeVariable    func(*ir.TypeRef) R
	OnTypeVariableRef func(*ir.TypeRef) R
	OnDefault         func(*ir.TypeRef) R
}

func (c Cases[R]) pick(f func(*ir.TypeRef) R, t *ir.TypeRef) R {
	if f != nil {
		return f(t)
	}
	return c.OnDefault(t)
}

func (c Cases[R]) Void(t *ir.TypeRef) R            { return c.pick(c.OnVoid, t) }
func (c Cases[R]) Primitive(t *ir.TypeRef) R       { return c.pick(c.OnPrimitive, t) }
func (c Cases[R]) Array(t *ir.TypeRef) R           { return c.pick(c.OnArray, t) }
func (c Cases[R]) Class(t *ir.TypeRef) R           { return c.pick(c.OnClass, t) }
func (c Cases[R]) Parameterized(t *ir.TypeRef) R   { return c.pick(c.OnParameterized, t) }
func (c Cases[R]) Wildcard(t *ir.TypeRef) R        { return c.pick(c.OnWildcard, t) }
func (c Cases[R]) TypeVariable(t *ir.TypeRef) R    { return c.pick(c.OnTypeVariable, t) }
func (c Cases[R]) TypeVariableRef(t *ir.TypeRef) R { return c.pick(c.OnTypeVariableRef, t) }
func (c Cases[R]) Default(t *ir.TypeRef) R         { return c.OnDefault(t) }

// IsGenericArray reports whether t is an array whose innermost component
// is parameterized or a type variable.
func IsGenericArray(t *ir.TypeRef) bool {
	if t == nil || t.Kind != ir.TypeArray {
		return false
	}
	c := t.Component
	for c != nil && c.Kind == ir.TypeArray {
		c = c.Component
	}
	if c == nil {
		return false
	}
	switch c.Kind {
	case ir.TypeParameterized, ir.TypeVariable, ir.TypeVariableRef:
		return true
	}
	return false
}

// Erasure returns the raw name of t: the class of a parameterized type,
// the first bound of a type variable or wildcard (ir.AnyName when
// unbounded), and "X[]" for arrays. Type variable refs erase to
// ir.AnyName since their bounds are not carried.
func Erasure(t *ir.TypeRef) string {
	return Switch[string](t, erasure{})
}

type erasure struct{}

func (erasure) Void(t *ir.TypeRef) string          { return ir.VoidName }
func (erasure) Primitive(t *ir.TypeRef) string     { return t.Name }
func (erasure) Array(t *ir.TypeRef) string         { return Erasure(t.Component) + "[]" }
func (erasure) Class(t *ir.TypeRef) string         { return t.Name }
func (erasure) Parameterized(t *ir.TypeRef) string { return t.Name }
func (erasure) Wildcard(t *ir.TypeRef) string {
	if len(t.Bounds) == 0 || t.Lower {
		return ir.AnyName
	}
	return Erasure(t.Bounds[0])
}
func (erasure) TypeVariable(t *ir.TypeRef) string {
	if len(t.Bounds) == 0 {
		return ir.AnyName
	}
	return Erasure(t.Bounds[0])
}
func (erasure) TypeVariableRef(t *ir.TypeRef) string { return ir.AnyName }
func (erasure) Default(t *ir.TypeRef) string {
	if t == nil {
		return ""
	}
	return t.Name
}

// Walk calls fn for t and every type reference nested inside it,
// depth first. fn returning false stops descent below that node.
func Walk(t *ir.TypeRef, fn func(*ir.TypeRef) bool) {
	if t == nil || !fn(t) {
		return
	}
	Walk(t.Component, fn)
	for _, a := range t.Args {
		Walk(a, fn)
	}
	for _, b := range t.Bounds {
		Walk(b, fn)
	}
}

// ReferencedClasses returns the distinct class names t mentions, in
// first-seen order, excluding the class-reference pseudo type.
func ReferencedClasses(t *ir.TypeRef) []string {
	var names []string
	seen := map[string]bool{}
	Walk(t, func(r *ir.TypeRef) bool {
		if (r.Kind == ir.TypeClass || r.Kind == ir.TypeParameterized) &&
			r.Name != ir.ClassReferenceName && !seen[r.Name] {
			seen[r.Name] = true
			names = append(names, r.Name)
		}
		return true
	})
	return names
}
