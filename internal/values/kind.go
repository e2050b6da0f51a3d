package values

import (
	"fmt"

	"github.com/roach88/classmodel/internal/ir"
	"github.com/roach88/classmodel/internal/shape"
)

// Resolver answers the lookups conversion needs. The model's registries
// implement it; backends receive it through their build context.
type Resolver interface {
	// ClassKind resolves name and reports its kind.
	ClassKind(name string) (ir.ClassKind, error)

	// EnumConstants lists the constants of enum class name.
	EnumConstants(name string) ([]string, error)

	// Descriptor resolves annotation type name.
	Descriptor(name string) (*ir.DescriptorRecord, error)
}

// KindOf classifies an attribute's declared type into a value kind.
func KindOf(t *ir.TypeRef, r Resolver) (ir.ValueKind, error) {
	type result struct {
		kind ir.ValueKind
		err  error
	}
	unsupported := func(t *ir.TypeRef) result {
		return result{err: fmt.Errorf("type %s cannot hold an annotation attribute", t)}
	}

	res := shape.Switch[result](t, shape.Cases[result]{
		OnPrimitive: func(t *ir.TypeRef) result {
			switch {
			case t.Name == "string":
				return result{kind: ir.KindString}
			case t.Name == "bool":
				return result{kind: ir.KindBool}
			case intBits[t.Name] > 0:
				return result{kind: ir.KindInt}
			case t.Name == "float32" || t.Name == "float64":
				return result{kind: ir.KindFloat}
			}
			return unsupported(t)
		},
		OnClass: func(t *ir.TypeRef) result {
			if t.Name == ir.ClassReferenceName {
				return result{kind: ir.KindClass}
			}
			ck, err := r.ClassKind(t.Name)
			if err != nil {
				return result{err: err}
			}
			switch ck {
			case ir.EnumClass:
				return result{kind: ir.KindEnum}
			case ir.AnnotationClass:
				return result{kind: ir.KindAnnotation}
			}
			return unsupported(t)
		},
		OnArray: func(t *ir.TypeRef) result {
			if t.Component.Kind == ir.TypeArray {
				return unsupported(t)
			}
			if _, err := KindOf(t.Component, r); err != nil {
				return result{err: err}
			}
			return result{kind: ir.KindArray}
		},
		OnDefault: unsupported,
	})
	return res.kind, res.err
}

// intBits maps integer primitive names to their width; the sign is in
// signedInt.
var intBits = map[string]int{
	"int": 64, "int8": 8, "int16": 16, "int32": 32, "int64": 64,
	"uint": 64, "uint8": 8, "uint16": 16, "uint32": 32, "uint64": 64, "uintptr": 64,
}

var signedInt = map[string]bool{
	"int": true, "int8": true, "int16": true, "int32": true, "int64": true,
}
