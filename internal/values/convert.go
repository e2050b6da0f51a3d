package values

import (
	"math"
	"reflect"
	"strings"

	"github.com/roach88/classmodel/internal/ir"
	"github.com/roach88/classmodel/internal/modelerr"
)

// Named is a lazily or eagerly loaded class handle that knows its name.
// Backends hand these to the class converter instead of plain strings when
// the raw form is a type handle.
type Named interface {
	TypeName() string
}

// Converter turns one raw backend value into a canonical value for attr.
type Converter interface {
	Convert(raw any, attr ir.AttributeRecord, cx *Context) (ir.Value, error)
}

// ConverterFunc adapts a function to Converter.
type ConverterFunc func(raw any, attr ir.AttributeRecord, cx *Context) (ir.Value, error)

// Convert implements Converter.
func (f ConverterFunc) Convert(raw any, attr ir.AttributeRecord, cx *Context) (ir.Value, error) {
	return f(raw, attr, cx)
}

// DefaultConverters returns the shared converter for every value kind.
// They accept the raw forms of all bundled backends as well as canonical
// ir values.
func DefaultConverters() map[ir.ValueKind]Converter {
	return map[ir.ValueKind]Converter{
		ir.KindString:     ConverterFunc(convertString),
		ir.KindBool:       ConverterFunc(convertBool),
		ir.KindInt:        ConverterFunc(convertInt),
		ir.KindFloat:      ConverterFunc(convertFloat),
		ir.KindEnum:       ConverterFunc(convertEnum),
		ir.KindClass:      ConverterFunc(convertClass),
		ir.KindAnnotation: ConverterFunc(convertNested),
		ir.KindArray:      ConverterFunc(convertArray),
	}
}

func invalid(cx *Context, attr ir.AttributeRecord, raw any, want string) error {
	return modelerr.InvalidValue(cx.Annotation, attr.Name, "cannot use %T (%v) as %s", raw, raw, want)
}

func convertString(raw any, attr ir.AttributeRecord, cx *Context) (ir.Value, error) {
	switch v := raw.(type) {
	case string:
		return ir.String(v), nil
	case ir.String:
		return v, nil
	}
	return nil, invalid(cx, attr, raw, "string")
}

func convertBool(raw any, attr ir.AttributeRecord, cx *Context) (ir.Value, error) {
	switch v := raw.(type) {
	case bool:
		return ir.Bool(v), nil
	case ir.Bool:
		return v, nil
	}
	return nil, invalid(cx, attr, raw, "bool")
}

func convertInt(raw any, attr ir.AttributeRecord, cx *Context) (ir.Value, error) {
	var n int64
	rv := reflect.ValueOf(raw)
	switch {
	case raw == nil:
		return nil, invalid(cx, attr, raw, "integer")
	case rv.CanInt():
		n = rv.Int()
	case rv.CanUint():
		u := rv.Uint()
		if u > math.MaxInt64 {
			return nil, modelerr.InvalidValue(cx.Annotation, attr.Name, "%d overflows int64", u)
		}
		n = int64(u)
	case rv.CanFloat():
		f := rv.Float()
		if f != math.Trunc(f) || f >= math.MaxInt64 || f < math.MinInt64 {
			return nil, invalid(cx, attr, raw, "integer")
		}
		n = int64(f)
	default:
		return nil, invalid(cx, attr, raw, "integer")
	}

	name := ""
	if attr.Type != nil {
		name = attr.Type.Name
	}
	if bits := intBits[name]; bits > 0 && bits < 64 {
		lo, hi := int64(0), int64(1)<<bits-1
		if signedInt[name] {
			lo, hi = -(int64(1) << (bits - 1)), int64(1)<<(bits-1)-1
		}
		if n < lo || n > hi {
			return nil, modelerr.InvalidValue(cx.Annotation, attr.Name, "%d out of range for %s", n, name)
		}
	} else if bits == 64 && !signedInt[name] && n < 0 {
		return nil, modelerr.InvalidValue(cx.Annotation, attr.Name, "%d out of range for %s", n, name)
	}
	return ir.Int(n), nil
}

func convertFloat(raw any, attr ir.AttributeRecord, cx *Context) (ir.Value, error) {
	rv := reflect.ValueOf(raw)
	switch {
	case raw == nil:
	case rv.CanFloat():
		return ir.Float(rv.Float()), nil
	case rv.CanInt():
		return ir.Float(float64(rv.Int())), nil
	case rv.CanUint():
		return ir.Float(float64(rv.Uint())), nil
	}
	return nil, invalid(cx, attr, raw, "float")
}

func convertEnum(raw any, attr ir.AttributeRecord, cx *Context) (ir.Value, error) {
	enumType := attr.Type.Name
	var name string
	switch v := raw.(type) {
	case string:
		name = strings.TrimPrefix(v, enumType+".")
	case ir.EnumConst:
		if v.Type != enumType {
			return nil, modelerr.InvalidValue(cx.Annotation, attr.Name, "constant of %s used for %s", v.Type, enumType)
		}
		name = v.Name
	default:
		return nil, invalid(cx, attr, raw, "enum constant of "+enumType)
	}

	constants, err := cx.Resolver.EnumConstants(enumType)
	if err != nil {
		return nil, err
	}
	for _, c := range constants {
		if c == name {
			return ir.EnumConst{Type: enumType, Name: name}, nil
		}
	}
	return nil, modelerr.InvalidValue(cx.Annotation, attr.Name, "%s is not a constant of %s", name, enumType)
}

func convertClass(raw any, attr ir.AttributeRecord, cx *Context) (ir.Value, error) {
	var name string
	switch v := raw.(type) {
	case string:
		name = v
	case Named:
		name = v.TypeName()
	case ir.ClassRef:
		name = v.Name
	}
	if name == "" {
		return nil, invalid(cx, attr, raw, "class reference")
	}
	return ir.ClassRef{Name: name}, nil
}

func convertNested(raw any, attr ir.AttributeRecord, cx *Context) (ir.Value, error) {
	want := attr.Type.Name
	switch v := raw.(type) {
	case ir.Nested:
		if v.Type != want {
			return nil, modelerr.InvalidValue(cx.Annotation, attr.Name, "usage of %s where %s is declared", v.Type, want)
		}
		return v, nil
	case RawUsage:
		if v.AnnotationType() != want {
			return nil, modelerr.InvalidValue(cx.Annotation, attr.Name, "usage of %s where %s is declared", v.AnnotationType(), want)
		}
		rec, err := cx.Strategies.Usage(v, cx.Resolver)
		if err != nil {
			return nil, err
		}
		return ir.Nested{Type: rec.Type, Values: rec.Values}, nil
	}
	return nil, invalid(cx, attr, raw, "annotation "+want)
}

func convertArray(raw any, attr ir.AttributeRecord, cx *Context) (ir.Value, error) {
	elemKind, err := KindOf(attr.Type.Component, cx.Resolver)
	if err != nil {
		return nil, err
	}
	elem := ir.AttributeRecord{Name: attr.Name, Kind: elemKind, Type: attr.Type.Component}
	conv, ok := cx.Strategies[elemKind]
	if !ok || conv.Converter == nil {
		return nil, modelerr.InvalidValue(cx.Annotation, attr.Name, "no converter for %s", elemKind)
	}

	var items []any
	switch v := raw.(type) {
	case ir.Array:
		items = make([]any, len(v))
		for i, x := range v {
			items[i] = x
		}
	case []any:
		items = v
	default:
		rv := reflect.ValueOf(raw)
		if raw != nil && (rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array) {
			items = make([]any, rv.Len())
			for i := range items {
				items[i] = rv.Index(i).Interface()
			}
		} else {
			// A single element stands for a one-element array.
			items = []any{raw}
		}
	}

	out := make(ir.Array, 0, len(items))
	for _, item := range items {
		v, err := conv.Converter.Convert(item, elem, cx)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
