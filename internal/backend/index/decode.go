package index

import (
	"fmt"

	"cuelang.org/go/cue"

	"github.com/roach88/classmodel/internal/backend"
)

// decodeUnit walks one entry of the classes struct into a backend.Unit.
func decodeUnit(name string, v cue.Value) (*backend.Unit, error) {
	u := &backend.Unit{Name: name}
	var err error
	if u.Kind, err = stringAt(v, "kind"); err != nil {
		return nil, err
	}
	if u.Visibility, err = stringAt(v, "visibility"); err != nil {
		return nil, err
	}
	if u.Super, err = stringAt(v, "super"); err != nil {
		return nil, err
	}
	for _, dst := range []struct {
		path string
		out  *[]string
	}{
		{"modifiers", &u.Modifiers},
		{"interfaces", &u.Interfaces},
		{"typeParameters", &u.TypeParameters},
		{"enumConstants", &u.EnumConstants},
	} {
		if *dst.out, err = stringsAt(v, dst.path); err != nil {
			return nil, err
		}
	}
	for _, dst := range []struct {
		path string
		out  *[]backend.UnitMember
	}{
		{"fields", &u.Fields},
		{"methods", &u.Methods},
		{"recordComponents", &u.RecordComponents},
	} {
		if *dst.out, err = membersAt(v, dst.path); err != nil {
			return nil, err
		}
	}
	if u.Annotations, err = usagesAt(v, "annotations"); err != nil {
		return nil, err
	}
	u.NormalizeUsages()
	return u, nil
}

func lookup(v cue.Value, path string) (cue.Value, bool) {
	f := v.LookupPath(cue.ParsePath(path))
	if !f.Exists() {
		return f, false
	}
	if d, ok := f.Default(); ok {
		f = d
	}
	return f, true
}

func stringAt(v cue.Value, path string) (string, error) {
	f, ok := lookup(v, path)
	if !ok {
		return "", nil
	}
	s, err := f.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func stringsAt(v cue.Value, path string) ([]string, error) {
	f, ok := lookup(v, path)
	if !ok {
		return nil, nil
	}
	iter, err := f.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}

func membersAt(v cue.Value, path string) ([]backend.UnitMember, error) {
	f, ok := lookup(v, path)
	if !ok {
		return nil, nil
	}
	iter, err := f.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []backend.UnitMember
	for iter.Next() {
		m, err := decodeMember(iter.Value())
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func decodeMember(v cue.Value) (backend.UnitMember, error) {
	var m backend.UnitMember
	var err error
	for _, dst := range []struct {
		path string
		out  *string
	}{
		{"name", &m.Name},
		{"type", &m.Type},
		{"returns", &m.Returns},
		{"visibility", &m.Visibility},
	} {
		if *dst.out, err = stringAt(v, dst.path); err != nil {
			return m, err
		}
	}
	if m.Parameters, err = stringsAt(v, "parameters"); err != nil {
		return m, err
	}
	if m.Modifiers, err = stringsAt(v, "modifiers"); err != nil {
		return m, err
	}
	if m.Annotations, err = usagesAt(v, "annotations"); err != nil {
		return m, err
	}
	if def, ok := lookup(v, "default"); ok {
		if m.Default, err = decodeAny(def); err != nil {
			return m, fmt.Errorf("%s default: %w", m.Name, err)
		}
	}
	return m, nil
}

func usagesAt(v cue.Value, path string) ([]*backend.UnitUsage, error) {
	f, ok := lookup(v, path)
	if !ok {
		return nil, nil
	}
	iter, err := f.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []*backend.UnitUsage
	for iter.Next() {
		u, err := decodeUsage(iter.Value())
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}

func decodeUsage(v cue.Value) (*backend.UnitUsage, error) {
	typ, err := stringAt(v, "type")
	if err != nil {
		return nil, err
	}
	u := &backend.UnitUsage{Type: typ}
	vals, ok := lookup(v, "values")
	if !ok {
		return u, nil
	}
	iter, err := vals.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		x, err := decodeAny(iter.Value())
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", typ, iter.Selector().Unquoted(), err)
		}
		if u.Values == nil {
			u.Values = make(map[string]any)
		}
		u.Values[iter.Selector().Unquoted()] = x
	}
	return u, nil
}

// decodeAny converts a concrete CUE value into plain Go data: scalars,
// []any and map[string]any. Nested usages are recognized afterwards by
// Unit.NormalizeUsages.
func decodeAny(v cue.Value) (any, error) {
	if d, ok := v.Default(); ok {
		v = d
	}
	switch v.Kind() {
	case cue.NullKind:
		return nil, nil
	case cue.BoolKind:
		return v.Bool()
	case cue.IntKind:
		return v.Int64()
	case cue.FloatKind:
		return v.Float64()
	case cue.StringKind:
		return v.String()
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out := []any{}
		for iter.Next() {
			x, err := decodeAny(iter.Value())
			if err != nil {
				return nil, err
			}
			out = append(out, x)
		}
		return out, nil
	case cue.StructKind:
		iter, err := v.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out := map[string]any{}
		for iter.Next() {
			x, err := decodeAny(iter.Value())
			if err != nil {
				return nil, err
			}
			out[iter.Selector().Unquoted()] = x
		}
		return out, nil
	}
	return nil, fmt.Errorf("value is not concrete: %v", v)
}
