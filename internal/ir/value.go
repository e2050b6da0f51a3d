package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"unicode/utf16"
)

// ValueKind classifies annotation attribute values.
type ValueKind string

const (
	KindString     ValueKind = "string"
	KindBool       ValueKind = "bool"
	KindInt        ValueKind = "int"
	KindFloat      ValueKind = "float"
	KindEnum       ValueKind = "enum"
	KindClass      ValueKind = "class"
	KindAnnotation ValueKind = "annotation"
	KindArray      ValueKind = "array"
)

// ValidValueKinds lists every value kind.
var ValidValueKinds = map[ValueKind]bool{
	KindString:     true,
	KindBool:       true,
	KindInt:        true,
	KindFloat:      true,
	KindEnum:       true,
	KindClass:      true,
	KindAnnotation: true,
	KindArray:      true,
}

// Value is a sealed interface for canonical annotation attribute values.
// Only String, Bool, Int, Float, EnumConst, ClassRef, Nested and Array
// implement it.
type Value interface {
	Kind() ValueKind
	value() // Sealed
}

// String is a string attribute value.
type String string

func (String) Kind() ValueKind { return KindString }
func (String) value()          {}

// Bool is a boolean attribute value.
type Bool bool

func (Bool) Kind() ValueKind { return KindBool }
func (Bool) value()          {}

// Int is an integer attribute value of any declared width.
type Int int64

func (Int) Kind() ValueKind { return KindInt }
func (Int) value()          {}

// Float is a floating point attribute value.
type Float float64

func (Float) Kind() ValueKind { return KindFloat }
func (Float) value()          {}

// EnumConst names one constant of an enum class.
type EnumConst struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

func (EnumConst) Kind() ValueKind { return KindEnum }
func (EnumConst) value()          {}

// ClassRef references a class by name.
type ClassRef struct {
	Name string `json:"name"`
}

func (ClassRef) Kind() ValueKind { return KindClass }
func (ClassRef) value()          {}

// Nested is an annotation usage appearing as an attribute value.
// Values holds explicitly supplied attributes only.
type Nested struct {
	Type   string `json:"type"`
	Values Values `json:"values,omitempty"`
}

func (Nested) Kind() ValueKind { return KindAnnotation }
func (Nested) value()          {}

// Array is an ordered list of values sharing one element kind.
type Array []Value

func (Array) Kind() ValueKind { return KindArray }
func (Array) value()          {}

// Values maps attribute names to values.
// Use SortedKeys() for deterministic iteration.
type Values map[string]Value

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
func (vs Values) SortedKeys() []string {
	keys := make([]string, 0, len(vs))
	for k := range vs {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

// Clone returns a shallow copy of the map.
func (vs Values) Clone() Values {
	if vs == nil {
		return nil
	}
	out := make(Values, len(vs))
	for k, v := range vs {
		out[k] = v
	}
	return out
}

// compareKeysRFC8785 compares strings using UTF-16 code unit ordering
// as required by RFC 8785. Go's default string comparison uses UTF-8,
// which orders supplementary characters differently.
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	for i := 0; i < min(len(a16), len(b16)); i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	}
	return 0
}

// Equal reports whether two values are structurally equal.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch av := a.(type) {
	case Array:
		bv, ok := b.(Array)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case Nested:
		bv, ok := b.(Nested)
		return ok && av.Type == bv.Type && EqualValues(av.Values, bv.Values)
	default:
		return a == b
	}
}

// EqualValues reports whether two value maps hold equal entries.
func EqualValues(a, b Values) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok || !Equal(av, bv) {
			return false
		}
	}
	return true
}

// Format renders a value in annotation source syntax, e.g.
// "people", 40, demo.Color.RED, demo.Person, @demo.Column(length=40), {1, 2}.
func Format(v Value) string {
	switch val := v.(type) {
	case nil:
		return "<nil>"
	case String:
		return strconv.Quote(string(val))
	case Bool:
		return strconv.FormatBool(bool(val))
	case Int:
		return strconv.FormatInt(int64(val), 10)
	case Float:
		return strconv.FormatFloat(float64(val), 'g', -1, 64)
	case EnumConst:
		return val.Type + "." + val.Name
	case ClassRef:
		return val.Name
	case Nested:
		var b strings.Builder
		b.WriteString("@" + val.Type)
		if len(val.Values) > 0 {
			b.WriteByte('(')
			for i, k := range val.Values.SortedKeys() {
				if i > 0 {
					b.WriteString(", ")
				}
				b.WriteString(k + "=" + Format(val.Values[k]))
			}
			b.WriteByte(')')
		}
		return b.String()
	case Array:
		parts := make([]string, len(val))
		for i, elem := range val {
			parts[i] = Format(elem)
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return fmt.Sprintf("%v", v)
	}
}

// valueEnvelope is the self-describing JSON form of a Value.
type valueEnvelope struct {
	Kind  ValueKind       `json:"kind"`
	Type  string          `json:"type,omitempty"`
	Value json.RawMessage `json:"value"`
}

// MarshalValue marshals a Value to its JSON envelope.
func MarshalValue(v Value) ([]byte, error) {
	if v == nil {
		return nil, fmt.Errorf("nil value")
	}
	env := valueEnvelope{Kind: v.Kind()}
	var (
		raw []byte
		err error
	)
	switch val := v.(type) {
	case String:
		raw, err = json.Marshal(string(val))
	case Bool:
		raw, err = json.Marshal(bool(val))
	case Int:
		raw, err = json.Marshal(int64(val))
	case Float:
		raw, err = json.Marshal(float64(val))
	case EnumConst:
		env.Type = val.Type
		raw, err = json.Marshal(val.Name)
	case ClassRef:
		raw, err = json.Marshal(val.Name)
	case Nested:
		env.Type = val.Type
		if val.Values == nil {
			raw = []byte("{}")
		} else {
			raw, err = val.Values.MarshalJSON()
		}
	case Array:
		raw, err = marshalArray(val)
	default:
		return nil, fmt.Errorf("unknown Value type: %T", v)
	}
	if err != nil {
		return nil, err
	}
	env.Value = raw
	return json.Marshal(env)
}

func marshalArray(arr Array) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, elem := range arr {
		if i > 0 {
			buf.WriteByte(',')
		}
		b, err := MarshalValue(elem)
		if err != nil {
			return nil, fmt.Errorf("array[%d]: %w", i, err)
		}
		buf.Write(b)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// UnmarshalValue decodes a JSON envelope produced by MarshalValue.
func UnmarshalValue(data []byte) (Value, error) {
	var env valueEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	if len(env.Value) == 0 {
		return nil, fmt.Errorf("value envelope of kind %q has no value", env.Kind)
	}

	switch env.Kind {
	case KindString:
		var s string
		if err := json.Unmarshal(env.Value, &s); err != nil {
			return nil, err
		}
		return String(s), nil
	case KindBool:
		var b bool
		if err := json.Unmarshal(env.Value, &b); err != nil {
			return nil, err
		}
		return Bool(b), nil
	case KindInt:
		var n int64
		if err := json.Unmarshal(env.Value, &n); err != nil {
			return nil, err
		}
		return Int(n), nil
	case KindFloat:
		var f float64
		if err := json.Unmarshal(env.Value, &f); err != nil {
			return nil, err
		}
		return Float(f), nil
	case KindEnum:
		var name string
		if err := json.Unmarshal(env.Value, &name); err != nil {
			return nil, err
		}
		return EnumConst{Type: env.Type, Name: name}, nil
	case KindClass:
		var name string
		if err := json.Unmarshal(env.Value, &name); err != nil {
			return nil, err
		}
		return ClassRef{Name: name}, nil
	case KindAnnotation:
		var vs Values
		if err := json.Unmarshal(env.Value, &vs); err != nil {
			return nil, err
		}
		return Nested{Type: env.Type, Values: vs}, nil
	case KindArray:
		var raw []json.RawMessage
		if err := json.Unmarshal(env.Value, &raw); err != nil {
			return nil, err
		}
		arr := make(Array, len(raw))
		for i, r := range raw {
			v, err := UnmarshalValue(r)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			arr[i] = v
		}
		return arr, nil
	default:
		return nil, fmt.Errorf("unknown value kind %q", env.Kind)
	}
}

// MarshalJSON implements json.Marshaler with sorted keys (RFC 8785 ordering).
// This is not canonical marshaling; use MarshalCanonical for hashing.
func (vs Values) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range vs.SortedKeys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyBytes, err := json.Marshal(k)
		if err != nil {
			return nil, fmt.Errorf("marshal key %q: %w", k, err)
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')
		valBytes, err := MarshalValue(vs[k])
		if err != nil {
			return nil, fmt.Errorf("marshal value for key %q: %w", k, err)
		}
		buf.Write(valBytes)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler for Values.
func (vs *Values) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*vs = make(Values, len(raw))
	for k, r := range raw {
		v, err := UnmarshalValue(r)
		if err != nil {
			return fmt.Errorf("values key %q: %w", k, err)
		}
		(*vs)[k] = v
	}
	return nil
}
