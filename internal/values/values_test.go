package values

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/classmodel/internal/ir"
	"github.com/roach88/classmodel/internal/modelerr"
)

// fakeResolver serves a fixed set of classes and descriptors.
type fakeResolver struct {
	kinds       map[string]ir.ClassKind
	enums       map[string][]string
	descriptors map[string]*ir.DescriptorRecord
}

func (f *fakeResolver) ClassKind(name string) (ir.ClassKind, error) {
	if k, ok := f.kinds[name]; ok {
		return k, nil
	}
	return "", modelerr.UnknownClass(name, nil)
}

func (f *fakeResolver) EnumConstants(name string) ([]string, error) {
	if c, ok := f.enums[name]; ok {
		return c, nil
	}
	return nil, modelerr.UnknownClass(name, nil)
}

func (f *fakeResolver) Descriptor(name string) (*ir.DescriptorRecord, error) {
	if d, ok := f.descriptors[name]; ok {
		return d, nil
	}
	return nil, modelerr.UnknownClass(name, nil)
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{
		kinds: map[string]ir.ClassKind{
			"demo.Color":  ir.EnumClass,
			"demo.Column": ir.AnnotationClass,
			"demo.Tag":    ir.AnnotationClass,
			"demo.Person": ir.OrdinaryClass,
		},
		enums: map[string][]string{"demo.Color": {"RED", "GREEN"}},
		descriptors: map[string]*ir.DescriptorRecord{
			"demo.Column": {
				Name: "demo.Column",
				Attributes: []ir.AttributeRecord{
					{Name: "name", Kind: ir.KindString, Type: ir.PrimitiveType("string"), Default: ir.String("")},
					{Name: "length", Kind: ir.KindInt, Type: ir.PrimitiveType("int16"), Default: ir.Int(255)},
				},
			},
			"demo.Tag": {
				Name: "demo.Tag",
				Attributes: []ir.AttributeRecord{
					{Name: "value", Kind: ir.KindString, Type: ir.PrimitiveType("string")},
					{Name: "color", Kind: ir.KindEnum, Type: ir.ClassType("demo.Color"), Default: ir.EnumConst{Type: "demo.Color", Name: "RED"}},
					{Name: "columns", Kind: ir.KindArray, Type: ir.ArrayOf(ir.ClassType("demo.Column")), Default: ir.Array{}},
					{Name: "target", Kind: ir.KindClass, Type: ir.ClassType(ir.ClassReferenceName), Default: ir.ClassRef{Name: "demo.Person"}},
					{Name: "weight", Kind: ir.KindFloat, Type: ir.PrimitiveType("float64"), Default: ir.Float(1)},
				},
			},
		},
	}
}

func TestKindOf(t *testing.T) {
	r := newFakeResolver()
	tests := []struct {
		ref  string
		want ir.ValueKind
	}{
		{"string", ir.KindString},
		{"bool", ir.KindBool},
		{"uint8", ir.KindInt},
		{"int64", ir.KindInt},
		{"float32", ir.KindFloat},
		{"reflect.Type", ir.KindClass},
		{"demo.Color", ir.KindEnum},
		{"demo.Column", ir.KindAnnotation},
		{"demo.Column[]", ir.KindArray},
		{"string[]", ir.KindArray},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			got, err := KindOf(ir.MustParseTypeRef(tt.ref), r)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestKindOfRejectsUnsupported(t *testing.T) {
	r := newFakeResolver()
	for _, ref := range []string{"demo.Person", "string[][]", "map<string, string>", "uintptr[][]"} {
		_, err := KindOf(ir.MustParseTypeRef(ref), r)
		assert.Error(t, err, ref)
	}
	_, err := KindOf(ir.OtherType("func()"), r)
	assert.Error(t, err)

	_, err = KindOf(ir.ClassType("demo.Missing"), r)
	assert.True(t, errors.Is(err, modelerr.ErrUnknownClass))
}

func TestConvertIntRangeChecks(t *testing.T) {
	r := newFakeResolver()
	s := MapStrategies()
	attr := func(prim string) ir.AttributeRecord {
		return ir.AttributeRecord{Name: "n", Kind: ir.KindInt, Type: ir.PrimitiveType(prim)}
	}

	v, err := s.Convert(127, "demo.X", attr("int8"), r)
	require.NoError(t, err)
	assert.Equal(t, ir.Int(127), v)

	_, err = s.Convert(128, "demo.X", attr("int8"), r)
	assert.True(t, errors.Is(err, modelerr.ErrInvalidValue))

	_, err = s.Convert(-1, "demo.X", attr("uint16"), r)
	assert.True(t, errors.Is(err, modelerr.ErrInvalidValue))

	v, err = s.Convert(uint32(7), "demo.X", attr("int64"), r)
	require.NoError(t, err)
	assert.Equal(t, ir.Int(7), v)

	v, err = s.Convert(float64(12), "demo.X", attr("int32"), r)
	require.NoError(t, err)
	assert.Equal(t, ir.Int(12), v)

	_, err = s.Convert(1.5, "demo.X", attr("int32"), r)
	assert.Error(t, err)

	_, err = s.Convert("12", "demo.X", attr("int32"), r)
	assert.Error(t, err)
}

func TestConvertFloatInt64Boundaries(t *testing.T) {
	r := newFakeResolver()
	s := MapStrategies()
	attr := ir.AttributeRecord{Name: "n", Kind: ir.KindInt, Type: ir.PrimitiveType("int64")}

	// 2^63 rounds to the same float64 as MaxInt64 but does not fit.
	_, err := s.Convert(float64(1<<63), "demo.X", attr, r)
	assert.ErrorIs(t, err, modelerr.ErrInvalidValue)

	_, err = s.Convert(math.Inf(1), "demo.X", attr, r)
	assert.ErrorIs(t, err, modelerr.ErrInvalidValue)

	_, err = s.Convert(math.Nextafter(math.MinInt64, math.Inf(-1)), "demo.X", attr, r)
	assert.ErrorIs(t, err, modelerr.ErrInvalidValue)

	v, err := s.Convert(float64(math.MinInt64), "demo.X", attr, r)
	require.NoError(t, err)
	assert.Equal(t, ir.Int(math.MinInt64), v)

	v, err = s.Convert(float64(1<<62), "demo.X", attr, r)
	require.NoError(t, err)
	assert.Equal(t, ir.Int(1<<62), v)
}

type handle string

func (h handle) TypeName() string { return string(h) }

func TestConvertScalars(t *testing.T) {
	r := newFakeResolver()
	s := MapStrategies()

	color := ir.AttributeRecord{Name: "color", Kind: ir.KindEnum, Type: ir.ClassType("demo.Color")}
	v, err := s.Convert("demo.Color.GREEN", "demo.Tag", color, r)
	require.NoError(t, err)
	assert.Equal(t, ir.EnumConst{Type: "demo.Color", Name: "GREEN"}, v)

	_, err = s.Convert("BLUE", "demo.Tag", color, r)
	assert.True(t, errors.Is(err, modelerr.ErrInvalidValue))

	target := ir.AttributeRecord{Name: "target", Kind: ir.KindClass, Type: ir.ClassType(ir.ClassReferenceName)}
	v, err = s.Convert(handle("demo.Person"), "demo.Tag", target, r)
	require.NoError(t, err)
	assert.Equal(t, ir.ClassRef{Name: "demo.Person"}, v)

	weight := ir.AttributeRecord{Name: "weight", Kind: ir.KindFloat, Type: ir.PrimitiveType("float64")}
	v, err = s.Convert(3, "demo.Tag", weight, r)
	require.NoError(t, err)
	assert.Equal(t, ir.Float(3), v)

	str := ir.AttributeRecord{Name: "value", Kind: ir.KindString, Type: ir.PrimitiveType("string")}
	_, err = s.Convert(3, "demo.Tag", str, r)
	assert.True(t, errors.Is(err, modelerr.ErrInvalidValue))
}

func TestUsageExplicitValuesOnly(t *testing.T) {
	r := newFakeResolver()
	s := MapStrategies()

	rec, err := s.Usage(MapUsage{Type: "demo.Tag", Values: map[string]any{
		"value": "x",
		"columns": []any{
			MapUsage{Type: "demo.Column", Values: map[string]any{"length": 40}},
		},
	}}, r)
	require.NoError(t, err)

	assert.Equal(t, "demo.Tag", rec.Type)
	assert.Len(t, rec.Values, 2, "defaults are never materialised into the record")
	assert.Equal(t, ir.String("x"), rec.Values["value"])
	assert.True(t, ir.Equal(
		ir.Array{ir.Nested{Type: "demo.Column", Values: ir.Values{"length": ir.Int(40)}}},
		rec.Values["columns"],
	))
}

func TestUsageSingleValuePromotedToArray(t *testing.T) {
	r := newFakeResolver()
	rec, err := MapStrategies().Usage(MapUsage{Type: "demo.Tag", Values: map[string]any{
		"value":   "x",
		"columns": MapUsage{Type: "demo.Column"},
	}}, r)
	require.NoError(t, err)
	assert.True(t, ir.Equal(ir.Array{ir.Nested{Type: "demo.Column"}}, rec.Values["columns"]))
}

func TestUsageFailures(t *testing.T) {
	r := newFakeResolver()
	s := MapStrategies()

	_, err := s.Usage(MapUsage{Type: "demo.Tag", Values: map[string]any{"value": "x", "bogus": 1}}, r)
	assert.True(t, errors.Is(err, modelerr.ErrUnknownAttribute))

	_, err = s.Usage(MapUsage{Type: "demo.Tag"}, r)
	assert.True(t, errors.Is(err, modelerr.ErrMissingAttribute))

	_, err = s.Usage(MapUsage{Type: "demo.Nope"}, r)
	assert.True(t, errors.Is(err, modelerr.ErrUnknownClass))

	_, err = s.Usage(MapUsage{Type: "demo.Tag", Values: map[string]any{
		"value":   "x",
		"columns": MapUsage{Type: "demo.Tag", Values: map[string]any{"value": "y"}},
	}}, r)
	assert.True(t, errors.Is(err, modelerr.ErrInvalidValue))
}

func TestConverterSkippedForOmittedAttribute(t *testing.T) {
	r := newFakeResolver()
	calls := 0
	counting := ConverterFunc(func(raw any, attr ir.AttributeRecord, cx *Context) (ir.Value, error) {
		calls++
		return ir.String(raw.(string)), nil
	})
	s := MapStrategies()
	st := s[ir.KindString]
	st.Converter = counting
	s[ir.KindString] = st

	_, err := s.Usage(MapUsage{Type: "demo.Column", Values: map[string]any{"length": 10}}, r)
	require.NoError(t, err)
	assert.Zero(t, calls, "converter must not run for an omitted attribute")
}

func TestNewStrategiesRequiresEveryKind(t *testing.T) {
	_, err := NewStrategies(map[ir.ValueKind]Extractor{ir.KindString: MapExtractor})
	assert.Error(t, err)

	all := map[ir.ValueKind]Extractor{}
	for k := range ir.ValidValueKinds {
		all[k] = MapExtractor
	}
	s, err := NewStrategies(all)
	require.NoError(t, err)
	assert.Len(t, s, len(ir.ValidValueKinds))
}
