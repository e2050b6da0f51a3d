package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueSealed(t *testing.T) {
	var _ Value = String("s")
	var _ Value = Bool(true)
	var _ Value = Int(1)
	var _ Value = Float(1.5)
	var _ Value = EnumConst{Type: "demo.Color", Name: "RED"}
	var _ Value = ClassRef{Name: "demo.Person"}
	var _ Value = Nested{Type: "demo.Column"}
	var _ Value = Array{Int(1)}
}

func TestValueRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		value Value
	}{
		{"string", String("people")},
		{"bool", Bool(false)},
		{"int", Int(-7)},
		{"float", Float(2.25)},
		{"enum", EnumConst{Type: "demo.Color", Name: "RED"}},
		{"class", ClassRef{Name: "demo.Person"}},
		{"nested", Nested{Type: "demo.Column", Values: Values{"length": Int(40)}}},
		{"nested empty", Nested{Type: "demo.Id", Values: Values{}}},
		{"array", Array{String("a"), String("b")}},
		{"array of nested", Array{Nested{Type: "demo.Tag", Values: Values{"value": String("x")}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := MarshalValue(tt.value)
			require.NoError(t, err)

			got, err := UnmarshalValue(data)
			require.NoError(t, err)
			assert.True(t, Equal(tt.value, got), "got %s want %s", Format(got), Format(tt.value))
			assert.Equal(t, tt.value.Kind(), got.Kind())
		})
	}
}

func TestUnmarshalValueErrors(t *testing.T) {
	_, err := UnmarshalValue([]byte(`{"kind":"mystery","value":1}`))
	assert.ErrorContains(t, err, "unknown value kind")

	_, err = UnmarshalValue([]byte(`{"kind":"int"}`))
	assert.ErrorContains(t, err, "has no value")

	_, err = UnmarshalValue([]byte(`{"kind":"int","value":"x"}`))
	assert.Error(t, err)
}

func TestValuesJSONSortedKeys(t *testing.T) {
	vs := Values{"zebra": Int(1), "alpha": Bool(true)}

	data, err := json.Marshal(vs)
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":{"kind":"bool","value":true},"zebra":{"kind":"int","value":1}}`, string(data))

	var back Values
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, EqualValues(vs, back))
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(nil, nil))
	assert.False(t, Equal(String("a"), nil))
	assert.False(t, Equal(Int(1), Float(1)))
	assert.False(t, Equal(Array{Int(1)}, Array{Int(1), Int(2)}))
	assert.True(t, Equal(
		Nested{Type: "demo.Column", Values: Values{"length": Int(40)}},
		Nested{Type: "demo.Column", Values: Values{"length": Int(40)}},
	))
	assert.False(t, Equal(
		Nested{Type: "demo.Column", Values: Values{"length": Int(40)}},
		Nested{Type: "demo.Column", Values: Values{"length": Int(41)}},
	))
}

func TestFormat(t *testing.T) {
	assert.Equal(t, `"x"`, Format(String("x")))
	assert.Equal(t, "demo.Color.RED", Format(EnumConst{Type: "demo.Color", Name: "RED"}))
	assert.Equal(t, "{1, 2}", Format(Array{Int(1), Int(2)}))
	assert.Equal(t, `@demo.Column(length=40, name="n")`,
		Format(Nested{Type: "demo.Column", Values: Values{"name": String("n"), "length": Int(40)}}))
	assert.Equal(t, "@demo.Id", Format(Nested{Type: "demo.Id"}))
}

func TestValuesSortedKeysRFC8785Order(t *testing.T) {
	vs := Values{"a": Int(1), "A": Int(2), "aa": Int(3), "AA": Int(4)}
	assert.Equal(t, []string{"A", "AA", "a", "aa"}, vs.SortedKeys())
}
