package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassRecordJSONRoundTrip(t *testing.T) {
	rec := ClassRecord{
		Name: "demo.Column",
		Kind: AnnotationClass,
		Methods: []MemberRecord{
			{Name: "name", Kind: MemberMethod, Type: PrimitiveType("string"), Default: String("")},
			{Name: "length", Kind: MemberMethod, Type: PrimitiveType("int32"), Default: Int(255)},
			{Name: "nullable", Kind: MemberMethod, Type: PrimitiveType("bool")},
		},
		Annotations: []UsageRecord{
			{Type: RepeatableAnnotation, Values: Values{"value": ClassRef{Name: "demo.Columns"}}},
		},
	}

	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var back ClassRecord
	require.NoError(t, json.Unmarshal(data, &back))

	require.Len(t, back.Methods, 3)
	assert.True(t, Equal(String(""), back.Methods[0].Default))
	assert.True(t, Equal(Int(255), back.Methods[1].Default))
	assert.Nil(t, back.Methods[2].Default)
	assert.True(t, rec.Methods[1].Type.Equal(back.Methods[1].Type))
	assert.True(t, EqualValues(rec.Annotations[0].Values, back.Annotations[0].Values))
}

func TestAttributeRecordJSONOmitsMissingDefault(t *testing.T) {
	data, err := json.Marshal(AttributeRecord{Name: "value", Kind: KindClass, Type: ClassType(ClassReferenceName)})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "default")

	var back AttributeRecord
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Nil(t, back.Default)
	assert.Equal(t, KindClass, back.Kind)
}

func TestMemberRecordHasModifier(t *testing.T) {
	m := MemberRecord{Name: "id", Modifiers: []Modifier{ModifierFinal}}
	assert.True(t, m.HasModifier(ModifierFinal))
	assert.False(t, m.HasModifier(ModifierStatic))
}

func TestBuiltinDescriptors(t *testing.T) {
	builtins := BuiltinDescriptors()
	require.Len(t, builtins, 2)
	assert.Equal(t, RepeatableAnnotation, builtins[0].Name)
	assert.Equal(t, KindClass, builtins[0].Attributes[0].Kind)
	assert.Equal(t, InheritedAnnotation, builtins[1].Name)
}
