package shape

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/classmodel/internal/ir"
)

// recorder names the case Switch picked.
type recorder struct{}

func (recorder) Void(*ir.TypeRef) string            { return "void" }
func (recorder) Primitive(*ir.TypeRef) string       { return "primitive" }
func (recorder) Array(*ir.TypeRef) string           { return "array" }
func (recorder) Class(*ir.TypeRef) string           { return "class" }
func (recorder) Parameterized(*ir.TypeRef) string   { return "parameterized" }
func (recorder) Wildcard(*ir.TypeRef) string        { return "wildcard" }
func (recorder) TypeVariable(*ir.TypeRef) string    { return "type_variable" }
func (recorder) TypeVariableRef(*ir.TypeRef) string { return "type_variable_ref" }
func (recorder) Default(*ir.TypeRef) string         { return "default" }

func TestSwitchPicksExactlyOneCase(t *testing.T) {
	tests := []struct {
		name string
		ref  *ir.TypeRef
		want string
	}{
		{"void singleton", ir.Void, "void"},
		{"void copy", &ir.TypeRef{Kind: ir.TypeVoid, Name: "void"}, "void"},
		{"primitive", ir.PrimitiveType("int32"), "primitive"},
		{"class array", ir.ArrayOf(ir.ClassType("demo.Person")), "array"},
		{"generic array", ir.ArrayOf(ir.Parameterized("demo.Box", ir.TypeVarRef("T"))), "array"},
		{"type variable array", ir.ArrayOf(ir.TypeVarRef("T")), "array"},
		{"class", ir.ClassType("demo.Person"), "class"},
		{"parameterized", ir.Parameterized("map", ir.PrimitiveType("string"), ir.PrimitiveType("int64")), "parameterized"},
		{"wildcard", ir.WildcardType(nil, false), "wildcard"},
		{"type variable", ir.TypeVar("T"), "type_variable"},
		{"type variable ref", ir.TypeVarRef("T"), "type_variable_ref"},
		{"other", ir.OtherType("func(int) error"), "default"},
		{"nil", nil, "default"},
		{"malformed array", &ir.TypeRef{Kind: ir.TypeArray}, "default"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Switch[string](tt.ref, recorder{}))
		})
	}
}

func TestCasesFallBackToDefault(t *testing.T) {
	h := Cases[int]{
		OnPrimitive: func(*ir.TypeRef) int { return 1 },
		OnDefault:   func(*ir.TypeRef) int { return -1 },
	}

	assert.Equal(t, 1, Switch[int](ir.PrimitiveType("bool"), h))
	assert.Equal(t, -1, Switch[int](ir.ClassType("demo.Person"), h))
	assert.Equal(t, -1, Switch[int](ir.Void, h))
}

func TestIsGenericArray(t *testing.T) {
	assert.True(t, IsGenericArray(ir.MustParseTypeRef("demo.Box<string>[]")))
	assert.True(t, IsGenericArray(ir.ArrayOf(ir.ArrayOf(ir.TypeVarRef("T")))))
	assert.False(t, IsGenericArray(ir.MustParseTypeRef("demo.Person[]")))
	assert.False(t, IsGenericArray(ir.ClassType("demo.Person")))
}

func TestErasure(t *testing.T) {
	assert.Equal(t, "demo.Box", Erasure(ir.MustParseTypeRef("demo.Box<string>")))
	assert.Equal(t, "demo.Box[]", Erasure(ir.MustParseTypeRef("demo.Box<string>[]")))
	assert.Equal(t, "int64", Erasure(ir.PrimitiveType("int64")))
	assert.Equal(t, "void", Erasure(ir.Void))
	assert.Equal(t, "demo.Named", Erasure(ir.TypeVar("T", ir.ClassType("demo.Named"))))
	assert.Equal(t, ir.AnyName, Erasure(ir.TypeVar("T")))
	assert.Equal(t, "demo.Named", Erasure(ir.WildcardType(ir.ClassType("demo.Named"), false)))
	assert.Equal(t, ir.AnyName, Erasure(ir.WildcardType(ir.ClassType("demo.Named"), true)))
}

func TestReferencedClasses(t *testing.T) {
	ref := ir.MustParseTypeRef("map<demo.Key, demo.Box<demo.Person>[]>")
	assert.Equal(t, []string{"map", "demo.Key", "demo.Box", "demo.Person"}, ReferencedClasses(ref))
}
