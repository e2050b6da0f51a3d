package index_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/roach88/classmodel/internal/backend"
	"github.com/roach88/classmodel/internal/backend/index"
	"github.com/roach88/classmodel/internal/backend/reflective"
	"github.com/roach88/classmodel/internal/ir"
	"github.com/roach88/classmodel/internal/model"
	"github.com/roach88/classmodel/internal/testutil/demo"
)

func compileDemo(t *testing.T) *index.Index {
	t.Helper()
	ix, err := index.Compile([]byte(demo.IndexSource), "demo.cue")
	require.NoError(t, err)
	return ix
}

func TestCompileNames(t *testing.T) {
	ix := compileDemo(t)

	names := ix.Names()
	assert.Len(t, names, len(demo.Names))
	assert.IsIncreasing(t, names)
	assert.True(t, ix.Has("demo.Person"))
	assert.False(t, ix.Has("demo.Missing"))
	assert.Empty(t, ix.Validate())
}

func TestCompileEmptyDocument(t *testing.T) {
	ix, err := index.Compile([]byte("\n"), "empty.cue")
	require.NoError(t, err)
	assert.Empty(t, ix.Names())
}

func TestCompileErrorHasPosition(t *testing.T) {
	_, err := index.Compile([]byte("classes: {\n\t\"x.A\": kind: \n"), "broken.cue")
	require.Error(t, err)

	var ce *index.CompileError
	require.True(t, errors.As(err, &ce), "want CompileError, got %T", err)
	assert.True(t, ce.Pos.IsValid())
	assert.Equal(t, "broken.cue", ce.Pos.Filename())
}

func TestCompileRejectsSchemaViolation(t *testing.T) {
	_, err := index.Compile([]byte(`classes: "x.A": kind: "struct"`), "kind.cue")
	assert.Error(t, err)

	_, err = index.Compile([]byte(`classes: "x.A": fields: [{name: "a", type: "int", modifiers: ["sealed"]}]`), "mod.cue")
	assert.Error(t, err)
}

func TestLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "demo.cue"), []byte("package demo\n"+demo.IndexSource), 0o644))

	ix, err := index.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, compileDemo(t).Names(), ix.Names())

	_, err = index.Load(filepath.Join(dir, "missing"))
	assert.Error(t, err)
	_, err = index.Load(filepath.Join(dir, "demo.cue"))
	assert.ErrorContains(t, err, "not a directory")
}

func TestUnitDecode(t *testing.T) {
	ix := compileDemo(t)

	u, err := ix.Unit("demo.Person")
	require.NoError(t, err)
	assert.Equal(t, "class", u.Kind)
	assert.Equal(t, "demo.Base", u.Super)
	require.Len(t, u.Fields, 5)
	assert.Equal(t, "map<string, float64>", u.Fields[4].Type)
	require.Len(t, u.Annotations, 3)
	assert.Equal(t, "demo.Index", u.Annotations[2].Type)

	_, err = ix.Unit("demo.Missing")
	assert.ErrorIs(t, err, backend.ErrClassNotFound)
}

func TestBuildClassNotFound(t *testing.T) {
	b := index.New(compileDemo(t))
	assert.Equal(t, index.BackendName, b.Name())

	ctx, err := model.NewContext(demo.Units(), model.Options{
		Properties: map[string]any{model.PropertyBackend: b},
		Logger:     zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	_, err = ctx.ResolveClass("other.Thing")
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		class string
		code  string
	}{
		{
			name:  "duplicate field",
			src:   `classes: "x.A": fields: [{name: "a", type: "int"}, {name: "a", type: "string"}]`,
			class: "x.A",
			code:  index.ErrDuplicateMember,
		},
		{
			name:  "default on a field",
			src:   `classes: "x.A": fields: [{name: "a", type: "int", default: 1}]`,
			class: "x.A",
			code:  index.ErrMisplacedDefault,
		},
		{
			name:  "constants on a class",
			src:   `classes: "x.A": enumConstants: ["ONE"]`,
			class: "x.A",
			code:  index.ErrMisplacedConstants,
		},
		{
			name:  "components on a class",
			src:   `classes: "x.A": recordComponents: [{name: "a", type: "int"}]`,
			class: "x.A",
			code:  index.ErrMisplacedComponent,
		},
		{
			name:  "field without type",
			src:   `classes: "x.A": fields: [{name: "a"}]`,
			class: "x.A",
			code:  index.ErrMissingType,
		},
		{
			name:  "unparsable type",
			src:   `classes: "x.A": fields: [{name: "a", type: "map<string"}]`,
			class: "x.A",
			code:  index.ErrInvalidType,
		},
		{
			name: "supertype cycle",
			src: `classes: {
	"x.A": super: "x.B"
	"x.B": super: "x.A"
}`,
			class: "x.A",
			code:  index.ErrSupertypeCycle,
		},
		{
			name:  "self supertype",
			src:   `classes: "x.A": interfaces: ["x.A"]`,
			class: "x.A",
			code:  index.ErrSupertypeCycle,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ix, err := index.Compile([]byte(tt.src), "validate.cue")
			require.NoError(t, err)

			errs := ix.Validate()
			require.NotEmpty(t, errs)
			var codes []string
			for _, e := range errs {
				assert.Equal(t, tt.class, e.Class)
				codes = append(codes, e.Code)
			}
			assert.Contains(t, codes, tt.code)
		})
	}
}

func TestValidateAllowsOverloads(t *testing.T) {
	ix, err := index.Compile([]byte(`classes: "x.A": methods: [
	{name: "run", returns: "int"},
	{name: "run", returns: "int", parameters: ["string"]},
]`), "overload.cue")
	require.NoError(t, err)
	assert.Empty(t, ix.Validate())
}

func TestValidationErrorFormat(t *testing.T) {
	e := index.ValidationError{Class: "x.A", Field: "fields[1]", Message: `duplicate member "a"`, Code: index.ErrDuplicateMember}
	assert.Equal(t, `[E102] x.A: fields[1]: duplicate member "a"`, e.Error())
}

// Records exported from the reflective backend compile back into an
// index that yields the same records.
func TestExportRoundTrip(t *testing.T) {
	source, err := model.NewContext(demo.Units(), model.Options{
		Properties: map[string]any{model.PropertyBackend: reflective.New()},
	})
	require.NoError(t, err)
	var recs []ir.ClassRecord
	for _, name := range demo.Names {
		c, err := source.ResolveClass(name)
		require.NoError(t, err)
		recs = append(recs, c.Record())
	}

	out, err := index.Export(recs)
	require.NoError(t, err)
	ix, err := index.Compile(out, "export.cue")
	require.NoError(t, err, "exported document:\n%s", out)
	assert.Empty(t, ix.Validate())

	target, err := model.NewContext(demo.Units(), model.Options{
		Properties: map[string]any{model.PropertyBackend: index.New(ix)},
	})
	require.NoError(t, err)
	for _, want := range recs {
		got, err := target.ResolveClass(want.Name)
		require.NoError(t, err)
		if diff := cmp.Diff(want, got.Record()); diff != "" {
			t.Errorf("%s changed across export (-want +got):\n%s", want.Name, diff)
		}
	}
}
