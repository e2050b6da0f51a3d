package model_test

import (
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/roach88/classmodel/internal/backend/index"
	"github.com/roach88/classmodel/internal/backend/reflective"
	"github.com/roach88/classmodel/internal/ir"
	"github.com/roach88/classmodel/internal/model"
	"github.com/roach88/classmodel/internal/modelerr"
	"github.com/roach88/classmodel/internal/testutil/demo"
	"github.com/roach88/classmodel/internal/values"
)

func TestResolveClassIdempotent(t *testing.T) {
	for name, b := range demoBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := newContext(t, b, nil)
			first, err := ctx.ResolveClass("demo.Person")
			require.NoError(t, err)
			second, err := ctx.ResolveClass("demo.Person")
			require.NoError(t, err)
			assert.Same(t, first, second)
		})
	}
}

func TestBackendEquivalence(t *testing.T) {
	backends := demoBackends(t)
	want := resolveAll(t, newContext(t, backends[reflective.BackendName], nil))

	for name, b := range backends {
		if name == reflective.BackendName {
			continue
		}
		t.Run(name, func(t *testing.T) {
			got := resolveAll(t, newContext(t, b, nil))
			for _, class := range demo.Names {
				if diff := cmp.Diff(want[class], got[class]); diff != "" {
					t.Errorf("%s differs from reflective (-want +got):\n%s", class, diff)
				}
			}
		})
	}
}

func TestDefaultBackendIsReflective(t *testing.T) {
	ctx, err := model.NewContext(demo.Units(), model.Options{})
	require.NoError(t, err)
	assert.Equal(t, reflective.BackendName, ctx.Backend().Name())

	ctx, err = model.NewContext(demo.Units(), model.Options{
		Properties: map[string]any{model.PropertyBackend: "reflective"},
	})
	require.NoError(t, err)
	assert.Equal(t, reflective.BackendName, ctx.Backend().Name())
}

func TestContextRejectsBadProperties(t *testing.T) {
	tests := []struct {
		name  string
		props map[string]any
	}{
		{"unknown backend name", map[string]any{model.PropertyBackend: "index"}},
		{"backend of wrong type", map[string]any{model.PropertyBackend: 42}},
		{"unparsable tracking flag", map[string]any{model.PropertyTrackImplementors: "sometimes"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := model.NewContext(demo.Units(), model.Options{Properties: tt.props})
			assert.Error(t, err)
		})
	}

	_, err := model.NewContext(nil, model.Options{})
	assert.Error(t, err)
}

func TestFindClassNeverBuilds(t *testing.T) {
	counting := newCounting(reflective.New())
	ctx := newContext(t, counting, nil)

	_, ok := ctx.Classes().FindClass("demo.Person")
	assert.False(t, ok)
	assert.Zero(t, counting.total())

	resolved, err := ctx.ResolveClass("demo.Person")
	require.NoError(t, err)
	found, ok := ctx.Classes().FindClass("demo.Person")
	require.True(t, ok)
	assert.Same(t, resolved, found)
	assert.Equal(t, 1, counting.count("demo.Person"))
}

func TestUnknownClass(t *testing.T) {
	for name, b := range demoBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := newContext(t, b, nil)
			_, err := ctx.ResolveClass("demo.Missing")
			require.ErrorIs(t, err, modelerr.ErrUnknownClass)

			var me *modelerr.Error
			require.ErrorAs(t, err, &me)
			assert.Equal(t, "demo.Missing", me.Class)
		})
	}
}

func TestConcurrentFirstResolutionBuildsOnce(t *testing.T) {
	defer goleak.VerifyNone(t)

	counting := newCounting(reflective.New())
	ctx := newContext(t, counting, nil)

	const workers = 16
	results := make([]*model.ClassDetails, workers)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			c, err := ctx.ResolveClass("demo.Person")
			if err == nil {
				results[i] = c
			}
		}()
	}
	close(start)
	wg.Wait()

	for _, c := range results {
		require.NotNil(t, c)
		assert.Same(t, results[0], c)
	}
	assert.Equal(t, 1, counting.count("demo.Person"))
}

func TestResolutionCycleFails(t *testing.T) {
	ix, err := index.Compile([]byte(`
classes: "x.Self": {
	kind: "annotation"
	methods: [{name: "inner", returns: "x.Self", default: {type: "x.Self"}}]
}
`), "cycle.cue")
	require.NoError(t, err)

	ctx := newContext(t, index.New(ix), nil)
	_, err = ctx.ResolveClass("x.Self")
	require.ErrorIs(t, err, modelerr.ErrCycle)

	_, ok := ctx.Classes().FindClass("x.Self")
	assert.False(t, ok)
}

func TestDirectImplementors(t *testing.T) {
	ctx := newContext(t, nil, map[string]any{model.PropertyTrackImplementors: true})
	require.True(t, ctx.Classes().TracksImplementors())

	_, err := ctx.ResolveClass("demo.Person")
	require.NoError(t, err)

	assert.Equal(t, []string{"demo.Person"}, ctx.Classes().DirectImplementors("demo.Base"))
	assert.Equal(t, []string{"demo.Person"}, ctx.Classes().DirectImplementors("demo.Named"))
	assert.Empty(t, ctx.Classes().DirectImplementors("demo.Person"))
}

func TestDirectImplementorsDisabledByDefault(t *testing.T) {
	ctx := newContext(t, nil, nil)
	assert.False(t, ctx.Classes().TracksImplementors())

	_, err := ctx.ResolveClass("demo.Person")
	require.NoError(t, err)
	assert.Empty(t, ctx.Classes().DirectImplementors("demo.Base"))
}

func TestClassStructure(t *testing.T) {
	ctx := newContext(t, nil, nil)
	person, err := ctx.ResolveClass("demo.Person")
	require.NoError(t, err)

	assert.Equal(t, ir.OrdinaryClass, person.Kind())
	assert.Equal(t, ir.VisibilityPublic, person.Visibility())
	assert.Equal(t, "demo.Base", person.Super().Name)
	require.Len(t, person.Interfaces(), 1)
	assert.Equal(t, "demo.Named", person.Interfaces()[0].Name)

	var names []string
	for _, f := range person.Fields() {
		names = append(names, f.Name())
	}
	assert.Equal(t, []string{"id", "name", "other", "tags", "scores"}, names)
	assert.Equal(t, ir.VisibilityPackage, mustField(t, person, "id").Visibility())
	assert.Equal(t, "map<string, float64>", mustField(t, person, "scores").Type().String())

	rename, ok := person.Method("Rename")
	require.True(t, ok)
	assert.Equal(t, "error", rename.ReturnType().String())
	require.Len(t, rename.Parameters(), 2)
	assert.True(t, rename.HasDirectAnnotationUsage("demo.Transient"))
	assert.Same(t, person, rename.DeclaringClass())

	point, err := ctx.ResolveClass("demo.Point")
	require.NoError(t, err)
	assert.Equal(t, ir.RecordClass, point.Kind())
	assert.Contains(t, point.Modifiers(), ir.ModifierFinal)
	require.Len(t, point.RecordComponents(), 2)
	require.Len(t, point.Fields(), 2)
	assert.True(t, point.Fields()[0].HasModifier(ir.ModifierFinal))

	color, err := ctx.ResolveClass("demo.Color")
	require.NoError(t, err)
	assert.Equal(t, ir.EnumClass, color.Kind())
	assert.Equal(t, []string{"RED", "GREEN", "BLUE"}, color.EnumConstants())

	box, err := ctx.ResolveClass("demo.Box")
	require.NoError(t, err)
	require.Len(t, box.TypeParameters(), 1)
	assert.Equal(t, "T extends demo.Named", box.TypeParameters()[0].String())
	assert.Equal(t, ir.TypeVariableRef, mustField(t, box, "first").Type().Kind)
}

func TestSuperClassAndLoadType(t *testing.T) {
	ctx := newContext(t, nil, nil)
	person, err := ctx.ResolveClass("demo.Person")
	require.NoError(t, err)

	base, err := person.SuperClass()
	require.NoError(t, err)
	require.NotNil(t, base)
	assert.Equal(t, "demo.Base", base.Name())

	top, err := base.SuperClass()
	require.NoError(t, err)
	assert.Nil(t, top)

	rt, err := person.LoadType()
	require.NoError(t, err)
	assert.Equal(t, "Person", rt.Name())
}

func TestDynamicClass(t *testing.T) {
	ctx := newContext(t, nil, nil)
	id, err := ctx.Descriptors().NewUsage("demo.Id", nil)
	require.NoError(t, err)

	dyn, err := ctx.Classes().CreateDynamicClass("dyn.Thing", ir.OrdinaryClass, func(b *model.DynamicClass) {
		b.SetSuper(ir.ClassType("demo.Base")).
			AddField("key", ir.PrimitiveType("int64"), id).
			AddMethod("Touch", ir.Void, nil)
	})
	require.NoError(t, err)
	assert.True(t, dyn.IsDynamic())
	assert.True(t, mustField(t, dyn, "key").HasDirectAnnotationUsage("demo.Id"))

	again, err := ctx.ResolveClass("dyn.Thing")
	require.NoError(t, err)
	assert.Same(t, dyn, again)

	_, err = dyn.LoadType()
	require.ErrorIs(t, err, modelerr.ErrDynamicClass)

	_, err = ctx.Classes().CreateDynamicClass("dyn.Thing", ir.OrdinaryClass, nil)
	assert.Error(t, err)
}

func TestDynamicClassRejectsRepeatableUsage(t *testing.T) {
	ctx := newContext(t, nil, nil)
	tag, err := ctx.Descriptors().NewUsage("demo.Tag", map[string]any{"value": "x"})
	require.NoError(t, err)

	tests := []struct {
		name   string
		class  string
		define func(*model.DynamicClass)
		target string
	}{
		{"class", "dyn.Class", func(b *model.DynamicClass) { b.AddAnnotationUsage(tag) }, "dyn.Class"},
		{"field", "dyn.Field", func(b *model.DynamicClass) { b.AddField("label", ir.PrimitiveType("string"), tag) }, "dyn.Field#label"},
		{"method", "dyn.Method", func(b *model.DynamicClass) { b.AddMethod("Label", ir.PrimitiveType("string"), nil, tag) }, "dyn.Method#Label"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ctx.Classes().CreateDynamicClass(tt.class, ir.OrdinaryClass, tt.define)
			require.ErrorIs(t, err, modelerr.ErrRepeatableMisuse)
			assert.Contains(t, err.Error(), tt.target)
			assert.Contains(t, err.Error(), "demo.Tags")
		})
	}

	_, ok := ctx.Classes().FindClass("dyn.Class")
	assert.False(t, ok)

	tags, err := ctx.Descriptors().NewUsage("demo.Tags", map[string]any{
		"value": []any{values.MapUsage{Type: "demo.Tag", Values: map[string]any{"value": "x"}}},
	})
	require.NoError(t, err)
	dyn, err := ctx.Classes().CreateDynamicClass("dyn.Tagged", ir.OrdinaryClass, func(b *model.DynamicClass) {
		b.AddAnnotationUsage(tags).AddField("label", ir.PrimitiveType("string"), tags)
	})
	require.NoError(t, err)
	assert.True(t, dyn.HasDirectAnnotationUsage("demo.Tags"))
	assert.True(t, mustField(t, dyn, "label").HasDirectAnnotationUsage("demo.Tags"))
}

func TestIllegalCast(t *testing.T) {
	ctx := newContext(t, nil, nil)
	person, err := ctx.ResolveClass("demo.Person")
	require.NoError(t, err)

	_, err = model.AsField(person)
	require.ErrorIs(t, err, modelerr.ErrIllegalCast)

	c, err := model.AsClass(person)
	require.NoError(t, err)
	assert.Same(t, person, c)

	id := mustField(t, person, "id")
	_, err = model.AsMethod(id)
	require.ErrorIs(t, err, modelerr.ErrIllegalCast)
	_, err = model.AsRecordComponent(id)
	require.ErrorIs(t, err, modelerr.ErrIllegalCast)

	_, err = ctx.Descriptors().ResolveDescriptor("demo.Person")
	require.ErrorIs(t, err, modelerr.ErrIllegalCast)
}
