package model_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/roach88/classmodel/internal/backend"
	"github.com/roach88/classmodel/internal/backend/index"
	"github.com/roach88/classmodel/internal/backend/pool"
	"github.com/roach88/classmodel/internal/backend/reflective"
	"github.com/roach88/classmodel/internal/ir"
	"github.com/roach88/classmodel/internal/model"
	"github.com/roach88/classmodel/internal/testutil/demo"
)

// countingBackend records every build request it forwards.
type countingBackend struct {
	backend.Backend

	mu    sync.Mutex
	calls map[string]int
}

func newCounting(b backend.Backend) *countingBackend {
	return &countingBackend{Backend: b, calls: make(map[string]int)}
}

func (c *countingBackend) BuildClass(name string, bc backend.BuildContext) (*ir.ClassRecord, error) {
	c.mu.Lock()
	c.calls[name]++
	c.mu.Unlock()
	return c.Backend.BuildClass(name, bc)
}

func (c *countingBackend) count(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[name]
}

func (c *countingBackend) total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, v := range c.calls {
		n += v
	}
	return n
}

// failingBackend fails the test when asked to build anything.
type failingBackend struct{ t *testing.T }

func (failingBackend) Name() string { return "failing" }

func (f failingBackend) BuildClass(name string, _ backend.BuildContext) (*ir.ClassRecord, error) {
	f.t.Errorf("backend asked to build %s", name)
	return nil, backend.NotFound(name)
}

// demoBackends returns one instance of every backend over the demo domain.
func demoBackends(t *testing.T) map[string]backend.Backend {
	t.Helper()
	ix, err := index.Compile([]byte(demo.IndexSource), "demo.cue")
	require.NoError(t, err)
	p, err := pool.New(0)
	require.NoError(t, err)
	return map[string]backend.Backend{
		reflective.BackendName: reflective.New(),
		index.BackendName:      index.New(ix),
		pool.BackendName:       p,
	}
}

func newContext(t *testing.T, b backend.Backend, props map[string]any) *model.Context {
	t.Helper()
	if props == nil {
		props = map[string]any{}
	}
	if b != nil {
		props[model.PropertyBackend] = b
	}
	ctx, err := model.NewContext(demo.Units(), model.Options{
		Properties: props,
		Logger:     zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	return ctx
}

func resolveAll(t *testing.T, ctx *model.Context) map[string]ir.ClassRecord {
	t.Helper()
	out := make(map[string]ir.ClassRecord, len(demo.Names))
	for _, name := range demo.Names {
		c, err := ctx.ResolveClass(name)
		require.NoError(t, err, name)
		out[name] = c.Record()
	}
	return out
}

func mustField(t *testing.T, c *model.ClassDetails, name string) *model.FieldDetails {
	t.Helper()
	f, ok := c.Field(name)
	require.True(t, ok, "field %s", name)
	return f
}
