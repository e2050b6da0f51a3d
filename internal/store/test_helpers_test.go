package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/roach88/classmodel/internal/model"
	"github.com/roach88/classmodel/internal/testutil"
	"github.com/roach88/classmodel/internal/testutil/demo"
)

// createTestStore opens a store in a temp dir with deterministic IDs and
// timestamps.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path,
		WithLogger(zaptest.NewLogger(t)),
		WithClock(testutil.NewStepClock(testutil.Epoch, time.Second).Now),
		WithIDs(testutil.NewSequentialIDs().Next),
	)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestForm resolves classes of the demo domain and captures them.
func createTestForm(t *testing.T, classes ...string) *model.StorableForm {
	t.Helper()
	ctx, err := model.NewContext(demo.Units(), model.Options{})
	require.NoError(t, err)
	for _, name := range classes {
		_, err := ctx.ResolveClass(name)
		require.NoError(t, err)
	}
	return ctx.ToStorableForm()
}
