package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/classmodel/internal/ir"
	"github.com/roach88/classmodel/internal/model"
	"github.com/roach88/classmodel/internal/testutil"
	"github.com/roach88/classmodel/internal/testutil/demo"
)

func TestSave_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	form := createTestForm(t, "demo.Person")

	first, inserted, err := s.Save(ctx, "baseline", form)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, "00000000-0000-0000-0000-000000000001", first.ID)
	assert.Equal(t, "baseline", first.Label)
	assert.Equal(t, ir.FormatVersion, first.FormatVersion)
	assert.Equal(t, len(form.Classes), first.Classes)
	assert.Equal(t, len(form.Descriptors), first.Descriptors)
	assert.True(t, first.CreatedAt.Equal(testutil.Epoch))

	fp, err := form.Fingerprint()
	require.NoError(t, err)
	assert.Equal(t, fp, first.Fingerprint)

	second, inserted, err := s.Save(ctx, "relabelled", createTestForm(t, "demo.Person"))
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, first, second)
}

func TestSave_NilForm(t *testing.T) {
	s := createTestStore(t)
	_, _, err := s.Save(context.Background(), "x", nil)
	require.Error(t, err)
}

func TestLoad_ByIDAndFingerprint(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	form := createTestForm(t, "demo.Person", "demo.Point")

	snap, _, err := s.Save(ctx, "baseline", form)
	require.NoError(t, err)

	want, err := form.Fingerprint()
	require.NoError(t, err)

	for _, ref := range []string{snap.ID, snap.Fingerprint} {
		loaded, meta, err := s.Load(ctx, ref)
		require.NoError(t, err, ref)
		assert.Equal(t, snap, meta)
		got, err := loaded.Fingerprint()
		require.NoError(t, err)
		assert.Equal(t, want, got)
		assert.Equal(t, form.ClassNames(), loaded.ClassNames())
	}
}

func TestLoad_RestoresContext(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	snap, _, err := s.Save(ctx, "baseline", createTestForm(t, "demo.Person"))
	require.NoError(t, err)

	form, _, err := s.Load(ctx, snap.ID)
	require.NoError(t, err)
	restored, err := model.FromStorableForm(form, demo.Units(), model.Options{})
	require.NoError(t, err)

	person, err := restored.ResolveClass("demo.Person")
	require.NoError(t, err)
	assert.Equal(t, "demo.Person", person.Name())
}

func TestLoad_NotFound(t *testing.T) {
	s := createTestStore(t)
	_, _, err := s.Load(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestList(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	snaps, err := s.List(ctx)
	require.NoError(t, err)
	assert.NotNil(t, snaps)
	assert.Empty(t, snaps)

	a, _, err := s.Save(ctx, "a", createTestForm(t, "demo.Point"))
	require.NoError(t, err)
	b, _, err := s.Save(ctx, "b", createTestForm(t, "demo.Person"))
	require.NoError(t, err)

	snaps, err = s.List(ctx)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, a.ID, snaps[0].ID)
	assert.Equal(t, b.ID, snaps[1].ID)
	assert.Less(t, snaps[0].Seq, snaps[1].Seq)
	assert.True(t, snaps[1].CreatedAt.Equal(testutil.Epoch.Add(time.Second)))
}

func TestLatest(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, _, err := s.Save(ctx, "nightly", createTestForm(t, "demo.Point"))
	require.NoError(t, err)
	_, _, err = s.Save(ctx, "release", createTestForm(t, "demo.Box"))
	require.NoError(t, err)
	newest, _, err := s.Save(ctx, "nightly", createTestForm(t, "demo.Person"))
	require.NoError(t, err)

	got, err := s.Latest(ctx, "nightly")
	require.NoError(t, err)
	assert.Equal(t, newest.ID, got.ID)

	_, err = s.Latest(ctx, "weekly")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestWithClassAndHashes(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	point, _, err := s.Save(ctx, "point", createTestForm(t, "demo.Point"))
	require.NoError(t, err)
	person, _, err := s.Save(ctx, "person", createTestForm(t, "demo.Person"))
	require.NoError(t, err)

	snaps, err := s.WithClass(ctx, "demo.Person")
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, person.ID, snaps[0].ID)

	snaps, err = s.WithClass(ctx, "demo.Nowhere")
	require.NoError(t, err)
	assert.Empty(t, snaps)

	form := createTestForm(t, "demo.Point")
	hashes, err := s.ClassHashes(ctx, point.ID)
	require.NoError(t, err)
	require.Len(t, hashes, len(form.Classes))
	for _, rec := range form.Classes {
		want, err := ir.ClassFingerprint(rec)
		require.NoError(t, err)
		assert.Equal(t, want, hashes[rec.Name], rec.Name)
	}
}

func TestDelete(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	snap, _, err := s.Save(ctx, "doomed", createTestForm(t, "demo.Person"))
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, snap.ID))

	hashes, err := s.ClassHashes(ctx, snap.ID)
	require.NoError(t, err)
	assert.Empty(t, hashes)

	_, _, err = s.Load(ctx, snap.ID)
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, s.Delete(ctx, snap.ID), ErrNotFound)
}
