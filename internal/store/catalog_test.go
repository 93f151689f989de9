package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docquery/docquery/internal/chunk"
)

func newTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := OpenCatalog(filepath.Join(t.TempDir(), "store", "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestCatalog_AddAndAll(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	chunks := []chunk.Chunk{
		chunk.New("b.txt", 0, "beta chunk"),
		chunk.New("a.txt", 0, "alpha chunk"),
		chunk.New("a.txt", 1, "alpha second"),
	}
	require.NoError(t, c.Add(ctx, chunks))

	all, err := c.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	// Ordered by source then sequence.
	assert.Equal(t, "a.txt", all[0].SourceID)
	assert.Equal(t, 0, all[0].Seq)
	assert.Equal(t, "a.txt", all[1].SourceID)
	assert.Equal(t, 1, all[1].Seq)
	assert.Equal(t, "b.txt", all[2].SourceID)
}

func TestCatalog_DuplicateFingerprintsIgnored(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	first := chunk.New("a.txt", 0, "same text")
	second := chunk.New("b.txt", 0, "same text")
	require.NoError(t, c.Add(ctx, []chunk.Chunk{first}))
	require.NoError(t, c.Add(ctx, []chunk.Chunk{second}))

	count, err := c.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// First writer keeps the row.
	got, err := c.Get(ctx, []string{first.Fingerprint})
	require.NoError(t, err)
	assert.Equal(t, "a.txt", got[first.Fingerprint].SourceID)
}

func TestCatalog_DeleteSourceReturnsFingerprints(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	a0 := chunk.New("a.txt", 0, "a zero")
	a1 := chunk.New("a.txt", 1, "a one")
	b0 := chunk.New("b.txt", 0, "b zero")
	require.NoError(t, c.Add(ctx, []chunk.Chunk{a0, a1, b0}))

	removed, err := c.DeleteSource(ctx, "a.txt")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{a0.Fingerprint, a1.Fingerprint}, removed)

	sources, err := c.Sources(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"b.txt": 1}, sources)
}

func TestCatalog_GetSkipsMissing(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	a := chunk.New("a.txt", 0, "present")
	require.NoError(t, c.Add(ctx, []chunk.Chunk{a}))

	got, err := c.Get(ctx, []string{a.Fingerprint, "missing-fingerprint"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "present", got[a.Fingerprint].Text)
}

func TestCatalog_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.db")
	ctx := context.Background()

	c, err := OpenCatalog(path)
	require.NoError(t, err)
	require.NoError(t, c.Add(ctx, []chunk.Chunk{chunk.New("a.txt", 0, "survives reopen")}))
	require.NoError(t, c.Close())

	c2, err := OpenCatalog(path)
	require.NoError(t, err)
	defer func() { _ = c2.Close() }()

	count, err := c2.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
