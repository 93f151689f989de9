package index

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docquery/docquery/internal/chunk"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOpenHandle_FreshDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "vector_db")

	h, err := OpenHandle(context.Background(), dir, 3, discardLogger())
	require.NoError(t, err)
	defer h.Close()

	assert.Equal(t, 0, h.Vectors.Count())
	count, err := h.Catalog.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestOpenHandle_Roundtrip(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "vector_db")

	h, err := OpenHandle(ctx, dir, 3, discardLogger())
	require.NoError(t, err)

	ch := chunk.New("doc.txt", 0, "hybrid retrieval fuses two ranked lists")
	require.NoError(t, h.Vectors.Add(ctx, []string{ch.Fingerprint}, [][]float32{{1, 0, 0}}))
	require.NoError(t, h.Catalog.Add(ctx, []chunk.Chunk{ch}))
	require.NoError(t, h.SaveVectors())
	h.Close()

	reopened, err := OpenHandle(ctx, dir, 3, discardLogger())
	require.NoError(t, err)
	defer reopened.Close()

	assert.Equal(t, 1, reopened.Vectors.Count())
	assert.True(t, reopened.Vectors.Contains(ch.Fingerprint))

	// The lexical index is rebuilt from the catalog on open.
	hits, err := reopened.Lexical.Search(ctx, "retrieval", 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, ch.Fingerprint, hits[0].ID)
}

func TestOpenHandle_CorruptVectorsEvictsDirectory(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "vector_db")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	// Garbage vector file with no metadata sidecar fails to load.
	require.NoError(t, os.WriteFile(filepath.Join(dir, vectorsFile), []byte("not an index"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "files.txt"), []byte("doc.txt\n"), 0o644))

	h, err := OpenHandle(ctx, dir, 3, discardLogger())
	require.NoError(t, err)
	defer h.Close()

	// Eviction removed the manifest alongside the corrupt index, so the
	// next sync sees every source as new.
	_, statErr := os.Stat(filepath.Join(dir, "files.txt"))
	assert.True(t, os.IsNotExist(statErr))
	assert.Equal(t, 0, h.Vectors.Count())
}

func TestHandleCache_ReusesAndInvalidates(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()

	dimsCalls := 0
	cache, err := NewHandleCache(4,
		func(ns string) string { return filepath.Join(base, ns, "vector_db") },
		func(context.Context) (int, error) { dimsCalls++; return 3, nil },
		discardLogger())
	require.NoError(t, err)
	defer cache.Purge()

	h1, err := cache.Get(ctx, "alice")
	require.NoError(t, err)
	h2, err := cache.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Same(t, h1, h2)
	assert.Equal(t, 1, dimsCalls)

	cache.Invalidate("alice")
	h3, err := cache.Get(ctx, "alice")
	require.NoError(t, err)
	assert.NotSame(t, h1, h3)
}

func TestHandleCache_DimsFromPersistedStore(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	dir := filepath.Join(base, "alice", "vector_db")

	h, err := OpenHandle(ctx, dir, 5, discardLogger())
	require.NoError(t, err)
	require.NoError(t, h.Vectors.Add(ctx, []string{"fp"}, [][]float32{{1, 0, 0, 0, 0}}))
	require.NoError(t, h.SaveVectors())
	h.Close()

	cache, err := NewHandleCache(4,
		func(ns string) string { return filepath.Join(base, ns, "vector_db") },
		func(context.Context) (int, error) {
			t.Fatal("dims callback should not run for a persisted store")
			return 0, nil
		},
		discardLogger())
	require.NoError(t, err)
	defer cache.Purge()

	got, err := cache.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Vectors.Count())
}
