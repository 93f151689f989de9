package index

import (
	"context"
	"crypto/sha256"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docquery/docquery/internal/chunk"
	"github.com/docquery/docquery/internal/config"
	"github.com/docquery/docquery/internal/extract"
)

// fakeEmbedder derives a deterministic unit vector from each text's
// hash. Setting fail makes every call error.
type fakeEmbedder struct {
	dims  int
	fail  bool
	calls int
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if f.fail {
		return nil, errors.New("embedding backend down")
	}
	f.calls++
	sum := sha256.Sum256([]byte(text))
	v := make([]float32, f.dims)
	for i := range v {
		v[i] = float32(sum[i]) + 1
	}
	return v, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := f.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int                { return f.dims }
func (f *fakeEmbedder) ModelName() string              { return "fake" }
func (f *fakeEmbedder) Available(context.Context) bool { return true }
func (f *fakeEmbedder) Close() error                   { return nil }

// stubPDF serves canned pages per file base name.
type stubPDF struct {
	pages map[string][]extract.PDFPage
}

func (p *stubPDF) Pages(_ context.Context, path string) ([]extract.PDFPage, error) {
	return p.pages[filepath.Base(path)], nil
}

func (p *stubPDF) Rasterize(context.Context, string, int) ([]byte, error) {
	return []byte("raster"), nil
}

type stubOCR struct{}

func (stubOCR) Recognize(context.Context, []byte, []string) (string, error) {
	return "recognized scan text", nil
}

type syncFixture struct {
	cfg      *config.Config
	syncer   *Syncer
	embedder *fakeEmbedder
	handles  *HandleCache
}

func newSyncFixture(t *testing.T) *syncFixture {
	return newSyncFixtureBackends(t, nil, nil)
}

func newSyncFixtureBackends(t *testing.T, pdf extract.PDFParser, ocr extract.OCREngine) *syncFixture {
	t.Helper()

	cfg := config.NewConfig()
	cfg.DataDir = t.TempDir()

	logger := discardLogger()
	embedder := &fakeEmbedder{dims: 4}

	handles, err := NewHandleCache(4, cfg.VectorDBDir,
		func(context.Context) (int, error) { return embedder.Dimensions(), nil },
		logger)
	require.NoError(t, err)
	t.Cleanup(handles.Purge)

	extractor := extract.NewExtractor(extract.Config{
		Workers:    2,
		OCREnabled: true,
	}, pdf, nil, nil, ocr, logger)
	splitter := chunk.NewSplitter(60, 0)

	return &syncFixture{
		cfg:      cfg,
		syncer:   NewSyncer(cfg, extractor, splitter, embedder, handles, logger),
		embedder: embedder,
		handles:  handles,
	}
}

func (fx *syncFixture) writeDoc(t *testing.T, namespace, name, content string) {
	t.Helper()
	dir := fx.cfg.DocsDir(namespace)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func (fx *syncFixture) writeCustomChunk(t *testing.T, namespace, name, content string) {
	t.Helper()
	dir := fx.cfg.CustomChunksDir(namespace)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestSync_IndexesNewSources(t *testing.T) {
	fx := newSyncFixture(t)
	ctx := context.Background()

	fx.writeDoc(t, "ns", "a.txt", "the first document talks about vector search")
	fx.writeDoc(t, "ns", "b.txt", "the second document talks about keyword matching")

	report, err := fx.syncer.Sync(ctx, "ns", nil)
	require.NoError(t, err)

	require.Len(t, report.Sources, 2)
	assert.Equal(t, 2, report.Indexed())
	assert.Positive(t, report.IndexedChunks)

	entries, err := NewManifest(fx.cfg.ManifestPath("ns")).Entries()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.txt", "b.txt"}, entries)

	handle, err := fx.handles.Get(ctx, "ns")
	require.NoError(t, err)
	count, err := handle.Catalog.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, report.IndexedChunks, count)
	assert.Equal(t, count, handle.Vectors.Count())

	// Chunk exports are written next to the index.
	exports, err := filepath.Glob(filepath.Join(fx.cfg.ChunksDir("ns"), "a_chunk_*.txt"))
	require.NoError(t, err)
	assert.NotEmpty(t, exports)
}

func TestSync_SecondPassIsNoOp(t *testing.T) {
	fx := newSyncFixture(t)
	ctx := context.Background()

	fx.writeDoc(t, "ns", "a.txt", "only document")
	_, err := fx.syncer.Sync(ctx, "ns", nil)
	require.NoError(t, err)

	callsAfterFirst := fx.embedder.calls

	report, err := fx.syncer.Sync(ctx, "ns", nil)
	require.NoError(t, err)
	assert.Empty(t, report.Sources)
	assert.Zero(t, report.IndexedChunks)
	assert.Equal(t, callsAfterFirst, fx.embedder.calls)
}

func TestSync_EmbedFailureLeavesSourceUnrecorded(t *testing.T) {
	fx := newSyncFixture(t)
	ctx := context.Background()

	fx.writeDoc(t, "ns", "a.txt", "text that never gets embedded")
	fx.embedder.fail = true

	report, err := fx.syncer.Sync(ctx, "ns", nil)
	require.NoError(t, err)
	require.Len(t, report.Sources, 1)
	assert.Equal(t, StatusSkipped, report.Sources[0].Status)
	assert.NotEmpty(t, report.Sources[0].Reason)

	// The manifest records the source only after its chunks are stored,
	// so the failed source is retried next pass.
	entries, err := NewManifest(fx.cfg.ManifestPath("ns")).Entries()
	require.NoError(t, err)
	assert.Empty(t, entries)

	handle, err := fx.handles.Get(ctx, "ns")
	require.NoError(t, err)
	count, err := handle.Catalog.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	fx.embedder.fail = false
	report, err = fx.syncer.Sync(ctx, "ns", nil)
	require.NoError(t, err)
	require.Len(t, report.Sources, 1)
	assert.Equal(t, StatusIndexed, report.Sources[0].Status)
}

func TestSync_UnsupportedFilesIgnored(t *testing.T) {
	fx := newSyncFixture(t)

	fx.writeDoc(t, "ns", "a.txt", "supported")
	fx.writeDoc(t, "ns", "image.png", "not a document")

	report, err := fx.syncer.Sync(context.Background(), "ns", nil)
	require.NoError(t, err)
	require.Len(t, report.Sources, 1)
	assert.Equal(t, "a.txt", report.Sources[0].ID)
}

func TestSync_CustomChunks(t *testing.T) {
	fx := newSyncFixture(t)
	ctx := context.Background()

	fx.writeCustomChunk(t, "ns", "note.txt", "a hand written fact about the system")
	fx.writeCustomChunk(t, "ns", "copy.txt", "a hand written fact about the system")

	report, err := fx.syncer.Sync(ctx, "ns", nil)
	require.NoError(t, err)

	// Identical content dedupes to one indexed chunk, but both files are
	// recorded as processed.
	assert.Equal(t, 1, report.NewCustomChunks)

	entries, err := NewManifest(fx.cfg.CustomManifestPath("ns")).Entries()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"note.txt", "copy.txt"}, entries)

	handle, err := fx.handles.Get(ctx, "ns")
	require.NoError(t, err)
	fp := chunk.Fingerprint("a hand written fact about the system")
	got, err := handle.Catalog.Get(ctx, []string{fp})
	require.NoError(t, err)
	assert.Contains(t, got, fp)
}

func TestSync_CrossMergeDedupe(t *testing.T) {
	fx := newSyncFixture(t)
	ctx := context.Background()

	// The document chunks to exactly the custom chunk's content.
	fx.writeDoc(t, "ns", "a.txt", "shared sentence")
	fx.writeCustomChunk(t, "ns", "note.txt", "shared sentence")

	report, err := fx.syncer.Sync(ctx, "ns", nil)
	require.NoError(t, err)

	assert.Equal(t, 1, report.IndexedChunks)
	assert.Zero(t, report.NewCustomChunks)

	handle, err := fx.handles.Get(ctx, "ns")
	require.NoError(t, err)
	count, err := handle.Catalog.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSync_OCRFallbackRecorded(t *testing.T) {
	pdf := &stubPDF{pages: map[string][]extract.PDFPage{
		"report.pdf": {{Text: "clean extractable report text about capacity planning"}},
		"scan.pdf":   {{Text: "%%%###!!!", Images: [][]byte{[]byte("img")}}},
	}}
	fx := newSyncFixtureBackends(t, pdf, stubOCR{})
	ctx := context.Background()

	fx.writeDoc(t, "ns", "report.pdf", "ignored, parser is stubbed")
	fx.writeDoc(t, "ns", "scan.pdf", "ignored, parser is stubbed")

	report, err := fx.syncer.Sync(ctx, "ns", nil)
	require.NoError(t, err)
	require.Len(t, report.Sources, 2)

	byID := map[string]SourceReport{}
	for _, src := range report.Sources {
		byID[src.ID] = src
	}
	assert.Equal(t, StatusIndexed, byID["report.pdf"].Status)
	assert.Equal(t, StatusOCR, byID["scan.pdf"].Status)

	entries, err := NewManifest(fx.cfg.ManifestPath("ns")).Entries()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"report.pdf", "scan.pdf"}, entries)

	handle, err := fx.handles.Get(ctx, "ns")
	require.NoError(t, err)
	got, err := handle.Catalog.Get(ctx, []string{chunk.Fingerprint("Page 1:\nrecognized scan text")})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestSync_DesiredSubset(t *testing.T) {
	fx := newSyncFixture(t)
	ctx := context.Background()

	fx.writeDoc(t, "ns", "a.txt", "requested document")
	fx.writeDoc(t, "ns", "b.txt", "present on disk but not requested")

	report, err := fx.syncer.Sync(ctx, "ns", []string{"a.txt"})
	require.NoError(t, err)
	require.Len(t, report.Sources, 1)
	assert.Equal(t, "a.txt", report.Sources[0].ID)

	entries, err := NewManifest(fx.cfg.ManifestPath("ns")).Entries()
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt"}, entries)

	// Once requested, the remaining file is treated as new.
	report, err = fx.syncer.Sync(ctx, "ns", nil)
	require.NoError(t, err)
	require.Len(t, report.Sources, 1)
	assert.Equal(t, "b.txt", report.Sources[0].ID)
}

func TestHasPendingChanges(t *testing.T) {
	fx := newSyncFixture(t)
	ctx := context.Background()

	pending, err := fx.syncer.HasPendingChanges("ns", nil)
	require.NoError(t, err)
	assert.False(t, pending)

	fx.writeDoc(t, "ns", "a.txt", "new document")
	pending, err = fx.syncer.HasPendingChanges("ns", nil)
	require.NoError(t, err)
	assert.True(t, pending)

	_, err = fx.syncer.Sync(ctx, "ns", nil)
	require.NoError(t, err)
	pending, err = fx.syncer.HasPendingChanges("ns", nil)
	require.NoError(t, err)
	assert.False(t, pending)

	fx.writeCustomChunk(t, "ns", "note.txt", "new fact")
	pending, err = fx.syncer.HasPendingChanges("ns", nil)
	require.NoError(t, err)
	assert.True(t, pending)
}

func TestDeleteSource(t *testing.T) {
	fx := newSyncFixture(t)
	ctx := context.Background()

	fx.writeDoc(t, "ns", "a.txt", "document to delete")
	fx.writeDoc(t, "ns", "b.txt", "document to keep")
	_, err := fx.syncer.Sync(ctx, "ns", nil)
	require.NoError(t, err)

	require.NoError(t, fx.syncer.DeleteSource(ctx, "ns", "a.txt"))

	entries, err := NewManifest(fx.cfg.ManifestPath("ns")).Entries()
	require.NoError(t, err)
	assert.Equal(t, []string{"b.txt"}, entries)

	handle, err := fx.handles.Get(ctx, "ns")
	require.NoError(t, err)
	sources, err := handle.Catalog.Sources(ctx)
	require.NoError(t, err)
	assert.NotContains(t, sources, "a.txt")
	assert.Contains(t, sources, "b.txt")

	_, statErr := os.Stat(filepath.Join(fx.cfg.DocsDir("ns"), "a.txt"))
	assert.True(t, os.IsNotExist(statErr))

	exports, err := filepath.Glob(filepath.Join(fx.cfg.ChunksDir("ns"), "a_chunk_*.txt"))
	require.NoError(t, err)
	assert.Empty(t, exports)

	// The deleted document does not come back on the next sync.
	report, err := fx.syncer.Sync(ctx, "ns", nil)
	require.NoError(t, err)
	assert.Empty(t, report.Sources)
}

func TestForceRefreshCustomChunks(t *testing.T) {
	fx := newSyncFixture(t)
	ctx := context.Background()

	fx.writeCustomChunk(t, "ns", "note.txt", "original content")
	_, err := fx.syncer.Sync(ctx, "ns", nil)
	require.NoError(t, err)

	fx.writeCustomChunk(t, "ns", "note.txt", "revised content")

	// A normal sync skips the already-recorded file.
	report, err := fx.syncer.Sync(ctx, "ns", nil)
	require.NoError(t, err)
	assert.Zero(t, report.NewCustomChunks)

	report, err = fx.syncer.ForceRefreshCustomChunks(ctx, "ns")
	require.NoError(t, err)
	assert.Equal(t, 1, report.NewCustomChunks)

	handle, err := fx.handles.Get(ctx, "ns")
	require.NoError(t, err)
	got, err := handle.Catalog.Get(ctx, []string{chunk.Fingerprint("revised content")})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestPurgeNamespace(t *testing.T) {
	fx := newSyncFixture(t)
	ctx := context.Background()

	fx.writeDoc(t, "ns", "a.txt", "document")
	_, err := fx.syncer.Sync(ctx, "ns", nil)
	require.NoError(t, err)

	require.NoError(t, fx.syncer.PurgeNamespace("ns"))

	_, statErr := os.Stat(fx.cfg.NamespaceDir("ns"))
	assert.True(t, os.IsNotExist(statErr))
}
