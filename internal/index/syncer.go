package index

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/docquery/docquery/internal/chunk"
	"github.com/docquery/docquery/internal/config"
	"github.com/docquery/docquery/internal/embed"
	qerr "github.com/docquery/docquery/internal/errors"
	"github.com/docquery/docquery/internal/extract"
)

// SourceStatus describes the outcome of ingesting one source.
type SourceStatus string

const (
	// StatusIndexed means the source was extracted and indexed.
	StatusIndexed SourceStatus = "indexed"
	// StatusOCR means the source was indexed via the OCR fallback.
	StatusOCR SourceStatus = "indexed-ocr"
	// StatusSkipped means the source failed and was left out of the
	// manifest; the next sync retries it.
	StatusSkipped SourceStatus = "skipped"
)

// SourceReport is the per-source sync outcome.
type SourceReport struct {
	ID     string
	Status SourceStatus
	Chunks int
	Reason string
}

// Report summarizes one sync pass.
type Report struct {
	Namespace       string
	Sources         []SourceReport
	NewCustomChunks int
	IndexedChunks   int
	Duration        time.Duration
}

// Indexed returns the number of sources successfully indexed this pass.
func (r *Report) Indexed() int {
	n := 0
	for _, s := range r.Sources {
		if s.Status != StatusSkipped {
			n++
		}
	}
	return n
}

// Syncer incrementally synchronizes namespace document directories with
// their indexes. Sync passes are serialized per namespace through a
// file lock, so concurrent callers queue rather than interleave.
type Syncer struct {
	cfg       *config.Config
	extractor *extract.Extractor
	splitter  *chunk.Splitter
	embedder  embed.Embedder
	handles   *HandleCache
	logger    *slog.Logger
}

// NewSyncer creates a syncer.
func NewSyncer(cfg *config.Config, extractor *extract.Extractor, splitter *chunk.Splitter, embedder embed.Embedder, handles *HandleCache, logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{
		cfg:       cfg,
		extractor: extractor,
		splitter:  splitter,
		embedder:  embedder,
		handles:   handles,
		logger:    logger,
	}
}

// Sync brings the namespace index up to date with the desired source
// set and the custom chunk directory. A nil desired set means every
// supported file in the docs directory. Already-recorded sources are
// never reprocessed; a sync with nothing new is a no-op.
func (s *Syncer) Sync(ctx context.Context, namespace string, desired []string) (*Report, error) {
	unlock, err := s.lock(namespace)
	if err != nil {
		return nil, err
	}
	defer unlock()

	return s.syncLocked(ctx, namespace, desired)
}

// syncLocked runs one sync pass. The caller holds the namespace lock.
func (s *Syncer) syncLocked(ctx context.Context, namespace string, desired []string) (*Report, error) {
	start := time.Now()

	report := &Report{Namespace: namespace}

	newSources, err := s.pendingSources(namespace, desired)
	if err != nil {
		return nil, err
	}
	newCustom, err := s.pendingCustomChunks(namespace)
	if err != nil {
		return nil, err
	}

	if len(newSources) == 0 && len(newCustom) == 0 {
		report.Duration = time.Since(start)
		return report, nil
	}

	handle, err := s.handles.Get(ctx, namespace)
	if err != nil {
		return nil, err
	}

	manifest := NewManifest(s.cfg.ManifestPath(namespace))
	seen := make(map[string]struct{})

	if len(newSources) > 0 {
		paths := make([]string, len(newSources))
		for i, id := range newSources {
			paths[i] = filepath.Join(s.cfg.DocsDir(namespace), id)
		}

		results := s.extractor.Batch(ctx, paths)
		for _, res := range results {
			sr := s.indexSource(ctx, namespace, handle, manifest, res, seen)
			report.Sources = append(report.Sources, sr)
			if sr.Status != StatusSkipped {
				report.IndexedChunks += sr.Chunks
			}
		}
	}

	if len(newCustom) > 0 {
		indexed, err := s.indexCustomChunks(ctx, namespace, handle, newCustom, seen)
		if err != nil {
			s.logger.Warn("custom chunk indexing failed",
				slog.String("namespace", namespace),
				slog.String("error", err.Error()))
		} else {
			report.NewCustomChunks = indexed
			report.IndexedChunks += indexed
		}
	}

	report.Duration = time.Since(start)
	s.logger.Info("sync complete",
		slog.String("namespace", namespace),
		slog.Int("sources", len(report.Sources)),
		slog.Int("indexed_chunks", report.IndexedChunks),
		slog.Int("custom_chunks", report.NewCustomChunks),
		slog.Duration("duration", report.Duration))

	return report, nil
}

// indexSource chunks, embeds, persists, and finally records one source.
// The manifest append happens only after the chunks are durably stored,
// so a crash mid-source leaves the source unrecorded and retried.
func (s *Syncer) indexSource(ctx context.Context, namespace string, handle *Handle, manifest *Manifest, res extract.Result, seen map[string]struct{}) SourceReport {
	if res.Err != nil {
		return SourceReport{ID: res.SourceID, Status: StatusSkipped, Reason: res.Err.Error()}
	}

	chunks := chunk.DedupeAgainst(s.splitter.Split(res.SourceID, res.Text), seen)
	if len(chunks) == 0 {
		// Nothing new to index, but the source is processed.
		if err := manifest.Append(res.SourceID); err != nil {
			return SourceReport{ID: res.SourceID, Status: StatusSkipped, Reason: err.Error()}
		}
		return SourceReport{ID: res.SourceID, Status: StatusIndexed}
	}

	if err := s.persistChunks(ctx, handle, chunks); err != nil {
		s.logger.Warn("source indexing failed",
			slog.String("namespace", namespace),
			slog.String("source", res.SourceID),
			slog.String("error", err.Error()))
		return SourceReport{ID: res.SourceID, Status: StatusSkipped, Reason: err.Error()}
	}

	if err := s.exportChunks(namespace, res.SourceID, chunks); err != nil {
		s.logger.Warn("chunk export failed",
			slog.String("source", res.SourceID),
			slog.String("error", err.Error()))
	}

	if err := manifest.Append(res.SourceID); err != nil {
		return SourceReport{ID: res.SourceID, Status: StatusSkipped, Reason: err.Error()}
	}

	status := StatusIndexed
	if res.OCRUsed {
		status = StatusOCR
	}
	return SourceReport{ID: res.SourceID, Status: status, Chunks: len(chunks)}
}

// persistChunks embeds chunks and writes them to all three stores,
// saving the vector graph before the caller records the source.
func (s *Syncer) persistChunks(ctx context.Context, handle *Handle, chunks []chunk.Chunk) error {
	texts := make([]string, len(chunks))
	ids := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
		ids[i] = ch.Fingerprint
	}

	vecs, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return err
	}

	if err := handle.Vectors.Add(ctx, ids, vecs); err != nil {
		return err
	}
	if err := handle.Catalog.Add(ctx, chunks); err != nil {
		return err
	}
	if err := handle.Lexical.Index(ctx, chunks); err != nil {
		return err
	}
	return handle.SaveVectors()
}

// exportChunks writes chunk text files for inspection, named
// <base>_chunk_0000.txt under the namespace chunks directory.
func (s *Syncer) exportChunks(namespace, sourceID string, chunks []chunk.Chunk) error {
	dir := s.cfg.ChunksDir(namespace)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return qerr.New(qerr.ErrCodeExportIO, "failed to create chunks directory", err)
	}

	base := strings.TrimSuffix(sourceID, filepath.Ext(sourceID))
	for i, ch := range chunks {
		name := fmt.Sprintf("%s_chunk_%04d.txt", base, i)
		if err := os.WriteFile(filepath.Join(dir, name), []byte(ch.Text), 0o644); err != nil {
			return qerr.New(qerr.ErrCodeExportIO, "failed to write chunk export", err)
		}
	}
	return nil
}

// indexCustomChunks ingests hand-written chunk files. Each file is one
// chunk; the file content is deduplicated against this pass and the
// catalog. Names are recorded in the custom manifest only after the
// chunks are durably stored.
func (s *Syncer) indexCustomChunks(ctx context.Context, namespace string, handle *Handle, names []string, seen map[string]struct{}) (int, error) {
	dir := s.cfg.CustomChunksDir(namespace)

	var chunks []chunk.Chunk
	var indexedNames []string
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			s.logger.Warn("unreadable custom chunk",
				slog.String("file", name),
				slog.String("error", err.Error()))
			continue
		}
		text := strings.TrimSpace(string(data))
		if text == "" {
			indexedNames = append(indexedNames, name)
			continue
		}
		chunks = append(chunks, chunk.New(name, 0, text))
		indexedNames = append(indexedNames, name)
	}

	chunks = chunk.DedupeAgainst(chunks, seen)
	if len(chunks) > 0 {
		if err := s.persistChunks(ctx, handle, chunks); err != nil {
			return 0, err
		}
	}

	customManifest := NewManifest(s.cfg.CustomManifestPath(namespace))
	if err := customManifest.Append(indexedNames...); err != nil {
		return 0, err
	}
	return len(chunks), nil
}

// HasPendingChanges reports whether a sync pass over the desired source
// set would do any work. A nil desired set means the docs directory.
func (s *Syncer) HasPendingChanges(namespace string, desired []string) (bool, error) {
	newSources, err := s.pendingSources(namespace, desired)
	if err != nil {
		return false, err
	}
	if len(newSources) > 0 {
		return true, nil
	}

	newCustom, err := s.pendingCustomChunks(namespace)
	if err != nil {
		return false, err
	}
	return len(newCustom) > 0, nil
}

// DeleteSource removes a source's chunks from every store, its export
// files, its manifest entry, and the document itself. The cached handle
// is invalidated so readers reopen a consistent view.
func (s *Syncer) DeleteSource(ctx context.Context, namespace, sourceID string) error {
	unlock, err := s.lock(namespace)
	if err != nil {
		return err
	}
	defer unlock()

	handle, err := s.handles.Get(ctx, namespace)
	if err != nil {
		return err
	}

	fingerprints, err := handle.Catalog.DeleteSource(ctx, sourceID)
	if err != nil {
		return qerr.New(qerr.ErrCodeSyncFailed, "failed to delete source chunks", err)
	}
	if err := handle.Vectors.Delete(ctx, fingerprints); err != nil {
		return qerr.New(qerr.ErrCodeSyncFailed, "failed to delete vectors", err)
	}
	if err := handle.Lexical.Delete(ctx, fingerprints); err != nil {
		return qerr.New(qerr.ErrCodeSyncFailed, "failed to delete from lexical index", err)
	}
	if err := handle.SaveVectors(); err != nil {
		return qerr.New(qerr.ErrCodeSyncFailed, "failed to save vector store", err)
	}

	if err := NewManifest(s.cfg.ManifestPath(namespace)).Remove(sourceID); err != nil {
		return err
	}

	// Remove the document and its exported chunks.
	_ = os.Remove(filepath.Join(s.cfg.DocsDir(namespace), sourceID))
	base := strings.TrimSuffix(sourceID, filepath.Ext(sourceID))
	exports, _ := filepath.Glob(filepath.Join(s.cfg.ChunksDir(namespace), base+"_chunk_*.txt"))
	for _, f := range exports {
		_ = os.Remove(f)
	}

	s.handles.Invalidate(namespace)

	s.logger.Info("source deleted",
		slog.String("namespace", namespace),
		slog.String("source", sourceID),
		slog.Int("chunks", len(fingerprints)))

	return nil
}

// ForceRefreshCustomChunks clears the custom manifest and re-indexes
// every custom chunk file, re-embedding their current content. The
// whole refresh runs under one lock so no other writer can observe the
// cleared manifest.
func (s *Syncer) ForceRefreshCustomChunks(ctx context.Context, namespace string) (*Report, error) {
	unlock, err := s.lock(namespace)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := NewManifest(s.cfg.CustomManifestPath(namespace)).Clear(); err != nil {
		return nil, err
	}
	s.handles.Invalidate(namespace)

	return s.syncLocked(ctx, namespace, nil)
}

// PurgeNamespace deletes everything the namespace owns.
func (s *Syncer) PurgeNamespace(namespace string) error {
	s.handles.Invalidate(namespace)
	if err := os.RemoveAll(s.cfg.NamespaceDir(namespace)); err != nil {
		return qerr.New(qerr.ErrCodeSyncFailed, "failed to purge namespace", err)
	}
	return nil
}

// pendingSources returns the desired source ids the manifest has not
// recorded yet, sorted for deterministic processing. A nil desired set
// is resolved to the supported files in the docs directory.
func (s *Syncer) pendingSources(namespace string, desired []string) ([]string, error) {
	if desired == nil {
		var err error
		desired, err = listSupported(s.cfg.DocsDir(namespace))
		if err != nil {
			return nil, err
		}
	}

	recorded, err := NewManifest(s.cfg.ManifestPath(namespace)).Set()
	if err != nil {
		return nil, err
	}

	var pending []string
	for _, id := range desired {
		if _, ok := recorded[id]; !ok {
			pending = append(pending, id)
		}
	}
	sort.Strings(pending)
	return pending, nil
}

// pendingCustomChunks lists .txt files in the custom chunk directory
// that the custom manifest has not recorded yet.
func (s *Syncer) pendingCustomChunks(namespace string) ([]string, error) {
	entries, err := os.ReadDir(s.cfg.CustomChunksDir(namespace))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, qerr.New(qerr.ErrCodeSyncFailed, "failed to read custom chunks directory", err)
	}

	recorded, err := NewManifest(s.cfg.CustomManifestPath(namespace)).Set()
	if err != nil {
		return nil, err
	}

	var pending []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".txt") {
			continue
		}
		if _, ok := recorded[e.Name()]; !ok {
			pending = append(pending, e.Name())
		}
	}
	sort.Strings(pending)
	return pending, nil
}

// lock takes the namespace's sync lock, blocking until acquired.
func (s *Syncer) lock(namespace string) (func(), error) {
	if err := os.MkdirAll(s.cfg.NamespaceDir(namespace), 0o755); err != nil {
		return nil, qerr.New(qerr.ErrCodeSyncFailed, "failed to create namespace directory", err)
	}

	fl := flock.New(s.cfg.LockPath(namespace))
	if err := fl.Lock(); err != nil {
		return nil, qerr.New(qerr.ErrCodeSyncFailed, "failed to acquire sync lock", err)
	}
	return func() { _ = fl.Unlock() }, nil
}

// listSupported lists supported document files in dir.
func listSupported(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, qerr.New(qerr.ErrCodeSyncFailed, "failed to read docs directory", err)
	}

	var ids []string
	for _, e := range entries {
		if e.IsDir() || !extract.IsSupported(e.Name()) {
			continue
		}
		ids = append(ids, e.Name())
	}
	return ids, nil
}
