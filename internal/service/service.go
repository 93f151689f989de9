// Package service is the facade collaborators call: it wires the
// extractor, synchronizer, retrieval engine, crawler, and answer
// generator behind namespace-scoped operations.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/docquery/docquery/internal/answer"
	"github.com/docquery/docquery/internal/chunk"
	"github.com/docquery/docquery/internal/config"
	"github.com/docquery/docquery/internal/embed"
	qerr "github.com/docquery/docquery/internal/errors"
	"github.com/docquery/docquery/internal/extract"
	"github.com/docquery/docquery/internal/fetch"
	"github.com/docquery/docquery/internal/index"
	"github.com/docquery/docquery/internal/search"
)

// AnswerGenerator produces an answer from retrieved context.
type AnswerGenerator interface {
	Generate(ctx context.Context, question, retrieved string, history []answer.Exchange) (string, error)
}

// Backends are the document parser providers. Any may be nil; sources
// that need a missing backend are skipped with a warning.
type Backends struct {
	PDF    extract.PDFParser
	Word   extract.WordParser
	Sheets extract.SheetParser
	OCR    extract.OCREngine
}

// Service exposes namespace-scoped ingestion and retrieval.
type Service struct {
	cfg       *config.Config
	embedder  embed.Embedder
	generator AnswerGenerator
	syncer    *index.Syncer
	handles   *index.HandleCache
	fetcher   *fetch.Fetcher
	crawler   *fetch.Crawler
	logger    *slog.Logger
}

// New wires a service from configuration. The generator may be nil
// when only search (not answering) is needed.
func New(cfg *config.Config, embedder embed.Embedder, backends Backends, generator AnswerGenerator, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}

	handles, err := index.NewHandleCache(cfg.Search.CacheSize, cfg.VectorDBDir,
		dimsProbe(embedder), logger)
	if err != nil {
		return nil, err
	}

	extractor := extract.NewExtractor(extract.Config{
		Workers:           cfg.Extract.Workers,
		SpreadsheetEngine: cfg.Extract.SpreadsheetEngine,
		OCREnabled:        cfg.Extract.OCREnabled,
		OCRLanguages:      cfg.Extract.OCRLanguages,
	}, backends.PDF, backends.Word, backends.Sheets, backends.OCR, logger)

	splitter := chunk.NewSplitter(cfg.Chunking.ChunkSize, cfg.Chunking.ChunkOverlap)
	syncer := index.NewSyncer(cfg, extractor, splitter, embedder, handles, logger)

	timeout, err := time.ParseDuration(cfg.Crawl.Timeout)
	if err != nil {
		timeout = fetch.DefaultTimeout
	}
	fetcher := fetch.NewFetcher(fetch.Config{
		UserAgent: cfg.Crawl.UserAgent,
		Timeout:   timeout,
	}, logger)
	crawler := fetch.NewCrawler(fetcher, cfg.Crawl.MaxPages, logger)

	return &Service{
		cfg:       cfg,
		embedder:  embedder,
		generator: generator,
		syncer:    syncer,
		handles:   handles,
		fetcher:   fetcher,
		crawler:   crawler,
		logger:    logger,
	}, nil
}

// dimsProbe resolves the embedding dimension for namespaces that have
// no persisted vector store yet, probing with a throwaway embedding
// when the provider does not know its dimension up front.
func dimsProbe(embedder embed.Embedder) index.DimsFunc {
	return func(ctx context.Context) (int, error) {
		if d := embedder.Dimensions(); d > 0 {
			return d, nil
		}
		vec, err := embedder.Embed(ctx, "dimension probe")
		if err != nil {
			return 0, qerr.New(qerr.ErrCodeEmbeddingFailed,
				"failed to determine embedding dimension", err)
		}
		return len(vec), nil
	}
}

// Close releases cached index handles.
func (s *Service) Close() {
	s.handles.Purge()
}

// Sync synchronizes the namespace with the desired source set. A nil
// set means every supported file in the namespace's docs directory.
func (s *Service) Sync(ctx context.Context, namespace string, desired []string) (*index.Report, error) {
	return s.syncer.Sync(ctx, namespace, desired)
}

// HasPendingChanges reports whether a sync would do any work.
func (s *Service) HasPendingChanges(namespace string, desired []string) (bool, error) {
	return s.syncer.HasPendingChanges(namespace, desired)
}

// DeleteSource removes one source and everything derived from it.
func (s *Service) DeleteSource(ctx context.Context, namespace, sourceID string) error {
	return s.syncer.DeleteSource(ctx, namespace, sourceID)
}

// ForceRefreshCustomChunks re-embeds every custom chunk currently on
// disk, regardless of manifest membership.
func (s *Service) ForceRefreshCustomChunks(ctx context.Context, namespace string) (*index.Report, error) {
	return s.syncer.ForceRefreshCustomChunks(ctx, namespace)
}

// PurgeNamespace deletes all data the namespace owns.
func (s *Service) PurgeNamespace(namespace string) error {
	return s.syncer.PurgeNamespace(namespace)
}

// Sources lists indexed sources and their chunk counts.
func (s *Service) Sources(ctx context.Context, namespace string) (map[string]int, error) {
	handle, err := s.handles.Get(ctx, namespace)
	if err != nil {
		return nil, err
	}
	return handle.Catalog.Sources(ctx)
}

// IngestURL fetches a page (or crawls the site when crawl is true) into
// the namespace's docs directory. A follow-up Sync indexes the result.
func (s *Service) IngestURL(ctx context.Context, namespace, rawURL string, crawl bool) (*fetch.CrawlReport, error) {
	docsDir := s.cfg.DocsDir(namespace)
	if crawl {
		return s.crawler.Crawl(ctx, rawURL, docsDir)
	}

	page, err := s.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	if err := page.Save(docsDir); err != nil {
		return nil, err
	}
	return &fetch.CrawlReport{Fetched: []string{page.SourceID}}, nil
}

// Search runs hybrid retrieval over the namespace.
func (s *Service) Search(ctx context.Context, namespace, query string) (*search.Response, error) {
	handle, err := s.handles.Get(ctx, namespace)
	if err != nil {
		return nil, err
	}

	engine, err := search.NewEngine(s.engineConfig(), s.embedder,
		handle.Vectors, handle.Lexical, handle.Catalog, s.logger)
	if err != nil {
		return nil, err
	}
	return engine.Search(ctx, query)
}

// engineConfig builds the retrieval configuration. Weights explicitly
// pinned away from the analyzer's conceptual defaults bypass the
// analyzer.
func (s *Service) engineConfig() search.EngineConfig {
	cfg := search.EngineConfig{
		CandidatesPerLeg: s.cfg.Search.CandidatesPerLeg,
		MaxResults:       s.cfg.Search.MaxResults,
	}
	w := search.Weights{
		Semantic: s.cfg.Search.SemanticWeight,
		Lexical:  s.cfg.Search.LexicalWeight,
	}
	if w != search.ConceptualWeights {
		cfg.FixedWeights = &w
	}
	return cfg
}

// ChunkRef points at one retrieved chunk of a source.
type ChunkRef struct {
	Fingerprint string
	Score       float64
}

// SourceRef aggregates the retrieved chunks of one source.
type SourceRef struct {
	ID     string
	Chunks []ChunkRef
}

// Answer is the result of a Retrieve call.
type Answer struct {
	Text    string
	Sources []SourceRef
	// Degraded reports that only the semantic leg contributed.
	Degraded bool
}

// Retrieve answers a question from the namespace's indexed content,
// returning the generated answer and the sources that grounded it.
func (s *Service) Retrieve(ctx context.Context, namespace, query string, history []answer.Exchange) (*Answer, error) {
	if s.generator == nil {
		return nil, qerr.New(qerr.ErrCodeAnswerFailed, "no answer generator configured", nil)
	}

	resp, err := s.Search(ctx, namespace, query)
	if err != nil {
		return nil, err
	}
	if len(resp.Results) == 0 {
		return &Answer{
			Text:     "No indexed content matched the question.",
			Degraded: resp.Degraded,
		}, nil
	}

	text, err := s.generator.Generate(ctx, query, formatContext(resp.Results), history)
	if err != nil {
		return nil, err
	}

	return &Answer{
		Text:     text,
		Sources:  groupSources(resp.Results),
		Degraded: resp.Degraded,
	}, nil
}

// formatContext renders retrieval results as the prompt context block.
func formatContext(results []search.Result) string {
	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[Source: %s]\n%s", r.SourceID, r.Text)
	}
	return b.String()
}

// groupSources folds per-chunk results into per-source references,
// ordered by each source's best score.
func groupSources(results []search.Result) []SourceRef {
	byID := make(map[string]*SourceRef)
	var order []string
	for _, r := range results {
		ref, ok := byID[r.SourceID]
		if !ok {
			ref = &SourceRef{ID: r.SourceID}
			byID[r.SourceID] = ref
			order = append(order, r.SourceID)
		}
		ref.Chunks = append(ref.Chunks, ChunkRef{Fingerprint: r.Fingerprint, Score: r.Score})
	}

	refs := make([]SourceRef, 0, len(order))
	for _, id := range order {
		refs = append(refs, *byID[id])
	}
	sort.SliceStable(refs, func(i, j int) bool {
		return refs[i].Chunks[0].Score > refs[j].Chunks[0].Score
	})
	return refs
}
