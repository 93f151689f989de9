package search

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/docquery/docquery/internal/embed"
	qerr "github.com/docquery/docquery/internal/errors"
	"github.com/docquery/docquery/internal/store"
)

// EngineConfig configures the hybrid retrieval engine.
type EngineConfig struct {
	// CandidatesPerLeg is how many hits each leg fetches before fusion.
	CandidatesPerLeg int
	// MaxResults caps the fused result list.
	MaxResults int
	// FixedWeights, when set, bypasses the query analyzer.
	FixedWeights *Weights
}

// Engine runs the two retrieval legs in parallel and fuses their
// rankings.
type Engine struct {
	config   EngineConfig
	embedder embed.Embedder
	vectors  store.VectorStore
	lexical  *store.LexicalIndex
	catalog  *store.Catalog
	analyzer *Analyzer
	logger   *slog.Logger
}

// NewEngine creates a hybrid retrieval engine.
func NewEngine(cfg EngineConfig, embedder embed.Embedder, vectors store.VectorStore, lexical *store.LexicalIndex, catalog *store.Catalog, logger *slog.Logger) (*Engine, error) {
	if cfg.CandidatesPerLeg <= 0 {
		cfg.CandidatesPerLeg = DefaultCandidatesPerLeg
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = DefaultMaxResults
	}
	if logger == nil {
		logger = slog.Default()
	}

	analyzer, err := NewAnalyzer(0)
	if err != nil {
		return nil, err
	}

	return &Engine{
		config:   cfg,
		embedder: embedder,
		vectors:  vectors,
		lexical:  lexical,
		catalog:  catalog,
		analyzer: analyzer,
		logger:   logger,
	}, nil
}

// Response carries the fused results and the analyzer's verdict.
type Response struct {
	Results  []Result
	Analysis Analysis
	// Degraded reports that the lexical leg failed and only semantic
	// results were used.
	Degraded bool
}

// Search runs both retrieval legs concurrently and fuses the rankings.
// A lexical failure degrades to semantic-only retrieval; a semantic
// failure is an error.
func (e *Engine) Search(ctx context.Context, query string) (*Response, error) {
	analysis := e.analyzer.Analyze(query)
	weights := analysis.Weights
	if e.config.FixedWeights != nil {
		weights = *e.config.FixedWeights
	}

	var (
		semantic []Candidate
		lexical  []Candidate
		degraded bool
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		cands, err := e.semanticLeg(gctx, query)
		if err != nil {
			return err
		}
		semantic = cands
		return nil
	})

	g.Go(func() error {
		cands, err := e.lexicalLeg(gctx, query)
		if err != nil {
			// Keyword search is best-effort: fall back to the
			// semantic leg alone.
			e.logger.Warn("lexical leg failed, degrading to semantic-only",
				slog.String("error", err.Error()))
			degraded = true
			return nil
		}
		lexical = cands
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, qerr.New(qerr.ErrCodeSearchFailed, "hybrid search failed", err)
	}

	results := Fuse(semantic, lexical, weights, e.config.MaxResults)

	e.logger.Debug("hybrid search complete",
		slog.String("query_type", string(analysis.Type)),
		slog.Int("semantic_candidates", len(semantic)),
		slog.Int("lexical_candidates", len(lexical)),
		slog.Int("results", len(results)),
		slog.Bool("degraded", degraded))

	return &Response{Results: results, Analysis: analysis, Degraded: degraded}, nil
}

// semanticLeg embeds the query and searches the vector store.
func (e *Engine) semanticLeg(ctx context.Context, query string) ([]Candidate, error) {
	vec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	hits, err := e.vectors.Search(ctx, vec, e.config.CandidatesPerLeg)
	if err != nil {
		return nil, err
	}

	return e.resolve(ctx, vectorIDs(hits))
}

// lexicalLeg searches the keyword index.
func (e *Engine) lexicalLeg(ctx context.Context, query string) ([]Candidate, error) {
	hits, err := e.lexical.Search(ctx, query, e.config.CandidatesPerLeg)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.ID)
	}
	return e.resolve(ctx, ids)
}

// resolve turns fingerprints into candidates via the chunk catalog,
// preserving order and dropping fingerprints the catalog no longer has.
func (e *Engine) resolve(ctx context.Context, fingerprints []string) ([]Candidate, error) {
	if len(fingerprints) == 0 {
		return nil, nil
	}

	chunks, err := e.catalog.Get(ctx, fingerprints)
	if err != nil {
		return nil, err
	}

	cands := make([]Candidate, 0, len(fingerprints))
	for _, fp := range fingerprints {
		ch, ok := chunks[fp]
		if !ok {
			continue
		}
		cands = append(cands, Candidate{
			SourceID:    ch.SourceID,
			Fingerprint: ch.Fingerprint,
			Text:        ch.Text,
		})
	}
	return cands, nil
}

func vectorIDs(hits []*store.VectorResult) []string {
	ids := make([]string, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.ID)
	}
	return ids
}
