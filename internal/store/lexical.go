package store

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/docquery/docquery/internal/chunk"
)

// LexicalIndex is an in-memory bleve index over chunk text. It is cheap
// to rebuild, so it is reconstructed from the chunk catalog on every
// index open rather than persisted.
type LexicalIndex struct {
	mu     sync.RWMutex
	index  bleve.Index
	closed bool
}

// lexicalDocument is the shape indexed per chunk.
type lexicalDocument struct {
	Content string `json:"content"`
	Source  string `json:"source"`
}

// NewLexicalIndex creates an empty in-memory lexical index.
func NewLexicalIndex() (*LexicalIndex, error) {
	idx, err := bleve.NewMemOnly(createLexicalMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create lexical index: %w", err)
	}
	return &LexicalIndex{index: idx}, nil
}

// NewLexicalIndexFromCatalog builds a lexical index holding every chunk
// in the catalog.
func NewLexicalIndexFromCatalog(ctx context.Context, catalog *Catalog) (*LexicalIndex, error) {
	idx, err := NewLexicalIndex()
	if err != nil {
		return nil, err
	}

	chunks, err := catalog.All(ctx)
	if err != nil {
		_ = idx.Close()
		return nil, fmt.Errorf("failed to load chunks for lexical index: %w", err)
	}
	if err := idx.Index(ctx, chunks); err != nil {
		_ = idx.Close()
		return nil, err
	}
	return idx, nil
}

// createLexicalMapping builds the bleve mapping with the standard
// analyzer (tokenization, lowercasing, English stop words).
func createLexicalMapping() *mapping.IndexMappingImpl {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = standard.Name
	return indexMapping
}

// Index adds chunks to the index, keyed by fingerprint.
func (l *LexicalIndex) Index(ctx context.Context, chunks []chunk.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return fmt.Errorf("index is closed")
	}

	batch := l.index.NewBatch()
	for _, ch := range chunks {
		doc := lexicalDocument{Content: ch.Text, Source: ch.SourceID}
		if err := batch.Index(ch.Fingerprint, doc); err != nil {
			return fmt.Errorf("failed to index chunk %s: %w", ch.Fingerprint, err)
		}
	}

	if err := l.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to execute batch: %w", err)
	}
	return nil
}

// Search returns the top chunks matching the query, scored by BM25.
func (l *LexicalIndex) Search(ctx context.Context, queryStr string, limit int) ([]*LexicalResult, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		return nil, fmt.Errorf("index is closed")
	}
	if strings.TrimSpace(queryStr) == "" {
		return []*LexicalResult{}, nil
	}

	matchQuery := bleve.NewMatchQuery(queryStr)
	matchQuery.SetField("content")

	searchRequest := bleve.NewSearchRequest(matchQuery)
	searchRequest.Size = limit

	result, err := l.index.SearchInContext(ctx, searchRequest)
	if err != nil {
		return nil, fmt.Errorf("lexical search failed: %w", err)
	}

	results := make([]*LexicalResult, 0, len(result.Hits))
	for _, hit := range result.Hits {
		results = append(results, &LexicalResult{ID: hit.ID, Score: hit.Score})
	}
	return results, nil
}

// Delete removes chunks by fingerprint.
func (l *LexicalIndex) Delete(ctx context.Context, fingerprints []string) error {
	if len(fingerprints) == 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return fmt.Errorf("index is closed")
	}

	batch := l.index.NewBatch()
	for _, fp := range fingerprints {
		batch.Delete(fp)
	}
	if err := l.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	return nil
}

// Count returns the number of indexed chunks.
func (l *LexicalIndex) Count() (uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		return 0, fmt.Errorf("index is closed")
	}
	return l.index.DocCount()
}

// Close closes the index.
func (l *LexicalIndex) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	return l.index.Close()
}
