// Package store provides the persistence layer: the HNSW vector index,
// the in-memory lexical index, and the SQLite chunk catalog.
package store

import (
	"context"
	"fmt"
)

// VectorResult is a single vector search hit.
type VectorResult struct {
	// ID is the chunk fingerprint.
	ID       string
	Distance float32
	Score    float32
}

// VectorStore stores embeddings and performs nearest-neighbor search.
type VectorStore interface {
	Add(ctx context.Context, ids []string, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)
	Delete(ctx context.Context, ids []string) error
	Contains(id string) bool
	Count() int
	Save(path string) error
	Load(path string) error
	Close() error
}

// VectorStoreConfig configures a vector store.
type VectorStoreConfig struct {
	Dimensions int
	// Metric is "cos" or "l2".
	Metric string
	// M is the HNSW connectivity parameter.
	M int
	// EfSearch is the HNSW search expansion factor.
	EfSearch int
}

// LexicalResult is a single keyword search hit.
type LexicalResult struct {
	// ID is the chunk fingerprint.
	ID    string
	Score float64
}

// ErrDimensionMismatch indicates a vector with the wrong dimensionality.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}
