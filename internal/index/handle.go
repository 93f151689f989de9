package index

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	lru "github.com/hashicorp/golang-lru/v2"

	qerr "github.com/docquery/docquery/internal/errors"
	"github.com/docquery/docquery/internal/store"
)

// Store file names inside a namespace's vector_db directory.
const (
	vectorsFile = "vectors.hnsw"
	catalogFile = "catalog.db"
)

// Handle bundles the open stores of one namespace. The lexical index is
// rebuilt from the chunk catalog every time a handle is opened.
type Handle struct {
	Vectors *store.HNSWStore
	Lexical *store.LexicalIndex
	Catalog *store.Catalog

	dir string
}

// OpenHandle opens the stores under dir, creating them if absent.
// A corrupt vector store evicts the whole directory (catalog and
// manifests included) so the next sync rebuilds from scratch.
func OpenHandle(ctx context.Context, dir string, dims int, logger *slog.Logger) (*Handle, error) {
	if logger == nil {
		logger = slog.Default()
	}

	vectorsPath := filepath.Join(dir, vectorsFile)

	var vectors *store.HNSWStore
	if _, err := os.Stat(vectorsPath); err == nil {
		loaded, err := store.NewHNSWStore(store.VectorStoreConfig{Dimensions: dims})
		if err != nil {
			return nil, err
		}
		if loadErr := loaded.Load(vectorsPath); loadErr != nil {
			// Corrupt index: evict the store directory and start over.
			_ = loaded.Close()
			logger.Warn("vector store corrupt, evicting index directory",
				slog.String("dir", dir),
				slog.String("error", loadErr.Error()))
			if rmErr := os.RemoveAll(dir); rmErr != nil {
				return nil, qerr.CorruptIndexError("failed to evict corrupt index", rmErr)
			}
		} else {
			vectors = loaded
		}
	}

	if vectors == nil {
		fresh, err := store.NewHNSWStore(store.VectorStoreConfig{Dimensions: dims})
		if err != nil {
			return nil, err
		}
		vectors = fresh
	}

	catalog, err := store.OpenCatalog(filepath.Join(dir, catalogFile))
	if err != nil {
		_ = vectors.Close()
		return nil, err
	}

	lexical, err := store.NewLexicalIndexFromCatalog(ctx, catalog)
	if err != nil {
		_ = vectors.Close()
		_ = catalog.Close()
		return nil, err
	}

	return &Handle{Vectors: vectors, Lexical: lexical, Catalog: catalog, dir: dir}, nil
}

// SaveVectors persists the vector store to disk.
func (h *Handle) SaveVectors() error {
	return h.Vectors.Save(filepath.Join(h.dir, vectorsFile))
}

// Close closes all stores.
func (h *Handle) Close() {
	_ = h.Lexical.Close()
	_ = h.Vectors.Close()
	_ = h.Catalog.Close()
}

// DimsFunc resolves the embedding dimension when a namespace has no
// persisted vector store yet.
type DimsFunc func(ctx context.Context) (int, error)

// HandleCache caches open handles per namespace. Evicted or invalidated
// handles are closed.
type HandleCache struct {
	cache  *lru.Cache[string, *Handle]
	dirFn  func(namespace string) string
	dimsFn DimsFunc
	logger *slog.Logger
}

// NewHandleCache creates a handle cache of the given capacity.
// dirFn maps a namespace to its vector_db directory.
func NewHandleCache(size int, dirFn func(string) string, dimsFn DimsFunc, logger *slog.Logger) (*HandleCache, error) {
	if size <= 0 {
		size = 8
	}
	if logger == nil {
		logger = slog.Default()
	}

	cache, err := lru.NewWithEvict(size, func(_ string, h *Handle) {
		h.Close()
	})
	if err != nil {
		return nil, err
	}

	return &HandleCache{cache: cache, dirFn: dirFn, dimsFn: dimsFn, logger: logger}, nil
}

// Get returns the namespace's handle, opening it on a cache miss.
func (c *HandleCache) Get(ctx context.Context, namespace string) (*Handle, error) {
	if h, ok := c.cache.Get(namespace); ok {
		return h, nil
	}

	dir := c.dirFn(namespace)

	// Persisted stores know their dimension; fresh ones ask the embedder.
	dims, err := store.ReadHNSWStoreDimensions(filepath.Join(dir, vectorsFile))
	if err != nil {
		c.logger.Warn("unreadable vector store metadata",
			slog.String("dir", dir),
			slog.String("error", err.Error()))
		dims = 0
	}
	if dims == 0 {
		dims, err = c.dimsFn(ctx)
		if err != nil {
			return nil, err
		}
	}

	h, err := OpenHandle(ctx, dir, dims, c.logger)
	if err != nil {
		return nil, err
	}
	c.cache.Add(namespace, h)
	return h, nil
}

// Invalidate closes and drops the namespace's cached handle.
func (c *HandleCache) Invalidate(namespace string) {
	c.cache.Remove(namespace)
}

// Purge closes and drops every cached handle.
func (c *HandleCache) Purge() {
	c.cache.Purge()
}
