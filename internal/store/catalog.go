package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/docquery/docquery/internal/chunk"
)

// Catalog is the durable chunk catalog backed by SQLite. It is the
// source of truth for chunk text: the lexical index is rebuilt from it
// on open, and retrieval results resolve their text through it.
type Catalog struct {
	mu     sync.RWMutex
	db     *sql.DB
	closed bool
}

const catalogSchema = `
CREATE TABLE IF NOT EXISTS chunks (
	fingerprint TEXT PRIMARY KEY,
	source_id   TEXT NOT NULL,
	seq         INTEGER NOT NULL,
	text        TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chunks_source ON chunks(source_id);
`

// OpenCatalog opens or creates the chunk catalog at path.
func OpenCatalog(path string) (*Catalog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create catalog directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}

	if _, err := db.Exec(catalogSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create catalog schema: %w", err)
	}

	return &Catalog{db: db}, nil
}

// Add inserts chunks, ignoring fingerprints already present.
func (c *Catalog) Add(ctx context.Context, chunks []chunk.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("catalog is closed")
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO chunks (fingerprint, source_id, seq, text) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, ch := range chunks {
		if _, err := stmt.ExecContext(ctx, ch.Fingerprint, ch.SourceID, ch.Seq, ch.Text); err != nil {
			return fmt.Errorf("failed to insert chunk %s: %w", ch.Fingerprint, err)
		}
	}

	return tx.Commit()
}

// DeleteSource removes all chunks of a source and returns their
// fingerprints so the caller can evict them from the other indexes.
func (c *Catalog) DeleteSource(ctx context.Context, sourceID string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, fmt.Errorf("catalog is closed")
	}

	rows, err := c.db.QueryContext(ctx, `SELECT fingerprint FROM chunks WHERE source_id = ?`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query source chunks: %w", err)
	}
	var fingerprints []string
	for rows.Next() {
		var fp string
		if err := rows.Scan(&fp); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("failed to scan fingerprint: %w", err)
		}
		fingerprints = append(fingerprints, fp)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("failed to iterate fingerprints: %w", err)
	}
	_ = rows.Close()

	if _, err := c.db.ExecContext(ctx, `DELETE FROM chunks WHERE source_id = ?`, sourceID); err != nil {
		return nil, fmt.Errorf("failed to delete source chunks: %w", err)
	}

	return fingerprints, nil
}

// All returns every chunk in the catalog ordered by source and sequence.
// Used to rebuild the lexical index on open.
func (c *Catalog) All(ctx context.Context) ([]chunk.Chunk, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, fmt.Errorf("catalog is closed")
	}

	rows, err := c.db.QueryContext(ctx,
		`SELECT fingerprint, source_id, seq, text FROM chunks ORDER BY source_id, seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var chunks []chunk.Chunk
	for rows.Next() {
		var ch chunk.Chunk
		if err := rows.Scan(&ch.Fingerprint, &ch.SourceID, &ch.Seq, &ch.Text); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		chunks = append(chunks, ch)
	}
	return chunks, rows.Err()
}

// Get resolves fingerprints to chunks. Missing fingerprints are absent
// from the result map.
func (c *Catalog) Get(ctx context.Context, fingerprints []string) (map[string]chunk.Chunk, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, fmt.Errorf("catalog is closed")
	}

	result := make(map[string]chunk.Chunk, len(fingerprints))
	stmt, err := c.db.PrepareContext(ctx,
		`SELECT fingerprint, source_id, seq, text FROM chunks WHERE fingerprint = ?`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare lookup: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, fp := range fingerprints {
		var ch chunk.Chunk
		err := stmt.QueryRowContext(ctx, fp).Scan(&ch.Fingerprint, &ch.SourceID, &ch.Seq, &ch.Text)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to look up chunk %s: %w", fp, err)
		}
		result[ch.Fingerprint] = ch
	}

	return result, nil
}

// Sources returns the distinct source IDs with their chunk counts.
func (c *Catalog) Sources(ctx context.Context) (map[string]int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, fmt.Errorf("catalog is closed")
	}

	rows, err := c.db.QueryContext(ctx,
		`SELECT source_id, COUNT(*) FROM chunks GROUP BY source_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sources: %w", err)
	}
	defer func() { _ = rows.Close() }()

	sources := make(map[string]int)
	for rows.Next() {
		var id string
		var count int
		if err := rows.Scan(&id, &count); err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		sources[id] = count
	}
	return sources, rows.Err()
}

// Count returns the number of chunks in the catalog.
func (c *Catalog) Count(ctx context.Context) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return 0, fmt.Errorf("catalog is closed")
	}

	var count int
	err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&count)
	return count, err
}

// Close closes the catalog.
func (c *Catalog) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	return c.db.Close()
}
