// Package index tracks which sources are indexed and keeps the
// per-namespace stores synchronized with the document directory.
package index

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	qerr "github.com/docquery/docquery/internal/errors"
)

// Manifest is a line-oriented record of processed IDs, one per line.
// Appends are cheap; removal rewrites the file.
type Manifest struct {
	mu   sync.Mutex
	path string
}

// NewManifest creates a manifest backed by the given file. The file is
// created lazily on first append.
func NewManifest(path string) *Manifest {
	return &Manifest{path: path}
}

// Entries returns the recorded IDs in file order. A missing file is an
// empty manifest.
func (m *Manifest) Entries() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.read()
}

// Set returns the recorded IDs as a set.
func (m *Manifest) Set() (map[string]struct{}, error) {
	entries, err := m.Entries()
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		set[e] = struct{}{}
	}
	return set, nil
}

// Append records IDs at the end of the manifest.
func (m *Manifest) Append(ids ...string) error {
	if len(ids) == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return qerr.New(qerr.ErrCodeManifestIO, "failed to create manifest directory", err)
	}

	f, err := os.OpenFile(m.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return qerr.New(qerr.ErrCodeManifestIO, "failed to open manifest", err)
	}
	defer func() { _ = f.Close() }()

	for _, id := range ids {
		if _, err := fmt.Fprintln(f, id); err != nil {
			return qerr.New(qerr.ErrCodeManifestIO, "failed to append to manifest", err)
		}
	}
	return f.Sync()
}

// Remove deletes an ID, rewriting the manifest atomically.
func (m *Manifest) Remove(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries, err := m.read()
	if err != nil {
		return err
	}

	kept := entries[:0]
	for _, e := range entries {
		if e != id {
			kept = append(kept, e)
		}
	}
	return m.write(kept)
}

// Clear removes every entry.
func (m *Manifest) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	err := os.Remove(m.path)
	if err != nil && !os.IsNotExist(err) {
		return qerr.New(qerr.ErrCodeManifestIO, "failed to clear manifest", err)
	}
	return nil
}

func (m *Manifest) read() ([]string, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, qerr.New(qerr.ErrCodeManifestIO, "failed to read manifest", err)
	}

	var entries []string
	for _, line := range strings.Split(string(data), "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			entries = append(entries, trimmed)
		}
	}
	return entries, nil
}

func (m *Manifest) write(entries []string) error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return qerr.New(qerr.ErrCodeManifestIO, "failed to create manifest directory", err)
	}

	tmpPath := m.path + ".tmp"
	var b strings.Builder
	for _, e := range entries {
		b.WriteString(e)
		b.WriteString("\n")
	}
	if err := os.WriteFile(tmpPath, []byte(b.String()), 0o644); err != nil {
		return qerr.New(qerr.ErrCodeManifestIO, "failed to write manifest", err)
	}
	if err := os.Rename(tmpPath, m.path); err != nil {
		_ = os.Remove(tmpPath)
		return qerr.New(qerr.ErrCodeManifestIO, "failed to replace manifest", err)
	}
	return nil
}
