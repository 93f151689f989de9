package config

import "path/filepath"

// Namespace directory layout under DataDir:
//
//	<data_dir>/<namespace>/docs/             raw source files
//	<data_dir>/<namespace>/vector_db/        vector index, chunk catalog, manifests
//	<data_dir>/<namespace>/chunks/           exported chunk files
//	<data_dir>/<namespace>/custom_chunks/    hand-written chunk files
//	<data_dir>/<namespace>/.sync.lock        single-writer sync lock

// NamespaceDir returns the root directory of a namespace.
func (c *Config) NamespaceDir(namespace string) string {
	return filepath.Join(c.DataDir, namespace)
}

// DocsDir returns the raw document directory for a namespace.
func (c *Config) DocsDir(namespace string) string {
	return filepath.Join(c.NamespaceDir(namespace), "docs")
}

// VectorDBDir returns the index storage directory for a namespace.
func (c *Config) VectorDBDir(namespace string) string {
	return filepath.Join(c.NamespaceDir(namespace), "vector_db")
}

// ChunksDir returns the chunk export directory for a namespace.
func (c *Config) ChunksDir(namespace string) string {
	return filepath.Join(c.NamespaceDir(namespace), "chunks")
}

// CustomChunksDir returns the hand-written chunk directory for a namespace.
func (c *Config) CustomChunksDir(namespace string) string {
	return filepath.Join(c.NamespaceDir(namespace), "custom_chunks")
}

// ManifestPath returns the processed-source manifest path for a namespace.
func (c *Config) ManifestPath(namespace string) string {
	return filepath.Join(c.VectorDBDir(namespace), "files.txt")
}

// CustomManifestPath returns the custom-chunk manifest path for a namespace.
func (c *Config) CustomManifestPath(namespace string) string {
	return filepath.Join(c.VectorDBDir(namespace), "custom_files.txt")
}

// LockPath returns the sync lock file path for a namespace.
func (c *Config) LockPath(namespace string) string {
	return filepath.Join(c.NamespaceDir(namespace), ".sync.lock")
}
