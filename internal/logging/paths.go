package logging

import (
	"path/filepath"
)

// LogPath returns the log file path under the given data directory.
func LogPath(dataDir string) string {
	return filepath.Join(dataDir, "logs", "docquery.log")
}
