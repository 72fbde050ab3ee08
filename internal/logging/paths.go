package logging

import (
	"os"
	"path/filepath"
)

// DefaultLogDir returns the default log directory (~/.courseindex/logs/).
// Falls back to the temp directory if the home directory is unavailable.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".courseindex", "logs")
	}
	return filepath.Join(home, ".courseindex", "logs")
}

// DefaultLogPath returns the default indexer log path.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "indexer.log")
}
