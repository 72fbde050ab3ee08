package search

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ParseBackend validates a configured backend name, ignoring case and
// surrounding space. The empty name means disabled.
func ParseBackend(name string) (Backend, error) {
	b := Backend(strings.ToLower(strings.TrimSpace(name)))
	switch b {
	case BackendBleve, BackendSQLite:
		return b, nil
	case BackendNone, "":
		return BackendNone, nil
	default:
		return "", fmt.Errorf("unknown search backend: %s (valid options: bleve, sqlite, none)", name)
	}
}

// NewEngine opens an engine of the given backend at path. An empty path
// opens an in-memory engine. BackendNone returns ErrDisabled.
func NewEngine(backend Backend, path string) (Engine, error) {
	switch backend {
	case BackendBleve:
		return NewBleveEngine(path)
	case BackendSQLite:
		return NewSQLiteEngine(path)
	case BackendNone, "":
		return nil, ErrDisabled
	default:
		return nil, fmt.Errorf("unknown search backend: %s (valid options: bleve, sqlite, none)", backend)
	}
}

// IndexPath returns where the named index of backend lives under dataDir:
// a directory for bleve, a database file for SQLite.
func IndexPath(dataDir string, backend Backend, name string) string {
	if dataDir == "" {
		return ""
	}
	base := filepath.Join(dataDir, name)
	switch backend {
	case BackendSQLite:
		return base + ".db"
	default:
		return base + ".bleve"
	}
}
