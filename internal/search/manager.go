package search

import (
	stderrors "errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	ierrors "github.com/Aman-CERP/courseindex/internal/errors"
)

// Manager opens one engine per index name and owns their lifetime. Disk
// backed managers hold a lock on the data directory from the first open
// until Close.
type Manager struct {
	mu      sync.Mutex
	backend Backend
	dataDir string
	engines map[string]Engine
	lock    *FileLock
	closed  bool
}

// NewManager creates a manager. An empty dataDir keeps every index in
// memory. BackendNone yields a manager whose Engine always returns
// ErrDisabled.
func NewManager(backend Backend, dataDir string) *Manager {
	return &Manager{
		backend: backend,
		dataDir: dataDir,
		engines: make(map[string]Engine),
	}
}

// Enabled reports whether indexing is configured.
func (m *Manager) Enabled() bool {
	return m.backend != BackendNone && m.backend != ""
}

// Backend returns the configured backend.
func (m *Manager) Backend() Backend { return m.backend }

// Engine returns the engine for the named index, opening it on first use.
func (m *Manager) Engine(name string) (Engine, error) {
	if !m.Enabled() {
		return nil, ErrDisabled
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ierrors.New(ierrors.ErrCodeEngineUnavailable, "search manager is closed", nil)
	}
	if e, ok := m.engines[name]; ok {
		return e, nil
	}

	if m.dataDir != "" && m.lock == nil {
		lock := NewFileLock(m.dataDir)
		acquired, err := lock.TryLock()
		if err != nil {
			return nil, ierrors.New(ierrors.ErrCodeEngineUnavailable, "cannot lock data directory", err).
				WithDetail("path", lock.Path())
		}
		if !acquired {
			return nil, ierrors.New(ierrors.ErrCodeIndexLocked, "data directory is used by another process", nil).
				WithDetail("path", lock.Path()).
				WithSuggestion("stop the running daemon or use the sqlite backend")
		}
		m.lock = lock
	}

	path := IndexPath(m.dataDir, m.backend, name)
	e, err := NewEngine(m.backend, path)
	if err != nil {
		return nil, ierrors.New(ierrors.ErrCodeEngineUnavailable, fmt.Sprintf("cannot open index %s", name), err).
			WithDetail("path", path)
	}
	m.engines[name] = e
	slog.Debug("search_index_opened",
		slog.String("index", name),
		slog.String("backend", string(m.backend)),
		slog.String("path", path))
	return e, nil
}

// Names returns the names of the open indexes, sorted.
func (m *Manager) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, 0, len(m.engines))
	for name := range m.engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close closes every engine and releases the directory lock.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true

	var errs []error
	for name, e := range m.engines {
		if err := e.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
	}
	m.engines = nil
	if m.lock != nil {
		if err := m.lock.Unlock(); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}
