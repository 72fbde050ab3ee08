package search

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// LockFileName is created in the data directory while a Manager owns it.
const LockFileName = ".courseindex.lock"

// FileLock is a cross-process lock on a data directory.
type FileLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewFileLock creates a lock for dir. The lock file is <dir>/.courseindex.lock.
func NewFileLock(dir string) *FileLock {
	lockPath := filepath.Join(dir, LockFileName)
	return &FileLock{
		path:  lockPath,
		flock: flock.New(lockPath),
	}
}

// TryLock acquires the lock without blocking. It returns false when another
// process holds it.
func (l *FileLock) TryLock() (bool, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return false, fmt.Errorf("failed to create lock directory: %w", err)
	}

	acquired, err := l.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if acquired {
		l.locked = true
	}
	return acquired, nil
}

// Unlock releases the lock. Unlocking an unlocked FileLock is a no-op.
func (l *FileLock) Unlock() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// Path returns the lock file path.
func (l *FileLock) Path() string { return l.path }

// IsLocked reports whether this FileLock holds the lock.
func (l *FileLock) IsLocked() bool { return l.locked }
