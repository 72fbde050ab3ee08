// Package daemon runs the indexer as a background service. Content events,
// reindex requests and searches arrive as JSON-RPC calls on a Unix socket.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config holds configuration for the daemon service.
type Config struct {
	// SocketPath is the Unix domain socket path for IPC.
	// Default: ~/.courseindex/indexer.sock
	SocketPath string

	// PIDPath is the file path for storing the daemon's process ID.
	// Default: ~/.courseindex/indexer.pid
	PIDPath string

	// Timeout is the maximum duration for client-daemon communication.
	// Default: 30s
	Timeout time.Duration

	// ShutdownGracePeriod bounds how long shutdown waits for queued tasks.
	// Default: 10s
	ShutdownGracePeriod time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	dir := filepath.Join(home, ".courseindex")

	return Config{
		SocketPath:          filepath.Join(dir, "indexer.sock"),
		PIDPath:             filepath.Join(dir, "indexer.pid"),
		Timeout:             30 * time.Second,
		ShutdownGracePeriod: 10 * time.Second,
	}
}

// WithSocket returns c with the socket path replaced and the PID file next
// to it. An empty path leaves c unchanged.
func (c Config) WithSocket(path string) Config {
	if path == "" {
		return c
	}
	c.SocketPath = path
	c.PIDPath = filepath.Join(filepath.Dir(path), "indexer.pid")
	return c
}

// Validate checks that the configuration is valid.
func (c Config) Validate() error {
	if c.SocketPath == "" {
		return fmt.Errorf("socket path cannot be empty")
	}
	if c.PIDPath == "" {
		return fmt.Errorf("PID path cannot be empty")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.ShutdownGracePeriod <= 0 {
		return fmt.Errorf("shutdown grace period must be positive")
	}
	return nil
}

// EnsureDir creates the directories for the socket and PID files.
func (c Config) EnsureDir() error {
	socketDir := filepath.Dir(c.SocketPath)
	if err := os.MkdirAll(socketDir, 0755); err != nil {
		return fmt.Errorf("failed to create socket directory: %w", err)
	}

	pidDir := filepath.Dir(c.PIDPath)
	if pidDir != socketDir {
		if err := os.MkdirAll(pidDir, 0755); err != nil {
			return fmt.Errorf("failed to create PID directory: %w", err)
		}
	}
	return nil
}
