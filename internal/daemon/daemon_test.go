package daemon

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDaemon_Run(t *testing.T) {
	// Given: a daemon on a fresh socket
	cfg := DefaultConfig()
	cfg.SocketPath = testSocketPath(t)
	cfg.PIDPath = filepath.Join(t.TempDir(), "indexer.pid")
	d, err := New(cfg, &fakeHandler{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	// Then: it answers pings and owns the PID file
	client := NewClient(cfg)
	require.Eventually(t, client.IsRunning, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, client.Ping(context.Background()))
	pid, err := NewPIDFile(cfg.PIDPath).Read()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)

	// When: the context is cancelled
	cancel()

	// Then: it exits cleanly and removes the PID file
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("daemon did not stop")
	}
	_, err = os.Stat(cfg.PIDPath)
	assert.True(t, os.IsNotExist(err))
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(Config{}, &fakeHandler{})
	assert.Error(t, err)
}
