package cmd

import (
	"bytes"
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/courseindex/internal/daemon"
	"github.com/Aman-CERP/courseindex/internal/preflight"
)

func TestServe_AnswersClientsUntilCancelled(t *testing.T) {
	// Given: a daemon serving the fixture with a startup reindex
	fixture := setupCLI(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cmd := NewRootCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--content", fixture, "serve", "--watch=false", "--reindex-on-start"})

	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	client := daemon.NewClient(daemon.DefaultConfig().WithSocket(os.Getenv("COURSEINDEX_SOCKET")))
	require.Eventually(t, client.IsRunning, 10*time.Second, 20*time.Millisecond)

	// When: the queued course reindex finishes
	require.Eventually(t, func() bool {
		res, err := client.Search(ctx, daemon.SearchParams{Fields: map[string]string{"course": cliCourse}})
		return err == nil && res.Total == 4
	}, 10*time.Second, 50*time.Millisecond)

	// Then: status reports the running daemon and its indexes
	status, err := client.Status(ctx)
	require.NoError(t, err)
	assert.True(t, status.Running)
	assert.Equal(t, os.Getpid(), status.PID)
	assert.Equal(t, "bleve", status.Backend)
	assert.Contains(t, status.Indexes, "courseware_index")

	// When: the context is cancelled
	cancel()

	// Then: serve returns cleanly and the socket is gone
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("serve did not stop")
	}
	assert.False(t, client.IsRunning())
	assert.Contains(t, buf.String(), "Socket:")
	assert.Contains(t, buf.String(), "Press Ctrl+C to stop")
	assert.False(t, preflight.NeedsCheck(os.Getenv("COURSEINDEX_DATA_DIR")), "startup checks are recorded")
}
