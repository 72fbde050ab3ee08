package daemon

import (
	"context"
	"errors"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ierrors "github.com/Aman-CERP/courseindex/internal/errors"
)

func clientFor(socketPath string) *Client {
	return NewClient(Config{SocketPath: socketPath, Timeout: 5 * time.Second})
}

func TestNewClient(t *testing.T) {
	cfg := DefaultConfig()
	client := NewClient(cfg)

	assert.Equal(t, cfg.SocketPath, client.socketPath)
	assert.Equal(t, cfg.Timeout, client.timeout)
}

func TestClient_IsRunning(t *testing.T) {
	assert.False(t, clientFor(filepath.Join(t.TempDir(), "none.sock")).IsRunning())

	socketPath := testSocketPath(t)
	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)
	defer listener.Close()
	assert.True(t, clientFor(socketPath).IsRunning())
}

func TestClient_Calls(t *testing.T) {
	// Given: a daemon with a fake handler
	h := &fakeHandler{}
	client := clientFor(startServer(t, h))
	ctx := context.Background()

	// Then: every method round-trips
	require.NoError(t, client.Ping(ctx))

	status, err := client.Status(ctx)
	require.NoError(t, err)
	assert.True(t, status.Running)
	assert.Equal(t, "bleve", status.Backend)

	queued, err := client.CoursePublished(ctx, "course-v1:edX+X+1")
	require.NoError(t, err)
	assert.Equal(t, "task-1", queued.TaskID)

	lib, err := client.LibraryUpdated(ctx, "library-v1:edX+L")
	require.NoError(t, err)
	assert.Equal(t, 2, lib.Indexed)

	since := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	res, err := client.Reindex(ctx, ReindexParams{Kind: "course", Scope: "course-v1:edX+X+1", Since: since})
	require.NoError(t, err)
	assert.Equal(t, "incremental", res.Mode)
	require.Len(t, h.reindexed, 1)
	assert.True(t, h.reindexed[0].Since.Equal(since))

	about, err := client.ReindexAbout(ctx, "course-v1:edX+X+1")
	require.NoError(t, err)
	assert.Equal(t, 1, about.Indexed)

	found, err := client.Search(ctx, SearchParams{Query: "Html Content"})
	require.NoError(t, err)
	require.Len(t, found.Results, 1)
	assert.Equal(t, 1.5, found.Results[0].Score)

	check, err := client.Check(ctx, "course-v1:edX+X+1")
	require.NoError(t, err)
	assert.True(t, check.Consistent)
}

func TestClient_ReturnsRPCError(t *testing.T) {
	client := clientFor(startServer(t, &fakeHandler{
		err: ierrors.SearchIndexingError("course-v1:edX+X+1", errors.New("engine down")),
	}))

	_, err := client.Reindex(context.Background(), ReindexParams{Scope: "course-v1:edX+X+1"})

	var rpcErr *Error
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, ErrCodeIndexingFailed, rpcErr.Code)
	assert.Contains(t, rpcErr.Message, "course-v1:edX+X+1")
}

func TestClient_ValidatesBeforeSending(t *testing.T) {
	client := clientFor(filepath.Join(t.TempDir(), "none.sock"))

	_, err := client.Reindex(context.Background(), ReindexParams{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid params")
}

func TestClient_ConnectFails(t *testing.T) {
	client := clientFor(filepath.Join(t.TempDir(), "none.sock"))

	err := client.Ping(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect")
}
