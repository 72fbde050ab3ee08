package cmd

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/courseindex/internal/config"
	"github.com/Aman-CERP/courseindex/internal/daemon"
	ierrors "github.com/Aman-CERP/courseindex/internal/errors"
)

func TestParseSince(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		raw     string
		want    time.Time
		wantErr bool
	}{
		{name: "empty means full", raw: "", want: time.Time{}},
		{name: "rfc3339", raw: "2024-04-30T08:00:00Z", want: time.Date(2024, 4, 30, 8, 0, 0, 0, time.UTC)},
		{name: "duration ago", raw: "2h", want: now.Add(-2 * time.Hour)},
		{name: "negative duration", raw: "-2h", wantErr: true},
		{name: "garbage", raw: "last week", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseSince(tt.raw, now)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, ierrors.ErrCodeInvalidInput, ierrors.GetCode(err))
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %v", got)
		})
	}
}

func TestRemoteError(t *testing.T) {
	t.Run("nil stays nil", func(t *testing.T) {
		assert.NoError(t, remoteError(nil))
	})

	t.Run("indexer code is restored", func(t *testing.T) {
		rpc := &daemon.Error{Code: -32000, Message: "course not found", Data: ierrors.ErrCodeNodeNotFound}

		err := remoteError(fmt.Errorf("call failed: %w", rpc))

		require.Error(t, err)
		assert.True(t, ierrors.IsNotFound(err))
		assert.ErrorIs(t, err, rpc)
	})

	t.Run("error without code passes through", func(t *testing.T) {
		rpc := &daemon.Error{Code: -32601, Message: "method not found"}
		assert.Same(t, rpc, remoteError(rpc))
	})

	t.Run("plain error passes through", func(t *testing.T) {
		plain := errors.New("connection refused")
		assert.Same(t, plain, remoteError(plain))
	})
}

func TestBackendName_MatchesOpenedBackend(t *testing.T) {
	tests := map[string]string{
		"SQLite": "sqlite",
		"bleve":  "bleve",
		"":       "none",
		"none":   "none",
		"solr":   "solr",
	}
	for configured, want := range tests {
		cfg := config.NewConfig()
		cfg.Engine.Backend = configured
		assert.Equal(t, want, backendName(cfg), configured)
	}
}

func TestDaemonConfig_UsesConfiguredSocket(t *testing.T) {
	setupCLI(t)
	cfg, err := loadConfig()
	require.NoError(t, err)

	dcfg := daemonConfig(cfg)

	assert.Equal(t, cfg.Server.SocketPath, dcfg.SocketPath)
}

func TestLoadContent_RequiresPath(t *testing.T) {
	setupCLI(t)
	cfg, err := loadConfig()
	require.NoError(t, err)
	cfg.Content.FixturePath = ""

	_, err = loadContent(cfg)

	require.Error(t, err)
	assert.Equal(t, ierrors.ErrCodeConfigNotFound, ierrors.GetCode(err))
}

func TestOpenBackend_FallsBackToLocal(t *testing.T) {
	// Given: no daemon on the configured socket
	fixture := setupCLI(t)
	cfg, err := loadConfig()
	require.NoError(t, err)
	cfg.Content.FixturePath = fixture

	// When: opening a backend
	b, closeBackend, err := openBackend(context.Background(), cfg, false)
	require.NoError(t, err)
	defer closeBackend()

	// Then: a local service answers
	_, isClient := b.(*daemon.Client)
	assert.False(t, isClient)
	res, err := b.Reindex(context.Background(), daemon.ReindexParams{Scope: cliCourse})
	require.NoError(t, err)
	assert.Equal(t, 4, res.Indexed)
}
