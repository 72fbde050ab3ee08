package cmd

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Aman-CERP/courseindex/internal/config"
	"github.com/Aman-CERP/courseindex/internal/content"
	"github.com/Aman-CERP/courseindex/internal/daemon"
	ierrors "github.com/Aman-CERP/courseindex/internal/errors"
	"github.com/Aman-CERP/courseindex/internal/service"
)

// backend is the set of calls both the daemon client and a local service
// answer, so commands work the same with or without a running daemon.
type backend interface {
	CoursePublished(ctx context.Context, scope string) (*daemon.EnqueueResult, error)
	LibraryUpdated(ctx context.Context, scope string) (*daemon.ReindexResult, error)
	Reindex(ctx context.Context, params daemon.ReindexParams) (*daemon.ReindexResult, error)
	ReindexAbout(ctx context.Context, scope string) (*daemon.ReindexResult, error)
	Search(ctx context.Context, params daemon.SearchParams) (*daemon.SearchResult, error)
	Check(ctx context.Context, scope string) (*daemon.CheckResult, error)
}

var (
	_ backend = (*daemon.Client)(nil)
	_ backend = (*service.Service)(nil)
)

// loadConfig loads configuration from --config-dir and applies --content.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configDir)
	if err != nil {
		return nil, ierrors.ConfigError("failed to load configuration", err)
	}
	if contentPath != "" {
		cfg.Content.FixturePath = contentPath
	}
	return cfg, nil
}

// daemonConfig returns the daemon settings for cfg.
func daemonConfig(cfg *config.Config) daemon.Config {
	return daemon.DefaultConfig().WithSocket(cfg.Server.SocketPath)
}

// loadContent reads the configured fixture. A missing path is an error
// because a local run has nothing else to index from.
func loadContent(cfg *config.Config) (*content.Fixture, error) {
	if cfg.Content.FixturePath == "" {
		return nil, ierrors.New(ierrors.ErrCodeConfigNotFound, "no content fixture configured", nil).
			WithSuggestion("pass --content <file> or set content.fixture_path")
	}
	return content.LoadFixture(cfg.Content.FixturePath)
}

// openBackend returns the running daemon's client, or a local service over
// the configured content when no daemon answers or local is set. The
// returned close function drains local work before releasing the engines.
func openBackend(ctx context.Context, cfg *config.Config, local bool) (backend, func(), error) {
	client := daemon.NewClient(daemonConfig(cfg))
	if !local && client.IsRunning() {
		slog.Debug("backend_selected", slog.String("mode", "daemon"))
		return client, func() {}, nil
	}

	svc, err := openLocalService(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	slog.Debug("backend_selected", slog.String("mode", "local"))
	return svc, func() { closeLocalService(svc) }, nil
}

// openLocalService builds and starts a service over the configured content.
func openLocalService(ctx context.Context, cfg *config.Config) (*service.Service, error) {
	fx, err := loadContent(cfg)
	if err != nil {
		return nil, err
	}
	svc, err := service.New(cfg, fx)
	if err != nil {
		return nil, err
	}
	svc.Start(ctx)
	return svc, nil
}

func closeLocalService(svc *service.Service) {
	if err := svc.Drain(daemon.DefaultConfig().ShutdownGracePeriod); err != nil {
		slog.Warn("queue_drain_incomplete", slog.String("error", err.Error()))
	}
	if err := svc.Close(); err != nil {
		slog.Warn("service_close_failed", slog.String("error", err.Error()))
	}
}

// remoteError turns a daemon error carrying an indexer code back into an
// IndexerError so callers can match it by code.
func remoteError(err error) error {
	var rpcErr *daemon.Error
	if !stderrors.As(err, &rpcErr) {
		return err
	}
	code, ok := rpcErr.Data.(string)
	if !ok || code == "" {
		return err
	}
	return ierrors.New(code, rpcErr.Message, err)
}

// parseSince accepts an RFC 3339 time or a duration meaning "that long ago".
func parseSince(raw string, now time.Time) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return now.Add(-d), nil
	}
	return time.Time{}, ierrors.ValidationError(
		fmt.Sprintf("--since %q is neither an RFC 3339 time nor a positive duration", raw), nil)
}
