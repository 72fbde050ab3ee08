package cmd

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/courseindex/internal/config"
	"github.com/Aman-CERP/courseindex/internal/content"
	"github.com/Aman-CERP/courseindex/internal/daemon"
	ierrors "github.com/Aman-CERP/courseindex/internal/errors"
	"github.com/Aman-CERP/courseindex/internal/logging"
	"github.com/Aman-CERP/courseindex/internal/metrics"
	"github.com/Aman-CERP/courseindex/internal/output"
	"github.com/Aman-CERP/courseindex/internal/preflight"
	"github.com/Aman-CERP/courseindex/internal/service"
	"github.com/Aman-CERP/courseindex/internal/watcher"
)

type serveOptions struct {
	watch          bool
	reindexOnStart bool
}

func newServeCmd() *cobra.Command {
	opts := serveOptions{watch: true}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the indexing daemon in the foreground",
		Long: `Run the indexing daemon. It answers content events, reindex requests and
searches on a Unix socket, runs queued course reindexes in the background,
and reloads the content fixture when the file changes.

When metrics.addr is set, Prometheus metrics are served on /metrics and a
health report on /health.

Stop it with Ctrl+C, SIGTERM, or 'courseindex stop'.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.watch, "watch", opts.watch, "Reload the content fixture when it changes")
	cmd.Flags().BoolVar(&opts.reindexOnStart, "reindex-on-start", false, "Announce every scope in the content at startup")
	return cmd
}

func runServe(ctx context.Context, cmd *cobra.Command, opts serveOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := setupDaemonLogging(cfg); err != nil {
		return err
	}

	if err := runStartupChecks(ctx, cfg); err != nil {
		return err
	}

	var fx *content.Fixture
	if cfg.Content.FixturePath != "" {
		if fx, err = content.LoadFixture(cfg.Content.FixturePath); err != nil {
			return err
		}
	} else {
		slog.Warn("no_content_configured", slog.String("hint", "pass --content or set content.fixture_path"))
	}

	svc, err := service.New(cfg, fx)
	if err != nil {
		return err
	}
	dcfg := daemonConfig(cfg)
	defer func() {
		if err := svc.Drain(dcfg.ShutdownGracePeriod); err != nil {
			slog.Warn("queue_drain_incomplete", slog.String("error", err.Error()))
		}
		if err := svc.Close(); err != nil {
			slog.Warn("service_close_failed", slog.String("error", err.Error()))
		}
	}()

	d, err := daemon.New(dcfg, svc)
	if err != nil {
		return err
	}

	out := output.New(cmd.OutOrStdout())
	out.Statusf("", "Socket:  %s", dcfg.SocketPath)
	out.Statusf("", "Backend: %s", backendName(cfg))
	out.Statusf("", "Logs:    %s", logging.DefaultLogPath())

	// Queued work outlives the signal and is drained on the way out.
	svc.Start(context.WithoutCancel(ctx))
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return d.Run(ctx) })

	if opts.reindexOnStart && fx != nil {
		g.Go(func() error {
			if err := svc.Reload(ctx, fx); err != nil {
				slog.Warn("startup_reindex_incomplete", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	if opts.watch && cfg.Content.FixturePath != "" {
		reloader, err := watcher.NewReloader(cfg.Content.FixturePath,
			watcher.Options{DebounceWindow: cfg.WatchDebounce()}, svc.Reload)
		if err != nil {
			return err
		}
		g.Go(func() error { return ignoreCanceled(reloader.Run(ctx)) })
	}

	if cfg.Metrics.Addr != "" {
		srv, err := startMetrics(ctx, g, cfg, svc)
		if err != nil {
			return err
		}
		out.Statusf("", "Metrics: http://%s/metrics", srv.Addr())
	}

	out.Status("", "Press Ctrl+C to stop")
	err = g.Wait()
	slog.Info("serve_stopped")
	return ignoreCanceled(err)
}

// startMetrics binds the metrics listener and serves it until ctx is done.
func startMetrics(ctx context.Context, g *errgroup.Group, cfg *config.Config, svc *service.Service) (*metrics.Server, error) {
	srv := metrics.NewServer(cfg.Metrics.Addr, svc.Metrics(), svc.Health)
	if err := srv.Listen(); err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", cfg.Metrics.Addr, err)
	}
	g.Go(srv.Serve)
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return srv, nil
}

// runStartupChecks runs the preflight checks the first time the daemon
// starts on a data directory and refuses to start on a critical failure.
func runStartupChecks(ctx context.Context, cfg *config.Config) error {
	dir := cfg.Engine.DataDir
	if dir == "" || !preflight.NeedsCheck(dir) {
		return nil
	}
	checker := preflight.New()
	results := checker.RunAll(ctx, preflightTarget(cfg.Engine.Backend, dir, cfg.Content.FixturePath))
	for _, r := range results {
		if r.Status != preflight.StatusPass {
			slog.Warn("preflight_check",
				slog.String("check", r.Name),
				slog.String("status", r.Status.String()),
				slog.String("message", r.Message))
		}
	}
	if checker.HasCriticalFailures(results) {
		return ierrors.New(ierrors.ErrCodeConfigInvalid, "startup checks failed", nil).
			WithSuggestion("run 'courseindex doctor' for details")
	}
	if err := preflight.MarkPassed(dir); err != nil {
		slog.Warn("preflight_marker_failed", slog.String("error", err.Error()))
	}
	return nil
}

// setupDaemonLogging replaces the CLI logger with one at the configured level
// that also writes to stderr.
func setupDaemonLogging(cfg *config.Config) error {
	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Server.LogLevel
	if debugMode {
		logCfg.Level = "debug"
	}

	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	if loggingCleanup != nil {
		loggingCleanup()
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	return nil
}

func ignoreCanceled(err error) error {
	if stderrors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
