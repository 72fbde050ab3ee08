package cmd

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/courseindex/internal/daemon"
	"github.com/Aman-CERP/courseindex/internal/mcp"
)

func newMCPCmd() *cobra.Command {
	var local bool

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the courseware index to AI assistants over MCP (stdio)",
		Long: `Run a Model Context Protocol server on stdin/stdout exposing the
search_courseware, reindex_course and index_status tools.

Calls go to the running daemon when there is one. Otherwise the server
opens the indexes itself over the configured content.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runMCP(ctx, local)
		},
	}

	cmd.Flags().BoolVar(&local, "local", false, "Open the indexes in-process even if the daemon is running")
	return cmd
}

func runMCP(ctx context.Context, local bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var b mcp.Backend
	client := daemon.NewClient(daemonConfig(cfg))
	if !local && client.IsRunning() {
		slog.Info("mcp_backend", slog.String("mode", "daemon"))
		b = &daemonBackend{client: client}
	} else {
		svc, err := openLocalService(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeLocalService(svc)
		slog.Info("mcp_backend", slog.String("mode", "local"))
		b = svc
	}

	srv, err := mcp.NewServer(b)
	if err != nil {
		return err
	}
	return srv.Serve(ctx)
}

// daemonBackend adapts the daemon client to the MCP backend, restoring
// indexer error codes so tool errors map the same as in-process ones.
type daemonBackend struct {
	client *daemon.Client
}

func (d *daemonBackend) Search(ctx context.Context, params daemon.SearchParams) (*daemon.SearchResult, error) {
	res, err := d.client.Search(ctx, params)
	return res, remoteError(err)
}

func (d *daemonBackend) CoursePublished(ctx context.Context, scope string) (*daemon.EnqueueResult, error) {
	res, err := d.client.CoursePublished(ctx, scope)
	return res, remoteError(err)
}

func (d *daemonBackend) Reindex(ctx context.Context, params daemon.ReindexParams) (*daemon.ReindexResult, error) {
	res, err := d.client.Reindex(ctx, params)
	return res, remoteError(err)
}

// Status reports a stopped daemon when it stops answering mid-session.
func (d *daemonBackend) Status() daemon.StatusResult {
	status, err := d.client.Status(context.Background())
	if err != nil {
		slog.Warn("daemon_status_failed", slog.String("error", err.Error()))
		return daemon.StatusResult{Backend: "unknown"}
	}
	return *status
}
