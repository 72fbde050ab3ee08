package cmd

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/courseindex/internal/config"
	"github.com/Aman-CERP/courseindex/internal/content"
	"github.com/Aman-CERP/courseindex/internal/daemon"
	"github.com/Aman-CERP/courseindex/internal/ui"
)

func newStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, index and content status",
		Long: `Report whether the daemon is running, which indexes exist in the data
directory and how much content the configured fixture holds. Works without
a running daemon by inspecting the data directory directly.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			info := collectStatus(cmd.Context(), cfg)

			renderer := ui.NewStatusRenderer(cmd.OutOrStdout(),
				!ui.IsTTY(cmd.OutOrStdout()) || ui.DetectNoColor())
			if jsonOutput {
				return renderer.RenderJSON(info)
			}
			return renderer.Render(info)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

// collectStatus gathers status from the daemon when it answers and from
// the filesystem otherwise. Failures degrade to missing fields.
func collectStatus(ctx context.Context, cfg *config.Config) ui.StatusInfo {
	info := ui.StatusInfo{
		Backend: backendName(cfg),
		DataDir: cfg.Engine.DataDir,
		Queue:   "n/a",
	}

	client := daemon.NewClient(daemonConfig(cfg))
	if client.IsRunning() {
		status, err := client.Status(ctx)
		if err != nil {
			slog.Warn("daemon_status_failed", slog.String("error", err.Error()))
		} else {
			info.Running = true
			info.PID = status.PID
			info.Uptime = status.Uptime
			info.Backend = status.Backend
			info.Indexes = status.Indexes
			if q := status.Queue; q != nil {
				info.Queue = q.Status
				info.QueuePending = q.Pending
				info.QueueFailed = q.Failed
				info.LastError = q.LastError
			}
		}
	}

	if !info.Running {
		info.Indexes = indexesOnDisk(cfg.Engine.DataDir)
	}
	info.DataSize = dirSize(cfg.Engine.DataDir)

	if path := cfg.Content.FixturePath; path != "" {
		info.Content = path
		if st, err := os.Stat(path); err == nil {
			info.Modified = st.ModTime()
		}
		if fx, err := content.LoadFixture(path); err == nil {
			info.Courses = len(fx.Courses)
			info.Libraries = len(fx.Libraries)
		} else {
			slog.Warn("fixture_unreadable", slog.String("path", path), slog.String("error", err.Error()))
		}
	}
	return info
}

// indexesOnDisk lists index names stored under dataDir by either backend.
func indexesOnDisk(dataDir string) []string {
	if dataDir == "" {
		return nil
	}
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		name := e.Name()
		switch {
		case e.IsDir() && strings.HasSuffix(name, ".bleve"):
			names = append(names, strings.TrimSuffix(name, ".bleve"))
		case !e.IsDir() && strings.HasSuffix(name, ".db"):
			names = append(names, strings.TrimSuffix(name, ".db"))
		}
	}
	sort.Strings(names)
	return names
}

// dirSize sums the sizes of regular files under dir.
func dirSize(dir string) int64 {
	if dir == "" {
		return 0
	}
	var total int64
	_ = filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.Type().IsRegular() {
			if fi, err := d.Info(); err == nil {
				total += fi.Size()
			}
		}
		return nil
	})
	return total
}
