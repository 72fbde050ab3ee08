package cmd

import (
	"fmt"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/courseindex/internal/daemon"
	"github.com/Aman-CERP/courseindex/internal/output"
)

// stopPollInterval and stopPollAttempts bound how long stop waits for a
// graceful exit before escalating to SIGKILL.
const (
	stopPollInterval = 100 * time.Millisecond
	stopPollAttempts = 50
)

func newStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running indexer daemon",
		Long: `Send SIGTERM to the daemon started by 'courseindex serve' and wait for it
to drain queued work. A daemon that does not exit within five seconds is
killed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runStop(cmd, daemon.NewPIDFile(daemonConfig(cfg).PIDPath))
		},
	}
}

func runStop(cmd *cobra.Command, pidFile *daemon.PIDFile) error {
	out := output.New(cmd.OutOrStdout())

	if !pidFile.IsRunning() {
		out.Status("", "Daemon is not running")
		return nil
	}

	pid, err := pidFile.Read()
	if err != nil {
		return fmt.Errorf("failed to read PID: %w", err)
	}

	if err := pidFile.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to stop daemon: %w", err)
	}

	for range stopPollAttempts {
		time.Sleep(stopPollInterval)
		if !pidFile.IsRunning() {
			out.Successf("Daemon stopped (was pid %d)", pid)
			return nil
		}
	}

	out.Warning("Daemon not responding, sending SIGKILL")
	if err := pidFile.Signal(syscall.SIGKILL); err != nil {
		return fmt.Errorf("failed to kill daemon: %w", err)
	}
	out.Success("Daemon killed")
	return nil
}
