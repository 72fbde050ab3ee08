// Package cmd provides the CLI commands for courseindex.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	ierrors "github.com/Aman-CERP/courseindex/internal/errors"
	"github.com/Aman-CERP/courseindex/internal/logging"
	"github.com/Aman-CERP/courseindex/internal/profiling"
	"github.com/Aman-CERP/courseindex/pkg/version"
)

// Global flags.
var (
	debugMode   bool
	configDir   string
	contentPath string
	profileOpts profiling.Options
)

// Hooks state, reset by every PersistentPreRunE.
var (
	loggingCleanup func()
	profileSession *profiling.Session
)

// NewRootCmd creates the root command for the courseindex CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "courseindex",
		Short: "Courseware search indexer",
		Long: `courseindex turns published course content and content libraries into
searchable documents and keeps a search engine in step with content changes.

Content is read from a YAML fixture (--content). Indexes live in the
configured data directory and are served by the daemon ('courseindex serve'),
by one-shot commands, or to AI assistants over MCP ('courseindex mcp').`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("courseindex version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to stderr and ~/.courseindex/logs/")
	cmd.PersistentFlags().StringVar(&configDir, "config-dir", ".", "Directory holding .courseindex.yaml")
	cmd.PersistentFlags().StringVar(&contentPath, "content", "", "Content fixture file (overrides content.fixture_path)")
	cmd.PersistentFlags().StringVar(&profileOpts.CPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&profileOpts.Mem, "profile-mem", "", "Write memory profile to file")
	cmd.PersistentFlags().StringVar(&profileOpts.Trace, "profile-trace", "", "Write execution trace to file")

	cmd.PersistentPreRunE = startProfilingAndLogging
	cmd.PersistentPostRunE = stopProfilingAndLogging

	cmd.AddCommand(newReindexCmd())
	cmd.AddCommand(newReindexAboutCmd())
	cmd.AddCommand(newPublishCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newCheckCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newStopCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newMCPCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startProfilingAndLogging installs the default logger and starts profiling.
// Without --debug, logs go to the log file only so command output stays clean.
func startProfilingAndLogging(cmd *cobra.Command, _ []string) error {
	logCfg := logging.DefaultConfig()
	logCfg.WriteToStderr = false
	if debugMode {
		logCfg = logging.DebugConfig()
	}
	if cmd.Name() == "mcp" {
		// stdout and stderr belong to the MCP client.
		logCfg.WriteToStderr = false
	}

	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	if debugMode {
		slog.Debug("debug_logging_enabled",
			slog.String("log_file", logCfg.FilePath),
			slog.String("version", version.Version))
	}

	if profileOpts.Enabled() {
		profileSession, err = profiling.Start(profileOpts)
		if err != nil {
			return err
		}
	}
	return nil
}

// stopProfilingAndLogging flushes profiles and closes the log file.
func stopProfilingAndLogging(_ *cobra.Command, _ []string) error {
	var err error
	if profileSession != nil {
		err = profileSession.Stop()
		profileSession = nil
	}
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return err
}

// Execute runs the root command and prints a failure with its code and hint.
func Execute() error {
	err := NewRootCmd().Execute()
	if err != nil {
		fmt.Fprint(os.Stderr, ierrors.FormatForCLI(err))
	}
	return err
}
