package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	ierrors "github.com/Aman-CERP/courseindex/internal/errors"
	"github.com/Aman-CERP/courseindex/internal/preflight"
)

func newDoctorCmd() *cobra.Command {
	var verbose, jsonOutput bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check that the indexer can run",
		Long: `Run the startup checks on demand:

  - search backend name is valid
  - data directory is writable and has 100 MB free
  - index lock is not held by another process
  - file descriptor limit is at least 1024
  - content fixture parses

The daemon runs the same checks the first time it starts on a data
directory. A held index lock or a missing fixture is only a warning.`,
		Example: `  courseindex doctor
  courseindex doctor --verbose
  courseindex doctor --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			checker := preflight.New(
				preflight.WithVerbose(verbose),
				preflight.WithOutput(cmd.OutOrStdout()))
			results := checker.RunAll(cmd.Context(), preflightTarget(cfg.Engine.Backend,
				cfg.Engine.DataDir, cfg.Content.FixturePath))

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(struct {
					Status string                  `json:"status"`
					Checks []preflight.CheckResult `json:"checks"`
				}{checker.SummaryStatus(results), results}); err != nil {
					return err
				}
			} else {
				checker.PrintResults(results)
				if dir := cfg.Engine.DataDir; dir != "" && !preflight.NeedsCheck(dir) {
					if age := preflight.MarkerAge(dir); age > 0 {
						_, _ = fmt.Fprintf(cmd.OutOrStdout(), "\nLast successful check: %s ago\n",
							age.Round(time.Second))
					}
				}
			}

			if checker.HasCriticalFailures(results) {
				return ierrors.New(ierrors.ErrCodeConfigInvalid, "system check failed", nil).
					WithSuggestion("fix the failed checks above and run 'courseindex doctor' again")
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show check details")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func preflightTarget(backend, dataDir, fixture string) preflight.Target {
	return preflight.Target{Backend: backend, DataDir: dataDir, FixturePath: fixture}
}
