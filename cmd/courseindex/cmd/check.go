package cmd

import (
	"context"
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/courseindex/internal/daemon"
	"github.com/Aman-CERP/courseindex/internal/output"
)

// repairer is implemented by the local service. Through the daemon, repair
// is a full reindex.
type repairer interface {
	Repair(ctx context.Context, scope string) (*daemon.ReindexResult, error)
}

func newCheckCmd() *cobra.Command {
	var (
		repair     bool
		local      bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "check <course-or-library-key>",
		Short: "Compare a scope's index with its content",
		Long: `List blocks that should be searchable but are not indexed (missing) and
indexed documents whose block is gone or no longer eligible (stale).
With --repair, a full reindex fixes both.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			b, closeBackend, err := openBackend(ctx, cfg, local)
			if err != nil {
				return err
			}
			defer closeBackend()

			res, err := b.Check(ctx, args[0])
			if err != nil {
				return remoteError(err)
			}

			var repaired *daemon.ReindexResult
			if repair && !res.Consistent {
				if r, ok := b.(repairer); ok {
					repaired, err = r.Repair(ctx, args[0])
				} else {
					repaired, err = b.Reindex(ctx, daemon.ReindexParams{Scope: args[0]})
				}
				if err != nil {
					return remoteError(err)
				}
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(struct {
					*daemon.CheckResult
					Repair *daemon.ReindexResult `json:"repair,omitempty"`
				}{res, repaired})
			}

			out := output.New(cmd.OutOrStdout())
			if res.Consistent {
				out.Successf("%s is consistent: %d eligible, %d indexed", res.Scope, res.Eligible, res.Indexed)
				return nil
			}
			out.Warningf("%s is inconsistent: %d eligible, %d indexed", res.Scope, res.Eligible, res.Indexed)
			if len(res.Missing) > 0 {
				out.Field("Missing", len(res.Missing))
				out.List(res.Missing, 10)
			}
			if len(res.Stale) > 0 {
				out.Field("Stale", len(res.Stale))
				out.List(res.Stale, 10)
			}
			if repaired != nil {
				out.Successf("Repaired: %d indexed, %d removed", repaired.Indexed, repaired.Removed)
			} else {
				out.Status("", "Run with --repair to reindex the scope.")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&repair, "repair", false, "Reindex the scope in full when it is inconsistent")
	cmd.Flags().BoolVar(&local, "local", false, "Run in this process even if a daemon is running")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}
