package cmd

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/courseindex/internal/daemon"
	"github.com/Aman-CERP/courseindex/internal/output"
)

type reindexOptions struct {
	since      string
	local      bool
	jsonOutput bool
}

func newReindexCmd() *cobra.Command {
	var opts reindexOptions

	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the search documents of a course or library",
		Long: `Rebuild the search documents of one course or library, or of every scope
in the content fixture.

A course pass is FULL unless --since is given: then only blocks edited at or
after that time, and their descendants, are rewritten. Blocks that are no
longer eligible are removed in both modes. A course pass also refreshes the
course's discovery document.

Runs against the daemon when one is running, otherwise in this process.`,
		Example: `  courseindex reindex course course-v1:edX+DemoX+2024
  courseindex reindex course course-v1:edX+DemoX+2024 --since 2h
  courseindex reindex library library-v1:edX+Problems
  courseindex reindex all`,
	}

	cmd.PersistentFlags().BoolVar(&opts.local, "local", false, "Run in this process even if a daemon is running")
	cmd.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "Output the result as JSON")

	course := &cobra.Command{
		Use:   "course <course-key>",
		Short: "Reindex one course",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReindex(cmd.Context(), cmd, "course", args[0], opts)
		},
	}
	course.Flags().StringVar(&opts.since, "since", "", "Only blocks edited since this RFC 3339 time or duration ago")

	library := &cobra.Command{
		Use:   "library <library-key>",
		Short: "Reindex one content library",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReindex(cmd.Context(), cmd, "library", args[0], opts)
		},
	}

	cmd.AddCommand(course, library, newReindexAllCmd(&opts))
	return cmd
}

func runReindex(ctx context.Context, cmd *cobra.Command, kind, scope string, opts reindexOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	since, err := parseSince(opts.since, time.Now())
	if err != nil {
		return err
	}

	b, closeBackend, err := openBackend(ctx, cfg, opts.local)
	if err != nil {
		return err
	}
	defer closeBackend()

	slog.Info("reindex_started", slog.String("kind", kind), slog.String("scope", scope))
	res, err := b.Reindex(ctx, daemon.ReindexParams{Kind: kind, Scope: scope, Since: since})
	if err != nil {
		return remoteError(err)
	}
	return printReindexResult(cmd, res, opts.jsonOutput)
}

func printReindexResult(cmd *cobra.Command, res *daemon.ReindexResult, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	out := output.New(cmd.OutOrStdout())
	if res.Disabled {
		out.Warningf("Search engine disabled, %s was not indexed", res.Scope)
		return nil
	}
	out.Successf("Reindexed %s (%s)", res.Scope, res.Mode)
	out.Field("Indexed", res.Indexed)
	out.Field("Removed", res.Removed)
	if res.Skipped > 0 {
		out.Field("Skipped", res.Skipped)
	}
	out.Field("Took", res.Duration)
	return nil
}

func newReindexAboutCmd() *cobra.Command {
	var local bool

	cmd := &cobra.Command{
		Use:   "reindex-about <course-key>",
		Short: "Rebuild a course's discovery document",
		Long: `Rebuild the course_info document used by course discovery: the about
fields, enrollment modes and start and end dates. A course without a start
date is treated as not yet started.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			b, closeBackend, err := openBackend(cmd.Context(), cfg, local)
			if err != nil {
				return err
			}
			defer closeBackend()

			res, err := b.ReindexAbout(cmd.Context(), args[0])
			if err != nil {
				return remoteError(err)
			}
			out := output.New(cmd.OutOrStdout())
			if res.Disabled {
				out.Warning("Search engine disabled, nothing indexed")
				return nil
			}
			out.Successf("Indexed discovery document for %s", res.Scope)
			return nil
		},
	}

	cmd.Flags().BoolVar(&local, "local", false, "Run in this process even if a daemon is running")
	return cmd
}

func newPublishCmd() *cobra.Command {
	var local bool

	cmd := &cobra.Command{
		Use:   "publish <course-or-library-key>",
		Short: "Announce a content change",
		Long: `Send the content event a publishing system would send.

For a course this queues a full reindex and returns at once with the task
id. For a library the reindex runs before the command returns.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			b, closeBackend, err := openBackend(cmd.Context(), cfg, local)
			if err != nil {
				return err
			}
			defer closeBackend()

			out := output.New(cmd.OutOrStdout())
			if isLibraryKey(args[0]) {
				res, err := b.LibraryUpdated(cmd.Context(), args[0])
				if err != nil {
					return remoteError(err)
				}
				out.Successf("Library %s reindexed: %d indexed, %d removed", res.Scope, res.Indexed, res.Removed)
				return nil
			}

			queued, err := b.CoursePublished(cmd.Context(), args[0])
			if err != nil {
				return remoteError(err)
			}
			out.Successf("Queued reindex of %s", queued.Scope)
			out.Field("Task", queued.TaskID)
			return nil
		},
	}

	cmd.Flags().BoolVar(&local, "local", false, "Run in this process even if a daemon is running")
	return cmd
}

func isLibraryKey(key string) bool {
	return strings.HasPrefix(key, "library-v1:")
}

// newReindexAllCmd rebuilds every scope in the content fixture.
func newReindexAllCmd(opts *reindexOptions) *cobra.Command {
	var plain bool

	cmd := &cobra.Command{
		Use:   "all",
		Short: "Reindex every course and library in the content fixture",
		Long: `Reindex every library, then every course, then check each course's index
against its content. Shows live progress on a terminal and one line per
scope otherwise.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRebuild(cmd.Context(), cmd, *opts, plain)
		},
	}

	cmd.Flags().BoolVar(&plain, "plain", false, "Plain line output even on a terminal")
	return cmd
}
