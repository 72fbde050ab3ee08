package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/courseindex/internal/daemon"
	"github.com/Aman-CERP/courseindex/internal/index"
	"github.com/Aman-CERP/courseindex/internal/output"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	index      string
	fields     map[string]string
	docType    string
	limit      int
	from       int
	jsonOutput bool
	local      bool
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search an index",
		Long: `Search one index. Every query word must appear in a document's title or
text; an empty query matches every document. --field filters on exact
values such as the course key or content type.`,
		Example: `  courseindex search "photosynthesis"
  courseindex search lorem --field course=course-v1:edX+DemoX+2024
  courseindex search --index course_info --field org=edX
  courseindex search quiz --field content_type=CAPA --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.index, "index", "i", index.CoursewareIndexName, "Index to search")
	cmd.Flags().StringToStringVarP(&opts.fields, "field", "f", nil, "Exact-match filter key=value (repeatable)")
	cmd.Flags().StringVar(&opts.docType, "doc-type", "", "Restrict to one document type")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 10, "Maximum number of results")
	cmd.Flags().IntVar(&opts.from, "from", 0, "Offset of the first result")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output results as JSON")
	cmd.Flags().BoolVar(&opts.local, "local", false, "Search in this process even if a daemon is running")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, opts searchOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	b, closeBackend, err := openBackend(ctx, cfg, opts.local)
	if err != nil {
		return err
	}
	defer closeBackend()

	slog.Info("search_started",
		slog.String("index", opts.index),
		slog.String("query", query),
		slog.Int("limit", opts.limit))

	res, err := b.Search(ctx, daemon.SearchParams{
		Index:   opts.index,
		Query:   query,
		Fields:  opts.fields,
		DocType: opts.docType,
		From:    opts.from,
		Size:    opts.limit,
	})
	if err != nil {
		return remoteError(err)
	}

	if opts.jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	formatSearchResults(output.New(cmd.OutOrStdout()), query, res)
	return nil
}

func formatSearchResults(out *output.Writer, query string, res *daemon.SearchResult) {
	if len(res.Results) == 0 {
		out.Status("", fmt.Sprintf("No results found for %q in %s", query, res.Index))
		return
	}

	out.Statusf("", "Showing %d of %d results in %s:", len(res.Results), res.Total, res.Index)
	out.Newline()
	for i, hit := range res.Results {
		out.Statusf("", "%d. %s (score: %.2f)", i+1, hitTitle(hit), hit.Score)
		out.Status("", "   "+hit.ID)
		if loc := hitLocation(hit); loc != "" {
			out.Status("", "   "+loc)
		}
		out.Newline()
	}
}

func hitTitle(hit daemon.SearchHit) string {
	if c, ok := hit.Data["content"].(map[string]any); ok {
		if name, ok := c["display_name"].(string); ok && name != "" {
			return name
		}
	}
	return hit.ID
}

func hitLocation(hit daemon.SearchHit) string {
	loc, ok := hit.Data["location"].([]any)
	if !ok {
		return ""
	}
	parts := make([]string, 0, len(loc))
	for _, p := range loc {
		if s, ok := p.(string); ok {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " > ")
}
