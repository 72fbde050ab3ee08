package mcp

import (
	"fmt"
	"strings"

	"github.com/Aman-CERP/courseindex/internal/daemon"
)

const snippetLength = 160

// FormatSearchResults formats search hits as markdown.
func FormatSearchResults(query string, out SearchOutput) string {
	if len(out.Results) == 0 {
		return fmt.Sprintf("No results found for \"%s\"", query)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Search Results for \"%s\"\n\n", query)
	fmt.Fprintf(&sb, "Showing %d of %d result", len(out.Results), out.Total)
	if out.Total != 1 {
		sb.WriteString("s")
	}
	sb.WriteString("\n\n")

	for i, r := range out.Results {
		title := r.DisplayName
		if title == "" {
			title = r.ID
		}
		fmt.Fprintf(&sb, "### %d. %s (score: %.2f)\n", i+1, title, r.Score)
		if r.Location != "" {
			fmt.Fprintf(&sb, "**Location:** %s\n", r.Location)
		}
		if r.ContentType != "" {
			fmt.Fprintf(&sb, "**Type:** %s\n", r.ContentType)
		}
		fmt.Fprintf(&sb, "`%s`\n\n", r.ID)
		if r.Snippet != "" {
			fmt.Fprintf(&sb, "> %s\n\n", r.Snippet)
		}
	}
	return sb.String()
}

// FormatReindex formats a reindex outcome as markdown.
func FormatReindex(out ReindexOutput) string {
	if out.Queued {
		return fmt.Sprintf("Reindex of `%s` queued as task `%s`.", out.Scope, out.TaskID)
	}
	return fmt.Sprintf("Reindexed `%s` (%s): %d indexed, %d removed, %d skipped.",
		out.Scope, out.Mode, out.Indexed, out.Removed, out.Skipped)
}

// toSearchResultOutput flattens a stored document into tool output.
func toSearchResultOutput(hit daemon.SearchHit) SearchResultOutput {
	out := SearchResultOutput{ID: hit.ID, Score: hit.Score}
	if hit.Data == nil {
		return out
	}
	out.Scope = stringField(hit.Data, "course")
	if out.Scope == "" {
		out.Scope = stringField(hit.Data, "library")
	}
	out.ContentType = stringField(hit.Data, "content_type")

	if loc, ok := hit.Data["location"].([]any); ok {
		parts := make([]string, 0, len(loc))
		for _, p := range loc {
			if s, ok := p.(string); ok {
				parts = append(parts, s)
			}
		}
		out.Location = strings.Join(parts, " > ")
	}

	if c, ok := hit.Data["content"].(map[string]any); ok {
		out.DisplayName = stringField(c, "display_name")
		for _, key := range []string{"html_content", "capa_content", "transcript", "discussion_target"} {
			if text := stringField(c, key); text != "" {
				out.Snippet = truncate(text, snippetLength)
				break
			}
		}
	}
	return out
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

// truncate shortens s to at most n runes on a word boundary.
func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	cut := string(runes[:n])
	if i := strings.LastIndex(cut, " "); i > n/2 {
		cut = cut[:i]
	}
	return cut + "..."
}

// clampLimit ensures limit is within bounds.
func clampLimit(limit, defaultVal, min, max int) int {
	if limit <= 0 {
		return defaultVal
	}
	if limit < min {
		return min
	}
	if limit > max {
		return max
	}
	return limit
}
