package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

// StatusInfo describes the daemon, its indexes and the content it serves.
type StatusInfo struct {
	Running bool   `json:"running"`
	PID     int    `json:"pid,omitempty"`
	Uptime  string `json:"uptime,omitempty"`
	Backend string `json:"backend"`

	Indexes  []string `json:"indexes"`
	DataDir  string   `json:"data_dir"`
	DataSize int64    `json:"data_size"`

	Content   string    `json:"content,omitempty"`
	Courses   int       `json:"courses"`
	Libraries int       `json:"libraries"`
	Modified  time.Time `json:"content_modified,omitzero"`

	// Queue is "idle", "busy" or "n/a" when the daemon is not running.
	Queue        string `json:"queue"`
	QueuePending int    `json:"queue_pending"`
	QueueFailed  int    `json:"queue_failed"`
	LastError    string `json:"last_error,omitempty"`
}

// StatusRenderer displays index status.
type StatusRenderer struct {
	out    io.Writer
	styles Styles
}

// NewStatusRenderer creates a status renderer.
func NewStatusRenderer(out io.Writer, noColor bool) *StatusRenderer {
	return &StatusRenderer{out: out, styles: GetStyles(noColor)}
}

// Render displays status info to terminal.
func (r *StatusRenderer) Render(info StatusInfo) error {
	daemonState := "stopped"
	if info.Running {
		daemonState = "running"
	}
	_, _ = fmt.Fprintf(r.out, "%s\n\n", r.styles.Header.Render("Courseware Index Status"))

	_, _ = fmt.Fprintf(r.out, "  Daemon:  %s", r.renderStatus(daemonState))
	if info.Running {
		_, _ = fmt.Fprintf(r.out, " (pid %d, up %s)", info.PID, info.Uptime)
	}
	_, _ = fmt.Fprintln(r.out)
	_, _ = fmt.Fprintf(r.out, "  Backend: %s\n\n", r.renderStatus(info.Backend))

	_, _ = fmt.Fprintln(r.out, "  Indexes:")
	if len(info.Indexes) == 0 {
		_, _ = fmt.Fprintf(r.out, "    %s\n", r.styles.Dim.Render("(none)"))
	}
	for _, name := range info.Indexes {
		_, _ = fmt.Fprintf(r.out, "    %s\n", name)
	}
	_, _ = fmt.Fprintf(r.out, "  Data:    %s (%s)\n\n", info.DataDir, FormatBytes(info.DataSize))

	if info.Content != "" {
		_, _ = fmt.Fprintln(r.out, "  Content:")
		_, _ = fmt.Fprintf(r.out, "    Source:    %s\n", info.Content)
		_, _ = fmt.Fprintf(r.out, "    Courses:   %d\n", info.Courses)
		_, _ = fmt.Fprintf(r.out, "    Libraries: %d\n", info.Libraries)
		if !info.Modified.IsZero() {
			_, _ = fmt.Fprintf(r.out, "    Modified:  %s\n", formatTime(info.Modified))
		}
		_, _ = fmt.Fprintln(r.out)
	}

	if info.Queue != "" && info.Queue != "n/a" {
		_, _ = fmt.Fprintf(r.out, "  Queue: %s (%d pending, %d failed)\n",
			r.renderStatus(info.Queue), info.QueuePending, info.QueueFailed)
		if info.LastError != "" {
			_, _ = fmt.Fprintf(r.out, "    Last error: %s\n", r.styles.Error.Render(info.LastError))
		}
	}
	return nil
}

// RenderJSON outputs status as JSON.
func (r *StatusRenderer) RenderJSON(info StatusInfo) error {
	if info.Indexes == nil {
		info.Indexes = []string{}
	}
	encoder := json.NewEncoder(r.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(info)
}

// renderStatus formats a status string with color.
func (r *StatusRenderer) renderStatus(status string) string {
	switch strings.ToLower(status) {
	case "running", "idle", "bleve", "sqlite":
		return r.styles.Success.Render(status)
	case "stopped", "busy", "none":
		return r.styles.Warning.Render(status)
	case "error":
		return r.styles.Error.Render(status)
	default:
		return status
	}
}

// formatTime formats a time relative to now.
func formatTime(t time.Time) string {
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return plural(int(diff.Minutes()), "minute") + " ago"
	case diff < 24*time.Hour:
		return plural(int(diff.Hours()), "hour") + " ago"
	case diff < 7*24*time.Hour:
		return plural(int(diff.Hours()/24), "day") + " ago"
	default:
		return t.Format("2006-01-02 15:04")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// FormatBytes formats bytes to human-readable format.
func FormatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
