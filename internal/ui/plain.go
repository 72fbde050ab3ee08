package ui

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// PlainRenderer outputs one line per event, for CI and pipes.
type PlainRenderer struct {
	mu  sync.Mutex
	out io.Writer
}

// NewPlainRenderer creates a plain text renderer.
func NewPlainRenderer(cfg Config) *PlainRenderer {
	return &PlainRenderer{out: cfg.Output}
}

// Start implements Renderer.
func (r *PlainRenderer) Start(context.Context) error {
	return nil
}

// UpdateProgress implements Renderer.
func (r *PlainRenderer) UpdateProgress(event ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	msg := event.Message
	if msg == "" && event.Scope != "" {
		msg = fmt.Sprintf("%s (%d documents)", event.Scope, event.Indexed)
	}

	// Format: [STAGE] current/total - message
	if event.Total > 0 {
		_, _ = fmt.Fprintf(r.out, "[%s] %d/%d - %s\n", event.Stage.Icon(), event.Current, event.Total, msg)
	} else if msg != "" {
		_, _ = fmt.Fprintf(r.out, "[%s] %s\n", event.Stage.Icon(), msg)
	}
}

// AddError implements Renderer.
func (r *PlainRenderer) AddError(event ErrorEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prefix := "ERROR"
	if event.IsWarn {
		prefix = "WARN"
	}
	if event.Scope != "" {
		_, _ = fmt.Fprintf(r.out, "%s: %s: %v\n", prefix, event.Scope, event.Err)
	} else {
		_, _ = fmt.Fprintf(r.out, "%s: %v\n", prefix, event.Err)
	}
}

// Complete implements Renderer.
func (r *PlainRenderer) Complete(stats CompletionStats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, _ = fmt.Fprintf(r.out, "Complete: %d courses, %d libraries, %d documents indexed in %s",
		stats.Courses, stats.Libraries, stats.Indexed, stats.Duration.Round(100*time.Millisecond))
	if stats.Errors > 0 || stats.Warnings > 0 {
		_, _ = fmt.Fprintf(r.out, " (%d errors, %d warnings)", stats.Errors, stats.Warnings)
	}
	_, _ = fmt.Fprintln(r.out)

	if stats.Removed > 0 || stats.Skipped > 0 {
		_, _ = fmt.Fprintf(r.out, "  Removed: %d  Skipped: %d\n", stats.Removed, stats.Skipped)
	}
	if stats.Backend != "" {
		_, _ = fmt.Fprintf(r.out, "Backend: %s\n", stats.Backend)
	}
}

// Stop implements Renderer.
func (r *PlainRenderer) Stop() error {
	return nil
}

var _ Renderer = (*PlainRenderer)(nil)
