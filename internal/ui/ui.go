// Package ui renders catalog rebuild progress and index status in the terminal.
package ui

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
)

// Stage is one phase of a catalog rebuild.
type Stage int

const (
	// StageLibraries reindexes every content library.
	StageLibraries Stage = iota
	// StageCourses reindexes every course and its about document.
	StageCourses
	// StageVerify runs the consistency check over each course.
	StageVerify
	// StageComplete indicates the rebuild is done.
	StageComplete
)

// String returns the human-readable stage name.
func (s Stage) String() string {
	switch s {
	case StageLibraries:
		return "Libraries"
	case StageCourses:
		return "Courses"
	case StageVerify:
		return "Verify"
	case StageComplete:
		return "Complete"
	default:
		return "Unknown"
	}
}

// Icon returns the short stage tag for plain text output.
func (s Stage) Icon() string {
	switch s {
	case StageLibraries:
		return "LIB"
	case StageCourses:
		return "COURSE"
	case StageVerify:
		return "CHECK"
	case StageComplete:
		return "DONE"
	default:
		return "???"
	}
}

// ProgressEvent reports that Current of Total scopes in Stage are done.
type ProgressEvent struct {
	Stage   Stage
	Current int
	Total   int
	// Scope is the course or library key just processed.
	Scope string
	// Indexed is the number of documents the scope wrote.
	Indexed int
	Message string
}

// ErrorEvent represents a failed or degraded scope.
type ErrorEvent struct {
	Scope  string
	Err    error
	IsWarn bool
}

// CompletionStats summarizes a finished rebuild.
type CompletionStats struct {
	Courses   int
	Libraries int
	Indexed   int
	Removed   int
	Skipped   int
	Duration  time.Duration
	Errors    int
	Warnings  int
	Backend   string
}

// Renderer defines the interface for progress display.
type Renderer interface {
	// Start initializes the renderer.
	Start(ctx context.Context) error

	// UpdateProgress updates progress display.
	UpdateProgress(event ProgressEvent)

	// AddError adds an error to display.
	AddError(event ErrorEvent)

	// Complete marks rendering as complete with summary.
	Complete(stats CompletionStats)

	// Stop stops the renderer and cleans up.
	Stop() error
}

// Config configures the UI renderer.
type Config struct {
	Output     io.Writer
	ForcePlain bool
	NoColor    bool
	// Title is shown in the TUI header, usually the content source.
	Title string
}

// ConfigOption is a function that modifies Config.
type ConfigOption func(*Config)

// WithForcePlain forces plain text output.
func WithForcePlain(force bool) ConfigOption {
	return func(c *Config) {
		c.ForcePlain = force
	}
}

// WithNoColor disables color output.
func WithNoColor(noColor bool) ConfigOption {
	return func(c *Config) {
		c.NoColor = noColor
	}
}

// WithTitle sets the header title.
func WithTitle(title string) ConfigOption {
	return func(c *Config) {
		c.Title = title
	}
}

// NewConfig creates a new Config with the given output and options.
func NewConfig(output io.Writer, opts ...ConfigOption) Config {
	cfg := Config{Output: output}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// NewRenderer returns a TUI renderer for interactive terminals and a plain
// text renderer for CI, pipes, or when plain output is forced.
func NewRenderer(cfg Config) Renderer {
	if cfg.ForcePlain || !IsTTY(cfg.Output) || DetectCI() {
		return NewPlainRenderer(cfg)
	}

	tui, err := NewTUIRenderer(cfg)
	if err != nil {
		return NewPlainRenderer(cfg)
	}
	return tui
}

// IsTTY checks if output is a terminal.
func IsTTY(w io.Writer) bool {
	if w == nil {
		return false
	}
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// DetectNoColor checks if NO_COLOR environment variable is set.
func DetectNoColor() bool {
	_, exists := os.LookupEnv("NO_COLOR")
	return exists
}

// DetectCI checks if running in a CI environment.
func DetectCI() bool {
	ciVars := []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "TRAVIS"}
	for _, v := range ciVars {
		if _, exists := os.LookupEnv(v); exists {
			return true
		}
	}
	return false
}
