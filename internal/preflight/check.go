package preflight

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Aman-CERP/courseindex/internal/content"
	"github.com/Aman-CERP/courseindex/internal/search"
)

// CheckStatus represents the result of a preflight check.
type CheckStatus int

const (
	// StatusPass indicates the check passed successfully.
	StatusPass CheckStatus = iota
	// StatusWarn indicates a non-critical warning.
	StatusWarn
	// StatusFail indicates the check failed.
	StatusFail
)

// String returns the string representation of a CheckStatus.
func (s CheckStatus) String() string {
	switch s {
	case StatusPass:
		return "PASS"
	case StatusWarn:
		return "WARN"
	case StatusFail:
		return "FAIL"
	default:
		return "UNKNOWN"
	}
}

// MarshalText encodes the status by name.
func (s CheckStatus) MarshalText() ([]byte, error) {
	return []byte(strings.ToLower(s.String())), nil
}

// CheckResult holds the result of a single preflight check.
type CheckResult struct {
	Name     string      `json:"name"`
	Status   CheckStatus `json:"status"`
	Message  string      `json:"message"`
	Details  string      `json:"details,omitempty"`
	Required bool        `json:"required"`
}

// IsCritical returns true if this is a required check that failed.
func (r CheckResult) IsCritical() bool {
	return r.Required && r.Status == StatusFail
}

// Target is what the checks inspect.
type Target struct {
	DataDir     string
	Backend     string
	FixturePath string
}

// Checker performs preflight validation checks.
type Checker struct {
	verbose bool
	output  io.Writer
}

// Option configures a Checker.
type Option func(*Checker)

// WithVerbose prints check details.
func WithVerbose(verbose bool) Option {
	return func(c *Checker) {
		c.verbose = verbose
	}
}

// WithOutput sets the output writer.
func WithOutput(w io.Writer) Option {
	return func(c *Checker) {
		c.output = w
	}
}

// New creates a new Checker with the given options.
func New(opts ...Option) *Checker {
	c := &Checker{
		output: os.Stdout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RunAll runs every check against t. Checks that need the data directory
// are skipped with a warning when the indexes live in memory.
func (c *Checker) RunAll(ctx context.Context, t Target) []CheckResult {
	results := []CheckResult{c.CheckBackend(t.Backend)}

	if t.DataDir == "" {
		results = append(results, CheckResult{
			Name:    "data_dir",
			Status:  StatusWarn,
			Message: "not set, indexes are kept in memory",
		})
	} else {
		results = append(results,
			c.CheckWritePermissions(t.DataDir),
			c.CheckDiskSpace(t.DataDir),
			c.CheckIndexLock(t.DataDir))
	}

	results = append(results, c.CheckFileDescriptors())
	if ctx.Err() != nil {
		return results
	}
	return append(results, c.CheckFixture(t.FixturePath))
}

// HasCriticalFailures returns true if any required check failed.
func (c *Checker) HasCriticalFailures(results []CheckResult) bool {
	for _, r := range results {
		if r.IsCritical() {
			return true
		}
	}
	return false
}

// SummaryStatus returns a summary status string for the results.
func (c *Checker) SummaryStatus(results []CheckResult) string {
	hasWarnings := false
	hasCriticalFailure := false

	for _, r := range results {
		if r.IsCritical() {
			hasCriticalFailure = true
		}
		if r.Status == StatusWarn || (r.Status == StatusFail && !r.Required) {
			hasWarnings = true
		}
	}

	switch {
	case hasCriticalFailure:
		return "failed"
	case hasWarnings:
		return "ready_with_warnings"
	default:
		return "ready"
	}
}

// PrintResults prints check results to the configured output.
func (c *Checker) PrintResults(results []CheckResult) {
	_, _ = fmt.Fprintln(c.output, "Courseware Indexer Check")
	_, _ = fmt.Fprintln(c.output, "========================")
	_, _ = fmt.Fprintln(c.output)

	for _, r := range results {
		_, _ = fmt.Fprintf(c.output, "[%s] %s: %s\n", r.Status, r.Name, r.Message)
		if c.verbose && r.Details != "" {
			_, _ = fmt.Fprintf(c.output, "      %s\n", r.Details)
		}
	}

	_, _ = fmt.Fprintln(c.output)
	_, _ = fmt.Fprintf(c.output, "Status: %s\n", strings.ToUpper(c.SummaryStatus(results)))

	var warnings, errors []string
	for _, r := range results {
		if r.IsCritical() {
			errors = append(errors, r.Name+": "+r.Message)
		} else if r.Status != StatusPass {
			warnings = append(warnings, r.Name+": "+r.Message)
		}
	}
	printIssues(c.output, "error(s)", errors)
	printIssues(c.output, "warning(s)", warnings)
}

func printIssues(w io.Writer, label string, issues []string) {
	if len(issues) == 0 {
		return
	}
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintf(w, "%d %s:\n", len(issues), label)
	for _, issue := range issues {
		_, _ = fmt.Fprintf(w, "  - %s\n", issue)
	}
}

// CheckBackend validates the configured engine name. A disabled engine is
// a warning: events are accepted but nothing is indexed.
func (c *Checker) CheckBackend(name string) CheckResult {
	result := CheckResult{Name: "search_backend", Required: true}

	backend, err := search.ParseBackend(name)
	switch {
	case err != nil:
		result.Status = StatusFail
		result.Message = err.Error()
	case backend == search.BackendNone:
		result.Status = StatusWarn
		result.Message = "disabled, content events will not be indexed"
	default:
		result.Status = StatusPass
		result.Message = string(backend)
	}
	return result
}

// CheckWritePermissions checks that the data directory can be created and
// written to.
func (c *Checker) CheckWritePermissions(dir string) CheckResult {
	result := CheckResult{Name: "write_permissions", Required: true}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot create %s: %v", dir, err)
		return result
	}
	testFile := filepath.Join(dir, ".courseindex-preflight-test")
	f, err := os.Create(testFile)
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("permission denied: %v", err)
		return result
	}
	_ = f.Close()
	_ = os.Remove(testFile)

	result.Status = StatusPass
	result.Message = "OK"
	return result
}

// CheckIndexLock reports whether another process holds the data directory.
// A held lock is a warning since the holder is usually the daemon.
func (c *Checker) CheckIndexLock(dir string) CheckResult {
	result := CheckResult{Name: "index_lock"}

	lock := search.NewFileLock(dir)
	acquired, err := lock.TryLock()
	switch {
	case err != nil:
		result.Status = StatusFail
		result.Message = err.Error()
	case !acquired:
		result.Status = StatusWarn
		result.Message = "held by another process"
		result.Details = "Stop the daemon ('courseindex stop') before running commands with --local"
	default:
		_ = lock.Unlock()
		result.Status = StatusPass
		result.Message = "free"
	}
	return result
}

// CheckFixture parses the configured content fixture.
func (c *Checker) CheckFixture(path string) CheckResult {
	result := CheckResult{Name: "content_fixture", Required: true}

	if path == "" {
		result.Status = StatusWarn
		result.Message = "not configured"
		result.Details = "Pass --content <file> or set content.fixture_path"
		return result
	}
	fx, err := content.LoadFixture(path)
	if err != nil {
		result.Status = StatusFail
		result.Message = err.Error()
		return result
	}

	result.Status = StatusPass
	result.Message = fmt.Sprintf("%d courses, %d libraries", len(fx.Courses), len(fx.Libraries))
	return result
}
