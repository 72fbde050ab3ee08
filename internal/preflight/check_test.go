package preflight

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/courseindex/internal/search"
)

const fixtureYAML = `
courses:
  - id: course-v1:edX+DemoX+2024
    items:
      - category: chapter
        display_name: Week 1
libraries:
  - id: library-v1:edX+Lib
`

func writeFixture(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func names(results []CheckResult) map[string]CheckResult {
	byName := make(map[string]CheckResult, len(results))
	for _, r := range results {
		byName[r.Name] = r
	}
	return byName
}

func TestCheckStatus_String(t *testing.T) {
	tests := []struct {
		status CheckStatus
		want   string
	}{
		{StatusPass, "PASS"},
		{StatusWarn, "WARN"},
		{StatusFail, "FAIL"},
		{CheckStatus(9), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.String())
		})
	}
}

func TestCheckResult_JSONUsesStatusName(t *testing.T) {
	data, err := json.Marshal(CheckResult{Name: "disk_space", Status: StatusWarn})

	require.NoError(t, err)
	assert.Contains(t, string(data), `"status":"warn"`)
}

func TestCheckResult_IsCritical(t *testing.T) {
	tests := []struct {
		name     string
		result   CheckResult
		expected bool
	}{
		{"required pass", CheckResult{Status: StatusPass, Required: true}, false},
		{"required fail", CheckResult{Status: StatusFail, Required: true}, true},
		{"optional fail", CheckResult{Status: StatusFail}, false},
		{"required warn", CheckResult{Status: StatusWarn, Required: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.result.IsCritical())
		})
	}
}

func TestChecker_NewWithOptions(t *testing.T) {
	buf := &bytes.Buffer{}

	checker := New(WithVerbose(true), WithOutput(buf))

	assert.True(t, checker.verbose)
	assert.Equal(t, buf, checker.output)
}

func TestChecker_CheckBackend(t *testing.T) {
	checker := New()

	tests := []struct {
		backend string
		want    CheckStatus
	}{
		{"bleve", StatusPass},
		{"sqlite", StatusPass},
		{"none", StatusWarn},
		{"", StatusWarn},
		{"elasticsearch", StatusFail},
	}

	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			assert.Equal(t, tt.want, checker.CheckBackend(tt.backend).Status)
		})
	}
}

func TestChecker_CheckWritePermissions(t *testing.T) {
	t.Run("missing directory is created", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "data", "nested")

		result := New().CheckWritePermissions(dir)

		assert.Equal(t, StatusPass, result.Status)
		assert.DirExists(t, dir)
		entries, _ := os.ReadDir(dir)
		assert.Empty(t, entries, "write check leaves nothing behind")
	})

	t.Run("read-only directory fails", func(t *testing.T) {
		if os.Getuid() == 0 {
			t.Skip("root can write anywhere")
		}
		dir := filepath.Join(t.TempDir(), "readonly")
		require.NoError(t, os.Mkdir(dir, 0o555))
		defer func() { _ = os.Chmod(dir, 0o755) }()

		result := New().CheckWritePermissions(dir)

		assert.Equal(t, StatusFail, result.Status)
		assert.Contains(t, result.Message, "permission denied")
	})
}

func TestChecker_CheckIndexLock(t *testing.T) {
	// Given: a data directory
	dir := t.TempDir()
	checker := New()

	// Then: a free lock passes and is released again
	assert.Equal(t, StatusPass, checker.CheckIndexLock(dir).Status)
	assert.Equal(t, StatusPass, checker.CheckIndexLock(dir).Status)

	// When: another holder takes the lock
	held := search.NewFileLock(dir)
	ok, err := held.TryLock()
	require.NoError(t, err)
	require.True(t, ok)
	defer func() { _ = held.Unlock() }()

	// Then: the check warns
	result := checker.CheckIndexLock(dir)
	assert.Equal(t, StatusWarn, result.Status)
	assert.False(t, result.IsCritical())
}

func TestChecker_CheckFixture(t *testing.T) {
	checker := New()

	t.Run("valid", func(t *testing.T) {
		result := checker.CheckFixture(writeFixture(t, fixtureYAML))
		assert.Equal(t, StatusPass, result.Status)
		assert.Equal(t, "1 courses, 1 libraries", result.Message)
	})

	t.Run("not configured", func(t *testing.T) {
		assert.Equal(t, StatusWarn, checker.CheckFixture("").Status)
	})

	t.Run("invalid", func(t *testing.T) {
		result := checker.CheckFixture(writeFixture(t, "courses:\n  - id: not-a-key\n"))
		assert.True(t, result.IsCritical())
	})

	t.Run("missing file", func(t *testing.T) {
		result := checker.CheckFixture(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.True(t, result.IsCritical())
	})
}

func TestChecker_RunAll(t *testing.T) {
	// Given: a healthy target
	target := Target{
		DataDir:     filepath.Join(t.TempDir(), "data"),
		Backend:     "bleve",
		FixturePath: writeFixture(t, fixtureYAML),
	}
	checker := New()

	// When: running every check
	results := checker.RunAll(context.Background(), target)

	// Then: all checks are present and nothing is critical
	byName := names(results)
	for _, name := range []string{
		"search_backend", "write_permissions", "disk_space", "index_lock", "file_descriptors", "content_fixture",
	} {
		assert.Contains(t, byName, name)
	}
	assert.False(t, checker.HasCriticalFailures(results))
}

func TestChecker_RunAll_InMemory(t *testing.T) {
	results := New().RunAll(context.Background(), Target{Backend: "bleve"})

	byName := names(results)
	assert.Equal(t, StatusWarn, byName["data_dir"].Status)
	assert.NotContains(t, byName, "disk_space")
	assert.Equal(t, StatusWarn, byName["content_fixture"].Status)
}

func TestChecker_HasCriticalFailures(t *testing.T) {
	checker := New()

	assert.False(t, checker.HasCriticalFailures(nil))
	assert.False(t, checker.HasCriticalFailures([]CheckResult{
		{Status: StatusPass, Required: true},
		{Status: StatusFail},
	}))
	assert.True(t, checker.HasCriticalFailures([]CheckResult{
		{Status: StatusFail, Required: true},
	}))
}

func TestChecker_SummaryStatus(t *testing.T) {
	checker := New()

	tests := []struct {
		name     string
		results  []CheckResult
		expected string
	}{
		{"all pass", []CheckResult{{Status: StatusPass}}, "ready"},
		{"warning", []CheckResult{{Status: StatusPass}, {Status: StatusWarn}}, "ready_with_warnings"},
		{"critical", []CheckResult{{Status: StatusFail, Required: true}}, "failed"},
		{"optional failure", []CheckResult{{Status: StatusFail}}, "ready_with_warnings"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, checker.SummaryStatus(tt.results))
		})
	}
}

func TestChecker_PrintResults(t *testing.T) {
	// Given: one result of each status
	results := []CheckResult{
		{Name: "disk_space", Status: StatusPass, Message: "50.0 GB free"},
		{Name: "content_fixture", Status: StatusWarn, Message: "not configured", Details: "Pass --content"},
		{Name: "search_backend", Status: StatusFail, Message: "unknown search backend", Required: true},
	}
	buf := &bytes.Buffer{}

	// When: printing verbosely
	New(WithOutput(buf), WithVerbose(true)).PrintResults(results)

	// Then: every line, the details and the summary appear
	out := buf.String()
	assert.Contains(t, out, "[PASS] disk_space: 50.0 GB free")
	assert.Contains(t, out, "[WARN] content_fixture: not configured")
	assert.Contains(t, out, "      Pass --content")
	assert.Contains(t, out, "Status: FAILED")
	assert.Contains(t, out, "1 error(s):\n  - search_backend: unknown search backend")
	assert.Contains(t, out, "1 warning(s):\n  - content_fixture: not configured")
}

func TestChecker_CheckDiskSpace(t *testing.T) {
	result := New().CheckDiskSpace(t.TempDir())

	assert.Equal(t, "disk_space", result.Name)
	assert.Contains(t, result.Message, "free")
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 bytes", formatBytes(512))
	assert.Equal(t, "1.5 KB", formatBytes(1536))
	assert.Equal(t, "2.0 GB", formatBytes(2*1024*1024*1024))
}
