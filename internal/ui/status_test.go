package ui

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleStatus() StatusInfo {
	return StatusInfo{
		Running:      true,
		PID:          4242,
		Uptime:       "3m0s",
		Backend:      "bleve",
		Indexes:      []string{"course_info", "courseware_index"},
		DataDir:      "/var/lib/courseindex",
		DataSize:     3 * 1024 * 1024,
		Content:      "catalog.yaml",
		Courses:      2,
		Libraries:    1,
		Modified:     time.Now().Add(-5 * time.Minute),
		Queue:        "busy",
		QueuePending: 4,
		QueueFailed:  1,
		LastError:    "error(s) present during indexing of course-v1:edX+A+1",
	}
}

func TestStatusRenderer_Render(t *testing.T) {
	// Given: a running daemon with content and a busy queue
	buf := &bytes.Buffer{}
	r := NewStatusRenderer(buf, true)

	// When: rendering
	require.NoError(t, r.Render(sampleStatus()))

	// Then: every section appears
	out := buf.String()
	assert.Contains(t, out, "Daemon:  running (pid 4242, up 3m0s)")
	assert.Contains(t, out, "Backend: bleve")
	assert.Contains(t, out, "courseware_index")
	assert.Contains(t, out, "/var/lib/courseindex (3.0 MB)")
	assert.Contains(t, out, "Courses:   2")
	assert.Contains(t, out, "Modified:  5 minutes ago")
	assert.Contains(t, out, "Queue: busy (4 pending, 1 failed)")
	assert.Contains(t, out, "Last error: error(s) present")
}

func TestStatusRenderer_Stopped(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewStatusRenderer(buf, true)

	require.NoError(t, r.Render(StatusInfo{Backend: "none", Queue: "n/a"}))

	out := buf.String()
	assert.Contains(t, out, "Daemon:  stopped\n")
	assert.Contains(t, out, "(none)")
	assert.NotContains(t, out, "Queue:")
	assert.NotContains(t, out, "Content:")
}

func TestStatusRenderer_RenderJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewStatusRenderer(buf, true)

	require.NoError(t, r.RenderJSON(StatusInfo{Backend: "sqlite"}))

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &parsed))
	assert.Equal(t, "sqlite", parsed["backend"])
	assert.Equal(t, []any{}, parsed["indexes"])
	assert.NotContains(t, parsed, "content_modified")
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{512, "512 B"},
		{2048, "2.0 KB"},
		{5 * 1024 * 1024, "5.0 MB"},
		{3 * 1024 * 1024 * 1024, "3.0 GB"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatBytes(tt.in))
	}
}

func TestFormatTime(t *testing.T) {
	now := time.Now()
	assert.Equal(t, "just now", formatTime(now))
	assert.Equal(t, "1 hour ago", formatTime(now.Add(-61*time.Minute)))
	assert.Equal(t, "2 days ago", formatTime(now.Add(-49*time.Hour)))

	old := time.Date(2020, 3, 4, 5, 6, 0, 0, time.Local)
	assert.Equal(t, "2020-03-04 05:06", formatTime(old))
}
