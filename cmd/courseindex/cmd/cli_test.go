package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/courseindex/internal/daemon"
	ierrors "github.com/Aman-CERP/courseindex/internal/errors"
)

const (
	cliCourse  = "course-v1:edX+SearchX+2015"
	cliLibrary = "library-v1:edX+SearchLib"
)

const cliFixture = `
courses:
  - id: course-v1:edX+SearchX+2015
    display_name: Search Index Test Course
    start: 2015-03-01T00:00:00Z
    about:
      short_description: Not just anybody
    modes:
      - slug: honor
    items:
      - category: chapter
        display_name: Week 1
        children:
          - category: sequential
            display_name: Lesson 1
            children:
              - category: vertical
                display_name: Subsection 1
                children:
                  - category: html
                    display_name: Html Content
                    data: "<p>Lorem ipsum dolor sit amet</p>"
libraries:
  - id: library-v1:edX+SearchLib
    display_name: Search Library
    items:
      - category: html
        display_name: Library Html
        data: "<p>Some data</p>"
`

// setupCLI isolates HOME, config, data and socket paths in temp
// directories and writes the content fixture. No daemon answers on the
// socket, so every command runs against a local service.
func setupCLI(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	t.Setenv("HOME", root)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(root, "config"))
	t.Setenv("COURSEINDEX_DATA_DIR", filepath.Join(root, "data"))
	t.Setenv("COURSEINDEX_SOCKET", filepath.Join(root, "indexer.sock"))
	t.Setenv("COURSEINDEX_ENGINE", "bleve")
	t.Setenv("NO_COLOR", "1")

	fixture := filepath.Join(root, "catalog.yaml")
	require.NoError(t, os.WriteFile(fixture, []byte(cliFixture), 0o644))
	return fixture
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestCLI_ReindexThenSearch(t *testing.T) {
	// Given: content with one course and no indexes yet
	fixture := setupCLI(t)

	// When: the course is reindexed
	out, err := runCLI(t, "--content", fixture, "reindex", "course", cliCourse)

	// Then: the pass is full and its documents are searchable by a later run
	require.NoError(t, err, out)
	assert.Contains(t, out, "Reindexed "+cliCourse+" (full)")

	out, err = runCLI(t, "--content", fixture, "search", "lorem", "--field", "course="+cliCourse)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Showing 1 of 1 results in courseware_index:")
	assert.Contains(t, out, "Html Content")
	assert.Contains(t, out, "Week 1 > Lesson 1 > Subsection 1")
}

func TestCLI_SearchJSON(t *testing.T) {
	fixture := setupCLI(t)
	_, err := runCLI(t, "--content", fixture, "reindex", "course", cliCourse)
	require.NoError(t, err)

	out, err := runCLI(t, "--content", fixture, "search", "--json", "--field", "course="+cliCourse)

	require.NoError(t, err, out)
	var res daemon.SearchResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "courseware_index", res.Index)
	assert.Equal(t, 4, res.Total)
}

func TestCLI_CheckAndRepair(t *testing.T) {
	// Given: a course that was never indexed
	fixture := setupCLI(t)

	// When: checking it
	out, err := runCLI(t, "--content", fixture, "check", cliCourse)

	// Then: every eligible block is reported missing
	require.NoError(t, err, out)
	assert.Contains(t, out, cliCourse+" is inconsistent")
	assert.Contains(t, out, "Run with --repair")

	// When: repairing
	out, err = runCLI(t, "--content", fixture, "check", "--repair", cliCourse)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Repaired: 4 indexed")

	// Then: a fresh check is clean
	out, err = runCLI(t, "--content", fixture, "check", cliCourse)
	require.NoError(t, err, out)
	assert.Contains(t, out, cliCourse+" is consistent: 4 eligible, 4 indexed")
}

func TestCLI_Publish(t *testing.T) {
	fixture := setupCLI(t)

	t.Run("course is queued", func(t *testing.T) {
		out, err := runCLI(t, "--content", fixture, "publish", cliCourse)
		require.NoError(t, err, out)
		assert.Contains(t, out, "Queued reindex of "+cliCourse)
		assert.Contains(t, out, "Task:")
	})

	t.Run("queued work finished before exit", func(t *testing.T) {
		out, err := runCLI(t, "--content", fixture, "check", cliCourse)
		require.NoError(t, err, out)
		assert.Contains(t, out, "is consistent")
	})

	t.Run("library runs at once", func(t *testing.T) {
		out, err := runCLI(t, "--content", fixture, "publish", cliLibrary)
		require.NoError(t, err, out)
		assert.Contains(t, out, "Library "+cliLibrary+" reindexed: 1 indexed, 0 removed")
	})
}

func TestCLI_ReindexAbout(t *testing.T) {
	fixture := setupCLI(t)

	out, err := runCLI(t, "--content", fixture, "reindex-about", cliCourse)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Indexed discovery document for "+cliCourse)

	out, err = runCLI(t, "--content", fixture, "search", "--index", "course_info", "anybody")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Showing 1 of 1 results in course_info:")
}

func TestCLI_ReindexAllPlain(t *testing.T) {
	// Given: a fixture with a library and a course
	fixture := setupCLI(t)

	// When: rebuilding everything with plain output
	out, err := runCLI(t, "--content", fixture, "reindex", "all", "--plain")

	// Then: each stage reports and the summary counts both scopes
	require.NoError(t, err, out)
	assert.Contains(t, out, "[LIB] 1/1 - "+cliLibrary+" (1 documents)")
	assert.Contains(t, out, "[COURSE] 1/1 - "+cliCourse+" (4 documents)")
	assert.Contains(t, out, "Complete: 1 courses, 1 libraries, 5 documents indexed")
	assert.NotContains(t, out, "WARN")
}

func TestCLI_Errors(t *testing.T) {
	fixture := setupCLI(t)

	t.Run("no content configured", func(t *testing.T) {
		_, err := runCLI(t, "reindex", "course", cliCourse)
		require.Error(t, err)
		assert.Equal(t, ierrors.ErrCodeConfigNotFound, ierrors.GetCode(err))
	})

	t.Run("unknown course", func(t *testing.T) {
		_, err := runCLI(t, "--content", fixture, "reindex", "course", "course-v1:edX+Nope+1")
		require.Error(t, err)
		assert.True(t, ierrors.IsNotFound(err))
	})

	t.Run("bad since", func(t *testing.T) {
		_, err := runCLI(t, "--content", fixture, "reindex", "course", cliCourse, "--since", "yesterday")
		require.Error(t, err)
		assert.Equal(t, ierrors.ErrCodeInvalidInput, ierrors.GetCode(err))
	})

	t.Run("wrong arg count", func(t *testing.T) {
		_, err := runCLI(t, "--content", fixture, "publish")
		assert.Error(t, err)
	})
}

func TestCLI_StatusWithoutDaemon(t *testing.T) {
	// Given: an indexed course and no daemon
	fixture := setupCLI(t)
	_, err := runCLI(t, "--content", fixture, "reindex", "course", cliCourse)
	require.NoError(t, err)

	// When: asking for status as JSON
	out, err := runCLI(t, "--content", fixture, "status", "--json")

	// Then: the on-disk indexes and fixture counts are reported
	require.NoError(t, err, out)
	var info map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, false, info["running"])
	assert.Equal(t, "n/a", info["queue"])
	assert.Equal(t, []any{"course_info", "courseware_index"}, info["indexes"])
	assert.EqualValues(t, 1, info["courses"])
	assert.EqualValues(t, 1, info["libraries"])
	assert.Greater(t, info["data_size"], float64(0))
	assert.Contains(t, info, "content_modified")
}

func TestCLI_StopWithoutDaemon(t *testing.T) {
	setupCLI(t)

	out, err := runCLI(t, "stop")

	require.NoError(t, err)
	assert.Contains(t, out, "Daemon is not running")
}
