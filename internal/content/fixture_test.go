package content

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ierrors "github.com/Aman-CERP/courseindex/internal/errors"
)

const sampleFixture = `
courses:
  - id: course-v1:edX+Demo+2015
    display_name: Demo Course
    start: 2015-03-01T00:00:00Z
    fields:
      language: en
    about:
      short_description: A demo.
    modes:
      - slug: audit
      - slug: verified
        min_price: 49
    items:
      - category: chapter
        block: week1
        display_name: Week 1
        children:
          - category: sequential
            block: lesson1
            display_name: Lesson 1
            children:
              - category: html
                block: intro
                data: "<p>Welcome</p>"
              - category: html
                block: draft_only
                published: false
libraries:
  - id: library-v1:edX+Lib
    display_name: Library
    items:
      - category: problem
        block: p1
        data: "<problem>2+2</problem>"
`

func TestParseFixture_BuildsStores(t *testing.T) {
	ctx := context.Background()

	// When parsing a fixture
	f, err := ParseFixture([]byte(sampleFixture))
	require.NoError(t, err)

	course := CourseKey("edX", "Demo", "2015")
	lib := LibraryKey("edX", "Lib")
	assert.Equal(t, []ScopeKey{course}, f.Courses)
	assert.Equal(t, []ScopeKey{lib}, f.Libraries)

	// Then the published tree omits unpublished items
	published, err := f.Store.Tree(ctx, course, BranchPublished)
	require.NoError(t, err)
	assert.Equal(t, []string{"course", "week1", "lesson1", "intro"}, blocks(t, published))

	draft, err := f.Store.Tree(ctx, course, BranchDraft)
	require.NoError(t, err)
	assert.Equal(t, 5, draft.Len())

	// And course properties, about entries and modes are loaded
	root := published.Root()
	require.NotNil(t, root.Start)
	assert.Equal(t, time.Date(2015, 3, 1, 0, 0, 0, 0, time.UTC), *root.Start)
	assert.Equal(t, "en", root.Field("language"))

	about, err := f.Store.About(ctx, course, "short_description")
	require.NoError(t, err)
	assert.Equal(t, "A demo.", about)

	modes, err := f.Modes.ModesForCourse(ctx, course.String())
	require.NoError(t, err)
	require.Len(t, modes, 2)
	assert.Equal(t, 49, modes[1].MinPrice)

	libTree, err := f.Store.Tree(ctx, lib, BranchCurrent)
	require.NoError(t, err)
	assert.Equal(t, 2, libTree.Len())
}

func TestParseFixture_RejectsBadIDs(t *testing.T) {
	tests := []string{
		"courses:\n  - id: library-v1:edX+Lib\n",
		"libraries:\n  - id: course-v1:edX+C+R\n",
		"courses:\n  - id: nonsense\n",
		"courses: [",
	}
	for _, in := range tests {
		_, err := ParseFixture([]byte(in))
		require.Error(t, err, in)
		assert.Equal(t, ierrors.ErrCodeFixtureInvalid, ierrors.GetCode(err), in)
	}
}

func TestLoadFixture_MissingFile(t *testing.T) {
	_, err := LoadFixture(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Equal(t, ierrors.ErrCodeContentUnreadable, ierrors.GetCode(err))
}

func TestLoadFixture_ReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "content.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleFixture), 0o644))

	f, err := LoadFixture(path)
	require.NoError(t, err)
	assert.Len(t, f.Courses, 1)
}
