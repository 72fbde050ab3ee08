package service

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/courseindex/internal/config"
	"github.com/Aman-CERP/courseindex/internal/content"
	"github.com/Aman-CERP/courseindex/internal/daemon"
	ierrors "github.com/Aman-CERP/courseindex/internal/errors"
	"github.com/Aman-CERP/courseindex/internal/index"
)

const (
	courseID  = "course-v1:edX+SearchX+2015"
	libraryID = "library-v1:edX+SearchLib"
)

const serviceFixture = `
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
                block: subsection1
                display_name: Subsection 1
                children:
                  - category: html
                    display_name: Html Content
                    published: false
libraries:
  - id: library-v1:edX+SearchLib
    display_name: Search Library
    items:
      - category: html
        display_name: Html Content
        data: "<p>Some data</p>"
      - category: html
        display_name: Html Content 2
        data: "<p>Other data</p>"
`

func testConfig(backend string) *config.Config {
	cfg := config.NewConfig()
	cfg.Engine.Backend = backend
	cfg.Engine.DataDir = ""
	cfg.Queue.MaxRetries = 0
	cfg.Queue.RetryDelay = "1ms"
	return cfg
}

func parseFixture(t *testing.T, yaml string) *content.Fixture {
	t.Helper()
	fx, err := content.ParseFixture([]byte(yaml))
	require.NoError(t, err)
	return fx
}

// newService starts a service over serviceFixture with in-memory bleve
// engines.
func newService(t *testing.T) *Service {
	t.Helper()
	return newServiceWith(t, testConfig("bleve"), parseFixture(t, serviceFixture))
}

func newServiceWith(t *testing.T, cfg *config.Config, fx *content.Fixture) *Service {
	t.Helper()
	svc, err := New(cfg, fx)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	svc.Start(ctx)
	t.Cleanup(func() {
		cancel()
		_ = svc.Close()
	})
	return svc
}

func drain(t *testing.T, svc *Service) {
	t.Helper()
	require.NoError(t, svc.Drain(5*time.Second))
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := testConfig("elasticsearch")

	_, err := New(cfg, nil)

	require.Error(t, err)
	assert.Equal(t, ierrors.ErrCodeConfigInvalid, ierrors.GetCode(err))
}

func TestService_CoursePublishedQueuesFullReindex(t *testing.T) {
	// Given: a course with three published blocks
	svc := newService(t)
	ctx := context.Background()

	// When: the course is published
	queued, err := svc.CoursePublished(ctx, courseID)
	require.NoError(t, err)
	assert.NotEmpty(t, queued.TaskID)
	assert.Equal(t, "course", queued.Kind)
	drain(t, svc)

	// Then: the published blocks and the discovery document are searchable
	found, err := svc.Search(ctx, daemon.SearchParams{Fields: map[string]string{"course": courseID}, Size: 10})
	require.NoError(t, err)
	assert.Equal(t, 3, found.Total)

	about, err := svc.Search(ctx, daemon.SearchParams{Index: index.AboutIndexName, Query: "anybody"})
	require.NoError(t, err)
	assert.Equal(t, 1, about.Total)

	status := svc.Status()
	assert.Equal(t, 1, status.Queue.Succeeded)
	assert.Equal(t, []string{index.AboutIndexName, index.CoursewareIndexName}, status.Indexes)
}

func TestService_LibraryUpdatedIsSynchronous(t *testing.T) {
	svc := newService(t)

	res, err := svc.LibraryUpdated(context.Background(), libraryID)

	require.NoError(t, err)
	assert.Equal(t, 2, res.Indexed)
	assert.Equal(t, "full", res.Mode)

	found, err := svc.Search(context.Background(), daemon.SearchParams{Index: index.LibraryIndexName, Query: "Some data"})
	require.NoError(t, err)
	assert.Equal(t, 1, found.Total)
}

func TestService_Reindex(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	t.Run("course in full", func(t *testing.T) {
		res, err := svc.Reindex(ctx, daemon.ReindexParams{Scope: courseID})
		require.NoError(t, err)
		assert.Equal(t, "full", res.Mode)
		assert.Equal(t, 3, res.Indexed)
	})

	t.Run("course since a time in the future", func(t *testing.T) {
		res, err := svc.Reindex(ctx, daemon.ReindexParams{Scope: courseID, Since: time.Now().Add(time.Hour)})
		require.NoError(t, err)
		assert.Equal(t, "incremental", res.Mode)
		// Only the depth-one chapter is always rewritten.
		assert.Equal(t, 1, res.Indexed)
		assert.Equal(t, 2, res.Skipped)
	})

	t.Run("library", func(t *testing.T) {
		res, err := svc.Reindex(ctx, daemon.ReindexParams{Kind: "library", Scope: libraryID})
		require.NoError(t, err)
		assert.Equal(t, 2, res.Indexed)
	})

	t.Run("kind mismatch", func(t *testing.T) {
		_, err := svc.Reindex(ctx, daemon.ReindexParams{Kind: "library", Scope: courseID})
		require.Error(t, err)
		assert.Equal(t, ierrors.ErrCodeInvalidInput, ierrors.GetCode(err))
	})

	t.Run("library with since", func(t *testing.T) {
		_, err := svc.Reindex(ctx, daemon.ReindexParams{Scope: libraryID, Since: time.Now()})
		assert.Error(t, err)
	})

	t.Run("unknown course", func(t *testing.T) {
		_, err := svc.Reindex(ctx, daemon.ReindexParams{Scope: "course-v1:edX+Nope+1"})
		require.Error(t, err)
		assert.True(t, ierrors.IsNotFound(err))
	})

	t.Run("malformed key", func(t *testing.T) {
		_, err := svc.Reindex(ctx, daemon.ReindexParams{Scope: "not a key"})
		assert.Error(t, err)
	})
}

func TestService_ReindexAbout(t *testing.T) {
	svc := newService(t)

	res, err := svc.ReindexAbout(context.Background(), courseID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Indexed)
	assert.False(t, res.Disabled)

	_, err = svc.ReindexAbout(context.Background(), libraryID)
	assert.Error(t, err)
}

func TestService_Search(t *testing.T) {
	// Given: an indexed course
	svc := newService(t)
	ctx := context.Background()
	_, err := svc.Reindex(ctx, daemon.ReindexParams{Scope: courseID})
	require.NoError(t, err)

	// When: searching for a unit title
	found, err := svc.Search(ctx, daemon.SearchParams{Query: "Subsection"})

	// Then: the hit carries the stored document
	require.NoError(t, err)
	require.Equal(t, 1, found.Total)
	hit := found.Results[0]
	assert.Equal(t, "block-v1:edX+SearchX+2015+type@vertical+block@subsection1", hit.ID)
	assert.Equal(t, courseID, hit.Data["course"])
	assert.Equal(t, []any{"Week 1", "Lesson 1"}, hit.Data["location"])

	// And: queries are counted per index
	m := svc.Metrics()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchQueriesTotal.WithLabelValues(index.CoursewareIndexName, "success")))

	_, err = svc.Search(ctx, daemon.SearchParams{Query: "nothing-matches-this"})
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchZeroResultsTotal.WithLabelValues(index.CoursewareIndexName)))
}

func TestService_SearchUnknownIndex(t *testing.T) {
	svc := newService(t)

	_, err := svc.Search(context.Background(), daemon.SearchParams{Index: "edx_notes"})

	require.Error(t, err)
	assert.Equal(t, ierrors.ErrCodeInvalidQuery, ierrors.GetCode(err))
}

func TestService_DisabledBackend(t *testing.T) {
	// Given: indexing turned off
	svc := newServiceWith(t, testConfig("none"), parseFixture(t, serviceFixture))
	ctx := context.Background()

	// Then: reindexing succeeds without writing
	res, err := svc.Reindex(ctx, daemon.ReindexParams{Scope: courseID})
	require.NoError(t, err)
	assert.True(t, res.Disabled)
	assert.Zero(t, res.Indexed)

	// And: search reports the engine as disabled
	_, err = svc.Search(ctx, daemon.SearchParams{Query: "Week"})
	require.Error(t, err)
	assert.Equal(t, ierrors.ErrCodeEngineDisabled, ierrors.GetCode(err))
}

func TestService_CheckAndRepair(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	check, err := svc.Check(ctx, courseID)
	require.NoError(t, err)
	assert.False(t, check.Consistent)
	assert.Equal(t, 3, check.Eligible)
	assert.Len(t, check.Missing, 3)

	repaired, err := svc.Repair(ctx, courseID)
	require.NoError(t, err)
	assert.Equal(t, 3, repaired.Indexed)

	check, err = svc.Check(ctx, courseID)
	require.NoError(t, err)
	assert.True(t, check.Consistent)
	assert.Empty(t, check.Missing)

	libCheck, err := svc.Check(ctx, libraryID)
	require.NoError(t, err)
	assert.Equal(t, 2, libCheck.Eligible)
}

func TestService_Reload(t *testing.T) {
	// Given: a service that starts with no content
	svc := newServiceWith(t, testConfig("bleve"), nil)
	assert.Empty(t, svc.Fixture().Courses)

	// When: a fixture is loaded
	require.NoError(t, svc.Reload(context.Background(), parseFixture(t, serviceFixture)))
	drain(t, svc)

	// Then: its courses and libraries are indexed
	check, err := svc.Check(context.Background(), courseID)
	require.NoError(t, err)
	assert.True(t, check.Consistent)
	assert.Equal(t, 3, check.Indexed)

	lib, err := svc.Check(context.Background(), libraryID)
	require.NoError(t, err)
	assert.Equal(t, 2, lib.Indexed)
}

func TestService_ReloadRemovesDroppedScopes(t *testing.T) {
	// Given: an indexed course and library
	svc := newService(t)
	ctx := context.Background()
	_, err := svc.Reindex(ctx, daemon.ReindexParams{Scope: courseID})
	require.NoError(t, err)
	_, err = svc.LibraryUpdated(ctx, libraryID)
	require.NoError(t, err)

	// When: the content is reloaded without either of them
	require.NoError(t, svc.Reload(ctx, parseFixture(t, "courses: []\n")))
	drain(t, svc)

	// Then: none of their documents remain searchable
	found, err := svc.Search(ctx, daemon.SearchParams{Fields: map[string]string{"course": courseID}, Size: 10})
	require.NoError(t, err)
	assert.Zero(t, found.Total)

	about, err := svc.Search(ctx, daemon.SearchParams{Index: index.AboutIndexName, Query: "anybody"})
	require.NoError(t, err)
	assert.Zero(t, about.Total)

	lib, err := svc.Search(ctx, daemon.SearchParams{Index: index.LibraryIndexName, Fields: map[string]string{"library": libraryID}})
	require.NoError(t, err)
	assert.Zero(t, lib.Total)
}

func TestDroppedScopes(t *testing.T) {
	course := content.CourseKey("edX", "A", "1")
	kept := content.CourseKey("edX", "B", "1")
	library := content.LibraryKey("edX", "Lib")
	prev := &content.Fixture{Courses: []content.ScopeKey{course, kept}, Libraries: []content.ScopeKey{library}}
	next := &content.Fixture{Courses: []content.ScopeKey{kept}}

	assert.Equal(t, []content.ScopeKey{course, library}, droppedScopes(prev, next))
	assert.Empty(t, droppedScopes(nil, next))
	assert.Empty(t, droppedScopes(next, prev))
}

func TestService_Health(t *testing.T) {
	svc := newService(t)

	health := svc.Health()

	assert.Equal(t, "bleve", health["backend"])
	assert.Equal(t, 0, health["pending"])
}

func TestSource_EmptyFixture(t *testing.T) {
	src := NewSource(nil)

	_, err := src.Tree(context.Background(), content.CourseKey("edX", "X", "1"), content.BranchPublished)
	assert.Error(t, err)

	modes, err := src.ModesForCourse(context.Background(), courseID)
	require.NoError(t, err)
	assert.Empty(t, modes)
}
