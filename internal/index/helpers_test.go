package index

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/courseindex/internal/content"
	"github.com/Aman-CERP/courseindex/internal/enrollment"
	"github.com/Aman-CERP/courseindex/internal/search"
)

// stepClock advances one second on every call.
type stepClock struct {
	mu  sync.Mutex
	cur time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur = c.cur.Add(time.Second)
	return c.cur
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ptr[T any](v T) *T { return &v }

// courseFixture is a course with one chapter, sequential and vertical, all
// published, and an unpublished html unit in the vertical.
type courseFixture struct {
	t        *testing.T
	clock    *stepClock
	store    *content.MemoryStore
	modes    *enrollment.MemoryStore
	engines  *search.Manager
	course   content.ScopeKey
	chapter  content.Location
	seq      content.Location
	vertical content.Location
	html     content.Location
}

func newCourseFixture(t *testing.T) *courseFixture {
	t.Helper()
	f := &courseFixture{
		t:       t,
		clock:   &stepClock{cur: date(2024, 1, 1)},
		modes:   enrollment.NewMemoryStore(),
		engines: search.NewManager(search.BackendBleve, ""),
		course:  content.CourseKey("edX", "SearchX", "2015"),
	}
	t.Cleanup(func() { _ = f.engines.Close() })
	f.store = content.NewMemoryStore(content.WithClock(f.clock.Now))

	_, err := f.store.CreateCourse(f.course, content.CourseSpec{
		DisplayName: "Search Index Test Course",
		Start:       date(2015, 3, 1),
	})
	require.NoError(t, err)

	f.chapter = f.create(f.course.Root(), content.ItemSpec{
		Category: "chapter", DisplayName: "Week 1", Start: ptr(date(2015, 3, 1)), Publish: true,
	})
	f.seq = f.create(f.chapter, content.ItemSpec{
		Category: "sequential", DisplayName: "Lesson 1", Start: ptr(date(2015, 3, 1)), Publish: true,
	})
	f.vertical = f.create(f.seq, content.ItemSpec{
		Category: "vertical", DisplayName: "Subsection 1", Start: ptr(date(2015, 4, 1)), Publish: true,
	})
	f.html = f.create(f.vertical, content.ItemSpec{
		Category: "html", DisplayName: "Html Content",
	})
	return f
}

func (f *courseFixture) create(parent content.Location, spec content.ItemSpec) content.Location {
	f.t.Helper()
	loc, err := f.store.CreateItem(parent, spec)
	require.NoError(f.t, err)
	return loc
}

func (f *courseFixture) publish(loc content.Location) {
	f.t.Helper()
	require.NoError(f.t, f.store.Publish(loc))
}

func (f *courseFixture) about() *AboutIndexer {
	return NewAboutIndexer(AboutDeps{
		Content: f.store,
		About:   f.store,
		Modes:   f.modes,
		Engines: f.engines,
		Now:     func() time.Time { return date(2024, 6, 1) },
	})
}

func (f *courseFixture) indexer() *Indexer {
	return NewCoursewareIndexer(Deps{Content: f.store, Engines: f.engines, About: f.about()})
}

func (f *courseFixture) reindex() int {
	f.t.Helper()
	n, err := f.indexer().Reindex(context.Background(), Scope{Key: f.course})
	require.NoError(f.t, err)
	return n
}

func (f *courseFixture) search(text string) *search.Response {
	f.t.Helper()
	return searchIndex(f.t, f.engines, CoursewareIndexName, CoursewareDocType, "course", f.course.String(), text)
}

func (f *courseFixture) results(text string) []Document {
	f.t.Helper()
	return decodeResults[Document](f.t, f.search(text))
}

func searchIndex(t *testing.T, engines *search.Manager, index, docType, field, scope, text string) *search.Response {
	t.Helper()
	e, err := engines.Engine(index)
	require.NoError(t, err)
	resp, err := e.Search(context.Background(), search.Query{
		Text:    text,
		DocType: docType,
		Fields:  map[string]string{field: scope},
		Size:    100,
	})
	require.NoError(t, err)
	return resp
}

func decodeResults[T any](t *testing.T, resp *search.Response) []T {
	t.Helper()
	out := make([]T, 0, len(resp.Results))
	for _, r := range resp.Results {
		var v T
		require.NoError(t, json.Unmarshal(r.Data, &v))
		out = append(out, v)
	}
	return out
}

var errEngineWrite = errors.New("engine write failed")

// erroringEngine fails every Index call. It hides Apply so indexers fall
// back to Index and Remove.
type erroringEngine struct {
	search.Engine
}

func (erroringEngine) Index(context.Context, string, ...search.Document) error {
	return errEngineWrite
}

type erroringSource struct {
	engines *search.Manager
}

func (s erroringSource) Engine(name string) (search.Engine, error) {
	e, err := s.engines.Engine(name)
	if err != nil {
		return nil, err
	}
	return erroringEngine{Engine: e}, nil
}

// recordingRecorder keeps every observation.
type recordingRecorder struct {
	mu  sync.Mutex
	obs []observation
}

type observation struct {
	index   string
	mode    Mode
	outcome string
	indexed int
	removed int
}

func (r *recordingRecorder) ObserveReindex(index string, mode Mode, outcome string, indexed, removed int, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.obs = append(r.obs, observation{index, mode, outcome, indexed, removed})
}

// failingIndex fails writes to one index name and passes the rest through.
type failingIndex struct {
	engines *search.Manager
	name    string
}

func (s failingIndex) Engine(name string) (search.Engine, error) {
	e, err := s.engines.Engine(name)
	if err != nil || name != s.name {
		return e, err
	}
	return erroringEngine{Engine: e}, nil
}
