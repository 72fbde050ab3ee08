package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/courseindex/internal/content"
)

const oneCourse = `
courses:
  - id: course-v1:edX+SearchX+2015
    display_name: Search Index Test Course
    items:
      - category: chapter
        display_name: Week 1
`

const courseAndLibrary = oneCourse + `
libraries:
  - id: library-v1:edX+SearchLib
    items:
      - category: html
        data: "<p>Some data</p>"
`

type loads struct {
	mu       sync.Mutex
	fixtures []*content.Fixture
}

func (l *loads) record(_ context.Context, fx *content.Fixture) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fixtures = append(l.fixtures, fx)
	return nil
}

func (l *loads) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.fixtures)
}

func (l *loads) last() *content.Fixture {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fixtures[len(l.fixtures)-1]
}

func startReloader(t *testing.T, path string, l *loads) *Reloader {
	t.Helper()
	r, err := NewReloader(path, fastOptions(true), l.record)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = r.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	time.Sleep(60 * time.Millisecond)
	return r
}

func TestReloader_ReloadsChangedFixture(t *testing.T) {
	// Given: a watched fixture with one course
	path := filepath.Join(t.TempDir(), "content.yaml")
	require.NoError(t, os.WriteFile(path, []byte(oneCourse), 0o644))
	l := &loads{}
	r := startReloader(t, path, l)

	// When: a library is added to the file
	require.NoError(t, os.WriteFile(path, []byte(courseAndLibrary), 0o644))

	// Then: the callback receives the new content
	require.Eventually(t, func() bool { return l.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	fx := l.last()
	assert.Len(t, fx.Courses, 1)
	assert.Len(t, fx.Libraries, 1)
	assert.Equal(t, int64(1), r.Reloads())
}

func TestReloader_SkipsInvalidFixture(t *testing.T) {
	// Given: a watched fixture
	path := filepath.Join(t.TempDir(), "content.yaml")
	require.NoError(t, os.WriteFile(path, []byte(oneCourse), 0o644))
	l := &loads{}
	r := startReloader(t, path, l)

	// When: the file is broken
	require.NoError(t, os.WriteFile(path, []byte("courses: [\n"), 0o644))

	// Then: the failure is counted and the callback is not called
	require.Eventually(t, func() bool { return r.Failures() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Zero(t, l.count())
}

func TestReloader_IgnoresRemoval(t *testing.T) {
	path := filepath.Join(t.TempDir(), "content.yaml")
	require.NoError(t, os.WriteFile(path, []byte(oneCourse), 0o644))
	l := &loads{}
	r := startReloader(t, path, l)

	require.NoError(t, os.Remove(path))
	time.Sleep(300 * time.Millisecond)

	assert.Zero(t, l.count())
	assert.Zero(t, r.Failures())
}

func TestNewReloader_RequiresCallback(t *testing.T) {
	_, err := NewReloader("content.yaml", Options{}, nil)
	assert.Error(t, err)
}
