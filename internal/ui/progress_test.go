package ui

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressTracker_StageResetsCounts(t *testing.T) {
	// Given: a tracker part way through libraries
	p := NewProgressTracker()
	p.SetStage(StageLibraries, 4)
	p.Update(2, "library-v1:edX+L1", 10)

	// When: moving on to courses
	p.SetStage(StageCourses, 3)

	// Then: stage counters reset but indexed documents accumulate
	s := p.Stats()
	assert.Equal(t, StageCourses, s.Stage)
	assert.Equal(t, 0, s.Current)
	assert.Equal(t, 3, s.Total)
	assert.Empty(t, s.Scope)
	assert.Equal(t, 10, s.Indexed)
}

func TestProgressTracker_Progress(t *testing.T) {
	p := NewProgressTracker()
	assert.Zero(t, p.Stats().Progress)

	p.SetStage(StageCourses, 4)
	p.Update(1, "course-v1:edX+A+1", 3)
	assert.InDelta(t, 0.25, p.Stats().Progress, 1e-9)

	p.Update(9, "", 0)
	s := p.Stats()
	assert.InDelta(t, 1.0, s.Progress, 1e-9)
	assert.Equal(t, "course-v1:edX+A+1", s.Scope, "empty scope keeps the last one")
}

func TestProgressTracker_ETA(t *testing.T) {
	// Given: a clock that advances 10s after the stage starts
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := start
	p := NewProgressTracker()
	p.now = func() time.Time { return now }
	p.SetStage(StageCourses, 4)

	// When: one of four scopes finished after 10s
	now = start.Add(10 * time.Second)
	p.Update(1, "course-v1:edX+A+1", 1)

	// Then: three more scopes take about 30s
	assert.Equal(t, 30*time.Second, p.Stats().ETA)

	// And: the next estimate is smoothed toward the previous one
	now = start.Add(20 * time.Second)
	p.Update(3, "course-v1:edX+C+1", 1)
	eta := p.Stats().ETA
	assert.Greater(t, eta, 20*time.Second/3)
	assert.Less(t, eta, 30*time.Second)
}

func TestProgressTracker_ErrorsAndWarnings(t *testing.T) {
	p := NewProgressTracker()
	p.AddError(ErrorEvent{Scope: "course-v1:a+b+c", Err: errors.New("boom")})
	p.AddError(ErrorEvent{Scope: "course-v1:a+b+d", Err: errors.New("stale"), IsWarn: true})

	s := p.Stats()
	assert.Equal(t, 1, s.ErrorCount)
	assert.Equal(t, 1, s.WarnCount)
	require.Len(t, p.Errors(), 1)
	assert.Equal(t, "course-v1:a+b+c", p.Errors()[0].Scope)
	require.Len(t, p.Warnings(), 1)
}

func TestProgressTracker_Concurrent(t *testing.T) {
	p := NewProgressTracker()
	p.SetStage(StageCourses, 100)

	var wg sync.WaitGroup
	for i := 1; i <= 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			p.Update(n, "course", 1)
			_ = p.Stats()
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 100, p.Stats().Indexed)
}
