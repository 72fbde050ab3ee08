// Package enrollment holds the enrollment modes offered by a course.
package enrollment

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Mode is one enrollment track of a course (audit, verified, honor...).
type Mode struct {
	CourseID    string     `yaml:"-" json:"course_id"`
	Slug        string     `yaml:"slug" json:"slug"`
	DisplayName string     `yaml:"display_name" json:"display_name"`
	MinPrice    int        `yaml:"min_price" json:"min_price"`
	Currency    string     `yaml:"currency" json:"currency"`
	ExpiresAt   *time.Time `yaml:"expires_at" json:"expires_at,omitempty"`
}

// Expired reports whether the mode stopped being offered before now.
func (m Mode) Expired(now time.Time) bool {
	return m.ExpiresAt != nil && !m.ExpiresAt.After(now)
}

// Store reads the modes of a course.
type Store interface {
	ModesForCourse(ctx context.Context, courseID string) ([]Mode, error)
}

// ActiveSlugs returns the sorted, unique slugs of modes still offered at now.
func ActiveSlugs(modes []Mode, now time.Time) []string {
	seen := make(map[string]bool, len(modes))
	slugs := make([]string, 0, len(modes))
	for _, m := range modes {
		if m.Slug == "" || m.Expired(now) || seen[m.Slug] {
			continue
		}
		seen[m.Slug] = true
		slugs = append(slugs, m.Slug)
	}
	sort.Strings(slugs)
	return slugs
}

// MemoryStore is a Store backed by a map.
type MemoryStore struct {
	mu    sync.RWMutex
	modes map[string][]Mode
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{modes: make(map[string][]Mode)}
}

// Add registers a mode, replacing any mode with the same course and slug.
func (s *MemoryStore) Add(m Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.modes[m.CourseID]
	for i := range list {
		if list[i].Slug == m.Slug {
			list[i] = m
			return
		}
	}
	s.modes[m.CourseID] = append(list, m)
}

// Remove deletes a mode. Unknown modes are ignored.
func (s *MemoryStore) Remove(courseID, slug string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.modes[courseID]
	for i := range list {
		if list[i].Slug == slug {
			s.modes[courseID] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

// ModesForCourse implements Store. A course without modes yields nil.
func (s *MemoryStore) ModesForCourse(_ context.Context, courseID string) ([]Mode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Mode(nil), s.modes[courseID]...), nil
}
