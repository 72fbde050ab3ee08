package service

import (
	"context"
	"sync/atomic"

	"github.com/Aman-CERP/courseindex/internal/content"
	"github.com/Aman-CERP/courseindex/internal/enrollment"
)

// Source serves the content of the current fixture. Replace swaps the
// fixture without rebuilding the indexers that read through it.
type Source struct {
	current atomic.Pointer[content.Fixture]
}

var (
	_ content.Accessor    = (*Source)(nil)
	_ content.AboutSource = (*Source)(nil)
	_ enrollment.Store    = (*Source)(nil)
)

// NewSource creates a source for fx. A nil fixture serves no scopes.
func NewSource(fx *content.Fixture) *Source {
	s := &Source{}
	s.Replace(fx)
	return s
}

// Replace installs fx and returns the previous fixture.
func (s *Source) Replace(fx *content.Fixture) *content.Fixture {
	if fx == nil {
		fx = &content.Fixture{Store: content.NewMemoryStore(), Modes: enrollment.NewMemoryStore()}
	}
	return s.current.Swap(fx)
}

// Fixture returns the fixture currently served.
func (s *Source) Fixture() *content.Fixture { return s.current.Load() }

// Tree implements content.Accessor.
func (s *Source) Tree(ctx context.Context, scope content.ScopeKey, branch content.Branch) (*content.Tree, error) {
	return s.Fixture().Store.Tree(ctx, scope, branch)
}

// Node implements content.Accessor.
func (s *Source) Node(ctx context.Context, loc content.Location, branch content.Branch) (*content.Node, error) {
	return s.Fixture().Store.Node(ctx, loc, branch)
}

// About implements content.AboutSource.
func (s *Source) About(ctx context.Context, course content.ScopeKey, key string) (string, error) {
	return s.Fixture().Store.About(ctx, course, key)
}

// ModesForCourse implements enrollment.Store.
func (s *Source) ModesForCourse(ctx context.Context, courseID string) ([]enrollment.Mode, error) {
	return s.Fixture().Modes.ModesForCourse(ctx, courseID)
}
