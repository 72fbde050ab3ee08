// Package service assembles the indexer: content, search engines,
// indexers, task queue and metrics. It implements the daemon's request
// handler and backs the CLI and MCP server.
package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/Aman-CERP/courseindex/internal/async"
	"github.com/Aman-CERP/courseindex/internal/config"
	"github.com/Aman-CERP/courseindex/internal/content"
	ierrors "github.com/Aman-CERP/courseindex/internal/errors"
	"github.com/Aman-CERP/courseindex/internal/index"
	"github.com/Aman-CERP/courseindex/internal/metrics"
	"github.com/Aman-CERP/courseindex/internal/search"
)

// Service owns every component of a running indexer.
type Service struct {
	cfg        *config.Config
	source     *Source
	engines    *search.Manager
	metrics    *metrics.Metrics
	courseware *index.Indexer
	library    *index.Indexer
	about      *index.AboutIndexer
	handler    *async.IndexHandler
	queue      *async.Queue
	dispatcher *async.Dispatcher
	started    time.Time
}

// Option configures a Service.
type Option func(*options)

type options struct {
	metrics *metrics.Metrics
	now     func() time.Time
}

// WithMetrics records into m instead of a fresh registry.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithClock sets the clock used to decide expired enrollment modes.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// New builds a service for cfg serving fx. The queue is idle until Start.
func New(cfg *config.Config, fx *content.Fixture, opts ...Option) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, ierrors.ConfigError("invalid configuration", err)
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.metrics == nil {
		o.metrics = metrics.New()
	}

	backend, err := search.ParseBackend(cfg.Engine.Backend)
	if err != nil {
		return nil, err
	}

	s := &Service{
		cfg:     cfg,
		source:  NewSource(fx),
		engines: search.NewManager(backend, cfg.Engine.DataDir),
		metrics: o.metrics,
		started: time.Now(),
	}

	s.about = index.NewAboutIndexer(index.AboutDeps{
		Content:  s.source,
		About:    s.source,
		Modes:    s.source,
		Engines:  s.engines,
		Recorder: s.metrics,
		Now:      o.now,
	})
	classifier := index.NewClassifier(cfg.Indexing.ExcludedCategories...)
	builder := index.NewBuilder(index.WithUnnamedPlaceholder(cfg.Indexing.UnnamedPlaceholder))

	coursewareCfg := index.CoursewareConfig
	coursewareCfg.PageSize = cfg.Indexing.PageSize
	s.courseware = index.NewIndexer(coursewareCfg, index.Deps{
		Content:    s.source,
		Engines:    s.engines,
		Classifier: classifier,
		Builder:    builder,
		Recorder:   s.metrics,
		About:      s.about,
	})
	libraryCfg := index.LibraryConfig
	libraryCfg.PageSize = cfg.Indexing.PageSize
	s.library = index.NewIndexer(libraryCfg, index.Deps{
		Content:    s.source,
		Engines:    s.engines,
		Classifier: classifier,
		Builder:    builder,
		Recorder:   s.metrics,
	})

	s.handler = &async.IndexHandler{Courseware: s.courseware, Library: s.library, About: s.about}
	s.queue, err = async.NewQueue(s.handler, async.Config{
		Workers: cfg.Queue.Workers,
		Retry: ierrors.RetryConfig{
			MaxRetries:   cfg.Queue.MaxRetries,
			InitialDelay: cfg.RetryDelay(),
			MaxDelay:     10 * cfg.RetryDelay(),
			Multiplier:   2.0,
			Jitter:       true,
		},
		ResultCacheSize: cfg.Queue.ResultCacheSize,
	}, async.WithDepthObserver(s.metrics))
	if err != nil {
		_ = s.engines.Close()
		return nil, err
	}
	s.dispatcher = async.NewDispatcher(s.queue, s.handler)
	return s, nil
}

// Start launches the queue workers.
func (s *Service) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Close stops the queue, dropping pending tasks, and closes the engines.
func (s *Service) Close() error {
	s.queue.Stop()
	return s.engines.Close()
}

// Drain waits for queued work to finish, bounded by timeout.
func (s *Service) Drain(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.queue.Wait(ctx)
}

// Reload serves fx from now on and announces every scope in it: courses
// are queued, libraries are reindexed before Reload returns. Documents of
// scopes that were in the previous content but not in fx are removed.
func (s *Service) Reload(ctx context.Context, fx *content.Fixture) error {
	prev := s.source.Replace(fx)
	fx = s.source.Fixture()
	slog.Info("content_reloaded",
		slog.Int("courses", len(fx.Courses)),
		slog.Int("libraries", len(fx.Libraries)))

	var firstErr error
	for _, key := range droppedScopes(prev, fx) {
		if _, err := s.indexerFor(key).Purge(ctx, key); err != nil {
			slog.Warn("scope_purge_failed",
				slog.String("scope", key.String()),
				slog.String("error", err.Error()))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	for _, course := range fx.Courses {
		if _, err := s.dispatcher.CoursePublished(course); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, library := range fx.Libraries {
		if _, err := s.dispatcher.LibraryUpdated(ctx, library); err != nil {
			slog.Warn("library_reindex_failed",
				slog.String("library", library.String()),
				slog.String("error", err.Error()))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// droppedScopes returns the courses and libraries of prev missing from next.
func droppedScopes(prev, next *content.Fixture) []content.ScopeKey {
	if prev == nil {
		return nil
	}
	kept := make(map[content.ScopeKey]struct{}, len(next.Courses)+len(next.Libraries))
	for _, key := range next.Courses {
		kept[key] = struct{}{}
	}
	for _, key := range next.Libraries {
		kept[key] = struct{}{}
	}
	var dropped []content.ScopeKey
	for _, keys := range [][]content.ScopeKey{prev.Courses, prev.Libraries} {
		for _, key := range keys {
			if _, ok := kept[key]; !ok {
				dropped = append(dropped, key)
			}
		}
	}
	return dropped
}

// Fixture returns the content currently served.
func (s *Service) Fixture() *content.Fixture { return s.source.Fixture() }

// Metrics returns the service's collectors.
func (s *Service) Metrics() *metrics.Metrics { return s.metrics }

// Queue returns the task queue.
func (s *Service) Queue() *async.Queue { return s.queue }

// Dispatcher returns the event dispatcher.
func (s *Service) Dispatcher() *async.Dispatcher { return s.dispatcher }

// Health reports extra fields for the /health endpoint.
func (s *Service) Health() map[string]any {
	snap := s.queue.Status()
	return map[string]any{
		"backend": string(s.engines.Backend()),
		"queue":   snap.Status,
		"pending": snap.Pending,
	}
}

// indexerFor returns the indexer for key's kind.
func (s *Service) indexerFor(key content.ScopeKey) *index.Indexer {
	if key.IsLibrary() {
		return s.library
	}
	return s.courseware
}

// parseScope parses a course or library key; kind, when set, must match.
func parseScope(raw, kind string) (content.ScopeKey, error) {
	key, err := content.ParseScopeKey(strings.TrimSpace(raw))
	if err != nil {
		return content.ScopeKey{}, err
	}
	switch kind {
	case "":
	case string(async.KindCourse):
		if key.IsLibrary() {
			return content.ScopeKey{}, ierrors.ValidationError("expected a course key, got "+raw, nil)
		}
	case string(async.KindLibrary):
		if !key.IsLibrary() {
			return content.ScopeKey{}, ierrors.ValidationError("expected a library key, got "+raw, nil)
		}
	default:
		return content.ScopeKey{}, ierrors.ValidationError("unknown scope kind "+kind, nil)
	}
	return key, nil
}
