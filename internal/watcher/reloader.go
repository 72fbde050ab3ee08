package watcher

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/Aman-CERP/courseindex/internal/content"
)

// ReloadFunc receives freshly parsed content.
type ReloadFunc func(ctx context.Context, fx *content.Fixture) error

// Reloader parses the fixture again after every change and hands it to a
// ReloadFunc. A fixture that fails to parse is logged and skipped; the
// previous content stays in service.
type Reloader struct {
	watcher *FileWatcher
	onLoad  ReloadFunc
	opts    []content.StoreOption

	reloads  atomic.Int64
	failures atomic.Int64
}

// NewReloader watches path and calls onLoad after each change.
func NewReloader(path string, opts Options, onLoad ReloadFunc, storeOpts ...content.StoreOption) (*Reloader, error) {
	if onLoad == nil {
		return nil, errors.New("reload callback is required")
	}
	w, err := NewFileWatcher(path, opts)
	if err != nil {
		return nil, err
	}
	return &Reloader{watcher: w, onLoad: onLoad, opts: storeOpts}, nil
}

// Run blocks until ctx is cancelled.
func (r *Reloader) Run(ctx context.Context) error {
	watchErr := make(chan error, 1)
	go func() { watchErr <- r.watcher.Start(ctx) }()

	slog.Info("content_watch_started",
		slog.String("path", r.watcher.Path()),
		slog.String("mode", r.watcher.Kind()))

	errs := r.watcher.Errors()
	for {
		select {
		case <-ctx.Done():
			_ = r.watcher.Stop()
			return ctx.Err()
		case err := <-watchErr:
			_ = r.watcher.Stop()
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			slog.Warn("content_watch_error", slog.String("error", err.Error()))
		case batch, ok := <-r.watcher.Events():
			if !ok {
				return nil
			}
			r.apply(ctx, batch)
		}
	}
}

// apply reloads unless the last event removed the file.
func (r *Reloader) apply(ctx context.Context, batch []FileEvent) {
	last := batch[len(batch)-1]
	if last.Operation.Removed() {
		slog.Warn("content_file_removed",
			slog.String("path", last.Path),
			slog.String("op", last.Operation.String()))
		return
	}

	fx, err := content.LoadFixture(r.watcher.Path(), r.opts...)
	if err != nil {
		r.failures.Add(1)
		slog.Error("content_reload_failed",
			slog.String("path", r.watcher.Path()),
			slog.String("error", err.Error()))
		return
	}
	if err := r.onLoad(ctx, fx); err != nil {
		r.failures.Add(1)
		slog.Error("content_reindex_failed", slog.String("error", err.Error()))
		return
	}
	r.reloads.Add(1)
	slog.Info("content_reloaded_from_disk",
		slog.String("path", r.watcher.Path()),
		slog.Int("courses", len(fx.Courses)),
		slog.Int("libraries", len(fx.Libraries)))
}

// Reloads returns how many reloads reached the callback successfully.
func (r *Reloader) Reloads() int64 { return r.reloads.Load() }

// Failures returns how many reloads failed to parse or reindex.
func (r *Reloader) Failures() int64 { return r.failures.Load() }

// Stop stops watching.
func (r *Reloader) Stop() error { return r.watcher.Stop() }
