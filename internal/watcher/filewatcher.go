package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileWatcher emits debounced changes to a single file. It watches the
// parent directory so that editors that save by renaming a temp file over
// the original are still seen.
type FileWatcher struct {
	path        string
	opts        Options
	fsWatcher   *fsnotify.Watcher
	useFsnotify bool
	debouncer   *Debouncer
	events      chan []FileEvent
	errors      chan error
	stopCh      chan struct{}

	mu             sync.RWMutex
	stopped        bool
	droppedBatches atomic.Uint64
}

// NewFileWatcher creates a watcher for path. It falls back to polling when
// fsnotify cannot be initialised.
func NewFileWatcher(path string, opts Options) (*FileWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve absolute path: %w", err)
	}
	opts = opts.WithDefaults()

	w := &FileWatcher{
		path:      abs,
		opts:      opts,
		debouncer: NewDebouncer(opts.DebounceWindow),
		events:    make(chan []FileEvent, opts.EventBufferSize),
		errors:    make(chan error, 10),
		stopCh:    make(chan struct{}),
	}
	if !opts.ForcePolling {
		if fsw, err := fsnotify.NewWatcher(); err == nil {
			w.fsWatcher = fsw
			w.useFsnotify = true
		} else {
			slog.Warn("fsnotify_unavailable", slog.String("error", err.Error()))
		}
	}
	return w, nil
}

// Start watches until ctx is cancelled or Stop is called.
func (w *FileWatcher) Start(ctx context.Context) error {
	go w.forward(ctx)

	if !w.useFsnotify {
		err := poll(ctx, w.stopCh, w.path, w.opts.PollInterval, w.add, w.emitError)
		if ctx.Err() != nil {
			_ = w.Stop()
		}
		return err
	}

	if err := w.fsWatcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}
	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case ev, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.emitError(err)
		}
	}
}

// handle maps an fsnotify event on the watched file to an operation.
func (w *FileWatcher) handle(ev fsnotify.Event) {
	if filepath.Clean(ev.Name) != w.path {
		return
	}
	switch {
	case ev.Has(fsnotify.Create):
		w.add(OpCreate)
	case ev.Has(fsnotify.Write):
		w.add(OpModify)
	case ev.Has(fsnotify.Remove):
		w.add(OpDelete)
	case ev.Has(fsnotify.Rename):
		w.add(OpRename)
	}
}

func (w *FileWatcher) add(op Operation) {
	w.debouncer.Add(FileEvent{Path: w.path, Operation: op, Timestamp: time.Now()})
}

func (w *FileWatcher) forward(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case batch, ok := <-w.debouncer.Output():
			if !ok {
				return
			}
			w.emit(batch)
		}
	}
}

func (w *FileWatcher) emit(batch []FileEvent) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.stopped {
		return
	}
	select {
	case w.events <- batch:
	default:
		n := w.droppedBatches.Add(1)
		slog.Warn("watch_batch_dropped",
			slog.Int("batch_size", len(batch)),
			slog.Uint64("total_dropped_batches", n))
	}
}

func (w *FileWatcher) emitError(err error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.stopped {
		return
	}
	select {
	case w.errors <- err:
	default:
	}
}

// Stop releases the watcher and closes its channels. Safe to call more
// than once.
func (w *FileWatcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return nil
	}
	w.stopped = true
	close(w.stopCh)
	w.debouncer.Stop()
	if w.fsWatcher != nil {
		_ = w.fsWatcher.Close()
	}
	close(w.events)
	close(w.errors)
	return nil
}

// Events returns debounced batches. Closed by Stop.
func (w *FileWatcher) Events() <-chan []FileEvent { return w.events }

// Errors returns non-fatal watch errors. Closed by Stop.
func (w *FileWatcher) Errors() <-chan error { return w.errors }

// Path returns the absolute path being watched.
func (w *FileWatcher) Path() string { return w.path }

// Kind returns "fsnotify" or "polling".
func (w *FileWatcher) Kind() string {
	if w.useFsnotify {
		return "fsnotify"
	}
	return "polling"
}

// DroppedBatches returns how many batches were dropped on a full buffer.
func (w *FileWatcher) DroppedBatches() uint64 { return w.droppedBatches.Load() }
