package watcher

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Debouncer merges bursts of events into one batch per quiet window.
// Editors save through several writes and renames; successive events for
// one path collapse as follows:
//   - CREATE then MODIFY is CREATE
//   - CREATE then DELETE cancels out
//   - DELETE then CREATE is MODIFY
//   - anything else keeps the latest operation
type Debouncer struct {
	window  time.Duration
	mu      sync.Mutex
	pending map[string]FileEvent
	first   map[string]Operation
	timer   *time.Timer
	output  chan []FileEvent
	stopped bool
}

// NewDebouncer creates a debouncer that emits after window of quiet.
func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{
		window:  window,
		pending: make(map[string]FileEvent),
		first:   make(map[string]Operation),
		output:  make(chan []FileEvent, 4),
	}
}

// Add records an event and restarts the window.
func (d *Debouncer) Add(ev FileEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}

	first, seen := d.first[ev.Path]
	switch {
	case !seen:
		d.first[ev.Path] = ev.Operation
		d.pending[ev.Path] = ev
	case first == OpCreate && ev.Operation == OpDelete:
		delete(d.first, ev.Path)
		delete(d.pending, ev.Path)
	case first == OpCreate && ev.Operation == OpModify:
		// still new
	case first == OpDelete && ev.Operation == OpCreate:
		ev.Operation = OpModify
		d.pending[ev.Path] = ev
	default:
		d.pending[ev.Path] = ev
	}

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.flush)
}

func (d *Debouncer) flush() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped || len(d.pending) == 0 {
		return
	}

	batch := make([]FileEvent, 0, len(d.pending))
	for _, ev := range d.pending {
		batch = append(batch, ev)
	}
	sort.Slice(batch, func(i, j int) bool { return batch[i].Path < batch[j].Path })
	d.pending = make(map[string]FileEvent)
	d.first = make(map[string]Operation)

	select {
	case d.output <- batch:
	default:
		slog.Warn("debounce_batch_dropped", slog.Int("batch_size", len(batch)))
	}
}

// Output returns the channel of batches. It is closed by Stop.
func (d *Debouncer) Output() <-chan []FileEvent {
	return d.output
}

// Stop discards pending events and closes the output. Safe to call more
// than once.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	close(d.output)
}
