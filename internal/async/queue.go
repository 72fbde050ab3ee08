package async

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/courseindex/internal/content"
	ierrors "github.com/Aman-CERP/courseindex/internal/errors"
)

// Kind is what a task reindexes.
type Kind string

const (
	KindCourse  Kind = "course"
	KindLibrary Kind = "library"
	KindAbout   Kind = "about"
)

// Task is one queued reindex. A zero Since asks for a full pass.
type Task struct {
	ID         string           `json:"id"`
	Kind       Kind             `json:"kind"`
	Scope      content.ScopeKey `json:"-"`
	Since      time.Time        `json:"since,omitzero"`
	EnqueuedAt time.Time        `json:"enqueued_at"`
}

// key identifies tasks that would do the same work.
func (t Task) key() string {
	since := ""
	if !t.Since.IsZero() {
		since = t.Since.UTC().Format(time.RFC3339Nano)
	}
	return string(t.Kind) + "|" + t.Scope.String() + "|" + since
}

func resultKey(kind Kind, scope content.ScopeKey) string {
	return string(kind) + "|" + scope.String()
}

// Outcome is what a handler reports for a finished task.
type Outcome struct {
	Indexed int
	Removed int
}

// Handler executes tasks.
type Handler interface {
	Handle(ctx context.Context, t Task) (Outcome, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, t Task) (Outcome, error)

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, t Task) (Outcome, error) { return f(ctx, t) }

// DepthObserver is told the queue depth whenever it changes.
type DepthObserver interface {
	SetQueueDepth(depth int)
}

// Config configures a Queue.
type Config struct {
	Workers int
	// Retry applies to retryable handler errors.
	Retry ierrors.RetryConfig
	// ResultCacheSize bounds how many scopes keep their last result.
	ResultCacheSize int
}

// DefaultConfig returns two workers, the default retry policy and room for
// 256 results.
func DefaultConfig() Config {
	return Config{
		Workers:         2,
		Retry:           ierrors.DefaultRetryConfig(),
		ResultCacheSize: 256,
	}
}

// Option configures a Queue.
type Option func(*Queue)

// WithDepthObserver reports depth changes to o.
func WithDepthObserver(o DepthObserver) Option {
	return func(q *Queue) { q.observer = o }
}

// WithClock sets the clock used for task timestamps.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

// Queue runs tasks on a fixed pool of workers. A task enqueued while an
// identical one is still pending is merged into it.
type Queue struct {
	cfg      Config
	handler  Handler
	observer DepthObserver
	now      func() time.Time
	progress *QueueProgress
	results  *lru.Cache[string, TaskResult]

	mu       sync.Mutex
	cond     *sync.Cond
	pending  []Task
	keys     map[string]string
	inflight int
	idle     chan struct{}
	started  bool
	stopped  bool
	cancel   context.CancelFunc
	group    *errgroup.Group
}

// NewQueue creates a queue. Call Start to begin processing.
func NewQueue(h Handler, cfg Config, opts ...Option) (*Queue, error) {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.ResultCacheSize <= 0 {
		cfg.ResultCacheSize = DefaultConfig().ResultCacheSize
	}
	results, err := lru.New[string, TaskResult](cfg.ResultCacheSize)
	if err != nil {
		return nil, ierrors.ConfigError("invalid result cache size", err)
	}

	idle := make(chan struct{})
	close(idle)
	q := &Queue{
		cfg:      cfg,
		handler:  h,
		now:      time.Now,
		progress: NewQueueProgress(cfg.Workers),
		results:  results,
		keys:     make(map[string]string),
		idle:     idle,
	}
	for _, opt := range opts {
		opt(q)
	}
	q.cond = sync.NewCond(&q.mu)
	return q, nil
}

// Start launches the workers. They stop when ctx is cancelled or Stop is
// called.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started || q.stopped {
		return
	}
	q.started = true

	ctx, cancel := context.WithCancel(ctx)
	q.cancel = cancel
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < q.cfg.Workers; i++ {
		g.Go(func() error {
			q.work(gctx)
			return nil
		})
	}
	q.group = g

	go func() {
		<-gctx.Done()
		q.mu.Lock()
		q.stopped = true
		q.cond.Broadcast()
		q.mu.Unlock()
	}()
}

// Enqueue adds t and returns the task that will do the work: t with its ID
// and EnqueuedAt filled in, or the pending task it was merged into.
func (q *Queue) Enqueue(t Task) (Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.stopped {
		return Task{}, ierrors.New(ierrors.ErrCodeEngineUnavailable, "task queue is stopped", nil)
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.EnqueuedAt.IsZero() {
		t.EnqueuedAt = q.now()
	}

	key := t.key()
	if id, ok := q.keys[key]; ok {
		q.progress.merged()
		for _, p := range q.pending {
			if p.ID == id {
				slog.Debug("task_coalesced",
					slog.String("task_id", id),
					slog.String("kind", string(t.Kind)),
					slog.String("scope", t.Scope.String()))
				return p, nil
			}
		}
	}

	q.keys[key] = t.ID
	q.pending = append(q.pending, t)
	if q.inflight == 0 {
		q.idle = make(chan struct{})
	}
	q.inflight++
	q.progress.enqueued()
	q.observeDepth()
	q.cond.Signal()

	slog.Debug("task_enqueued",
		slog.String("task_id", t.ID),
		slog.String("kind", string(t.Kind)),
		slog.String("scope", t.Scope.String()))
	return t, nil
}

// Wait blocks until no task is pending or running.
func (q *Queue) Wait(ctx context.Context) error {
	q.mu.Lock()
	idle := q.idle
	q.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop rejects new tasks, drops pending ones and waits for running tasks to
// return.
func (q *Queue) Stop() {
	q.mu.Lock()
	q.stopped = true
	cancel, group := q.cancel, q.group
	q.cond.Broadcast()
	q.mu.Unlock()

	q.progress.stop()
	if cancel != nil {
		cancel()
	}
	if group != nil {
		_ = group.Wait()
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if n := len(q.pending); n > 0 {
		slog.Warn("tasks_dropped", slog.Int("count", n))
		q.progress.dropped(n)
		q.pending = nil
		q.keys = make(map[string]string)
		q.inflight -= n
		if q.inflight == 0 {
			close(q.idle)
		}
		q.observeDepth()
	}
}

// Status returns a snapshot of the queue counters.
func (q *Queue) Status() QueueSnapshot {
	return q.progress.Snapshot()
}

// LastResult returns the most recent result for kind and scope.
func (q *Queue) LastResult(kind Kind, scope content.ScopeKey) (TaskResult, bool) {
	return q.results.Get(resultKey(kind, scope))
}

// Results returns the cached results, least recently used first.
func (q *Queue) Results() []TaskResult {
	return q.results.Values()
}

func (q *Queue) work(ctx context.Context) {
	for {
		t, ok := q.next()
		if !ok {
			return
		}
		q.run(ctx, t)
	}
}

func (q *Queue) next() (Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.pending) == 0 && !q.stopped {
		q.cond.Wait()
	}
	if q.stopped {
		return Task{}, false
	}
	t := q.pending[0]
	q.pending = q.pending[1:]
	delete(q.keys, t.key())
	q.progress.started()
	return t, true
}

func (q *Queue) run(ctx context.Context, t Task) {
	attempts := 0
	out, err := ierrors.RetryWithResult(ctx, q.cfg.Retry, func() (Outcome, error) {
		attempts++
		return q.handler.Handle(ctx, t)
	})

	res := TaskResult{
		TaskID:     t.ID,
		Kind:       t.Kind,
		Scope:      t.Scope.String(),
		State:      TaskSucceeded,
		Indexed:    out.Indexed,
		Removed:    out.Removed,
		Attempts:   attempts,
		EnqueuedAt: t.EnqueuedAt,
		FinishedAt: q.now(),
	}
	if err != nil {
		res.State = TaskFailed
		res.Error = err.Error()
		slog.Error("task_failed",
			slog.String("task_id", t.ID),
			slog.String("kind", string(t.Kind)),
			slog.String("scope", res.Scope),
			slog.Int("attempts", attempts),
			slog.String("error", err.Error()))
	} else {
		slog.Info("task_complete",
			slog.String("task_id", t.ID),
			slog.String("kind", string(t.Kind)),
			slog.String("scope", res.Scope),
			slog.Int("indexed", out.Indexed),
			slog.Int("removed", out.Removed))
	}
	q.results.Add(resultKey(t.Kind, t.Scope), res)
	q.progress.finished(err)

	q.mu.Lock()
	defer q.mu.Unlock()
	q.inflight--
	if q.inflight == 0 {
		close(q.idle)
	}
	q.observeDepth()
}

// observeDepth must be called with mu held.
func (q *Queue) observeDepth() {
	if q.observer != nil {
		q.observer.SetQueueDepth(q.inflight)
	}
}
