// Package async runs reindex work in the background. Content events become
// tasks on a queue that a pool of workers drains.
package async

import (
	"sync"
	"time"
)

// QueueStatus represents the overall queue state.
type QueueStatus string

const (
	// StatusIdle indicates nothing is pending or running.
	StatusIdle QueueStatus = "idle"
	// StatusBusy indicates at least one task is pending or running.
	StatusBusy QueueStatus = "busy"
	// StatusStopped indicates the queue no longer accepts tasks.
	StatusStopped QueueStatus = "stopped"
)

// TaskState is the lifecycle state of one task.
type TaskState string

const (
	TaskPending   TaskState = "pending"
	TaskRunning   TaskState = "running"
	TaskSucceeded TaskState = "succeeded"
	TaskFailed    TaskState = "failed"
)

// TaskResult is the outcome of the last task run for a scope.
type TaskResult struct {
	TaskID     string    `json:"task_id"`
	Kind       Kind      `json:"kind"`
	Scope      string    `json:"scope"`
	State      TaskState `json:"state"`
	Indexed    int       `json:"indexed"`
	Removed    int       `json:"removed"`
	Attempts   int       `json:"attempts"`
	Error      string    `json:"error,omitempty"`
	EnqueuedAt time.Time `json:"enqueued_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// QueueSnapshot is an immutable snapshot of queue progress.
type QueueSnapshot struct {
	Status         string  `json:"status"`
	Workers        int     `json:"workers"`
	Pending        int     `json:"pending"`
	Running        int     `json:"running"`
	Succeeded      int     `json:"succeeded"`
	Failed         int     `json:"failed"`
	Coalesced      int     `json:"coalesced"`
	SuccessPct     float64 `json:"success_pct"`
	ElapsedSeconds int     `json:"elapsed_seconds"`
	LastError      string  `json:"last_error,omitempty"`
}

// QueueProgress provides thread-safe counters for a queue.
type QueueProgress struct {
	mu sync.RWMutex

	workers   int
	pending   int
	running   int
	succeeded int
	failed    int
	coalesced int
	stopped   bool
	startTime time.Time
	lastError string
}

// NewQueueProgress creates a tracker for a pool of workers.
func NewQueueProgress(workers int) *QueueProgress {
	return &QueueProgress{workers: workers, startTime: time.Now()}
}

func (p *QueueProgress) enqueued() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending++
}

func (p *QueueProgress) merged() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.coalesced++
}

func (p *QueueProgress) started() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending--
	p.running++
}

func (p *QueueProgress) finished(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.running--
	if err != nil {
		p.failed++
		p.lastError = err.Error()
		return
	}
	p.succeeded++
}

func (p *QueueProgress) dropped(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending -= n
}

func (p *QueueProgress) stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped = true
}

// Depth returns pending plus running tasks.
func (p *QueueProgress) Depth() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.pending + p.running
}

// Snapshot returns an immutable copy of the current progress state.
func (p *QueueProgress) Snapshot() QueueSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	status := StatusIdle
	switch {
	case p.stopped:
		status = StatusStopped
	case p.pending+p.running > 0:
		status = StatusBusy
	}

	var successPct float64
	if done := p.succeeded + p.failed; done > 0 {
		successPct = float64(p.succeeded) / float64(done) * 100.0
	}

	return QueueSnapshot{
		Status:         string(status),
		Workers:        p.workers,
		Pending:        p.pending,
		Running:        p.running,
		Succeeded:      p.succeeded,
		Failed:         p.failed,
		Coalesced:      p.coalesced,
		SuccessPct:     successPct,
		ElapsedSeconds: int(time.Since(p.startTime).Seconds()),
		LastError:      p.lastError,
	}
}
