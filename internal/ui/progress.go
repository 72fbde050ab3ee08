package ui

import (
	"sync"
	"time"
)

// ProgressTracker manages rebuild progress across stages.
// It is safe for concurrent use.
type ProgressTracker struct {
	mu         sync.RWMutex
	stage      Stage
	current    int
	total      int
	scope      string
	indexed    int
	stageStart time.Time
	lastETA    time.Duration
	errors     []ErrorEvent
	warnings   []ErrorEvent
	now        func() time.Time
}

// ProgressStats contains a snapshot of current progress.
type ProgressStats struct {
	Stage      Stage
	Current    int
	Total      int
	Progress   float64
	ETA        time.Duration
	Scope      string
	Indexed    int
	ErrorCount int
	WarnCount  int
}

// NewProgressTracker creates a new progress tracker.
func NewProgressTracker() *ProgressTracker {
	return &ProgressTracker{now: time.Now, stageStart: time.Now()}
}

// SetStage transitions to a new stage with total scopes to process.
func (p *ProgressTracker) SetStage(stage Stage, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stage = stage
	p.total = total
	p.current = 0
	p.scope = ""
	p.stageStart = p.now()
	p.lastETA = 0
}

// Update records that current scopes of the stage are done, the last one
// being scope with indexed documents written.
func (p *ProgressTracker) Update(current int, scope string, indexed int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current = current
	if scope != "" {
		p.scope = scope
	}
	p.indexed += indexed
}

// AddError records an error or warning.
func (p *ProgressTracker) AddError(event ErrorEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if event.IsWarn {
		p.warnings = append(p.warnings, event)
	} else {
		p.errors = append(p.errors, event)
	}
}

// Stats returns current statistics snapshot.
// Uses write lock because calculateETA updates the smoothed estimate.
func (p *ProgressTracker) Stats() ProgressStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	progress := 0.0
	if p.total > 0 {
		progress = min(float64(p.current)/float64(p.total), 1.0)
	}

	return ProgressStats{
		Stage:      p.stage,
		Current:    p.current,
		Total:      p.total,
		Progress:   progress,
		ETA:        p.calculateETA(),
		Scope:      p.scope,
		Indexed:    p.indexed,
		ErrorCount: len(p.errors),
		WarnCount:  len(p.warnings),
	}
}

// Errors returns the recorded errors.
func (p *ProgressTracker) Errors() []ErrorEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return append([]ErrorEvent(nil), p.errors...)
}

// Warnings returns the recorded warnings.
func (p *ProgressTracker) Warnings() []ErrorEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return append([]ErrorEvent(nil), p.warnings...)
}

// etaSmoothingFactor is the weight of the newest ETA sample.
const etaSmoothingFactor = 0.3

// calculateETA must be called with the lock held.
func (p *ProgressTracker) calculateETA() time.Duration {
	if p.current == 0 || p.total == 0 {
		return 0
	}

	progress := float64(p.current) / float64(p.total)
	if progress >= 1.0 {
		return 0
	}

	elapsed := p.now().Sub(p.stageStart)
	raw := time.Duration(float64(elapsed)/progress) - elapsed
	if raw < 0 {
		return 0
	}

	if p.lastETA == 0 {
		p.lastETA = raw
		return raw
	}
	smoothed := time.Duration(etaSmoothingFactor*float64(raw) + (1-etaSmoothingFactor)*float64(p.lastETA))
	p.lastETA = smoothed
	return smoothed
}
