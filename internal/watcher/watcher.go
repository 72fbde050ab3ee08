package watcher

import "time"

// Operation is a change to the watched file.
type Operation int

const (
	// OpCreate means the file appeared.
	OpCreate Operation = iota
	// OpModify means the file was written or replaced.
	OpModify
	// OpDelete means the file is gone.
	OpDelete
	// OpRename means the file was moved away.
	OpRename
)

// String returns a human-readable representation of the operation.
func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	case OpRename:
		return "RENAME"
	default:
		return "UNKNOWN"
	}
}

// Removed reports whether the file no longer exists after op.
func (op Operation) Removed() bool {
	return op == OpDelete || op == OpRename
}

// FileEvent is one change to a watched path.
type FileEvent struct {
	Path      string
	Operation Operation
	Timestamp time.Time
}

// Options configures watching.
type Options struct {
	// DebounceWindow is the quiet time before a batch is emitted.
	// Default: 300ms
	DebounceWindow time.Duration

	// PollInterval is used when fsnotify is unavailable.
	// Default: 2s
	PollInterval time.Duration

	// EventBufferSize bounds the batches waiting to be read.
	// Default: 16
	EventBufferSize int

	// ForcePolling skips fsnotify.
	ForcePolling bool
}

// DefaultOptions returns the default watcher options.
func DefaultOptions() Options {
	return Options{
		DebounceWindow:  300 * time.Millisecond,
		PollInterval:    2 * time.Second,
		EventBufferSize: 16,
	}
}

// WithDefaults returns options with defaults applied for zero values.
func (o Options) WithDefaults() Options {
	defaults := DefaultOptions()
	if o.DebounceWindow <= 0 {
		o.DebounceWindow = defaults.DebounceWindow
	}
	if o.PollInterval <= 0 {
		o.PollInterval = defaults.PollInterval
	}
	if o.EventBufferSize <= 0 {
		o.EventBufferSize = defaults.EventBufferSize
	}
	return o
}
