package daemon

import (
	"errors"
	"fmt"
	"time"

	ierrors "github.com/Aman-CERP/courseindex/internal/errors"
)

// JSON-RPC 2.0 method names.
const (
	MethodPing            = "ping"
	MethodStatus          = "status"
	MethodCoursePublished = "course_published"
	MethodLibraryUpdated  = "library_updated"
	MethodReindex         = "reindex"
	MethodReindexAbout    = "reindex_about"
	MethodSearch          = "search"
	MethodCheck           = "check"
)

// Standard JSON-RPC 2.0 error codes.
const (
	ErrCodeParseError     = -32700
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// Custom error codes for indexer errors.
const (
	ErrCodeNotFound       = -32001
	ErrCodeIndexingFailed = -32002
	ErrCodeSearchFailed   = -32003
	ErrCodeDisabled       = -32004
)

// Request represents a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
	ID      string `json:"id"`
}

// Response represents a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string `json:"jsonrpc"`
	Result  any    `json:"result,omitempty"`
	Error   *Error `json:"error,omitempty"`
	ID      string `json:"id"`
}

// Error represents a JSON-RPC 2.0 error. Data carries the indexer error
// code when there is one.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Error implements error so clients can return it directly.
func (e *Error) Error() string {
	return fmt.Sprintf("%s (code: %d)", e.Message, e.Code)
}

// NewSuccessResponse creates a successful response.
func NewSuccessResponse(id string, result any) Response {
	return Response{
		JSONRPC: "2.0",
		Result:  result,
		ID:      id,
	}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(id string, code int, message string) Response {
	return Response{
		JSONRPC: "2.0",
		Error: &Error{
			Code:    code,
			Message: message,
		},
		ID: id,
	}
}

// errorResponse maps an indexer error to a JSON-RPC error.
func errorResponse(id string, err error, fallback int) Response {
	code := fallback
	switch {
	case ierrors.IsNotFound(err):
		code = ErrCodeNotFound
	case errors.Is(err, ierrors.ErrDisabled):
		code = ErrCodeDisabled
	case ierrors.IsSearchIndexingError(err):
		code = ErrCodeIndexingFailed
	case ierrors.GetCode(err) == ierrors.ErrCodeInvalidInput,
		ierrors.GetCode(err) == ierrors.ErrCodeInvalidLocation,
		ierrors.GetCode(err) == ierrors.ErrCodeUnknownScope:
		code = ErrCodeInvalidParams
	}
	resp := NewErrorResponse(id, code, err.Error())
	if c := ierrors.GetCode(err); c != "" {
		resp.Error.Data = c
	}
	return resp
}

// ScopeParams names one course or library by its key.
type ScopeParams struct {
	Scope string `json:"scope"`
}

// Validate checks that required fields are present.
func (p *ScopeParams) Validate() error {
	if p.Scope == "" {
		return fmt.Errorf("scope is required")
	}
	return nil
}

// ReindexParams are the parameters for the reindex method.
type ReindexParams struct {
	// Kind is "course" or "library". Defaults to the kind of Scope.
	Kind  string `json:"kind,omitempty"`
	Scope string `json:"scope"`
	// Since limits a course pass to recent edits. Zero means a full pass.
	Since time.Time `json:"since,omitzero"`
}

// Validate checks that required fields are present.
func (p *ReindexParams) Validate() error {
	if p.Scope == "" {
		return fmt.Errorf("scope is required")
	}
	switch p.Kind {
	case "", "course", "library":
	default:
		return fmt.Errorf("kind must be course or library, got %q", p.Kind)
	}
	return nil
}

// ReindexResult reports a synchronous pass.
type ReindexResult struct {
	Scope    string `json:"scope"`
	Mode     string `json:"mode"`
	Indexed  int    `json:"indexed"`
	Removed  int    `json:"removed"`
	Skipped  int    `json:"skipped"`
	Disabled bool   `json:"disabled,omitempty"`
	Duration string `json:"duration"`
}

// EnqueueResult reports a queued task.
type EnqueueResult struct {
	TaskID string `json:"task_id"`
	Kind   string `json:"kind"`
	Scope  string `json:"scope"`
}

// SearchParams are the parameters for the search method.
type SearchParams struct {
	// Index is the index to query (default: courseware_index).
	Index string `json:"index,omitempty"`

	// Query is free text; every term must match. Empty matches everything.
	Query string `json:"query,omitempty"`

	// Fields are exact-match filters such as {"course": "course-v1:..."}.
	Fields map[string]string `json:"fields,omitempty"`

	DocType string `json:"doc_type,omitempty"`
	From    int    `json:"from,omitempty"`

	// Size is the page size (default: 20).
	Size int `json:"size,omitempty"`
}

// Validate rejects a negative offset and resets a negative size to the
// default.
func (p *SearchParams) Validate() error {
	if p.From < 0 {
		return fmt.Errorf("from must not be negative")
	}
	if p.Size < 0 {
		p.Size = 0
	}
	return nil
}

// SearchHit is one search result. Data is the stored document.
type SearchHit struct {
	ID    string         `json:"id"`
	Score float64        `json:"score"`
	Data  map[string]any `json:"data"`
}

// SearchResult is a page of hits.
type SearchResult struct {
	Index   string      `json:"index"`
	Total   int         `json:"total"`
	Results []SearchHit `json:"results"`
}

// CheckResult reports a consistency check.
type CheckResult struct {
	Scope      string   `json:"scope"`
	Eligible   int      `json:"eligible"`
	Indexed    int      `json:"indexed"`
	Missing    []string `json:"missing,omitempty"`
	Stale      []string `json:"stale,omitempty"`
	Consistent bool     `json:"consistent"`
}

// StatusResult contains daemon status information.
type StatusResult struct {
	Running bool   `json:"running"`
	PID     int    `json:"pid"`
	Uptime  string `json:"uptime"`
	Backend string `json:"backend"`
	// Indexes lists the open index names.
	Indexes []string     `json:"indexes"`
	Queue   *QueueStatus `json:"queue,omitempty"`
}

// QueueStatus summarizes the task queue.
type QueueStatus struct {
	Status    string `json:"status"`
	Pending   int    `json:"pending"`
	Running   int    `json:"running"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
	LastError string `json:"last_error,omitempty"`
}

// PingResult is the response to a ping request.
type PingResult struct {
	Pong bool `json:"pong"`
}
