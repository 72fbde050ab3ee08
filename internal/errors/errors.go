package errors

import (
	stderrors "errors"
	"fmt"
)

// IndexerError is the structured error type for courseindex.
// It carries enough context for logging, retry decisions and CLI output.
type IndexerError struct {
	// Code is the unique error code (e.g., "ERR_505_INDEX_FAILED").
	Code string

	// Message is the human-readable error message.
	Message string

	Category Category
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable hint for the operator.
	Suggestion string
}

// Error implements the error interface.
func (e *IndexerError) Error() string {
	if e.Cause != nil && e.Cause.Error() != e.Message {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *IndexerError) Unwrap() error {
	return e.Cause
}

// Is matches by code so sentinels like ErrSearchIndexing work with errors.Is.
func (e *IndexerError) Is(target error) bool {
	if t, ok := target.(*IndexerError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
func (e *IndexerError) WithDetail(key, value string) *IndexerError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion.
func (e *IndexerError) WithSuggestion(suggestion string) *IndexerError {
	e.Suggestion = suggestion
	return e
}

// New creates a new IndexerError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *IndexerError {
	return &IndexerError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates an IndexerError from an existing error.
func Wrap(code string, err error) *IndexerError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// Sentinels for errors.Is checks. They match any IndexerError with the same code.
var (
	ErrNotFound       = &IndexerError{Code: ErrCodeNodeNotFound}
	ErrSearchIndexing = &IndexerError{Code: ErrCodeIndexFailed}
	ErrDisabled       = &IndexerError{Code: ErrCodeEngineDisabled}
)

// NotFound reports a location the content store cannot resolve.
func NotFound(location string) *IndexerError {
	return New(ErrCodeNodeNotFound, "item not found: "+location, nil).
		WithDetail("location", location)
}

// SearchIndexingError wraps a failed engine write during a reindex pass of scope.
func SearchIndexingError(scope string, cause error) *IndexerError {
	return New(ErrCodeIndexFailed, "error(s) present during indexing of "+scope, cause).
		WithDetail("scope", scope).
		WithSuggestion("the index is stale for this scope until the reindex is retried")
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *IndexerError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *IndexerError {
	return New(ErrCodeInvalidInput, message, cause)
}

// IsNotFound reports whether err is, or wraps, a NotFound error.
func IsNotFound(err error) bool {
	return stderrors.Is(err, ErrNotFound)
}

// IsSearchIndexingError reports whether err is, or wraps, a SearchIndexingError.
func IsSearchIndexingError(err error) bool {
	return stderrors.Is(err, ErrSearchIndexing)
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var ie *IndexerError
	if stderrors.As(err, &ie) {
		return ie.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
func IsFatal(err error) bool {
	var ie *IndexerError
	if stderrors.As(err, &ie) {
		return ie.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from the first IndexerError in the chain.
func GetCode(err error) string {
	var ie *IndexerError
	if stderrors.As(err, &ie) {
		return ie.Code
	}
	return ""
}
