// Package errors provides structured error handling for courseindex.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Content store errors (tree reads, about store)
//   - 3XX: Search engine availability errors
//   - 4XX: Validation errors
//   - 5XX: Indexing errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryContent indicates the content store could not serve a read.
	CategoryContent Category = "CONTENT"
	// CategoryEngine indicates the search engine could not be reached or opened.
	CategoryEngine Category = "ENGINE"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryIndexing indicates a reindex pass failed.
	CategoryIndexing Category = "INDEXING"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// Content errors (200-299)
	ErrCodeNodeNotFound      = "ERR_201_NODE_NOT_FOUND"
	ErrCodeContentUnreadable = "ERR_202_CONTENT_UNREADABLE"
	ErrCodeFixtureInvalid    = "ERR_203_FIXTURE_INVALID"
	ErrCodeIndexLocked       = "ERR_204_INDEX_LOCKED"
	ErrCodeCorruptIndex      = "ERR_205_CORRUPT_INDEX"

	// Engine errors (300-399)
	ErrCodeEngineDisabled    = "ERR_301_ENGINE_DISABLED"
	ErrCodeEngineUnavailable = "ERR_302_ENGINE_UNAVAILABLE"

	// Validation errors (400-499)
	ErrCodeInvalidInput    = "ERR_401_INVALID_INPUT"
	ErrCodeInvalidLocation = "ERR_402_INVALID_LOCATION"
	ErrCodeInvalidQuery    = "ERR_403_INVALID_QUERY"
	ErrCodeUnknownScope    = "ERR_404_UNKNOWN_SCOPE"

	// Indexing errors (500-599)
	ErrCodeInternal            = "ERR_501_INTERNAL"
	ErrCodeDocumentBuildFailed = "ERR_502_DOCUMENT_BUILD_FAILED"
	ErrCodeSearchFailed        = "ERR_503_SEARCH_FAILED"
	ErrCodeIndexFailed         = "ERR_505_INDEX_FAILED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryIndexing
	}

	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryContent
	case '3':
		return CategoryEngine
	case '4':
		return CategoryValidation
	default:
		return CategoryIndexing
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeCorruptIndex, ErrCodeConfigInvalid:
		return SeverityFatal
	case ErrCodeEngineDisabled:
		return SeverityWarning
	}

	if isRetryableCode(code) {
		return SeverityWarning
	}
	return SeverityError
}

// isRetryableCode reports whether the whole operation may be retried as is.
// A failed reindex leaves the scope stale until it is retried.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeIndexFailed, ErrCodeEngineUnavailable, ErrCodeIndexLocked:
		return true
	default:
		return false
	}
}
