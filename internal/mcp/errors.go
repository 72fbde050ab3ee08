// Package mcp exposes courseware search and reindexing as Model Context
// Protocol tools over stdio.
package mcp

import (
	"context"
	"errors"
	"fmt"

	ierrors "github.com/Aman-CERP/courseindex/internal/errors"
)

// Custom MCP error codes.
const (
	// ErrCodeNotFound indicates an unknown course, library or block.
	ErrCodeNotFound = -32001

	// ErrCodeIndexingFailed indicates a reindex pass failed to write.
	ErrCodeIndexingFailed = -32002

	// ErrCodeTimeout indicates the request timed out or was cancelled.
	ErrCodeTimeout = -32003

	// ErrCodeUnavailable indicates the engine is disabled or cannot be opened.
	ErrCodeUnavailable = -32004

	// Standard JSON-RPC error codes.
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// MCPError represents an MCP protocol error with code and message.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// MapError converts internal errors to MCP errors.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var mcpErr *MCPError
	if errors.As(err, &mcpErr) {
		return mcpErr
	}
	var ie *ierrors.IndexerError
	if errors.As(err, &ie) {
		return mapIndexerError(ie)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request timed out."}
	case errors.Is(err, context.Canceled):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request was canceled."}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: "Internal server error."}
	}
}

// NewInvalidParamsError creates an error for invalid parameters with a custom message.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
}

// NewMethodNotFoundError creates an error for unknown tools.
func NewMethodNotFoundError(name string) *MCPError {
	return &MCPError{
		Code:    ErrCodeMethodNotFound,
		Message: fmt.Sprintf("Tool '%s' not found.", name),
	}
}

func mapIndexerError(ie *ierrors.IndexerError) *MCPError {
	message := ie.Message
	if ie.Suggestion != "" {
		message = fmt.Sprintf("%s. %s", ie.Message, ie.Suggestion)
	}

	switch {
	case ie.Code == ierrors.ErrCodeNodeNotFound:
		return &MCPError{Code: ErrCodeNotFound, Message: message}
	case ie.Category == ierrors.CategoryValidation:
		return &MCPError{Code: ErrCodeInvalidParams, Message: message}
	case ie.Category == ierrors.CategoryEngine:
		return &MCPError{Code: ErrCodeUnavailable, Message: message}
	case ie.Code == ierrors.ErrCodeIndexFailed:
		return &MCPError{Code: ErrCodeIndexingFailed, Message: message}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: message}
	}
}
