// Package mcp exposes docsift search and query metrics over the Model
// Context Protocol.
package mcp

import (
	"context"
	"errors"
	"fmt"

	dserrors "github.com/Aman-CERP/docsift/internal/errors"
)

// Custom MCP error codes.
const (
	// ErrCodeIndexNotReady indicates no index has been built yet.
	ErrCodeIndexNotReady = -32001

	// ErrCodeProviderFailed indicates an embedding or reranking provider failed.
	ErrCodeProviderFailed = -32002

	// ErrCodeTimeout indicates the request timed out or was cancelled.
	ErrCodeTimeout = -32003

	// ErrCodeDocumentNotFound indicates the document is not indexed.
	ErrCodeDocumentNotFound = -32004

	// ErrCodeIndexBusy indicates a rebuild holds the index.
	ErrCodeIndexBusy = -32005

	// Standard JSON-RPC error codes.
	ErrCodeInvalidParams = -32602
	ErrCodeInternalError = -32603
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

	var de *dserrors.DocsiftError
	if errors.As(err, &de) {
		return mapDocsiftError(de)
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

// NewInvalidParamsError creates an error for invalid parameters.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
}

// NewDocumentNotFoundError creates an error for an id that is not indexed.
func NewDocumentNotFoundError(uri string) *MCPError {
	return &MCPError{
		Code:    ErrCodeDocumentNotFound,
		Message: fmt.Sprintf("Document '%s' is not indexed.", uri),
	}
}

func mapDocsiftError(de *dserrors.DocsiftError) *MCPError {
	message := de.Message
	if de.Suggestion != "" {
		message = fmt.Sprintf("%s. %s", de.Message, de.Suggestion)
	}

	switch de.Code {
	case dserrors.ErrCodeIndexNotReady, dserrors.ErrCodeCorruptIndex:
		return &MCPError{Code: ErrCodeIndexNotReady, Message: message}
	case dserrors.ErrCodeIndexLocked:
		return &MCPError{Code: ErrCodeIndexBusy, Message: message}
	case dserrors.ErrCodeProviderFailed:
		return &MCPError{Code: ErrCodeProviderFailed, Message: message}
	case dserrors.ErrCodeFileNotFound:
		return &MCPError{Code: ErrCodeDocumentNotFound, Message: message}
	}

	switch de.Category {
	case dserrors.CategoryNetwork:
		return &MCPError{Code: ErrCodeTimeout, Message: message}
	case dserrors.CategoryValidation:
		return &MCPError{Code: ErrCodeInvalidParams, Message: message}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: message}
	}
}
