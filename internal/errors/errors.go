package errors

import (
	stderrors "errors"
	"fmt"
)

// DocsiftError is the structured error type for docsift.
// It carries enough context for logging and user presentation.
type DocsiftError struct {
	// Code is the unique error code (e.g., "ERR_201_FILE_NOT_FOUND").
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

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *DocsiftError) Error() string {
	if e.Cause != nil && e.Cause.Error() != e.Message {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *DocsiftError) Unwrap() error {
	return e.Cause
}

// Is matches by code, so errors.Is(err, ErrNotReady) works for any
// DocsiftError carrying ErrCodeIndexNotReady.
func (e *DocsiftError) Is(target error) bool {
	if t, ok := target.(*DocsiftError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
func (e *DocsiftError) WithDetail(key, value string) *DocsiftError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *DocsiftError) WithSuggestion(suggestion string) *DocsiftError {
	e.Suggestion = suggestion
	return e
}

// New creates a new DocsiftError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *DocsiftError {
	return &DocsiftError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a DocsiftError from an existing error.
func Wrap(code string, err error) *DocsiftError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// Sentinels usable with errors.Is.
var (
	// ErrNotReady is returned when the sparse index is queried before it
	// has been trained or loaded.
	ErrNotReady = New(ErrCodeIndexNotReady, "index not ready", nil).
			WithSuggestion("run 'docsift index <root>' first")

	// ErrProvider matches any embedding or reranking provider failure.
	ErrProvider = New(ErrCodeProviderFailed, "provider failed", nil)

	// ErrExtraction matches per-file text extraction failures.
	ErrExtraction = New(ErrCodeExtractionFailed, "extraction failed", nil)
)

// ProviderError wraps a failure from an external model provider.
func ProviderError(provider string, cause error) *DocsiftError {
	return New(ErrCodeProviderFailed, provider+" provider failed", cause).
		WithDetail("provider", provider)
}

// ExtractionError reports that text could not be extracted from a file.
func ExtractionError(path string, cause error) *DocsiftError {
	return New(ErrCodeExtractionFailed, "extract "+path, cause).
		WithDetail("path", path)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *DocsiftError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *DocsiftError {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *DocsiftError {
	return New(ErrCodeInternal, message, cause)
}

// IsProviderError reports whether err originated from a model provider.
func IsProviderError(err error) bool {
	return stderrors.Is(err, ErrProvider)
}

// IsRetryable checks if an error in the chain is retryable.
func IsRetryable(err error) bool {
	var de *DocsiftError
	if stderrors.As(err, &de) {
		return de.Retryable
	}
	return false
}

// GetCode extracts the error code of the first DocsiftError in the chain.
// Returns empty string if there is none.
func GetCode(err error) string {
	var de *DocsiftError
	if stderrors.As(err, &de) {
		return de.Code
	}
	return ""
}
