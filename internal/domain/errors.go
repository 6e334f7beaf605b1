package domain

import (
	"context"
	"errors"
	"fmt"
)

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeInternalError = "INTERNAL_ERROR"
	ErrCodeCanceled      = "CANCELED"
	ErrCodeTimeout       = "TIMEOUT"
	ErrCodeNotFound      = "NOT_FOUND"
)

// Pipeline error codes
const (
	ErrCodeUpstreamGeneration = "UPSTREAM_GENERATION_ERROR"
	ErrCodeEmbedding          = "EMBEDDING_ERROR"
	ErrCodeInvalidChunk       = "INVALID_CHUNK"
	ErrCodeSearchUnavailable  = "SEARCH_UNAVAILABLE"
)

// ErrEmptyQuery rejects blank questions before any stage runs.
var ErrEmptyQuery = NewDomainError(ErrCodeValidation, "query cannot be empty")

// NewUpstreamGenerationError wraps a failed text generation call.
func NewUpstreamGenerationError(err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeUpstreamGeneration, "text generation failed", err)
}

// NewEmbeddingError wraps a failed embedding call.
func NewEmbeddingError(err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeEmbedding, "embedding failed", err)
}

// NewInvalidChunkError reports a chunk rejected by the vector store.
func NewInvalidChunkError(message string) *DomainError {
	return NewDomainError(ErrCodeInvalidChunk, message)
}

// NewSearchUnavailableError wraps a web search provider failure.
func NewSearchUnavailableError(err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeSearchUnavailable, "web search unavailable", err)
}

// NewCanceledError wraps a cancellation by the caller.
func NewCanceledError(err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeCanceled, "run canceled", err)
}

// NewTimeoutError wraps an expired run deadline.
func NewTimeoutError(err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeTimeout, "run deadline exceeded", err)
}

// NewContextError classifies a context error: an expired deadline is a
// timeout, anything else is a cancellation.
func NewContextError(err error) *DomainError {
	if errors.Is(err, context.DeadlineExceeded) {
		return NewTimeoutError(err)
	}
	return NewCanceledError(err)
}

// CodeOf returns the code of the first DomainError in err's chain, or "".
func CodeOf(err error) string {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ""
}

// IsCode reports whether err carries a DomainError with the given code.
func IsCode(err error, code string) bool {
	return err != nil && CodeOf(err) == code
}
