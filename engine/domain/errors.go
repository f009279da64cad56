package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for validation failures.
var (
	ErrUnknownStrategy   = errors.New("unknown chunking strategy")
	ErrInvalidChunkSize  = errors.New("invalid chunk size")
	ErrInvalidOverlap    = errors.New("invalid overlap")
	ErrInvalidTranscript = errors.New("invalid transcript")
	ErrInvalidSegment    = errors.New("invalid segment")
	ErrEmptyQuery        = errors.New("empty query")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// ValidationError wraps a sentinel with context.
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s (value=%q)", e.Wrapped, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// NewValidationError creates a ValidationError.
func NewValidationError(field, value string, wrapped error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Wrapped: wrapped}
}

// UpstreamError marks a failure of an external collaborator (embedding
// provider or storage backend). Callers surface it without retrying.
type UpstreamError struct {
	System string // "embedding" or "storage"
	Err    error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s: %s", e.System, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Upstream wraps err as an UpstreamError for the named system.
func Upstream(system string, err error) *UpstreamError {
	return &UpstreamError{System: system, Err: err}
}
