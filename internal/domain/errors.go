package domain

import (
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

// Is reports whether target is a DomainError carrying the same code, so a
// wrapped error still matches its sentinel with errors.Is.
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
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

// CodeOf returns the code of the first DomainError in err's chain, or "".
func CodeOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// Domain error codes
const (
	ErrCodeValidation            = "VALIDATION_ERROR"
	ErrCodeUnauthorized          = "UNAUTHORIZED"
	ErrCodeSourceUnavailable     = "SOURCE_UNAVAILABLE"
	ErrCodeEmbeddingUnavailable  = "EMBEDDING_UNAVAILABLE"
	ErrCodeDimensionMismatch     = "DIMENSION_MISMATCH"
	ErrCodeGenerationUnavailable = "GENERATION_UNAVAILABLE"
	ErrCodePayloadTooLarge       = "PAYLOAD_TOO_LARGE"
)

// Validation errors
var (
	ErrInvalidTopK   = NewDomainError(ErrCodeValidation, "k must be at least 1")
	ErrEmptyQuestion = NewDomainError(ErrCodeValidation, "question cannot be empty")
	ErrEmptyQuery    = NewDomainError(ErrCodeValidation, "query cannot be empty")

	ErrPayloadTooLarge = NewDomainError(ErrCodePayloadTooLarge, "request body too large")
)

// Service errors
var (
	ErrSourceUnavailable     = NewDomainError(ErrCodeSourceUnavailable, "knowledge source unavailable")
	ErrEmbeddingUnavailable  = NewDomainError(ErrCodeEmbeddingUnavailable, "embedding service unavailable")
	ErrDimensionMismatch     = NewDomainError(ErrCodeDimensionMismatch, "embedding dimensions do not match")
	ErrGenerationUnavailable = NewDomainError(ErrCodeGenerationUnavailable, "generation service unavailable")
)

// Authorization errors
var (
	ErrInvalidAPIKey = NewDomainError(ErrCodeUnauthorized, "invalid api key")
)

// SourceUnavailable wraps a source loading failure.
func SourceUnavailable(location string, err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeSourceUnavailable, fmt.Sprintf("knowledge source %q unavailable", location), err)
}

// EmbeddingUnavailable wraps an embedding service failure.
func EmbeddingUnavailable(err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeEmbeddingUnavailable, "embedding service unavailable", err)
}

// DimensionMismatch reports two vectors of different lengths.
func DimensionMismatch(want, got int) *DomainError {
	return NewDomainError(ErrCodeDimensionMismatch, fmt.Sprintf("embedding dimensions do not match: expected %d, got %d", want, got))
}

// GenerationUnavailable wraps a generation service failure.
func GenerationUnavailable(err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeGenerationUnavailable, "generation service unavailable", err)
}
