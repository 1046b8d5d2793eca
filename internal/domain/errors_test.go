package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_Error(t *testing.T) {
	err := NewDomainError(ErrCodeValidation, "bad input")
	assert.Equal(t, "[VALIDATION_ERROR] bad input", err.Error())

	cause := errors.New("connection refused")
	wrapped := NewDomainErrorWithCause(ErrCodeEmbeddingUnavailable, "embedding service unavailable", cause)
	assert.Equal(t, "[EMBEDDING_UNAVAILABLE] embedding service unavailable: connection refused", wrapped.Error())
	assert.ErrorIs(t, wrapped, cause)
}

func TestDomainError_IsMatchesByCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
		want     bool
	}{
		{"source", SourceUnavailable("biology.txt", errors.New("no such file")), ErrSourceUnavailable, true},
		{"embedding", EmbeddingUnavailable(errors.New("timeout")), ErrEmbeddingUnavailable, true},
		{"dimension", DimensionMismatch(8, 4), ErrDimensionMismatch, true},
		{"generation", GenerationUnavailable(errors.New("model not found")), ErrGenerationUnavailable, true},
		{"wrapped twice", fmt.Errorf("turn failed: %w", DimensionMismatch(3, 2)), ErrDimensionMismatch, true},
		{"different code", DimensionMismatch(8, 4), ErrEmbeddingUnavailable, false},
		{"plain error", errors.New("boom"), ErrSourceUnavailable, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errors.Is(tt.err, tt.sentinel))
		})
	}
}

func TestDimensionMismatch_Message(t *testing.T) {
	err := DimensionMismatch(8, 4)
	assert.Contains(t, err.Error(), "expected 8, got 4")
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, ErrCodeGenerationUnavailable, CodeOf(fmt.Errorf("ask: %w", GenerationUnavailable(nil))))
	assert.Equal(t, "", CodeOf(errors.New("plain")))
	assert.Equal(t, "", CodeOf(nil))
}
