package domain

import (
	"fmt"
	"strings"
)

// Chunk is one retrievable line of the knowledge base with its embedding.
type Chunk struct {
	Index     int
	Text      string
	Embedding []float32
}

// NewChunk creates a Chunk holding its own copy of embedding.
func NewChunk(index int, text string, embedding []float32) Chunk {
	vec := make([]float32, len(embedding))
	copy(vec, embedding)
	return Chunk{
		Index:     index,
		Text:      text,
		Embedding: vec,
	}
}

// ValidateChunk validates a Chunk instance
func ValidateChunk(c Chunk) error {
	if strings.TrimSpace(c.Text) == "" {
		return fmt.Errorf("chunk Text is required")
	}
	if c.Index < 0 {
		return fmt.Errorf("chunk Index cannot be negative")
	}
	if len(c.Embedding) == 0 {
		return fmt.Errorf("chunk Embedding is required")
	}
	return nil
}
