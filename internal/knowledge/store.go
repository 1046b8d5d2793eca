// Package knowledge holds the in-memory knowledge base: one embedded chunk
// per non-blank source line, built once and read-only afterwards.
package knowledge

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/cloo-solutions/ragchat/internal/domain"
)

// Embedder defines the interface for generating embeddings
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// Store is an ordered, immutable collection of chunks. The zero value is an
// empty store.
type Store struct {
	chunks     []domain.Chunk
	dimensions int
}

// Build splits sourceText into lines, drops blank ones, and embeds each
// remaining line in source order. Any embedding failure aborts the build.
func Build(ctx context.Context, sourceText string, embedder Embedder) (*Store, error) {
	lines := SplitLines(sourceText)
	log.Printf("knowledge: processing %d chunks", len(lines))

	store := &Store{chunks: make([]domain.Chunk, 0, len(lines))}
	for _, line := range lines {
		embedding, err := embedder.GenerateEmbedding(ctx, line.Text)
		if err != nil {
			return nil, domain.EmbeddingUnavailable(fmt.Errorf("line %d: %w", line.Number, err))
		}

		chunk := domain.NewChunk(len(store.chunks), line.Text, embedding)
		if err := domain.ValidateChunk(chunk); err != nil {
			return nil, domain.EmbeddingUnavailable(fmt.Errorf("line %d: %w", line.Number, err))
		}

		if store.dimensions == 0 {
			store.dimensions = len(chunk.Embedding)
		} else if len(chunk.Embedding) != store.dimensions {
			return nil, domain.DimensionMismatch(store.dimensions, len(chunk.Embedding))
		}

		store.chunks = append(store.chunks, chunk)
	}

	log.Printf("knowledge: store ready (%d chunks, %d dimensions)", len(store.chunks), store.dimensions)
	return store, nil
}

// Len returns the number of chunks.
func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	return len(s.chunks)
}

// Dimensions returns the embedding length shared by every chunk, or 0 for
// an empty store.
func (s *Store) Dimensions() int {
	if s == nil {
		return 0
	}
	return s.dimensions
}

// Chunk returns the chunk at position i.
func (s *Store) Chunk(i int) domain.Chunk {
	return s.chunks[i]
}

// Each calls fn for every chunk in insertion order, stopping at the first
// error. Chunks are passed by value; their embeddings must not be modified.
func (s *Store) Each(fn func(domain.Chunk) error) error {
	if s == nil {
		return nil
	}
	for _, c := range s.chunks {
		if err := fn(c); err != nil {
			return err
		}
	}
	return nil
}

// Texts returns the chunk texts in insertion order.
func (s *Store) Texts() []string {
	out := make([]string, 0, s.Len())
	_ = s.Each(func(c domain.Chunk) error {
		out = append(out, c.Text)
		return nil
	})
	return out
}

// Line is a kept source line and its 1-based line number.
type Line struct {
	Number int
	Text   string
}

var lineEndings = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// SplitLines splits text on "\n", "\r\n" or a bare "\r" and discards lines
// whose trimmed content is empty. Kept lines retain their literal text.
func SplitLines(text string) []Line {
	if text == "" {
		return nil
	}

	raw := strings.Split(lineEndings.Replace(text), "\n")
	lines := make([]Line, 0, len(raw))
	for i, l := range raw {
		if strings.TrimSpace(l) == "" {
			continue
		}
		lines = append(lines, Line{Number: i + 1, Text: l})
	}
	return lines
}
