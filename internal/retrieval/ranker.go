// Package retrieval ranks knowledge chunks against a question by cosine
// similarity of their embeddings.
package retrieval

import (
	"context"
	"sort"
	"strings"

	"github.com/cloo-solutions/ragchat/internal/domain"
	"github.com/cloo-solutions/ragchat/internal/knowledge"
)

// Result is a ranked chunk
type Result struct {
	Index int
	Text  string
	Score float64
}

// Ranker scores every chunk of a store with a linear scan.
type Ranker struct {
	embedder knowledge.Embedder
}

// NewRanker creates a Ranker that embeds queries with embedder.
func NewRanker(embedder knowledge.Embedder) *Ranker {
	return &Ranker{embedder: embedder}
}

// Rank embeds query and returns the min(k, store.Len()) most similar chunks,
// highest similarity first. Equal scores keep store insertion order. An empty
// store returns no results without calling the embedding service.
func (r *Ranker) Rank(ctx context.Context, store *knowledge.Store, query string, k int) ([]Result, error) {
	if k < 1 {
		return nil, domain.ErrInvalidTopK
	}
	if store.Len() == 0 {
		return []Result{}, nil
	}

	queryVec, err := r.embedder.GenerateEmbedding(ctx, query)
	if err != nil {
		return nil, domain.EmbeddingUnavailable(err)
	}
	if len(queryVec) != store.Dimensions() {
		return nil, domain.DimensionMismatch(store.Dimensions(), len(queryVec))
	}

	results := make([]Result, 0, store.Len())
	err = store.Each(func(c domain.Chunk) error {
		score, err := CosineSimilarity(queryVec, c.Embedding)
		if err != nil {
			return err
		}
		results = append(results, Result{Index: c.Index, Text: c.Text, Score: score})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if k > len(results) {
		k = len(results)
	}
	return results[:k], nil
}

// TopK returns the texts of the k most similar chunks, highest first.
func (r *Ranker) TopK(ctx context.Context, store *knowledge.Store, query string, k int) ([]string, error) {
	results, err := r.Rank(ctx, store, query, k)
	if err != nil {
		return nil, err
	}
	return Texts(results), nil
}

// Texts extracts the chunk texts of results, preserving order.
func Texts(results []Result) []string {
	texts := make([]string, 0, len(results))
	for _, r := range results {
		texts = append(texts, r.Text)
	}
	return texts
}

// JoinContext concatenates retrieved texts into the context block handed to
// the generator, one chunk per line.
func JoinContext(texts []string) string {
	return strings.Join(texts, "\n")
}
