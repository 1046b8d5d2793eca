package retrieval

import (
	"math"

	"github.com/cloo-solutions/ragchat/internal/domain"
)

// Unscored is the similarity assigned when cosine similarity is undefined,
// e.g. when either vector has zero magnitude. It ranks below every real score.
var Unscored = math.Inf(-1)

// CosineSimilarity computes dot(a,b) / (|a| * |b|) in float64. Vectors of
// different lengths yield a DIMENSION_MISMATCH error; a zero-magnitude vector
// yields Unscored instead of NaN.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, domain.DimensionMismatch(len(a), len(b))
	}

	var dot, na2, nb2 float64
	for i := range a {
		va := float64(a[i])
		vb := float64(b[i])
		dot += va * vb
		na2 += va * va
		nb2 += vb * vb
	}
	if na2 == 0 || nb2 == 0 {
		return Unscored, nil
	}

	sim := dot / (math.Sqrt(na2) * math.Sqrt(nb2))
	if math.IsNaN(sim) || math.IsInf(sim, 0) {
		return Unscored, nil
	}
	return sim, nil
}
