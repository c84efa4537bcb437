package search

import (
	"math"

	"github.com/poiesic/medimatch/catalog"
)

// CosineSimilarity returns dot(a, b) / (|a| * |b|).
// It returns 0 when either vector has zero norm, when the lengths differ,
// or when the result is not a finite number.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	return cosine(a, catalog.Norm(a), b, catalog.Norm(b))
}

// cosine uses precomputed norms.
func cosine(a []float32, normA float64, b []float32, normB float64) float64 {
	if normA == 0 || normB == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	score := dot / (normA * normB)
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return 0
	}
	return score
}
