package reembed

import "github.com/poiesic/medimatch/catalog"

// NormalizeVector returns v scaled to unit length.
// A zero vector is returned as a zero vector of the same length.
func NormalizeVector(v []float32) []float32 {
	result := make([]float32, len(v))
	norm := catalog.Norm(v)
	if norm == 0 {
		return result
	}
	for i, x := range v {
		result[i] = float32(float64(x) / norm)
	}
	return result
}
