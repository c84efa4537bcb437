package reembed

import (
	"testing"

	"github.com/poiesic/medimatch/catalog"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeVector(t *testing.T) {
	t.Run("unit length", func(t *testing.T) {
		v := NormalizeVector([]float32{3, 4})
		assert.InDelta(t, 0.6, v[0], 1e-6)
		assert.InDelta(t, 0.8, v[1], 1e-6)
		assert.InDelta(t, 1.0, catalog.Norm(v), 1e-6)
	})

	t.Run("zero vector", func(t *testing.T) {
		assert.Equal(t, []float32{0, 0, 0}, NormalizeVector([]float32{0, 0, 0}))
	})

	t.Run("empty", func(t *testing.T) {
		assert.Empty(t, NormalizeVector(nil))
	})

	t.Run("input untouched", func(t *testing.T) {
		in := []float32{2, 0}
		NormalizeVector(in)
		assert.Equal(t, []float32{2, 0}, in)
	})
}
