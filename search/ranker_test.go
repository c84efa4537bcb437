package search

import (
	"math"
	"testing"
	"time"

	"github.com/poiesic/medimatch/catalog"
	"github.com/poiesic/medimatch/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCatalog(meds ...core.Medication) *catalog.Catalog {
	return catalog.New(meds, time.Time{})
}

func analgesics() *catalog.Catalog {
	return newCatalog(
		core.Medication{Name: "Aspirin", Vector: []float32{1, 0, 0}},
		core.Medication{Name: "Ibuprofen", Vector: []float32{0, 1, 0}},
		core.Medication{Name: "Acetaminophen", Vector: []float32{0, 0, 1}},
	)
}

func TestCosineSimilarity(t *testing.T) {
	nan := float32(math.NaN())

	tests := []struct {
		name     string
		a, b     []float32
		expected float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"scaled", []float32{1, 2, 3}, []float32{2, 4, 6}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"zero left", []float32{0, 0}, []float32{1, 1}, 0},
		{"zero right", []float32{1, 1}, []float32{0, 0}, 0},
		{"both zero", []float32{0, 0}, []float32{0, 0}, 0},
		{"length mismatch", []float32{1, 0}, []float32{1, 0, 0}, 0},
		{"nan component", []float32{nan, 1}, []float32{1, 1}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			assert.False(t, math.IsNaN(got))
			assert.InDelta(t, tt.expected, got, 1e-9)
		})
	}
}

func TestCosineSimilarity_Symmetric(t *testing.T) {
	vectors := [][]float32{
		{0.3, -1.7, 2.25, 0.01},
		{-4, 0.5, 0.125, 9},
		{1e-3, 1e3, -7.5, 0.6},
		{0, 0, 0, 0},
		{1, 1, 1, 1},
	}

	for i, a := range vectors {
		for j, b := range vectors {
			assert.Equal(t, CosineSimilarity(a, b), CosineSimilarity(b, a), "vectors %d and %d", i, j)
		}
	}
}

func TestRank_PicksNearest(t *testing.T) {
	names, err := RankNames([]float32{0.1, 0.9, 0.05}, analgesics(), 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"Ibuprofen"}, names)
}

func TestRank_DescendingScores(t *testing.T) {
	matches, err := Rank([]float32{0.5, 0.3, 0.2}, analgesics(), 3)
	require.NoError(t, err)
	require.Len(t, matches, 3)

	assert.Equal(t, []string{"Aspirin", "Ibuprofen", "Acetaminophen"}, core.Names(matches))
	for i := 1; i < len(matches); i++ {
		assert.GreaterOrEqual(t, matches[i-1].Score, matches[i].Score)
	}
}

func TestRank_FewerEntriesThanK(t *testing.T) {
	names, err := RankNames([]float32{1, 0, 0}, analgesics(), 10)
	require.NoError(t, err)
	assert.Len(t, names, 3)
}

func TestRank_TiesKeepCatalogOrder(t *testing.T) {
	cat := newCatalog(
		core.Medication{Name: "Zyrtec", Vector: []float32{1, 1}},
		core.Medication{Name: "Allegra", Vector: []float32{1, 1}},
		core.Medication{Name: "Claritin", Vector: []float32{1, 1}},
		core.Medication{Name: "Benadryl", Vector: []float32{-1, 0}},
	)

	names, err := RankNames([]float32{1, 1}, cat, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"Zyrtec", "Allegra", "Claritin"}, names)
}

func TestRank_ZeroQueryScoresZero(t *testing.T) {
	matches, err := Rank([]float32{0, 0, 0}, analgesics(), 3)
	require.NoError(t, err)

	assert.Equal(t, []string{"Aspirin", "Ibuprofen", "Acetaminophen"}, core.Names(matches))
	for _, m := range matches {
		assert.Zero(t, m.Score)
	}
}

func TestRank_ZeroNormEntry(t *testing.T) {
	cat := newCatalog(
		core.Medication{Name: "Blank", Vector: []float32{0, 0}},
		core.Medication{Name: "Real", Vector: []float32{0, 1}},
	)

	matches, err := Rank([]float32{0, 1}, cat, 2)
	require.NoError(t, err)
	assert.Equal(t, "Real", matches[0].Name)
	assert.Zero(t, matches[1].Score)
}

func TestRank_InvalidK(t *testing.T) {
	for _, k := range []int{0, -1} {
		_, err := Rank([]float32{1, 0, 0}, analgesics(), k)
		assert.ErrorIs(t, err, core.ErrInvalidArgument)
		assert.ErrorIs(t, err, core.ErrInvalidK)
	}
}

func TestRank_EmptyCatalog(t *testing.T) {
	matches, err := Rank([]float32{1}, newCatalog(), 3)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestRank_NilCatalog(t *testing.T) {
	_, err := Rank([]float32{1}, nil, 3)
	assert.ErrorIs(t, err, ErrCatalogRequired)
}

func TestRank_DimensionMismatch(t *testing.T) {
	_, err := Rank([]float32{1, 0}, analgesics(), 1)
	assert.ErrorIs(t, err, core.ErrDimensionMismatch)
}

func TestRankNames_LeadingMalformedRecord(t *testing.T) {
	cat := newCatalog(
		core.Medication{Name: "Corrupt", Vector: []float32{1, 2}},
		core.Medication{Name: "Aspirin", Vector: []float32{1, 0, 0}},
		core.Medication{Name: "Ibuprofen", Vector: []float32{0, 1, 0}},
		core.Medication{Name: "Acetaminophen", Vector: []float32{0, 0, 1}},
	)

	names, err := RankNames([]float32{0, 1, 0}, cat, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"Ibuprofen"}, names)
}

func TestRank_Deterministic(t *testing.T) {
	cat := analgesics()
	query := []float32{0.3, 0.3, 0.4}

	first, err := Rank(query, cat, 2)
	require.NoError(t, err)
	for range 10 {
		again, err := Rank(query, cat, 2)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestRank_DoesNotModifyCatalog(t *testing.T) {
	cat := analgesics()
	before := cat.Names()

	_, err := Rank([]float32{0, 0, 1}, cat, 3)
	require.NoError(t, err)
	assert.Equal(t, before, cat.Names())
}
