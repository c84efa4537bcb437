package search

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/poiesic/medimatch/catalog"
	"github.com/poiesic/medimatch/core"
)

// Rank scores every entry of cat against query and returns up to k matches
// in descending score order. Equal scores keep catalog order. A catalog with
// fewer than k entries returns all of them.
//
// k must be positive. A query whose length differs from the catalog dimension
// returns core.ErrDimensionMismatch. Rank does not modify cat.
func Rank(query []float32, cat *catalog.Catalog, k int) ([]core.Match, error) {
	if err := core.ValidateK(k); err != nil {
		return nil, err
	}
	if cat == nil {
		return nil, ErrCatalogRequired
	}
	if cat.Len() == 0 {
		return []core.Match{}, nil
	}
	if len(query) != cat.Dimension() {
		return nil, fmt.Errorf("%w: query has %d dimensions, catalog has %d",
			core.ErrDimensionMismatch, len(query), cat.Dimension())
	}

	queryNorm := catalog.Norm(query)
	entries := cat.Entries()
	matches := make([]core.Match, len(entries))
	for i, e := range entries {
		matches[i] = core.Match{
			Name:  e.Name,
			Score: cosine(query, queryNorm, e.Vector, e.Norm),
		}
	}

	slices.SortStableFunc(matches, func(a, b core.Match) int {
		return cmp.Compare(b.Score, a.Score)
	})

	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// RankNames is Rank returning only the names.
func RankNames(query []float32, cat *catalog.Catalog, k int) ([]string, error) {
	matches, err := Rank(query, cat, k)
	if err != nil {
		return nil, err
	}
	return core.Names(matches), nil
}
