package search

import (
	"math"
	"strings"

	"github.com/poiesic/medimatch/core"
)

// maxSubQueries is the number of prefix sub-queries fused per search.
const maxSubQueries = 3

// SubQuery is one prefix lookup of a fused search.
type SubQuery struct {
	Text  string
	Count int
}

// PlanSubQueries splits query on whitespace and returns three sub-queries made
// of its first one, two and three tokens. Queries with fewer than three tokens
// repeat the full query. Tokens past the third are not used.
//
// With widen set the counts are k+2, k+1 and k, saturating at math.MaxInt;
// otherwise all three are k.
func PlanSubQueries(query string, k int, widen bool) ([]SubQuery, error) {
	if err := core.ValidateQuery(query); err != nil {
		return nil, err
	}
	if err := core.ValidateK(k); err != nil {
		return nil, err
	}

	tokens := strings.Fields(query)
	plan := make([]SubQuery, maxSubQueries)
	for i := range plan {
		n := min(i+1, len(tokens))
		count := k
		if widen {
			count = k + min(maxSubQueries-1-i, math.MaxInt-k)
		}
		plan[i] = SubQuery{
			Text:  strings.Join(tokens[:n], " "),
			Count: count,
		}
	}
	return plan, nil
}

// Merge concatenates lists in order and drops repeated names, keeping the
// first occurrence. The result is never nil.
func Merge(lists ...[]string) []string {
	total := 0
	for _, l := range lists {
		total += len(l)
	}
	seen := make(map[string]struct{}, total)
	merged := make([]string, 0, total)
	for _, l := range lists {
		for _, name := range l {
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			merged = append(merged, name)
		}
	}
	return merged
}
