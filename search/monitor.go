package search

import (
	"github.com/poiesic/medimatch/core"
)

// SearchMonitor provides hooks to observe the search process.
// Implement this interface to track intermediate steps and results during search.
// Hooks are called from the goroutine running the search, in order.
type SearchMonitor interface {
	Start(query string, plan []SubQuery)
	AfterCatalogLoad(size int)
	SubQueryRanked(index int, sub SubQuery, matches []core.Match)
	Finish(results []string)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string, _ []SubQuery)                     {}
func (n *noopMonitor) AfterCatalogLoad(_ int)                           {}
func (n *noopMonitor) SubQueryRanked(_ int, _ SubQuery, _ []core.Match) {}
func (n *noopMonitor) Finish(_ []string)                                {}
