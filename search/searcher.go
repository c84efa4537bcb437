package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/poiesic/medimatch/ai"
	"github.com/poiesic/medimatch/catalog"
	"github.com/poiesic/medimatch/core"
)

// CatalogProvider hands out the current catalog snapshot.
// *catalog.Cache implements it.
type CatalogProvider interface {
	Get(ctx context.Context) (*catalog.Catalog, error)
}

var _ CatalogProvider = (*catalog.Cache)(nil)

// Searcher finds medication names closest to free-text queries.
type Searcher struct {
	catalogs CatalogProvider
	embedder ai.Embedder
	monitor  SearchMonitor
	widen    bool
	logger   *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger.With("component", "searcher")
		return nil
	}
}

// WithMonitor sets the monitor used by Search. A nil monitor disables monitoring.
func WithMonitor(monitor SearchMonitor) Option {
	return func(s *Searcher) error {
		s.monitor = monitor
		return nil
	}
}

// WithPrefixWidening controls whether shorter prefixes ask for more names.
// Enabled by default (k+2, k+1, k); disabled, every sub-query asks for k.
func WithPrefixWidening(enabled bool) Option {
	return func(s *Searcher) error {
		s.widen = enabled
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(catalogs CatalogProvider, embedder ai.Embedder, opts ...Option) (*Searcher, error) {
	if catalogs == nil {
		return nil, ErrCatalogRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	s := &Searcher{
		catalogs: catalogs,
		embedder: embedder,
		widen:    true,
		logger:   slog.Default().With("component", "searcher"),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Search returns the fused, deduplicated names for query.
// See SearchWithMonitor.
func (s *Searcher) Search(ctx context.Context, query string, k int) ([]string, error) {
	return s.SearchWithMonitor(ctx, query, k, s.monitor)
}

// SearchWithMonitor runs the three prefix sub-queries of query concurrently
// against one catalog snapshot and merges their ranked names in sub-query
// order, first occurrence wins. The result holds at most 3k+3 names.
//
// An empty query or non-positive k returns core.ErrInvalidArgument before
// anything is embedded. Catalog and embedding failures return
// core.ErrUpstreamUnavailable. If ctx ends, every sub-query is abandoned and
// ctx.Err() is returned with no partial result.
func (s *Searcher) SearchWithMonitor(ctx context.Context, query string, k int, monitor SearchMonitor) ([]string, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}

	plan, err := PlanSubQueries(query, k, s.widen)
	if err != nil {
		return nil, err
	}
	monitor.Start(query, plan)

	cat, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	monitor.AfterCatalogLoad(cat.Len())

	ranked := make([][]core.Match, len(plan))
	g, gctx := errgroup.WithContext(ctx)
	for i, sub := range plan {
		g.Go(func() error {
			matches, err := s.rankText(gctx, cat, sub.Text, sub.Count)
			if err != nil {
				return err
			}
			ranked[i] = matches
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.logger.Error("sub-query failed", "query", query, "err", err)
		return nil, err
	}

	lists := make([][]string, len(ranked))
	for i, matches := range ranked {
		monitor.SubQueryRanked(i, plan[i], matches)
		lists[i] = core.Names(matches)
	}
	results := Merge(lists...)

	s.logger.Debug("search complete", "query", query, "k", k, "results", len(results))
	monitor.Finish(results)
	return results, nil
}

// FindClosest embeds the whole query once and returns the k closest names.
func (s *Searcher) FindClosest(ctx context.Context, query string, k int) ([]string, error) {
	matches, err := s.FindClosestMatches(ctx, query, k)
	if err != nil {
		return nil, err
	}
	return core.Names(matches), nil
}

// FindClosestMatches is FindClosest with similarity scores.
func (s *Searcher) FindClosestMatches(ctx context.Context, query string, k int) ([]core.Match, error) {
	if err := core.ValidateQuery(query); err != nil {
		return nil, err
	}
	if err := core.ValidateK(k); err != nil {
		return nil, err
	}

	cat, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return s.rankText(ctx, cat, query, k)
}

func (s *Searcher) snapshot(ctx context.Context) (*catalog.Catalog, error) {
	cat, err := s.catalogs.Get(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !errors.Is(err, core.ErrUpstreamUnavailable) {
			err = fmt.Errorf("%w: %w", core.ErrUpstreamUnavailable, err)
		}
		return nil, err
	}
	return cat, nil
}

// rankText embeds text and ranks it against cat.
func (s *Searcher) rankText(ctx context.Context, cat *catalog.Catalog, text string, k int) ([]core.Match, error) {
	vector, err := s.embedder.EmbedText(ctx, text)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: embed %q: %w", core.ErrUpstreamUnavailable, text, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.logger.Debug("embedded sub-query", "text", text, "dimension", len(vector))

	matches, err := Rank(vector, cat, k)
	if err != nil {
		if errors.Is(err, core.ErrDimensionMismatch) {
			return nil, fmt.Errorf("%w: %w", core.ErrUpstreamUnavailable, err)
		}
		return nil, err
	}
	return matches, nil
}
