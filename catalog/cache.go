package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/poiesic/medimatch/core"
	"github.com/poiesic/medimatch/storage"
)

const flightKey = "catalog"

// Cache owns the current catalog snapshot and loads it on demand.
// All methods are safe for concurrent use.
type Cache struct {
	source storage.MedicationSource
	logger *slog.Logger
	clock  func() time.Time

	// dimension is the expected vector length; 0 selects the majority length.
	dimension int

	current atomic.Pointer[Catalog]
	group   singleflight.Group
	loads   atomic.Int64

	// mu guards generation. Each Invalidate bumps it so loads that started
	// earlier are not stored.
	mu         sync.Mutex
	generation uint64
}

// Option configures a Cache.
type Option func(*Cache) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger.With("component", "catalog")
		return nil
	}
}

// WithClock sets the clock used to timestamp loaded snapshots.
func WithClock(clock func() time.Time) Option {
	return func(c *Cache) error {
		if clock == nil {
			return errors.New("catalog: clock cannot be nil")
		}
		c.clock = clock
		return nil
	}
}

// WithDimension sets the vector length catalog records must have, normally
// the query embedding dimension. Default 0 keeps the length most records share.
func WithDimension(dimension int) Option {
	return func(c *Cache) error {
		if dimension < 0 {
			return fmt.Errorf("catalog: dimension cannot be negative, got %d", dimension)
		}
		c.dimension = dimension
		return nil
	}
}

// NewCache creates an empty cache over source.
func NewCache(source storage.MedicationSource, opts ...Option) (*Cache, error) {
	if source == nil {
		return nil, ErrSourceRequired
	}

	c := &Cache{
		source: source,
		logger: slog.Default().With("component", "catalog"),
		clock:  time.Now,
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// Load reads every medication from the source and builds a new snapshot.
// It neither consults nor updates the cached snapshot. Source failures are
// wrapped in core.ErrUpstreamUnavailable.
func (c *Cache) Load(ctx context.Context) (*Catalog, error) {
	start := c.clock()
	meds, err := c.source.LoadMedications(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Error("catalog load failed", "err", err)
		return nil, fmt.Errorf("%w: load catalog: %w", core.ErrUpstreamUnavailable, err)
	}
	c.loads.Add(1)

	cat := NewWithDimension(meds, c.clock(), c.dimension)
	if cat.Skipped() > 0 {
		c.logger.Warn("skipped invalid catalog records", "skipped", cat.Skipped(), "dimension", cat.Dimension(), "expected", c.dimension)
	}
	c.logger.Info("catalog loaded",
		"size", cat.Len(),
		"dimension", cat.Dimension(),
		"duration", c.clock().Sub(start))
	return cat, nil
}

// Get returns the cached snapshot, loading it first if needed.
// Concurrent callers share one load. A failed load is not cached.
// If ctx ends while waiting, Get returns ctx.Err(); the shared load keeps
// running for the other callers.
func (c *Cache) Get(ctx context.Context) (*Catalog, error) {
	if cat := c.current.Load(); cat != nil {
		return cat, nil
	}

	ch := c.group.DoChan(flightKey, func() (any, error) {
		// A caller may have checked current just before the previous flight stored it.
		if cat := c.current.Load(); cat != nil {
			return cat, nil
		}

		c.mu.Lock()
		gen := c.generation
		c.mu.Unlock()

		cat, err := c.Load(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		if c.generation == gen {
			c.current.Store(cat)
		}
		c.mu.Unlock()
		return cat, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Catalog), nil
	}
}

// Current returns the cached snapshot without loading, or nil.
func (c *Cache) Current() *Catalog {
	return c.current.Load()
}

// Invalidate drops the cached snapshot. A load already in flight still
// answers its waiters but its result is not cached.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.current.Store(nil)
	c.group.Forget(flightKey)
	c.logger.Debug("catalog invalidated", "generation", c.generation)
}

// Refresh invalidates the cache and loads a new snapshot.
func (c *Cache) Refresh(ctx context.Context) (*Catalog, error) {
	c.Invalidate()
	return c.Get(ctx)
}

// Loads returns how many successful source loads this cache has performed.
func (c *Cache) Loads() int64 {
	return c.loads.Load()
}
