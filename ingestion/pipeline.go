package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/poiesic/medimatch/ai"
	"github.com/poiesic/medimatch/core"
	"github.com/poiesic/medimatch/storage"
)

const (
	// DefaultBatchSize is the number of names embedded or stored per batch.
	DefaultBatchSize = 64

	// DefaultMaxRetries is the number of embedding attempts per batch.
	DefaultMaxRetries = 3

	// DefaultRetryDelay is the base delay for exponential backoff between attempts.
	DefaultRetryDelay = 500 * time.Millisecond
)

// Invalidator drops a cached catalog snapshot.
type Invalidator interface {
	Invalidate()
}

// Pipeline embeds medication names and stores them as the search catalog.
type Pipeline struct {
	repository     storage.MedicationRepository
	infoRepository storage.CatalogInfoRepository
	embedder       ai.Embedder
	model          string
	pool           *ants.Pool
	embeddingProc  *embeddingProcessor
	batchSize      int
	maxRetries     int
	retryDelay     time.Duration
	invalidator    Invalidator
	logger         *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for concurrent embedding.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}

		if p.pool != nil {
			p.pool.Release()
		}

		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.pool = pool
		return nil
	}
}

// WithBatchSize sets how many names are embedded or stored together.
// Default is DefaultBatchSize.
func WithBatchSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			return fmt.Errorf("batch size must be positive, got %d", size)
		}
		p.batchSize = size
		return nil
	}
}

// WithMaxRetries sets the number of embedding attempts per batch.
// Default is DefaultMaxRetries.
func WithMaxRetries(attempts int) Option {
	return func(p *Pipeline) error {
		if attempts < 1 {
			return fmt.Errorf("max retries must be positive, got %d", attempts)
		}
		p.maxRetries = attempts
		return nil
	}
}

// WithRetryDelay sets the base backoff delay between embedding attempts.
// Default is DefaultRetryDelay.
func WithRetryDelay(delay time.Duration) Option {
	return func(p *Pipeline) error {
		if delay < 0 {
			return fmt.Errorf("retry delay cannot be negative")
		}
		p.retryDelay = delay
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger.With("component", "ingestion")
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline. Stored catalogs are stamped
// with provider.Model().
func NewPipeline(
	repository storage.MedicationRepository,
	infoRepository storage.CatalogInfoRepository,
	provider ai.AIProvider,
	opts ...Option,
) (*Pipeline, error) {
	if repository == nil {
		return nil, ErrRepositoryRequired
	}
	if infoRepository == nil {
		return nil, ErrCatalogInfoRepositoryRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		repository:     repository,
		infoRepository: infoRepository,
		embedder:       provider.Embedder(),
		model:          provider.Model(),
		pool:           pool,
		batchSize:      DefaultBatchSize,
		maxRetries:     DefaultMaxRetries,
		retryDelay:     DefaultRetryDelay,
		logger:         slog.Default().With("component", "ingestion"),
	}

	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}

	// Created after options so it gets the final config
	embeddingProc, err := newEmbeddingProcessor(p.embedder, p.maxRetries, p.retryDelay, p.logger)
	if err != nil {
		p.Release()
		return nil, err
	}
	p.embeddingProc = embeddingProc

	return p, nil
}

// InvalidateOnComplete registers a cache to invalidate whenever Import
// changes the stored catalog, including imports that fail part way.
func (p *Pipeline) InvalidateOnComplete(invalidator Invalidator) *Pipeline {
	p.invalidator = invalidator
	return p
}

// Vectorize embeds names in batches on the worker pool and returns one
// medication per name in input order. Blank names are rejected before any
// embedding. The first failing batch cancels the rest.
func (p *Pipeline) Vectorize(ctx context.Context, names []string) ([]core.Medication, error) {
	for i, name := range names {
		if strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("%w: name %d is blank", core.ErrInvalidArgument, i)
		}
	}

	meds := make([]core.Medication, len(names))
	if len(names) == 0 {
		return meds, nil
	}

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	var wg sync.WaitGroup
	for start := 0; start < len(names); start += p.batchSize {
		end := min(start+p.batchSize, len(names))
		batch := names[start:end]

		wg.Add(1)
		err := p.pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			embeddings, err := p.embeddingProc.process(ctx, batch)
			if err != nil {
				cancel(fmt.Errorf("embed names %d-%d: %w", start, end-1, err))
				return
			}
			for i, vector := range embeddings {
				name := batch[i]
				meds[start+i] = core.Medication{
					Id:     core.IDFromContent(name),
					Name:   name,
					Vector: vector,
				}
			}
		})
		if err != nil {
			wg.Done()
			cancel(err)
			break
		}
	}
	wg.Wait()

	if err := context.Cause(ctx); err != nil {
		return nil, err
	}

	p.logger.Info("vectorized names", "names", len(meds), "batchSize", p.batchSize)
	return meds, nil
}

// ImportResult summarizes an import.
type ImportResult struct {
	Stored  int
	Skipped int
}

// Import stores meds, first clearing the catalog if replace is set, then
// stamps the catalog with the pipeline's model and the stored dimension.
// Medications with a blank name, an empty vector or a dimension other than the
// one most records share are skipped.
func (p *Pipeline) Import(ctx context.Context, meds []core.Medication, replace bool) (ImportResult, error) {
	var result ImportResult

	valid := make([]*core.Medication, 0, len(meds))
	dimension := core.MajorityDimension(meds)
	for i := range meds {
		med := meds[i]
		if err := core.ValidateMedication(&med); err != nil {
			p.logger.Warn("skipping medication", "name", med.Name, "err", err)
			result.Skipped++
			continue
		}
		if len(med.Vector) != dimension {
			p.logger.Warn("skipping medication with mismatched dimension",
				"name", med.Name, "dimension", len(med.Vector), "expected", dimension)
			result.Skipped++
			continue
		}
		valid = append(valid, &med)
	}

	changed := false
	defer func() {
		if changed && p.invalidator != nil {
			p.invalidator.Invalidate()
		}
	}()

	if replace {
		changed = true
		if err := p.repository.Clear(ctx); err != nil {
			return result, fmt.Errorf("clear catalog: %w", err)
		}
	} else if dimension > 0 {
		if err := p.checkStamp(ctx, dimension); err != nil {
			return result, err
		}
	}

	for start := 0; start < len(valid); start += p.batchSize {
		end := min(start+p.batchSize, len(valid))
		if _, err := p.repository.AddMedications(ctx, valid[start:end]...); err != nil {
			return result, fmt.Errorf("store medications %d-%d: %w", start, end-1, err)
		}
		changed = true
		result.Stored += end - start
	}

	if result.Stored > 0 {
		info := &core.CatalogInfo{Model: p.model, Dimension: dimension}
		if err := p.infoRepository.SaveCatalogInfo(ctx, info); err != nil {
			return result, fmt.Errorf("stamp catalog: %w", err)
		}
	}

	p.logger.Info("imported medications", "stored", result.Stored, "skipped", result.Skipped, "replace", replace)
	return result, nil
}

// Ingest vectorizes names and imports the result.
func (p *Pipeline) Ingest(ctx context.Context, names []string, replace bool) (ImportResult, error) {
	meds, err := p.Vectorize(ctx, names)
	if err != nil {
		return ImportResult{}, err
	}
	return p.Import(ctx, meds, replace)
}

// checkStamp refuses to append vectors from another model or dimension to a stamped catalog.
func (p *Pipeline) checkStamp(ctx context.Context, dimension int) error {
	info, err := p.infoRepository.LoadCatalogInfo(ctx)
	if err != nil {
		return err
	}
	if info == nil {
		return nil
	}
	if info.Model != p.model || (info.Dimension != 0 && info.Dimension != dimension) {
		return fmt.Errorf("%w: catalog has %s (%d dimensions), importing %s (%d dimensions)",
			storage.ErrModelMismatch, info.Model, info.Dimension, p.model, dimension)
	}
	return nil
}

// Release releases the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}
