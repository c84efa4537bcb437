// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package reembed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/medimatch/ai"
	"github.com/poiesic/medimatch/core"
	"github.com/poiesic/medimatch/storage"
)

// Config holds configuration for the reembedding operation.
type Config struct {
	// BatchSize is the number of medications to process in each batch
	BatchSize int

	// ReportInterval is how often to report progress (number of medications)
	ReportInterval int

	// MaxRetries is the maximum number of attempts for each batch
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration

	// Normalize scales every new vector to unit length before storing it
	Normalize bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      100,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
	}
}

// Invalidator is notified after the catalog has been rewritten.
// *catalog.Cache implements it.
type Invalidator interface {
	Invalidate()
}

// Result summarizes a completed run.
type Result struct {
	Processed int
	Dimension int
	Elapsed   time.Duration
}

// Reembedder orchestrates the reembedding of every stored medication.
type Reembedder struct {
	repo        storage.MedicationRepository
	info        storage.CatalogInfoRepository
	model       string
	config      *Config
	progress    io.Writer
	processor   *BatchProcessor
	iterator    *RecordIterator
	invalidator Invalidator
	logger      *slog.Logger
}

// NewReembedder creates a new reembedder.
// info may be nil, in which case the catalog is not restamped.
// progress: where to write progress output (typically os.Stderr)
func NewReembedder(
	repo storage.MedicationRepository,
	info storage.CatalogInfoRepository,
	provider ai.AIProvider,
	config *Config,
	progress io.Writer,
) (*Reembedder, error) {
	if repo == nil {
		return nil, ErrRepositoryRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if progress == nil {
		progress = io.Discard
	}

	return &Reembedder{
		repo:      repo,
		info:      info,
		model:     provider.Model(),
		config:    config,
		progress:  progress,
		processor: NewBatchProcessor(repo, provider.Embedder(), config.MaxRetries, config.RetryDelay, config.Normalize),
		iterator:  NewRecordIterator(repo, config.BatchSize),
		logger:    slog.Default().With("component", "reembed"),
	}, nil
}

// InvalidateOnComplete registers a cache to invalidate after a successful run.
func (r *Reembedder) InvalidateOnComplete(invalidator Invalidator) *Reembedder {
	r.invalidator = invalidator
	return r
}

// Run re-embeds every stored medication with the configured provider,
// restamps the catalog with the provider's model and invalidates the
// registered cache. Progress is reported to the configured writer.
// A failed run leaves already-processed batches updated and the stamp untouched.
func (r *Reembedder) Run(ctx context.Context) (Result, error) {
	total, err := r.repo.CountMedications(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("failed to count medications: %w", err)
	}

	if total == 0 {
		fmt.Fprintf(r.progress, "No medications found in catalog (0 records)\n")
		return Result{}, nil
	}

	fmt.Fprintf(r.progress, "Starting reembedding of %d medications with %s (batch size: %d)\n",
		total, r.model, r.config.BatchSize)

	tracker := NewProgressTracker(r.progress, total, r.config.ReportInterval)
	tracker.Start()

	result := Result{}
	err = r.iterator.ForEach(ctx, func(meds []*core.Medication) error {
		dimension, err := r.processor.Process(ctx, meds)
		if err != nil {
			return fmt.Errorf("failed to process batch: %w", err)
		}
		if result.Dimension == 0 {
			result.Dimension = dimension
		} else if dimension != result.Dimension {
			return fmt.Errorf("%w: batch embedded to %d dimensions, catalog has %d",
				core.ErrDimensionMismatch, dimension, result.Dimension)
		}

		result.Processed += len(meds)
		tracker.Update(result.Processed)
		return nil
	})
	if err != nil {
		r.logger.Error("reembedding failed", "processed", result.Processed, "total", total, "err", err)
		return result, err
	}

	tracker.Finish()
	result.Elapsed = tracker.Elapsed()

	if r.info != nil {
		stamp := &core.CatalogInfo{Model: r.model, Dimension: result.Dimension}
		if err := r.info.SaveCatalogInfo(ctx, stamp); err != nil {
			return result, fmt.Errorf("failed to stamp catalog: %w", err)
		}
	}
	if r.invalidator != nil {
		r.invalidator.Invalidate()
	}

	fmt.Fprintf(r.progress, "Reembedding complete. Processed %d medications in %v\n",
		result.Processed, result.Elapsed.Round(time.Millisecond))
	r.logger.Info("reembedding complete", "processed", result.Processed, "dimension", result.Dimension, "model", r.model)

	return result, nil
}
