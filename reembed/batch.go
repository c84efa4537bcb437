package reembed

import (
	"context"
	"fmt"
	"time"

	"github.com/poiesic/medimatch/ai"
	"github.com/poiesic/medimatch/core"
	"github.com/poiesic/medimatch/storage"
)

// BatchProcessor re-embeds one batch of medications and writes them back.
type BatchProcessor struct {
	repo           storage.MedicationRepository
	embedder       ai.Embedder
	maxRetries     int
	retryBaseDelay time.Duration
	normalize      bool
}

// NewBatchProcessor creates a BatchProcessor.
func NewBatchProcessor(repo storage.MedicationRepository, embedder ai.Embedder, maxRetries int, retryBaseDelay time.Duration, normalize bool) *BatchProcessor {
	return &BatchProcessor{
		repo:           repo,
		embedder:       embedder,
		maxRetries:     maxRetries,
		retryBaseDelay: retryBaseDelay,
		normalize:      normalize,
	}
}

// Process embeds the names of meds, replaces their vectors and updates them
// in storage. Returns the dimension of the new vectors.
func (bp *BatchProcessor) Process(ctx context.Context, meds []*core.Medication) (int, error) {
	if len(meds) == 0 {
		return 0, nil
	}

	names := make([]string, len(meds))
	for i, med := range meds {
		names[i] = med.Name
	}

	var embeddings [][]float32
	err := RetryWithBackoff(ctx, func() error {
		var err error
		embeddings, err = bp.embedder.EmbedTexts(ctx, names)
		return err
	}, bp.maxRetries, bp.retryBaseDelay)
	if err != nil {
		return 0, fmt.Errorf("failed to generate embeddings after %d attempts: %w", bp.maxRetries, err)
	}

	if len(embeddings) != len(meds) {
		return 0, fmt.Errorf("embedding count mismatch: expected %d, got %d", len(meds), len(embeddings))
	}

	dimension := len(embeddings[0])
	for i, med := range meds {
		if len(embeddings[i]) != dimension {
			return 0, fmt.Errorf("%w: %q embedded to %d dimensions, batch has %d",
				core.ErrDimensionMismatch, med.Name, len(embeddings[i]), dimension)
		}
		if bp.normalize {
			med.Vector = NormalizeVector(embeddings[i])
		} else {
			med.Vector = embeddings[i]
		}
	}

	if _, err := bp.repo.UpdateMedications(ctx, meds...); err != nil {
		return 0, fmt.Errorf("failed to update medications: %w", err)
	}

	return dimension, nil
}
