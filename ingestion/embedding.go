package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/medimatch/ai"
	"github.com/poiesic/medimatch/reembed"
)

// embeddingProcessor embeds one batch of names with retry.
type embeddingProcessor struct {
	embedder   ai.Embedder
	maxRetries int
	retryDelay time.Duration
	logger     *slog.Logger
}

// newEmbeddingProcessor creates a new embedding processor.
func newEmbeddingProcessor(embedder ai.Embedder, maxRetries int, retryDelay time.Duration, logger *slog.Logger) (*embeddingProcessor, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &embeddingProcessor{
		embedder:   embedder,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		logger:     logger.With("processor", "embeddings"),
	}, nil
}

// process returns one embedding per name, in order.
func (ep *embeddingProcessor) process(ctx context.Context, names []string) ([][]float32, error) {
	ep.logger.Debug("generating embeddings", "names", len(names))

	var embeddings [][]float32
	err := reembed.RetryWithBackoff(ctx, func() error {
		var err error
		embeddings, err = ep.embedder.EmbedTexts(ctx, names)
		return err
	}, ep.maxRetries, ep.retryDelay)
	if err != nil {
		ep.logger.Error("error generating embeddings", "names", len(names), "err", err)
		return nil, err
	}

	if len(embeddings) != len(names) {
		return nil, fmt.Errorf("embedding result mismatch. expected %d, received %d", len(names), len(embeddings))
	}
	return embeddings, nil
}
