package ai

import "errors"

var (
	// ErrEmptyText is returned when asked to embed empty or whitespace-only text.
	ErrEmptyText = errors.New("text to embed cannot be empty")

	// ErrEmptyEmbedding is returned when the model produced no vector for an input.
	ErrEmptyEmbedding = errors.New("embedder returned empty result")
)
