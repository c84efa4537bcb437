package ingestion

import "errors"

var (
	// ErrRepositoryRequired is returned when a medication repository is not provided.
	ErrRepositoryRequired = errors.New("medication repository required")

	// ErrCatalogInfoRepositoryRequired is returned when a catalog info repository is not provided.
	ErrCatalogInfoRepositoryRequired = errors.New("catalog info repository required")

	// ErrAIProviderRequired is returned when an AI provider is not provided.
	ErrAIProviderRequired = errors.New("AI provider required")

	// ErrMalformedRow is returned when a CSV row cannot be parsed.
	ErrMalformedRow = errors.New("malformed row")
)
