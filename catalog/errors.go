package catalog

import "errors"

var (
	// ErrSourceRequired is returned when a cache is created without a medication source.
	ErrSourceRequired = errors.New("medication source required")
)
