package storage

import (
	"context"

	"github.com/poiesic/medimatch/core"
)

// MedicationSource is the read interface the catalog cache loads from.
// Implementations return every stored medication with just its name and vector;
// records with a missing name or vector may be returned and are filtered by
// the caller. Implementations must be safe for concurrent use.
type MedicationSource interface {
	// LoadMedications returns all stored medications in storage order.
	LoadMedications(ctx context.Context) ([]core.Medication, error)
}

// MedicationRepository provides operations for managing the stored medication catalog.
// Implementations must be thread-safe and support concurrent access.
type MedicationRepository interface {
	MedicationSource

	// AddMedications adds one or more medications to storage.
	// Always generates new IDs from sequence; duplicate names are kept.
	// Returns the medications with generated IDs populated.
	AddMedications(ctx context.Context, meds ...*core.Medication) ([]*core.Medication, error)

	// UpdateMedications replaces the stored name and vector of existing medications.
	// Returns ErrNotFound if any medication doesn't exist.
	UpdateMedications(ctx context.Context, meds ...*core.Medication) ([]*core.Medication, error)

	// DeleteMedications removes medications by their IDs.
	// Returns ErrNotFound if any medication doesn't exist.
	DeleteMedications(ctx context.Context, ids ...core.ID) error

	// GetMedication retrieves a single medication by ID.
	// Returns ErrNotFound if the medication doesn't exist.
	GetMedication(ctx context.Context, id core.ID) (*core.Medication, error)

	// CountMedications returns the number of stored medications.
	CountMedications(ctx context.Context) (int, error)

	// Clear removes every stored medication and the catalog info stamp.
	Clear(ctx context.Context) error

	// Close releases resources held by the repository.
	Close() error
}

// CatalogInfoRepository records which embedding model produced the stored vectors.
type CatalogInfoRepository interface {
	// SaveCatalogInfo stores the catalog info, setting UpdatedAt.
	SaveCatalogInfo(ctx context.Context, info *core.CatalogInfo) error

	// LoadCatalogInfo returns the stored catalog info, or nil if the catalog was never stamped.
	LoadCatalogInfo(ctx context.Context) (*core.CatalogInfo, error)
}
