package reembed

import (
	"context"

	"github.com/poiesic/medimatch/core"
	"github.com/poiesic/medimatch/storage"
)

const (
	// DefaultBatchSize is the default number of medications handled per batch
	DefaultBatchSize = 100
)

// RecordIterator walks every stored medication in batches.
type RecordIterator struct {
	repo      storage.MedicationSource
	batchSize int
}

// NewRecordIterator creates an iterator. A batchSize <= 0 selects DefaultBatchSize.
func NewRecordIterator(repo storage.MedicationSource, batchSize int) *RecordIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &RecordIterator{
		repo:      repo,
		batchSize: batchSize,
	}
}

// ForEach loads the catalog once and calls fn with consecutive batches in
// storage order. It stops at the first error from fn or when ctx ends.
func (it *RecordIterator) ForEach(ctx context.Context, fn func([]*core.Medication) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	meds, err := it.repo.LoadMedications(ctx)
	if err != nil {
		return err
	}

	batch := make([]*core.Medication, 0, it.batchSize)
	for i := 0; i < len(meds); i += it.batchSize {
		end := min(i+it.batchSize, len(meds))

		batch = batch[:0]
		for j := i; j < end; j++ {
			batch = append(batch, &meds[j])
		}

		if err := fn(batch); err != nil {
			return err
		}

		if err := ctx.Err(); err != nil {
			return err
		}
	}

	return nil
}
