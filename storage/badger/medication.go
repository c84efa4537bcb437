package badger

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/medimatch/core"
	"github.com/poiesic/medimatch/storage"
)

// MedicationRepository implements storage.MedicationRepository for BadgerDB.
type MedicationRepository struct {
	backend *Backend
	idSeq   *badger.Sequence
}

var _ storage.MedicationRepository = (*MedicationRepository)(nil)

// NewMedicationRepository creates a new MedicationRepository.
func NewMedicationRepository(backend *Backend) (*MedicationRepository, error) {
	idSeq, err := backend.Sequence(medicationIDSeq)
	if err != nil {
		return nil, err
	}

	return &MedicationRepository{
		backend: backend,
		idSeq:   idSeq,
	}, nil
}

// Close releases the ID sequence.
func (r *MedicationRepository) Close() error {
	return r.idSeq.Release()
}

// AddMedications adds one or more medications to storage.
func (r *MedicationRepository) AddMedications(ctx context.Context, meds ...*core.Medication) ([]*core.Medication, error) {
	for _, med := range meds {
		if err := core.ValidateMedication(med); err != nil {
			return nil, err
		}
	}

	err := r.backend.Update(func(tx *badger.Txn) error {
		for _, med := range meds {
			if err := ctx.Err(); err != nil {
				return err
			}

			nextID, err := r.idSeq.Next()
			if err != nil {
				return err
			}
			// BadgerDB sequences can return 0 on first call, so we skip it
			if nextID == 0 {
				nextID, err = r.idSeq.Next()
				if err != nil {
					return err
				}
			}
			med.Id = core.ID(nextID)

			if err := tx.Set(makeMedicationKey(med.Id), storage.MarshalMedication(med)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return meds, nil
}

// UpdateMedications replaces existing medications.
func (r *MedicationRepository) UpdateMedications(ctx context.Context, meds ...*core.Medication) ([]*core.Medication, error) {
	err := r.backend.Update(func(tx *badger.Txn) error {
		for _, med := range meds {
			if err := core.ValidateMedication(med); err != nil {
				return err
			}

			key := makeMedicationKey(med.Id)
			old, err := readMedication(tx, key)
			if err != nil {
				return err
			}
			if old == nil {
				return fmt.Errorf("%w: medication %d", storage.ErrNotFound, med.Id)
			}

			if err := tx.Set(key, storage.MarshalMedication(med)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return meds, nil
}

// DeleteMedications removes medications by their IDs.
func (r *MedicationRepository) DeleteMedications(ctx context.Context, ids ...core.ID) error {
	return r.backend.Update(func(tx *badger.Txn) error {
		for _, id := range ids {
			key := makeMedicationKey(id)
			if _, err := tx.Get(key); err != nil {
				if errors.Is(err, badger.ErrKeyNotFound) {
					return fmt.Errorf("%w: medication %d", storage.ErrNotFound, id)
				}
				return err
			}
			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetMedication retrieves a single medication by ID.
func (r *MedicationRepository) GetMedication(ctx context.Context, id core.ID) (*core.Medication, error) {
	var result *core.Medication
	err := r.backend.View(func(tx *badger.Txn) error {
		var err error
		result, err = readMedication(tx, makeMedicationKey(id))
		if err != nil {
			return err
		}
		if result == nil {
			return fmt.Errorf("%w: medication %d", storage.ErrNotFound, id)
		}
		return nil
	})
	return result, err
}

// LoadMedications returns every stored medication in ID order.
func (r *MedicationRepository) LoadMedications(ctx context.Context) ([]core.Medication, error) {
	var result []core.Medication
	err := r.backend.View(func(tx *badger.Txn) error {
		return scanPrefix(tx, []byte(medicationPrefix), true, func(item *badger.Item) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return item.Value(func(val []byte) error {
				med, err := storage.UnmarshalMedication(val)
				if err != nil {
					return fmt.Errorf("%s: %w", item.Key(), err)
				}
				result = append(result, *med)
				return nil
			})
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// CountMedications returns the number of stored medications without decoding them.
func (r *MedicationRepository) CountMedications(ctx context.Context) (int, error) {
	count := 0
	err := r.backend.View(func(tx *badger.Txn) error {
		return scanPrefix(tx, []byte(medicationPrefix), false, func(*badger.Item) error {
			count++
			return nil
		})
	})
	return count, err
}

// Clear removes every stored medication and the catalog info stamp.
func (r *MedicationRepository) Clear(ctx context.Context) error {
	return r.backend.DropPrefix([]byte(medicationPrefix), []byte(catalogInfoKey))
}

// readMedication reads a medication from the transaction.
// Returns nil, nil if the key does not exist.
func readMedication(tx *badger.Txn, key []byte) (*core.Medication, error) {
	item, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var med *core.Medication
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		med, unmarshalErr = storage.UnmarshalMedication(val)
		return unmarshalErr
	})
	return med, err
}
