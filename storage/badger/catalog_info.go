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

package badger

import (
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/medimatch/core"
	"github.com/poiesic/medimatch/storage"
)

// CatalogInfoRepository implements storage.CatalogInfoRepository for BadgerDB.
type CatalogInfoRepository struct {
	backend *Backend
}

var _ storage.CatalogInfoRepository = (*CatalogInfoRepository)(nil)

// NewCatalogInfoRepository creates a new CatalogInfoRepository.
func NewCatalogInfoRepository(backend *Backend) *CatalogInfoRepository {
	return &CatalogInfoRepository{
		backend: backend,
	}
}

// SaveCatalogInfo persists the catalog info stamp.
func (r *CatalogInfoRepository) SaveCatalogInfo(ctx context.Context, info *core.CatalogInfo) error {
	return r.backend.Update(func(tx *badger.Txn) error {
		info.UpdatedAt = time.Now().UTC()
		return tx.Set([]byte(catalogInfoKey), storage.MarshalCatalogInfo(info))
	})
}

// LoadCatalogInfo retrieves the catalog info stamp.
// Returns nil, nil if the catalog was never stamped.
func (r *CatalogInfoRepository) LoadCatalogInfo(ctx context.Context) (*core.CatalogInfo, error) {
	var info *core.CatalogInfo
	err := r.backend.View(func(tx *badger.Txn) error {
		item, err := tx.Get([]byte(catalogInfoKey))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}

		return item.Value(func(val []byte) error {
			var unmarshalErr error
			info, unmarshalErr = storage.UnmarshalCatalogInfo(val)
			return unmarshalErr
		})
	})

	return info, err
}
