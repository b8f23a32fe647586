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
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/adala/storage"
)

// MetaRepository persists index metadata in BadgerDB.
type MetaRepository struct {
	backend *Backend
}

// NewMetaRepository creates a new MetaRepository.
func NewMetaRepository(backend *Backend) *MetaRepository {
	return &MetaRepository{
		backend: backend,
	}
}

// SaveMeta persists the index metadata, stamping UpdatedAt.
func (r *MetaRepository) SaveMeta(ctx context.Context, meta *storage.IndexMeta) error {
	if r.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	return r.backend.WithTx(func(tx *badger.Txn) error {
		meta.UpdatedAt = time.Now().UTC()
		value, err := storage.MarshalIndexMeta(meta)
		if err != nil {
			return err
		}
		if err := tx.Set([]byte(indexMetaKey), value); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// LoadMeta retrieves the index metadata.
// Returns nil, nil if no metadata exists.
func (r *MetaRepository) LoadMeta(ctx context.Context) (*storage.IndexMeta, error) {
	if r.backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}
	var meta *storage.IndexMeta
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get([]byte(indexMetaKey))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return nil
			}
			return err
		}

		return item.Value(func(val []byte) error {
			var unmarshalErr error
			meta, unmarshalErr = storage.UnmarshalIndexMeta(val)
			return unmarshalErr
		})
	}, false)

	return meta, err
}
