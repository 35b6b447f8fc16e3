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
	"github.com/poiesic/logingest/core"
	"github.com/poiesic/logingest/storage"
)

// FailedBatchRepository implements storage.FailedBatchRepository for BadgerDB.
type FailedBatchRepository struct {
	backend *Backend
	idSeq   *badger.Sequence
}

var _ storage.FailedBatchRepository = (*FailedBatchRepository)(nil)

// NewFailedBatchRepository creates a new FailedBatchRepository.
func NewFailedBatchRepository(backend *Backend) (*FailedBatchRepository, error) {
	idSeq, err := backend.GetSequence(failedBatchIDSeq)
	if err != nil {
		return nil, err
	}

	return &FailedBatchRepository{
		backend: backend,
		idSeq:   idSeq,
	}, nil
}

// Close releases the ID sequence.
func (r *FailedBatchRepository) Close() error {
	return r.idSeq.Release()
}

// WithTransaction delegates to the backend.
func (r *FailedBatchRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// SaveFailedBatch stores a failed batch, assigning an ID to new entries.
func (r *FailedBatchRepository) SaveFailedBatch(ctx context.Context, batch *core.FailedBatch) (*core.FailedBatch, error) {
	if err := core.ValidateFailedBatch(batch); err != nil {
		return nil, err
	}

	if batch.Id == 0 {
		nextID, err := r.idSeq.Next()
		if err != nil {
			return nil, err
		}
		// BadgerDB sequences can return 0 on first call, so we skip it
		if nextID == 0 {
			nextID, err = r.idSeq.Next()
			if err != nil {
				return nil, err
			}
		}
		batch.Id = core.ID(nextID)
	}
	if batch.FailedAt.IsZero() {
		batch.FailedAt = time.Now().UTC()
	}

	err := r.backend.WithBatch(func(wb *badger.WriteBatch) error {
		return wb.Set(makeFailedBatchKey(batch.Id), storage.MarshalFailedBatch(batch))
	})
	if err != nil {
		return nil, err
	}
	return batch, nil
}

// GetFailedBatch retrieves a failed batch by ID.
func (r *FailedBatchRepository) GetFailedBatch(ctx context.Context, id core.ID) (*core.FailedBatch, error) {
	var batch *core.FailedBatch
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeFailedBatchKey(id))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return storage.ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			var err error
			batch, err = storage.UnmarshalFailedBatch(val)
			return err
		})
	}, false)
	return batch, err
}

// ListFailedBatches returns every failed batch ordered by ID.
func (r *FailedBatchRepository) ListFailedBatches(ctx context.Context) ([]*core.FailedBatch, error) {
	var batches []*core.FailedBatch
	err := r.ForEachFailedBatch(ctx, func(batch *core.FailedBatch) error {
		batches = append(batches, batch)
		return nil
	})
	return batches, err
}

// ForEachFailedBatch calls fn for every failed batch in ID order.
// fn runs inside a read transaction and must not write to the ledger;
// collect IDs and delete them after iteration.
func (r *FailedBatchRepository) ForEachFailedBatch(ctx context.Context, fn func(*core.FailedBatch) error) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(failedBatchPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			var batch *core.FailedBatch
			if err := iter.Item().Value(func(val []byte) error {
				var err error
				batch, err = storage.UnmarshalFailedBatch(val)
				return err
			}); err != nil {
				return err
			}

			if err := fn(batch); err != nil {
				return err
			}
		}
		return nil
	}, false)
}

// DeleteFailedBatch removes a failed batch from the ledger.
func (r *FailedBatchRepository) DeleteFailedBatch(ctx context.Context, id core.ID) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeFailedBatchKey(id)
		if _, err := tx.Get(key); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return storage.ErrNotFound
			}
			return err
		}
		if err := tx.Delete(key); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// CountFailedBatches returns the number of batches in the ledger.
func (r *FailedBatchRepository) CountFailedBatches(ctx context.Context) (int, error) {
	return r.backend.countPrefix([]byte(failedBatchPrefix + ":"))
}
