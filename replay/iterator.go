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

package replay

import (
	"context"
	"errors"
	"fmt"

	"github.com/poiesic/logingest/core"
	"github.com/poiesic/logingest/storage"
)

// LedgerIterator walks the failed batch ledger one batch at a time.
// IDs are collected up front, so fn may delete or rewrite the batch it was
// handed without disturbing the iteration.
type LedgerIterator struct {
	ledger storage.FailedBatchRepository
}

// NewLedgerIterator creates a new ledger iterator.
func NewLedgerIterator(ledger storage.FailedBatchRepository) *LedgerIterator {
	return &LedgerIterator{ledger: ledger}
}

// IDs returns the IDs of every batch currently in the ledger, in ID order.
func (it *LedgerIterator) IDs(ctx context.Context) ([]core.ID, error) {
	var ids []core.ID
	err := it.ledger.ForEachFailedBatch(ctx, func(batch *core.FailedBatch) error {
		ids = append(ids, batch.Id)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan ledger: %w", err)
	}
	return ids, nil
}

// ForEach calls fn for every batch in the ledger.
// Batches removed after the scan are skipped. Iteration stops on the first
// error from fn. Context cancellation is checked between batches.
func (it *LedgerIterator) ForEach(ctx context.Context, fn func(*core.FailedBatch) error) error {
	ids, err := it.IDs(ctx)
	if err != nil {
		return err
	}

	for _, id := range ids {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		batch, err := it.ledger.GetFailedBatch(ctx, id)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to load batch %d: %w", id, err)
		}

		if err := fn(batch); err != nil {
			return err
		}
	}
	return nil
}
