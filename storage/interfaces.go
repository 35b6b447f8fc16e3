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

package storage

import (
	"context"
	"time"

	"github.com/poiesic/logingest/core"
)

// Repository is the base interface shared by all repositories.
type Repository interface {
	// WithTransaction executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// Close releases resources held by the repository.
	Close() error
}

// RecordRepository stores parsed log records.
type RecordRepository interface {
	Repository

	// AddRecords stores records keyed by their content ID.
	// Adding a record that is already stored overwrites it, so
	// re-delivered batches do not create duplicates.
	AddRecords(ctx context.Context, records ...core.Record) error

	// GetRecord retrieves a single record by ID.
	// Returns ErrNotFound if the record doesn't exist.
	GetRecord(ctx context.Context, id core.ID) (*core.Record, error)

	// GetRecords retrieves multiple records by their IDs.
	// Returns only the records that exist (no error for missing records).
	GetRecords(ctx context.Context, ids ...core.ID) ([]*core.Record, error)

	// GetRecordsByDateRange retrieves records where start <= Timestamp <= end,
	// ordered by timestamp.
	GetRecordsByDateRange(ctx context.Context, start, end time.Time) ([]*core.Record, error)

	// DeleteRecords removes records by their IDs.
	// Returns ErrNotFound if any record doesn't exist.
	DeleteRecords(ctx context.Context, ids ...core.ID) error

	// CountRecords returns the number of stored records.
	CountRecords(ctx context.Context) (int, error)
}

// FailedBatchRepository is the ledger of batches a sink rejected.
type FailedBatchRepository interface {
	Repository

	// SaveFailedBatch stores a failed batch.
	// A batch with Id=0 gets a new ID from the sequence; otherwise the
	// existing entry is overwritten. Returns the batch with its ID set.
	SaveFailedBatch(ctx context.Context, batch *core.FailedBatch) (*core.FailedBatch, error)

	// GetFailedBatch retrieves a failed batch by ID.
	// Returns ErrNotFound if it doesn't exist.
	GetFailedBatch(ctx context.Context, id core.ID) (*core.FailedBatch, error)

	// ListFailedBatches returns every failed batch ordered by ID.
	ListFailedBatches(ctx context.Context) ([]*core.FailedBatch, error)

	// ForEachFailedBatch calls fn for every failed batch in ID order.
	// Iteration stops at the first error fn returns.
	ForEachFailedBatch(ctx context.Context, fn func(*core.FailedBatch) error) error

	// DeleteFailedBatch removes a failed batch once it has been replayed.
	// Returns ErrNotFound if it doesn't exist.
	DeleteFailedBatch(ctx context.Context, id core.ID) error

	// CountFailedBatches returns the number of batches in the ledger.
	CountFailedBatches(ctx context.Context) (int, error)
}
