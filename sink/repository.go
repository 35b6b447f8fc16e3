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

package sink

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/logingest/core"
	"github.com/poiesic/logingest/storage"
)

// Repository writes batches to a storage.RecordRepository.
// Records are keyed by content ID, so re-delivered batches overwrite.
type Repository struct {
	repo   storage.RecordRepository
	logger *slog.Logger
}

var _ Sink = (*Repository)(nil)

// NewRepository returns a Sink backed by repo.
func NewRepository(repo storage.RecordRepository, logger *slog.Logger) (*Repository, error) {
	if repo == nil {
		return nil, ErrRepositoryRequired
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		repo:   repo,
		logger: logger.With("component", "repository-sink"),
	}, nil
}

// Write stores every record of the batch.
func (r *Repository) Write(ctx context.Context, batch []core.Record) error {
	if len(batch) == 0 {
		return nil
	}
	if err := r.repo.AddRecords(ctx, batch...); err != nil {
		return fmt.Errorf("failed to store %d records: %w", len(batch), err)
	}
	r.logger.Debug("stored batch", "records", len(batch))
	return nil
}
