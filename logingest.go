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

package logingest

import (
	"io"
	"log/slog"

	"github.com/poiesic/logingest/ingestion"
	"github.com/poiesic/logingest/replay"
	"github.com/poiesic/logingest/sink"
	"github.com/poiesic/logingest/storage"
	"github.com/poiesic/logingest/storage/badger"
)

// Store owns the badger database holding ingested records and the ledger
// of failed batches.
type Store struct {
	backend    *badger.Backend
	recordRepo storage.RecordRepository
	ledger     storage.FailedBatchRepository
	logger     *slog.Logger
}

// StoreOption configures a Store.
type StoreOption func(*storeOptions)

type storeOptions struct {
	inMemory bool
	logger   *slog.Logger
}

// WithInMemory keeps the database in memory. The path is ignored.
func WithInMemory() StoreOption {
	return func(o *storeOptions) {
		o.inMemory = true
	}
}

// WithLogger sets the logger used by the store and its backend.
func WithLogger(logger *slog.Logger) StoreOption {
	return func(o *storeOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func OpenStore(filePath string, opts ...StoreOption) (*Store, error) {
	options := &storeOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(options)
	}

	backend, err := badger.OpenBackend(filePath, options.inMemory, badger.WithLogger(options.logger))
	if err != nil {
		return nil, err
	}

	recordRepo := badger.NewRecordRepository(backend)

	ledger, err := badger.NewFailedBatchRepository(backend)
	if err != nil {
		recordRepo.Close()
		backend.Close()
		return nil, err
	}

	return &Store{
		backend:    backend,
		recordRepo: recordRepo,
		ledger:     ledger,
		logger:     options.logger,
	}, nil
}

func (s *Store) Close() error {
	if err := s.ledger.Close(); err != nil {
		s.logger.Error("error closing failed batch ledger", "err", err)
		return err
	}
	if err := s.recordRepo.Close(); err != nil {
		s.logger.Error("error closing record repository", "err", err)
		return err
	}

	if err := s.backend.Close(); err != nil {
		s.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

func (s *Store) RecordRepository() storage.RecordRepository {
	return s.recordRepo
}

func (s *Store) FailedBatchRepository() storage.FailedBatchRepository {
	return s.ledger
}

// Sink returns a sink writing into the store's record repository.
func (s *Store) Sink() (*sink.Repository, error) {
	return sink.NewRepository(s.recordRepo, s.logger)
}

// NewPipeline builds a pipeline whose failed batches land in the store's ledger.
// A nil sink writes into the store itself.
func (s *Store) NewPipeline(config ingestion.Config, target sink.Sink, opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	if target == nil {
		repoSink, err := s.Sink()
		if err != nil {
			return nil, err
		}
		target = repoSink
	}
	opts = append([]ingestion.Option{
		ingestion.WithLogger(s.logger),
		ingestion.WithFailureRecorder(s.ledger),
	}, opts...)
	return ingestion.NewPipeline(config, target, opts...)
}

// NewReplayer builds a replayer draining the store's ledger into target.
// A nil sink replays into the store itself.
func (s *Store) NewReplayer(target sink.Sink, config *replay.Config, progress io.Writer) (*replay.Replayer, error) {
	if target == nil {
		repoSink, err := s.Sink()
		if err != nil {
			return nil, err
		}
		target = repoSink
	}
	return replay.NewReplayer(s.ledger, target, config, progress)
}
