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
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/logingest/core"
	"github.com/poiesic/logingest/ingestion"
	"github.com/poiesic/logingest/sink"
	"github.com/poiesic/logingest/storage"
)

// Config holds configuration for a replay run.
type Config struct {
	// MaxRetries is the maximum number of write attempts per batch
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration

	// WriteTimeout bounds a single sink call. Zero disables it.
	WriteTimeout time.Duration

	// ReportInterval is how often to report progress (number of batches)
	ReportInterval int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
		WriteTimeout:   ingestion.DefaultDispatchTimeout,
		ReportInterval: 10,
	}
}

// Result summarizes a replay run.
type Result struct {
	Batches         int // Batches in the ledger when the run started
	Replayed        int // Batches the sink accepted and that left the ledger
	Failed          int // Batches the sink rejected again, kept in the ledger
	RecordsReplayed int
	Elapsed         time.Duration
}

// Replayer drains the failed batch ledger into a sink.
type Replayer struct {
	ledger    storage.FailedBatchRepository
	config    *Config
	progress  io.Writer
	processor *BatchProcessor
	iterator  *LedgerIterator
	logger    *slog.Logger
}

// NewReplayer creates a new replayer.
// progress: where to write progress output (typically os.Stderr), nil for none
func NewReplayer(ledger storage.FailedBatchRepository, s sink.Sink, config *Config, progress io.Writer) (*Replayer, error) {
	if ledger == nil {
		return nil, ErrLedgerRequired
	}
	if s == nil {
		return nil, ErrSinkRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.MaxRetries <= 0 {
		return nil, ErrInvalidMaxAttempts
	}
	if progress == nil {
		progress = io.Discard
	}

	return &Replayer{
		ledger:    ledger,
		config:    config,
		progress:  progress,
		processor: NewBatchProcessor(s, config.MaxRetries, config.RetryDelay, config.WriteTimeout),
		iterator:  NewLedgerIterator(ledger),
		logger:    slog.Default().With("component", "replayer"),
	}, nil
}

// Run replays every batch in the ledger.
// A batch that still fails stays in the ledger with its attempt count and
// error updated; that is reported in the Result, not as an error. Storage
// failures and cancellation return an error along with the partial Result.
func (r *Replayer) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	result := &Result{}

	total, err := r.ledger.CountFailedBatches(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to count failed batches: %w", err)
	}
	result.Batches = total
	if total == 0 {
		fmt.Fprintf(r.progress, "No failed batches in ledger (0 batches)\n")
		return result, nil
	}

	fmt.Fprintf(r.progress, "Starting replay of %d failed batches\n", total)

	tracker := ingestion.NewProgressTracker(r.progress, "batches", total, r.config.ReportInterval)
	tracker.Start()

	err = r.iterator.ForEach(ctx, func(batch *core.FailedBatch) error {
		defer tracker.Increment(1)
		return r.replay(ctx, batch, result)
	})
	result.Elapsed = time.Since(start)
	if err != nil {
		return result, err
	}

	tracker.Finish()
	fmt.Fprintf(r.progress, "Replay complete. %d of %d batches replayed (%d records) in %v\n",
		result.Replayed, total, result.RecordsReplayed, result.Elapsed.Round(time.Millisecond))
	return result, nil
}

func (r *Replayer) replay(ctx context.Context, batch *core.FailedBatch, result *Result) error {
	logger := r.logger.With("batch", batch.Id, "run", batch.RunID, "seq", batch.Seq)

	writeErr := r.processor.Process(ctx, batch)
	if writeErr == nil {
		if err := r.ledger.DeleteFailedBatch(ctx, batch.Id); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("failed to remove replayed batch %d: %w", batch.Id, err)
		}
		result.Replayed++
		result.RecordsReplayed += len(batch.Records)
		logger.Debug("batch replayed", "records", len(batch.Records))
		return nil
	}

	// Keep the attempt count even when the run is being torn down.
	batch.Error = writeErr.Error()
	batch.FailedAt = time.Now().UTC()
	if _, err := r.ledger.SaveFailedBatch(context.WithoutCancel(ctx), batch); err != nil {
		return fmt.Errorf("failed to update batch %d: %w", batch.Id, err)
	}
	result.Failed++

	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	logger.Warn("batch replay failed", "attempts", batch.Attempts, "error", writeErr)
	return nil
}
