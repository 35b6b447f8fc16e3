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
	"time"

	"github.com/poiesic/logingest/core"
	"github.com/poiesic/logingest/sink"
)

// BatchProcessor writes one failed batch to the sink with retries.
type BatchProcessor struct {
	sink           sink.Sink
	maxRetries     int
	retryBaseDelay time.Duration
	writeTimeout   time.Duration
}

// NewBatchProcessor creates a new batch processor.
// maxRetries: maximum number of write attempts per batch
// retryBaseDelay: base delay for exponential backoff
// writeTimeout: bound on a single sink call, zero for none
func NewBatchProcessor(s sink.Sink, maxRetries int, retryBaseDelay, writeTimeout time.Duration) *BatchProcessor {
	return &BatchProcessor{
		sink:           s,
		maxRetries:     maxRetries,
		retryBaseDelay: retryBaseDelay,
		writeTimeout:   writeTimeout,
	}
}

// Process writes batch.Records to the sink.
// batch.Attempts is incremented for every sink call made.
func (bp *BatchProcessor) Process(ctx context.Context, batch *core.FailedBatch) error {
	if len(batch.Records) == 0 {
		return nil
	}

	err := RetryWithBackoff(ctx, func(ctx context.Context) error {
		batch.Attempts++
		err := bp.write(ctx, batch.Records)
		if errors.Is(err, core.ErrInvalidRecord) {
			return Permanent(err)
		}
		return err
	}, bp.maxRetries, bp.retryBaseDelay)

	if err != nil {
		return fmt.Errorf("failed to write batch %d after %d attempts: %w", batch.Id, batch.Attempts, err)
	}
	return nil
}

func (bp *BatchProcessor) write(ctx context.Context, records []core.Record) error {
	if bp.writeTimeout <= 0 {
		return bp.sink.Write(ctx, records)
	}
	wctx, cancel := context.WithTimeout(ctx, bp.writeTimeout)
	defer cancel()
	return bp.sink.Write(wctx, records)
}
