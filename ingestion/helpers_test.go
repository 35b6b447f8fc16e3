package ingestion

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/poiesic/logingest/core"
)

// standardLine renders a well-formed primary log line with an eight character owner.
func standardLine(thread int, message string) string {
	return fmt.Sprintf("OWNER001,TASK,14-05-01 10:00:00.00,INFO,%d,Cls,Method,%s,", thread, message)
}

func testRecords(n int) []core.Record {
	records := make([]core.Record, n)
	for i := range records {
		records[i] = core.Record{
			SourceFile: "log1",
			Timestamp:  time.Date(2014, 5, 1, 10, 0, i, 0, time.UTC),
			ThreadID:   i,
			Message:    fmt.Sprintf("message %d", i),
		}
	}
	return records
}

// filledQueue returns a closed queue holding records.
func filledQueue(records []core.Record) *Queue[core.Record] {
	q := NewQueue[core.Record](len(records) + 1)
	for _, r := range records {
		_ = q.Put(context.Background(), r)
	}
	q.Close()
	return q
}

// collectingSink stores every batch it receives.
type collectingSink struct {
	mu      sync.Mutex
	batches [][]core.Record
}

func (s *collectingSink) Write(ctx context.Context, batch []core.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, batch)
	return nil
}

func (s *collectingSink) records() []core.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Record
	for _, b := range s.batches {
		out = append(out, b...)
	}
	return out
}

func (s *collectingSink) sizes() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	sizes := make([]int, len(s.batches))
	for i, b := range s.batches {
		sizes[i] = len(b)
	}
	return sizes
}

// memoryRecorder keeps failed batches in memory.
type memoryRecorder struct {
	mu      sync.Mutex
	batches []*core.FailedBatch
}

func (r *memoryRecorder) SaveFailedBatch(ctx context.Context, batch *core.FailedBatch) (*core.FailedBatch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	batch.Id = core.ID(len(r.batches) + 1)
	r.batches = append(r.batches, batch)
	return batch, nil
}

func (r *memoryRecorder) saved() []*core.FailedBatch {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*core.FailedBatch(nil), r.batches...)
}
