package replay

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/logingest/core"
	"github.com/poiesic/logingest/sink"
	"github.com/poiesic/logingest/storage"
	"github.com/poiesic/logingest/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupLedger(t *testing.T) storage.FailedBatchRepository {
	t.Helper()
	recordRepo, ledger, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() {
		recordRepo.Close()
		ledger.Close()
		backend.Close()
	})
	return ledger
}

func seedLedger(t *testing.T, ledger storage.FailedBatchRepository, batches int, size int) []*core.FailedBatch {
	t.Helper()
	base := time.Date(2014, 5, 1, 10, 0, 0, 0, time.UTC)
	var saved []*core.FailedBatch
	for b := 0; b < batches; b++ {
		records := make([]core.Record, size)
		for i := range records {
			records[i] = core.Record{
				SourceFile: "log1",
				OwnerID:    "OWNER001",
				TaskID:     "TASK",
				Timestamp:  base.Add(time.Duration(b*size+i) * time.Second),
				LogLevel:   "INFO",
				ThreadID:   b,
				ClassName:  "Cls",
				MethodName: "Method",
				Message:    "hello",
			}
		}
		batch, err := ledger.SaveFailedBatch(context.Background(), &core.FailedBatch{
			RunID:    "run-1",
			Seq:      b + 1,
			Error:    "sink unavailable",
			Attempts: 1,
			Records:  records,
		})
		require.NoError(t, err)
		saved = append(saved, batch)
	}
	return saved
}

func testConfig() *Config {
	return &Config{
		MaxRetries:     2,
		RetryDelay:     time.Millisecond,
		WriteTimeout:   time.Second,
		ReportInterval: 1,
	}
}

// countingSink accepts every batch except those whose first record has a
// thread id listed in reject.
type countingSink struct {
	mu      sync.Mutex
	calls   int
	records int
	reject  map[int]bool
}

func (s *countingSink) Write(ctx context.Context, batch []core.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.reject[batch[0].ThreadID] {
		return errors.New("index closed")
	}
	s.records += len(batch)
	return nil
}

func TestNewReplayer_Validation(t *testing.T) {
	ledger := setupLedger(t)
	s := sink.Func(func(context.Context, []core.Record) error { return nil })

	_, err := NewReplayer(nil, s, nil, nil)
	assert.ErrorIs(t, err, ErrLedgerRequired)

	_, err = NewReplayer(ledger, nil, nil, nil)
	assert.ErrorIs(t, err, ErrSinkRequired)

	_, err = NewReplayer(ledger, s, &Config{MaxRetries: 0}, nil)
	assert.ErrorIs(t, err, ErrInvalidMaxAttempts)

	r, err := NewReplayer(ledger, s, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), r.config)
}

func TestReplayer_EmptyLedger(t *testing.T) {
	ledger := setupLedger(t)
	var out bytes.Buffer
	r, err := NewReplayer(ledger, &countingSink{}, testConfig(), &out)
	require.NoError(t, err)

	result, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Batches)
	assert.Contains(t, out.String(), "No failed batches")
}

func TestReplayer_ReplaysEverything(t *testing.T) {
	ledger := setupLedger(t)
	seedLedger(t, ledger, 3, 4)

	s := &countingSink{}
	var out bytes.Buffer
	r, err := NewReplayer(ledger, s, testConfig(), &out)
	require.NoError(t, err)

	result, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, result.Batches)
	assert.Equal(t, 3, result.Replayed)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, 12, result.RecordsReplayed)
	assert.Equal(t, 3, s.calls)
	assert.Equal(t, 12, s.records)

	count, err := ledger.CountFailedBatches(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, count, "replayed batches leave the ledger")

	assert.Contains(t, out.String(), "Starting replay of 3 failed batches")
	assert.Contains(t, out.String(), "Replay complete")
}

func TestReplayer_KeepsRejectedBatch(t *testing.T) {
	ledger := setupLedger(t)
	saved := seedLedger(t, ledger, 3, 2)

	// Batch with thread id 1 is the second one seeded.
	s := &countingSink{reject: map[int]bool{1: true}}
	r, err := NewReplayer(ledger, s, testConfig(), nil)
	require.NoError(t, err)

	result, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Replayed)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 4, result.RecordsReplayed)
	assert.Equal(t, 1+1+2, s.calls, "rejected batch is retried MaxRetries times")

	remaining, err := ledger.ListFailedBatches(context.Background())
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, saved[1].Id, remaining[0].Id)
	assert.Equal(t, 1+2, remaining[0].Attempts)
	assert.Contains(t, remaining[0].Error, "index closed")
	assert.Len(t, remaining[0].Records, 2)

	// A second replay with a healthy sink drains the rest.
	r, err = NewReplayer(ledger, &countingSink{}, testConfig(), nil)
	require.NoError(t, err)
	result, err = r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Replayed)

	count, err := ledger.CountFailedBatches(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestReplayer_CancelKeepsLedger(t *testing.T) {
	ledger := setupLedger(t)
	seedLedger(t, ledger, 3, 2)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := sink.Func(func(context.Context, []core.Record) error {
		cancel()
		return errors.New("connection reset")
	})

	r, err := NewReplayer(ledger, s, &Config{MaxRetries: 3, RetryDelay: time.Second, ReportInterval: 1}, nil)
	require.NoError(t, err)

	result, err := r.Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, result.Replayed)
	assert.Equal(t, 1, result.Failed)

	batches, err := ledger.ListFailedBatches(context.Background())
	require.NoError(t, err)
	require.Len(t, batches, 3)
	assert.Equal(t, 2, batches[0].Attempts, "the attempt made before cancel is recorded")
	assert.Equal(t, 1, batches[1].Attempts)
}

func TestLedgerIterator_SkipsRemovedBatches(t *testing.T) {
	ledger := setupLedger(t)
	saved := seedLedger(t, ledger, 3, 1)
	ctx := context.Background()

	var seen []core.ID
	err := NewLedgerIterator(ledger).ForEach(ctx, func(batch *core.FailedBatch) error {
		seen = append(seen, batch.Id)
		if batch.Id == saved[0].Id {
			return ledger.DeleteFailedBatch(ctx, saved[1].Id)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []core.ID{saved[0].Id, saved[2].Id}, seen)
}

func TestLedgerIterator_StopsOnError(t *testing.T) {
	ledger := setupLedger(t)
	seedLedger(t, ledger, 3, 1)

	stop := errors.New("stop")
	calls := 0
	err := NewLedgerIterator(ledger).ForEach(context.Background(), func(*core.FailedBatch) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}
