package ingestion

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/poiesic/logingest/core"
	"github.com/poiesic/logingest/sink"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dispatchConfig(batchSize, outstanding int) Config {
	cfg := DefaultConfig()
	cfg.MaxBatchSize = batchSize
	cfg.MaxOutstanding = outstanding
	cfg.DispatchTimeout = time.Second
	cfg.GracePeriod = 20 * time.Millisecond
	return cfg
}

func TestNewDispatcher_Validation(t *testing.T) {
	_, err := NewDispatcher(nil, DefaultConfig())
	assert.ErrorIs(t, err, ErrSinkRequired)

	cfg := DefaultConfig()
	cfg.MaxBatchSize = 0
	_, err = NewDispatcher(&collectingSink{}, cfg)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestDispatcher_FiveRecordsTwoPerBatch(t *testing.T) {
	s := &collectingSink{}
	d, err := NewDispatcher(s, dispatchConfig(2, 4))
	require.NoError(t, err)

	records := testRecords(5)
	report := d.Run(context.Background(), filledQueue(records))

	sizes := s.sizes()
	sort.Ints(sizes)
	assert.Equal(t, []int{1, 2, 2}, sizes)
	assert.Equal(t, 3, report.BatchesSent)
	assert.Equal(t, 5, report.RecordsSent)
	assert.Equal(t, 0, report.BatchesFailed)
	assert.True(t, report.OK())
	assert.ElementsMatch(t, records, s.records())
}

func TestDispatcher_EmptyInput(t *testing.T) {
	s := &collectingSink{}
	d, err := NewDispatcher(s, dispatchConfig(2, 1))
	require.NoError(t, err)

	report := d.Run(context.Background(), filledQueue(nil))
	assert.Empty(t, s.sizes(), "no empty batch is sent")
	assert.Equal(t, 0, report.Batches())
}

func TestDispatcher_ThirdCallFails(t *testing.T) {
	var calls atomic.Int32
	sinkErr := errors.New("index unavailable")
	s := sink.Func(func(ctx context.Context, batch []core.Record) error {
		if calls.Add(1) == 3 {
			return sinkErr
		}
		return nil
	})

	recorder := &memoryRecorder{}
	d, err := NewDispatcher(s, dispatchConfig(2, 1), WithFailureRecorder(recorder), WithRunID("run-1"))
	require.NoError(t, err)

	records := testRecords(5)
	report := d.Run(context.Background(), filledQueue(records))

	assert.Equal(t, 2, report.BatchesSent)
	assert.Equal(t, 4, report.RecordsSent)
	assert.Equal(t, 1, report.BatchesFailed)
	assert.Equal(t, 1, report.RecordsFailed)
	assert.False(t, report.OK())
	assert.False(t, report.Partial)

	require.Len(t, report.Failures, 1)
	failure := report.Failures[0]
	assert.Equal(t, 3, failure.Seq)
	assert.Equal(t, 1, failure.Size)
	assert.Equal(t, records[4:], failure.Records)
	assert.ErrorIs(t, failure.Err, ErrSink)
	assert.ErrorIs(t, failure.Err, sinkErr)

	saved := recorder.saved()
	require.Len(t, saved, 1)
	assert.Equal(t, "run-1", saved[0].RunID)
	assert.Equal(t, 3, saved[0].Seq)
	assert.Equal(t, 1, saved[0].Attempts)
	assert.Equal(t, sinkErr.Error(), saved[0].Error)
	assert.Equal(t, records[4:], saved[0].Records)
	assert.False(t, saved[0].FailedAt.IsZero())
}

func TestDispatcher_BoundsOutstandingWrites(t *testing.T) {
	var inFlight, maxInFlight atomic.Int32
	s := sink.Func(func(ctx context.Context, batch []core.Record) error {
		n := inFlight.Add(1)
		for {
			m := maxInFlight.Load()
			if n <= m || maxInFlight.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		inFlight.Add(-1)
		return nil
	})

	d, err := NewDispatcher(s, dispatchConfig(1, 2))
	require.NoError(t, err)

	report := d.Run(context.Background(), filledQueue(testRecords(12)))
	assert.Equal(t, 12, report.BatchesSent)
	assert.LessOrEqual(t, maxInFlight.Load(), int32(2))
	assert.Equal(t, int32(0), inFlight.Load(), "Run returns only after every write finished")
}

func TestDispatcher_Timeout(t *testing.T) {
	s := sink.Func(func(ctx context.Context, batch []core.Record) error {
		<-ctx.Done()
		return ctx.Err()
	})

	cfg := dispatchConfig(10, 1)
	cfg.DispatchTimeout = 20 * time.Millisecond
	d, err := NewDispatcher(s, cfg)
	require.NoError(t, err)

	report := d.Run(context.Background(), filledQueue(testRecords(3)))
	require.Len(t, report.Failures, 1)
	assert.ErrorIs(t, report.Failures[0].Err, context.DeadlineExceeded)
	assert.False(t, report.Partial)
}

func TestDispatcher_SinkPanicIsAFailedBatch(t *testing.T) {
	s := sink.Func(func(ctx context.Context, batch []core.Record) error {
		panic("boom")
	})

	d, err := NewDispatcher(s, dispatchConfig(10, 1))
	require.NoError(t, err)

	report := d.Run(context.Background(), filledQueue(testRecords(2)))
	assert.Equal(t, 1, report.BatchesFailed)
	assert.Equal(t, 2, report.RecordsFailed)
	require.Len(t, report.Failures, 1)
	assert.Contains(t, report.Failures[0].Err.Error(), "boom")
}

func TestDispatcher_Cancellation(t *testing.T) {
	started := make(chan struct{})
	var once sync.Once
	s := sink.Func(func(ctx context.Context, batch []core.Record) error {
		once.Do(func() { close(started) })
		<-ctx.Done()
		return ctx.Err()
	})

	cfg := dispatchConfig(2, 1)
	cfg.DispatchTimeout = 10 * time.Second
	d, err := NewDispatcher(s, cfg)
	require.NoError(t, err)

	// Three records and an open queue: one full batch goes out, one record
	// stays buffered and the dispatcher waits for more input.
	in := NewQueue[core.Record](10)
	for _, r := range testRecords(3) {
		require.NoError(t, in.Put(context.Background(), r))
	}

	ctx, cancel := context.WithCancel(context.Background())
	reports := make(chan *Report, 1)
	go func() {
		reports <- d.Run(ctx, in)
	}()

	<-started
	require.Eventually(t, func() bool { return in.Len() == 0 }, time.Second, time.Millisecond)
	cancel()

	var report *Report
	select {
	case report = <-reports:
	case <-time.After(5 * time.Second):
		t.Fatal("dispatcher did not stop after cancellation")
	}

	assert.True(t, report.Partial)
	assert.ErrorIs(t, report.Err, ErrCanceled)
	assert.Equal(t, 1, report.RecordsAbandoned)
	assert.Equal(t, 1, report.BatchesFailed, "in-flight write canceled after the grace period")
	assert.Equal(t, 0, report.BatchesSent)
}

func TestDispatcher_GracePeriodLetsWritesFinish(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once
	s := sink.Func(func(ctx context.Context, batch []core.Record) error {
		once.Do(func() { close(started) })
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	cfg := dispatchConfig(2, 1)
	cfg.GracePeriod = 5 * time.Second
	d, err := NewDispatcher(s, cfg)
	require.NoError(t, err)

	in := NewQueue[core.Record](10)
	for _, r := range testRecords(2) {
		require.NoError(t, in.Put(context.Background(), r))
	}

	ctx, cancel := context.WithCancel(context.Background())
	reports := make(chan *Report, 1)
	go func() {
		reports <- d.Run(ctx, in)
	}()

	<-started
	cancel()
	close(release)

	report := <-reports
	assert.True(t, report.Partial)
	assert.Equal(t, 1, report.BatchesSent, "write completed within the grace period")
	assert.Equal(t, 0, report.BatchesFailed)
}
