package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/logingest/core"
	"github.com/poiesic/logingest/sink"
)

// Dispatcher groups records into batches and writes them to a sink with
// bounded concurrency. It owns its buffer: a batch handed to the sink is
// never touched again by the dispatcher.
type Dispatcher struct {
	sink            sink.Sink
	maxBatchSize    int
	maxOutstanding  int
	dispatchTimeout time.Duration
	gracePeriod     time.Duration
	recorder        FailureRecorder
	runID           string
	logger          *slog.Logger
	metrics         *Metrics
}

// NewDispatcher creates a dispatcher writing to s using the batching fields of cfg.
func NewDispatcher(s sink.Sink, cfg Config, opts ...Option) (*Dispatcher, error) {
	if s == nil {
		return nil, ErrSinkRequired
	}
	if cfg.MaxBatchSize < 1 || cfg.MaxOutstanding < 1 || cfg.DispatchTimeout <= 0 || cfg.GracePeriod < 0 {
		return nil, fmt.Errorf("%w: dispatcher needs positive batch size, outstanding limit and timeout", ErrInvalidConfig)
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if o.metrics == nil {
		o.metrics = NewMetrics(nil)
	}

	return &Dispatcher{
		sink:            s,
		maxBatchSize:    cfg.MaxBatchSize,
		maxOutstanding:  cfg.MaxOutstanding,
		dispatchTimeout: cfg.DispatchTimeout,
		gracePeriod:     cfg.GracePeriod,
		recorder:        o.recorder,
		runID:           o.runID,
		logger:          o.logger.With("component", "dispatcher"),
		metrics:         o.metrics,
	}, nil
}

// Run reads records from in until it is closed, writing full batches as they
// fill and the final partial batch on close, then waits for every outstanding
// write before returning.
//
// If ctx is canceled Run stops reading, drops the unflushed buffer and lets
// in-flight writes continue for the grace period before canceling them.
// The returned report is then marked Partial with Err set to ErrCanceled.
func (d *Dispatcher) Run(ctx context.Context, in *Queue[core.Record]) *Report {
	report := &Report{}

	// Submit blocks while maxOutstanding writes are running.
	pool, err := ants.NewPool(d.maxOutstanding)
	if err != nil {
		d.logger.Error("failed to create dispatch pool", "err", err)
		report.Err = err
		return report
	}
	defer pool.Release()

	// Writes outlive ctx by the grace period.
	writeCtx, cancelWrites := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelWrites()

	done := make(chan struct{})
	defer close(done)
	stop := context.AfterFunc(ctx, func() {
		timer := time.NewTimer(d.gracePeriod)
		defer timer.Stop()
		select {
		case <-timer.C:
			d.logger.Warn("grace period expired, canceling outstanding writes")
			cancelWrites()
		case <-done:
		}
	})
	defer stop()

	var outstanding sync.WaitGroup
	seq := 0
	buf := make([]core.Record, 0, d.maxBatchSize)

	dispatch := func(batch []core.Record) {
		seq++
		n := seq
		outstanding.Add(1)
		err := pool.Submit(func() {
			defer outstanding.Done()
			d.send(writeCtx, n, batch, report)
		})
		if err != nil {
			outstanding.Done()
			d.fail(writeCtx, n, batch, err, report)
		}
	}

	for {
		rec, ok, err := in.Get(ctx)
		if err != nil {
			report.markCanceled(len(buf))
			d.logger.Warn("dispatch canceled", "abandoned", len(buf), "err", err)
			break
		}
		if !ok {
			if len(buf) > 0 {
				dispatch(buf)
			}
			break
		}

		buf = append(buf, rec)
		if len(buf) >= d.maxBatchSize {
			dispatch(buf)
			buf = make([]core.Record, 0, d.maxBatchSize)
		}
	}

	outstanding.Wait()
	report.sortFailures()
	return report
}

func (d *Dispatcher) send(ctx context.Context, seq int, batch []core.Record, report *Report) {
	callCtx, cancel := context.WithTimeout(ctx, d.dispatchTimeout)
	defer cancel()

	d.metrics.DispatchStarted()
	start := time.Now()
	err := d.write(callCtx, batch)
	elapsed := time.Since(start)
	d.metrics.DispatchFinished()

	if err != nil {
		d.metrics.RecordBatch(BatchOutcomeFailed, len(batch), elapsed)
		d.fail(ctx, seq, batch, err, report)
		return
	}

	d.metrics.RecordBatch(BatchOutcomeSent, len(batch), elapsed)
	report.recordSent(len(batch))
	d.logger.Debug("batch sent", "seq", seq, "size", len(batch), "elapsed", elapsed)
}

// write calls the sink, turning a panic into an error so the batch is still accounted for.
func (d *Dispatcher) write(ctx context.Context, batch []core.Record) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink panic: %v", r)
		}
	}()
	return d.sink.Write(ctx, batch)
}

func (d *Dispatcher) fail(ctx context.Context, seq int, batch []core.Record, cause error, report *Report) {
	serr := &SinkError{Seq: seq, Size: len(batch), Err: cause}
	d.logger.Error("batch dispatch failed", "seq", seq, "size", len(batch), "err", cause)
	report.recordFailed(BatchFailure{Seq: seq, Size: len(batch), Err: serr, Records: batch})

	if d.recorder == nil {
		return
	}
	failed := &core.FailedBatch{
		RunID:    d.runID,
		Seq:      seq,
		Error:    cause.Error(),
		FailedAt: time.Now().UTC(),
		Attempts: 1,
		Records:  batch,
	}
	// The ledger write must survive the cancellation that may have caused the failure.
	if _, err := d.recorder.SaveFailedBatch(context.WithoutCancel(ctx), failed); err != nil {
		d.logger.Error("failed to record failed batch", "seq", seq, "err", err)
	}
}
