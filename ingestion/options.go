package ingestion

import (
	"context"
	"io"
	"log/slog"

	"github.com/poiesic/logingest/core"
	"github.com/poiesic/logingest/parse"
)

// FailureRecorder persists batches the sink rejected so they can be replayed.
type FailureRecorder interface {
	SaveFailedBatch(ctx context.Context, batch *core.FailedBatch) (*core.FailedBatch, error)
}

type options struct {
	logger   *slog.Logger
	metrics  *Metrics
	recorder FailureRecorder
	strategy parse.Strategy
	progress io.Writer
	runID    string
}

func defaultOptions() *options {
	return &options{
		logger: slog.Default(),
	}
}

// Option configures a Pipeline or a Dispatcher.
type Option func(*options)

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = slog.Default()
		}
		o.logger = logger
	}
}

// WithMetrics sets the collectors updated during a run.
// Default is an unregistered set.
func WithMetrics(metrics *Metrics) Option {
	return func(o *options) {
		o.metrics = metrics
	}
}

// WithFailureRecorder persists every failed batch through recorder.
func WithFailureRecorder(recorder FailureRecorder) Option {
	return func(o *options) {
		o.recorder = recorder
	}
}

// WithStrategy overrides the parse strategy selected by Config.Format.
func WithStrategy(strategy parse.Strategy) Option {
	return func(o *options) {
		o.strategy = strategy
	}
}

// WithProgress prints files-remaining progress to w while a pipeline runs.
func WithProgress(w io.Writer) Option {
	return func(o *options) {
		o.progress = w
	}
}

// WithRunID sets the id failed batches are tagged with.
// A Pipeline without one generates a random id per run.
func WithRunID(runID string) Option {
	return func(o *options) {
		o.runID = runID
	}
}
