package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/logingest/core"
	"github.com/poiesic/logingest/parse"
	"github.com/poiesic/logingest/sink"
	"golang.org/x/sync/errgroup"
)

// Result summarizes one pipeline run.
type Result struct {
	RunID          string
	FilesListed    int
	FilesStaged    int
	FilesFailed    int
	RecordsParsed  int
	LinesDiscarded int
	LinesMalformed int
	Report         *Report
	Elapsed        time.Duration
}

// Pipeline wires the lister, stager, parser and dispatcher for one run.
// A Pipeline is single-use.
type Pipeline struct {
	config   Config
	sink     sink.Sink
	strategy parse.Strategy
	opts     *options
	logger   *slog.Logger
	used     atomic.Bool
}

// NewPipeline creates a pipeline that ingests the files described by config into s.
func NewPipeline(config Config, s sink.Sink, opts ...Option) (*Pipeline, error) {
	if s == nil {
		return nil, ErrSinkRequired
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if o.metrics == nil {
		o.metrics = NewMetrics(nil)
	}

	strategy := o.strategy
	if strategy == nil {
		var err error
		strategy, err = parse.ByName(config.Format, parse.WithHeaderCommaOffset(config.HeaderCommaOffset))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}

	return &Pipeline{
		config:   config,
		sink:     s,
		strategy: strategy,
		opts:     o,
		logger:   o.logger.With("component", "pipeline"),
	}, nil
}

// Run ingests every matching file and returns once all batches are resolved.
// Only misuse and configuration problems are returned as errors. A missing
// root path, sink failures and cancellation are reported in the Result.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	if !p.used.CompareAndSwap(false, true) {
		return nil, ErrPipelineUsed
	}

	start := time.Now()
	runID := p.opts.runID
	if runID == "" {
		runID = uuid.NewString()
	}
	result := &Result{RunID: runID, Report: &Report{}}
	logger := p.logger.With("run", result.RunID)

	paths, err := ListFiles(p.config.RootPath, p.config.Pattern, p.config.Recursive)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			logger.Warn("nothing to ingest", "err", err)
			result.Elapsed = time.Since(start)
			return result, nil
		}
		return nil, err
	}
	result.FilesListed = len(paths)
	logger.Info("starting ingestion", "root", p.config.RootPath, "pattern", p.config.Pattern,
		"files", len(paths), "format", p.strategy.Name())

	linePool, err := ants.NewPool(p.config.Workers)
	if err != nil {
		return nil, fmt.Errorf("create line pool: %w", err)
	}
	defer linePool.Release()

	var progress *ProgressTracker
	if p.opts.progress != nil {
		progress = NewProgressTracker(p.opts.progress, "files", len(paths), 1)
		progress.Start()
	}

	dispatcher, err := NewDispatcher(p.sink, p.config,
		WithLogger(logger),
		WithMetrics(p.opts.metrics),
		WithFailureRecorder(p.opts.recorder),
		WithRunID(result.RunID))
	if err != nil {
		return nil, err
	}
	stager := NewStager(logger, p.opts.metrics, progress)
	parser := NewLineParser(p.strategy, p.config.Workers, linePool, logger, p.opts.metrics)

	units := NewQueue[StagedUnit](p.config.StagedUnitCapacity())
	records := NewQueue[core.Record](p.config.MaxQueueDepth)

	var g errgroup.Group
	g.Go(func() error {
		return stager.Stage(ctx, paths, units)
	})
	g.Go(func() error {
		return parser.Run(ctx, units, records)
	})

	result.Report = dispatcher.Run(ctx, records)
	if err := g.Wait(); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			if !result.Report.Partial {
				// Upstream stopped early but the dispatcher saw a clean close.
				result.Report.markCanceled(0)
			}
		} else {
			logger.Error("ingestion stage failed", "err", err)
		}
	}
	progress.Finish()

	result.FilesStaged = stager.FilesStaged()
	result.FilesFailed = stager.FilesFailed()
	result.RecordsParsed = parser.RecordsParsed()
	result.LinesDiscarded = parser.LinesDiscarded()
	result.LinesMalformed = parser.LinesMalformed()
	result.Elapsed = time.Since(start)

	logger.Info("ingestion finished",
		"files", result.FilesStaged,
		"failedFiles", result.FilesFailed,
		"records", result.RecordsParsed,
		"discarded", result.LinesDiscarded,
		"malformed", result.LinesMalformed,
		"batchesSent", result.Report.BatchesSent,
		"batchesFailed", result.Report.BatchesFailed,
		"partial", result.Report.Partial,
		"elapsed", result.Elapsed)

	return result, nil
}
