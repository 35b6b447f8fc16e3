package ingestion

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/logingest/core"
	"github.com/poiesic/logingest/parse"
	"golang.org/x/sync/errgroup"
)

// DefaultChunkSize is the number of lines one line-pool task parses.
const DefaultChunkSize = 1024

// LineParser turns staged units into records.
// Workers take one unit each; a unit's lines are split into chunks that are
// parsed in parallel on the shared line pool. Record order within a unit is kept.
type LineParser struct {
	strategy  parse.Strategy
	workers   int
	chunkSize int
	linePool  *ants.Pool
	logger    *slog.Logger
	metrics   *Metrics

	parsed    atomic.Int64
	discarded atomic.Int64
	malformed atomic.Int64
}

// NewLineParser creates a parser running workers unit workers that share linePool.
// A nil linePool parses every unit on its worker goroutine.
func NewLineParser(strategy parse.Strategy, workers int, linePool *ants.Pool, logger *slog.Logger, metrics *Metrics) *LineParser {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &LineParser{
		strategy:  strategy,
		workers:   workers,
		chunkSize: DefaultChunkSize,
		linePool:  linePool,
		logger:    logger.With("component", "parser", "format", strategy.Name()),
		metrics:   metrics,
	}
}

// Run parses units from in until it is closed and drained, putting records
// on out. out is closed exactly once, after every worker has finished.
func (lp *LineParser) Run(ctx context.Context, in *Queue[StagedUnit], out *Queue[core.Record]) error {
	defer out.Close()

	var g errgroup.Group
	for i := 0; i < lp.workers; i++ {
		g.Go(func() error {
			for {
				unit, ok, err := in.Get(ctx)
				if err != nil {
					return err
				}
				if !ok {
					return nil
				}

				records := lp.ParseUnit(unit)
				for _, rec := range records {
					if err := out.Put(ctx, rec); err != nil {
						return err
					}
				}
				lp.logger.Debug("finished parsing file", "source", unit.SourceFile, "records", len(records))
			}
		})
	}

	return g.Wait()
}

// ParseUnit parses every line of unit and returns the well-formed records in line order.
func (lp *LineParser) ParseUnit(unit StagedUnit) []core.Record {
	lines := unit.Lines
	if len(lines) == 0 {
		return nil
	}

	chunks := (len(lines) + lp.chunkSize - 1) / lp.chunkSize
	if chunks == 1 || lp.linePool == nil {
		return lp.parseLines(unit.SourceFile, lines)
	}

	results := make([][]core.Record, chunks)
	var wg sync.WaitGroup
	for c := 0; c < chunks; c++ {
		start := c * lp.chunkSize
		end := min(start+lp.chunkSize, len(lines))

		wg.Add(1)
		task := func() {
			defer wg.Done()
			results[c] = lp.parseLines(unit.SourceFile, lines[start:end])
		}
		if err := lp.linePool.Submit(task); err != nil {
			// Pool released or overloaded: parse on this goroutine instead.
			task()
		}
	}
	wg.Wait()

	total := 0
	for _, r := range results {
		total += len(r)
	}
	records := make([]core.Record, 0, total)
	for _, r := range results {
		records = append(records, r...)
	}
	return records
}

func (lp *LineParser) parseLines(sourceFile string, lines []string) []core.Record {
	records := make([]core.Record, 0, len(lines))
	var discarded, malformed int

	for _, line := range lines {
		rec, ok, err := lp.strategy.Parse(sourceFile, line)
		switch {
		case err != nil:
			malformed++
			if errors.Is(err, core.ErrMalformedRecord) {
				lp.logger.Debug("malformed line", "source", sourceFile, "err", err)
			} else {
				lp.logger.Warn("parse error", "source", sourceFile, "err", err)
			}
		case !ok:
			discarded++
		default:
			records = append(records, rec)
		}
	}

	lp.parsed.Add(int64(len(records)))
	lp.discarded.Add(int64(discarded))
	lp.malformed.Add(int64(malformed))
	lp.metrics.RecordLines(LineOutcomeParsed, len(records))
	lp.metrics.RecordLines(LineOutcomeDiscarded, discarded)
	lp.metrics.RecordLines(LineOutcomeMalformed, malformed)

	return records
}

// RecordsParsed returns the number of well-formed records produced so far.
func (lp *LineParser) RecordsParsed() int {
	return int(lp.parsed.Load())
}

// LinesDiscarded returns the number of lines silently dropped so far.
func (lp *LineParser) LinesDiscarded() int {
	return int(lp.discarded.Load())
}

// LinesMalformed returns the number of lines rejected by field conversion so far.
func (lp *LineParser) LinesMalformed() int {
	return int(lp.malformed.Load())
}
