package ingestion

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// StagedUnit is the raw content of one input file.
// The stager creates it once and hands ownership to the parser.
type StagedUnit struct {
	SourceFile string   // File name without directory or extension
	Lines      []string // Lines in file order, without the trailing newline
}

// Stager reads input files one at a time and queues their lines.
type Stager struct {
	logger   *slog.Logger
	metrics  *Metrics
	progress *ProgressTracker

	staged atomic.Int64
	failed atomic.Int64
}

// NewStager creates a stager. Any of the arguments may be nil.
func NewStager(logger *slog.Logger, metrics *Metrics, progress *ProgressTracker) *Stager {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Stager{
		logger:   logger.With("component", "stager"),
		metrics:  metrics,
		progress: progress,
	}
}

// Stage reads paths in order and puts one StagedUnit per readable file on out.
// Unreadable files are logged and skipped. out is closed when Stage returns,
// including when ctx is canceled.
func (s *Stager) Stage(ctx context.Context, paths []string, out *Queue[StagedUnit]) error {
	defer out.Close()

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}

		lines, err := ReadLines(path)
		if err != nil {
			s.failed.Add(1)
			s.metrics.RecordFile(FileOutcomeFailed)
			s.progress.Increment(1)
			s.logger.Error("skipping unreadable file", "err", err)
			continue
		}

		unit := StagedUnit{SourceFile: SourceID(path), Lines: lines}
		if err := out.Put(ctx, unit); err != nil {
			return err
		}

		s.staged.Add(1)
		s.metrics.RecordFile(FileOutcomeStaged)
		s.progress.Increment(1)
		s.logger.Debug("finished reading file", "path", path, "lines", len(lines))
	}

	return nil
}

// FilesStaged returns the number of files queued so far.
func (s *Stager) FilesStaged() int {
	return int(s.staged.Load())
}

// FilesFailed returns the number of files skipped because they could not be read.
func (s *Stager) FilesFailed() int {
	return int(s.failed.Load())
}

// ReadLines reads a whole file and splits it on '\n'. Files ending in .gz or
// .zst are decompressed first. Lines keep any '\r'. A final empty line after
// the last newline is dropped. Errors are returned as *FileReadError.
func ReadLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &FileReadError{Path: path, Err: err}
	}
	defer f.Close()

	var r io.Reader = f
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz":
		zr, err := gzip.NewReader(f)
		if err != nil {
			return nil, &FileReadError{Path: path, Err: fmt.Errorf("open gzip stream: %w", err)}
		}
		defer zr.Close()
		r = zr
	case ".zst":
		zr, err := zstd.NewReader(f)
		if err != nil {
			return nil, &FileReadError{Path: path, Err: fmt.Errorf("open zstd stream: %w", err)}
		}
		defer zr.Close()
		r = zr
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &FileReadError{Path: path, Err: err}
	}
	if len(data) == 0 {
		return nil, nil
	}

	data = bytes.TrimSuffix(data, []byte("\n"))
	return strings.Split(string(data), "\n"), nil
}

// SourceID derives a record's source file from a path: the base name
// without a compression suffix and without its extension.
// "logs/log1.csv.gz" becomes "log1".
func SourceID(path string) string {
	base := filepath.Base(path)
	switch strings.ToLower(filepath.Ext(base)) {
	case ".gz", ".zst":
		base = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}
