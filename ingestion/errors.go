package ingestion

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when the configured root path does not exist.
	ErrNotFound = errors.New("not found")

	// ErrFileRead is matched by every FileReadError.
	ErrFileRead = errors.New("file read failed")

	// ErrSink is matched by every SinkError.
	ErrSink = errors.New("sink write failed")

	// ErrCanceled marks a run stopped by context cancellation.
	ErrCanceled = errors.New("ingestion canceled")

	// ErrPipelineUsed is returned when Run is called on a pipeline that already ran.
	ErrPipelineUsed = errors.New("pipeline already used")

	// ErrSinkRequired is returned when a sink is not provided.
	ErrSinkRequired = errors.New("sink required")

	// ErrInvalidConfig is returned when a Config fails validation.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// NotFoundError reports a missing root path. Callers treat it as nothing to ingest.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("root path %s not found", e.Path)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// FileReadError reports a file the stager could not read. The file is skipped.
type FileReadError struct {
	Path string
	Err  error
}

func (e *FileReadError) Error() string {
	return fmt.Sprintf("read %s: %v", e.Path, e.Err)
}

func (e *FileReadError) Is(target error) bool {
	return target == ErrFileRead
}

func (e *FileReadError) Unwrap() error {
	return e.Err
}

// SinkError wraps the error a sink returned for one batch.
type SinkError struct {
	Seq  int // Dispatch sequence number, starting at 1
	Size int // Number of records in the batch
	Err  error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("batch %d (%d records): %v", e.Seq, e.Size, e.Err)
}

func (e *SinkError) Is(target error) bool {
	return target == ErrSink
}

func (e *SinkError) Unwrap() error {
	return e.Err
}
