package core

import (
	"errors"
	"fmt"
)

// Domain validation errors
var (
	// ErrInvalidRecord indicates a Record failed validation.
	ErrInvalidRecord = errors.New("invalid record")

	// ErrEmptySourceFile indicates the SourceFile field is empty.
	ErrEmptySourceFile = errors.New("source file cannot be empty")

	// ErrZeroTimestamp indicates the Timestamp field was never set.
	ErrZeroTimestamp = errors.New("timestamp cannot be zero")

	// ErrNegativeThreadID indicates a ThreadID below zero.
	ErrNegativeThreadID = errors.New("thread id cannot be negative")

	// ErrMalformedRecord is the sentinel matched by every MalformedRecordError.
	ErrMalformedRecord = errors.New("malformed record")
)

// MalformedRecordError reports a line whose fields split correctly but
// failed type conversion. Callers count it and move on to the next line.
type MalformedRecordError struct {
	Field string // Name of the field that failed to convert
	Value string // Raw field text
	Err   error  // Underlying conversion error
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed record: field %s %q: %v", e.Field, e.Value, e.Err)
}

// Is makes errors.Is(err, ErrMalformedRecord) match.
func (e *MalformedRecordError) Is(target error) bool {
	return target == ErrMalformedRecord
}

func (e *MalformedRecordError) Unwrap() error {
	return e.Err
}
