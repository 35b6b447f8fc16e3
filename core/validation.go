package core

import (
	"fmt"
)

// ValidateRecord validates a Record according to domain rules.
//
// Validation rules:
//   - SourceFile must not be empty
//   - Timestamp must be set
//   - ThreadID must not be negative
//
// NOT validated (format dependent):
//   - OwnerID, TaskID and LogLevel (empty for performance logs)
//   - Message (a line may end right at the delimiter)
func ValidateRecord(record *Record) error {
	if record == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidRecord)
	}

	if record.SourceFile == "" {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, ErrEmptySourceFile)
	}

	if record.Timestamp.IsZero() {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, ErrZeroTimestamp)
	}

	if record.ThreadID < 0 {
		return fmt.Errorf("%w: %w: value %d", ErrInvalidRecord, ErrNegativeThreadID, record.ThreadID)
	}

	return nil
}

// ValidateFailedBatch validates a FailedBatch before it is written to the ledger.
func ValidateFailedBatch(batch *FailedBatch) error {
	if batch == nil {
		return fmt.Errorf("%w: failed batch is nil", ErrInvalidRecord)
	}
	for i := range batch.Records {
		if err := ValidateRecord(&batch.Records[i]); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
	}
	return nil
}
