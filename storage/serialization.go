// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package storage

import (
	"fmt"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/logingest/core"
)

// Timestamps are stored as Unix microseconds and read back in UTC.

// MarshalID serializes an ID to bytes.
func MarshalID(id core.ID) []byte {
	buf := make([]byte, varint.Uint64.Size(uint64(id)))
	varint.Uint64.Marshal(uint64(id), buf)
	return buf
}

// UnmarshalID deserializes an ID from bytes.
func UnmarshalID(data []byte) (core.ID, error) {
	v, _, err := varint.Uint64.Unmarshal(data)
	if err != nil {
		return 0, fmt.Errorf("%w: id: %w", ErrSerializationFailed, err)
	}
	return core.ID(v), nil
}

// MarshalRecord serializes a Record to bytes.
func MarshalRecord(record *core.Record) []byte {
	buf := make([]byte, sizeRecord(record))
	w := &writer{buf: buf}
	w.record(record)
	return buf
}

// UnmarshalRecord deserializes a Record from bytes.
func UnmarshalRecord(data []byte) (*core.Record, error) {
	r := &reader{buf: data}
	record := r.record()
	if r.err != nil {
		return nil, fmt.Errorf("%w: record: %w", ErrSerializationFailed, r.err)
	}
	return &record, nil
}

// MarshalFailedBatch serializes a FailedBatch to bytes.
func MarshalFailedBatch(batch *core.FailedBatch) []byte {
	size := varint.Uint64.Size(uint64(batch.Id)) +
		ord.String.Size(batch.RunID) +
		varint.Int64.Size(int64(batch.Seq)) +
		ord.String.Size(batch.Error) +
		varint.Int64.Size(batch.FailedAt.UnixMicro()) +
		varint.Int64.Size(int64(batch.Attempts)) +
		varint.Int64.Size(int64(len(batch.Records)))
	for i := range batch.Records {
		size += sizeRecord(&batch.Records[i])
	}

	buf := make([]byte, size)
	w := &writer{buf: buf}
	w.n += varint.Uint64.Marshal(uint64(batch.Id), buf)
	w.str(batch.RunID)
	w.i64(int64(batch.Seq))
	w.str(batch.Error)
	w.i64(batch.FailedAt.UnixMicro())
	w.i64(int64(batch.Attempts))
	w.i64(int64(len(batch.Records)))
	for i := range batch.Records {
		w.record(&batch.Records[i])
	}
	return buf
}

// UnmarshalFailedBatch deserializes a FailedBatch from bytes.
func UnmarshalFailedBatch(data []byte) (*core.FailedBatch, error) {
	id, n, err := varint.Uint64.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: failed batch: %w", ErrSerializationFailed, err)
	}

	r := &reader{buf: data, n: n}
	batch := &core.FailedBatch{Id: core.ID(id)}
	batch.RunID = r.str()
	batch.Seq = int(r.i64())
	batch.Error = r.str()
	batch.FailedAt = r.timestamp()
	batch.Attempts = int(r.i64())

	count := r.i64()
	// Every record takes at least one byte per field.
	if r.err == nil && (count < 0 || count > int64(len(data)-r.n)) {
		r.err = ErrTruncatedData
	}
	if r.err == nil && count > 0 {
		batch.Records = make([]core.Record, 0, count)
		for i := int64(0); i < count && r.err == nil; i++ {
			batch.Records = append(batch.Records, r.record())
		}
	}

	if r.err != nil {
		return nil, fmt.Errorf("%w: failed batch: %w", ErrSerializationFailed, r.err)
	}
	return batch, nil
}

func sizeRecord(record *core.Record) int {
	return ord.String.Size(record.SourceFile) +
		ord.String.Size(record.OwnerID) +
		ord.String.Size(record.TaskID) +
		varint.Int64.Size(record.Timestamp.UnixMicro()) +
		ord.String.Size(record.LogLevel) +
		varint.Int64.Size(int64(record.ThreadID)) +
		ord.String.Size(record.ClassName) +
		ord.String.Size(record.MethodName) +
		ord.String.Size(record.Message)
}

// writer marshals fields into a buffer sized in advance.
type writer struct {
	buf []byte
	n   int
}

func (w *writer) str(s string) {
	w.n += ord.String.Marshal(s, w.buf[w.n:])
}

func (w *writer) i64(v int64) {
	w.n += varint.Int64.Marshal(v, w.buf[w.n:])
}

func (w *writer) record(record *core.Record) {
	w.str(record.SourceFile)
	w.str(record.OwnerID)
	w.str(record.TaskID)
	w.i64(record.Timestamp.UnixMicro())
	w.str(record.LogLevel)
	w.i64(int64(record.ThreadID))
	w.str(record.ClassName)
	w.str(record.MethodName)
	w.str(record.Message)
}

// reader unmarshals fields in order, keeping the first error.
// Once err is set every further read is a no-op returning a zero value.
type reader struct {
	buf []byte
	n   int
	err error
}

func (r *reader) str() string {
	if r.err != nil {
		return ""
	}
	v, n, err := ord.String.Unmarshal(r.buf[r.n:])
	r.n += n
	r.err = err
	return v
}

func (r *reader) i64() int64 {
	if r.err != nil {
		return 0
	}
	v, n, err := varint.Int64.Unmarshal(r.buf[r.n:])
	r.n += n
	r.err = err
	return v
}

func (r *reader) timestamp() time.Time {
	micros := r.i64()
	if r.err != nil {
		return time.Time{}
	}
	return time.UnixMicro(micros).UTC()
}

func (r *reader) record() core.Record {
	var record core.Record
	record.SourceFile = r.str()
	record.OwnerID = r.str()
	record.TaskID = r.str()
	record.Timestamp = r.timestamp()
	record.LogLevel = r.str()
	record.ThreadID = int(r.i64())
	record.ClassName = r.str()
	record.MethodName = r.str()
	record.Message = r.str()
	return record
}
