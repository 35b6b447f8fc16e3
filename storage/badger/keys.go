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

package badger

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/poiesic/logingest/core"
)

const (
	recordPrefix      = "logrec"
	recordDatePrefix  = "logrecd"
	failedBatchPrefix = "fbatch"
	failedBatchIDSeq  = "fbatchseq"
)

// makeRecordKey generates a key for a log record by ID.
func makeRecordKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", recordPrefix, id))
}

// makeRecordDateKey generates a composite key for the date index.
// Format: prefix:timestamp:id
func makeRecordDateKey(timestamp time.Time, id core.ID) []byte {
	prefix := recordDatePrefix + ":"
	buf := make([]byte, len(prefix)+16) // 8 bytes for timestamp + 8 bytes for ID
	offset := copy(buf, prefix)
	// BigEndian so lexicographic order is time order
	binary.BigEndian.PutUint64(buf[offset:], uint64(timestamp.UnixMicro()))
	offset += 8
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// makePartialRecordDateKey generates a partial key for date range queries.
// Format: prefix:timestamp
func makePartialRecordDateKey(timestamp time.Time) []byte {
	prefix := recordDatePrefix + ":"
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(timestamp.UnixMicro()))
	return buf
}

// makeFailedBatchKey generates a key for a failed batch.
// IDs are BigEndian so iteration follows ID order.
func makeFailedBatchKey(id core.ID) []byte {
	prefix := failedBatchPrefix + ":"
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}
