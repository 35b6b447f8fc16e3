package core

import (
	"encoding/binary"
	"strconv"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for domain entities.
// Record IDs are content hashes; ledger IDs come from database sequences.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// TimestampLayout is the layout used when rendering record timestamps.
const TimestampLayout = "2006-01-02 15:04:05.000"

// Record is a single parsed log line.
// A Record is a value: once built by a parser it is never modified.
type Record struct {
	SourceFile string    // Origin file name without directory or extension
	OwnerID    string    // Owning component, empty for performance logs
	TaskID     string    // Task the line belongs to, empty for performance logs
	Timestamp  time.Time // When the line was written
	LogLevel   string    // Severity, empty for performance logs
	ThreadID   int
	ClassName  string
	MethodName string
	Message    string
}

// ID returns the content ID of the record.
// Two records with equal fields always share an ID, which lets sinks
// overwrite instead of duplicate when a batch is delivered more than once.
// The timestamp is hashed in UTC so the ID survives a storage round trip.
func (r Record) ID() ID {
	r.Timestamp = r.Timestamp.UTC()
	return IDFromContent(r.String())
}

// String renders the record as a comma separated line:
// source,owner,task,timestamp,level,thread,class,method,message
func (r Record) String() string {
	var sb strings.Builder
	sb.Grow(len(r.SourceFile) + len(r.OwnerID) + len(r.TaskID) + len(r.LogLevel) +
		len(r.ClassName) + len(r.MethodName) + len(r.Message) + 48)
	sb.WriteString(r.SourceFile)
	sb.WriteByte(',')
	sb.WriteString(r.OwnerID)
	sb.WriteByte(',')
	sb.WriteString(r.TaskID)
	sb.WriteByte(',')
	sb.WriteString(r.Timestamp.Format(TimestampLayout))
	sb.WriteByte(',')
	sb.WriteString(r.LogLevel)
	sb.WriteByte(',')
	sb.WriteString(strconv.Itoa(r.ThreadID))
	sb.WriteByte(',')
	sb.WriteString(r.ClassName)
	sb.WriteByte(',')
	sb.WriteString(r.MethodName)
	sb.WriteByte(',')
	sb.WriteString(r.Message)
	return sb.String()
}

// FailedBatch is a batch the sink rejected, kept so it can be replayed later.
type FailedBatch struct {
	Id       ID
	RunID    string    // Pipeline run that produced the batch
	Seq      int       // Dispatch sequence number within the run
	Error    string    // Sink error text at the time of failure
	FailedAt time.Time // When the failure was recorded
	Attempts int       // Number of delivery attempts so far
	Records  []Record
}
