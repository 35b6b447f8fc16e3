package parse

import (
	"strconv"
	"strings"
	"time"

	"github.com/poiesic/logingest/core"
)

const (
	// DefaultHeaderCommaOffset is where the first comma sits in a primary log
	// line: owner ids are eight characters wide. Header and noise lines fail it.
	DefaultHeaderCommaOffset = 8

	// StandardTimestampLayout is yy-MM-dd HH:mm:ss.ff.
	StandardTimestampLayout = "06-01-02 15:04:05.00"

	standardFieldCount = 7
)

// StandardLog parses primary log lines:
//
//	owner,task,yy-MM-dd HH:mm:ss.ff,level,thread,class,method,message,
//
// The message starts after the 7th comma and may itself contain commas.
type StandardLog struct {
	// HeaderCommaOffset is the required index of the first comma.
	// Negative disables the check.
	HeaderCommaOffset int

	// Location timestamps are interpreted in. Nil means time.Local.
	Location *time.Location
}

var _ Strategy = (*StandardLog)(nil)

// NewStandardLog returns a StandardLog with the default header filter.
func NewStandardLog() *StandardLog {
	return &StandardLog{HeaderCommaOffset: DefaultHeaderCommaOffset}
}

func (s *StandardLog) Name() string {
	return FormatStandard
}

func (s *StandardLog) Parse(sourceFile, line string) (core.Record, bool, error) {
	if line == "" || line == "\r" {
		return core.Record{}, false, nil
	}

	if s.HeaderCommaOffset >= 0 && strings.IndexByte(line, ',') != s.HeaderCommaOffset {
		return core.Record{}, false, nil
	}

	idx := delimiterIndex(line, standardFieldCount)
	if idx < 0 {
		return core.Record{}, false, nil
	}

	fields := strings.Split(line[:idx], ",")
	if len(fields) != standardFieldCount {
		return core.Record{}, false, nil
	}

	loc := s.Location
	if loc == nil {
		loc = time.Local
	}
	ts, err := time.ParseInLocation(StandardTimestampLayout, fields[2], loc)
	if err != nil {
		return core.Record{}, false, &core.MalformedRecordError{Field: "timestamp", Value: fields[2], Err: err}
	}

	threadID, err := strconv.Atoi(fields[4])
	if err != nil {
		return core.Record{}, false, &core.MalformedRecordError{Field: "threadId", Value: fields[4], Err: err}
	}

	return core.Record{
		SourceFile: sourceFile,
		OwnerID:    fields[0],
		TaskID:     fields[1],
		Timestamp:  ts,
		LogLevel:   fields[3],
		ThreadID:   threadID,
		ClassName:  fields[5],
		MethodName: fields[6],
		Message:    messageAfter(line, idx),
	}, true, nil
}
