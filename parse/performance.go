package parse

import (
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/poiesic/logingest/core"
)

const performanceFieldCount = 4

// PerformanceLog parses performance counter lines:
//
//	6/12/2014 06:24:08.618,thread,class,method,message
//
// Timestamps are free-form date-times. Owner, task and level stay empty.
type PerformanceLog struct {
	// Location timestamps without a zone are interpreted in. Nil means time.Local.
	Location *time.Location
}

var _ Strategy = (*PerformanceLog)(nil)

func (p *PerformanceLog) Name() string {
	return FormatPerformance
}

func (p *PerformanceLog) Parse(sourceFile, line string) (core.Record, bool, error) {
	if line == "" || line == "\r" {
		return core.Record{}, false, nil
	}

	idx := delimiterIndex(line, performanceFieldCount)
	if idx < 0 {
		return core.Record{}, false, nil
	}

	fields := strings.Split(line[:idx], ",")
	if len(fields) != performanceFieldCount {
		return core.Record{}, false, nil
	}

	loc := p.Location
	if loc == nil {
		loc = time.Local
	}
	ts, err := parsePerformanceTime(strings.TrimSpace(fields[0]), loc)
	if err != nil {
		return core.Record{}, false, &core.MalformedRecordError{Field: "timestamp", Value: fields[0], Err: err}
	}

	threadID, err := strconv.Atoi(fields[1])
	if err != nil {
		return core.Record{}, false, &core.MalformedRecordError{Field: "threadId", Value: fields[1], Err: err}
	}

	return core.Record{
		SourceFile: sourceFile,
		Timestamp:  ts,
		ThreadID:   threadID,
		ClassName:  fields[2],
		MethodName: fields[3],
		Message:    messageAfter(line, idx),
	}, true, nil
}

// performanceLayouts are tried before falling back to free-form parsing.
var performanceLayouts = []string{
	"1/2/2006 15:04:05.000",
	"1/2/2006 15:04:05",
	"2006-01-02 15:04:05.000",
	"2006-01-02 15:04:05",
}

func parsePerformanceTime(s string, loc *time.Location) (time.Time, error) {
	for _, layout := range performanceLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return dateparse.ParseIn(s, loc)
}
