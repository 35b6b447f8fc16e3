package parse

import (
	"errors"
	"testing"
	"time"

	"github.com/poiesic/logingest/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStandard(offset int) *StandardLog {
	return &StandardLog{HeaderCommaOffset: offset, Location: time.UTC}
}

func TestStandardLog_WellFormed(t *testing.T) {
	s := newStandard(DefaultHeaderCommaOffset)

	rec, ok, err := s.Parse("log1", "OWNER001,TASK,14-05-01 10:00:00.12,INFO,3,Cls,Method,hello,\r")
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, core.Record{
		SourceFile: "log1",
		OwnerID:    "OWNER001",
		TaskID:     "TASK",
		Timestamp:  time.Date(2014, 5, 1, 10, 0, 0, 120_000_000, time.UTC),
		LogLevel:   "INFO",
		ThreadID:   3,
		ClassName:  "Cls",
		MethodName: "Method",
		Message:    "hello",
	}, rec)
}

func TestStandardLog_MessageKeepsInnerCommas(t *testing.T) {
	s := newStandard(DefaultHeaderCommaOffset)

	rec, ok, err := s.Parse("log1", "OWNER001,TASK,14-05-01 10:00:00.00,WARN,7,Cls,Method,a, b, c,")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a, b, c", rec.Message)
}

func TestStandardLog_ScenarioWithShortOwner(t *testing.T) {
	// Owner ids narrower than the default column width need the offset adjusted.
	s := newStandard(5)
	lines := []string{
		"OWNER,TASK,14-05-01 10:00:00.00,INFO,3,Cls,Method,hello,",
		"OwnerId,TaskId,TimeStamp,LogLevel,ThreadId,ClassName,MethodName,Message,",
	}

	var records []core.Record
	for _, line := range lines {
		rec, ok, err := s.Parse("log1", line)
		require.NoError(t, err)
		if ok {
			records = append(records, rec)
		}
	}

	require.Len(t, records, 1)
	assert.Equal(t, "OWNER", records[0].OwnerID)
	assert.Equal(t, "TASK", records[0].TaskID)
	assert.Equal(t, 3, records[0].ThreadID)
	assert.Equal(t, "hello", records[0].Message)
}

func TestStandardLog_Discards(t *testing.T) {
	s := newStandard(DefaultHeaderCommaOffset)

	tests := []struct {
		name string
		line string
	}{
		{name: "empty line", line: ""},
		{name: "carriage return only", line: "\r"},
		{name: "header line", line: "OwnerId,TaskId,TimeStamp,LogLevel,ThreadId,ClassName,MethodName,Message"},
		{name: "first comma at wrong offset", line: "OWNER,TASK,14-05-01 10:00:00.00,INFO,3,Cls,Method,hello,"},
		{name: "too few delimiters", line: "OWNER001,TASK,14-05-01 10:00:00.00,INFO,3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, ok, err := s.Parse("log1", tt.line)
			assert.NoError(t, err)
			assert.False(t, ok)
			assert.Equal(t, core.Record{}, rec)
		})
	}
}

func TestStandardLog_Malformed(t *testing.T) {
	s := newStandard(DefaultHeaderCommaOffset)

	tests := []struct {
		name  string
		line  string
		field string
	}{
		{
			name:  "non-numeric thread id",
			line:  "OWNER001,TASK,14-05-01 10:00:00.00,INFO,abc,Cls,Method,hello,",
			field: "threadId",
		},
		{
			name:  "unparsable timestamp",
			line:  "OWNER001,TASK,yesterday,INFO,3,Cls,Method,hello,",
			field: "timestamp",
		},
		{
			name:  "header row at the expected offset",
			line:  "Owner_Id,Task_Id,Timestamp,Level,Thread,Class,Method,Message,",
			field: "timestamp",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, ok, err := s.Parse("log1", tt.line)
			require.Error(t, err)
			assert.False(t, ok)
			assert.Equal(t, core.Record{}, rec)
			assert.True(t, errors.Is(err, core.ErrMalformedRecord))

			var mre *core.MalformedRecordError
			require.ErrorAs(t, err, &mre)
			assert.Equal(t, tt.field, mre.Field)
		})
	}
}

func TestStandardLog_HeaderCheckDisabled(t *testing.T) {
	s := newStandard(-1)

	rec, ok, err := s.Parse("log1", "O,T,14-05-01 10:00:00.00,INFO,3,Cls,Method,hello,")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "O", rec.OwnerID)
}

func TestStandardLog_Idempotent(t *testing.T) {
	s := newStandard(DefaultHeaderCommaOffset)
	line := "OWNER001,TASK,14-05-01 10:00:00.00,INFO,3,Cls,Method,hello,"

	a, okA, errA := s.Parse("log1", line)
	b, okB, errB := s.Parse("log1", line)
	require.NoError(t, errA)
	require.NoError(t, errB)
	assert.Equal(t, okA, okB)
	assert.Equal(t, a, b)
	assert.Equal(t, a.ID(), b.ID())
}

func TestPerformanceLog_WellFormed(t *testing.T) {
	p := &PerformanceLog{Location: time.UTC}

	rec, ok, err := p.Parse("perf", "6/12/2014 06:24:08.618,42,Counter,Tick,cpu=12,\r")
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, core.Record{
		SourceFile: "perf",
		Timestamp:  time.Date(2014, 6, 12, 6, 24, 8, 618_000_000, time.UTC),
		ThreadID:   42,
		ClassName:  "Counter",
		MethodName: "Tick",
		Message:    "cpu=12",
	}, rec)
}

func TestPerformanceLog_EmptyMessage(t *testing.T) {
	p := &PerformanceLog{Location: time.UTC}

	rec, ok, err := p.Parse("perf", "6/12/2014 06:24:08.618,42,Counter,Tick,")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Empty(t, rec.Message)
}

func TestPerformanceLog_DiscardsAndMalformed(t *testing.T) {
	p := &PerformanceLog{Location: time.UTC}

	_, ok, err := p.Parse("perf", "")
	assert.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = p.Parse("perf", "6/12/2014 06:24:08.618,42,Counter")
	assert.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = p.Parse("perf", "6/12/2014 06:24:08.618,x,Counter,Tick,msg")
	assert.False(t, ok)
	assert.ErrorIs(t, err, core.ErrMalformedRecord)

	_, ok, err = p.Parse("perf", "99/99/9999 99:99:99,1,Counter,Tick,msg")
	assert.False(t, ok)
	assert.ErrorIs(t, err, core.ErrMalformedRecord)
}

func TestByName(t *testing.T) {
	s, err := ByName("standard")
	require.NoError(t, err)
	require.IsType(t, &StandardLog{}, s)
	assert.Equal(t, DefaultHeaderCommaOffset, s.(*StandardLog).HeaderCommaOffset)

	s, err = ByName("STANDARD", WithHeaderCommaOffset(5))
	require.NoError(t, err)
	assert.Equal(t, 5, s.(*StandardLog).HeaderCommaOffset)

	p, err := ByName("performance")
	require.NoError(t, err)
	assert.Equal(t, FormatPerformance, p.Name())

	_, err = ByName("syslog")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownFormat)
	assert.Contains(t, err.Error(), "syslog")
}
