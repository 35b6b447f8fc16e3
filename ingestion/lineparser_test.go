package ingestion

import (
	"context"
	"fmt"
	"testing"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/logingest/core"
	"github.com/poiesic/logingest/parse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineParser_ParseUnitKeepsOrderAcrossChunks(t *testing.T) {
	pool, err := ants.NewPool(4)
	require.NoError(t, err)
	defer pool.Release()

	lp := NewLineParser(parse.NewStandardLog(), 1, pool, nil, nil)
	lp.chunkSize = 3

	var lines []string
	for i := 0; i < 10; i++ {
		lines = append(lines, standardLine(i, fmt.Sprintf("msg %d", i)))
	}
	records := lp.ParseUnit(StagedUnit{SourceFile: "log1", Lines: lines})

	require.Len(t, records, 10)
	for i, rec := range records {
		assert.Equal(t, i, rec.ThreadID)
		assert.Equal(t, fmt.Sprintf("msg %d", i), rec.Message)
		assert.Equal(t, "log1", rec.SourceFile)
	}
}

func TestLineParser_Counters(t *testing.T) {
	lp := NewLineParser(parse.NewStandardLog(), 1, nil, nil, nil)

	records := lp.ParseUnit(StagedUnit{SourceFile: "log1", Lines: []string{
		"OwnerId,TaskId,TimeStamp,LogLevel,ThreadId,ClassName,MethodName,Message",
		standardLine(1, "first"),
		"",
		"OWNER001,TASK,14-05-01 10:00:00.00,INFO,x,Cls,Method,bad thread,",
		standardLine(2, "second"),
	}})

	require.Len(t, records, 2)
	assert.Equal(t, 2, lp.RecordsParsed())
	assert.Equal(t, 2, lp.LinesDiscarded())
	assert.Equal(t, 1, lp.LinesMalformed())
}

func TestLineParser_RunDrainsAndCloses(t *testing.T) {
	pool, err := ants.NewPool(2)
	require.NoError(t, err)
	defer pool.Release()

	lp := NewLineParser(parse.NewStandardLog(), 3, pool, nil, nil)

	in := NewQueue[StagedUnit](8)
	out := NewQueue[core.Record](100)
	for f := 0; f < 5; f++ {
		var lines []string
		for i := 0; i < 4; i++ {
			lines = append(lines, standardLine(i, fmt.Sprintf("file %d line %d", f, i)))
		}
		require.NoError(t, in.Put(context.Background(), StagedUnit{SourceFile: fmt.Sprintf("f%d", f), Lines: lines}))
	}
	in.Close()

	require.NoError(t, lp.Run(context.Background(), in, out))

	seen := make(map[string]bool)
	for {
		rec, ok, err := out.Get(context.Background())
		require.NoError(t, err)
		if !ok {
			break
		}
		assert.False(t, seen[rec.Message], "record delivered twice: %s", rec.Message)
		seen[rec.Message] = true
	}
	assert.Len(t, seen, 20)
}

func TestLineParser_RunCanceled(t *testing.T) {
	lp := NewLineParser(parse.NewStandardLog(), 2, nil, nil, nil)

	in := NewQueue[StagedUnit](1)
	out := NewQueue[core.Record](1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := lp.Run(ctx, in, out)
	assert.ErrorIs(t, err, context.Canceled)

	_, ok, err := out.Get(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}
