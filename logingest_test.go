package logingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/poiesic/logingest/core"
	"github.com/poiesic/logingest/ingestion"
	"github.com/poiesic/logingest/replay"
	"github.com/poiesic/logingest/sink"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeLogFile(t *testing.T, dir, name string, lines int) {
	t.Helper()
	var sb strings.Builder
	sb.WriteString("OwnerId,TaskId,TimeStamp,LogLevel,ThreadId,ClassName,MethodName,Message\n")
	for i := 0; i < lines; i++ {
		fmt.Fprintf(&sb, "OWNER001,TASK,14-05-01 10:00:%02d.00,INFO,%d,Cls,Method,line %d,\n", i%60, i, i)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(sb.String()), 0o644))
}

func TestOpenStore(t *testing.T) {
	t.Run("create new store", func(t *testing.T) {
		store, err := OpenStore(filepath.Join(t.TempDir(), "test_db"))
		require.NoError(t, err)
		require.NotNil(t, store)
		defer store.Close()

		assert.NotNil(t, store.RecordRepository())
		assert.NotNil(t, store.FailedBatchRepository())
		assert.NotNil(t, store.backend)
		assert.NotNil(t, store.logger)
	})

	t.Run("error with invalid path", func(t *testing.T) {
		tmpFile := filepath.Join(t.TempDir(), "not_a_dir")
		require.NoError(t, os.WriteFile(tmpFile, []byte("test"), 0644))

		store, err := OpenStore(tmpFile)
		assert.Error(t, err)
		assert.Nil(t, store)
	})

	t.Run("in memory", func(t *testing.T) {
		store, err := OpenStore("", WithInMemory())
		require.NoError(t, err)
		assert.NoError(t, store.Close())
	})
}

func TestStore_PipelineIntoStore(t *testing.T) {
	store, err := OpenStore("", WithInMemory())
	require.NoError(t, err)
	defer store.Close()

	root := t.TempDir()
	writeLogFile(t, root, "log1", 25)

	cfg := ingestion.DefaultConfig()
	cfg.RootPath = root
	cfg.MaxBatchSize = 10
	pipeline, err := store.NewPipeline(cfg, nil)
	require.NoError(t, err)

	result, err := pipeline.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 25, result.RecordsParsed)
	assert.Equal(t, 1, result.LinesDiscarded, "header line")
	assert.True(t, result.Report.OK())
	assert.Equal(t, 3, result.Report.BatchesSent)

	count, err := store.RecordRepository().CountRecords(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 25, count)
}

func TestStore_FailedBatchesAreReplayed(t *testing.T) {
	store, err := OpenStore("", WithInMemory())
	require.NoError(t, err)
	defer store.Close()

	root := t.TempDir()
	writeLogFile(t, root, "log1", 12)

	cfg := ingestion.DefaultConfig()
	cfg.RootPath = root
	cfg.MaxBatchSize = 5
	cfg.MaxOutstanding = 1

	down := sink.Func(func(context.Context, []core.Record) error {
		return errors.New("search node unavailable")
	})
	pipeline, err := store.NewPipeline(cfg, down, ingestion.WithRunID("run-42"))
	require.NoError(t, err)

	result, err := pipeline.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "run-42", result.RunID)
	assert.Equal(t, 3, result.Report.BatchesFailed)
	assert.Equal(t, 12, result.Report.RecordsFailed)

	ctx := context.Background()
	batches, err := store.FailedBatchRepository().ListFailedBatches(ctx)
	require.NoError(t, err)
	require.Len(t, batches, 3)
	for _, b := range batches {
		assert.Equal(t, "run-42", b.RunID)
		assert.Contains(t, b.Error, "search node unavailable")
	}

	replayer, err := store.NewReplayer(nil, replay.DefaultConfig(), nil)
	require.NoError(t, err)
	replayed, err := replayer.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, replayed.Replayed)
	assert.Equal(t, 12, replayed.RecordsReplayed)

	count, err := store.RecordRepository().CountRecords(ctx)
	require.NoError(t, err)
	assert.Equal(t, 12, count)

	left, err := store.FailedBatchRepository().CountFailedBatches(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, left)
}
