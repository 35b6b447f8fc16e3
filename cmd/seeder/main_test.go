package main

import (
	"math/rand/v2"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/poiesic/logingest/core"
	"github.com/poiesic/logingest/ingestion"
	"github.com/poiesic/logingest/parse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGenerator(format string, malformed float64) *generator {
	return &generator{
		rng:       rand.New(rand.NewPCG(7, 7)),
		format:    format,
		messages:  messages,
		malformed: malformed,
		start:     time.Date(2014, 5, 1, 8, 0, 0, 0, time.UTC),
	}
}

func TestGenerator_StandardLinesParse(t *testing.T) {
	g := newGenerator(parse.FormatStandard, 0)
	lines := slices.Collect(g.lines(0, 50))
	require.Len(t, lines, 51, "header plus lines")

	strategy := &parse.StandardLog{HeaderCommaOffset: parse.DefaultHeaderCommaOffset, Location: time.UTC}

	_, ok, err := strategy.Parse("log1", lines[0])
	require.NoError(t, err)
	assert.False(t, ok, "header is discarded")

	for _, line := range lines[1:] {
		rec, ok, err := strategy.Parse("log1", line)
		require.NoError(t, err, line)
		require.True(t, ok, line)
		assert.NotEmpty(t, rec.Message)
	}
}

func TestGenerator_PerformanceLinesParse(t *testing.T) {
	g := newGenerator(parse.FormatPerformance, 0)
	lines := slices.Collect(g.lines(0, 20))
	require.Len(t, lines, 20)

	strategy := &parse.PerformanceLog{Location: time.UTC}
	for _, line := range lines {
		_, ok, err := strategy.Parse("perf", line)
		require.NoError(t, err, line)
		require.True(t, ok, line)
	}
}

func TestGenerator_Malformed(t *testing.T) {
	g := newGenerator(parse.FormatStandard, 1)
	strategy := parse.NewStandardLog()
	for line := range g.lines(0, 10) {
		if strings.HasPrefix(line, "OwnerId") {
			continue
		}
		_, _, err := strategy.Parse("log1", line)
		assert.ErrorIs(t, err, core.ErrMalformedRecord)
	}
}

func TestWriteLines_Compressed(t *testing.T) {
	dir := t.TempDir()
	for _, compress := range []string{"", "gz", "zst"} {
		g := newGenerator(parse.FormatStandard, 0)
		want := slices.Collect(g.lines(0, 100))

		path := filepath.Join(dir, fileName(parse.FormatStandard, 0, compress))
		require.NoError(t, writeLines(path, slices.Values(want), compress))

		got, err := ingestion.ReadLines(path)
		require.NoError(t, err)
		assert.Equal(t, want, got, "compression %q", compress)
	}

	err := writeLines(filepath.Join(dir, "x"), slices.Values([]string{"a"}), "bz2")
	assert.Error(t, err)
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "log1.csv", fileName(parse.FormatStandard, 0, ""))
	assert.Equal(t, "perf.3.csv.gz", fileName(parse.FormatPerformance, 2, "gz"))
}
