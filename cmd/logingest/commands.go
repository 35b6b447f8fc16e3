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

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/poiesic/logingest"
	"github.com/poiesic/logingest/config"
	"github.com/poiesic/logingest/ingestion"
	"github.com/poiesic/logingest/sink"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
)

func listCommand(c *cli.Context) error {
	cfg := loadedConfig(c)
	if cfg.Ingest.Root == "" {
		return fmt.Errorf("root directory is required (--root or ingest.root)")
	}

	paths, err := ingestion.ListFiles(cfg.Ingest.Root, cfg.Ingest.Pattern, cfg.Ingest.Recursive)
	if err != nil {
		return err
	}
	out := c.App.Writer
	for _, p := range paths {
		fmt.Fprintln(out, p)
	}
	fmt.Fprintf(c.App.ErrWriter, "%s files\n", humanize.Comma(int64(len(paths))))
	return nil
}

func ingestCommand(c *cli.Context) error {
	cfg := loadedConfig(c)
	if err := cfg.Validate(); err != nil {
		return err
	}
	pipelineConfig := cfg.Ingest.Pipeline()
	if err := pipelineConfig.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	target, err := newSink(cfg)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	metrics := ingestion.NewMetrics(registry)
	if cfg.Metrics.Addr != "" {
		srv, err := serveMetrics(cfg.Metrics.Addr, registry)
		if err != nil {
			return err
		}
		defer srv.Shutdown()
	}

	opts := []ingestion.Option{ingestion.WithMetrics(metrics)}
	if c.Bool("progress") {
		opts = append(opts, ingestion.WithProgress(c.App.ErrWriter))
	}
	pipeline, err := store.NewPipeline(pipelineConfig, target, opts...)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.ErrWriter, "Root: %s\n", pipelineConfig.RootPath)
	fmt.Fprintf(c.App.ErrWriter, "Pattern: %s (recursive: %t)\n", pipelineConfig.Pattern, pipelineConfig.Recursive)
	fmt.Fprintf(c.App.ErrWriter, "Sink: %s\n", cfg.Sink.Kind)
	fmt.Fprintln(c.App.ErrWriter)

	result, err := pipeline.Run(ctx)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}
	writeSummary(c.App.Writer, result)

	switch {
	case errors.Is(result.Report.Err, ingestion.ErrCanceled):
		return cli.Exit("ingestion interrupted, results are partial", 130)
	case result.Report.BatchesFailed > 0:
		return cli.Exit(fmt.Sprintf("%d batches failed, run `logingest replay` to retry them", result.Report.BatchesFailed), 1)
	}
	return nil
}

func replayCommand(c *cli.Context) error {
	cfg := loadedConfig(c)
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	target, err := newSink(cfg)
	if err != nil {
		return err
	}

	replayer, err := store.NewReplayer(target, cfg.Replay.Config(), c.App.ErrWriter)
	if err != nil {
		return err
	}
	result, err := replayer.Run(ctx)
	if err != nil {
		return fmt.Errorf("replay failed: %w", err)
	}
	if result.Failed > 0 {
		return cli.Exit(fmt.Sprintf("%d batches still failing", result.Failed), 1)
	}
	return nil
}

func openStore(cfg *config.Config) (*logingest.Store, error) {
	var opts []logingest.StoreOption
	if cfg.Storage.InMemory {
		opts = append(opts, logingest.WithInMemory())
	}
	store, err := logingest.OpenStore(cfg.Storage.Path, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return store, nil
}

// newSink returns nil for the badger sink; the store then writes into itself.
func newSink(cfg *config.Config) (sink.Sink, error) {
	switch cfg.Sink.Kind {
	case config.SinkBulk:
		bulk, err := sink.NewBulk(cfg.Sink.Bulk.Sink(), sink.WithBulkLogger(slog.Default()))
		if err != nil {
			return nil, fmt.Errorf("failed to create bulk sink: %w", err)
		}
		return bulk, nil
	default:
		return nil, nil
	}
}

func writeSummary(w io.Writer, result *ingestion.Result) {
	report := result.Report
	elapsed := result.Elapsed.Round(time.Millisecond)
	rate := 0.0
	if secs := result.Elapsed.Seconds(); secs > 0 {
		rate = float64(report.RecordsSent) / secs
	}

	fmt.Fprintf(w, "Run %s finished in %s\n", result.RunID, elapsed)
	fmt.Fprintf(w, "  files:   %s listed, %s staged, %s unreadable\n",
		humanize.Comma(int64(result.FilesListed)),
		humanize.Comma(int64(result.FilesStaged)),
		humanize.Comma(int64(result.FilesFailed)))
	fmt.Fprintf(w, "  lines:   %s parsed, %s discarded, %s malformed\n",
		humanize.Comma(int64(result.RecordsParsed)),
		humanize.Comma(int64(result.LinesDiscarded)),
		humanize.Comma(int64(result.LinesMalformed)))
	fmt.Fprintf(w, "  batches: %s sent, %s failed\n",
		humanize.Comma(int64(report.BatchesSent)),
		humanize.Comma(int64(report.BatchesFailed)))
	fmt.Fprintf(w, "  records: %s sent, %s failed, %s abandoned (%s records/sec)\n",
		humanize.Comma(int64(report.RecordsSent)),
		humanize.Comma(int64(report.RecordsFailed)),
		humanize.Comma(int64(report.RecordsAbandoned)),
		humanize.CommafWithDigits(rate, 1))
	for _, f := range report.Failures {
		fmt.Fprintf(w, "  failed batch %d (%d records): %v\n", f.Seq, f.Size, f.Err)
	}
	if report.Partial {
		fmt.Fprintln(w, "  partial: run was interrupted")
	}
}
