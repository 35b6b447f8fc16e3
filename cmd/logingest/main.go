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
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/poiesic/logingest/config"
	"github.com/urfave/cli/v2"
)

const configKey = "config"

func main() {
	// Variables already in the environment win over the .env file.
	if err := config.LoadDotEnv(os.Getenv("LOGINGEST_ENV_FILE")); err != nil {
		log.Fatal(err)
	}

	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "logingest",
		Usage: "Ingest delimited log files into a searchable store",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				EnvVars: []string{"LOGINGEST_LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML config file",
				EnvVars: []string{"LOGINGEST_CONFIG"},
			},
		},
		Before: setup,
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List the files an ingest run would read",
				Action: listCommand,
				Flags:  sourceFlags(),
			},
			{
				Name:   "ingest",
				Usage:  "Parse log files and write the records to a sink",
				Action: ingestCommand,
				Flags:  concat(sourceFlags(), pipelineFlags(), storeFlags(), sinkFlags(), []cli.Flag{
					&cli.StringFlag{
						Name:    "metrics-addr",
						Usage:   "Serve Prometheus metrics on this address (e.g. :9100)",
						EnvVars: []string{"LOGINGEST_METRICS_ADDR"},
					},
					&cli.BoolFlag{
						Name:    "progress",
						Usage:   "Print files-remaining progress to stderr",
						EnvVars: []string{"LOGINGEST_PROGRESS"},
					},
				}),
			},
			{
				Name:   "replay",
				Usage:  "Re-send batches the sink rejected during earlier runs",
				Action: replayCommand,
				Flags: concat(storeFlags(), sinkFlags(), []cli.Flag{
					&cli.IntFlag{
						Name:    "max-retries",
						Usage:   "Maximum write attempts per batch (default 3)",
						EnvVars: []string{"LOGINGEST_MAX_RETRIES"},
					},
					&cli.DurationFlag{
						Name:    "retry-delay",
						Usage:   "Base delay for exponential backoff (default 1s)",
						EnvVars: []string{"LOGINGEST_RETRY_DELAY"},
					},
				}),
			},
		},
	}
}

func sourceFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "root",
			Aliases: []string{"r"},
			Usage:   "Directory to search for log files",
			EnvVars: []string{"LOGINGEST_ROOT"},
		},
		&cli.StringFlag{
			Name:    "pattern",
			Aliases: []string{"p"},
			Usage:   "File name glob, e.g. \"*.csv\" or \"perf.*\" (default \"*\")",
			EnvVars: []string{"LOGINGEST_PATTERN"},
		},
		&cli.BoolFlag{
			Name:    "recursive",
			Usage:   "Include files in subdirectories",
			EnvVars: []string{"LOGINGEST_RECURSIVE"},
		},
	}
}

func pipelineFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "Log format (standard, performance)",
			EnvVars: []string{"LOGINGEST_FORMAT"},
		},
		&cli.IntFlag{
			Name:    "header-offset",
			Usage:   "Required index of the first comma in standard lines, negative disables the check (default 8)",
			EnvVars: []string{"LOGINGEST_HEADER_OFFSET"},
		},
		&cli.IntFlag{
			Name:    "batch-size",
			Usage:   "Records per sink write (default 20000)",
			EnvVars: []string{"LOGINGEST_BATCH_SIZE"},
		},
		&cli.IntFlag{
			Name:    "queue-depth",
			Usage:   "Parsed records allowed to wait for dispatch (default 50000)",
			EnvVars: []string{"LOGINGEST_QUEUE_DEPTH"},
		},
		&cli.IntFlag{
			Name:    "staged-units",
			Usage:   "Staged files allowed to wait for a parser (default queue depth)",
			EnvVars: []string{"LOGINGEST_STAGED_UNITS"},
		},
		&cli.IntFlag{
			Name:    "max-outstanding",
			Usage:   "Concurrent sink writes (default 4)",
			EnvVars: []string{"LOGINGEST_MAX_OUTSTANDING"},
		},
		&cli.IntFlag{
			Name:    "workers",
			Aliases: []string{"w"},
			Usage:   "Parser workers (default number of CPUs)",
			EnvVars: []string{"LOGINGEST_WORKERS"},
		},
		&cli.DurationFlag{
			Name:    "dispatch-timeout",
			Usage:   "Bound on a single sink write (default 30s)",
			EnvVars: []string{"LOGINGEST_DISPATCH_TIMEOUT"},
		},
		&cli.DurationFlag{
			Name:    "grace-period",
			Usage:   "Time in-flight writes get after an interrupt (default 5s)",
			EnvVars: []string{"LOGINGEST_GRACE_PERIOD"},
		},
	}
}

func storeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "db",
			Aliases: []string{"d"},
			Usage:   "Path to BadgerDB database directory (default ./logingest.db)",
			EnvVars: []string{"LOGINGEST_DB"},
		},
	}
}

func sinkFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "sink",
			Usage:   "Where records go (badger, bulk)",
			EnvVars: []string{"LOGINGEST_SINK"},
		},
		&cli.StringFlag{
			Name:    "bulk-url",
			Usage:   "Search node base URL (default http://localhost:9200)",
			EnvVars: []string{"LOGINGEST_BULK_URL"},
		},
		&cli.StringFlag{
			Name:    "bulk-index",
			Usage:   "Search index name",
			EnvVars: []string{"LOGINGEST_BULK_INDEX"},
		},
		&cli.StringFlag{
			Name:    "bulk-user",
			Usage:   "Basic auth user for the search node",
			EnvVars: []string{"LOGINGEST_BULK_USER"},
		},
		&cli.StringFlag{
			Name:    "bulk-password",
			Usage:   "Basic auth password for the search node",
			EnvVars: []string{"LOGINGEST_BULK_PASSWORD"},
		},
		&cli.Float64Flag{
			Name:    "bulk-rps",
			Usage:   "Maximum bulk requests per second, 0 for unlimited",
			EnvVars: []string{"LOGINGEST_BULK_RPS"},
		},
		&cli.IntFlag{
			Name:    "bulk-burst",
			Usage:   "Bulk requests allowed in a burst when rate limited",
			EnvVars: []string{"LOGINGEST_BULK_BURST"},
		},
	}
}

func concat(groups ...[]cli.Flag) []cli.Flag {
	var out []cli.Flag
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// setup loads the config file and configures logging before any command runs.
func setup(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if c.IsSet("log-level") {
		cfg.Logging.Level = c.String("log-level")
	}
	if err := setupLogger(cfg.Logging.Level); err != nil {
		return err
	}

	if c.App.Metadata == nil {
		c.App.Metadata = map[string]interface{}{}
	}
	c.App.Metadata[configKey] = cfg
	return nil
}

func setupLogger(levelStr string) error {
	var level slog.Level
	switch strings.ToLower(levelStr) {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}

// loadedConfig returns the config read in setup with command flags applied.
func loadedConfig(c *cli.Context) *config.Config {
	cfg, ok := c.App.Metadata[configKey].(*config.Config)
	if !ok {
		cfg = config.Default()
	}
	applyFlags(c, cfg)
	return cfg
}

// applyFlags overrides config values with flags set on the command line or
// through LOGINGEST_* variables.
func applyFlags(c *cli.Context, cfg *config.Config) {
	set := func(name string, apply func()) {
		if c.IsSet(name) {
			apply()
		}
	}

	set("root", func() { cfg.Ingest.Root = c.String("root") })
	set("pattern", func() { cfg.Ingest.Pattern = c.String("pattern") })
	set("recursive", func() { cfg.Ingest.Recursive = c.Bool("recursive") })
	set("format", func() { cfg.Ingest.Format = c.String("format") })
	set("header-offset", func() { cfg.Ingest.HeaderCommaOffset = c.Int("header-offset") })
	set("batch-size", func() { cfg.Ingest.MaxBatchSize = c.Int("batch-size") })
	set("queue-depth", func() { cfg.Ingest.MaxQueueDepth = c.Int("queue-depth") })
	set("staged-units", func() { cfg.Ingest.MaxStagedUnits = c.Int("staged-units") })
	set("max-outstanding", func() { cfg.Ingest.MaxOutstanding = c.Int("max-outstanding") })
	set("workers", func() { cfg.Ingest.Workers = c.Int("workers") })
	set("dispatch-timeout", func() { cfg.Ingest.DispatchTimeout = c.Duration("dispatch-timeout") })
	set("grace-period", func() { cfg.Ingest.GracePeriod = c.Duration("grace-period") })

	set("db", func() { cfg.Storage.Path = c.String("db") })

	set("sink", func() { cfg.Sink.Kind = c.String("sink") })
	set("bulk-url", func() { cfg.Sink.Bulk.URL = c.String("bulk-url") })
	set("bulk-index", func() { cfg.Sink.Bulk.Index = c.String("bulk-index") })
	set("bulk-user", func() { cfg.Sink.Bulk.Username = c.String("bulk-user") })
	set("bulk-password", func() { cfg.Sink.Bulk.Password = c.String("bulk-password") })
	set("bulk-rps", func() { cfg.Sink.Bulk.RequestsPerSecond = c.Float64("bulk-rps") })
	set("bulk-burst", func() { cfg.Sink.Bulk.Burst = c.Int("bulk-burst") })

	set("metrics-addr", func() { cfg.Metrics.Addr = c.String("metrics-addr") })

	set("max-retries", func() { cfg.Replay.MaxRetries = c.Int("max-retries") })
	set("retry-delay", func() { cfg.Replay.RetryDelay = c.Duration("retry-delay") })
}
