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

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/poiesic/logingest/ingestion"
	"github.com/poiesic/logingest/replay"
	"github.com/poiesic/logingest/sink"
	"gopkg.in/yaml.v3"
)

// Sink kinds.
const (
	SinkBadger = "badger"
	SinkBulk   = "bulk"
)

// DefaultStoragePath is where the badger database lives unless configured.
const DefaultStoragePath = "./logingest.db"

type Config struct {
	Ingest  IngestConfig  `yaml:"ingest"`
	Storage StorageConfig `yaml:"storage"`
	Sink    SinkConfig    `yaml:"sink"`
	Replay  ReplayConfig  `yaml:"replay"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// IngestConfig mirrors ingestion.Config.
type IngestConfig struct {
	Root              string        `yaml:"root"`
	Pattern           string        `yaml:"pattern"`
	Recursive         bool          `yaml:"recursive"`
	Format            string        `yaml:"format"`
	HeaderCommaOffset int           `yaml:"header_comma_offset"`
	MaxQueueDepth     int           `yaml:"max_queue_depth"`
	MaxStagedUnits    int           `yaml:"max_staged_units"`
	MaxBatchSize      int           `yaml:"max_batch_size"`
	MaxOutstanding    int           `yaml:"max_outstanding"`
	Workers           int           `yaml:"workers"`
	DispatchTimeout   time.Duration `yaml:"dispatch_timeout"`
	GracePeriod       time.Duration `yaml:"grace_period"`
}

type StorageConfig struct {
	Path     string `yaml:"path"`
	InMemory bool   `yaml:"in_memory"`
}

type SinkConfig struct {
	Kind string     `yaml:"kind"` // badger|bulk
	Bulk BulkConfig `yaml:"bulk"`
}

// BulkConfig mirrors sink.BulkConfig.
type BulkConfig struct {
	URL               string        `yaml:"url"`
	Index             string        `yaml:"index"`
	Timeout           time.Duration `yaml:"timeout"`
	Username          string        `yaml:"username"`
	Password          string        `yaml:"password"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
}

// ReplayConfig mirrors replay.Config.
type ReplayConfig struct {
	MaxRetries     int           `yaml:"max_retries"`
	RetryDelay     time.Duration `yaml:"retry_delay"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	ReportInterval int           `yaml:"report_interval"`
}

type LoggingConfig struct {
	Level string `yaml:"level"` // debug|info|warn|error
}

type MetricsConfig struct {
	Addr string `yaml:"addr"` // empty disables the metrics endpoint
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	ing := ingestion.DefaultConfig()
	bulk := sink.DefaultBulkConfig()
	rep := replay.DefaultConfig()

	return &Config{
		Ingest: IngestConfig{
			Root:              ing.RootPath,
			Pattern:           ing.Pattern,
			Recursive:         ing.Recursive,
			Format:            ing.Format,
			HeaderCommaOffset: ing.HeaderCommaOffset,
			MaxQueueDepth:     ing.MaxQueueDepth,
			MaxStagedUnits:    ing.MaxStagedUnits,
			MaxBatchSize:      ing.MaxBatchSize,
			MaxOutstanding:    ing.MaxOutstanding,
			Workers:           ing.Workers,
			DispatchTimeout:   ing.DispatchTimeout,
			GracePeriod:       ing.GracePeriod,
		},
		Storage: StorageConfig{Path: DefaultStoragePath},
		Sink: SinkConfig{
			Kind: SinkBadger,
			Bulk: BulkConfig{
				URL:               bulk.URL,
				Index:             bulk.Index,
				Timeout:           bulk.Timeout,
				RequestsPerSecond: bulk.RequestsPerSecond,
				Burst:             bulk.Burst,
			},
		},
		Replay: ReplayConfig{
			MaxRetries:     rep.MaxRetries,
			RetryDelay:     rep.RetryDelay,
			WriteTimeout:   rep.WriteTimeout,
			ReportInterval: rep.ReportInterval,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads the YAML file at path over Default.
// An empty path returns Default unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, err
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotEnv loads environment variables from a .env file.
// A missing file is not an error. Variables already set are left alone.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	err := godotenv.Load(path)
	if err != nil && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// Validate checks the settings that are not covered by the component configs.
// Ingest settings are checked by ingestion.Config.Validate once the root is known.
func (c *Config) Validate() error {
	switch c.Sink.Kind {
	case SinkBadger:
	case SinkBulk:
		if err := c.Sink.Bulk.Sink().Validate(); err != nil {
			return fmt.Errorf("%w: sink: %w", ErrInvalidConfig, err)
		}
	default:
		return fmt.Errorf("%w: sink kind must be %s or %s, got %q", ErrInvalidConfig, SinkBadger, SinkBulk, c.Sink.Kind)
	}

	if !c.Storage.InMemory && c.Storage.Path == "" {
		return fmt.Errorf("%w: storage path is required unless in_memory is set", ErrInvalidConfig)
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("%w: unknown log level %q", ErrInvalidConfig, c.Logging.Level)
	}

	if c.Replay.MaxRetries < 1 {
		return fmt.Errorf("%w: replay max_retries must be positive, got %d", ErrInvalidConfig, c.Replay.MaxRetries)
	}
	return nil
}

// Pipeline converts the ingest section to an ingestion.Config.
func (c IngestConfig) Pipeline() ingestion.Config {
	return ingestion.Config{
		RootPath:          c.Root,
		Pattern:           c.Pattern,
		Recursive:         c.Recursive,
		Format:            c.Format,
		HeaderCommaOffset: c.HeaderCommaOffset,
		MaxQueueDepth:     c.MaxQueueDepth,
		MaxStagedUnits:    c.MaxStagedUnits,
		MaxBatchSize:      c.MaxBatchSize,
		MaxOutstanding:    c.MaxOutstanding,
		Workers:           c.Workers,
		DispatchTimeout:   c.DispatchTimeout,
		GracePeriod:       c.GracePeriod,
	}
}

// Sink converts the bulk section to a sink.BulkConfig.
func (c BulkConfig) Sink() sink.BulkConfig {
	return sink.BulkConfig{
		URL:               c.URL,
		Index:             c.Index,
		Timeout:           c.Timeout,
		Username:          c.Username,
		Password:          c.Password,
		RequestsPerSecond: c.RequestsPerSecond,
		Burst:             c.Burst,
	}
}

// Config converts the replay section to a replay.Config.
func (c ReplayConfig) Config() *replay.Config {
	return &replay.Config{
		MaxRetries:     c.MaxRetries,
		RetryDelay:     c.RetryDelay,
		WriteTimeout:   c.WriteTimeout,
		ReportInterval: c.ReportInterval,
	}
}
