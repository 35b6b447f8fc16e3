package ingestion

import (
	"fmt"
	"runtime"
	"time"

	"github.com/poiesic/logingest/parse"
)

// Defaults applied by DefaultConfig.
const (
	DefaultPattern         = "*"
	DefaultMaxQueueDepth   = 50000
	DefaultMaxBatchSize    = 20000
	DefaultMaxOutstanding  = 4
	DefaultDispatchTimeout = 30 * time.Second
	DefaultGracePeriod     = 5 * time.Second
)

// Config holds the settings for one pipeline run.
type Config struct {
	// RootPath is the directory searched for input files
	RootPath string

	// Pattern is a file name glob such as "*.csv" or "perf.*"
	Pattern string

	// Recursive includes files in subdirectories of RootPath
	Recursive bool

	// Format selects the parse strategy, see parse.ByName
	Format string

	// HeaderCommaOffset is the required position of the first comma in a
	// standard log line. Negative disables the check.
	HeaderCommaOffset int

	// MaxQueueDepth bounds the number of parsed records waiting for dispatch
	MaxQueueDepth int

	// MaxStagedUnits bounds the number of staged files waiting for a parser.
	// Zero uses MaxQueueDepth.
	MaxStagedUnits int

	// MaxBatchSize is the number of records per sink write
	MaxBatchSize int

	// MaxOutstanding is the maximum number of concurrent sink writes
	MaxOutstanding int

	// Workers is the number of parser workers
	Workers int

	// DispatchTimeout bounds a single sink write
	DispatchTimeout time.Duration

	// GracePeriod is how long in-flight writes may continue after cancellation
	GracePeriod time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
// RootPath is left empty and must be set.
func DefaultConfig() Config {
	return Config{
		Pattern:           DefaultPattern,
		Format:            parse.FormatStandard,
		HeaderCommaOffset: parse.DefaultHeaderCommaOffset,
		MaxQueueDepth:     DefaultMaxQueueDepth,
		MaxBatchSize:      DefaultMaxBatchSize,
		MaxOutstanding:    DefaultMaxOutstanding,
		Workers:           runtime.NumCPU(),
		DispatchTimeout:   DefaultDispatchTimeout,
		GracePeriod:       DefaultGracePeriod,
	}
}

// Validate checks that every field holds a usable value.
func (c Config) Validate() error {
	if c.RootPath == "" {
		return fmt.Errorf("%w: root path is required", ErrInvalidConfig)
	}
	if c.MaxQueueDepth < 1 {
		return fmt.Errorf("%w: max queue depth must be positive, got %d", ErrInvalidConfig, c.MaxQueueDepth)
	}
	if c.MaxStagedUnits < 0 {
		return fmt.Errorf("%w: max staged units cannot be negative, got %d", ErrInvalidConfig, c.MaxStagedUnits)
	}
	if c.MaxBatchSize < 1 {
		return fmt.Errorf("%w: max batch size must be positive, got %d", ErrInvalidConfig, c.MaxBatchSize)
	}
	if c.MaxOutstanding < 1 {
		return fmt.Errorf("%w: max outstanding must be positive, got %d", ErrInvalidConfig, c.MaxOutstanding)
	}
	if c.Workers < 1 {
		return fmt.Errorf("%w: workers must be positive, got %d", ErrInvalidConfig, c.Workers)
	}
	if c.DispatchTimeout <= 0 {
		return fmt.Errorf("%w: dispatch timeout must be positive, got %s", ErrInvalidConfig, c.DispatchTimeout)
	}
	if c.GracePeriod < 0 {
		return fmt.Errorf("%w: grace period cannot be negative, got %s", ErrInvalidConfig, c.GracePeriod)
	}
	return nil
}

// StagedUnitCapacity returns the capacity of the queue between stager and parser.
func (c Config) StagedUnitCapacity() int {
	if c.MaxStagedUnits > 0 {
		return c.MaxStagedUnits
	}
	return c.MaxQueueDepth
}
