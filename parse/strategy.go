package parse

import (
	"strings"

	"github.com/poiesic/logingest/core"
)

// Strategy converts one raw log line into a Record.
// Implementations are pure functions of their input and safe for concurrent use.
type Strategy interface {
	// Name identifies the format, e.g. "standard".
	Name() string

	// Parse converts a line read from sourceFile.
	// It returns (record, true, nil) for a well-formed line and
	// (zero, false, nil) for lines that are silently discarded: empty lines,
	// headers and lines with too few delimiters.
	// A line whose fields split correctly but fail conversion returns a
	// *core.MalformedRecordError.
	Parse(sourceFile, line string) (core.Record, bool, error)
}

// Format names accepted by ByName.
const (
	FormatStandard    = "standard"
	FormatPerformance = "performance"
)

// Option configures a Strategy built by ByName.
type Option func(*options)

type options struct {
	headerCommaOffset int
}

// WithHeaderCommaOffset sets the position the first comma must occupy for a
// StandardLog line to be accepted. A negative offset disables the check.
// PerformanceLog ignores this option.
func WithHeaderCommaOffset(offset int) Option {
	return func(o *options) {
		o.headerCommaOffset = offset
	}
}

// ByName returns the strategy registered under name.
func ByName(name string, opts ...Option) (Strategy, error) {
	o := &options{headerCommaOffset: DefaultHeaderCommaOffset}
	for _, opt := range opts {
		opt(o)
	}

	switch strings.ToLower(name) {
	case FormatStandard:
		return &StandardLog{HeaderCommaOffset: o.headerCommaOffset}, nil
	case FormatPerformance:
		return &PerformanceLog{}, nil
	default:
		return nil, &UnknownFormatError{Name: name}
	}
}

// delimiterIndex returns the index of the n-th comma in line, or -1 if the
// line holds fewer than n commas.
func delimiterIndex(line string, n int) int {
	count := 0
	for i := 0; i < len(line); i++ {
		if line[i] == ',' {
			count++
			if count == n {
				return i
			}
		}
	}
	return -1
}

// messageAfter returns the message text that follows the delimiter at idx.
// A trailing carriage return and then a single trailing comma terminator are dropped.
func messageAfter(line string, idx int) string {
	msg := line[idx+1:]
	msg = strings.TrimSuffix(msg, "\r")
	msg = strings.TrimSuffix(msg, ",")
	return msg
}
