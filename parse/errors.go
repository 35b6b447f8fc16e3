package parse

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownFormat is returned by ByName for an unregistered format.
	ErrUnknownFormat = errors.New("unknown log format")
)

// UnknownFormatError names the format that ByName could not resolve.
type UnknownFormatError struct {
	Name string
}

func (e *UnknownFormatError) Error() string {
	return fmt.Sprintf("unknown log format %q: must be one of %s, %s", e.Name, FormatStandard, FormatPerformance)
}

func (e *UnknownFormatError) Is(target error) bool {
	return target == ErrUnknownFormat
}
