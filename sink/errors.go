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

package sink

import (
	"errors"
	"fmt"
)

var (
	// ErrBulkRejected is matched by every BulkError.
	ErrBulkRejected = errors.New("bulk request rejected items")

	// ErrBulkStatus indicates the bulk endpoint answered with a non-2xx status.
	ErrBulkStatus = errors.New("bulk request failed")

	// ErrBulkResponse indicates the bulk response body could not be parsed.
	ErrBulkResponse = errors.New("invalid bulk response")

	// ErrRepositoryRequired is returned by NewRepository for a nil repository.
	ErrRepositoryRequired = errors.New("record repository is required")

	// ErrInvalidBulkConfig is returned by NewBulk for an unusable BulkConfig.
	ErrInvalidBulkConfig = errors.New("invalid bulk configuration")
)

// ItemFailure is one document the bulk endpoint refused.
type ItemFailure struct {
	DocumentID string
	Status     int
	Type       string
	Reason     string
}

// BulkError reports a bulk request where some documents were rejected.
// The dispatcher treats the whole batch as failed.
type BulkError struct {
	Total  int
	Failed []ItemFailure
}

func (e *BulkError) Error() string {
	if len(e.Failed) == 0 {
		return fmt.Sprintf("bulk request rejected items of %d", e.Total)
	}
	return fmt.Sprintf("bulk request rejected %d of %d items, first: %s", len(e.Failed), e.Total, e.Failed[0])
}

func (e *BulkError) Is(target error) bool {
	return target == ErrBulkRejected
}

func (f ItemFailure) String() string {
	switch {
	case f.Type != "" && f.Reason != "":
		return fmt.Sprintf("document %s: status %d: %s: %s", f.DocumentID, f.Status, f.Type, f.Reason)
	case f.Reason != "":
		return fmt.Sprintf("document %s: status %d: %s", f.DocumentID, f.Status, f.Reason)
	default:
		return fmt.Sprintf("document %s: status %d", f.DocumentID, f.Status)
	}
}
