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

// Package storage provides the storage abstraction layer for logingest.
//
// Two repositories are defined:
//
//   - RecordRepository: parsed log records keyed by content ID, with a
//     timestamp index for range queries
//   - FailedBatchRepository: the ledger of batches a sink rejected, read
//     back by the replay command
//
// The badger subpackage implements both on a single BadgerDB instance.
// Values are encoded with the mus-go primitives in serialization.go.
//
// All repository implementations must be safe for concurrent use, since
// the dispatcher writes batches from several goroutines at once.
package storage
