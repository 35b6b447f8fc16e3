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

// Package replay re-dispatches batches a sink rejected during ingestion.
//
// Failed batches wait in the badger ledger. The Replayer walks the ledger in
// ID order, writes each batch to a sink with retry and exponential backoff,
// removes the batch once the sink accepts it and otherwise updates the
// attempt count and error so the next replay sees the latest failure.
package replay
