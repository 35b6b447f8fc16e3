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

// Package logingest ingests delimited log files into a store.
//
// Files under a root directory are listed, staged, parsed into records and
// written to a sink in bounded batches by a pipeline of concurrent stages.
// Batches the sink rejects are kept in a ledger and can be replayed later.
//
// Store is the entry point for the common case: it opens the badger database
// and hands out pipelines and replayers wired to it.
//
//	store, err := logingest.OpenStore("./logingest.db")
//	if err != nil {
//		return err
//	}
//	defer store.Close()
//
//	cfg := ingestion.DefaultConfig()
//	cfg.RootPath = "/var/log/app"
//	pipeline, err := store.NewPipeline(cfg, nil)
//	if err != nil {
//		return err
//	}
//	result, err := pipeline.Run(ctx)
package logingest
