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

// Package config loads logingest settings from a YAML file and a .env file.
//
// A file only needs the keys it changes: Load starts from Default and
// decodes the file over it. Durations are written as Go duration strings
// such as "30s" or "1m30s".
//
//	ingest:
//	  root: /var/log/app
//	  pattern: "*.csv"
//	  workers: 8
//	sink:
//	  kind: bulk
//	  bulk:
//	    url: http://localhost:9200
//	    requests_per_second: 20
package config
