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


// Package config holds the settings of an ontoquery engine.
//
// Settings come from defaults, an optional YAML file and functional options,
// applied in that order. A settings file looks like:
//
//	concept_dir: /data/umls
//	mapping_dir: /data/phenotypes
//	document_db: /data/documents.db
//	snapshot_dir: /data/transactions
//	default_depth: 0
//	lazy_concepts: false
//	pool_size: 4
package config
