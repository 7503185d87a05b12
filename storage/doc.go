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


// Package storage provides the storage abstraction layer for ontoquery.
//
// This package defines repository interfaces that decouple storage implementation
// from query logic:
//
//   - DocumentStore: the annotated corpus, queried with compiled predicates
//   - ConceptRepository: concept rows behind the lazily loaded concept source
//   - SnapshotRepository: immutable transaction snapshots
//
// Two backends live in sub-packages. storage/sqlite implements DocumentStore
// on SQLite, compiling predicates into parameterized SQL. storage/badger
// implements ConceptRepository and SnapshotRepository on BadgerDB, encoding
// values with mus.
//
// # Usage
//
// Use in tests with in-memory storage:
//
//	concepts, snapshots, backend, err := badger.NewMemoryRepositories()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//
//	docs, err := sqlite.OpenMemory()
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines.
package storage
