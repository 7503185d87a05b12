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


package search

import "errors"

var (
	// ErrExpanderRequired is returned when a query expander is not provided.
	ErrExpanderRequired = errors.New("query expander required")

	// ErrCompilerRequired is returned when a filter compiler is not provided.
	ErrCompilerRequired = errors.New("filter compiler required")

	// ErrStoreRequired is returned when a document store is not provided.
	ErrStoreRequired = errors.New("document store required")

	// ErrRecorderRequired is returned when a transaction recorder is not provided.
	ErrRecorderRequired = errors.New("transaction recorder required")

	// ErrInvalidPage is returned for a negative skip or limit.
	ErrInvalidPage = errors.New("invalid page")
)
