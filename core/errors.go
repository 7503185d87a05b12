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


package core

import "errors"

// Domain validation errors
var (
	// ErrInvalidConcept indicates a Concept failed validation.
	ErrInvalidConcept = errors.New("invalid concept")

	// ErrEmptyConceptID indicates the concept ID field is empty.
	ErrEmptyConceptID = errors.New("concept id cannot be empty")

	// ErrInvalidQuery indicates a query request failed validation.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrEmptyQuery indicates a query with no terms and no filter.
	// Such a query would scan the whole corpus and is always rejected.
	ErrEmptyQuery = errors.New("query has no terms and no filter")

	// ErrInvalidField indicates a projection field name that is not a plain identifier.
	ErrInvalidField = errors.New("invalid return field")

	// ErrInvalidDate indicates a date that is not in YYYY-MM-DD form.
	ErrInvalidDate = errors.New("invalid date")
)
