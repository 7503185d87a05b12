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


// Package search runs structured queries end to end.
//
// A Searcher moves each query through a fixed lifecycle:
// received, expanded, compiled, executed, projected and persisted.
// Terms are expanded through the concept hierarchy, compiled into a single
// conjunctive predicate, executed unpaginated against the document store,
// shaped into a projection and recorded under a new transaction handle.
// A failure at any stage aborts the query and nothing is recorded.
//
// Pages of a completed query are read through the Cursor returned with
// its Result; pages never issue new transaction handles.
package search
