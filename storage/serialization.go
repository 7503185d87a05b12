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


package storage

import (
	"fmt"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/ontoquery/core"
)

// Value layouts are fixed field sequences; strings are length prefixed
// and string lists carry a varint count.
//
//	Concept:  ID | SemanticTypes | SemanticGroups | Label
//	Snapshot: Handle | Identifiers | Digest | CreatedAt (unix micro)

// MarshalConcept serializes a Concept to bytes.
func MarshalConcept(concept *core.Concept) []byte {
	size := ord.String.Size(string(concept.ID)) +
		sizeStrings(concept.SemanticTypes) +
		sizeStrings(concept.SemanticGroups) +
		ord.String.Size(concept.Label)
	buf := make([]byte, size)
	n := ord.String.Marshal(string(concept.ID), buf)
	n += marshalStrings(concept.SemanticTypes, buf[n:])
	n += marshalStrings(concept.SemanticGroups, buf[n:])
	ord.String.Marshal(concept.Label, buf[n:])
	return buf
}

// UnmarshalConcept deserializes a Concept from bytes.
func UnmarshalConcept(data []byte) (*core.Concept, error) {
	var (
		concept core.Concept
		n, m    int
		err     error
		id      string
	)
	if id, m, err = ord.String.Unmarshal(data); err != nil {
		return nil, decodeError("concept id", err)
	}
	concept.ID = core.ConceptID(id)
	n += m
	if concept.SemanticTypes, m, err = unmarshalStrings(data[n:]); err != nil {
		return nil, decodeError("semantic types", err)
	}
	n += m
	if concept.SemanticGroups, m, err = unmarshalStrings(data[n:]); err != nil {
		return nil, decodeError("semantic groups", err)
	}
	n += m
	if concept.Label, _, err = ord.String.Unmarshal(data[n:]); err != nil {
		return nil, decodeError("label", err)
	}
	return &concept, nil
}

// MarshalSnapshot serializes a Snapshot to bytes.
func MarshalSnapshot(snapshot *core.Snapshot) []byte {
	created := snapshot.CreatedAt.UnixMicro()
	size := ord.String.Size(snapshot.Handle) +
		sizeStrings(snapshot.Identifiers) +
		varint.Uint64.Size(snapshot.Digest) +
		varint.Int64.Size(created)
	buf := make([]byte, size)
	n := ord.String.Marshal(snapshot.Handle, buf)
	n += marshalStrings(snapshot.Identifiers, buf[n:])
	n += varint.Uint64.Marshal(snapshot.Digest, buf[n:])
	varint.Int64.Marshal(created, buf[n:])
	return buf
}

// UnmarshalSnapshot deserializes a Snapshot from bytes.
func UnmarshalSnapshot(data []byte) (*core.Snapshot, error) {
	var (
		snapshot core.Snapshot
		n, m     int
		err      error
		created  int64
	)
	if snapshot.Handle, m, err = ord.String.Unmarshal(data); err != nil {
		return nil, decodeError("handle", err)
	}
	n += m
	if snapshot.Identifiers, m, err = unmarshalStrings(data[n:]); err != nil {
		return nil, decodeError("identifiers", err)
	}
	n += m
	if snapshot.Digest, m, err = varint.Uint64.Unmarshal(data[n:]); err != nil {
		return nil, decodeError("digest", err)
	}
	n += m
	if created, _, err = varint.Int64.Unmarshal(data[n:]); err != nil {
		return nil, decodeError("created at", err)
	}
	snapshot.CreatedAt = time.UnixMicro(created).UTC()
	return &snapshot, nil
}

func sizeStrings(ss []string) int {
	size := varint.Int.Size(len(ss))
	for _, s := range ss {
		size += ord.String.Size(s)
	}
	return size
}

func marshalStrings(ss []string, bs []byte) int {
	n := varint.Int.Marshal(len(ss), bs)
	for _, s := range ss {
		n += ord.String.Marshal(s, bs[n:])
	}
	return n
}

// unmarshalStrings returns nil for an empty list.
func unmarshalStrings(bs []byte) ([]string, int, error) {
	count, n, err := varint.Int.Unmarshal(bs)
	if err != nil {
		return nil, n, err
	}
	// every encoded string takes at least one byte
	if count < 0 || count > len(bs)-n {
		return nil, n, ErrTruncatedData
	}
	if count == 0 {
		return nil, n, nil
	}
	ss := make([]string, count)
	for i := range ss {
		s, m, err := ord.String.Unmarshal(bs[n:])
		if err != nil {
			return nil, n, err
		}
		ss[i] = s
		n += m
	}
	return ss, n, nil
}

func decodeError(what string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrSerializationFailed, what, err)
}
