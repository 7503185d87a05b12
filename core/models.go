package core

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ConceptID is a concept unique identifier (CUI) such as "C0205076".
type ConceptID string

// Concept is a single row of the concept table.
// Concepts are immutable once loaded.
type Concept struct {
	ID             ConceptID
	SemanticTypes  []string // semantic type ids (TUIs)
	SemanticGroups []string // coarser semantic type groups
	Label          string   // preferred label
}

// Identifier fields of the corpus, finest granularity first.
const (
	FieldSOPInstanceUID    = "SOPInstanceUID"
	FieldSeriesInstanceUID = "SeriesInstanceUID"
	FieldStudyInstanceUID  = "StudyInstanceUID"
)

// IdentifierFields lists the identifier granularities from leaf to study.
var IdentifierFields = []string{FieldSOPInstanceUID, FieldSeriesInstanceUID, FieldStudyInstanceUID}

// QueryTerm is one conjunctive term of a structured query.
type QueryTerm struct {
	// Raw holds the term value. A single string may itself be a comma-separated
	// list; expansion splits every element on commas.
	Raw          []string
	Depth        int
	Prune        []ConceptID
	SameTypeOnly bool
	Negation     Qualifier
	Temporality  Qualifier
	Experiencer  Qualifier
}

// Text returns the term value as free text.
func (t QueryTerm) Text() string {
	return strings.Join(t.Raw, " ")
}

// Qualified reports whether any qualifier is constrained away from Any.
func (t QueryTerm) Qualified() bool {
	return !t.Negation.IsAny() || !t.Temporality.IsAny() || !t.Experiencer.IsAny()
}

// FilterBlock restricts the documents a query may match.
// Dates use the YYYY-MM-DD form and are empty when absent.
type FilterBlock struct {
	Modalities         Qualifier
	StartDate          string
	EndDate            string
	SOPInstanceUIDs    []string
	SeriesInstanceUIDs []string
	StudyInstanceUIDs  []string
}

// IsEmpty reports whether the filter restricts nothing.
func (f FilterBlock) IsEmpty() bool {
	return f.Modalities.IsAny() &&
		f.StartDate == "" && f.EndDate == "" &&
		len(f.SOPInstanceUIDs) == 0 &&
		len(f.SeriesInstanceUIDs) == 0 &&
		len(f.StudyInstanceUIDs) == 0
}

// Query is a structured query: terms are always combined with AND.
type Query struct {
	Terms        []QueryTerm
	Filter       FilterBlock
	ReturnFields []string
}

// Record is one result row with more than one projected field.
// Field order is the requested order and is kept when marshalled.
type Record struct {
	Fields []string
	Values []any
}

// Get returns the value of the named field.
func (r Record) Get(field string) (any, bool) {
	for i, f := range r.Fields {
		if f == field {
			return r.Values[i], true
		}
	}
	return nil, false
}

// MarshalJSON writes the record as a JSON object in field order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r.Fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(r.Values[i])
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Projection is the shaped output of a query.
// Exactly one of Values (single field) or Records (several fields) is used.
type Projection struct {
	Fields  []string
	Values  []any
	Records []Record
}

// Flat reports whether the projection is a flat list of scalars.
func (p *Projection) Flat() bool {
	return len(p.Fields) == 1
}

// Len returns the number of rows.
func (p *Projection) Len() int {
	if p.Flat() {
		return len(p.Values)
	}
	return len(p.Records)
}

// MarshalJSON writes the flat list or the record list.
func (p *Projection) MarshalJSON() ([]byte, error) {
	if p.Flat() {
		if p.Values == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(p.Values)
	}
	if p.Records == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(p.Records)
}

// Snapshot is the persisted identifier list behind a transaction handle.
type Snapshot struct {
	Handle      string
	Identifiers []string
	Digest      uint64
	CreatedAt   time.Time
}

// DigestIdentifiers hashes an ordered identifier list with BLAKE2b.
// Order matters: the same identifiers in another order give another digest.
func DigestIdentifiers(ids []string) uint64 {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	for _, id := range ids {
		h.Write([]byte(id))
		h.Write([]byte{0})
	}
	return binary.LittleEndian.Uint64(h.Sum(nil))
}

// Stage is a step of the query lifecycle.
type Stage int

const (
	StageReceived Stage = iota
	StageExpanded
	StageCompiled
	StageExecuted
	StageProjected
	StagePersisted
)

var stageNames = [...]string{"received", "expanded", "compiled", "executed", "projected", "persisted"}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "unknown"
	}
	return stageNames[s]
}
