package core

import (
	"encoding/json"
	"fmt"
	"strings"
)

// QueryRequest is the JSON wire form of a structured query.
//
//	{
//	  "terms": [{"q": "C0205076", "qdepth": 1, "qstop": [], "qonlysty": true,
//	             "negation": "Any", "temporality": ["Recent"], "experiencer": "Patient"}],
//	  "filter": {"modalities": ["CT", "MR"], "start_date": "2010-01-01", "end_date": "2012-12-31",
//	             "sopinstanceuid": [], "seriesinstanceuid": [], "studyinstanceuid": []},
//	  "returnFields": ["SOPInstanceUID"]
//	}
type QueryRequest struct {
	Terms        []TermRequest  `json:"terms" validate:"dive"`
	Filter       *FilterRequest `json:"filter,omitempty"`
	ReturnFields []string       `json:"returnFields,omitempty" validate:"dive,fieldname"`
}

// TermRequest is the wire form of one query term.
type TermRequest struct {
	Q           StringList `json:"q" validate:"min=1,dive,required"`
	QDepth      *int       `json:"qdepth,omitempty" validate:"omitempty,min=0"`
	QStop       []string   `json:"qstop,omitempty" validate:"dive,required"`
	QOnlySty    *bool      `json:"qonlysty,omitempty"`
	Negation    Qualifier  `json:"negation"`
	Temporality Qualifier  `json:"temporality"`
	Experiencer Qualifier  `json:"experiencer"`
}

// FilterRequest is the wire form of the filter block.
type FilterRequest struct {
	Modalities         Qualifier `json:"modalities"`
	StartDate          string    `json:"start_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	EndDate            string    `json:"end_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	SOPInstanceUIDs    []string  `json:"sopinstanceuid,omitempty" validate:"dive,required"`
	SeriesInstanceUIDs []string  `json:"seriesinstanceuid,omitempty" validate:"dive,required"`
	StudyInstanceUIDs  []string  `json:"studyinstanceuid,omitempty" validate:"dive,required"`
}

// ParseRequest decodes and validates a JSON query request.
func ParseRequest(data []byte) (*QueryRequest, error) {
	var req QueryRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidQuery, err)
	}
	if err := ValidateRequest(&req); err != nil {
		return nil, err
	}
	return &req, nil
}

// Query converts the request into a Query.
// defaultDepth applies to terms without qdepth; qonlysty defaults to true.
// qstop ids are trimmed and upper-cased like concept-code terms.
func (r *QueryRequest) Query(defaultDepth int) Query {
	q := Query{
		Terms:        make([]QueryTerm, 0, len(r.Terms)),
		ReturnFields: append([]string(nil), r.ReturnFields...),
	}
	for _, t := range r.Terms {
		term := QueryTerm{
			Raw:          append([]string(nil), t.Q...),
			Depth:        defaultDepth,
			SameTypeOnly: true,
			Negation:     t.Negation,
			Temporality:  t.Temporality,
			Experiencer:  t.Experiencer,
		}
		if t.QDepth != nil {
			term.Depth = *t.QDepth
		}
		if t.QOnlySty != nil {
			term.SameTypeOnly = *t.QOnlySty
		}
		for _, id := range t.QStop {
			term.Prune = append(term.Prune, ConceptID(strings.ToUpper(strings.TrimSpace(id))))
		}
		q.Terms = append(q.Terms, term)
	}
	if f := r.Filter; f != nil {
		q.Filter = FilterBlock{
			Modalities:         f.Modalities,
			StartDate:          f.StartDate,
			EndDate:            f.EndDate,
			SOPInstanceUIDs:    append([]string(nil), f.SOPInstanceUIDs...),
			SeriesInstanceUIDs: append([]string(nil), f.SeriesInstanceUIDs...),
			StudyInstanceUIDs:  append([]string(nil), f.StudyInstanceUIDs...),
		}
	}
	return q
}
