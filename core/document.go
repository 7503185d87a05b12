package core

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Annotation is one NLP annotation inside a document.
// Qualifier values are those produced by the annotation pipeline, for
// example negation "Affirmed"/"Negated" and experiencer "Patient"/"Other".
type Annotation struct {
	CUI         string `json:"cui"`
	Pref        string `json:"pref,omitempty"`
	Str         string `json:"str,omitempty"`
	STY         string `json:"sty,omitempty"`
	Negation    string `json:"negation,omitempty"`
	Temporality string `json:"temporality,omitempty"`
	Experiencer string `json:"experiencer,omitempty"`
}

// Document is an annotated corpus document. Raw holds the full JSON
// document; the other fields are extracted from it.
type Document struct {
	SOPInstanceUID    string
	SeriesInstanceUID string
	StudyInstanceUID  string
	ContentDate       string   // YYYYMMDD as stored by the corpus
	Modalities        []string // ModalitiesInStudy split on backslash
	Annotations       []Annotation
	Raw               json.RawMessage
}

// documentFields are the document keys read by ParseDocument.
type documentFields struct {
	SOPInstanceUID    string       `json:"SOPInstanceUID"`
	SeriesInstanceUID string       `json:"SeriesInstanceUID"`
	StudyInstanceUID  string       `json:"StudyInstanceUID"`
	ContentDate       string       `json:"ContentDate"`
	ModalitiesInStudy string       `json:"ModalitiesInStudy"`
	Annotations       []Annotation `json:"annotations"`
}

// ParseDocument decodes an annotated document.
// SOPInstanceUID is required; every other field is optional.
func ParseDocument(raw []byte) (*Document, error) {
	var f documentFields
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	if f.SOPInstanceUID == "" {
		return nil, fmt.Errorf("decode document: %s is required", FieldSOPInstanceUID)
	}
	doc := &Document{
		SOPInstanceUID:    f.SOPInstanceUID,
		SeriesInstanceUID: f.SeriesInstanceUID,
		StudyInstanceUID:  f.StudyInstanceUID,
		ContentDate:       strings.ReplaceAll(f.ContentDate, "-", ""),
		Annotations:       f.Annotations,
		Raw:               append(json.RawMessage(nil), raw...),
	}
	for _, m := range strings.Split(f.ModalitiesInStudy, `\`) {
		if m = strings.TrimSpace(m); m != "" {
			doc.Modalities = append(doc.Modalities, m)
		}
	}
	return doc, nil
}

// ConceptIDs returns the annotated concept ids in annotation order.
func (d *Document) ConceptIDs() []string {
	ids := make([]string, 0, len(d.Annotations))
	for _, a := range d.Annotations {
		if a.CUI != "" {
			ids = append(ids, a.CUI)
		}
	}
	return ids
}

// PreferredLabels returns the preferred label of every annotation.
func (d *Document) PreferredLabels() []string {
	labels := make([]string, 0, len(d.Annotations))
	for _, a := range d.Annotations {
		if a.Pref != "" {
			labels = append(labels, a.Pref)
		}
	}
	return labels
}
