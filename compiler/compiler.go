// Package compiler builds backend predicates from expanded query terms and
// the result filter block.
package compiler

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/poiesic/ontoquery/core"
	"github.com/poiesic/ontoquery/expand"
	"github.com/poiesic/ontoquery/predicate"
)

// EarliestDate fills a missing start of a date range.
const EarliestDate = "19900101"

const compactDate = "20060102"

// CompiledQuery is the executable form of a query.
type CompiledQuery = predicate.CompiledQuery

// Compiler turns expansions and filters into a CompiledQuery.
type Compiler struct {
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Compiler.
type Option func(*Compiler) error

// WithClock sets the clock used to fill a missing end date.
// Default is time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Compiler) error {
		if now == nil {
			now = time.Now
		}
		c.now = now
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Compiler) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger
		return nil
	}
}

// New creates a compiler.
func New(opts ...Option) (*Compiler, error) {
	c := &Compiler{now: time.Now, logger: slog.Default()}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Compile ANDs one predicate group per term with the filter block.
// A query with no terms and an empty filter is rejected with
// core.ErrEmptyQuery before anything reaches a backend.
func (c *Compiler) Compile(expansions []expand.Expansion, filter core.FilterBlock, fields []string) (*CompiledQuery, error) {
	if len(fields) == 0 {
		fields = []string{core.FieldSOPInstanceUID}
	}
	if err := core.ValidateFieldNames(fields); err != nil {
		return nil, err
	}

	var preds []predicate.Predicate
	for _, exp := range expansions {
		preds = append(preds, termPredicates(exp)...)
	}
	filterPreds, err := c.filterPredicates(filter)
	if err != nil {
		return nil, err
	}
	preds = append(preds, filterPreds...)

	if len(preds) == 0 {
		return nil, core.ErrEmptyQuery
	}

	q := &CompiledQuery{
		Where:    predicate.And{Predicates: preds},
		Fields:   slices.Clone(fields),
		Distinct: true,
	}
	c.logger.Debug("compiled query", "where", predicate.Debug(q.Where), "fields", strings.Join(q.Fields, ","))
	return q, nil
}

// termPredicates builds the concept or text predicate for one term plus
// its qualifier refinement.
func termPredicates(exp expand.Expansion) []predicate.Predicate {
	term := exp.Term
	var preds []predicate.Predicate
	if exp.FreeText() {
		preds = append(preds, predicate.NewTextMatch(term.Text()))
	} else {
		preds = append(preds, predicate.Concepts(exp.IDs))
	}

	if !term.Qualified() {
		return preds
	}
	// Only the first expanded concept and the first value of each
	// qualifier take part in the refinement.
	ann := predicate.AnnotationMatch{
		Negation:    term.Negation.First(),
		Temporality: term.Temporality.First(),
		Experiencer: term.Experiencer.First(),
	}
	if exp.FreeText() {
		ann.Pref = term.Text()
	} else {
		ann.ConceptID = exp.IDs[0]
	}
	return append(preds, ann)
}

func (c *Compiler) filterPredicates(f core.FilterBlock) ([]predicate.Predicate, error) {
	var preds []predicate.Predicate

	if !f.Modalities.IsAny() {
		preds = append(preds, predicate.ModalityOverlap{Values: modalityValues(f.Modalities.Values())})
	}

	if f.StartDate != "" || f.EndDate != "" {
		from, to := EarliestDate, c.now().Format(compactDate)
		if f.StartDate != "" {
			d, err := core.ParseDate(f.StartDate)
			if err != nil {
				return nil, err
			}
			from = d.Format(compactDate)
		}
		if f.EndDate != "" {
			d, err := core.ParseDate(f.EndDate)
			if err != nil {
				return nil, err
			}
			to = d.Format(compactDate)
		}
		preds = append(preds, predicate.DateRange{From: from, To: to})
	}

	for _, allow := range []struct {
		field  string
		values []string
	}{
		{core.FieldSOPInstanceUID, f.SOPInstanceUIDs},
		{core.FieldSeriesInstanceUID, f.SeriesInstanceUIDs},
		{core.FieldStudyInstanceUID, f.StudyInstanceUIDs},
	} {
		if len(allow.values) > 0 {
			preds = append(preds, predicate.IdentifierIn{Field: allow.field, Values: slices.Clone(allow.values)})
		}
	}
	return preds, nil
}

// modalityValues splits comma separated modality strings ("CT,MR").
func modalityValues(values []string) []string {
	var out []string
	for _, v := range values {
		for _, m := range strings.Split(v, ",") {
			if m = strings.TrimSpace(m); m != "" {
				out = append(out, m)
			}
		}
	}
	return out
}

// Describe renders a compiled query for logs.
func Describe(q *CompiledQuery) string {
	if q == nil {
		return "<nil>"
	}
	return fmt.Sprintf("select distinct %s where %s", strings.Join(q.Fields, ","), predicate.Debug(q.Where))
}
