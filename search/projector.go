package search

import "github.com/poiesic/ontoquery/core"

// Project shapes backend rows into a projection.
// A single field gives a flat list of values; several fields give one
// record per row with the fields in request order.
func Project(fields []string, rows [][]any) *core.Projection {
	p := &core.Projection{Fields: append([]string(nil), fields...)}
	if p.Flat() {
		p.Values = make([]any, 0, len(rows))
		for _, row := range rows {
			p.Values = append(p.Values, row[0])
		}
		return p
	}
	p.Records = make([]core.Record, 0, len(rows))
	for _, row := range rows {
		p.Records = append(p.Records, core.Record{
			Fields: p.Fields,
			Values: append([]any(nil), row...),
		})
	}
	return p
}
