package predicate

// CompiledQuery is an executable backend query: a composite predicate plus
// the projection. Distinct is always true for compiled search queries.
type CompiledQuery struct {
	Where    Predicate
	Fields   []string
	Distinct bool
}
