package core

// ResultSet is a fully materialized query result. Values are kept as
// strings: every consumer in the pipeline is selecting or comparing
// identifier-like columns, never doing arithmetic.
type ResultSet struct {
	Columns []string
	Rows    [][]string
}

// ColumnIndex returns the position of the named column, or -1.
func (r *ResultSet) ColumnIndex(name string) int {
	for i, c := range r.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Empty reports whether the result set has no rows.
func (r *ResultSet) Empty() bool {
	return r == nil || len(r.Rows) == 0
}
