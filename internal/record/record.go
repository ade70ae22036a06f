// Package record defines the flat record model shared by the flattening and
// writing layers: an ordered set of named string fields in which "no value"
// is explicit rather than expressed by omitting the key.
//
// Design goals:
//
//   - Every record produced for a table carries the full column set of that
//     table; optional source structure may only turn a value absent, never
//     remove a column.
//   - Column order is insertion order, so the canonical column list of a
//     table can be derived by running its flattener once over absent input.
//   - Values stay strings end to end; type interpretation belongs to the
//     analytics side, not the pipeline.
package record

// Value is a single field value. The zero Value is absent.
type Value struct {
	Str   string
	Valid bool
}

// String returns a present Value holding s.
func String(s string) Value { return Value{Str: s, Valid: true} }

// Record is an insertion-ordered mapping from column name to Value.
type Record struct {
	cols []string
	vals map[string]Value
}

// New returns an empty Record.
func New() *Record {
	return &Record{vals: make(map[string]Value)}
}

// Set stores v under col. The first Set of a column fixes its position;
// setting an existing column overwrites the value in place.
func (r *Record) Set(col string, v Value) {
	if _, ok := r.vals[col]; !ok {
		r.cols = append(r.cols, col)
	}
	r.vals[col] = v
}

// Get returns the value stored under col and whether the column exists.
func (r *Record) Get(col string) (Value, bool) {
	v, ok := r.vals[col]
	return v, ok
}

// Merge appends every column of other to r in other's order, keeping r's
// position for columns r already has. Prefix discipline in the flatteners
// makes collisions impossible in practice.
func (r *Record) Merge(other *Record) {
	if other == nil {
		return
	}
	for _, c := range other.cols {
		r.Set(c, other.vals[c])
	}
}

// Columns returns the column names in insertion order. The slice is shared
// with the record; callers must not modify it.
func (r *Record) Columns() []string { return r.cols }

// Len returns the number of columns.
func (r *Record) Len() int { return len(r.cols) }

// Row projects the record onto the given column order for a database sink:
// present values become strings, absent values nil.
func (r *Record) Row(columns []string) []any {
	row := make([]any, len(columns))
	for i, c := range columns {
		if v, ok := r.vals[c]; ok && v.Valid {
			row[i] = v.Str
		}
	}
	return row
}
