package jsonrel

// Row is an ordered mapping from column name to cell value. Cell values are
// nil, bool, int64 (generated ids), Number, string or RawJSON. A column absent
// from a row is missing, which writers may render differently from nil.
type Row struct {
	cols []string
	vals map[string]any
}

// NewRow returns an empty row.
func NewRow() *Row { return &Row{vals: make(map[string]any)} }

// Set stores v under col. Re-setting a column keeps its first position;
// replaced reports whether a previous value was overwritten.
func (r *Row) Set(col string, v any) (replaced bool) {
	if _, ok := r.vals[col]; ok {
		r.vals[col] = v
		return true
	}
	r.cols = append(r.cols, col)
	r.vals[col] = v
	return false
}

// Get returns the value under col and whether the column is present.
func (r *Row) Get(col string) (any, bool) {
	v, ok := r.vals[col]
	return v, ok
}

// Columns returns the row's columns in first-set order.
func (r *Row) Columns() []string {
	out := make([]string, len(r.cols))
	copy(out, r.cols)
	return out
}

func (r *Row) Len() int { return len(r.cols) }

// Relation is a finalized, read-only table: a name, an ordered column list and
// the rows in append order.
type Relation struct {
	name    string
	columns []string
	rows    []*Row
}

// NewRelation builds a finalized relation directly; writers and tests use it.
func NewRelation(name string, columns []string, rows []*Row) Relation {
	return Relation{name: name, columns: append([]string{}, columns...), rows: append([]*Row{}, rows...)}
}

func (r Relation) Name() string { return r.name }

// Columns returns a copy of the ordered column list.
func (r Relation) Columns() []string { return append([]string{}, r.columns...) }

// Rows returns the rows in append order. Callers must not modify them.
func (r Relation) Rows() []*Row { return append([]*Row{}, r.rows...) }

// Len is the number of rows.
func (r Relation) Len() int { return len(r.rows) }

// Records renders every row as a slice aligned with Columns; missing cells are
// reported through the present mask.
func (r Relation) Records() (cells [][]any, present [][]bool) {
	cells = make([][]any, len(r.rows))
	present = make([][]bool, len(r.rows))
	for i, row := range r.rows {
		cells[i] = make([]any, len(r.columns))
		present[i] = make([]bool, len(r.columns))
		for j, c := range r.columns {
			cells[i][j], present[i][j] = row.Get(c)
		}
	}
	return cells, present
}
