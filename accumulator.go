package jsonrel

import "sort"

// Accumulator collects rows into named relations for a single run. It is not
// safe for concurrent use.
type Accumulator struct {
	order []string
	rels  map[string]*pendingRelation
}

type pendingRelation struct {
	columns []string
	seen    map[string]struct{}
	rows    []*Row
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{rels: make(map[string]*pendingRelation)}
}

// AddRow appends row to the named relation, creating the relation on first use,
// and unions the row's columns into the relation in first-seen order.
func (a *Accumulator) AddRow(name string, row *Row) {
	pr, ok := a.rels[name]
	if !ok {
		pr = &pendingRelation{seen: make(map[string]struct{})}
		a.rels[name] = pr
		a.order = append(a.order, name)
	}
	for _, c := range row.cols {
		if _, dup := pr.seen[c]; dup {
			continue
		}
		pr.seen[c] = struct{}{}
		pr.columns = append(pr.columns, c)
	}
	pr.rows = append(pr.rows, row)
}

// Len is the number of relations created so far.
func (a *Accumulator) Len() int { return len(a.order) }

// Finalize returns one Relation per relation in creation order. Sorted orders
// columns by byte-wise comparison; Encountered keeps first-seen order.
// The accumulator is left unchanged.
func (a *Accumulator) Finalize(order HeaderOrder) []Relation {
	out := make([]Relation, 0, len(a.order))
	for _, name := range a.order {
		pr := a.rels[name]
		cols := append([]string{}, pr.columns...)
		if order == Sorted {
			sort.Strings(cols)
		}
		out = append(out, Relation{name: name, columns: cols, rows: append([]*Row{}, pr.rows...)})
	}
	return out
}
