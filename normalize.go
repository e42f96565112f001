package jsonrel

import (
	"fmt"
	"strconv"
	"strings"

	eng "github.com/reoring/jsonrel/internal/engine"
)

// Result is the output of NormalizeWithReport: the finalized relations plus
// non-fatal issues (column collisions under Warn, duplicate keys when decoding
// through NormalizeFrom).
type Result struct {
	Relations []Relation
	Issues    Issues
}

// Normalize folds root into flat relations according to p.
func Normalize(root Value, p Policy) ([]Relation, error) {
	res, err := NormalizeWithReport(root, p)
	if err != nil {
		return nil, err
	}
	return res.Relations, nil
}

// NormalizeWithReport is Normalize with non-fatal issues reported alongside the
// relations.
func NormalizeWithReport(root Value, p Policy) (Result, error) {
	if err := p.Validate(); err != nil {
		return Result{}, err
	}
	if root.IsNull() {
		return Result{Relations: []Relation{{name: p.RootRelation}}}, nil
	}
	n := &normalizer{p: p, acc: NewAccumulator(), counters: make(map[string]int64)}
	var err error
	switch root.Kind() {
	case KindArray:
		err = n.foldArray(root, p.RootRelation, nil, "", "", 1)
	case KindObject:
		err = n.foldObject(root, p.RootRelation, nil, "", "", 1)
	default:
		row := NewRow()
		row.Set("value", root.Scalar())
		n.acc.AddRow(p.RootRelation, row)
	}
	if err != nil {
		return Result{}, err
	}
	return Result{Relations: n.acc.Finalize(p.HeaderOrder), Issues: n.issues}, nil
}

type normalizer struct {
	p        Policy
	acc      *Accumulator
	counters map[string]int64
	issues   Issues
}

func (n *normalizer) nextID(rel string) int64 {
	n.counters[rel]++
	return n.counters[rel]
}

// baseRow starts a row with the parent link and, when enabled, a fresh id.
func (n *normalizer) baseRow(rel string, parentID *int64) (*Row, *int64) {
	row := NewRow()
	if n.p.GenerateParentLink && parentID != nil {
		row.Set(n.p.ParentLinkColumn, *parentID)
	}
	if !n.p.GenerateRowID {
		return row, nil
	}
	id := n.nextID(rel)
	row.Set(n.p.IDColumn, id)
	return row, &id
}

// childParent is the parent id handed to child relations: this row's id when
// ids are generated, otherwise the inherited one.
func (n *normalizer) childParent(myID, parentID *int64) *int64 {
	if n.p.GenerateRowID {
		return myID
	}
	return parentID
}

func (n *normalizer) checkDepth(depth int, ptr string) error {
	if n.p.MaxDepth > 0 && depth > n.p.MaxDepth {
		return AppendIssues(nil, Issue{
			Code:    CodeMaxDepth,
			Path:    pointerOrRoot(ptr),
			Message: fmt.Sprintf("nesting depth %d exceeds limit %d", depth, n.p.MaxDepth),
			Params:  map[string]any{"depth": depth, "limit": n.p.MaxDepth},
		})
	}
	return nil
}

// put writes a cell and applies OnColumnCollision when the column is already set.
func (n *normalizer) put(row *Row, rel, col string, v any, ptr string) error {
	if !row.Set(col, v) {
		return nil
	}
	switch n.p.OnColumnCollision {
	case Ignore:
		return nil
	case Warn:
		n.issues = AppendIssues(n.issues, n.collision(rel, col, ptr))
		return nil
	default:
		return AppendIssues(nil, n.collision(rel, col, ptr))
	}
}

func (n *normalizer) collision(rel, col, ptr string) Issue {
	return Issue{
		Code:    CodeColumnCollision,
		Path:    pointerOrRoot(ptr),
		Message: fmt.Sprintf("column %q of relation %q written twice in one row", col, rel),
		Params:  map[string]any{"column": col, "relation": rel},
	}
}

func (n *normalizer) foldObject(obj Value, rel string, parentID *int64, path, ptr string, depth int) error {
	if err := n.checkDepth(depth, ptr); err != nil {
		return err
	}
	row, myID := n.baseRow(rel, parentID)

	for _, m := range obj.Members() {
		if !m.Value.IsScalar() {
			continue
		}
		if err := n.put(row, rel, columnName(path, m.Key), m.Value.Scalar(), eng.JoinPointer(ptr, m.Key)); err != nil {
			return err
		}
	}

	for _, m := range obj.Members() {
		child := m.Value
		if child.IsScalar() {
			continue
		}
		childPath := columnName(path, m.Key)
		childPtr := eng.JoinPointer(ptr, m.Key)
		var err error
		switch {
		case child.IsObject():
			if !n.p.AllowChildRelations {
				err = n.put(row, rel, childPath, RawJSON(child.JSON()), childPtr)
			} else {
				err = n.foldObject(child, relationName(childPath), n.childParent(myID, parentID), childPath, childPtr, depth+1)
			}
		case child.Len() == 0:
			err = n.put(row, rel, childPath, "", childPtr)
		case child.Elems()[0].IsObject():
			if n.p.ObjectArrays == InlineAsJSON || !n.p.AllowChildRelations {
				err = n.put(row, rel, childPath, RawJSON(child.JSON()), childPtr)
			} else {
				err = n.foldArray(child, relationName(childPath), n.childParent(myID, parentID), childPath, childPtr, depth+1)
			}
		default:
			if n.p.PrimitiveArrays == Join || !n.p.AllowChildRelations {
				err = n.put(row, rel, childPath, n.join(child), childPtr)
			} else {
				err = n.explodePrimitives(child, relationName(childPath), n.childParent(myID, parentID), childPath, childPtr, depth+1)
			}
		}
		if err != nil {
			return err
		}
	}

	n.acc.AddRow(rel, row)
	return nil
}

func (n *normalizer) foldArray(arr Value, rel string, parentID *int64, path, ptr string, depth int) error {
	if err := n.checkDepth(depth, ptr); err != nil {
		return err
	}
	for i, elem := range arr.Elems() {
		elemPtr := eng.JoinPointer(ptr, strconv.Itoa(i))
		if elem.IsObject() {
			if err := n.foldObject(elem, rel, parentID, path, elemPtr, depth+1); err != nil {
				return err
			}
			continue
		}
		row, _ := n.baseRow(rel, parentID)
		// Scalar() renders nested arrays as RawJSON.
		if err := n.put(row, rel, columnName(path, "value"), elem.Scalar(), elemPtr); err != nil {
			return err
		}
		n.acc.AddRow(rel, row)
	}
	return nil
}

func (n *normalizer) explodePrimitives(arr Value, rel string, parentID *int64, path, ptr string, depth int) error {
	if err := n.checkDepth(depth, ptr); err != nil {
		return err
	}
	col := path + ".value"
	for i, elem := range arr.Elems() {
		row, _ := n.baseRow(rel, parentID)
		if err := n.put(row, rel, col, elem.Scalar(), eng.JoinPointer(ptr, strconv.Itoa(i))); err != nil {
			return err
		}
		n.acc.AddRow(rel, row)
	}
	return nil
}

// join stringifies scalar elements; null becomes "null" and containers their
// JSON text.
func (n *normalizer) join(arr Value) string {
	b := &strings.Builder{}
	for i, elem := range arr.Elems() {
		if i > 0 {
			b.WriteString(n.p.JoinSeparator)
		}
		switch elem.Kind() {
		case KindString, KindNumber:
			b.WriteString(elem.Text())
		default:
			b.WriteString(elem.JSON())
		}
	}
	return b.String()
}

func columnName(path, field string) string {
	if path == "" {
		return field
	}
	return path + "." + field
}

func relationName(path string) string { return strings.ReplaceAll(path, ".", "_") }

func pointerOrRoot(p string) string {
	if p == "" {
		return "/"
	}
	return p
}
