package jsonrel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rowOf(cols ...string) *Row {
	r := NewRow()
	for _, c := range cols {
		r.Set(c, c)
	}
	return r
}

func TestAccumulator_HeaderOrder(t *testing.T) {
	t.Run("Should sort the union of columns", func(t *testing.T) {
		acc := NewAccumulator()
		acc.AddRow("t", rowOf("a"))
		acc.AddRow("t", rowOf("b"))
		acc.AddRow("t", rowOf("a", "c"))
		rels := acc.Finalize(Sorted)
		require.Len(t, rels, 1)
		assert.Equal(t, []string{"a", "b", "c"}, rels[0].Columns())
		assert.Equal(t, 3, rels[0].Len())
	})

	t.Run("Should keep first-seen order when encountered", func(t *testing.T) {
		acc := NewAccumulator()
		acc.AddRow("t", rowOf("z"))
		acc.AddRow("t", rowOf("a", "z"))
		assert.Equal(t, []string{"z", "a"}, acc.Finalize(Encountered)[0].Columns())
		assert.Equal(t, []string{"a", "z"}, acc.Finalize(Sorted)[0].Columns())
	})

	t.Run("Should sort by code point", func(t *testing.T) {
		acc := NewAccumulator()
		acc.AddRow("t", rowOf("b", "B", "_", "a.b", "a_b"))
		assert.Equal(t, []string{"B", "_", "a.b", "a_b", "b"}, acc.Finalize(Sorted)[0].Columns())
	})
}

func TestAccumulator_RelationOrderAndPurity(t *testing.T) {
	acc := NewAccumulator()
	acc.AddRow("second", rowOf("x"))
	acc.AddRow("first", rowOf("y"))
	acc.AddRow("second", rowOf("w"))
	require.Equal(t, 2, acc.Len())

	rels := acc.Finalize(Sorted)
	assert.Equal(t, "second", rels[0].Name())
	assert.Equal(t, "first", rels[1].Name())
	assert.Equal(t, []string{"w", "x"}, rels[0].Columns())

	again := acc.Finalize(Encountered)
	assert.Equal(t, []string{"x", "w"}, again[0].Columns())
	assert.Equal(t, []string{"w", "x"}, rels[0].Columns())
}

func TestRow_SetKeepsFirstPosition(t *testing.T) {
	r := NewRow()
	assert.False(t, r.Set("parent_id", int64(1)))
	assert.False(t, r.Set("id", int64(2)))
	assert.True(t, r.Set("parent_id", "x"))
	assert.Equal(t, []string{"parent_id", "id"}, r.Columns())
	v, ok := r.Get("parent_id")
	require.True(t, ok)
	assert.Equal(t, "x", v)
	_, ok = r.Get("missing")
	assert.False(t, ok)
	assert.Equal(t, 2, r.Len())
}

func TestRelation_Records(t *testing.T) {
	r1 := NewRow()
	r1.Set("a", nil)
	r2 := NewRow()
	r2.Set("b", "x")
	rel := NewRelation("t", []string{"a", "b"}, []*Row{r1, r2})
	cells, present := rel.Records()
	assert.Equal(t, [][]any{{nil, nil}, {nil, "x"}}, cells)
	assert.Equal(t, [][]bool{{true, false}, {false, true}}, present)
}
