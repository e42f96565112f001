package sqlitesink

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reoring/jsonrel"
)

func openMemory(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func normalized(t *testing.T, js string) []jsonrel.Relation {
	t.Helper()
	root, err := jsonrel.Decode(context.Background(), jsonrel.JSONBytes([]byte(js)))
	require.NoError(t, err)
	rels, err := jsonrel.Normalize(root, jsonrel.DefaultPolicy())
	require.NoError(t, err)
	return rels
}

func columnTypes(t *testing.T, db *sql.DB, table string) map[string]string {
	t.Helper()
	rows, err := db.Query("SELECT name, type FROM pragma_table_info(?)", table)
	require.NoError(t, err)
	defer rows.Close()
	out := map[string]string{}
	for rows.Next() {
		var name, typ string
		require.NoError(t, rows.Scan(&name, &typ))
		out[name] = typ
	}
	require.NoError(t, rows.Err())
	return out
}

func TestWriter_WriteAll(t *testing.T) {
	ctx := context.Background()
	db := openMemory(t)
	rels := normalized(t, `{"name":"x","score":1.5,"ok":true,"items":[{"n":1},{"n":2}]}`)

	n, err := NewWriter(db, Options{Replace: true}).WriteAll(ctx, rels)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	assert.Equal(t, map[string]string{"id": "INTEGER", "name": "TEXT", "ok": "INTEGER", "score": "REAL"}, columnTypes(t, db, "root"))
	assert.Equal(t, map[string]string{"id": "INTEGER", "items.n": "INTEGER", "parent_id": "INTEGER"}, columnTypes(t, db, "items"))

	var sum int64
	require.NoError(t, db.QueryRowContext(ctx, `SELECT SUM("items.n") FROM "items" WHERE "parent_id" = 1`).Scan(&sum))
	assert.Equal(t, int64(3), sum)

	var ok int64
	var score float64
	require.NoError(t, db.QueryRowContext(ctx, `SELECT "ok", "score" FROM "root"`).Scan(&ok, &score))
	assert.Equal(t, int64(1), ok)
	assert.Equal(t, 1.5, score)
}

func TestWriter_ReplaceAndBatching(t *testing.T) {
	ctx := context.Background()
	db := openMemory(t)
	w := NewWriter(db, Options{Replace: true, BatchRows: 2})
	rels := normalized(t, `[{"v":1},{"v":2},{"v":3},{"v":4},{"v":5}]`)

	_, err := w.WriteAll(ctx, rels)
	require.NoError(t, err)
	_, err = w.WriteAll(ctx, rels)
	require.NoError(t, err)

	var count int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM "root"`).Scan(&count))
	assert.Equal(t, 5, count)
}

func TestWriter_NullsAndEmptyRelation(t *testing.T) {
	ctx := context.Background()
	db := openMemory(t)
	rels := normalized(t, `[{"a":1},{"b":"x"}]`)
	_, err := NewWriter(db, Options{}).WriteAll(ctx, rels)
	require.NoError(t, err)

	var a sql.NullInt64
	require.NoError(t, db.QueryRowContext(ctx, `SELECT "a" FROM "root" WHERE "id" = 2`).Scan(&a))
	assert.False(t, a.Valid)

	empty, err := jsonrel.Normalize(jsonrel.Null(), jsonrel.DefaultPolicy())
	require.NoError(t, err)
	n, err := NewWriter(db, Options{Replace: true}).WriteAll(ctx, empty)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestInferAffinities(t *testing.T) {
	r1 := jsonrel.NewRow()
	r1.Set("i", jsonrel.Number("1"))
	r1.Set("mix", jsonrel.Number("1"))
	r1.Set("s", "x")
	r1.Set("n", nil)
	r2 := jsonrel.NewRow()
	r2.Set("i", int64(2))
	r2.Set("mix", jsonrel.Number("2.5"))
	r2.Set("s", jsonrel.Number("3"))
	rel := jsonrel.NewRelation("t", []string{"i", "mix", "s", "n"}, []*jsonrel.Row{r1, r2})
	assert.Equal(t, []Affinity{Integer, Real, Text, Text}, InferAffinities(rel))
}

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, `"a.b"`, QuoteIdent("a.b"))
	assert.Equal(t, `"say ""hi"""`, QuoteIdent(`say "hi"`))
}

func TestWriter_CaseFoldedNames(t *testing.T) {
	ctx := context.Background()
	db := openMemory(t)
	rels := normalized(t, `{"Name":"a","name":"b","items":[{"k":1}],"Items":[{"k":2}]}`)
	require.Equal(t, []string{"items", "Items_2", "root"}, TableNames(rels))

	n, err := NewWriter(db, Options{Replace: true}).WriteAll(ctx, rels)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	assert.Equal(t, map[string]string{"Name": "TEXT", "id": "INTEGER", "name_2": "TEXT"}, columnTypes(t, db, "root"))
	var upper, lower string
	require.NoError(t, db.QueryRowContext(ctx, `SELECT "Name", "name_2" FROM "root"`).Scan(&upper, &lower))
	assert.Equal(t, "a", upper)
	assert.Equal(t, "b", lower)

	var k1, k2 int64
	require.NoError(t, db.QueryRowContext(ctx, `SELECT "items.k" FROM "items"`).Scan(&k1))
	require.NoError(t, db.QueryRowContext(ctx, `SELECT "Items.k" FROM "Items_2"`).Scan(&k2))
	assert.Equal(t, int64(1), k1)
	assert.Equal(t, int64(2), k2)
}

func TestColumnNames(t *testing.T) {
	assert.Equal(t, []string{"Name", "name_2", "NAME_3", "name_2_2"}, ColumnNames([]string{"Name", "name", "NAME", "name_2"}))
	assert.Equal(t, []string{"é", "É"}, ColumnNames([]string{"é", "É"}))
	assert.Equal(t, []string{"a", "b"}, ColumnNames([]string{"a", "b"}))
}
