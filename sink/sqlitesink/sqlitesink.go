// Package sqlitesink loads finalized relations into SQLite, one table per relation.
package sqlitesink

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/Masterminds/squirrel"
	// Register modernc SQLite driver with database/sql.
	_ "modernc.org/sqlite"

	"github.com/reoring/jsonrel"
)

// Affinity is the declared SQLite column type.
type Affinity string

const (
	Integer Affinity = "INTEGER"
	Real    Affinity = "REAL"
	Text    Affinity = "TEXT"
)

// maxVariables stays below SQLite's historical bound on host parameters.
const maxVariables = 999

// Options controls table creation.
type Options struct {
	// Replace drops an existing table of the same name first.
	Replace bool
	// BatchRows caps rows per INSERT statement; 0 derives it from the column count.
	BatchRows int
}

// Open opens (or creates) a SQLite database file. ":memory:" is accepted.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping %s: %w", path, err)
	}
	return db, nil
}

// Writer creates and fills tables on db.
type Writer struct {
	db   *sql.DB
	opts Options
}

func NewWriter(db *sql.DB, opts Options) *Writer { return &Writer{db: db, opts: opts} }

// WriteAll writes each relation in one transaction per relation and returns
// the number of rows inserted. Tables are named per TableNames.
func (w *Writer) WriteAll(ctx context.Context, rels []jsonrel.Relation) (int, error) {
	tables := TableNames(rels)
	total := 0
	for i, rel := range rels {
		n, err := w.writeTable(ctx, tables[i], rel)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteRelation creates the relation's table and inserts its rows. Columns
// are named per ColumnNames.
func (w *Writer) WriteRelation(ctx context.Context, rel jsonrel.Relation) (int, error) {
	return w.writeTable(ctx, rel.Name(), rel)
}

func (w *Writer) writeTable(ctx context.Context, table string, rel jsonrel.Relation) (n int, err error) {
	cols := rel.Columns()
	names := ColumnNames(cols)
	types := InferAffinities(rel)

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlite: begin %s: %w", table, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if w.opts.Replace {
		if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+QuoteIdent(table)); err != nil {
			return 0, fmt.Errorf("sqlite: drop %s: %w", table, err)
		}
	}
	if _, err := tx.ExecContext(ctx, createTableSQL(table, names, types)); err != nil {
		return 0, fmt.Errorf("sqlite: create %s: %w", table, err)
	}

	if len(cols) > 0 {
		quoted := make([]string, len(cols))
		for i, c := range names {
			quoted[i] = QuoteIdent(c)
		}
		rows := rel.Rows()
		batch := w.batchRows(len(cols))
		for start := 0; start < len(rows); start += batch {
			end := min(start+batch, len(rows))
			ins := squirrel.Insert(QuoteIdent(table)).Columns(quoted...)
			for _, row := range rows[start:end] {
				vals := make([]any, len(cols))
				for i, c := range cols {
					v, _ := row.Get(c)
					vals[i] = bindValue(v, types[i])
				}
				ins = ins.Values(vals...)
			}
			query, args, err := ins.ToSql()
			if err != nil {
				return n, fmt.Errorf("sqlite: build insert %s: %w", table, err)
			}
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return n, fmt.Errorf("sqlite: insert %s: %w", table, err)
			}
			n += end - start
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlite: commit %s: %w", table, err)
	}
	return n, nil
}

func (w *Writer) batchRows(cols int) int {
	limit := maxVariables / cols
	if limit < 1 {
		limit = 1
	}
	if w.opts.BatchRows > 0 && w.opts.BatchRows < limit {
		return w.opts.BatchRows
	}
	return limit
}

func createTableSQL(name string, cols []string, types []Affinity) string {
	b := &strings.Builder{}
	b.WriteString("CREATE TABLE IF NOT EXISTS ")
	b.WriteString(QuoteIdent(name))
	b.WriteString(" (")
	if len(cols) == 0 {
		// SQLite rejects tables without columns.
		b.WriteString(`"_rowid" INTEGER`)
	}
	for i, c := range cols {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(QuoteIdent(c))
		b.WriteByte(' ')
		b.WriteString(string(types[i]))
	}
	b.WriteString(")")
	return b.String()
}

// ColumnNames returns the SQL identifier of each column. SQLite compares
// identifiers ignoring ASCII case, so a name folding onto an earlier one takes
// the first free _2, _3, ... suffix: [Name name] becomes [Name name_2].
func ColumnNames(cols []string) []string { return uniqueFolded(cols) }

// TableNames returns the table of each relation, deduplicated like ColumnNames.
func TableNames(rels []jsonrel.Relation) []string {
	names := make([]string, len(rels))
	for i, rel := range rels {
		names[i] = rel.Name()
	}
	return uniqueFolded(names)
}

func uniqueFolded(names []string) []string {
	used := make(map[string]struct{}, len(names))
	out := make([]string, len(names))
	for i, name := range names {
		cand := name
		for k := 2; ; k++ {
			if _, taken := used[foldASCII(cand)]; !taken {
				break
			}
			cand = name + "_" + strconv.Itoa(k)
		}
		used[foldASCII(cand)] = struct{}{}
		out[i] = cand
	}
	return out
}

func foldASCII(s string) string {
	return strings.Map(func(r rune) rune {
		if 'A' <= r && r <= 'Z' {
			return r + ('a' - 'A')
		}
		return r
	}, s)
}

// QuoteIdent quotes an SQL identifier, doubling embedded quotes.
func QuoteIdent(s string) string { return `"` + strings.ReplaceAll(s, `"`, `""`) + `"` }

// InferAffinities picks one affinity per column from the present, non-null
// values: INTEGER when all are integers or booleans, REAL when all are
// numeric, TEXT otherwise (including empty columns).
func InferAffinities(rel jsonrel.Relation) []Affinity {
	cols := rel.Columns()
	out := make([]Affinity, len(cols))
	rows := rel.Rows()
	for i, c := range cols {
		aff := Affinity("")
		for _, row := range rows {
			v, ok := row.Get(c)
			if !ok || v == nil {
				continue
			}
			aff = widen(aff, affinityOf(v))
			if aff == Text {
				break
			}
		}
		if aff == "" {
			aff = Text
		}
		out[i] = aff
	}
	return out
}

func affinityOf(v any) Affinity {
	switch x := v.(type) {
	case int64, int, bool:
		return Integer
	case float64:
		return Real
	case jsonrel.Number:
		if _, err := strconv.ParseInt(string(x), 10, 64); err == nil {
			return Integer
		}
		if _, err := strconv.ParseFloat(string(x), 64); err == nil {
			return Real
		}
		return Text
	default:
		return Text
	}
}

func widen(cur, next Affinity) Affinity {
	switch {
	case cur == "":
		return next
	case cur == next:
		return cur
	case cur == Text || next == Text:
		return Text
	default:
		return Real
	}
}

func bindValue(v any, aff Affinity) any {
	switch x := v.(type) {
	case nil:
		return nil
	case bool:
		if x {
			return int64(1)
		}
		return int64(0)
	case jsonrel.Number:
		switch aff {
		case Integer:
			if i, err := x.Int64(); err == nil {
				return i
			}
		case Real:
			if f, err := x.Float64(); err == nil {
				return f
			}
		}
		return string(x)
	case jsonrel.RawJSON:
		return string(x)
	case string, int64, float64:
		return x
	case int:
		return int64(x)
	default:
		return fmt.Sprint(x)
	}
}
