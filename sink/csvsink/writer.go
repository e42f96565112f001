package csvsink

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/reoring/jsonrel"
)

// WriteRelation writes rel to w in the dialect described by opts. A nil
// formatter selects DefaultFormatter.
func WriteRelation(w io.Writer, rel jsonrel.Relation, opts FormatOptions, f ValueFormatter) (err error) {
	if err := opts.Validate(); err != nil {
		return err
	}
	if f == nil {
		f = DefaultFormatter{}
	}
	enc, _ := LookupEncoding(opts.Encoding)
	var closer io.Closer
	if enc != nil {
		tw := enc.NewEncoder().Writer(w)
		w = tw
		if c, ok := tw.(io.Closer); ok {
			closer = c
		}
	}
	bw := bufio.NewWriter(w)
	defer func() {
		if ferr := bw.Flush(); err == nil && ferr != nil {
			err = fmt.Errorf("csvsink: write %s: %w", rel.Name(), ferr)
		}
		if closer != nil {
			if cerr := closer.Close(); err == nil && cerr != nil {
				err = fmt.Errorf("csvsink: encode %s: %w", rel.Name(), cerr)
			}
		}
	}()

	rw := &recordWriter{w: bw, opts: opts}
	cols := rel.Columns()
	if opts.PrintHeader {
		for i, c := range cols {
			rw.field(i, c, true, false)
		}
		rw.end()
	}
	for _, row := range rel.Rows() {
		for i, c := range cols {
			v, present := row.Get(c)
			if !present {
				v = nil
			}
			text, ok := f.Format(v, opts)
			if !ok {
				rw.null(i)
				continue
			}
			rw.field(i, text, !isNumeric(v), true)
		}
		rw.end()
	}
	if rw.err != nil {
		return fmt.Errorf("csvsink: write %s: %w", rel.Name(), rw.err)
	}
	return nil
}

type recordWriter struct {
	w    *bufio.Writer
	opts FormatOptions
	err  error
}

func (rw *recordWriter) write(s string) {
	if rw.err == nil {
		_, rw.err = rw.w.WriteString(s)
	}
}

func (rw *recordWriter) sep(i int) {
	if i > 0 {
		rw.write(string(rw.opts.Delimiter))
	}
}

func (rw *recordWriter) end() { rw.write(rw.opts.RecordSeparator) }

func (rw *recordWriter) null(i int) {
	rw.sep(i)
	if rw.opts.QuoteMode == QuoteAll {
		rw.write(rw.quoted(rw.opts.NullString))
		return
	}
	rw.write(rw.opts.NullString)
}

// field writes one value. textual marks non-numeric values for QuoteNonNumeric.
func (rw *recordWriter) field(i int, s string, textual, data bool) {
	rw.sep(i)
	switch rw.opts.QuoteMode {
	case QuoteAll:
		rw.write(rw.quoted(s))
	case QuoteNonNumeric:
		if textual || !data {
			rw.write(rw.quoted(s))
		} else {
			rw.write(s)
		}
	case QuoteNone:
		rw.write(rw.escaped(s))
	default:
		if rw.needsQuotes(s) {
			rw.write(rw.quoted(s))
		} else {
			rw.write(s)
		}
	}
}

func (rw *recordWriter) needsQuotes(s string) bool {
	if s == "" {
		return false
	}
	if s[0] == ' ' || s[0] == '\t' || s[len(s)-1] == ' ' || s[len(s)-1] == '\t' {
		return true
	}
	return strings.ContainsRune(s, rw.opts.Delimiter) ||
		strings.ContainsRune(s, rw.opts.Quote) ||
		strings.ContainsAny(s, "\r\n")
}

func (rw *recordWriter) quoted(s string) string {
	q := string(rw.opts.Quote)
	return q + strings.ReplaceAll(s, q, q+q) + q
}

func (rw *recordWriter) escaped(s string) string {
	b := &strings.Builder{}
	for _, r := range s {
		switch {
		case r == '\\' || r == rw.opts.Delimiter || (rw.opts.Quote != 0 && r == rw.opts.Quote):
			b.WriteRune('\\')
			b.WriteRune(r)
		case r == '\n':
			b.WriteString(`\n`)
		case r == '\r':
			b.WriteString(`\r`)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Writer writes relations as <dir>/<name>.csv on a filesystem.
type Writer struct {
	fs        afero.Fs
	formatter ValueFormatter
}

// NewWriter returns a Writer on fs. A nil formatter selects DefaultFormatter.
func NewWriter(fs afero.Fs, f ValueFormatter) *Writer {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if f == nil {
		f = DefaultFormatter{}
	}
	return &Writer{fs: fs, formatter: f}
}

// WriteAll writes every relation and returns the created paths in relation
// order. Existing files are overwritten.
func (w *Writer) WriteAll(ctx context.Context, dir string, rels []jsonrel.Relation, opts FormatOptions) ([]string, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if err := w.fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("csvsink: create %s: %w", dir, err)
	}
	paths := make([]string, 0, len(rels))
	for _, rel := range rels {
		if err := ctx.Err(); err != nil {
			return paths, err
		}
		p := filepath.Join(dir, FileName(rel.Name()))
		if err := w.writeFile(p, rel, opts); err != nil {
			return paths, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}

func (w *Writer) writeFile(p string, rel jsonrel.Relation, opts FormatOptions) error {
	f, err := w.fs.Create(p)
	if err != nil {
		return fmt.Errorf("csvsink: create %s: %w", p, err)
	}
	if err := WriteRelation(f, rel, opts, w.formatter); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("csvsink: close %s: %w", p, err)
	}
	return nil
}

// FileName maps a relation name to its file name; path separators are replaced.
func FileName(relation string) string {
	name := strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == 0 {
			return '_'
		}
		return r
	}, relation)
	if name == "" || name == "." || name == ".." {
		name = "_" + name
	}
	return name + ".csv"
}
