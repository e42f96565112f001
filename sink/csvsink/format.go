package csvsink

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/reoring/jsonrel"
	"github.com/reoring/jsonrel/codec"
)

// ValueFormatter turns a cell value into text. ok=false means null; the writer
// then emits FormatOptions.NullString.
type ValueFormatter interface {
	Format(v any, opts FormatOptions) (text string, ok bool)
}

// FormatterFunc adapts a function to ValueFormatter.
type FormatterFunc func(v any, opts FormatOptions) (string, bool)

func (f FormatterFunc) Format(v any, opts FormatOptions) (string, bool) { return f(v, opts) }

// DefaultFormatter renders numbers as plain decimals (no exponent), booleans
// as true/false, inlined JSON verbatim, collections joined with
// ArrayJoinSeparator and maps as compact JSON. Timestamps are rewritten only
// when DateFormat is set.
type DefaultFormatter struct{}

func (f DefaultFormatter) Format(v any, opts FormatOptions) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		if opts.DateFormat != "" && codec.LooksLikeTime(x) {
			if out, err := codec.Reformat(context.Background(), codec.TimeRFC3339(), codec.TimeLayout(opts.DateFormat), x); err == nil {
				return out, true
			}
		}
		return excelSafe(x, opts), true
	case time.Time:
		out, err := codec.TimeLayout(opts.DateFormat).Encode(context.Background(), x)
		if err != nil {
			return "", false
		}
		return out, true
	case jsonrel.RawJSON:
		return string(x), true
	case jsonrel.Number:
		return plainNumber(string(x)), true
	case bool:
		return strconv.FormatBool(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case int:
		return strconv.Itoa(x), true
	case float64:
		return decimal.NewFromFloat(x).String(), true
	case decimal.Decimal:
		return x.String(), true
	case jsonrel.Value:
		if x.IsScalar() {
			return f.Format(x.Scalar(), opts)
		}
		return x.JSON(), true
	case []string:
		parts := make([]string, len(x))
		for i, s := range x {
			parts[i] = excelSafe(s, opts)
		}
		return strings.Join(parts, opts.ArrayJoinSeparator), true
	case []any:
		parts := make([]string, len(x))
		for i, e := range x {
			s, ok := f.Format(e, opts)
			if !ok {
				s = opts.NullString
			}
			parts[i] = s
		}
		return strings.Join(parts, opts.ArrayJoinSeparator), true
	case map[string]any:
		if opts.ObjectInlineJSON {
			if b, err := json.MarshalWithOption(x, json.DisableHTMLEscape()); err == nil {
				return string(b), true
			}
		}
		return fmt.Sprint(x), true
	default:
		return fmt.Sprint(x), true
	}
}

// plainNumber expands exponents; unparseable literals pass through.
func plainNumber(lit string) string {
	d, err := decimal.NewFromString(lit)
	if err != nil {
		return lit
	}
	return d.String()
}

func excelSafe(s string, opts FormatOptions) string {
	if !opts.ExcelSafe || s == "" {
		return s
	}
	switch s[0] {
	case '=', '+', '-', '@':
		return "'" + s
	}
	return s
}

func isNumeric(v any) bool {
	switch v.(type) {
	case jsonrel.Number, int64, int, float64, decimal.Decimal:
		return true
	}
	return false
}
