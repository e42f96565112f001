// Package csvsink writes finalized relations as CSV, one file per relation.
package csvsink

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
)

// QuoteMode selects when fields are quoted.
type QuoteMode string

const (
	// QuoteMinimal quotes fields containing the delimiter, the quote, a line
	// break, or leading/trailing spaces.
	QuoteMinimal QuoteMode = "minimal"
	// QuoteAll quotes every field, including null literals.
	QuoteAll QuoteMode = "all"
	// QuoteNone never quotes and escapes special characters with a backslash.
	QuoteNone QuoteMode = "none"
	// QuoteNonNumeric quotes every non-null field that is not a number.
	QuoteNonNumeric QuoteMode = "non_numeric"
)

// FormatOptions is the CSV dialect plus the cell formatting policy.
type FormatOptions struct {
	Delimiter       rune
	Quote           rune
	RecordSeparator string
	QuoteMode       QuoteMode
	PrintHeader     bool
	// NullString renders null and missing cells.
	NullString string
	// Encoding is an IANA charset name; "" means UTF-8.
	Encoding string
	// ArrayJoinSeparator joins collection values.
	ArrayJoinSeparator string
	// ExcelSafe prefixes strings starting with = + - @ with a single quote.
	ExcelSafe bool
	// ObjectInlineJSON renders maps as compact JSON.
	ObjectInlineJSON bool
	// DateFormat, when set, rewrites RFC3339 timestamps (strings or
	// time.Time) using a Go layout, "rfc3339" or "ISO_INSTANT" (UTC).
	DateFormat string
}

// DefaultOptions returns comma-separated, minimally quoted UTF-8 output with a
// header row and Excel-safe strings.
func DefaultOptions() FormatOptions {
	return FormatOptions{
		Delimiter:          ',',
		Quote:              '"',
		RecordSeparator:    "\n",
		QuoteMode:          QuoteMinimal,
		PrintHeader:        true,
		NullString:         "",
		Encoding:           "UTF-8",
		ArrayJoinSeparator: "; ",
		ExcelSafe:          true,
		ObjectInlineJSON:   true,
	}
}

// Validate checks the dialect for combinations that cannot produce parseable output.
func (o FormatOptions) Validate() error {
	switch o.QuoteMode {
	case QuoteMinimal, QuoteAll, QuoteNone, QuoteNonNumeric:
	default:
		return fmt.Errorf("csvsink: unknown quote mode %q", o.QuoteMode)
	}
	if o.Delimiter == 0 || o.Delimiter == '\r' || o.Delimiter == '\n' {
		return fmt.Errorf("csvsink: invalid delimiter %q", o.Delimiter)
	}
	if o.QuoteMode != QuoteNone && (o.Quote == 0 || o.Quote == o.Delimiter) {
		return fmt.Errorf("csvsink: quote %q must be set and differ from the delimiter", o.Quote)
	}
	if o.RecordSeparator == "" {
		return fmt.Errorf("csvsink: record separator must not be empty")
	}
	if _, err := LookupEncoding(o.Encoding); err != nil {
		return err
	}
	return nil
}

// LookupEncoding resolves an IANA charset name. UTF-8 resolves to nil, meaning
// no transcoding.
func LookupEncoding(name string) (encoding.Encoding, error) {
	n := strings.TrimSpace(name)
	if n == "" || strings.EqualFold(n, "utf-8") || strings.EqualFold(n, "utf8") {
		return nil, nil
	}
	enc, err := ianaindex.IANA.Encoding(n)
	if err != nil {
		return nil, fmt.Errorf("csvsink: unknown encoding %q: %w", name, err)
	}
	if enc == nil {
		return nil, fmt.Errorf("csvsink: unsupported encoding %q", name)
	}
	if enc == unicode.UTF8 {
		return nil, nil
	}
	return enc, nil
}
