// Package config loads jsonrel settings from defaults, an optional YAML file,
// JSONREL_* environment variables and explicit overrides, in that order.
package config

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/reoring/jsonrel"
	"github.com/reoring/jsonrel/sink/csvsink"
)

// Config is the full application configuration.
type Config struct {
	Input  InputConfig  `koanf:"input"`
	Output OutputConfig `koanf:"output"`
	Policy PolicyConfig `koanf:"policy"`
	CSV    CSVConfig    `koanf:"csv"`
	Parse  ParseConfig  `koanf:"parse"`
	Log    LogConfig    `koanf:"log"`
	Server ServerConfig `koanf:"server"`
}

// InputConfig selects the document and how it is parsed.
type InputConfig struct {
	Path string `koanf:"path"`
	// Format is json, yaml, or auto (by file extension).
	Format string `koanf:"format" validate:"oneof=auto json yaml"`
	// Select is a gjson path or a JSON Pointer (leading '/') applied before normalizing.
	Select string `koanf:"select"`
	Driver string `koanf:"driver" validate:"oneof=encoding/json go-json"`
}

// OutputConfig selects the writer.
type OutputConfig struct {
	Dir        string `koanf:"dir"         validate:"required_if=Format csv"`
	Format     string `koanf:"format"      validate:"oneof=csv sqlite"`
	SQLitePath string `koanf:"sqlite_path" validate:"required_if=Format sqlite"`
	Replace    bool   `koanf:"replace"`
}

// PolicyConfig mirrors jsonrel.Policy with text enums.
type PolicyConfig struct {
	RootRelation        string `koanf:"root_relation"`
	AllowChildRelations bool   `koanf:"allow_child_relations"`
	ObjectArrays        string `koanf:"object_arrays"`
	PrimitiveArrays     string `koanf:"primitive_arrays"`
	GenerateRowID       bool   `koanf:"generate_row_id"`
	GenerateParentLink  bool   `koanf:"generate_parent_link"`
	IDColumn            string `koanf:"id_column"`
	ParentLinkColumn    string `koanf:"parent_link_column"`
	JoinSeparator       string `koanf:"join_separator"`
	MaxDepth            int    `koanf:"max_depth"`
	HeaderOrder         string `koanf:"header_order"`
	OnColumnCollision   string `koanf:"on_column_collision" validate:"oneof=ignore warn error"`
}

// CSVConfig mirrors csvsink.FormatOptions. Delimiter, Quote and
// RecordSeparator accept escapes such as \t and \n.
type CSVConfig struct {
	Delimiter          string `koanf:"delimiter"        validate:"required"`
	Quote              string `koanf:"quote"`
	RecordSeparator    string `koanf:"record_separator" validate:"required"`
	QuoteMode          string `koanf:"quote_mode"       validate:"oneof=minimal all none non_numeric"`
	PrintHeader        bool   `koanf:"print_header"`
	NullString         string `koanf:"null_string"`
	Encoding           string `koanf:"encoding"`
	ArrayJoinSeparator string `koanf:"array_join_separator"`
	ExcelSafe          bool   `koanf:"excel_safe"`
	ObjectInlineJSON   bool   `koanf:"object_inline_json"`
	DateFormat         string `koanf:"date_format"`
}

// ParseConfig bounds the parser. MaxDepth 0 inherits policy.max_depth.
type ParseConfig struct {
	OnDuplicateKey string `koanf:"on_duplicate_key" validate:"oneof=ignore warn error"`
	MaxBytes       int64  `koanf:"max_bytes"        validate:"gte=0"`
	MaxDepth       int    `koanf:"max_depth"        validate:"gte=0"`
}

type LogConfig struct {
	Level  string `koanf:"level"  validate:"oneof=debug info warn error disabled"`
	JSON   bool   `koanf:"json"`
	Source bool   `koanf:"source"`
	// Lang selects issue message language: en or ja.
	Lang string `koanf:"lang" validate:"oneof=en ja"`
}

type ServerConfig struct {
	Addr            string        `koanf:"addr"             validate:"required"`
	MaxBodyBytes    int64         `koanf:"max_body_bytes"   validate:"gt=0"`
	ReadTimeout     time.Duration `koanf:"read_timeout"     validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
}

// Default returns the built-in configuration.
func Default() *Config {
	p := jsonrel.DefaultPolicy()
	c := csvsink.DefaultOptions()
	return &Config{
		Input: InputConfig{Format: "auto", Driver: "go-json"},
		Output: OutputConfig{
			Dir:     "out",
			Format:  "csv",
			Replace: true,
		},
		Policy: PolicyConfig{
			RootRelation:        p.RootRelation,
			AllowChildRelations: p.AllowChildRelations,
			ObjectArrays:        string(p.ObjectArrays),
			PrimitiveArrays:     string(p.PrimitiveArrays),
			GenerateRowID:       p.GenerateRowID,
			GenerateParentLink:  p.GenerateParentLink,
			IDColumn:            p.IDColumn,
			ParentLinkColumn:    p.ParentLinkColumn,
			JoinSeparator:       p.JoinSeparator,
			MaxDepth:            p.MaxDepth,
			HeaderOrder:         string(p.HeaderOrder),
			OnColumnCollision:   p.OnColumnCollision.String(),
		},
		CSV: CSVConfig{
			Delimiter:          string(c.Delimiter),
			Quote:              string(c.Quote),
			RecordSeparator:    `\n`,
			QuoteMode:          string(c.QuoteMode),
			PrintHeader:        c.PrintHeader,
			NullString:         c.NullString,
			Encoding:           c.Encoding,
			ArrayJoinSeparator: c.ArrayJoinSeparator,
			ExcelSafe:          c.ExcelSafe,
			ObjectInlineJSON:   c.ObjectInlineJSON,
			DateFormat:         c.DateFormat,
		},
		Parse: ParseConfig{OnDuplicateKey: "warn"},
		Log:   LogConfig{Level: "info", Lang: "en"},
		Server: ServerConfig{
			Addr:            ":8080",
			MaxBodyBytes:    32 << 20,
			ReadTimeout:     30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
	}
}

// ToPolicy converts the policy section. The result is validated.
func (c *Config) ToPolicy() (jsonrel.Policy, error) {
	sev, err := jsonrel.ParseSeverity(c.Policy.OnColumnCollision)
	if err != nil {
		return jsonrel.Policy{}, err
	}
	p := jsonrel.Policy{
		RootRelation:        c.Policy.RootRelation,
		AllowChildRelations: c.Policy.AllowChildRelations,
		ObjectArrays:        jsonrel.ObjectArrayStrategy(strings.ToLower(c.Policy.ObjectArrays)),
		PrimitiveArrays:     jsonrel.PrimitiveArrayStrategy(strings.ToLower(c.Policy.PrimitiveArrays)),
		GenerateRowID:       c.Policy.GenerateRowID,
		GenerateParentLink:  c.Policy.GenerateParentLink,
		IDColumn:            c.Policy.IDColumn,
		ParentLinkColumn:    c.Policy.ParentLinkColumn,
		JoinSeparator:       Unescape(c.Policy.JoinSeparator),
		MaxDepth:            c.Policy.MaxDepth,
		HeaderOrder:         jsonrel.HeaderOrder(strings.ToLower(c.Policy.HeaderOrder)),
		OnColumnCollision:   sev,
	}
	if err := p.Validate(); err != nil {
		return jsonrel.Policy{}, err
	}
	return p, nil
}

// ToParseOpt converts the parse section; MaxDepth 0 is filled from the policy.
func (c *Config) ToParseOpt() (jsonrel.ParseOpt, error) {
	sev, err := jsonrel.ParseSeverity(c.Parse.OnDuplicateKey)
	if err != nil {
		return jsonrel.ParseOpt{}, err
	}
	depth := c.Parse.MaxDepth
	if depth == 0 {
		depth = c.Policy.MaxDepth
	}
	return jsonrel.ParseOpt{
		Strictness: jsonrel.Strictness{OnDuplicateKey: sev},
		MaxDepth:   depth,
		MaxBytes:   c.Parse.MaxBytes,
	}, nil
}

// ToCSVOptions converts the csv section. The result is validated.
func (c *Config) ToCSVOptions() (csvsink.FormatOptions, error) {
	delim, err := singleRune("csv.delimiter", c.CSV.Delimiter)
	if err != nil {
		return csvsink.FormatOptions{}, err
	}
	var quote rune
	if c.CSV.Quote != "" {
		if quote, err = singleRune("csv.quote", c.CSV.Quote); err != nil {
			return csvsink.FormatOptions{}, err
		}
	}
	o := csvsink.FormatOptions{
		Delimiter:          delim,
		Quote:              quote,
		RecordSeparator:    Unescape(c.CSV.RecordSeparator),
		QuoteMode:          csvsink.QuoteMode(strings.ToLower(c.CSV.QuoteMode)),
		PrintHeader:        c.CSV.PrintHeader,
		NullString:         c.CSV.NullString,
		Encoding:           c.CSV.Encoding,
		ArrayJoinSeparator: Unescape(c.CSV.ArrayJoinSeparator),
		ExcelSafe:          c.CSV.ExcelSafe,
		ObjectInlineJSON:   c.CSV.ObjectInlineJSON,
		DateFormat:         c.CSV.DateFormat,
	}
	if err := o.Validate(); err != nil {
		return csvsink.FormatOptions{}, err
	}
	return o, nil
}

func singleRune(key, s string) (rune, error) {
	u := Unescape(s)
	if utf8.RuneCountInString(u) != 1 {
		return 0, fmt.Errorf("config: %s must be a single character, got %q", key, s)
	}
	r, _ := utf8.DecodeRuneInString(u)
	return r, nil
}

// Unescape expands \t \n \r \\ and the words "tab" and "crlf"/"lf".
func Unescape(s string) string {
	switch strings.ToLower(s) {
	case "tab":
		return "\t"
	case "lf":
		return "\n"
	case "crlf":
		return "\r\n"
	}
	if !strings.Contains(s, `\`) {
		return s
	}
	return strings.NewReplacer(`\\`, `\`, `\t`, "\t", `\n`, "\n", `\r`, "\r").Replace(s)
}
