package jsonrel

import (
	"fmt"
	"strings"
)

// Severity expresses the severity level for issues.
type Severity int

const (
	Ignore Severity = iota
	Warn
	Error
)

func (s Severity) String() string {
	switch s {
	case Ignore:
		return "ignore"
	case Warn:
		return "warn"
	case Error:
		return "error"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// ParseSeverity is the inverse of Severity.String.
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ignore", "":
		return Ignore, nil
	case "warn", "warning":
		return Warn, nil
	case "error":
		return Error, nil
	default:
		return Ignore, fmt.Errorf("jsonrel: unknown severity %q", s)
	}
}

// Strictness configures enforcement for duplicate keys.
type Strictness struct {
	OnDuplicateKey Severity // Warn or Error (duplicate JSON keys).
}

// ParseOpt bundles decoding options.
type ParseOpt struct {
	Strictness Strictness
	MaxDepth   int   // 0 disables the nesting bound.
	MaxBytes   int64 // 0 disables the size bound.
	FailFast   bool
	// IssueSink receives non-fatal issues (duplicate keys in Warn mode).
	IssueSink func(Issue)
}
