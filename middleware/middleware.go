// Package middleware holds transport-neutral helpers for HTTP handlers that
// normalize request bodies.
package middleware

import (
	"context"

	"github.com/reoring/jsonrel"
	"github.com/reoring/jsonrel/i18n"
)

type ctxKeyResult struct{}

// ContextWithResult attaches a normalization result to the context.
func ContextWithResult(ctx context.Context, res jsonrel.Result) context.Context {
	return context.WithValue(ctx, ctxKeyResult{}, res)
}

// ResultFromContext retrieves the result stored by ContextWithResult.
func ResultFromContext(ctx context.Context) (jsonrel.Result, bool) {
	v, ok := ctx.Value(ctxKeyResult{}).(jsonrel.Result)
	return v, ok
}

// DefaultParseOpt returns the parse options for HTTP bodies: duplicate keys
// are errors and nesting is bounded at 64.
func DefaultParseOpt() jsonrel.ParseOpt {
	return jsonrel.ParseOpt{
		Strictness: jsonrel.Strictness{OnDuplicateKey: jsonrel.Error},
		MaxDepth:   64,
	}
}

// IssueJSON is the wire form of an Issue.
type IssueJSON struct {
	Path    string `json:"path"`
	Code    string `json:"code"`
	Message string `json:"message"`
	// Text is the localized summary for Code.
	Text   string         `json:"text"`
	Offset int64          `json:"offset,omitempty"`
	Params map[string]any `json:"params,omitempty"`
}

// Issues converts issues to their wire form.
func Issues(iss jsonrel.Issues) []IssueJSON {
	out := make([]IssueJSON, 0, len(iss))
	for _, is := range iss {
		off := is.Offset
		if off < 0 {
			off = 0
		}
		out = append(out, IssueJSON{
			Path:    is.Path,
			Code:    is.Code,
			Message: is.Message,
			Text:    i18n.T(is.Code, i18n.Params(is.Params)),
			Offset:  off,
			Params:  is.Params,
		})
	}
	return out
}

// ErrorPayload shapes Issues for JSON responses.
func ErrorPayload(iss jsonrel.Issues) map[string]any {
	return map[string]any{"issues": Issues(iss)}
}
