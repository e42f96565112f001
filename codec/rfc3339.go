// Package codec converts cell text to typed values and back.
package codec

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Codec converts between a wire form A and a domain form B.
type Codec[A, B any] interface {
	Decode(ctx context.Context, a A) (B, error)
	Encode(ctx context.Context, b B) (A, error)
}

// ISOInstant selects canonical UTC RFC3339 output in TimeLayout.
const ISOInstant = "ISO_INSTANT"

// TimeRFC3339 returns a Codec between RFC3339 strings and time.Time. Encode
// writes the canonical UTC form with trailing zeros trimmed.
func TimeRFC3339() Codec[string, time.Time] { return timeCodec{} }

// TimeLayout is TimeRFC3339 with Encode using a Go reference layout. The
// empty layout and ISOInstant keep the canonical form; "rfc3339" keeps the
// original offset.
func TimeLayout(layout string) Codec[string, time.Time] {
	switch {
	case layout == "" || strings.EqualFold(layout, ISOInstant):
		return timeCodec{}
	case strings.EqualFold(layout, "rfc3339"):
		return timeCodec{layout: time.RFC3339Nano, keepZone: true}
	default:
		return timeCodec{layout: layout, keepZone: true}
	}
}

type timeCodec struct {
	layout   string
	keepZone bool
}

func (c timeCodec) Decode(_ context.Context, s string) (time.Time, error) {
	t, err := parseRFC3339(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("codec: invalid RFC3339 time %q: %w", s, err)
	}
	return t, nil
}

func (c timeCodec) Encode(_ context.Context, t time.Time) (string, error) {
	if t.IsZero() {
		return "", fmt.Errorf("codec: cannot encode zero time")
	}
	if c.layout == "" {
		return formatRFC3339Canonical(t), nil
	}
	if !c.keepZone {
		t = t.UTC()
	}
	return t.Format(c.layout), nil
}

// Reformat decodes a with from and encodes the result with to.
func Reformat[A, B any](ctx context.Context, from, to Codec[A, B], a A) (A, error) {
	b, err := from.Decode(ctx, a)
	if err != nil {
		var zero A
		return zero, err
	}
	return to.Encode(ctx, b)
}

// LooksLikeTime is a cheap prefilter for RFC3339 text: a date followed by T or t.
func LooksLikeTime(s string) bool {
	if len(s) < len("2006-01-02T15:04:05Z") {
		return false
	}
	return s[4] == '-' && s[7] == '-' && (s[10] == 'T' || s[10] == 't') && s[13] == ':'
}

func parseRFC3339(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		if t2, err2 := time.Parse(time.RFC3339, s); err2 == nil {
			return t2, nil
		}
		return time.Time{}, err
	}
	return t, nil
}

func formatRFC3339Canonical(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
