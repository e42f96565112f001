// Package stream navigates token streams without materializing values.
package stream

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	eng "github.com/reoring/jsonrel/internal/engine"
)

// ErrNotFound is returned when a pointer does not address a value.
var ErrNotFound = errors.New("pointer not found")

// Select advances inner to the value addressed by ref (unescaped JSON Pointer
// reference tokens) and returns a source over that value only. Siblings before
// the target are skipped; the first occurrence of a duplicated key is chosen.
func Select(inner eng.TokenSource, ref []string) (eng.TokenSource, error) {
	tok, err := next(inner)
	if err != nil {
		return nil, err
	}
	for i, want := range ref {
		at := func() error { return fmt.Errorf("%w: %s", ErrNotFound, pointer(ref[:i+1])) }
		switch tok.Kind {
		case eng.KindBeginObject:
			if tok, err = selectMember(inner, want); err != nil {
				if errors.Is(err, ErrNotFound) {
					return nil, at()
				}
				return nil, err
			}
		case eng.KindBeginArray:
			idx, convErr := strconv.Atoi(want)
			if convErr != nil || idx < 0 {
				return nil, at()
			}
			if tok, err = selectElem(inner, idx); err != nil {
				if errors.Is(err, ErrNotFound) {
					return nil, at()
				}
				return nil, err
			}
		default:
			return nil, at()
		}
	}
	return NewSubtreeSource(inner, tok), nil
}

func selectMember(inner eng.TokenSource, want string) (eng.Token, error) {
	for {
		k, err := next(inner)
		if err != nil {
			return eng.Token{}, err
		}
		if k.Kind == eng.KindEndObject {
			return eng.Token{}, ErrNotFound
		}
		if k.Kind != eng.KindKey {
			return eng.Token{}, fmt.Errorf("unexpected %s in object", k.Kind)
		}
		v, err := next(inner)
		if err != nil {
			return eng.Token{}, err
		}
		if k.String == want {
			return v, nil
		}
		if err := Skip(inner, v); err != nil {
			return eng.Token{}, err
		}
	}
}

func selectElem(inner eng.TokenSource, idx int) (eng.Token, error) {
	for i := 0; ; i++ {
		v, err := next(inner)
		if err != nil {
			return eng.Token{}, err
		}
		if v.Kind == eng.KindEndArray {
			return eng.Token{}, ErrNotFound
		}
		if i == idx {
			return v, nil
		}
		if err := Skip(inner, v); err != nil {
			return eng.Token{}, err
		}
	}
}

func next(inner eng.TokenSource) (eng.Token, error) {
	tok, err := inner.NextToken()
	if errors.Is(err, io.EOF) {
		return eng.Token{}, io.ErrUnexpectedEOF
	}
	return tok, err
}

func pointer(ref []string) string {
	p := ""
	for _, r := range ref {
		p = eng.JoinPointer(p, r)
	}
	return p
}
