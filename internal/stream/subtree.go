package stream

import (
	"errors"
	"io"

	eng "github.com/reoring/jsonrel/internal/engine"
)

// SubtreeSource replays a preloaded first token and then streams the rest of
// the same value from inner. It returns io.EOF once the value is complete,
// leaving any further tokens of inner unread.
type SubtreeSource struct {
	inner  eng.TokenSource
	first  *eng.Token
	depth  int
	done   bool
	offset int64
}

// NewSubtreeSource returns a source over the value that starts with first.
func NewSubtreeSource(inner eng.TokenSource, first eng.Token) *SubtreeSource {
	return &SubtreeSource{inner: inner, first: &first, offset: first.Offset}
}

func (s *SubtreeSource) NextToken() (eng.Token, error) {
	if s.done {
		return eng.Token{}, io.EOF
	}
	var tok eng.Token
	if s.first != nil {
		tok, s.first = *s.first, nil
	} else {
		t, err := s.inner.NextToken()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return eng.Token{}, io.ErrUnexpectedEOF
			}
			return eng.Token{}, err
		}
		tok = t
	}
	switch tok.Kind {
	case eng.KindBeginObject, eng.KindBeginArray:
		s.depth++
	case eng.KindEndObject, eng.KindEndArray:
		s.depth--
	}
	if s.depth <= 0 {
		s.done = true
	}
	return tok, nil
}

// Location reports offsets relative to the subtree start when inner knows them.
func (s *SubtreeSource) Location() int64 {
	loc := s.inner.Location()
	if loc < 0 || s.offset < 0 {
		return loc
	}
	return loc - s.offset
}

// Skip consumes the rest of the value that starts with first.
func Skip(inner eng.TokenSource, first eng.Token) error {
	sub := NewSubtreeSource(inner, first)
	for {
		if _, err := sub.NextToken(); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}
