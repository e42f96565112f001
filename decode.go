package jsonrel

import (
	"context"
	"errors"
	"io"

	eng "github.com/reoring/jsonrel/internal/engine"
)

// ctxCheckEvery is the token interval between context cancellation checks.
const ctxCheckEvery = 4096

// Decode consumes tokens from src and builds an order-preserving Value.
// Duplicate keys that are not rejected keep their first position and take the
// last value. Empty input and data after the root value are parse errors.
// The last opts element wins.
func Decode(ctx context.Context, src Source, opts ...ParseOpt) (Value, error) {
	if src == nil {
		return Value{}, singleIssue(CodeParseError, "nil source")
	}
	opt := lastOpt(opts)
	d := &decoder{ctx: ctx, src: EnforceSourceIfNeeded(src, opt)}
	tok, err := d.next()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Value{}, singleIssue(CodeParseError, "empty input")
		}
		return Value{}, d.toIssues(err)
	}
	v, err := d.value(tok)
	if err != nil {
		return Value{}, d.toIssues(err)
	}
	if tok, err := d.next(); err == nil {
		return Value{}, AppendIssues(nil, Issue{Code: CodeParseError, Path: "/", Message: "unexpected data after top-level value", Offset: tok.Offset})
	} else if !errors.Is(err, io.EOF) {
		return Value{}, d.toIssues(err)
	}
	return v, nil
}

// DecodeReader decodes JSON from r with the current driver. When MaxBytes is
// set the size cap is applied up front, which also covers drivers that cannot
// report offsets.
func DecodeReader(ctx context.Context, r io.Reader, opts ...ParseOpt) (Value, error) {
	opt := lastOpt(opts)
	if opt.MaxBytes > 0 {
		data, err := io.ReadAll(io.LimitReader(r, opt.MaxBytes+1))
		if err != nil {
			return Value{}, AppendIssues(nil, Issue{Code: CodeParseError, Path: "/", Message: err.Error(), Cause: err})
		}
		if int64(len(data)) > opt.MaxBytes {
			return Value{}, AppendIssues(nil, Issue{Code: CodeTruncated, Path: "/", Message: "max bytes exceeded", Offset: opt.MaxBytes})
		}
		return Decode(ctx, JSONBytes(data), opt)
	}
	return Decode(ctx, JSONReader(r), opt)
}

// NormalizeFrom decodes src and normalizes the result. When the parse options
// leave MaxDepth unset the policy's MaxDepth bounds parsing as well. Duplicate
// key warnings are reported in Result.Issues ahead of normalization warnings.
func NormalizeFrom(ctx context.Context, src Source, p Policy, opts ...ParseOpt) (Result, error) {
	if err := p.Validate(); err != nil {
		return Result{}, err
	}
	opt := lastOpt(opts)
	if opt.MaxDepth == 0 {
		opt.MaxDepth = p.MaxDepth
	}
	var warnings Issues
	userSink := opt.IssueSink
	opt.IssueSink = func(is Issue) {
		if is.Code == CodeDuplicateKey && opt.Strictness.OnDuplicateKey == Warn {
			warnings = append(warnings, is)
		}
		if userSink != nil {
			userSink(is)
		}
	}
	root, err := Decode(ctx, src, opt)
	if err != nil {
		return Result{}, err
	}
	res, err := NormalizeWithReport(root, p)
	if err != nil {
		return Result{}, err
	}
	if len(warnings) > 0 {
		res.Issues = append(warnings, res.Issues...)
	}
	return res, nil
}

func lastOpt(opts []ParseOpt) ParseOpt {
	if len(opts) > 0 {
		return opts[len(opts)-1]
	}
	return ParseOpt{}
}

type decoder struct {
	ctx context.Context
	src Source
	n   int
}

func (d *decoder) next() (Token, error) {
	d.n++
	if d.ctx != nil && d.n%ctxCheckEvery == 0 {
		if err := d.ctx.Err(); err != nil {
			return Token{}, err
		}
	}
	return d.src.NextToken()
}

// advance reads a token that must exist; EOF becomes ErrUnexpectedEOF.
func (d *decoder) advance() (Token, error) {
	tok, err := d.next()
	if errors.Is(err, io.EOF) {
		return Token{}, io.ErrUnexpectedEOF
	}
	return tok, err
}

func (d *decoder) value(tok Token) (Value, error) {
	switch tok.Kind {
	case TokenBeginObject:
		return d.object()
	case TokenBeginArray:
		return d.array()
	case TokenString:
		return String(tok.String), nil
	case TokenNumber:
		return NumberOf(Number(tok.Number)), nil
	case TokenBool:
		return Bool(tok.Bool), nil
	case TokenNull:
		return Null(), nil
	default:
		return Value{}, errUnexpectedToken(tok)
	}
}

func (d *decoder) object() (Value, error) {
	members := []Member{}
	var index map[string]int
	for {
		tok, err := d.advance()
		if err != nil {
			return Value{}, err
		}
		if tok.Kind == TokenEndObject {
			return Object(members...), nil
		}
		if tok.Kind != TokenKey {
			return Value{}, errUnexpectedToken(tok)
		}
		vt, err := d.advance()
		if err != nil {
			return Value{}, err
		}
		v, err := d.value(vt)
		if err != nil {
			return Value{}, err
		}
		if index == nil {
			index = make(map[string]int)
		}
		if i, dup := index[tok.String]; dup {
			members[i].Value = v
			continue
		}
		index[tok.String] = len(members)
		members = append(members, Member{Key: tok.String, Value: v})
	}
}

func (d *decoder) array() (Value, error) {
	elems := []Value{}
	for {
		tok, err := d.advance()
		if err != nil {
			return Value{}, err
		}
		if tok.Kind == TokenEndArray {
			return Array(elems...), nil
		}
		v, err := d.value(tok)
		if err != nil {
			return Value{}, err
		}
		elems = append(elems, v)
	}
}

type unexpectedTokenError struct{ tok Token }

func (e unexpectedTokenError) Error() string { return "unexpected token" }

func errUnexpectedToken(tok Token) error { return unexpectedTokenError{tok: tok} }

func (d *decoder) toIssues(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if ii, ok := AsIssues(err); ok {
		return ii
	}
	var ie eng.IssueError
	if errors.As(err, &ie) {
		return AppendIssues(nil, fromEngineIssue(ie.SimpleIssue))
	}
	var ut unexpectedTokenError
	if errors.As(err, &ut) {
		return AppendIssues(nil, Issue{Code: CodeParseError, Path: "/", Message: "unexpected token", Offset: ut.tok.Offset})
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return AppendIssues(nil, Issue{Code: CodeParseError, Path: "/", Message: "unexpected end of input", Offset: d.src.Location(), Cause: err})
	}
	return AppendIssues(nil, Issue{Code: CodeParseError, Path: "/", Message: err.Error(), Offset: d.src.Location(), Cause: err})
}
