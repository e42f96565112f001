package jsonrel

import (
	"strconv"

	json "github.com/goccy/go-json"
)

// Kind enumerates the variants of a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Number is a JSON number kept as its literal source text so no precision is
// lost between parsing and export.
type Number string

func (n Number) String() string { return string(n) }

// Int64 parses the number as an integer.
func (n Number) Int64() (int64, error) { return strconv.ParseInt(string(n), 10, 64) }

// Float64 parses the number as a float.
func (n Number) Float64() (float64, error) { return strconv.ParseFloat(string(n), 64) }

// MarshalJSON emits the literal text unchanged.
func (n Number) MarshalJSON() ([]byte, error) {
	if n == "" {
		return []byte("0"), nil
	}
	return []byte(n), nil
}

// RawJSON is compact JSON text stored in a cell when a nested container is
// inlined instead of becoming a child relation.
type RawJSON string

func (r RawJSON) String() string { return string(r) }

// Member is one field of an object Value.
type Member struct {
	Key   string
	Value Value
}

// Field builds a Member; it reads well inside Object(...).
func Field(key string, v Value) Member { return Member{Key: key, Value: v} }

// Value is the parsed document tree: a tagged union over null, bool, number,
// string, array and object. The zero Value is null.
type Value struct {
	kind    Kind
	b       bool
	s       string
	elems   []Value
	members []Member
}

func Null() Value { return Value{kind: KindNull} }
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }
func String(s string) Value { return Value{kind: KindString, s: s} }
func NumberOf(n Number) Value { return Value{kind: KindNumber, s: string(n)} }
func Array(elems ...Value) Value {
	if elems == nil {
		elems = []Value{}
	}
	return Value{kind: KindArray, elems: elems}
}
func Object(members ...Member) Value {
	if members == nil {
		members = []Member{}
	}
	return Value{kind: KindObject, members: members}
}

// Int and Float are shorthands for numeric values built in code.
func Int(i int64) Value { return NumberOf(Number(strconv.FormatInt(i, 10))) }
func Float(f float64) Value { return NumberOf(Number(strconv.FormatFloat(f, 'g', -1, 64))) }

func (v Value) Kind() Kind { return v.kind }

// IsScalar reports whether v is null, a bool, a number or a string.
func (v Value) IsScalar() bool { return v.kind != KindArray && v.kind != KindObject }

func (v Value) IsNull() bool   { return v.kind == KindNull }
func (v Value) IsArray() bool  { return v.kind == KindArray }
func (v Value) IsObject() bool { return v.kind == KindObject }

// BoolValue returns the boolean payload (false for other kinds).
func (v Value) BoolValue() bool { return v.kind == KindBool && v.b }

// Text returns the string payload or the literal number text.
func (v Value) Text() string {
	if v.kind == KindString || v.kind == KindNumber {
		return v.s
	}
	return ""
}

// Elems returns array elements; nil for other kinds.
func (v Value) Elems() []Value { return v.elems }

// Members returns object members in declaration order; nil for other kinds.
func (v Value) Members() []Member { return v.members }

// Len is the number of elements or members.
func (v Value) Len() int {
	switch v.kind {
	case KindArray:
		return len(v.elems)
	case KindObject:
		return len(v.members)
	default:
		return 0
	}
}

// Get looks up an object member by key.
func (v Value) Get(key string) (Value, bool) {
	for _, m := range v.members {
		if m.Key == key {
			return m.Value, true
		}
	}
	return Value{}, false
}

// Scalar converts a scalar Value into a cell value: nil, bool, Number or string.
// Containers yield their JSON text as RawJSON.
func (v Value) Scalar() any {
	switch v.kind {
	case KindNull:
		return nil
	case KindBool:
		return v.b
	case KindNumber:
		return Number(v.s)
	case KindString:
		return v.s
	default:
		return RawJSON(v.JSON())
	}
}

// JSON renders v as compact JSON text preserving member order.
func (v Value) JSON() string { return string(v.AppendJSON(nil)) }

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) { return v.AppendJSON(nil), nil }

// AppendJSON appends the compact JSON form of v to dst.
func (v Value) AppendJSON(dst []byte) []byte {
	switch v.kind {
	case KindNull:
		return append(dst, "null"...)
	case KindBool:
		return strconv.AppendBool(dst, v.b)
	case KindNumber:
		if v.s == "" {
			return append(dst, '0')
		}
		return append(dst, v.s...)
	case KindString:
		return appendQuoted(dst, v.s)
	case KindArray:
		dst = append(dst, '[')
		for i, e := range v.elems {
			if i > 0 {
				dst = append(dst, ',')
			}
			dst = e.AppendJSON(dst)
		}
		return append(dst, ']')
	case KindObject:
		dst = append(dst, '{')
		for i, m := range v.members {
			if i > 0 {
				dst = append(dst, ',')
			}
			dst = appendQuoted(dst, m.Key)
			dst = append(dst, ':')
			dst = m.Value.AppendJSON(dst)
		}
		return append(dst, '}')
	default:
		return append(dst, "null"...)
	}
}

func appendQuoted(dst []byte, s string) []byte {
	b, err := json.MarshalWithOption(s, json.DisableHTMLEscape())
	if err != nil {
		return strconv.AppendQuote(dst, s)
	}
	return append(dst, b...)
}
