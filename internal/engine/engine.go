package engine

// Kind represents token kinds from a generic source.
type Kind int

const (
	KindBeginObject Kind = iota
	KindEndObject
	KindBeginArray
	KindEndArray
	KindKey
	KindString
	KindNumber
	KindBool
	KindNull
)

func (k Kind) String() string {
	switch k {
	case KindBeginObject:
		return "begin_object"
	case KindEndObject:
		return "end_object"
	case KindBeginArray:
		return "begin_array"
	case KindEndArray:
		return "end_array"
	case KindKey:
		return "key"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindNull:
		return "null"
	default:
		return "unknown"
	}
}

// Token represents a streaming token with approximate input offset.
type Token struct {
	Kind   Kind
	String string
	Number string // literal text
	Bool   bool
	Offset int64
}

// TokenSource is a minimal interface required by the engine.
type TokenSource interface {
	NextToken() (Token, error)
	Location() int64
}

// DuplicateStrictness controls duplicate key handling.
type DuplicateStrictness int

const (
	DupIgnore DuplicateStrictness = iota
	DupWarn
	DupError
)

// SimpleIssue is a minimal issue representation used by internal helpers.
type SimpleIssue struct {
	Code    string
	Path    string
	Message string
	Offset  int64
}

// IssueError is a lightweight error carrying a SimpleIssue.
type IssueError struct{ SimpleIssue }

func (e IssueError) Error() string { return e.Code + " at " + e.Path + ": " + e.Message }

// Frame tracking shared by the enforcement wrapper and the drivers: whether the
// next string inside an object is a key.
type containerKind int

const (
	kindObject containerKind = iota
	kindArray
)

// KeyTracker tells drivers whether a string token is an object key. Drivers that
// only see raw decoder tokens (strings without a key/value distinction) embed it.
type KeyTracker struct {
	stack []keyFrame
}

type keyFrame struct {
	kind         containerKind
	expectingKey bool
}

// Open records a container start.
func (t *KeyTracker) Open(object bool) {
	if object {
		t.stack = append(t.stack, keyFrame{kind: kindObject, expectingKey: true})
		return
	}
	t.stack = append(t.stack, keyFrame{kind: kindArray})
}

// Close records a container end; the enclosing object's value slot is filled.
func (t *KeyTracker) Close() {
	if n := len(t.stack); n > 0 {
		t.stack = t.stack[:n-1]
	}
	t.ValueDone()
}

// IsKey reports whether the next string is a key and consumes the key slot.
func (t *KeyTracker) IsKey() bool {
	if n := len(t.stack); n > 0 {
		top := &t.stack[n-1]
		if top.kind == kindObject && top.expectingKey {
			top.expectingKey = false
			return true
		}
	}
	return false
}

// ValueDone marks the pending object member's value as consumed.
func (t *KeyTracker) ValueDone() {
	if n := len(t.stack); n > 0 {
		top := &t.stack[n-1]
		if top.kind == kindObject && !top.expectingKey {
			top.expectingKey = true
		}
	}
}
