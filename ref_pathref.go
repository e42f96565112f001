package jsonrel

import (
	"fmt"
	"strconv"
	"strings"
)

// PathRef builds JSON Pointer paths in a chain-safe way and creates Issues.
type PathRef interface {
	Field(name string) PathRef
	Index(i int) PathRef
	Pointer() string
	Issue(code, msg string, kv ...any) Issue
}

// Root returns the PathRef of the document root.
func Root() PathRef { return &pathRef{} }

// ParsePointer splits an RFC 6901 JSON Pointer into a PathRef. "" and "/" are
// the root.
func ParsePointer(ptr string) (PathRef, error) {
	if ptr == "" || ptr == "/" {
		return Root(), nil
	}
	if !strings.HasPrefix(ptr, "/") {
		return nil, fmt.Errorf("jsonrel: json pointer %q must start with '/'", ptr)
	}
	return &pathRef{parts: strings.Split(ptr[1:], "/")}, nil
}

type pathRef struct {
	parts []string // escaped reference tokens
}

func (p *pathRef) Field(name string) PathRef {
	// escape '~' -> '~0', '/' -> '~1' per RFC6901
	esc := strings.ReplaceAll(strings.ReplaceAll(name, "~", "~0"), "/", "~1")
	return &pathRef{parts: append(append([]string{}, p.parts...), esc)}
}

func (p *pathRef) Index(i int) PathRef {
	return &pathRef{parts: append(append([]string{}, p.parts...), strconv.Itoa(i))}
}

func (p *pathRef) Pointer() string {
	if len(p.parts) == 0 {
		return "/"
	}
	return "/" + strings.Join(p.parts, "/")
}

func (p *pathRef) Issue(code, msg string, kv ...any) Issue {
	m := map[string]any{}
	for i := 0; i+1 < len(kv); i += 2 {
		m[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return Issue{Path: p.Pointer(), Code: code, Message: msg, Params: m}
}

var pointerUnescaper = strings.NewReplacer("~1", "/", "~0", "~")

// At resolves a JSON Pointer against v.
func (v Value) At(ptr string) (Value, bool) {
	ref, err := ParsePointer(ptr)
	if err != nil {
		return Value{}, false
	}
	cur := v
	for _, raw := range ref.(*pathRef).parts {
		tok := pointerUnescaper.Replace(raw)
		switch cur.Kind() {
		case KindObject:
			next, ok := cur.Get(tok)
			if !ok {
				return Value{}, false
			}
			cur = next
		case KindArray:
			i, err := strconv.Atoi(tok)
			if err != nil || i < 0 || i >= len(cur.elems) {
				return Value{}, false
			}
			cur = cur.elems[i]
		default:
			return Value{}, false
		}
	}
	return cur, true
}
