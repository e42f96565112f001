// Package yaml decodes YAML documents into jsonrel values so they can be
// normalized like JSON input.
package yaml

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	gojson "github.com/goccy/go-json"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/reoring/jsonrel"
)

// DuplicateKeyError reports a duplicate mapping key with the positions of
// both occurrences.
type DuplicateKeyError struct {
	Key       string
	FirstLine int
	FirstCol  int
	Line      int
	Col       int
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate YAML key %q at %d:%d (first at %d:%d)", e.Key, e.Line, e.Col, e.FirstLine, e.FirstCol)
}

// Decode reads exactly one YAML document from r. Mapping order is kept,
// aliases and merge keys are resolved, and duplicate keys follow
// opt.Strictness.OnDuplicateKey (the last value wins at the first position).
func Decode(ctx context.Context, r io.Reader, opts ...jsonrel.ParseOpt) (jsonrel.Value, error) {
	docs, err := decode(ctx, r, lastOpt(opts), 2)
	if err != nil {
		return jsonrel.Value{}, err
	}
	switch len(docs) {
	case 0:
		return jsonrel.Value{}, parseIssue("empty input", nil)
	case 1:
		return docs[0], nil
	default:
		return jsonrel.Value{}, parseIssue("unexpected data after top-level value", nil)
	}
}

// DecodeAll reads every document of a multi-document stream.
func DecodeAll(ctx context.Context, r io.Reader, opts ...jsonrel.ParseOpt) ([]jsonrel.Value, error) {
	return decode(ctx, r, lastOpt(opts), -1)
}

// DecodeBytes is Decode over an in-memory document.
func DecodeBytes(ctx context.Context, b []byte, opts ...jsonrel.ParseOpt) (jsonrel.Value, error) {
	return Decode(ctx, bytes.NewReader(b), opts...)
}

func lastOpt(opts []jsonrel.ParseOpt) jsonrel.ParseOpt {
	if len(opts) > 0 {
		return opts[len(opts)-1]
	}
	return jsonrel.ParseOpt{}
}

func decode(ctx context.Context, r io.Reader, opt jsonrel.ParseOpt, limit int) ([]jsonrel.Value, error) {
	if opt.MaxBytes > 0 {
		data, err := io.ReadAll(io.LimitReader(r, opt.MaxBytes+1))
		if err != nil {
			return nil, parseIssue(err.Error(), err)
		}
		if int64(len(data)) > opt.MaxBytes {
			return nil, jsonrel.AppendIssues(nil, jsonrel.Issue{
				Code: jsonrel.CodeTruncated, Path: "/", Message: "max bytes exceeded", Offset: opt.MaxBytes,
			})
		}
		r = bytes.NewReader(data)
	}
	dec := yamlv3.NewDecoder(r)
	c := &converter{ctx: ctx, opt: opt}
	var out []jsonrel.Value
	for limit < 0 || len(out) < limit {
		var doc yamlv3.Node
		if err := dec.Decode(&doc); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, parseIssue(err.Error(), err)
		}
		if len(doc.Content) == 0 {
			continue
		}
		v, err := c.convert(doc.Content[0], jsonrel.Root(), 0)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func parseIssue(msg string, cause error) jsonrel.Issues {
	return jsonrel.AppendIssues(nil, jsonrel.Issue{Code: jsonrel.CodeParseError, Path: "/", Message: msg, Cause: cause, Offset: -1})
}

type converter struct {
	ctx   context.Context
	opt   jsonrel.ParseOpt
	nodes int
	// aliasNodes counts nodes produced while expanding aliases.
	aliasNodes int
	aliasDepth int
}

func (c *converter) convert(n *yamlv3.Node, at jsonrel.PathRef, depth int) (jsonrel.Value, error) {
	c.nodes++
	if c.aliasDepth > 0 {
		c.aliasNodes++
		if err := c.checkAliasing(at); err != nil {
			return jsonrel.Value{}, err
		}
	}
	if c.nodes%1024 == 0 {
		if err := c.ctx.Err(); err != nil {
			return jsonrel.Value{}, err
		}
	}
	switch n.Kind {
	case yamlv3.AliasNode:
		c.aliasDepth++
		v, err := c.convert(n.Alias, at, depth)
		c.aliasDepth--
		return v, err
	case yamlv3.DocumentNode:
		if len(n.Content) == 0 {
			return jsonrel.Null(), nil
		}
		return c.convert(n.Content[0], at, depth)
	case yamlv3.MappingNode, yamlv3.SequenceNode:
		depth++
		if c.opt.MaxDepth > 0 && depth > c.opt.MaxDepth {
			return jsonrel.Value{}, jsonrel.AppendIssues(nil, at.Issue(jsonrel.CodeMaxDepth,
				fmt.Sprintf("nesting depth %d exceeds limit %d", depth, c.opt.MaxDepth),
				"depth", depth, "limit", c.opt.MaxDepth, "line", n.Line, "column", n.Column))
		}
		if n.Kind == yamlv3.SequenceNode {
			return c.sequence(n, at, depth)
		}
		return c.mapping(n, at, depth)
	case yamlv3.ScalarNode:
		return scalar(n)
	default:
		return jsonrel.Null(), nil
	}
}

// checkAliasing bounds alias expansion. Every expanded node renders to at
// least one byte, so more expanded nodes than MaxBytes exceed the size cap.
// Independently of MaxBytes, the share of expanded nodes is capped the way
// yaml.v3 does when decoding into Go values.
func (c *converter) checkAliasing(at jsonrel.PathRef) error {
	if c.opt.MaxBytes > 0 && int64(c.aliasNodes) > c.opt.MaxBytes {
		return jsonrel.AppendIssues(nil, at.Issue(jsonrel.CodeTruncated,
			fmt.Sprintf("alias expansion exceeds %d nodes", c.opt.MaxBytes), "limit", c.opt.MaxBytes))
	}
	if c.aliasNodes > 100 && c.nodes > 1000 && float64(c.aliasNodes)/float64(c.nodes) > allowedAliasRatio(c.nodes) {
		return jsonrel.AppendIssues(nil, at.Issue(jsonrel.CodeTruncated,
			"document contains excessive aliasing", "limit", c.nodes))
	}
	return nil
}

// allowedAliasRatio allows almost any aliasing in small documents and at most
// 10% expanded nodes in very large ones.
func allowedAliasRatio(nodes int) float64 {
	const lo, hi = 400_000, 4_000_000
	switch {
	case nodes <= lo:
		return 0.99
	case nodes >= hi:
		return 0.10
	default:
		return 0.99 - 0.89*float64(nodes-lo)/float64(hi-lo)
	}
}

func (c *converter) sequence(n *yamlv3.Node, at jsonrel.PathRef, depth int) (jsonrel.Value, error) {
	elems := make([]jsonrel.Value, 0, len(n.Content))
	for i, child := range n.Content {
		v, err := c.convert(child, at.Index(i), depth)
		if err != nil {
			return jsonrel.Value{}, err
		}
		elems = append(elems, v)
	}
	return jsonrel.Array(elems...), nil
}

type keyPos struct {
	index     int
	line, col int
}

func (c *converter) mapping(n *yamlv3.Node, at jsonrel.PathRef, depth int) (jsonrel.Value, error) {
	members := make([]jsonrel.Member, 0, len(n.Content)/2)
	seen := make(map[string]keyPos, len(n.Content)/2)
	var merged []jsonrel.Member

	for i := 0; i+1 < len(n.Content); i += 2 {
		k, vn := n.Content[i], n.Content[i+1]
		if k.Kind == yamlv3.ScalarNode && k.ShortTag() == "!!merge" {
			mm, err := c.mergeSources(vn, at, depth)
			if err != nil {
				return jsonrel.Value{}, err
			}
			merged = append(merged, mm...)
			continue
		}
		key := k.Value
		v, err := c.convert(vn, at.Field(key), depth)
		if err != nil {
			return jsonrel.Value{}, err
		}
		if pos, dup := seen[key]; dup {
			if err := c.duplicate(at, key, pos, k); err != nil {
				return jsonrel.Value{}, err
			}
			members[pos.index].Value = v
			continue
		}
		seen[key] = keyPos{index: len(members), line: k.Line, col: k.Column}
		members = append(members, jsonrel.Field(key, v))
	}

	// Merged keys never override explicit ones; among merge sources the first wins.
	for _, m := range merged {
		if _, ok := seen[m.Key]; ok {
			continue
		}
		seen[m.Key] = keyPos{index: len(members)}
		members = append(members, m)
	}
	return jsonrel.Object(members...), nil
}

func (c *converter) mergeSources(vn *yamlv3.Node, at jsonrel.PathRef, depth int) ([]jsonrel.Member, error) {
	srcs := []*yamlv3.Node{vn}
	if vn.Kind == yamlv3.SequenceNode {
		srcs = vn.Content
	}
	var out []jsonrel.Member
	for _, s := range srcs {
		v, err := c.convert(s, at, depth-1)
		if err != nil {
			return nil, err
		}
		if !v.IsObject() {
			return nil, jsonrel.AppendIssues(nil, at.Issue(jsonrel.CodeParseError,
				"merge key value must be a mapping", "line", s.Line, "column", s.Column))
		}
		out = append(out, v.Members()...)
	}
	return out, nil
}

func (c *converter) duplicate(at jsonrel.PathRef, key string, first keyPos, k *yamlv3.Node) error {
	sev := c.opt.Strictness.OnDuplicateKey
	if sev == jsonrel.Ignore {
		return nil
	}
	derr := &DuplicateKeyError{Key: key, FirstLine: first.line, FirstCol: first.col, Line: k.Line, Col: k.Column}
	is := at.Field(key).Issue(jsonrel.CodeDuplicateKey, fmt.Sprintf("key '%s' duplicated", key),
		"key", key, "line", k.Line, "column", k.Column, "first_line", first.line, "first_column", first.col)
	is.Cause = derr
	is.Offset = -1
	if sev == jsonrel.Error {
		return jsonrel.AppendIssues(nil, is)
	}
	if c.opt.IssueSink != nil {
		c.opt.IssueSink(is)
	}
	return nil
}

// scalar resolves core-schema tags; anything else (timestamps, binary,
// custom tags) stays a string.
func scalar(n *yamlv3.Node) (jsonrel.Value, error) {
	switch n.ShortTag() {
	case "!!null":
		return jsonrel.Null(), nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return jsonrel.String(n.Value), nil
		}
		return jsonrel.Bool(b), nil
	case "!!int":
		if gojson.Valid([]byte(n.Value)) {
			return jsonrel.NumberOf(jsonrel.Number(n.Value)), nil
		}
		var i int64
		if err := n.Decode(&i); err != nil {
			return jsonrel.String(n.Value), nil
		}
		return jsonrel.Int(i), nil
	case "!!float":
		if gojson.Valid([]byte(n.Value)) {
			return jsonrel.NumberOf(jsonrel.Number(n.Value)), nil
		}
		var f float64
		if err := n.Decode(&f); err != nil {
			return jsonrel.String(n.Value), nil
		}
		if s := strconv.FormatFloat(f, 'g', -1, 64); gojson.Valid([]byte(s)) {
			return jsonrel.NumberOf(jsonrel.Number(s)), nil
		}
		// .inf and .nan have no JSON number form.
		return jsonrel.String(n.Value), nil
	default:
		return jsonrel.String(n.Value), nil
	}
}

// Source adapts a decoded YAML document to the jsonrel token stream so it can
// be passed to jsonrel.NormalizeFrom.
func Source(ctx context.Context, r io.Reader, opts ...jsonrel.ParseOpt) (jsonrel.Source, error) {
	v, err := Decode(ctx, r, opts...)
	if err != nil {
		return nil, err
	}
	return jsonrel.JSONBytes(v.AppendJSON(nil)), nil
}
