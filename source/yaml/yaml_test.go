package yaml_test

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reoring/jsonrel"
	yamlsrc "github.com/reoring/jsonrel/source/yaml"
)

func decode(t *testing.T, doc string, opts ...jsonrel.ParseOpt) jsonrel.Value {
	t.Helper()
	v, err := yamlsrc.Decode(context.Background(), strings.NewReader(doc), opts...)
	require.NoError(t, err)
	return v
}

func TestDecode_KeepsOrderAndTypes(t *testing.T) {
	v := decode(t, `
b: 1
a: hello
f: .5
h: 0x10
big: 12345678901234567890
on: yes
t: true
n: ~
list: [1, two]
`)
	assert.Equal(t, `{"b":1,"a":"hello","f":0.5,"h":16,"big":12345678901234567890,"on":"yes","t":true,"n":null,"list":[1,"two"]}`, v.JSON())
}

func TestDecode_DuplicateKeys(t *testing.T) {
	doc := "a: 1\nb: 2\na: 3\n"

	t.Run("warn keeps first position and last value", func(t *testing.T) {
		var got []jsonrel.Issue
		v := decode(t, doc, jsonrel.ParseOpt{
			Strictness: jsonrel.Strictness{OnDuplicateKey: jsonrel.Warn},
			IssueSink:  func(is jsonrel.Issue) { got = append(got, is) },
		})
		assert.Equal(t, `{"a":3,"b":2}`, v.JSON())
		require.Len(t, got, 1)
		assert.Equal(t, jsonrel.CodeDuplicateKey, got[0].Code)
		assert.Equal(t, "/a", got[0].Path)
		assert.Equal(t, 3, got[0].Params["line"])
		assert.Equal(t, 1, got[0].Params["first_line"])
	})

	t.Run("error", func(t *testing.T) {
		_, err := yamlsrc.Decode(context.Background(), strings.NewReader(doc),
			jsonrel.ParseOpt{Strictness: jsonrel.Strictness{OnDuplicateKey: jsonrel.Error}})
		require.Error(t, err)
		iss, ok := jsonrel.AsIssues(err)
		require.True(t, ok)
		assert.True(t, iss.HasCode(jsonrel.CodeDuplicateKey))

		var dke *yamlsrc.DuplicateKeyError
		require.True(t, errors.As(err, &dke))
		assert.Equal(t, "a", dke.Key)
		assert.Equal(t, 3, dke.Line)
		assert.Equal(t, 1, dke.FirstLine)
	})

	t.Run("ignore", func(t *testing.T) {
		v := decode(t, doc)
		assert.Equal(t, `{"a":3,"b":2}`, v.JSON())
	})
}

func TestDecode_AliasesAndMerge(t *testing.T) {
	v := decode(t, `
base: &b
  x: 1
  y: 2
copy: *b
item:
  <<: *b
  y: 3
`)
	assert.Equal(t, `{"base":{"x":1,"y":2},"copy":{"x":1,"y":2},"item":{"y":3,"x":1}}`, v.JSON())
}

func TestDecode_Documents(t *testing.T) {
	stream := "a: 1\n---\na: 2\n"

	_, err := yamlsrc.Decode(context.Background(), strings.NewReader(stream))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected data after top-level value")

	docs, err := yamlsrc.DecodeAll(context.Background(), strings.NewReader(stream))
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, `{"a":2}`, docs[1].JSON())

	_, err = yamlsrc.Decode(context.Background(), strings.NewReader(""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty input")
}

func TestDecode_Limits(t *testing.T) {
	_, err := yamlsrc.DecodeBytes(context.Background(), []byte("a:\n  b:\n    c: 1\n"), jsonrel.ParseOpt{MaxDepth: 2})
	require.Error(t, err)
	iss, _ := jsonrel.AsIssues(err)
	require.NotEmpty(t, iss)
	assert.Equal(t, jsonrel.CodeMaxDepth, iss[0].Code)
	assert.Equal(t, "/a/b", iss[0].Path)

	_, err = yamlsrc.DecodeBytes(context.Background(), []byte("a: 123456\n"), jsonrel.ParseOpt{MaxBytes: 4})
	require.Error(t, err)
	iss, _ = jsonrel.AsIssues(err)
	assert.True(t, iss.HasCode(jsonrel.CodeTruncated))
}

func TestSource_Normalizes(t *testing.T) {
	src, err := yamlsrc.Source(context.Background(), strings.NewReader(`
id: 7
tags: [x, y]
items:
  - sku: A
  - sku: B
`))
	require.NoError(t, err)

	res, err := jsonrel.NormalizeFrom(context.Background(), src, jsonrel.DefaultPolicy())
	require.NoError(t, err)
	require.Len(t, res.Relations, 2)
	assert.Equal(t, "items", res.Relations[0].Name())
	assert.Equal(t, 2, res.Relations[0].Len())
	root := res.Relations[1]
	assert.Equal(t, "root", root.Name())
	v, ok := root.Rows()[0].Get("tags")
	require.True(t, ok)
	assert.Equal(t, "x; y", v)
}

// laughs builds a document whose anchors each repeat the previous one ten times.
func laughs(levels int) string {
	var b strings.Builder
	b.WriteString(`l0: &l0 ["lol","lol","lol","lol","lol","lol","lol","lol","lol","lol"]` + "\n")
	for i := 1; i < levels; i++ {
		ref := "*l" + strconv.Itoa(i-1)
		fmt.Fprintf(&b, "l%d: &l%d [%s]\n", i, i, strings.TrimSuffix(strings.Repeat(ref+",", 10), ","))
	}
	return b.String()
}

func TestDecode_ExcessiveAliasing(t *testing.T) {
	doc := []byte(laughs(6))
	for name, opt := range map[string]jsonrel.ParseOpt{
		"with size cap": {MaxBytes: 1 << 20, MaxDepth: 64},
		"no size cap":   {},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := yamlsrc.DecodeBytes(context.Background(), doc, opt)
			require.Error(t, err)
			iss, ok := jsonrel.AsIssues(err)
			require.True(t, ok)
			assert.True(t, iss.HasCode(jsonrel.CodeTruncated))
		})
	}

	v, err := yamlsrc.DecodeBytes(context.Background(), []byte(laughs(2)))
	require.NoError(t, err)
	l1, ok := v.At("/l1")
	require.True(t, ok)
	assert.Equal(t, 10, l1.Len())
}

func TestDecode_AliasExpansionBoundedByMaxBytes(t *testing.T) {
	doc := []byte("x: &x [" + strings.Repeat("1,", 199) + "1]\ny: [*x, *x, *x]\n")

	_, err := yamlsrc.DecodeBytes(context.Background(), doc, jsonrel.ParseOpt{MaxBytes: 500})
	require.Error(t, err)
	iss, _ := jsonrel.AsIssues(err)
	require.NotEmpty(t, iss)
	assert.Equal(t, jsonrel.CodeTruncated, iss[0].Code)
	assert.Contains(t, iss[0].Message, "alias expansion")

	v, err := yamlsrc.DecodeBytes(context.Background(), doc, jsonrel.ParseOpt{MaxBytes: 1000})
	require.NoError(t, err)
	y, ok := v.At("/y")
	require.True(t, ok)
	assert.Equal(t, 3, y.Len())
}
