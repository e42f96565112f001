package jsonrel_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reoring/jsonrel"
)

func decodeIssues(t *testing.T, err error) jsonrel.Issues {
	t.Helper()
	require.Error(t, err)
	iss, ok := jsonrel.AsIssues(err)
	require.Truef(t, ok, "expected Issues, got %T: %v", err, err)
	require.NotEmpty(t, iss)
	return iss
}

func TestDecode_PreservesOrderAndLiterals(t *testing.T) {
	v := mustDecode(t, `{"z":1.50,"a":[1e2,-0,"s"],"m":{"k":null,"b":false}}`)
	assert.Equal(t, `{"z":1.50,"a":[1e2,-0,"s"],"m":{"k":null,"b":false}}`, v.JSON())
	keys := []string{}
	for _, m := range v.Members() {
		keys = append(keys, m.Key)
	}
	assert.Equal(t, []string{"z", "a", "m"}, keys)
}

func TestDecode_DuplicateKeys(t *testing.T) {
	ctx := context.Background()
	js := []byte(`{"a":1,"b":2,"a":3}`)

	t.Run("Should keep first position and last value when ignored", func(t *testing.T) {
		v, err := jsonrel.Decode(ctx, jsonrel.JSONBytes(js))
		require.NoError(t, err)
		assert.Equal(t, `{"a":3,"b":2}`, v.JSON())
	})

	t.Run("Should fail with a pointer under Error", func(t *testing.T) {
		opt := jsonrel.ParseOpt{Strictness: jsonrel.Strictness{OnDuplicateKey: jsonrel.Error}}
		_, err := jsonrel.Decode(ctx, jsonrel.JSONBytes(js), opt)
		iss := decodeIssues(t, err)
		assert.Equal(t, jsonrel.CodeDuplicateKey, iss[0].Code)
		assert.Equal(t, "/a", iss[0].Path)
	})

	t.Run("Should report the nested path", func(t *testing.T) {
		opt := jsonrel.ParseOpt{Strictness: jsonrel.Strictness{OnDuplicateKey: jsonrel.Error}}
		_, err := jsonrel.Decode(ctx, jsonrel.JSONBytes([]byte(`[{"a":1,"a":2}]`)), opt)
		iss := decodeIssues(t, err)
		assert.Equal(t, "/0/a", iss[0].Path)
	})

	t.Run("Should forward warnings to the sink", func(t *testing.T) {
		var got []jsonrel.Issue
		opt := jsonrel.ParseOpt{
			Strictness: jsonrel.Strictness{OnDuplicateKey: jsonrel.Warn},
			IssueSink:  func(is jsonrel.Issue) { got = append(got, is) },
		}
		_, err := jsonrel.Decode(ctx, jsonrel.JSONBytes(js), opt)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, jsonrel.CodeDuplicateKey, got[0].Code)
	})
}

func TestDecode_Limits(t *testing.T) {
	ctx := context.Background()

	t.Run("Should reject nesting past MaxDepth", func(t *testing.T) {
		_, err := jsonrel.Decode(ctx, jsonrel.JSONBytes([]byte(`{"a":{"b":{"c":1}}}`)), jsonrel.ParseOpt{MaxDepth: 2})
		iss := decodeIssues(t, err)
		assert.Equal(t, jsonrel.CodeMaxDepth, iss[0].Code)
		assert.Equal(t, "/a/b", iss[0].Path)
	})

	t.Run("Should truncate readers past MaxBytes", func(t *testing.T) {
		data := append([]byte("{}"), bytes.Repeat([]byte(" "), 1024)...)
		_, err := jsonrel.DecodeReader(ctx, bytes.NewReader(data), jsonrel.ParseOpt{MaxBytes: 2})
		iss := decodeIssues(t, err)
		assert.Equal(t, jsonrel.CodeTruncated, iss[0].Code)
		assert.Equal(t, "/", iss[0].Path)
	})

	t.Run("Should accept readers within MaxBytes", func(t *testing.T) {
		v, err := jsonrel.DecodeReader(ctx, strings.NewReader(`{"a":1}`), jsonrel.ParseOpt{MaxBytes: 64})
		require.NoError(t, err)
		assert.Equal(t, 1, v.Len())
	})
}

func TestDecode_Malformed(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name string
		in   string
	}{
		{name: "empty", in: ``},
		{name: "whitespace only", in: "  \n"},
		{name: "truncated object", in: `{"a":1`},
		{name: "trailing value", in: `{} {}`},
		{name: "syntax error", in: `{"a":}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := jsonrel.Decode(ctx, jsonrel.JSONBytes([]byte(tc.in)))
			iss := decodeIssues(t, err)
			assert.Equal(t, jsonrel.CodeParseError, iss[0].Code)
		})
	}
}

func TestDecode_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	big := "[" + strings.Repeat("1,", 10000) + "1]"
	_, err := jsonrel.Decode(ctx, jsonrel.JSONBytes([]byte(big)))
	require.ErrorIs(t, err, context.Canceled)
}

func TestNormalizeFrom(t *testing.T) {
	ctx := context.Background()

	t.Run("Should decode and normalize in one call", func(t *testing.T) {
		res, err := jsonrel.NormalizeFrom(ctx, jsonrel.JSONReader(strings.NewReader(`{"tags":["a","b"]}`)), jsonrel.DefaultPolicy())
		require.NoError(t, err)
		require.Len(t, res.Relations, 1)
		assert.Equal(t, "a; b", cell(t, res.Relations[0], 0, "tags"))
	})

	t.Run("Should bound parsing by the policy depth", func(t *testing.T) {
		p := jsonrel.DefaultPolicy()
		p.MaxDepth = 1
		_, err := jsonrel.NormalizeFrom(ctx, jsonrel.JSONBytes([]byte(`{"a":{"b":1}}`)), p)
		iss := decodeIssues(t, err)
		assert.Equal(t, jsonrel.CodeMaxDepth, iss[0].Code)
		assert.Equal(t, "/a", iss[0].Path)
	})

	t.Run("Should report duplicate key warnings before collisions", func(t *testing.T) {
		opt := jsonrel.ParseOpt{Strictness: jsonrel.Strictness{OnDuplicateKey: jsonrel.Warn}}
		res, err := jsonrel.NormalizeFrom(ctx, jsonrel.JSONBytes([]byte(`{"id":1,"id":2}`)), jsonrel.DefaultPolicy(), opt)
		require.NoError(t, err)
		require.Len(t, res.Issues, 2)
		assert.Equal(t, jsonrel.CodeDuplicateKey, res.Issues[0].Code)
		assert.Equal(t, jsonrel.CodeColumnCollision, res.Issues[1].Code)
		assert.Equal(t, jsonrel.Number("2"), cell(t, res.Relations[0], 0, "id"))
	})
}

func TestIssues_Error(t *testing.T) {
	iss := jsonrel.Issues{
		{Code: "a", Path: "/1"},
		{Code: "b", Path: "/2", Message: "m"},
		{Code: "c", Path: "/3"},
		{Code: "d", Path: "/4"},
	}
	assert.Equal(t, "a at /1; b at /2: m; c at /3; ... (total 4)", iss.Error())
	assert.True(t, iss.HasCode("d"))
	assert.False(t, iss.HasCode("e"))
	_, ok := jsonrel.AsIssues(nil)
	assert.False(t, ok)
}

func TestSelectSource(t *testing.T) {
	doc := `{"meta":{"n":1},"data":{"a/b":[{"id":1},{"id":2}]}}`

	src, err := jsonrel.SelectSource(jsonrel.JSONBytes([]byte(doc)), "/data/a~1b")
	require.NoError(t, err)
	v, err := jsonrel.Decode(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, `[{"id":1},{"id":2}]`, v.JSON())

	_, err = jsonrel.SelectSource(jsonrel.JSONBytes([]byte(doc)), "/data/missing")
	assert.ErrorIs(t, err, jsonrel.ErrPointerNotFound)

	_, err = jsonrel.SelectSource(jsonrel.JSONBytes([]byte(doc)), "data")
	assert.Error(t, err)
}
