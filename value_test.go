package jsonrel_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reoring/jsonrel"
)

func TestValue_Constructors(t *testing.T) {
	obj := jsonrel.Object(
		jsonrel.Field("b", jsonrel.Int(1)),
		jsonrel.Field("a", jsonrel.Array(jsonrel.Bool(true), jsonrel.Null(), jsonrel.String("x"))),
	)
	assert.Equal(t, jsonrel.KindObject, obj.Kind())
	assert.Equal(t, 2, obj.Len())
	assert.False(t, obj.IsScalar())

	a, ok := obj.Get("a")
	require.True(t, ok)
	assert.True(t, a.IsArray())
	assert.True(t, a.Elems()[0].BoolValue())
	assert.True(t, a.Elems()[1].IsNull())

	_, ok = obj.Get("zzz")
	assert.False(t, ok)
	assert.Equal(t, `{"b":1,"a":[true,null,"x"]}`, obj.JSON())
}

func TestValue_Scalar(t *testing.T) {
	assert.Nil(t, jsonrel.Null().Scalar())
	assert.Equal(t, true, jsonrel.Bool(true).Scalar())
	assert.Equal(t, jsonrel.Number("1.50"), jsonrel.NumberOf("1.50").Scalar())
	assert.Equal(t, "s", jsonrel.String("s").Scalar())
	assert.Equal(t, jsonrel.RawJSON(`[1]`), jsonrel.Array(jsonrel.Int(1)).Scalar())
	assert.Equal(t, jsonrel.RawJSON(`{}`), jsonrel.Object().Scalar())
}

func TestValue_JSONDoesNotEscapeHTML(t *testing.T) {
	v := jsonrel.Object(jsonrel.Field("h", jsonrel.String("<a&b>")))
	assert.Equal(t, `{"h":"<a&b>"}`, v.JSON())
	b, err := v.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, v.JSON(), string(b))
}

func TestValue_ZeroIsNull(t *testing.T) {
	var v jsonrel.Value
	assert.True(t, v.IsNull())
	assert.Equal(t, "null", v.JSON())
}

func TestNumber_Conversions(t *testing.T) {
	i, err := jsonrel.Number("12").Int64()
	require.NoError(t, err)
	assert.Equal(t, int64(12), i)
	f, err := jsonrel.Number("1e2").Float64()
	require.NoError(t, err)
	assert.Equal(t, 100.0, f)
	_, err = jsonrel.Number("1.5").Int64()
	assert.Error(t, err)
}

func TestValue_At(t *testing.T) {
	v := jsonrel.Object(
		jsonrel.Field("a/b", jsonrel.Array(jsonrel.Int(1), jsonrel.Object(jsonrel.Field("c~", jsonrel.String("deep"))))),
	)
	got, ok := v.At("/a~1b/1/c~0")
	require.True(t, ok)
	assert.Equal(t, "deep", got.Text())

	root, ok := v.At("")
	require.True(t, ok)
	assert.Equal(t, v, root)

	_, ok = v.At("/a~1b/9")
	assert.False(t, ok)
	_, ok = v.At("no-slash")
	assert.False(t, ok)
}

func TestPathRef_Pointer(t *testing.T) {
	p := jsonrel.Root().Field("items").Index(2).Field("a/b")
	assert.Equal(t, "/items/2/a~1b", p.Pointer())
	iss := p.Issue("max_depth", "too deep", "limit", 3)
	assert.Equal(t, "/items/2/a~1b", iss.Path)
	assert.Equal(t, 3, iss.Params["limit"])
	assert.Equal(t, "/", jsonrel.Root().Pointer())
}
