package jsonrel_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reoring/jsonrel"
)

func TestDefaultPolicy(t *testing.T) {
	p := jsonrel.DefaultPolicy()
	assert.Equal(t, "root", p.RootRelation)
	assert.True(t, p.AllowChildRelations)
	assert.Equal(t, jsonrel.ExplodeToChild, p.ObjectArrays)
	assert.Equal(t, jsonrel.Join, p.PrimitiveArrays)
	assert.True(t, p.GenerateRowID)
	assert.True(t, p.GenerateParentLink)
	assert.Equal(t, "id", p.IDColumn)
	assert.Equal(t, "parent_id", p.ParentLinkColumn)
	assert.Equal(t, "; ", p.JoinSeparator)
	assert.Equal(t, 64, p.MaxDepth)
	assert.Equal(t, jsonrel.Sorted, p.HeaderOrder)
	assert.Equal(t, jsonrel.Warn, p.OnColumnCollision)
	assert.NoError(t, p.Validate())
}

func TestPolicy_Validate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*jsonrel.Policy)
		path   string
	}{
		{name: "empty root relation", mutate: func(p *jsonrel.Policy) { p.RootRelation = "" }, path: "/root_relation"},
		{name: "unknown object array strategy", mutate: func(p *jsonrel.Policy) { p.ObjectArrays = "nope" }, path: "/object_arrays"},
		{name: "unknown primitive array strategy", mutate: func(p *jsonrel.Policy) { p.PrimitiveArrays = "" }, path: "/primitive_arrays"},
		{name: "unknown header order", mutate: func(p *jsonrel.Policy) { p.HeaderOrder = "random" }, path: "/header_order"},
		{name: "negative depth", mutate: func(p *jsonrel.Policy) { p.MaxDepth = -1 }, path: "/max_depth"},
		{name: "empty id column", mutate: func(p *jsonrel.Policy) { p.IDColumn = "" }, path: "/id_column"},
		{name: "empty parent column", mutate: func(p *jsonrel.Policy) { p.ParentLinkColumn = "" }, path: "/parent_link_column"},
		{name: "id equals parent", mutate: func(p *jsonrel.Policy) { p.ParentLinkColumn = "id" }, path: "/parent_link_column"},
		{name: "severity out of range", mutate: func(p *jsonrel.Policy) { p.OnColumnCollision = 9 }, path: "/on_column_collision"},
	}
	for _, tc := range cases {
		t.Run("Should reject "+tc.name, func(t *testing.T) {
			p := jsonrel.DefaultPolicy()
			tc.mutate(&p)
			err := p.Validate()
			iss, ok := jsonrel.AsIssues(err)
			require.True(t, ok, "expected Issues, got %v", err)
			require.Len(t, iss, 1)
			assert.Equal(t, jsonrel.CodeInvalidPolicy, iss[0].Code)
			assert.Equal(t, tc.path, iss[0].Path)
		})
	}

	t.Run("Should allow empty column names when the feature is off", func(t *testing.T) {
		p := jsonrel.DefaultPolicy()
		p.GenerateRowID = false
		p.GenerateParentLink = false
		p.IDColumn = ""
		p.ParentLinkColumn = ""
		assert.NoError(t, p.Validate())
	})

	t.Run("Should allow equal names when only one is enabled", func(t *testing.T) {
		p := jsonrel.DefaultPolicy()
		p.GenerateParentLink = false
		p.ParentLinkColumn = "id"
		assert.NoError(t, p.Validate())
	})
}

func TestParseSeverity(t *testing.T) {
	for in, want := range map[string]jsonrel.Severity{"ignore": jsonrel.Ignore, "WARN": jsonrel.Warn, " error ": jsonrel.Error} {
		got, err := jsonrel.ParseSeverity(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
		assert.Equal(t, want, mustSeverity(t, got.String()))
	}
	_, err := jsonrel.ParseSeverity("fatal")
	assert.Error(t, err)
}

func mustSeverity(t *testing.T, s string) jsonrel.Severity {
	t.Helper()
	sev, err := jsonrel.ParseSeverity(s)
	require.NoError(t, err)
	return sev
}
