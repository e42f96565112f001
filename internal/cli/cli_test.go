package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	gojson "github.com/goccy/go-json"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reoring/jsonrel"
)

const doc = `{"name":"n","tags":["a","b"],"items":[{"sku":"A"},{"sku":"B"}]}`

func run(t *testing.T, fs afero.Fs, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := RootCmd(fs)
	cmd.SetArgs(append(args, "--log-level", "disabled"))
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func memFs(t *testing.T) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/in/doc.json", []byte(doc), 0o644))
	return fs
}

func TestConvert_CSV(t *testing.T) {
	fs := memFs(t)
	out, _, err := run(t, fs, "", "convert", "/in/doc.json", "--out", "/out", "--no-ids", "--delimiter", `\t`, "--norm-join", "|")
	require.NoError(t, err)
	assert.Contains(t, out, "items\t2 rows\t/out/items.csv")

	root, err := afero.ReadFile(fs, "/out/root.csv")
	require.NoError(t, err)
	assert.Equal(t, "name\ttags\nn\ta|b\n", string(root))

	items, err := afero.ReadFile(fs, "/out/items.csv")
	require.NoError(t, err)
	assert.Equal(t, "items.sku\nA\nB\n", string(items))
}

func TestConvert_StdinAndConfigFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/etc/jsonrel.yaml", []byte("policy:\n  root_relation: doc\ncsv:\n  print_header: false\n"), 0o644))

	_, _, err := run(t, fs, `{"a":1}`, "convert", "--config", "/etc/jsonrel.yaml", "--in", "-", "--out", "/o", "--add-parent-id=false")
	require.NoError(t, err)
	b, err := afero.ReadFile(fs, "/o/doc.csv")
	require.NoError(t, err)
	assert.Equal(t, "1,1\n", string(b))
}

func TestConvert_InvalidPolicy(t *testing.T) {
	_, _, err := run(t, memFs(t), "", "convert", "/in/doc.json", "--out", "/out", "--array-strategy", "sideways")
	require.Error(t, err)

	var buf bytes.Buffer
	PrintError(&buf, err)
	assert.NotEmpty(t, buf.String())
}

func TestConvert_IssuesPrinted(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/d.json", []byte(`{"a":1,"a":2}`), 0o644))

	_, _, err := run(t, fs, "", "convert", "/d.json", "--out", "/o", "--on-duplicate-key", "error")
	require.Error(t, err)
	iss, ok := jsonrel.AsIssues(err)
	require.True(t, ok)
	assert.True(t, iss.HasCode(jsonrel.CodeDuplicateKey))

	var buf bytes.Buffer
	PrintError(&buf, err)
	assert.Equal(t, "error: duplicate_key at /a: duplicate key (key 'a' duplicated)\n", buf.String())

	_, stderr, err := run(t, fs, "", "convert", "/d.json", "--out", "/o", "--lang", "ja")
	require.NoError(t, err)
	assert.Contains(t, stderr, "warning: duplicate_key at /a: キーが重複しています")
}

func TestInspect(t *testing.T) {
	fs := memFs(t)
	out, _, err := run(t, fs, "", "inspect", "/in/doc.json", "--select", "/items")
	require.NoError(t, err)
	assert.Equal(t, "root (2 rows)\n  id, sku\n", out)

	out, _, err = run(t, fs, "", "inspect", "/in/doc.json", "--json")
	require.NoError(t, err)
	var rep inspectReport
	require.NoError(t, gojson.Unmarshal([]byte(out), &rep))
	require.Len(t, rep.Relations, 2)
	assert.Equal(t, "items", rep.Relations[0].Name)
	assert.Equal(t, 2, rep.Relations[0].Rows)

	out, _, err = run(t, fs, "", "inspect", "/in/doc.json", "--dump")
	require.NoError(t, err)
	assert.Contains(t, out, "jsonrel.Relation")

	exists, err := afero.DirExists(fs, "/out")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestCollectOverrides_OnlyChanged(t *testing.T) {
	cmd := ConvertCmd(afero.NewMemMapFs())
	require.NoError(t, cmd.ParseFlags([]string{"--max-depth", "7", "--excel-safe=false"}))
	got := collectOverrides(cmd.Flags(), policyBindings)
	assert.Equal(t, map[string]any{"policy.max_depth": "7"}, got)
	got = collectOverrides(cmd.Flags(), outputBindings)
	assert.Equal(t, map[string]any{"csv.excel_safe": "false"}, got)
}

func TestPrintError_Plain(t *testing.T) {
	var buf bytes.Buffer
	PrintError(&buf, errors.New("boom"))
	assert.Equal(t, "Error: boom\n", buf.String())
}
