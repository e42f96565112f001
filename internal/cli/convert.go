package cli

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/reoring/jsonrel/internal/pipeline"
)

var inputBindings = []binding{
	{"in", "input.path"},
	{"input-format", "input.format"},
	{"select", "input.select"},
	{"driver", "input.driver"},
	{"on-duplicate-key", "parse.on_duplicate_key"},
	{"max-bytes", "parse.max_bytes"},
}

var policyBindings = []binding{
	{"root-table", "policy.root_relation"},
	{"allow-nested", "policy.allow_child_relations"},
	{"array-strategy", "policy.object_arrays"},
	{"primitive-array", "policy.primitive_arrays"},
	{"add-id", "policy.generate_row_id"},
	{"add-parent-id", "policy.generate_parent_link"},
	{"id-field", "policy.id_column"},
	{"parent-id-field", "policy.parent_link_column"},
	{"norm-join", "policy.join_separator"},
	{"max-depth", "policy.max_depth"},
	{"header-order", "policy.header_order"},
	{"on-collision", "policy.on_column_collision"},
}

var outputBindings = []binding{
	{"out", "output.dir"},
	{"output-format", "output.format"},
	{"sqlite-path", "output.sqlite_path"},
	{"replace", "output.replace"},
	{"delimiter", "csv.delimiter"},
	{"quote", "csv.quote"},
	{"record-sep", "csv.record_separator"},
	{"quote-mode", "csv.quote_mode"},
	{"print-header", "csv.print_header"},
	{"null-literal", "csv.null_string"},
	{"encoding", "csv.encoding"},
	{"csv-array-join", "csv.array_join_separator"},
	{"excel-safe", "csv.excel_safe"},
	{"object-inline-json", "csv.object_inline_json"},
	{"datefmt", "csv.date_format"},
}

func addInputFlags(f *pflag.FlagSet) {
	f.String("in", "", "input file (- for stdin)")
	f.String("input-format", "", "auto|json|yaml (default auto)")
	f.String("select", "", "JSON Pointer (/a/0) or gjson path (a.0) selecting the subtree to convert")
	f.String("driver", "", "JSON driver: go-json|encoding/json")
	f.String("on-duplicate-key", "", "ignore|warn|error (default warn)")
	f.Int64("max-bytes", 0, "reject inputs larger than this many bytes")
}

func addPolicyFlags(f *pflag.FlagSet) {
	f.String("root-table", "", "name of the root relation (default root)")
	f.Bool("allow-nested", true, "create child relations")
	f.Bool("no-nested", false, "inline nested objects and arrays instead of creating child relations")
	f.String("array-strategy", "", "arrays of objects: explode|inline")
	f.String("primitive-array", "", "arrays of scalars: join|explode")
	f.Bool("add-id", true, "generate row ids")
	f.Bool("add-parent-id", true, "generate parent links")
	f.Bool("no-ids", false, "generate neither ids nor parent links")
	f.String("id-field", "", "id column name (default id)")
	f.String("parent-id-field", "", "parent link column name (default parent_id)")
	f.String("norm-join", "", `separator for joined scalar arrays (default "; ")`)
	f.Int("max-depth", 0, "maximum nesting depth (default 64, 0 keeps the configured value)")
	f.String("header-order", "", "sorted|encountered")
	f.String("on-collision", "", "column collisions: ignore|warn|error")
}

func addOutputFlags(f *pflag.FlagSet) {
	f.String("out", "", "output directory for CSV files (default out)")
	f.String("output-format", "", "csv|sqlite")
	f.String("sqlite-path", "", "SQLite database file")
	f.Bool("replace", true, "drop existing SQLite tables first")
	f.String("delimiter", "", `CSV delimiter, escapes like \t allowed`)
	f.String("quote", "", "CSV quote character")
	f.String("record-sep", "", `record separator (\n, \r\n, crlf)`)
	f.String("quote-mode", "", "minimal|all|none|non_numeric")
	f.Bool("print-header", true, "write a header row")
	f.Bool("no-header", false, "omit the header row")
	f.String("null-literal", "", "text written for null and missing cells")
	f.String("encoding", "", "output charset (IANA name, default UTF-8)")
	f.String("csv-array-join", "", "separator for collection cells")
	f.Bool("excel-safe", true, "prefix cells starting with = + - @ with a quote")
	f.Bool("object-inline-json", true, "render object cells as JSON")
	f.String("datefmt", "", "rewrite RFC3339 timestamps: ISO_INSTANT, rfc3339 or a Go layout")
}

// negations maps switch-style flags to the overrides they imply.
func negations(f *pflag.FlagSet) map[string]any {
	out := map[string]any{}
	if v, _ := f.GetBool("no-nested"); v {
		out["policy.allow_child_relations"] = false
	}
	if v, _ := f.GetBool("no-ids"); v {
		out["policy.generate_row_id"] = false
		out["policy.generate_parent_link"] = false
	}
	if f.Lookup("no-header") != nil {
		if v, _ := f.GetBool("no-header"); v {
			out["csv.print_header"] = false
		}
	}
	return out
}

func ConvertCmd(fs afero.Fs) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert [input]",
		Short: "Convert a document into CSV files or SQLite tables",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			extra := negations(cmd.Flags())
			if len(args) == 1 {
				extra["input.path"] = args[0]
			}
			bindings := append(append(append([]binding{}, inputBindings...), policyBindings...), outputBindings...)
			ctx, cfg, err := setup(cmd, fs, bindings, extra)
			if err != nil {
				return err
			}
			sum, err := pipeline.New(fs, cmd.InOrStdin()).Run(ctx, cfg)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, is := range sum.Issues {
				printIssue(cmd.ErrOrStderr(), "warning", is)
			}
			for i, rel := range sum.Relations {
				fmt.Fprintf(w, "%s\t%d rows\t%s\n", rel.Name, rel.Rows, outputFor(sum.Outputs, i))
			}
			return nil
		},
	}
	addInputFlags(cmd.Flags())
	addPolicyFlags(cmd.Flags())
	addOutputFlags(cmd.Flags())
	return cmd
}

// outputFor names the file of relation i; SQLite runs share one database.
func outputFor(outputs []string, i int) string {
	if len(outputs) == 1 {
		return outputs[0]
	}
	if i < len(outputs) {
		return outputs[i]
	}
	return ""
}
