package cli

import (
	"fmt"
	"strings"

	"github.com/davecgh/go-spew/spew"
	gojson "github.com/goccy/go-json"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/tidwall/pretty"

	"github.com/reoring/jsonrel"
	"github.com/reoring/jsonrel/internal/pipeline"
	"github.com/reoring/jsonrel/middleware"
)

type inspectRelation struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Rows    int      `json:"rows"`
}

type inspectReport struct {
	Relations []inspectRelation      `json:"relations"`
	Issues    []middleware.IssueJSON `json:"issues,omitempty"`
}

// InspectCmd normalizes without writing and prints the relation layout.
func InspectCmd(fs afero.Fs) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect [input]",
		Short: "Show the relations a document would produce",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			extra := negations(cmd.Flags())
			if len(args) == 1 {
				extra["input.path"] = args[0]
			}
			ctx, cfg, err := setup(cmd, fs, append(append([]binding{}, inputBindings...), policyBindings...), extra)
			if err != nil {
				return err
			}
			res, err := pipeline.New(fs, cmd.InOrStdin()).Normalize(ctx, cfg)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if dump, _ := cmd.Flags().GetBool("dump"); dump {
				spew.Fdump(w, res.Relations)
				return nil
			}
			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				b, err := gojson.Marshal(report(res))
				if err != nil {
					return err
				}
				_, err = w.Write(pretty.Pretty(b))
				return err
			}
			for _, rel := range res.Relations {
				fmt.Fprintf(w, "%s (%d rows)\n  %s\n", rel.Name(), rel.Len(), strings.Join(rel.Columns(), ", "))
			}
			for _, is := range res.Issues {
				printIssue(cmd.ErrOrStderr(), "warning", is)
			}
			return nil
		},
	}
	addInputFlags(cmd.Flags())
	addPolicyFlags(cmd.Flags())
	cmd.Flags().Bool("json", false, "print the report as JSON")
	cmd.Flags().Bool("dump", false, "dump the relations with go-spew")
	return cmd
}

func report(res jsonrel.Result) inspectReport {
	r := inspectReport{Relations: make([]inspectRelation, 0, len(res.Relations))}
	for _, rel := range res.Relations {
		r.Relations = append(r.Relations, inspectRelation{Name: rel.Name(), Columns: rel.Columns(), Rows: rel.Len()})
	}
	if len(res.Issues) > 0 {
		r.Issues = middleware.Issues(res.Issues)
	}
	return r
}
