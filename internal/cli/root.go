// Package cli implements the jsonrel command line.
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/reoring/jsonrel"
	"github.com/reoring/jsonrel/i18n"
	"github.com/reoring/jsonrel/internal/config"
	"github.com/reoring/jsonrel/pkg/logger"
)

// binding maps a command line flag to a koanf configuration key. Only flags
// the user actually set become overrides.
type binding struct {
	flag string
	key  string
}

var globalBindings = []binding{
	{"log-level", "log.level"},
	{"log-json", "log.json"},
	{"log-source", "log.source"},
	{"lang", "log.lang"},
}

// RootCmd builds the command tree. fs is used for input files, CSV output and
// the config file; nil selects the OS filesystem.
func RootCmd(fs afero.Fs) *cobra.Command {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	root := &cobra.Command{
		Use:           "jsonrel",
		Short:         "Flatten nested JSON or YAML into relational tables",
		Long:          "jsonrel folds a nested document into flat relations linked by generated ids and writes them as CSV files or SQLite tables.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.String("config", "", "YAML config file")
	pf.String("log-level", "", "log level: debug|info|warn|error|disabled")
	pf.Bool("log-json", false, "log as JSON")
	pf.Bool("log-source", false, "include source locations in logs")
	pf.String("lang", "", "issue message language: en|ja")

	root.AddCommand(
		ConvertCmd(fs),
		InspectCmd(fs),
		ServeCmd(fs),
	)
	return root
}

// Execute runs the command tree and reports failures on stderr.
func Execute(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	root := RootCmd(nil)
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		PrintError(stderr, err)
		return 1
	}
	return 0
}

// PrintError writes err; issues are listed one per line with localized text.
func PrintError(w io.Writer, err error) {
	iss, ok := jsonrel.AsIssues(err)
	if !ok {
		fmt.Fprintln(w, "Error:", err)
		return
	}
	for _, is := range iss {
		printIssue(w, "error", is)
	}
}

func printIssue(w io.Writer, level string, is jsonrel.Issue) {
	fmt.Fprintf(w, "%s: %s at %s: %s (%s)\n", level, is.Code, is.Path, i18n.T(is.Code, i18n.Params(is.Params)), is.Message)
}

// setup loads the configuration for cmd and returns a context carrying the
// configured logger.
func setup(cmd *cobra.Command, fs afero.Fs, bindings []binding, extra map[string]any) (context.Context, *config.Config, error) {
	overrides := collectOverrides(cmd.Flags(), append(append([]binding{}, globalBindings...), bindings...))
	for k, v := range extra {
		overrides[k] = v
	}
	file, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cmd.Context(), config.Options{Fs: fs, File: file, Overrides: overrides})
	if err != nil {
		return nil, nil, err
	}
	i18n.SetLanguage(cfg.Log.Lang)
	log := logger.SetupLogger(cfg.Log.Level, cfg.Log.JSON, cfg.Log.Source, cmd.ErrOrStderr())
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return logger.ContextWithLogger(ctx, log), cfg, nil
}

func collectOverrides(flags *pflag.FlagSet, bindings []binding) map[string]any {
	out := make(map[string]any)
	for _, b := range bindings {
		f := flags.Lookup(b.flag)
		if f == nil || !f.Changed {
			continue
		}
		out[b.key] = f.Value.String()
	}
	return out
}
