// Package pipeline runs one conversion: read a document, optionally select a
// subtree, normalize it and write the relations to CSV files or SQLite.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/tidwall/gjson"

	"github.com/reoring/jsonrel"
	"github.com/reoring/jsonrel/internal/config"
	"github.com/reoring/jsonrel/pkg/logger"
	"github.com/reoring/jsonrel/sink/csvsink"
	"github.com/reoring/jsonrel/sink/sqlitesink"
	drvgojson "github.com/reoring/jsonrel/source/gojson"
	yamlsrc "github.com/reoring/jsonrel/source/yaml"
)

// Input formats.
const (
	FormatAuto = "auto"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// RelationSummary describes one produced relation.
type RelationSummary struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Rows    int      `json:"rows"`
}

// Summary reports the outcome of a run.
type Summary struct {
	RunID     string            `json:"run_id"`
	Input     string            `json:"input"`
	Relations []RelationSummary `json:"relations"`
	Outputs   []string          `json:"outputs,omitempty"`
	Rows      int               `json:"rows"`
	Issues    jsonrel.Issues    `json:"issues,omitempty"`
	Duration  time.Duration     `json:"duration"`
}

// Pipeline reads inputs from Fs (stdin when the path is "" or "-") and writes
// CSV files to Fs.
type Pipeline struct {
	Fs        afero.Fs
	Stdin     io.Reader
	Formatter csvsink.ValueFormatter
}

// New returns a Pipeline on fs; nil selects the OS filesystem.
func New(fs afero.Fs, stdin io.Reader) *Pipeline {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Pipeline{Fs: fs, Stdin: stdin}
}

// Normalize reads and normalizes the configured input without writing anything.
func (p *Pipeline) Normalize(ctx context.Context, cfg *config.Config) (jsonrel.Result, error) {
	data, err := p.read(cfg.Input.Path)
	if err != nil {
		return jsonrel.Result{}, err
	}
	return NormalizeBytes(ctx, data, cfg)
}

// Run normalizes the configured input and writes the relations.
func (p *Pipeline) Run(ctx context.Context, cfg *config.Config) (*Summary, error) {
	start := time.Now()
	runID := uuid.NewString()
	log := logger.FromContext(ctx).With("run_id", runID)
	log.Info("Starting conversion", "input", displayPath(cfg.Input.Path), "output_format", cfg.Output.Format)

	res, err := p.Normalize(ctx, cfg)
	if err != nil {
		log.Error("Normalization failed", "error", err)
		return nil, err
	}
	for _, is := range res.Issues {
		log.Warn("Issue", "code", is.Code, "path", is.Path, "message", is.Message)
	}

	sum := &Summary{RunID: runID, Input: displayPath(cfg.Input.Path), Issues: res.Issues}
	for _, rel := range res.Relations {
		sum.Relations = append(sum.Relations, RelationSummary{Name: rel.Name(), Columns: rel.Columns(), Rows: rel.Len()})
		sum.Rows += rel.Len()
	}

	switch cfg.Output.Format {
	case "sqlite":
		if err := p.writeSQLite(ctx, cfg, res.Relations); err != nil {
			log.Error("SQLite write failed", "path", cfg.Output.SQLitePath, "error", err)
			return nil, err
		}
		sum.Outputs = []string{cfg.Output.SQLitePath}
	default:
		opts, err := cfg.ToCSVOptions()
		if err != nil {
			return nil, err
		}
		paths, err := csvsink.NewWriter(p.Fs, p.Formatter).WriteAll(ctx, cfg.Output.Dir, res.Relations, opts)
		if err != nil {
			log.Error("CSV write failed", "dir", cfg.Output.Dir, "error", err)
			return nil, err
		}
		sum.Outputs = paths
	}

	sum.Duration = time.Since(start)
	log.Info("Conversion finished", "relations", len(sum.Relations), "rows", sum.Rows, "duration", sum.Duration)
	return sum, nil
}

func (p *Pipeline) writeSQLite(ctx context.Context, cfg *config.Config, rels []jsonrel.Relation) error {
	db, err := sqlitesink.Open(ctx, cfg.Output.SQLitePath)
	if err != nil {
		return err
	}
	defer db.Close()
	_, err = sqlitesink.NewWriter(db, sqlitesink.Options{Replace: cfg.Output.Replace}).WriteAll(ctx, rels)
	return err
}

func (p *Pipeline) read(path string) ([]byte, error) {
	if path == "" || path == "-" {
		if p.Stdin == nil {
			return nil, fmt.Errorf("pipeline: no input path and no stdin")
		}
		return io.ReadAll(p.Stdin)
	}
	data, err := afero.ReadFile(p.Fs, path)
	if err != nil {
		return nil, fmt.Errorf("pipeline: read %s: %w", path, err)
	}
	return data, nil
}

// NormalizeBytes decodes data per cfg.Input and normalizes it per cfg.Policy.
func NormalizeBytes(ctx context.Context, data []byte, cfg *config.Config) (jsonrel.Result, error) {
	policy, err := cfg.ToPolicy()
	if err != nil {
		return jsonrel.Result{}, err
	}
	popt, err := cfg.ToParseOpt()
	if err != nil {
		return jsonrel.Result{}, err
	}
	if popt.MaxBytes > 0 && int64(len(data)) > popt.MaxBytes {
		return jsonrel.Result{}, jsonrel.AppendIssues(nil, jsonrel.Issue{
			Code: jsonrel.CodeTruncated, Path: "/", Message: "max bytes exceeded", Offset: popt.MaxBytes,
		})
	}
	driver, err := Driver(cfg.Input.Driver)
	if err != nil {
		return jsonrel.Result{}, err
	}
	sel := strings.TrimSpace(cfg.Input.Select)

	if ResolveFormat(cfg.Input.Format, cfg.Input.Path) == FormatYAML {
		var warnings jsonrel.Issues
		popt.IssueSink = func(is jsonrel.Issue) { warnings = append(warnings, is) }
		root, err := yamlsrc.DecodeBytes(ctx, data, popt)
		if err != nil {
			return jsonrel.Result{}, err
		}
		if root, err = selectValue(ctx, root, sel); err != nil {
			return jsonrel.Result{}, err
		}
		res, err := jsonrel.NormalizeWithReport(root, policy)
		if err != nil {
			return jsonrel.Result{}, err
		}
		res.Issues = append(warnings, res.Issues...)
		return res, nil
	}

	var src jsonrel.Source
	switch {
	case strings.HasPrefix(sel, "/"):
		if src, err = jsonrel.SelectSource(driver.NewBytes(data), sel); err != nil {
			return jsonrel.Result{}, err
		}
	case sel != "":
		r := gjson.GetBytes(data, sel)
		if !r.Exists() {
			return jsonrel.Result{}, fmt.Errorf("pipeline: select %q matched nothing", sel)
		}
		src = driver.NewBytes([]byte(r.Raw))
	default:
		src = driver.NewBytes(data)
	}
	return jsonrel.NormalizeFrom(ctx, src, policy, popt)
}

// selectValue applies a JSON Pointer or gjson path to an already decoded value.
func selectValue(ctx context.Context, root jsonrel.Value, sel string) (jsonrel.Value, error) {
	switch {
	case sel == "":
		return root, nil
	case strings.HasPrefix(sel, "/"):
		v, ok := root.At(sel)
		if !ok {
			return jsonrel.Value{}, fmt.Errorf("pipeline: select %s: %w", sel, jsonrel.ErrPointerNotFound)
		}
		return v, nil
	default:
		r := gjson.GetBytes(root.AppendJSON(nil), sel)
		if !r.Exists() {
			return jsonrel.Value{}, fmt.Errorf("pipeline: select %q matched nothing", sel)
		}
		return jsonrel.Decode(ctx, jsonrel.DefaultJSONDriver().NewBytes([]byte(r.Raw)))
	}
}

// Driver maps a configured driver name to a JSON driver.
func Driver(name string) (jsonrel.JSONDriver, error) {
	switch name {
	case "", "go-json":
		return drvgojson.Driver(), nil
	case "encoding/json":
		return jsonrel.DefaultJSONDriver(), nil
	default:
		return nil, fmt.Errorf("pipeline: unknown json driver %q", name)
	}
}

// ResolveFormat picks yaml for .yaml/.yml paths when format is auto.
func ResolveFormat(format, path string) string {
	if format != "" && format != FormatAuto {
		return format
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

func displayPath(p string) string {
	if p == "" || p == "-" {
		return "<stdin>"
	}
	return p
}
