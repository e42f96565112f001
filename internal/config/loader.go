package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment variables read by Load.
const EnvPrefix = "JSONREL_"

// Options selects the sources Load merges on top of Default().
type Options struct {
	// Fs reads File; nil means the OS filesystem.
	Fs afero.Fs
	// File is an optional YAML config path. A missing file is an error.
	File string
	// Overrides are koanf paths (for example "csv.delimiter") applied last.
	Overrides map[string]any
	// SkipEnv disables JSONREL_* environment variables.
	SkipEnv bool
}

// Load builds a validated Config from defaults, File, the environment and
// Overrides, with later sources winning.
func Load(_ context.Context, opts Options) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}
	if opts.File != "" {
		if err := loadFile(k, opts); err != nil {
			return nil, err
		}
	}
	if !opts.SkipEnv {
		if err := k.Load(env.Provider(".", env.Opt{
			Prefix: EnvPrefix,
			TransformFunc: func(key, value string) (string, any) {
				return transformEnvKey(strings.TrimPrefix(key, EnvPrefix)), value
			},
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load environment variables: %w", err)
		}
	}
	for key, v := range opts.Overrides {
		if err := k.Set(key, v); err != nil {
			return nil, fmt.Errorf("failed to set override %s: %w", key, err)
		}
	}
	return unmarshalAndValidate(k)
}

func loadFile(k *koanf.Koanf, opts Options) error {
	fs := opts.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	data, err := afero.ReadFile(fs, opts.File)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("config file %s not found: %w", opts.File, err)
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", opts.File, err)
	}
	for key, v := range flattenMap("", filterNilValues(raw)) {
		if err := k.Set(key, v); err != nil {
			return fmt.Errorf("failed to set %s: %w", key, err)
		}
	}
	return nil
}

// transformEnvKey maps CSV_NULL_STRING to csv.null_string.
func transformEnvKey(s string) string {
	parts := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool { return r == '_' })
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	}
	return parts[0] + "." + strings.Join(parts[1:], "_")
}

func filterNilValues(m map[string]any) map[string]any {
	result := make(map[string]any)
	for k, v := range m {
		if v == nil {
			continue
		}
		if nested, ok := v.(map[string]any); ok {
			if f := filterNilValues(nested); len(f) > 0 {
				result[k] = f
			}
			continue
		}
		result[k] = v
	}
	return result
}

func flattenMap(prefix string, m map[string]any) map[string]any {
	result := make(map[string]any)
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok {
			for fk, fv := range flattenMap(key, nested) {
				result[fk] = fv
			}
			continue
		}
		result[key] = v
	}
	return result
}

func unmarshalAndValidate(k *koanf.Koanf) (*Config, error) {
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &cfg,
			TagName:          "koanf",
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
		},
	}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validate checks struct tags and that the policy and csv sections convert.
func Validate(cfg *Config) error {
	validateOnce.Do(func() {
		validate = validator.New()
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			return f.Tag.Get("koanf")
		})
	})
	if err := validate.Struct(cfg); err != nil {
		return err
	}
	if _, err := cfg.ToPolicy(); err != nil {
		return err
	}
	if _, err := cfg.ToParseOpt(); err != nil {
		return err
	}
	if _, err := cfg.ToCSVOptions(); err != nil {
		return err
	}
	return nil
}
