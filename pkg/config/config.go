package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/panbanda/climdiag/pkg/eady"
	"github.com/panbanda/climdiag/pkg/mask"
)

// Config holds all configuration options for climdiag.
type Config struct {
	// Percentile band settings
	Quantile QuantileConfig `koanf:"quantile" toml:"quantile"`

	// Ensemble member weights
	Weights WeightsConfig `koanf:"weights" toml:"weights"`

	// Reference masking
	Mask MaskConfig `koanf:"mask" toml:"mask"`

	// Temporal mean and bias
	Bias BiasConfig `koanf:"bias" toml:"bias"`

	// Eady growth rate
	Eady EadyConfig `koanf:"eady" toml:"eady"`

	// Worker pool
	Workers WorkersConfig `koanf:"workers" toml:"workers"`

	// Cache settings
	Cache CacheConfig `koanf:"cache" toml:"cache"`

	// Output settings
	Output OutputConfig `koanf:"output" toml:"output"`

	// Logging
	Log LogConfig `koanf:"log" toml:"log"`
}

// QuantileConfig controls which percentiles are computed (0..100 scale).
type QuantileConfig struct {
	Percentiles []float64 `koanf:"percentiles" toml:"percentiles"`
}

// WeightsConfig points at the YAML weight mapping.
type WeightsConfig struct {
	File string `koanf:"file" toml:"file"`
}

// MaskConfig lists the masking operations applied to the reference field.
type MaskConfig struct {
	Operations []MaskOperation `koanf:"operations" toml:"operations"`
}

// MaskOperation is the configuration form of a masking step.
type MaskOperation struct {
	Op   string             `koanf:"op" toml:"op"`
	Args map[string]float64 `koanf:"args" toml:"args"`
}

// BiasConfig controls the bias diagnostic.
type BiasConfig struct {
	TimeDim string `koanf:"time_dim" toml:"time_dim"`
}

// EadyConfig controls the Eady growth rate diagnostic.
type EadyConfig struct {
	ReferencePressure float64 `koanf:"reference_pressure" toml:"reference_pressure"` // hPa
	AnnualMean        bool    `koanf:"annual_mean" toml:"annual_mean"`
	SeasonalMean      bool    `koanf:"seasonal_mean" toml:"seasonal_mean"`
	Climatology       bool    `koanf:"climatology" toml:"climatology"`
}

// WorkersConfig bounds concurrency. Zero means one worker per CPU.
type WorkersConfig struct {
	Max int `koanf:"max" toml:"max"`
}

// CacheConfig controls caching behavior.
type CacheConfig struct {
	Enabled bool   `koanf:"enabled" toml:"enabled"`
	Dir     string `koanf:"dir" toml:"dir"`
	TTL     int    `koanf:"ttl" toml:"ttl"` // TTL in hours
}

// OutputConfig controls output formatting.
type OutputConfig struct {
	Format string `koanf:"format" toml:"format"` // text, json, markdown, toon
	Color  bool   `koanf:"color" toml:"color"`
}

// LogConfig controls the diagnostic logger.
type LogConfig struct {
	Level  string `koanf:"level" toml:"level"`   // debug, info, warn, error
	Format string `koanf:"format" toml:"format"` // text, json
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Quantile: QuantileConfig{
			Percentiles: []float64{25, 75},
		},
		Bias: BiasConfig{
			TimeDim: "time",
		},
		Eady: EadyConfig{
			ReferencePressure: eady.DefaultReferencePressure,
		},
		Cache: CacheConfig{
			Enabled: true,
			Dir:     ".climdiag/cache",
			TTL:     24,
		},
		Output: OutputConfig{
			Format: "text",
			Color:  true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// MaskSteps converts the configured operations into masking steps,
// failing on the first unknown operation or missing argument.
func (c *Config) MaskSteps() ([]mask.Step, error) {
	steps := make([]mask.Step, 0, len(c.Mask.Operations))
	for i, op := range c.Mask.Operations {
		s, err := mask.NewStep(op.Op, op.Args)
		if err != nil {
			return nil, fmt.Errorf("mask.operations[%d]: %w", i, err)
		}
		steps = append(steps, s)
	}
	return steps, nil
}

// EadyOptions returns the Eady diagnostic options.
func (c *Config) EadyOptions() eady.Options {
	return eady.Options{
		ReferencePressure: c.Eady.ReferencePressure,
		AnnualMean:        c.Eady.AnnualMean,
		SeasonalMean:      c.Eady.SeasonalMean,
		Climatology:       c.Eady.Climatology,
	}
}

// Validate checks semantic constraints the schema cannot express.
func (c *Config) Validate() error {
	var errs []error
	for i, p := range c.Quantile.Percentiles {
		if p < 0 || p > 100 {
			errs = append(errs, fmt.Errorf("quantile.percentiles[%d]: %v not in [0, 100]", i, p))
		}
	}
	if _, err := c.MaskSteps(); err != nil {
		errs = append(errs, err)
	}
	if c.Eady.ReferencePressure <= 0 {
		errs = append(errs, fmt.Errorf("eady.reference_pressure: must be positive, got %v", c.Eady.ReferencePressure))
	}
	if c.Workers.Max < 0 {
		errs = append(errs, fmt.Errorf("workers.max: must be >= 0, got %d", c.Workers.Max))
	}
	if c.Cache.TTL < 0 {
		errs = append(errs, fmt.Errorf("cache.ttl: must be >= 0, got %d", c.Cache.TTL))
	}
	switch strings.ToLower(c.Output.Format) {
	case "text", "json", "markdown", "md", "toon":
	default:
		errs = append(errs, fmt.Errorf("output.format: unknown format %q", c.Output.Format))
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level: unknown level %q", c.Log.Level))
	}
	return errors.Join(errs...)
}

// parserFor picks a koanf parser from the file extension.
func parserFor(path string) koanf.Parser {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Parser()
	case ".json":
		return json.Parser()
	default:
		return toml.Parser()
	}
}

// Load loads configuration from a file, validating it against the schema
// and the semantic rules.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := DefaultConfig()

	if err := k.Load(file.Provider(path), parserFor(path)); err != nil {
		return nil, err
	}

	if err := validateSchema(k.Raw()); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return cfg, nil
}

// LoadResult is a loaded configuration and the file it came from.
// Source is empty when defaults were used.
type LoadResult struct {
	Config *Config
	Source string
}

// LoadOption configures LoadConfig.
type LoadOption func(*loadOptions)

type loadOptions struct {
	path string
	dirs []string
}

// WithPath loads exactly this file instead of searching.
func WithPath(path string) LoadOption {
	return func(o *loadOptions) {
		o.path = path
	}
}

// WithSearchDirs overrides the directories searched for a config file.
func WithSearchDirs(dirs ...string) LoadOption {
	return func(o *loadOptions) {
		o.dirs = dirs
	}
}

// configNames are the file names searched for, in order.
var configNames = []string{
	"climdiag.toml",
	"climdiag.yaml",
	"climdiag.yml",
	"climdiag.json",
	".climdiag.toml",
	".climdiag.yaml",
	".climdiag.yml",
	".climdiag.json",
}

// LoadConfig loads the explicit path if given, otherwise the first config
// file found in the search directories, otherwise the defaults.
func LoadConfig(opts ...LoadOption) (*LoadResult, error) {
	o := &loadOptions{dirs: []string{".", ".climdiag"}}
	for _, opt := range opts {
		opt(o)
	}

	if o.path != "" {
		cfg, err := Load(o.path)
		if err != nil {
			return nil, err
		}
		return &LoadResult{Config: cfg, Source: o.path}, nil
	}

	for _, dir := range o.dirs {
		for _, name := range configNames {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err != nil {
				continue
			}
			cfg, err := Load(path)
			if err != nil {
				return nil, err
			}
			return &LoadResult{Config: cfg, Source: path}, nil
		}
	}

	return &LoadResult{Config: DefaultConfig()}, nil
}
