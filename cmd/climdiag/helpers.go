package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/panbanda/climdiag/internal/cache"
	"github.com/panbanda/climdiag/internal/logging"
	"github.com/panbanda/climdiag/internal/output"
	"github.com/panbanda/climdiag/internal/progress"
	"github.com/panbanda/climdiag/pkg/config"
	"github.com/panbanda/climdiag/pkg/grid"
	"github.com/panbanda/climdiag/pkg/quantile"
	"github.com/panbanda/climdiag/pkg/weights"
	"github.com/urfave/cli/v2"
)

// env is everything a command needs, built from the global flags and the
// effective configuration.
type env struct {
	cfg    *config.Config
	logger *slog.Logger
	cache  *cache.Cache
	quiet  bool
}

// newEnv loads the configuration, applies global flag overrides and builds
// the logger and cache.
func newEnv(c *cli.Context) (*env, error) {
	var opts []config.LoadOption
	if path := c.String("config"); path != "" {
		opts = append(opts, config.WithPath(path))
	}
	res, err := config.LoadConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg := res.Config

	if c.IsSet("format") {
		cfg.Output.Format = c.String("format")
	}
	if c.IsSet("log-level") {
		cfg.Log.Level = c.String("log-level")
	}
	if c.IsSet("log-format") {
		cfg.Log.Format = c.String("log-format")
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, c.App.ErrWriter)
	if err != nil {
		return nil, err
	}

	store, err := cache.New(cfg.Cache.Dir, cfg.Cache.TTL, cfg.Cache.Enabled && !c.Bool("no-cache"))
	if err != nil {
		logger.Warn("cache disabled", "dir", cfg.Cache.Dir, "error", err)
		store, _ = cache.New("", 0, false)
	}

	if res.Source != "" {
		logger.Debug("loaded config", "path", res.Source)
	}
	logger.Debug("result cache", "dir", cfg.Cache.Dir, "enabled", store.Enabled())

	return &env{
		cfg:    cfg,
		logger: logger,
		cache:  store,
		quiet:  c.Bool("no-progress"),
	}, nil
}

// formatter writes to the --output file, or to the app's writer.
func (e *env) formatter(c *cli.Context) (*output.Formatter, error) {
	format := output.ParseFormat(e.cfg.Output.Format)
	if path := c.String("output"); path != "" {
		return output.NewFormatter(format, path, false)
	}
	return output.NewWriterFormatter(format, c.App.Writer, e.cfg.Output.Color), nil
}

func (e *env) tracker(c *cli.Context, label string, total int) *progress.Tracker {
	return progress.NewTracker(label, total, progress.WithWriter(c.App.ErrWriter), progress.Quiet(e.quiet))
}

func (e *env) spinner(c *cli.Context, label string) *progress.Tracker {
	return progress.NewSpinner(label, progress.WithWriter(c.App.ErrWriter), progress.Quiet(e.quiet))
}

func (e *env) workers() int {
	if e.cfg.Workers.Max > 0 {
		return e.cfg.Workers.Max
	}
	return runtime.NumCPU()
}

// levels returns the requested quantiles (0..1) from --q, falling back to the
// configured percentiles.
func (e *env) levels(c *cli.Context) ([]float64, error) {
	if s := c.String("q"); s != "" {
		return quantile.ParseLevels(s)
	}
	qs := make([]float64, len(e.cfg.Quantile.Percentiles))
	for i, p := range e.cfg.Quantile.Percentiles {
		qs[i] = p / 100
	}
	if len(qs) == 0 {
		return nil, fmt.Errorf("%w: no quantile levels requested", quantile.ErrInvalidQuantile)
	}
	return qs, nil
}

// weightsFile loads the --weights mapping or the configured one. It returns
// a nil map and empty hash when neither is set.
func (e *env) weightsFile(c *cli.Context) (weights.Map, string, error) {
	path := c.String("weights")
	if path == "" {
		path = e.cfg.Weights.File
	}
	if path == "" {
		return nil, "", nil
	}
	hash, err := cache.HashFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read weights: %w", err)
	}
	w, err := weights.Load(path)
	if err != nil {
		return nil, "", err
	}
	e.logger.Debug("loaded weights", "path", path, "members", len(w))
	return w, hash, nil
}

func percentsOf(levels []float64) []float64 {
	out := make([]float64, len(levels))
	for i, q := range levels {
		out[i] = q * 100
	}
	return out
}

func levelHeaders(percents []float64) []string {
	out := make([]string, len(percents))
	for i, p := range percents {
		out[i] = quantile.FormatLevel(p / 100)
	}
	return out
}

func levelKey(levels []float64) string {
	parts := make([]string, len(levels))
	for i, q := range levels {
		parts[i] = quantile.FormatLevel(q)
	}
	return strings.Join(parts, ",")
}

func floatRow(first string, values ...float64) []string {
	row := make([]string, 0, len(values)+1)
	row = append(row, first)
	for _, v := range values {
		row = append(row, output.Float(v))
	}
	return row
}

// fieldStats summarizes the unmasked, finite cells of f. Mean, Min and Max
// are NaN when no such cell exists.
type fieldStats struct {
	Mean   float64
	Min    float64
	Max    float64
	Masked int
	Cells  int
}

// MarshalJSON encodes undefined statistics as null.
func (s fieldStats) MarshalJSON() ([]byte, error) {
	finite := func(v float64) *float64 {
		if math.IsNaN(v) {
			return nil
		}
		return &v
	}
	return json.Marshal(struct {
		Mean   *float64 `json:"mean"`
		Min    *float64 `json:"min"`
		Max    *float64 `json:"max"`
		Masked int      `json:"masked"`
		Cells  int      `json:"cells"`
	}{finite(s.Mean), finite(s.Min), finite(s.Max), s.Masked, s.Cells})
}

func summarize(f *grid.Field) fieldStats {
	s := fieldStats{Min: math.NaN(), Max: math.NaN(), Masked: f.MaskCount(), Cells: f.Size()}
	values := f.Values()
	var sum float64
	var n int
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		if n == 0 || v < s.Min {
			s.Min = v
		}
		if n == 0 || v > s.Max {
			s.Max = v
		}
		sum += v
		n++
	}
	s.Mean = math.NaN()
	if n > 0 {
		s.Mean = sum / float64(n)
	}
	return s
}

func shapeString(shape []int) string {
	parts := make([]string, len(shape))
	for i, n := range shape {
		parts[i] = fmt.Sprint(n)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

var errOutputConflict = errors.New("output path conflict")

// fieldOutput is a field bound for --out-dir, written as <Stem>.json.
type fieldOutput struct {
	Stem  string
	Field *grid.Field
}

// outputStem names the output derived from source: its base name without
// extension, followed by _suffix.
func outputStem(source, suffix string) string {
	name := filepath.Base(source)
	if source == "-" || source == "" || name == "." || name == string(filepath.Separator) {
		name = "stdin"
	}
	return strings.TrimSuffix(name, filepath.Ext(name)) + "_" + suffix
}

// writeFields writes every output as JSON into dir and returns the paths in
// order. Nothing is written when two outputs share a path or an output would
// replace one of the inputs.
func writeFields(dir string, outs []fieldOutput, inputs []string) ([]string, error) {
	taken := make(map[string]string, len(inputs)+len(outs))
	for _, in := range inputs {
		if in == "-" {
			continue
		}
		abs, err := filepath.Abs(in)
		if err != nil {
			return nil, err
		}
		taken[abs] = "input " + in
	}

	paths := make([]string, len(outs))
	for i, o := range outs {
		path := filepath.Join(dir, o.Stem+".json")
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, err
		}
		if owner, ok := taken[abs]; ok {
			return nil, fmt.Errorf("%w: %s would overwrite %s", errOutputConflict, path, owner)
		}
		taken[abs] = "output " + o.Stem
		paths[i] = path
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory %q: %w", dir, err)
	}
	for i, o := range outs {
		data, err := json.MarshalIndent(o.Field, "", "  ")
		if err != nil {
			return nil, err
		}
		if err := os.WriteFile(paths[i], data, 0o644); err != nil {
			return nil, err
		}
	}
	return paths, nil
}

func requireArgs(c *cli.Context, n int, usage string) error {
	if c.Args().Len() < n {
		return errors.New("usage: " + c.App.Name + " " + c.Command.Name + " " + usage)
	}
	return nil
}
