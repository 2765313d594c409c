package main

import (
	"fmt"

	"github.com/panbanda/climdiag/internal/cache"
	"github.com/panbanda/climdiag/internal/input"
	"github.com/panbanda/climdiag/internal/output"
	"github.com/panbanda/climdiag/pkg/ensemble"
	"github.com/panbanda/climdiag/pkg/quantile"
	"github.com/urfave/cli/v2"
)

func quantileCmd() *cli.Command {
	return &cli.Command{
		Name:    "quantile",
		Aliases: []string{"q"},
		Usage:   "Weighted quantiles of a list of samples",
		Description: `Examples:
  climdiag quantile --samples 10,20,30 --weights 1,1,2 --q 0.5
  climdiag quantile --samples 10,20,30,40 --q p25,p50,p75`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "samples",
				Aliases:  []string{"s"},
				Usage:    "Comma separated sample values",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "weights",
				Aliases: []string{"w"},
				Usage:   "Comma separated weights, one per sample (default: uniform)",
			},
			&cli.StringFlag{
				Name:  "q",
				Usage: "Quantile levels, e.g. p25,0.5,75% (default: configured percentiles)",
			},
		},
		Action: runQuantileCmd,
	}
}

type quantileResult struct {
	Samples   []float64 `json:"samples"`
	Weights   []float64 `json:"weights"`
	Quantiles []float64 `json:"quantiles"`
	Values    []float64 `json:"values"`
}

func runQuantileCmd(c *cli.Context) error {
	e, err := newEnv(c)
	if err != nil {
		return err
	}

	samples, err := input.Floats(c.String("samples"))
	if err != nil {
		return fmt.Errorf("--samples: %w", err)
	}
	w, err := input.Floats(c.String("weights"))
	if err != nil {
		return fmt.Errorf("--weights: %w", err)
	}
	if w == nil {
		w = make([]float64, len(samples))
		for i := range w {
			w[i] = 1
		}
	}
	levels, err := e.levels(c)
	if err != nil {
		return err
	}

	values, err := quantile.Weighted(samples, levels, w)
	if err != nil {
		return err
	}
	e.logger.Debug("computed weighted quantiles", "samples", len(samples), "levels", len(levels))

	rows := make([][]string, len(levels))
	for i, q := range levels {
		rows[i] = floatRow(quantile.FormatLevel(q), q, values[i])
	}

	formatter, err := e.formatter(c)
	if err != nil {
		return err
	}
	defer formatter.Close()

	return formatter.Output(output.NewTable(
		"Weighted Quantiles",
		[]string{"Level", "Quantile", "Value"},
		rows,
		[]string{fmt.Sprintf("Samples: %d", len(samples)), "", ""},
		quantileResult{Samples: samples, Weights: w, Quantiles: levels, Values: values},
	))
}

func percentilesCmd() *cli.Command {
	return &cli.Command{
		Name:      "percentiles",
		Aliases:   []string{"band"},
		Usage:     "Per time step percentile band of an ensemble",
		ArgsUsage: "<ensemble.json>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "weights",
				Aliases: []string{"w"},
				Usage:   "YAML file mapping member to weight (default: [weights] file, else unweighted)",
			},
			&cli.StringFlag{
				Name:  "q",
				Usage: "Quantile levels, e.g. p5,p50,p95 (default: configured percentiles)",
			},
			&cli.BoolFlag{
				Name:  "refresh",
				Usage: "Drop any cached band and recompute",
			},
		},
		Action: runPercentilesCmd,
	}
}

func runPercentilesCmd(c *cli.Context) error {
	if err := requireArgs(c, 1, "<ensemble.json>"); err != nil {
		return err
	}
	e, err := newEnv(c)
	if err != nil {
		return err
	}

	doc, err := input.Ensemble(c.Args().First(), c.App.Reader)
	if err != nil {
		return err
	}
	ens := &doc.Value
	levels, err := e.levels(c)
	if err != nil {
		return err
	}
	w, weightsHash, err := e.weightsFile(c)
	if err != nil {
		return err
	}

	key := cache.Key("percentiles", levelKey(levels), weightsHash)
	inputHash := cache.HashBytes(doc.Raw)
	if c.Bool("refresh") {
		if err := e.cache.Invalidate(key); err != nil {
			e.logger.Warn("failed to drop cached percentile band", "error", err)
		}
	}

	tracker := e.tracker(c, "Computing percentiles...", len(ens.Times))
	var band ensemble.Band
	if e.cache.Load(key, inputHash, &band) {
		tracker.FinishSkipped("cached")
		e.logger.Debug("percentile band from cache", "key", key)
	} else {
		calc := ensemble.NewCalculator(e.logger,
			ensemble.WithWorkers(e.workers()),
			ensemble.WithProgress(tracker.Tick),
		)
		computed, err := calc.Percentiles(c.Context, ens, percentsOf(levels), w)
		if err != nil {
			tracker.FinishError(err)
			return err
		}
		tracker.FinishSuccess()
		band = *computed
		if err := e.cache.Store(key, inputHash, band); err != nil {
			e.logger.Warn("failed to cache percentile band", "error", err)
		}
	}

	formatter, err := e.formatter(c)
	if err != nil {
		return err
	}
	defer formatter.Close()

	return formatter.Output(bandTable(ens, &band))
}

func bandTable(ens *ensemble.Ensemble, band *ensemble.Band) *output.Table {
	headers := append([]string{"Time"}, levelHeaders(band.Percentiles)...)
	rows := make([][]string, len(band.Times))
	for t, row := range band.Values {
		rows[t] = floatRow(band.Times[t], row...)
	}

	title := "Percentile Band"
	if ens.Variable != "" {
		title += " of " + ens.Variable
	}
	if band.Weighted {
		title = "Weighted " + title
	}

	footer := make([]string, len(headers))
	footer[0] = fmt.Sprintf("Members: %d", len(ens.Members))
	return output.NewTable(title, headers, rows, footer, band)
}
