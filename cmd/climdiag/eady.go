package main

import (
	"context"
	"fmt"

	"github.com/panbanda/climdiag/internal/fileproc"
	"github.com/panbanda/climdiag/internal/input"
	"github.com/panbanda/climdiag/internal/output"
	"github.com/panbanda/climdiag/pkg/eady"
	"github.com/panbanda/climdiag/pkg/grid"
	"github.com/urfave/cli/v2"
)

func eadyCmd() *cli.Command {
	return &cli.Command{
		Name:      "eady",
		Usage:     "Eady growth rate of one or more datasets",
		ArgsUsage: "<bundle.json>...",
		Description: `Each bundle is a JSON object with ta, zg and ua fields laid out as
(time, plev, lat, lon), plus plev (Pa) and lat (degrees north). Annual and
seasonal means also need time: one date per time step, e.g. "2000-01-16".`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "annual-mean",
				Usage: "Average the growth rate within each year (default: [eady] annual_mean)",
			},
			&cli.BoolFlag{
				Name:  "seasonal-mean",
				Usage: "Average the growth rate within each complete DJF, MAM, JJA or SON season (default: [eady] seasonal_mean)",
			},
			&cli.BoolFlag{
				Name:  "climatology",
				Usage: "Average the growth rate over time (default: [eady] climatology)",
			},
			&cli.Float64Flag{
				Name:  "reference-pressure",
				Usage: "Potential temperature reference pressure in hPa (default: [eady] reference_pressure)",
			},
			&cli.StringFlag{
				Name:  "out-dir",
				Usage: "Write the growth rate fields as JSON into this directory",
			},
		},
		Action: runEadyCmd,
	}
}

type eadyResult struct {
	Dataset string      `json:"dataset"`
	Field   *grid.Field `json:"field"`
	Stats   fieldStats  `json:"stats"`
	Path    string      `json:"path,omitempty"`
}

func runEadyCmd(c *cli.Context) error {
	if err := requireArgs(c, 1, "<bundle.json>..."); err != nil {
		return err
	}
	e, err := newEnv(c)
	if err != nil {
		return err
	}

	opts := e.cfg.EadyOptions()
	if c.IsSet("annual-mean") {
		opts.AnnualMean = c.Bool("annual-mean")
	}
	if c.IsSet("seasonal-mean") {
		opts.SeasonalMean = c.Bool("seasonal-mean")
	}
	if c.IsSet("climatology") {
		opts.Climatology = c.Bool("climatology")
	}
	if c.IsSet("reference-pressure") {
		opts.ReferencePressure = c.Float64("reference-pressure")
	}
	diag := eady.New(e.logger, opts)

	results, err := computeEady(c.Context, e, c, diag, c.Args().Slice())
	if err != nil {
		return err
	}

	if dir := c.String("out-dir"); dir != "" {
		outs := make([]fieldOutput, len(results))
		for i, r := range results {
			outs[i] = fieldOutput{Stem: outputStem(r.Dataset, "egr"), Field: r.Field}
		}
		paths, err := writeFields(dir, outs, c.Args().Slice())
		if err != nil {
			return err
		}
		for i := range results {
			results[i].Path = paths[i]
		}
	}

	rows := make([][]string, len(results))
	for i, r := range results {
		rows[i] = []string{
			r.Dataset,
			shapeString(r.Field.Shape),
			output.Float(r.Stats.Mean),
			output.Float(r.Stats.Min),
			output.Float(r.Stats.Max),
			fmt.Sprint(r.Stats.Masked),
		}
	}

	title := "Eady Growth Rate"
	switch {
	case opts.AnnualMean:
		title += " Annual Mean"
	case opts.SeasonalMean:
		title += " Seasonal Mean"
	}
	if opts.Climatology {
		title += " Climatology"
	}
	title += " (day-1)"
	formatter, err := e.formatter(c)
	if err != nil {
		return err
	}
	defer formatter.Close()

	return formatter.Output(output.NewTable(
		title,
		[]string{"Dataset", "Shape", "Mean", "Min", "Max", "Masked"},
		rows,
		nil,
		results,
	))
}

// computeEady evaluates every bundle on the worker pool, keeping the order
// of paths.
func computeEady(ctx context.Context, e *env, c *cli.Context, diag *eady.Diagnostic, paths []string) ([]eadyResult, error) {
	tracker := e.tracker(c, "Computing Eady growth rate...", len(paths))
	out, err := fileproc.Map(ctx, paths, e.workers(), func(_ context.Context, path string) (eadyResult, error) {
		doc, err := input.Eady(path, nil)
		if err != nil {
			return eadyResult{}, err
		}
		egr, err := diag.Compute(doc.Value)
		if err != nil {
			return eadyResult{}, err
		}
		return eadyResult{Dataset: doc.Value.Alias, Field: egr, Stats: summarize(egr)}, nil
	}, tracker.Tick)
	if err != nil {
		tracker.FinishError(err)
		return nil, err
	}
	tracker.FinishSuccess()
	return out, nil
}
