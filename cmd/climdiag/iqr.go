package main

import (
	"fmt"
	"math"

	"github.com/panbanda/climdiag/internal/input"
	"github.com/panbanda/climdiag/internal/output"
	"github.com/panbanda/climdiag/pkg/ensemble"
	"github.com/urfave/cli/v2"
)

func iqrCmd() *cli.Command {
	return &cli.Command{
		Name:      "iqr",
		Usage:     "Compare the unweighted and weighted inter-quartile range of an ensemble",
		ArgsUsage: "<ensemble.json>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "weights",
				Aliases: []string{"w"},
				Usage:   "YAML file mapping member to weight (default: [weights] file)",
			},
		},
		Action: runIQRCmd,
	}
}

type iqrResult struct {
	*ensemble.Comparison
	Weights          map[string]float64 `json:"normalized_weights"`
	WidthCorrelation *float64           `json:"width_correlation,omitempty"`
}

func runIQRCmd(c *cli.Context) error {
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
	w, _, err := e.weightsFile(c)
	if err != nil {
		return err
	}
	if w == nil {
		return fmt.Errorf("%w: pass --weights or set [weights] file", ensemble.ErrNoWeights)
	}

	tracker := e.tracker(c, "Computing IQR...", 2*len(ens.Times))
	calc := ensemble.NewCalculator(e.logger,
		ensemble.WithWorkers(e.workers()),
		ensemble.WithProgress(tracker.Tick),
	)
	cmp, err := calc.CompareIQR(c.Context, ens, w)
	if err != nil {
		tracker.FinishError(err)
		return err
	}
	tracker.FinishSuccess()

	result := iqrResult{Comparison: cmp, Weights: w.Normalized()}
	corr := cmp.WidthCorrelation()
	if !math.IsNaN(corr) {
		result.WidthCorrelation = &corr
	}

	headers := []string{"Time", "p25", "p75", "IQR", "Weighted p25", "Weighted p75", "Weighted IQR"}
	uw, ww := cmp.Unweighted.Width(), cmp.Weighted.Width()
	rows := make([][]string, len(ens.Times))
	for t, when := range ens.Times {
		u, wt := cmp.Unweighted.Values[t], cmp.Weighted.Values[t]
		rows[t] = floatRow(when, u[0], u[1], uw[t], wt[0], wt[1], ww[t])
	}

	summary := &output.Summary{Title: "Weights"}
	for _, m := range w.Members() {
		summary.Add(m, output.Float(result.Weights[m]))
	}
	summary.Add("IQR width correlation", output.Float(corr))

	title := "Inter-Quartile Range"
	if ens.Variable != "" {
		title += " of " + ens.Variable
	}
	formatter, err := e.formatter(c)
	if err != nil {
		return err
	}
	defer formatter.Close()

	return formatter.Output(&output.Report{
		Title: title,
		Sections: []output.Renderable{
			output.NewTable("Unweighted vs Weighted", headers, rows, nil, nil),
			summary,
		},
		Data: result,
	})
}
