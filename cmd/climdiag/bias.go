package main

import (
	"fmt"

	"github.com/panbanda/climdiag/internal/input"
	"github.com/panbanda/climdiag/internal/output"
	"github.com/panbanda/climdiag/pkg/bias"
	"github.com/urfave/cli/v2"
)

func biasCmd() *cli.Command {
	return &cli.Command{
		Name:      "bias",
		Usage:     "Temporal mean bias of a model field against an observational field",
		ArgsUsage: "<model.json> <obs.json>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "time-dim",
				Usage: "Dimension averaged away (default: [bias] time_dim)",
			},
			&cli.StringFlag{
				Name:  "out-dir",
				Usage: "Write the bias field as JSON into this directory",
			},
		},
		Action: runBiasCmd,
	}
}

func runBiasCmd(c *cli.Context) error {
	if err := requireArgs(c, 2, "<model.json> <obs.json>"); err != nil {
		return err
	}
	e, err := newEnv(c)
	if err != nil {
		return err
	}

	model, err := input.Field(c.Args().Get(0), c.App.Reader)
	if err != nil {
		return fmt.Errorf("model: %w", err)
	}
	obs, err := input.Field(c.Args().Get(1), c.App.Reader)
	if err != nil {
		return fmt.Errorf("observation: %w", err)
	}

	timeDim := c.String("time-dim")
	if timeDim == "" {
		timeDim = e.cfg.Bias.TimeDim
	}

	sp := e.spinner(c, "Computing bias...")
	res, err := bias.Compute(&model.Value, &obs.Value, timeDim)
	if err != nil {
		sp.FinishError(err)
		return err
	}
	sp.FinishSuccess()
	e.logger.Debug("computed bias", "field", res.Bias.Name, "shape", res.Bias.Shape)

	if dir := c.String("out-dir"); dir != "" {
		paths, err := writeFields(dir, []fieldOutput{{Stem: "bias", Field: res.Bias}}, c.Args().Slice())
		if err != nil {
			return err
		}
		e.logger.Info("wrote bias field", "path", paths[0])
	}

	st := summarize(res.Bias)
	summary := &output.Summary{Title: "Bias", Data: res}
	summary.
		Add("Field", res.Bias.Name).
		Add("Units", res.Bias.Units).
		Add("Dims", fmt.Sprint(res.Bias.Dims)).
		Add("Shape", shapeString(res.Bias.Shape)).
		Add("Mean bias", output.Float(st.Mean)).
		Add("Min bias", output.Float(st.Min)).
		Add("Max bias", output.Float(st.Max)).
		Add("Masked cells", fmt.Sprintf("%d of %d", st.Masked, st.Cells))

	formatter, err := e.formatter(c)
	if err != nil {
		return err
	}
	defer formatter.Close()

	return formatter.Output(summary)
}
