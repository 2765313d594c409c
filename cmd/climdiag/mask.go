package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/panbanda/climdiag/internal/fileproc"
	"github.com/panbanda/climdiag/internal/input"
	"github.com/panbanda/climdiag/internal/output"
	"github.com/panbanda/climdiag/pkg/grid"
	"github.com/panbanda/climdiag/pkg/mask"
	"github.com/urfave/cli/v2"
)

func maskCmd() *cli.Command {
	return &cli.Command{
		Name:      "mask",
		Usage:     "Build a mask from a reference field and apply it to other fields",
		ArgsUsage: "<field.json>...",
		Description: `Operations are given as name or name:arg=value,arg=value, e.g.
  --op masked_greater:value=310 --op masked_inside:v1=0,v2=1 --op masked_invalid

Without --op the [[mask.operations]] from the config file are used.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "ref",
				Aliases:  []string{"r"},
				Usage:    "Reference field JSON the mask is built from",
				Required: true,
			},
			&cli.StringSliceFlag{
				Name:  "op",
				Usage: "Masking operation (repeatable)",
			},
			&cli.StringFlag{
				Name:  "out-dir",
				Usage: "Write the masked fields as JSON into this directory",
			},
			&cli.BoolFlag{
				Name:  "list",
				Usage: "List the supported operations and exit",
			},
		},
		Action: runMaskCmd,
	}
}

type maskedField struct {
	Source string      `json:"source"`
	Field  *grid.Field `json:"field"`
	Path   string      `json:"path,omitempty"`
}

type maskResult struct {
	Steps     []mask.Step   `json:"steps"`
	Reference string        `json:"reference"`
	Masked    int           `json:"reference_masked"`
	Fields    []maskedField `json:"fields"`
}

func runMaskCmd(c *cli.Context) error {
	if c.Bool("list") {
		for _, op := range mask.Operations() {
			fmt.Fprintln(c.App.Writer, op)
		}
		return nil
	}

	e, err := newEnv(c)
	if err != nil {
		return err
	}

	steps, err := maskSteps(c, e)
	if err != nil {
		return err
	}

	ref, err := input.Field(c.String("ref"), c.App.Reader)
	if err != nil {
		return fmt.Errorf("reference: %w", err)
	}
	m, err := mask.Build(&ref.Value, steps)
	if err != nil {
		return err
	}
	e.logger.Debug("built reference mask", "steps", len(steps), "masked", m.GetCardinality())

	refMasked, err := mask.Apply(m, ref.Value.Shape, &ref.Value)
	if err != nil {
		return err
	}
	others, err := applyMask(c.Context, e, c, m, ref.Value.Shape, c.Args().Slice())
	if err != nil {
		return err
	}
	fields := append([]maskedField{{Source: c.String("ref"), Field: refMasked[0]}}, others...)

	if dir := c.String("out-dir"); dir != "" {
		outs := make([]fieldOutput, len(fields))
		inputs := make([]string, len(fields))
		for i, mf := range fields {
			outs[i] = fieldOutput{Stem: outputStem(mf.Source, "masked"), Field: mf.Field}
			inputs[i] = mf.Source
		}
		paths, err := writeFields(dir, outs, inputs)
		if err != nil {
			return err
		}
		for i := range fields {
			fields[i].Path = paths[i]
		}
	}

	rows := make([][]string, len(fields))
	for i, mf := range fields {
		f := mf.Field
		rows[i] = []string{
			mf.Source,
			f.Name,
			shapeString(f.Shape),
			fmt.Sprint(f.MaskCount()),
			output.Float(float64(f.MaskCount()) / float64(f.Size())),
		}
	}

	formatter, err := e.formatter(c)
	if err != nil {
		return err
	}
	defer formatter.Close()

	return formatter.Output(output.NewTable(
		"Masked Fields",
		[]string{"Source", "Field", "Shape", "Masked", "Fraction"},
		rows,
		[]string{fmt.Sprintf("Reference masked: %d", m.GetCardinality()), "", "", "", ""},
		maskResult{Steps: steps, Reference: c.String("ref"), Masked: int(m.GetCardinality()), Fields: fields},
	))
}

func maskSteps(c *cli.Context, e *env) ([]mask.Step, error) {
	var steps []mask.Step
	if specs := c.StringSlice("op"); len(specs) > 0 {
		for _, s := range specs {
			step, err := mask.ParseStep(s)
			if err != nil {
				return nil, err
			}
			steps = append(steps, step)
		}
	} else {
		var err error
		if steps, err = e.cfg.MaskSteps(); err != nil {
			return nil, err
		}
	}
	if len(steps) == 0 {
		return nil, errors.New("no masking operations: pass --op or set [[mask.operations]]")
	}
	return steps, nil
}

// applyMask loads and masks every field concurrently. Results keep the order
// of paths; the first failure cancels the rest.
func applyMask(ctx context.Context, e *env, c *cli.Context, m *roaring.Bitmap, shape []int, paths []string) ([]maskedField, error) {
	tracker := e.tracker(c, "Masking fields...", len(paths))
	out, err := fileproc.Map(ctx, paths, e.workers(), func(_ context.Context, path string) (maskedField, error) {
		doc, err := input.Field(path, nil)
		if err != nil {
			return maskedField{}, err
		}
		masked, err := mask.Apply(m, shape, &doc.Value)
		if err != nil {
			return maskedField{}, err
		}
		e.logger.Debug("masked field", "path", path, "masked", masked[0].MaskCount())
		return maskedField{Source: path, Field: masked[0]}, nil
	}, tracker.Tick)
	if err != nil {
		tracker.FinishError(err)
		return nil, err
	}
	tracker.FinishSuccess()
	return out, nil
}
