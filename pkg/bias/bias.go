// Package bias computes the temporal-mean bias of a model field against an
// observational reference.
package bias

import (
	"fmt"

	"github.com/panbanda/climdiag/pkg/grid"
)

// DefaultTimeDim is the dimension averaged away when none is given.
const DefaultTimeDim = "time"

// TemporalMean collapses timeDim by arithmetic mean.
func TemporalMean(f *grid.Field, timeDim string) (*grid.Field, error) {
	if timeDim == "" {
		timeDim = DefaultTimeDim
	}
	mean, err := f.MeanOver(timeDim)
	if err != nil {
		return nil, fmt.Errorf("temporal mean of %q: %w", f.Name, err)
	}
	return mean, nil
}

// Result holds both temporal means and their difference.
type Result struct {
	Model       *grid.Field `json:"model_mean"`
	Observation *grid.Field `json:"observation_mean"`
	Bias        *grid.Field `json:"bias"`
}

// Compute returns the temporal mean of model minus the temporal mean of obs.
// The two fields need not share their time axis length, only the remaining
// dimensions.
func Compute(model, obs *grid.Field, timeDim string) (*Result, error) {
	mm, err := TemporalMean(model, timeDim)
	if err != nil {
		return nil, err
	}
	om, err := TemporalMean(obs, timeDim)
	if err != nil {
		return nil, err
	}
	diff, err := mm.Sub(om)
	if err != nil {
		return nil, fmt.Errorf("bias of %q against %q: %w", model.Name, obs.Name, err)
	}
	diff.Name = "bias"
	if model.Name != "" {
		diff.Name = "bias in " + model.Name
	}
	return &Result{Model: mm, Observation: om, Bias: diff}, nil
}
