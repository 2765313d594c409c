// Package ensemble computes percentile bands across the members of a
// multi-model ensemble, one band value per time step.
package ensemble

import (
	"errors"
	"fmt"

	"github.com/panbanda/climdiag/pkg/stats"
)

// ErrInvalidEnsemble is returned when an ensemble's members and values
// do not line up.
var ErrInvalidEnsemble = errors.New("invalid ensemble")

// ErrNoWeights is returned when a weighted comparison is requested without weights.
var ErrNoWeights = errors.New("weights are required")

// Ensemble holds one time series per member. Values[m][t] is the value of
// member Members[m] at time Times[t].
type Ensemble struct {
	Variable string      `json:"variable,omitempty"`
	Units    string      `json:"units,omitempty"`
	Members  []string    `json:"members"`
	Times    []string    `json:"times"`
	Values   [][]float64 `json:"values"`
}

// Validate checks that every member is unique and has a value per time step.
func (e *Ensemble) Validate() error {
	if len(e.Members) == 0 {
		return fmt.Errorf("%w: no members", ErrInvalidEnsemble)
	}
	if len(e.Times) == 0 {
		return fmt.Errorf("%w: no time steps", ErrInvalidEnsemble)
	}
	if len(e.Values) != len(e.Members) {
		return fmt.Errorf("%w: %d value rows for %d members", ErrInvalidEnsemble, len(e.Values), len(e.Members))
	}
	seen := make(map[string]bool, len(e.Members))
	for i, m := range e.Members {
		if seen[m] {
			return fmt.Errorf("%w: duplicate member %q", ErrInvalidEnsemble, m)
		}
		seen[m] = true
		if len(e.Values[i]) != len(e.Times) {
			return fmt.Errorf("%w: member %q has %d values for %d time steps",
				ErrInvalidEnsemble, m, len(e.Values[i]), len(e.Times))
		}
	}
	return nil
}

// Column returns a copy of every member's value at time index t.
func (e *Ensemble) Column(t int) []float64 {
	col := make([]float64, len(e.Members))
	for m := range e.Members {
		col[m] = e.Values[m][t]
	}
	return col
}

// Band holds percentile values per time step. Values[t][i] is the
// Percentiles[i]-th percentile at Times[t].
type Band struct {
	Percentiles []float64   `json:"percentiles"`
	Times       []string    `json:"times"`
	Values      [][]float64 `json:"values"`
	Weighted    bool        `json:"weighted"`
}

// Series returns the time series of the i-th requested percentile.
func (b *Band) Series(i int) []float64 {
	out := make([]float64, len(b.Values))
	for t, row := range b.Values {
		out[t] = row[i]
	}
	return out
}

// Width returns, per time step, the distance between the last and first
// requested percentile (the inter-quartile range for a 25/75 band).
func (b *Band) Width() []float64 {
	out := make([]float64, len(b.Values))
	for t, row := range b.Values {
		if len(row) > 0 {
			out[t] = row[len(row)-1] - row[0]
		}
	}
	return out
}

// Comparison pairs the unweighted and weighted band of the same ensemble.
type Comparison struct {
	Unweighted *Band `json:"unweighted"`
	Weighted   *Band `json:"weighted"`
}

// WidthCorrelation is the Pearson correlation between the unweighted and
// weighted band widths over time. NaN when it is undefined.
func (c *Comparison) WidthCorrelation() float64 {
	return stats.Correlation(c.Unweighted.Width(), c.Weighted.Width())
}
