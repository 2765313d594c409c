// Package quantile estimates percentiles of a weighted empirical distribution.
//
// Each sorted sample is placed at the midpoint of its weight mass along the
// cumulative weight axis. The positions are rescaled to [0, 1] and requested
// quantiles are read off by piecewise-linear interpolation. With unit weights
// the result equals the usual linear-interpolation percentile.
package quantile

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

var (
	// ErrInvalidQuantile is returned when a requested quantile is outside [0, 1].
	ErrInvalidQuantile = errors.New("quantile out of range [0, 1]")

	// ErrDegenerateWeights is returned when no sample carries positive weight,
	// or a weight is negative or not finite.
	ErrDegenerateWeights = errors.New("degenerate weights")

	// ErrLengthMismatch is returned when weights and samples differ in length.
	ErrLengthMismatch = errors.New("weights length does not match samples")

	// ErrEmptySamples is returned when no samples are given.
	ErrEmptySamples = errors.New("no samples")
)

// Weighted returns the value at each requested quantile of samples, where
// weights[i] is the weight of samples[i]. A nil weights slice weighs every
// sample equally. Results are in the order of quantiles.
//
// Neither samples nor weights are modified. On error no result is returned.
func Weighted(samples, quantiles, weights []float64) ([]float64, error) {
	if err := validate(samples, quantiles, weights); err != nil {
		return nil, err
	}

	xs, ys := positions(samples, weights)

	out := make([]float64, len(quantiles))
	for i, q := range quantiles {
		out[i] = interp(q, xs, ys)
	}
	return out, nil
}

// Percentiles is Weighted with requests on the 0..100 scale.
func Percentiles(samples, percents, weights []float64) ([]float64, error) {
	qs := make([]float64, len(percents))
	for i, p := range percents {
		qs[i] = p / 100
	}
	return Weighted(samples, qs, weights)
}

func validate(samples, quantiles, weights []float64) error {
	for _, q := range quantiles {
		if math.IsNaN(q) || q < 0 || q > 1 {
			return fmt.Errorf("%w: %v", ErrInvalidQuantile, q)
		}
	}
	if len(samples) == 0 {
		return ErrEmptySamples
	}
	if weights == nil {
		return nil
	}
	if len(weights) != len(samples) {
		return fmt.Errorf("%w: %d weights for %d samples", ErrLengthMismatch, len(weights), len(samples))
	}
	positive := false
	for i, w := range weights {
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return fmt.Errorf("%w: weight[%d] = %v", ErrDegenerateWeights, i, w)
		}
		if w > 0 {
			positive = true
		}
	}
	if !positive {
		return fmt.Errorf("%w: all weights are zero", ErrDegenerateWeights)
	}
	return nil
}

// positions sorts a copy of the samples and returns the normalized weighted
// positions alongside the sorted values.
func positions(samples, weights []float64) (xs, ys []float64) {
	n := len(samples)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return samples[idx[a]] < samples[idx[b]]
	})

	ys = make([]float64, n)
	w := make([]float64, n)
	for i, j := range idx {
		ys[i] = samples[j]
		if weights == nil {
			w[i] = 1
		} else {
			w[i] = weights[j]
		}
	}

	// Scale by the largest weight so the cumulative sum cannot overflow.
	// Positions are normalized below, so the scale does not change results.
	floats.Scale(1/floats.Max(w), w)

	xs = make([]float64, n)
	floats.CumSum(xs, w)
	floats.AddScaled(xs, -0.5, w)

	// A single sample has zero spread; it stands for every quantile.
	if n == 1 {
		xs[0] = 0
		return xs, ys
	}

	floats.AddConst(-floats.Min(xs), xs)
	span := floats.Max(xs)
	for i := range xs {
		xs[i] /= span
	}
	return xs, ys
}

// interp evaluates the piecewise-linear function through (xs, ys) at x.
// xs must be non-decreasing. Outside the range the end values are returned;
// among tied x-coordinates the right-most point is used.
func interp(x float64, xs, ys []float64) float64 {
	n := len(xs)
	if x <= xs[0] && (n == 1 || xs[1] > xs[0]) {
		return ys[0]
	}
	if x >= xs[n-1] {
		return ys[n-1]
	}
	// First index with xs[j] > x; j-1 is the last point at or left of x.
	j := sort.Search(n, func(i int) bool { return xs[i] > x })
	lo := j - 1
	if lo < 0 {
		return ys[0]
	}
	if j == n {
		return ys[n-1]
	}
	dx := xs[j] - xs[lo]
	return ys[lo] + (x-xs[lo])*(ys[j]-ys[lo])/dx
}
