// Package stats provides small statistical helpers shared by the diagnostics.
package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Percentile returns the p-th percentile (0..100) of values using linear
// interpolation between closest ranks, the same convention as numpy's
// default. values is not modified. Returns NaN if values is empty.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo < 0 {
		lo = 0
	}
	if hi >= len(sorted) {
		hi = len(sorted) - 1
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

// MeanSkipping returns the mean of values whose index is not reported as
// skipped, and the number of values used. It returns NaN when nothing is left.
func MeanSkipping(values []float64, skip func(i int) bool) (float64, int) {
	if skip == nil {
		if len(values) == 0 {
			return math.NaN(), 0
		}
		return stat.Mean(values, nil), len(values)
	}
	kept := make([]float64, 0, len(values))
	for i, v := range values {
		if !skip(i) {
			kept = append(kept, v)
		}
	}
	if len(kept) == 0 {
		return math.NaN(), 0
	}
	return stat.Mean(kept, nil), len(kept)
}

// Correlation returns the Pearson correlation of x and y, or NaN when fewer
// than two pairs are given or either series is constant.
func Correlation(x, y []float64) float64 {
	if len(x) != len(y) || len(x) < 2 {
		return math.NaN()
	}
	return stat.Correlation(x, y, nil)
}
