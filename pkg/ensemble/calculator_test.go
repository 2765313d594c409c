package ensemble

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/panbanda/climdiag/pkg/quantile"
	"github.com/panbanda/climdiag/pkg/weights"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEnsemble() *Ensemble {
	return &Ensemble{
		Variable: "tas",
		Units:    "K",
		Members:  []string{"m1", "m2", "m3", "m4"},
		Times:    []string{"2000", "2001", "2002"},
		Values: [][]float64{
			{10, 1, 5},
			{20, 2, 5},
			{30, 3, 5},
			{40, 4, 5},
		},
	}
}

func TestEnsembleValidate(t *testing.T) {
	require.NoError(t, sampleEnsemble().Validate())

	tests := []struct {
		name   string
		mutate func(e *Ensemble)
	}{
		{"no members", func(e *Ensemble) { e.Members = nil; e.Values = nil }},
		{"no times", func(e *Ensemble) { e.Times = nil }},
		{"row count", func(e *Ensemble) { e.Values = e.Values[:3] }},
		{"row length", func(e *Ensemble) { e.Values[1] = []float64{1} }},
		{"duplicate member", func(e *Ensemble) { e.Members[3] = "m1" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := sampleEnsemble()
			tt.mutate(e)
			assert.ErrorIs(t, e.Validate(), ErrInvalidEnsemble)
		})
	}
}

func TestPercentiles_Unweighted(t *testing.T) {
	var ticks atomic.Int32
	c := NewCalculator(nil, WithWorkers(2), WithProgress(func() { ticks.Add(1) }))

	band, err := c.Percentiles(context.Background(), sampleEnsemble(), []float64{25, 50, 75}, nil)
	require.NoError(t, err)

	assert.False(t, band.Weighted)
	assert.Equal(t, []string{"2000", "2001", "2002"}, band.Times)
	require.Len(t, band.Values, 3)
	assert.InDeltaSlice(t, []float64{17.5, 25, 32.5}, band.Values[0], 1e-9)
	assert.InDeltaSlice(t, []float64{1.75, 2.5, 3.25}, band.Values[1], 1e-9)
	assert.InDeltaSlice(t, []float64{5, 5, 5}, band.Values[2], 1e-9)
	assert.Equal(t, int32(3), ticks.Load())

	assert.InDeltaSlice(t, []float64{25, 2.5, 5}, band.Series(1), 1e-9)
	assert.InDeltaSlice(t, []float64{15, 1.5, 0}, band.Width(), 1e-9)
}

func TestPercentiles_WeightedShiftsUp(t *testing.T) {
	c := NewCalculator(nil)
	w := weights.Map{"m1": 1, "m2": 1, "m3": 1, "m4": 5}

	unweighted, err := c.Percentiles(context.Background(), sampleEnsemble(), []float64{50}, nil)
	require.NoError(t, err)
	weighted, err := c.Percentiles(context.Background(), sampleEnsemble(), []float64{50}, w)
	require.NoError(t, err)

	assert.True(t, weighted.Weighted)
	assert.Greater(t, weighted.Values[0][0], unweighted.Values[0][0])
}

func TestPercentiles_Errors(t *testing.T) {
	c := NewCalculator(nil)
	ctx := context.Background()

	_, err := c.Percentiles(ctx, sampleEnsemble(), []float64{150}, nil)
	assert.ErrorIs(t, err, quantile.ErrInvalidQuantile)

	_, err = c.Percentiles(ctx, sampleEnsemble(), []float64{50}, weights.Map{"m1": 1})
	assert.ErrorIs(t, err, weights.ErrMissingMember)

	zero := weights.Map{"m1": 0, "m2": 0, "m3": 0, "m4": 0}
	_, err = c.Percentiles(ctx, sampleEnsemble(), []float64{50}, zero)
	assert.ErrorIs(t, err, quantile.ErrDegenerateWeights)

	bad := sampleEnsemble()
	bad.Values[0] = nil
	_, err = c.Percentiles(ctx, bad, []float64{50}, nil)
	assert.ErrorIs(t, err, ErrInvalidEnsemble)
}

func TestPercentiles_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	band, err := NewCalculator(nil, WithWorkers(1)).Percentiles(ctx, sampleEnsemble(), []float64{50}, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, band)
}

func TestCompareIQR(t *testing.T) {
	c := NewCalculator(nil)
	w := weights.Map{"m1": 1, "m2": 1, "m3": 1, "m4": 1}

	cmp, err := c.CompareIQR(context.Background(), sampleEnsemble(), w)
	require.NoError(t, err)
	assert.Equal(t, InterQuartilePercentiles, cmp.Unweighted.Percentiles)
	assert.InDeltaSlice(t, cmp.Unweighted.Values[0], cmp.Weighted.Values[0], 1e-9)
	assert.InDeltaSlice(t, []float64{15, 1.5, 0}, cmp.Unweighted.Width(), 1e-9)
	assert.InDelta(t, 1, cmp.WidthCorrelation(), 1e-9)

	_, err = c.CompareIQR(context.Background(), sampleEnsemble(), nil)
	assert.ErrorIs(t, err, ErrNoWeights)
}
