package ensemble

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/panbanda/climdiag/pkg/quantile"
	"github.com/panbanda/climdiag/pkg/weights"
	"github.com/sourcegraph/conc/pool"
)

// InterQuartilePercentiles are the percentiles of an inter-quartile band.
var InterQuartilePercentiles = []float64{25, 75}

// ProgressFunc is called after each time step is evaluated.
type ProgressFunc func()

// Calculator evaluates percentile bands over an ensemble. Time steps are
// independent and evaluated on a bounded worker pool.
type Calculator struct {
	logger     *slog.Logger
	workers    int
	onProgress ProgressFunc
}

// Option configures a Calculator.
type Option func(*Calculator)

// WithWorkers caps the number of time steps evaluated concurrently.
// Values <= 0 select runtime.NumCPU().
func WithWorkers(n int) Option {
	return func(c *Calculator) {
		c.workers = n
	}
}

// WithProgress registers a callback invoked once per evaluated time step.
func WithProgress(fn ProgressFunc) Option {
	return func(c *Calculator) {
		c.onProgress = fn
	}
}

// NewCalculator creates a Calculator that logs through logger.
func NewCalculator(logger *slog.Logger, opts ...Option) *Calculator {
	c := &Calculator{logger: logger}
	for _, opt := range opts {
		opt(c)
	}
	if c.workers <= 0 {
		c.workers = runtime.NumCPU()
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	return c
}

// Percentiles computes the requested percentiles (0..100) of the ensemble at
// every time step. When w is non-nil each member is weighted by w[member];
// every member must have a weight. Either the whole band is returned or an
// error; the first failing time step cancels the rest.
func (c *Calculator) Percentiles(ctx context.Context, ens *Ensemble, percents []float64, w weights.Map) (*Band, error) {
	if err := ens.Validate(); err != nil {
		return nil, err
	}
	for _, p := range percents {
		if p < 0 || p > 100 {
			return nil, fmt.Errorf("%w: percentile %v not in [0, 100]", quantile.ErrInvalidQuantile, p)
		}
	}

	var aligned []float64
	if w != nil {
		var err error
		aligned, err = w.Align(ens.Members)
		if err != nil {
			return nil, err
		}
	}

	start := time.Now()
	values := make([][]float64, len(ens.Times))

	p := pool.New().
		WithMaxGoroutines(c.workers).
		WithContext(ctx).
		WithCancelOnError().
		WithFirstError()
	for t := range ens.Times {
		p.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := quantile.Percentiles(ens.Column(t), percents, aligned)
			if err != nil {
				return fmt.Errorf("time %s: %w", ens.Times[t], err)
			}
			values[t] = res
			if c.onProgress != nil {
				c.onProgress()
			}
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}

	c.logger.Debug("computed percentile band",
		"members", len(ens.Members),
		"times", len(ens.Times),
		"percentiles", percents,
		"weighted", w != nil,
		"elapsed", time.Since(start),
	)

	return &Band{
		Percentiles: append([]float64(nil), percents...),
		Times:       append([]string(nil), ens.Times...),
		Values:      values,
		Weighted:    w != nil,
	}, nil
}

// InterQuartile computes the 25th and 75th percentile band.
func (c *Calculator) InterQuartile(ctx context.Context, ens *Ensemble, w weights.Map) (*Band, error) {
	return c.Percentiles(ctx, ens, InterQuartilePercentiles, w)
}

// CompareIQR computes the unweighted and the weighted inter-quartile band.
func (c *Calculator) CompareIQR(ctx context.Context, ens *Ensemble, w weights.Map) (*Comparison, error) {
	if w == nil {
		return nil, ErrNoWeights
	}
	unweighted, err := c.InterQuartile(ctx, ens, nil)
	if err != nil {
		return nil, fmt.Errorf("unweighted: %w", err)
	}
	weighted, err := c.InterQuartile(ctx, ens, w)
	if err != nil {
		return nil, fmt.Errorf("weighted: %w", err)
	}
	c.logger.Info("computed inter-quartile ranges", "members", len(ens.Members), "times", len(ens.Times))
	return &Comparison{Unweighted: unweighted, Weighted: weighted}, nil
}
