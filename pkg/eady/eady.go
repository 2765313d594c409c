// Package eady computes the Eady growth rate, a measure of baroclinic
// instability, from air temperature, geopotential height and eastward wind
// on pressure levels.
//
// All input fields use the dimensions (time, plev, lat, lon).
package eady

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/panbanda/climdiag/pkg/grid"
	"gonum.org/v1/gonum/floats"
)

const (
	// Gravity is the standard acceleration of gravity in m s-2.
	Gravity = 9.80665
	// Omega is the Earth's angular velocity in rad s-1.
	Omega = 7.292e-5
	// Constant is the Eady growth rate prefactor.
	Constant = 0.3098
	// FillValue replaces a vanishing Brunt-Vaisala frequency.
	FillValue = 1e20
	// DefaultReferencePressure is the potential temperature reference pressure in hPa.
	DefaultReferencePressure = 1000.0

	secondsPerDay = 86400
)

// Dims is the required dimension order of every input field.
var Dims = []string{"time", "plev", "lat", "lon"}

var (
	// ErrTooFewLevels is returned when fewer than two pressure levels are given.
	ErrTooFewLevels = errors.New("at least two pressure levels are required")

	// ErrBadDims is returned when a field does not use the (time, plev, lat, lon) layout.
	ErrBadDims = errors.New("field dimensions must be time, plev, lat, lon")
)

// Input bundles the fields and coordinates of one dataset.
type Input struct {
	Alias string      `json:"alias,omitempty"`
	Ta    *grid.Field `json:"ta"`
	Zg    *grid.Field `json:"zg"`
	Ua    *grid.Field `json:"ua"`
	// Plev holds the pressure levels in Pa.
	Plev []float64 `json:"plev"`
	// Lat holds the latitudes in degrees north.
	Lat []float64 `json:"lat"`
	// Time holds one date per time step, such as "2000-01-16". It is only
	// needed for annual or seasonal means.
	Time []string `json:"time,omitempty"`
}

// Options controls optional post-processing.
type Options struct {
	// ReferencePressure in hPa. Zero selects DefaultReferencePressure.
	ReferencePressure float64 `koanf:"reference_pressure"`
	// AnnualMean averages the result within each calendar year.
	AnnualMean bool `koanf:"annual_mean"`
	// SeasonalMean averages the result within each complete season. It is
	// ignored when AnnualMean is set.
	SeasonalMean bool `koanf:"seasonal_mean"`
	// Climatology collapses the result over time, after any annual or
	// seasonal mean.
	Climatology bool `koanf:"climatology"`
}

// Diagnostic computes the Eady growth rate.
type Diagnostic struct {
	logger *slog.Logger
	opts   Options
}

// New creates a Diagnostic.
func New(logger *slog.Logger, opts Options) *Diagnostic {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.ReferencePressure <= 0 {
		opts.ReferencePressure = DefaultReferencePressure
	}
	return &Diagnostic{logger: logger, opts: opts}
}

// Compute returns the Eady growth rate in day-1 with the dimensions of the
// inputs (minus time when Climatology is set).
func (d *Diagnostic) Compute(in Input) (*grid.Field, error) {
	if err := validate(in); err != nil {
		return nil, err
	}

	theta := PotentialTemperature(in.Ta, in.Plev, d.opts.ReferencePressure)
	brunt, err := BruntVaisala(theta, in.Zg)
	if err != nil {
		return nil, err
	}
	dudz, err := VerticalGradient(in.Ua, in.Zg)
	if err != nil {
		return nil, err
	}

	lat := in.Ta.Shape[2]
	lon := in.Ta.Shape[3]
	fcor := make([]float64, lat)
	for y := range fcor {
		fcor[y] = Coriolis(in.Lat[y])
	}

	egr := make([]float64, len(dudz))
	for i := range egr {
		y := (i / lon) % lat
		egr[i] = Constant * math.Abs(fcor[y]) * math.Abs(dudz[i]) / brunt[i]
	}
	floats.Scale(secondsPerDay, egr)

	out := &grid.Field{
		Name:  "eady_growth_rate",
		Units: "day-1",
		Dims:  append([]string(nil), Dims...),
		Shape: append([]int(nil), in.Ua.Shape...),
		Data:  egr,
	}
	mask := roaring.New()
	if m := in.Ua.Mask(); m != nil {
		mask.Or(m)
	}
	// Coincident geopotential heights leave the gradients undefined.
	for i, v := range egr {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			mask.Add(uint32(i))
			egr[i] = 0
		}
	}
	if !mask.IsEmpty() {
		out.SetMask(mask)
	}

	d.logger.Debug("computed eady growth rate", "alias", in.Alias, "shape", out.Shape)

	groups, err := d.groups(in)
	if err != nil {
		return nil, err
	}
	if groups != nil {
		idx := make([][]int, len(groups))
		labels := make([]string, len(groups))
		for i, g := range groups {
			idx[i] = g.Indices
			labels[i] = g.Label
		}
		if out, err = out.MeanGroups("time", idx); err != nil {
			return nil, err
		}
		d.logger.Debug("averaged eady growth rate over periods", "alias", in.Alias, "periods", labels)
	}

	if d.opts.Climatology {
		clim, err := out.MeanOver("time")
		if err != nil {
			return nil, err
		}
		d.logger.Debug("collapsed eady growth rate over time", "alias", in.Alias)
		return clim, nil
	}
	return out, nil
}

// groups returns the time grouping selected by the options, or nil.
func (d *Diagnostic) groups(in Input) ([]Group, error) {
	if !d.opts.AnnualMean && !d.opts.SeasonalMean {
		return nil, nil
	}
	if len(in.Time) != in.Ta.Shape[0] {
		return nil, fmt.Errorf("%w: %d time stamps for time axis of %d", ErrMissingTime, len(in.Time), in.Ta.Shape[0])
	}
	if d.opts.AnnualMean {
		return AnnualGroups(in.Time)
	}
	return SeasonalGroups(in.Time)
}

func validate(in Input) error {
	for name, f := range map[string]*grid.Field{"ta": in.Ta, "zg": in.Zg, "ua": in.Ua} {
		if f == nil {
			return fmt.Errorf("missing field %q", name)
		}
		if err := f.Validate(); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if len(f.Dims) != len(Dims) {
			return fmt.Errorf("%s: %w, got %v", name, ErrBadDims, f.Dims)
		}
		for i := range Dims {
			if f.Dims[i] != Dims[i] {
				return fmt.Errorf("%s: %w, got %v", name, ErrBadDims, f.Dims)
			}
		}
	}
	if !in.Ta.SameShape(in.Zg) || !in.Ta.SameShape(in.Ua) {
		return fmt.Errorf("%w: ta %v, zg %v, ua %v", grid.ErrShapeMismatch, in.Ta.Shape, in.Zg.Shape, in.Ua.Shape)
	}
	if in.Ta.Shape[1] < 2 {
		return ErrTooFewLevels
	}
	if len(in.Plev) != in.Ta.Shape[1] {
		return fmt.Errorf("%w: %d pressure levels for plev axis of %d", grid.ErrShapeMismatch, len(in.Plev), in.Ta.Shape[1])
	}
	if len(in.Lat) != in.Ta.Shape[2] {
		return fmt.Errorf("%w: %d latitudes for lat axis of %d", grid.ErrShapeMismatch, len(in.Lat), in.Ta.Shape[2])
	}
	return nil
}

// PotentialTemperature returns θ = T (p0/p)^(2/7) for a (time, plev, lat, lon)
// temperature field. plev is in Pa and refHPa in hPa.
func PotentialTemperature(ta *grid.Field, plev []float64, refHPa float64) *grid.Field {
	p0 := refHPa * 100
	theta := ta.Clone()
	theta.Name = "potential_air_temperature"
	stride := ta.Shape[2] * ta.Shape[3]
	levels := ta.Shape[1]
	for i := range theta.Data {
		k := (i / stride) % levels
		theta.Data[i] *= math.Pow(p0/plev[k], 2.0/7.0)
	}
	return theta
}

// VerticalGradient returns dx/dy along the plev axis of two fields of equal
// shape: a forward difference on the first level, centred differences inside
// and a backward difference on the last level.
func VerticalGradient(x, y *grid.Field) ([]float64, error) {
	if !x.SameShape(y) {
		return nil, fmt.Errorf("%w: %v vs %v", grid.ErrShapeMismatch, x.Shape, y.Shape)
	}
	levels := x.Shape[1]
	if levels < 2 {
		return nil, ErrTooFewLevels
	}
	stride := x.Shape[2] * x.Shape[3]

	out := make([]float64, len(x.Data))
	for i := range out {
		k := (i / stride) % levels
		lo, hi := i-stride, i+stride
		switch k {
		case 0:
			lo = i
		case levels - 1:
			hi = i
		}
		out[i] = (x.Data[hi] - x.Data[lo]) / (y.Data[hi] - y.Data[lo])
	}
	return out, nil
}

// BruntVaisala returns N = sqrt(g/θ · max(dθ/dz, 0)) with vanishing values
// replaced by FillValue. An undefined gradient counts as zero.
func BruntVaisala(theta, zg *grid.Field) ([]float64, error) {
	dthdz, err := VerticalGradient(theta, zg)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(dthdz))
	for i, g := range dthdz {
		if !(g > 0) {
			g = 0
		}
		n := math.Sqrt(Gravity / theta.Data[i] * g)
		if n == 0 {
			n = FillValue
		}
		out[i] = n
	}
	return out, nil
}

// Coriolis returns the Coriolis parameter 2Ω sin(lat) for a latitude in degrees.
func Coriolis(latDeg float64) float64 {
	return 2 * Omega * math.Sin(latDeg*math.Pi/180)
}
