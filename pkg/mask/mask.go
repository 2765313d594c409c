// Package mask builds a mask from a reference field with a sequence of named
// masking operations and applies it to other fields of the same shape.
//
// Operations come from a closed set. Names are resolved when a step is
// parsed, so an unknown operation fails before any data is touched.
package mask

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/panbanda/climdiag/pkg/grid"
)

var (
	// ErrUnknownOperation is returned for an operation name outside the supported set.
	ErrUnknownOperation = errors.New("unknown masking operation")

	// ErrMissingArgument is returned when an operation lacks a required argument.
	ErrMissingArgument = errors.New("missing masking argument")
)

// Operation identifies a masking operation.
type Operation string

const (
	MaskedGreater      Operation = "masked_greater"
	MaskedGreaterEqual Operation = "masked_greater_equal"
	MaskedLess         Operation = "masked_less"
	MaskedLessEqual    Operation = "masked_less_equal"
	MaskedEqual        Operation = "masked_equal"
	MaskedNotEqual     Operation = "masked_not_equal"
	MaskedInside       Operation = "masked_inside"
	MaskedOutside      Operation = "masked_outside"
	MaskedInvalid      Operation = "masked_invalid"
	MaskedValues       Operation = "masked_values"
)

// predicate reports whether a value is masked given the step arguments.
type predicate func(v float64, args map[string]float64) bool

type spec struct {
	required []string
	masks    predicate
}

var registry = map[Operation]spec{
	MaskedGreater: {[]string{"value"}, func(v float64, a map[string]float64) bool { return v > a["value"] }},
	MaskedGreaterEqual: {[]string{"value"}, func(v float64, a map[string]float64) bool {
		return v >= a["value"]
	}},
	MaskedLess: {[]string{"value"}, func(v float64, a map[string]float64) bool { return v < a["value"] }},
	MaskedLessEqual: {[]string{"value"}, func(v float64, a map[string]float64) bool {
		return v <= a["value"]
	}},
	MaskedEqual:    {[]string{"value"}, func(v float64, a map[string]float64) bool { return v == a["value"] }},
	MaskedNotEqual: {[]string{"value"}, func(v float64, a map[string]float64) bool { return v != a["value"] }},
	MaskedInside: {[]string{"v1", "v2"}, func(v float64, a map[string]float64) bool {
		lo, hi := bounds(a)
		return v >= lo && v <= hi
	}},
	MaskedOutside: {[]string{"v1", "v2"}, func(v float64, a map[string]float64) bool {
		lo, hi := bounds(a)
		return v < lo || v > hi
	}},
	MaskedInvalid: {nil, func(v float64, _ map[string]float64) bool {
		return math.IsNaN(v) || math.IsInf(v, 0)
	}},
	MaskedValues: {[]string{"value"}, func(v float64, a map[string]float64) bool {
		value := a["value"]
		atol, ok := a["atol"]
		if !ok {
			atol = 1e-8
		}
		rtol, ok := a["rtol"]
		if !ok {
			rtol = 1e-5
		}
		return math.Abs(v-value) <= atol+rtol*math.Abs(value)
	}},
}

// bounds orders v1 and v2; either may be the lower bound.
func bounds(a map[string]float64) (float64, float64) {
	lo, hi := a["v1"], a["v2"]
	if hi < lo {
		lo, hi = hi, lo
	}
	return lo, hi
}

// Operations returns the supported operation names in sorted order.
func Operations() []Operation {
	ops := make([]Operation, 0, len(registry))
	for op := range registry {
		ops = append(ops, op)
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i] < ops[j] })
	return ops
}

// Parse resolves an operation name.
func Parse(name string) (Operation, error) {
	op := Operation(strings.TrimSpace(name))
	if _, ok := registry[op]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownOperation, name)
	}
	return op, nil
}

// Step is one masking operation with its arguments.
type Step struct {
	Op   Operation          `json:"op" koanf:"op"`
	Args map[string]float64 `json:"args,omitempty" koanf:"args"`
}

// NewStep resolves name and checks the required arguments are present.
func NewStep(name string, args map[string]float64) (Step, error) {
	op, err := Parse(name)
	if err != nil {
		return Step{}, err
	}
	s := Step{Op: op, Args: args}
	return s, s.Validate()
}

// Validate checks the operation is known and its arguments are present.
func (s Step) Validate() error {
	sp, ok := registry[s.Op]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownOperation, s.Op)
	}
	for _, arg := range sp.required {
		if _, ok := s.Args[arg]; !ok {
			return fmt.Errorf("%w: %s requires %q", ErrMissingArgument, s.Op, arg)
		}
	}
	return nil
}

// ParseStep parses the command line form "op" or "op:arg=value,arg=value".
func ParseStep(s string) (Step, error) {
	name, rest, _ := strings.Cut(s, ":")
	args := make(map[string]float64)
	if rest != "" {
		for _, kv := range strings.Split(rest, ",") {
			k, v, ok := strings.Cut(kv, "=")
			if !ok {
				return Step{}, fmt.Errorf("invalid masking argument %q in %q", kv, s)
			}
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return Step{}, fmt.Errorf("invalid value for %q in %q: %w", k, s, err)
			}
			args[strings.TrimSpace(k)] = f
		}
	}
	return NewStep(name, args)
}

// Build applies steps in order to the reference field and returns the union
// of the reference's existing mask and every cell a step masks. The
// reference field is not modified.
func Build(ref *grid.Field, steps []Step) (*roaring.Bitmap, error) {
	for _, s := range steps {
		if err := s.Validate(); err != nil {
			return nil, err
		}
	}

	m := roaring.New()
	if existing := ref.Mask(); existing != nil {
		m.Or(existing)
	}
	for _, s := range steps {
		masks := registry[s.Op].masks
		for i, v := range ref.Data {
			if masks(v, s.Args) {
				m.Add(uint32(i))
			}
		}
	}
	return m, nil
}

// Apply returns a copy of each field carrying the union of its own mask and
// m. Every field must have the shape of the reference the mask was built
// from; on a mismatch nothing is returned.
func Apply(m *roaring.Bitmap, shape []int, fields ...*grid.Field) ([]*grid.Field, error) {
	out := make([]*grid.Field, len(fields))
	for i, f := range fields {
		if !sameShape(shape, f.Shape) {
			return nil, fmt.Errorf("%w: field %q has shape %v, reference has %v", grid.ErrShapeMismatch, f.Name, f.Shape, shape)
		}
		masked := f.Clone()
		merged := m.Clone()
		if existing := masked.Mask(); existing != nil {
			merged.Or(existing)
		}
		masked.SetMask(merged)
		out[i] = masked
	}
	return out, nil
}

func sameShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
