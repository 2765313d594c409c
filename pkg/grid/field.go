// Package grid provides an N-dimensional gridded field with an optional mask.
//
// Data is stored flat in row-major order: the last dimension varies fastest.
// Masked cells are tracked by flat index in a roaring bitmap.
package grid

import (
	"errors"
	"fmt"
	"math"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/panbanda/climdiag/pkg/stats"
)

var (
	// ErrShapeMismatch is returned when two fields, or a field and its data, disagree in shape.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrUnknownDimension is returned when a named dimension is not part of a field.
	ErrUnknownDimension = errors.New("unknown dimension")
)

// Field is a named N-dimensional array of float64 values.
type Field struct {
	Name  string    `json:"name,omitempty"`
	Units string    `json:"units,omitempty"`
	Dims  []string  `json:"dims"`
	Shape []int     `json:"shape"`
	Data  []float64 `json:"data"`

	mask *roaring.Bitmap
}

// New creates a field and checks that data fills the shape exactly.
func New(name string, dims []string, shape []int, data []float64) (*Field, error) {
	f := &Field{Name: name, Dims: dims, Shape: shape, Data: data}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// Validate checks the dims, shape and data length agree.
func (f *Field) Validate() error {
	if len(f.Dims) != len(f.Shape) {
		return fmt.Errorf("%w: %d dims for %d axes", ErrShapeMismatch, len(f.Dims), len(f.Shape))
	}
	n := 1
	for i, s := range f.Shape {
		if s <= 0 {
			return fmt.Errorf("%w: axis %q has size %d", ErrShapeMismatch, f.Dims[i], s)
		}
		n *= s
	}
	if len(f.Data) != n {
		return fmt.Errorf("%w: %d values for shape %v", ErrShapeMismatch, len(f.Data), f.Shape)
	}
	return nil
}

// Size returns the number of cells.
func (f *Field) Size() int {
	return len(f.Data)
}

// Axis returns the position of the named dimension.
func (f *Field) Axis(dim string) (int, error) {
	for i, d := range f.Dims {
		if d == dim {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %q not in %v", ErrUnknownDimension, dim, f.Dims)
}

// Offset converts a multi-index into a flat index. It panics when the index
// has the wrong rank or is out of range.
func (f *Field) Offset(idx ...int) int {
	if len(idx) != len(f.Shape) {
		panic(fmt.Sprintf("grid: index rank %d, field rank %d", len(idx), len(f.Shape)))
	}
	off := 0
	for i, v := range idx {
		if v < 0 || v >= f.Shape[i] {
			panic(fmt.Sprintf("grid: index %d out of range on axis %q", v, f.Dims[i]))
		}
		off = off*f.Shape[i] + v
	}
	return off
}

// At returns the value at the given multi-index.
func (f *Field) At(idx ...int) float64 {
	return f.Data[f.Offset(idx...)]
}

// SameShape reports whether f and other have identical shapes.
func (f *Field) SameShape(other *Field) bool {
	if len(f.Shape) != len(other.Shape) {
		return false
	}
	for i := range f.Shape {
		if f.Shape[i] != other.Shape[i] {
			return false
		}
	}
	return true
}

// Clone returns a deep copy, mask included.
func (f *Field) Clone() *Field {
	c := &Field{
		Name:  f.Name,
		Units: f.Units,
		Dims:  append([]string(nil), f.Dims...),
		Shape: append([]int(nil), f.Shape...),
		Data:  append([]float64(nil), f.Data...),
	}
	if f.mask != nil {
		c.mask = f.mask.Clone()
	}
	return c
}

// Mask returns the field's mask. The result may be nil when nothing is masked.
func (f *Field) Mask() *roaring.Bitmap {
	return f.mask
}

// SetMask replaces the field's mask.
func (f *Field) SetMask(m *roaring.Bitmap) {
	f.mask = m
}

// Masked reports whether the cell at flat index i is masked.
func (f *Field) Masked(i int) bool {
	return f.mask != nil && f.mask.Contains(uint32(i))
}

// MaskCount returns the number of masked cells.
func (f *Field) MaskCount() int {
	if f.mask == nil {
		return 0
	}
	return int(f.mask.GetCardinality())
}

// Values returns the data with masked cells replaced by NaN.
func (f *Field) Values() []float64 {
	out := append([]float64(nil), f.Data...)
	if f.mask == nil {
		return out
	}
	it := f.mask.Iterator()
	for it.HasNext() {
		out[it.Next()] = math.NaN()
	}
	return out
}

// MeanOver collapses the named dimension by arithmetic mean. Masked cells are
// left out; a result cell with no unmasked input stays masked.
func (f *Field) MeanOver(dim string) (*Field, error) {
	axis, err := f.Axis(dim)
	if err != nil {
		return nil, err
	}
	all := make([]int, f.Shape[axis])
	for i := range all {
		all[i] = i
	}
	out, err := f.MeanGroups(dim, [][]int{all})
	if err != nil {
		return nil, err
	}
	out.Dims = append(append([]string(nil), f.Dims[:axis]...), f.Dims[axis+1:]...)
	out.Shape = append(append([]int(nil), f.Shape[:axis]...), f.Shape[axis+1:]...)
	return out, nil
}

// MeanGroups averages the named dimension within each group of indices. The
// dimension is kept with one entry per group. Masked cells are left out; a
// result cell with no unmasked input stays masked.
func (f *Field) MeanGroups(dim string, groups [][]int) (*Field, error) {
	axis, err := f.Axis(dim)
	if err != nil {
		return nil, err
	}
	n := f.Shape[axis]
	for g, idx := range groups {
		if len(idx) == 0 {
			return nil, fmt.Errorf("%w: group %d of %q is empty", ErrShapeMismatch, g, dim)
		}
		for _, k := range idx {
			if k < 0 || k >= n {
				return nil, fmt.Errorf("%w: index %d outside axis %q of size %d", ErrShapeMismatch, k, dim, n)
			}
		}
	}

	outer := 1
	for _, s := range f.Shape[:axis] {
		outer *= s
	}
	inner := 1
	for _, s := range f.Shape[axis+1:] {
		inner *= s
	}

	shape := append([]int(nil), f.Shape...)
	shape[axis] = len(groups)
	out := &Field{
		Name:  f.Name,
		Units: f.Units,
		Dims:  append([]string(nil), f.Dims...),
		Shape: shape,
		Data:  make([]float64, outer*len(groups)*inner),
	}

	var mask *roaring.Bitmap
	for o := 0; o < outer; o++ {
		for g, idx := range groups {
			column := make([]float64, len(idx))
			for i := 0; i < inner; i++ {
				base := o*n*inner + i
				for j, k := range idx {
					column[j] = f.Data[base+k*inner]
				}
				mean, used := stats.MeanSkipping(column, func(j int) bool {
					return f.Masked(base + idx[j]*inner)
				})
				dst := (o*len(groups)+g)*inner + i
				if used == 0 {
					if mask == nil {
						mask = roaring.New()
					}
					mask.Add(uint32(dst))
					mean = 0
				}
				out.Data[dst] = mean
			}
		}
	}
	out.mask = mask
	return out, nil
}

// Sub returns f - other element-wise. The masks are merged.
func (f *Field) Sub(other *Field) (*Field, error) {
	if !f.SameShape(other) {
		return nil, fmt.Errorf("%w: %v vs %v", ErrShapeMismatch, f.Shape, other.Shape)
	}
	out := f.Clone()
	for i := range out.Data {
		out.Data[i] -= other.Data[i]
	}
	switch {
	case out.mask != nil && other.mask != nil:
		out.mask.Or(other.mask)
	case other.mask != nil:
		out.mask = other.mask.Clone()
	}
	return out, nil
}
