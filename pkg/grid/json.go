package grid

import (
	"encoding/json"

	"github.com/RoaringBitmap/roaring/v2"
)

type fieldJSON struct {
	Name  string    `json:"name,omitempty"`
	Units string    `json:"units,omitempty"`
	Dims  []string  `json:"dims"`
	Shape []int     `json:"shape"`
	Data  []float64 `json:"data"`
	Mask  []uint32  `json:"mask,omitempty"`
}

// MarshalJSON encodes the field with its mask as a list of flat indices.
func (f *Field) MarshalJSON() ([]byte, error) {
	out := fieldJSON{
		Name:  f.Name,
		Units: f.Units,
		Dims:  f.Dims,
		Shape: f.Shape,
		Data:  f.Data,
	}
	if f.mask != nil && !f.mask.IsEmpty() {
		out.Mask = f.mask.ToArray()
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a field and validates its shape.
func (f *Field) UnmarshalJSON(data []byte) error {
	var in fieldJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*f = Field{
		Name:  in.Name,
		Units: in.Units,
		Dims:  in.Dims,
		Shape: in.Shape,
		Data:  in.Data,
	}
	if len(in.Mask) > 0 {
		f.mask = roaring.BitmapOf(in.Mask...)
	}
	return f.Validate()
}
