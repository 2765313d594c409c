// Package weights reads per-member ensemble weights and aligns them to the
// member order of a dataset.
package weights

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gopkg.in/yaml.v3"
)

// ErrMissingMember is returned when a member has no weight in the mapping.
var ErrMissingMember = errors.New("member has no weight")

// Map holds the weight of each ensemble member, keyed by member label
// (e.g. "ACCESS1-0_r1i1p1").
type Map map[string]float64

// Load reads a YAML document of the form `member: weight`.
func Load(path string) (Map, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read weights: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML weight mapping and checks every weight is a finite,
// non-negative number.
func Parse(data []byte) (Map, error) {
	var m Map
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse weights: %w", err)
	}
	for member, w := range m {
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, fmt.Errorf("weight of %q is %v, want finite and >= 0", member, w)
		}
	}
	return m, nil
}

// Align returns the weight of each member in the given order.
func (m Map) Align(members []string) ([]float64, error) {
	out := make([]float64, len(members))
	for i, member := range members {
		w, ok := m[member]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingMember, member)
		}
		out[i] = w
	}
	return out, nil
}

// Normalized returns a copy of the mapping scaled so the weights sum to one.
// A mapping whose weights sum to zero is returned unscaled.
func (m Map) Normalized() Map {
	members := m.Members()
	ws := make([]float64, len(members))
	for i, member := range members {
		ws[i] = m[member]
	}
	if total := floats.Sum(ws); total > 0 {
		floats.Scale(1/total, ws)
	}
	out := make(Map, len(m))
	for i, member := range members {
		out[member] = ws[i]
	}
	return out
}

// Members returns the member labels in sorted order.
func (m Map) Members() []string {
	members := make([]string, 0, len(m))
	for member := range m {
		members = append(members, member)
	}
	sort.Strings(members)
	return members
}
