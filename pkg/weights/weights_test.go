package weights

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weights.yml")
	content := `
ACCESS1-0_r1i1p1: 0.25
CanESM2_r1i1p1: 0.5
MIROC5_r1i1p1: 0.25
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	m, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, m, 3)
	assert.Equal(t, 0.5, m["CanESM2_r1i1p1"])
	assert.Equal(t, []string{"ACCESS1-0_r1i1p1", "CanESM2_r1i1p1", "MIROC5_r1i1p1"}, m.Members())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	assert.Error(t, err)
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse([]byte("a: -1\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("a: [1, 2]\n"))
	assert.Error(t, err)
}

func TestAlign(t *testing.T) {
	m := Map{"a": 1, "b": 2, "c": 3}

	got, err := m.Align([]string{"c", "a"})
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 1}, got)

	_, err = m.Align([]string{"a", "z"})
	require.ErrorIs(t, err, ErrMissingMember)
	assert.Contains(t, err.Error(), "z")
}

func TestNormalized(t *testing.T) {
	m := Map{"a": 1, "b": 3}
	n := m.Normalized()
	assert.InDelta(t, 0.25, n["a"], 1e-12)
	assert.InDelta(t, 0.75, n["b"], 1e-12)
	assert.Equal(t, 1.0, m["a"], "original mapping must not change")

	zero := Map{"a": 0}.Normalized()
	assert.Equal(t, 0.0, zero["a"])
}
