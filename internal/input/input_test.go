package input

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/panbanda/climdiag/pkg/ensemble"
	"github.com/panbanda/climdiag/pkg/grid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestEnsemble(t *testing.T) {
	path := writeFile(t, "ens.json", `{
  "variable": "tas",
  "members": ["a", "b"],
  "times": ["2000", "2001"],
  "values": [[1, 2], [3, 4]]
}`)

	doc, err := Ensemble(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "tas", doc.Value.Variable)
	assert.Equal(t, []float64{3, 4}, doc.Value.Values[1])
	assert.NotEmpty(t, doc.Raw)
	assert.Equal(t, path, doc.Path)
}

func TestEnsemble_Invalid(t *testing.T) {
	path := writeFile(t, "ens.json", `{"members": ["a"], "times": ["t0", "t1"], "values": [[1]]}`)
	_, err := Ensemble(path, nil)
	assert.ErrorIs(t, err, ensemble.ErrInvalidEnsemble)

	path = writeFile(t, "ens.json", `{"members": ["a"], "times": ["t0"], "values": [[1]], "colour": "red"}`)
	_, err = Ensemble(path, nil)
	assert.ErrorContains(t, err, "colour")
}

func TestFieldFromStdin(t *testing.T) {
	stdin := strings.NewReader(`{"name": "tas", "dims": ["time", "lat"], "shape": [2, 2], "data": [1, 2, 3, 4], "mask": [3]}`)

	doc, err := Field("-", stdin)
	require.NoError(t, err)
	f := &doc.Value
	assert.Equal(t, "tas", f.Name)
	assert.True(t, f.Masked(3))
	assert.Equal(t, 1, f.MaskCount())
}

func TestField_ShapeMismatch(t *testing.T) {
	path := writeFile(t, "f.json", `{"dims": ["x"], "shape": [3], "data": [1, 2]}`)
	_, err := Field(path, nil)
	assert.ErrorIs(t, err, grid.ErrShapeMismatch)
}

func TestEady(t *testing.T) {
	path := writeFile(t, "eady.json", `{
  "ta": {"dims": ["time", "plev", "lat", "lon"], "shape": [1, 2, 1, 1], "data": [300, 280]},
  "zg": {"dims": ["time", "plev", "lat", "lon"], "shape": [1, 2, 1, 1], "data": [0, 5000]},
  "ua": {"dims": ["time", "plev", "lat", "lon"], "shape": [1, 2, 1, 1], "data": [0, 10]},
  "plev": [100000, 50000],
  "lat": [45]
}`)

	doc, err := Eady(path, nil)
	require.NoError(t, err)
	assert.Equal(t, path, doc.Value.Alias)
	assert.Equal(t, []float64{100000, 50000}, doc.Value.Plev)
	require.NotNil(t, doc.Value.Ua)
	assert.Equal(t, 10.0, doc.Value.Ua.Data[1])
}

func TestReadErrors(t *testing.T) {
	_, err := Field("", nil)
	assert.Error(t, err)

	_, err = Field(filepath.Join(t.TempDir(), "missing.json"), nil)
	assert.Error(t, err)

	_, err = Field(writeFile(t, "bad.json", "{"), nil)
	assert.Error(t, err)
}

func TestFloats(t *testing.T) {
	got, err := Floats("10, 20,30.5")
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 20, 30.5}, got)

	got, err = Floats("")
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = Floats("1,x")
	assert.Error(t, err)
}
