package exodus

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/exoseq/pkg/dataset"
	"github.com/ajitpratap0/exoseq/pkg/errors"
	"github.com/ajitpratap0/exoseq/pkg/netcdf"
)

func writeSynthetic(t *testing.T, s Synthetic) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cube.e")
	require.NoError(t, s.WriteFile(path))
	return path
}

func TestOpenSynthetic(t *testing.T) {
	for _, combined := range []bool{false, true} {
		path := writeSynthetic(t, Synthetic{
			Title: "cube", NX: 3, NY: 2, NZ: 2, Steps: 5,
			Variables: []string{"TEMP", "HEAT_FLUX_x"},
			Combined:  combined,
		})
		f, err := Open(path)
		require.NoError(t, err)

		var ds dataset.Accessor = f
		assert.Equal(t, 5, ds.NumTimeSteps())
		assert.Equal(t, 12, f.NumNodes())
		assert.Equal(t, []string{"TEMP", "HEAT_FLUX_x"}, ds.VariableNames())

		tv, err := ds.TimeValue(3)
		require.NoError(t, err)
		assert.InDelta(t, 0.3, tv, 1e-12)

		x, err := ds.Coordinates(dataset.X)
		require.NoError(t, err)
		assert.Equal(t, []float64{0, 1, 2, 0, 1, 2, 0, 1, 2, 0, 1, 2}, x)
		z, err := ds.Coordinates(dataset.Z)
		require.NoError(t, err)
		assert.Equal(t, 1.0, z[11])

		vals, err := ds.VariableValues("HEAT_FLUX_x", 4)
		require.NoError(t, err, "combined=%v", combined)
		require.Len(t, vals, 12)
		assert.InDelta(t, 204.0, vals[0], 1e-12)
		assert.InDelta(t, 204.011, vals[11], 1e-12)

		_, err = ds.VariableValues("PRESSURE", 0)
		assert.True(t, errors.IsType(err, errors.ErrorTypeVariableNotFound))
		_, err = ds.VariableValues("TEMP", 5)
		assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
		_, err = ds.TimeValue(-1)
		assert.Error(t, err)

		require.NoError(t, f.Close())
	}
}

func TestTwoDimensionalMeshHasZeroZ(t *testing.T) {
	f, err := Open(writeSynthetic(t, Synthetic{NX: 2, NY: 2, Steps: 1, Variables: []string{"TEMP"}}))
	require.NoError(t, err)
	defer f.Close()

	_, ok := f.NetCDF().Var(VarCoordZ)
	require.False(t, ok)
	z, err := f.Coordinates(dataset.Z)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0, 0}, z)
}

func TestCombinedCoordinates(t *testing.T) {
	data, err := netcdf.NewBuilder().
		AddDim(DimNumDim, 2).
		AddDim(DimNumNodes, 2).
		AddDim("time_step", 0).
		AddVar(VarCoord, netcdf.Float, []string{DimNumDim, DimNumNodes}, []float64{1, 2, 3, 4}).
		AddVar(VarTime, netcdf.Float, []string{"time_step"}, []float64{0.5}).
		Bytes()
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "flat.exo")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	f, err := Open(path)
	require.NoError(t, err)
	defer f.Close()

	y, err := f.Coordinates(dataset.Y)
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 4}, y)
	z, err := f.Coordinates(dataset.Z)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0}, z)
	assert.Empty(t, f.VariableNames())
	assert.Equal(t, 1, f.NumTimeSteps())
}

func TestInfo(t *testing.T) {
	f, err := Open(writeSynthetic(t, Synthetic{Title: "heat", NX: 3, NY: 3, NZ: 3, Steps: 2, Variables: []string{"TEMP"}}))
	require.NoError(t, err)
	defer f.Close()

	info, err := f.Info()
	require.NoError(t, err)
	assert.Equal(t, "cube.e", info.Filename)
	assert.Equal(t, "heat", info.Title)
	assert.InDelta(t, 5.1, info.Version, 1e-6)
	assert.Equal(t, 8, info.FloatingPointWordSize)
	assert.Equal(t, 27, info.NumNodes)
	assert.Equal(t, 8, info.NumElem)
	assert.Equal(t, 3, info.NumDim)
	assert.Equal(t, 1, info.NumNodeVars)
	assert.Equal(t, 2, info.NumTimeSteps)
	assert.Equal(t, []string{"x", "y", "z"}, info.CoordinateNames)
	assert.Equal(t, [][]string{{"exoseq", "1.0", "01/15/2024", "10:30:00"}}, info.QARecords)
	assert.Contains(t, info.Synopsis(), "    num_elem: 8\n")
}

func TestOpenRejectsNonNetCDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("not a mesh at all"), 0o644))
	_, err := Open(path)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeUnsupportedType))
}
