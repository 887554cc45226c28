package core

import (
	"errors"
	"os"
	"testing"

	"github.com/JonMunkholm/astroapi/internal/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildVariableRanges_Simulation(t *testing.T) {
	r := source.NewMemoryReader()
	r.Add("snap.hdf5", &source.MemoryDataset{
		DatasetKind: source.KindSimulation,
		Arrays: map[string]source.Array{
			"pos":  {Data: []float64{0, 1, 2, 3, 4, 5}, Components: 3, Unit: "kpc"},
			"vel":  {Data: []float64{-1, 0, 1, 2, nan, -3}, Components: 3, Unit: "km s**-1"},
			"mass": scalar("Msol", 5, 7),
		},
		FrameCount: 2,
	})

	got, err := BuildVariableRanges(r, "snap.hdf5")
	require.NoError(t, err)

	names := make([]string, 0, len(got))
	for name := range got {
		names = append(names, name)
	}
	assert.ElementsMatch(t, []string{"x", "y", "z", "mass", "vel-0", "vel-1", "vel-2"}, names)
	assert.NotContains(t, got, source.PositionKey)

	assert.Equal(t, VariableRange{Name: "x", Unit: "kpc", Min: 0, Max: 3}, got["x"])
	assert.Equal(t, VariableRange{Name: "z", Unit: "kpc", Min: 2, Max: 5}, got["z"])
	assert.Equal(t, VariableRange{Name: "vel-1", Unit: "km s**-1", Min: 0, Max: 0}, got["vel-1"], "NaN is skipped")
	assert.Equal(t, VariableRange{Name: "vel-2", Unit: "km s**-1", Min: -3, Max: 1}, got["vel-2"])
	assert.Equal(t, 5.0, got["mass"].Min)
	assert.Equal(t, 7.0, got["mass"].Max)
}

func TestBuildVariableRanges_Observation(t *testing.T) {
	r := source.NewMemoryReader()
	r.Add("cube.fits", cubeFile(
		[]float64{10, 11, 12},
		[]float64{-5, -4, -3},
		[]float64{1000, 2000, 3000},
		[]float64{0.5, nan, 2.5},
	))

	got, err := BuildVariableRanges(r, "cube.fits")
	require.NoError(t, err)

	require.Len(t, got, 4)
	assert.Equal(t, VariableRange{Name: "ra", Unit: "deg", Min: 10, Max: 12}, got["ra"])
	assert.Equal(t, VariableRange{Name: "velocity", Unit: "m / s", Min: 1000, Max: 3000}, got["velocity"])
	assert.Equal(t, VariableRange{Name: "intensity", Unit: "K", Min: 0.5, Max: 2.5}, got["intensity"])
}

func TestBuildVariableRanges_Errors(t *testing.T) {
	r := source.NewMemoryReader()
	r.Add("empty.hdf5", simFile(
		[]float64{1}, []float64{2}, []float64{3},
		map[string]source.Array{"rho": scalar("", nan)},
	))

	t.Run("missing file", func(t *testing.T) {
		_, err := BuildVariableRanges(r, "missing.fits")
		var sre *SourceReadError
		require.ErrorAs(t, err, &sre)
		assert.Equal(t, "missing.fits", sre.Path)
		assert.True(t, errors.Is(err, os.ErrNotExist))
	})

	t.Run("unsupported extension", func(t *testing.T) {
		_, err := BuildVariableRanges(r, "table.csv")
		assert.ErrorIs(t, err, source.ErrUnsupportedFile)
	})

	t.Run("variable without finite values", func(t *testing.T) {
		_, err := BuildVariableRanges(r, "empty.hdf5")
		var sre *SourceReadError
		require.ErrorAs(t, err, &sre)
		assert.Equal(t, "rho", sre.Variable)
		assert.ErrorIs(t, err, ErrNoFiniteData)
	})
}

func TestSplitComponent(t *testing.T) {
	tests := []struct {
		name   string
		key    string
		index  int
		wantOK bool
	}{
		{"vel-0", "vel", 0, true},
		{"a-b-12", "a-b", 12, true},
		{"vel", "", 0, false},
		{"vel-", "", 0, false},
		{"-3", "", 0, false},
		{"vel-x", "", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, idx, ok := splitComponent(tt.name)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.key, key)
			assert.Equal(t, tt.index, idx)
		})
	}
	assert.Equal(t, "vel-2", componentName("vel", 2))
}

func TestVariableNames(t *testing.T) {
	got := VariableNames(map[string]VariableRange{"z": {}, "vel-1": {}, "mass": {}, "vel-0": {}})
	assert.Equal(t, []string{"mass", "vel-0", "vel-1", "z"}, got)
}
