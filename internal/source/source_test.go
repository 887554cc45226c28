package source

import (
	"errors"
	"math"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		path    string
		want    Kind
		wantErr bool
	}{
		{"cube.fits", KindObservation, false},
		{"/data/CUBE.FITS", KindObservation, false},
		{"snap_010.hdf5", KindSimulation, false},
		{"snap.h5", "", true},
		{"notes.txt", "", true},
		{"noext", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := KindOf(tt.path)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrUnsupportedFile))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAllowedExtensions(t *testing.T) {
	assert.Equal(t, []string{".fits", ".hdf5"}, AllowedExtensions())
}

func TestArray_Component(t *testing.T) {
	arr := Array{Data: []float64{1, 2, 3, 4, 5, 6}, Components: 3}
	assert.Equal(t, 2, arr.Len())
	assert.Equal(t, []float64{1, 4}, arr.Component(0))
	assert.Equal(t, []float64{3, 6}, arr.Component(2))

	scalar := Array{Data: []float64{7, 8}, Components: 1}
	assert.Equal(t, 2, scalar.Len())
	got := scalar.Component(0)
	got[0] = 100
	assert.Equal(t, 7.0, scalar.Data[0], "Component must copy")
}

func TestLoad_DerivesAxesFromPosition(t *testing.T) {
	ds := &MemoryDataset{
		DatasetKind: KindSimulation,
		Arrays: map[string]Array{
			PositionKey: {Data: []float64{1, 2, 3, 4, 5, 6}, Components: 3, Unit: "kpc"},
			"mass":      {Data: []float64{10, 20}, Components: 1, Unit: "Msol"},
		},
	}

	y, err := Load(ds, "y")
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 5}, y.Data)
	assert.Equal(t, "kpc", y.Unit)

	mass, err := Load(ds, "mass")
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 20}, mass.Data)

	_, err = Load(ds, "rho")
	assert.True(t, errors.Is(err, ErrNoVariable))
}

func TestLoad_AxisWithoutPosition(t *testing.T) {
	ds := &MemoryDataset{DatasetKind: KindSimulation, Arrays: map[string]Array{}}
	_, err := Load(ds, "x")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoVariable))
}

func TestNewReader(t *testing.T) {
	r, err := NewReader("file", "gas")
	require.NoError(t, err)
	fr, ok := r.(*FileReader)
	require.True(t, ok)
	assert.Equal(t, "gas", fr.Family)

	r, err = NewReader("SYNTHETIC", "")
	require.NoError(t, err)
	_, ok = r.(*SyntheticReader)
	assert.True(t, ok)

	_, err = NewReader("random", "")
	assert.Error(t, err)
}

func TestFileReader_RejectsUnknownExtension(t *testing.T) {
	_, err := (&FileReader{}).Open("table.csv")
	assert.True(t, errors.Is(err, ErrUnsupportedFile))
}

func TestFileReader_MissingFITS(t *testing.T) {
	_, err := (&FileReader{}).Open(t.TempDir() + "/missing.fits")
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestSyntheticReader_Observation(t *testing.T) {
	ds, err := SyntheticReader{}.Open("survey/a.fits")
	require.NoError(t, err)
	defer ds.Close()

	assert.Equal(t, KindObservation, ds.Kind())
	assert.Equal(t, []string{"dec", "intensity", "ra", "velocity"}, ds.Keys())
	assert.Equal(t, syntheticFrames, ds.Frames())

	inten, err := ds.Array("intensity")
	require.NoError(t, err)
	assert.Len(t, inten.Data, syntheticFrames*syntheticPixels*syntheticPixels)
	assert.True(t, math.IsNaN(inten.Data[0]), "first pixel of each frame is blank")
}

func TestSyntheticReader_Deterministic(t *testing.T) {
	a, err := SyntheticReader{}.Open("run/snap.hdf5")
	require.NoError(t, err)
	b, err := SyntheticReader{}.Open("run/snap.hdf5")
	require.NoError(t, err)
	c, err := SyntheticReader{}.Open("run/other.hdf5")
	require.NoError(t, err)

	pa, _ := a.Array(PositionKey)
	pb, _ := b.Array(PositionKey)
	pc, _ := c.Array(PositionKey)
	assert.Equal(t, pa.Data, pb.Data)
	assert.NotEqual(t, pa.Data, pc.Data)
	assert.Equal(t, 3, pa.Components)
	assert.Equal(t, syntheticParticles, pa.Len())
}

func TestMemoryReader(t *testing.T) {
	r := NewMemoryReader()
	ds := &MemoryDataset{DatasetKind: KindSimulation, Arrays: map[string]Array{"mass": {Data: []float64{1}}}}
	r.Add("a.hdf5", ds)

	got, err := r.Open("a.hdf5")
	require.NoError(t, err)
	assert.Equal(t, 1, r.OpenCount("a.hdf5"))

	arr, err := got.Array("mass")
	require.NoError(t, err)
	assert.Equal(t, 1, arr.Components, "zero Components defaults to 1")

	_, err = r.Open("b.hdf5")
	assert.True(t, errors.Is(err, os.ErrNotExist))
}
