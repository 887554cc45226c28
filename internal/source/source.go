// Package source opens astronomical data files and exposes the physical
// variables they contain as flat numeric arrays.
//
// Two file categories are supported, selected by extension:
//
//   - observation (.fits): spectral cubes, always exposing ra, dec, velocity
//     and intensity, one row per (frame, y, x) pixel.
//   - simulation (.hdf5): N-body snapshots exposing every loadable particle
//     array. Positions are stored as a single "pos" array and are also served
//     as the derived axes x, y and z.
//
// The rest of the application only depends on the [Reader] and [Dataset]
// contracts. Which implementation backs them is chosen by configuration
// (see [NewReader]).
package source

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// Kind is the category of a source file.
type Kind string

const (
	KindObservation Kind = "observation"
	KindSimulation  Kind = "simulation"
)

// PositionKey is the combined position array of a simulation snapshot.
const PositionKey = "pos"

// ObservationVariables are the fixed variables of an observation cube.
var ObservationVariables = []string{"ra", "dec", "velocity", "intensity"}

// AxisNames are the derived coordinate axes of a simulation snapshot, in
// component order of PositionKey.
var AxisNames = []string{"x", "y", "z"}

// ErrUnsupportedFile is returned when a path has no recognised extension.
var ErrUnsupportedFile = errors.New("unsupported file type")

// ErrNoVariable is returned when a dataset does not expose a variable.
var ErrNoVariable = errors.New("variable not found")

var extensionKinds = map[string]Kind{
	".fits": KindObservation,
	".hdf5": KindSimulation,
}

// KindOf classifies a path by its extension (case-insensitive).
func KindOf(path string) (Kind, error) {
	ext := strings.ToLower(filepath.Ext(path))
	kind, ok := extensionKinds[ext]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFile, path)
	}
	return kind, nil
}

// AllowedExtensions returns the recognised file extensions, sorted.
func AllowedExtensions() []string {
	exts := make([]string, 0, len(extensionKinds))
	for ext := range extensionKinds {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Array is one variable loaded from a file.
//
// Data is row-major: a quantity with Components > 1 (e.g. a velocity field)
// stores Components consecutive values per row.
type Array struct {
	Data       []float64
	Components int
	Unit       string
}

// Len returns the number of rows.
func (a Array) Len() int {
	if a.Components <= 1 {
		return len(a.Data)
	}
	return len(a.Data) / a.Components
}

// Component returns a copy of column i of a multi-component array.
func (a Array) Component(i int) []float64 {
	c := a.Components
	if c <= 1 {
		out := make([]float64, len(a.Data))
		copy(out, a.Data)
		return out
	}
	n := a.Len()
	out := make([]float64, n)
	for row := 0; row < n; row++ {
		out[row] = a.Data[row*c+i]
	}
	return out
}

// Dataset is an opened source file.
type Dataset interface {
	// Kind reports the file category.
	Kind() Kind
	// Keys lists the loadable variable names, sorted.
	Keys() []string
	// Array loads one variable. Returns ErrNoVariable for unknown names.
	Array(name string) (Array, error)
	// Frames is the number of spectral frames for observations and the
	// number of particles for simulations.
	Frames() int
	Close() error
}

// Reader opens datasets by path.
type Reader interface {
	Open(path string) (Dataset, error)
}

// Load reads a variable from ds, deriving the x, y and z axes from the
// position array when the dataset does not store them directly.
func Load(ds Dataset, name string) (Array, error) {
	arr, err := ds.Array(name)
	if err == nil || !errors.Is(err, ErrNoVariable) {
		return arr, err
	}

	axis := axisIndex(name)
	if axis < 0 {
		return Array{}, err
	}

	pos, perr := ds.Array(PositionKey)
	if perr != nil {
		return Array{}, fmt.Errorf("derive %s: %w", name, perr)
	}
	if pos.Components <= axis {
		return Array{}, fmt.Errorf("derive %s: %s has %d components", name, PositionKey, pos.Components)
	}
	return Array{Data: pos.Component(axis), Components: 1, Unit: pos.Unit}, nil
}

func axisIndex(name string) int {
	for i, a := range AxisNames {
		if a == name {
			return i
		}
	}
	return -1
}

// Reader modes accepted by NewReader.
const (
	ModeFile      = "file"
	ModeSynthetic = "synthetic"
)

// NewReader returns the reader implementation for mode. family selects the
// particle family of simulation snapshots ("" picks the first non-empty one).
func NewReader(mode, family string) (Reader, error) {
	switch strings.ToLower(mode) {
	case ModeFile, "":
		return &FileReader{Family: family}, nil
	case ModeSynthetic:
		return &SyntheticReader{}, nil
	default:
		return nil, fmt.Errorf("unknown reader mode: %q", mode)
	}
}

// FileReader reads real FITS cubes and HDF5 snapshots from disk.
type FileReader struct {
	Family string
}

// Open implements Reader.
func (r *FileReader) Open(path string) (Dataset, error) {
	kind, err := KindOf(path)
	if err != nil {
		return nil, err
	}
	switch kind {
	case KindObservation:
		return openFITS(path)
	default:
		return openHDF5(path, r.Family)
	}
}
