package source

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/hdf5"
)

// gadgetFamilies maps particle groups of a GADGET-style snapshot to family
// names, in the order they are probed.
var gadgetFamilies = []struct {
	group  string
	family string
}{
	{"PartType0", "gas"},
	{"PartType1", "dm"},
	{"PartType4", "star"},
	{"PartType5", "bh"},
}

// gadgetKeys maps stored dataset names to variable keys. Unlisted datasets
// are exposed under their lowercased name.
var gadgetKeys = map[string]string{
	"Coordinates":              PositionKey,
	"Velocities":               "vel",
	"Masses":                   "mass",
	"Density":                  "rho",
	"InternalEnergy":           "u",
	"ParticleIDs":              "iord",
	"Potential":                "phi",
	"SmoothingLength":          "smooth",
	"Metallicity":              "metals",
	"StarFormationTime":        "tform",
	"ElectronAbundance":        "ne",
	"NeutralHydrogenAbundance": "nhi",
}

var keyUnits = map[string]string{
	PositionKey: "kpc",
	"vel":       "km s**-1",
	"mass":      "Msol",
	"rho":       "Msol kpc**-3",
	"u":         "km**2 s**-2",
	"phi":       "km**2 s**-2",
	"smooth":    "kpc",
	"tform":     "Gyr",
}

func unitFor(key string) string {
	if u, ok := keyUnits[key]; ok {
		return u
	}
	return "1"
}

// hdf5Dataset reads particle arrays of one family lazily.
type hdf5Dataset struct {
	file    *hdf5.File
	group   *hdf5.Group
	family  string
	names   map[string]string
	records int
}

func openHDF5(path, family string) (*hdf5Dataset, error) {
	f, err := hdf5.OpenFile(path, hdf5.F_ACC_RDONLY)
	if err != nil {
		return nil, fmt.Errorf("open hdf5 %s: %w", path, err)
	}

	ds, err := openFamily(f, family)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("hdf5 %s: %w", path, err)
	}
	return ds, nil
}

func openFamily(f *hdf5.File, family string) (*hdf5Dataset, error) {
	for _, fam := range gadgetFamilies {
		if family != "" && !strings.EqualFold(family, fam.family) {
			continue
		}
		if !f.LinkExists(fam.group) {
			continue
		}
		g, err := f.OpenGroup(fam.group)
		if err != nil {
			return nil, err
		}
		names, err := datasetNames(g)
		if err != nil {
			g.Close()
			return nil, err
		}
		if len(names) == 0 {
			g.Close()
			continue
		}

		ds := &hdf5Dataset{file: f, group: g, family: fam.family, names: names}
		if ds.records, err = ds.rowCount(); err != nil {
			g.Close()
			return nil, err
		}
		return ds, nil
	}
	if family != "" {
		return nil, fmt.Errorf("particle family %q not found", family)
	}
	return nil, errors.New("no particle families found")
}

func datasetNames(g *hdf5.Group) (map[string]string, error) {
	n, err := g.NumObjects()
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, n)
	for i := uint(0); i < n; i++ {
		typ, err := g.ObjectTypeByIndex(i)
		if err != nil {
			return nil, err
		}
		if typ != hdf5.H5G_DATASET {
			continue
		}
		name, err := g.ObjectNameByIndex(i)
		if err != nil {
			return nil, err
		}
		key, ok := gadgetKeys[name]
		if !ok {
			key = strings.ToLower(name)
		}
		names[key] = name
	}
	return names, nil
}

func (d *hdf5Dataset) rowCount() (int, error) {
	for _, key := range d.Keys() {
		dims, err := d.dims(key)
		if err != nil {
			return 0, err
		}
		if len(dims) > 0 {
			return int(dims[0]), nil
		}
	}
	return 0, nil
}

func (d *hdf5Dataset) dims(key string) ([]uint, error) {
	dset, err := d.group.OpenDataset(d.names[key])
	if err != nil {
		return nil, err
	}
	defer dset.Close()

	space := dset.Space()
	defer space.Close()

	dims, _, err := space.SimpleExtentDims()
	return dims, err
}

func (d *hdf5Dataset) Kind() Kind { return KindSimulation }

func (d *hdf5Dataset) Keys() []string {
	keys := make([]string, 0, len(d.names))
	for k := range d.names {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (d *hdf5Dataset) Array(key string) (Array, error) {
	name, ok := d.names[key]
	if !ok {
		return Array{}, fmt.Errorf("%w: %s", ErrNoVariable, key)
	}

	dims, err := d.dims(key)
	if err != nil {
		return Array{}, fmt.Errorf("%s: %w", name, err)
	}
	total, components := 1, 1
	for i, dim := range dims {
		total *= int(dim)
		if i > 0 {
			components *= int(dim)
		}
	}

	dset, err := d.group.OpenDataset(name)
	if err != nil {
		return Array{}, fmt.Errorf("%s: %w", name, err)
	}
	defer dset.Close()

	data := make([]float64, total)
	if err := dset.Read(&data); err != nil {
		return Array{}, fmt.Errorf("read %s: %w", name, err)
	}
	return Array{Data: data, Components: components, Unit: unitFor(key)}, nil
}

func (d *hdf5Dataset) Frames() int { return d.records }

func (d *hdf5Dataset) Close() error {
	gerr := d.group.Close()
	ferr := d.file.Close()
	return errors.Join(gerr, ferr)
}
