package core

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/JonMunkholm/astroapi/internal/logging"
	"github.com/JonMunkholm/astroapi/internal/source"
)

// BuildVariableRanges scans one file and returns the observed range and unit
// of every variable it exposes.
//
// Observation cubes expose ra, dec, velocity and intensity. Simulation
// snapshots expose x, y and z plus every stored key except the combined
// position array; multi-component keys expand to "{key}-{i}".
func BuildVariableRanges(r source.Reader, path string) (map[string]VariableRange, error) {
	kind, err := source.KindOf(path)
	if err != nil {
		return nil, &SourceReadError{Path: path, Err: err}
	}

	ds, err := r.Open(path)
	if err != nil {
		return nil, &SourceReadError{Path: path, Err: err}
	}
	defer ds.Close()

	ranges := make(map[string]VariableRange)
	for _, key := range variableKeys(kind, ds) {
		arr, err := source.Load(ds, key)
		if err != nil {
			return nil, &SourceReadError{Path: path, Variable: key, Err: err}
		}

		names := componentNames(key, arr.Components)
		for i, name := range names {
			lo, hi, ok := finiteRange(arr, i)
			if !ok {
				return nil, &SourceReadError{Path: path, Variable: name, Err: ErrNoFiniteData}
			}
			ranges[name] = VariableRange{Name: name, Unit: arr.Unit, Min: lo, Max: hi}
		}
	}
	return ranges, nil
}

// VariableNames returns the names of ranges in lexicographic order.
func VariableNames(ranges map[string]VariableRange) []string {
	names := make([]string, 0, len(ranges))
	for name := range ranges {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// variableKeys lists the dataset keys to scan for a file of the given kind.
func variableKeys(kind source.Kind, ds source.Dataset) []string {
	if kind == source.KindObservation {
		return slices.Clone(source.ObservationVariables)
	}

	keys := slices.Clone(source.AxisNames)
	for _, key := range ds.Keys() {
		if key == source.PositionKey || slices.Contains(keys, key) {
			continue
		}
		keys = append(keys, key)
	}
	return keys
}

// componentNames expands a key into one name per component.
func componentNames(key string, components int) []string {
	if components <= 1 {
		return []string{key}
	}
	names := make([]string, components)
	for i := range names {
		names[i] = componentName(key, i)
	}
	return names
}

func componentName(key string, i int) string {
	return fmt.Sprintf("%s-%d", key, i)
}

// splitComponent is the inverse of componentName.
func splitComponent(name string) (key string, index int, ok bool) {
	dash := strings.LastIndexByte(name, '-')
	if dash <= 0 || dash == len(name)-1 {
		return "", 0, false
	}
	index, err := strconv.Atoi(name[dash+1:])
	if err != nil || index < 0 {
		return "", 0, false
	}
	return name[:dash], index, true
}

// finiteRange returns the min and max of the finite values in component c.
func finiteRange(arr source.Array, c int) (lo, hi float64, ok bool) {
	stride := max(arr.Components, 1)
	lo, hi = math.Inf(1), math.Inf(-1)
	for i := c; i < len(arr.Data); i += stride {
		v := arr.Data[i]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		lo = min(lo, v)
		hi = max(hi, v)
		ok = true
	}
	return lo, hi, ok
}

// isAxis reports whether a variable is a spatial axis. Rows outside the
// selected bounds of an axis are dropped; other variables are zeroed.
func isAxis(name string) bool {
	return slices.Contains(source.AxisNames, name)
}

// ReadRanges builds the variable ranges of every path through r, in order.
// The first unreadable file fails the whole call.
func ReadRanges(ctx context.Context, r source.Reader, paths []string) ([]FileRanges, error) {
	log := logging.FromContext(ctx)
	files := make([]FileRanges, 0, len(paths))
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ranges, err := BuildVariableRanges(r, p)
		if err != nil {
			return nil, err
		}
		log.Debug("read variable ranges", "path", p, "variables", len(ranges))
		files = append(files, FileRanges{Path: p, Ranges: ranges})
	}
	return files, nil
}
