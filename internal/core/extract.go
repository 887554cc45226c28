package core

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"sort"

	"github.com/JonMunkholm/astroapi/internal/source"
)

// ExtractOption configures ExtractTable and Combine.
type ExtractOption func(*extractOptions)

type extractOptions struct {
	rng *rand.Rand
}

// WithRand sets the random source used for downsampling. Without it the
// package-level generator is used.
func WithRand(rng *rand.Rand) ExtractOption {
	return func(o *extractOptions) { o.rng = rng }
}

func (o *extractOptions) perm(n int) []int {
	if o.rng != nil {
		return o.rng.Perm(n)
	}
	return rand.Perm(n)
}

// ExtractTable reads the selected variables of one file into a table.
//
// Columns are the selected variables the file exposes, sorted by name. Rows
// holding a non-finite value are dropped; for observation cubes the check
// covers all four cube variables even when some are not selected. Selected
// bounds are then applied: rows outside the bounds of an x, y or z axis are
// dropped and values outside the bounds of any other variable are set to 0.
// Finally round(downsampling * n) rows are kept at random, in their original
// relative order.
func ExtractTable(ctx context.Context, r source.Reader, path string, cfg ProjectConfig, opts ...ExtractOption) (*Table, error) {
	var o extractOptions
	for _, opt := range opts {
		opt(&o)
	}
	if err := ValidateDownsampling(cfg.Downsampling); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	kind, err := source.KindOf(path)
	if err != nil {
		return nil, &SourceReadError{Path: path, Err: err}
	}
	ds, err := r.Open(path)
	if err != nil {
		return nil, &SourceReadError{Path: path, Err: err}
	}
	defer ds.Close()

	columns := selectedColumns(cfg, path)
	if len(columns) == 0 {
		return NewTable(nil), nil
	}
	checked := slices.Clone(columns)
	if kind == source.KindObservation {
		for _, name := range source.ObservationVariables {
			if !slices.Contains(checked, name) {
				checked = append(checked, name)
			}
		}
	}

	loader := newColumnLoader(ds)
	data := make(map[string][]float64, len(checked))
	rows := -1
	for _, name := range checked {
		col, err := loader.load(name)
		if err != nil {
			return nil, &SourceReadError{Path: path, Variable: name, Err: err}
		}
		if rows >= 0 && len(col) != rows {
			return nil, &SourceReadError{
				Path:     path,
				Variable: name,
				Err:      fmt.Errorf("column has %d rows, want %d", len(col), rows),
			}
		}
		rows = len(col)
		data[name] = col
	}
	if rows < 0 {
		rows = 0
	}

	table := NewTable(columns)
	bounds := selectionBounds(cfg, columns)
rowLoop:
	for i := 0; i < rows; i++ {
		for _, name := range checked {
			v := data[name][i]
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue rowLoop
			}
		}

		row := make([]float64, len(columns))
		for j, name := range columns {
			v := data[name][i]
			if b, ok := bounds[j]; ok && !b.contains(v) {
				if b.axis {
					continue rowLoop
				}
				v = 0
			}
			row[j] = v
		}
		table.Append(row)
	}

	table.Rows = sampleRows(table.Rows, cfg.Downsampling, &o)
	return table, nil
}

// selectedColumns returns the sorted names of the selected variables that
// path exposes.
func selectedColumns(cfg ProjectConfig, path string) []string {
	var columns []string
	for _, name := range cfg.Names() {
		v := cfg.Variables[name]
		if v.Selected && v.Exposes(path) {
			columns = append(columns, name)
		}
	}
	sort.Strings(columns)
	return columns
}

type bound struct {
	lo, hi float64
	axis   bool
}

func (b bound) contains(v float64) bool { return v >= b.lo && v <= b.hi }

// selectionBounds returns, per column index, the bound set on that column.
// A variable with neither bound set is not filtered; a single bound filters
// one side only.
func selectionBounds(cfg ProjectConfig, columns []string) map[int]bound {
	out := make(map[int]bound)
	for j, name := range columns {
		v := cfg.Variables[name]
		if v.ThrMinSel == nil && v.ThrMaxSel == nil {
			continue
		}
		b := bound{lo: math.Inf(-1), hi: math.Inf(1), axis: isAxis(name)}
		if v.ThrMinSel != nil {
			b.lo = *v.ThrMinSel
		}
		if v.ThrMaxSel != nil {
			b.hi = *v.ThrMaxSel
		}
		out[j] = b
	}
	return out
}

// sampleRows keeps round(d * len(rows)) rows chosen uniformly without
// replacement, preserving their relative order.
func sampleRows(rows [][]float64, d float64, o *extractOptions) [][]float64 {
	n := len(rows)
	if d >= 1 || n == 0 {
		return rows
	}
	k := int(math.Round(d * float64(n)))
	picked := o.perm(n)[:k]
	sort.Ints(picked)

	out := make([][]float64, k)
	for i, idx := range picked {
		out[i] = rows[idx]
	}
	return out
}

// columnLoader loads single columns from a dataset, caching multi-component
// arrays so that "vel-0", "vel-1" and "vel-2" read "vel" once.
type columnLoader struct {
	ds    source.Dataset
	cache map[string]source.Array
}

func newColumnLoader(ds source.Dataset) *columnLoader {
	return &columnLoader{ds: ds, cache: make(map[string]source.Array)}
}

func (l *columnLoader) load(name string) ([]float64, error) {
	arr, err := l.array(name)
	if err == nil {
		if arr.Components > 1 {
			return nil, fmt.Errorf("variable has %d components", arr.Components)
		}
		return arr.Data, nil
	}
	if !errors.Is(err, source.ErrNoVariable) {
		return nil, err
	}

	key, idx, ok := splitComponent(name)
	if !ok {
		return nil, err
	}
	base, berr := l.array(key)
	if berr != nil {
		return nil, err
	}
	if idx >= base.Components {
		return nil, fmt.Errorf("component %d out of range for %s with %d components", idx, key, base.Components)
	}
	return base.Component(idx), nil
}

func (l *columnLoader) array(name string) (source.Array, error) {
	if arr, ok := l.cache[name]; ok {
		return arr, nil
	}
	arr, err := source.Load(l.ds, name)
	if err != nil {
		return source.Array{}, err
	}
	l.cache[name] = arr
	return arr, nil
}
