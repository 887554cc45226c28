package core

import (
	"context"
	"testing"

	"github.com/JonMunkholm/astroapi/internal/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCombine_RemovesDuplicateRows(t *testing.T) {
	r := source.NewMemoryReader()
	r.Add("a.hdf5", simFile(
		[]float64{1, 1}, []float64{0, 0}, []float64{0, 0},
		map[string]source.Array{"intensity": scalar("K", 50, 50)},
	))
	cfg := NewProjectConfig()
	cfg.Variables["x"] = VariableConfig{ThrMin: 1, ThrMax: 1, Selected: true}
	cfg.Variables["intensity"] = VariableConfig{ThrMin: 50, ThrMax: 50, Selected: true}

	got, err := Combine(context.Background(), r, []string{"a.hdf5"}, cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"intensity", "x"}, got.Columns)
	assert.Equal(t, [][]float64{{50, 1}}, got.Rows)
}

func TestCombine_AcrossFiles(t *testing.T) {
	r := source.NewMemoryReader()
	r.Add("a.hdf5", simFile(
		[]float64{1, 2}, []float64{0, 0}, []float64{0, 0},
		map[string]source.Array{"rho": scalar("", 5, 6)},
	))
	r.Add("b.hdf5", simFile(
		[]float64{2, 3}, []float64{0, 0}, []float64{0, 0},
		map[string]source.Array{"u": scalar("", 7, 8)},
	))
	r.Add("c.hdf5", simFile(
		[]float64{1, 9}, []float64{0, 0}, []float64{0, 0},
		map[string]source.Array{"rho": scalar("", 5, 0)},
	))

	paths := []string{"a.hdf5", "b.hdf5", "c.hdf5"}
	var files []FileRanges
	for _, p := range paths {
		ranges, err := BuildVariableRanges(r, p)
		require.NoError(t, err)
		files = append(files, FileRanges{Path: p, Ranges: ranges})
	}
	cfg := AggregateConfig(files)
	for _, name := range []string{"x", "rho", "u"} {
		v := cfg.Variables[name]
		v.Selected = true
		cfg.Variables[name] = v
	}

	got, err := Combine(context.Background(), r, paths, cfg)
	require.NoError(t, err)

	assert.Equal(t, []string{"rho", "u", "x"}, got.Columns)
	assert.Equal(t, [][]float64{
		{5, 0, 1},
		{6, 0, 2},
		{0, 7, 2},
		{0, 8, 3},
		{0, 0, 9},
	}, got.Rows, "file order is kept and the repeated (5, 0, 1) row is dropped")
}

func TestCombine_Idempotent(t *testing.T) {
	r, cfg := extractFixture()
	r.Add("copy.hdf5", simFile(
		[]float64{0, 1, 2, 3, 4, 5},
		[]float64{0, 0, 0, 0, 0, 0},
		[]float64{9, 9, 9, 9, 9, nan},
		map[string]source.Array{
			"rho": scalar("", 10, 20, 30, 40, 50, 60),
			"vel": {Data: []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18}, Components: 3},
		},
	))
	cfg = selectAll(cfg)
	for name, v := range cfg.Variables {
		v.Files = nil
		cfg.Variables[name] = v
	}
	paths := []string{"a.hdf5", "copy.hdf5"}

	first, err := Combine(context.Background(), r, paths, cfg)
	require.NoError(t, err)
	second, err := Combine(context.Background(), r, paths, cfg)
	require.NoError(t, err)

	assert.Equal(t, 5, first.Len(), "the copy contributes only duplicates")
	assert.Equal(t, sortedRows(first), sortedRows(second))
	assert.Equal(t, 0, first.Dedup())
	assert.Equal(t, 0, second.Dedup())
}

func TestCombine_AllOrNothing(t *testing.T) {
	r, cfg := extractFixture()
	cfg = selectAll(cfg)
	opened := r.OpenCount("a.hdf5")

	got, err := Combine(context.Background(), r, []string{"a.hdf5", "missing.hdf5"}, cfg)
	assert.Nil(t, got)

	var sre *SourceReadError
	require.ErrorAs(t, err, &sre)
	assert.Equal(t, "missing.hdf5", sre.Path)
	assert.Equal(t, opened+1, r.OpenCount("a.hdf5"))
}

func TestCombine_NoFiles(t *testing.T) {
	got, err := Combine(context.Background(), source.NewMemoryReader(), nil, NewProjectConfig())
	require.NoError(t, err)
	assert.Equal(t, 0, got.Len())
}
