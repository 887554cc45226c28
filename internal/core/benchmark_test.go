package core

import (
	"context"
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/JonMunkholm/astroapi/internal/source"
)

// ============================================================================
// Fixtures
// ============================================================================

// benchReader returns a reader with files snapshots of n particles each.
func benchReader(files, n int) (*source.MemoryReader, []string) {
	r := source.NewMemoryReader()
	rng := rand.New(rand.NewPCG(1, 2))
	paths := make([]string, files)
	for f := range files {
		x, y, z, rho := make([]float64, n), make([]float64, n), make([]float64, n), make([]float64, n)
		for i := range n {
			x[i] = rng.NormFloat64() * 25
			y[i] = rng.NormFloat64() * 25
			z[i] = rng.NormFloat64() * 25
			rho[i] = rng.ExpFloat64()
		}
		paths[f] = fmt.Sprintf("snap_%03d.hdf5", f)
		r.Add(paths[f], simFile(x, y, z, map[string]source.Array{"rho": scalar("", rho...)}))
	}
	return r, paths
}

// benchConfig selects every variable and restricts x and rho to half their
// bounds, so both axis filtering and value zeroing run.
func benchConfig(b *testing.B, r source.Reader, paths []string) ProjectConfig {
	b.Helper()
	files, err := ReadRanges(context.Background(), r, paths)
	if err != nil {
		b.Fatal(err)
	}
	cfg := selectAll(AggregateConfig(files))
	for _, name := range []string{"x", "rho"} {
		v := cfg.Variables[name]
		mid := (v.ThrMin + v.ThrMax) / 2
		v.ThrMinSel = Float(v.ThrMin)
		v.ThrMaxSel = Float(mid)
		cfg.Variables[name] = v
	}
	return cfg
}

// ============================================================================
// Range Building Benchmarks
// ============================================================================

// BenchmarkBuildVariableRanges benchmarks scanning one snapshot.
// This runs for every file on project create and add-files.
func BenchmarkBuildVariableRanges(b *testing.B) {
	r, paths := benchReader(1, 100_000)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := BuildVariableRanges(r, paths[0]); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkAggregateConfig benchmarks merging many small files.
func BenchmarkAggregateConfig(b *testing.B) {
	r, paths := benchReader(50, 16)
	files, err := ReadRanges(context.Background(), r, paths)
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		AggregateConfig(files)
	}
}

// ============================================================================
// Reconcile Benchmarks
// ============================================================================

// BenchmarkReconcileConfig benchmarks applying a submitted configuration,
// which runs on every process and update request.
func BenchmarkReconcileConfig(b *testing.B) {
	r, paths := benchReader(4, 16)
	current := AggregateConfig(mustRanges(b, r, paths))
	submitted := benchConfig(b, r, paths)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := ReconcileConfig(current, submitted); err != nil {
			b.Fatal(err)
		}
	}
}

func mustRanges(b *testing.B, r source.Reader, paths []string) []FileRanges {
	b.Helper()
	files, err := ReadRanges(context.Background(), r, paths)
	if err != nil {
		b.Fatal(err)
	}
	return files
}

// ============================================================================
// Extraction Benchmarks
// ============================================================================

// BenchmarkExtractTable benchmarks the filter path of one file at full
// resolution.
func BenchmarkExtractTable(b *testing.B) {
	r, paths := benchReader(1, 100_000)
	cfg := benchConfig(b, r, paths)
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := ExtractTable(ctx, r, paths[0], cfg); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkExtractTable_Downsampled benchmarks sampling a tenth of the rows.
func BenchmarkExtractTable_Downsampled(b *testing.B) {
	r, paths := benchReader(1, 100_000)
	cfg := benchConfig(b, r, paths)
	cfg.Downsampling = 0.1
	ctx := context.Background()
	rng := rand.New(rand.NewPCG(3, 4))

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := ExtractTable(ctx, r, paths[0], cfg, WithRand(rng)); err != nil {
			b.Fatal(err)
		}
	}
}

// ============================================================================
// Combine Benchmarks
// ============================================================================

// BenchmarkCombine benchmarks a full process request over several files.
func BenchmarkCombine(b *testing.B) {
	r, paths := benchReader(8, 20_000)
	cfg := benchConfig(b, r, paths)
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Combine(ctx, r, paths, cfg); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkTableConcat benchmarks merging tables with differing columns.
func BenchmarkTableConcat(b *testing.B) {
	left := NewTable([]string{"x", "y", "rho"})
	right := NewTable([]string{"x", "y", "u"})
	for i := range 10_000 {
		v := float64(i)
		left.Append([]float64{v, v, v})
		right.Append([]float64{v, v, v})
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Concat(left, right)
	}
}
