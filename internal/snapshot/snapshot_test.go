package snapshot

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/JonMunkholm/astroapi/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTable() *core.Table {
	t := core.NewTable([]string{"mass", "x"})
	t.Append([]float64{1.5, -2})
	t.Append([]float64{1e-7, 3})
	return t
}

func TestNew(t *testing.T) {
	s, err := New(t.TempDir(), "CSV")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(s.Dir(), "project_7_processed.csv"), s.Path(7))

	_, err = New(t.TempDir(), "xlsx")
	assert.Error(t, err)

	_, err = New("", "csv")
	assert.Error(t, err)
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleTable()))
	assert.Equal(t, "mass,x\n1.5,-2\n1e-07,3\n", buf.String())
}

func TestStore_WriteSnapshotCSV(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	s, err := New(dir, "csv")
	require.NoError(t, err)
	ctx := context.Background()

	path, err := s.WriteSnapshot(ctx, 3, sampleTable())
	require.NoError(t, err)
	assert.Equal(t, s.Path(3), path)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"mass", "x"}, {"1.5", "-2"}, {"1e-07", "3"}}, records)

	// A second write replaces the first and leaves no temporary files.
	small := core.NewTable([]string{"y"})
	small.Append([]float64{4})
	_, err = s.WriteSnapshot(ctx, 3, small)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "y\n4\n", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestStore_WriteSnapshotWithoutColumnsRemoves(t *testing.T) {
	s, err := New(t.TempDir(), "csv")
	require.NoError(t, err)
	ctx := context.Background()

	_, err = s.WriteSnapshot(ctx, 1, sampleTable())
	require.NoError(t, err)

	path, err := s.WriteSnapshot(ctx, 1, core.NewTable(nil))
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.NoFileExists(t, s.Path(1))
}

func TestStore_RemoveSnapshot(t *testing.T) {
	s, err := New(t.TempDir(), "csv")
	require.NoError(t, err)
	ctx := context.Background()

	assert.NoError(t, s.RemoveSnapshot(ctx, 9), "missing snapshot is fine")

	_, err = s.WriteSnapshot(ctx, 9, sampleTable())
	require.NoError(t, err)
	require.NoError(t, s.RemoveSnapshot(ctx, 9))
	assert.NoFileExists(t, s.Path(9))
}

func TestStore_WriteSnapshotCancelled(t *testing.T) {
	s, err := New(t.TempDir(), "csv")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = s.WriteSnapshot(ctx, 1, sampleTable())
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoFileExists(t, s.Path(1))
}

func TestStore_Prune(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, "csv")
	require.NoError(t, err)
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	old := now.Add(-48 * time.Hour)
	touch := func(name string, mod time.Time) {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
		require.NoError(t, os.Chtimes(p, mod, mod))
	}
	touch("project_1_processed.csv", old)
	touch("project_2_processed.parquet", old)
	touch(".abandoned.tmp", old)
	touch("project_3_processed.csv", now.Add(-time.Hour))
	touch("notes.txt", old)

	removed, err := s.Prune(context.Background(), 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 3, removed)

	assert.NoFileExists(t, filepath.Join(dir, "project_1_processed.csv"))
	assert.NoFileExists(t, filepath.Join(dir, "project_2_processed.parquet"))
	assert.NoFileExists(t, filepath.Join(dir, ".abandoned.tmp"))
	assert.FileExists(t, filepath.Join(dir, "project_3_processed.csv"))
	assert.FileExists(t, filepath.Join(dir, "notes.txt"), "unrelated files are left alone")
}

func TestStore_PruneMissingDir(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "absent"), "csv")
	require.NoError(t, err)

	removed, err := s.Prune(context.Background(), time.Hour)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestStore_StartPruner(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, "csv")
	require.NoError(t, err)

	p := filepath.Join(dir, "project_1_processed.csv")
	require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(p, old, old))

	// Disabled pruning returns at once and keeps the file.
	s.StartPruner(context.Background(), PruneConfig{})
	assert.FileExists(t, p)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.StartPruner(ctx, PruneConfig{Retention: time.Minute, CheckInterval: time.Hour})
		close(done)
	}()

	assert.Eventually(t, func() bool {
		_, err := os.Stat(p)
		return os.IsNotExist(err)
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pruner did not stop after cancel")
	}
}

func TestStore_WriteSnapshotParquet(t *testing.T) {
	s, err := New(t.TempDir(), "parquet")
	require.NoError(t, err)

	path, err := s.WriteSnapshot(context.Background(), 5, sampleTable())
	require.NoError(t, err)
	assert.Equal(t, s.Path(5), path)

	db, err := sql.Open("duckdb", "")
	require.NoError(t, err)
	defer db.Close()

	var (
		n    int
		mass float64
		x    float64
	)
	err = db.QueryRow(
		`SELECT COUNT(*), SUM(mass), SUM(x) FROM read_parquet(`+quoteLiteral(path)+`)`,
	).Scan(&n, &mass, &x)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.InDelta(t, 1.5000001, mass, 1e-12)
	assert.Equal(t, 1.0, x)
}

func TestQuoting(t *testing.T) {
	assert.Equal(t, `"vel-0"`, quoteIdent("vel-0"))
	assert.Equal(t, `"a""b"`, quoteIdent(`a"b`))
	assert.Equal(t, `'it''s'`, quoteLiteral("it's"))
}
