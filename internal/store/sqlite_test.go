package store

import (
	"context"
	"testing"
	"time"

	"github.com/JonMunkholm/astroapi/internal/config"
	"github.com/JonMunkholm/astroapi/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// setupTestStore opens a migrated in-memory database with a fixed clock.
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	s.now = func() time.Time { return baseTime }
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleConfig() core.ProjectConfig {
	cfg := core.NewProjectConfig()
	cfg.Variables["mass"] = core.VariableConfig{ThrMin: 0, ThrMax: 10, Unit: "Msol", Files: []string{"a.hdf5"}}
	cfg.Variables["x"] = core.VariableConfig{ThrMin: -1, ThrMax: 1, Unit: "kpc", Files: []string{"a.hdf5"}}
	return cfg
}

func createSample(t *testing.T, s *SQLiteStore, name string) core.Project {
	t.Helper()
	p, err := s.CreateProject(context.Background(), core.ProjectMeta{Name: name}, []string{"a.hdf5"}, sampleConfig())
	require.NoError(t, err)
	return p
}

func TestSQLiteStore_CreateAndGet(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	meta := core.ProjectMeta{Name: "disk", Description: "galaxy disk", Favourite: true}
	created, err := s.CreateProject(ctx, meta, []string{"a.hdf5"}, sampleConfig())
	require.NoError(t, err)

	assert.NotZero(t, created.ID)
	assert.Equal(t, meta, created.ProjectMeta)
	assert.Equal(t, []string{"a.hdf5"}, created.Paths)
	assert.True(t, created.Created.Equal(baseTime))
	assert.Nil(t, created.LastOpened)
	assert.True(t, sampleConfig().Equal(created.Config), "got %+v", created.Config)

	got, err := s.GetProject(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)
}

func TestSQLiteStore_NotFound(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	var nf *core.ProjectNotFoundError

	_, err := s.GetProject(ctx, 42)
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, int64(42), nf.ID)

	assert.ErrorAs(t, s.TouchProject(ctx, 42, baseTime), &nf)
	assert.ErrorAs(t, s.UpdateProjectMeta(ctx, 42, core.ProjectMeta{Name: "x"}), &nf)
	assert.ErrorAs(t, s.DeleteProject(ctx, 42), &nf)
	assert.ErrorAs(t, s.ReplaceProjectFiles(ctx, 42, core.ProjectMeta{Name: "x"}, nil, core.NewProjectConfig()), &nf)
	assert.ErrorAs(t, s.AddProjectFiles(ctx, 42, []string{"b.hdf5"}, core.NewProjectConfig()), &nf)
	assert.ErrorAs(t, s.ApplyConfig(ctx, 42, nil, core.NewProjectConfig()), &nf)
}

func TestSQLiteStore_TouchAndList(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	first := createSample(t, s, "first")
	s.now = func() time.Time { return baseTime.Add(time.Hour) }
	second := createSample(t, s, "second")
	s.now = func() time.Time { return baseTime.Add(2 * time.Hour) }
	third := createSample(t, s, "third")

	// Opening first makes it the most recent.
	opened := baseTime.Add(3 * time.Hour)
	require.NoError(t, s.TouchProject(ctx, first.ID, opened))

	got, err := s.GetProject(ctx, first.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastOpened)
	assert.True(t, got.LastOpened.Equal(opened))

	// Favourites always lead.
	require.NoError(t, s.UpdateProjectMeta(ctx, second.ID, core.ProjectMeta{Name: "second", Favourite: true}))

	list, err := s.ListProjects(ctx)
	require.NoError(t, err)
	ids := make([]int64, len(list))
	for i, p := range list {
		ids[i] = p.ID
	}
	assert.Equal(t, []int64{second.ID, first.ID, third.ID}, ids)
}

func TestSQLiteStore_ListEmpty(t *testing.T) {
	s := setupTestStore(t)

	list, err := s.ListProjects(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

func TestSQLiteStore_UpdateMeta(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	p := createSample(t, s, "old")

	meta := core.ProjectMeta{Name: "new", Description: "renamed", Favourite: true}
	require.NoError(t, s.UpdateProjectMeta(ctx, p.ID, meta))

	got, err := s.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, meta, got.ProjectMeta)
	assert.True(t, sampleConfig().Equal(got.Config), "metadata updates leave the config alone")
}

func TestSQLiteStore_DeleteCascades(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	p := createSample(t, s, "doomed")
	keep := createSample(t, s, "kept")

	require.NoError(t, s.DeleteProject(ctx, p.ID))

	_, err := s.GetProject(ctx, p.ID)
	var nf *core.ProjectNotFoundError
	assert.ErrorAs(t, err, &nf)

	for _, table := range []string{"project_files", "variable_configs", "variable_files"} {
		var n int
		require.NoError(t, s.db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM "+table+" WHERE project_id = ?", p.ID).Scan(&n))
		assert.Zero(t, n, table)
	}

	_, err = s.GetProject(ctx, keep.ID)
	assert.NoError(t, err)
}

func TestSQLiteStore_ReplaceProjectFiles(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	p := createSample(t, s, "replace")

	edited := p.Config.Clone()
	edited.Downsampling = 0.5
	mass := edited.Variables["mass"]
	mass.ThrMinSel = core.Float(2)
	edited.Variables["mass"] = mass
	require.NoError(t, s.ApplyConfig(ctx, p.ID, nil, edited))

	fresh := core.NewProjectConfig()
	fresh.Variables["ra"] = core.VariableConfig{ThrMin: 10, ThrMax: 20, Unit: "deg", Files: []string{"c.fits"}}
	require.NoError(t, s.ReplaceProjectFiles(ctx, p.ID, core.ProjectMeta{Name: "renamed"}, []string{"c.fits"}, fresh))

	got, err := s.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Name)
	assert.Equal(t, []string{"c.fits"}, got.Paths)
	assert.True(t, fresh.Equal(got.Config), "got %+v", got.Config)
	assert.Equal(t, core.DefaultDownsampling, got.Config.Downsampling)
}

func TestSQLiteStore_AddProjectFilesWidens(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	p := createSample(t, s, "grow")

	edited := p.Config.Clone()
	mass := edited.Variables["mass"]
	mass.ThrMinSel = core.Float(2)
	mass.Selected = true
	edited.Variables["mass"] = mass
	require.NoError(t, s.ApplyConfig(ctx, p.ID, nil, edited))

	added := core.NewProjectConfig()
	added.Variables["mass"] = core.VariableConfig{ThrMin: -5, ThrMax: 5, Unit: "kg", Files: []string{"b.hdf5"}}
	added.Variables["rho"] = core.VariableConfig{ThrMin: 1, ThrMax: 2, Files: []string{"b.hdf5"}}
	require.NoError(t, s.AddProjectFiles(ctx, p.ID, []string{"b.hdf5"}, added))

	got, err := s.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.hdf5", "b.hdf5"}, got.Paths)

	m := got.Config.Variables["mass"]
	assert.Equal(t, -5.0, m.ThrMin)
	assert.Equal(t, 10.0, m.ThrMax)
	require.NotNil(t, m.ThrMinSel)
	assert.Equal(t, 2.0, *m.ThrMinSel, "user edits survive")
	assert.True(t, m.Selected)
	assert.Equal(t, "Msol", m.Unit, "first unit wins")
	assert.Equal(t, []string{"a.hdf5", "b.hdf5"}, m.Files)

	assert.Equal(t, []string{"b.hdf5"}, got.Config.Variables["rho"].Files)

	// Adding the same file again changes nothing.
	require.NoError(t, s.AddProjectFiles(ctx, p.ID, []string{"b.hdf5"}, added))
	again, err := s.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, got, again)
}

func TestSQLiteStore_ApplyConfig(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	p := createSample(t, s, "apply")

	cfg := p.Config.Clone()
	cfg.Downsampling = 0.25
	x := cfg.Variables["x"]
	x.ThrMinSel = core.Float(-0.5)
	x.ThrMaxSel = core.Float(0.5)
	x.Selected = true
	x.XAxis = true
	cfg.Variables["x"] = x
	require.NoError(t, s.ApplyConfig(ctx, p.ID, &core.ProjectMeta{Name: "applied", Description: "d"}, cfg))

	got, err := s.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, cfg.Equal(got.Config), "got %+v", got.Config)
	assert.Equal(t, "applied", got.Name)
	assert.Equal(t, "d", got.Description)
}

func TestSQLiteStore_ApplyConfigUnknownVariableRollsBack(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	p := createSample(t, s, "unknown")

	cfg := p.Config.Clone()
	cfg.Downsampling = 0.5
	cfg.Variables["zz_missing"] = core.VariableConfig{Selected: true}

	err := s.ApplyConfig(ctx, p.ID, &core.ProjectMeta{Name: "changed", Favourite: true}, cfg)
	var cnf *core.ConfigNotFoundError
	require.ErrorAs(t, err, &cnf)
	assert.Equal(t, "zz_missing", cnf.Variable)
	assert.Equal(t, p.ID, cnf.ProjectID)

	got, err := s.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, core.DefaultDownsampling, got.Config.Downsampling)
	assert.Equal(t, "unknown", got.Name, "metadata rolls back with the configuration")
	assert.False(t, got.Favourite)
}

func TestSQLiteStore_RejectsInvalidDownsampling(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	p := createSample(t, s, "check")

	cfg := p.Config.Clone()
	cfg.Downsampling = 2
	assert.Error(t, s.ApplyConfig(ctx, p.ID, nil, cfg))
}

func TestSQLiteStore_SchemaVersion(t *testing.T) {
	s := setupTestStore(t)

	v, err := s.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	require.NoError(t, s.Ping(context.Background()))
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, config.DatabaseConfig{Driver: config.DriverSQLite, SQLitePath: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	_, ok := s.(*SQLiteStore)
	assert.True(t, ok)

	_, err = Open(ctx, config.DatabaseConfig{Driver: "mysql"})
	assert.Error(t, err)
}

func TestMigrate_UnknownDialect(t *testing.T) {
	err := Migrate(nil, "oracle")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oracle")
}
