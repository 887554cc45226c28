package core

import (
	"context"
	"math"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/JonMunkholm/astroapi/internal/source"
)

var nan = math.NaN()

// simFile builds a simulation snapshot with explicit axes and extra arrays.
func simFile(x, y, z []float64, extra map[string]source.Array) *source.MemoryDataset {
	arrays := map[string]source.Array{
		"x": {Data: x, Components: 1, Unit: "kpc"},
		"y": {Data: y, Components: 1, Unit: "kpc"},
		"z": {Data: z, Components: 1, Unit: "kpc"},
	}
	for k, v := range extra {
		arrays[k] = v
	}
	return &source.MemoryDataset{DatasetKind: source.KindSimulation, Arrays: arrays, FrameCount: len(x)}
}

// cubeFile builds an observation cube from flattened voxel columns.
func cubeFile(ra, dec, vel, intensity []float64) *source.MemoryDataset {
	return &source.MemoryDataset{
		DatasetKind: source.KindObservation,
		Arrays: map[string]source.Array{
			"ra":        {Data: ra, Components: 1, Unit: "deg"},
			"dec":       {Data: dec, Components: 1, Unit: "deg"},
			"velocity":  {Data: vel, Components: 1, Unit: "m / s"},
			"intensity": {Data: intensity, Components: 1, Unit: "K"},
		},
		FrameCount: 1,
	}
}

func scalar(unit string, data ...float64) source.Array {
	return source.Array{Data: data, Components: 1, Unit: unit}
}

// selectAll marks every variable of cfg as selected.
func selectAll(cfg ProjectConfig) ProjectConfig {
	out := cfg.Clone()
	for name, v := range out.Variables {
		v.Selected = true
		out.Variables[name] = v
	}
	return out
}

// sortedRows returns the rows of t in lexicographic order.
func sortedRows(t *Table) [][]float64 {
	rows := slices.Clone(t.Rows)
	sort.Slice(rows, func(i, j int) bool {
		return slices.Compare(rows[i], rows[j]) < 0
	})
	return rows
}

// memStore is an in-memory Store for service tests.
type memStore struct {
	mu       sync.Mutex
	nextID   int64
	projects map[int64]*Project
	pingErr  error

	// lastAdded is the configuration passed to the latest AddProjectFiles.
	lastAdded ProjectConfig
}

func newMemStore() *memStore {
	return &memStore{projects: make(map[int64]*Project)}
}

func (m *memStore) CreateProject(_ context.Context, meta ProjectMeta, paths []string, cfg ProjectConfig) (Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	p := &Project{
		ProjectMeta: meta,
		ID:          m.nextID,
		Created:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Paths:       slices.Clone(paths),
		Config:      cfg.Clone(),
	}
	m.projects[p.ID] = p
	return m.copy(p), nil
}

func (m *memStore) copy(p *Project) Project {
	out := *p
	out.Paths = slices.Clone(p.Paths)
	out.Config = p.Config.Clone()
	return out
}

func (m *memStore) get(id int64) (*Project, error) {
	p, ok := m.projects[id]
	if !ok {
		return nil, &ProjectNotFoundError{ID: id}
	}
	return p, nil
}

func (m *memStore) GetProject(_ context.Context, id int64) (Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, err := m.get(id)
	if err != nil {
		return Project{}, err
	}
	return m.copy(p), nil
}

func (m *memStore) ListProjects(context.Context) ([]Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Project, 0, len(m.projects))
	for _, p := range m.projects {
		out = append(out, m.copy(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) UpdateProjectMeta(_ context.Context, id int64, meta ProjectMeta) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, err := m.get(id)
	if err != nil {
		return err
	}
	p.ProjectMeta = meta
	return nil
}

func (m *memStore) TouchProject(_ context.Context, id int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, err := m.get(id)
	if err != nil {
		return err
	}
	p.LastOpened = &at
	return nil
}

func (m *memStore) DeleteProject(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.get(id); err != nil {
		return err
	}
	delete(m.projects, id)
	return nil
}

func (m *memStore) ReplaceProjectFiles(_ context.Context, id int64, meta ProjectMeta, paths []string, cfg ProjectConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, err := m.get(id)
	if err != nil {
		return err
	}
	p.ProjectMeta = meta
	p.Paths = slices.Clone(paths)
	p.Config = cfg.Clone()
	return nil
}

func (m *memStore) AddProjectFiles(_ context.Context, id int64, paths []string, added ProjectConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, err := m.get(id)
	if err != nil {
		return err
	}
	m.lastAdded = added.Clone()
	p.Paths = append(p.Paths, paths...)
	p.Config = p.Config.Widen(added)
	return nil
}

func (m *memStore) ApplyConfig(_ context.Context, id int64, meta *ProjectMeta, cfg ProjectConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, err := m.get(id)
	if err != nil {
		return err
	}
	for name := range cfg.Variables {
		if _, ok := p.Config.Variables[name]; !ok {
			return &ConfigNotFoundError{ProjectID: id, Variable: name}
		}
	}
	if meta != nil {
		p.ProjectMeta = *meta
	}
	p.Config = cfg.Clone()
	return nil
}

func (m *memStore) Ping(context.Context) error { return m.pingErr }

func (m *memStore) Close() error { return nil }

// recordingSnapshots captures snapshot writes.
type recordingSnapshots struct {
	mu     sync.Mutex
	tables map[int64]*Table
	err    error
}

func (r *recordingSnapshots) WriteSnapshot(_ context.Context, id int64, t *Table) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return "", r.err
	}
	if r.tables == nil {
		r.tables = make(map[int64]*Table)
	}
	r.tables[id] = t
	return "snapshots/project.csv", nil
}

func (r *recordingSnapshots) RemoveSnapshot(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tables, id)
	return nil
}

func (r *recordingSnapshots) has(id int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.tables[id]
	return ok
}
