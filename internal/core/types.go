package core

import (
	"context"
	"slices"
	"sort"
	"time"
)

// DefaultDownsampling keeps every row.
const DefaultDownsampling = 1.0

// VariableRange is the observed extent of one variable in one file.
type VariableRange struct {
	Name string  `json:"name" yaml:"name"`
	Unit string  `json:"unit" yaml:"unit"`
	Min  float64 `json:"min" yaml:"min"`
	Max  float64 `json:"max" yaml:"max"`
}

// FileRanges holds the variable ranges read from one file.
type FileRanges struct {
	Path   string                   `json:"path" yaml:"path"`
	Ranges map[string]VariableRange `json:"ranges" yaml:"ranges"`
}

// VariableConfig is the user-editable state of one variable in a project.
//
// ThrMin and ThrMax are the union of the observed extents across Files.
// ThrMinSel and ThrMaxSel are the user-chosen sub-range; nil means unset.
type VariableConfig struct {
	ThrMin    float64  `json:"thr_min" yaml:"thr_min"`
	ThrMax    float64  `json:"thr_max" yaml:"thr_max"`
	ThrMinSel *float64 `json:"thr_min_sel" yaml:"thr_min_sel"`
	ThrMaxSel *float64 `json:"thr_max_sel" yaml:"thr_max_sel"`
	Selected  bool     `json:"selected" yaml:"selected"`
	Unit      string   `json:"unit" yaml:"unit"`
	XAxis     bool     `json:"x_axis" yaml:"x_axis"`
	YAxis     bool     `json:"y_axis" yaml:"y_axis"`
	ZAxis     bool     `json:"z_axis" yaml:"z_axis"`
	Files     []string `json:"files" yaml:"files"`
}

// Clone returns a deep copy of v.
func (v VariableConfig) Clone() VariableConfig {
	out := v
	out.ThrMinSel = copyFloat(v.ThrMinSel)
	out.ThrMaxSel = copyFloat(v.ThrMaxSel)
	out.Files = slices.Clone(v.Files)
	return out
}

// Equal reports whether v and o hold the same values.
func (v VariableConfig) Equal(o VariableConfig) bool {
	return v.ThrMin == o.ThrMin &&
		v.ThrMax == o.ThrMax &&
		equalFloat(v.ThrMinSel, o.ThrMinSel) &&
		equalFloat(v.ThrMaxSel, o.ThrMaxSel) &&
		v.Selected == o.Selected &&
		v.Unit == o.Unit &&
		v.XAxis == o.XAxis &&
		v.YAxis == o.YAxis &&
		v.ZAxis == o.ZAxis &&
		slices.Equal(v.Files, o.Files)
}

// Exposes reports whether the variable is available in path. A variable
// without a file list is assumed to be present everywhere.
func (v VariableConfig) Exposes(path string) bool {
	return len(v.Files) == 0 || slices.Contains(v.Files, path)
}

// ProjectConfig is the processing configuration of a project.
type ProjectConfig struct {
	Downsampling float64                   `json:"downsampling" yaml:"downsampling"`
	Variables    map[string]VariableConfig `json:"variables" yaml:"variables"`
}

// NewProjectConfig returns an empty configuration keeping every row.
func NewProjectConfig() ProjectConfig {
	return ProjectConfig{
		Downsampling: DefaultDownsampling,
		Variables:    make(map[string]VariableConfig),
	}
}

// Names returns the variable names in lexicographic order.
func (c ProjectConfig) Names() []string {
	names := make([]string, 0, len(c.Variables))
	for name := range c.Variables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns a deep copy of c.
func (c ProjectConfig) Clone() ProjectConfig {
	out := ProjectConfig{
		Downsampling: c.Downsampling,
		Variables:    make(map[string]VariableConfig, len(c.Variables)),
	}
	for name, v := range c.Variables {
		out.Variables[name] = v.Clone()
	}
	return out
}

// Equal reports whether c and o hold the same values.
func (c ProjectConfig) Equal(o ProjectConfig) bool {
	if c.Downsampling != o.Downsampling || len(c.Variables) != len(o.Variables) {
		return false
	}
	for name, v := range c.Variables {
		ov, ok := o.Variables[name]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// Float returns a pointer to v, for building selection bounds.
func Float(v float64) *float64 { return &v }

func copyFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func equalFloat(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// ProjectMeta holds the descriptive fields of a project.
type ProjectMeta struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Favourite   bool   `json:"favourite" yaml:"favourite"`
}

// Project is a named collection of source files with one shared configuration.
type Project struct {
	ProjectMeta `yaml:",inline"`
	ID          int64         `json:"id" yaml:"id"`
	Created     time.Time     `json:"created" yaml:"created"`
	LastOpened  *time.Time    `json:"last_opened" yaml:"last_opened"`
	Paths       []string      `json:"paths" yaml:"paths"`
	Config      ProjectConfig `json:"config_process" yaml:"config_process"`
}

// ProjectCreate is the payload for creating a project.
type ProjectCreate struct {
	ProjectMeta
	Paths []string `json:"paths"`
}

// ProjectUpdate is the payload for updating a project.
//
// A nil Paths keeps the current file set; any other value (including an
// empty list) replaces it and rebuilds the configuration. Config is only
// applied when the file set is unchanged.
type ProjectUpdate struct {
	ProjectMeta
	Paths  []string       `json:"paths"`
	Config *ProjectConfig `json:"config_process"`
}

// Store persists projects, their file sets and configurations.
//
// Implementations must apply each mutating call atomically.
type Store interface {
	// CreateProject stores a project with its files and initial configuration.
	CreateProject(ctx context.Context, meta ProjectMeta, paths []string, cfg ProjectConfig) (Project, error)
	// GetProject returns a project with paths and configuration, or a
	// *ProjectNotFoundError.
	GetProject(ctx context.Context, id int64) (Project, error)
	ListProjects(ctx context.Context) ([]Project, error)
	UpdateProjectMeta(ctx context.Context, id int64, meta ProjectMeta) error
	TouchProject(ctx context.Context, id int64, at time.Time) error
	// DeleteProject removes a project with its file links and configuration.
	DeleteProject(ctx context.Context, id int64) error
	// ReplaceProjectFiles stores meta and replaces the file set and the whole
	// configuration in one transaction.
	ReplaceProjectFiles(ctx context.Context, id int64, meta ProjectMeta, paths []string, cfg ProjectConfig) error
	// AddProjectFiles links new files and widen-only upserts the variables
	// of added: bounds only grow, user edits are kept.
	AddProjectFiles(ctx context.Context, id int64, paths []string, added ProjectConfig) error
	// ApplyConfig stores the downsampling and editable fields of every
	// variable in cfg, plus meta when it is not nil, in one transaction.
	// Returns a *ConfigNotFoundError when a variable has no stored
	// configuration; nothing is written in that case.
	ApplyConfig(ctx context.Context, id int64, meta *ProjectMeta, cfg ProjectConfig) error
	Ping(ctx context.Context) error
	Close() error
}

// SnapshotWriter persists the combined table of a processing request.
type SnapshotWriter interface {
	WriteSnapshot(ctx context.Context, projectID int64, t *Table) (string, error)
	// RemoveSnapshot deletes the snapshot of a project. A missing snapshot
	// is not an error.
	RemoveSnapshot(ctx context.Context, projectID int64) error
}
