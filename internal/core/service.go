package core

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/JonMunkholm/astroapi/internal/logging"
	"github.com/JonMunkholm/astroapi/internal/source"
)

// DefaultProcessTimeout is the maximum duration of one process request.
const DefaultProcessTimeout = 5 * time.Minute

// Service provides the business logic behind the project API.
type Service struct {
	store     Store
	reader    source.Reader
	snapshots SnapshotWriter
	limiter   *ProcessLimiter
	timeout   time.Duration
	extract   []ExtractOption
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithSnapshots enables writing a snapshot of every processed table.
func WithSnapshots(w SnapshotWriter) Option {
	return func(s *Service) { s.snapshots = w }
}

// WithLimiter replaces the default process limiter.
func WithLimiter(l *ProcessLimiter) Option {
	return func(s *Service) { s.limiter = l }
}

// WithProcessTimeout bounds the duration of one process request.
func WithProcessTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithExtractOptions passes options to every extraction, e.g. WithRand.
func WithExtractOptions(opts ...ExtractOption) Option {
	return func(s *Service) { s.extract = append(s.extract, opts...) }
}

// WithClock overrides the time source used for last_opened.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a Service reading source files through reader and
// persisting projects in store.
func NewService(store Store, reader source.Reader, opts ...Option) *Service {
	s := &Service{
		store:   store,
		reader:  reader,
		timeout: DefaultProcessTimeout,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.limiter == nil {
		s.limiter = NewProcessLimiter(DefaultMaxConcurrentProcesses, DefaultMaxWaitTime)
	}
	return s
}

// Limiter exposes the process limiter for health reporting and shutdown.
func (s *Service) Limiter() *ProcessLimiter { return s.limiter }

// Ping checks the store connection.
func (s *Service) Ping(ctx context.Context) error { return s.store.Ping(ctx) }

// Ranges validates one path and returns the variable ranges of the file.
func (s *Service) Ranges(ctx context.Context, path string) (map[string]VariableRange, error) {
	if err := ValidatePaths([]string{path}, nil); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return BuildVariableRanges(s.reader, path)
}

// ReadRanges builds the variable ranges of every path, in order.
func (s *Service) ReadRanges(ctx context.Context, paths []string) ([]FileRanges, error) {
	return ReadRanges(ctx, s.reader, paths)
}

// ListProjects returns every project, most recently opened first.
func (s *Service) ListProjects(ctx context.Context) ([]Project, error) {
	return s.store.ListProjects(ctx)
}

// GetProject returns a project and records it as opened.
func (s *Service) GetProject(ctx context.Context, id int64) (Project, error) {
	if err := s.store.TouchProject(ctx, id, s.now()); err != nil {
		return Project{}, &ProjectError{ProjectID: id, Op: "get", Err: err}
	}
	p, err := s.store.GetProject(ctx, id)
	if err != nil {
		return Project{}, &ProjectError{ProjectID: id, Op: "get", Err: err}
	}
	return p, nil
}

// CreateProject validates the files, builds their configuration and stores
// the project.
func (s *Service) CreateProject(ctx context.Context, in ProjectCreate) (Project, error) {
	if err := ValidateMeta(in.ProjectMeta); err != nil {
		return Project{}, err
	}
	paths := uniquePaths(in.Paths)
	if err := ValidatePaths(paths, nil); err != nil {
		return Project{}, err
	}

	files, err := s.ReadRanges(ctx, paths)
	if err != nil {
		return Project{}, err
	}
	cfg := AggregateConfig(files)

	p, err := s.store.CreateProject(ctx, in.ProjectMeta, paths, cfg)
	if err != nil {
		return Project{}, err
	}
	logging.WithFields(ctx, "project_id", p.ID).Info("project created",
		"files", len(paths),
		"variables", len(cfg.Variables),
	)
	return p, nil
}

// UpdateProject applies an update and returns the stored project along with
// the variables whose selection was rejected.
//
// A changed file list replaces the files and rebuilds the configuration from
// disk, discarding user edits. Otherwise a changed configuration is
// reconciled against the stored one.
func (s *Service) UpdateProject(ctx context.Context, id int64, upd ProjectUpdate) (Project, []*InvalidRangeError, error) {
	log := logging.WithFields(ctx, "project_id", id)

	current, err := s.store.GetProject(ctx, id)
	if err != nil {
		return Project{}, nil, &ProjectError{ProjectID: id, Op: "update", Err: err}
	}
	if err := ValidateMeta(upd.ProjectMeta); err != nil {
		return Project{}, nil, err
	}

	var (
		replace  bool
		paths    []string
		rebuilt  ProjectConfig
		apply    bool
		cfg      ProjectConfig
		rejected []*InvalidRangeError
	)
	if upd.Paths != nil {
		paths = uniquePaths(upd.Paths)
		replace = !slices.Equal(paths, current.Paths)
	}
	switch {
	case replace:
		if err := ValidatePaths(paths, nil); err != nil {
			return Project{}, nil, err
		}
		files, err := s.ReadRanges(ctx, paths)
		if err != nil {
			return Project{}, nil, &ProjectError{ProjectID: id, Op: "update", Err: err}
		}
		rebuilt = AggregateConfig(files)
	case upd.Config != nil && !upd.Config.Equal(current.Config):
		cfg, rejected, err = reconcileProject(id, current.Config, *upd.Config)
		if err != nil {
			return Project{}, nil, &ProjectError{ProjectID: id, Op: "update", Err: err}
		}
		apply = true
	}

	// Metadata is written in the same transaction as any file or
	// configuration change.
	switch {
	case replace:
		if err := s.store.ReplaceProjectFiles(ctx, id, upd.ProjectMeta, paths, rebuilt); err != nil {
			return Project{}, nil, &ProjectError{ProjectID: id, Op: "update", Err: err}
		}
		log.Info("project files replaced", "files", len(paths), "variables", len(rebuilt.Variables))
	case apply:
		if err := s.store.ApplyConfig(ctx, id, &upd.ProjectMeta, cfg); err != nil {
			return Project{}, nil, &ProjectError{ProjectID: id, Op: "update", Err: err}
		}
		logRejected(log, rejected)
	default:
		if err := s.store.UpdateProjectMeta(ctx, id, upd.ProjectMeta); err != nil {
			return Project{}, nil, &ProjectError{ProjectID: id, Op: "update", Err: err}
		}
	}

	p, err := s.store.GetProject(ctx, id)
	if err != nil {
		return Project{}, nil, &ProjectError{ProjectID: id, Op: "update", Err: err}
	}
	return p, rejected, nil
}

// AddFiles links new files to a project. Variables they expose are merged
// into the configuration without discarding user edits. Paths already in
// the project are ignored.
func (s *Service) AddFiles(ctx context.Context, id int64, paths []string) (Project, error) {
	current, err := s.store.GetProject(ctx, id)
	if err != nil {
		return Project{}, &ProjectError{ProjectID: id, Op: "add files to", Err: err}
	}

	var added []string
	for _, p := range uniquePaths(paths) {
		if !slices.Contains(current.Paths, p) {
			added = append(added, p)
		}
	}
	if len(added) == 0 {
		return current, nil
	}
	if err := ValidatePaths(added, current.Paths); err != nil {
		return Project{}, err
	}

	files, err := s.ReadRanges(ctx, added)
	if err != nil {
		return Project{}, &ProjectError{ProjectID: id, Op: "add files to", Err: err}
	}
	widened := current.Config.Widen(AggregateConfig(files))
	if err := s.store.AddProjectFiles(ctx, id, added, widened); err != nil {
		return Project{}, &ProjectError{ProjectID: id, Op: "add files to", Err: err}
	}
	logging.WithFields(ctx, "project_id", id).Info("project files added",
		"files", len(added),
		"variables_added", len(widened.Variables)-len(current.Config.Variables),
	)

	p, err := s.store.GetProject(ctx, id)
	if err != nil {
		return Project{}, &ProjectError{ProjectID: id, Op: "add files to", Err: err}
	}
	return p, nil
}

// DeleteProject removes a project with its files and configuration.
func (s *Service) DeleteProject(ctx context.Context, id int64) error {
	if err := s.store.DeleteProject(ctx, id); err != nil {
		return &ProjectError{ProjectID: id, Op: "delete", Err: err}
	}
	log := logging.WithFields(ctx, "project_id", id)
	if s.snapshots != nil {
		if err := s.snapshots.RemoveSnapshot(ctx, id); err != nil {
			log.Warn("snapshot removal failed", "error", err)
		}
	}
	log.Info("project deleted")
	return nil
}

// reconcileProject reconciles a submission and separates per-variable range
// rejections from fatal errors.
func reconcileProject(id int64, current, submitted ProjectConfig) (ProjectConfig, []*InvalidRangeError, error) {
	cfg, err := ReconcileConfig(current, submitted)
	if err == nil {
		return cfg, nil, nil
	}
	if onlyRangeErrors(err) {
		return cfg, RangeErrors(err), nil
	}
	var nf *ConfigNotFoundError
	if errors.As(err, &nf) {
		nf.ProjectID = id
	}
	return current, nil, err
}

// uniquePaths drops repeated paths, keeping the first occurrence.
func uniquePaths(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		out = appendUnique(out, p)
	}
	return out
}
