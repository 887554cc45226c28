package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JonMunkholm/astroapi/internal/core"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
)

// PoolConfig holds connection pool settings for Postgres.
type PoolConfig struct {
	URL             string
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements core.Store on PostgreSQL through a pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects, verifies and migrates a Postgres database.
func OpenPostgres(ctx context.Context, cfg PoolConfig) (*PostgresStore, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = int32(cfg.MinConns)
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()
	if err := Migrate(db, DialectPostgres); err != nil {
		pool.Close()
		return nil, err
	}

	return NewPostgresStore(pool), nil
}

// NewPostgresStore wraps an existing, migrated pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping implements core.Store.
func (s *PostgresStore) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

// Close implements core.Store.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// CreateProject implements core.Store.
func (s *PostgresStore) CreateProject(ctx context.Context, meta core.ProjectMeta, paths []string, cfg core.ProjectConfig) (core.Project, error) {
	var id int64
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO projects (name, description, favourite, downsampling)
			 VALUES ($1, $2, $3, $4) RETURNING id`,
			meta.Name, meta.Description, meta.Favourite, downsamplingOrDefault(cfg),
		).Scan(&id)
		if err != nil {
			return fmt.Errorf("insert project: %w", err)
		}
		return pgWriteFiles(ctx, tx, id, paths, cfg)
	})
	if err != nil {
		return core.Project{}, err
	}
	return s.GetProject(ctx, id)
}

// GetProject implements core.Store.
func (s *PostgresStore) GetProject(ctx context.Context, id int64) (core.Project, error) {
	return pgLoadProject(ctx, s.pool, id)
}

func pgLoadProject(ctx context.Context, q DBTX, id int64) (core.Project, error) {
	p := core.Project{Config: core.NewProjectConfig()}
	err := q.QueryRow(ctx,
		`SELECT id, name, description, favourite, downsampling, created, last_opened
		 FROM projects WHERE id = $1`, id,
	).Scan(&p.ID, &p.Name, &p.Description, &p.Favourite, &p.Config.Downsampling, &p.Created, &p.LastOpened)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Project{}, &core.ProjectNotFoundError{ID: id}
	}
	if err != nil {
		return core.Project{}, fmt.Errorf("select project: %w", err)
	}

	rows, err := q.Query(ctx,
		`SELECT path FROM project_files WHERE project_id = $1 ORDER BY position`, id)
	if err != nil {
		return core.Project{}, fmt.Errorf("select project files: %w", err)
	}
	p.Paths, err = pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return core.Project{}, fmt.Errorf("scan project files: %w", err)
	}

	rows, err = q.Query(ctx,
		`SELECT name, thr_min, thr_max, thr_min_sel, thr_max_sel, selected, unit, x_axis, y_axis, z_axis
		 FROM variable_configs WHERE project_id = $1`, id)
	if err != nil {
		return core.Project{}, fmt.Errorf("select variable configs: %w", err)
	}
	var (
		name string
		v    core.VariableConfig
	)
	_, err = pgx.ForEachRow(rows,
		[]any{&name, &v.ThrMin, &v.ThrMax, &v.ThrMinSel, &v.ThrMaxSel, &v.Selected, &v.Unit, &v.XAxis, &v.YAxis, &v.ZAxis},
		func() error {
			stored := v
			stored.ThrMinSel = copyPtr(v.ThrMinSel)
			stored.ThrMaxSel = copyPtr(v.ThrMaxSel)
			stored.Files = []string{}
			p.Config.Variables[name] = stored
			return nil
		})
	if err != nil {
		return core.Project{}, fmt.Errorf("scan variable configs: %w", err)
	}

	rows, err = q.Query(ctx,
		`SELECT name, path FROM variable_files WHERE project_id = $1 ORDER BY name, position`, id)
	if err != nil {
		return core.Project{}, fmt.Errorf("select variable files: %w", err)
	}
	var path string
	_, err = pgx.ForEachRow(rows, []any{&name, &path}, func() error {
		vc := p.Config.Variables[name]
		vc.Files = append(vc.Files, path)
		p.Config.Variables[name] = vc
		return nil
	})
	if err != nil {
		return core.Project{}, fmt.Errorf("scan variable files: %w", err)
	}
	return p, nil
}

// ListProjects implements core.Store.
func (s *PostgresStore) ListProjects(ctx context.Context) ([]core.Project, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id FROM projects
		 ORDER BY favourite DESC, COALESCE(last_opened, created) DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("scan project ids: %w", err)
	}

	projects := make([]core.Project, 0, len(ids))
	for _, id := range ids {
		p, err := pgLoadProject(ctx, s.pool, id)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, nil
}

// UpdateProjectMeta implements core.Store.
func (s *PostgresStore) UpdateProjectMeta(ctx context.Context, id int64, meta core.ProjectMeta) error {
	return pgUpdateMeta(ctx, s.pool, id, meta)
}

func pgUpdateMeta(ctx context.Context, db DBTX, id int64, meta core.ProjectMeta) error {
	tag, err := db.Exec(ctx,
		`UPDATE projects SET name = $1, description = $2, favourite = $3 WHERE id = $4`,
		meta.Name, meta.Description, meta.Favourite, id)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	return expectTag(tag, id)
}

// TouchProject implements core.Store.
func (s *PostgresStore) TouchProject(ctx context.Context, id int64, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `UPDATE projects SET last_opened = $1 WHERE id = $2`, at, id)
	if err != nil {
		return fmt.Errorf("touch project: %w", err)
	}
	return expectTag(tag, id)
}

// DeleteProject implements core.Store.
func (s *PostgresStore) DeleteProject(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	return expectTag(tag, id)
}

// ReplaceProjectFiles implements core.Store.
func (s *PostgresStore) ReplaceProjectFiles(ctx context.Context, id int64, meta core.ProjectMeta, paths []string, cfg core.ProjectConfig) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE projects SET name = $1, description = $2, favourite = $3, downsampling = $4 WHERE id = $5`,
			meta.Name, meta.Description, meta.Favourite, downsamplingOrDefault(cfg), id)
		if err != nil {
			return fmt.Errorf("update project: %w", err)
		}
		if err := expectTag(tag, id); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM project_files WHERE project_id = $1`, id); err != nil {
			return fmt.Errorf("delete project files: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM variable_configs WHERE project_id = $1`, id); err != nil {
			return fmt.Errorf("delete variable configs: %w", err)
		}
		return pgWriteFiles(ctx, tx, id, paths, cfg)
	})
}

// AddProjectFiles implements core.Store.
func (s *PostgresStore) AddProjectFiles(ctx context.Context, id int64, paths []string, added core.ProjectConfig) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		// Lock the project row so concurrent adds append in order.
		var locked int64
		err := tx.QueryRow(ctx, `SELECT id FROM projects WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
		if errors.Is(err, pgx.ErrNoRows) {
			return &core.ProjectNotFoundError{ID: id}
		}
		if err != nil {
			return fmt.Errorf("lock project: %w", err)
		}
		return pgWriteFiles(ctx, tx, id, paths, added)
	})
}

// ApplyConfig implements core.Store.
func (s *PostgresStore) ApplyConfig(ctx context.Context, id int64, meta *core.ProjectMeta, cfg core.ProjectConfig) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE projects SET downsampling = $1 WHERE id = $2`, cfg.Downsampling, id)
		if err != nil {
			return fmt.Errorf("update downsampling: %w", err)
		}
		if err := expectTag(tag, id); err != nil {
			return err
		}
		if meta != nil {
			if err := pgUpdateMeta(ctx, tx, id, *meta); err != nil {
				return err
			}
		}

		for _, name := range cfg.Names() {
			v := cfg.Variables[name]
			tag, err := tx.Exec(ctx,
				`UPDATE variable_configs
				 SET thr_min_sel = $1, thr_max_sel = $2, selected = $3, unit = $4,
				     x_axis = $5, y_axis = $6, z_axis = $7
				 WHERE project_id = $8 AND name = $9`,
				v.ThrMinSel, v.ThrMaxSel, v.Selected, v.Unit, v.XAxis, v.YAxis, v.ZAxis, id, name)
			if err != nil {
				return fmt.Errorf("update variable %q: %w", name, err)
			}
			if tag.RowsAffected() == 0 {
				return &core.ConfigNotFoundError{ProjectID: id, Variable: name}
			}
		}
		return nil
	})
}

// pgWriteFiles links paths to the project and widen-only upserts every
// variable of cfg, queued as one batch.
func pgWriteFiles(ctx context.Context, tx pgx.Tx, id int64, paths []string, cfg core.ProjectConfig) error {
	batch := &pgx.Batch{}
	for _, p := range paths {
		batch.Queue(
			`INSERT INTO project_files (project_id, path, position)
			 VALUES ($1, $2, (SELECT COALESCE(MAX(position), -1) + 1 FROM project_files WHERE project_id = $1))
			 ON CONFLICT (project_id, path) DO NOTHING`,
			id, p)
	}
	for _, name := range cfg.Names() {
		v := cfg.Variables[name]
		batch.Queue(
			`INSERT INTO variable_configs
			     (project_id, name, thr_min, thr_max, thr_min_sel, thr_max_sel, selected, unit, x_axis, y_axis, z_axis)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			 ON CONFLICT (project_id, name) DO UPDATE SET
			     thr_min = LEAST(variable_configs.thr_min, EXCLUDED.thr_min),
			     thr_max = GREATEST(variable_configs.thr_max, EXCLUDED.thr_max)`,
			id, name, v.ThrMin, v.ThrMax, v.ThrMinSel, v.ThrMaxSel, v.Selected, v.Unit, v.XAxis, v.YAxis, v.ZAxis)
		for _, f := range v.Files {
			batch.Queue(
				`INSERT INTO variable_files (project_id, name, path, position)
				 VALUES ($1, $2, $3, (SELECT COALESCE(MAX(position), -1) + 1
				                      FROM variable_files WHERE project_id = $1 AND name = $2))
				 ON CONFLICT (project_id, name, path) DO NOTHING`,
				id, name, f)
		}
	}
	if batch.Len() == 0 {
		return nil
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("write project files: %w", err)
	}
	return nil
}

func expectTag(tag pgconn.CommandTag, id int64) error {
	if tag.RowsAffected() == 0 {
		return &core.ProjectNotFoundError{ID: id}
	}
	return nil
}

func copyPtr(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
