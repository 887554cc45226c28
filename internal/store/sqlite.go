package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/JonMunkholm/astroapi/internal/core"
	_ "modernc.org/sqlite" // SQLite driver (pure Go)
)

// SQLiteStore implements core.Store on a SQLite database.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens (creating if needed) a SQLite database and migrates it.
// Use ":memory:" for an in-memory database.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	dsn := path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	if path != ":memory:" {
		dsn += "&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if path == ":memory:" {
		// Every connection to ":memory:" is a separate database.
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}
	if err := Migrate(db, DialectSQLite); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Ping implements core.Store.
func (s *SQLiteStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Close implements core.Store.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// CreateProject implements core.Store.
func (s *SQLiteStore) CreateProject(ctx context.Context, meta core.ProjectMeta, paths []string, cfg core.ProjectConfig) (core.Project, error) {
	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			`INSERT INTO projects (name, description, favourite, downsampling, created)
			 VALUES (?, ?, ?, ?, ?) RETURNING id`,
			meta.Name, meta.Description, meta.Favourite, downsamplingOrDefault(cfg), formatTime(s.now()),
		).Scan(&id)
		if err != nil {
			return fmt.Errorf("insert project: %w", err)
		}
		return sqliteWriteFiles(ctx, tx, id, paths, cfg)
	})
	if err != nil {
		return core.Project{}, err
	}
	return s.GetProject(ctx, id)
}

// GetProject implements core.Store.
func (s *SQLiteStore) GetProject(ctx context.Context, id int64) (core.Project, error) {
	var (
		p          core.Project
		created    string
		lastOpened sql.NullString
	)
	p.Config = core.NewProjectConfig()

	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, favourite, downsampling, created, last_opened
		 FROM projects WHERE id = ?`, id,
	).Scan(&p.ID, &p.Name, &p.Description, &p.Favourite, &p.Config.Downsampling, &created, &lastOpened)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Project{}, &core.ProjectNotFoundError{ID: id}
	}
	if err != nil {
		return core.Project{}, fmt.Errorf("select project: %w", err)
	}
	if p.Created, err = parseTime(created); err != nil {
		return core.Project{}, err
	}
	if lastOpened.Valid {
		t, err := parseTime(lastOpened.String)
		if err != nil {
			return core.Project{}, err
		}
		p.LastOpened = &t
	}

	if p.Paths, err = s.projectPaths(ctx, id); err != nil {
		return core.Project{}, err
	}
	if err := s.loadVariables(ctx, id, &p.Config); err != nil {
		return core.Project{}, err
	}
	return p, nil
}

func (s *SQLiteStore) projectPaths(ctx context.Context, id int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT path FROM project_files WHERE project_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("select project files: %w", err)
	}
	defer rows.Close()

	paths := []string{}
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan project file: %w", err)
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

func (s *SQLiteStore) loadVariables(ctx context.Context, id int64, cfg *core.ProjectConfig) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, thr_min, thr_max, thr_min_sel, thr_max_sel, selected, unit, x_axis, y_axis, z_axis
		 FROM variable_configs WHERE project_id = ?`, id)
	if err != nil {
		return fmt.Errorf("select variable configs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			name           string
			v              core.VariableConfig
			minSel, maxSel sql.NullFloat64
		)
		if err := rows.Scan(&name, &v.ThrMin, &v.ThrMax, &minSel, &maxSel,
			&v.Selected, &v.Unit, &v.XAxis, &v.YAxis, &v.ZAxis); err != nil {
			return fmt.Errorf("scan variable config: %w", err)
		}
		v.ThrMinSel = nullFloat(minSel)
		v.ThrMaxSel = nullFloat(maxSel)
		v.Files = []string{}
		cfg.Variables[name] = v
	}
	if err := rows.Err(); err != nil {
		return err
	}

	fileRows, err := s.db.QueryContext(ctx,
		`SELECT name, path FROM variable_files WHERE project_id = ? ORDER BY name, position`, id)
	if err != nil {
		return fmt.Errorf("select variable files: %w", err)
	}
	defer fileRows.Close()

	for fileRows.Next() {
		var name, path string
		if err := fileRows.Scan(&name, &path); err != nil {
			return fmt.Errorf("scan variable file: %w", err)
		}
		v := cfg.Variables[name]
		v.Files = append(v.Files, path)
		cfg.Variables[name] = v
	}
	return fileRows.Err()
}

// ListProjects implements core.Store.
func (s *SQLiteStore) ListProjects(ctx context.Context) ([]core.Project, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM projects
		 ORDER BY favourite DESC, COALESCE(last_opened, created) DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan project id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	projects := make([]core.Project, 0, len(ids))
	for _, id := range ids {
		p, err := s.GetProject(ctx, id)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, nil
}

// UpdateProjectMeta implements core.Store.
func (s *SQLiteStore) UpdateProjectMeta(ctx context.Context, id int64, meta core.ProjectMeta) error {
	return sqliteUpdateMeta(ctx, s.db, id, meta)
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func sqliteUpdateMeta(ctx context.Context, db execer, id int64, meta core.ProjectMeta) error {
	res, err := db.ExecContext(ctx,
		`UPDATE projects SET name = ?, description = ?, favourite = ? WHERE id = ?`,
		meta.Name, meta.Description, meta.Favourite, id)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	return expectRow(res, id)
}

// TouchProject implements core.Store.
func (s *SQLiteStore) TouchProject(ctx context.Context, id int64, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE projects SET last_opened = ? WHERE id = ?`, formatTime(at), id)
	if err != nil {
		return fmt.Errorf("touch project: %w", err)
	}
	return expectRow(res, id)
}

// DeleteProject implements core.Store.
func (s *SQLiteStore) DeleteProject(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	return expectRow(res, id)
}

// ReplaceProjectFiles implements core.Store.
func (s *SQLiteStore) ReplaceProjectFiles(ctx context.Context, id int64, meta core.ProjectMeta, paths []string, cfg core.ProjectConfig) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE projects SET name = ?, description = ?, favourite = ?, downsampling = ? WHERE id = ?`,
			meta.Name, meta.Description, meta.Favourite, downsamplingOrDefault(cfg), id)
		if err != nil {
			return fmt.Errorf("update project: %w", err)
		}
		if err := expectRow(res, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM project_files WHERE project_id = ?`, id); err != nil {
			return fmt.Errorf("delete project files: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM variable_configs WHERE project_id = ?`, id); err != nil {
			return fmt.Errorf("delete variable configs: %w", err)
		}
		return sqliteWriteFiles(ctx, tx, id, paths, cfg)
	})
}

// AddProjectFiles implements core.Store.
func (s *SQLiteStore) AddProjectFiles(ctx context.Context, id int64, paths []string, added core.ProjectConfig) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := sqliteProjectExists(ctx, tx, id); err != nil {
			return err
		}
		return sqliteWriteFiles(ctx, tx, id, paths, added)
	})
}

// ApplyConfig implements core.Store.
func (s *SQLiteStore) ApplyConfig(ctx context.Context, id int64, meta *core.ProjectMeta, cfg core.ProjectConfig) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE projects SET downsampling = ? WHERE id = ?`, cfg.Downsampling, id)
		if err != nil {
			return fmt.Errorf("update downsampling: %w", err)
		}
		if err := expectRow(res, id); err != nil {
			return err
		}
		if meta != nil {
			if err := sqliteUpdateMeta(ctx, tx, id, *meta); err != nil {
				return err
			}
		}

		for _, name := range cfg.Names() {
			v := cfg.Variables[name]
			res, err := tx.ExecContext(ctx,
				`UPDATE variable_configs
				 SET thr_min_sel = ?, thr_max_sel = ?, selected = ?, unit = ?,
				     x_axis = ?, y_axis = ?, z_axis = ?
				 WHERE project_id = ? AND name = ?`,
				v.ThrMinSel, v.ThrMaxSel, v.Selected, v.Unit, v.XAxis, v.YAxis, v.ZAxis, id, name)
			if err != nil {
				return fmt.Errorf("update variable %q: %w", name, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if n == 0 {
				return &core.ConfigNotFoundError{ProjectID: id, Variable: name}
			}
		}
		return nil
	})
}

// sqliteWriteFiles links paths to the project and widen-only upserts every
// variable of cfg.
func sqliteWriteFiles(ctx context.Context, tx *sql.Tx, id int64, paths []string, cfg core.ProjectConfig) error {
	for _, p := range paths {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO project_files (project_id, path, position)
			 VALUES (?, ?, (SELECT COALESCE(MAX(position), -1) + 1 FROM project_files WHERE project_id = ?))
			 ON CONFLICT (project_id, path) DO NOTHING`,
			id, p, id)
		if err != nil {
			return fmt.Errorf("insert project file %s: %w", p, err)
		}
	}

	for _, name := range cfg.Names() {
		v := cfg.Variables[name]
		_, err := tx.ExecContext(ctx,
			`INSERT INTO variable_configs
			     (project_id, name, thr_min, thr_max, thr_min_sel, thr_max_sel, selected, unit, x_axis, y_axis, z_axis)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (project_id, name) DO UPDATE SET
			     thr_min = MIN(thr_min, excluded.thr_min),
			     thr_max = MAX(thr_max, excluded.thr_max)`,
			id, name, v.ThrMin, v.ThrMax, v.ThrMinSel, v.ThrMaxSel, v.Selected, v.Unit, v.XAxis, v.YAxis, v.ZAxis)
		if err != nil {
			return fmt.Errorf("upsert variable %q: %w", name, err)
		}

		for _, f := range v.Files {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO variable_files (project_id, name, path, position)
				 VALUES (?, ?, ?, (SELECT COALESCE(MAX(position), -1) + 1
				                   FROM variable_files WHERE project_id = ? AND name = ?))
				 ON CONFLICT (project_id, name, path) DO NOTHING`,
				id, name, f, id, name)
			if err != nil {
				return fmt.Errorf("insert variable file %q %s: %w", name, f, err)
			}
		}
	}
	return nil
}

func sqliteProjectExists(ctx context.Context, tx *sql.Tx, id int64) error {
	var one int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM projects WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return &core.ProjectNotFoundError{ID: id}
	}
	if err != nil {
		return fmt.Errorf("select project: %w", err)
	}
	return nil
}

func expectRow(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &core.ProjectNotFoundError{ID: id}
	}
	return nil
}

func nullFloat(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	return core.Float(n.Float64)
}

const timeLayout = time.RFC3339Nano

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func downsamplingOrDefault(cfg core.ProjectConfig) float64 {
	if cfg.Downsampling <= 0 {
		return core.DefaultDownsampling
	}
	return cfg.Downsampling
}
