// Package snapshot keeps an on-disk copy of the last table processed for
// each project, as CSV or Parquet, and prunes copies past their retention.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/JonMunkholm/astroapi/internal/config"
	"github.com/JonMunkholm/astroapi/internal/core"
	"github.com/google/uuid"
)

// encodeFunc writes t to path in one format.
type encodeFunc func(ctx context.Context, path string, t *core.Table) error

var encoders = map[string]encodeFunc{
	config.SnapshotCSV:     writeCSVFile,
	config.SnapshotParquet: writeParquetFile,
}

var snapshotName = regexp.MustCompile(`^project_\d+_processed\.(csv|parquet)$`)

// Store writes snapshots into one directory. It implements core.SnapshotWriter.
type Store struct {
	dir    string
	format string
	encode encodeFunc
	now    func() time.Time
}

// New returns a Store writing format ("csv" or "parquet") files into dir.
// The directory is created on first write.
func New(dir, format string) (*Store, error) {
	format = strings.ToLower(format)
	enc, ok := encoders[format]
	if !ok {
		return nil, fmt.Errorf("unknown snapshot format %q", format)
	}
	if dir == "" {
		return nil, errors.New("snapshot directory is required")
	}
	return &Store{dir: dir, format: format, encode: enc, now: time.Now}, nil
}

// Dir returns the snapshot directory.
func (s *Store) Dir() string { return s.dir }

// Path returns where the snapshot of a project is written.
func (s *Store) Path(projectID int64) string {
	return filepath.Join(s.dir, fmt.Sprintf("project_%d_processed.%s", projectID, s.format))
}

// WriteSnapshot replaces the snapshot of a project with t. The file is
// written under a temporary name and renamed, so readers never see a
// partial snapshot. A table without columns has nothing to keep and
// removes any previous snapshot instead.
func (s *Store) WriteSnapshot(ctx context.Context, projectID int64, t *core.Table) (string, error) {
	if t == nil || len(t.Columns) == 0 {
		return "", s.RemoveSnapshot(ctx, projectID)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}

	final := s.Path(projectID)
	tmp := filepath.Join(s.dir, "."+uuid.NewString()+".tmp")
	if err := s.encode(ctx, tmp, t); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("write %s snapshot: %w", s.format, err)
	}
	if err := os.Rename(tmp, final); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("publish snapshot: %w", err)
	}
	return final, nil
}

// RemoveSnapshot implements core.SnapshotWriter.
func (s *Store) RemoveSnapshot(_ context.Context, projectID int64) error {
	err := os.Remove(s.Path(projectID))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove snapshot: %w", err)
	}
	return nil
}

// Prune deletes snapshots and abandoned temporary files not modified
// within retention. It returns the number of files removed.
func (s *Store) Prune(ctx context.Context, retention time.Duration) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read snapshot dir: %w", err)
	}

	cutoff := s.now().Add(-retention)
	removed := 0
	var errs []error
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		name := e.Name()
		if e.IsDir() || !(snapshotName.MatchString(name) || isTemp(name)) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

func isTemp(name string) bool {
	return strings.HasPrefix(name, ".") && strings.HasSuffix(name, ".tmp")
}
