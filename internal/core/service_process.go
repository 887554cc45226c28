package core

import (
	"context"
	"log/slog"
	"time"

	"github.com/JonMunkholm/astroapi/internal/logging"
	"github.com/google/uuid"
)

// ProcessResult is the outcome of a process request.
type ProcessResult struct {
	Table        *Table
	Config       ProjectConfig
	Rejected     []*InvalidRangeError
	SnapshotPath string
	Duration     time.Duration
}

// Process reconciles and stores the submitted configuration, then combines
// every project file into one table.
//
// Variables whose selection is rejected keep their stored state and are
// listed in the result. A failure on any file fails the request. A snapshot
// failure is logged and does not fail the request.
func (s *Service) Process(ctx context.Context, id int64, submitted ProjectConfig) (*ProcessResult, error) {
	// process_id ties together the entries of one run, including those
	// logged outside a request.
	log := logging.WithFields(ctx, "project_id", id, "process_id", uuid.NewString())

	if err := s.limiter.Acquire(ctx); err != nil {
		log.Warn("process rejected", "error", err, "active", s.limiter.ActiveCount())
		return nil, &ProjectError{ProjectID: id, Op: "process", Err: err}
	}
	defer s.limiter.Release()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	project, err := s.store.GetProject(ctx, id)
	if err != nil {
		return nil, &ProjectError{ProjectID: id, Op: "process", Err: err}
	}

	cfg, rejected, err := reconcileProject(id, project.Config, submitted)
	if err != nil {
		return nil, &ProjectError{ProjectID: id, Op: "process", Err: err}
	}
	logRejected(log, rejected)

	if err := s.store.ApplyConfig(ctx, id, nil, cfg); err != nil {
		return nil, &ProjectError{ProjectID: id, Op: "process", Err: err}
	}

	table, err := Combine(ctx, s.reader, project.Paths, cfg, s.extract...)
	if err != nil {
		return nil, &ProjectError{ProjectID: id, Op: "process", Err: err}
	}

	result := &ProcessResult{
		Table:    table,
		Config:   cfg,
		Rejected: rejected,
	}

	if s.snapshots != nil {
		path, err := s.snapshots.WriteSnapshot(ctx, id, table)
		if err != nil {
			log.Error("snapshot failed", "error", err)
		} else {
			result.SnapshotPath = path
		}
	}

	result.Duration = time.Since(start)
	log.Info("process completed",
		"files", len(project.Paths),
		"columns", len(table.Columns),
		"rows", table.Len(),
		"rejected", len(rejected),
		"duration", result.Duration,
	)
	return result, nil
}

func logRejected(log *slog.Logger, rejected []*InvalidRangeError) {
	for _, r := range rejected {
		log.Warn("selection rejected", "variable", r.Variable, "error", r.Error())
	}
}
