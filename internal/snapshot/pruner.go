package snapshot

// pruner.go runs snapshot retention in the background.
//
// The pruner is long-running and context-aware for graceful shutdown. It
// logs progress and errors but never fails the application when a pass
// cannot remove a file.

import (
	"context"
	"log/slog"
	"time"
)

// PruneConfig holds configuration for the snapshot pruner.
type PruneConfig struct {
	Retention     time.Duration // How long a snapshot outlives its last write
	CheckInterval time.Duration // How often to run (default: 1h)
}

// StartPruner periodically deletes expired snapshots. It runs immediately
// on start, then every CheckInterval, and stops when ctx is cancelled. A
// zero Retention disables pruning.
func (s *Store) StartPruner(ctx context.Context, cfg PruneConfig) {
	if cfg.Retention <= 0 {
		slog.Info("snapshot pruner disabled")
		return
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = time.Hour
	}

	slog.Info("snapshot pruner started",
		"dir", s.dir,
		"retention", cfg.Retention,
		"interval", cfg.CheckInterval,
	)

	// Run immediately on startup
	s.runPrune(ctx, cfg.Retention)

	// Then run periodically
	ticker := time.NewTicker(cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("snapshot pruner stopped")
			return
		case <-ticker.C:
			s.runPrune(ctx, cfg.Retention)
		}
	}
}

// runPrune performs one pruning pass.
func (s *Store) runPrune(ctx context.Context, retention time.Duration) {
	start := time.Now()
	removed, err := s.Prune(ctx, retention)
	if err != nil {
		slog.Error("snapshot prune failed", "error", err, "removed", removed)
		return
	}
	slog.Info("snapshot prune completed",
		"removed", removed,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
