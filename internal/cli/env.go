package cli

import (
	"github.com/JonMunkholm/astroapi/internal/config"
	"github.com/JonMunkholm/astroapi/internal/core"
	"github.com/JonMunkholm/astroapi/internal/snapshot"
	"github.com/JonMunkholm/astroapi/internal/source"
	"github.com/JonMunkholm/astroapi/internal/store"
	"github.com/spf13/cobra"
)

// commandEnv holds what a store-backed command needs.
type commandEnv struct {
	cfg     *config.Config
	store   store.Store
	service *core.Service
}

// newCommandEnv opens the store and builds a service the same way the
// server does. The caller must call close.
func newCommandEnv(cmd *cobra.Command) (*commandEnv, func(), error) {
	cfg, err := configFrom(cmd)
	if err != nil {
		return nil, nil, err
	}

	reader, err := source.NewReader(cfg.Reader.Mode, cfg.Reader.Family)
	if err != nil {
		return nil, nil, err
	}

	st, err := store.Open(cmd.Context(), cfg.Database)
	if err != nil {
		return nil, nil, err
	}

	opts := []core.Option{
		core.WithLimiter(core.NewProcessLimiter(cfg.Process.MaxConcurrent, cfg.Process.MaxWaitTime)),
		core.WithProcessTimeout(cfg.Process.Timeout),
	}
	if cfg.Snapshot.Enabled {
		snaps, err := snapshot.New(cfg.Snapshot.Dir, cfg.Snapshot.Format)
		if err != nil {
			_ = st.Close()
			return nil, nil, err
		}
		opts = append(opts, core.WithSnapshots(snaps))
	}

	env := &commandEnv{
		cfg:     cfg,
		store:   st,
		service: core.NewService(st, reader, opts...),
	}
	return env, func() { _ = st.Close() }, nil
}

// newReader builds the configured reader for commands that need no store.
func newReader(cmd *cobra.Command) (source.Reader, error) {
	cfg, err := configFrom(cmd)
	if err != nil {
		return nil, err
	}
	return source.NewReader(cfg.Reader.Mode, cfg.Reader.Family)
}
