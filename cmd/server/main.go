package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/astroapi/internal/config"
	"github.com/JonMunkholm/astroapi/internal/core"
	"github.com/JonMunkholm/astroapi/internal/logging"
	"github.com/JonMunkholm/astroapi/internal/snapshot"
	"github.com/JonMunkholm/astroapi/internal/source"
	"github.com/JonMunkholm/astroapi/internal/store"
	"github.com/JonMunkholm/astroapi/internal/web"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	flags := pflag.NewFlagSet("astroapi", pflag.ExitOnError)
	cfgFile := flags.String("config", "", "YAML config file (env "+config.FileEnv+")")
	config.RegisterFlags(flags)
	_ = flags.Parse(os.Args[1:])

	// Load and validate configuration
	cfg, err := config.LoadWith(config.Options{File: *cfgFile, Flags: flags})
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging based on config
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"db_driver", cfg.Database.Driver,
		"reader", cfg.Reader.Mode,
		"process_max_concurrent", cfg.Process.MaxConcurrent,
		"snapshot_enabled", cfg.Snapshot.Enabled,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)
	slog.Debug("effective configuration", "config", cfg.String())

	// Open the store; migrations are applied on open
	ctx := context.Background()
	st, err := store.Open(ctx, cfg.Database)
	if err != nil {
		slog.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	if version, err := st.SchemaVersion(ctx); err == nil {
		slog.Info("connected to store", "driver", cfg.Database.Driver, "schema_version", version)
	}

	reader, err := source.NewReader(cfg.Reader.Mode, cfg.Reader.Family)
	if err != nil {
		slog.Error("failed to create reader", "error", err)
		os.Exit(1)
	}

	opts := []core.Option{
		core.WithLimiter(core.NewProcessLimiter(cfg.Process.MaxConcurrent, cfg.Process.MaxWaitTime)),
		core.WithProcessTimeout(cfg.Process.Timeout),
	}

	var snaps *snapshot.Store
	if cfg.Snapshot.Enabled {
		snaps, err = snapshot.New(cfg.Snapshot.Dir, cfg.Snapshot.Format)
		if err != nil {
			slog.Error("failed to create snapshot store", "error", err)
			os.Exit(1)
		}
		opts = append(opts, core.WithSnapshots(snaps))
	}

	service := core.NewService(st, reader, opts...)

	// Create server with config
	server := web.NewServer(service, cfg)

	// Create cancellable context for background jobs
	jobCtx, cancelJobs := context.WithCancel(context.Background())

	// Start snapshot pruner with config values
	if snaps != nil {
		go snaps.StartPruner(jobCtx, snapshot.PruneConfig{
			Retention:     cfg.Snapshot.Retention,
			CheckInterval: cfg.Snapshot.CheckInterval,
		})
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		// Stop background jobs
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Wait for in-flight process requests (with timeout)
		limiter := service.Limiter()
		if active := limiter.ActiveCount(); active > 0 {
			slog.Info("waiting for process requests to complete", "active", active)
			if err := limiter.WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("process requests did not complete in time", "error", err)
			} else {
				slog.Info("all process requests completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	// Start server (uses addr from config internally)
	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(); err != nil {
		slog.Info("server stopped", "error", err)
	}
}
