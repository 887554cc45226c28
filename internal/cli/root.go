// Package cli provides the astroctl command-line interface.
//
// Commands share the server configuration: defaults, an optional YAML file
// (--config), environment variables and the flags registered from the
// config struct, in increasing priority.
package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/JonMunkholm/astroapi/internal/config"
	"github.com/JonMunkholm/astroapi/internal/core"
	"github.com/JonMunkholm/astroapi/internal/logging"
	"github.com/spf13/cobra"
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
)

type configKey struct{}

// NewRootCmd creates the astroctl root command with every subcommand.
func NewRootCmd() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:   "astroctl",
		Short: "AstroAPI - inspect astronomical data files and process projects",
		Long: `astroctl works on the same projects as the AstroAPI server.

It reads variable ranges from FITS cubes and HDF5 simulation snapshots,
manages projects in the configured store and runs the processing pipeline
without going through HTTP.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "version" || cmd.Name() == "__complete" {
				return nil
			}

			cfg, err := config.LoadWith(config.Options{
				File:  cfgFile,
				Flags: cmd.Root().PersistentFlags(),
			})
			if err != nil {
				return err
			}

			// Diagnostics go to stderr so command output stays pipeable.
			slog.SetDefault(logging.New(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format))

			cmd.SetContext(context.WithValue(cmd.Context(), configKey{}, cfg))
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.SetVersionTemplate("{{.Name}} {{.Version}}\n")

	pf := root.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "YAML config file (env "+config.FileEnv+")")
	pf.StringP("output", "o", outputTable, "Output format (table|json|yaml)")
	config.RegisterFlags(pf)

	_ = root.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{outputTable, outputJSON, outputYAML}, cobra.ShellCompDirectiveNoFileComp
	})

	root.AddCommand(newVersionCommand())
	root.AddCommand(newRangesCommand())
	root.AddCommand(newAggregateCommand())
	root.AddCommand(newProjectsCommand())
	root.AddCommand(newProcessCommand())
	root.AddCommand(newMigrateCommand())

	return root
}

// Execute runs the root command with ctx.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

// ErrorMessage renders err for the terminal. Errors with a catalog entry are
// shown with their code and suggested action; anything else, such as flag
// parsing failures, is printed as is.
func ErrorMessage(err error) string {
	if core.IsUserFacing(err) {
		return core.FormatUserError(err)
	}
	return err.Error()
}

// configFrom returns the configuration loaded by the root command.
func configFrom(cmd *cobra.Command) (*config.Config, error) {
	cfg, ok := cmd.Context().Value(configKey{}).(*config.Config)
	if !ok {
		return nil, fmt.Errorf("configuration not loaded")
	}
	return cfg, nil
}
