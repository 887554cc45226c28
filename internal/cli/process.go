package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/JonMunkholm/astroapi/internal/core"
	"github.com/JonMunkholm/astroapi/internal/snapshot"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type processOptions struct {
	apply        string
	selectVars   []string
	downsampling float64
	out          string
}

func newProcessCommand() *cobra.Command {
	var opts processOptions

	cmd := &cobra.Command{
		Use:   "process <id>",
		Short: "Combine the files of a project into one table",
		Long: `Reconcile the project configuration with the requested changes, store it,
and combine every project file into one table.

Without --apply the stored configuration is used. --select and
--downsampling are applied on top of it. Selections that fall outside a
variable's bounds are reported and keep their stored state.`,
		Example: `  # Select two variables and write the table as CSV
  astroctl process 3 --select x,rho --out disk.csv

  # Apply an edited configuration from "astroctl aggregate"
  astroctl process 3 --apply config.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return runProcess(cmd, id, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.apply, "apply", "", "YAML project configuration to submit")
	f.StringSliceVar(&opts.selectVars, "select", nil, "Variables to select, in addition to the configuration")
	f.Float64Var(&opts.downsampling, "downsampling", 0, "Fraction of rows to keep, in (0, 1]")
	f.StringVar(&opts.out, "out", "", "Write the combined table as CSV to this file (- for stdout)")
	return cmd
}

func runProcess(cmd *cobra.Command, id int64, opts processOptions) error {
	env, closeEnv, err := newCommandEnv(cmd)
	if err != nil {
		return err
	}
	defer closeEnv()

	project, err := env.service.GetProject(cmd.Context(), id)
	if err != nil {
		return err
	}

	cfg := project.Config
	if opts.apply != "" {
		if cfg, err = readConfigFile(opts.apply); err != nil {
			return err
		}
	}
	cfg = cfg.Clone()

	for _, name := range opts.selectVars {
		v, ok := cfg.Variables[name]
		if !ok {
			return &core.ConfigNotFoundError{ProjectID: id, Variable: name}
		}
		v.Selected = true
		cfg.Variables[name] = v
	}
	if cmd.Flags().Changed("downsampling") {
		cfg.Downsampling = opts.downsampling
	}

	result, err := env.service.Process(cmd.Context(), id, cfg)
	if err != nil {
		return err
	}

	errOut := cmd.ErrOrStderr()
	for _, r := range result.Rejected {
		fmt.Fprintf(errOut, "warning: %v\n", r)
	}

	switch opts.out {
	case "":
	case "-":
		if err := snapshot.WriteCSV(cmd.OutOrStdout(), result.Table); err != nil {
			return err
		}
	default:
		if err := writeCSVFile(opts.out, result.Table); err != nil {
			return err
		}
	}

	if opts.out != "-" {
		fmt.Fprintf(cmd.OutOrStdout(), "project %d: %d rows x %d columns in %s\n",
			id, result.Table.Len(), len(result.Table.Columns), result.Duration.Round(time.Millisecond))
		if result.SnapshotPath != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "snapshot: %s\n", result.SnapshotPath)
		}
		if len(result.Table.Columns) > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "columns: %s\n", strings.Join(result.Table.Columns, ", "))
		}
	}
	return nil
}

// readConfigFile decodes a YAML project configuration.
func readConfigFile(path string) (core.ProjectConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return core.ProjectConfig{}, err
	}
	cfg := core.NewProjectConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return core.ProjectConfig{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

func writeCSVFile(path string, t *core.Table) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := snapshot.WriteCSV(f, t); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
