package cli

import (
	"github.com/JonMunkholm/astroapi/internal/core"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newRangesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ranges <file>...",
		Short: "Show the variables and ranges of data files",
		Long: `Read every file and list each variable it exposes with its unit and
observed minimum and maximum.`,
		Example: `  # Inspect a simulation snapshot
  astroctl ranges snap_010.hdf5

  # Several files as JSON
  astroctl ranges cube1.fits cube2.fits -o json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := outputFormat(cmd)
			if err != nil {
				return err
			}
			reader, err := newReader(cmd)
			if err != nil {
				return err
			}

			files, err := core.ReadRanges(cmd.Context(), reader, args)
			if err != nil {
				return err
			}

			return render(cmd.OutOrStdout(), format, files, func(t table.Writer) {
				t.AppendHeader(table.Row{"File", "Variable", "Unit", "Min", "Max"})
				for _, f := range files {
					for _, name := range core.VariableNames(f.Ranges) {
						r := f.Ranges[name]
						t.AppendRow(table.Row{f.Path, name, r.Unit, formatFloat(r.Min), formatFloat(r.Max)})
					}
					t.AppendSeparator()
				}
			})
		},
	}
}

func newAggregateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "aggregate <file>...",
		Short: "Merge the variables of data files into one project configuration",
		Long: `Read every file and print the configuration a project over these files
would start with: bounds widened across files and the files exposing each
variable. The YAML output can be edited and passed to "astroctl process --apply".`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := outputFormat(cmd)
			if err != nil {
				return err
			}
			// A project configuration reads best as YAML.
			if !cmd.Flags().Changed("output") {
				format = outputYAML
			}
			reader, err := newReader(cmd)
			if err != nil {
				return err
			}

			files, err := core.ReadRanges(cmd.Context(), reader, args)
			if err != nil {
				return err
			}
			cfg := core.AggregateConfig(files)

			return render(cmd.OutOrStdout(), format, cfg, func(t table.Writer) {
				configTable(t, cfg)
			})
		},
	}
	return cmd
}

// configTable lists the variables of cfg, one row each.
func configTable(t table.Writer, cfg core.ProjectConfig) {
	t.SetTitle("downsampling %s", formatFloat(cfg.Downsampling))
	t.AppendHeader(table.Row{"Variable", "Unit", "Min", "Max", "Sel min", "Sel max", "Selected", "Axis", "Files"})
	for _, name := range cfg.Names() {
		v := cfg.Variables[name]
		axis := ""
		switch {
		case v.XAxis:
			axis = "x"
		case v.YAxis:
			axis = "y"
		case v.ZAxis:
			axis = "z"
		}
		t.AppendRow(table.Row{
			name, v.Unit,
			formatFloat(v.ThrMin), formatFloat(v.ThrMax),
			formatBound(v.ThrMinSel), formatBound(v.ThrMaxSel),
			yesNo(v.Selected), axis, len(v.Files),
		})
	}
}
