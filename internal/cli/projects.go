package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/JonMunkholm/astroapi/internal/core"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newProjectsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "projects",
		Aliases: []string{"project", "p"},
		Short:   "Manage projects in the configured store",
	}
	cmd.AddCommand(newProjectsListCommand())
	cmd.AddCommand(newProjectsShowCommand())
	cmd.AddCommand(newProjectsCreateCommand())
	cmd.AddCommand(newProjectsAddFilesCommand())
	cmd.AddCommand(newProjectsDeleteCommand())
	return cmd
}

func newProjectsListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List projects, favourites and recently opened first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := outputFormat(cmd)
			if err != nil {
				return err
			}
			env, closeEnv, err := newCommandEnv(cmd)
			if err != nil {
				return err
			}
			defer closeEnv()

			projects, err := env.service.ListProjects(cmd.Context())
			if err != nil {
				return err
			}

			return render(cmd.OutOrStdout(), format, projects, func(t table.Writer) {
				t.AppendHeader(table.Row{"ID", "Name", "Fav", "Files", "Variables", "Created", "Last opened"})
				for _, p := range projects {
					opened := "never"
					if p.LastOpened != nil {
						opened = p.LastOpened.Local().Format(time.DateTime)
					}
					t.AppendRow(table.Row{
						p.ID, p.Name, yesNo(p.Favourite), len(p.Paths), len(p.Config.Variables),
						p.Created.Local().Format(time.DateTime), opened,
					})
				}
				t.AppendFooter(table.Row{"", fmt.Sprintf("%d projects", len(projects))})
			})
		},
	}
}

func newProjectsShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one project with its configuration",
		Long: `Show one project with its files and configuration. Showing a project
marks it as opened, as the server does.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := outputFormat(cmd)
			if err != nil {
				return err
			}
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			env, closeEnv, err := newCommandEnv(cmd)
			if err != nil {
				return err
			}
			defer closeEnv()

			p, err := env.service.GetProject(cmd.Context(), id)
			if err != nil {
				return err
			}
			if format == outputTable {
				fmt.Fprintf(cmd.OutOrStdout(), "%d  %s\n", p.ID, p.Name)
				if p.Description != "" {
					fmt.Fprintln(cmd.OutOrStdout(), p.Description)
				}
				for _, path := range p.Paths {
					fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", path)
				}
			}
			return render(cmd.OutOrStdout(), format, p, func(t table.Writer) {
				configTable(t, p.Config)
			})
		},
	}
}

func newProjectsCreateCommand() *cobra.Command {
	var meta core.ProjectMeta

	cmd := &cobra.Command{
		Use:   "create <file>...",
		Short: "Create a project over data files",
		Example: `  astroctl projects create --name "disk run" snap_010.hdf5 snap_011.hdf5`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := outputFormat(cmd)
			if err != nil {
				return err
			}
			env, closeEnv, err := newCommandEnv(cmd)
			if err != nil {
				return err
			}
			defer closeEnv()

			p, err := env.service.CreateProject(cmd.Context(), core.ProjectCreate{ProjectMeta: meta, Paths: args})
			if err != nil {
				return err
			}
			if format == outputTable {
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "created project %d (%d files, %d variables)\n",
					p.ID, len(p.Paths), len(p.Config.Variables))
				return err
			}
			return render(cmd.OutOrStdout(), format, p, nil)
		},
	}

	cmd.Flags().StringVar(&meta.Name, "name", "", "Project name (required)")
	cmd.Flags().StringVar(&meta.Description, "description", "", "Project description")
	cmd.Flags().BoolVar(&meta.Favourite, "favourite", false, "Mark the project as a favourite")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newProjectsAddFilesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "add-files <id> <file>...",
		Short: "Add data files to a project, widening its variable bounds",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			env, closeEnv, err := newCommandEnv(cmd)
			if err != nil {
				return err
			}
			defer closeEnv()

			p, err := env.service.AddFiles(cmd.Context(), id, args[1:])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "project %d now has %d files\n", p.ID, len(p.Paths))
			return err
		},
	}
}

func newProjectsDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a project with its configuration and snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			env, closeEnv, err := newCommandEnv(cmd)
			if err != nil {
				return err
			}
			defer closeEnv()

			if err := env.service.DeleteProject(cmd.Context(), id); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "deleted project %d\n", id)
			return err
		},
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, &core.ValidationError{Field: "id", Reason: "must be a positive integer, got " + strconv.Quote(s)}
	}
	return id, nil
}
