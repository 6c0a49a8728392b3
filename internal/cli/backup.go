package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sadopc/letstodo/internal/export"
)

func newExportCmd(app *App) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "export PATH",
		Short: "Write all tasks to a JSON backup or a CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "json" && format != "csv" {
				return fmt.Errorf("invalid format %q: want json or csv", format)
			}
			path := expandHome(args[0])
			return withEnv(app, func(e *env) error {
				if err := e.authed(cmd.Context()); err != nil {
					return err
				}
				st := e.state.Get()
				var err error
				if format == "csv" {
					err = export.ToCSV(st.Tasks, st.TrashedTasks, path)
				} else {
					err = export.ToJSON(export.Backup{
						Tasks:      st.Tasks,
						Trashed:    st.TrashedTasks,
						ExportedAt: time.Now(),
						UserEmail:  st.Session.Email,
					}, path)
				}
				if err != nil {
					return fmt.Errorf("export: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Exported %d tasks to %s\n", len(st.Tasks), path)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&format, "format", "json", "Output format: json or csv")
	return cmd
}

func newImportCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "import PATH",
		Short: "Create the tasks of a JSON backup as new tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := export.FromJSON(expandHome(args[0]))
			if err != nil {
				return fmt.Errorf("import: %w", err)
			}
			return withEnv(app, func(e *env) error {
				if err := e.authed(cmd.Context()); err != nil {
					return err
				}
				imported, failed := e.tasks.Import(cmd.Context(), b.Tasks)
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d tasks", imported)
				if failed > 0 {
					fmt.Fprintf(cmd.OutOrStdout(), ", %d failed", failed)
				}
				fmt.Fprintln(cmd.OutOrStdout())
				if imported == 0 && len(b.Tasks) > 0 {
					return fmt.Errorf("no tasks could be imported")
				}
				return nil
			})
		},
	}
}
