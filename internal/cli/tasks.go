package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sadopc/letstodo/internal/model"
	"github.com/sadopc/letstodo/internal/state"
	"github.com/sadopc/letstodo/internal/tasks"
)

func newListCmd(app *App) *cobra.Command {
	var filter, sortKey, dir, search string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := state.Filter(filter)
			switch f {
			case state.FilterAll, state.FilterPending, state.FilterCompleted:
			default:
				return fmt.Errorf("invalid filter %q: want all, pending or completed", filter)
			}
			k := state.SortKey(sortKey)
			switch k {
			case state.SortCreated, state.SortUpdated, state.SortTitle:
			default:
				return fmt.Errorf("invalid sort %q: want created, updated or title", sortKey)
			}
			d := state.SortDir(dir)
			if d != state.SortAsc && d != state.SortDesc {
				return fmt.Errorf("invalid direction %q: want asc or desc", dir)
			}

			return withEnv(app, func(e *env) error {
				if err := e.authed(cmd.Context()); err != nil {
					return err
				}
				e.state.Set(func(st *state.State) {
					st.Filter, st.SortKey, st.SortDir, st.Search = f, k, d, search
				})
				writeTasks(cmd.OutOrStdout(), tasks.View(e.state.Get()))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&filter, "filter", string(state.FilterAll), "Filter: all, pending or completed")
	cmd.Flags().StringVar(&sortKey, "sort", string(state.SortCreated), "Sort by: created, updated or title")
	cmd.Flags().StringVar(&dir, "dir", string(state.SortDesc), "Sort direction: asc or desc")
	cmd.Flags().StringVar(&search, "search", "", "Only tasks whose title or description contains this text")
	return cmd
}

func newAddCmd(app *App) *cobra.Command {
	var description string
	var done bool

	cmd := &cobra.Command{
		Use:   "add TITLE",
		Short: "Create a task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(app, func(e *env) error {
				if err := e.authed(cmd.Context()); err != nil {
					return err
				}
				t, err := e.tasks.Create(cmd.Context(), model.Draft{
					Title:       strings.Join(args, " "),
					Description: description,
					Completed:   done,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created task #%d\n", t.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&description, "description", "d", "", "Task description (markdown)")
	cmd.Flags().BoolVar(&done, "done", false, "Create the task as completed")
	return cmd
}

func newShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show one task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEnv(app, func(e *env) error {
				if err := e.authed(cmd.Context()); err != nil {
					return err
				}
				t, ok := e.state.Get().FindTask(id)
				if !ok {
					return fmt.Errorf("%w: #%d", tasks.ErrNotFound, id)
				}
				writeTask(cmd.OutOrStdout(), t)
				return nil
			})
		},
	}
}

func newEditCmd(app *App) *cobra.Command {
	var title, description string
	var done bool

	cmd := &cobra.Command{
		Use:   "edit ID",
		Short: "Change a task's title, description or completion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			var p model.TaskPatch
			if cmd.Flags().Changed("title") {
				p.Title = model.StringPtr(title)
			}
			if cmd.Flags().Changed("description") {
				p.Description = model.StringPtr(description)
			}
			if cmd.Flags().Changed("done") {
				p.Completed = model.BoolPtr(done)
			}
			if p.Empty() {
				return fmt.Errorf("nothing to change: pass --title, --description or --done")
			}

			return withEnv(app, func(e *env) error {
				if err := e.authed(cmd.Context()); err != nil {
					return err
				}
				t, err := e.tasks.Update(cmd.Context(), id, p)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated task #%d\n", t.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "New title")
	cmd.Flags().StringVarP(&description, "description", "d", "", "New description")
	cmd.Flags().BoolVar(&done, "done", false, "Mark completed (--done=false reopens)")
	return cmd
}

func newToggleCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle ID",
		Short: "Flip a task between open and done",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEnv(app, func(e *env) error {
				if err := e.authed(cmd.Context()); err != nil {
					return err
				}
				t, err := e.tasks.Toggle(cmd.Context(), id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Task #%d is %s\n", t.ID, status(t))
				return nil
			})
		},
	}
}

func newRmCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "rm ID",
		Aliases: []string{"delete"},
		Short:   "Delete a task",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEnv(app, func(e *env) error {
				if err := e.authed(cmd.Context()); err != nil {
					return err
				}
				if err := e.tasks.Delete(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted task #%d\n", id)
				return nil
			})
		},
	}
}
