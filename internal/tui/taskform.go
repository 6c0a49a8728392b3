package tui

import (
	"context"
	"errors"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/letstodo/internal/model"
	"github.com/sadopc/letstodo/internal/state"
)

// autosaveMsg fires after the debounce delay; only the latest seq counts.
type autosaveMsg struct {
	seq int
}

type taskFormScreen struct {
	ctx    context.Context
	d      *Deps
	width  int
	height int

	editing *model.Task
	form    *huh.Form
	busy    bool
	err     string
	seq     int

	// Form field pointers (survive form rebuilds)
	title       *string
	description *string
	completed   *bool
}

func newTaskFormScreen(ctx context.Context, d *Deps) *taskFormScreen {
	title, desc, done := "", "", false
	return &taskFormScreen{
		ctx:         ctx,
		d:           d,
		title:       &title,
		description: &desc,
		completed:   &done,
	}
}

func (f *taskFormScreen) setSize(w, h int) {
	f.width = w
	f.height = h
}

// activate opens the form for st.CurrentTask, or for a new task when there
// is none.
func (f *taskFormScreen) activate(st state.State) tea.Cmd {
	f.busy = false
	f.err = ""
	f.seq++
	f.editing = nil
	*f.title, *f.description, *f.completed = "", "", false
	if st.CurrentTask != nil {
		t := st.CurrentTask.Clone()
		f.editing = &t
		*f.title, *f.description, *f.completed = t.Title, t.Description, t.Completed
	}
	return f.buildForm()
}

func (f *taskFormScreen) deactivate() {
	f.seq++
	f.form = nil
}

func (f *taskFormScreen) capturing() bool { return true }

func (f *taskFormScreen) help() viewKeys {
	return helpFor(keys.Enter, keys.Back)
}

func (f *taskFormScreen) buildForm() tea.Cmd {
	f.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Title").
				Value(f.title).
				CharLimit(200).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("title is required")
					}
					return nil
				}),
			huh.NewText().
				Title("Description").
				Description("Markdown is rendered in the detail view").
				Lines(5).
				Value(f.description),
			huh.NewConfirm().
				Title("Completed?").
				Value(f.completed),
		),
	).WithShowHelp(true).WithShowErrors(true)
	return f.form.Init()
}

// dirtyPatch is what changed relative to the task as the store knows it now.
func (f *taskFormScreen) dirtyPatch() (int64, model.TaskPatch, bool) {
	if f.editing == nil {
		return 0, model.TaskPatch{}, false
	}
	base, ok := f.d.State.Get().FindTask(f.editing.ID)
	if !ok {
		return 0, model.TaskPatch{}, false
	}
	var p model.TaskPatch
	if strings.TrimSpace(*f.title) != base.Title {
		p.Title = model.StringPtr(*f.title)
	}
	if *f.description != base.Description {
		p.Description = model.StringPtr(*f.description)
	}
	if *f.completed != base.Completed {
		p.Completed = model.BoolPtr(*f.completed)
	}
	return base.ID, p, !p.Empty()
}

func (f *taskFormScreen) scheduleAutosave() tea.Cmd {
	delay := f.d.Settings.AutoSave
	if f.editing == nil || delay <= 0 {
		return nil
	}
	f.seq++
	seq := f.seq
	return tea.Tick(delay, func(time.Time) tea.Msg { return autosaveMsg{seq: seq} })
}

func (f *taskFormScreen) autosave() tea.Cmd {
	id, p, dirty := f.dirtyPatch()
	if !dirty || strings.TrimSpace(*f.title) == "" {
		return nil
	}
	svc := f.d.Tasks
	return run(f.ctx, "autosave", func(ctx context.Context) error {
		_, err := svc.AutoSave(ctx, id, p)
		return err
	})
}

func (f *taskFormScreen) update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case autosaveMsg:
		if msg.seq != f.seq || f.busy {
			return nil
		}
		return f.autosave()

	case resultMsg:
		return f.handleResult(msg)

	case stateChangedMsg:
		// The task was deleted elsewhere or its reload dropped it.
		if f.editing != nil && msg.change.Has(state.KeyTasks) {
			if _, ok := msg.change.New.FindTask(f.editing.ID); !ok && !f.busy {
				f.err = "This task no longer exists."
			}
		}
		return nil

	case tea.KeyMsg:
		if msg.String() == "esc" {
			f.seq++
			return tea.Batch(f.autosave(), back)
		}
	}

	if f.busy || f.form == nil {
		return nil
	}
	form, cmd := f.form.Update(msg)
	if hf, ok := form.(*huh.Form); ok {
		f.form = hf
	}
	if f.form.State == huh.StateCompleted {
		return f.submit()
	}
	if _, ok := msg.(tea.KeyMsg); ok {
		return tea.Batch(cmd, f.scheduleAutosave())
	}
	return cmd
}

func (f *taskFormScreen) submit() tea.Cmd {
	f.seq++
	f.err = ""
	svc := f.d.Tasks

	if f.editing == nil {
		d := model.Draft{Title: *f.title, Description: *f.description, Completed: *f.completed}
		f.busy = true
		return run(f.ctx, "save", func(ctx context.Context) error {
			_, err := svc.Create(ctx, d)
			return err
		})
	}

	id, p, dirty := f.dirtyPatch()
	if !dirty {
		return back
	}
	f.busy = true
	return run(f.ctx, "save", func(ctx context.Context) error {
		_, err := svc.Update(ctx, id, p)
		return err
	})
}

func (f *taskFormScreen) handleResult(msg resultMsg) tea.Cmd {
	switch msg.op {
	case "save":
		f.busy = false
		if msg.err == nil {
			return back
		}
		// Network failures were notified by the service; keep the form open
		// so the input is not lost.
		f.err = inlineError(msg.err)
		if f.err == "" {
			f.err = "Saving failed. Press enter to retry or esc to leave."
		}
		return f.buildForm()
	case "autosave":
		if msg.err != nil {
			f.err = inlineError(msg.err)
		}
	}
	return nil
}

func (f *taskFormScreen) view() string {
	w := f.width - 4

	name := "New task"
	if f.editing != nil {
		name = "Edit task"
	}
	rows := []string{titleStyle.Render(name)}
	if f.err != "" {
		rows = append(rows, errorStyle.Render(f.err), "")
	}
	switch {
	case f.busy:
		rows = append(rows, mutedStyle.Render("Saving..."))
	case f.form != nil:
		rows = append(rows, f.form.View())
	}
	if f.editing != nil && f.d.Settings.AutoSave > 0 {
		rows = append(rows, "", mutedStyle.Render("Changes are saved automatically. esc: close"))
	}

	return activePanelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}
