package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/letstodo/internal/model"
	"github.com/sadopc/letstodo/internal/state"
)

type taskDetailScreen struct {
	ctx    context.Context
	d      *Deps
	width  int
	height int

	task  *model.Task
	theme state.Theme
	vp    viewport.Model
}

func newTaskDetailScreen(ctx context.Context, d *Deps) *taskDetailScreen {
	return &taskDetailScreen{ctx: ctx, d: d, vp: viewport.New(60, 10)}
}

func (s *taskDetailScreen) setSize(w, h int) {
	s.width = w
	s.height = h
	s.vp.Width = max(w-8, 20)
	s.vp.Height = max(h-8, 3)
	s.render()
}

func (s *taskDetailScreen) activate(st state.State) tea.Cmd {
	s.theme = st.Theme
	s.task = nil
	if st.CurrentTask != nil {
		t := st.CurrentTask.Clone()
		s.task = &t
	}
	s.render()
	s.vp.GotoTop()
	return nil
}

func (s *taskDetailScreen) deactivate() {}

func (s *taskDetailScreen) capturing() bool { return false }

func (s *taskDetailScreen) help() viewKeys {
	return helpFor(keys.Edit, keys.Toggle, keys.Delete, keys.Up, keys.Down)
}

func (s *taskDetailScreen) render() {
	if s.task == nil {
		s.vp.SetContent(mutedStyle.Render("No task selected."))
		return
	}
	s.vp.SetContent(renderMarkdown(s.task.Description, s.theme, s.vp.Width))
}

// renderMarkdown renders md with glamour, falling back to the raw text.
func renderMarkdown(md string, theme state.Theme, width int) string {
	if strings.TrimSpace(md) == "" {
		return mutedStyle.Render("No description.")
	}
	style := "dark"
	if theme == state.ThemeLight {
		style = "light"
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(out, "\n")
}

func (s *taskDetailScreen) update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case stateChangedMsg:
		st := msg.change.New
		s.theme = st.Theme
		if s.task != nil {
			if t, ok := st.FindTask(s.task.ID); ok {
				s.task = &t
			} else if _, trashed := st.FindTrashed(s.task.ID); trashed {
				s.d.State.Navigate(state.ViewTaskList, nil)
				return nil
			}
		}
		s.render()
		return nil

	case resultMsg:
		reportLocal(s.d.State, msg.err)
		return nil

	case tea.KeyMsg:
		if s.task == nil {
			break
		}
		id := s.task.ID
		svc := s.d.Tasks
		switch {
		case key.Matches(msg, keys.Edit):
			if err := svc.SetCurrent(id); err != nil {
				reportLocal(s.d.State, err)
				return nil
			}
			s.d.State.Navigate(state.ViewTaskForm, nil)
			return nil
		case key.Matches(msg, keys.Toggle):
			return run(s.ctx, "toggle", func(ctx context.Context) error {
				_, err := svc.Toggle(ctx, id)
				return err
			})
		case key.Matches(msg, keys.Delete):
			return run(s.ctx, "delete", func(ctx context.Context) error {
				return svc.Delete(ctx, id)
			})
		}
	}

	var cmd tea.Cmd
	s.vp, cmd = s.vp.Update(msg)
	return cmd
}

func (s *taskDetailScreen) view() string {
	w := s.width - 4
	if s.task == nil {
		return panelStyle.Width(w).Render(mutedStyle.Render("No task selected. Press esc to go back."))
	}
	t := s.task

	status := warningStyle.Render("○ open")
	if t.Completed {
		status = successStyle.Render("✓ done")
	}
	if t.Pending {
		status += pendingStyle.Render("  saving…")
	}
	meta := mutedStyle.Render(fmt.Sprintf("#%d  created %s  updated %s", t.ID, ago(t.CreatedAt), ago(t.UpdatedAt)))

	body := lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render(t.Title),
		status+"  "+meta,
		"",
		s.vp.View(),
	)
	if s.vp.TotalLineCount() > s.vp.Height {
		body += "\n" + mutedStyle.Render(fmt.Sprintf("%3.f%%", s.vp.ScrollPercent()*100))
	}
	return panelStyle.Width(w).Render(body)
}
