package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/letstodo/internal/export"
	"github.com/sadopc/letstodo/internal/state"
)

type fileAction int

const (
	actionNone fileAction = iota
	actionExportJSON
	actionExportCSV
	actionImport
)

var (
	exportJSONKey = key.NewBinding(key.WithKeys("j"), key.WithHelp("j", "export json"))
	exportCSVKey  = key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "export csv"))
)

type settingsScreen struct {
	ctx    context.Context
	d      *Deps
	width  int
	height int

	st state.State

	action fileAction
	form   *huh.Form
	busy   bool

	// Form value pointer (survives value copies)
	path *string
}

func newSettingsScreen(ctx context.Context, d *Deps) *settingsScreen {
	p := ""
	return &settingsScreen{ctx: ctx, d: d, path: &p}
}

func (s *settingsScreen) setSize(w, h int) {
	s.width = w
	s.height = h
}

func (s *settingsScreen) activate(st state.State) tea.Cmd {
	s.st = st
	s.action = actionNone
	s.form = nil
	s.busy = false
	return nil
}

func (s *settingsScreen) deactivate() {
	s.action = actionNone
	s.form = nil
}

func (s *settingsScreen) capturing() bool { return s.form != nil }

func (s *settingsScreen) help() viewKeys {
	return helpFor(keys.Theme, exportJSONKey, exportCSVKey, keys.Import)
}

func (s *settingsScreen) update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case stateChangedMsg:
		s.st = msg.change.New
		return nil

	case resultMsg:
		if msg.op == "file" {
			s.busy = false
			if msg.err != nil {
				s.d.State.Notify(state.KindError, "Could not "+msg.err.Error())
			}
		}
		return nil
	}

	if s.form != nil {
		return s.updateForm(msg)
	}

	if msg, ok := msg.(tea.KeyMsg); ok && !s.busy {
		switch {
		case key.Matches(msg, keys.Theme):
			s.d.State.Set(func(st *state.State) {
				if st.Theme == state.ThemeLight {
					st.Theme = state.ThemeDark
				} else {
					st.Theme = state.ThemeLight
				}
			})
		case key.Matches(msg, exportJSONKey):
			return s.showPathForm(actionExportJSON)
		case key.Matches(msg, exportCSVKey):
			return s.showPathForm(actionExportCSV)
		case key.Matches(msg, keys.Import):
			if !s.st.Session.Authenticated() {
				s.d.State.Notify(state.KindWarning, "Sign in or start a guest session to import tasks")
				return nil
			}
			return s.showPathForm(actionImport)
		}
	}
	return nil
}

func defaultPath(action fileAction, now time.Time) string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	date := now.Format("2006-01-02")
	switch action {
	case actionExportCSV:
		return filepath.Join(home, fmt.Sprintf("letstodo-export-%s.csv", date))
	}
	return filepath.Join(home, fmt.Sprintf("letstodo-backup-%s.json", date))
}

func (s *settingsScreen) showPathForm(action fileAction) tea.Cmd {
	s.action = action
	*s.path = defaultPath(action, time.Now())

	title := "Export to"
	if action == actionImport {
		title = "Import backup from"
	}
	s.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title(title).
				Value(s.path).
				Validate(func(v string) error {
					if strings.TrimSpace(v) == "" {
						return errors.New("path is required")
					}
					return nil
				}),
		),
	).WithShowHelp(true).WithShowErrors(true)
	return s.form.Init()
}

func (s *settingsScreen) updateForm(msg tea.Msg) tea.Cmd {
	if msg, ok := msg.(tea.KeyMsg); ok && msg.String() == "esc" {
		s.form = nil
		s.action = actionNone
		return nil
	}

	form, cmd := s.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		s.form = f
	}
	if s.form.State != huh.StateCompleted {
		return cmd
	}

	s.form = nil
	action := s.action
	s.action = actionNone
	s.busy = true
	return s.runFileAction(action, expandHome(strings.TrimSpace(*s.path)))
}

func (s *settingsScreen) runFileAction(action fileAction, path string) tea.Cmd {
	st := s.d.State.Get()
	notify := s.d.State.Notify
	svc := s.d.Tasks

	return run(s.ctx, "file", func(ctx context.Context) error {
		switch action {
		case actionExportJSON:
			b := export.Backup{
				Tasks:      st.Tasks,
				Trashed:    st.TrashedTasks,
				ExportedAt: time.Now(),
				UserEmail:  st.Session.Email,
			}
			if err := export.ToJSON(b, path); err != nil {
				return fmt.Errorf("export: %w", err)
			}
			notify(state.KindSuccess, fmt.Sprintf("Exported %d tasks to %s", len(st.Tasks)+len(st.TrashedTasks), path))
		case actionExportCSV:
			if err := export.ToCSV(st.Tasks, st.TrashedTasks, path); err != nil {
				return fmt.Errorf("export: %w", err)
			}
			notify(state.KindSuccess, fmt.Sprintf("Exported %d tasks to %s", len(st.Tasks)+len(st.TrashedTasks), path))
		case actionImport:
			b, err := export.FromJSON(path)
			if err != nil {
				return fmt.Errorf("import: %w", err)
			}
			svc.Import(ctx, b.Tasks)
		}
		return nil
	})
}

// expandHome resolves a leading ~/.
func expandHome(path string) string {
	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, rest)
		}
	}
	return path
}

func (s *settingsScreen) view() string {
	w := s.width - 4

	if s.form != nil {
		return activePanelStyle.Width(w).Render(
			lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render("Settings"), s.form.View()),
		)
	}

	row := func(label, value string) string {
		return fmt.Sprintf("  %s %s", lipgloss.NewStyle().Width(16).Render(label), value)
	}
	cfg := s.d.Settings
	logFile := cfg.LogFile
	if logFile == "" {
		logFile = "-"
	}
	autosave := "off"
	if cfg.AutoSave > 0 {
		autosave = cfg.AutoSave.String()
	}

	rows := []string{
		titleStyle.Render("Settings"),
		subtitleStyle.Render("Appearance"),
		row("Theme", highlightStyle.Render(string(s.st.Theme))+mutedStyle.Render("  (t to switch)")),
		row("Sort", highlightStyle.Render(fmt.Sprintf("%s %s", s.st.SortKey, s.st.SortDir))),
		row("Auto-save", highlightStyle.Render(autosave)),
		"",
		subtitleStyle.Render("Connection"),
		row("Environment", highlightStyle.Render(string(cfg.Env))),
		row("API", highlightStyle.Render(cfg.APIBase)),
		row("Session", highlightStyle.Render(sessionLabel(s.st.Session))),
		row("Log file", mutedStyle.Render(logFile)),
		"",
		subtitleStyle.Render("Data"),
		row("Tasks", fmt.Sprintf("%d live, %d in trash", len(s.st.Tasks), len(s.st.TrashedTasks))),
		mutedStyle.Render("  j: export JSON backup  c: export CSV  i: import JSON backup"),
	}
	if s.busy {
		rows = append(rows, "", mutedStyle.Render("  Working..."))
	}

	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}
