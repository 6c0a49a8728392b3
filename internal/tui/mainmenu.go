package tui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/letstodo/internal/api"
	"github.com/sadopc/letstodo/internal/model"
	"github.com/sadopc/letstodo/internal/state"
)

type menuItem struct {
	label  string
	hint   string
	action func() tea.Cmd
}

type mainMenuScreen struct {
	ctx    context.Context
	d      *Deps
	width  int
	height int

	kind   model.Kind
	items  []menuItem
	cursor int
	busy   bool
}

func newMainMenuScreen(ctx context.Context, d *Deps) *mainMenuScreen {
	return &mainMenuScreen{ctx: ctx, d: d}
}

func (m *mainMenuScreen) setSize(w, h int) {
	m.width = w
	m.height = h
}

func (m *mainMenuScreen) activate(st state.State) tea.Cmd {
	m.kind = st.Session.Kind
	m.items = m.buildItems()
	m.cursor = 0
	m.busy = false
	return nil
}

func (m *mainMenuScreen) deactivate() {}

func (m *mainMenuScreen) capturing() bool { return false }

func (m *mainMenuScreen) help() viewKeys {
	return helpFor(keys.Up, keys.Down, keys.Enter)
}

// buildItems depends on who is signed in.
func (m *mainMenuScreen) buildItems() []menuItem {
	goTo := func(v state.View) func() tea.Cmd {
		return func() tea.Cmd {
			m.d.State.Navigate(v, nil)
			return nil
		}
	}
	settings := menuItem{"Settings", "theme, export and import", goTo(state.ViewSettings)}
	quit := menuItem{"Quit", "", func() tea.Cmd { return tea.Quit }}

	switch m.kind {
	case model.KindUser:
		return []menuItem{
			{"Open dashboard", "your tasks", goTo(state.ViewDashboard)},
			settings,
			{"Sign out", "", m.signOut},
			quit,
		}
	case model.KindGuest:
		return []menuItem{
			{"Open dashboard", "guest tasks", goTo(state.ViewDashboard)},
			{"Create account", "keep your tasks for good", goTo(state.ViewRegister)},
			settings,
			{"End guest session", "", m.signOut},
			quit,
		}
	}
	return []menuItem{
		{"Continue as guest", "try it without an account", m.startGuest},
		{"Sign in", "", goTo(state.ViewLogin)},
		{"Create account", "", goTo(state.ViewRegister)},
		settings,
		quit,
	}
}

func (m *mainMenuScreen) startGuest() tea.Cmd {
	m.busy = true
	return run(m.ctx, "guest", m.d.Session.StartGuest)
}

func (m *mainMenuScreen) signOut() tea.Cmd {
	m.busy = true
	return run(m.ctx, "signout", m.d.Session.SignOut)
}

func (m *mainMenuScreen) update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case stateChangedMsg:
		if msg.change.Has(state.KeySession) && msg.change.New.Session.Kind != m.kind {
			m.kind = msg.change.New.Session.Kind
			m.items = m.buildItems()
			m.cursor = min(m.cursor, len(m.items)-1)
		}
		return nil

	case resultMsg:
		m.busy = false
		switch msg.op {
		case "guest":
			if msg.err != nil {
				m.d.State.Notify(state.KindError, "Could not start guest session: "+api.UserMessage(msg.err))
				return nil
			}
			m.d.State.Notify(state.KindSuccess, "Guest session started")
			m.d.State.Navigate(state.ViewDashboard, nil)
		}
		return nil

	case tea.KeyMsg:
		if m.busy {
			return nil
		}
		switch {
		case key.Matches(msg, keys.Up):
			if m.cursor > 0 {
				m.cursor--
			}
		case key.Matches(msg, keys.Down):
			if m.cursor < len(m.items)-1 {
				m.cursor++
			}
		case key.Matches(msg, keys.Enter):
			if m.cursor < len(m.items) {
				return m.items[m.cursor].action()
			}
		}
	}
	return nil
}

func (m *mainMenuScreen) view() string {
	w := m.width - 4

	title := titleStyle.Render("Let's Todo")
	var greeting string
	switch m.kind {
	case model.KindUser:
		greeting = fmt.Sprintf("Signed in as %s", highlightStyle.Render(m.d.State.Get().Session.Email))
	case model.KindGuest:
		greeting = "You are using a guest session. Tasks disappear when it ends."
	default:
		greeting = "Sign in, create an account or continue as a guest."
	}

	rows := []string{title, mutedStyle.Render(greeting), ""}
	for i, it := range m.items {
		cursor := "  "
		style := normalItemStyle
		if i == m.cursor {
			cursor = "> "
			style = selectedItemStyle
		}
		line := style.Render(cursor + it.label)
		if it.hint != "" {
			line += "  " + mutedStyle.Render(it.hint)
		}
		rows = append(rows, line)
	}
	if m.busy {
		rows = append(rows, "", mutedStyle.Render("  Working..."))
	}

	return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}
