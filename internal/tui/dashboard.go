package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/letstodo/internal/model"
	"github.com/sadopc/letstodo/internal/state"
	"github.com/sadopc/letstodo/internal/tasks"
)

type dashboardScreen struct {
	ctx    context.Context
	d      *Deps
	width  int
	height int

	st    state.State
	stats tasks.Stats
	chart barchart.Model

	confirming bool
	confirm    *huh.Form
	signOut    *bool
}

func newDashboardScreen(ctx context.Context, d *Deps) *dashboardScreen {
	yes := false
	return &dashboardScreen{
		ctx:     ctx,
		d:       d,
		chart:   barchart.New(40, 8),
		signOut: &yes,
	}
}

func (s *dashboardScreen) setSize(w, h int) {
	s.width = w
	s.height = h
	s.buildChart()
}

func (s *dashboardScreen) activate(st state.State) tea.Cmd {
	s.confirming = false
	s.refresh(st)
	svc := s.d.Tasks
	return run(s.ctx, "load", func(ctx context.Context) error {
		_, err := svc.Load(ctx, false)
		return err
	})
}

func (s *dashboardScreen) deactivate() {
	s.confirming = false
	s.confirm = nil
}

func (s *dashboardScreen) capturing() bool { return s.confirming }

func (s *dashboardScreen) help() viewKeys {
	return helpFor(keys.Tasks, keys.Trash, keys.Settings, keys.New, keys.Refresh, keys.Logout)
}

func (s *dashboardScreen) refresh(st state.State) {
	s.st = st
	s.stats = s.d.Tasks.Stats()
	s.buildChart()
}

func (s *dashboardScreen) buildChart() {
	w := max(s.width-12, 20)
	s.chart = barchart.New(w, 8)
	bar := func(label string, v int, c lipgloss.Color) barchart.BarData {
		return barchart.BarData{
			Label: label,
			Values: []barchart.BarValue{{
				Name:  label,
				Value: float64(v),
				Style: lipgloss.NewStyle().Foreground(c),
			}},
		}
	}
	s.chart.PushAll([]barchart.BarData{
		bar("Done", s.stats.Completed, colors.success),
		bar("Open", s.stats.Pending, colors.warning),
		bar("Trash", s.stats.Trashed, colors.muted),
	})
	s.chart.Draw()
}

func (s *dashboardScreen) update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case stateChangedMsg:
		if msg.change.Has(state.KeyTasks) || msg.change.Has(state.KeyTrashedTasks) ||
			msg.change.Has(state.KeySession) || msg.change.Has(state.KeyError) || msg.change.Has(state.KeyTheme) {
			s.refresh(msg.change.New)
		}
		return nil

	case resultMsg:
		return nil
	}

	if s.confirming {
		return s.updateConfirm(msg)
	}

	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, keys.Tasks), key.Matches(msg, keys.Enter):
			s.d.State.Navigate(state.ViewTaskList, nil)
		case key.Matches(msg, keys.Trash):
			s.d.State.Navigate(state.ViewTrash, nil)
		case key.Matches(msg, keys.Settings):
			s.d.State.Navigate(state.ViewSettings, nil)
		case key.Matches(msg, keys.New):
			s.d.State.Navigate(state.ViewTaskForm, func(st *state.State) { st.CurrentTask = nil })
		case key.Matches(msg, keys.Refresh):
			svc := s.d.Tasks
			return run(s.ctx, "load", func(ctx context.Context) error {
				_, err := svc.Load(ctx, true)
				return err
			})
		case key.Matches(msg, keys.Logout):
			return s.showConfirm()
		}
	}
	return nil
}

func (s *dashboardScreen) showConfirm() tea.Cmd {
	*s.signOut = false
	title := "Sign out?"
	if s.st.Session.Kind == model.KindGuest {
		title = "End guest session? Its tasks will be lost."
	}
	s.confirm = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Affirmative("Yes").
				Negative("No").
				Value(s.signOut),
		),
	).WithShowHelp(false)
	s.confirming = true
	return s.confirm.Init()
}

func (s *dashboardScreen) updateConfirm(msg tea.Msg) tea.Cmd {
	if msg, ok := msg.(tea.KeyMsg); ok && msg.String() == "esc" {
		s.confirming = false
		s.confirm = nil
		return nil
	}
	form, cmd := s.confirm.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		s.confirm = f
	}
	if s.confirm.State != huh.StateCompleted {
		return cmd
	}
	s.confirming = false
	s.confirm = nil
	if !*s.signOut {
		return nil
	}
	return run(s.ctx, "signout", s.d.Session.SignOut)
}

func (s *dashboardScreen) view() string {
	if s.width < 20 {
		return "Terminal too small"
	}
	w := s.width - 4

	if s.confirming && s.confirm != nil {
		return activePanelStyle.Width(w).Render(s.confirm.View())
	}

	welcome := "Welcome!"
	switch s.st.Session.Kind {
	case model.KindUser:
		welcome = fmt.Sprintf("Welcome back, %s!", s.st.Session.DisplayName())
	case model.KindGuest:
		welcome = "Welcome, guest! Your tasks live as long as this session."
	}

	summary := []string{
		titleStyle.Render("Overview"),
		subtitleStyle.Render(welcome),
		"",
		fmt.Sprintf("  %-12s %s", "Tasks", highlightStyle.Render(fmt.Sprint(s.stats.Total))),
		fmt.Sprintf("  %-12s %s", "Completed", successStyle.Render(fmt.Sprint(s.stats.Completed))),
		fmt.Sprintf("  %-12s %s", "Open", warningStyle.Render(fmt.Sprint(s.stats.Pending))),
		fmt.Sprintf("  %-12s %s", "In trash", mutedStyle.Render(fmt.Sprint(s.stats.Trashed))),
		"",
		"  " + progressText(s.stats),
	}
	if s.st.Error != "" {
		summary = append(summary, "", errorStyle.Render("  "+s.st.Error))
	}
	summaryPanel := panelStyle.Width(w).Render(strings.Join(summary, "\n"))

	chartPanel := panelStyle.Width(w).Render(
		lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render("Progress"), s.chart.View()),
	)

	shortcuts := mutedStyle.Render("  1: tasks  2: trash  3: settings  n: new task  L: sign out")

	return lipgloss.JoinVertical(lipgloss.Left, summaryPanel, chartPanel, shortcuts)
}

func progressText(st tasks.Stats) string {
	switch {
	case st.Total == 0:
		return mutedStyle.Render("No tasks yet. Press n to add one.")
	case st.Completed == st.Total:
		return successStyle.Render("All done. Nice work!")
	}
	return fmt.Sprintf("%d%% done, %d to go", st.Percent(), st.Pending)
}
