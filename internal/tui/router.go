package tui

import (
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/letstodo/internal/state"
)

// screen is one view of the application. Screens are registered with the
// router once at startup.
type screen interface {
	// activate runs when the screen becomes visible, with the state that
	// caused the transition.
	activate(st state.State) tea.Cmd
	// deactivate runs after the next screen has been activated.
	deactivate()
	update(msg tea.Msg) tea.Cmd
	view() string
	setSize(w, h int)
	// capturing reports whether every key, esc included, belongs to the
	// screen (open forms, search boxes, confirmations).
	capturing() bool
	help() viewKeys
}

const (
	fadeFrames   = 3
	fadeInterval = 50 * time.Millisecond
)

// requiresAuth lists the views that make no sense without a session.
var requiresAuth = map[state.View]bool{
	state.ViewDashboard:  true,
	state.ViewTaskList:   true,
	state.ViewTaskForm:   true,
	state.ViewTaskDetail: true,
	state.ViewTrash:      true,
}

// escapeTargets maps a view to where esc leads. Views not listed go back
// one step.
var escapeTargets = map[state.View]state.View{
	state.ViewMainMenu:   state.ViewMainMenu,
	state.ViewLogin:      state.ViewMainMenu,
	state.ViewRegister:   state.ViewMainMenu,
	state.ViewSettings:   state.ViewDashboard,
	state.ViewTaskList:   state.ViewDashboard,
	state.ViewTaskDetail: state.ViewTaskList,
	state.ViewTrash:      state.ViewDashboard,
}

type router struct {
	store   *state.Store
	logger  *slog.Logger
	screens map[state.View]screen
	shown   state.View
	fade    int
}

func newRouter(s *state.Store, logger *slog.Logger, screens map[state.View]screen) *router {
	return &router{store: s, logger: logger, screens: screens, shown: state.ViewMainMenu}
}

func (r *router) current() screen {
	return r.screens[r.shown]
}

// start shows whatever view the store points at, falling back to the main
// menu.
func (r *router) start() tea.Cmd {
	st := r.store.Get()
	if _, ok := r.screens[st.CurrentView]; !ok || (requiresAuth[st.CurrentView] && !st.Session.Authenticated()) {
		r.store.SetSilent(func(s *state.State) {
			s.CurrentView = state.ViewMainMenu
			s.PreviousView = state.ViewNone
		})
		st = r.store.Get()
	}
	r.shown = st.CurrentView
	return r.current().activate(st)
}

// handle reacts to a store change: it keeps signed-out users away from
// authenticated views and switches screens when currentView changed.
func (r *router) handle(c state.Change) tea.Cmd {
	if requiresAuth[c.New.CurrentView] && !c.New.Session.Authenticated() {
		r.logger.Info("no session, leaving view", "view", c.New.CurrentView)
		r.store.Set(func(s *state.State) {
			s.CurrentView = state.ViewMainMenu
			s.PreviousView = state.ViewNone
		})
		return nil
	}
	if !c.Has(state.KeyCurrentView) {
		return nil
	}
	return r.transition(c)
}

func (r *router) transition(c state.Change) tea.Cmd {
	target := c.New.CurrentView
	if target == r.shown {
		return nil
	}
	next, ok := r.screens[target]
	if !ok {
		r.logger.Error("unknown view", "view", target, "shown", r.shown)
		shown, prev := r.shown, c.Old.PreviousView
		r.store.Set(func(s *state.State) {
			s.CurrentView = shown
			s.PreviousView = prev
		})
		return nil
	}

	old := r.current()
	r.logger.Debug("view transition", "from", r.shown, "to", target)
	r.shown = target
	r.fade = fadeFrames
	cmd := next.activate(c.New)
	if old != nil {
		old.deactivate()
	}
	return tea.Batch(cmd, fadeTick())
}

// escape navigates to the escape target of the current view.
func (r *router) escape() {
	st := r.store.Get()
	target, ok := escapeTargets[st.CurrentView]
	if !ok {
		r.store.Back()
		return
	}
	if requiresAuth[target] && !st.Session.Authenticated() {
		target = state.ViewMainMenu
	}
	if target != st.CurrentView {
		r.store.Navigate(target, nil)
	}
}

func (r *router) stepFade() tea.Cmd {
	if r.fade > 0 {
		r.fade--
	}
	if r.fade > 0 {
		return fadeTick()
	}
	return nil
}

func (r *router) view() string {
	scr := r.current()
	if scr == nil {
		return ""
	}
	content := scr.view()
	if r.fade > 0 {
		return lipgloss.NewStyle().Faint(true).Render(content)
	}
	return content
}

func (r *router) setSize(w, h int) {
	for _, scr := range r.screens {
		scr.setSize(w, h)
	}
}

func fadeTick() tea.Cmd {
	return tea.Tick(fadeInterval, func(time.Time) tea.Msg { return fadeMsg{} })
}
