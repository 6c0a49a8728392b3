package tui

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/letstodo/internal/api"
	"github.com/sadopc/letstodo/internal/logging"
	"github.com/sadopc/letstodo/internal/model"
	"github.com/sadopc/letstodo/internal/session"
	"github.com/sadopc/letstodo/internal/state"
)

const maxToasts = 3

var viewTitles = map[state.View]string{
	state.ViewMainMenu:   "Menu",
	state.ViewLogin:      "Sign in",
	state.ViewRegister:   "Register",
	state.ViewDashboard:  "Dashboard",
	state.ViewTaskList:   "Tasks",
	state.ViewTaskForm:   "Edit task",
	state.ViewTaskDetail: "Task",
	state.ViewTrash:      "Trash",
	state.ViewSettings:   "Settings",
}

var tabViews = []state.View{state.ViewDashboard, state.ViewTaskList, state.ViewTrash, state.ViewSettings}

// App is the root Bubble Tea model.
type App struct {
	deps   *Deps
	ctx    context.Context
	cancel context.CancelFunc
	bridge *bridge
	router *router

	width  int
	height int
	st     state.State

	showHelp bool
	help     help.Model
	spinner  spinner.Model
}

func NewApp(ctx context.Context, d Deps) App {
	if d.Logger == nil {
		d.Logger = logging.Discard()
	}
	setupColor()

	ctx, cancel := context.WithCancel(ctx)
	deps := &d

	d.State.SetSilent(func(st *state.State) { loadPrefs(d.Local, d.Settings.Theme, st) })
	applyTheme(d.State.Get().Theme)

	screens := map[state.View]screen{
		state.ViewMainMenu:   newMainMenuScreen(ctx, deps),
		state.ViewLogin:      newAuthScreen(ctx, deps, false),
		state.ViewRegister:   newAuthScreen(ctx, deps, true),
		state.ViewDashboard:  newDashboardScreen(ctx, deps),
		state.ViewTaskList:   newTaskListScreen(ctx, deps),
		state.ViewTaskForm:   newTaskFormScreen(ctx, deps),
		state.ViewTaskDetail: newTaskDetailScreen(ctx, deps),
		state.ViewTrash:      newTrashScreen(ctx, deps),
		state.ViewSettings:   newSettingsScreen(ctx, deps),
	}

	h := help.New()
	h.ShowAll = false
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return App{
		deps:    deps,
		ctx:     ctx,
		cancel:  cancel,
		bridge:  newBridge(d.State),
		router:  newRouter(d.State, d.Logger.With("component", "router"), screens),
		st:      d.State.Get(),
		help:    h,
		spinner: sp,
	}
}

// Close stops the state bridge and cancels outstanding requests.
func (a App) Close() {
	a.cancel()
	a.bridge.close()
}

// Run starts the terminal UI and blocks until it exits.
func Run(ctx context.Context, d Deps) error {
	app := NewApp(ctx, d)
	defer app.Close()
	_, err := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}

func (a App) Init() tea.Cmd {
	return tea.Batch(
		a.bridge.wait(),
		a.router.start(),
		a.validateSession(),
		a.spinner.Tick,
		tickCmd(),
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (a App) validateSession() tea.Cmd {
	return run(a.ctx, "validate", func(ctx context.Context) error {
		_, err := a.deps.Session.Refresh(ctx)
		return err
	})
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.help.Width = msg.Width
		contentHeight := a.height - 4 // header + footer
		a.router.setSize(a.width, contentHeight)
		return a, nil

	case stateChangedMsg:
		a.st = msg.change.New
		if msg.change.Has(state.KeyTheme) {
			applyTheme(a.st.Theme)
		}
		savePrefs(a.deps.Local, a.deps.Logger, msg.change)
		cmds := []tea.Cmd{a.bridge.wait(), a.router.handle(msg.change)}
		cmds = append(cmds, a.router.current().update(msg))
		return a, tea.Batch(cmds...)

	case fadeMsg:
		return a, a.router.stepFade()

	case tickMsg:
		a.deps.State.ExpireNotifications(time.Time(msg))
		return a, tea.Batch(tickCmd(), a.router.current().update(msg))

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case backMsg:
		a.router.escape()
		return a, nil

	case resultMsg:
		switch msg.op {
		case "validate":
			return a, a.afterValidate(msg.err)
		case "signout":
			// The screen that asked may already be gone.
			if msg.err != nil {
				a.deps.State.Notify(state.KindError, "Could not sign out: "+api.UserMessage(msg.err))
			} else {
				a.deps.State.Notify(state.KindInfo, "Signed out")
			}
		}

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return a, a.quit()
		}
		if a.router.current().capturing() {
			break
		}
		switch {
		case key.Matches(msg, keys.Quit):
			return a, a.quit()
		case key.Matches(msg, keys.Help):
			a.showHelp = !a.showHelp
			a.help.ShowAll = a.showHelp
			return a, nil
		case key.Matches(msg, keys.Back):
			a.router.escape()
			return a, nil
		}
	}

	return a, a.router.current().update(msg)
}

// afterValidate opens the dashboard when the stored cookies still carry a
// session.
func (a App) afterValidate(err error) tea.Cmd {
	if err != nil {
		a.deps.Logger.Debug("startup validation failed", "err", err)
	}
	switch a.deps.Session.State() {
	case session.User, session.Guest:
		if a.deps.State.Get().CurrentView == state.ViewMainMenu {
			a.deps.State.Navigate(state.ViewDashboard, nil)
		}
	}
	return nil
}

func (a App) quit() tea.Cmd {
	a.cancel()
	return tea.Quit
}

func (a App) View() string {
	if a.width == 0 {
		return "Loading..."
	}

	header := a.renderHeader()
	footer := a.renderFooter()
	content := a.router.view()

	headerHeight := lipgloss.Height(header)
	footerHeight := lipgloss.Height(footer)
	contentHeight := max(a.height-headerHeight-footerHeight, 1)

	content = lipgloss.NewStyle().
		Width(a.width).
		Height(contentHeight).
		MaxHeight(contentHeight).
		Render(content)

	return lipgloss.JoinVertical(lipgloss.Left, header, content, footer)
}

func (a App) renderHeader() string {
	title := lipgloss.NewStyle().Bold(true).Foreground(colors.primary).Render("letstodo")
	env := mutedStyle.Render(" " + string(a.deps.Settings.Env))
	if a.st.Loading {
		env += " " + a.spinner.View()
	}

	var tabs []string
	if a.st.Session.Authenticated() {
		for _, v := range tabViews {
			if v == a.st.CurrentView {
				tabs = append(tabs, activeTabStyle.Render(viewTitles[v]))
			} else {
				tabs = append(tabs, inactiveTabStyle.Render(viewTitles[v]))
			}
		}
	}
	if !containsView(tabViews, a.st.CurrentView) || len(tabs) == 0 {
		tabs = append(tabs, activeTabStyle.Render(viewTitles[a.st.CurrentView]))
	}
	tabRow := lipgloss.JoinHorizontal(lipgloss.Bottom, tabs...)

	who := mutedStyle.Render(sessionLabel(a.st.Session))
	left := title + env
	gap := max(a.width-lipgloss.Width(left)-lipgloss.Width(tabRow)-lipgloss.Width(who)-6, 1)
	spacer := lipgloss.NewStyle().Width(gap).Render("")

	return headerStyle.Render(
		lipgloss.JoinHorizontal(lipgloss.Bottom, left, spacer, tabRow, "  ", who),
	)
}

func (a App) renderFooter() string {
	helpView := footerStyle.Render(a.help.View(a.router.current().help()))

	var toasts []string
	list := a.st.Notifications
	if len(list) > maxToasts {
		list = list[len(list)-maxToasts:]
	}
	for _, n := range list {
		toasts = append(toasts, notificationStyle(n.Kind).Render(toastIcon(n.Kind)+" "+n.Message))
	}
	if len(toasts) == 0 {
		return helpView
	}
	stack := lipgloss.NewStyle().
		Width(a.width - 2).
		Align(lipgloss.Right).
		Render(strings.Join(toasts, "\n"))
	return lipgloss.JoinVertical(lipgloss.Left, stack, helpView)
}

func toastIcon(kind state.NotificationKind) string {
	switch kind {
	case state.KindSuccess:
		return "✓"
	case state.KindWarning:
		return "!"
	case state.KindError:
		return "✗"
	}
	return "•"
}

func sessionLabel(s model.Session) string {
	switch s.Kind {
	case model.KindUser:
		return s.Email
	case model.KindGuest:
		return "guest"
	}
	return "signed out"
}

func containsView(list []state.View, v state.View) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

// ============================================================
// State bridge
// ============================================================

// bridge moves store changes onto the Bubble Tea event loop. The store
// subscriber never blocks: changes arriving while the loop is busy are
// merged into one pending change, keeping the oldest Old and newest New.
type bridge struct {
	mu          sync.Mutex
	pending     *state.Change
	signal      chan struct{}
	done        chan struct{}
	closeOnce   sync.Once
	unsubscribe func()
}

func newBridge(s *state.Store) *bridge {
	b := &bridge{
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	b.unsubscribe = s.Subscribe(b.push)
	return b
}

func (b *bridge) push(c state.Change) {
	b.mu.Lock()
	if b.pending == nil {
		b.pending = &c
	} else {
		for _, k := range c.Keys {
			if !b.pending.Has(k) {
				b.pending.Keys = append(b.pending.Keys, k)
			}
		}
		b.pending.New = c.New
	}
	b.mu.Unlock()

	select {
	case b.signal <- struct{}{}:
	default:
	}
}

func (b *bridge) take() *state.Change {
	b.mu.Lock()
	defer b.mu.Unlock()
	c := b.pending
	b.pending = nil
	return c
}

// wait blocks until a change is pending and returns it as a stateChangedMsg.
func (b *bridge) wait() tea.Cmd {
	return func() tea.Msg {
		for {
			select {
			case <-b.done:
				return nil
			case <-b.signal:
				if c := b.take(); c != nil {
					return stateChangedMsg{change: *c}
				}
			}
		}
	}
}

func (b *bridge) close() {
	b.closeOnce.Do(func() {
		b.unsubscribe()
		close(b.done)
	})
}
