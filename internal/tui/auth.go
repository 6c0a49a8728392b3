package tui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/letstodo/internal/session"
	"github.com/sadopc/letstodo/internal/state"
)

// authScreen serves both the login and the register view.
type authScreen struct {
	ctx      context.Context
	d        *Deps
	register bool
	width    int
	height   int

	form *huh.Form
	busy bool
	err  string

	// Form field pointers (survive form rebuilds)
	email    *string
	password *string
	confirm  *string
}

func newAuthScreen(ctx context.Context, d *Deps, register bool) *authScreen {
	email, password, confirm := "", "", ""
	return &authScreen{
		ctx:      ctx,
		d:        d,
		register: register,
		email:    &email,
		password: &password,
		confirm:  &confirm,
	}
}

func (a *authScreen) setSize(w, h int) {
	a.width = w
	a.height = h
}

func (a *authScreen) activate(state.State) tea.Cmd {
	*a.password = ""
	*a.confirm = ""
	a.err = ""
	a.busy = false
	return a.buildForm()
}

func (a *authScreen) deactivate() {
	*a.password = ""
	*a.confirm = ""
	a.form = nil
}

func (a *authScreen) capturing() bool { return true }

func (a *authScreen) help() viewKeys {
	return helpFor(keys.Enter, keys.Back)
}

func (a *authScreen) buildForm() tea.Cmd {
	fields := []huh.Field{
		huh.NewInput().
			Title("Email").
			Placeholder("you@example.com").
			Value(a.email).
			Validate(session.ValidateEmail),
	}
	if a.register {
		fields = append(fields,
			huh.NewInput().
				Title("Password").
				Description("At least 6 characters").
				EchoMode(huh.EchoModePassword).
				Value(a.password).
				Validate(session.ValidatePassword),
			huh.NewInput().
				Title("Confirm password").
				EchoMode(huh.EchoModePassword).
				Value(a.confirm).
				Validate(func(s string) error {
					if s != *a.password {
						return errors.New("passwords do not match")
					}
					return nil
				}),
		)
	} else {
		fields = append(fields,
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(a.password).
				Validate(func(s string) error {
					if s == "" {
						return errors.New("password is required")
					}
					return nil
				}),
		)
	}

	a.form = huh.NewForm(huh.NewGroup(fields...)).
		WithShowHelp(true).
		WithShowErrors(true)
	return a.form.Init()
}

func (a *authScreen) update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case resultMsg:
		if msg.op != "auth" {
			return nil
		}
		a.busy = false
		if msg.err != nil {
			a.err = authError(msg.err)
			*a.password = ""
			*a.confirm = ""
			return a.buildForm()
		}
		text := "Welcome back, " + a.d.State.Get().Session.DisplayName()
		if a.register {
			text = "Account created. Welcome!"
		}
		a.d.State.Notify(state.KindSuccess, text)
		a.d.State.Navigate(state.ViewDashboard, func(st *state.State) {
			st.PreviousView = state.ViewMainMenu
		})
		return nil

	case tea.KeyMsg:
		if msg.String() == "esc" {
			return back
		}
	}

	if a.busy || a.form == nil {
		return nil
	}
	form, cmd := a.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		a.form = f
	}
	if a.form.State == huh.StateCompleted {
		return a.submit()
	}
	return cmd
}

func (a *authScreen) submit() tea.Cmd {
	a.busy = true
	a.err = ""
	email, password, confirm := *a.email, *a.password, *a.confirm
	tracker := a.d.Session
	if a.register {
		return run(a.ctx, "auth", func(ctx context.Context) error {
			return tracker.Register(ctx, email, password, confirm)
		})
	}
	return run(a.ctx, "auth", func(ctx context.Context) error {
		return tracker.Login(ctx, email, password)
	})
}

func (a *authScreen) view() string {
	w := a.width - 4

	name := "Sign in"
	other := "No account yet? Press esc and choose Create account."
	if a.register {
		name = "Create account"
		other = "Guest tasks are not carried over to the new account."
	}

	rows := []string{titleStyle.Render(name)}
	if a.err != "" {
		rows = append(rows, errorStyle.Render(a.err), "")
	}
	switch {
	case a.busy:
		rows = append(rows, mutedStyle.Render("Contacting server..."))
	case a.form != nil:
		rows = append(rows, a.form.View())
	}
	rows = append(rows, "", mutedStyle.Render(other))

	return activePanelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}
