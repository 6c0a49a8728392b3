package tui

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"github.com/sadopc/letstodo/internal/api"
	"github.com/sadopc/letstodo/internal/config"
	"github.com/sadopc/letstodo/internal/session"
	"github.com/sadopc/letstodo/internal/state"
	"github.com/sadopc/letstodo/internal/store"
	"github.com/sadopc/letstodo/internal/tasks"
)

// Deps are the services the views work with.
type Deps struct {
	State    *state.Store
	Tasks    *tasks.Service
	Session  *session.Tracker
	Local    *store.Store
	Settings config.Settings
	Logger   *slog.Logger
}

// --- Messages ---

// stateChangedMsg carries one or more coalesced store changes onto the
// event loop.
type stateChangedMsg struct {
	change state.Change
}

// resultMsg reports the outcome of an asynchronous operation.
type resultMsg struct {
	op  string
	err error
}

type tickMsg time.Time

type fadeMsg struct{}

// backMsg asks the router for the escape target of the current view.
type backMsg struct{}

func back() tea.Msg { return backMsg{} }

// --- Helpers ---

// run executes fn off the event loop and reports its result as a resultMsg.
func run(ctx context.Context, op string, fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		return resultMsg{op: op, err: fn(ctx)}
	}
}

func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n == 1 {
		return "…"
	}
	return string(r[:n-1]) + "…"
}

func ago(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.Time(t)
}

// inlineError returns the text of an error the user can fix in place, or ""
// for errors that already produced a notification or came from the network.
func inlineError(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, session.ErrValidation), errors.Is(err, tasks.ErrValidation):
		if _, detail, ok := strings.Cut(err.Error(), ": "); ok {
			return detail
		}
		return err.Error()
	case errors.Is(err, tasks.ErrNotFound):
		return "That task no longer exists."
	case errors.Is(err, tasks.ErrUnsaved):
		return "This task is still being saved."
	}
	return ""
}

// authError is the text shown for a failed sign in or registration.
func authError(err error) string {
	if msg := inlineError(err); msg != "" {
		return msg
	}
	if api.IsUnauthorized(err) {
		return "Invalid email or password."
	}
	return api.UserMessage(err)
}

// reportLocal notifies about a task operation the service rejected without
// sending a request. Network failures were already reported by the service.
func reportLocal(s *state.Store, err error) {
	if msg := inlineError(err); msg != "" {
		s.Notify(state.KindWarning, msg)
	}
}
