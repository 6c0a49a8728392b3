// Package cli wires the configuration, local store, API client and services
// together and exposes them as Cobra commands. Running without a subcommand
// starts the terminal UI.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sadopc/letstodo/internal/api"
	"github.com/sadopc/letstodo/internal/config"
	"github.com/sadopc/letstodo/internal/logging"
	"github.com/sadopc/letstodo/internal/session"
	"github.com/sadopc/letstodo/internal/state"
	"github.com/sadopc/letstodo/internal/store"
	"github.com/sadopc/letstodo/internal/tasks"
	"github.com/sadopc/letstodo/internal/tui"
)

// ErrNoSession is returned by task commands run without a session.
var ErrNoSession = errors.New("not signed in: run `letstodo login EMAIL` or `letstodo guest` first")

// App holds the global flag values.
type App struct {
	ConfigPath string
	APIBase    string
	Env        string
	LogLevel   string
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", userMessage(err))
		return 1
	}
	return 0
}

func NewRootCmd() *cobra.Command {
	app := &App{}

	cmd := &cobra.Command{
		Use:           "letstodo",
		Short:         "Terminal client for the lets-todo API",
		SilenceUsage:  true,
		SilenceErrors: true,
		Example: strings.TrimSpace(`
  # Start the interactive TUI
  letstodo

  # Scriptable commands
  letstodo guest
  letstodo add "Buy milk" -d "two litres"
  letstodo list --filter pending
`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// No subcommand => interactive TUI.
			return runTUI(cmd.Context(), app)
		},
	}

	cmd.PersistentFlags().StringVar(&app.ConfigPath, "config", "", "Path to config.toml (default ~/.config/letstodo/config.toml)")
	cmd.PersistentFlags().StringVar(&app.APIBase, "api", "", "API base URL (overrides "+config.EnvAPI+")")
	cmd.PersistentFlags().StringVar(&app.Env, "env", "", "Environment: development, feature, staging or production")
	cmd.PersistentFlags().StringVar(&app.LogLevel, "log-level", "", "Log level: debug, info, warn or error")

	cmd.AddCommand(newListCmd(app))
	cmd.AddCommand(newAddCmd(app))
	cmd.AddCommand(newShowCmd(app))
	cmd.AddCommand(newEditCmd(app))
	cmd.AddCommand(newToggleCmd(app))
	cmd.AddCommand(newRmCmd(app))
	cmd.AddCommand(newLoginCmd(app))
	cmd.AddCommand(newRegisterCmd(app))
	cmd.AddCommand(newGuestCmd(app))
	cmd.AddCommand(newLogoutCmd(app))
	cmd.AddCommand(newWhoamiCmd(app))
	cmd.AddCommand(newExportCmd(app))
	cmd.AddCommand(newImportCmd(app))

	return cmd
}

// env is one fully wired set of services.
type env struct {
	settings config.Settings
	logger   *slog.Logger
	local    *store.Store
	client   *api.Client
	state    *state.Store
	tracker  *session.Tracker
	tasks    *tasks.Service

	closers []io.Closer
}

func (e *env) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i].Close()
	}
}

func (app *App) settings() (config.Settings, error) {
	path := app.ConfigPath
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return config.Settings{}, fmt.Errorf("locate config: %w", err)
		}
		path = p
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Settings{}, err
	}
	return config.Resolve(cfg, os.Getenv, config.Overrides{
		APIBase:  app.APIBase,
		Env:      app.Env,
		LogLevel: app.LogLevel,
	})
}

// open builds the services. The caller must Close the result.
func (app *App) open() (*env, error) {
	s, err := app.settings()
	if err != nil {
		return nil, err
	}
	e := &env{settings: s}

	logPath := s.LogFile
	if logPath == "" {
		if p, err := config.DefaultLogPath(); err == nil {
			logPath = p
		}
	}
	e.logger = logging.Discard()
	if logPath != "" {
		f, err := logging.OpenFile(logPath)
		if err != nil {
			return nil, err
		}
		e.closers = append(e.closers, f)
		e.logger = logging.NewLogger(logging.Options{Level: s.LogLevel, Writer: f, Component: "letstodo"})
		e.settings.LogFile = logPath
	}

	dbPath, err := store.DefaultDBPath()
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("locate database: %w", err)
	}
	local, err := store.New(dbPath)
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("open database: %w", err)
	}
	e.local = local
	e.closers = append(e.closers, local)

	jar, err := store.NewJar(local, s.APIBase, store.WithJarLogger(e.logger.With("component", "cookies")))
	if err != nil {
		e.Close()
		return nil, err
	}

	e.client = api.New(s.APIBase,
		api.WithHTTPClient(&http.Client{Timeout: s.Timeout, Jar: jar}),
		api.WithLogger(e.logger.With("component", "api")),
	)
	e.state = state.New(state.WithLogger(e.logger.With("component", "state")))
	e.tracker = session.New(e.state, e.client, session.WithLogger(e.logger.With("component", "session")))
	e.client.OnUnauthorized(e.tracker.Reset)

	rollback := tasks.RollbackReload
	if s.Rollback == "snapshot" {
		rollback = tasks.RollbackSnapshot
	}
	e.tasks = tasks.New(e.state, e.client,
		tasks.WithLogger(e.logger.With("component", "tasks")),
		tasks.WithRollback(rollback),
	)

	e.logger.Info("started", "api", s.APIBase, "env", s.Env)
	return e, nil
}

// authed validates the stored session and loads its tasks.
func (e *env) authed(ctx context.Context) error {
	if _, err := e.tracker.Refresh(ctx); err != nil {
		e.logger.Debug("session check failed", "err", err)
	}
	if !e.state.Get().Session.Authenticated() {
		return ErrNoSession
	}
	if _, err := e.tasks.Load(ctx, true); err != nil {
		return err
	}
	return nil
}

func runTUI(ctx context.Context, app *App) error {
	e, err := app.open()
	if err != nil {
		return err
	}
	defer e.Close()

	return tui.Run(ctx, tui.Deps{
		State:    e.state,
		Tasks:    e.tasks,
		Session:  e.tracker,
		Local:    e.local,
		Settings: e.settings,
		Logger:   e.logger.With("component", "tui"),
	})
}

// withEnv opens the services for the duration of fn.
func withEnv(app *App, fn func(e *env) error) error {
	e, err := app.open()
	if err != nil {
		return err
	}
	defer e.Close()
	return fn(e)
}
