package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sadopc/letstodo/internal/api"
	"github.com/sadopc/letstodo/internal/model"
)

// EnvPassword supplies the password for login and register without a prompt.
const EnvPassword = "LETSTODO_PASSWORD"

var errBadCredentials = errors.New("invalid email or password")

// readPassword takes the password from $LETSTODO_PASSWORD, a hidden prompt on
// a terminal, or the first line of stdin.
func readPassword(cmd *cobra.Command, prompt string) (string, error) {
	if pw := os.Getenv(EnvPassword); pw != "" {
		return pw, nil
	}
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), prompt)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func newLoginCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "login EMAIL",
		Short: "Sign in with an account",
		Long:  "Sign in with an account. The password is read from $" + EnvPassword + ", a prompt, or stdin.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readPassword(cmd, "Password: ")
			if err != nil {
				return err
			}
			return withEnv(app, func(e *env) error {
				if err := e.tracker.Login(cmd.Context(), args[0], password); err != nil {
					if api.IsUnauthorized(err) {
						return errBadCredentials
					}
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", e.tracker.Session().DisplayName())
				return nil
			})
		},
	}
}

func newRegisterCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "register EMAIL",
		Short: "Create an account and sign in",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readPassword(cmd, "Choose a password: ")
			if err != nil {
				return err
			}
			return withEnv(app, func(e *env) error {
				// The password was typed once; confirmation is implied.
				if err := e.tracker.Register(cmd.Context(), args[0], password, password); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Registered %s\n", e.tracker.Session().Email)
				return nil
			})
		},
	}
}

func newGuestCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "guest",
		Short: "Start an anonymous guest session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(app, func(e *env) error {
				if err := e.tracker.StartGuest(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Guest session started")
				return nil
			})
		},
	}
}

func newLogoutCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "logout",
		Aliases: []string{"signout"},
		Short:   "End the current session",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(app, func(e *env) error {
				if _, err := e.tracker.Refresh(cmd.Context()); err != nil {
					e.logger.Debug("session check failed", "err", err)
				}
				if !e.tracker.Session().Authenticated() {
					fmt.Fprintln(cmd.OutOrStdout(), "Not signed in")
					return nil
				}
				if err := e.tracker.SignOut(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
				return nil
			})
		},
	}
}

func newWhoamiCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the current session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(app, func(e *env) error {
				if _, err := e.tracker.Refresh(cmd.Context()); err != nil {
					e.logger.Debug("session check failed", "err", err)
				}
				out := cmd.OutOrStdout()
				sess := e.tracker.Session()
				switch sess.Kind {
				case model.KindUser:
					fmt.Fprintf(out, "user %s\n", sess.Email)
				case model.KindGuest:
					fmt.Fprintf(out, "guest %s\n", sess.GuestID)
				default:
					fmt.Fprintln(out, "not signed in")
				}
				fmt.Fprintf(out, "api  %s (%s)\n", e.settings.APIBase, e.settings.Env)
				return nil
			})
		},
	}
}
