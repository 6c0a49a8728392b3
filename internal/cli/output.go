package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/muesli/reflow/wordwrap"
	"golang.org/x/term"

	"github.com/sadopc/letstodo/internal/api"
	"github.com/sadopc/letstodo/internal/model"
	"github.com/sadopc/letstodo/internal/session"
	"github.com/sadopc/letstodo/internal/tasks"
)

const defaultWrap = 80

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	doneStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")).Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
)

// isTTY reports whether w is an interactive terminal.
func isTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// termWidth is the width of w, or defaultWrap when it is not a terminal.
func termWidth(w io.Writer) int {
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		if width, _, err := term.GetSize(int(f.Fd())); err == nil && width > 0 {
			return width
		}
	}
	return defaultWrap
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(strings.TrimPrefix(arg, "#")), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid task id %q", arg)
	}
	return id, nil
}

func status(t model.Task) string {
	if t.Completed {
		return "done"
	}
	return "open"
}

func dateOf(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

// writeTasks prints list as a table on a terminal and as tab separated lines
// otherwise, so scripts can cut and grep it.
func writeTasks(w io.Writer, list []model.Task) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No tasks.")
		return
	}
	if !isTTY(w) {
		for _, t := range list {
			fmt.Fprintf(w, "%d\t%s\t%s\n", t.ID, status(t), t.Title)
		}
		return
	}

	rows := make([][]string, 0, len(list))
	for _, t := range list {
		rows = append(rows, []string{strconv.FormatInt(t.ID, 10), status(t), t.Title, dateOf(t.UpdatedAt)})
	}
	tbl := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers("ID", "STATUS", "TITLE", "UPDATED").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col == 1 && row >= 0 && row < len(list) && list[row].Completed:
				return doneStyle
			}
			return cellStyle
		})
	fmt.Fprintln(w, tbl.Render())
}

// writeTask prints one task with its description wrapped to the terminal.
func writeTask(w io.Writer, t model.Task) {
	fmt.Fprintf(w, "#%d %s\n", t.ID, t.Title)
	fmt.Fprintf(w, "status:  %s\n", status(t))
	fmt.Fprintf(w, "created: %s\n", dateOf(t.CreatedAt))
	fmt.Fprintf(w, "updated: %s\n", dateOf(t.UpdatedAt))
	if strings.TrimSpace(t.Description) != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, wordwrap.String(t.Description, min(termWidth(w), defaultWrap)))
	}
}

// userMessage is the one-line text printed for a failed command.
func userMessage(err error) string {
	switch {
	case errors.Is(err, session.ErrValidation), errors.Is(err, tasks.ErrValidation):
		if _, detail, ok := strings.Cut(err.Error(), ": "); ok {
			return detail
		}
	case api.IsConflict(err):
		return api.UserMessage(err)
	}
	return err.Error()
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
