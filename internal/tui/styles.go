package tui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/sadopc/letstodo/internal/state"
)

type palette struct {
	primary   lipgloss.Color
	secondary lipgloss.Color
	accent    lipgloss.Color
	muted     lipgloss.Color
	success   lipgloss.Color
	warning   lipgloss.Color
	error     lipgloss.Color
	fg        lipgloss.Color
	subtle    lipgloss.Color
	highlight lipgloss.Color
}

var darkPalette = palette{
	primary:   lipgloss.Color("#6C63FF"),
	secondary: lipgloss.Color("#2EC4B6"),
	accent:    lipgloss.Color("#FF6B6B"),
	muted:     lipgloss.Color("#666666"),
	success:   lipgloss.Color("#2ECC71"),
	warning:   lipgloss.Color("#F39C12"),
	error:     lipgloss.Color("#E74C3C"),
	fg:        lipgloss.Color("#C0CAF5"),
	subtle:    lipgloss.Color("#414868"),
	highlight: lipgloss.Color("#7AA2F7"),
}

var lightPalette = palette{
	primary:   lipgloss.Color("#4B44CC"),
	secondary: lipgloss.Color("#1A8C82"),
	accent:    lipgloss.Color("#D64545"),
	muted:     lipgloss.Color("#8A8A8A"),
	success:   lipgloss.Color("#1E8E4E"),
	warning:   lipgloss.Color("#B86E00"),
	error:     lipgloss.Color("#C0392B"),
	fg:        lipgloss.Color("#24283B"),
	subtle:    lipgloss.Color("#C8CBD9"),
	highlight: lipgloss.Color("#2E59C7"),
}

var (
	colors palette

	activeTabStyle    lipgloss.Style
	inactiveTabStyle  lipgloss.Style
	panelStyle        lipgloss.Style
	activePanelStyle  lipgloss.Style
	titleStyle        lipgloss.Style
	subtitleStyle     lipgloss.Style
	successStyle      lipgloss.Style
	warningStyle      lipgloss.Style
	errorStyle        lipgloss.Style
	mutedStyle        lipgloss.Style
	highlightStyle    lipgloss.Style
	headerStyle       lipgloss.Style
	footerStyle       lipgloss.Style
	selectedItemStyle lipgloss.Style
	normalItemStyle   lipgloss.Style
	pendingStyle      lipgloss.Style
	doneStyle         lipgloss.Style
)

func init() {
	applyTheme(state.ThemeDark)
}

// setupColor drops to plain ASCII when NO_COLOR is set.
func setupColor() {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}

// applyTheme rebuilds every style from the palette of t. Styles are only read
// from the Bubble Tea event loop, so swapping them there is safe.
func applyTheme(t state.Theme) {
	colors = darkPalette
	if t == state.ThemeLight {
		colors = lightPalette
	}
	lipgloss.SetHasDarkBackground(t != state.ThemeLight)

	activeTabStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(colors.primary).
		Padding(0, 2)

	inactiveTabStyle = lipgloss.NewStyle().
		Foreground(colors.muted).
		Padding(0, 2)

	panelStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colors.subtle).
		Padding(1, 2)

	activePanelStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colors.primary).
		Padding(1, 2)

	titleStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(colors.primary).
		MarginBottom(1)

	subtitleStyle = lipgloss.NewStyle().
		Foreground(colors.secondary).
		Bold(true)

	successStyle = lipgloss.NewStyle().Foreground(colors.success)
	warningStyle = lipgloss.NewStyle().Foreground(colors.warning)
	errorStyle = lipgloss.NewStyle().Foreground(colors.error)
	mutedStyle = lipgloss.NewStyle().Foreground(colors.muted)
	highlightStyle = lipgloss.NewStyle().Foreground(colors.highlight).Bold(true)

	headerStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(colors.fg).
		Padding(0, 1)

	footerStyle = lipgloss.NewStyle().
		Foreground(colors.muted).
		Padding(0, 1)

	selectedItemStyle = lipgloss.NewStyle().
		Foreground(colors.primary).
		Bold(true)

	normalItemStyle = lipgloss.NewStyle().
		Foreground(colors.fg)

	pendingStyle = lipgloss.NewStyle().Foreground(colors.warning).Italic(true)
	doneStyle = lipgloss.NewStyle().Foreground(colors.muted).Strikethrough(true)
}

func notificationStyle(kind state.NotificationKind) lipgloss.Style {
	switch kind {
	case state.KindSuccess:
		return successStyle
	case state.KindWarning:
		return warningStyle
	case state.KindError:
		return errorStyle
	}
	return highlightStyle
}
