package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	New      key.Binding
	Edit     key.Binding
	Delete   key.Binding
	Toggle   key.Binding
	Filter   key.Binding
	Sort     key.Binding
	SortDir  key.Binding
	Search   key.Binding
	Refresh  key.Binding
	Restore  key.Binding
	Empty    key.Binding
	Theme    key.Binding
	Export   key.Binding
	Import   key.Binding
	Logout   key.Binding
	Tasks    key.Binding
	Trash    key.Binding
	Settings key.Binding
	Help     key.Binding
	Enter    key.Binding
	Back     key.Binding
	Up       key.Binding
	Down     key.Binding
	Left     key.Binding
	Right    key.Binding
	Quit     key.Binding
}

var keys = keyMap{
	New: key.NewBinding(
		key.WithKeys("n"),
		key.WithHelp("n", "new"),
	),
	Edit: key.NewBinding(
		key.WithKeys("e"),
		key.WithHelp("e", "edit"),
	),
	Delete: key.NewBinding(
		key.WithKeys("d"),
		key.WithHelp("d", "delete"),
	),
	Toggle: key.NewBinding(
		key.WithKeys(" "),
		key.WithHelp("space", "toggle"),
	),
	Filter: key.NewBinding(
		key.WithKeys("f", "tab"),
		key.WithHelp("f", "filter"),
	),
	Sort: key.NewBinding(
		key.WithKeys("s"),
		key.WithHelp("s", "sort"),
	),
	SortDir: key.NewBinding(
		key.WithKeys("S"),
		key.WithHelp("S", "reverse"),
	),
	Search: key.NewBinding(
		key.WithKeys("/"),
		key.WithHelp("/", "search"),
	),
	Refresh: key.NewBinding(
		key.WithKeys("r", "ctrl+r"),
		key.WithHelp("r", "reload"),
	),
	Restore: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "restore"),
	),
	Empty: key.NewBinding(
		key.WithKeys("E"),
		key.WithHelp("E", "empty trash"),
	),
	Theme: key.NewBinding(
		key.WithKeys("t"),
		key.WithHelp("t", "theme"),
	),
	Export: key.NewBinding(
		key.WithKeys("x"),
		key.WithHelp("x", "export"),
	),
	Import: key.NewBinding(
		key.WithKeys("i"),
		key.WithHelp("i", "import"),
	),
	Logout: key.NewBinding(
		key.WithKeys("L"),
		key.WithHelp("L", "logout"),
	),
	Tasks: key.NewBinding(
		key.WithKeys("1"),
		key.WithHelp("1", "tasks"),
	),
	Trash: key.NewBinding(
		key.WithKeys("2"),
		key.WithHelp("2", "trash"),
	),
	Settings: key.NewBinding(
		key.WithKeys("3"),
		key.WithHelp("3", "settings"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "help"),
	),
	Enter: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "select"),
	),
	Back: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "back"),
	),
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "down"),
	),
	Left: key.NewBinding(
		key.WithKeys("left", "h"),
		key.WithHelp("←/h", "left"),
	),
	Right: key.NewBinding(
		key.WithKeys("right", "l"),
		key.WithHelp("→/l", "right"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// viewKeys adapts the bindings shown in the footer to the active view.
type viewKeys struct {
	short []key.Binding
	full  [][]key.Binding
}

func (k viewKeys) ShortHelp() []key.Binding  { return k.short }
func (k viewKeys) FullHelp() [][]key.Binding { return k.full }

func helpFor(short ...key.Binding) viewKeys {
	return viewKeys{
		short: append(append([]key.Binding{}, short...), keys.Help, keys.Quit),
		full: [][]key.Binding{
			short,
			{keys.Up, keys.Down, keys.Enter, keys.Back},
			{keys.Help, keys.Quit},
		},
	}
}
