package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/letstodo/internal/model"
	"github.com/sadopc/letstodo/internal/state"
	"github.com/sadopc/letstodo/internal/tasks"
)

var (
	filterOrder = []state.Filter{state.FilterAll, state.FilterPending, state.FilterCompleted}
	sortOrder   = []state.SortKey{state.SortCreated, state.SortUpdated, state.SortTitle}
)

var filterLabels = map[state.Filter]string{
	state.FilterAll:       "All",
	state.FilterPending:   "Open",
	state.FilterCompleted: "Done",
}

type taskListScreen struct {
	ctx    context.Context
	d      *Deps
	width  int
	height int

	st      state.State
	visible []model.Task
	cursor  int
	offset  int

	searching bool
	search    textinput.Model
}

func newTaskListScreen(ctx context.Context, d *Deps) *taskListScreen {
	ti := textinput.New()
	ti.Placeholder = "search title or description"
	ti.Prompt = "/ "
	ti.CharLimit = 120
	return &taskListScreen{ctx: ctx, d: d, search: ti}
}

func (l *taskListScreen) setSize(w, h int) {
	l.width = w
	l.height = h
	l.search.Width = max(w-12, 10)
}

func (l *taskListScreen) activate(st state.State) tea.Cmd {
	l.refresh(st)
	l.search.SetValue(st.Search)
	svc := l.d.Tasks
	return run(l.ctx, "load", func(ctx context.Context) error {
		_, err := svc.Load(ctx, false)
		return err
	})
}

func (l *taskListScreen) deactivate() {
	l.searching = false
	l.search.Blur()
}

func (l *taskListScreen) capturing() bool { return l.searching }

func (l *taskListScreen) help() viewKeys {
	if l.searching {
		return viewKeys{short: []key.Binding{keys.Enter, keys.Back}}
	}
	return helpFor(keys.New, keys.Toggle, keys.Edit, keys.Delete, keys.Filter, keys.Sort, keys.Search)
}

// rowsPerPage leaves room for the tabs, the search line and the panel frame.
func (l *taskListScreen) rowsPerPage() int {
	return max(l.height-10, 3)
}

func (l *taskListScreen) refresh(st state.State) {
	var selected int64
	if l.cursor < len(l.visible) {
		selected = l.visible[l.cursor].ID
	}
	l.st = st
	l.visible = tasks.View(st)

	l.cursor = min(l.cursor, max(len(l.visible)-1, 0))
	for i, t := range l.visible {
		if t.ID == selected {
			l.cursor = i
			break
		}
	}
	l.clampOffset()
}

func (l *taskListScreen) clampOffset() {
	page := l.rowsPerPage()
	if l.cursor < l.offset {
		l.offset = l.cursor
	}
	if l.cursor >= l.offset+page {
		l.offset = l.cursor - page + 1
	}
	l.offset = max(min(l.offset, len(l.visible)-page), 0)
}

func (l *taskListScreen) selected() (model.Task, bool) {
	if l.cursor < 0 || l.cursor >= len(l.visible) {
		return model.Task{}, false
	}
	return l.visible[l.cursor], true
}

func (l *taskListScreen) update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case stateChangedMsg:
		l.refresh(msg.change.New)
		return nil

	case resultMsg:
		if msg.op != "load" {
			reportLocal(l.d.State, msg.err)
		}
		return nil

	case tea.KeyMsg:
		if l.searching {
			return l.updateSearch(msg)
		}
		return l.updateList(msg)
	}

	if l.searching {
		var cmd tea.Cmd
		l.search, cmd = l.search.Update(msg)
		return cmd
	}
	return nil
}

func (l *taskListScreen) updateSearch(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "enter":
		l.searching = false
		l.search.Blur()
		return nil
	case "esc":
		l.searching = false
		l.search.Blur()
		l.search.SetValue("")
		l.d.State.Set(func(st *state.State) { st.Search = "" })
		return nil
	}
	var cmd tea.Cmd
	l.search, cmd = l.search.Update(msg)
	term := l.search.Value()
	l.d.State.Set(func(st *state.State) { st.Search = term })
	return cmd
}

func (l *taskListScreen) updateList(msg tea.KeyMsg) tea.Cmd {
	svc := l.d.Tasks
	switch {
	case key.Matches(msg, keys.Up):
		if l.cursor > 0 {
			l.cursor--
			l.clampOffset()
		}
	case key.Matches(msg, keys.Down):
		if l.cursor < len(l.visible)-1 {
			l.cursor++
			l.clampOffset()
		}
	case key.Matches(msg, keys.Search):
		l.searching = true
		return l.search.Focus()
	case key.Matches(msg, keys.Filter), key.Matches(msg, keys.Right):
		l.d.State.Set(func(st *state.State) { st.Filter = cycle(filterOrder, st.Filter, 1) })
	case key.Matches(msg, keys.Left):
		l.d.State.Set(func(st *state.State) { st.Filter = cycle(filterOrder, st.Filter, -1) })
	case key.Matches(msg, keys.Sort):
		l.d.State.Set(func(st *state.State) { st.SortKey = cycle(sortOrder, st.SortKey, 1) })
	case key.Matches(msg, keys.SortDir):
		l.d.State.Set(func(st *state.State) {
			if st.SortDir == state.SortAsc {
				st.SortDir = state.SortDesc
			} else {
				st.SortDir = state.SortAsc
			}
		})
	case key.Matches(msg, keys.Refresh):
		return run(l.ctx, "load", func(ctx context.Context) error {
			_, err := svc.Load(ctx, true)
			return err
		})
	case key.Matches(msg, keys.New):
		l.d.State.Navigate(state.ViewTaskForm, func(st *state.State) { st.CurrentTask = nil })
	}

	t, ok := l.selected()
	if !ok {
		return nil
	}
	switch {
	case key.Matches(msg, keys.Toggle):
		return run(l.ctx, "toggle", func(ctx context.Context) error {
			_, err := svc.Toggle(ctx, t.ID)
			return err
		})
	case key.Matches(msg, keys.Delete):
		return run(l.ctx, "delete", func(ctx context.Context) error {
			return svc.Delete(ctx, t.ID)
		})
	case key.Matches(msg, keys.Edit):
		return l.open(t, state.ViewTaskForm)
	case key.Matches(msg, keys.Enter):
		return l.open(t, state.ViewTaskDetail)
	}
	return nil
}

func (l *taskListScreen) open(t model.Task, view state.View) tea.Cmd {
	if t.Pending && !t.Persisted() {
		reportLocal(l.d.State, tasks.ErrUnsaved)
		return nil
	}
	if err := l.d.Tasks.SetCurrent(t.ID); err != nil {
		reportLocal(l.d.State, err)
		return nil
	}
	l.d.State.Navigate(view, nil)
	return nil
}

// cycle returns the element after cur in list, wrapping around.
func cycle[T comparable](list []T, cur T, step int) T {
	for i, v := range list {
		if v == cur {
			return list[(i+step+len(list))%len(list)]
		}
	}
	return list[0]
}

func (l *taskListScreen) view() string {
	w := l.width - 4

	var tabs []string
	for _, f := range filterOrder {
		label := fmt.Sprintf("%s (%d)", filterLabels[f], len(tasks.Filter(l.st.Tasks, f)))
		if f == l.st.Filter {
			tabs = append(tabs, activeTabStyle.Render(label))
		} else {
			tabs = append(tabs, inactiveTabStyle.Render(label))
		}
	}
	arrow := "↓"
	if l.st.SortDir == state.SortAsc {
		arrow = "↑"
	}
	sortLabel := mutedStyle.Render(fmt.Sprintf("sort: %s %s", l.st.SortKey, arrow))
	tabRow := lipgloss.JoinHorizontal(lipgloss.Bottom, append(tabs, "  ", sortLabel)...)

	var searchLine string
	switch {
	case l.searching:
		searchLine = l.search.View()
	case l.st.Search != "":
		searchLine = mutedStyle.Render(fmt.Sprintf("/ %s  (%d matches)", l.st.Search, len(l.visible)))
	}

	rows := []string{tabRow}
	if searchLine != "" {
		rows = append(rows, searchLine)
	}
	rows = append(rows, "")

	switch {
	case len(l.visible) == 0 && l.st.Loading:
		rows = append(rows, mutedStyle.Render("  Loading tasks..."))
	case len(l.visible) == 0 && l.st.Error != "":
		rows = append(rows, errorStyle.Render("  "+l.st.Error), mutedStyle.Render("  Press r to retry"))
	case len(l.visible) == 0 && len(l.st.Tasks) > 0:
		rows = append(rows, mutedStyle.Render("  Nothing matches"))
	case len(l.visible) == 0:
		rows = append(rows, mutedStyle.Render("  No tasks yet. Press n to add one."))
	default:
		end := min(l.offset+l.rowsPerPage(), len(l.visible))
		for i := l.offset; i < end; i++ {
			rows = append(rows, l.renderRow(l.visible[i], i == l.cursor, w-4))
		}
		if len(l.visible) > end-l.offset {
			rows = append(rows, mutedStyle.Render(fmt.Sprintf("  %d-%d of %d", l.offset+1, end, len(l.visible))))
		}
	}

	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}

func (l *taskListScreen) renderRow(t model.Task, selected bool, w int) string {
	cursor := "  "
	if selected {
		cursor = "> "
	}
	check := "[ ]"
	if t.Completed {
		check = "[x]"
	}
	age := ago(t.UpdatedAt)
	marker := ""
	if t.Pending {
		marker = " saving…"
	}
	titleWidth := max(w-len(cursor)-len(check)-lipgloss.Width(age)-lipgloss.Width(marker)-4, 8)
	title := fmt.Sprintf("%-*s", titleWidth, truncate(t.Title, titleWidth))

	style := normalItemStyle
	switch {
	case selected:
		style = selectedItemStyle
	case t.Completed:
		style = doneStyle
	}
	line := cursor + check + " " + style.Render(title)
	if marker != "" {
		line += pendingStyle.Render(marker)
	}
	return line + "  " + mutedStyle.Render(age)
}
