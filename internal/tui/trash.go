package tui

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/letstodo/internal/model"
	"github.com/sadopc/letstodo/internal/state"
	"github.com/sadopc/letstodo/internal/tasks"
)

var trashFilterOrder = []tasks.TrashFilter{tasks.TrashAll, tasks.TrashRecent, tasks.TrashOld}

var trashFilterLabels = map[tasks.TrashFilter]string{
	tasks.TrashAll:    "All",
	tasks.TrashRecent: "Last 24h",
	tasks.TrashOld:    "Older than a week",
}

type trashScreen struct {
	ctx    context.Context
	d      *Deps
	width  int
	height int
	now    func() time.Time

	trash   []model.Task
	visible []model.Task
	filter  tasks.TrashFilter
	cursor  int

	confirming bool
	confirm    *huh.Form
	confirmed  *bool
	onConfirm  func()
}

func newTrashScreen(ctx context.Context, d *Deps) *trashScreen {
	yes := false
	return &trashScreen{
		ctx:       ctx,
		d:         d,
		now:       time.Now,
		filter:    tasks.TrashAll,
		confirmed: &yes,
	}
}

func (t *trashScreen) setSize(w, h int) {
	t.width = w
	t.height = h
}

func (t *trashScreen) activate(st state.State) tea.Cmd {
	t.confirming = false
	t.cursor = 0
	t.refresh(st)
	return nil
}

func (t *trashScreen) deactivate() {
	t.confirming = false
	t.confirm = nil
}

func (t *trashScreen) capturing() bool { return t.confirming }

func (t *trashScreen) help() viewKeys {
	return helpFor(keys.Restore, keys.Delete, keys.Empty, keys.Filter)
}

// refresh shows the most recently deleted tasks first.
func (t *trashScreen) refresh(st state.State) {
	t.trash = st.TrashedTasks
	t.visible = tasks.FilterTrash(st.TrashedTasks, t.filter, t.now())
	sort.SliceStable(t.visible, func(i, j int) bool {
		return deletedAt(t.visible[i]).After(deletedAt(t.visible[j]))
	})
	t.cursor = min(t.cursor, max(len(t.visible)-1, 0))
}

func deletedAt(task model.Task) time.Time {
	if task.DeletedAt == nil {
		return time.Time{}
	}
	return *task.DeletedAt
}

func (t *trashScreen) update(msg tea.Msg) tea.Cmd {
	if t.confirming {
		return t.updateConfirm(msg)
	}

	switch msg := msg.(type) {
	case stateChangedMsg:
		if msg.change.Has(state.KeyTrashedTasks) {
			t.refresh(msg.change.New)
		}
		return nil

	case tickMsg:
		// Ages move on even when nothing changes.
		t.refresh(t.d.State.Get())
		return nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Up):
			if t.cursor > 0 {
				t.cursor--
			}
		case key.Matches(msg, keys.Down):
			if t.cursor < len(t.visible)-1 {
				t.cursor++
			}
		case key.Matches(msg, keys.Filter), key.Matches(msg, keys.Right):
			t.filter = cycle(trashFilterOrder, t.filter, 1)
			t.cursor = 0
			t.refresh(t.d.State.Get())
		case key.Matches(msg, keys.Left):
			t.filter = cycle(trashFilterOrder, t.filter, -1)
			t.cursor = 0
			t.refresh(t.d.State.Get())
		case key.Matches(msg, keys.Restore):
			if task, ok := t.selected(); ok {
				reportLocal(t.d.State, t.d.Tasks.Restore(task.ID))
			}
		case key.Matches(msg, keys.Delete):
			if task, ok := t.selected(); ok {
				id := task.ID
				return t.showConfirm(fmt.Sprintf("Delete %q forever?", truncate(task.Title, 40)), func() {
					reportLocal(t.d.State, t.d.Tasks.PermanentlyDelete(id))
				})
			}
		case key.Matches(msg, keys.Empty):
			if len(t.trash) > 0 {
				return t.showConfirm(fmt.Sprintf("Empty the trash (%d tasks)? This cannot be undone.", len(t.trash)), func() {
					t.d.Tasks.EmptyTrash()
				})
			}
		}
	}
	return nil
}

func (t *trashScreen) selected() (model.Task, bool) {
	if t.cursor < 0 || t.cursor >= len(t.visible) {
		return model.Task{}, false
	}
	return t.visible[t.cursor], true
}

func (t *trashScreen) showConfirm(title string, onConfirm func()) tea.Cmd {
	*t.confirmed = false
	t.onConfirm = onConfirm
	t.confirm = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Affirmative("Delete").
				Negative("Cancel").
				Value(t.confirmed),
		),
	).WithShowHelp(false)
	t.confirming = true
	return t.confirm.Init()
}

func (t *trashScreen) updateConfirm(msg tea.Msg) tea.Cmd {
	if msg, ok := msg.(tea.KeyMsg); ok && msg.String() == "esc" {
		t.confirming = false
		t.confirm = nil
		return nil
	}
	if c, ok := msg.(stateChangedMsg); ok {
		t.refresh(c.change.New)
		return nil
	}
	form, cmd := t.confirm.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		t.confirm = f
	}
	if t.confirm.State != huh.StateCompleted {
		return cmd
	}
	t.confirming = false
	t.confirm = nil
	if *t.confirmed && t.onConfirm != nil {
		t.onConfirm()
	}
	t.onConfirm = nil
	return nil
}

func (t *trashScreen) view() string {
	w := t.width - 4

	if t.confirming && t.confirm != nil {
		return activePanelStyle.Width(w).Render(t.confirm.View())
	}

	now := t.now()
	var tabs []string
	for _, f := range trashFilterOrder {
		label := fmt.Sprintf("%s (%d)", trashFilterLabels[f], len(tasks.FilterTrash(t.trash, f, now)))
		if f == t.filter {
			tabs = append(tabs, activeTabStyle.Render(label))
		} else {
			tabs = append(tabs, inactiveTabStyle.Render(label))
		}
	}

	rows := []string{lipgloss.JoinHorizontal(lipgloss.Bottom, tabs...), ""}
	if len(t.visible) == 0 {
		msg := "The trash is empty."
		if len(t.trash) > 0 {
			msg = "Nothing deleted in this period."
		}
		rows = append(rows, mutedStyle.Render("  "+msg))
	}

	page := max(t.height-10, 3)
	start := max(t.cursor-page+1, 0)
	end := min(start+page, len(t.visible))
	for i := start; i < end; i++ {
		task := t.visible[i]
		cursor := "  "
		style := normalItemStyle
		if i == t.cursor {
			cursor = "> "
			style = selectedItemStyle
		}
		age := "deleted " + ago(deletedAt(task))
		titleWidth := max(w-lipgloss.Width(age)-10, 8)
		rows = append(rows, cursor+style.Render(fmt.Sprintf("%-*s", titleWidth, truncate(task.Title, titleWidth)))+"  "+mutedStyle.Render(age))
	}

	rows = append(rows, "", mutedStyle.Render("  Trash lives only in this session. r: restore  d: delete forever  E: empty"))
	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}
