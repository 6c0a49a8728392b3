package state

import (
	"time"

	"github.com/sadopc/letstodo/internal/model"
)

type View string

const (
	ViewNone       View = ""
	ViewMainMenu   View = "main-menu"
	ViewLogin      View = "login"
	ViewRegister   View = "register"
	ViewDashboard  View = "dashboard"
	ViewTaskList   View = "task-list"
	ViewTaskForm   View = "task-form"
	ViewTaskDetail View = "task-detail"
	ViewTrash      View = "trash"
	ViewSettings   View = "settings"
)

// Key names one top-level field of State.
type Key string

const (
	KeyCurrentView   Key = "currentView"
	KeyPreviousView  Key = "previousView"
	KeySession       Key = "session"
	KeyTasks         Key = "tasks"
	KeyTrashedTasks  Key = "trashedTasks"
	KeyCurrentTask   Key = "currentTask"
	KeyFilter        Key = "filter"
	KeySortKey       Key = "sortKey"
	KeySortDir       Key = "sortDir"
	KeySearch        Key = "search"
	KeyNotifications Key = "notifications"
	KeyLoading       Key = "loading"
	KeyError         Key = "error"
	KeyTheme         Key = "theme"
)

type Filter string

const (
	FilterAll       Filter = "all"
	FilterCompleted Filter = "completed"
	FilterPending   Filter = "pending"
)

type SortKey string

const (
	SortCreated SortKey = "created"
	SortTitle   SortKey = "title"
	SortUpdated SortKey = "updated"
)

type SortDir string

const (
	SortAsc  SortDir = "asc"
	SortDesc SortDir = "desc"
)

type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

// State is the whole application state. Values handed out by Store are
// copies; changing them has no effect until passed back through Set.
type State struct {
	CurrentView   View
	PreviousView  View
	Session       model.Session
	Tasks         []model.Task
	TrashedTasks  []model.Task
	CurrentTask   *model.Task
	Filter        Filter
	SortKey       SortKey
	SortDir       SortDir
	Search        string
	Notifications []Notification
	Loading       bool
	Error         string
	Theme         Theme
}

// Initial returns the state a fresh store starts from.
func Initial() State {
	return State{
		CurrentView: ViewMainMenu,
		Filter:      FilterAll,
		SortKey:     SortCreated,
		SortDir:     SortDesc,
		Theme:       ThemeDark,
	}
}

// FindTask returns the live task with id.
func (s State) FindTask(id int64) (model.Task, bool) {
	for _, t := range s.Tasks {
		if t.ID == id {
			return t, true
		}
	}
	return model.Task{}, false
}

// FindTrashed returns the trashed task with id.
func (s State) FindTrashed(id int64) (model.Task, bool) {
	for _, t := range s.TrashedTasks {
		if t.ID == id {
			return t, true
		}
	}
	return model.Task{}, false
}

func (s State) clone() State {
	out := s
	out.Tasks = cloneTasks(s.Tasks)
	out.TrashedTasks = cloneTasks(s.TrashedTasks)
	if s.CurrentTask != nil {
		t := s.CurrentTask.Clone()
		out.CurrentTask = &t
	}
	if s.Notifications != nil {
		out.Notifications = make([]Notification, len(s.Notifications))
		copy(out.Notifications, s.Notifications)
	}
	return out
}

func cloneTasks(in []model.Task) []model.Task {
	if in == nil {
		return nil
	}
	out := make([]model.Task, len(in))
	for i, t := range in {
		out[i] = t.Clone()
	}
	return out
}

// diff lists the keys whose values differ between a and b, in field order.
func diff(a, b State) []Key {
	var keys []Key
	add := func(changed bool, k Key) {
		if changed {
			keys = append(keys, k)
		}
	}
	add(a.CurrentView != b.CurrentView, KeyCurrentView)
	add(a.PreviousView != b.PreviousView, KeyPreviousView)
	add(a.Session != b.Session, KeySession)
	add(!tasksEqual(a.Tasks, b.Tasks), KeyTasks)
	add(!tasksEqual(a.TrashedTasks, b.TrashedTasks), KeyTrashedTasks)
	add(!taskPtrEqual(a.CurrentTask, b.CurrentTask), KeyCurrentTask)
	add(a.Filter != b.Filter, KeyFilter)
	add(a.SortKey != b.SortKey, KeySortKey)
	add(a.SortDir != b.SortDir, KeySortDir)
	add(a.Search != b.Search, KeySearch)
	add(!notificationsEqual(a.Notifications, b.Notifications), KeyNotifications)
	add(a.Loading != b.Loading, KeyLoading)
	add(a.Error != b.Error, KeyError)
	add(a.Theme != b.Theme, KeyTheme)
	return keys
}

// tasksEqual treats nil and empty as equal.
func tasksEqual(a, b []model.Task) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

func taskPtrEqual(a, b *model.Task) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func notificationsEqual(a, b []Notification) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].equal(b[i]) {
			return false
		}
	}
	return true
}

// Has reports whether keys contains k.
func Has(keys []Key, k Key) bool {
	for _, key := range keys {
		if key == k {
			return true
		}
	}
	return false
}

// Expired reports whether n should have been dismissed by now.
func (n Notification) Expired(now time.Time) bool {
	return n.Duration > 0 && !now.Before(n.CreatedAt.Add(n.Duration))
}
