package tui

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sadopc/letstodo/internal/api"
	"github.com/sadopc/letstodo/internal/api/apitest"
	"github.com/sadopc/letstodo/internal/config"
	"github.com/sadopc/letstodo/internal/logging"
	"github.com/sadopc/letstodo/internal/model"
	"github.com/sadopc/letstodo/internal/session"
	"github.com/sadopc/letstodo/internal/state"
	"github.com/sadopc/letstodo/internal/store"
	"github.com/sadopc/letstodo/internal/tasks"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.NewMemory()
	if err != nil {
		t.Fatalf("new memory store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestDeps(t *testing.T) (*Deps, *apitest.Server) {
	t.Helper()
	srv := apitest.New()
	t.Cleanup(srv.Close)

	client := api.New(srv.APIURL())
	st := state.New()
	tracker := session.New(st, client)
	client.OnUnauthorized(tracker.Reset)

	return &Deps{
		State:    st,
		Tasks:    tasks.New(st, client),
		Session:  tracker,
		Local:    newTestStore(t),
		Settings: config.Settings{AutoSave: time.Second, Env: config.Development},
		Logger:   logging.Discard(),
	}, srv
}

// guestWithTask starts a guest session and creates one task on the server.
func guestWithTask(t *testing.T, d *Deps, title string) model.Task {
	t.Helper()
	ctx := context.Background()
	if err := d.Session.StartGuest(ctx); err != nil {
		t.Fatalf("start guest: %v", err)
	}
	task, err := d.Tasks.Create(ctx, model.Draft{Title: title})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return task
}

func keyPress(s string) tea.KeyMsg {
	switch s {
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune(" ")}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// capture records every change the store publishes.
func capture(s *state.Store) *[]state.Change {
	var changes []state.Change
	s.Subscribe(func(c state.Change) { changes = append(changes, c) })
	return &changes
}

func last(changes *[]state.Change) state.Change {
	cs := *changes
	return cs[len(cs)-1]
}

// ============================================================
// Router
// ============================================================

type fakeScreen struct {
	name state.View
	log  *[]string
}

func (f *fakeScreen) activate(state.State) tea.Cmd {
	*f.log = append(*f.log, "activate "+string(f.name))
	return nil
}

func (f *fakeScreen) deactivate() {
	*f.log = append(*f.log, "deactivate "+string(f.name))
}

func (f *fakeScreen) update(tea.Msg) tea.Cmd { return nil }
func (f *fakeScreen) view() string          { return "screen " + string(f.name) }
func (f *fakeScreen) setSize(w, h int)      {}
func (f *fakeScreen) capturing() bool       { return false }
func (f *fakeScreen) help() viewKeys        { return helpFor() }

func newFakeRouter(s *state.Store) (*router, *[]string) {
	var log []string
	screens := make(map[state.View]screen)
	for _, v := range []state.View{
		state.ViewMainMenu, state.ViewLogin, state.ViewDashboard,
		state.ViewTaskList, state.ViewTaskDetail, state.ViewSettings,
	} {
		screens[v] = &fakeScreen{name: v, log: &log}
	}
	return newRouter(s, logging.Discard(), screens), &log
}

func guestState() state.State {
	st := state.Initial()
	st.Session = model.Session{Kind: model.KindGuest, GuestID: "g1"}
	return st
}

func TestRouterStartFallsBackToMainMenu(t *testing.T) {
	st := state.Initial()
	st.CurrentView = state.ViewDashboard
	s := state.New(state.WithState(st))
	r, log := newFakeRouter(s)

	r.start()
	if r.shown != state.ViewMainMenu {
		t.Fatalf("shown = %q, want main-menu", r.shown)
	}
	if s.Get().CurrentView != state.ViewMainMenu {
		t.Fatalf("store view = %q", s.Get().CurrentView)
	}
	if len(*log) != 1 || (*log)[0] != "activate main-menu" {
		t.Fatalf("log = %v", *log)
	}
}

func TestRouterActivatesBeforeDeactivating(t *testing.T) {
	s := state.New(state.WithState(guestState()))
	r, log := newFakeRouter(s)
	changes := capture(s)
	r.start()

	s.Navigate(state.ViewDashboard, nil)
	if cmd := r.handle(last(changes)); cmd == nil {
		t.Fatal("transition should start the fade")
	}

	want := []string{"activate main-menu", "activate dashboard", "deactivate main-menu"}
	if strings.Join(*log, ",") != strings.Join(want, ",") {
		t.Fatalf("log = %v, want %v", *log, want)
	}
	if r.shown != state.ViewDashboard {
		t.Fatalf("shown = %q", r.shown)
	}
	if r.fade != fadeFrames {
		t.Fatalf("fade = %d, want %d", r.fade, fadeFrames)
	}
}

func TestRouterIgnoresChangesWithoutViewKey(t *testing.T) {
	s := state.New(state.WithState(guestState()))
	r, log := newFakeRouter(s)
	changes := capture(s)
	r.start()

	s.Set(func(st *state.State) { st.Search = "milk" })
	if cmd := r.handle(last(changes)); cmd != nil {
		t.Fatal("no transition expected")
	}
	if len(*log) != 1 {
		t.Fatalf("log = %v", *log)
	}
}

func TestRouterUnknownViewRestoresState(t *testing.T) {
	s := state.New(state.WithState(guestState()))
	r, _ := newFakeRouter(s)
	changes := capture(s)
	r.start()

	s.Navigate(state.ViewDashboard, nil)
	r.handle(last(changes))

	s.Navigate(state.View("reports"), nil)
	r.handle(last(changes))

	got := s.Get()
	if got.CurrentView != state.ViewDashboard {
		t.Fatalf("currentView = %q, want dashboard", got.CurrentView)
	}
	if got.PreviousView != state.ViewMainMenu {
		t.Fatalf("previousView = %q, want main-menu", got.PreviousView)
	}
	if r.shown != state.ViewDashboard {
		t.Fatalf("shown = %q", r.shown)
	}
}

func TestRouterLeavesAuthViewsOnSignOut(t *testing.T) {
	s := state.New(state.WithState(guestState()))
	r, _ := newFakeRouter(s)
	changes := capture(s)
	r.start()
	s.Navigate(state.ViewTaskList, nil)
	r.handle(last(changes))

	s.Set(func(st *state.State) { st.Session = model.Session{} })
	r.handle(last(changes))

	got := s.Get()
	if got.CurrentView != state.ViewMainMenu {
		t.Fatalf("currentView = %q, want main-menu", got.CurrentView)
	}
	if got.PreviousView != state.ViewNone {
		t.Fatalf("previousView = %q, want none", got.PreviousView)
	}
}

func TestRouterEscapeTargets(t *testing.T) {
	cases := []struct {
		from, prev state.View
		want       state.View
	}{
		{state.ViewLogin, state.ViewMainMenu, state.ViewMainMenu},
		{state.ViewSettings, state.ViewMainMenu, state.ViewDashboard},
		{state.ViewTaskList, state.ViewTrash, state.ViewDashboard},
		{state.ViewTaskDetail, state.ViewDashboard, state.ViewTaskList},
		{state.ViewTrash, state.ViewTaskList, state.ViewDashboard},
		{state.ViewTaskForm, state.ViewTaskDetail, state.ViewTaskDetail},
		{state.ViewMainMenu, state.ViewNone, state.ViewMainMenu},
	}
	for _, c := range cases {
		st := guestState()
		st.CurrentView, st.PreviousView = c.from, c.prev
		s := state.New(state.WithState(st))
		r, _ := newFakeRouter(s)

		r.escape()
		if got := s.Get().CurrentView; got != c.want {
			t.Errorf("escape from %s: got %s, want %s", c.from, got, c.want)
		}
	}
}

func TestRouterEscapeWithoutSession(t *testing.T) {
	st := state.Initial()
	st.CurrentView = state.ViewSettings
	s := state.New(state.WithState(st))
	r, _ := newFakeRouter(s)

	r.escape()
	if got := s.Get().CurrentView; got != state.ViewMainMenu {
		t.Fatalf("got %s, want main-menu", got)
	}
}

func TestRouterFade(t *testing.T) {
	s := state.New(state.WithState(guestState()))
	r, _ := newFakeRouter(s)
	r.start()
	r.fade = 2

	if r.stepFade() == nil {
		t.Fatal("one frame left, expected another tick")
	}
	if r.stepFade() != nil {
		t.Fatal("fade finished, expected no tick")
	}
	if !strings.Contains(r.view(), "screen main-menu") {
		t.Fatalf("view = %q", r.view())
	}
}

// ============================================================
// State bridge
// ============================================================

func TestBridgeCoalescesChanges(t *testing.T) {
	s := state.New()
	b := newBridge(s)
	defer b.close()

	s.Set(func(st *state.State) { st.Search = "a" })
	s.Set(func(st *state.State) { st.Filter = state.FilterPending })
	s.Set(func(st *state.State) { st.Search = "ab" })

	msg, ok := b.wait()().(stateChangedMsg)
	if !ok {
		t.Fatal("expected stateChangedMsg")
	}
	c := msg.change
	if !c.Has(state.KeySearch) || !c.Has(state.KeyFilter) {
		t.Fatalf("keys = %v", c.Keys)
	}
	if len(c.Keys) != 2 {
		t.Fatalf("keys should be unique, got %v", c.Keys)
	}
	if c.Old.Search != "" {
		t.Fatalf("old search = %q, want oldest", c.Old.Search)
	}
	if c.New.Search != "ab" || c.New.Filter != state.FilterPending {
		t.Fatalf("new = %+v", c.New)
	}
}

func TestBridgeCloseReleasesWait(t *testing.T) {
	s := state.New()
	b := newBridge(s)

	done := make(chan tea.Msg, 1)
	go func() { done <- b.wait()() }()
	b.close()
	b.close()

	select {
	case msg := <-done:
		if msg != nil {
			t.Fatalf("msg = %v, want nil", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("wait did not return after close")
	}

	// Changes after close are not delivered.
	s.Set(func(st *state.State) { st.Search = "x" })
	if b.take() != nil {
		t.Fatal("closed bridge should not collect changes")
	}
}

// ============================================================
// Helpers
// ============================================================

func TestCycle(t *testing.T) {
	if got := cycle(filterOrder, state.FilterAll, 1); got != state.FilterPending {
		t.Fatalf("got %s", got)
	}
	if got := cycle(filterOrder, state.FilterAll, -1); got != state.FilterCompleted {
		t.Fatalf("got %s", got)
	}
	if got := cycle(filterOrder, state.Filter("bogus"), 1); got != state.FilterAll {
		t.Fatalf("unknown value should reset to first, got %s", got)
	}
}

func TestTruncate(t *testing.T) {
	cases := []struct {
		in   string
		n    int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello world", 6, "hello…"},
		{"line\nbreak", 20, "line break"},
		{"çöğüş", 3, "çö…"},
		{"abc", 0, ""},
	}
	for _, c := range cases {
		if got := truncate(c.in, c.n); got != c.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", c.in, c.n, got, c.want)
		}
	}
}

func TestInlineError(t *testing.T) {
	err := fmt.Errorf("%w: title is required", tasks.ErrValidation)
	if got := inlineError(err); got != "title is required" {
		t.Fatalf("got %q", got)
	}
	if got := inlineError(tasks.ErrUnsaved); got == "" {
		t.Fatal("unsaved should be shown")
	}
	if got := inlineError(errors.New("connection refused")); got != "" {
		t.Fatalf("network errors are not inline, got %q", got)
	}
	if inlineError(nil) != "" {
		t.Fatal("nil should be empty")
	}
}

func TestAuthErrorForBadCredentials(t *testing.T) {
	d, srv := newTestDeps(t)
	srv.AddUser("ana@example.com", "correct-horse")

	err := d.Session.Login(context.Background(), "ana@example.com", "wrong-horse")
	if err == nil {
		t.Fatal("login should fail")
	}
	if got := authError(err); got != "Invalid email or password." {
		t.Fatalf("got %q", got)
	}
	if d.State.Get().Session.Authenticated() {
		t.Fatal("failed login must not leave a session")
	}
}

func TestReportLocalOnlyNotifiesLocalErrors(t *testing.T) {
	s := state.New()
	reportLocal(s, errors.New("timeout"))
	if n := len(s.Get().Notifications); n != 0 {
		t.Fatalf("notifications = %d, want 0", n)
	}
	reportLocal(s, fmt.Errorf("%w: id 4", tasks.ErrNotFound))
	if n := len(s.Get().Notifications); n != 1 {
		t.Fatalf("notifications = %d, want 1", n)
	}
}

// ============================================================
// Preferences and themes
// ============================================================

func TestPrefsRoundTrip(t *testing.T) {
	local := newTestStore(t)
	logger := logging.Discard()

	old := state.Initial()
	updated := old
	updated.Theme = state.ThemeLight
	updated.SortKey = state.SortTitle
	updated.SortDir = state.SortAsc
	savePrefs(local, logger, state.Change{
		Keys: []state.Key{state.KeyTheme, state.KeySortKey, state.KeySortDir},
		Old:  old,
		New:  updated,
	})

	st := state.Initial()
	loadPrefs(local, "", &st)
	if st.Theme != state.ThemeLight || st.SortKey != state.SortTitle || st.SortDir != state.SortAsc {
		t.Fatalf("loaded %s %s %s", st.Theme, st.SortKey, st.SortDir)
	}

	st = state.Initial()
	loadPrefs(local, "dark", &st)
	if st.Theme != state.ThemeDark {
		t.Fatal("config theme should win over the saved one")
	}
}

func TestPrefsIgnoreGarbage(t *testing.T) {
	local := newTestStore(t)
	if err := local.SetSetting(store.SettingTheme, "neon"); err != nil {
		t.Fatal(err)
	}
	if err := local.SetSetting(store.SettingSortKey, "priority"); err != nil {
		t.Fatal(err)
	}

	st := state.Initial()
	want := st
	loadPrefs(local, "plaid", &st)
	if st.Theme != want.Theme || st.SortKey != want.SortKey {
		t.Fatalf("got %s %s, want defaults", st.Theme, st.SortKey)
	}
}

func TestApplyThemeSwitchesPalette(t *testing.T) {
	defer applyTheme(state.ThemeDark)

	applyTheme(state.ThemeLight)
	if colors != lightPalette {
		t.Fatal("light palette not applied")
	}
	applyTheme(state.ThemeDark)
	if colors != darkPalette {
		t.Fatal("dark palette not applied")
	}
}

// ============================================================
// Task list
// ============================================================

func TestDashboardStatsTrackTasks(t *testing.T) {
	d, _ := newTestDeps(t)
	task := guestWithTask(t, d, "Buy milk")
	if _, err := d.Tasks.Create(context.Background(), model.Draft{Title: "Walk dog"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	dash := newDashboardScreen(context.Background(), d)
	dash.setSize(100, 30)
	dash.activate(d.State.Get())
	if dash.stats.Total != 2 || dash.stats.Completed != 0 {
		t.Fatalf("stats = %+v", dash.stats)
	}

	changes := capture(d.State)
	if _, err := d.Tasks.Toggle(context.Background(), task.ID); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	dash.update(stateChangedMsg{change: last(changes)})
	if dash.stats.Completed != 1 || dash.stats.Pending != 1 {
		t.Fatalf("stats after toggle = %+v", dash.stats)
	}
}

func TestTaskListFilterKeyCyclesState(t *testing.T) {
	d, _ := newTestDeps(t)
	l := newTaskListScreen(context.Background(), d)
	l.setSize(100, 30)
	l.activate(d.State.Get())

	l.update(keyPress("f"))
	if got := d.State.Get().Filter; got != state.FilterPending {
		t.Fatalf("filter = %s, want pending", got)
	}
	l.update(keyPress("f"))
	l.update(keyPress("f"))
	if got := d.State.Get().Filter; got != state.FilterAll {
		t.Fatalf("filter = %s, want all after full cycle", got)
	}

	l.update(keyPress("S"))
	if got := d.State.Get().SortDir; got == state.Initial().SortDir {
		t.Fatal("sort direction should flip")
	}
}

func TestTaskListSearchCapturesKeys(t *testing.T) {
	d, _ := newTestDeps(t)
	l := newTaskListScreen(context.Background(), d)
	l.setSize(100, 30)
	l.activate(d.State.Get())

	l.update(keyPress("/"))
	if !l.capturing() {
		t.Fatal("search should capture keys")
	}
	l.update(keyPress("q"))
	l.update(keyPress("m"))
	if got := d.State.Get().Search; got != "qm" {
		t.Fatalf("search = %q", got)
	}

	l.update(keyPress("esc"))
	if l.capturing() {
		t.Fatal("esc should close search")
	}
	if got := d.State.Get().Search; got != "" {
		t.Fatalf("esc should clear search, got %q", got)
	}
}

func TestTaskListToggle(t *testing.T) {
	d, _ := newTestDeps(t)
	task := guestWithTask(t, d, "Water plants")

	l := newTaskListScreen(context.Background(), d)
	l.setSize(100, 30)
	l.activate(d.State.Get())

	cmd := l.update(keyPress(" "))
	if cmd == nil {
		t.Fatal("toggle should run a command")
	}
	if res := cmd().(resultMsg); res.err != nil {
		t.Fatalf("toggle: %v", res.err)
	}
	got, _ := d.State.Get().FindTask(task.ID)
	if !got.Completed {
		t.Fatal("task should be completed")
	}
}

func TestTaskListOpenDetail(t *testing.T) {
	d, _ := newTestDeps(t)
	task := guestWithTask(t, d, "Read book")

	l := newTaskListScreen(context.Background(), d)
	l.setSize(100, 30)
	l.activate(d.State.Get())
	l.update(keyPress("enter"))

	st := d.State.Get()
	if st.CurrentView != state.ViewTaskDetail {
		t.Fatalf("view = %s", st.CurrentView)
	}
	if st.CurrentTask == nil || st.CurrentTask.ID != task.ID {
		t.Fatal("current task not set")
	}
}

// ============================================================
// Task form
// ============================================================

func TestTaskFormCreate(t *testing.T) {
	d, _ := newTestDeps(t)
	if err := d.Session.StartGuest(context.Background()); err != nil {
		t.Fatal(err)
	}

	f := newTaskFormScreen(context.Background(), d)
	f.setSize(100, 30)
	f.activate(d.State.Get())
	if f.editing != nil {
		t.Fatal("no current task means a new one")
	}

	*f.title = "Buy milk"
	msg := f.submit()()
	res, ok := msg.(resultMsg)
	if !ok || res.err != nil {
		t.Fatalf("submit: %#v", msg)
	}
	if cmd := f.update(res); cmd == nil {
		t.Fatal("successful save should go back")
	} else if _, ok := cmd().(backMsg); !ok {
		t.Fatal("expected backMsg")
	}

	list := d.State.Get().Tasks
	if len(list) != 1 || list[0].Title != "Buy milk" || !list[0].Persisted() {
		t.Fatalf("tasks = %+v", list)
	}
}

func TestTaskFormDirtyPatch(t *testing.T) {
	d, _ := newTestDeps(t)
	task := guestWithTask(t, d, "Draft")
	if err := d.Tasks.SetCurrent(task.ID); err != nil {
		t.Fatal(err)
	}

	f := newTaskFormScreen(context.Background(), d)
	f.activate(d.State.Get())

	if _, _, dirty := f.dirtyPatch(); dirty {
		t.Fatal("untouched form should be clean")
	}

	*f.description = "with notes"
	id, p, dirty := f.dirtyPatch()
	if !dirty || id != task.ID {
		t.Fatalf("dirty = %v id = %d", dirty, id)
	}
	if p.Title != nil || p.Completed != nil {
		t.Fatalf("only description changed, got %+v", p)
	}
	if p.Description == nil || *p.Description != "with notes" {
		t.Fatalf("description = %v", p.Description)
	}
}

func TestTaskFormAutosaveDebounce(t *testing.T) {
	d, srv := newTestDeps(t)
	task := guestWithTask(t, d, "Draft")
	if err := d.Tasks.SetCurrent(task.ID); err != nil {
		t.Fatal(err)
	}

	f := newTaskFormScreen(context.Background(), d)
	f.activate(d.State.Get())
	*f.title = "Final"

	if f.scheduleAutosave() == nil {
		t.Fatal("editing a task should schedule an autosave")
	}
	stale := autosaveMsg{seq: f.seq}
	f.scheduleAutosave()
	if cmd := f.update(stale); cmd != nil {
		t.Fatal("a superseded autosave must not run")
	}

	cmd := f.update(autosaveMsg{seq: f.seq})
	if cmd == nil {
		t.Fatal("latest autosave should run")
	}
	if res := cmd().(resultMsg); res.op != "autosave" || res.err != nil {
		t.Fatalf("autosave: %+v", res)
	}

	got, _ := d.State.Get().FindTask(task.ID)
	if got.Title != "Final" {
		t.Fatalf("title = %q", got.Title)
	}
	patches := 0
	for _, r := range srv.Requests() {
		if r.Method == http.MethodPatch {
			patches++
		}
	}
	if patches != 1 {
		t.Fatalf("PATCH requests = %d, want 1", patches)
	}
	for _, n := range d.State.Get().Notifications {
		if strings.Contains(n.Message, "updated") {
			t.Fatalf("autosave should be silent, got %q", n.Message)
		}
	}
}

func TestTaskFormAutosaveDisabled(t *testing.T) {
	d, _ := newTestDeps(t)
	d.Settings.AutoSave = 0
	task := guestWithTask(t, d, "Draft")
	if err := d.Tasks.SetCurrent(task.ID); err != nil {
		t.Fatal(err)
	}

	f := newTaskFormScreen(context.Background(), d)
	f.activate(d.State.Get())
	if f.scheduleAutosave() != nil {
		t.Fatal("autosave 0 should disable the timer")
	}
}

// ============================================================
// Trash
// ============================================================

func trashedState(now time.Time) state.State {
	st := guestState()
	recent := now.Add(-time.Hour)
	old := now.Add(-10 * 24 * time.Hour)
	st.TrashedTasks = []model.Task{
		{ID: 1, Title: "Old one", DeletedAt: &old},
		{ID: 2, Title: "Fresh one", DeletedAt: &recent},
	}
	return st
}

func TestTrashNewestFirstAndRestore(t *testing.T) {
	d, _ := newTestDeps(t)
	now := time.Now()
	d.State.SetSilent(func(st *state.State) { *st = trashedState(now) })

	tr := newTrashScreen(context.Background(), d)
	tr.setSize(100, 30)
	tr.activate(d.State.Get())

	if len(tr.visible) != 2 || tr.visible[0].ID != 2 {
		t.Fatalf("visible = %+v", tr.visible)
	}

	tr.update(keyPress("r"))
	st := d.State.Get()
	if _, ok := st.FindTask(2); !ok {
		t.Fatal("restored task should be live")
	}
	if _, ok := st.FindTrashed(2); ok {
		t.Fatal("restored task should leave the trash")
	}
}

func TestTrashFilterCycles(t *testing.T) {
	d, _ := newTestDeps(t)
	d.State.SetSilent(func(st *state.State) { *st = trashedState(time.Now()) })

	tr := newTrashScreen(context.Background(), d)
	tr.activate(d.State.Get())

	tr.update(keyPress("f"))
	if tr.filter != tasks.TrashRecent || len(tr.visible) != 1 || tr.visible[0].ID != 2 {
		t.Fatalf("recent filter: %v %+v", tr.filter, tr.visible)
	}
	tr.update(keyPress("f"))
	if tr.filter != tasks.TrashOld || len(tr.visible) != 1 || tr.visible[0].ID != 1 {
		t.Fatalf("old filter: %v %+v", tr.filter, tr.visible)
	}
}

func TestTrashDeleteAsksFirst(t *testing.T) {
	d, _ := newTestDeps(t)
	d.State.SetSilent(func(st *state.State) { *st = trashedState(time.Now()) })

	tr := newTrashScreen(context.Background(), d)
	tr.activate(d.State.Get())

	tr.update(keyPress("d"))
	if !tr.capturing() {
		t.Fatal("delete should open a confirmation")
	}
	tr.update(keyPress("esc"))
	if tr.capturing() {
		t.Fatal("esc should cancel")
	}
	if n := len(d.State.Get().TrashedTasks); n != 2 {
		t.Fatalf("trash = %d, cancel must not delete", n)
	}
}

// ============================================================
// App
// ============================================================

func TestAppRendersMainMenu(t *testing.T) {
	d, _ := newTestDeps(t)
	app := NewApp(context.Background(), *d)
	defer app.Close()
	app.Init()

	m, _ := app.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	out := m.(App).View()
	if !strings.Contains(out, "letstodo") {
		t.Fatalf("header missing:\n%s", out)
	}
	if !strings.Contains(out, "Continue as guest") {
		t.Fatalf("main menu missing:\n%s", out)
	}
}

func TestAppShowsToasts(t *testing.T) {
	d, _ := newTestDeps(t)
	app := NewApp(context.Background(), *d)
	defer app.Close()
	app.Init()

	m, _ := app.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	d.State.Notify(state.KindSuccess, "All synced")
	m, _ = m.(App).Update(stateChangedMsg{change: state.Change{
		Keys: []state.Key{state.KeyNotifications},
		Old:  state.Initial(),
		New:  d.State.Get(),
	}})
	if out := m.(App).View(); !strings.Contains(out, "All synced") {
		t.Fatalf("toast missing:\n%s", out)
	}
}

func TestAppPersistsThemeChange(t *testing.T) {
	d, _ := newTestDeps(t)
	app := NewApp(context.Background(), *d)
	defer app.Close()
	defer applyTheme(state.ThemeDark)
	app.Init()

	old := d.State.Get()
	d.State.Set(func(st *state.State) { st.Theme = state.ThemeLight })
	app.Update(stateChangedMsg{change: state.Change{
		Keys: []state.Key{state.KeyTheme},
		Old:  old,
		New:  d.State.Get(),
	}})

	v, err := d.Local.SettingOr(store.SettingTheme, "")
	if err != nil {
		t.Fatal(err)
	}
	if v != string(state.ThemeLight) {
		t.Fatalf("saved theme = %q", v)
	}
}
