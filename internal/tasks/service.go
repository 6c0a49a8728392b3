// Package tasks implements task operations with optimistic local updates.
//
// Every mutation is applied to the state store first, then sent to the API.
// A successful reply is reconciled into the store; a failed one is rolled
// back and reported with exactly one error notification.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/sadopc/letstodo/internal/api"
	"github.com/sadopc/letstodo/internal/model"
	"github.com/sadopc/letstodo/internal/state"
)

var (
	ErrNotFound   = errors.New("task not found")
	ErrValidation = errors.New("invalid task")
	// ErrUnsaved rejects changes to a task whose create is still in flight.
	ErrUnsaved = errors.New("task is not saved yet")
	// ErrSessionChanged reports a reply that arrived after the session it
	// was sent for had ended.
	ErrSessionChanged = errors.New("session changed while the request was in flight")
)

// Remote is the part of the API client the service needs.
type Remote interface {
	ListTasks(ctx context.Context) ([]model.Task, error)
	CreateTask(ctx context.Context, d model.Draft) (model.Task, error)
	UpdateTask(ctx context.Context, id int64, p model.TaskPatch) (model.Task, error)
	DeleteTask(ctx context.Context, id int64) error
}

// Rollback selects how a failed update or delete is undone.
type Rollback int

const (
	// RollbackReload reloads the whole list from the server. Other in-flight
	// optimistic changes are discarded too.
	RollbackReload Rollback = iota
	// RollbackSnapshot restores only the affected task.
	RollbackSnapshot
)

type Service struct {
	store    *state.Store
	remote   Remote
	logger   *slog.Logger
	rollback Rollback
	now      func() time.Time

	locks         *keyedMutex
	lastSynthetic atomic.Int64
}

type Option func(*Service)

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func WithRollback(r Rollback) Option {
	return func(s *Service) { s.rollback = r }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(store *state.Store, remote Remote, opts ...Option) *Service {
	s := &Service{
		store:  store,
		remote: remote,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:    time.Now,
		locks:  newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// syntheticID returns a strictly increasing id above model.SyntheticIDFloor.
func (s *Service) syntheticID() int64 {
	for {
		prev := s.lastSynthetic.Load()
		next := time.Now().UnixNano()
		if next < model.SyntheticIDFloor {
			next = model.SyntheticIDFloor
		}
		if next <= prev {
			next = prev + 1
		}
		if s.lastSynthetic.CompareAndSwap(prev, next) {
			return next
		}
	}
}

// ============================================================
// Load
// ============================================================

// Load returns the cached tasks unless they are empty or force is set, in
// which case it fetches the full list and replaces the cached one.
func (s *Service) Load(ctx context.Context, force bool) ([]model.Task, error) {
	if st := s.store.Get(); !force && len(st.Tasks) > 0 {
		return st.Tasks, nil
	}
	s.store.Set(func(st *state.State) {
		st.Loading = true
		st.Error = ""
	})

	list, err := s.remote.ListTasks(ctx)
	if err != nil {
		s.store.Set(func(st *state.State) {
			st.Loading = false
			st.Error = api.UserMessage(err)
		})
		s.logger.Warn("load tasks failed", "err", err)
		return nil, fmt.Errorf("load tasks: %w", err)
	}

	s.store.Set(func(st *state.State) {
		st.Tasks = replaceAll(list, st.TrashedTasks)
		st.Loading = false
		st.Error = ""
		if st.CurrentTask != nil && st.CurrentTask.Persisted() {
			if t, ok := st.FindTask(st.CurrentTask.ID); ok {
				st.CurrentTask = &t
			}
		}
	})
	s.logger.Debug("tasks loaded", "count", len(list))
	return s.store.Get().Tasks, nil
}

// replaceAll dedupes list by id and drops anything sitting in the trash so
// the two collections stay disjoint.
func replaceAll(list, trash []model.Task) []model.Task {
	trashed := make(map[int64]bool, len(trash))
	for _, t := range trash {
		trashed[t.ID] = true
	}
	seen := make(map[int64]bool, len(list))
	out := make([]model.Task, 0, len(list))
	for _, t := range list {
		if trashed[t.ID] || seen[t.ID] {
			continue
		}
		seen[t.ID] = true
		t.Pending = false
		t.DeletedAt = nil
		out = append(out, t)
	}
	return out
}

// ============================================================
// Create
// ============================================================

// Create adds the task locally as pending and replaces it with the server's
// copy once created. On failure the pending entry is removed.
func (s *Service) Create(ctx context.Context, d model.Draft) (model.Task, error) {
	return s.create(ctx, d, true)
}

func (s *Service) create(ctx context.Context, d model.Draft, notify bool) (model.Task, error) {
	d = d.Normalize()
	if d.Title == "" {
		return model.Task{}, fmt.Errorf("%w: title is required", ErrValidation)
	}

	now := s.now()
	temp := model.Task{
		ID:          s.syntheticID(),
		Title:       d.Title,
		Description: d.Description,
		Completed:   d.Completed,
		CreatedAt:   now,
		UpdatedAt:   now,
		Pending:     true,
	}
	owner := s.store.Get().Session
	s.store.Set(func(st *state.State) {
		st.Tasks = append(st.Tasks, temp)
	})

	created, err := s.remote.CreateTask(ctx, d)
	if err != nil {
		s.store.Set(func(st *state.State) {
			st.Tasks = without(st.Tasks, temp.ID)
			st.Error = api.UserMessage(err)
		})
		if notify {
			s.fail("Could not create task", err)
		}
		return model.Task{}, fmt.Errorf("create task: %w", err)
	}

	created.Pending = false
	stale := false
	s.store.Set(func(st *state.State) {
		if st.Session != owner {
			stale = true
			st.Tasks = without(st.Tasks, temp.ID)
			if st.CurrentTask != nil && st.CurrentTask.ID == temp.ID {
				st.CurrentTask = nil
			}
			return
		}
		st.Tasks = without(st.Tasks, created.ID)
		if idx := indexOf(st.Tasks, temp.ID); idx >= 0 {
			st.Tasks[idx] = created
		} else {
			st.Tasks = append(st.Tasks, created)
		}
		if st.CurrentTask != nil && st.CurrentTask.ID == temp.ID {
			c := created
			st.CurrentTask = &c
		}
		st.Error = ""
	})
	if stale {
		s.logger.Warn("dropping create reply for ended session", "id", created.ID)
		return model.Task{}, fmt.Errorf("create task: %w", ErrSessionChanged)
	}
	if notify {
		s.store.Notify(state.KindSuccess, "Task created")
	}
	s.logger.Info("task created", "id", created.ID)
	return created, nil
}

// ============================================================
// Update
// ============================================================

// Update applies p optimistically and reconciles with the server's reply.
func (s *Service) Update(ctx context.Context, id int64, p model.TaskPatch) (model.Task, error) {
	unlock, err := s.lock(id)
	if err != nil {
		return model.Task{}, err
	}
	defer unlock()
	return s.update(ctx, id, func(model.Task) model.TaskPatch { return p }, func(model.Task) string {
		return "Task updated"
	})
}

// AutoSave is Update without a success notification.
func (s *Service) AutoSave(ctx context.Context, id int64, p model.TaskPatch) (model.Task, error) {
	unlock, err := s.lock(id)
	if err != nil {
		return model.Task{}, err
	}
	defer unlock()
	return s.update(ctx, id, func(model.Task) model.TaskPatch { return p }, nil)
}

// Toggle flips the completed flag of task id.
func (s *Service) Toggle(ctx context.Context, id int64) (model.Task, error) {
	unlock, err := s.lock(id)
	if err != nil {
		return model.Task{}, err
	}
	defer unlock()
	return s.update(ctx, id, func(t model.Task) model.TaskPatch {
		return model.TaskPatch{Completed: model.BoolPtr(!t.Completed)}
	}, func(t model.Task) string {
		if t.Completed {
			return "Task completed"
		}
		return "Task reopened"
	})
}

// lock takes the per-id lock. Synthetic ids are refused: ErrUnsaved while the
// pending entry exists, ErrNotFound once it is gone.
func (s *Service) lock(id int64) (func(), error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	if id >= model.SyntheticIDFloor {
		if t, ok := s.store.Get().FindTask(id); ok && t.Pending {
			return nil, ErrUnsaved
		}
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return s.locks.Lock(id), nil
}

// update must be called with the id lock held. A nil notice means no
// success notification.
func (s *Service) update(ctx context.Context, id int64, patchFor func(model.Task) model.TaskPatch, notice func(model.Task) string) (model.Task, error) {
	current, ok := s.store.Get().FindTask(id)
	if !ok {
		return model.Task{}, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	p := patchFor(current)
	if p.Empty() {
		return current, nil
	}
	if p.Title != nil {
		trimmed := model.Draft{Title: *p.Title}.Normalize().Title
		if trimmed == "" {
			return model.Task{}, fmt.Errorf("%w: title is required", ErrValidation)
		}
		p.Title = &trimmed
	}

	snapshot := current.Clone()
	s.store.Set(func(st *state.State) {
		idx := indexOf(st.Tasks, id)
		if idx < 0 {
			return
		}
		t := p.Apply(st.Tasks[idx])
		t.Pending = true
		t.UpdatedAt = s.now()
		st.Tasks[idx] = t
		if st.CurrentTask != nil && st.CurrentTask.ID == id {
			c := t
			st.CurrentTask = &c
		}
	})

	updated, err := s.remote.UpdateTask(ctx, id, p)
	if err != nil {
		s.undo(ctx, snapshot, false)
		s.store.Set(func(st *state.State) { st.Error = api.UserMessage(err) })
		s.fail("Could not update task", err)
		return model.Task{}, fmt.Errorf("update task %d: %w", id, err)
	}

	updated.Pending = false
	s.store.Set(func(st *state.State) {
		if idx := indexOf(st.Tasks, id); idx >= 0 {
			st.Tasks[idx] = updated
		}
		if st.CurrentTask != nil && st.CurrentTask.ID == id {
			c := updated
			st.CurrentTask = &c
		}
		st.Error = ""
	})

	if notice != nil {
		s.store.Notify(state.KindSuccess, notice(updated))
	}
	return updated, nil
}

// ============================================================
// Delete and trash
// ============================================================

// Delete moves task id to the trash and deletes it on the server.
func (s *Service) Delete(ctx context.Context, id int64) error {
	unlock, err := s.lock(id)
	if err != nil {
		return err
	}
	defer unlock()

	current, ok := s.store.Get().FindTask(id)
	if !ok {
		return fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	snapshot := current.Clone()
	deletedAt := s.now()
	s.store.Set(func(st *state.State) {
		st.Tasks = without(st.Tasks, id)
		trashed := current.Clone()
		trashed.Pending = false
		trashed.DeletedAt = &deletedAt
		st.TrashedTasks = append(without(st.TrashedTasks, id), trashed)
		if st.CurrentTask != nil && st.CurrentTask.ID == id {
			st.CurrentTask = nil
		}
	})

	if err := s.remote.DeleteTask(ctx, id); err != nil {
		s.undo(ctx, snapshot, true)
		s.store.Set(func(st *state.State) { st.Error = api.UserMessage(err) })
		s.fail("Could not delete task", err)
		return fmt.Errorf("delete task %d: %w", id, err)
	}
	s.store.Notify(state.KindSuccess, "Task moved to trash")
	s.logger.Info("task deleted", "id", id)
	return nil
}

// Restore moves a trashed task back to the list. It only changes local state.
func (s *Service) Restore(id int64) error {
	found := false
	s.store.Set(func(st *state.State) {
		t, ok := st.FindTrashed(id)
		if !ok {
			return
		}
		found = true
		st.TrashedTasks = without(st.TrashedTasks, id)
		t.DeletedAt = nil
		if indexOf(st.Tasks, id) < 0 {
			st.Tasks = append(st.Tasks, t)
		}
	})
	if !found {
		return fmt.Errorf("%w: id %d not in trash", ErrNotFound, id)
	}
	s.store.Notify(state.KindSuccess, "Task restored")
	return nil
}

// PermanentlyDelete drops a trashed task. It only changes local state.
func (s *Service) PermanentlyDelete(id int64) error {
	found := false
	s.store.Set(func(st *state.State) {
		if _, ok := st.FindTrashed(id); ok {
			found = true
			st.TrashedTasks = without(st.TrashedTasks, id)
		}
	})
	if !found {
		return fmt.Errorf("%w: id %d not in trash", ErrNotFound, id)
	}
	s.store.Notify(state.KindSuccess, "Task permanently deleted")
	return nil
}

// EmptyTrash drops every trashed task and returns how many there were.
func (s *Service) EmptyTrash() int {
	n := 0
	s.store.Set(func(st *state.State) {
		n = len(st.TrashedTasks)
		st.TrashedTasks = nil
	})
	if n > 0 {
		s.store.Notify(state.KindSuccess, fmt.Sprintf("Trash emptied (%d tasks)", n))
	}
	return n
}

// ============================================================
// Rollback
// ============================================================

// undo reverts a failed optimistic change to snapshot. fromTrash is set for
// deletes, whose optimistic step moved the task into the trash.
func (s *Service) undo(ctx context.Context, snapshot model.Task, fromTrash bool) {
	if fromTrash {
		s.store.Set(func(st *state.State) {
			st.TrashedTasks = without(st.TrashedTasks, snapshot.ID)
		})
	}
	if s.rollback == RollbackReload {
		_, err := s.Load(ctx, true)
		if err == nil {
			return
		}
		s.logger.Warn("reload rollback failed, restoring snapshot", "id", snapshot.ID, "err", err)
	}
	s.restoreSnapshot(snapshot)
}

func (s *Service) restoreSnapshot(snapshot model.Task) {
	snapshot.Pending = false
	snapshot.DeletedAt = nil
	s.store.Set(func(st *state.State) {
		if idx := indexOf(st.Tasks, snapshot.ID); idx >= 0 {
			st.Tasks[idx] = snapshot
		} else {
			st.Tasks = append(st.Tasks, snapshot)
		}
		st.Loading = false
	})
}

// fail publishes the single error notification for a failed mutation.
func (s *Service) fail(action string, err error) {
	s.logger.Warn(action, "err", err)
	s.store.Notify(state.KindError, fmt.Sprintf("%s: %s", action, api.UserMessage(err)))
}

// ============================================================
// Current task and projections
// ============================================================

// SetCurrent opens task id for editing.
func (s *Service) SetCurrent(id int64) error {
	found := false
	s.store.Set(func(st *state.State) {
		if t, ok := st.FindTask(id); ok {
			found = true
			st.CurrentTask = &t
		}
	})
	if !found {
		return fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return nil
}

func (s *Service) ClearCurrent() {
	s.store.Set(func(st *state.State) { st.CurrentTask = nil })
}

// Filtered applies f to the current tasks.
func (s *Service) Filtered(f state.Filter) []model.Task {
	return Filter(s.store.Get().Tasks, f)
}

// Visible applies the store's filter, search and sort settings.
func (s *Service) Visible() []model.Task {
	return View(s.store.Get())
}

// Stats summarizes the live and trashed tasks.
func (s *Service) Stats() Stats {
	st := s.store.Get()
	return Summarize(st.Tasks, st.TrashedTasks)
}

// ============================================================
// Import
// ============================================================

// Import creates each task on the server as a new task, ignoring ids, and
// publishes one summary notification.
func (s *Service) Import(ctx context.Context, list []model.Task) (imported, failed int) {
	for _, t := range list {
		if ctx.Err() != nil {
			failed += len(list) - imported - failed
			break
		}
		d := model.Draft{Title: t.Title, Description: t.Description, Completed: t.Completed}
		if _, err := s.create(ctx, d, false); err != nil {
			failed++
			continue
		}
		imported++
	}
	switch {
	case imported > 0 && failed > 0:
		s.store.Notify(state.KindWarning, fmt.Sprintf("%d tasks imported, %d failed", imported, failed))
	case imported > 0:
		s.store.Notify(state.KindSuccess, fmt.Sprintf("%d tasks imported", imported))
	default:
		s.store.Notify(state.KindError, "No tasks could be imported")
	}
	return imported, failed
}

func indexOf(list []model.Task, id int64) int {
	for i, t := range list {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// without returns list minus every task with id.
func without(list []model.Task, id int64) []model.Task {
	out := make([]model.Task, 0, len(list))
	for _, t := range list {
		if t.ID != id {
			out = append(out, t)
		}
	}
	return out
}
