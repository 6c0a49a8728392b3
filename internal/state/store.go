// Package state holds the application state and publishes its changes.
//
// A Store owns a single State value. Readers get deep copies from Get;
// writers go through Set, which diffs the state field by field and notifies
// subscribers with the list of changed keys. A write that changes nothing
// publishes nothing.
package state

import (
	"io"
	"log/slog"
	"sync"
	"time"
)

// Change describes one published mutation.
type Change struct {
	Keys []Key
	Old  State
	New  State
}

// Has reports whether the change touched k.
func (c Change) Has(k Key) bool {
	return Has(c.Keys, k)
}

type subscriber struct {
	id int
	fn func(Change)
}

type Store struct {
	mu     sync.Mutex
	state  State
	subs   []subscriber
	nextID int

	logger *slog.Logger
	now    func() time.Time
}

type Option func(*Store)

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithClock replaces time.Now for notification timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithState replaces the initial state.
func WithState(st State) Option {
	return func(s *Store) { s.state = st.clone() }
}

func New(opts ...Option) *Store {
	s := &Store{
		state:  Initial(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns a copy of the current state.
func (s *Store) Get() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Set applies mutate to a copy of the state and, if any field changed,
// commits it and notifies subscribers. It returns the changed keys.
//
// Subscribers run on the calling goroutine after the lock is released, so
// they may call Set themselves.
func (s *Store) Set(mutate func(*State)) []Key {
	change, subs := s.apply(mutate)
	if change == nil {
		return nil
	}
	for _, sub := range subs {
		s.deliver(sub, change.clone())
	}
	return change.Keys
}

// SetSilent commits like Set but notifies no one.
func (s *Store) SetSilent(mutate func(*State)) []Key {
	change, _ := s.apply(mutate)
	if change == nil {
		return nil
	}
	return change.Keys
}

func (s *Store) apply(mutate func(*State)) (*Change, []subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.state.clone()
	mutate(&next)
	keys := diff(s.state, next)
	if len(keys) == 0 {
		return nil, nil
	}
	old := s.state
	s.state = next.clone()

	subs := make([]subscriber, len(s.subs))
	copy(subs, s.subs)
	return &Change{Keys: keys, Old: old, New: next}, subs
}

// clone gives each subscriber its own Old and New, so edits made by one are
// never seen by the next.
func (c *Change) clone() Change {
	return Change{
		Keys: append([]Key(nil), c.Keys...),
		Old:  c.Old.clone(),
		New:  c.New.clone(),
	}
}

func (s *Store) deliver(sub subscriber, c Change) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("subscriber panicked", "subscriber", sub.id, "keys", c.Keys, "panic", r)
		}
	}()
	sub.fn(c)
}

// Subscribe registers fn for every published change. Subscribers are called
// in registration order. The returned function removes this registration and
// may be called any number of times.
func (s *Store) Subscribe(fn func(Change)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs = append(s.subs, subscriber{id: id, fn: fn})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, sub := range s.subs {
				if sub.id == id {
					s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Navigate switches to view, remembering the current view as the back
// target. extra, if non-nil, adjusts other fields in the same change.
func (s *Store) Navigate(view View, extra func(*State)) []Key {
	return s.Set(func(st *State) {
		if st.CurrentView != view {
			st.PreviousView = st.CurrentView
			st.CurrentView = view
		}
		if extra != nil {
			extra(st)
		}
	})
}

// Back returns to the previous view and clears it, so a second Back without
// a forward navigation lands on the main menu.
func (s *Store) Back() []Key {
	return s.Set(func(st *State) {
		target := st.PreviousView
		if target == ViewNone || target == st.CurrentView {
			target = ViewMainMenu
		}
		st.CurrentView = target
		st.PreviousView = ViewNone
	})
}

// Reset restores the initial state. The theme survives.
func (s *Store) Reset() []Key {
	return s.Set(func(st *State) {
		theme := st.Theme
		*st = Initial()
		st.Theme = theme
	})
}
