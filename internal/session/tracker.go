// Package session tracks who the client is talking to the API as.
//
// The Tracker moves between Unknown, Guest, User and Anonymous. It mirrors the
// current session into the state store so screens can react to it, and it
// never changes state on a failed request.
package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/sadopc/letstodo/internal/api"
	"github.com/sadopc/letstodo/internal/model"
	"github.com/sadopc/letstodo/internal/state"
)

type Status int

const (
	Unknown Status = iota
	Guest
	User
	Anonymous
)

var statusNames = map[Status]string{
	Unknown:   "unknown",
	Guest:     "guest",
	User:      "user",
	Anonymous: "anonymous",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Remote is the part of the API client the tracker needs.
type Remote interface {
	ValidateSession(ctx context.Context) (api.Validation, error)
	StartGuest(ctx context.Context) (string, error)
	EndGuest(ctx context.Context) error
	Register(ctx context.Context, email, password string) (int64, error)
	Login(ctx context.Context, email, password string) (int64, error)
	Logout(ctx context.Context) error
}

// Transport performs one session validation request.
type Transport func(ctx context.Context) (api.Validation, error)

type Tracker struct {
	remote Remote
	store  *state.Store
	logger *slog.Logger

	mu      sync.Mutex
	status  Status
	session model.Session
}

type Option func(*Tracker)

func WithLogger(l *slog.Logger) Option {
	return func(t *Tracker) { t.logger = l }
}

func New(store *state.Store, remote Remote, opts ...Option) *Tracker {
	t := &Tracker{
		remote: remote,
		store:  store,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Tracker) State() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

func (t *Tracker) Session() model.Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.session
}

// Validate asks transport whether the current cookies carry a session.
// A valid user or guest reply moves to User or Guest; anything else,
// including a transport error, moves to Anonymous. The error is returned
// for logging only.
func (t *Tracker) Validate(ctx context.Context, transport Transport) (Status, error) {
	v, err := transport(ctx)
	if err != nil {
		t.logger.Debug("session validation failed", "err", err)
		t.transition(Anonymous, model.Session{})
		return Anonymous, fmt.Errorf("validate session: %w", err)
	}
	sess := v.Session()
	switch sess.Kind {
	case model.KindUser:
		t.transition(User, sess)
		return User, nil
	case model.KindGuest:
		t.transition(Guest, sess)
		return Guest, nil
	}
	t.transition(Anonymous, model.Session{})
	return Anonymous, nil
}

// Refresh validates using the tracker's own remote.
func (t *Tracker) Refresh(ctx context.Context) (Status, error) {
	return t.Validate(ctx, t.remote.ValidateSession)
}

// Reset forces Anonymous. It is safe to call from any goroutine, including
// from inside an API call that observed a 401.
func (t *Tracker) Reset() {
	t.mu.Lock()
	prev := t.status
	t.mu.Unlock()
	if prev != Anonymous {
		t.logger.Info("session reset", "from", prev.String())
	}
	t.transition(Anonymous, model.Session{})
}

func (t *Tracker) Login(ctx context.Context, email, password string) error {
	email = strings.TrimSpace(email)
	if err := ValidateEmail(email); err != nil {
		return err
	}
	if password == "" {
		return fmt.Errorf("%w: password is required", ErrValidation)
	}
	userID, err := t.remote.Login(ctx, email, password)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	t.begin(User, t.userSession(ctx, email, userID))
	t.logger.Info("logged in", "email", email)
	return nil
}

func (t *Tracker) Register(ctx context.Context, email, password, confirm string) error {
	email = strings.TrimSpace(email)
	if err := ValidateRegistration(email, password, confirm); err != nil {
		return err
	}
	userID, err := t.remote.Register(ctx, email, password)
	if err != nil {
		return fmt.Errorf("register: %w", err)
	}
	t.begin(User, t.userSession(ctx, email, userID))
	t.logger.Info("registered", "email", email)
	return nil
}

// userSession prefers the server's view of the new session and falls back
// to what the login reply told us.
func (t *Tracker) userSession(ctx context.Context, email string, userID int64) model.Session {
	fallback := model.Session{Kind: model.KindUser, UserID: userID, Email: email}
	v, err := t.remote.ValidateSession(ctx)
	if err != nil {
		return fallback
	}
	if sess := v.Session(); sess.Kind == model.KindUser {
		if sess.Email == "" {
			sess.Email = email
		}
		return sess
	}
	return fallback
}

func (t *Tracker) StartGuest(ctx context.Context) error {
	guestID, err := t.remote.StartGuest(ctx)
	if err != nil {
		return fmt.Errorf("start guest session: %w", err)
	}
	t.begin(Guest, model.Session{Kind: model.KindGuest, GuestID: guestID})
	t.logger.Info("guest session started", "guest_id", guestID)
	return nil
}

func (t *Tracker) EndGuest(ctx context.Context) error {
	if err := t.remote.EndGuest(ctx); err != nil {
		return fmt.Errorf("end guest session: %w", err)
	}
	t.signOut()
	return nil
}

func (t *Tracker) Logout(ctx context.Context) error {
	if err := t.remote.Logout(ctx); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	t.signOut()
	return nil
}

// SignOut ends whatever session is active: a guest session is ended, a user
// is logged out. Anonymous callers get nil without a request.
func (t *Tracker) SignOut(ctx context.Context) error {
	switch t.State() {
	case Guest:
		return t.EndGuest(ctx)
	case User:
		return t.Logout(ctx)
	}
	return nil
}

func (t *Tracker) signOut() {
	t.begin(Anonymous, model.Session{})
}

// begin switches identity. Tasks loaded for the previous identity go.
func (t *Tracker) begin(next Status, sess model.Session) {
	t.mu.Lock()
	t.status = next
	t.session = sess
	t.mu.Unlock()
	t.store.Set(func(st *state.State) {
		st.Session = sess
		st.Tasks = nil
		st.TrashedTasks = nil
		st.CurrentTask = nil
	})
}

func (t *Tracker) transition(next Status, sess model.Session) {
	t.mu.Lock()
	t.status = next
	t.session = sess
	t.mu.Unlock()
	t.store.Set(func(st *state.State) { st.Session = sess })
}
