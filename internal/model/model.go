package model

import (
	"strings"
	"time"
)

// SyntheticIDFloor is the smallest id handed out to optimistic entries.
// Server ids are small autoincrement integers and never reach it.
const SyntheticIDFloor int64 = 1_000_000_000_000_000

type Task struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Completed   bool       `json:"completed"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	Pending     bool       `json:"-"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
}

// Persisted reports whether the task carries a server-assigned id.
func (t Task) Persisted() bool {
	return t.ID > 0 && t.ID < SyntheticIDFloor
}

// Clone returns a copy that shares no pointers with t.
func (t Task) Clone() Task {
	if t.DeletedAt != nil {
		d := *t.DeletedAt
		t.DeletedAt = &d
	}
	return t
}

// Equal compares tasks field by field, using time.Equal for timestamps.
func (t Task) Equal(o Task) bool {
	if t.ID != o.ID || t.Title != o.Title || t.Description != o.Description ||
		t.Completed != o.Completed || t.Pending != o.Pending {
		return false
	}
	if !t.CreatedAt.Equal(o.CreatedAt) || !t.UpdatedAt.Equal(o.UpdatedAt) {
		return false
	}
	switch {
	case t.DeletedAt == nil && o.DeletedAt == nil:
		return true
	case t.DeletedAt == nil || o.DeletedAt == nil:
		return false
	}
	return t.DeletedAt.Equal(*o.DeletedAt)
}

// Draft is the input for creating a task.
type Draft struct {
	Title       string
	Description string
	Completed   bool
}

// Normalize trims the title.
func (d Draft) Normalize() Draft {
	d.Title = strings.TrimSpace(d.Title)
	return d
}

// TaskPatch is a partial update. Nil fields are left untouched.
type TaskPatch struct {
	Title       *string
	Description *string
	Completed   *bool
}

func (p TaskPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Completed == nil
}

// Apply merges the patch into t and returns the result.
func (p TaskPatch) Apply(t Task) Task {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Completed != nil {
		t.Completed = *p.Completed
	}
	return t
}

// Kind discriminates the Session sum type.
type Kind string

const (
	KindNone  Kind = ""
	KindGuest Kind = "guest"
	KindUser  Kind = "user"
)

type Session struct {
	Kind      Kind
	UserID    int64
	Email     string
	GuestID   string
	SessionID string
}

func (s Session) Authenticated() bool {
	return s.Kind == KindGuest || s.Kind == KindUser
}

// DisplayName is the part of the email before the @, or "Guest".
func (s Session) DisplayName() string {
	switch s.Kind {
	case KindUser:
		if name, _, ok := strings.Cut(s.Email, "@"); ok && name != "" {
			return name
		}
		return s.Email
	case KindGuest:
		return "Guest"
	}
	return ""
}

func StringPtr(s string) *string { return &s }
func BoolPtr(b bool) *bool       { return &b }
