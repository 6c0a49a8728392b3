package state

import (
	"time"

	"github.com/google/uuid"
)

type NotificationKind string

const (
	KindInfo    NotificationKind = "info"
	KindSuccess NotificationKind = "success"
	KindWarning NotificationKind = "warning"
	KindError   NotificationKind = "error"
)

// DefaultNotificationDuration applies when a notification sets none.
const DefaultNotificationDuration = 3 * time.Second

type Notification struct {
	ID        string
	Kind      NotificationKind
	Message   string
	Duration  time.Duration
	CreatedAt time.Time
}

func (n Notification) equal(o Notification) bool {
	return n.ID == o.ID && n.Kind == o.Kind && n.Message == o.Message &&
		n.Duration == o.Duration && n.CreatedAt.Equal(o.CreatedAt)
}

// AddNotification queues n, filling in an id, the info kind and the default
// duration where unset. It returns the queued notification.
func (s *Store) AddNotification(n Notification) Notification {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Kind == "" {
		n.Kind = KindInfo
	}
	if n.Duration <= 0 {
		n.Duration = DefaultNotificationDuration
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now()
	}
	s.Set(func(st *State) {
		st.Notifications = append(st.Notifications, n)
	})
	return n
}

// Notify is shorthand for AddNotification with a kind and message.
func (s *Store) Notify(kind NotificationKind, msg string) Notification {
	return s.AddNotification(Notification{Kind: kind, Message: msg})
}

// RemoveNotification drops the notification with id. Nothing is published
// when no such notification is queued.
func (s *Store) RemoveNotification(id string) bool {
	removed := false
	s.Set(func(st *State) {
		kept := st.Notifications[:0]
		for _, n := range st.Notifications {
			if n.ID == id {
				removed = true
				continue
			}
			kept = append(kept, n)
		}
		st.Notifications = kept
	})
	return removed
}

// ExpireNotifications removes every notification whose duration has elapsed
// at now and returns how many were removed.
func (s *Store) ExpireNotifications(now time.Time) int {
	removed := 0
	s.Set(func(st *State) {
		kept := st.Notifications[:0]
		for _, n := range st.Notifications {
			if n.Expired(now) {
				removed++
				continue
			}
			kept = append(kept, n)
		}
		st.Notifications = kept
	})
	return removed
}
