package domain

import "time"

// DefaultNotificationTTL is how long a notification stays visible.
const DefaultNotificationTTL = 3 * time.Second

// NotificationKind classifies a notification for display.
type NotificationKind string

const (
	NotificationInfo  NotificationKind = "info"
	NotificationError NotificationKind = "error"
)

// Notification is a transient, user-visible message. At most one is active
// per session; a newer notification replaces the older one.
type Notification struct {
	ID        string
	Kind      NotificationKind
	Message   string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// IsZero reports whether n is empty (no notification showing).
func (n Notification) IsZero() bool {
	return n.ID == ""
}
