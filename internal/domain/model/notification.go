package model

import "time"

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
)

// Notification is an ephemeral, user-visible projection of an inbound event or
// of a connection-level signal.
type Notification struct {
	ID        uint64    `json:"id"`
	Severity  Severity  `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"timestamp"`
	AutoHide  bool      `json:"auto_hide"`

	// EventID links back to the inbound event, 0 for synthetic notifications.
	EventID uint64 `json:"event_id,omitempty"`
}

// Age returns how long the notification has existed at the given instant.
func (n Notification) Age(now time.Time) time.Duration {
	return now.Sub(n.CreatedAt)
}
