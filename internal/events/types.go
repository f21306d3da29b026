// Package events defines the push-channel vocabulary shared by the event
// bridge and the development server.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Type names a server-pushed event.
type Type string

const (
	// WebsiteAdded indicates a new website was registered.
	WebsiteAdded Type = "website_added"
	// WebsiteUpdated indicates an existing website was modified.
	WebsiteUpdated Type = "website_updated"
	// WebsiteDeleted indicates a website was removed.
	WebsiteDeleted Type = "website_deleted"
	// ActionStarted indicates a login execution began.
	ActionStarted Type = "action_started"
	// ActionCompleted indicates a login execution finished.
	ActionCompleted Type = "action_completed"
	// ActionHistoryUpdated indicates a website's execution history changed.
	ActionHistoryUpdated Type = "action_history_updated"
	// NotificationAdded indicates a notification config was created.
	NotificationAdded Type = "notification_added"
	// NotificationUpdated indicates a notification config was modified.
	NotificationUpdated Type = "notification_updated"
	// NotificationDeleted indicates a notification config was removed.
	NotificationDeleted Type = "notification_deleted"
	// UserUpdated indicates the session user's data changed.
	UserUpdated Type = "user_updated"
)

// Payload carries event data. WebsiteID is zero for events without a
// website scope.
type Payload struct {
	WebsiteID int64 `json:"website_id,omitempty"`
}

// Envelope is the wire frame for all push-channel events. Delivery is
// at-most-once per physical message; the protocol stays idempotent because
// re-invalidating a stale key is a no-op.
type Envelope struct {
	EventID   uuid.UUID `json:"event_id"`
	Event     Type      `json:"event"`
	Timestamp time.Time `json:"timestamp"`
	Data      Payload   `json:"data"`
}

// New builds a stamped envelope.
func New(event Type, data Payload) Envelope {
	return Envelope{
		EventID:   uuid.New(),
		Event:     event,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}
