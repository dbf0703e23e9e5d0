package models

import "time"

// Notification kinds for the operator activity feed.
const (
	NotificationKindPassSent   = "pass_sent"
	NotificationKindPassFailed = "pass_failed"
)

// Notification is an entry in a user's in-app activity feed, recorded when
// a background send completes so the initiating operator can see it.
type Notification struct {
	ID             int64      `json:"id"`
	UserID         int64      `json:"user_id"` // member who initiated the action
	Kind           string     `json:"kind"`
	Message        string     `json:"message"`
	RegistrationID *int64     `json:"registration_id,omitempty"`
	EventID        *int64     `json:"event_id,omitempty"`
	ReadAt         *time.Time `json:"read_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}
