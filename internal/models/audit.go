package models

import "time"

// AuditLogEntry is one append-only audit row. Entries are never updated
// or removed.
type AuditLogEntry struct {
	ID         int64     `db:"id" json:"id"`
	ChannelID  *int64    `db:"channel_id" json:"channel_id,omitempty"`
	UserID     int64     `db:"user_id" json:"user_id"`
	ActionType string    `db:"action_type" json:"action_type"`
	Details    string    `db:"details" json:"details"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
