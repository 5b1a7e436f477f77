package models

import "time"

// InviteType distinguishes DM requests from group invitations.
type InviteType string

const (
	InviteDM    InviteType = "DM"
	InviteGroup InviteType = "GROUP"
)

// Valid reports whether the value is a known invite type.
func (t InviteType) Valid() bool {
	return t == InviteDM || t == InviteGroup
}

// Invitation statuses.
const (
	InviteStatusPending  = "pending"
	InviteStatusAccepted = "accepted"
	InviteStatusDeclined = "declined"
)

// Invitation is a pending DM or group invite. Its id is a snowflake minted
// outside the storage transaction; it is serialized as a string because the
// full 63 bits do not survive JSON number parsing in clients.
type Invitation struct {
	InviteID        int64      `db:"invite_id" json:"invite_id,string"`
	SenderID        int64      `db:"sender_id" json:"sender_id"`
	TargetUserID    int64      `db:"target_user_id" json:"target_user_id"`
	TargetChannelID *int64     `db:"target_channel_id" json:"target_channel_id,omitempty"`
	Type            InviteType `db:"type" json:"type"`
	Status          string     `db:"status" json:"status"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
}
