package models

import "time"

// ParticipantRole is the role a user holds inside a non-guild channel.
type ParticipantRole string

const (
	RoleAdmin  ParticipantRole = "admin"
	RoleMember ParticipantRole = "member"
)

// Valid reports whether the role is one of the known participant roles.
func (r ParticipantRole) Valid() bool {
	return r == RoleAdmin || r == RoleMember
}

// Channel is a scoped conversation stream. A nil GuildID with
// IsPrivate=false makes it a public global channel; IsPrivate=true makes
// it a DM or private group with explicit membership.
type Channel struct {
	ID         int64     `db:"id" json:"channel_id"`
	GuildID    *int64    `db:"guild_id" json:"guild_id,omitempty"`
	CategoryID *int64    `db:"category_id" json:"category_id,omitempty"`
	Name       string    `db:"name" json:"name"`
	Topic      *string   `db:"topic" json:"topic,omitempty"`
	Type       string    `db:"type" json:"type"`
	IsPrivate  bool      `db:"is_private" json:"is_private"`
	IsGlobal   bool      `db:"is_global" json:"is_global"`
	CreatedBy  int64     `db:"created_by" json:"created_by"`
	Rules      *string   `db:"rules" json:"rules,omitempty"`
	Icon       *string   `db:"icon" json:"icon,omitempty"`
	DMKey      *string   `db:"dm_key" json:"-"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// ChannelParticipant is the authoritative membership row for non-guild channels.
type ChannelParticipant struct {
	ChannelID int64           `db:"channel_id" json:"channel_id"`
	UserID    int64           `db:"user_id" json:"user_id"`
	Role      ParticipantRole `db:"role" json:"role"`
	JoinedAt  time.Time       `db:"joined_at" json:"joined_at"`
}

// ChannelMember is a membership listing entry, resolved per channel scope.
type ChannelMember struct {
	UserID   int64           `db:"user_id" json:"user_id"`
	Username string          `db:"username" json:"username,omitempty"`
	Role     ParticipantRole `db:"role" json:"role"`
}

// Conversation is one entry in the per-user conversation listing.
type Conversation struct {
	ChannelID int64  `json:"channel_id"`
	Name      string `json:"name"`
	GuildName string `json:"guild_name,omitempty"`
	Kind      string `json:"type"`
}
