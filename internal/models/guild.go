package models

import "time"

// Guild is a top-level workspace grouping categories and channels.
type Guild struct {
	ID          int64     `db:"id" json:"guild_id"`
	OwnerID     int64     `db:"owner_id" json:"owner_id"`
	Name        string    `db:"name" json:"name"`
	Description *string   `db:"description" json:"description,omitempty"`
	Icon        *string   `db:"icon" json:"icon,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Category orders channels inside a guild.
type Category struct {
	ID       int64  `db:"id" json:"category_id"`
	GuildID  int64  `db:"guild_id" json:"guild_id"`
	Name     string `db:"name" json:"name"`
	Position int    `db:"position" json:"position"`
}

// GuildMember is the authoritative membership row for guild channels.
type GuildMember struct {
	GuildID  int64     `db:"guild_id" json:"guild_id"`
	UserID   int64     `db:"user_id" json:"user_id"`
	Nickname *string   `db:"nickname" json:"nickname,omitempty"`
	JoinedAt time.Time `db:"joined_at" json:"joined_at"`
}

// CategoryGroup is one rung of the guild hierarchy view. A nil ID groups
// the guild's uncategorized channels.
type CategoryGroup struct {
	ID       *int64    `json:"id"`
	Name     string    `json:"name"`
	Channels []Channel `json:"channels"`
}

// GuildHierarchy is the full guild detail response.
type GuildHierarchy struct {
	Guild     Guild           `json:"guild"`
	Hierarchy []CategoryGroup `json:"hierarchy"`
}
