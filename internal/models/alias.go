package models

import "time"

// AnonymousAlias maps a user to their stable pseudonym. Exactly one alias
// exists per user; it is created lazily and never rotated.
type AnonymousAlias struct {
	AliasID   string    `db:"alias_id" json:"alias_id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// UserProfile is the local mirror of the identity collaborator's display
// data, refreshed from the authenticated token on connect. Used only for
// rendering sender names in history.
type UserProfile struct {
	UserID    int64  `db:"user_id" json:"user_id"`
	Username  string `db:"username" json:"username"`
	AvatarURL string `db:"avatar_url" json:"avatar_url"`
}

// PlatformRole mirrors platform-elevated roles. Platform admins are always
// listed as members of the designated global channel.
type PlatformRole struct {
	UserID int64  `db:"user_id" json:"user_id"`
	Role   string `db:"role" json:"role"`
}
