package models

import "time"

// SenderType is the closed set of ways a message author can be presented.
type SenderType string

const (
	SenderUser SenderType = "user"
	SenderAnon SenderType = "anon"
)

// Valid reports whether the value is one of the known sender types.
func (s SenderType) Valid() bool {
	return s == SenderUser || s == SenderAnon
}

// AnonymousDisplayName is shown in place of the real profile for anon messages.
const AnonymousDisplayName = "Anonymous Member"

// Message is a persisted chat message. The author's alias is recorded on
// every row regardless of anonymity; sender_type decides whether the owner
// is revealed when the row is rendered. Rows are soft-deleted, never removed.
type Message struct {
	ID         int64      `db:"id" json:"message_id"`
	ChannelID  int64      `db:"channel_id" json:"channel_id"`
	AliasID    string     `db:"alias_id" json:"alias_id"`
	SenderType SenderType `db:"sender_type" json:"sender_type"`
	Text       string     `db:"message_text" json:"content"`
	FileURL    *string    `db:"file_url" json:"file_url,omitempty"`
	ReplyToID  *int64     `db:"reply_to_id" json:"reply_to_id,omitempty"`
	IsEdited   bool       `db:"is_edited" json:"is_edited"`
	IsDeleted  bool       `db:"is_deleted" json:"is_deleted"`
	SentAt     time.Time  `db:"sent_at" json:"sent_at"`
}

// HistoryMessage couples a message row with its author's resolved display
// data. The owner id never leaves the server for anonymous messages.
type HistoryMessage struct {
	Message
	OwnerID   int64   `db:"owner_id" json:"-"`
	Username  *string `db:"username" json:"-"`
	AvatarURL *string `db:"avatar_url" json:"-"`
}

// Profile is the public-facing sender block attached to outbound events.
type Profile struct {
	Name string `json:"name"`
	Pic  string `json:"pic"`
}

// MessageView is the outward shape of a message. For anonymous senders the
// real user id is never populated.
type MessageView struct {
	MessageID  int64      `json:"message_id"`
	ChannelID  int64      `json:"channel_id"`
	AliasID    string     `json:"alias_id"`
	SenderID   *int64     `json:"sender_id,omitempty"`
	SenderType SenderType `json:"sender_type"`
	Content    string     `json:"content"`
	FileURL    *string    `json:"file_url,omitempty"`
	ReplyToID  *int64     `json:"reply_to_id,omitempty"`
	IsEdited   bool       `json:"is_edited"`
	Self       bool       `json:"self"`
	Profile    Profile    `json:"user_profile"`
	SentAt     time.Time  `json:"sent_at"`
}
