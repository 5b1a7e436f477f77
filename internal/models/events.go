package models

// Client event types accepted over the websocket.
const (
	EventJoinChannel   = "join_channel"
	EventSendMessage   = "send_message"
	EventEditMessage   = "edit_message"
	EventDeleteMessage = "delete_message"
	EventTyping        = "typing"
	EventStopTyping    = "stop_typing"
	EventHeartbeat     = "heartbeat"
)

// Server event types emitted over the websocket.
const (
	EventMessageHistory = "message_history"
	EventReceiveMessage = "receive_message"
	EventMessageUpdated = "message_updated"
	EventMessageDeleted = "message_deleted"
	EventError          = "error"
)

// Attachment references a blob already uploaded to the storage collaborator.
type Attachment struct {
	URL  string `json:"url"`
	Name string `json:"name,omitempty"`
	Kind string `json:"type,omitempty"`
}

// ClientEvent is the inbound envelope read off a websocket connection.
type ClientEvent struct {
	Type       string      `json:"type"`
	ChannelID  int64       `json:"channel_id,omitempty"`
	Content    string      `json:"content,omitempty"`
	Attachment *Attachment `json:"attachment,omitempty"`
	ReplyToID  *int64      `json:"reply_to_id,omitempty"`
	IsAnon     bool        `json:"is_anon,omitempty"`
	MessageID  int64       `json:"message_id,omitempty"`
	NewContent string      `json:"new_content,omitempty"`
}

// ChatEvent is broadcast through websockets.
type ChatEvent struct {
	Type       string        `json:"type"`
	ChannelID  int64         `json:"channel_id,omitempty"`
	Message    *MessageView  `json:"message,omitempty"`
	Messages   []MessageView `json:"messages,omitempty"`
	MessageID  int64         `json:"message_id,omitempty"`
	NewContent string        `json:"new_content,omitempty"`
	User       string        `json:"user,omitempty"`
}

// ErrorEvent reports one failed operation; the connection stays alive.
type ErrorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
