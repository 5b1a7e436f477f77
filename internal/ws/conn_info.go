package ws

import "time"

// ConnInfo identifies one live gateway connection.
type ConnInfo struct {
	ConnID      string
	SessionID   string
	UserID      int64
	Username    string
	AvatarURL   string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}
