package models

import "time"

// Session is the ephemeral state of one live transport connection. It is
// never persisted; it exists from register until deregister or the
// staleness sweep reaps it.
type Session struct {
	ConnID        string
	UserID        int64
	SessionID     string
	ConnectedAt   time.Time
	LastHeartbeat time.Time
}
