package gateway

import (
	"hash/fnv"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"guild-chat-service/internal/models"
)

const shardCount = 16

type sessionShard struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session
}

type userShard struct {
	mu    sync.RWMutex
	conns map[int64]map[string]struct{}
}

// Registry tracks live transport sessions. State is process-local: a
// multi-instance deployment has per-instance blind spots until this is
// hoisted into a shared store. Both indices are sharded so registry
// traffic does not funnel through one lock as connection count grows.
type Registry struct {
	sessions [shardCount]*sessionShard
	users    [shardCount]*userShard
	now      func() time.Time
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	r := &Registry{now: time.Now}
	for i := range r.sessions {
		r.sessions[i] = &sessionShard{sessions: make(map[string]*models.Session)}
	}
	for i := range r.users {
		r.users[i] = &userShard{conns: make(map[int64]map[string]struct{})}
	}
	return r
}

func (r *Registry) sessionShard(connID string) *sessionShard {
	h := fnv.New32a()
	h.Write([]byte(connID))
	return r.sessions[h.Sum32()%shardCount]
}

func (r *Registry) userShard(userID int64) *userShard {
	return r.users[uint64(userID)%shardCount]
}

// Register creates a session for the connection and indexes it under the
// user. A user may hold any number of concurrent connections; all of them
// receive fan-out.
func (r *Registry) Register(connID string, userID int64) string {
	now := r.now()
	session := &models.Session{
		ConnID:        connID,
		UserID:        userID,
		SessionID:     uuid.NewString(),
		ConnectedAt:   now,
		LastHeartbeat: now,
	}

	ss := r.sessionShard(connID)
	ss.mu.Lock()
	ss.sessions[connID] = session
	ss.mu.Unlock()

	us := r.userShard(userID)
	us.mu.Lock()
	if _, ok := us.conns[userID]; !ok {
		us.conns[userID] = make(map[string]struct{})
	}
	us.conns[userID][connID] = struct{}{}
	us.mu.Unlock()

	return session.SessionID
}

// Deregister removes the session and prunes the user's index entry once
// its last connection is gone.
func (r *Registry) Deregister(connID string) {
	ss := r.sessionShard(connID)
	ss.mu.Lock()
	session, ok := ss.sessions[connID]
	if ok {
		delete(ss.sessions, connID)
	}
	ss.mu.Unlock()
	if !ok {
		return
	}

	us := r.userShard(session.UserID)
	us.mu.Lock()
	if conns, ok := us.conns[session.UserID]; ok {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(us.conns, session.UserID)
		}
	}
	us.mu.Unlock()
}

// Heartbeat refreshes the session's liveness timestamp. A false return
// means the connection is unknown or already reaped and the client must
// reconnect.
func (r *Registry) Heartbeat(connID string) bool {
	ss := r.sessionShard(connID)
	ss.mu.Lock()
	defer ss.mu.Unlock()
	session, ok := ss.sessions[connID]
	if !ok {
		return false
	}
	session.LastHeartbeat = r.now()
	return true
}

// Lookup returns the session for a connection.
func (r *Registry) Lookup(connID string) (models.Session, bool) {
	ss := r.sessionShard(connID)
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	session, ok := ss.sessions[connID]
	if !ok {
		return models.Session{}, false
	}
	return *session, true
}

// OnlineUsers returns a presence snapshot of every user with at least one
// live connection.
func (r *Registry) OnlineUsers() []int64 {
	var online []int64
	for _, us := range r.users {
		us.mu.RLock()
		for userID := range us.conns {
			online = append(online, userID)
		}
		us.mu.RUnlock()
	}
	return online
}

// SweepStale reaps sessions whose last heartbeat is older than the window
// and returns the reaped connection ids. Runs out-of-band; it never blocks
// message delivery.
func (r *Registry) SweepStale(window time.Duration) []string {
	cutoff := r.now().Add(-window)
	var stale []string
	for _, ss := range r.sessions {
		ss.mu.RLock()
		for connID, session := range ss.sessions {
			if session.LastHeartbeat.Before(cutoff) {
				stale = append(stale, connID)
			}
		}
		ss.mu.RUnlock()
	}
	for _, connID := range stale {
		r.Deregister(connID)
	}
	return stale
}

// StartSweeper reaps stale sessions every interval until stop is closed.
func (r *Registry) StartSweeper(interval, window time.Duration, stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if reaped := r.SweepStale(window); len(reaped) > 0 {
					log.Printf("gateway: reaped %d stale sessions", len(reaped))
				}
			case <-stop:
				return
			}
		}
	}()
}
