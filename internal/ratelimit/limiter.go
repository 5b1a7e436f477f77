package ratelimit

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Default admission policy: 5 messages per 2 seconds for each
// (channel, user) pair.
const (
	DefaultCapacity = 5
	DefaultWindow   = 2 * time.Second
)

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter is a per-key token bucket pool. Buckets refill continuously at
// capacity/window tokens per second, capped at capacity, so bursts recover
// deterministically. The pool mutex only guards map access; refill and
// consume contend per key inside rate.Limiter. The limiter is a pure
// cadence gate and never inspects content.
type Limiter struct {
	mu       sync.Mutex
	buckets  map[string]*entry
	capacity int
	window   time.Duration
	now      func() time.Time
}

// NewLimiter builds a pool with the given bucket capacity and refill window.
func NewLimiter(capacity int, window time.Duration) *Limiter {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Limiter{
		buckets:  make(map[string]*entry),
		capacity: capacity,
		window:   window,
		now:      time.Now,
	}
}

// Key builds the bucket key for a (channel, user) pair. Separate pairs get
// independent buckets so channels and users never starve each other.
func Key(channelID, userID int64) string {
	return fmt.Sprintf("rate:channel:%d:user:%d", channelID, userID)
}

// Check consumes one token from the key's bucket, reporting whether the
// submission is admitted.
func (l *Limiter) Check(key string) bool {
	return l.get(key).Allow()
}

func (l *Limiter) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.buckets[key]; ok {
		e.lastSeen = l.now()
		return e.limiter
	}
	refill := rate.Limit(float64(l.capacity) / l.window.Seconds())
	e := &entry{limiter: rate.NewLimiter(refill, l.capacity), lastSeen: l.now()}
	l.buckets[key] = e
	return e.limiter
}

// Sweep drops buckets idle for longer than maxIdle and returns how many
// were evicted. Idle buckets are full by construction, so dropping them
// never loosens the policy.
func (l *Limiter) Sweep(maxIdle time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-maxIdle)
	evicted := 0
	for key, e := range l.buckets {
		if e.lastSeen.Before(cutoff) {
			delete(l.buckets, key)
			evicted++
		}
	}
	return evicted
}

// Len reports the current number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// StartSweeper evicts idle keys every interval until stop is closed.
func (l *Limiter) StartSweeper(interval, maxIdle time.Duration, stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				l.Sweep(maxIdle)
			case <-stop:
				return
			}
		}
	}()
}
