package snowflake

import (
	"errors"
	"sync"
	"time"
)

// ErrClockMovedBack is fatal to the allocator instance: once the wall
// clock is observed running backwards no further ids are issued, because
// reusing a millisecond could mint a duplicate or lower id.
var ErrClockMovedBack = errors.New("snowflake: clock moved backwards, refusing to generate id")

// Epoch is the custom epoch (2023-01-01T00:00:00Z) in Unix milliseconds.
const Epoch int64 = 1672531200000

const (
	workerIDBits   = 10
	sequenceBits   = 12
	maxWorkerID    = (1 << workerIDBits) - 1
	sequenceMask   = (1 << sequenceBits) - 1
	workerShift    = sequenceBits
	timestampShift = workerIDBits + sequenceBits
)

// Allocator hands out time-ordered 63-bit ids:
// [41 bits ms since epoch][10 bits worker id][12 bits sequence].
// All mutable state lives behind one mutex; the critical section does no I/O.
type Allocator struct {
	mu       sync.Mutex
	workerID int64
	lastTS   int64
	sequence int64
	now      func() time.Time
}

// NewAllocator builds an allocator for the given worker id (0..1023).
func NewAllocator(workerID int64) (*Allocator, error) {
	if workerID < 0 || workerID > maxWorkerID {
		return nil, errors.New("snowflake: worker id out of range")
	}
	return &Allocator{workerID: workerID, lastTS: -1, now: time.Now}, nil
}

// NextID returns the next id. Consecutive calls on one instance are
// strictly increasing, including calls that land in the same millisecond:
// the sequence increments and, on wrap, the allocator busy-waits for the
// next millisecond.
func (a *Allocator) NextID() (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	ts := a.millis()
	if ts < a.lastTS {
		return 0, ErrClockMovedBack
	}

	if ts == a.lastTS {
		a.sequence = (a.sequence + 1) & sequenceMask
		if a.sequence == 0 {
			for ts <= a.lastTS {
				ts = a.millis()
			}
		}
	} else {
		a.sequence = 0
	}
	a.lastTS = ts

	id := (ts-Epoch)<<timestampShift | a.workerID<<workerShift | a.sequence
	return id, nil
}

func (a *Allocator) millis() int64 {
	return a.now().UnixMilli()
}
