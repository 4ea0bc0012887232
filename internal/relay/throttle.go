package relay

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// snapshotThrottle caps host snapshot fan-out per room. Snapshots inside the
// minimum interval are dropped, not queued: the next one supersedes them
// anyway. Terminal snapshots bypass the cap so race end is never delayed.
type snapshotThrottle struct {
	mu    sync.Mutex
	last  map[string]time.Time
	min   time.Duration
	clock clockwork.Clock
}

func newSnapshotThrottle(min time.Duration, clock clockwork.Clock) *snapshotThrottle {
	return &snapshotThrottle{
		last:  make(map[string]time.Time),
		min:   min,
		clock: clock,
	}
}

// allow reports whether a snapshot for roomID may be relayed now and, if so,
// stamps the room.
func (t *snapshotThrottle) allow(roomID string, bypass bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	if !bypass {
		if last, ok := t.last[roomID]; ok && now.Sub(last) < t.min {
			return false
		}
	}
	t.last[roomID] = now
	return true
}

// forget releases a room's stamp after close or reset.
func (t *snapshotThrottle) forget(roomID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.last, roomID)
}
