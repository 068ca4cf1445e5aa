package session

import (
	"sync"
	"time"
)

// throttle is a sliding-window limiter on code requests. Each Login or
// Register makes the service send an e-mail, so the client caps them.
type throttle struct {
	mu     sync.Mutex
	events []time.Time
	limit  int
	window time.Duration
}

// newThrottle returns nil (no limit) when limit <= 0.
func newThrottle(limit int, window time.Duration) *throttle {
	if limit <= 0 || window <= 0 {
		return nil
	}
	return &throttle{
		events: make([]time.Time, 0, limit),
		limit:  limit,
		window: window,
	}
}

// allow records an event at now if permitted. When denied it returns how long
// until the oldest event leaves the window.
func (t *throttle) allow(now time.Time) (bool, time.Duration) {
	if t == nil {
		return true, 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	cut := now.Add(-t.window)
	dst := t.events[:0]
	for _, e := range t.events {
		if e.After(cut) {
			dst = append(dst, e)
		}
	}
	t.events = dst

	if len(t.events) >= t.limit {
		return false, t.events[0].Add(t.window).Sub(now)
	}
	t.events = append(t.events, now)
	return true, 0
}
