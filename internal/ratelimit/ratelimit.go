// Package ratelimit provides an in-memory, per-user sliding-window
// admission gate. State lives only in process memory and is lost on
// restart; with a single pipeline instance per deployment that is acceptable.
package ratelimit

import (
	"sync"
	"time"
)

// Limiter admits at most perMinute events per user within any trailing
// window. A rejected call is not recorded, so being blocked never counts
// against future windows.
type Limiter struct {
	perMinute int
	window    time.Duration
	now       func() time.Time

	mu     sync.Mutex
	events map[int64][]time.Time
}

// New returns a limiter with a trailing one-minute window.
func New(perMinute int) *Limiter {
	return &Limiter{
		perMinute: perMinute,
		window:    time.Minute,
		now:       time.Now,
		events:    make(map[int64][]time.Time),
	}
}

// Allow reports whether the user may proceed and, if so, records the event.
// Expired events are evicted lazily on each call for that user.
func (l *Limiter) Allow(userID int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	events := l.events[userID]
	kept := events[:0]
	for _, t := range events {
		if !t.Before(cutoff) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= l.perMinute {
		l.events[userID] = kept
		return false
	}

	l.events[userID] = append(kept, now)
	return true
}
