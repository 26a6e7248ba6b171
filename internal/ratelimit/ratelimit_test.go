package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func setupLimiter(t testing.TB, perMinute int) (*Limiter, *time.Time) {
	t.Helper()

	now := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	l := New(perMinute)
	l.now = func() time.Time { return now }

	return l, &now
}

func TestLimiter_Allow(t *testing.T) {
	t.Run("admits up to the threshold", func(t *testing.T) {
		l, _ := setupLimiter(t, 3)

		assert.True(t, l.Allow(1))
		assert.True(t, l.Allow(1))
		assert.True(t, l.Allow(1))
		assert.False(t, l.Allow(1))
	})

	t.Run("users are independent", func(t *testing.T) {
		l, _ := setupLimiter(t, 1)

		assert.True(t, l.Allow(1))
		assert.False(t, l.Allow(1))
		assert.True(t, l.Allow(2))
	})

	t.Run("rejected call does not count as an event", func(t *testing.T) {
		l, now := setupLimiter(t, 2)

		assert.True(t, l.Allow(1))
		assert.True(t, l.Allow(1))

		// Hammer the limiter while blocked; none of these may extend the window.
		for i := 0; i < 10; i++ {
			assert.False(t, l.Allow(1))
		}

		*now = now.Add(61 * time.Second)

		assert.True(t, l.Allow(1))
		assert.True(t, l.Allow(1))
		assert.False(t, l.Allow(1))
	})

	t.Run("events expire after the window", func(t *testing.T) {
		l, now := setupLimiter(t, 2)

		assert.True(t, l.Allow(1))
		*now = now.Add(30 * time.Second)
		assert.True(t, l.Allow(1))
		assert.False(t, l.Allow(1))

		// The first event leaves the window, freeing one slot.
		*now = now.Add(31 * time.Second)
		assert.True(t, l.Allow(1))
		assert.False(t, l.Allow(1))
	})

	t.Run("expired events are evicted", func(t *testing.T) {
		l, now := setupLimiter(t, 5)

		for i := 0; i < 5; i++ {
			assert.True(t, l.Allow(1))
		}

		*now = now.Add(2 * time.Minute)
		assert.True(t, l.Allow(1))

		l.mu.Lock()
		defer l.mu.Unlock()
		assert.Len(t, l.events[1], 1)
	})
}
