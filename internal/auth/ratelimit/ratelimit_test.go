package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fixedClock(l *Limiter, at *time.Time) {
	l.now = func() time.Time { return *at }
}

func TestAllowHonoursBurstPerClient(t *testing.T) {
	l := New(1, 2)
	defer l.Close()
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	fixedClock(l, &clock)

	assert.True(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.2"), "clients have separate buckets")

	clock = clock.Add(time.Second)
	assert.True(t, l.Allow("10.0.0.1"), "one token refilled")
	assert.False(t, l.Allow("10.0.0.1"))
}

func TestResetAndEvict(t *testing.T) {
	l := New(1, 1)
	defer l.Close()
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	fixedClock(l, &clock)

	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
	l.Reset("a")
	assert.True(t, l.Allow("a"))

	l.Allow("b")
	assert.Equal(t, 2, l.Clients())
	clock = clock.Add(idleTTL + time.Second)
	l.evict()
	assert.Zero(t, l.Clients())
}

func TestRetryAfter(t *testing.T) {
	l := New(4, 1)
	defer l.Close()
	assert.Equal(t, 250*time.Millisecond, l.RetryAfter())
	l.Close()
}
