package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const sweepEvery = 1024

// MemoryLimiter keeps one token bucket per key in process memory.
type MemoryLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   rate.Limit
	burst   int
	idleTTL time.Duration
	calls   int
	now     func() time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewMemoryLimiter allows perMinute requests per key per minute, refilled
// smoothly, with a full minute's worth available as burst.
func NewMemoryLimiter(perMinute int) *MemoryLimiter {
	return &MemoryLimiter{
		buckets: make(map[string]*bucket),
		limit:   rate.Every(time.Minute / time.Duration(perMinute)),
		burst:   perMinute,
		idleTTL: 10 * time.Minute,
		now:     time.Now,
	}
}

func (m *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.calls++
	if m.calls%sweepEvery == 0 {
		m.sweep(now)
	}

	b, ok := m.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(m.limit, m.burst)}
		m.buckets[key] = b
	}
	b.lastSeen = now

	return b.limiter.AllowN(now, 1), nil
}

// sweep drops buckets idle long enough to have refilled completely.
func (m *MemoryLimiter) sweep(now time.Time) {
	for key, b := range m.buckets {
		if now.Sub(b.lastSeen) > m.idleTTL {
			delete(m.buckets, key)
		}
	}
}
