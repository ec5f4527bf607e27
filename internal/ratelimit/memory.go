package ratelimit

import (
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// bucket is one client's token bucket and when it was last used.
type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// MemoryLimiter keeps a token bucket per key in process memory. Buckets idle
// for more than twice the cleanup interval are evicted by a background
// goroutine.
type MemoryLimiter struct {
	rate            rate.Limit
	burst           int
	perMinute       int
	cleanupInterval time.Duration
	now             func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
	done    chan struct{}
	closed  bool
}

// NewMemoryLimiter creates a limiter refilling requestsPerMinute tokens a
// minute up to burst, and starts the eviction goroutine. Non-positive
// arguments fall back to one request a minute, a burst of one and a one
// minute cleanup interval.
func NewMemoryLimiter(requestsPerMinute int, burst int, cleanupInterval time.Duration) *MemoryLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 1
	}
	if burst <= 0 {
		burst = 1
	}
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}

	m := &MemoryLimiter{
		rate:            rate.Every(time.Minute / time.Duration(requestsPerMinute)),
		burst:           burst,
		perMinute:       requestsPerMinute,
		cleanupInterval: cleanupInterval,
		now:             time.Now,
		buckets:         make(map[string]*bucket),
		done:            make(chan struct{}),
	}
	go m.cleanup()
	return m
}

// Allow takes a token from key's bucket if one is available.
func (m *MemoryLimiter) Allow(key string) (bool, Info) {
	now := m.now()

	m.mu.Lock()
	b, ok := m.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(m.rate, m.burst)}
		m.buckets[key] = b
	}
	b.lastSeen = now
	m.mu.Unlock()

	allowed := b.limiter.AllowN(now, 1)
	tokens := b.limiter.TokensAt(now)

	info := Info{
		Limit:     m.perMinute,
		Remaining: int(math.Max(0, math.Floor(tokens))),
		ResetAt:   now,
	}
	if missing := float64(m.burst) - tokens; missing > 0 {
		info.ResetAt = now.Add(time.Duration(missing / float64(m.rate) * float64(time.Second)))
	}

	if !allowed {
		// Time until one whole token is available again.
		info.RetryAfter = time.Duration((1 - tokens) / float64(m.rate) * float64(time.Second))
	}

	return allowed, info
}

// Len reports how many client buckets are currently tracked.
func (m *MemoryLimiter) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.buckets)
}

// Close stops the background cleanup goroutine. It is safe to call twice.
func (m *MemoryLimiter) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.done)
	}
}

func (m *MemoryLimiter) cleanup() {
	ticker := time.NewTicker(m.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.evictIdle(m.now())
		}
	}
}

// evictIdle drops buckets unused since twice the cleanup interval before now.
func (m *MemoryLimiter) evictIdle(now time.Time) {
	cutoff := now.Add(-2 * m.cleanupInterval)
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, b := range m.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(m.buckets, key)
		}
	}
}
