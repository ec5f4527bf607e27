// Package ratelimit throttles abusive clients ahead of the service. It is
// used to slow down password guessing on the credential endpoint: each
// client IP gets a token bucket, and denied requests get standard rate limit
// headers and a JSON 429 body.
//
// This is request throttling only. The two-tier scan quota lives in
// internal/quota and is shared across instances through the key-value store.
package ratelimit

import (
	"scoutgate/internal/models"
	"time"
)

// Limiter defines the rate limiting contract. Implementations must be safe for
// concurrent use.
type Limiter interface {
	// Allow checks whether a request identified by key should be allowed.
	// Returns whether the request is allowed and rate information for
	// populating response headers.
	Allow(key string) (allowed bool, info Info)

	// Close stops background goroutines and releases resources.
	Close()
}

// Info contains rate limit state for populating response headers.
type Info struct {
	Limit      int           // Maximum requests per minute
	Remaining  int           // Approximate tokens remaining
	ResetAt    time.Time     // When the bucket will be full again
	RetryAfter time.Duration // How long to wait (meaningful only when denied)
}

// NewFromConfig builds the limiter described by cfg, or nil when disabled.
func NewFromConfig(cfg models.RateLimitConfig) Limiter {
	if !cfg.Enabled {
		return nil
	}
	return NewMemoryLimiter(cfg.RequestsPerMinute, cfg.BurstSize, cfg.CleanupInterval)
}
