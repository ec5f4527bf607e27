// Package kv provides the durable key-value store adapter shared by the
// credential authority, the quota limiter, the history ledger and the
// schedule guard. A Connector hands out scoped Sessions; a Session is either
// backed by a reachable Store or explicitly unavailable, so callers decide
// between the durable path and their in-process fallback without handling
// connection errors themselves.
package kv

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNotConfigured is the unavailability reason when no backend address is set.
var ErrNotConfigured = errors.New("key-value store not configured")

// Store is the narrow set of key-value operations the service relies on.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the value stored under key. found is false when the key is
	// absent or expired; err is reserved for backend failures.
	Get(ctx context.Context, key string) (value string, found bool, err error)

	// Set stores value under key without an expiry, replacing any previous value
	// and clearing a previous expiry.
	Set(ctx context.Context, key, value string) error

	// Incr atomically increments the integer under key, treating an absent key
	// as zero, and returns the post-increment value.
	Incr(ctx context.Context, key string) (int64, error)

	// Expire sets a relative expiry on an existing key. Missing keys are ignored.
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// Connector opens scoped sessions against a backend.
type Connector interface {
	// Connect never fails: configuration, network and authentication problems
	// produce an unavailable Session carrying the reason.
	Connect(ctx context.Context) *Session

	// Close releases long-lived backend resources such as connection pools.
	Close() error
}

// Session is the outcome of a Connect call. The zero value and a nil pointer
// are both unavailable.
type Session struct {
	store   Store
	reason  error
	release func()
	once    sync.Once
}

// Available wraps a reachable store. release is run at most once by Release
// and may be nil.
func Available(store Store, release func()) *Session {
	return &Session{store: store, release: release}
}

// Unavailable builds a session that carries only the reason it has no store.
func Unavailable(reason error) *Session {
	if reason == nil {
		reason = ErrNotConfigured
	}
	return &Session{reason: reason}
}

// Store returns the backing store and true when the session is available.
func (s *Session) Store() (Store, bool) {
	if s == nil || s.store == nil {
		return nil, false
	}
	return s.store, true
}

// IsAvailable reports whether the session has a reachable store.
func (s *Session) IsAvailable() bool {
	_, ok := s.Store()
	return ok
}

// Reason returns why the session is unavailable, or nil when it is available.
func (s *Session) Reason() error {
	if s == nil {
		return ErrNotConfigured
	}
	if s.store != nil {
		return nil
	}
	return s.reason
}

// Release returns the session's resources to the backend. It is idempotent.
func (s *Session) Release() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		if s.release != nil {
			s.release()
		}
	})
}
