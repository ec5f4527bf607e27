package kv

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"
)

type memoryEntry struct {
	value     string
	expiresAt time.Time // zero means no expiry
}

// MemoryStore is an in-process Store with lazy expiry: expired entries are
// dropped when they are next touched, never by a background sweep. It is also
// a Connector whose sessions are always available.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithMemoryClock overrides the time source used for expiry.
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(m *MemoryStore) {
		m.now = now
	}
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	m := &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// lookup returns the live entry for key, evicting it if expired.
// Callers must hold m.mu.
func (m *MemoryStore) lookup(key string) (memoryEntry, bool) {
	e, ok := m.entries[key]
	if !ok {
		return memoryEntry{}, false
	}
	if !e.expiresAt.IsZero() && !m.now().Before(e.expiresAt) {
		delete(m.entries, key)
		return memoryEntry{}, false
	}
	return e, true
}

// Get returns the value for key, treating expired entries as absent.
func (m *MemoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.lookup(key)
	if !ok {
		return "", false, nil
	}
	return e.value, true, nil
}

// Set stores value under key and clears any expiry.
func (m *MemoryStore) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = memoryEntry{value: value}
	return nil
}

// Incr adds one to the integer at key, starting from zero when absent.
func (m *MemoryStore) Incr(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.lookup(key)
	var current int64
	if ok {
		n, err := strconv.ParseInt(e.value, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("value at %s is not an integer", key)
		}
		current = n
	}
	current++
	e.value = strconv.FormatInt(current, 10)
	m.entries[key] = e
	return current, nil
}

// Expire sets a time-to-live on an existing key; a non-positive ttl deletes it.
func (m *MemoryStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.lookup(key)
	if !ok {
		return nil
	}
	if ttl <= 0 {
		delete(m.entries, key)
		return nil
	}
	e.expiresAt = m.now().Add(ttl)
	m.entries[key] = e
	return nil
}

// Delete removes key; missing keys are not an error.
func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, key)
	return nil
}

// Len returns the number of live entries.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for key := range m.entries {
		if _, ok := m.lookup(key); ok {
			n++
		}
	}
	return n
}

// Connect always returns an available session.
func (m *MemoryStore) Connect(ctx context.Context) *Session {
	return Available(m, nil)
}

func (m *MemoryStore) Close() error {
	return nil
}
