// Package ledger keeps a bounded, insertion-ordered history of item
// identifiers that have already been reported, and filters new batches
// against it.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"scoutgate/internal/kv"
	"strings"
)

const (
	DefaultKey     = "scout_history"
	DefaultMaxSize = 500
)

// Identifiable is anything the ledger can deduplicate.
type Identifiable interface {
	Identifier() string
}

// Ledger reads and writes the history under a single store key. Without a
// durable session it uses the fallback store, when one is configured.
type Ledger struct {
	key      string
	maxSize  int
	fallback kv.Store
}

// Option configures a Ledger.
type Option func(*Ledger)

func WithKey(key string) Option {
	return func(l *Ledger) {
		if key != "" {
			l.key = key
		}
	}
}

func WithMaxSize(n int) Option {
	return func(l *Ledger) {
		if n > 0 {
			l.maxSize = n
		}
	}
}

// WithFallback keeps history in store while no durable session is available.
func WithFallback(store kv.Store) Option {
	return func(l *Ledger) {
		l.fallback = store
	}
}

// New creates a ledger with the default key and capacity unless overridden.
func New(opts ...Option) *Ledger {
	l := &Ledger{key: DefaultKey, maxSize: DefaultMaxSize}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Ledger) Key() string  { return l.key }
func (l *Ledger) MaxSize() int { return l.maxSize }

// Normalize is the comparison form of an identifier.
func Normalize(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// Load returns the recorded identifiers, oldest first. Any failure reads as
// an empty history.
func (l *Ledger) Load(ctx context.Context, sess *kv.Session) []string {
	store, ok := l.storeFor(sess)
	if !ok {
		return []string{}
	}

	raw, found, err := store.Get(ctx, l.key)
	if err != nil {
		slog.Warn("Failed to read history ledger", "key", l.key, "error", err)
		return []string{}
	}
	if !found || raw == "" {
		return []string{}
	}

	var history []string
	if err := json.Unmarshal([]byte(raw), &history); err != nil {
		slog.Warn("Discarding unreadable history ledger", "key", l.key, "error", err)
		return []string{}
	}
	if history == nil {
		return []string{}
	}
	return history
}

// Record appends ids to history, deduplicates by normalized form keeping the
// first occurrence as written, trims to the most recent MaxSize entries and
// persists the result. It returns the ledger as written.
func (l *Ledger) Record(ctx context.Context, sess *kv.Session, history, ids []string) ([]string, error) {
	merged := make([]string, 0, len(history)+len(ids))
	seen := make(map[string]struct{}, len(history)+len(ids))
	for _, id := range append(append([]string{}, history...), ids...) {
		norm := Normalize(id)
		if norm == "" {
			continue
		}
		if _, dup := seen[norm]; dup {
			continue
		}
		seen[norm] = struct{}{}
		merged = append(merged, strings.TrimSpace(id))
	}
	if len(merged) > l.maxSize {
		merged = merged[len(merged)-l.maxSize:]
	}

	store, ok := l.storeFor(sess)
	if !ok {
		return merged, nil
	}

	data, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("encode history: %w", err)
	}
	if err := store.Set(ctx, l.key, string(data)); err != nil {
		return nil, fmt.Errorf("write history: %w", err)
	}
	return merged, nil
}

func (l *Ledger) storeFor(sess *kv.Session) (kv.Store, bool) {
	if store, ok := sess.Store(); ok {
		return store, true
	}
	if l.fallback != nil {
		return l.fallback, true
	}
	return nil, false
}

// FilterAndRecord keeps the items not already in history, in input order,
// dropping later duplicates within the batch. The surviving identifiers are
// recorded when a store is available; write failures are logged.
func FilterAndRecord[T Identifiable](ctx context.Context, l *Ledger, sess *kv.Session, items []T) []T {
	return FilterAndRecordN(ctx, l, sess, items, 0)
}

// FilterAndRecordN is FilterAndRecord keeping at most limit fresh items, so
// that only the items actually surfaced are remembered. A limit of zero or
// less keeps them all.
func FilterAndRecordN[T Identifiable](ctx context.Context, l *Ledger, sess *kv.Session, items []T, limit int) []T {
	history := l.Load(ctx, sess)

	seen := make(map[string]struct{}, len(history)+len(items))
	for _, id := range history {
		seen[Normalize(id)] = struct{}{}
	}

	fresh := make([]T, 0, len(items))
	ids := make([]string, 0, len(items))
	for _, item := range items {
		if limit > 0 && len(fresh) == limit {
			break
		}
		norm := Normalize(item.Identifier())
		if norm == "" {
			continue
		}
		if _, dup := seen[norm]; dup {
			continue
		}
		seen[norm] = struct{}{}
		fresh = append(fresh, item)
		ids = append(ids, strings.TrimSpace(item.Identifier()))
	}

	if len(fresh) == 0 {
		return fresh
	}
	if _, ok := l.storeFor(sess); !ok {
		slog.Debug("No store for history ledger, nothing recorded", "key", l.key)
		return fresh
	}

	if _, err := l.Record(ctx, sess, history, ids); err != nil {
		slog.Warn("Failed to record history ledger", "key", l.key, "error", err)
	} else {
		slog.Debug("History ledger updated", "key", l.key, "added", len(ids))
	}
	return fresh
}
