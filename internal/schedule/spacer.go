// Package schedule spaces out scheduled scans so that overlapping triggers
// within the minimum interval are skipped.
package schedule

import (
	"context"
	"log/slog"
	"scoutgate/internal/kv"
	"time"
)

const (
	DefaultKey         = "weekly_scout_last_execution"
	DefaultMinInterval = 6 * 24 * time.Hour
)

// Spacer remembers the last scheduled run in the durable store. Every failure
// to read the marker is permissive: the run goes ahead.
type Spacer struct {
	key         string
	minInterval time.Duration
	now         func() time.Time
}

// Option configures a Spacer.
type Option func(*Spacer)

func WithKey(key string) Option {
	return func(s *Spacer) {
		if key != "" {
			s.key = key
		}
	}
}

func WithMinInterval(d time.Duration) Option {
	return func(s *Spacer) {
		if d > 0 {
			s.minInterval = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Spacer) {
		s.now = now
	}
}

func NewSpacer(opts ...Option) *Spacer {
	s := &Spacer{
		key:         DefaultKey,
		minInterval: DefaultMinInterval,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Spacer) MinInterval() time.Duration {
	return s.minInterval
}

// ShouldSkip reports whether a run happened less than the minimum interval
// ago, along with the time of that run when it is known.
func (s *Spacer) ShouldSkip(ctx context.Context, sess *kv.Session) (bool, time.Time) {
	store, ok := sess.Store()
	if !ok {
		return false, time.Time{}
	}

	raw, found, err := store.Get(ctx, s.key)
	if err != nil {
		slog.Warn("Failed to read last scheduled run, proceeding", "key", s.key, "error", err)
		return false, time.Time{}
	}
	if !found {
		return false, time.Time{}
	}

	last, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		slog.Warn("Ignoring unparsable last scheduled run", "key", s.key, "value", raw)
		return false, time.Time{}
	}

	elapsed := s.now().Sub(last)
	return elapsed >= 0 && elapsed < s.minInterval, last
}

// MarkRun records now as the last scheduled run. Failures are logged only.
func (s *Spacer) MarkRun(ctx context.Context, sess *kv.Session) {
	store, ok := sess.Store()
	if !ok {
		slog.Debug("No store for schedule marker, run not recorded")
		return
	}

	stamp := s.now().UTC().Format(time.RFC3339Nano)
	if err := store.Set(ctx, s.key, stamp); err != nil {
		slog.Warn("Failed to record scheduled run", "key", s.key, "error", err)
	}
}
