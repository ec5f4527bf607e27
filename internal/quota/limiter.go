// Package quota enforces the two-tier (hourly, daily) quota on gated scans.
//
// Counters live in the durable key-value store under per-bucket keys. When
// the session is unavailable, or the store fails before the hourly counter
// has been incremented, the limiter answers from a process-wide Window
// instead. A use that reached the store is never counted again in the window.
package quota

import (
	"context"
	"fmt"
	"log/slog"
	"scoutgate/internal/kv"
	"strconv"
	"time"
)

const (
	DefaultHourlyLimit = 10
	DefaultDailyLimit  = 20

	// MessageLimitExceeded is the user-facing text for a denied request.
	MessageLimitExceeded = "Request limit reached, please try again tomorrow"

	hourKeyPrefix = "rate:hour:"
	dayKeyPrefix  = "rate:day:"

	hourTTL = time.Hour
	dayTTL  = 24 * time.Hour
)

// Limits caps the number of scans per hour bucket and per UTC day.
type Limits struct {
	Hourly int
	Daily  int
}

// DefaultLimits returns the 10 per hour / 20 per day policy.
func DefaultLimits() Limits {
	return Limits{Hourly: DefaultHourlyLimit, Daily: DefaultDailyLimit}
}

func (l Limits) exceeded(hourly, daily int) bool {
	return hourly >= l.Hourly || daily >= l.Daily
}

// Decision is the outcome of CheckAndIncrement. Counts are post-increment
// when allowed and unchanged when denied.
type Decision struct {
	Allowed     bool
	Message     string
	HourlyCount int
	DailyCount  int
}

func denied(hourly, daily int) Decision {
	return Decision{
		Allowed:     false,
		Message:     MessageLimitExceeded,
		HourlyCount: hourly,
		DailyCount:  daily,
	}
}

// Status is a read-only snapshot of the counters.
type Status struct {
	HourlyCount int
	DailyCount  int
	Limits      Limits
	// Durable is false when the counts came from the in-process window.
	Durable bool
}

// Limiter checks and records quota usage.
type Limiter struct {
	limits Limits
	window *Window
	now    func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// WithWindow shares a fallback window between limiters.
func WithWindow(w *Window) Option {
	return func(l *Limiter) {
		if w != nil {
			l.window = w
		}
	}
}

// NewLimiter creates a limiter. Non-positive limits fall back to the defaults.
func NewLimiter(limits Limits, opts ...Option) *Limiter {
	if limits.Hourly <= 0 {
		limits.Hourly = DefaultHourlyLimit
	}
	if limits.Daily <= 0 {
		limits.Daily = DefaultDailyLimit
	}

	l := &Limiter{
		limits: limits,
		window: NewWindow(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Limits returns the configured limits.
func (l *Limiter) Limits() Limits {
	return l.limits
}

// CheckAndIncrement denies when either counter has reached its limit and
// otherwise records one use. It never returns an error; store failures that
// happen before anything was written fall back to the in-process window for
// this call only.
func (l *Limiter) CheckAndIncrement(ctx context.Context, sess *kv.Session) Decision {
	now := l.now()

	if store, ok := sess.Store(); ok {
		decision, err := l.checkStore(ctx, store, now)
		if err == nil {
			return decision
		}
		slog.Warn("Durable quota check failed, using in-process window", "error", err)
	}

	return l.window.CheckAndIncrement(now, l.limits)
}

func (l *Limiter) checkStore(ctx context.Context, store kv.Store, now time.Time) (Decision, error) {
	hourKey, dayKey := bucketKeys(now)

	hourly, daily, err := readCounts(ctx, store, hourKey, dayKey)
	if err != nil {
		return Decision{}, err
	}
	if l.limits.exceeded(hourly, daily) {
		return denied(hourly, daily), nil
	}

	newHourly, err := store.Incr(ctx, hourKey)
	if err != nil {
		return Decision{}, fmt.Errorf("increment %s: %w", hourKey, err)
	}

	// The use is recorded from here on. Later failures leave the durable
	// counts short but must not charge the window as well.
	decision := Decision{Allowed: true, HourlyCount: int(newHourly), DailyCount: daily + 1}
	if err := store.Expire(ctx, hourKey, hourTTL); err != nil {
		slog.Warn("Failed to set quota counter expiry", "key", hourKey, "error", err)
	}
	newDaily, err := incrWithExpiry(ctx, store, dayKey, dayTTL)
	switch {
	case err != nil:
		slog.Warn("Daily quota counter not updated", "error", err)
	case newDaily > 0:
		decision.DailyCount = int(newDaily)
	}
	return decision, nil
}

// Status reports the current counters without incrementing them.
func (l *Limiter) Status(ctx context.Context, sess *kv.Session) Status {
	now := l.now()

	if store, ok := sess.Store(); ok {
		hourKey, dayKey := bucketKeys(now)
		hourly, daily, err := readCounts(ctx, store, hourKey, dayKey)
		if err == nil {
			return Status{HourlyCount: hourly, DailyCount: daily, Limits: l.limits, Durable: true}
		}
		slog.Warn("Durable quota status failed, using in-process window", "error", err)
	}

	hourly, daily := l.window.Counts(now)
	return Status{HourlyCount: hourly, DailyCount: daily, Limits: l.limits}
}

func readCounts(ctx context.Context, store kv.Store, hourKey, dayKey string) (int, int, error) {
	hourly, err := readCount(ctx, store, hourKey)
	if err != nil {
		return 0, 0, err
	}
	daily, err := readCount(ctx, store, dayKey)
	if err != nil {
		return 0, 0, err
	}
	return hourly, daily, nil
}

// readCount treats absent and malformed values as zero.
func readCount(ctx context.Context, store kv.Store, key string) (int, error) {
	raw, found, err := store.Get(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", key, err)
	}
	if !found {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		slog.Warn("Ignoring malformed quota counter", "key", key)
		return 0, nil
	}
	return n, nil
}

// incrWithExpiry returns the new count even when only the expiry failed.
func incrWithExpiry(ctx context.Context, store kv.Store, key string, ttl time.Duration) (int64, error) {
	n, err := store.Incr(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("increment %s: %w", key, err)
	}
	if err := store.Expire(ctx, key, ttl); err != nil {
		return n, fmt.Errorf("expire %s: %w", key, err)
	}
	return n, nil
}

func hourBucket(now time.Time) int64 {
	return now.UnixMilli() / int64(time.Hour/time.Millisecond)
}

func dayBucket(now time.Time) string {
	return now.UTC().Format(time.DateOnly)
}

func bucketKeys(now time.Time) (hourKey, dayKey string) {
	return hourKeyPrefix + strconv.FormatInt(hourBucket(now), 10), dayKeyPrefix + dayBucket(now)
}
