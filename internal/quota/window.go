package quota

import (
	"sync"
	"time"
)

type hourEntry struct {
	at    time.Time
	count int
}

type dayEntry struct {
	date  string
	count int
}

// Window is the in-process quota ledger used when no durable store is
// reachable. It is process-local and does not coordinate across instances.
type Window struct {
	mu     sync.Mutex
	hourly []hourEntry
	daily  []dayEntry
}

// NewWindow creates an empty window.
func NewWindow() *Window {
	return &Window{}
}

// prune drops hourly entries at least one hour old and daily entries not
// dated today. Callers hold w.mu.
func (w *Window) prune(now time.Time) {
	today := dayBucket(now)

	hourly := w.hourly[:0]
	for _, e := range w.hourly {
		if now.Sub(e.at) < time.Hour {
			hourly = append(hourly, e)
		}
	}
	w.hourly = hourly

	daily := w.daily[:0]
	for _, e := range w.daily {
		if e.date == today {
			daily = append(daily, e)
		}
	}
	w.daily = daily
}

func (w *Window) sums() (hourly, daily int) {
	for _, e := range w.hourly {
		hourly += e.count
	}
	for _, e := range w.daily {
		daily += e.count
	}
	return hourly, daily
}

// Counts prunes and returns the current hourly and daily totals.
func (w *Window) Counts(now time.Time) (hourly, daily int) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.prune(now)
	return w.sums()
}

// CheckAndIncrement applies the same policy as the durable path against the
// in-process entries. The check and the increment happen under one lock.
func (w *Window) CheckAndIncrement(now time.Time, limits Limits) Decision {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.prune(now)
	hourly, daily := w.sums()
	if limits.exceeded(hourly, daily) {
		return denied(hourly, daily)
	}

	w.hourly = append(w.hourly, hourEntry{at: now, count: 1})

	today := dayBucket(now)
	recorded := false
	for i := range w.daily {
		if w.daily[i].date == today {
			w.daily[i].count++
			recorded = true
			break
		}
	}
	if !recorded {
		w.daily = append(w.daily, dayEntry{date: today, count: 1})
	}

	return Decision{Allowed: true, HourlyCount: hourly + 1, DailyCount: daily + 1}
}
