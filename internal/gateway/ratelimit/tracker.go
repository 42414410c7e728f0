// Package ratelimit tracks per-model, per-tier usage against the provider
// quotas declared in the catalog. It uses sliding windows rather than fixed
// buckets so a burst straddling a bucket boundary cannot double the
// effective rate.
package ratelimit

import (
	"math"
	"sync"
	"time"

	"github.com/mrmushfiq/llm0-orchestrator/internal/gateway/catalog"
)

// Window is the trailing interval over which per-minute limits apply.
const Window = time.Minute

// Forever is the wait returned when a request can never be served by the
// tier regardless of how long the caller waits (its token estimate exceeds
// the tokens-per-minute ceiling outright). It always exceeds any sane
// policy wait budget, forcing a fallback.
const Forever = time.Duration(math.MaxInt64)

type entry struct {
	at     time.Time
	tokens int
}

// usageWindow holds the mutable counter state for one (model, tier) pair.
// Entries stay sorted by timestamp; pruning happens lazily on every
// read/write under the window's own lock, so there is no background timer
// and no cross-model contention.
type usageWindow struct {
	mu            sync.Mutex
	entries       []entry
	requestsToday int
	dayBoundary   time.Time
}

// Tracker answers "can this model take one more request of N tokens right
// now?" and records usage after calls complete. Safe for concurrent use;
// each (model, tier) window is guarded by its own lock.
type Tracker struct {
	mu      sync.Mutex
	windows map[string]*usageWindow

	// now is swappable for tests.
	now func() time.Time
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		windows: make(map[string]*usageWindow),
		now:     time.Now,
	}
}

func (t *Tracker) window(model *catalog.ModelDescriptor, tier string) *usageWindow {
	key := model.Key() + "|" + tier

	t.mu.Lock()
	defer t.mu.Unlock()
	w, ok := t.windows[key]
	if !ok {
		w = &usageWindow{}
		t.windows[key] = w
	}
	return w
}

// CanProceed reports whether the model can accept one more request carrying
// estimatedTokens for the tier. When it cannot, the returned wait is the
// time until enough window entries age out to free sufficient capacity
// (zero when allowed, Forever when no amount of waiting helps).
func (t *Tracker) CanProceed(model *catalog.ModelDescriptor, tier string, estimatedTokens int) (bool, time.Duration) {
	limits := model.LimitsFor(tier)
	now := t.now()

	w := t.window(model, tier)
	w.mu.Lock()
	defer w.mu.Unlock()

	w.prune(now)
	w.rollDay(now)

	// Daily ceiling: nothing ages out of it before the next midnight.
	if limits.RequestsPerDay != catalog.Unlimited && w.requestsToday >= limits.RequestsPerDay {
		return false, w.nextMidnight(now).Sub(now)
	}

	if limits.TokensPerMinute != catalog.Unlimited && estimatedTokens > limits.TokensPerMinute {
		return false, Forever
	}

	requestWait := w.waitForRequests(limits.RequestsPerMinute, now)
	tokenWait := w.waitForTokens(limits.TokensPerMinute, estimatedTokens, now)

	wait := requestWait
	if tokenWait > wait {
		wait = tokenWait
	}
	if wait <= 0 {
		return true, 0
	}
	return false, wait
}

// RecordUsage appends a window entry and bumps the daily counter. Called
// only after a call actually consumed provider quota.
func (t *Tracker) RecordUsage(model *catalog.ModelDescriptor, tier string, tokensConsumed int) {
	now := t.now()

	w := t.window(model, tier)
	w.mu.Lock()
	defer w.mu.Unlock()

	w.prune(now)
	w.rollDay(now)
	w.entries = append(w.entries, entry{at: now, tokens: tokensConsumed})
	w.requestsToday++
}

// SetNow overrides the tracker clock. Test hook.
func (t *Tracker) SetNow(now func() time.Time) {
	t.now = now
}

// prune drops entries older than the window. Entries are appended in time
// order, so pruning is a prefix cut.
func (w *usageWindow) prune(now time.Time) {
	cutoff := now.Add(-Window)
	i := 0
	for i < len(w.entries) && !w.entries[i].at.After(cutoff) {
		i++
	}
	if i > 0 {
		w.entries = append(w.entries[:0], w.entries[i:]...)
	}
}

// waitForRequests returns how long until the request count drops below the
// per-minute limit, or zero if one more request fits now.
func (w *usageWindow) waitForRequests(limit int, now time.Time) time.Duration {
	if limit == catalog.Unlimited {
		return 0
	}
	if limit == 0 {
		// A zero ceiling admits nothing; waiting cannot help.
		return Forever
	}
	if len(w.entries) < limit {
		return 0
	}
	// The oldest (len - limit + 1) entries must age out to admit one more.
	idx := len(w.entries) - limit
	return w.entries[idx].at.Add(Window).Sub(now)
}

// waitForTokens returns how long until enough token mass ages out for the
// estimate to fit under the per-minute limit, or zero if it fits now.
func (w *usageWindow) waitForTokens(limit, estimated int, now time.Time) time.Duration {
	if limit == catalog.Unlimited {
		return 0
	}
	inWindow := 0
	for _, e := range w.entries {
		inWindow += e.tokens
	}
	if inWindow+estimated <= limit {
		return 0
	}
	// Walk oldest-first until enough tokens would have expired.
	freedNeeded := inWindow + estimated - limit
	freed := 0
	for _, e := range w.entries {
		freed += e.tokens
		if freed >= freedNeeded {
			return e.at.Add(Window).Sub(now)
		}
	}
	// Unreachable when estimated <= limit, which CanProceed guarantees.
	return Forever
}

// rollDay resets the daily counter when the calendar day has changed since
// the last recorded request.
func (w *usageWindow) rollDay(now time.Time) {
	if w.dayBoundary.IsZero() || !now.Before(w.nextMidnight(w.dayBoundary)) {
		w.dayBoundary = startOfDay(now)
		w.requestsToday = 0
	}
}

func (w *usageWindow) nextMidnight(now time.Time) time.Time {
	return startOfDay(now).AddDate(0, 0, 1)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
