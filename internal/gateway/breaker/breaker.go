// Package breaker implements a per-model circuit breaker. A model that
// fails persistently for reasons unrelated to rate limiting (bad auth,
// provider outage) is suspended so its retry budget goes to models that can
// actually serve.
package breaker

import (
	"sync"
	"time"
)

// State is the breaker position.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// Options configure a breaker.
type Options struct {
	// FailureThreshold is the number of consecutive failures that opens
	// the breaker.
	FailureThreshold int
	// Cooldown is how long the breaker stays open before admitting a
	// half-open probe.
	Cooldown time.Duration
	// SuccessThreshold is the number of consecutive half-open successes
	// required to close again.
	SuccessThreshold int
}

// DefaultOptions mirror the thresholds used for provider outage detection.
func DefaultOptions() Options {
	return Options{
		FailureThreshold: 5,
		Cooldown:         30 * time.Second,
		SuccessThreshold: 1,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.FailureThreshold <= 0 {
		o.FailureThreshold = def.FailureThreshold
	}
	if o.Cooldown <= 0 {
		o.Cooldown = def.Cooldown
	}
	if o.SuccessThreshold <= 0 {
		o.SuccessThreshold = def.SuccessThreshold
	}
	return o
}

// Breaker is the state machine for one model. Safe for concurrent use.
type Breaker struct {
	mu   sync.Mutex
	opts Options

	state                State
	consecutiveFailures  int
	consecutiveSuccesses int
	openedAt             time.Time
	probeInFlight        bool

	now func() time.Time
}

// New creates a closed breaker.
func New(opts Options) *Breaker {
	return &Breaker{
		opts:  opts.withDefaults(),
		state: StateClosed,
		now:   time.Now,
	}
}

// Allow reports whether a call may be attempted. An open breaker whose
// cooldown has elapsed moves to half-open and admits exactly one probe;
// further calls are rejected until the probe resolves.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.opts.Cooldown {
			return false
		}
		b.state = StateHalfOpen
		b.openedAt = time.Time{}
		b.probeInFlight = true
		return true
	case StateHalfOpen:
		if b.probeInFlight {
			return false
		}
		b.probeInFlight = true
		return true
	}
	return false
}

// RecordSuccess notes a successful call. Closed-state successes are
// idempotent: the failure count stays at zero.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutiveFailures = 0

	switch b.state {
	case StateHalfOpen:
		b.probeInFlight = false
		b.consecutiveSuccesses++
		if b.consecutiveSuccesses >= b.opts.SuccessThreshold {
			b.state = StateClosed
			b.consecutiveSuccesses = 0
		}
	case StateClosed:
		b.consecutiveSuccesses = 0
	}
}

// RecordFailure notes a failed call. Any half-open failure reopens the
// breaker immediately.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutiveSuccesses = 0

	switch b.state {
	case StateHalfOpen:
		b.probeInFlight = false
		b.open()
	case StateClosed:
		b.consecutiveFailures++
		if b.consecutiveFailures >= b.opts.FailureThreshold {
			b.open()
		}
	}
}

// CancelProbe releases an admitted half-open probe that was never sent,
// e.g. when the router left the model for rate-limit reasons before
// issuing the trial call.
func (b *Breaker) CancelProbe() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateHalfOpen {
		b.probeInFlight = false
	}
}

func (b *Breaker) open() {
	b.state = StateOpen
	b.openedAt = b.now()
}

// State returns the current breaker position.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// ConsecutiveFailures returns the current failure streak.
func (b *Breaker) ConsecutiveFailures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.consecutiveFailures
}

// SetNow overrides the breaker clock. Test hook.
func (b *Breaker) SetNow(now func() time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.now = now
}

// Set is a keyed collection of breakers, one per model. Breakers are
// created lazily; contention on one model never blocks another beyond the
// map lookup.
type Set struct {
	mu       sync.Mutex
	opts     Options
	breakers map[string]*Breaker
}

// NewSet creates an empty breaker set.
func NewSet(opts Options) *Set {
	return &Set{
		opts:     opts.withDefaults(),
		breakers: make(map[string]*Breaker),
	}
}

// ForModel returns the breaker for a model key, creating it if needed.
func (s *Set) ForModel(key string) *Breaker {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.breakers[key]
	if !ok {
		b = New(s.opts)
		s.breakers[key] = b
	}
	return b
}
