package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrmushfiq/llm0-orchestrator/internal/gateway/catalog"
)

func testModel(rpm, tpm, rpd int) *catalog.ModelDescriptor {
	return &catalog.ModelDescriptor{
		Provider:            "test",
		Name:                "model",
		ContextWindowTokens: 128000,
		RateLimits: map[string]catalog.RateLimitSpec{
			"tier1": {RequestsPerMinute: rpm, TokensPerMinute: tpm, RequestsPerDay: rpd},
		},
	}
}

// fixedClock drives the tracker in tests.
type fixedClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFixedClock() *fixedClock {
	return &fixedClock{t: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
}

func (c *fixedClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fixedClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestTracker() (*Tracker, *fixedClock) {
	tr := NewTracker()
	clock := newFixedClock()
	tr.SetNow(clock.now)
	return tr, clock
}

func TestAllowsUnderLimit(t *testing.T) {
	tr, _ := newTestTracker()
	m := testModel(2, catalog.Unlimited, catalog.Unlimited)

	allowed, wait := tr.CanProceed(m, "tier1", 100)
	assert.True(t, allowed)
	assert.Zero(t, wait)
}

func TestRequestLimitWaitsForWindowSlide(t *testing.T) {
	tr, clock := newTestTracker()
	m := testModel(2, catalog.Unlimited, catalog.Unlimited)

	tr.RecordUsage(m, "tier1", 100)
	clock.advance(10 * time.Second)
	tr.RecordUsage(m, "tier1", 100)

	// Third request within the same minute must wait until the oldest
	// entry ages out, 50s from now.
	allowed, wait := tr.CanProceed(m, "tier1", 100)
	require.False(t, allowed)
	assert.Equal(t, 50*time.Second, wait)

	clock.advance(wait)
	allowed, wait = tr.CanProceed(m, "tier1", 100)
	assert.True(t, allowed)
	assert.Zero(t, wait)
}

func TestTokenLimitWaitsForEnoughMass(t *testing.T) {
	tr, clock := newTestTracker()
	m := testModel(catalog.Unlimited, 1000, catalog.Unlimited)

	tr.RecordUsage(m, "tier1", 600)
	clock.advance(20 * time.Second)
	tr.RecordUsage(m, "tier1", 300)

	// 500 more tokens need the first 600-token entry out of the window.
	allowed, wait := tr.CanProceed(m, "tier1", 500)
	require.False(t, allowed)
	assert.Equal(t, 40*time.Second, wait)

	clock.advance(wait)
	allowed, _ = tr.CanProceed(m, "tier1", 500)
	assert.True(t, allowed)
}

func TestNeverAdmitsOverLimit(t *testing.T) {
	tr, clock := newTestTracker()
	m := testModel(5, 1000, catalog.Unlimited)

	// Hammer the tracker; whenever it says yes, record the usage and
	// verify the window never exceeds either limit.
	granted := 0
	tokensGranted := 0
	for i := 0; i < 50; i++ {
		if allowed, _ := tr.CanProceed(m, "tier1", 100); allowed {
			tr.RecordUsage(m, "tier1", 100)
			granted++
			tokensGranted += 100
		}
		clock.advance(time.Second)
	}

	// 50s of simulated time: at most one full window plus the slide.
	assert.LessOrEqual(t, granted, 10)
	assert.LessOrEqual(t, tokensGranted, 2000)
}

func TestEstimateLargerThanLimitIsForever(t *testing.T) {
	tr, _ := newTestTracker()
	m := testModel(catalog.Unlimited, 1000, catalog.Unlimited)

	allowed, wait := tr.CanProceed(m, "tier1", 1001)
	require.False(t, allowed)
	assert.Equal(t, Forever, wait)
}

func TestDailyLimitWaitsUntilMidnight(t *testing.T) {
	tr, _ := newTestTracker()
	m := testModel(catalog.Unlimited, catalog.Unlimited, 2)

	tr.RecordUsage(m, "tier1", 10)
	tr.RecordUsage(m, "tier1", 10)

	// Clock is at 12:00 UTC; the counter resets at midnight.
	allowed, wait := tr.CanProceed(m, "tier1", 10)
	require.False(t, allowed)
	assert.Equal(t, 12*time.Hour, wait)
}

func TestDailyCounterResetsAcrossMidnight(t *testing.T) {
	tr, clock := newTestTracker()
	m := testModel(catalog.Unlimited, catalog.Unlimited, 2)

	tr.RecordUsage(m, "tier1", 10)
	tr.RecordUsage(m, "tier1", 10)
	clock.advance(13 * time.Hour)

	allowed, _ := tr.CanProceed(m, "tier1", 10)
	assert.True(t, allowed)
}

func TestUnlimitedSentinel(t *testing.T) {
	tr, _ := newTestTracker()
	m := testModel(catalog.Unlimited, catalog.Unlimited, catalog.Unlimited)

	for i := 0; i < 100; i++ {
		allowed, _ := tr.CanProceed(m, "tier1", 1_000_000)
		require.True(t, allowed)
		tr.RecordUsage(m, "tier1", 1_000_000)
	}
}

func TestZeroLimitNeverAdmits(t *testing.T) {
	tr, _ := newTestTracker()

	m := testModel(0, catalog.Unlimited, catalog.Unlimited)
	allowed, wait := tr.CanProceed(m, "tier1", 10)
	require.False(t, allowed)
	assert.Equal(t, Forever, wait)

	m = testModel(catalog.Unlimited, 0, catalog.Unlimited)
	allowed, wait = tr.CanProceed(m, "tier1", 10)
	require.False(t, allowed)
	assert.Equal(t, Forever, wait)
}

func TestMissingTierIsUnlimited(t *testing.T) {
	tr, _ := newTestTracker()
	m := testModel(1, 1, 1)

	allowed, _ := tr.CanProceed(m, "unknown-tier", 1_000_000)
	assert.True(t, allowed)
}

func TestIndependentModelsDoNotInterfere(t *testing.T) {
	tr, _ := newTestTracker()
	a := testModel(1, catalog.Unlimited, catalog.Unlimited)
	b := testModel(1, catalog.Unlimited, catalog.Unlimited)
	b.Name = "other"

	tr.RecordUsage(a, "tier1", 10)

	allowed, _ := tr.CanProceed(b, "tier1", 10)
	assert.True(t, allowed)
}

func TestConcurrentAccess(t *testing.T) {
	tr := NewTracker()
	m := testModel(catalog.Unlimited, catalog.Unlimited, catalog.Unlimited)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				tr.CanProceed(m, "tier1", 10)
				tr.RecordUsage(m, "tier1", 10)
			}
		}()
	}
	wg.Wait()
}
