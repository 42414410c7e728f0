package breaker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBreaker() (*Breaker, *time.Time) {
	b := New(Options{FailureThreshold: 3, Cooldown: 30 * time.Second})
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	b.SetNow(func() time.Time { return now })
	return b, &now
}

func TestStartsClosed(t *testing.T) {
	b, _ := newTestBreaker()
	assert.Equal(t, StateClosed, b.State())
	assert.True(t, b.Allow())
}

func TestOpensAtFailureThreshold(t *testing.T) {
	b, _ := newTestBreaker()

	b.RecordFailure()
	b.RecordFailure()
	assert.Equal(t, StateClosed, b.State())
	assert.True(t, b.Allow())

	b.RecordFailure()
	assert.Equal(t, StateOpen, b.State())
	assert.False(t, b.Allow())
}

func TestSuccessResetsFailureStreak(t *testing.T) {
	b, _ := newTestBreaker()

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	assert.Zero(t, b.ConsecutiveFailures())

	b.RecordFailure()
	b.RecordFailure()
	assert.Equal(t, StateClosed, b.State())
}

func TestHalfOpenAfterCooldown(t *testing.T) {
	b, now := newTestBreaker()
	for i := 0; i < 3; i++ {
		b.RecordFailure()
	}

	*now = now.Add(29 * time.Second)
	assert.False(t, b.Allow())

	*now = now.Add(time.Second)
	assert.True(t, b.Allow())
	assert.Equal(t, StateHalfOpen, b.State())
}

func TestHalfOpenAdmitsSingleProbe(t *testing.T) {
	b, now := newTestBreaker()
	for i := 0; i < 3; i++ {
		b.RecordFailure()
	}
	*now = now.Add(30 * time.Second)

	require.True(t, b.Allow())
	assert.False(t, b.Allow())
	assert.False(t, b.Allow())
}

func TestProbeSuccessCloses(t *testing.T) {
	b, now := newTestBreaker()
	for i := 0; i < 3; i++ {
		b.RecordFailure()
	}
	*now = now.Add(30 * time.Second)

	require.True(t, b.Allow())
	b.RecordSuccess()
	assert.Equal(t, StateClosed, b.State())
	assert.True(t, b.Allow())
}

func TestProbeFailureReopens(t *testing.T) {
	b, now := newTestBreaker()
	for i := 0; i < 3; i++ {
		b.RecordFailure()
	}
	*now = now.Add(30 * time.Second)

	require.True(t, b.Allow())
	b.RecordFailure()
	assert.Equal(t, StateOpen, b.State())
	assert.False(t, b.Allow())

	// Cooldown restarts from the reopen.
	*now = now.Add(30 * time.Second)
	assert.True(t, b.Allow())
}

func TestCancelProbeReleasesSlot(t *testing.T) {
	b, now := newTestBreaker()
	for i := 0; i < 3; i++ {
		b.RecordFailure()
	}
	*now = now.Add(30 * time.Second)

	require.True(t, b.Allow())
	require.False(t, b.Allow())

	b.CancelProbe()
	assert.True(t, b.Allow())
}

func TestSuccessThresholdAboveOne(t *testing.T) {
	b := New(Options{FailureThreshold: 1, Cooldown: time.Second, SuccessThreshold: 2})
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	b.SetNow(func() time.Time { return now })

	b.RecordFailure()
	now = now.Add(time.Second)

	require.True(t, b.Allow())
	b.RecordSuccess()
	assert.Equal(t, StateHalfOpen, b.State())

	require.True(t, b.Allow())
	b.RecordSuccess()
	assert.Equal(t, StateClosed, b.State())
}

func TestSetIsolatesModels(t *testing.T) {
	set := NewSet(Options{FailureThreshold: 1})

	set.ForModel("openai/gpt-4o").RecordFailure()

	assert.Equal(t, StateOpen, set.ForModel("openai/gpt-4o").State())
	assert.Equal(t, StateClosed, set.ForModel("anthropic/claude").State())
}

func TestSetReturnsSameBreaker(t *testing.T) {
	set := NewSet(DefaultOptions())
	assert.Same(t, set.ForModel("k"), set.ForModel("k"))
}
