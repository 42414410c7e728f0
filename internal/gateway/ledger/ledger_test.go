package ledger

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrmushfiq/llm0-orchestrator/internal/gateway/catalog"
)

func pricedModel() *catalog.ModelDescriptor {
	return &catalog.ModelDescriptor{
		Provider:              "openai",
		Name:                  "gpt-4o",
		ContextWindowTokens:   128000,
		InputPricePerMillion:  2.5,
		OutputPricePerMillion: 10.0,
	}
}

func TestRecordCostComputesFromPricing(t *testing.T) {
	l := New(nil)

	e := l.RecordCost(pricedModel(), 1_000_000, 500_000)

	// 1M input at $2.50/M plus 0.5M output at $10/M.
	assert.InDelta(t, 7.5, e.CostUSD, 1e-9)
	assert.Equal(t, "openai", e.Provider)
	assert.Equal(t, "gpt-4o", e.Model)
	assert.NotEmpty(t, e.ID)
}

func TestSpentAccumulates(t *testing.T) {
	l := New(nil)
	m := pricedModel()

	l.RecordCost(m, 1_000_000, 0)
	l.RecordCost(m, 1_000_000, 0)

	assert.InDelta(t, 5.0, l.SpentUSD(ScopeDay), 1e-9)
	assert.InDelta(t, 5.0, l.SpentUSD(ScopeMonth), 1e-9)
}

func TestSpentByModel(t *testing.T) {
	l := New(nil)
	a := pricedModel()
	b := pricedModel()
	b.Name = "gpt-4o-mini"
	b.InputPricePerMillion = 0.15

	l.RecordCost(a, 1_000_000, 0)
	l.RecordCost(b, 1_000_000, 0)

	byModel := l.SpentUSDByModel(ScopeDay)
	assert.InDelta(t, 2.5, byModel["openai/gpt-4o"], 1e-9)
	assert.InDelta(t, 0.15, byModel["openai/gpt-4o-mini"], 1e-9)
}

func TestDayScopeExcludesYesterday(t *testing.T) {
	l := New(nil)
	now := time.Date(2026, 3, 10, 1, 0, 0, 0, time.UTC)
	l.SetNow(func() time.Time { return now })

	l.RecordCost(pricedModel(), 1_000_000, 0)
	now = now.Add(24 * time.Hour)

	assert.Zero(t, l.SpentUSD(ScopeDay))
	assert.InDelta(t, 2.5, l.SpentUSD(ScopeMonth), 1e-9)
}

func TestMonthScopeExcludesLastMonth(t *testing.T) {
	l := New(nil)
	now := time.Date(2026, 2, 28, 12, 0, 0, 0, time.UTC)
	l.SetNow(func() time.Time { return now })

	l.RecordCost(pricedModel(), 1_000_000, 0)
	now = time.Date(2026, 3, 1, 0, 0, 1, 0, time.UTC)

	assert.Zero(t, l.SpentUSD(ScopeMonth))
}

func TestCheckBudgetUnlimitedByDefault(t *testing.T) {
	l := New(nil)
	l.RecordCost(pricedModel(), 10_000_000, 10_000_000)
	assert.NoError(t, l.CheckBudget())
}

func TestCheckBudgetDailyCeiling(t *testing.T) {
	l := New(nil, WithDailyBudget(5.0))
	m := pricedModel()

	l.RecordCost(m, 1_000_000, 0)
	require.NoError(t, l.CheckBudget())

	l.RecordCost(m, 1_000_000, 0)
	err := l.CheckBudget()
	var be *BudgetExceededError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, ScopeDay, be.Scope)
	assert.Equal(t, 5.0, be.LimitUSD)
	assert.InDelta(t, 5.0, be.SpentUSD, 1e-9)
}

func TestCheckBudgetMonthlyCeiling(t *testing.T) {
	l := New(nil, WithMonthlyBudget(2.0))

	l.RecordCost(pricedModel(), 1_000_000, 0)
	err := l.CheckBudget()
	var be *BudgetExceededError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, ScopeMonth, be.Scope)
}

func TestRemainingBudget(t *testing.T) {
	l := New(nil, WithDailyBudget(10.0))
	l.RecordCost(pricedModel(), 1_000_000, 0)

	remaining, limited := l.RemainingBudget(ScopeDay)
	require.True(t, limited)
	assert.InDelta(t, 7.5, remaining, 1e-9)

	_, limited = l.RemainingBudget(ScopeMonth)
	assert.False(t, limited)
}

func TestRemainingBudgetFloorsAtZero(t *testing.T) {
	l := New(nil, WithDailyBudget(1.0))
	l.RecordCost(pricedModel(), 1_000_000, 0)

	remaining, limited := l.RemainingBudget(ScopeDay)
	require.True(t, limited)
	assert.Zero(t, remaining)
}

type captureStore struct {
	mu      sync.Mutex
	entries []Entry
	done    chan struct{}
}

func (s *captureStore) InsertCostEntry(e Entry) error {
	s.mu.Lock()
	s.entries = append(s.entries, e)
	s.mu.Unlock()
	close(s.done)
	return nil
}

func TestStoreReceivesEntries(t *testing.T) {
	store := &captureStore{done: make(chan struct{})}
	l := New(nil, WithStore(store))

	e := l.RecordCost(pricedModel(), 100, 50)

	select {
	case <-store.done:
	case <-time.After(time.Second):
		t.Fatal("store was never called")
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	require.Len(t, store.entries, 1)
	assert.Equal(t, e.ID, store.entries[0].ID)
}

func TestConcurrentRecording(t *testing.T) {
	l := New(nil)
	m := pricedModel()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				l.RecordCost(m, 1000, 0)
			}
		}()
	}
	wg.Wait()

	// 1000 calls at 1000 input tokens each: $2.50 total.
	assert.InDelta(t, 2.5, l.SpentUSD(ScopeMonth), 1e-9)
}
