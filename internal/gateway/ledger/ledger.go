// Package ledger accumulates per-call cost records and enforces optional
// daily/monthly spend ceilings. The ledger is a single append-only log
// behind one lock: budget enforcement needs a process-wide consistent view
// of spend, not a per-model one.
package ledger

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mrmushfiq/llm0-orchestrator/internal/gateway/catalog"
)

const tokensPerMillion = 1e6

// Scope selects the aggregation window for budget queries.
type Scope string

const (
	ScopeDay   Scope = "day"
	ScopeMonth Scope = "month"
)

// Entry is one completed call's financial record. Immutable once created.
type Entry struct {
	ID           string    `json:"id"`
	Provider     string    `json:"provider"`
	Model        string    `json:"model"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	CostUSD      float64   `json:"cost_usd"`
	Timestamp    time.Time `json:"timestamp"`
}

// BudgetExceededError is returned when a configured spend ceiling has been
// reached. The router treats it as a hard stop: no fallback is attempted.
type BudgetExceededError struct {
	Scope    Scope
	LimitUSD float64
	SpentUSD float64
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("%s budget exceeded: spent $%.4f of $%.4f", e.Scope, e.SpentUSD, e.LimitUSD)
}

// Store persists entries out-of-band. Implemented by the Postgres layer;
// persistence failures never affect the in-memory ledger.
type Store interface {
	InsertCostEntry(e Entry) error
}

// Ledger records costs and answers budget queries. Safe for concurrent use.
type Ledger struct {
	catalog *catalog.Catalog

	mu      sync.Mutex
	entries []Entry

	// Zero means unlimited.
	dailyBudgetUSD   float64
	monthlyBudgetUSD float64

	store Store
	now   func() time.Time
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithDailyBudget sets the daily spend ceiling in USD.
func WithDailyBudget(usd float64) Option {
	return func(l *Ledger) { l.dailyBudgetUSD = usd }
}

// WithMonthlyBudget sets the monthly spend ceiling in USD.
func WithMonthlyBudget(usd float64) Option {
	return func(l *Ledger) { l.monthlyBudgetUSD = usd }
}

// WithStore attaches a persistence layer for cost entries.
func WithStore(s Store) Option {
	return func(l *Ledger) { l.store = s }
}

// New creates a ledger backed by the catalog's pricing.
func New(c *catalog.Catalog, opts ...Option) *Ledger {
	l := &Ledger{
		catalog: c,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// RecordCost computes and appends the cost of a completed call using the
// catalog's per-million-token pricing.
func (l *Ledger) RecordCost(model *catalog.ModelDescriptor, inputTokens, outputTokens int) Entry {
	cost := float64(inputTokens)/tokensPerMillion*model.InputPricePerMillion +
		float64(outputTokens)/tokensPerMillion*model.OutputPricePerMillion

	e := Entry{
		ID:           uuid.NewString(),
		Provider:     model.Provider,
		Model:        model.Name,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		CostUSD:      cost,
		Timestamp:    l.now(),
	}

	l.mu.Lock()
	l.entries = append(l.entries, e)
	store := l.store
	l.mu.Unlock()

	if store != nil {
		// Persistence is best-effort and must not block callers.
		go func() { _ = store.InsertCostEntry(e) }()
	}
	return e
}

// SpentUSD returns the total recorded spend within the scope's current
// calendar window.
func (l *Ledger) SpentUSD(scope Scope) float64 {
	since := l.scopeStart(scope)

	l.mu.Lock()
	defer l.mu.Unlock()

	var total float64
	for _, e := range l.entries {
		if !e.Timestamp.Before(since) {
			total += e.CostUSD
		}
	}
	return total
}

// SpentUSDByModel returns per-model spend within the scope.
func (l *Ledger) SpentUSDByModel(scope Scope) map[string]float64 {
	since := l.scopeStart(scope)

	l.mu.Lock()
	defer l.mu.Unlock()

	out := make(map[string]float64)
	for _, e := range l.entries {
		if !e.Timestamp.Before(since) {
			out[e.Provider+"/"+e.Model] += e.CostUSD
		}
	}
	return out
}

// RemainingBudget returns the remaining spend for the scope. The second
// return is false when no ceiling is configured for that scope.
func (l *Ledger) RemainingBudget(scope Scope) (float64, bool) {
	limit := l.budgetFor(scope)
	if limit <= 0 {
		return 0, false
	}
	remaining := limit - l.SpentUSD(scope)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, true
}

// CheckBudget returns a BudgetExceededError when any configured ceiling has
// been reached, nil otherwise.
func (l *Ledger) CheckBudget() error {
	for _, scope := range []Scope{ScopeDay, ScopeMonth} {
		limit := l.budgetFor(scope)
		if limit <= 0 {
			continue
		}
		spent := l.SpentUSD(scope)
		if spent >= limit {
			return &BudgetExceededError{Scope: scope, LimitUSD: limit, SpentUSD: spent}
		}
	}
	return nil
}

// SetNow overrides the ledger clock. Test hook.
func (l *Ledger) SetNow(now func() time.Time) {
	l.now = now
}

func (l *Ledger) budgetFor(scope Scope) float64 {
	if scope == ScopeDay {
		return l.dailyBudgetUSD
	}
	return l.monthlyBudgetUSD
}

func (l *Ledger) scopeStart(scope Scope) time.Time {
	now := l.now()
	y, m, d := now.Date()
	if scope == ScopeDay {
		return time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	}
	return time.Date(y, m, 1, 0, 0, 0, 0, now.Location())
}
