package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/mrmushfiq/llm0-orchestrator/internal/gateway/ledger"
)

// UsageHandler serves spend aggregates from the cost ledger.
type UsageHandler struct {
	ledger *ledger.Ledger
}

func NewUsageHandler(led *ledger.Ledger) *UsageHandler {
	return &UsageHandler{ledger: led}
}

type scopeUsage struct {
	SpentUSD     float64            `json:"spent_usd"`
	RemainingUSD *float64           `json:"remaining_usd,omitempty"`
	ByModel      map[string]float64 `json:"by_model"`
}

type usageResponse struct {
	Day   scopeUsage `json:"day"`
	Month scopeUsage `json:"month"`
}

// HandleUsage handles GET /v1/usage
func (h *UsageHandler) HandleUsage(w http.ResponseWriter, r *http.Request) {
	resp := usageResponse{
		Day:   h.scope(ledger.ScopeDay),
		Month: h.scope(ledger.ScopeMonth),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (h *UsageHandler) scope(s ledger.Scope) scopeUsage {
	usage := scopeUsage{
		SpentUSD: h.ledger.SpentUSD(s),
		ByModel:  h.ledger.SpentUSDByModel(s),
	}
	if remaining, limited := h.ledger.RemainingBudget(s); limited {
		usage.RemainingUSD = &remaining
	}
	return usage
}
