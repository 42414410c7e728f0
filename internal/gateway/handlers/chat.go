package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mrmushfiq/llm0-orchestrator/internal/gateway/cache"
	"github.com/mrmushfiq/llm0-orchestrator/internal/gateway/catalog"
	"github.com/mrmushfiq/llm0-orchestrator/internal/gateway/ledger"
	"github.com/mrmushfiq/llm0-orchestrator/internal/gateway/providers"
	"github.com/mrmushfiq/llm0-orchestrator/internal/gateway/router"
	"github.com/mrmushfiq/llm0-orchestrator/internal/shared/database"
	"github.com/mrmushfiq/llm0-orchestrator/internal/shared/models"
)

type ChatHandler struct {
	router      *router.Router
	providerMgr *providers.Manager
	ledger      *ledger.Ledger
	cache       *cache.Cache
	db          *database.DB
	policy      router.Policy
	log         *logrus.Entry
}

func NewChatHandler(rt *router.Router, providerMgr *providers.Manager, led *ledger.Ledger,
	cache *cache.Cache, db *database.DB, policy router.Policy, log *logrus.Logger) *ChatHandler {
	return &ChatHandler{
		router:      rt,
		providerMgr: providerMgr,
		ledger:      led,
		cache:       cache,
		db:          db,
		policy:      policy,
		log:         log.WithField("component", "chat_handler"),
	}
}

// HandleChatCompletion handles POST /v1/chat/completions
func (h *ChatHandler) HandleChatCompletion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	apiKey, ok := APIKeyFromContext(ctx)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req providers.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	chain, err := h.router.ChainFor(req.Model)
	if err != nil {
		http.Error(w, fmt.Sprintf("unknown model: %s", req.Model), http.StatusBadRequest)
		return
	}

	// Handle streaming separately
	if req.Stream {
		h.handleStreamingChat(w, r, apiKey, req, chain)
		return
	}

	// Check cache if enabled
	var cacheHit bool
	var resp *providers.ChatResponse
	if apiKey.CacheEnabled {
		cachedResp, err := h.cache.Get(ctx, req)
		if err == nil {
			resp = cachedResp
			resp.CostUSD = 0 // Cache hits are free
			cacheHit = true
		}
	}

	var result *router.Result
	if !cacheHit {
		result, err = h.router.Execute(ctx, req, chain, apiKey.Tier, h.policy)
		if err != nil {
			status := statusForError(err)
			http.Error(w, fmt.Sprintf("orchestration error: %v", err), status)
			h.logRequest(apiKey, req, nil, nil, time.Since(startTime), false, err, status)
			return
		}

		resp = result.Response
		resp.CostUSD = result.Cost.CostUSD

		// Cache the response if enabled
		if apiKey.CacheEnabled {
			ttl := time.Duration(apiKey.CacheTTLSeconds) * time.Second
			h.cache.Set(ctx, req, resp, ttl)
		}
	}

	totalLatency := int(time.Since(startTime).Milliseconds())
	resp.LatencyMs = totalLatency

	// Set headers
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Cache-Hit", fmt.Sprintf("%v", cacheHit))
	w.Header().Set("X-Cost-USD", fmt.Sprintf("%.6f", resp.CostUSD))
	w.Header().Set("X-Latency-Ms", fmt.Sprintf("%d", totalLatency))
	if result != nil {
		w.Header().Set("X-Provider", result.Model.Provider)
		w.Header().Set("X-Model", result.Model.Name)
		w.Header().Set("X-Attempts", fmt.Sprintf("%d", result.Attempts))
		if result.FallbackUsed {
			w.Header().Set("X-Fallback", "true")
		}
	}

	h.logRequest(apiKey, req, resp, result, time.Since(startTime), cacheHit, nil, http.StatusOK)

	json.NewEncoder(w).Encode(resp)
}

// handleStreamingChat handles streaming chat completions. Streams go
// direct to the primary model's provider: a half-sent stream cannot be
// retried against a fallback, so budget and breaker gating happen up front
// and the outcome feeds back into the primary's breaker and usage window.
func (h *ChatHandler) handleStreamingChat(w http.ResponseWriter, r *http.Request, apiKey *models.APIKey, req providers.ChatRequest, chain []router.ModelRef) {
	ctx := r.Context()
	startTime := time.Now()

	if err := h.ledger.CheckBudget(); err != nil {
		http.Error(w, fmt.Sprintf("orchestration error: %v", err), statusForError(err))
		return
	}

	primary := chain[0]
	provider, err := h.providerMgr.Get(primary.Provider)
	if err != nil {
		http.Error(w, fmt.Sprintf("provider error: %v", err), http.StatusBadGateway)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	// A half-sent stream cannot fail over, but a known-failing primary
	// should not be hammered either: the breaker gates the stream the same
	// way Execute gates a buffered call.
	br := h.router.BreakerFor(primary)
	if !br.Allow() {
		http.Error(w, fmt.Sprintf("orchestration error: %v", &router.CircuitOpenError{Model: primary}),
			http.StatusServiceUnavailable)
		return
	}

	stream, err := provider.ChatCompletionStream(ctx, req)
	if err != nil {
		br.RecordFailure()
		http.Error(w, fmt.Sprintf("streaming error: %v", err), http.StatusBadGateway)
		return
	}
	defer stream.Close()

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	// Stream chunks
	var usage *ledger.Entry
	for {
		chunk, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			// A caller disconnect says nothing about the provider's health.
			if ctx.Err() != nil {
				br.CancelProbe()
			} else {
				br.RecordFailure()
			}
			fmt.Fprintf(w, "data: {\"error\": \"%s\"}\n\n", err.Error())
			flusher.Flush()
			return
		}

		// Track usage from the final chunk that carries it
		if chunk.Usage != nil {
			desc, derr := h.router.Descriptor(primary)
			if derr == nil {
				e := h.ledger.RecordCost(desc, chunk.Usage.PromptTokens, chunk.Usage.CompletionTokens)
				usage = &e
			}
			h.router.RecordUsage(primary, apiKey.Tier, chunk.Usage.TotalTokens)
		}

		data, _ := json.Marshal(chunk)
		fmt.Fprintf(w, "data: %s\n\n", string(data))
		flusher.Flush()
	}

	br.RecordSuccess()

	fmt.Fprintf(w, "data: [DONE]\n\n")
	flusher.Flush()

	resp := &providers.ChatResponse{}
	if usage != nil {
		resp.CostUSD = usage.CostUSD
		resp.Usage.PromptTokens = usage.InputTokens
		resp.Usage.CompletionTokens = usage.OutputTokens
		resp.Usage.TotalTokens = usage.InputTokens + usage.OutputTokens
	}

	h.logRequest(apiKey, req, resp, nil, time.Since(startTime), false, nil, http.StatusOK)
}

// statusForError maps the router's typed errors to HTTP statuses.
func statusForError(err error) int {
	var budgetErr *ledger.BudgetExceededError
	var deadlineErr *router.DeadlineExceededError
	var exhaustedErr *router.AllModelsExhaustedError
	var notFoundErr *catalog.NotFoundError

	switch {
	case errors.As(err, &budgetErr):
		return http.StatusPaymentRequired
	case errors.As(err, &deadlineErr):
		return http.StatusGatewayTimeout
	case errors.As(err, &exhaustedErr):
		return http.StatusBadGateway
	case errors.As(err, &notFoundErr):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// logRequest logs the request to the database
func (h *ChatHandler) logRequest(apiKey *models.APIKey, req providers.ChatRequest, resp *providers.ChatResponse,
	result *router.Result, duration time.Duration, cacheHit bool, err error, status int) {

	entry := &models.RequestLog{
		APIKeyID:   &apiKey.ID,
		Method:     "POST",
		Endpoint:   "/v1/chat/completions",
		Model:      req.Model,
		Tier:       apiKey.Tier,
		LatencyMs:  int(duration.Milliseconds()),
		CacheHit:   cacheHit,
		StatusCode: status,
	}

	if resp != nil {
		entry.CostUSD = resp.CostUSD
		entry.PromptTokens = resp.Usage.PromptTokens
		entry.CompletionTokens = resp.Usage.CompletionTokens
		entry.TotalTokens = resp.Usage.TotalTokens
	}

	if result != nil {
		entry.Provider = result.Model.Provider
		entry.Model = result.Model.Name
		entry.Attempts = result.Attempts
		entry.FallbackUsed = result.FallbackUsed
	}

	if err != nil {
		errMsg := err.Error()
		entry.ErrorMessage = &errMsg
	}

	// Log asynchronously to avoid blocking
	go func() {
		if dberr := h.db.LogRequest(context.Background(), entry); dberr != nil {
			h.log.WithError(dberr).Warn("failed to persist request log")
		}
	}()

	go h.db.UpdateAPIKeyLastUsed(context.Background(), apiKey.ID)
}
