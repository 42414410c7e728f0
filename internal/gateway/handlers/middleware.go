package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/mrmushfiq/llm0-orchestrator/internal/shared/database"
	"github.com/mrmushfiq/llm0-orchestrator/internal/shared/models"
	"github.com/mrmushfiq/llm0-orchestrator/internal/shared/redis"
)

type ctxKey int

const apiKeyCtxKey ctxKey = iota

// APIKeyFromContext returns the authenticated API key, if any.
func APIKeyFromContext(ctx context.Context) (*models.APIKey, bool) {
	key, ok := ctx.Value(apiKeyCtxKey).(*models.APIKey)
	return key, ok
}

type Middleware struct {
	db          *database.DB
	redis       *redis.Client
	defaultTier string
}

func NewMiddleware(db *database.DB, redis *redis.Client, defaultTier string) *Middleware {
	return &Middleware{
		db:          db,
		redis:       redis,
		defaultTier: defaultTier,
	}
}

// AuthMiddleware validates API keys
func (m *Middleware) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Extract API key from Authorization header
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "missing authorization header", http.StatusUnauthorized)
			return
		}

		// Parse Bearer token
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			http.Error(w, "invalid authorization header format", http.StatusUnauthorized)
			return
		}

		apiKeyValue := parts[1]

		// Validate API key
		apiKey, err := m.db.GetAPIKey(r.Context(), apiKeyValue)
		if err != nil {
			http.Error(w, "invalid API key", http.StatusUnauthorized)
			return
		}

		// Keys created before tiers existed fall back to the default.
		if apiKey.Tier == "" {
			apiKey.Tier = m.defaultTier
		}

		ctx := context.WithValue(r.Context(), apiKeyCtxKey, apiKey)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RateLimitMiddleware enforces the caller-facing per-key request limit.
// This guards the gateway edge; provider-facing limits are the router's
// sliding-window tracker.
func (m *Middleware) RateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey, ok := APIKeyFromContext(r.Context())
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		limit := apiKey.RateLimitPerMinute
		if limit <= 0 {
			limit = 100 // fallback default
		}

		exceeded, remaining, err := m.redis.CheckRateLimit(r.Context(), apiKey.ID, limit)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", limit))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))

		if exceeded {
			w.Header().Set("Retry-After", "60")
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// CORSMiddleware handles CORS
func (m *Middleware) CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
