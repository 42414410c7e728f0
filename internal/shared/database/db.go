package database

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/mrmushfiq/llm0-orchestrator/internal/gateway/ledger"
	"github.com/mrmushfiq/llm0-orchestrator/internal/shared/models"
)

type DB struct {
	conn *sql.DB
}

// New creates a new database connection
func New(databaseURL string) (*DB, error) {
	conn, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Configure connection pool
	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(10)
	conn.SetConnMaxLifetime(5 * time.Minute)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := conn.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	return &DB{conn: conn}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// GetAPIKey retrieves an API key by its raw key value
func (db *DB) GetAPIKey(ctx context.Context, rawKey string) (*models.APIKey, error) {
	// Hash the key
	hash := sha256.Sum256([]byte(rawKey))
	keyHash := hex.EncodeToString(hash[:])

	query := `
		SELECT id, key_hash, key_prefix, name, tier, rate_limit_per_minute, cache_enabled,
		       cache_ttl_seconds, is_active, last_used_at, created_at, updated_at
		FROM api_keys
		WHERE key_hash = $1 AND is_active = true
	`

	var apiKey models.APIKey
	err := db.conn.QueryRowContext(ctx, query, keyHash).Scan(
		&apiKey.ID,
		&apiKey.KeyHash,
		&apiKey.KeyPrefix,
		&apiKey.Name,
		&apiKey.Tier,
		&apiKey.RateLimitPerMinute,
		&apiKey.CacheEnabled,
		&apiKey.CacheTTLSeconds,
		&apiKey.IsActive,
		&apiKey.LastUsedAt,
		&apiKey.CreatedAt,
		&apiKey.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("invalid API key")
	}
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}

	return &apiKey, nil
}

// UpdateAPIKeyLastUsed updates the last_used_at timestamp
func (db *DB) UpdateAPIKeyLastUsed(ctx context.Context, apiKeyID string) error {
	query := `UPDATE api_keys SET last_used_at = NOW() WHERE id = $1`
	_, err := db.conn.ExecContext(ctx, query, apiKeyID)
	return err
}

// InsertCostEntry persists one completed call's cost record. Implements
// ledger.Store.
func (db *DB) InsertCostEntry(e ledger.Entry) error {
	query := `
		INSERT INTO cost_entries (id, provider, model, input_tokens, output_tokens, cost_usd, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := db.conn.ExecContext(ctx, query,
		e.ID, e.Provider, e.Model, e.InputTokens, e.OutputTokens, e.CostUSD, e.Timestamp)
	return err
}

// LogRequest logs an orchestrated request
func (db *DB) LogRequest(ctx context.Context, log *models.RequestLog) error {
	query := `
		INSERT INTO request_logs (
			api_key_id, method, endpoint, model, provider, tier, cost_usd, latency_ms,
			prompt_tokens, completion_tokens, total_tokens, attempts, cache_hit,
			fallback_used, status_code, error_message
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	_, err := db.conn.ExecContext(ctx,
		query,
		log.APIKeyID,
		log.Method,
		log.Endpoint,
		log.Model,
		log.Provider,
		log.Tier,
		log.CostUSD,
		log.LatencyMs,
		log.PromptTokens,
		log.CompletionTokens,
		log.TotalTokens,
		log.Attempts,
		log.CacheHit,
		log.FallbackUsed,
		log.StatusCode,
		log.ErrorMessage,
	)

	return err
}
