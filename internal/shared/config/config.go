package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all process configuration for the orchestrator gateway.
type Config struct {
	// Server
	Port string
	Env  string

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// Provider API Keys
	OpenAIAPIKey    string
	AnthropicAPIKey string
	GeminiAPIKey    string

	// Model catalog. Empty means the built-in defaults.
	CatalogPath string

	// DefaultTier is the rate-limit tier applied to API keys without one.
	DefaultTier string

	// Router policy
	MaxRetries  int
	MaxWait     time.Duration
	BackoffBase float64

	// Budget ceilings in USD. Zero means unlimited.
	DailyBudgetUSD   float64
	MonthlyBudgetUSD float64

	// Circuit breaker
	BreakerFailureThreshold int
	BreakerCooldown         time.Duration
	BreakerSuccessThreshold int

	// Caller-facing rate limiting
	DefaultRateLimit int

	// Caching
	CacheTTLSeconds int
	CacheEnabled    bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Env:         getEnv("ENV", "development"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379"),

		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),

		CatalogPath: getEnv("MODEL_CATALOG_PATH", ""),
		DefaultTier: getEnv("DEFAULT_TIER", "tier1"),

		MaxRetries:  getEnvInt("ROUTER_MAX_RETRIES", 3),
		MaxWait:     time.Duration(getEnvFloat("ROUTER_MAX_WAIT_SECONDS", 300) * float64(time.Second)),
		BackoffBase: getEnvFloat("ROUTER_BACKOFF_BASE", 2.0),

		DailyBudgetUSD:   getEnvFloat("DAILY_BUDGET_USD", 0),
		MonthlyBudgetUSD: getEnvFloat("MONTHLY_BUDGET_USD", 0),

		BreakerFailureThreshold: getEnvInt("BREAKER_FAILURE_THRESHOLD", 5),
		BreakerCooldown:         time.Duration(getEnvInt("BREAKER_COOLDOWN_SECONDS", 30)) * time.Second,
		BreakerSuccessThreshold: getEnvInt("BREAKER_SUCCESS_THRESHOLD", 1),

		DefaultRateLimit: getEnvInt("DEFAULT_RATE_LIMIT", 100),
		CacheTTLSeconds:  getEnvInt("CACHE_TTL_SECONDS", 3600),
		CacheEnabled:     getEnvBool("CACHE_ENABLED", true),
	}

	// Validate required fields
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	// At least one provider API key is required
	if cfg.OpenAIAPIKey == "" && cfg.AnthropicAPIKey == "" && cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("at least one provider API key is required (OPENAI_API_KEY, ANTHROPIC_API_KEY, or GEMINI_API_KEY)")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
