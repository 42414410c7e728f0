package models

import "time"

// APIKey represents a gateway API key
type APIKey struct {
	ID                 string
	KeyHash            string
	KeyPrefix          string
	Name               string
	Tier               string
	RateLimitPerMinute int
	CacheEnabled       bool
	CacheTTLSeconds    int
	IsActive           bool
	LastUsedAt         *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// RequestLog represents one orchestrated request log entry
type RequestLog struct {
	ID               string
	APIKeyID         *string
	Method           string
	Endpoint         string
	Model            string
	Provider         string
	Tier             string
	CostUSD          float64
	LatencyMs        int
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	Attempts         int
	CacheHit         bool
	FallbackUsed     bool
	StatusCode       int
	ErrorMessage     *string
	CreatedAt        time.Time
}
