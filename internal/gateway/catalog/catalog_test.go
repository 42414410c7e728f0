package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models.yaml")
	yaml := `
models:
  - provider: openai
    name: gpt-4o
    context_window_tokens: 128000
    max_output_tokens: 16384
    input_price_per_million: 2.5
    output_price_per_million: 10.0
    rate_limits:
      tier1:
        requests_per_minute: 500
        tokens_per_minute: 30000
        requests_per_day: -1
    fallbacks: [claude-sonnet]
  - provider: anthropic
    name: claude-sonnet
    context_window_tokens: 200000
    input_price_per_million: 3.0
    output_price_per_million: 15.0
    rate_limits:
      tier1:
        requests_per_minute: 50
        tokens_per_minute: 40000
        requests_per_day: -1
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cat, err := Load(path)
	require.NoError(t, err)

	m, err := cat.Resolve("openai", "gpt-4o")
	require.NoError(t, err)
	assert.Equal(t, 128000, m.ContextWindowTokens)
	assert.Equal(t, 2.5, m.InputPricePerMillion)
	assert.Equal(t, []string{"claude-sonnet"}, m.Fallbacks)

	limits := m.LimitsFor("tier1")
	assert.Equal(t, 500, limits.RequestsPerMinute)
	assert.Equal(t, Unlimited, limits.RequestsPerDay)
}

func TestResolveNotFound(t *testing.T) {
	cat, err := New(nil)
	require.NoError(t, err)

	_, err = cat.Resolve("openai", "nope")
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "nope", nf.Name)
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name  string
		model *ModelDescriptor
	}{
		{"zero context window", &ModelDescriptor{Provider: "p", Name: "m"}},
		{"negative price", &ModelDescriptor{Provider: "p", Name: "m", ContextWindowTokens: 1, InputPricePerMillion: -1}},
		{"bad rate limit", &ModelDescriptor{Provider: "p", Name: "m", ContextWindowTokens: 1,
			RateLimits: map[string]RateLimitSpec{"t": {RequestsPerMinute: -2}}}},
		{"unknown fallback", &ModelDescriptor{Provider: "p", Name: "m", ContextWindowTokens: 1,
			Fallbacks: []string{"ghost"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New([]*ModelDescriptor{tt.model})
			assert.Error(t, err)
		})
	}
}

func TestDuplicateModel(t *testing.T) {
	m := &ModelDescriptor{Provider: "p", Name: "m", ContextWindowTokens: 1}
	_, err := New([]*ModelDescriptor{m, m})
	assert.Error(t, err)
}

func TestLimitsForMissingTierIsUnlimited(t *testing.T) {
	m := &ModelDescriptor{Provider: "p", Name: "m", ContextWindowTokens: 1}
	limits := m.LimitsFor("enterprise")
	assert.Equal(t, Unlimited, limits.RequestsPerMinute)
	assert.Equal(t, Unlimited, limits.TokensPerMinute)
	assert.Equal(t, Unlimited, limits.RequestsPerDay)
}

func TestListByTier(t *testing.T) {
	cat, err := New([]*ModelDescriptor{
		{Provider: "a", Name: "one", ContextWindowTokens: 1,
			RateLimits: map[string]RateLimitSpec{"free": {RequestsPerMinute: 1}}},
		{Provider: "b", Name: "two", ContextWindowTokens: 1,
			RateLimits: map[string]RateLimitSpec{"paid": {RequestsPerMinute: 1}}},
	})
	require.NoError(t, err)

	free := cat.ListByTier("free")
	require.Len(t, free, 1)
	assert.Equal(t, "one", free[0].Name)
	assert.Empty(t, cat.ListByTier("enterprise"))
}

func TestDefaultCatalogIsValid(t *testing.T) {
	cat := Default()
	assert.NotEmpty(t, cat.Models())

	m, err := cat.ResolveByName("gpt-4o")
	require.NoError(t, err)
	assert.Equal(t, "openai", m.Provider)
	assert.NotEmpty(t, m.Fallbacks)
}
