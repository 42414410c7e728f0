package catalog

// Default returns the built-in catalog used when no catalog file is
// configured. Limits mirror the public free/tier1 quotas of each provider;
// prices are USD per million tokens.
func Default() *Catalog {
	c, err := New([]*ModelDescriptor{
		{
			Provider:              "openai",
			Name:                  "gpt-4o",
			ContextWindowTokens:   128000,
			MaxOutputTokens:       16384,
			InputPricePerMillion:  2.50,
			OutputPricePerMillion: 10.00,
			RateLimits: map[string]RateLimitSpec{
				"free":  {RequestsPerMinute: 3, TokensPerMinute: 40000, RequestsPerDay: 200},
				"tier1": {RequestsPerMinute: 500, TokensPerMinute: 30000, RequestsPerDay: Unlimited},
			},
			Fallbacks: []string{"claude-sonnet-4-5-20250929", "gemini-2.5-pro"},
		},
		{
			Provider:              "openai",
			Name:                  "gpt-4o-mini",
			ContextWindowTokens:   128000,
			MaxOutputTokens:       16384,
			InputPricePerMillion:  0.15,
			OutputPricePerMillion: 0.60,
			RateLimits: map[string]RateLimitSpec{
				"free":  {RequestsPerMinute: 3, TokensPerMinute: 40000, RequestsPerDay: 200},
				"tier1": {RequestsPerMinute: 500, TokensPerMinute: 200000, RequestsPerDay: Unlimited},
			},
			Fallbacks: []string{"claude-haiku-4-5-20251001", "gemini-2.5-flash"},
		},
		{
			Provider:              "anthropic",
			Name:                  "claude-sonnet-4-5-20250929",
			ContextWindowTokens:   200000,
			MaxOutputTokens:       64000,
			InputPricePerMillion:  3.00,
			OutputPricePerMillion: 15.00,
			RateLimits: map[string]RateLimitSpec{
				"free":  {RequestsPerMinute: 5, TokensPerMinute: 20000, RequestsPerDay: 300},
				"tier1": {RequestsPerMinute: 50, TokensPerMinute: 40000, RequestsPerDay: Unlimited},
			},
			Fallbacks: []string{"gpt-4o", "gemini-2.5-pro"},
		},
		{
			Provider:              "anthropic",
			Name:                  "claude-haiku-4-5-20251001",
			ContextWindowTokens:   200000,
			MaxOutputTokens:       64000,
			InputPricePerMillion:  1.00,
			OutputPricePerMillion: 5.00,
			RateLimits: map[string]RateLimitSpec{
				"free":  {RequestsPerMinute: 5, TokensPerMinute: 25000, RequestsPerDay: 300},
				"tier1": {RequestsPerMinute: 50, TokensPerMinute: 50000, RequestsPerDay: Unlimited},
			},
			Fallbacks: []string{"gpt-4o-mini", "gemini-2.5-flash"},
		},
		{
			Provider:              "google",
			Name:                  "gemini-2.5-pro",
			ContextWindowTokens:   1048576,
			MaxOutputTokens:       65536,
			InputPricePerMillion:  1.25,
			OutputPricePerMillion: 10.00,
			RateLimits: map[string]RateLimitSpec{
				"free":  {RequestsPerMinute: 5, TokensPerMinute: 250000, RequestsPerDay: 100},
				"tier1": {RequestsPerMinute: 150, TokensPerMinute: 2000000, RequestsPerDay: 10000},
			},
			Fallbacks: []string{"gpt-4o", "claude-sonnet-4-5-20250929"},
		},
		{
			Provider:              "google",
			Name:                  "gemini-2.5-flash",
			ContextWindowTokens:   1048576,
			MaxOutputTokens:       65536,
			InputPricePerMillion:  0.30,
			OutputPricePerMillion: 2.50,
			RateLimits: map[string]RateLimitSpec{
				"free":  {RequestsPerMinute: 10, TokensPerMinute: 250000, RequestsPerDay: 250},
				"tier1": {RequestsPerMinute: 1000, TokensPerMinute: 1000000, RequestsPerDay: 10000},
			},
			Fallbacks: []string{"gpt-4o-mini", "claude-haiku-4-5-20251001"},
		},
	})
	if err != nil {
		// The built-in table is validated by tests; a failure here is a bug.
		panic(err)
	}
	return c
}
