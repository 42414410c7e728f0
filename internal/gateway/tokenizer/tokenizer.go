// Package tokenizer estimates the token footprint of a chat request before
// it is sent. Estimates are deliberately conservative: over-counting causes
// an early fallback to a larger-context model, under-counting causes silent
// truncation by the provider.
package tokenizer

import (
	"math"

	"github.com/mrmushfiq/llm0-orchestrator/internal/gateway/catalog"
	"github.com/mrmushfiq/llm0-orchestrator/internal/gateway/providers"
)

const (
	// defaultCharsPerToken is used when a model carries no tokenizer
	// profile. English prose averages ~4 chars/token; 3.5 rounds the
	// estimate up.
	defaultCharsPerToken = 3.5

	// perMessageOverhead covers role markers and message framing tokens.
	perMessageOverhead = 4

	// requestOverhead covers the fixed priming tokens of a chat request.
	requestOverhead = 3
)

// EstimateTokens returns a conservative token count for the request against
// the given model's tokenizer profile. Pure function; safe for concurrent
// use.
func EstimateTokens(req providers.ChatRequest, model *catalog.ModelDescriptor) int {
	cpt := defaultCharsPerToken
	if model != nil && model.CharsPerToken > 0 {
		cpt = model.CharsPerToken
	}

	total := requestOverhead
	for _, msg := range req.Messages {
		chars := len(msg.Content) + len(msg.Role) + len(msg.Name)
		total += perMessageOverhead + int(math.Ceil(float64(chars)/cpt))
	}
	return total
}

// FitsContext reports whether the request's estimated input tokens fit
// within the model's context window.
func FitsContext(estimated int, model *catalog.ModelDescriptor) bool {
	return estimated <= model.ContextWindowTokens
}
