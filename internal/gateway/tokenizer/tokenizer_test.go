package tokenizer

import (
	"strings"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"

	"github.com/mrmushfiq/llm0-orchestrator/internal/gateway/catalog"
	"github.com/mrmushfiq/llm0-orchestrator/internal/gateway/providers"
)

func chatReq(contents ...string) providers.ChatRequest {
	req := providers.ChatRequest{}
	for _, c := range contents {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: "user", Content: c})
	}
	return req
}

func TestEstimateIsConservative(t *testing.T) {
	// ~400 chars of prose is roughly 100 actual tokens; the estimate must
	// not come in under that.
	text := strings.Repeat("the quick brown fox jumps over the lazy dog ", 9)
	est := EstimateTokens(chatReq(text), nil)
	assert.GreaterOrEqual(t, est, 100)
}

func TestEstimateDeterministic(t *testing.T) {
	req := chatReq("hello world", "how are you")
	assert.Equal(t, EstimateTokens(req, nil), EstimateTokens(req, nil))
}

func TestEstimateGrowsWithPayload(t *testing.T) {
	small := EstimateTokens(chatReq("hi"), nil)
	large := EstimateTokens(chatReq(strings.Repeat("hi", 1000)), nil)
	assert.Greater(t, large, small)
}

func TestEstimateUsesModelProfile(t *testing.T) {
	req := chatReq(strings.Repeat("x", 1000))
	dense := &catalog.ModelDescriptor{ContextWindowTokens: 1, CharsPerToken: 2}
	sparse := &catalog.ModelDescriptor{ContextWindowTokens: 1, CharsPerToken: 5}
	assert.Greater(t, EstimateTokens(req, dense), EstimateTokens(req, sparse))
}

func TestEmptyRequestStillCountsOverhead(t *testing.T) {
	est := EstimateTokens(providers.ChatRequest{}, nil)
	assert.Greater(t, est, 0)
}

func TestFitsContextBoundary(t *testing.T) {
	m := &catalog.ModelDescriptor{ContextWindowTokens: 1000}

	// Exactly at the window is accepted; one token over is not.
	assert.True(t, FitsContext(1000, m))
	assert.False(t, FitsContext(1001, m))
}
