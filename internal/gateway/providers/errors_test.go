package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
)

func TestHTTPClassifierStatusMapping(t *testing.T) {
	tests := []struct {
		status int
		kind   ErrorKind
	}{
		{429, KindRateLimited},
		{401, KindAuth},
		{403, KindAuth},
		{413, KindContextLength},
		{500, KindTransient},
		{502, KindTransient},
		{503, KindTransient},
		{408, KindTimeout},
		{400, KindInvalidRequest},
		{404, KindInvalidRequest},
	}

	c := HTTPClassifier{}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.status), func(t *testing.T) {
			err := &APIError{Provider: "anthropic", StatusCode: tt.status, Message: "x"}
			assert.Equal(t, tt.kind, c.Classify(err))
		})
	}
}

func TestHTTPClassifierNil(t *testing.T) {
	assert.Equal(t, KindNone, HTTPClassifier{}.Classify(nil))
}

func TestHTTPClassifierWrappedError(t *testing.T) {
	err := fmt.Errorf("call failed: %w", &APIError{Provider: "google", StatusCode: 503})
	assert.Equal(t, KindTransient, HTTPClassifier{}.Classify(err))
}

func TestHTTPClassifierDeadline(t *testing.T) {
	err := fmt.Errorf("request: %w", context.DeadlineExceeded)
	assert.Equal(t, KindTimeout, HTTPClassifier{}.Classify(err))
}

func TestHTTPClassifierUnknown(t *testing.T) {
	assert.Equal(t, KindUnknown, HTTPClassifier{}.Classify(errors.New("something odd")))
}

func TestOpenAIClassifierAPIError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind ErrorKind
	}{
		{"rate limited", &openai.APIError{HTTPStatusCode: 429}, KindRateLimited},
		{"server error", &openai.APIError{HTTPStatusCode: 500}, KindTransient},
		{"bad key", &openai.APIError{HTTPStatusCode: 401}, KindAuth},
		{"context length code", &openai.APIError{HTTPStatusCode: 400, Code: "context_length_exceeded"}, KindContextLength},
		{"plain bad request", &openai.APIError{HTTPStatusCode: 400}, KindInvalidRequest},
		{"request error", &openai.RequestError{HTTPStatusCode: 503}, KindTransient},
	}

	c := OpenAIClassifier{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, c.Classify(tt.err))
		})
	}
}

func TestRetryAfterFromAPIError(t *testing.T) {
	err := &APIError{Provider: "anthropic", StatusCode: 429, RetryAfter: 7 * time.Second}
	assert.Equal(t, 7*time.Second, RetryAfter(err))
	assert.Zero(t, RetryAfter(errors.New("no hint")))
}

func TestParseRetryAfter(t *testing.T) {
	resp := &http.Response{Header: http.Header{}}
	resp.Header.Set("Retry-After", "12")
	assert.Equal(t, 12*time.Second, parseRetryAfter(resp))

	resp.Header.Set("Retry-After", "garbage")
	assert.Zero(t, parseRetryAfter(resp))

	assert.Zero(t, parseRetryAfter(nil))
}

func TestClassifiersCoverConfiguredProviders(t *testing.T) {
	cs := Classifiers()
	for _, id := range []string{"openai", "anthropic", "google"} {
		assert.Contains(t, cs, id)
	}
}
