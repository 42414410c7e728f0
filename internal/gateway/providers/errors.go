package providers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
)

// ErrorKind is the router-facing classification of a provider failure.
// Retry decisions key off this, never off provider error text.
type ErrorKind string

const (
	KindNone           ErrorKind = ""
	KindRateLimited    ErrorKind = "rate_limited"
	KindTransient      ErrorKind = "transient"
	KindTimeout        ErrorKind = "timeout"
	KindAuth           ErrorKind = "auth"
	KindInvalidRequest ErrorKind = "invalid_request"
	KindContextLength  ErrorKind = "context_length"
	KindUnknown        ErrorKind = "unknown"
)

// APIError is the typed failure returned by the HTTP-based providers
// (Anthropic, Gemini). StatusCode carries the provider's HTTP status;
// RetryAfter is populated from the Retry-After header when present.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.StatusCode, e.Message)
}

// parseRetryAfter reads a Retry-After header in seconds form. HTTP-date
// form is rare on LLM APIs and is ignored.
func parseRetryAfter(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}
	if secs := resp.Header.Get("Retry-After"); secs != "" {
		var n int
		if _, err := fmt.Sscanf(secs, "%d", &n); err == nil && n > 0 {
			return time.Duration(n) * time.Second
		}
	}
	return 0
}

// ErrorClassifier maps one provider's errors onto the shared taxonomy.
type ErrorClassifier interface {
	Classify(err error) ErrorKind
}

// classifyStatus is the shared HTTP status mapping used by every
// classifier once a status code has been extracted.
func classifyStatus(status int) ErrorKind {
	switch {
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuth
	case status == http.StatusRequestEntityTooLarge:
		return KindContextLength
	case status >= 500:
		return KindTransient
	case status == http.StatusRequestTimeout:
		return KindTimeout
	case status >= 400:
		return KindInvalidRequest
	default:
		return KindUnknown
	}
}

// classifyTransport covers failures that never produced an HTTP status.
func classifyTransport(err error) (ErrorKind, bool) {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout, true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return KindTimeout, true
		}
		return KindTransient, true
	}
	return KindNone, false
}

// HTTPClassifier classifies errors from the hand-rolled HTTP providers
// (Anthropic, Gemini), which return *APIError for status failures.
type HTTPClassifier struct{}

func (HTTPClassifier) Classify(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.StatusCode)
	}
	if kind, ok := classifyTransport(err); ok {
		return kind
	}
	return KindUnknown
}

// OpenAIClassifier classifies errors from the go-openai client, which has
// its own typed API and request errors.
type OpenAIClassifier struct{}

func (OpenAIClassifier) Classify(err error) ErrorKind {
	if err == nil {
		return KindNone
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == "context_length_exceeded" {
			return KindContextLength
		}
		return classifyStatus(apiErr.HTTPStatusCode)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return classifyStatus(reqErr.HTTPStatusCode)
	}

	if kind, ok := classifyTransport(err); ok {
		return kind
	}
	return KindUnknown
}

// RetryAfter extracts the provider-advertised retry delay from an error,
// when one was given. Zero means the provider did not say.
func RetryAfter(err error) time.Duration {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.RetryAfter
	}
	return 0
}

// Classifiers returns the classifier for each supported provider id.
func Classifiers() map[string]ErrorClassifier {
	return map[string]ErrorClassifier{
		"openai":    OpenAIClassifier{},
		"anthropic": HTTPClassifier{},
		"google":    HTTPClassifier{},
	}
}
