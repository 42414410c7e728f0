package router

import (
	"fmt"
	"strings"
	"time"

	"github.com/mrmushfiq/llm0-orchestrator/internal/gateway/providers"
)

// RateLimitedError reports that a model is throttled, either by the local
// tracker's prediction or by the provider itself. It is absorbed inside
// Execute by wait/retry and surfaces only as a per-model failure reason.
type RateLimitedError struct {
	Model      ModelRef
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s rate limited, retry after %s", e.Model, e.RetryAfter)
	}
	return fmt.Sprintf("%s rate limited", e.Model)
}

func (e *RateLimitedError) Unwrap() error { return e.Err }

// CapabilityMismatchError reports a payload too large for a model's
// context window. Never retried against the same model.
type CapabilityMismatchError struct {
	Model           ModelRef
	EstimatedTokens int
	ContextWindow   int
}

func (e *CapabilityMismatchError) Error() string {
	return fmt.Sprintf("%s cannot serve request: estimated %d tokens exceeds %d token context window",
		e.Model, e.EstimatedTokens, e.ContextWindow)
}

// TransientProviderError reports a timeout or 5xx-equivalent failure. The
// model's circuit breaker is incremented and the chain advances.
type TransientProviderError struct {
	Model ModelRef
	Kind  providers.ErrorKind
	Err   error
}

func (e *TransientProviderError) Error() string {
	return fmt.Sprintf("%s transient failure (%s): %v", e.Model, e.Kind, e.Err)
}

func (e *TransientProviderError) Unwrap() error { return e.Err }

// CircuitOpenError reports a model skipped because its breaker is open.
type CircuitOpenError struct {
	Model ModelRef
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("%s circuit breaker open", e.Model)
}

// DeadlineExceededError reports that the caller-supplied deadline expired
// during a backoff wait or an in-flight provider call. Terminal.
type DeadlineExceededError struct {
	Model ModelRef
	Err   error
}

func (e *DeadlineExceededError) Error() string {
	return fmt.Sprintf("deadline exceeded while executing against %s", e.Model)
}

func (e *DeadlineExceededError) Unwrap() error { return e.Err }

// ModelFailure pairs a model with the reason it could not serve.
type ModelFailure struct {
	Model  ModelRef
	Reason error
}

// AllModelsExhaustedError reports that every model in the chain failed or
// was skipped. Terminal; carries per-model diagnostics.
type AllModelsExhaustedError struct {
	Failures []ModelFailure
}

func (e *AllModelsExhaustedError) Error() string {
	reasons := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		reasons = append(reasons, fmt.Sprintf("%s: %v", f.Model, f.Reason))
	}
	return "all models exhausted: " + strings.Join(reasons, "; ")
}
