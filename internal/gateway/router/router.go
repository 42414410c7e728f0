// Package router is the orchestration core: given a primary model and an
// ordered fallback chain, it decides whether to wait, retry, substitute, or
// fail. Waiting on the preferred model is always favored over degrading to
// a fallback; fallbacks are reserved for genuinely unexpected failures.
package router

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mrmushfiq/llm0-orchestrator/internal/gateway/breaker"
	"github.com/mrmushfiq/llm0-orchestrator/internal/gateway/catalog"
	"github.com/mrmushfiq/llm0-orchestrator/internal/gateway/ledger"
	"github.com/mrmushfiq/llm0-orchestrator/internal/gateway/providers"
	"github.com/mrmushfiq/llm0-orchestrator/internal/gateway/ratelimit"
	"github.com/mrmushfiq/llm0-orchestrator/internal/gateway/telemetry"
	"github.com/mrmushfiq/llm0-orchestrator/internal/gateway/tokenizer"
)

// defaultRetryAfter is the backoff base used when a provider reports a 429
// without a Retry-After header and the local tracker predicts no wait.
const defaultRetryAfter = 5 * time.Second

// ModelRef identifies one model in a fallback chain.
type ModelRef struct {
	Provider string
	Name     string
}

func (r ModelRef) String() string {
	return r.Provider + "/" + r.Name
}

// Result is a successful execution: the response, what it cost, and which
// model ultimately served it.
type Result struct {
	Response     *providers.ChatResponse
	Cost         ledger.Entry
	Model        ModelRef
	Attempts     int
	FallbackUsed bool
}

// Router composes the catalog, tracker, breakers, ledger, providers and
// telemetry into the Execute decision loop. Safe for concurrent use; no
// global lock serializes unrelated models.
type Router struct {
	catalog  *catalog.Catalog
	tracker  *ratelimit.Tracker
	breakers *breaker.Set
	ledger   *ledger.Ledger
	manager  *providers.Manager
	sink     telemetry.Sink
	log      *logrus.Entry

	// sleep is the cancellable backoff wait. Swappable for tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// New wires a router.
func New(cat *catalog.Catalog, tracker *ratelimit.Tracker, breakers *breaker.Set,
	led *ledger.Ledger, manager *providers.Manager, sink telemetry.Sink, log *logrus.Logger) *Router {
	if sink == nil {
		sink = telemetry.NopSink{}
	}
	return &Router{
		catalog:  cat,
		tracker:  tracker,
		breakers: breakers,
		ledger:   led,
		manager:  manager,
		sink:     sink,
		log:      log.WithField("component", "router"),
		sleep:    sleepCtx,
	}
}

// Execute tries each model in the chain in priority order. Recoverable
// throttling is absorbed by wait/retry against the current model; budget
// and deadline errors abort the whole chain immediately.
func (r *Router) Execute(ctx context.Context, req providers.ChatRequest, chain []ModelRef, tier string, pol Policy) (*Result, error) {
	pol = pol.withDefaults()

	if err := r.ledger.CheckBudget(); err != nil {
		return nil, err
	}

	var failures []ModelFailure
	totalAttempts := 0

	for i, ref := range chain {
		desc, err := r.catalog.Resolve(ref.Provider, ref.Name)
		if err != nil {
			failures = append(failures, ModelFailure{Model: ref, Reason: err})
			continue
		}

		prov, err := r.manager.Get(desc.Provider)
		if err != nil {
			failures = append(failures, ModelFailure{Model: ref, Reason: err})
			continue
		}

		br := r.breakers.ForModel(ref.String())
		if !br.Allow() {
			r.report(telemetry.AttemptEvent{
				Provider: ref.Provider, Model: ref.Name, Tier: tier,
				Outcome: telemetry.OutcomeSkipped, ErrorKind: "circuit_open",
			})
			failures = append(failures, ModelFailure{Model: ref, Reason: &CircuitOpenError{Model: ref}})
			continue
		}

		estimated := tokenizer.EstimateTokens(req, desc)
		if !tokenizer.FitsContext(estimated, desc) {
			// Capability mismatch: no amount of waiting helps, and the
			// breaker saw no real call.
			br.CancelProbe()
			r.report(telemetry.AttemptEvent{
				Provider: ref.Provider, Model: ref.Name, Tier: tier,
				Outcome: telemetry.OutcomeSkipped, ErrorKind: "capability_mismatch",
				TokensIn: estimated,
			})
			failures = append(failures, ModelFailure{Model: ref, Reason: &CapabilityMismatchError{
				Model:           ref,
				EstimatedTokens: estimated,
				ContextWindow:   desc.ContextWindowTokens,
			}})
			continue
		}

		result, err := r.tryModel(ctx, prov, desc, ref, req, tier, estimated, pol, &totalAttempts, i > 0)
		if err == nil {
			return result, nil
		}
		if isTerminal(err) {
			// Budget or deadline: no further fallback may be attempted.
			return nil, err
		}
		failures = append(failures, ModelFailure{Model: ref, Reason: err})
	}

	return nil, &AllModelsExhaustedError{Failures: failures}
}

// tryModel runs the per-model retry loop. A returned error is the reason
// to advance the chain, unless isTerminal recognizes it (budget, deadline)
// in which case the whole execution stops.
func (r *Router) tryModel(ctx context.Context, prov providers.Provider, desc *catalog.ModelDescriptor,
	ref ModelRef, req providers.ChatRequest, tier string, estimated int, pol Policy,
	totalAttempts *int, isFallback bool) (*Result, error) {

	br := r.breakers.ForModel(ref.String())
	log := r.log.WithFields(logrus.Fields{"model": ref.String(), "tier": tier})

	req.Model = desc.Name

	for attempt := 0; attempt <= pol.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			br.CancelProbe()
			return nil, &DeadlineExceededError{Model: ref, Err: err}
		}
		if err := r.ledger.CheckBudget(); err != nil {
			br.CancelProbe()
			return nil, err
		}

		allowed, wait := r.tracker.CanProceed(desc, tier, estimated)
		if !allowed {
			if wait > pol.MaxWait {
				br.CancelProbe()
				log.WithField("wait", wait.String()).Debug("predicted wait exceeds policy, advancing chain")
				r.report(telemetry.AttemptEvent{
					Provider: ref.Provider, Model: ref.Name, Tier: tier, Attempt: attempt,
					Outcome: telemetry.OutcomeFallback, Wait: wait, ErrorKind: string(providers.KindRateLimited),
				})
				return nil, &RateLimitedError{Model: ref, RetryAfter: wait}
			}
			if attempt == pol.MaxRetries {
				break
			}
			backoff := backoffFor(wait, pol.BackoffBase, attempt)
			log.WithFields(logrus.Fields{"attempt": attempt, "wait": backoff.String()}).Debug("waiting for rate limit window")
			r.report(telemetry.AttemptEvent{
				Provider: ref.Provider, Model: ref.Name, Tier: tier, Attempt: attempt,
				Outcome: telemetry.OutcomeWait, Wait: backoff,
			})
			if err := r.sleep(ctx, backoff); err != nil {
				br.CancelProbe()
				return nil, &DeadlineExceededError{Model: ref, Err: err}
			}
			continue
		}

		*totalAttempts++
		resp, err := prov.ChatCompletion(ctx, req)
		if err == nil {
			in := resp.Usage.PromptTokens
			out := resp.Usage.CompletionTokens
			r.tracker.RecordUsage(desc, tier, resp.Usage.TotalTokens)
			entry := r.ledger.RecordCost(desc, in, out)
			br.RecordSuccess()
			r.report(telemetry.AttemptEvent{
				Provider: ref.Provider, Model: ref.Name, Tier: tier, Attempt: attempt,
				Outcome: telemetry.OutcomeSuccess, TokensIn: in, TokensOut: out, CostUSD: entry.CostUSD,
			})
			return &Result{
				Response:     resp,
				Cost:         entry,
				Model:        ref,
				Attempts:     *totalAttempts,
				FallbackUsed: isFallback,
			}, nil
		}

		if ctx.Err() != nil {
			br.CancelProbe()
			return nil, &DeadlineExceededError{Model: ref, Err: ctx.Err()}
		}

		classifier := r.manager.ClassifierFor(desc.Provider)
		kind := classifier.Classify(err)

		if kind == providers.KindRateLimited {
			// The provider's live signal outranks the local estimate for
			// retry timing, but does not rewrite the tracker's history.
			base := providers.RetryAfter(err)
			if base <= 0 {
				base = defaultRetryAfter
			}
			if attempt == pol.MaxRetries {
				break
			}
			backoff := backoffFor(base, pol.BackoffBase, attempt)
			if backoff > pol.MaxWait {
				br.CancelProbe()
				r.report(telemetry.AttemptEvent{
					Provider: ref.Provider, Model: ref.Name, Tier: tier, Attempt: attempt,
					Outcome: telemetry.OutcomeFallback, Wait: backoff, ErrorKind: string(kind),
				})
				return nil, &RateLimitedError{Model: ref, RetryAfter: backoff, Err: err}
			}
			log.WithFields(logrus.Fields{"attempt": attempt, "wait": backoff.String()}).Info("provider throttled, backing off")
			r.report(telemetry.AttemptEvent{
				Provider: ref.Provider, Model: ref.Name, Tier: tier, Attempt: attempt,
				Outcome: telemetry.OutcomeRetry, Wait: backoff, ErrorKind: string(kind),
			})
			if serr := r.sleep(ctx, backoff); serr != nil {
				br.CancelProbe()
				return nil, &DeadlineExceededError{Model: ref, Err: serr}
			}
			continue
		}

		// Any other error is terminal for this model: count it against the
		// breaker and advance the chain.
		br.RecordFailure()
		log.WithFields(logrus.Fields{"attempt": attempt, "error_kind": kind}).WithError(err).Warn("model failed, advancing chain")
		r.report(telemetry.AttemptEvent{
			Provider: ref.Provider, Model: ref.Name, Tier: tier, Attempt: attempt,
			Outcome: telemetry.OutcomeFailure, ErrorKind: string(kind),
		})
		return nil, &TransientProviderError{Model: ref, Kind: kind, Err: err}
	}

	// Retry budget exhausted while still throttled.
	br.CancelProbe()
	r.report(telemetry.AttemptEvent{
		Provider: ref.Provider, Model: ref.Name, Tier: tier, Attempt: pol.MaxRetries,
		Outcome: telemetry.OutcomeFallback, ErrorKind: string(providers.KindRateLimited),
	})
	return nil, &RateLimitedError{Model: ref}
}

// isTerminal reports whether an error must stop the whole execution
// rather than advance the fallback chain.
func isTerminal(err error) bool {
	var budgetErr *ledger.BudgetExceededError
	var deadlineErr *DeadlineExceededError
	return errors.As(err, &budgetErr) || errors.As(err, &deadlineErr)
}

// report delivers a telemetry event, swallowing sink panics: observability
// must never take down the request path.
func (r *Router) report(event telemetry.AttemptEvent) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.WithField("panic", rec).Warn("telemetry sink failure")
		}
	}()
	r.sink.Report(event)
}

// backoffFor computes wait * base^attempt.
func backoffFor(wait time.Duration, base float64, attempt int) time.Duration {
	scaled := float64(wait) * math.Pow(base, float64(attempt))
	if scaled > float64(math.MaxInt64) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(scaled)
}

// sleepCtx is a cancellable sleep: a caller deadline or shutdown aborts the
// wait without leaking the timer.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
