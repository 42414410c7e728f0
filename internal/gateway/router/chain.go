package router

import (
	"github.com/mrmushfiq/llm0-orchestrator/internal/gateway/breaker"
	"github.com/mrmushfiq/llm0-orchestrator/internal/gateway/catalog"
)

// Descriptor resolves a model reference against the catalog.
func (r *Router) Descriptor(ref ModelRef) (*catalog.ModelDescriptor, error) {
	return r.catalog.Resolve(ref.Provider, ref.Name)
}

// BreakerFor returns the circuit breaker guarding a model. Callers that
// issue provider traffic outside Execute (streaming) gate on it and report
// the outcome the same way Execute does.
func (r *Router) BreakerFor(ref ModelRef) *breaker.Breaker {
	return r.breakers.ForModel(ref.String())
}

// RecordUsage feeds token usage served outside Execute into the model's
// rate-limit window, so streamed traffic counts against provider quotas.
func (r *Router) RecordUsage(ref ModelRef, tier string, tokens int) {
	desc, err := r.catalog.Resolve(ref.Provider, ref.Name)
	if err != nil {
		return
	}
	r.tracker.RecordUsage(desc, tier, tokens)
}

// ChainFor builds the fallback chain for a requested model name: the
// primary first, then its catalog-declared fallbacks, keeping only models
// whose provider has a configured client.
func (r *Router) ChainFor(modelName string) ([]ModelRef, error) {
	primary, err := r.catalog.ResolveByName(modelName)
	if err != nil {
		return nil, err
	}

	chain := []ModelRef{{Provider: primary.Provider, Name: primary.Name}}
	for _, fb := range primary.Fallbacks {
		desc, err := r.catalog.ResolveByName(fb)
		if err != nil {
			continue
		}
		if !r.manager.Has(desc.Provider) {
			continue
		}
		chain = append(chain, ModelRef{Provider: desc.Provider, Name: desc.Name})
	}
	return chain, nil
}
