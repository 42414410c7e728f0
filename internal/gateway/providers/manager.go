package providers

import (
	"fmt"

	"github.com/mrmushfiq/llm0-orchestrator/internal/shared/config"
)

// Manager holds the configured provider clients, keyed by provider id.
// Which model maps to which provider, and what falls back to what, is the
// catalog's business; the manager only knows how to reach each backend.
type Manager struct {
	providers   map[string]Provider
	classifiers map[string]ErrorClassifier
}

// NewManager initializes clients for every provider with an API key
// configured.
func NewManager(cfg *config.Config) *Manager {
	m := &Manager{
		providers:   make(map[string]Provider),
		classifiers: Classifiers(),
	}

	if cfg.OpenAIAPIKey != "" {
		m.providers["openai"] = NewOpenAIProvider(cfg.OpenAIAPIKey)
	}
	if cfg.AnthropicAPIKey != "" {
		m.providers["anthropic"] = NewAnthropicProvider(cfg.AnthropicAPIKey)
	}
	if cfg.GeminiAPIKey != "" {
		m.providers["google"] = NewGeminiProvider(cfg.GeminiAPIKey)
	}

	return m
}

// NewManagerWithProviders creates a manager over explicit clients.
func NewManagerWithProviders(clients map[string]Provider) *Manager {
	return &Manager{
		providers:   clients,
		classifiers: Classifiers(),
	}
}

// Get returns the client for a provider id.
func (m *Manager) Get(providerID string) (Provider, error) {
	p, ok := m.providers[providerID]
	if !ok {
		return nil, fmt.Errorf("provider %s not configured (check API key)", providerID)
	}
	return p, nil
}

// Has reports whether a provider id has a configured client.
func (m *Manager) Has(providerID string) bool {
	_, ok := m.providers[providerID]
	return ok
}

// ClassifierFor returns the error classifier for a provider id, falling
// back to the generic HTTP classifier for unknown providers.
func (m *Manager) ClassifierFor(providerID string) ErrorClassifier {
	if c, ok := m.classifiers[providerID]; ok {
		return c
	}
	return HTTPClassifier{}
}
