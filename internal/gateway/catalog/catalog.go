package catalog

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Unlimited is the sentinel for a rate limit dimension with no ceiling.
const Unlimited = -1

// RateLimitSpec holds one tier's throughput ceilings for one model.
// A value of Unlimited (-1) means the dimension is not limited.
type RateLimitSpec struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
	TokensPerMinute   int `yaml:"tokens_per_minute"`
	RequestsPerDay    int `yaml:"requests_per_day"`
}

// ModelDescriptor describes one callable backend model. Descriptors are
// loaded once at startup and never mutated afterwards.
type ModelDescriptor struct {
	Provider              string                   `yaml:"provider"`
	Name                  string                   `yaml:"name"`
	ContextWindowTokens   int                      `yaml:"context_window_tokens"`
	MaxOutputTokens       int                      `yaml:"max_output_tokens"`
	InputPricePerMillion  float64                  `yaml:"input_price_per_million"`
	OutputPricePerMillion float64                  `yaml:"output_price_per_million"`
	RateLimits            map[string]RateLimitSpec `yaml:"rate_limits"`

	// CharsPerToken is the tokenizer profile used by the context sizer.
	// Zero means "use the default profile".
	CharsPerToken float64 `yaml:"chars_per_token"`

	// Fallbacks lists model names tried, in order, when this model is the
	// requested primary and cannot serve the request.
	Fallbacks []string `yaml:"fallbacks"`
}

// Key returns the canonical provider/name identifier for a model.
func (d *ModelDescriptor) Key() string {
	return d.Provider + "/" + d.Name
}

// LimitsFor returns the rate limits for a tier. Models without an entry
// for the tier are treated as unlimited.
func (d *ModelDescriptor) LimitsFor(tier string) RateLimitSpec {
	if spec, ok := d.RateLimits[tier]; ok {
		return spec
	}
	return RateLimitSpec{
		RequestsPerMinute: Unlimited,
		TokensPerMinute:   Unlimited,
		RequestsPerDay:    Unlimited,
	}
}

// NotFoundError is returned by Resolve for unknown provider/name pairs.
type NotFoundError struct {
	Provider string
	Name     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("model %s/%s not found in catalog", e.Provider, e.Name)
}

// Catalog is the read-only registry of model descriptors. Safe for
// concurrent use without synchronization once constructed.
type Catalog struct {
	byKey  map[string]*ModelDescriptor
	byName map[string]*ModelDescriptor
}

type catalogFile struct {
	Models []*ModelDescriptor `yaml:"models"`
}

// Load reads a catalog from a YAML file and validates it.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse catalog file: %w", err)
	}

	return New(file.Models)
}

// New builds a catalog from descriptors, validating each one. Validation
// failures are configuration errors surfaced at startup, not at call time.
func New(models []*ModelDescriptor) (*Catalog, error) {
	c := &Catalog{
		byKey:  make(map[string]*ModelDescriptor),
		byName: make(map[string]*ModelDescriptor),
	}

	for _, m := range models {
		if err := validate(m); err != nil {
			return nil, err
		}
		if _, exists := c.byKey[m.Key()]; exists {
			return nil, fmt.Errorf("duplicate model %s in catalog", m.Key())
		}
		c.byKey[m.Key()] = m
		c.byName[m.Name] = m
	}

	// Fallback references must resolve within the catalog.
	for _, m := range models {
		for _, fb := range m.Fallbacks {
			if _, ok := c.byName[fb]; !ok {
				return nil, fmt.Errorf("model %s lists unknown fallback %q", m.Key(), fb)
			}
		}
	}

	return c, nil
}

func validate(m *ModelDescriptor) error {
	if m.Provider == "" || m.Name == "" {
		return fmt.Errorf("catalog entry missing provider or name (provider=%q name=%q)", m.Provider, m.Name)
	}
	if m.ContextWindowTokens <= 0 {
		return fmt.Errorf("model %s: context_window_tokens must be > 0", m.Key())
	}
	if m.InputPricePerMillion < 0 || m.OutputPricePerMillion < 0 {
		return fmt.Errorf("model %s: pricing must be >= 0", m.Key())
	}
	for tier, spec := range m.RateLimits {
		if err := validateSpec(spec); err != nil {
			return fmt.Errorf("model %s tier %s: %w", m.Key(), tier, err)
		}
	}
	return nil
}

func validateSpec(spec RateLimitSpec) error {
	for _, v := range []int{spec.RequestsPerMinute, spec.TokensPerMinute, spec.RequestsPerDay} {
		if v < Unlimited {
			return fmt.Errorf("rate limit values must be >= 0 or -1 (unlimited), got %d", v)
		}
	}
	return nil
}

// Resolve looks up a model by provider and name.
func (c *Catalog) Resolve(provider, name string) (*ModelDescriptor, error) {
	if m, ok := c.byKey[provider+"/"+name]; ok {
		return m, nil
	}
	return nil, &NotFoundError{Provider: provider, Name: name}
}

// ResolveByName looks up a model by name alone. Used by the HTTP surface,
// where callers send OpenAI-style model names without a provider prefix.
func (c *Catalog) ResolveByName(name string) (*ModelDescriptor, error) {
	if m, ok := c.byName[name]; ok {
		return m, nil
	}
	return nil, &NotFoundError{Name: name}
}

// ListByTier returns all models that define limits for the given tier,
// sorted by provider/name for deterministic iteration.
func (c *Catalog) ListByTier(tier string) []*ModelDescriptor {
	var out []*ModelDescriptor
	for _, m := range c.byKey {
		if _, ok := m.RateLimits[tier]; ok {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// Models returns every descriptor in the catalog, sorted by key.
func (c *Catalog) Models() []*ModelDescriptor {
	out := make([]*ModelDescriptor, 0, len(c.byKey))
	for _, m := range c.byKey {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}
