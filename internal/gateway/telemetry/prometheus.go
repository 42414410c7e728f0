package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink exposes attempt events as prometheus metrics for external
// cost/latency dashboards.
type PrometheusSink struct {
	attempts *prometheus.CounterVec
	waits    *prometheus.HistogramVec
	tokens   *prometheus.CounterVec
	costUSD  *prometheus.CounterVec
}

// NewPrometheusSink registers the orchestrator metrics on the given
// registerer.
func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	s := &PrometheusSink{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "llm_orchestrator",
			Name:      "attempts_total",
			Help:      "Model call attempts by outcome.",
		}, []string{"provider", "model", "tier", "outcome", "error_kind"}),
		waits: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "llm_orchestrator",
			Name:      "backoff_wait_seconds",
			Help:      "Backoff waits incurred before retries.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}, []string{"provider", "model", "tier"}),
		tokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "llm_orchestrator",
			Name:      "tokens_total",
			Help:      "Tokens consumed by direction.",
		}, []string{"provider", "model", "direction"}),
		costUSD: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "llm_orchestrator",
			Name:      "cost_usd_total",
			Help:      "Accumulated cost in USD.",
		}, []string{"provider", "model"}),
	}
	reg.MustRegister(s.attempts, s.waits, s.tokens, s.costUSD)
	return s
}

func (s *PrometheusSink) Report(event AttemptEvent) {
	s.attempts.WithLabelValues(event.Provider, event.Model, event.Tier, string(event.Outcome), event.ErrorKind).Inc()

	if event.Wait > 0 {
		s.waits.WithLabelValues(event.Provider, event.Model, event.Tier).Observe(event.Wait.Seconds())
	}
	if event.TokensIn > 0 {
		s.tokens.WithLabelValues(event.Provider, event.Model, "input").Add(float64(event.TokensIn))
	}
	if event.TokensOut > 0 {
		s.tokens.WithLabelValues(event.Provider, event.Model, "output").Add(float64(event.TokensOut))
	}
	if event.CostUSD > 0 {
		s.costUSD.WithLabelValues(event.Provider, event.Model).Add(event.CostUSD)
	}
}
