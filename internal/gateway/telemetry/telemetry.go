// Package telemetry carries structured attempt events out of the router
// without coupling it to any reporting backend. Sinks must never block the
// request path; the router swallows and locally logs sink panics.
package telemetry

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Outcome classifies what happened on one attempt.
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeWait     Outcome = "wait"
	OutcomeRetry    Outcome = "retry"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeFallback Outcome = "fallback"
	OutcomeFailure  Outcome = "failure"
)

// AttemptEvent describes one router attempt against one model.
type AttemptEvent struct {
	Provider  string
	Model     string
	Tier      string
	Attempt   int
	Outcome   Outcome
	Wait      time.Duration
	TokensIn  int
	TokensOut int
	CostUSD   float64
	ErrorKind string
}

// Sink receives attempt events.
type Sink interface {
	Report(event AttemptEvent)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) Report(AttemptEvent) {}

// LogSink writes events as structured log lines.
type LogSink struct {
	log *logrus.Entry
}

// NewLogSink creates a sink logging at Info level on the given logger.
func NewLogSink(log *logrus.Logger) *LogSink {
	return &LogSink{log: log.WithField("component", "telemetry")}
}

func (s *LogSink) Report(event AttemptEvent) {
	fields := logrus.Fields{
		"provider": event.Provider,
		"model":    event.Model,
		"tier":     event.Tier,
		"attempt":  event.Attempt,
		"outcome":  event.Outcome,
	}
	if event.Wait > 0 {
		fields["wait"] = event.Wait.String()
	}
	if event.TokensIn > 0 || event.TokensOut > 0 {
		fields["tokens_in"] = event.TokensIn
		fields["tokens_out"] = event.TokensOut
	}
	if event.CostUSD > 0 {
		fields["cost_usd"] = event.CostUSD
	}
	if event.ErrorKind != "" {
		fields["error_kind"] = event.ErrorKind
	}
	s.log.WithFields(fields).Info("model attempt")
}

// MultiSink fans out events to several sinks.
type MultiSink []Sink

func (m MultiSink) Report(event AttemptEvent) {
	for _, s := range m {
		s.Report(event)
	}
}
