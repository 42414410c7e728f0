package router

import "time"

// Policy bounds the router's wait/retry behavior for one Execute call.
// Zero values take the documented defaults.
type Policy struct {
	// MaxRetries bounds the retry loop per model.
	MaxRetries int
	// MaxWait is the longest single predicted wait the router will sit
	// out before advancing to the next model instead.
	MaxWait time.Duration
	// BackoffBase is the exponential backoff multiplier: the n-th retry
	// waits wait * BackoffBase^n.
	BackoffBase float64
}

// DefaultPolicy returns the documented defaults.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:  3,
		MaxWait:     300 * time.Second,
		BackoffBase: 2.0,
	}
}

func (p Policy) withDefaults() Policy {
	def := DefaultPolicy()
	if p.MaxRetries <= 0 {
		p.MaxRetries = def.MaxRetries
	}
	if p.MaxWait <= 0 {
		p.MaxWait = def.MaxWait
	}
	if p.BackoffBase <= 0 {
		p.BackoffBase = def.BackoffBase
	}
	return p
}
