// Package ratelimiter provides token-bucket throttling for mutating
// storage operations, wrapping golang.org/x/time/rate.
package ratelimiter

import (
	"context"

	"golang.org/x/time/rate"
)

// unlimited is the effective rate used when throttling is disabled.
// rate.Inf interacts badly with later SetLimit calls, so a very large
// finite rate stands in for it.
const unlimited = 1_000_000_000

// Limiter is a token-bucket rate limiter.
//
// Tokens accrue at a sustained per-second rate up to the burst capacity;
// each admitted operation consumes one token. All methods are safe for
// concurrent use.
type Limiter struct {
	limiter *rate.Limiter
}

// New creates a limiter admitting opsPerSecond sustained operations with
// the given burst capacity. opsPerSecond of zero disables throttling.
func New(opsPerSecond, burst uint) *Limiter {
	if opsPerSecond == 0 {
		opsPerSecond = unlimited
		burst = unlimited
	}
	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(opsPerSecond), int(burst)),
	}
}

// Allow reports whether one operation may proceed right now, consuming a
// token when it may. It never blocks; use it on paths that reject over
// throttling.
func (l *Limiter) Allow() bool {
	return l.limiter.Allow()
}

// Wait blocks until a token is available or ctx is done. Use it on paths
// that prefer added latency over rejection.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

// SetLimit changes the sustained rate at runtime. A rate of zero disables
// throttling. The burst capacity is left as configured.
func (l *Limiter) SetLimit(opsPerSecond uint) {
	if opsPerSecond == 0 {
		opsPerSecond = unlimited
	}
	l.limiter.SetLimit(rate.Limit(opsPerSecond))
}

// Tokens returns the number of tokens currently available. Intended for
// monitoring; the value may be stale by the time it is observed.
func (l *Limiter) Tokens() float64 {
	return l.limiter.Tokens()
}
