// Package backoff implements the fixed randomized delay applied before outbound requests.
package backoff

import (
	"context"
	"crypto/rand"
	"math/big"
	"time"

	"github.com/JakeFAU/appcatalog/internal/catalog"
	"github.com/JakeFAU/appcatalog/internal/metrics"
)

// Uniform waits a delay drawn uniformly from [Min, Max] before each request.
type Uniform struct {
	min    time.Duration
	max    time.Duration
	source string
	pauser catalog.Pauser
}

// Option customizes a Uniform backoff.
type Option func(*Uniform)

// WithPauser swaps the pause implementation (used by tests).
func WithPauser(p catalog.Pauser) Option {
	return func(u *Uniform) {
		if p != nil {
			u.pauser = p
		}
	}
}

// New builds a backoff for the given source label. Bounds are swapped when
// reversed and clamped at zero.
func New(source string, minDelay, maxDelay time.Duration, opts ...Option) *Uniform {
	if minDelay < 0 {
		minDelay = 0
	}
	if maxDelay < minDelay {
		minDelay, maxDelay = maxDelay, minDelay
		if minDelay < 0 {
			minDelay = 0
		}
	}
	u := &Uniform{
		min:    minDelay,
		max:    maxDelay,
		source: source,
		pauser: TimerPauser{},
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Next draws the next delay without waiting.
func (u *Uniform) Next() time.Duration {
	span := u.max - u.min
	if span <= 0 {
		return u.min
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(span)+1))
	if err != nil {
		return u.min + span/2
	}
	return u.min + time.Duration(n.Int64())
}

// Wait draws a delay, pauses for it and returns it.
func (u *Uniform) Wait(ctx context.Context) time.Duration {
	delay := u.Next()
	u.pauser.Pause(ctx, delay)
	metrics.ObserveBackoff(u.source, delay)
	return delay
}

// TimerPauser pauses on a timer, returning early when the context finishes.
type TimerPauser struct{}

// Pause blocks for delay or until ctx is done.
func (TimerPauser) Pause(ctx context.Context, delay time.Duration) {
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
