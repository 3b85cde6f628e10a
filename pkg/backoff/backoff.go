// Package backoff provides the single retry/backoff utility shared by
// the broker connect phase, the poll-error loop and the store readiness
// probes, each parameterized with its own policy.
package backoff

import (
	"context"
	"math/rand"
	"time"
)

// Policy describes an exponential backoff schedule.
type Policy struct {
	// MaxAttempts caps the number of attempts; <= 0 means unlimited.
	MaxAttempts int
	// Base is the delay before the second attempt; each subsequent
	// delay doubles.
	Base time.Duration
	// Cap bounds the delay; 0 means uncapped.
	Cap time.Duration
	// Jitter adds up to this fraction of the delay as random noise.
	Jitter float64
}

// Delay returns the wait before the given attempt (1-based). Attempt 1
// has no delay.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt <= 1 || p.Base <= 0 {
		return 0
	}
	d := p.Base
	for i := 2; i < attempt; i++ {
		d *= 2
		if p.Cap > 0 && d >= p.Cap {
			d = p.Cap
			break
		}
	}
	if p.Cap > 0 && d > p.Cap {
		d = p.Cap
	}
	if p.Jitter > 0 {
		d += time.Duration(rand.Float64() * p.Jitter * float64(d))
	}
	return d
}

// Retry runs fn until it succeeds, the policy is exhausted, or ctx is
// cancelled. It returns the last error, or ctx.Err() on cancellation.
func Retry(ctx context.Context, p Policy, fn func(context.Context) error) error {
	var err error
	for attempt := 1; p.MaxAttempts <= 0 || attempt <= p.MaxAttempts; attempt++ {
		if d := p.Delay(attempt); d > 0 {
			select {
			case <-time.After(d):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err = fn(ctx); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return err
}
