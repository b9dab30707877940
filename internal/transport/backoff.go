package transport

import (
	"math/rand"
	"time"
)

// Default retry configuration values.
const (
	DefaultMaxAttempts = 5
	DefaultBaseDelay   = 1 * time.Second
	DefaultMaxDelay    = 16 * time.Second
)

// RetryPolicy describes the bounded backoff applied to transient delivery
// failures. It is a plain value so delay schedules can be tested without a
// live transport.
type RetryPolicy struct {
	// MaxAttempts caps the total number of delivery attempts.
	MaxAttempts int
	// BaseDelay is the delay before the second attempt.
	BaseDelay time.Duration
	// MaxDelay caps the exponential growth.
	MaxDelay time.Duration
	// Jitter perturbs a computed delay. Nil means no jitter.
	Jitter func(time.Duration) time.Duration
}

// DefaultRetryPolicy returns the standard policy: 5 attempts, 1s base,
// 16s cap, up to 25% random jitter.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		MaxDelay:    DefaultMaxDelay,
		Jitter:      ProportionalJitter(0.25),
	}
}

// Delay returns the backoff before attempt n+1, where n is the number of
// attempts already made (n >= 1). Growth is exponential with a cap; jitter
// is applied after capping.
func (p RetryPolicy) Delay(n int) time.Duration {
	if n < 1 {
		n = 1
	}

	delay := p.BaseDelay
	for i := 1; i < n; i++ {
		delay *= 2
		if delay >= p.MaxDelay {
			delay = p.MaxDelay
			break
		}
	}
	if delay > p.MaxDelay {
		delay = p.MaxDelay
	}

	if p.Jitter != nil {
		delay = p.Jitter(delay)
	}
	return delay
}

// ProportionalJitter returns a jitter function adding up to fraction*d of
// random extra delay.
func ProportionalJitter(fraction float64) func(time.Duration) time.Duration {
	return func(d time.Duration) time.Duration {
		if d <= 0 || fraction <= 0 {
			return d
		}
		// rand.Int63n panics on a zero bound, reachable when d*fraction
		// rounds below one nanosecond.
		bound := int64(float64(d) * fraction)
		if bound <= 0 {
			return d
		}
		return d + time.Duration(rand.Int63n(bound))
	}
}
