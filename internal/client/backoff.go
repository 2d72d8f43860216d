package client

import (
	"math/rand/v2"
	"time"
)

// Backoff computes the delay before the next reconnect attempt: the base
// delay doubles per attempt up to a cap, and a jitter fraction spreads
// repeated delays so a fleet of clients does not reconnect in lockstep.
type Backoff struct {
	Base   time.Duration
	Max    time.Duration
	Jitter float64 // fraction of the delay, e.g. 0.2 for +-20%

	// rng returns a value in [0,1); overridable for deterministic tests.
	rng func() float64
}

// DefaultBackoff matches the reconnect policy used against the gateway.
func DefaultBackoff() Backoff {
	return Backoff{Base: time.Second, Max: 30 * time.Second, Jitter: 0.2}
}

// Delay returns the wait before attempt n (0-based). The undithered delay
// is non-decreasing in n and never exceeds Max.
func (b Backoff) Delay(attempt int) time.Duration {
	d := b.Base
	for i := 0; i < attempt && d < b.Max; i++ {
		d *= 2
	}
	if d > b.Max {
		d = b.Max
	}
	if b.Jitter > 0 {
		r := rand.Float64
		if b.rng != nil {
			r = b.rng
		}
		offset := (2*r() - 1) * b.Jitter * float64(d)
		d += time.Duration(offset)
		if d < 0 {
			d = 0
		}
	}
	return d
}
