package retryjob

import (
	"math/rand"
	"time"
)

// Backoff computes the cooldown before the next retry attempt: exponential in
// the attempt count with ±20% jitter, capped at Max. Jitter keeps a burst of
// failures from retrying in lockstep against a degraded dependency.
type Backoff struct {
	Base time.Duration
	Max  time.Duration
}

func (b Backoff) Next(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	d := b.Base
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= b.Max {
			d = b.Max
			break
		}
	}
	if d > b.Max {
		d = b.Max
	}
	// jitter in [0.8, 1.2)
	jittered := time.Duration(float64(d) * (0.8 + 0.4*rand.Float64()))
	if jittered > b.Max {
		jittered = b.Max
	}
	return jittered
}
