package store

import (
	"math/rand"
	"time"
)

// Backoff computes the wait before a retry attempt.
type Backoff struct {
	Base   time.Duration
	Max    time.Duration
	Factor float64
	Jitter float64 // 0.0 to 1.0
}

func DefaultBackoff() Backoff {
	return Backoff{
		Base:   50 * time.Millisecond,
		Max:    time.Second,
		Factor: 2.0,
		Jitter: 0.2,
	}
}

// Next returns the delay for a 0-based attempt: Base * Factor^attempt,
// capped at Max, then spread by ±Jitter.
func (b Backoff) Next(attempt int) time.Duration {
	if attempt < 0 {
		return b.Base
	}

	delay := float64(b.Base)
	for i := 0; i < attempt; i++ {
		delay *= b.Factor
	}
	if delay > float64(b.Max) {
		delay = float64(b.Max)
	}

	if b.Jitter > 0 {
		delay += delay * (rand.Float64()*2 - 1) * b.Jitter
	}
	if delay < 0 {
		return 0
	}
	return time.Duration(delay)
}
