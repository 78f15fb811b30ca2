package base

import (
	"context"
	"math/rand/v2"
	"time"
)

// DialBackoff spaces out connection attempts made while a connector
// initializes. Delays double from Initial up to Max, with +/-Jitter applied.
type DialBackoff struct {
	Attempts int
	Initial  time.Duration
	Max      time.Duration
	// Jitter is the fraction of each delay that is randomized, in [0, 1)
	Jitter float64
}

// NewDialBackoff returns a backoff allowing at least one attempt.
func NewDialBackoff(attempts int, initial time.Duration) *DialBackoff {
	return &DialBackoff{
		Attempts: max(attempts, 1),
		Initial:  initial,
		Max:      30 * time.Second,
		Jitter:   0.25,
	}
}

// SingleAttempt never retries.
func SingleAttempt() *DialBackoff {
	return &DialBackoff{Attempts: 1}
}

// Do calls fn until it succeeds, retry rejects its error or attempts run out.
// The last error from fn is returned as is. A context that ends while waiting
// returns ctx.Err().
func (b *DialBackoff) Do(ctx context.Context, fn func() error, retry func(err error, attempt int) bool) error {
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil || attempt >= b.Attempts {
			return err
		}
		if retry != nil && !retry(err, attempt) {
			return err
		}

		wait := time.NewTimer(b.Delay(attempt - 1))
		select {
		case <-ctx.Done():
			wait.Stop()
			return ctx.Err()
		case <-wait.C:
		}
	}
}

// Delay is the pause after the given zero-based failed attempt.
func (b *DialBackoff) Delay(attempt int) time.Duration {
	d := b.Initial
	for i := 0; i < attempt && (b.Max <= 0 || d < b.Max); i++ {
		d *= 2
	}
	if b.Max > 0 && d > b.Max {
		d = b.Max
	}
	if b.Jitter > 0 {
		spread := float64(d) * b.Jitter
		d += time.Duration(spread * (2*rand.Float64() - 1))
	}
	return d
}
