package marketdata

import (
	"context"
	"math/rand/v2"
	"time"
)

// Backoff returns the delay after the given zero-based attempt:
// base*2^attempt plus rnd*jitter, where rnd is in [0, 1).
func Backoff(attempt int, base, jitter time.Duration, rnd float64) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := base << uint(min(attempt, 20))
	return d + time.Duration(rnd*float64(jitter))
}

// SleepContext waits for d or until ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func defaultRand() float64 { return rand.Float64() }
