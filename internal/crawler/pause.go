package crawler

import (
	"context"
	"math/rand/v2"
	"time"
)

// PauseFunc sleeps for a human-like interval or until ctx is done
type PauseFunc func(ctx context.Context) error

// NoPause never sleeps
func NoPause(ctx context.Context) error {
	return ctx.Err()
}

// RandomPause returns a PauseFunc sleeping a uniform random duration in [lo, hi)
func RandomPause(lo, hi time.Duration) PauseFunc {
	return func(ctx context.Context) error {
		return sleep(ctx, jitter(lo, hi))
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func jitter(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + rand.N(hi-lo)
}
