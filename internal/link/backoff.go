package link

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// Delay returns the wait before attempt n (1-based). The first attempt
// waits InitialDelay; later ones grow by Multiplier up to MaxDelay. With
// Jitter the result is scaled into [0.5, 1.5) of the nominal delay.
func (b BackoffConfig) Delay(attempt int, rng *rand.Rand) time.Duration {
	if b.InitialDelay <= 0 {
		return 0
	}
	growth := math.Max(b.Multiplier, 1.0)
	nominal := float64(b.InitialDelay)
	if attempt > 1 {
		nominal *= math.Pow(growth, float64(attempt-1))
	}
	if b.MaxDelay > 0 {
		nominal = math.Min(nominal, float64(b.MaxDelay))
	}
	if !b.Jitter {
		return time.Duration(nominal)
	}
	scale := 1.0
	if rng != nil {
		scale = 0.5 + rng.Float64()
	}
	return time.Duration(nominal * scale)
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
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
