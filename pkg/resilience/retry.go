package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"
)

// Backoff configures Retry. Zero fields take the defaults below.
type Backoff struct {
	Attempts int
	Initial  time.Duration
	Max      time.Duration
	// Jitter spreads each delay by up to this fraction either way.
	Jitter float64
}

const (
	DefaultAttempts = 3
	DefaultInitial  = 200 * time.Millisecond
	DefaultMax      = 5 * time.Second
)

func (b Backoff) withDefaults() Backoff {
	if b.Attempts <= 0 {
		b.Attempts = DefaultAttempts
	}
	if b.Initial <= 0 {
		b.Initial = DefaultInitial
	}
	if b.Max <= 0 {
		b.Max = DefaultMax
	}
	if b.Jitter < 0 || b.Jitter >= 1 {
		b.Jitter = 0
	}
	return b
}

// delay doubles from Initial per attempt and is capped at Max.
func (b Backoff) delay(attempt int) time.Duration {
	d := b.Initial
	for i := 1; i < attempt && d < b.Max; i++ {
		d *= 2
	}
	d = min(d, b.Max)
	if b.Jitter > 0 {
		d = time.Duration(float64(d) * (1 + b.Jitter*(2*rand.Float64()-1)))
	}
	return d
}

// Retry calls fn until it succeeds, the attempts run out or ctx ends. The
// last error is returned wrapped with op.
func Retry(ctx context.Context, op string, b Backoff, fn func(context.Context) error) error {
	b = b.withDefaults()
	logger := slog.Default().With("component", "retry", "op", op)

	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(ctx); err == nil {
			if attempt > 1 {
				logger.Info("succeeded after retry", "attempt", attempt)
			}
			return nil
		}
		if attempt == b.Attempts {
			return fmt.Errorf("%s: giving up after %d attempts: %w", op, attempt, err)
		}
		wait := b.delay(attempt)
		logger.Debug("attempt failed", "attempt", attempt, "next_in", wait, "error", err)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return fmt.Errorf("%s: %w (last error: %v)", op, ctx.Err(), err)
		}
	}
}
