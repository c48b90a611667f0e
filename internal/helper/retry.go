package helper

import (
	"context"
	"math/rand/v2"
	"time"
)

const maxBackoff = 30 * time.Second

// RetryPolicy bounds how often and how patiently an external call is retried
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
}

// CalculateBackoff returns exponential backoff with jitter.
// Base delay is doubled each attempt, with random jitter up to 25%
func CalculateBackoff(baseDelay time.Duration, attempt int) time.Duration {
	if attempt <= 0 || baseDelay <= 0 {
		return 0
	}
	// cap the shift so it cannot overflow
	if attempt > 30 {
		attempt = 30
	}
	backoff := baseDelay * time.Duration(1<<uint(attempt))
	if backoff > maxBackoff || backoff <= 0 {
		backoff = maxBackoff
	}
	if half := int64(backoff) / 2; half > 0 {
		backoff += time.Duration(rand.Int64N(half)) - backoff/4
	}
	return backoff
}

// Retry calls fn until it succeeds, the attempts are used up or ctx is done.
// onRetry, when set, is called before every wait. The last error is returned.
func Retry(ctx context.Context, p RetryPolicy, onRetry func(attempt int, delay time.Duration, err error), fn func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if ctx.Err() != nil || attempt == attempts {
			break
		}

		delay := CalculateBackoff(p.BaseDelay, attempt)
		if onRetry != nil {
			onRetry(attempt, delay, err)
		}
		if err := Sleep(ctx, delay); err != nil {
			return err
		}
	}
	return err
}

// Sleep waits for d or until ctx is done
func Sleep(ctx context.Context, d time.Duration) error {
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
