package services

import (
	"context"
	"time"
)

// RetryPolicy bounds retry attempts for transient failures (model-call
// timeouts and rate limits). Exhaustion returns the last error; callers decide
// whether a local fallback applies or the failure is fatal for the job.
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
	MaxDelay time.Duration
}

// DefaultRetryPolicy matches the model-call retry budget used across the
// generation pipeline.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, Backoff: 2 * time.Second, MaxDelay: 15 * time.Second}
}

// Retry runs fn up to p.Attempts times, sleeping with exponential backoff
// between attempts. Only transient errors are retried; validation and
// configuration failures surface immediately. Context cancellation aborts the
// wait and returns ctx.Err.
func Retry(ctx context.Context, p RetryPolicy, fn func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	delay := p.Backoff
	if delay <= 0 {
		delay = time.Second
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !IsTransient(lastErr) {
			return lastErr
		}
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}
	return lastErr
}
