package core

import (
	"context"
	"fmt"
	"time"
)

// Retry runs fn up to attempts times with exponential backoff between
// tries, stopping early if ctx is done. The returned error wraps
// ErrBackendUnavailable once all attempts are spent, so callers can
// switch the affected backend into degraded mode.
func Retry(ctx context.Context, attempts int, backoff time.Duration, fn func(context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	delay := backoff
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		if lastErr = fn(ctx); lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return fmt.Errorf("%w after %d attempts: %v", ErrBackendUnavailable, attempts, lastErr)
}
