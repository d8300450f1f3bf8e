package util

import (
	"context"
	"time"
)

// maxRetryDelay caps the exponential backoff between attempts.
const maxRetryDelay = 30 * time.Second

// Retry calls fn up to maxAttempts times with exponential backoff starting
// at baseDelay. It returns nil on the first successful call, or the last
// error if all attempts fail. Context cancellation is honoured before each
// attempt and between retries.
func Retry(ctx context.Context, maxAttempts int, baseDelay time.Duration, fn func() error) error {
	var err error
	delay := baseDelay

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err = fn()
		if err == nil {
			return nil
		}

		// Don't sleep after the last failed attempt.
		if attempt < maxAttempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
			if delay > maxRetryDelay {
				delay = maxRetryDelay
			}
		}
	}

	return err
}
