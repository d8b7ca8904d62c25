package utils

import (
	"context"
	"fmt"
	"time"
)

// CallWithRetry calls fn until it succeeds, at most maxAttempts times, sleeping backoff between
// attempts. If every attempt fails it returns the zero value of T and the last error.
func CallWithRetry[T any](ctx context.Context, fn func() (T, error), maxAttempts int, backoff time.Duration) (T, error) {
	return CallWithRetryIf(ctx, fn, func(error) bool { return true }, maxAttempts, backoff)
}

// CallWithRetryIf is CallWithRetry that stops at the first error for which retryable is false.
func CallWithRetryIf[T any](ctx context.Context, fn func() (T, error), retryable func(error) bool, maxAttempts int, backoff time.Duration) (T, error) {
	var zero T
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var err error
	for i := 0; i < maxAttempts; i++ {
		var t T
		t, err = fn()
		if err == nil {
			return t, nil
		}
		if !retryable(err) {
			return zero, err
		}
		if i == maxAttempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return zero, fmt.Errorf("failed to call with retry: %w", ctx.Err())
		case <-time.After(backoff):
		}
	}
	return zero, fmt.Errorf("failed to call with retry after %d attempts: %w", maxAttempts, err)
}
