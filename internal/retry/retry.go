package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/rafaeljc/togglr-sdk-go/internal/backoff"
)

// SleepFunc suspends the caller for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Options configures a single Do invocation.
type Options struct {
	// Retries is the number of additional attempts after the first one.
	// Retries=2 means up to 3 calls of the action.
	Retries int

	// Backoff computes the pause before each retry. Retry k (1-based) waits Backoff.Delay(k-1).
	Backoff backoff.Policy

	// Classify decides whether a failure is worth another attempt. Defaults to Classify.
	Classify Classifier

	// Sleep defaults to a timer that honors ctx cancellation.
	Sleep SleepFunc

	// OnRetry, if set, is invoked right before the pause preceding retry number `retry`.
	OnRetry func(retry int, delay time.Duration, lastErr error)
}

// Do runs fn until it succeeds, a failure is classified as terminal, the retry budget
// is exhausted, or ctx is done. It returns the last observed error.
//
// attempt passed to fn is zero-based (0 is the initial call).
func Do[T any](ctx context.Context, opts Options, fn func(ctx context.Context, attempt int) (T, error)) (T, error) {
	classify := opts.Classify
	if classify == nil {
		classify = Classify
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = Sleep
	}
	retries := max(opts.Retries, 0)

	var zero T
	var lastErr error

	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			delay := opts.Backoff.Delay(attempt - 1)
			if opts.OnRetry != nil {
				opts.OnRetry(attempt, delay, lastErr)
			}
			if err := sleep(ctx, delay); err != nil {
				return zero, fmt.Errorf("retry aborted before attempt %d: %w (last error: %v)", attempt+1, err, lastErr)
			}
		}

		result, err := fn(ctx, attempt)
		if err == nil {
			return result, nil
		}
		lastErr = err

		// The caller gave up. Whatever the attempt returned is final.
		if ctx.Err() != nil {
			return zero, err
		}

		if classify(err) == Stop {
			return zero, err
		}
	}

	return zero, lastErr
}

// Sleep waits for d, returning early with ctx.Err() if ctx is done first.
func Sleep(ctx context.Context, d time.Duration) error {
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
