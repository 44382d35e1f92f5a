package errx

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// linearBackOff waits base*n before the n-th retry.
type linearBackOff struct {
	base    time.Duration
	attempt int
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.attempt++
	return b.base * time.Duration(b.attempt)
}

func (b *linearBackOff) Reset() { b.attempt = 0 }

// Retry runs op up to maxAttempts times, sleeping baseDelay*attempt between
// tries. The last failure is returned once attempts are exhausted, or the
// context error if ctx ends first. Nothing in the gate retries implicitly;
// callers opt in per operation.
func Retry[T any](ctx context.Context, op func(context.Context) (T, error), maxAttempts int, baseDelay time.Duration) (T, error) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var result T
	policy := backoff.WithContext(
		backoff.WithMaxRetries(&linearBackOff{base: baseDelay}, uint64(maxAttempts-1)),
		ctx,
	)

	err := backoff.Retry(func() error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		result = v
		return nil
	}, policy)
	return result, err
}

// WithFallback returns fallback's outcome whenever primary fails.
func WithFallback[T any](ctx context.Context, primary, fallback func(context.Context) (T, error)) (T, error) {
	if v, err := primary(ctx); err == nil {
		return v, nil
	}
	return fallback(ctx)
}

// WithTimeout races op against a timer. When the timer fires first a
// Timeout error is returned; op itself keeps running to completion in the
// background and its result is discarded.
func WithTimeout[T any](ctx context.Context, op func(context.Context) (T, error), timeout time.Duration) (T, error) {
	type outcome struct {
		v   T
		err error
	}

	done := make(chan outcome, 1)
	go func() {
		v, err := op(ctx)
		done <- outcome{v, err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var zero T
	select {
	case o := <-done:
		return o.v, o.err
	case <-timer.C:
		return zero, Timeout(timeout)
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
