package misc

import (
	"context"
	"time"
)

// Backoff lists the pauses between attempts; its length is the retry budget.
type Backoff []time.Duration

// DefaultBackoff allows three retries spread over nine seconds.
var DefaultBackoff = Backoff{1 * time.Second, 3 * time.Second, 5 * time.Second}

// Retry runs op until it succeeds, returns an error isRetryable rejects, the
// backoff is exhausted or ctx is done. The last op error is returned as is.
func Retry(ctx context.Context, delays Backoff, isRetryable func(error) bool, op func() error) error {
	_, err := RetryValue(ctx, delays, isRetryable, func() (struct{}, error) {
		return struct{}{}, op()
	})
	return err
}

// RetryValue is Retry for operations that produce a result.
func RetryValue[T any](ctx context.Context, delays Backoff, isRetryable func(error) bool, op func() (T, error)) (T, error) {
	var zero T
	for attempt := 0; ; attempt++ {
		v, err := op()
		if err == nil {
			return v, nil
		}
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		if attempt >= len(delays) || !isRetryable(err) {
			return zero, err
		}
		if err := sleep(ctx, delays[attempt]); err != nil {
			return zero, err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
