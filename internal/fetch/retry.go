package fetch

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy bounds the retry behaviour shared by every fetch call:
// a maximum attempt count and an exponential backoff schedule with jitter.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy matches the provider's observed tolerance: three
// attempts starting at half a second.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
	}
}

// Do runs op under the policy. Transient fetch errors are retried with
// exponential backoff; permanent ones (not found, malformed response)
// stop immediately. The last error is returned unwrapped so callers can
// classify it.
func (p RetryPolicy) Do(ctx context.Context, op func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.InitialInterval
	bo.MaxInterval = p.MaxInterval

	// Zero or negative attempt counts collapse to a single attempt.
	attempts := uint64(1)
	if p.MaxAttempts > 1 {
		attempts = uint64(p.MaxAttempts)
	}

	wrapped := func() error {
		err := op()
		if err == nil {
			return nil
		}
		var fe *FetchError
		if errors.As(err, &fe) && !fe.Retryable() {
			return backoff.Permanent(err)
		}
		return err
	}

	return backoff.Retry(wrapped, backoff.WithContext(backoff.WithMaxRetries(bo, attempts-1), ctx))
}
