package action

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// withRetry runs one outbound collaborator call under an exponential
// backoff policy bounded by timeout and maxRetries. Per §7, only
// *NetworkError is retried ("DNS, connect, 5xx ... retried with backoff
// inside the handler up to MaxRetries"); every other error — including
// *TokenAuthError, which must propagate undigested to the Run
// Coordinator — stops retrying on the first attempt.
func withRetry(ctx context.Context, timeout time.Duration, maxRetries int, fn func() error) error {
	if maxRetries < 0 {
		maxRetries = 0
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 250 * time.Millisecond
	bo.Multiplier = 2
	bo.RandomizationFactor = 0.2
	bo.MaxElapsedTime = timeout

	attempts := 0
	operation := func() error {
		attempts++
		err := fn()
		if err == nil {
			return nil
		}

		var netErr *NetworkError
		if errors.As(err, &netErr) && attempts <= maxRetries {
			return err
		}
		return backoff.Permanent(err)
	}

	retryPolicy := backoff.WithMaxRetries(bo, uint64(maxRetries))
	return backoff.Retry(operation, backoff.WithContext(retryPolicy, ctx))
}
