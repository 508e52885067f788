package lib

import (
	"context"
	"time"

	internalerrors "github.com/nidoapp/nido-api/internal/errors"
)

// Retry runs op with a per-attempt timeout and retries it up to retries
// additional times, but only while the failure is classified transient.
// Non-transient errors are returned immediately.
func Retry(ctx context.Context, retries int, opTimeout time.Duration, backoff *BackoffManager, op func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt <= retries; attempt++ {
		opCtx, cancel := context.WithTimeout(ctx, opTimeout)
		err := op(opCtx)
		cancel()

		if err == nil {
			backoff.Reset()
			return nil
		}

		lastErr = err
		if !internalerrors.IsTransient(err) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt == retries {
			break
		}

		select {
		case <-time.After(backoff.NextBackoff()):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return lastErr
}
