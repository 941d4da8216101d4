package ldap

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/terraform-plugin-log/tflog"
)

// newBackOff builds the exponential retry policy described by config.
func newBackOff(ctx context.Context, config *ConnectionConfig) backoff.BackOff {
	exp := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(config.InitialBackoff),
		backoff.WithMultiplier(config.BackoffFactor),
		backoff.WithMaxInterval(config.MaxBackoff),
		backoff.WithMaxElapsedTime(0),
	)

	retries := config.MaxRetries
	if retries < 0 {
		retries = 0
	}

	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(retries)), ctx)
}

// retry runs operation until it succeeds, fails with a non-retryable error,
// or the retry budget in config is spent.
func retry(ctx context.Context, config *ConnectionConfig, operation func() error) error {
	attempts := 0

	err := backoff.RetryNotify(func() error {
		attempts++
		err := operation()
		if err != nil && !IsRetryableError(err) {
			return backoff.Permanent(err)
		}
		return err
	}, newBackOff(ctx, config), func(err error, next time.Duration) {
		tflog.SubsystemDebug(ctx, SubsystemLDAP, "Retrying operation", map[string]any{
			"attempt":    attempts,
			"max_retry":  config.MaxRetries,
			"backoff_ms": next.Milliseconds(),
			"last_error": err.Error(),
		})
	})

	if err == nil {
		if attempts > 1 {
			tflog.SubsystemInfo(ctx, SubsystemLDAP, "Operation succeeded after retries", map[string]any{
				"total_attempts": attempts,
			})
		}
		return nil
	}

	if attempts > config.MaxRetries && IsRetryableError(err) {
		tflog.SubsystemError(ctx, SubsystemLDAP, "Operation failed after all retries exhausted", map[string]any{
			"total_attempts": attempts,
			"final_error":    err.Error(),
		})
		return NewConnectionError("operation failed after retries", false, err)
	}

	return err
}
