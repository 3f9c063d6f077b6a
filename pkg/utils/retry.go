package utils

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ioogle/evm-tx-sampler/internal/config"
	"github.com/ioogle/evm-tx-sampler/pkg/logger"
)

// permanentError marks an error that must not be retried
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so that the retry helpers return it immediately
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Retry execute a function with retry logic
func Retry(ctx context.Context, cfg config.RetryConfig, fn func() error, description string) error {
	_, err := RetryWithResult(ctx, cfg, func() (struct{}, error) {
		return struct{}{}, fn()
	}, description)
	return err
}

// RetryWithResult retries fn with exponential backoff and returns its result.
// Errors wrapped with Permanent stop the loop and are returned unwrapped.
func RetryWithResult[T any](ctx context.Context, cfg config.RetryConfig, fn func() (T, error), description string) (T, error) {
	var result T
	var lastErr error

	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	interval := cfg.InitialInterval

	for attempt := 1; attempt <= attempts; attempt++ {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		res, err := fn()
		if err == nil {
			if attempt > 1 {
				logger.Infof("%s succeeded after attempt %d", description, attempt)
			}
			return res, nil
		}

		var p *permanentError
		if errors.As(err, &p) {
			return result, p.err
		}

		lastErr = err
		if attempt < attempts {
			logger.Warnf("%s failed (attempt %d/%d): %v, retrying after %v",
				description, attempt, attempts, err, interval)

			select {
			case <-ctx.Done():
				return result, ctx.Err()
			case <-time.After(interval):
			}

			// calculate next retry interval
			interval = time.Duration(float64(interval) * cfg.Multiplier)
			if cfg.MaxInterval > 0 && interval > cfg.MaxInterval {
				interval = cfg.MaxInterval
			}
		}
	}

	return result, fmt.Errorf("%s failed to retry after %d attempts: %w", description, attempts, lastErr)
}
