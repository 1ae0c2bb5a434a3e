package archive

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
	"github.com/thirdweb-dev/archive-exporter/internal/metrics"
)

// RetryableError marks a failure worth another attempt: network errors,
// rate limiting and server-side errors.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string { return e.Err.Error() }

func (e *RetryableError) Unwrap() error { return e.Err }

func retryable(err error) error {
	return &RetryableError{Err: err}
}

func isRetryable(err error) bool {
	var r *RetryableError
	return errors.As(err, &r)
}

func (c *Client) newBackoff() backoff.BackOff {
	return &backoff.ExponentialBackOff{
		InitialInterval:     c.cfg.InitialInterval,
		RandomizationFactor: 0.5,
		Multiplier:          2,
		MaxInterval:         c.cfg.MaxInterval,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
}

// withRetry runs op until it succeeds, fails permanently, or runs out of
// attempts. Only RetryableError failures are retried.
func withRetry[T any](ctx context.Context, c *Client, name string, op func(ctx context.Context) (T, error)) (T, error) {
	attempts := 0
	operation := func() (T, error) {
		res, err := op(ctx)
		attempts++
		if err == nil {
			return res, nil
		}
		if ctx.Err() != nil {
			return res, backoff.Permanent(ctx.Err())
		}
		if !isRetryable(err) || attempts >= c.cfg.MaxAttempts {
			return res, backoff.Permanent(err)
		}
		return res, err
	}

	notify := func(err error, wait time.Duration) {
		metrics.FetchRetries.Inc()
		log.Warn().Err(err).Str("operation", name).Int("attempt", attempts).Dur("backoff", wait).Msg("Retrying archive request")
	}

	return backoff.RetryNotifyWithData(operation, backoff.WithContext(c.newBackoff(), ctx), notify)
}
