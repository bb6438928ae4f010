package adapters

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	backoff "gopkg.in/cenkalti/backoff.v1"
)

// adapterBackoffSchedule yields the fixed 250ms / 1s sequence the
// external adapters retry on, then stops — callers get at most 3 attempts
// total (the first try plus these two backoffs).
type adapterBackoffSchedule struct {
	delays []time.Duration
	idx    int
}

func newAdapterBackoff() backoff.BackOff {
	return &adapterBackoffSchedule{
		delays: []time.Duration{
			250 * time.Millisecond,
			1 * time.Second,
		},
	}
}

func (s *adapterBackoffSchedule) NextBackOff() time.Duration {
	if s.idx >= len(s.delays) {
		return backoff.Stop
	}
	d := s.delays[s.idx]
	s.idx++
	return d
}

func (s *adapterBackoffSchedule) Reset() {
	s.idx = 0
}

// isRetryableAdapterError reports whether err should be retried:
// TransientError and RateLimitedError are retried, any other error (a
// 4xx-equivalent "bad request" from the provider) is not.
func isRetryableAdapterError(err error) bool {
	var te *TransientError
	var re *RateLimitedError
	return errors.As(err, &te) || errors.As(err, &re)
}

// WithAdapterRetry runs fn up to 3 attempts (250ms, then 1s between
// attempts) for errors classified as transient or rate-limited.
// Any other error returns immediately without retrying.
func WithAdapterRetry(ctx context.Context, logger zerolog.Logger, operation string, fn func(ctx context.Context) error) error {
	attempt := 0
	operationWithCtx := func() error {
		attempt++
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !isRetryableAdapterError(err) {
			return backoff.Permanent(err)
		}
		logger.Warn().
			Err(err).
			Str("operation", operation).
			Int("attempt", attempt).
			Msg("adapter call failed, retrying")
		return err
	}

	b := backoff.WithContext(newAdapterBackoff(), ctx)
	if err := backoff.Retry(operationWithCtx, b); err != nil {
		if perm, ok := err.(*backoff.PermanentError); ok {
			return perm.Err
		}
		return err
	}
	return nil
}
