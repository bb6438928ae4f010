package adapters

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsRetryableAdapterError(t *testing.T) {
	assert.True(t, isRetryableAdapterError(&TransientError{Err: errors.New("boom")}))
	assert.True(t, isRetryableAdapterError(&RateLimitedError{Err: errors.New("slow down")}))
	assert.False(t, isRetryableAdapterError(errors.New("bad request")))
	assert.False(t, isRetryableAdapterError(nil))
}

func TestWithAdapterRetrySucceedsWithoutRetry(t *testing.T) {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	calls := 0

	err := WithAdapterRetry(context.Background(), logger, "test-op", func(ctx context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestWithAdapterRetryStopsOnPermanentError(t *testing.T) {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	calls := 0
	permanent := errors.New("bad request")

	err := WithAdapterRetry(context.Background(), logger, "test-op", func(ctx context.Context) error {
		calls++
		return permanent
	})

	require.Error(t, err)
	assert.Equal(t, permanent, err)
	assert.Equal(t, 1, calls)
}

func TestWithAdapterRetryRetriesTransientErrorsUpToThreeAttempts(t *testing.T) {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	calls := 0
	transient := &TransientError{Err: errors.New("connection reset")}

	err := WithAdapterRetry(context.Background(), logger, "test-op", func(ctx context.Context) error {
		calls++
		return transient
	})

	require.Error(t, err)
	assert.Equal(t, transient, err)
	assert.Equal(t, 3, calls)
}

func TestWithAdapterRetryRecoversAfterTransientFailures(t *testing.T) {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	calls := 0

	err := WithAdapterRetry(context.Background(), logger, "test-op", func(ctx context.Context) error {
		calls++
		if calls < 2 {
			return &RateLimitedError{Err: errors.New("slow down")}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}
