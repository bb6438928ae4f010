package adapters

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyHTTPStatus(t *testing.T) {
	t.Run("429 is rate limited", func(t *testing.T) {
		err := classifyHTTPStatus(http.StatusTooManyRequests, "slow down")
		var rl *RateLimitedError
		assert.True(t, errors.As(err, &rl))
	})

	t.Run("5xx is transient", func(t *testing.T) {
		err := classifyHTTPStatus(http.StatusBadGateway, "upstream down")
		var te *TransientError
		assert.True(t, errors.As(err, &te))
	})

	t.Run("4xx is a plain non-retryable error", func(t *testing.T) {
		err := classifyHTTPStatus(http.StatusBadRequest, "malformed")
		var te *TransientError
		var rl *RateLimitedError
		assert.False(t, errors.As(err, &te))
		assert.False(t, errors.As(err, &rl))
		assert.Error(t, err)
	})

	t.Run("2xx is nil", func(t *testing.T) {
		assert.NoError(t, classifyHTTPStatus(http.StatusOK, ""))
	})
}
