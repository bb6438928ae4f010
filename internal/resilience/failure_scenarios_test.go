package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Agnikulu/signalnoise/internal/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------
// Scenario 1: reference crawler unavailable
// -----------------------------------------------------------------------

func TestDegradation_ReferenceFetchUnavailable(t *testing.T) {
	ff := config.NewFeatureFlags(zerolog.Nop())
	dm := NewDegradationManager(ff, zerolog.Nop())
	defer dm.Stop()

	assert.True(t, ff.IsEnabled(config.FeatureReferenceFetch))

	dm.HandleReferenceFetchUnavailable("connection refused")

	assert.False(t, ff.IsEnabled(config.FeatureReferenceFetch))
	assert.True(t, ff.IsEnabled(config.FeatureLLMSuggestions))
	assert.True(t, ff.IsEnabled(config.FeatureLLMAnalysis))
	assert.Equal(t, DegradationPartial, dm.Level())

	hc := dm.HealthCheck()
	assert.Equal(t, "degraded", hc.Status)

	dm.HandleReferenceFetchRecovered()
	assert.True(t, ff.IsEnabled(config.FeatureReferenceFetch))
	assert.Equal(t, DegradationNone, dm.Level())
}

// -----------------------------------------------------------------------
// Scenario 2: LLM provider unavailable
// -----------------------------------------------------------------------

func TestDegradation_LLMProviderUnavailable(t *testing.T) {
	ff := config.NewFeatureFlags(zerolog.Nop())
	dm := NewDegradationManager(ff, zerolog.Nop())
	defer dm.Stop()

	dm.HandleLLMProviderUnavailable("rate limited")
	assert.False(t, ff.IsEnabled(config.FeatureLLMSuggestions))
	assert.False(t, ff.IsEnabled(config.FeatureLLMAnalysis))
	assert.True(t, ff.IsEnabled(config.FeatureReferenceFetch)) // unrelated feature stays on
	assert.Equal(t, DegradationPartial, dm.Level())

	dm.HandleLLMProviderRecovered()
	assert.True(t, ff.IsEnabled(config.FeatureLLMSuggestions))
	assert.True(t, ff.IsEnabled(config.FeatureLLMAnalysis))
	assert.Equal(t, DegradationNone, dm.Level())
}

// -----------------------------------------------------------------------
// Scenario 3: both transcription providers unavailable
// -----------------------------------------------------------------------

func TestDegradation_TranscriptionProviderUnavailable(t *testing.T) {
	ff := config.NewFeatureFlags(zerolog.Nop())
	dm := NewDegradationManager(ff, zerolog.Nop())
	defer dm.Stop()

	dm.HandleTranscriptionProviderUnavailable("both providers returning 5xx")
	assert.False(t, ff.IsEnabled(config.FeatureTranscription))
	assert.Equal(t, DegradationPartial, dm.Level())

	dm.HandleTranscriptionProviderRecovered()
	assert.True(t, ff.IsEnabled(config.FeatureTranscription))
	assert.Equal(t, DegradationNone, dm.Level())
}

// -----------------------------------------------------------------------
// Circuit breaker integration with degradation
// -----------------------------------------------------------------------

func TestCircuitBreaker_TriggersOnReferenceCacheRedisFailure(t *testing.T) {
	cb := newTestBreaker(t, 3, 100*time.Millisecond)
	redisErr := errors.New("READONLY You can't write against a read only replica")

	for i := 0; i < 3; i++ {
		_ = cb.Call(func() error { return redisErr })
	}

	assert.Equal(t, "open", cb.GetState())

	err := cb.Call(func() error { return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)

	time.Sleep(120 * time.Millisecond)
	assert.Equal(t, "half-open", cb.GetState())

	err = cb.Call(func() error { return nil })
	assert.NoError(t, err)
	assert.Equal(t, "closed", cb.GetState())
}

func TestCircuitBreaker_TriggersOnLLMTimeout(t *testing.T) {
	cb := newTestBreaker(t, 2, 50*time.Millisecond)
	timeoutErr := context.DeadlineExceeded

	_ = cb.Call(func() error { return timeoutErr })
	_ = cb.Call(func() error { return timeoutErr })

	assert.Equal(t, "open", cb.GetState())
}

// -----------------------------------------------------------------------
// Retry with circuit breaker
// -----------------------------------------------------------------------

func TestRetry_WithCircuitBreaker(t *testing.T) {
	cb := newTestBreaker(t, 5, 30*time.Second)
	ctx := context.Background()

	var attempt int
	err := RetryWithBackoff(ctx, RetryConfig{
		MaxAttempts:  5,
		InitialDelay: 10 * time.Millisecond,
	}, func(ctx context.Context) error {
		return cb.Call(func() error {
			attempt++
			if attempt <= 2 {
				return errors.New("transient network error")
			}
			return nil
		})
	})

	assert.NoError(t, err)
	assert.Equal(t, "closed", cb.GetState())
}

// -----------------------------------------------------------------------
// Degradation health check
// -----------------------------------------------------------------------

func TestDegradation_HealthCheck_Healthy(t *testing.T) {
	ff := config.NewFeatureFlags(zerolog.Nop())
	dm := NewDegradationManager(ff, zerolog.Nop())
	defer dm.Stop()

	hc := dm.HealthCheck()
	assert.Equal(t, "healthy", hc.Status)
	assert.Equal(t, "none", hc.Level)
}

func TestDegradation_HealthCheck_MultipleComponents(t *testing.T) {
	ff := config.NewFeatureFlags(zerolog.Nop())
	dm := NewDegradationManager(ff, zerolog.Nop())
	defer dm.Stop()

	dm.HandleReferenceFetchUnavailable("timeout")
	dm.HandleLLMProviderUnavailable("rate limited")

	hc := dm.HealthCheck()
	assert.Equal(t, "critical", hc.Status)
	assert.Equal(t, "severe", hc.Level)
	require.Len(t, hc.Actions, 2)
}

// -----------------------------------------------------------------------
// Recovery verification
// -----------------------------------------------------------------------

func TestDegradation_FullRecovery(t *testing.T) {
	ff := config.NewFeatureFlags(zerolog.Nop())
	dm := NewDegradationManager(ff, zerolog.Nop())
	defer dm.Stop()

	dm.HandleReferenceFetchUnavailable("down")
	dm.HandleLLMProviderUnavailable("down")
	dm.HandleTranscriptionProviderUnavailable("down")
	assert.Equal(t, DegradationSevere, dm.Level())

	dm.HandleReferenceFetchRecovered()
	dm.HandleLLMProviderRecovered()
	dm.HandleTranscriptionProviderRecovered()
	assert.Equal(t, DegradationNone, dm.Level())

	for _, f := range config.AllFeatures() {
		assert.True(t, ff.IsEnabled(f), "feature %s should be re-enabled", f)
	}
}
