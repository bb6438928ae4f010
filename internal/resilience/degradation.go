package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/Agnikulu/signalnoise/internal/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// DegradationLevel represents how degraded the system currently is.
type DegradationLevel int

const (
	// DegradationNone — everything is operational.
	DegradationNone DegradationLevel = iota
	// DegradationPartial — some non-critical features disabled.
	DegradationPartial
	// DegradationSevere — most features disabled, only the manual workbench
	// (human-authored verdicts, browsing) keeps working.
	DegradationSevere
)

func (d DegradationLevel) String() string {
	switch d {
	case DegradationNone:
		return "none"
	case DegradationPartial:
		return "partial"
	case DegradationSevere:
		return "severe"
	default:
		return "unknown"
	}
}

// DegradationManager coordinates graceful degradation across the external
// adapters: the LLM provider, the transcription providers, and the
// reference-document crawler. It monitors their health and automatically
// flips feature flags so the manual evidence workbench keeps working even
// when every external dependency is down.
type DegradationManager struct {
	mu         sync.RWMutex
	features   *config.FeatureFlags
	logger     zerolog.Logger
	level      DegradationLevel
	components map[string]ComponentState
	metrics    *degradationMetrics
	actions    []DegradationAction

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// ComponentState tracks the health of an external dependency.
type ComponentState struct {
	Name      string    `json:"name"`
	Healthy   bool      `json:"healthy"`
	Message   string    `json:"message"`
	LastCheck time.Time `json:"last_check"`
}

// DegradationAction records an automatic degradation action taken.
type DegradationAction struct {
	Timestamp time.Time `json:"timestamp"`
	Component string    `json:"component"`
	Action    string    `json:"action"`
	Reason    string    `json:"reason"`
}

type degradationMetrics struct {
	level        prometheus.Gauge
	actionsTotal prometheus.Counter
}

// NewDegradationManager creates a new degradation manager.
func NewDegradationManager(features *config.FeatureFlags, logger zerolog.Logger) *DegradationManager {
	ctx, cancel := context.WithCancel(context.Background())

	dm := &DegradationManager{
		features:   features,
		logger:     logger.With().Str("component", "degradation-manager").Logger(),
		level:      DegradationNone,
		components: make(map[string]ComponentState),
		ctx:        ctx,
		cancel:     cancel,
	}

	dm.metrics = &degradationMetrics{
		level: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "system_degradation_level",
			Help: "Current degradation level (0=none, 1=partial, 2=severe)",
		}),
		actionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "degradation_actions_total",
			Help: "Total automatic degradation actions taken",
		}),
	}
	prometheus.Register(dm.metrics.level)
	prometheus.Register(dm.metrics.actionsTotal)

	return dm
}

// Level returns the current degradation level.
func (dm *DegradationManager) Level() DegradationLevel {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	return dm.level
}

// ComponentHealth returns the current health summary.
func (dm *DegradationManager) ComponentHealth() map[string]ComponentState {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	out := make(map[string]ComponentState, len(dm.components))
	for k, v := range dm.components {
		out[k] = v
	}
	return out
}

// RecentActions returns the last N degradation actions.
func (dm *DegradationManager) RecentActions() []DegradationAction {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	out := make([]DegradationAction, len(dm.actions))
	copy(out, dm.actions)
	return out
}

// HealthCheckResponse is the enhanced health response with degradation info.
type HealthCheckResponse struct {
	Status     string                    `json:"status"`
	Level      string                    `json:"degradation_level"`
	Components map[string]ComponentState `json:"components"`
	Actions    []DegradationAction       `json:"recent_actions,omitempty"`
}

// HealthCheck performs a full health check and returns the result.
func (dm *DegradationManager) HealthCheck() HealthCheckResponse {
	dm.mu.RLock()
	level := dm.level
	components := make(map[string]ComponentState, len(dm.components))
	for k, v := range dm.components {
		components[k] = v
	}
	actions := make([]DegradationAction, len(dm.actions))
	copy(actions, dm.actions)
	dm.mu.RUnlock()

	status := "healthy"
	if level == DegradationPartial {
		status = "degraded"
	} else if level == DegradationSevere {
		status = "critical"
	}

	return HealthCheckResponse{
		Status:     status,
		Level:      level.String(),
		Components: components,
		Actions:    actions,
	}
}

// -----------------------------------------------------------------------
// Scenario handlers
// -----------------------------------------------------------------------

// HandleReferenceFetchUnavailable applies: the crawler's circuit breaker
// tripped. Reference fetches fall back to whatever is already cached (or
// are served empty); check_hypothesis still runs against segment text
// alone.
func (dm *DegradationManager) HandleReferenceFetchUnavailable(reason string) {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	dm.components["reference-crawler"] = ComponentState{
		Name: "reference-crawler", Healthy: false, Message: reason, LastCheck: time.Now(),
	}

	dm.features.DisableFeature(config.FeatureReferenceFetch, reason)
	dm.recordAction("reference-crawler", "disabled reference fetch", reason)

	dm.recalcLevel()
	dm.logger.Warn().Str("reason", reason).Msg("reference crawler unavailable, serving cached/empty reference text")
}

// HandleReferenceFetchRecovered reverts the reference-fetch degradation.
func (dm *DegradationManager) HandleReferenceFetchRecovered() {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	dm.components["reference-crawler"] = ComponentState{
		Name: "reference-crawler", Healthy: true, Message: "recovered", LastCheck: time.Now(),
	}

	dm.features.EnableFeature(config.FeatureReferenceFetch)
	dm.recordAction("reference-crawler", "re-enabled reference fetch", "recovered")

	dm.recalcLevel()
	dm.logger.Info().Msg("reference crawler recovered, reference fetch re-enabled")
}

// HandleLLMProviderUnavailable applies: the LLM provider's circuit breaker
// tripped. Both hypothesis suggestion and automated analysis are disabled;
// segments can still be reviewed and human verdicts still committed.
func (dm *DegradationManager) HandleLLMProviderUnavailable(reason string) {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	dm.components["llm-provider"] = ComponentState{
		Name: "llm-provider", Healthy: false, Message: reason, LastCheck: time.Now(),
	}

	dm.features.DisableFeature(config.FeatureLLMSuggestions, reason)
	dm.features.DisableFeature(config.FeatureLLMAnalysis, reason)
	dm.recordAction("llm-provider", "disabled suggest and analyze", reason)

	dm.recalcLevel()
	dm.logger.Warn().Str("reason", reason).Msg("LLM provider unavailable, falling back to manual review")
}

// HandleLLMProviderRecovered reverts the LLM degradation.
func (dm *DegradationManager) HandleLLMProviderRecovered() {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	dm.components["llm-provider"] = ComponentState{
		Name: "llm-provider", Healthy: true, Message: "recovered", LastCheck: time.Now(),
	}

	dm.features.EnableFeature(config.FeatureLLMSuggestions)
	dm.features.EnableFeature(config.FeatureLLMAnalysis)
	dm.recordAction("llm-provider", "re-enabled suggest and analyze", "recovered")

	dm.recalcLevel()
	dm.logger.Info().Msg("LLM provider recovered")
}

// HandleTranscriptionProviderUnavailable applies: both transcription
// providers are failing. It records the outage and turns the transcription
// feature flag off. New transcription requests still queue, and the
// transcription worker does not read the flag, so it keeps claiming them.
func (dm *DegradationManager) HandleTranscriptionProviderUnavailable(reason string) {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	dm.components["transcription-provider"] = ComponentState{
		Name: "transcription-provider", Healthy: false, Message: reason, LastCheck: time.Now(),
	}

	dm.features.DisableFeature(config.FeatureTranscription, reason)
	dm.recordAction("transcription-provider", "disabled transcription", reason)

	dm.recalcLevel()
	dm.logger.Warn().Str("reason", reason).Msg("transcription providers unavailable, transcription disabled")
}

// HandleTranscriptionProviderRecovered reverts the transcription
// degradation.
func (dm *DegradationManager) HandleTranscriptionProviderRecovered() {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	dm.components["transcription-provider"] = ComponentState{
		Name: "transcription-provider", Healthy: true, Message: "recovered", LastCheck: time.Now(),
	}

	dm.features.EnableFeature(config.FeatureTranscription)
	dm.recordAction("transcription-provider", "re-enabled transcription", "recovered")

	dm.recalcLevel()
	dm.logger.Info().Msg("transcription providers recovered")
}

// -----------------------------------------------------------------------
// Internal helpers
// -----------------------------------------------------------------------

func (dm *DegradationManager) recordAction(component, action, reason string) {
	a := DegradationAction{
		Timestamp: time.Now(),
		Component: component,
		Action:    action,
		Reason:    reason,
	}
	dm.actions = append(dm.actions, a)
	if len(dm.actions) > 50 {
		dm.actions = dm.actions[len(dm.actions)-50:]
	}
	dm.metrics.actionsTotal.Inc()
}

// recalcLevel recomputes the degradation level based on component states.
// Must be called with dm.mu held.
func (dm *DegradationManager) recalcLevel() {
	unhealthy := 0
	for _, cs := range dm.components {
		if !cs.Healthy {
			unhealthy++
		}
	}

	old := dm.level
	switch {
	case unhealthy == 0:
		dm.level = DegradationNone
	case unhealthy == 1:
		dm.level = DegradationPartial
	default:
		dm.level = DegradationSevere
	}

	if dm.level != old {
		dm.metrics.level.Set(float64(dm.level))
		dm.logger.Info().
			Str("from", old.String()).
			Str("to", dm.level.String()).
			Int("unhealthy_components", unhealthy).
			Msg("Degradation level changed")
	}
}

// Stop shuts down the manager.
func (dm *DegradationManager) Stop() {
	dm.cancel()
	dm.wg.Wait()
}
