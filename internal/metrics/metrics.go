package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Counters

	IngestionRequestsEnqueuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingestion_requests_enqueued_total",
			Help: "Ingestion requests enqueued per source",
		},
		[]string{"source_id"},
	)

	IngestionRequestsClaimedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingestion_requests_claimed_total",
			Help: "Ingestion requests claimed by a worker",
		},
		[]string{},
	)

	IngestionRequestsCompletedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingestion_requests_completed_total",
			Help: "Ingestion requests completed, by outcome",
		},
		[]string{"outcome"}, // "completed", "failed"
	)

	TranscriptionRequestsClaimedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transcription_requests_claimed_total",
			Help: "Transcription requests claimed by a worker",
		},
		[]string{},
	)

	TranscriptionRequestsCompletedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transcription_requests_completed_total",
			Help: "Transcription requests completed, by outcome",
		},
		[]string{"outcome"},
	)

	AdapterCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adapter_calls_total",
			Help: "External adapter invocations by adapter and outcome",
		},
		[]string{"adapter", "outcome"}, // outcome: "ok", "retry", "error", "rate_limited"
	)

	CircuitBreakerTripsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_trips_total",
			Help: "Number of times an adapter circuit breaker opened",
		},
		[]string{"adapter"},
	)

	ReferenceCacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reference_cache_hits_total",
			Help: "Reference cache lookups by outcome",
		},
		[]string{"outcome"}, // "hit", "miss", "expired", "degraded"
	)

	EvidenceCommitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evidence_commits_total",
			Help: "Evidence commits by verdict",
		},
		[]string{"verdict"},
	)

	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "API requests",
		},
		[]string{"endpoint", "method", "status"},
	)

	APIErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_errors_total",
			Help: "API error responses by error code",
		},
		[]string{"code"},
	)

	RateLimitHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_hits_total",
			Help: "Requests rejected by the API rate limiter",
		},
		[]string{},
	)

	// Gauges

	IngestionQueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ingestion_queue_depth",
			Help: "Queued (unclaimed) ingestion requests",
		},
		[]string{},
	)

	TranscriptionQueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "transcription_queue_depth",
			Help: "Pending (unclaimed) transcription requests",
		},
		[]string{},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Current circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"adapter"},
	)

	APIRequestsInFlight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "api_requests_in_flight",
			Help: "Concurrent API requests",
		},
		[]string{},
	)

	// Histograms

	AdapterCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "adapter_call_duration_seconds",
			Help:    "External adapter call duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"adapter"},
	)

	JobProcessingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "job_processing_duration_seconds",
			Help:    "Time from claim to terminal state, per job kind",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"}, // "ingestion", "transcription"
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	APIResponseSizeBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_response_size_bytes",
			Help:    "API response body size",
			Buckets: prometheus.ExponentialBuckets(128, 4, 8),
		},
		[]string{"endpoint"},
	)

	// Registry for all metrics
	metricsRegistry = make(map[string]prometheus.Collector)
	registryMu      sync.RWMutex
)

// InitMetrics registers all metrics with Prometheus.
func InitMetrics() {
	registryMu.Lock()
	defer registryMu.Unlock()

	register := func(name string, c prometheus.Collector) {
		prometheus.MustRegister(c)
		metricsRegistry[name] = c
	}

	register("ingestion_requests_enqueued_total", IngestionRequestsEnqueuedTotal)
	register("ingestion_requests_claimed_total", IngestionRequestsClaimedTotal)
	register("ingestion_requests_completed_total", IngestionRequestsCompletedTotal)
	register("transcription_requests_claimed_total", TranscriptionRequestsClaimedTotal)
	register("transcription_requests_completed_total", TranscriptionRequestsCompletedTotal)
	register("adapter_calls_total", AdapterCallsTotal)
	register("circuit_breaker_trips_total", CircuitBreakerTripsTotal)
	register("reference_cache_hits_total", ReferenceCacheHitsTotal)
	register("evidence_commits_total", EvidenceCommitsTotal)
	register("api_requests_total", APIRequestsTotal)
	register("api_errors_total", APIErrorsTotal)
	register("rate_limit_hits_total", RateLimitHitsTotal)

	register("ingestion_queue_depth", IngestionQueueDepth)
	register("transcription_queue_depth", TranscriptionQueueDepth)
	register("circuit_breaker_state", CircuitBreakerState)
	register("api_requests_in_flight", APIRequestsInFlight)

	register("adapter_call_duration_seconds", AdapterCallDuration)
	register("job_processing_duration_seconds", JobProcessingDuration)
	register("api_request_duration_seconds", APIRequestDuration)
	register("api_response_size_bytes", APIResponseSizeBytes)
}

// IncrementCounter increments a counter metric with labels.
func IncrementCounter(name string, labels map[string]string) {
	registryMu.RLock()
	metric, exists := metricsRegistry[name]
	registryMu.RUnlock()

	if !exists {
		return
	}

	if counterVec, ok := metric.(*prometheus.CounterVec); ok {
		counterVec.With(labels).Inc()
	}
}

// SetGauge sets a gauge metric value with labels.
func SetGauge(name string, value float64, labels map[string]string) {
	registryMu.RLock()
	metric, exists := metricsRegistry[name]
	registryMu.RUnlock()

	if !exists {
		return
	}

	if gaugeVec, ok := metric.(*prometheus.GaugeVec); ok {
		gaugeVec.With(labels).Set(value)
	}
}

// ObserveHistogram observes a histogram metric with labels.
func ObserveHistogram(name string, value float64, labels map[string]string) {
	registryMu.RLock()
	metric, exists := metricsRegistry[name]
	registryMu.RUnlock()

	if !exists {
		return
	}

	if histogramVec, ok := metric.(*prometheus.HistogramVec); ok {
		histogramVec.With(labels).Observe(value)
	}
}

// GetMetric retrieves a metric by name for external use.
func GetMetric(name string) prometheus.Collector {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return metricsRegistry[name]
}
