package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/Agnikulu/signalnoise/internal/adapters"
	"github.com/Agnikulu/signalnoise/internal/metrics"
	"github.com/Agnikulu/signalnoise/internal/models"
	"github.com/Agnikulu/signalnoise/internal/resilience"
	"github.com/Agnikulu/signalnoise/internal/store"
	"github.com/rs/zerolog"
)

const defaultTranscriptionPollInterval = 5 * time.Second

// TranscriptionWorker polls the Store for pending transcription requests
// and runs each one against the Transcriber adapter. A completed full-window
// request overwrites the document's content text and marks its transcript
// status complete; a windowed request appends the resulting text as a new
// asset and marks the transcript status partial, leaving content text as is.
type TranscriptionWorker struct {
	store        *store.Store
	transcriber  adapters.Transcriber
	breaker      *resilience.CircuitBreaker
	degradation  *resilience.DegradationManager
	pollInterval time.Duration
	logger       zerolog.Logger
}

// NewTranscriptionWorker builds a TranscriptionWorker.
func NewTranscriptionWorker(st *store.Store, transcriber adapters.Transcriber, breaker *resilience.CircuitBreaker, degradation *resilience.DegradationManager, pollInterval time.Duration, logger zerolog.Logger) *TranscriptionWorker {
	if pollInterval == 0 {
		pollInterval = defaultTranscriptionPollInterval
	}
	return &TranscriptionWorker{
		store:        st,
		transcriber:  transcriber,
		breaker:      breaker,
		degradation:  degradation,
		pollInterval: pollInterval,
		logger:       logger.With().Str("component", "transcription-worker").Logger(),
	}
}

// Run blocks, polling every pollInterval, until ctx is cancelled.
func (w *TranscriptionWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.logger.Info().Dur("interval", w.pollInterval).Msg("transcription worker started")
	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("transcription worker stopping")
			return
		case <-ticker.C:
			w.pollOnce(ctx)
		}
	}
}

func (w *TranscriptionWorker) pollOnce(ctx context.Context) {
	for {
		req, err := w.store.ClaimNextTranscriptionRequest(ctx)
		if err != nil {
			w.logger.Error().Err(err).Msg("failed to claim transcription request")
			return
		}
		if req == nil {
			return
		}

		metrics.IncrementCounter("transcription_requests_claimed_total", map[string]string{})
		w.processOne(ctx, req)

		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

func (w *TranscriptionWorker) processOne(ctx context.Context, req *models.TranscriptionRequest) {
	started := time.Now()
	logger := w.logger.With().Str("job_id", req.ID).Str("document_id", req.DocumentID).Logger()

	doc, err := w.store.GetDocument(ctx, req.DocumentID)
	if err != nil {
		w.fail(ctx, logger, req, "load document: "+err.Error())
		return
	}
	asset := doc.AudioAsset()
	if asset == nil {
		w.fail(ctx, logger, req, "document has no audio asset to transcribe")
		return
	}

	var result adapters.TranscriptionResult
	callErr := w.breaker.Call(func() error {
		return adapters.WithAdapterRetry(ctx, logger, "transcribe", func(ctx context.Context) error {
			var err error
			result, err = w.transcriber.Transcribe(ctx, asset.URL, req.StartSeconds, req.EndSeconds, req.Model)
			return err
		})
	})

	if callErr != nil {
		if w.degradation != nil {
			w.degradation.HandleTranscriptionProviderUnavailable(callErr.Error())
		}
		w.fail(ctx, logger, req, callErr.Error())
		return
	}
	if w.degradation != nil {
		w.degradation.HandleTranscriptionProviderRecovered()
	}

	transcriptAsset := models.Asset{
		Type:         models.AssetTypeTranscript,
		URL:          asset.URL,
		Duration:     asset.Duration,
		StartSeconds: req.StartSeconds,
		EndSeconds:   req.EndSeconds,
		Text:         result.Text,
		Provider:     string(req.Provider),
	}

	var overwrite *string
	status := models.TranscriptStatusPartial
	if req.IsFullWindow() {
		overwrite = &result.Text
		status = models.TranscriptStatusComplete
	}

	if err := w.store.AppendTranscriptAsset(ctx, req.DocumentID, transcriptAsset, overwrite, status); err != nil {
		w.fail(ctx, logger, req, fmt.Sprintf("append transcript asset: %v", err))
		return
	}

	if err := w.store.CompleteTranscriptionRequest(ctx, req.ID, result.Text, result.Metadata); err != nil {
		logger.Error().Err(err).Msg("failed to mark transcription request completed")
		return
	}

	metrics.IncrementCounter("transcription_requests_completed_total", map[string]string{"outcome": "completed"})
	metrics.ObserveHistogram("job_processing_duration_seconds", time.Since(started).Seconds(), map[string]string{"kind": "transcription"})
	logger.Info().Dur("duration", time.Since(started)).Msg("transcription request completed")
}

func (w *TranscriptionWorker) fail(ctx context.Context, logger zerolog.Logger, req *models.TranscriptionRequest, reason string) {
	if err := w.store.FailTranscriptionRequest(ctx, req.ID, reason); err != nil {
		logger.Error().Err(err).Msg("failed to mark transcription request failed")
		return
	}
	metrics.IncrementCounter("transcription_requests_completed_total", map[string]string{"outcome": "failed"})
	logger.Warn().Str("reason", reason).Msg("transcription request failed")
}
