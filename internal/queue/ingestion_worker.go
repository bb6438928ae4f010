// Package queue implements the ingestion and transcription poll loops
// that claim queued requests and drive them through the adapters layer
// to a terminal state.
package queue

import (
	"context"
	"time"

	"github.com/Agnikulu/signalnoise/internal/adapters"
	"github.com/Agnikulu/signalnoise/internal/metrics"
	"github.com/Agnikulu/signalnoise/internal/models"
	"github.com/Agnikulu/signalnoise/internal/resilience"
	"github.com/Agnikulu/signalnoise/internal/store"
	"github.com/rs/zerolog"
)

const defaultIngestionPollInterval = 5 * time.Second

// IngestionWorker polls the Store for queued ingestion requests and runs
// each one against its Source's Ingestor. Failures are recorded on the
// request and never auto-retried — an operator must reset status to
// requeue.
type IngestionWorker struct {
	store        *store.Store
	ingestor     adapters.Ingestor
	breaker      *resilience.CircuitBreaker
	degradation  *resilience.DegradationManager
	pollInterval time.Duration
	logger       zerolog.Logger
}

// NewIngestionWorker builds an IngestionWorker. pollInterval of zero falls
// back to a 5s default.
func NewIngestionWorker(st *store.Store, ingestor adapters.Ingestor, breaker *resilience.CircuitBreaker, degradation *resilience.DegradationManager, pollInterval time.Duration, logger zerolog.Logger) *IngestionWorker {
	if pollInterval == 0 {
		pollInterval = defaultIngestionPollInterval
	}
	return &IngestionWorker{
		store:        st,
		ingestor:     ingestor,
		breaker:      breaker,
		degradation:  degradation,
		pollInterval: pollInterval,
		logger:       logger.With().Str("component", "ingestion-worker").Logger(),
	}
}

// Run blocks, polling every pollInterval, until ctx is cancelled. The
// caller is expected to run this in its own goroutine and cancel ctx as
// part of graceful shutdown.
func (w *IngestionWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.logger.Info().Dur("interval", w.pollInterval).Msg("ingestion worker started")
	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("ingestion worker stopping")
			return
		case <-ticker.C:
			w.pollOnce(ctx)
		}
	}
}

func (w *IngestionWorker) pollOnce(ctx context.Context) {
	for {
		req, err := w.store.ClaimNextIngestionRequest(ctx)
		if err != nil {
			w.logger.Error().Err(err).Msg("failed to claim ingestion request")
			return
		}
		if req == nil {
			return
		}

		metrics.IncrementCounter("ingestion_requests_claimed_total", map[string]string{})
		w.processOne(ctx, req)

		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

func (w *IngestionWorker) processOne(ctx context.Context, req *models.IngestionRequest) {
	started := time.Now()
	logger := w.logger.With().Str("job_id", req.ID).Str("source_id", req.SourceID).Logger()

	source, err := w.store.GetSource(ctx, req.SourceID)
	if err != nil {
		w.fail(ctx, logger, req, "load source: "+err.Error())
		return
	}

	var records []adapters.DocumentRecord
	callErr := w.breaker.Call(func() error {
		var innerErr error
		innerErr = adapters.WithAdapterRetry(ctx, logger, "ingest", func(ctx context.Context) error {
			var err error
			records, err = w.ingestor.Ingest(ctx, source)
			return err
		})
		return innerErr
	})

	if callErr != nil {
		if w.degradation != nil {
			w.degradation.HandleReferenceFetchUnavailable(callErr.Error())
		}
		w.fail(ctx, logger, req, callErr.Error())
		return
	}
	if w.degradation != nil {
		w.degradation.HandleReferenceFetchRecovered()
	}

	for _, rec := range records {
		doc := models.Document{
			SourceID:          source.ID,
			ExternalID:        rec.ExternalID,
			Title:             rec.Title,
			Author:            rec.Author,
			PublishedAt:       rec.PublishedAt,
			OriginalURL:       rec.OriginalURL,
			OriginalMediaType: rec.OriginalMediaType,
			ContentText:       rec.ContentText,
			ContentHTML:       rec.ContentHTML,
			Assets:            rec.Assets,
		}
		if _, err := w.store.UpsertDocument(ctx, doc); err != nil {
			w.fail(ctx, logger, req, "upsert document "+rec.ExternalID+": "+err.Error())
			return
		}
	}

	if err := w.store.CompleteIngestionRequest(ctx, req.ID); err != nil {
		logger.Error().Err(err).Msg("failed to mark ingestion request completed")
		return
	}

	metrics.IncrementCounter("ingestion_requests_completed_total", map[string]string{"outcome": "completed"})
	metrics.ObserveHistogram("job_processing_duration_seconds", time.Since(started).Seconds(), map[string]string{"kind": "ingestion"})
	logger.Info().Int("documents", len(records)).Dur("duration", time.Since(started)).Msg("ingestion request completed")
}

func (w *IngestionWorker) fail(ctx context.Context, logger zerolog.Logger, req *models.IngestionRequest, reason string) {
	if err := w.store.FailIngestionRequest(ctx, req.ID, reason); err != nil {
		logger.Error().Err(err).Msg("failed to mark ingestion request failed")
		return
	}
	metrics.IncrementCounter("ingestion_requests_completed_total", map[string]string{"outcome": "failed"})
	logger.Warn().Str("reason", reason).Msg("ingestion request failed")
}
