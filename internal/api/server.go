package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Agnikulu/signalnoise/internal/adapters"
	"github.com/Agnikulu/signalnoise/internal/config"
	"github.com/Agnikulu/signalnoise/internal/evidence"
	"github.com/Agnikulu/signalnoise/internal/resilience"
	"github.com/Agnikulu/signalnoise/internal/store"
	"github.com/rs/zerolog"
)

// APIServer is the HTTP surface over the Store and the evidence engine:
// sources, documents, segments, hypotheses, questions, evidence, and the
// stateless analysis helpers.
type APIServer struct {
	router      *http.ServeMux
	store       *store.Store
	engine      *evidence.Engine
	analyzer    adapters.Analyzer
	degradation *resilience.DegradationManager
	config      *config.Config
	logger      zerolog.Logger
	startTime   time.Time
	version     string
}

// NewAPIServer creates and configures a new API server with all middleware
// and routes.
func NewAPIServer(
	st *store.Store,
	engine *evidence.Engine,
	analyzer adapters.Analyzer,
	degradation *resilience.DegradationManager,
	cfg *config.Config,
	logger zerolog.Logger,
) *APIServer {
	s := &APIServer{
		router:      http.NewServeMux(),
		store:       st,
		engine:      engine,
		analyzer:    analyzer,
		degradation: degradation,
		config:      cfg,
		logger:      logger.With().Str("component", "api").Logger(),
		startTime:   time.Now(),
		version:     "1.0.0",
	}

	s.setupRoutes()
	return s
}

// setupRoutes registers all REST endpoints.
func (s *APIServer) setupRoutes() {
	s.router.HandleFunc("GET /healthz", s.handleHealthz)
	s.router.HandleFunc("GET /readyz", s.handleReadyz)

	s.router.HandleFunc("GET /sources", s.handleListSources)

	s.router.HandleFunc("POST /ingest-requests", s.handleCreateIngestRequest)
	s.router.HandleFunc("POST /transcription-requests", s.handleCreateTranscriptionRequest)

	s.router.HandleFunc("GET /documents", s.handleListDocuments)
	s.router.HandleFunc("PATCH /documents/{id}/archive", s.handleArchiveDocument)
	s.router.HandleFunc("GET /documents/{id}/content", s.handleGetDocumentContent)
	s.router.HandleFunc("GET /documents/{id}/segments", s.handleListDocumentSegments)

	s.router.HandleFunc("GET /segments", s.handleListSegments)
	s.router.HandleFunc("POST /segments", s.handleCreateSegment)
	s.router.HandleFunc("GET /segments/{id}", s.handleGetSegment)
	s.router.HandleFunc("DELETE /segments/{id}", s.handleDeleteSegment)
	s.router.HandleFunc("GET /segments/{id}/hypotheses", s.handleListHypothesesForSegment)
	s.router.HandleFunc("POST /segments/{id}/hypotheses:suggest", s.handleSuggestHypotheses)
	s.router.HandleFunc("POST /segments/{id}/evidence", s.handleCommitEvidence)

	s.router.HandleFunc("GET /hypotheses", s.handleListHypotheses)
	s.router.HandleFunc("POST /hypotheses", s.handleCreateHypothesis)
	s.router.HandleFunc("PATCH /hypotheses/{id}", s.handleUpdateHypothesis)
	s.router.HandleFunc("DELETE /hypotheses/{id}", s.handleDeleteHypothesis)
	s.router.HandleFunc("GET /hypotheses/{id}/evidence", s.handleListEvidenceForHypothesis)
	s.router.HandleFunc("GET /hypotheses/{id}/reference", s.handleGetHypothesisReference)

	s.router.HandleFunc("GET /questions", s.handleListQuestions)
	s.router.HandleFunc("POST /questions", s.handleCreateQuestion)
	s.router.HandleFunc("DELETE /questions/{id}", s.handleDeleteQuestion)
	s.router.HandleFunc("GET /questions/{id}/hypotheses", s.handleListHypothesesForQuestion)
	s.router.HandleFunc("POST /questions/{id}/hypotheses", s.handleLinkHypothesisToQuestion)

	s.router.HandleFunc("POST /analysis:check_hypothesis", s.handleCheckHypothesis)
	s.router.HandleFunc("POST /analysis:generate_pov", s.handleGeneratePOV)
}

// Handler returns the full middleware-wrapped HTTP handler.
func (s *APIServer) Handler() http.Handler {
	var h http.Handler = s.router

	h = MetricsMiddleware(h)
	h = RateLimitMiddleware(s.config.API.RateLimit, h)
	h = RequestValidationMiddleware(h)
	h = SecurityHeadersMiddleware(h)
	h = CORSMiddleware(h)
	h = GzipMiddleware(h)
	h = RecoveryMiddleware(s.logger, h)
	h = RequestIDMiddleware(s.logger, h)
	h = LoggerMiddleware(s.logger, h)

	return h
}

// ListenAndServe builds the *http.Server for this API, ready for the
// caller to run and shut down.
func (s *APIServer) ListenAndServe(addr string) *http.Server {
	if addr == "" {
		addr = fmt.Sprintf(":%d", s.config.API.Port)
	}

	return &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// Shutdown performs graceful shutdown of API-specific resources. Present
// for symmetry with the worker Closers registered on the supervisor; the
// Store and Redis client are closed independently by their own closers
// registered in cmd/api.
func (s *APIServer) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("API server shutting down")
	return nil
}
