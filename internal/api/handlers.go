package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/Agnikulu/signalnoise/internal/evidence"
	"github.com/Agnikulu/signalnoise/internal/metrics"
	"github.com/Agnikulu/signalnoise/internal/models"
	"github.com/Agnikulu/signalnoise/internal/resilience"
	"github.com/Agnikulu/signalnoise/internal/store"
)

// ---------------------------------------------------------------------------
// Health
// ---------------------------------------------------------------------------

// HealthResponse is returned by GET /healthz.
type HealthResponse struct {
	Status  string `json:"status"`
	Uptime  string `json:"uptime"`
	Version string `json:"version"`
}

func (s *APIServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Uptime:  time.Since(s.startTime).String(),
		Version: s.version,
	})
}

// ReadyResponse is returned by GET /readyz, reflecting store connectivity
// and the degradation manager's current view of adapter health.
type ReadyResponse struct {
	Ready            bool                   `json:"ready"`
	DegradationLevel string                 `json:"degradation_level"`
	Components       map[string]interface{} `json:"components,omitempty"`
}

func (s *APIServer) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		respondJSON(w, http.StatusServiceUnavailable, ReadyResponse{Ready: false})
		return
	}

	resp := ReadyResponse{Ready: true, DegradationLevel: "none"}
	if s.degradation != nil {
		health := s.degradation.HealthCheck()
		resp.DegradationLevel = s.degradation.Level().String()
		components := make(map[string]interface{}, len(health.Components))
		for name, state := range health.Components {
			components[name] = state
		}
		resp.Components = components
	}
	respondJSON(w, http.StatusOK, resp)
}

// ---------------------------------------------------------------------------
// Sources
// ---------------------------------------------------------------------------

func (s *APIServer) handleListSources(w http.ResponseWriter, r *http.Request) {
	sources, err := s.store.ListSources(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list sources", ErrCodeInternalError)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"sources": sources})
}

// ---------------------------------------------------------------------------
// Ingestion / transcription requests
// ---------------------------------------------------------------------------

func (s *APIServer) handleCreateIngestRequest(w http.ResponseWriter, r *http.Request) {
	var req IngestRequestPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body", ErrCodeInvalidParameter)
		return
	}
	if verr := req.Validate(); verr != nil {
		writeValidationError(w, r, verr)
		return
	}

	queued := 0
	for _, sourceID := range req.SourceIDs {
		_, err := s.store.EnqueueIngestionRequest(r.Context(), sourceID)
		if err == store.ErrAlreadyQueued {
			continue
		}
		if err != nil {
			respondError(w, http.StatusInternalServerError, "failed to enqueue ingestion request", ErrCodeInternalError)
			return
		}
		queued++
		metrics.IncrementCounter("ingestion_requests_enqueued_total", map[string]string{"source_id": sourceID})
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{"queued_jobs": queued})
}

func (s *APIServer) handleCreateTranscriptionRequest(w http.ResponseWriter, r *http.Request) {
	var req TranscriptionRequestPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body", ErrCodeInvalidParameter)
		return
	}
	if verr := req.Validate(); verr != nil {
		writeValidationError(w, r, verr)
		return
	}

	job, err := s.store.EnqueueTranscriptionRequest(r.Context(), req.DocumentID, req.Provider, req.Model, req.StartSeconds, req.EndSeconds)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to enqueue transcription request", ErrCodeInternalError)
		return
	}
	respondJSON(w, http.StatusCreated, job)
}

// ---------------------------------------------------------------------------
// Documents
// ---------------------------------------------------------------------------

func (s *APIServer) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	params, verr := ParseListParams(r)
	if verr != nil {
		writeValidationError(w, r, verr)
		return
	}

	docs, segmentCounts, err := s.store.ListActiveDocuments(r.Context(), params.Limit, params.Offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list documents", ErrCodeInternalError)
		return
	}

	type documentWithCount struct {
		*models.Document
		SegmentCount int `json:"segment_count"`
	}
	out := make([]documentWithCount, len(docs))
	for i, d := range docs {
		out[i] = documentWithCount{Document: d, SegmentCount: segmentCounts[i]}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"documents": out})
}

func (s *APIServer) handleArchiveDocument(w http.ResponseWriter, r *http.Request) {
	id := pathID(r, "id")
	if err := s.store.ArchiveDocument(r.Context(), id); err != nil {
		if err == store.ErrNotFound {
			writeValidationError(w, r, ErrDocumentNotFound)
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to archive document", ErrCodeInternalError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *APIServer) handleGetDocumentContent(w http.ResponseWriter, r *http.Request) {
	id := pathID(r, "id")
	doc, err := s.store.GetDocument(r.Context(), id)
	if err != nil {
		if err == store.ErrNotFound {
			writeValidationError(w, r, ErrDocumentNotFound)
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to load document", ErrCodeInternalError)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"content_text": doc.ContentText,
		"content_html": doc.ContentHTML,
		"assets":       doc.Assets,
	})
}

func (s *APIServer) handleListDocumentSegments(w http.ResponseWriter, r *http.Request) {
	id := pathID(r, "id")
	segments, err := s.store.ListSegmentsForDocument(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list segments", ErrCodeInternalError)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"segments": segments})
}

// ---------------------------------------------------------------------------
// Segments
// ---------------------------------------------------------------------------

func (s *APIServer) handleListSegments(w http.ResponseWriter, r *http.Request) {
	params, verr := ParseListParams(r)
	if verr != nil {
		writeValidationError(w, r, verr)
		return
	}
	segments, _, err := s.store.ListSegments(r.Context(), params.Limit, params.Offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list segments", ErrCodeInternalError)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"segments": segments})
}

func (s *APIServer) handleCreateSegment(w http.ResponseWriter, r *http.Request) {
	var req CreateSegmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body", ErrCodeInvalidParameter)
		return
	}
	if verr := req.Validate(); verr != nil {
		writeValidationError(w, r, verr)
		return
	}

	segment, err := s.store.CreateSegment(r.Context(), req.DocumentID, req.Text, req.ContentHTML, req.StartOffset, req.EndOffset, req.OffsetKind, req.Labels)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to create segment", ErrCodeInternalError)
		return
	}
	respondJSON(w, http.StatusCreated, segment)
}

func (s *APIServer) handleGetSegment(w http.ResponseWriter, r *http.Request) {
	id := pathID(r, "id")
	segment, err := s.store.GetSegment(r.Context(), id)
	if err != nil {
		if err == store.ErrNotFound {
			writeValidationError(w, r, ErrSegmentNotFound)
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to load segment", ErrCodeInternalError)
		return
	}
	respondJSON(w, http.StatusOK, segment)
}

func (s *APIServer) handleDeleteSegment(w http.ResponseWriter, r *http.Request) {
	id := pathID(r, "id")
	if err := s.store.DeleteSegment(r.Context(), id); err != nil {
		if err == store.ErrNotFound {
			writeValidationError(w, r, ErrSegmentNotFound)
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to delete segment", ErrCodeInternalError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *APIServer) handleListHypothesesForSegment(w http.ResponseWriter, r *http.Request) {
	id := pathID(r, "id")
	links, err := s.engine.ListHypothesesForSegment(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list hypotheses for segment", ErrCodeInternalError)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"links": links})
}

func (s *APIServer) handleSuggestHypotheses(w http.ResponseWriter, r *http.Request) {
	id := pathID(r, "id")
	suggestions, err := s.engine.Suggest(r.Context(), id)
	if err != nil {
		if err == store.ErrNotFound {
			writeValidationError(w, r, ErrSegmentNotFound)
			return
		}
		respondError(w, http.StatusBadGateway, "failed to suggest hypotheses", ErrCodeProviderError)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"suggestions": suggestions})
}

// CommitEvidenceBatchRequest is the decoded body of POST /segments/{id}/evidence:
// a segment commits a list of (hypothesis, verdict) items in one transaction.
type CommitEvidenceBatchRequest struct {
	Items []CommitEvidenceRequest `json:"items"`
}

func (s *APIServer) handleCommitEvidence(w http.ResponseWriter, r *http.Request) {
	segmentID := pathID(r, "id")

	var batch CommitEvidenceBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body", ErrCodeInvalidParameter)
		return
	}
	if len(batch.Items) == 0 {
		writeValidationError(w, r, &ValidationError{Field: "items", Message: "items must not be empty", Code: ErrCodeInvalidParameter})
		return
	}

	items := make([]evidence.CommitItem, len(batch.Items))
	for i, it := range batch.Items {
		if verr := it.Validate(); verr != nil {
			writeValidationError(w, r, verr)
			return
		}
		items[i] = evidence.CommitItem{
			HypothesisID:   it.HypothesisID,
			HypothesisText: it.HypothesisText,
			Description:    it.Description,
			Verdict:        it.Verdict,
			AnalysisText:   it.AnalysisText,
			AuthoredBy:     it.AuthoredBy,
		}
	}

	var results []store.CommitEvidenceResult
	retryErr := resilience.RetryWithBackoff(r.Context(), resilience.RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  50 * time.Millisecond,
		MaxDelay:      500 * time.Millisecond,
		Logger:        &s.logger,
		OperationName: "commit_evidence",
	}, func(ctx context.Context) error {
		res, err := s.engine.CommitEvidence(ctx, segmentID, items)
		if err != nil {
			if store.IsSerializationConflict(err) {
				return resilience.NewRetryableError(err)
			}
			return resilience.NewNonRetryableError(err)
		}
		results = res
		return nil
	})
	if retryErr != nil {
		if store.IsSerializationConflict(retryErr) {
			respondError(w, http.StatusServiceUnavailable, "evidence commit lost a serialization race after retrying", ErrCodeServiceUnavailable)
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to commit evidence", ErrCodeInternalError)
		return
	}

	for _, res := range results {
		metrics.IncrementCounter("evidence_commits_total", map[string]string{"verdict": string(res.Run.Verdict)})
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"results": results})
}

// ---------------------------------------------------------------------------
// Hypotheses
// ---------------------------------------------------------------------------

func (s *APIServer) handleListHypotheses(w http.ResponseWriter, r *http.Request) {
	params, verr := ParseListParams(r)
	if verr != nil {
		writeValidationError(w, r, verr)
		return
	}
	hypotheses, counts, err := s.store.ListHypotheses(r.Context(), params.Limit, params.Offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list hypotheses", ErrCodeInternalError)
		return
	}

	type hypothesisWithCount struct {
		*models.Hypothesis
		EvidenceCount int `json:"evidence_count"`
	}
	out := make([]hypothesisWithCount, len(hypotheses))
	for i, h := range hypotheses {
		out[i] = hypothesisWithCount{Hypothesis: h, EvidenceCount: counts[i]}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"hypotheses": out})
}

func (s *APIServer) handleCreateHypothesis(w http.ResponseWriter, r *http.Request) {
	var req HypothesisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body", ErrCodeInvalidParameter)
		return
	}
	if verr := req.Validate(true); verr != nil {
		writeValidationError(w, r, verr)
		return
	}

	hyp, err := s.store.CreateHypothesis(r.Context(), models.Hypothesis{
		HypothesisText: req.HypothesisText,
		Description:    req.Description,
		ReferenceURL:   req.ReferenceURL,
		ReferenceType:  req.ReferenceType,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to create hypothesis", ErrCodeInternalError)
		return
	}
	respondJSON(w, http.StatusCreated, hyp)
}

func (s *APIServer) handleUpdateHypothesis(w http.ResponseWriter, r *http.Request) {
	id := pathID(r, "id")

	var req HypothesisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body", ErrCodeInvalidParameter)
		return
	}
	if verr := req.Validate(false); verr != nil {
		writeValidationError(w, r, verr)
		return
	}

	patch := store.HypothesisPatch{RecordedBy: "api"}
	if req.HypothesisText != "" {
		patch.HypothesisText = &req.HypothesisText
	}
	if req.Description != "" {
		patch.Description = &req.Description
	}
	if req.ReferenceURL != "" {
		patch.ReferenceURL = &req.ReferenceURL
	}
	if req.ReferenceType != "" {
		patch.ReferenceType = &req.ReferenceType
	}

	hyp, err := s.store.UpdateHypothesis(r.Context(), id, patch)
	if err != nil {
		if err == store.ErrNotFound {
			writeValidationError(w, r, ErrHypothesisNotFound)
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to update hypothesis", ErrCodeInternalError)
		return
	}
	respondJSON(w, http.StatusOK, hyp)
}

func (s *APIServer) handleDeleteHypothesis(w http.ResponseWriter, r *http.Request) {
	id := pathID(r, "id")
	if err := s.store.DeleteHypothesis(r.Context(), id); err != nil {
		if err == store.ErrNotFound {
			writeValidationError(w, r, ErrHypothesisNotFound)
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to delete hypothesis", ErrCodeInternalError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *APIServer) handleListEvidenceForHypothesis(w http.ResponseWriter, r *http.Request) {
	id := pathID(r, "id")
	views, err := s.engine.ListEvidenceForHypothesis(r.Context(), id)
	if err != nil {
		if err == store.ErrNotFound {
			writeValidationError(w, r, ErrHypothesisNotFound)
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to list evidence", ErrCodeInternalError)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"evidence": views})
}

func (s *APIServer) handleGetHypothesisReference(w http.ResponseWriter, r *http.Request) {
	id := pathID(r, "id")
	hyp, err := s.store.GetHypothesis(r.Context(), id)
	if err != nil {
		if err == store.ErrNotFound {
			writeValidationError(w, r, ErrHypothesisNotFound)
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to load hypothesis", ErrCodeInternalError)
		return
	}

	entry, err := s.store.GetReferenceCacheEntry(r.Context(), hyp.ID)
	if err == store.ErrNotFound {
		respondJSON(w, http.StatusOK, map[string]interface{}{"cached": false})
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load reference cache entry", ErrCodeInternalError)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"cached":          true,
		"character_count": entry.CharacterCount,
		"fetched_at":      entry.FetchedAt,
	})
}

// ---------------------------------------------------------------------------
// Questions
// ---------------------------------------------------------------------------

func (s *APIServer) handleListQuestions(w http.ResponseWriter, r *http.Request) {
	questions, err := s.store.ListQuestions(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list questions", ErrCodeInternalError)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"questions": questions})
}

func (s *APIServer) handleCreateQuestion(w http.ResponseWriter, r *http.Request) {
	var req QuestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body", ErrCodeInvalidParameter)
		return
	}
	if verr := req.Validate(); verr != nil {
		writeValidationError(w, r, verr)
		return
	}
	question, err := s.store.CreateQuestion(r.Context(), req.QuestionText)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to create question", ErrCodeInternalError)
		return
	}
	respondJSON(w, http.StatusCreated, question)
}

func (s *APIServer) handleDeleteQuestion(w http.ResponseWriter, r *http.Request) {
	id := pathID(r, "id")
	if err := s.store.DeleteQuestion(r.Context(), id); err != nil {
		if err == store.ErrNotFound {
			writeValidationError(w, r, ErrQuestionNotFound)
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to delete question", ErrCodeInternalError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *APIServer) handleListHypothesesForQuestion(w http.ResponseWriter, r *http.Request) {
	id := pathID(r, "id")
	hypotheses, err := s.store.ListHypothesesForQuestion(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list hypotheses for question", ErrCodeInternalError)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"hypotheses": hypotheses})
}

func (s *APIServer) handleLinkHypothesisToQuestion(w http.ResponseWriter, r *http.Request) {
	id := pathID(r, "id")

	var req LinkHypothesisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body", ErrCodeInvalidParameter)
		return
	}
	if verr := req.Validate(); verr != nil {
		writeValidationError(w, r, verr)
		return
	}

	if err := s.store.LinkHypothesisToQuestion(r.Context(), id, req.HypothesisID); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to link hypothesis to question", ErrCodeInternalError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---------------------------------------------------------------------------
// Analysis
// ---------------------------------------------------------------------------

// CheckHypothesisRequest is the decoded body of POST /analysis:check_hypothesis:
// a stateless analysis call that does not require the segment or hypothesis to
// already exist in the store.
type CheckHypothesisRequest struct {
	SegmentText          string `json:"segment_text"`
	HypothesisText       string `json:"hypothesis_text"`
	Description          string `json:"description,omitempty"`
	ReferenceURL         string `json:"reference_url,omitempty"`
	IncludeFullReference bool   `json:"include_full_reference,omitempty"`
	HypothesisID         string `json:"hypothesis_id,omitempty"`
}

func (req *CheckHypothesisRequest) Validate() *ValidationError {
	if req.SegmentText == "" {
		return &ValidationError{Field: "segment_text", Message: "segment_text is required", Code: ErrCodeInvalidParameter}
	}
	if req.HypothesisText == "" {
		return &ValidationError{Field: "hypothesis_text", Message: "hypothesis_text is required", Code: ErrCodeInvalidParameter}
	}
	return nil
}

func (s *APIServer) handleCheckHypothesis(w http.ResponseWriter, r *http.Request) {
	var req CheckHypothesisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body", ErrCodeInvalidParameter)
		return
	}
	if verr := req.Validate(); verr != nil {
		writeValidationError(w, r, verr)
		return
	}

	verdict, analysisText, mode, err := s.engine.Analyze(r.Context(), evidence.AnalyzeRequest{
		SegmentText:          req.SegmentText,
		HypothesisText:       req.HypothesisText,
		Description:          req.Description,
		ReferenceURL:         req.ReferenceURL,
		IncludeFullReference: req.IncludeFullReference,
		HypothesisID:         req.HypothesisID,
	})
	if err != nil {
		respondError(w, http.StatusBadGateway, "analysis failed", ErrCodeProviderError)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"verdict":       verdict,
		"analysis_text": analysisText,
		"analysis_mode": mode,
	})
}

// handleGeneratePOV is a stub: point-of-view synthesis across a question's
// linked hypotheses is not implemented. It returns a well-formed, empty POV
// marked "implemented": false rather than a heuristic result.
func (s *APIServer) handleGeneratePOV(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"pov":         "",
		"implemented": false,
	})
}
