package api

import (
	"net/http"
	"strings"

	"github.com/Agnikulu/signalnoise/internal/models"
)

// ---------------------------------------------------------------------------
// Segment payload validation
// ---------------------------------------------------------------------------

// CreateSegmentRequest is the decoded body of POST /segments.
type CreateSegmentRequest struct {
	DocumentID  string            `json:"document_id"`
	Text        string            `json:"text"`
	ContentHTML string            `json:"content_html,omitempty"`
	StartOffset *int              `json:"start_offset,omitempty"`
	EndOffset   *int              `json:"end_offset,omitempty"`
	OffsetKind  models.OffsetKind `json:"offset_kind,omitempty"`
	Labels      []string          `json:"labels,omitempty"`
}

// Validate checks a CreateSegmentRequest against the offset and vocabulary
// invariants: offsets are either both present or both absent, end must
// exceed start, and offset_kind must be one of the known coordinate spaces.
func (req *CreateSegmentRequest) Validate() *ValidationError {
	if strings.TrimSpace(req.DocumentID) == "" {
		return &ValidationError{Field: "document_id", Message: "document_id is required", Code: ErrCodeInvalidParameter}
	}
	if strings.TrimSpace(req.Text) == "" {
		return &ValidationError{Field: "text", Message: "text is required", Code: ErrCodeInvalidParameter}
	}

	if (req.StartOffset == nil) != (req.EndOffset == nil) {
		return &ValidationError{Field: "start_offset/end_offset", Message: "start_offset and end_offset must both be set or both be absent", Code: ErrCodeInvalidParameter}
	}
	if req.StartOffset != nil && req.EndOffset != nil {
		if *req.StartOffset < 0 {
			return &ValidationError{Field: "start_offset", Message: "start_offset must be non-negative", Code: ErrCodeInvalidParameter}
		}
		if *req.EndOffset <= *req.StartOffset {
			return &ValidationError{Field: "end_offset", Message: "end_offset must be greater than start_offset", Code: ErrCodeInvalidParameter}
		}
	}

	if req.OffsetKind != "" && !validOffsetKind(req.OffsetKind) {
		return &ValidationError{Field: "offset_kind", Message: "offset_kind must be one of: text, html, seconds", Code: ErrCodeInvalidParameter}
	}

	return nil
}

func validOffsetKind(k models.OffsetKind) bool {
	switch k {
	case models.OffsetKindText, models.OffsetKindHTML, models.OffsetKindSeconds:
		return true
	default:
		return false
	}
}

// ---------------------------------------------------------------------------
// Hypothesis payload validation
// ---------------------------------------------------------------------------

// HypothesisRequest is the decoded body of POST/PATCH /hypotheses.
type HypothesisRequest struct {
	HypothesisText string               `json:"hypothesis_text"`
	Description    string               `json:"description,omitempty"`
	ReferenceURL   string               `json:"reference_url,omitempty"`
	ReferenceType  models.ReferenceType `json:"reference_type,omitempty"`
}

// Validate checks a HypothesisRequest. requireText controls whether
// hypothesis_text is mandatory (true for create, false for a partial patch).
func (req *HypothesisRequest) Validate(requireText bool) *ValidationError {
	if requireText && strings.TrimSpace(req.HypothesisText) == "" {
		return &ValidationError{Field: "hypothesis_text", Message: "hypothesis_text is required", Code: ErrCodeInvalidParameter}
	}
	if req.ReferenceType != "" && !validReferenceType(req.ReferenceType) {
		return &ValidationError{Field: "reference_type", Message: "reference_type must be one of: paper, article, book, website, none", Code: ErrCodeInvalidParameter}
	}
	if req.ReferenceURL != "" && !strings.HasPrefix(req.ReferenceURL, "http://") && !strings.HasPrefix(req.ReferenceURL, "https://") {
		return &ValidationError{Field: "reference_url", Message: "reference_url must be an http(s) URL", Code: ErrCodeInvalidParameter}
	}
	return nil
}

func validReferenceType(t models.ReferenceType) bool {
	switch t {
	case models.ReferenceTypePaper, models.ReferenceTypeArticle, models.ReferenceTypeBook, models.ReferenceTypeWebsite, models.ReferenceTypeNone:
		return true
	default:
		return false
	}
}

// ---------------------------------------------------------------------------
// Evidence payload validation
// ---------------------------------------------------------------------------

// CommitEvidenceRequest is the decoded body of one item in a commit_evidence
// batch. A null/empty HypothesisID means "create a new hypothesis from
// HypothesisText/Description"; a non-empty one means "update or reuse the
// existing hypothesis with this content".
type CommitEvidenceRequest struct {
	HypothesisID   string            `json:"hypothesis_id,omitempty"`
	HypothesisText string            `json:"hypothesis_text,omitempty"`
	Description    string            `json:"description,omitempty"`
	Verdict        models.Verdict    `json:"verdict"`
	AnalysisText   string            `json:"analysis_text,omitempty"`
	AuthoredBy     models.AuthoredBy `json:"authored_by"`
}

// Validate checks a CommitEvidenceRequest against the verdict vocabulary.
// hypothesis_id is optional, but hypothesis_text is required when it's
// absent since that's what the new hypothesis is created from.
func (req *CommitEvidenceRequest) Validate() *ValidationError {
	if strings.TrimSpace(req.HypothesisID) == "" && strings.TrimSpace(req.HypothesisText) == "" {
		return &ValidationError{Field: "hypothesis_text", Message: "hypothesis_text is required when hypothesis_id is absent", Code: ErrCodeInvalidParameter}
	}
	if !models.ValidVerdict(req.Verdict) {
		return &ValidationError{Field: "verdict", Message: "verdict must be one of: confirms, refutes, nuances, irrelevant, none", Code: ErrCodeInvalidParameter}
	}
	if !validAuthoredBy(req.AuthoredBy) {
		return &ValidationError{Field: "authored_by", Message: "authored_by must be one of: human, agent", Code: ErrCodeInvalidParameter}
	}
	return nil
}

func validAuthoredBy(a models.AuthoredBy) bool {
	switch a {
	case models.AuthoredByHuman, models.AuthoredByAgent:
		return true
	default:
		return false
	}
}

// ---------------------------------------------------------------------------
// Question payload validation
// ---------------------------------------------------------------------------

// QuestionRequest is the decoded body of POST /questions.
type QuestionRequest struct {
	QuestionText string `json:"question_text"`
}

// Validate checks a QuestionRequest.
func (req *QuestionRequest) Validate() *ValidationError {
	if strings.TrimSpace(req.QuestionText) == "" {
		return &ValidationError{Field: "question_text", Message: "question_text is required", Code: ErrCodeInvalidParameter}
	}
	return nil
}

// LinkHypothesisRequest is the decoded body of POST /questions/{id}/hypotheses.
type LinkHypothesisRequest struct {
	HypothesisID string `json:"hypothesis_id"`
}

// Validate checks a LinkHypothesisRequest.
func (req *LinkHypothesisRequest) Validate() *ValidationError {
	if strings.TrimSpace(req.HypothesisID) == "" {
		return &ValidationError{Field: "hypothesis_id", Message: "hypothesis_id is required", Code: ErrCodeInvalidParameter}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Job request payload validation
// ---------------------------------------------------------------------------

// IngestRequestPayload is the decoded body of POST /ingest-requests.
type IngestRequestPayload struct {
	SourceIDs []string `json:"source_ids"`
}

// Validate checks an IngestRequestPayload.
func (req *IngestRequestPayload) Validate() *ValidationError {
	if len(req.SourceIDs) == 0 {
		return &ValidationError{Field: "source_ids", Message: "source_ids must not be empty", Code: ErrCodeInvalidParameter}
	}
	for _, id := range req.SourceIDs {
		if strings.TrimSpace(id) == "" {
			return &ValidationError{Field: "source_ids", Message: "source_ids must not contain blank entries", Code: ErrCodeInvalidParameter}
		}
	}
	return nil
}

// TranscriptionRequestPayload is the decoded body of POST /transcription-requests.
type TranscriptionRequestPayload struct {
	DocumentID   string                        `json:"document_id"`
	Provider     models.TranscriptionProvider   `json:"provider"`
	Model        string                        `json:"model,omitempty"`
	StartSeconds *float64                      `json:"start_seconds,omitempty"`
	EndSeconds   *float64                      `json:"end_seconds,omitempty"`
}

// Validate checks a TranscriptionRequestPayload.
func (req *TranscriptionRequestPayload) Validate() *ValidationError {
	if strings.TrimSpace(req.DocumentID) == "" {
		return &ValidationError{Field: "document_id", Message: "document_id is required", Code: ErrCodeInvalidParameter}
	}
	switch req.Provider {
	case models.TranscriptionProviderOpenAI, models.TranscriptionProviderAssembly:
	default:
		return &ValidationError{Field: "provider", Message: "provider must be one of: openai, assembly", Code: ErrCodeInvalidParameter}
	}
	if (req.StartSeconds == nil) != (req.EndSeconds == nil) {
		return &ValidationError{Field: "start_seconds/end_seconds", Message: "start_seconds and end_seconds must both be set or both be absent", Code: ErrCodeInvalidParameter}
	}
	if req.StartSeconds != nil && req.EndSeconds != nil && *req.EndSeconds <= *req.StartSeconds {
		return &ValidationError{Field: "end_seconds", Message: "end_seconds must be greater than start_seconds", Code: ErrCodeInvalidParameter}
	}
	return nil
}

// ---------------------------------------------------------------------------
// List parameter validation (pagination shared across GET list endpoints)
// ---------------------------------------------------------------------------

// ListParams holds parsed pagination parameters common to every list endpoint.
type ListParams struct {
	Limit  int
	Offset int
}

// ParseListParams parses limit/offset query parameters with bounds matching
// the rest of the API (1-100, 0-10000).
func ParseListParams(r *http.Request) (ListParams, *ValidationError) {
	limit, err := parseIntQuery(r, "limit", 50, 100)
	if err != nil {
		return ListParams{}, &ValidationError{Field: "limit", Message: "limit must be an integer between 1 and 100", Code: ErrCodeInvalidParameter}
	}
	offset, err := parseIntQuery(r, "offset", 0, 10000)
	if err != nil {
		return ListParams{}, &ValidationError{Field: "offset", Message: "offset must be a non-negative integer up to 10000", Code: ErrCodeInvalidParameter}
	}
	if limit < 1 {
		limit = 1
	}
	return ListParams{Limit: limit, Offset: offset}, nil
}
