package models

import "time"

// JobStatus is the shared state machine for IngestionRequest and
// TranscriptionRequest: queued|pending -> in_progress -> completed, or
// -> failed (terminal until an operator resets it).
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusPending    JobStatus = "pending"
	JobStatusInProgress JobStatus = "in_progress"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// IngestionRequest is a queue row consumed by the ingestion worker. At most
// one queued row may exist per SourceID (enforced by the Store via a
// partial-unique constraint).
type IngestionRequest struct {
	ID           string    `json:"id"`
	SourceID     string    `json:"source_id"`
	Status       JobStatus `json:"status"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TranscriptionProvider identifies the speech-to-text backend requested.
type TranscriptionProvider string

const (
	TranscriptionProviderOpenAI   TranscriptionProvider = "openai"
	TranscriptionProviderAssembly TranscriptionProvider = "assembly"
)

// TranscriptionRequest is a queue row consumed by the transcription worker.
type TranscriptionRequest struct {
	ID           string                 `json:"id"`
	DocumentID   string                 `json:"document_id"`
	Provider     TranscriptionProvider  `json:"provider"`
	Model        string                 `json:"model,omitempty"`
	StartSeconds *float64               `json:"start_seconds,omitempty"`
	EndSeconds   *float64               `json:"end_seconds,omitempty"`
	Status       JobStatus              `json:"status"`
	ResultText   string                 `json:"result_text,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	ErrorMessage string                 `json:"error_message,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

// IsFullWindow reports whether this request covers the whole document
// (no start/end window), in which case a successful transcription
// overwrites document.content_text and sets transcript_status=complete.
func (t *TranscriptionRequest) IsFullWindow() bool {
	return t.StartSeconds == nil && t.EndSeconds == nil
}
