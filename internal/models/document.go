package models

import "time"

// TranscriptStatus tracks how much of a document's audio has been
// transcribed.
type TranscriptStatus string

const (
	TranscriptStatusNone     TranscriptStatus = "none"
	TranscriptStatusPending  TranscriptStatus = "pending"
	TranscriptStatusPartial  TranscriptStatus = "partial"
	TranscriptStatusComplete TranscriptStatus = "complete"
)

// IngestStatus tracks whether a document was cleanly upserted.
type IngestStatus string

const (
	IngestStatusPending IngestStatus = "pending"
	IngestStatusOK      IngestStatus = "ok"
	IngestStatusFailed  IngestStatus = "failed"
)

// AssetType distinguishes the kind of external artifact attached to a
// Document (audio file, transcript fragment, image, ...).
type AssetType string

const (
	AssetTypeAudio      AssetType = "audio"
	AssetTypeTranscript AssetType = "transcript"
	AssetTypeImage      AssetType = "image"
)

// Asset is one entry in a Document's asset list. Transcription runs append
// Asset{Type: AssetTypeTranscript} entries; they are never removed, so a
// document can accumulate multiple overlapping transcript windows.
type Asset struct {
	Type         AssetType `json:"type"`
	URL          string    `json:"url,omitempty"`
	Duration     *float64  `json:"duration,omitempty"`
	StartSeconds *float64  `json:"start_seconds,omitempty"`
	EndSeconds   *float64  `json:"end_seconds,omitempty"`
	Text         string    `json:"text,omitempty"`
	Provider     string    `json:"provider,omitempty"`
}

// Document is a single ingested artifact (article, episode, ...).
type Document struct {
	ID                string           `json:"id"`
	SourceID          string           `json:"source_id"`
	ExternalID        string           `json:"external_id"`
	Title             string           `json:"title"`
	Author            string           `json:"author,omitempty"`
	PublishedAt       *time.Time       `json:"published_at,omitempty"`
	OriginalURL       string           `json:"original_url,omitempty"`
	OriginalMediaType string           `json:"original_media_type,omitempty"`
	ContentText       string           `json:"content_text"`
	ContentHTML       string           `json:"content_html,omitempty"`
	Assets            []Asset          `json:"assets"`
	TranscriptStatus  TranscriptStatus `json:"transcript_status"`
	IngestStatus      IngestStatus     `json:"ingest_status"`
	IsArchived        bool             `json:"is_archived"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// AudioAsset returns the first audio asset, if any, used by the
// transcription worker to resolve the URL to send to the Transcriber.
func (d *Document) AudioAsset() *Asset {
	for i := range d.Assets {
		if d.Assets[i].Type == AssetTypeAudio {
			return &d.Assets[i]
		}
	}
	return nil
}
