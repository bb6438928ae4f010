package models

import "time"

// ReferenceType classifies the external document attached to a Hypothesis,
// which in turn determines the reference cache's TTL (see referencecache).
type ReferenceType string

const (
	ReferenceTypePaper   ReferenceType = "paper"
	ReferenceTypeArticle ReferenceType = "article"
	ReferenceTypeBook    ReferenceType = "book"
	ReferenceTypeWebsite ReferenceType = "website"
	ReferenceTypeNone    ReferenceType = "none"
)

// Hypothesis is a standing testable proposition evaluated against segments.
type Hypothesis struct {
	ID             string        `json:"id"`
	HypothesisText string        `json:"hypothesis_text"`
	Description    string        `json:"description,omitempty"`
	ReferenceURL   string        `json:"reference_url,omitempty"`
	ReferenceType  ReferenceType `json:"reference_type"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// ContentFields are the four fields that, when changed, trigger a
// HypothesisVersion snapshot of the pre-image.
func (h *Hypothesis) ContentFields() (text, description, referenceURL string, referenceType ReferenceType) {
	return h.HypothesisText, h.Description, h.ReferenceURL, h.ReferenceType
}

// HypothesisVersion is an append-only snapshot of a Hypothesis's content
// fields, taken before the update that changed them.
type HypothesisVersion struct {
	ID             string        `json:"id"`
	HypothesisID   string        `json:"hypothesis_id"`
	HypothesisText string        `json:"hypothesis_text"`
	Description    string        `json:"description,omitempty"`
	ReferenceURL   string        `json:"reference_url,omitempty"`
	ReferenceType  ReferenceType `json:"reference_type"`
	RecordedAt     time.Time     `json:"recorded_at"`
	RecordedBy     string        `json:"recorded_by,omitempty"`
}

// ReferenceCacheEntry is the cached full text of a Hypothesis's reference
// document, keyed by hypothesis ID.
type ReferenceCacheEntry struct {
	HypothesisID   string    `json:"hypothesis_id"`
	FullText       string    `json:"full_text"`
	CharacterCount int       `json:"character_count"`
	FetchedAt      time.Time `json:"fetched_at"`
}

// ReferenceTTL returns how long a cache entry remains fresh for the given reference
// type: 30 days for paper/book, 7 days otherwise.
func ReferenceTTL(refType ReferenceType) time.Duration {
	switch refType {
	case ReferenceTypePaper, ReferenceTypeBook:
		return 30 * 24 * time.Hour
	default:
		return 7 * 24 * time.Hour
	}
}
