package models

import "time"

// Verdict is the tagged outcome of a hypothesis-vs-segment analysis.
type Verdict string

const (
	VerdictConfirms   Verdict = "confirms"
	VerdictRefutes    Verdict = "refutes"
	VerdictNuances    Verdict = "nuances"
	VerdictIrrelevant Verdict = "irrelevant"
	VerdictNone       Verdict = "none"
)

// ValidVerdict reports whether v is one of the constrained vocabulary
// values (empty string is accepted as "no verdict yet").
func ValidVerdict(v Verdict) bool {
	switch v {
	case VerdictConfirms, VerdictRefutes, VerdictNuances, VerdictIrrelevant, VerdictNone, "":
		return true
	default:
		return false
	}
}

// AuthoredBy distinguishes a human-entered verdict from an LLM-produced one.
type AuthoredBy string

const (
	AuthoredByHuman AuthoredBy = "human"
	AuthoredByAgent AuthoredBy = "agent"
)

// FreshnessStatus is derived, never stored: a link is stale when its
// updated_at predates its hypothesis's updated_at.
type FreshnessStatus string

const (
	FreshnessCurrent FreshnessStatus = "current"
	FreshnessStale   FreshnessStatus = "stale"
)

// HypothesisSegmentLink is the stable, latest-state row for one
// (hypothesis, segment) pair.
type HypothesisSegmentLink struct {
	ID           string     `json:"id"`
	HypothesisID string     `json:"hypothesis_id"`
	SegmentID    string     `json:"segment_id"`
	Verdict      Verdict    `json:"verdict"`
	AnalysisText string     `json:"analysis_text,omitempty"`
	AuthoredBy   AuthoredBy `json:"authored_by"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Freshness computes whether this link is stale relative to
// hypothesisUpdatedAt.
func (l *HypothesisSegmentLink) Freshness(hypothesisUpdatedAt time.Time) FreshnessStatus {
	if l.UpdatedAt.Before(hypothesisUpdatedAt) {
		return FreshnessStale
	}
	return FreshnessCurrent
}

// HypothesisSegmentLinkRun is one append-only historical analysis of a
// (hypothesis, segment) pair, carrying a snapshot of the hypothesis's
// content fields as they stood immediately after this run was committed.
type HypothesisSegmentLinkRun struct {
	ID           string     `json:"id"`
	LinkID       string     `json:"link_id"`
	HypothesisID string     `json:"hypothesis_id"`
	SegmentID    string     `json:"segment_id"`
	Verdict      Verdict    `json:"verdict"`
	AnalysisText string     `json:"analysis_text,omitempty"`
	AuthoredBy   AuthoredBy `json:"authored_by"`
	CreatedAt    time.Time  `json:"created_at"`

	HypothesisTextSnapshot        string        `json:"hypothesis_text_snapshot"`
	DescriptionSnapshot           string        `json:"description_snapshot,omitempty"`
	ReferenceURLSnapshot          string        `json:"reference_url_snapshot,omitempty"`
	ReferenceTypeSnapshot         ReferenceType `json:"reference_type_snapshot"`
	HypothesisUpdatedAtSnapshot   time.Time     `json:"hypothesis_updated_at_snapshot"`
}

// Question is a navigation label grouping related hypotheses.
type Question struct {
	ID           string    `json:"id"`
	QuestionText string    `json:"question_text"`
	CreatedAt    time.Time `json:"created_at"`
}

// QuestionHypothesisLink relates a Question to a Hypothesis.
type QuestionHypothesisLink struct {
	QuestionID   string `json:"question_id"`
	HypothesisID string `json:"hypothesis_id"`
}
