// Package adapters wraps every external collaborator behind a narrow
// interface: the feed parser (Ingestor), the speech-to-text providers
// (Transcriber), the LLM (Suggester, Analyzer), and the reference-document
// fetcher (Crawler). The ingestion and transcription workers call their
// Ingestor and Transcriber through WithAdapterRetry and a circuit breaker;
// the evidence engine and the reference cache call the Suggester, Analyzer
// and Crawler directly, without retries.
package adapters

import (
	"context"
	"time"

	"github.com/Agnikulu/signalnoise/internal/models"
)

// DocumentRecord is what an Ingestor yields for one item in a source feed.
type DocumentRecord struct {
	ExternalID        string
	Title             string
	Author            string
	PublishedAt       *time.Time
	OriginalURL       string
	OriginalMediaType string
	ContentText       string
	ContentHTML       string
	Assets            []models.Asset
}

// Ingestor pulls new documents from a configured source. Implementations
// must be idempotent over (source_id, external_id): the caller upserts, so
// yielding the same record twice is harmless.
type Ingestor interface {
	Ingest(ctx context.Context, source *models.Source) ([]DocumentRecord, error)
}

// TranscriptionResult is the outcome of one Transcriber call.
type TranscriptionResult struct {
	Text     string
	Metadata map[string]interface{}
}

// Transcriber converts an audio asset (optionally windowed) to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioURL string, startSeconds, endSeconds *float64, model string) (TranscriptionResult, error)
}

// HypothesisSuggestion is one candidate returned by a Suggester: either a
// reference to an existing hypothesis, or a brand-new one with no id yet.
type HypothesisSuggestion struct {
	HypothesisID   string
	HypothesisText string
	Description    string
	Source         SuggestionSource
}

// SuggestionSource distinguishes a suggestion reusing an existing
// hypothesis from a newly generated candidate.
type SuggestionSource string

const (
	SuggestionSourceExisting  SuggestionSource = "existing"
	SuggestionSourceGenerated SuggestionSource = "generated"
)

// ExistingHypothesis is the minimal shape a Suggester needs to decide
// whether to reuse a hypothesis instead of generating a new one.
type ExistingHypothesis struct {
	ID             string
	HypothesisText string
	Description    string
}

// Suggester proposes hypotheses worth evaluating against a segment.
type Suggester interface {
	SuggestHypotheses(ctx context.Context, segmentText string, existing []ExistingHypothesis) ([]HypothesisSuggestion, error)
}

// Analyzer evaluates one (segment, hypothesis) pair and returns a verdict.
type Analyzer interface {
	Analyze(ctx context.Context, segmentText, hypothesisText, description, referenceText string) (models.Verdict, string, error)
}

// Crawler fetches the full plain text of an external reference document.
type Crawler interface {
	FetchText(ctx context.Context, url string) (fullText string, charCount int, err error)
}

// TransientError marks an adapter failure the retry wrapper should retry;
// RateLimitedError is retried too, and any other plain error is treated as
// non-retryable.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return "transient: " + e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// RateLimitedError signals the provider asked the caller to back off; the
// transcription worker treats this the same as a Transient failure for
// retry purposes but records a distinct error summary.
type RateLimitedError struct {
	Err error
}

func (e *RateLimitedError) Error() string { return "rate limited: " + e.Err.Error() }
func (e *RateLimitedError) Unwrap() error { return e.Err }
