// Package evidence implements the transactional core of the research
// workbench: suggesting hypotheses for a segment, running (but not
// persisting) an analysis, committing evidence items, and listing the
// evidence graph from either side (hypothesis or segment).
package evidence

import (
	"context"
	"fmt"
	"sort"

	"github.com/Agnikulu/signalnoise/internal/adapters"
	"github.com/Agnikulu/signalnoise/internal/models"
	"github.com/Agnikulu/signalnoise/internal/referencecache"
	"github.com/Agnikulu/signalnoise/internal/store"
	"github.com/rs/zerolog"
)

// AnalysisMode reports whether an analyze() call consulted the full
// reference document or only the segment text.
type AnalysisMode string

const (
	AnalysisModeSummary      AnalysisMode = "summary"
	AnalysisModeFullReference AnalysisMode = "full_reference"
)

// Engine wires the Store together with the Suggester/Analyzer adapters and
// the reference cache to implement the evidence-graph operations.
type Engine struct {
	store     *store.Store
	suggester adapters.Suggester
	analyzer  adapters.Analyzer
	refCache  *referencecache.Cache
	logger    zerolog.Logger
}

// New builds an Engine.
func New(st *store.Store, suggester adapters.Suggester, analyzer adapters.Analyzer, refCache *referencecache.Cache, logger zerolog.Logger) *Engine {
	return &Engine{
		store:     st,
		suggester: suggester,
		analyzer:  analyzer,
		refCache:  refCache,
		logger:    logger.With().Str("component", "evidence-engine").Logger(),
	}
}

// Suggest is read-only: it returns candidate hypotheses for a
// segment ordered existing-first by evidence count desc, then generated.
func (e *Engine) Suggest(ctx context.Context, segmentID string) ([]adapters.HypothesisSuggestion, error) {
	segment, err := e.store.GetSegment(ctx, segmentID)
	if err != nil {
		return nil, fmt.Errorf("suggest: load segment: %w", err)
	}

	hypotheses, counts, err := e.store.ListHypotheses(ctx, 10000, 0)
	if err != nil {
		return nil, fmt.Errorf("suggest: list hypotheses: %w", err)
	}

	evidenceCount := make(map[string]int, len(hypotheses))
	existing := make([]adapters.ExistingHypothesis, 0, len(hypotheses))
	for i, h := range hypotheses {
		evidenceCount[h.ID] = counts[i]
		existing = append(existing, adapters.ExistingHypothesis{
			ID:             h.ID,
			HypothesisText: h.HypothesisText,
			Description:    h.Description,
		})
	}

	suggestions, err := e.suggester.SuggestHypotheses(ctx, segment.Text, existing)
	if err != nil {
		return nil, fmt.Errorf("suggest: %w", err)
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		si, sj := suggestions[i], suggestions[j]
		iExisting := si.Source == adapters.SuggestionSourceExisting
		jExisting := sj.Source == adapters.SuggestionSourceExisting
		if iExisting != jExisting {
			return iExisting // existing-first
		}
		if iExisting && jExisting {
			return evidenceCount[si.HypothesisID] > evidenceCount[sj.HypothesisID]
		}
		return false
	})

	return suggestions, nil
}

// AnalyzeRequest is the input to Analyze.
type AnalyzeRequest struct {
	SegmentText           string
	HypothesisText        string
	Description           string
	ReferenceURL          string
	IncludeFullReference  bool
	HypothesisID          string
}

// Analyze is read-only: it returns a verdict, analysis text,
// and which mode produced it. When full-reference analysis is requested but
// the reference cannot be resolved (no hypothesis_id, no reference_url, or
// a reference-cache fetch failure), it degrades to summary mode rather than
// failing.
func (e *Engine) Analyze(ctx context.Context, req AnalyzeRequest) (models.Verdict, string, AnalysisMode, error) {
	mode := AnalysisModeSummary
	referenceText := ""

	if req.IncludeFullReference && req.ReferenceURL != "" && req.HypothesisID != "" {
		hyp, err := e.store.GetHypothesis(ctx, req.HypothesisID)
		if err != nil {
			return "", "", "", fmt.Errorf("analyze: load hypothesis: %w", err)
		}
		text, err := e.refCache.GetReferenceText(ctx, hyp)
		if err != nil {
			e.logger.Warn().Err(err).Str("hypothesis_id", req.HypothesisID).Msg("reference cache lookup failed, degrading to summary analysis")
		} else if text != "" {
			referenceText = text
			mode = AnalysisModeFullReference
		}
	}

	verdict, analysisText, err := e.analyzer.Analyze(ctx, req.SegmentText, req.HypothesisText, req.Description, referenceText)
	if err != nil {
		return "", "", "", fmt.Errorf("analyze: %w", err)
	}
	return verdict, analysisText, mode, nil
}

// CommitItem is one entry of a commit_evidence request.
type CommitItem struct {
	HypothesisID   string
	HypothesisText string
	Description    string
	Verdict        models.Verdict
	AnalysisText   string
	AuthoredBy     models.AuthoredBy
}

// CommitEvidence applies every item against segmentID in
// one transaction, in order. See store.Store.CommitEvidence for the
// per-item resolve/upsert/append sequence.
func (e *Engine) CommitEvidence(ctx context.Context, segmentID string, items []CommitItem) ([]store.CommitEvidenceResult, error) {
	storeItems := make([]store.CommitEvidenceItem, len(items))
	for i, item := range items {
		storeItems[i] = store.CommitEvidenceItem{
			HypothesisID:   item.HypothesisID,
			HypothesisText: item.HypothesisText,
			Description:    item.Description,
			Verdict:        item.Verdict,
			AnalysisText:   item.AnalysisText,
			AuthoredBy:     item.AuthoredBy,
		}
	}
	return e.store.CommitEvidence(ctx, segmentID, storeItems)
}

// EvidenceView is one enriched row returned by ListEvidenceForHypothesis:
// the link plus enough segment/document context for the workbench to show
// a preview without a second round trip.
type EvidenceView struct {
	Link            *models.HypothesisSegmentLink
	SegmentPreview  string
	DocumentID      string
	DocumentTitle   string
	FreshnessStatus models.FreshnessStatus
}

// ListEvidenceForHypothesis returns every segment linked to a hypothesis.
func (e *Engine) ListEvidenceForHypothesis(ctx context.Context, hypothesisID string) ([]EvidenceView, error) {
	hyp, err := e.store.GetHypothesis(ctx, hypothesisID)
	if err != nil {
		return nil, fmt.Errorf("list evidence for hypothesis: load hypothesis: %w", err)
	}

	links, err := e.store.ListEvidenceForHypothesis(ctx, hypothesisID)
	if err != nil {
		return nil, fmt.Errorf("list evidence for hypothesis: %w", err)
	}

	out := make([]EvidenceView, 0, len(links))
	for _, link := range links {
		view := EvidenceView{
			Link:            link,
			FreshnessStatus: link.Freshness(hyp.UpdatedAt),
		}

		segment, err := e.store.GetSegment(ctx, link.SegmentID)
		if err == nil {
			view.SegmentPreview = previewText(segment.Text, 200)
			if doc, docErr := e.store.GetDocument(ctx, segment.DocumentID); docErr == nil {
				view.DocumentID = doc.ID
				view.DocumentTitle = doc.Title
			}
		}

		out = append(out, view)
	}
	return out, nil
}

// ListHypothesesForSegment returns the current link state for a
// segment, used to pre-populate the workbench's staging table.
func (e *Engine) ListHypothesesForSegment(ctx context.Context, segmentID string) ([]*models.HypothesisSegmentLink, error) {
	return e.store.ListHypothesesForSegment(ctx, segmentID)
}

func previewText(text string, maxChars int) string {
	r := []rune(text)
	if len(r) <= maxChars {
		return text
	}
	return string(r[:maxChars]) + "…"
}
