package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// llmSuggester is the LLM-backed Suggester. It asks the model to either
// reuse one of the existing hypotheses or propose a new one, and degrades
// to an empty suggestion list (never an error) when the LLM is disabled or
// returns unparseable output — suggestion is read-only and best-effort.
type llmSuggester struct {
	client *llmClient
	logger zerolog.Logger
}

// NewLLMSuggester builds a Suggester backed by the given LLM client config.
func NewLLMSuggester(cfg LLMClientConfig, logger zerolog.Logger) Suggester {
	return &llmSuggester{
		client: newLLMClient(cfg, logger),
		logger: logger.With().Str("component", "suggester").Logger(),
	}
}

const suggesterSystemPrompt = `You are a research assistant helping a human analyst evaluate a document segment against a set of hypotheses. A hypothesis is a falsifiable claim the analyst is investigating across many sources.

Given the text of one segment and the analyst's existing hypotheses, propose up to 5 hypotheses worth checking this segment against. Prefer reusing an existing hypothesis (by id) when the segment plausibly bears on it. Only propose a brand-new hypothesis when none of the existing ones fit.

Respond with a JSON array, each element shaped as:
{"hypothesis_id": "<id or empty string>", "hypothesis_text": "...", "description": "...", "source": "existing" | "generated"}

Return only the JSON array, nothing else.`

func (s *llmSuggester) SuggestHypotheses(ctx context.Context, segmentText string, existing []ExistingHypothesis) ([]HypothesisSuggestion, error) {
	if !s.client.Enabled() {
		return nil, nil
	}

	var sb strings.Builder
	sb.WriteString("Segment text:\n")
	sb.WriteString(segmentText)
	sb.WriteString("\n\nExisting hypotheses:\n")
	if len(existing) == 0 {
		sb.WriteString("(none)\n")
	}
	for _, h := range existing {
		sb.WriteString(fmt.Sprintf("- id=%s: %s", h.ID, h.HypothesisText))
		if h.Description != "" {
			sb.WriteString(" (" + h.Description + ")")
		}
		sb.WriteString("\n")
	}

	response, err := s.client.Complete(ctx, suggesterSystemPrompt, sb.String())
	if err != nil {
		return nil, err
	}

	suggestions, parseErr := parseSuggestions(response)
	if parseErr != nil {
		s.logger.Warn().Err(parseErr).Msg("could not parse suggester response, returning no suggestions")
		return nil, nil
	}
	return suggestions, nil
}

func parseSuggestions(response string) ([]HypothesisSuggestion, error) {
	jsonStr := response
	if idx := strings.Index(response, "["); idx >= 0 {
		if endIdx := strings.LastIndex(response, "]"); endIdx > idx {
			jsonStr = response[idx : endIdx+1]
		}
	}

	var raw []struct {
		HypothesisID   string `json:"hypothesis_id"`
		HypothesisText string `json:"hypothesis_text"`
		Description    string `json:"description"`
		Source         string `json:"source"`
	}
	if err := json.Unmarshal([]byte(jsonStr), &raw); err != nil {
		return nil, fmt.Errorf("unmarshal suggestions: %w", err)
	}

	out := make([]HypothesisSuggestion, 0, len(raw))
	for _, r := range raw {
		if strings.TrimSpace(r.HypothesisText) == "" {
			continue
		}
		source := SuggestionSourceGenerated
		if r.Source == string(SuggestionSourceExisting) && r.HypothesisID != "" {
			source = SuggestionSourceExisting
		}
		out = append(out, HypothesisSuggestion{
			HypothesisID:   r.HypothesisID,
			HypothesisText: r.HypothesisText,
			Description:    r.Description,
			Source:         source,
		})
	}
	return out, nil
}
