package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Agnikulu/signalnoise/internal/models"
	"github.com/rs/zerolog"
)

// llmAnalyzer is the LLM-backed Analyzer. Unlike the suggester, a failed or
// unparseable analysis is a real error: the caller needs an actual verdict,
// not a silently empty one.
type llmAnalyzer struct {
	client *llmClient
	logger zerolog.Logger
}

// NewLLMAnalyzer builds an Analyzer backed by the given LLM client config.
func NewLLMAnalyzer(cfg LLMClientConfig, logger zerolog.Logger) Analyzer {
	return &llmAnalyzer{
		client: newLLMClient(cfg, logger),
		logger: logger.With().Str("component", "analyzer").Logger(),
	}
}

const analyzerSystemPrompt = `You are a careful research analyst. You are given one document segment and one hypothesis the analyst is investigating. Decide whether the segment's content confirms, refutes, nuances, or is irrelevant to the hypothesis.

- confirms: the segment provides clear supporting evidence for the hypothesis
- refutes: the segment provides clear evidence against the hypothesis
- nuances: the segment bears on the hypothesis but complicates, qualifies, or partially supports and partially undermines it
- irrelevant: the segment does not meaningfully bear on the hypothesis

When reference material is supplied, weigh it alongside the segment, but ground your verdict primarily in the segment text.

Respond in valid JSON with this exact schema:
{"verdict": "confirms" | "refutes" | "nuances" | "irrelevant", "analysis_text": "2-4 sentences explaining the verdict, citing specific content from the segment"}

Return only the JSON object, nothing else.`

func (a *llmAnalyzer) Analyze(ctx context.Context, segmentText, hypothesisText, description, referenceText string) (models.Verdict, string, error) {
	if !a.client.Enabled() {
		return "", "", fmt.Errorf("analyzer: LLM client is not enabled")
	}

	var sb strings.Builder
	sb.WriteString("Hypothesis: ")
	sb.WriteString(hypothesisText)
	if description != "" {
		sb.WriteString("\nHypothesis description: ")
		sb.WriteString(description)
	}
	sb.WriteString("\n\nSegment text:\n")
	sb.WriteString(segmentText)
	if referenceText != "" {
		sb.WriteString("\n\nReference material:\n")
		sb.WriteString(referenceText)
	}

	response, err := a.client.Complete(ctx, analyzerSystemPrompt, sb.String())
	if err != nil {
		return "", "", err
	}

	verdict, analysisText, err := parseAnalysis(response)
	if err != nil {
		return "", "", fmt.Errorf("analyzer: %w", err)
	}
	return verdict, analysisText, nil
}

func parseAnalysis(response string) (models.Verdict, string, error) {
	jsonStr := response
	if idx := strings.Index(response, "{"); idx >= 0 {
		if endIdx := strings.LastIndex(response, "}"); endIdx > idx {
			jsonStr = response[idx : endIdx+1]
		}
	}

	var parsed struct {
		Verdict      string `json:"verdict"`
		AnalysisText string `json:"analysis_text"`
	}
	if err := json.Unmarshal([]byte(jsonStr), &parsed); err != nil {
		return "", "", fmt.Errorf("unmarshal analysis: %w", err)
	}

	verdict := models.Verdict(strings.ToLower(strings.TrimSpace(parsed.Verdict)))
	if !models.ValidVerdict(verdict) || verdict == models.VerdictNone || verdict == "" {
		return "", "", fmt.Errorf("LLM returned unrecognized verdict %q", parsed.Verdict)
	}
	return verdict, strings.TrimSpace(parsed.AnalysisText), nil
}
