package adapters

import (
	"testing"

	"github.com/Agnikulu/signalnoise/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAnalysisExtractsVerdictAndText(t *testing.T) {
	response := "Here is my analysis:\n" +
		`{"verdict": "Confirms", "analysis_text": "The segment directly supports the claim."}` +
		"\nHope that helps."

	verdict, text, err := parseAnalysis(response)

	require.NoError(t, err)
	assert.Equal(t, models.VerdictConfirms, verdict)
	assert.Equal(t, "The segment directly supports the claim.", text)
}

func TestParseAnalysisRejectsNoneVerdict(t *testing.T) {
	response := `{"verdict": "none", "analysis_text": "no opinion"}`

	_, _, err := parseAnalysis(response)

	assert.Error(t, err)
}

func TestParseAnalysisRejectsUnrecognizedVerdict(t *testing.T) {
	response := `{"verdict": "maybe", "analysis_text": "unsure"}`

	_, _, err := parseAnalysis(response)

	assert.Error(t, err)
}

func TestParseAnalysisRejectsUnparseableBody(t *testing.T) {
	_, _, err := parseAnalysis("not json")
	assert.Error(t, err)
}
