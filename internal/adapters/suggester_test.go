package adapters

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSuggestionsExtractsTheJSONArray(t *testing.T) {
	response := "Sure, here are some suggestions:\n" +
		`[{"hypothesis_id":"h1","hypothesis_text":"caffeine improves focus","description":"meta review","source":"existing"},` +
		`{"hypothesis_id":"","hypothesis_text":"new claim about sleep","description":"","source":"generated"}]` +
		"\nLet me know if you need more."

	suggestions, err := parseSuggestions(response)

	require.NoError(t, err)
	require.Len(t, suggestions, 2)
	assert.Equal(t, SuggestionSourceExisting, suggestions[0].Source)
	assert.Equal(t, "h1", suggestions[0].HypothesisID)
	assert.Equal(t, SuggestionSourceGenerated, suggestions[1].Source)
}

func TestParseSuggestionsDropsEmptyHypothesisText(t *testing.T) {
	response := `[{"hypothesis_id":"h1","hypothesis_text":"   ","source":"existing"},{"hypothesis_id":"h2","hypothesis_text":"valid claim","source":"existing"}]`

	suggestions, err := parseSuggestions(response)

	require.NoError(t, err)
	require.Len(t, suggestions, 1)
	assert.Equal(t, "h2", suggestions[0].HypothesisID)
}

func TestParseSuggestionsTreatsClaimedExistingWithoutIDAsGenerated(t *testing.T) {
	response := `[{"hypothesis_id":"","hypothesis_text":"floating claim","source":"existing"}]`

	suggestions, err := parseSuggestions(response)

	require.NoError(t, err)
	require.Len(t, suggestions, 1)
	assert.Equal(t, SuggestionSourceGenerated, suggestions[0].Source)
}

func TestParseSuggestionsReturnsErrorOnUnparseableBody(t *testing.T) {
	_, err := parseSuggestions("not json at all")
	assert.Error(t, err)
}
