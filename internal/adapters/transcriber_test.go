package adapters

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMultiTranscriberRequiresAProviderKey(t *testing.T) {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	transcriber := NewMultiTranscriber("", "", 0, logger)

	_, err := transcriber.Transcribe(context.Background(), "https://example.com/episode.mp3", nil, nil, "")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no provider API key configured")
}
