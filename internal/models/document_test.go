package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDocumentAudioAsset(t *testing.T) {
	t.Run("returns nil when no audio asset present", func(t *testing.T) {
		d := &Document{Assets: []Asset{{Type: AssetTypeTranscript}, {Type: AssetTypeImage}}}
		assert.Nil(t, d.AudioAsset())
	})

	t.Run("returns the first audio asset", func(t *testing.T) {
		d := &Document{Assets: []Asset{
			{Type: AssetTypeImage, URL: "https://example.com/cover.png"},
			{Type: AssetTypeAudio, URL: "https://example.com/episode.mp3"},
			{Type: AssetTypeAudio, URL: "https://example.com/episode-alt.mp3"},
		}}

		asset := d.AudioAsset()
		if assert.NotNil(t, asset) {
			assert.Equal(t, "https://example.com/episode.mp3", asset.URL)
		}
	})

	t.Run("empty asset list", func(t *testing.T) {
		d := &Document{}
		assert.Nil(t, d.AudioAsset())
	})
}
