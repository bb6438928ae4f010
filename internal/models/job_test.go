package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTranscriptionRequestIsFullWindow(t *testing.T) {
	start := 10.0
	end := 20.0

	t.Run("no bounds is full window", func(t *testing.T) {
		r := &TranscriptionRequest{}
		assert.True(t, r.IsFullWindow())
	})

	t.Run("start bound only is not full window", func(t *testing.T) {
		r := &TranscriptionRequest{StartSeconds: &start}
		assert.False(t, r.IsFullWindow())
	})

	t.Run("end bound only is not full window", func(t *testing.T) {
		r := &TranscriptionRequest{EndSeconds: &end}
		assert.False(t, r.IsFullWindow())
	})

	t.Run("both bounds set is not full window", func(t *testing.T) {
		r := &TranscriptionRequest{StartSeconds: &start, EndSeconds: &end}
		assert.False(t, r.IsFullWindow())
	})
}
