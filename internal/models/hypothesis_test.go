package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReferenceTTL(t *testing.T) {
	cases := []struct {
		name    string
		refType ReferenceType
		want    time.Duration
	}{
		{"paper gets 30 days", ReferenceTypePaper, 30 * 24 * time.Hour},
		{"book gets 30 days", ReferenceTypeBook, 30 * 24 * time.Hour},
		{"article gets 7 days", ReferenceTypeArticle, 7 * 24 * time.Hour},
		{"website gets 7 days", ReferenceTypeWebsite, 7 * 24 * time.Hour},
		{"none gets 7 days", ReferenceTypeNone, 7 * 24 * time.Hour},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, ReferenceTTL(c.refType))
		})
	}
}

func TestHypothesisContentFields(t *testing.T) {
	h := &Hypothesis{
		HypothesisText: "caffeine improves reaction time",
		Description:    "meta-analysis of RCTs",
		ReferenceURL:   "https://example.com/paper",
		ReferenceType:  ReferenceTypePaper,
	}

	text, description, referenceURL, referenceType := h.ContentFields()
	assert.Equal(t, h.HypothesisText, text)
	assert.Equal(t, h.Description, description)
	assert.Equal(t, h.ReferenceURL, referenceURL)
	assert.Equal(t, h.ReferenceType, referenceType)
}
