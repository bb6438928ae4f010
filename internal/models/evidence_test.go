package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidVerdict(t *testing.T) {
	cases := []struct {
		name string
		v    Verdict
		want bool
	}{
		{"confirms", VerdictConfirms, true},
		{"refutes", VerdictRefutes, true},
		{"nuances", VerdictNuances, true},
		{"irrelevant", VerdictIrrelevant, true},
		{"none", VerdictNone, true},
		{"empty", Verdict(""), true},
		{"garbage", Verdict("maybe"), false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, ValidVerdict(c.v))
		})
	}
}

func TestHypothesisSegmentLinkFreshness(t *testing.T) {
	now := time.Now()

	t.Run("stale when link predates hypothesis update", func(t *testing.T) {
		link := &HypothesisSegmentLink{UpdatedAt: now.Add(-time.Hour)}
		assert.Equal(t, FreshnessStale, link.Freshness(now))
	})

	t.Run("current when link is at least as new as the hypothesis", func(t *testing.T) {
		link := &HypothesisSegmentLink{UpdatedAt: now}
		assert.Equal(t, FreshnessCurrent, link.Freshness(now))
	})

	t.Run("current when link was updated after the hypothesis", func(t *testing.T) {
		link := &HypothesisSegmentLink{UpdatedAt: now}
		assert.Equal(t, FreshnessCurrent, link.Freshness(now.Add(-time.Hour)))
	})
}
