package models

import "time"

// SourceType identifies how a Source is polled for new content.
type SourceType string

const (
	SourceTypeRSS     SourceType = "rss"
	SourceTypePodcast SourceType = "podcast"
	SourceTypeManual  SourceType = "manual"
)

// Source is a feed definition that the ingestion worker polls.
type Source struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Type     SourceType `json:"type"`
	FeedURL  string     `json:"feed_url"`
	IsActive bool       `json:"is_active"`

	// PollInterval is how often the operator expects this source to be
	// re-queued; enforcement lives outside the Store (operator/cron).
	PollInterval time.Duration `json:"poll_interval"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
