package adapters

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Agnikulu/signalnoise/internal/models"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// rssFeed is the subset of RSS 2.0 / podcast-RSS fields an Ingestor needs.
type rssFeed struct {
	XMLName xml.Name  `xml:"rss"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Items []rssItem `xml:"item"`
}

type rssItem struct {
	GUID        string       `xml:"guid"`
	Title       string       `xml:"title"`
	Author      string       `xml:"creator"`
	ItunesAuth  string       `xml:"author"`
	Link        string       `xml:"link"`
	PubDate     string       `xml:"pubDate"`
	Description string       `xml:"description"`
	Content     string       `xml:"encoded"`
	Enclosure   rssEnclosure `xml:"enclosure"`
}

type rssEnclosure struct {
	URL    string `xml:"url,attr"`
	Type   string `xml:"type,attr"`
	Length string `xml:"length,attr"`
}

// feedIngestor polls an RSS/podcast-RSS feed URL and yields one
// DocumentRecord per <item>. All feed fetches share one rate limiter to
// avoid hammering feed hosts on every poll-loop tick.
type feedIngestor struct {
	http        *http.Client
	rateLimiter *rate.Limiter
	logger      zerolog.Logger
}

// NewFeedIngestor builds an Ingestor backed by plain HTTP GET + RSS parsing.
// requestsPerSecond throttles how often this ingestor fetches feeds, across
// all hosts combined; burst allows an initial small batch through
// unthrottled.
func NewFeedIngestor(timeout time.Duration, requestsPerSecond float64, burst int, logger zerolog.Logger) Ingestor {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	if requestsPerSecond <= 0 {
		requestsPerSecond = 1
	}
	if burst <= 0 {
		burst = 2
	}
	return &feedIngestor{
		http:        &http.Client{Timeout: timeout},
		rateLimiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
		logger:      logger.With().Str("component", "ingestor").Logger(),
	}
}

// Ingest fetches source.FeedURL and returns one DocumentRecord per feed
// item. Manual sources (no feed URL) return an empty, error-free result —
// their documents are expected to be created directly through the API.
func (f *feedIngestor) Ingest(ctx context.Context, source *models.Source) ([]DocumentRecord, error) {
	if source.Type == models.SourceTypeManual || source.FeedURL == "" {
		return nil, nil
	}

	if err := f.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source.FeedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "signalnoise-ingestor/1.0")
	req.Header.Set("Accept", "application/rss+xml, application/xml, text/xml")

	resp, err := f.http.Do(req)
	if err != nil {
		return nil, &TransientError{Err: fmt.Errorf("fetch feed %s: %w", source.FeedURL, err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 20<<20))
	if err != nil {
		return nil, fmt.Errorf("read feed body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode >= 500 {
			return nil, &TransientError{Err: fmt.Errorf("feed %s returned %d", source.FeedURL, resp.StatusCode)}
		}
		return nil, fmt.Errorf("feed %s returned %d", source.FeedURL, resp.StatusCode)
	}

	var feed rssFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", source.FeedURL, err)
	}

	records := make([]DocumentRecord, 0, len(feed.Channel.Items))
	for _, item := range feed.Channel.Items {
		records = append(records, itemToRecord(source, item))
	}
	return records, nil
}

func itemToRecord(source *models.Source, item rssItem) DocumentRecord {
	externalID := item.GUID
	if externalID == "" {
		externalID = item.Link
	}

	author := item.Author
	if author == "" {
		author = item.ItunesAuth
	}

	contentText := item.Content
	if contentText == "" {
		contentText = item.Description
	}
	contentText = strings.TrimSpace(contentText)

	record := DocumentRecord{
		ExternalID:  externalID,
		Title:       strings.TrimSpace(item.Title),
		Author:      strings.TrimSpace(author),
		OriginalURL: item.Link,
		ContentText: contentText,
	}

	if t, err := parseRSSDate(item.PubDate); err == nil {
		record.PublishedAt = &t
	}

	if source.Type == models.SourceTypePodcast && item.Enclosure.URL != "" {
		record.OriginalMediaType = item.Enclosure.Type
		record.Assets = []models.Asset{{
			Type: models.AssetTypeAudio,
			URL:  item.Enclosure.URL,
		}}
	}

	return record
}

var rssDateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	time.RFC3339,
}

func parseRSSDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	var lastErr error
	for _, layout := range rssDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		} else {
			lastErr = err
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("empty date")
	}
	return time.Time{}, lastErr
}
