package adapters

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// httpCrawler fetches a reference document's HTML and reduces it to plain
// text good enough for the LLM to reason about against a hypothesis.
type httpCrawler struct {
	http             *http.Client
	maxResponseBytes int64
	logger           zerolog.Logger
}

// NewHTTPCrawler builds a Crawler backed by plain net/http GET requests.
func NewHTTPCrawler(timeout time.Duration, maxResponseBytes int64, logger zerolog.Logger) Crawler {
	if timeout == 0 {
		timeout = 20 * time.Second
	}
	if maxResponseBytes == 0 {
		maxResponseBytes = 10 << 20
	}
	return &httpCrawler{
		http:             &http.Client{Timeout: timeout},
		maxResponseBytes: maxResponseBytes,
		logger:           logger.With().Str("component", "crawler").Logger(),
	}
}

// FetchText retrieves url and returns its HTML-stripped plain text. Network
// failures and 5xx responses are wrapped in TransientError so the adapter
// retry wrapper attempts them again; 4xx responses are returned unwrapped.
func (c *httpCrawler) FetchText(ctx context.Context, url string) (string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "signalnoise-crawler/1.0 (research workbench; reference document fetch)")
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", 0, &TransientError{Err: fmt.Errorf("fetch %s: %w", url, err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxResponseBytes))
	if err != nil {
		return "", 0, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode >= 500 {
			return "", 0, &TransientError{Err: fmt.Errorf("%s returned %d", url, resp.StatusCode)}
		}
		return "", 0, fmt.Errorf("%s returned %d", url, resp.StatusCode)
	}

	text := htmlToPlainText(string(body))
	return text, len(text), nil
}

var (
	reScriptStyle = regexp.MustCompile(`(?is)<(script|style|noscript)[^>]*>.*?</(script|style|noscript)>`)
	reHTMLTag     = regexp.MustCompile(`<[^>]+>`)
	reWhitespace  = regexp.MustCompile(`\s+`)
)

// htmlToPlainText strips scripts, styles, and markup, collapsing the
// remainder to whitespace-normalised plain text. It is deliberately crude —
// good enough to give the LLM readable prose, not a faithful DOM-to-text
// conversion.
func htmlToPlainText(html string) string {
	s := reScriptStyle.ReplaceAllString(html, " ")
	s = reHTMLTag.ReplaceAllString(s, " ")
	s = strings.ReplaceAll(s, "&nbsp;", " ")
	s = strings.ReplaceAll(s, "&amp;", "&")
	s = strings.ReplaceAll(s, "&lt;", "<")
	s = strings.ReplaceAll(s, "&gt;", ">")
	s = strings.ReplaceAll(s, "&quot;", `"`)
	return strings.TrimSpace(reWhitespace.ReplaceAllString(s, " "))
}
