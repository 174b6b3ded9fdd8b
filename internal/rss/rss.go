// Package rss fetches feed sources and normalises their entries.
package rss

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/deusflow/newsbrief/internal/news"
)

const userAgent = "newsbrief/1.0 (+https://github.com/deusflow/newsbrief)"

// Entry is one feed item reduced to what the selection pipeline needs.
type Entry struct {
	Title       string
	Link        string
	GUID        string
	Published   string     // raw date string as found in the feed
	PublishedAt *time.Time // parsed by the feed parser, if it could
	Snippet     string     // first non-empty of description, summary, content (raw HTML allowed)
}

// Fetcher retrieves the entries of one source.
type Fetcher interface {
	Fetch(ctx context.Context, uri string) ([]Entry, error)
}

// FetchError reports a single failed source. It is never fatal for a run.
type FetchError struct {
	Source string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// FeedFetcher downloads and parses RSS, Atom and JSON feeds over HTTP.
type FeedFetcher struct {
	client *http.Client
}

// NewFeedFetcher creates a FeedFetcher whose HTTP client gives up after timeout.
func NewFeedFetcher(timeout time.Duration) *FeedFetcher {
	return &FeedFetcher{
		client: &http.Client{Timeout: timeout},
	}
}

// Fetch downloads uri and converts its items. Every failure comes back as *FetchError.
func (f *FeedFetcher) Fetch(ctx context.Context, uri string) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, &FetchError{Source: uri, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, &FetchError{Source: uri, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{Source: uri, Err: fmt.Errorf("failed to fetch feed: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{Source: uri, Err: fmt.Errorf("HTTP error: %s", resp.Status)}
	}

	// gofeed.Parser keeps per-parse state, so one per call.
	feed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, &FetchError{Source: uri, Err: fmt.Errorf("failed to parse feed: %w", err)}
	}

	entries := make([]Entry, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		entries = append(entries, convertItem(item))
	}
	return entries, nil
}

func convertItem(item *gofeed.Item) Entry {
	published := item.PublishedParsed
	if published == nil {
		published = item.UpdatedParsed
	}

	raw := item.Published
	if raw == "" {
		raw = item.Updated
	}

	summary := ""
	if item.ITunesExt != nil {
		summary = item.ITunesExt.Summary
	}

	return Entry{
		Title:       strings.TrimSpace(item.Title),
		Link:        strings.TrimSpace(item.Link),
		GUID:        strings.TrimSpace(item.GUID),
		Published:   raw,
		PublishedAt: published,
		Snippet:     news.FirstNonEmpty(item.Description, summary, item.Content),
	}
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"2 Jan 2006 15:04:05 -0700",
	time.RFC822Z,
	time.RFC822,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseDate accepts the ISO-8601 and RFC-2822 shapes feeds use in practice.
func ParseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Timestamp returns the entry's publication time, parsing the raw string
// when the feed parser could not.
func (e Entry) Timestamp() (time.Time, bool) {
	if e.PublishedAt != nil {
		return *e.PublishedAt, true
	}
	return ParseDate(e.Published)
}

// Identifier returns the link, or the GUID when the link is missing.
func (e Entry) Identifier() string {
	if e.Link != "" {
		return e.Link
	}
	return e.GUID
}
