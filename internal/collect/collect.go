// Package collect turns a category's source pool into fresh, unseen candidates.
package collect

import (
	"context"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/deusflow/newsbrief/internal/logger"
	"github.com/deusflow/newsbrief/internal/news"
	"github.com/deusflow/newsbrief/internal/rss"
	"github.com/deusflow/newsbrief/internal/seen"
)

const (
	DefaultConcurrency = 6
	DefaultTimeout     = 20 * time.Second
)

// Observer is told about every source that could not be fetched.
type Observer interface {
	SourceFailed(source string, err error)
}

type nopObserver struct{}

func (nopObserver) SourceFailed(string, error) {}

// Collector fetches sources in parallel and filters their entries.
type Collector struct {
	fetcher     rss.Fetcher
	concurrency int
	timeout     time.Duration
	now         func() time.Time
	observer    Observer
}

type Option func(*Collector)

// WithConcurrency bounds how many sources are fetched at once.
func WithConcurrency(n int) Option {
	return func(c *Collector) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithTimeout sets the per-source fetch deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *Collector) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithClock replaces time.Now for freshness checks.
func WithClock(now func() time.Time) Option {
	return func(c *Collector) { c.now = now }
}

func WithObserver(o Observer) Option {
	return func(c *Collector) {
		if o != nil {
			c.observer = o
		}
	}
}

func New(fetcher rss.Fetcher, opts ...Option) *Collector {
	c := &Collector{
		fetcher:     fetcher,
		concurrency: DefaultConcurrency,
		timeout:     DefaultTimeout,
		now:         time.Now,
		observer:    nopObserver{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type sourceResult struct {
	index   int
	entries []rss.Entry
	err     error
}

// Collect fetches every source and returns entries that are dated, no older
// than maxAge, not future-dated, not in state, and unique within the pass.
// A failing source is reported and skipped; it never aborts the pass.
func (c *Collector) Collect(ctx context.Context, sources []string, maxAge time.Duration, state seen.State) []news.Candidate {
	sources = uniqueSources(sources)
	if len(sources) == 0 {
		return nil
	}

	results := make(chan sourceResult)
	go func() {
		var g errgroup.Group
		g.SetLimit(c.concurrency)
		for i, src := range sources {
			i, src := i, src
			g.Go(func() error {
				fctx, cancel := context.WithTimeout(ctx, c.timeout)
				defer cancel()
				entries, err := c.fetcher.Fetch(fctx, src)
				results <- sourceResult{index: i, entries: entries, err: err}
				return nil
			})
		}
		_ = g.Wait()
		close(results)
	}()

	// Single consumer; results are folded in declaration order afterwards
	// so in-pass dedupe does not depend on which fetch finished first.
	bySource := make([]sourceResult, len(sources))
	for res := range results {
		bySource[res.index] = res
	}

	now := c.now()
	keys := make(map[string]struct{})
	var out []news.Candidate
	for i, res := range bySource {
		src := sources[i]
		if res.err != nil {
			logger.Warn("source fetch failed", "source", src, "error", res.err)
			c.observer.SourceFailed(src, res.err)
			continue
		}

		kept := 0
		for _, e := range res.entries {
			cand, ok := c.candidate(src, e, now, maxAge, state)
			if !ok {
				continue
			}
			key := cand.IdentityKey()
			if _, dup := keys[key]; dup {
				continue
			}
			keys[key] = struct{}{}
			out = append(out, cand)
			kept++
		}
		logger.Debug("source collected", "source", src, "entries", len(res.entries), "kept", kept)
	}
	return out
}

func (c *Collector) candidate(src string, e rss.Entry, now time.Time, maxAge time.Duration, state seen.State) (news.Candidate, bool) {
	link := strings.TrimSpace(e.Identifier())
	if link == "" {
		return news.Candidate{}, false
	}

	ts, ok := e.Timestamp()
	if !ok {
		return news.Candidate{}, false
	}
	age := now.Sub(ts)
	if age < 0 || age > maxAge {
		return news.Candidate{}, false
	}

	host := news.HostOf(link)
	if host == "" {
		host = news.HostOf(src)
	}

	cand := news.Candidate{
		Title:       strings.TrimSpace(e.Title),
		Link:        link,
		SourceHost:  host,
		Source:      src,
		Snippet:     news.CleanSnippet(e.Snippet, news.MaxSnippetRunes),
		PublishedAt: &ts,
	}
	if !cand.Valid() || state.Contains(cand) {
		return news.Candidate{}, false
	}
	return cand, true
}

func uniqueSources(sources []string) []string {
	out := make([]string, 0, len(sources))
	seen := make(map[string]struct{}, len(sources))
	for _, s := range sources {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
