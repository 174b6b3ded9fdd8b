package collect

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/deusflow/newsbrief/internal/rss"
	"github.com/deusflow/newsbrief/internal/seen"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var now = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return now }

type stubFetcher struct {
	feeds map[string][]rss.Entry
	errs  map[string]error
	block map[string]bool
}

func (s stubFetcher) Fetch(ctx context.Context, uri string) ([]rss.Entry, error) {
	if s.block[uri] {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err := s.errs[uri]; err != nil {
		return nil, err
	}
	return s.feeds[uri], nil
}

type recordingObserver struct {
	mu     sync.Mutex
	failed []string
}

func (r *recordingObserver) SourceFailed(source string, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, source)
}

func entry(title, link string, age time.Duration) rss.Entry {
	ts := now.Add(-age)
	return rss.Entry{Title: title, Link: link, PublishedAt: &ts}
}

func titles(t *testing.T, c *Collector, sources []string, maxAge time.Duration, st seen.State) []string {
	t.Helper()
	var out []string
	for _, cand := range c.Collect(context.Background(), sources, maxAge, st) {
		out = append(out, cand.Title)
	}
	return out
}

func TestCollectFreshnessBoundary(t *testing.T) {
	f := stubFetcher{feeds: map[string][]rss.Entry{
		"https://feed.example/rss": {
			entry("exact", "https://a.example/exact", 24*time.Hour),
			entry("just over", "https://a.example/over", 24*time.Hour+time.Second),
			entry("fresh", "https://a.example/fresh", time.Hour),
			entry("future", "https://a.example/future", -time.Hour),
			{Title: "undated", Link: "https://a.example/undated"},
		},
	}}
	c := New(f, WithClock(clock))

	got := titles(t, c, []string{"https://feed.example/rss"}, 24*time.Hour, seen.State{})
	assert.Equal(t, []string{"exact", "fresh"}, got)
}

func TestCollectSkipsSeen(t *testing.T) {
	f := stubFetcher{feeds: map[string][]rss.Entry{
		"https://feed.example/rss": {
			entry("Old story", "https://a.example/old", time.Hour),
			entry("New story", "https://a.example/new", time.Hour),
			entry("Same headline", "https://b.example/other-url", time.Hour),
		},
	}}
	c := New(f, WithClock(clock))

	st := seen.New([]string{"a.example/old"}, []string{"SAME headline!"}, now)
	got := titles(t, c, []string{"https://feed.example/rss"}, 24*time.Hour, st)
	assert.Equal(t, []string{"New story"}, got)
}

func TestCollectIsIdempotentAfterRecording(t *testing.T) {
	f := stubFetcher{feeds: map[string][]rss.Entry{
		"https://feed.example/rss": {
			entry("One", "https://a.example/1", time.Hour),
			entry("Two", "https://a.example/2", time.Hour),
		},
	}}
	c := New(f, WithClock(clock))

	first := c.Collect(context.Background(), []string{"https://feed.example/rss"}, 24*time.Hour, seen.State{})
	require.Len(t, first, 2)

	st, _ := seen.State{}.Record(now, first...)
	second := c.Collect(context.Background(), []string{"https://feed.example/rss"}, 24*time.Hour, st)
	assert.Empty(t, second)
}

func TestCollectPartialFailure(t *testing.T) {
	obs := &recordingObserver{}
	f := stubFetcher{
		feeds: map[string][]rss.Entry{
			"https://good.example/rss": {entry("Good", "https://good.example/1", time.Hour)},
		},
		errs: map[string]error{"https://bad.example/rss": errors.New("connection refused")},
	}
	c := New(f, WithClock(clock), WithObserver(obs))

	got := titles(t, c, []string{"https://bad.example/rss", "https://good.example/rss"}, 24*time.Hour, seen.State{})
	assert.Equal(t, []string{"Good"}, got)
	assert.Equal(t, []string{"https://bad.example/rss"}, obs.failed)
}

func TestCollectDedupesWithinPass(t *testing.T) {
	f := stubFetcher{feeds: map[string][]rss.Entry{
		"https://one.example/rss": {
			entry("Story", "https://news.example/story?utm=1", time.Hour),
			entry("No link, title only", "", time.Hour),
		},
		"https://two.example/rss": {
			entry("Story again", "https://www.news.example/story/", time.Hour),
			entry("Other", "https://news.example/other", time.Hour),
		},
	}}
	c := New(f, WithClock(clock))

	got := c.Collect(context.Background(),
		[]string{"https://one.example/rss", "https://two.example/rss", "https://one.example/rss"},
		24*time.Hour, seen.State{})

	require.Len(t, got, 2)
	assert.Equal(t, "Story", got[0].Title)
	assert.Equal(t, "https://one.example/rss", got[0].Source)
	assert.Equal(t, "news.example", got[0].SourceHost)
	assert.Equal(t, "Other", got[1].Title)
}

func TestCollectDropsUnidentifiableEntries(t *testing.T) {
	guidOnly := func(guid string) rss.Entry {
		ts := now.Add(-time.Hour)
		return rss.Entry{GUID: guid, PublishedAt: &ts}
	}
	titled := guidOnly("tag:site,2020:4")
	titled.Title = "Titled GUID story"

	f := stubFetcher{feeds: map[string][]rss.Entry{
		"https://feed.example/rss": {
			guidOnly("urn:uuid:1"),
			guidOnly("urn:uuid:2"),
			guidOnly("tag:site,2020:3"),
			titled,
		},
	}}
	c := New(f, WithClock(clock))

	got := c.Collect(context.Background(), []string{"https://feed.example/rss"}, 24*time.Hour, seen.State{})
	require.Len(t, got, 1)
	assert.Equal(t, "Titled GUID story", got[0].Title)

	st, delta := seen.State{}.Record(now, got...)
	assert.False(t, delta.Empty())
	assert.Empty(t, c.Collect(context.Background(), []string{"https://feed.example/rss"}, 24*time.Hour, st),
		"nothing is selectable twice")
}

func TestCollectTimeoutIsAFailure(t *testing.T) {
	obs := &recordingObserver{}
	f := stubFetcher{
		feeds: map[string][]rss.Entry{
			"https://fast.example/rss": {entry("Fast", "https://fast.example/1", time.Hour)},
		},
		block: map[string]bool{"https://slow.example/rss": true},
	}
	c := New(f, WithClock(clock), WithObserver(obs), WithTimeout(50*time.Millisecond))

	start := time.Now()
	got := titles(t, c, []string{"https://slow.example/rss", "https://fast.example/rss"}, 24*time.Hour, seen.State{})
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, []string{"Fast"}, got)
	assert.Equal(t, []string{"https://slow.example/rss"}, obs.failed)
}

func TestCollectCleansSnippets(t *testing.T) {
	e := entry("Story", "https://a.example/s", time.Hour)
	e.Snippet = "<p>Hello <b>world</b></p>"
	f := stubFetcher{feeds: map[string][]rss.Entry{"https://a.example/rss": {e}}}

	got := New(f, WithClock(clock)).Collect(context.Background(), []string{"https://a.example/rss"}, time.Hour*2, seen.State{})
	require.Len(t, got, 1)
	assert.Equal(t, "Hello world", got[0].Snippet)
}

func TestCollectNoSources(t *testing.T) {
	c := New(stubFetcher{}, WithClock(clock))
	assert.Empty(t, c.Collect(context.Background(), nil, time.Hour, seen.State{}))
}
