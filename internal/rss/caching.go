package rss

import (
	"context"

	"golang.org/x/sync/singleflight"

	"github.com/deusflow/newsbrief/internal/cache"
	"github.com/deusflow/newsbrief/internal/logger"
)

type fetchResult struct {
	entries []Entry
	err     error
}

// CachingFetcher memoises every source for the lifetime of a run,
// failures included: a source that failed once stays absent until the
// next run instead of being retried on every fallback tier.
type CachingFetcher struct {
	next  Fetcher
	memo  *cache.Cache[fetchResult]
	group singleflight.Group
}

// NewCachingFetcher wraps next with a run-scoped memo.
func NewCachingFetcher(next Fetcher) *CachingFetcher {
	return &CachingFetcher{
		next: next,
		memo: cache.New[fetchResult](),
	}
}

func (c *CachingFetcher) Fetch(ctx context.Context, uri string) ([]Entry, error) {
	if res, ok := c.memo.Get(uri); ok {
		logger.Debug("feed memo hit", "source", uri, "failed", res.err != nil)
		return res.entries, res.err
	}

	v, _, _ := c.group.Do(uri, func() (any, error) {
		if res, ok := c.memo.Get(uri); ok {
			return res, nil
		}
		entries, err := c.next.Fetch(ctx, uri)
		res := fetchResult{entries: entries, err: err}
		c.memo.Set(uri, res)
		return res, nil
	})

	res := v.(fetchResult)
	return res.entries, res.err
}

// Sources returns how many distinct sources have been fetched this run.
func (c *CachingFetcher) Sources() int {
	return c.memo.Len()
}
