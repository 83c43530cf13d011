package rss

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"nieuwsdraad/internal/cache"
	"nieuwsdraad/internal/fetch"
	"nieuwsdraad/internal/metrics"

	"github.com/mmcdole/gofeed"
	"golang.org/x/sync/singleflight"
)

type Outcome string

const (
	OutcomeFresh   Outcome = "fresh"
	OutcomeFetched Outcome = "fetched"
	OutcomeStale   Outcome = "stale"
	OutcomeFailed  Outcome = "failed"
)

// FeedCache maps a feed URL to its last successful parse.
type FeedCache = cache.Cache[string, *gofeed.Feed]

func NewFeedCache(config cache.CacheConfig) *FeedCache {
	if config.Name == "" {
		config.Name = "feeds"
	}
	return cache.NewCache[string, *gofeed.Feed](config, cache.StringKey)
}

// Fetcher retrieves and parses feeds through a FeedCache. Concurrent
// fetches of the same URL share one network request.
type Fetcher struct {
	client *fetch.Client
	cache  *FeedCache
	flight singleflight.Group
	logger *slog.Logger
}

func NewFetcher(client *fetch.Client, feedCache *FeedCache, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		client: client,
		cache:  feedCache,
		logger: logger,
	}
}

// Fetch returns the entries of feedURL. A fresh cache hit skips the network.
// On failure the last cached parse is served even when expired; without
// one the result is empty. Fetch never returns an error.
//
// The shared request runs detached from ctx so that an abandoned caller
// does not fail other waiters; it is still bounded by the client timeout
// and its result lands in the cache.
func (f *Fetcher) Fetch(ctx context.Context, feedURL string) ([]*gofeed.Item, Outcome) {
	if feed, fresh, ok := f.cache.Get(feedURL); ok && fresh {
		f.logger.Debug("Feed cache hit", "url", feedURL, "items", len(feed.Items))
		metrics.RecordFeedFetch(string(OutcomeFresh))
		return feed.Items, OutcomeFresh
	}

	detached := context.WithoutCancel(ctx)
	ch := f.flight.DoChan(feedURL, func() (interface{}, error) {
		return f.fetchAndStore(detached, feedURL)
	})

	var err error
	select {
	case res := <-ch:
		if res.Err == nil {
			feed := res.Val.(*gofeed.Feed)
			metrics.RecordFeedFetch(string(OutcomeFetched))
			return feed.Items, OutcomeFetched
		}
		err = res.Err
	case <-ctx.Done():
		err = ctx.Err()
	}

	if feed, _, ok := f.cache.Get(feedURL); ok {
		f.logger.Warn("Feed fetch failed, serving stale copy", "url", feedURL, "error", err)
		metrics.RecordFeedFetch(string(OutcomeStale))
		return feed.Items, OutcomeStale
	}

	f.logger.Warn("Feed fetch failed", "url", feedURL, "error", err)
	metrics.RecordFeedFetch(string(OutcomeFailed))
	return nil, OutcomeFailed
}

func (f *Fetcher) fetchAndStore(ctx context.Context, feedURL string) (*gofeed.Feed, error) {
	resp, err := f.client.Get(ctx, feedURL, fetch.Options{Accept: fetch.AcceptFeed})
	if err != nil {
		return nil, err
	}

	feed, err := gofeed.NewParser().Parse(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", feedURL, err)
	}

	f.cache.Put(feedURL, feed)
	f.logger.Debug("Feed retrieved", "url", feedURL, "items", len(feed.Items))
	return feed, nil
}
