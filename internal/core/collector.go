package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"nieuwsdraad/internal/cache"
	"nieuwsdraad/internal/metrics"
	"nieuwsdraad/internal/processors"
	"nieuwsdraad/internal/processors/extract"
	"nieuwsdraad/internal/processors/filters"
	"nieuwsdraad/internal/processors/related"
	"nieuwsdraad/internal/sources/rss"
	"nieuwsdraad/internal/types"

	"github.com/mmcdole/gofeed"
	"golang.org/x/sync/errgroup"
)

// ErrNoFeeds is returned when collect is called without any feed id.
var ErrNoFeeds = errors.New("no feeds requested")

type CollectRequest struct {
	FeedIDs     []string
	Query       string
	MaxPerFeed  int
	WindowHours int
	Enrich      bool
}

type RelatedRequest struct {
	FocusTitle  string
	ExcludeLink string
	WindowHours int
	K           int
}

type Config struct {
	DefaultMaxPerFeed  int
	FeedConcurrency    int
	Concurrency        int
	RelatedWindowHours int
	RelatedK           int
	RelatedPoolPerFeed int
	Now                func() time.Time
}

type Deps struct {
	Registry   *rss.Registry
	Fetcher    *rss.Fetcher
	Normalizer *processors.Normalizer
	Resolver   *processors.RedirectResolver
	Articles   *extract.Service
	Selector   *related.Selector
	Briefer    *processors.Briefer
	Caches     *cache.Group
}

// Collector drives fetch, normalize, resolve, dedupe and sort for one call
// and serves article, related and briefing lookups on top.
type Collector struct {
	registry   *rss.Registry
	fetcher    *rss.Fetcher
	normalizer *processors.Normalizer
	resolver   *processors.RedirectResolver
	dedupe     *processors.Deduplicator
	articles   *extract.Service
	selector   *related.Selector
	briefer    *processors.Briefer
	caches     *cache.Group
	config     Config
	logger     *slog.Logger
}

func NewCollector(deps Deps, config Config, logger *slog.Logger) *Collector {
	if config.DefaultMaxPerFeed <= 0 {
		config.DefaultMaxPerFeed = 20
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 6
	}
	if config.RelatedWindowHours <= 0 {
		config.RelatedWindowHours = 48
	}
	if config.RelatedK <= 0 {
		config.RelatedK = 7
	}
	if config.RelatedPoolPerFeed <= 0 {
		config.RelatedPoolPerFeed = 30
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Selector == nil {
		deps.Selector = related.NewSelector(related.Config{})
	}
	if deps.Normalizer == nil {
		deps.Normalizer = processors.NewNormalizer(deps.Resolver)
	}

	return &Collector{
		registry:   deps.Registry,
		fetcher:    deps.Fetcher,
		normalizer: deps.Normalizer,
		resolver:   deps.Resolver,
		dedupe:     processors.NewDeduplicator(),
		articles:   deps.Articles,
		selector:   deps.Selector,
		briefer:    deps.Briefer,
		caches:     deps.Caches,
		config:     config,
		logger:     logger,
	}
}

func (c *Collector) Registry() *rss.Registry { return c.registry }

// Collect returns the deduplicated, newest-first items of the requested
// feeds. Failing feeds contribute nothing; only an empty id list is an error.
func (c *Collector) Collect(ctx context.Context, req CollectRequest) ([]types.Item, error) {
	if len(req.FeedIDs) == 0 {
		return nil, ErrNoFeeds
	}
	start := time.Now()

	feeds, unknown := c.registry.Resolve(req.FeedIDs)
	for _, id := range unknown {
		c.logger.Warn("Skipping unknown feed", "feed", id)
	}

	maxPerFeed := req.MaxPerFeed
	if maxPerFeed <= 0 {
		maxPerFeed = c.config.DefaultMaxPerFeed
	}

	raw, err := c.fetchAll(ctx, feeds)
	if err != nil {
		return nil, err
	}

	items := c.normalizeAll(feeds, raw, maxPerFeed)

	now := c.config.Now()
	window := time.Duration(req.WindowHours) * time.Hour
	items = filters.Apply(items, func(item types.Item, err error) {
		recordDiscard(err)
		c.logger.Debug("Item filtered", "feed", item.FeedLabel, "title", item.Title, "reason", err)
	}, filters.QueryFilter(req.Query), filters.WindowFilter(window, now))

	if err := c.resolveWrappers(ctx, feeds, items); err != nil {
		return nil, err
	}

	items, dropped := c.dedupe.Dedupe(items)

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Newer(&items[j])
	})

	if req.Enrich {
		if err := c.enrich(ctx, items); err != nil {
			return nil, err
		}
	}

	metrics.RecordCollect(len(items), time.Since(start).Seconds())
	c.logger.Info("Collect finished",
		"feeds", len(feeds),
		"items", len(items),
		"duplicates", dropped,
		"duration", time.Since(start).Round(time.Millisecond))

	return items, nil
}

// fetchAll runs one fetch per feed and joins them. Results keep feed order.
func (c *Collector) fetchAll(ctx context.Context, feeds []rss.Feed) ([][]*gofeed.Item, error) {
	raw := make([][]*gofeed.Item, len(feeds))

	var g errgroup.Group
	if c.config.FeedConcurrency > 0 {
		g.SetLimit(c.config.FeedConcurrency)
	}
	for i, feed := range feeds {
		g.Go(func() error {
			entries, outcome := c.fetcher.Fetch(ctx, feed.URL)
			c.logger.Debug("Feed fetched", "feed", feed.ID, "entries", len(entries), "outcome", outcome)
			raw[i] = entries
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("collect canceled: %w", err)
	}
	return raw, nil
}

func (c *Collector) normalizeAll(feeds []rss.Feed, raw [][]*gofeed.Item, maxPerFeed int) []types.Item {
	var items []types.Item
	for i, feed := range feeds {
		limit := maxPerFeed
		if feed.MaxItems > 0 && feed.MaxItems < limit {
			limit = feed.MaxItems
		}

		taken := 0
		for _, entry := range raw[i] {
			if taken >= limit {
				break
			}
			item, err := c.normalizer.Normalize(entry, feed.ID)
			if err != nil {
				recordDiscard(err)
				c.logger.Debug("Entry discarded", "feed", feed.ID, "reason", err)
				continue
			}
			items = append(items, item)
			taken++
		}
	}
	return items
}

func recordDiscard(err error) {
	var discard *types.DiscardError
	if errors.As(err, &discard) {
		metrics.RecordDiscard(discard.Reason)
	}
}

func (c *Collector) resolveWrappers(ctx context.Context, feeds []rss.Feed, items []types.Item) error {
	if c.resolver == nil {
		return nil
	}

	wrapperFeeds := make(map[string]bool)
	for _, f := range feeds {
		if f.Wrapper() {
			wrapperFeeds[f.ID] = true
		}
	}

	var g errgroup.Group
	g.SetLimit(c.config.Concurrency)
	for i := range items {
		if !wrapperFeeds[items[i].FeedLabel] && !c.resolver.IsWrapper(items[i].Link) {
			continue
		}
		g.Go(func() error {
			c.normalizer.ResolveLink(ctx, &items[i])
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("collect canceled: %w", err)
	}
	return nil
}

func (c *Collector) enrich(ctx context.Context, items []types.Item) error {
	if c.articles == nil {
		return nil
	}

	var g errgroup.Group
	g.SetLimit(c.config.Concurrency)
	for i := range items {
		g.Go(func() error {
			article := c.articles.Get(ctx, items[i].Link)
			items[i].Article = &article
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("collect canceled: %w", err)
	}
	return nil
}

// Extract returns the cached or freshly extracted article behind link.
func (c *Collector) Extract(ctx context.Context, link string) types.ArticleContent {
	if c.articles == nil {
		return types.FailedArticle(link, types.ErrorFetchFailed)
	}
	return c.articles.Get(ctx, link)
}

// Related scans every registered feed for items whose titles overlap the
// focus title.
func (c *Collector) Related(ctx context.Context, req RelatedRequest) ([]types.Item, error) {
	if req.WindowHours <= 0 {
		req.WindowHours = c.config.RelatedWindowHours
	}
	if req.K <= 0 {
		req.K = c.config.RelatedK
	}

	corpus, err := c.Collect(ctx, CollectRequest{
		FeedIDs:     c.registry.All(),
		MaxPerFeed:  c.config.RelatedPoolPerFeed,
		WindowHours: req.WindowHours,
	})
	if err != nil {
		return nil, err
	}

	return c.selector.Select(corpus, related.Request{
		FocusTitle:  req.FocusTitle,
		ExcludeLink: req.ExcludeLink,
		Window:      time.Duration(req.WindowHours) * time.Hour,
		K:           req.K,
	}, c.config.Now()), nil
}

// Briefing summarises the article behind link, or its coverage elsewhere
// when the article itself cannot be read. title is used when the page
// yields none.
func (c *Collector) Briefing(ctx context.Context, link, title string) (processors.Briefing, error) {
	if c.briefer == nil {
		return processors.Briefing{}, errors.New("briefings are not configured")
	}

	article := c.Extract(ctx, link)
	if article.OK {
		return c.briefer.FromArticle(ctx, article), nil
	}

	if article.Title != "" {
		title = article.Title
	}
	c.logger.Info("Article unreadable, briefing from related coverage", "url", link, "kind", article.ErrorKind)

	var items []types.Item
	if title != "" {
		var err error
		items, err = c.Related(ctx, RelatedRequest{FocusTitle: title, ExcludeLink: link})
		if err != nil && !errors.Is(err, ErrNoFeeds) {
			return processors.Briefing{}, err
		}
	}
	return c.briefer.FromRelated(ctx, link, title, &article, items), nil
}

// Clear purges the feed and article caches in one step.
func (c *Collector) Clear() {
	if c.caches != nil {
		c.caches.Clear()
	}
	c.logger.Info("Caches cleared")
}
