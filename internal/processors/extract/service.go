package extract

import (
	"context"
	"log/slog"

	"nieuwsdraad/internal/cache"
	"nieuwsdraad/internal/metrics"
	"nieuwsdraad/internal/types"
	"nieuwsdraad/internal/utils"
)

// ArticleCache maps a resolved article URL to its extraction result.
type ArticleCache = cache.Cache[string, types.ArticleContent]

func NewArticleCache(config cache.CacheConfig) *ArticleCache {
	if config.Name == "" {
		config.Name = "articles"
	}
	return cache.NewCache[string, types.ArticleContent](config, cache.StringKey)
}

type LinkResolver interface {
	Resolve(ctx context.Context, link string) string
}

// Service is lazy, cached extraction keyed by the resolved link.
type Service struct {
	extractor *Extractor
	resolver  LinkResolver
	cache     *ArticleCache
	logger    *slog.Logger
}

func NewService(extractor *Extractor, resolver LinkResolver, articleCache *ArticleCache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		extractor: extractor,
		resolver:  resolver,
		cache:     articleCache,
		logger:    logger,
	}
}

// Get returns the article behind link. Fetch failures are not cached; when
// one happens an earlier successful extraction is served even if expired.
func (s *Service) Get(ctx context.Context, link string) types.ArticleContent {
	key := utils.StripTracking(link)
	if s.resolver != nil {
		key = s.resolver.Resolve(ctx, link)
	}
	if !utils.IsHTTPURL(key) {
		metrics.RecordExtract(string(types.ErrorFetchFailed))
		return types.FailedArticle(link, types.ErrorFetchFailed)
	}

	cached, fresh, found := s.cache.Get(key)
	if found && fresh {
		metrics.RecordExtract("cached")
		return cached
	}

	article := s.extractor.Extract(ctx, key)
	metrics.RecordExtract(string(article.ErrorKind))

	if article.ErrorKind == types.ErrorFetchFailed {
		if found && cached.OK {
			s.logger.Warn("Article fetch failed, serving stale extraction", "url", key)
			return cached
		}
		return article
	}

	s.cache.Put(key, article)
	return article
}
