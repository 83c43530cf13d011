package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"text/template"

	"nieuwsdraad/internal/cache"
	"nieuwsdraad/internal/core"
	"nieuwsdraad/internal/fetch"
	"nieuwsdraad/internal/platforms"
	"nieuwsdraad/internal/processors"
	"nieuwsdraad/internal/processors/extract"
	"nieuwsdraad/internal/processors/related"
	"nieuwsdraad/internal/server/feed"
	"nieuwsdraad/internal/sources/rss"
	"nieuwsdraad/internal/utils"
)

// Loader turns a Config into running components and owns their lifecycle.
type Loader struct {
	config    *Config
	logger    *slog.Logger
	client    *fetch.Client
	caches    *cache.Group
	registry  *rss.Registry
	collector *core.Collector
	server    *feed.Server
	warmer    *core.Warmer
}

func NewLoader(cfg *Config, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		config: cfg,
		logger: logger,
	}
}

func (l *Loader) Initialize(ctx context.Context) error {
	l.logger.Info("Initializing components", "service", l.config.Service.Name)

	l.client = fetch.NewClient(fetch.Config{
		Timeout:         duration(l.config.HTTP.Timeout),
		UserAgent:       l.config.HTTP.UserAgent,
		AcceptLanguage:  l.config.HTTP.AcceptLanguage,
		PerHostInterval: duration(l.config.HTTP.PerHostInterval),
		PerHostBurst:    l.config.HTTP.PerHostBurst,
		MaxBodyBytes:    l.config.HTTP.MaxBodyBytes,
		MaxRedirects:    l.config.HTTP.MaxRedirects,
	}, l.logger.With("component", "fetch"))

	registry, err := l.buildRegistry(ctx)
	if err != nil {
		return fmt.Errorf("failed to build feed registry: %w", err)
	}
	l.registry = registry

	collector, err := l.buildCollector()
	if err != nil {
		return fmt.Errorf("failed to build collector: %w", err)
	}
	l.collector = collector

	l.server = feed.New(feed.Config{
		Name:     l.config.Service.Name,
		Listen:   l.config.Service.Listen,
		BaseURL:  l.config.Service.BaseURL,
		FeedSize: l.config.Service.FeedSize,
	}, collector, l.logger.With("component", "server"))

	if l.config.Warm.Enabled {
		l.warmer = core.NewWarmer(collector, core.WarmerConfig{
			Interval: duration(l.config.Warm.Interval),
		}, l.logger.With("component", "warmer"))
	}

	l.logger.Info("All components initialized", "feeds", registry.Len(), "categories", len(registry.Categories()))
	return nil
}

func (l *Loader) buildRegistry(ctx context.Context) (*rss.Registry, error) {
	rss.RegisterLoader("opml_url", &rss.OPMLURLLoader{Client: l.client})

	registry := rss.NewRegistry()
	for _, id := range l.config.FeedOrder() {
		spec := l.config.Feeds[id].Spec()
		loader, err := rss.GetLoader(spec.Type)
		if err != nil {
			return nil, fmt.Errorf("feed %s: %w", id, err)
		}

		feeds, err := loader.Load(ctx, id, spec)
		if err != nil {
			return nil, fmt.Errorf("failed to load feed %s: %w", id, err)
		}
		if err := registry.AddGroup(id, feeds); err != nil {
			return nil, err
		}
		l.logger.Debug("Feed registered", "feed", id, "type", spec.Type, "feeds", len(feeds))
	}

	for _, name := range l.config.CategoryOrder() {
		if err := registry.SetCategory(name, l.config.Categories[name]); err != nil {
			return nil, err
		}
	}

	return registry, nil
}

func (l *Loader) buildCollector() (*core.Collector, error) {
	l.caches = cache.NewGroup()

	feedCache := rss.NewFeedCache(cache.CacheConfig{TTL: duration(l.config.Cache.FeedTTL), Group: l.caches})
	articleCache := extract.NewArticleCache(cache.CacheConfig{TTL: duration(l.config.Cache.ArticleTTL), Group: l.caches})

	resolver := processors.NewRedirectResolver(l.client, processors.RedirectConfig{
		WrapperHosts: l.config.Collect.WrapperHosts,
		Params:       l.config.Collect.RedirectParams,
		CacheTTL:     duration(l.config.Cache.RedirectTTL),
		Group:        l.caches,
	}, l.logger.With("component", "redirect"))

	extractor := extract.NewExtractor(l.client, extract.Config{
		MinParagraph: l.config.Extract.MinParagraph,
		MinText:      l.config.Extract.MinText,
		GatePhrases:  l.config.Extract.GatePhrases,
	}, l.logger.With("component", "extract"))

	briefer, err := l.buildBriefer()
	if err != nil {
		return nil, err
	}

	return core.NewCollector(core.Deps{
		Registry:   l.registry,
		Fetcher:    rss.NewFetcher(l.client, feedCache, l.logger.With("component", "fetcher")),
		Normalizer: processors.NewNormalizer(resolver),
		Resolver:   resolver,
		Articles:   extract.NewService(extractor, resolver, articleCache, l.logger.With("component", "articles")),
		Selector: related.NewSelector(related.Config{
			MinOverlap:   l.config.Related.MinOverlap,
			PerSourceCap: l.config.Related.PerSourceCap,
		}),
		Briefer: briefer,
		Caches:  l.caches,
	}, core.Config{
		DefaultMaxPerFeed:  l.config.Collect.MaxPerFeed,
		FeedConcurrency:    l.config.Collect.FeedConcurrency,
		Concurrency:        l.config.Collect.Concurrency,
		RelatedWindowHours: l.config.Related.WindowHours,
		RelatedK:           l.config.Related.K,
		RelatedPoolPerFeed: l.config.Related.PoolPerFeed,
	}, l.logger.With("component", "collector")), nil
}

func (l *Loader) buildBriefer() (*processors.Briefer, error) {
	cfg := processors.BrieferConfig{ExtractiveSize: l.config.Summary.ExtractiveSize}

	var err error
	if cfg.ArticlePrompt, err = loadPrompt(l.config.Summary.ArticlePrompt); err != nil {
		return nil, err
	}
	if cfg.RelatedPrompt, err = loadPrompt(l.config.Summary.RelatedPrompt); err != nil {
		return nil, err
	}

	var summarizer processors.Summarizer
	if l.config.Summary.Enabled {
		ollama, err := platforms.NewOllamaPlatform(l.config.Summary.Model)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize summarizer: %w", err)
		}
		summarizer = ollama
		l.logger.Info("Summarizer enabled", "model", ollama.Model())
	}

	return processors.NewBriefer(summarizer, cfg, l.logger.With("component", "briefer"))
}

func loadPrompt(path string) (*template.Template, error) {
	if path == "" {
		return nil, nil
	}
	tmpl, err := utils.LoadTemplate(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load prompt %s: %w", path, err)
	}
	return tmpl, nil
}

func (l *Loader) Collector() *core.Collector { return l.collector }

func (l *Loader) Registry() *rss.Registry { return l.registry }

func (l *Loader) Server() *feed.Server { return l.server }

// Start brings up the HTTP server and, when enabled, the cache warmer.
func (l *Loader) Start(ctx context.Context) error {
	if l.server == nil {
		return errors.New("loader not initialized")
	}
	if err := l.server.Start(ctx); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	if l.warmer != nil {
		if err := l.warmer.Start(ctx); err != nil {
			return fmt.Errorf("failed to start warmer: %w", err)
		}
	}
	return nil
}

func (l *Loader) Shutdown(ctx context.Context) error {
	var errs []error
	if l.warmer != nil {
		if err := l.warmer.Stop(ctx); err != nil {
			l.logger.Error("Error stopping warmer", "error", err)
			errs = append(errs, err)
		}
	}
	if l.server != nil {
		if err := l.server.Shutdown(ctx); err != nil {
			l.logger.Error("Error stopping server", "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LoadAndBuild reads the config at path, installs its logger as the default
// and initializes every component.
func LoadAndBuild(ctx context.Context, configPath string) (*Loader, error) {
	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := NewLogger(cfg.Log, os.Stderr)
	slog.SetDefault(logger)

	loader := NewLoader(cfg, logger)
	if err := loader.Initialize(ctx); err != nil {
		return nil, err
	}
	return loader, nil
}
