package config

import (
	"fmt"
	"os"
	"sort"
	"time"

	"nieuwsdraad/internal/sources/rss"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Service    ServiceConfig         `toml:"service"`
	Log        LogConfig             `toml:"log"`
	HTTP       HTTPConfig            `toml:"http"`
	Cache      CacheConfig           `toml:"cache"`
	Collect    CollectConfig         `toml:"collect"`
	Extract    ExtractConfig         `toml:"extract"`
	Related    RelatedConfig         `toml:"related"`
	Summary    SummaryConfig         `toml:"summary"`
	Warm       WarmConfig            `toml:"warm"`
	Feeds      map[string]FeedConfig `toml:"feeds"`
	Categories map[string][]string   `toml:"categories"`

	// Declaration order of [feeds.*] and [categories] keys.
	feedOrder     []string
	categoryOrder []string
}

type ServiceConfig struct {
	Name     string `toml:"name"`
	Listen   string `toml:"listen"`
	BaseURL  string `toml:"base_url"`
	FeedSize int    `toml:"feed_size"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type HTTPConfig struct {
	Timeout         string `toml:"timeout"`
	UserAgent       string `toml:"user_agent"`
	AcceptLanguage  string `toml:"accept_language"`
	PerHostInterval string `toml:"per_host_interval"`
	PerHostBurst    int    `toml:"per_host_burst"`
	MaxBodyBytes    int64  `toml:"max_body_bytes"`
	MaxRedirects    int    `toml:"max_redirects"`
}

type CacheConfig struct {
	FeedTTL     string `toml:"feed_ttl"`
	ArticleTTL  string `toml:"article_ttl"`
	RedirectTTL string `toml:"redirect_ttl"`
}

type CollectConfig struct {
	MaxPerFeed      int      `toml:"max_per_feed"`
	Concurrency     int      `toml:"concurrency"`
	FeedConcurrency int      `toml:"feed_concurrency"`
	WrapperHosts    []string `toml:"wrapper_hosts"`
	RedirectParams  []string `toml:"redirect_params"`
}

type ExtractConfig struct {
	MinParagraph int      `toml:"min_paragraph"`
	MinText      int      `toml:"min_text"`
	GatePhrases  []string `toml:"gate_phrases"`
}

type RelatedConfig struct {
	WindowHours  int `toml:"window_hours"`
	K            int `toml:"k"`
	PoolPerFeed  int `toml:"pool_per_feed"`
	MinOverlap   int `toml:"min_overlap"`
	PerSourceCap int `toml:"per_source_cap"`
}

type SummaryConfig struct {
	Enabled        bool   `toml:"enabled"`
	Model          string `toml:"model"`
	ArticlePrompt  string `toml:"article_prompt"`
	RelatedPrompt  string `toml:"related_prompt"`
	ExtractiveSize int    `toml:"extractive_size"`
}

type WarmConfig struct {
	Enabled  bool   `toml:"enabled"`
	Interval string `toml:"interval"`
}

type FeedConfig struct {
	Type     string `toml:"type"`
	URL      string `toml:"url"`
	Label    string `toml:"label"`
	Query    string `toml:"query"`
	Days     int    `toml:"days"`
	Locale   string `toml:"locale"`
	Path     string `toml:"path"`
	MaxItems int    `toml:"max_items"`
}

func (f FeedConfig) Spec() rss.FeedSpec {
	return rss.FeedSpec{
		Type:     f.Type,
		URL:      f.URL,
		Label:    f.Label,
		Query:    f.Query,
		Days:     f.Days,
		Locale:   f.Locale,
		Path:     f.Path,
		MaxItems: f.MaxItems,
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(string(data))
}

func Parse(data string) (*Config, error) {
	var config Config
	meta, err := toml.Decode(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	seen := make(map[string]bool)
	for _, key := range meta.Keys() {
		if len(key) != 2 || seen[key.String()] {
			continue
		}
		seen[key.String()] = true
		switch key[0] {
		case "feeds":
			config.feedOrder = append(config.feedOrder, key[1])
		case "categories":
			config.categoryOrder = append(config.categoryOrder, key[1])
		}
	}
	config.feedOrder = completeOrder(config.feedOrder, mapKeys(config.Feeds))
	config.categoryOrder = completeOrder(config.categoryOrder, mapKeys(config.Categories))

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// FeedOrder returns the feed ids in the order they were declared.
func (c *Config) FeedOrder() []string {
	return append([]string(nil), c.feedOrder...)
}

func (c *Config) CategoryOrder() []string {
	return append([]string(nil), c.categoryOrder...)
}

func validateConfig(config *Config) error {
	if config.Service.Name == "" {
		config.Service.Name = "nieuwsdraad"
	}
	if config.Service.Listen == "" {
		config.Service.Listen = ":8080"
	}
	if config.Service.FeedSize <= 0 {
		config.Service.FeedSize = 50
	}

	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
	if config.Log.Format == "" {
		config.Log.Format = "text"
	}
	if config.Log.Format != "text" && config.Log.Format != "json" {
		return fmt.Errorf("invalid log format: %s", config.Log.Format)
	}

	if config.HTTP.Timeout == "" {
		config.HTTP.Timeout = "12s"
	}
	if config.Cache.FeedTTL == "" {
		config.Cache.FeedTTL = "90s"
	}
	if config.Cache.ArticleTTL == "" {
		config.Cache.ArticleTTL = "15m"
	}
	if config.Cache.RedirectTTL == "" {
		config.Cache.RedirectTTL = "6h"
	}
	if config.Warm.Interval == "" {
		config.Warm.Interval = "5m"
	}

	durations := map[string]string{
		"http.timeout":           config.HTTP.Timeout,
		"http.per_host_interval": config.HTTP.PerHostInterval,
		"cache.feed_ttl":         config.Cache.FeedTTL,
		"cache.article_ttl":      config.Cache.ArticleTTL,
		"cache.redirect_ttl":     config.Cache.RedirectTTL,
		"warm.interval":          config.Warm.Interval,
	}
	for key, value := range durations {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
	}

	if config.Collect.MaxPerFeed <= 0 {
		config.Collect.MaxPerFeed = 20
	}
	if config.Collect.Concurrency <= 0 {
		config.Collect.Concurrency = 6
	}

	if config.Related.WindowHours <= 0 {
		config.Related.WindowHours = 48
	}
	if config.Related.K <= 0 {
		config.Related.K = 7
	}
	if config.Related.PoolPerFeed <= 0 {
		config.Related.PoolPerFeed = 30
	}
	if config.Related.MinOverlap != 0 && config.Related.MinOverlap < 2 {
		return fmt.Errorf("related.min_overlap must be at least 2")
	}
	if config.Related.PerSourceCap < 0 || config.Related.PerSourceCap > 2 {
		return fmt.Errorf("related.per_source_cap must be between 1 and 2")
	}

	if config.Summary.Enabled && config.Summary.Model == "" {
		return fmt.Errorf("summary.model is required when summary is enabled")
	}

	if len(config.Feeds) == 0 {
		return fmt.Errorf("at least one feed must be configured")
	}
	for id, feed := range config.Feeds {
		if feed.Type == "" {
			feed.Type = string(rss.KindRSS)
			config.Feeds[id] = feed
		}
		if _, err := rss.GetLoader(feed.Type); err != nil {
			return fmt.Errorf("feed %s: %w", id, err)
		}
	}

	for name, ids := range config.Categories {
		if len(ids) == 0 {
			return fmt.Errorf("category %s has no feeds", name)
		}
	}

	return nil
}

// completeOrder appends the keys missing from order, sorted.
func completeOrder(order []string, keys []string) []string {
	listed := make(map[string]bool, len(order))
	for _, k := range order {
		listed[k] = true
	}
	var missing []string
	for _, k := range keys {
		if !listed[k] {
			missing = append(missing, k)
		}
	}
	sort.Strings(missing)
	return append(order, missing...)
}

func mapKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

// duration parses a value already checked by validateConfig.
func duration(value string) time.Duration {
	d, _ := time.ParseDuration(value)
	return d
}
