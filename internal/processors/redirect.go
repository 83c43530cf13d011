package processors

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"time"

	"nieuwsdraad/internal/cache"
	"nieuwsdraad/internal/fetch"
	"nieuwsdraad/internal/metrics"
	"nieuwsdraad/internal/utils"

	"github.com/PuerkitoBio/goquery"
)

// RedirectConfig configures wrapper resolution. RejectHosts are never
// accepted as a target and default to known consent walls. Group, when set,
// lets the redirect cache be cleared together with the other caches.
type RedirectConfig struct {
	WrapperHosts []string
	RejectHosts  []string
	Params       []string
	CacheTTL     time.Duration
	Group        *cache.Group
}

var (
	defaultWrapperHosts = []string{"news.google.com"}
	defaultParams       = []string{"url", "u", "dest", "destination", "q"}
)

// Script and meta-refresh redirects found on aggregator interstitials.
var scriptRedirectPatterns = []*regexp.Regexp{
	regexp.MustCompile(`window\.location(?:\.href)?\s*=\s*['"](https?://[^'"]+)['"]`),
	regexp.MustCompile(`document\.location\s*=\s*['"](https?://[^'"]+)['"]`),
	regexp.MustCompile(`(?i)<meta[^>]*http-equiv\s*=\s*["']refresh["'][^>]*content\s*=\s*["'][^;]*;\s*url\s*=\s*([^"']+)["']`),
	regexp.MustCompile(`data-n-au\s*=\s*["'](https?://[^"']+)["']`),
}

type resolveStep func(ctx context.Context, link string, page *wrapperPage) (string, bool)

type wrapperPage struct {
	fetched  bool
	body     []byte
	location string
}

// RedirectResolver maps aggregator wrapper links to publisher URLs.
type RedirectResolver struct {
	client       *fetch.Client
	cache        *cache.Cache[string, string]
	wrapperHosts []string
	rejectHosts  []string
	paramPattern *regexp.Regexp
	params       []string
	logger       *slog.Logger
}

func NewRedirectResolver(client *fetch.Client, config RedirectConfig, logger *slog.Logger) *RedirectResolver {
	if len(config.WrapperHosts) == 0 {
		config.WrapperHosts = defaultWrapperHosts
	}
	if len(config.RejectHosts) == 0 {
		config.RejectHosts = utils.ConsentHosts
	}
	if len(config.Params) == 0 {
		config.Params = defaultParams
	}
	if config.CacheTTL == 0 {
		config.CacheTTL = 6 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}

	quoted := make([]string, 0, len(config.Params))
	for _, p := range config.Params {
		quoted = append(quoted, regexp.QuoteMeta(p))
	}
	pattern := regexp.MustCompile(fmt.Sprintf(`(?i)[?&;](?:%s)=(https?(?::|%%3A)[^&"'\s<>]+)`, strings.Join(quoted, "|")))

	return &RedirectResolver{
		client:       client,
		cache:        cache.NewCache[string, string](cache.CacheConfig{Name: "redirects", TTL: config.CacheTTL, Group: config.Group}, cache.StringKey),
		wrapperHosts: lowerAll(config.WrapperHosts),
		rejectHosts:  lowerAll(config.RejectHosts),
		paramPattern: pattern,
		params:       config.Params,
		logger:       logger,
	}
}

// IsWrapper reports whether link points at a known aggregator host.
func (r *RedirectResolver) IsWrapper(link string) bool {
	return utils.HostIn(link, r.wrapperHosts)
}

func lowerAll(hosts []string) []string {
	out := make([]string, 0, len(hosts))
	for _, h := range hosts {
		out = append(out, strings.ToLower(h))
	}
	return out
}

// Resolve returns the publisher URL behind link with tracking parameters
// removed. Links that are not wrappers, and wrappers that cannot be
// resolved, come back as given (stripped). It never fails.
func (r *RedirectResolver) Resolve(ctx context.Context, link string) string {
	link = strings.TrimSpace(link)
	if !r.IsWrapper(link) {
		return utils.StripTracking(link)
	}

	if resolved, fresh, ok := r.cache.Get(link); ok && fresh {
		metrics.RecordRedirect("cached")
		return resolved
	}

	steps := []struct {
		name string
		fn   resolveStep
	}{
		{"param", r.fromQueryParam},
		{"location", r.fromLocation},
		{"canonical", r.fromCanonical},
		{"markup", r.fromMarkup},
		{"follow", r.fromFollowedRedirect},
	}

	page := &wrapperPage{}
	for _, step := range steps {
		if ctx.Err() != nil {
			break
		}
		if target, ok := step.fn(ctx, link, page); ok {
			target = utils.StripTracking(target)
			r.cache.Put(link, target)
			metrics.RecordRedirect(step.name)
			r.logger.Debug("Resolved wrapper link", "wrapper", link, "target", target, "step", step.name)
			return target
		}
	}

	metrics.RecordRedirect("failed")
	r.logger.Warn("Could not resolve wrapper link", "wrapper", link)
	return utils.StripTracking(link)
}

func (r *RedirectResolver) acceptable(candidate string) (string, bool) {
	candidate = strings.TrimSpace(html.UnescapeString(candidate))
	if !utils.IsHTTPURL(candidate) || r.IsWrapper(candidate) || utils.HostIn(candidate, r.rejectHosts) {
		return "", false
	}
	return candidate, true
}

func (r *RedirectResolver) fromQueryParam(_ context.Context, link string, _ *wrapperPage) (string, bool) {
	u, err := url.Parse(link)
	if err != nil {
		return "", false
	}
	query := u.Query()
	for _, name := range r.params {
		if target, ok := r.acceptable(query.Get(name)); ok {
			return target, true
		}
	}
	return "", false
}

func (r *RedirectResolver) load(ctx context.Context, link string, page *wrapperPage) []byte {
	if page.fetched {
		return page.body
	}
	page.fetched = true

	resp, err := r.client.Get(ctx, link, fetch.Options{NoRedirect: true})
	if err != nil {
		r.logger.Debug("Wrapper page fetch failed", "url", link, "error", err)
		return nil
	}
	page.body = resp.Body
	if resp.StatusCode >= 300 && resp.StatusCode < 400 {
		page.location = resp.Header.Get("Location")
	}
	return page.body
}

// fromLocation takes the target of a plain HTTP redirect on the wrapper.
func (r *RedirectResolver) fromLocation(ctx context.Context, link string, page *wrapperPage) (string, bool) {
	r.load(ctx, link, page)
	if page.location == "" {
		return "", false
	}
	return r.acceptable(utils.ResolveReference(link, page.location))
}

func (r *RedirectResolver) fromCanonical(ctx context.Context, link string, page *wrapperPage) (string, bool) {
	body := r.load(ctx, link, page)
	if len(body) == 0 {
		return "", false
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", false
	}

	var found string
	doc.Find(`link[rel~="canonical"], meta[property="og:url"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, ok := s.Attr("href")
		if !ok {
			href, _ = s.Attr("content")
		}
		if target, ok := r.acceptable(utils.ResolveReference(link, href)); ok {
			found = target
			return false
		}
		return true
	})

	return found, found != ""
}

func (r *RedirectResolver) fromMarkup(ctx context.Context, link string, page *wrapperPage) (string, bool) {
	body := r.load(ctx, link, page)
	if len(body) == 0 {
		return "", false
	}
	markup := string(body)

	for _, m := range r.paramPattern.FindAllStringSubmatch(markup, -1) {
		candidate := html.UnescapeString(m[1])
		if decoded, err := url.QueryUnescape(candidate); err == nil {
			candidate = decoded
		}
		if target, ok := r.acceptable(candidate); ok {
			return target, true
		}
	}

	for _, re := range scriptRedirectPatterns {
		if m := re.FindStringSubmatch(markup); len(m) > 1 {
			if target, ok := r.acceptable(m[1]); ok {
				return target, true
			}
		}
	}

	return "", false
}

func (r *RedirectResolver) fromFollowedRedirect(ctx context.Context, link string, _ *wrapperPage) (string, bool) {
	resp, err := r.client.Get(ctx, link, fetch.Options{})
	if resp == nil {
		r.logger.Debug("Redirect follow failed", "url", link, "error", err)
		return "", false
	}
	return r.acceptable(resp.FinalURL)
}
