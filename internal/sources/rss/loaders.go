package rss

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"nieuwsdraad/internal/fetch"
)

const googleNewsSearchURL = "https://news.google.com/rss/search"

type RSSLoader struct{}

func (r *RSSLoader) Load(ctx context.Context, id string, spec FeedSpec) ([]Feed, error) {
	if spec.URL == "" {
		return nil, fmt.Errorf("feed %s: url is required", id)
	}
	return []Feed{
		{
			ID:       id,
			URL:      spec.URL,
			Label:    labelOr(spec.Label, id),
			Kind:     KindRSS,
			MaxItems: spec.MaxItems,
		},
	}, nil
}

// GoogleNewsLoader turns a search query into a Google News RSS search feed.
type GoogleNewsLoader struct{}

func (g *GoogleNewsLoader) Load(ctx context.Context, id string, spec FeedSpec) ([]Feed, error) {
	if spec.Query == "" && spec.URL == "" {
		return nil, fmt.Errorf("feed %s: query is required", id)
	}
	feedURL := spec.URL
	if feedURL == "" {
		feedURL = GoogleNewsURL(spec.Query, spec.Days, spec.Locale)
	}
	return []Feed{
		{
			ID:       id,
			URL:      feedURL,
			Label:    labelOr(spec.Label, id),
			Kind:     KindGoogleNews,
			MaxItems: spec.MaxItems,
		},
	}, nil
}

// GoogleNewsURL builds a search feed URL. locale is "lang-COUNTRY", default "nl-NL".
func GoogleNewsURL(query string, days int, locale string) string {
	lang, country := "nl", "NL"
	if locale != "" {
		parts := strings.SplitN(locale, "-", 2)
		lang = strings.ToLower(parts[0])
		if len(parts) == 2 {
			country = strings.ToUpper(parts[1])
		} else {
			country = strings.ToUpper(parts[0])
		}
	}

	q := strings.TrimSpace(query)
	if days > 0 {
		q = fmt.Sprintf("%s when:%dd", q, days)
	}

	values := url.Values{}
	values.Set("q", q)
	values.Set("hl", lang)
	values.Set("gl", country)
	values.Set("ceid", country+":"+lang)
	return googleNewsSearchURL + "?" + values.Encode()
}

type OPMLFileLoader struct{}

func (o *OPMLFileLoader) Load(ctx context.Context, id string, spec FeedSpec) ([]Feed, error) {
	data, err := LoadOPMLFile(spec.Path)
	if err != nil {
		return nil, err
	}
	return opmlFeeds(id, data, spec.MaxItems)
}

type OPMLURLLoader struct {
	Client *fetch.Client
}

func (o *OPMLURLLoader) Load(ctx context.Context, id string, spec FeedSpec) ([]Feed, error) {
	client := o.Client
	if client == nil {
		client = fetch.NewClient(fetch.Config{}, nil)
	}
	data, err := FetchOPML(ctx, client, spec.URL)
	if err != nil {
		return nil, err
	}
	return opmlFeeds(id, data, spec.MaxItems)
}

func opmlFeeds(id string, data []byte, maxItems int) ([]Feed, error) {
	feeds, err := ParseOPML(data)
	if err != nil {
		return nil, err
	}
	for i := range feeds {
		feeds[i].ID = id + "_" + feeds[i].ID
		feeds[i].MaxItems = maxItems
	}
	return feeds, nil
}

func labelOr(label, fallback string) string {
	if label != "" {
		return label
	}
	return fallback
}

func init() {
	RegisterLoader(string(KindRSS), &RSSLoader{})
	RegisterLoader(string(KindGoogleNews), &GoogleNewsLoader{})
	RegisterLoader("opml_file", &OPMLFileLoader{})
	RegisterLoader("opml_url", &OPMLURLLoader{})
}
