package rss

import "context"

type FeedKind string

const (
	KindRSS        FeedKind = "rss"
	KindGoogleNews FeedKind = "google_news"
)

// Feed is one registry entry: a stable id and the URL behind it.
type Feed struct {
	ID       string
	URL      string
	Label    string
	Kind     FeedKind
	MaxItems int
}

// Wrapper reports whether entries of this feed link through an aggregator
// redirect rather than to the publisher.
func (f Feed) Wrapper() bool {
	return f.Kind == KindGoogleNews
}

// FeedSpec is the declarative form of a registry entry before loading.
type FeedSpec struct {
	Type     string
	URL      string
	Label    string
	Query    string
	Days     int
	Locale   string
	Path     string
	MaxItems int
}

type SourceLoader interface {
	Load(ctx context.Context, id string, spec FeedSpec) ([]Feed, error)
}
