package types

import (
	"time"
)

// Item is one normalized entry of a collection pass.
type Item struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Link        string          `json:"link"`
	PublishedAt *time.Time      `json:"published_at,omitempty"`
	SourceHost  string          `json:"source_host"`
	ImageURL    string          `json:"image_url,omitempty"`
	Summary     string          `json:"summary,omitempty"`
	FeedLabel   string          `json:"feed_label"`
	Article     *ArticleContent `json:"article,omitempty"`
}

func (i *Item) HasTimestamp() bool {
	return i.PublishedAt != nil
}

// Newer reports whether i sorts before other in newest-first order.
// Undated items sort after every dated item.
func (i *Item) Newer(other *Item) bool {
	switch {
	case i.PublishedAt == nil:
		return false
	case other.PublishedAt == nil:
		return true
	default:
		return i.PublishedAt.After(*other.PublishedAt)
	}
}

type ErrorKind string

const (
	ErrorNone             ErrorKind = "none"
	ErrorBlockedByGate    ErrorKind = "blocked_by_gate"
	ErrorInsufficientText ErrorKind = "insufficient_text"
	ErrorFetchFailed      ErrorKind = "fetch_failed"
)

// ArticleContent is the outcome of full-text extraction for one link.
type ArticleContent struct {
	OK        bool      `json:"ok"`
	Link      string    `json:"link"`
	Title     string    `json:"title,omitempty"`
	Text      string    `json:"text,omitempty"`
	ImageURL  string    `json:"image_url,omitempty"`
	Byline    string    `json:"byline,omitempty"`
	SiteName  string    `json:"site_name,omitempty"`
	ErrorKind ErrorKind `json:"error_kind"`
}

func FailedArticle(link string, kind ErrorKind) ArticleContent {
	return ArticleContent{Link: link, ErrorKind: kind}
}
