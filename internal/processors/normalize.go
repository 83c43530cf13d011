package processors

import (
	"context"
	"strings"
	"time"

	"nieuwsdraad/internal/processors/names"
	"nieuwsdraad/internal/types"
	"nieuwsdraad/internal/utils"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"
	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"
)

const maxSummaryRunes = 500

type (
	textStrategy  func(*gofeed.Item) (string, bool)
	timeStrategy  func(*gofeed.Item) (time.Time, bool)
	imageStrategy func(*gofeed.Item) (string, bool)
)

var (
	titleStrategies = []textStrategy{itemTitle}
	linkStrategies  = []textStrategy{itemLink, firstLink, permalinkGUID}

	timeStrategies = []timeStrategy{
		publishedParsed,
		updatedParsed,
		publishedText,
		updatedText,
	}

	imageStrategies = []imageStrategy{
		mediaContentImage,
		mediaThumbnail,
		feedItemImage,
		imageEnclosure,
		summaryInlineImage,
	}

	summaryStrategies = []textStrategy{itemDescription, itemContent}
)

var summaryStripper = func() *bluemonday.Policy {
	p := bluemonday.StrictPolicy()
	p.AddSpaceWhenStrippingTag(true)
	return p
}()

// Normalizer turns raw feed entries into Items. It never touches the
// network; wrapper links are resolved separately through ResolveLink.
type Normalizer struct {
	resolver *RedirectResolver
}

func NewNormalizer(resolver *RedirectResolver) *Normalizer {
	return &Normalizer{resolver: resolver}
}

// Normalize returns the Item for entry, or a *types.DiscardError when the
// title or link is unusable.
func (n *Normalizer) Normalize(entry *gofeed.Item, feedLabel string) (types.Item, error) {
	if entry == nil {
		return types.Item{}, types.NewDiscardError(names.Normalize, names.ReasonMissingLink)
	}

	rawTitle, ok := firstText(entry, titleStrategies)
	title := utils.CleanText(rawTitle)
	if !ok || title == "" {
		return types.Item{}, types.NewDiscardError(names.Normalize, names.ReasonMissingTitle).
			WithDetail("feed", feedLabel)
	}

	rawLink, ok := firstText(entry, linkStrategies)
	if !ok {
		return types.Item{}, types.NewDiscardError(names.Normalize, names.ReasonMissingLink).
			WithDetail("feed", feedLabel).
			WithDetail("title", title)
	}
	if !utils.IsHTTPURL(rawLink) {
		return types.Item{}, types.NewDiscardError(names.Normalize, names.ReasonInvalidLink).
			WithDetail("feed", feedLabel).
			WithDetail("link", rawLink)
	}

	item := types.Item{
		Title:     title,
		FeedLabel: feedLabel,
	}
	setLink(&item, rawLink)

	if ts, ok := firstTime(entry); ok {
		item.PublishedAt = &ts
	}

	if img, ok := firstImage(entry); ok {
		item.ImageURL = utils.ResolveReference(item.Link, img)
	}

	if raw, ok := firstText(entry, summaryStrategies); ok {
		item.Summary = utils.Truncate(CleanSummary(raw), maxSummaryRunes)
	}

	return item, nil
}

// ResolveLink replaces a wrapper link with the publisher URL and re-derives
// the identity fields. Without a resolver the item is left untouched.
func (n *Normalizer) ResolveLink(ctx context.Context, item *types.Item) {
	if n.resolver == nil {
		return
	}
	setLink(item, n.resolver.Resolve(ctx, item.Link))
}

func setLink(item *types.Item, link string) {
	item.Link = utils.StripTracking(link)
	item.SourceHost = utils.SourceHost(item.Link)
	item.ID = utils.ItemID(item.Link, item.Title)
}

// CleanSummary strips markup from an HTML fragment and collapses whitespace.
func CleanSummary(fragment string) string {
	return utils.CleanText(summaryStripper.Sanitize(fragment))
}

func firstText(entry *gofeed.Item, strategies []textStrategy) (string, bool) {
	for _, s := range strategies {
		if v, ok := s(entry); ok {
			return v, true
		}
	}
	return "", false
}

func firstTime(entry *gofeed.Item) (time.Time, bool) {
	for _, s := range timeStrategies {
		if t, ok := s(entry); ok {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func firstImage(entry *gofeed.Item) (string, bool) {
	for _, s := range imageStrategies {
		if v, ok := s(entry); ok {
			return v, true
		}
	}
	return "", false
}

func nonEmpty(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, s != ""
}

func itemTitle(e *gofeed.Item) (string, bool) { return nonEmpty(e.Title) }

func itemLink(e *gofeed.Item) (string, bool) { return nonEmpty(e.Link) }

func firstLink(e *gofeed.Item) (string, bool) {
	for _, l := range e.Links {
		if v, ok := nonEmpty(l); ok {
			return v, true
		}
	}
	return "", false
}

func permalinkGUID(e *gofeed.Item) (string, bool) {
	if utils.IsHTTPURL(strings.TrimSpace(e.GUID)) {
		return nonEmpty(e.GUID)
	}
	return "", false
}

func itemDescription(e *gofeed.Item) (string, bool) { return nonEmpty(e.Description) }

func itemContent(e *gofeed.Item) (string, bool) { return nonEmpty(e.Content) }

func publishedParsed(e *gofeed.Item) (time.Time, bool) {
	if e.PublishedParsed == nil {
		return time.Time{}, false
	}
	return *e.PublishedParsed, true
}

func updatedParsed(e *gofeed.Item) (time.Time, bool) {
	if e.UpdatedParsed == nil {
		return time.Time{}, false
	}
	return *e.UpdatedParsed, true
}

func publishedText(e *gofeed.Item) (time.Time, bool) { return parseFreeText(e.Published) }

func updatedText(e *gofeed.Item) (time.Time, bool) { return parseFreeText(e.Updated) }

// parseFreeText reads dates the feed parser gave up on. Zones that are not
// stated are taken as UTC.
func parseFreeText(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func mediaExtensions(e *gofeed.Item, name string) []ext.Extension {
	media, ok := e.Extensions["media"]
	if !ok {
		return nil
	}
	out := append([]ext.Extension(nil), media[name]...)
	for _, group := range media["group"] {
		out = append(out, group.Children[name]...)
	}
	return out
}

func mediaContentImage(e *gofeed.Item) (string, bool) {
	for _, c := range mediaExtensions(e, "content") {
		medium := strings.ToLower(c.Attrs["medium"])
		mime := strings.ToLower(c.Attrs["type"])
		if medium != "" && medium != "image" {
			continue
		}
		if mime != "" && !strings.HasPrefix(mime, "image/") {
			continue
		}
		if v, ok := nonEmpty(c.Attrs["url"]); ok {
			return v, true
		}
	}
	return "", false
}

func mediaThumbnail(e *gofeed.Item) (string, bool) {
	for _, t := range mediaExtensions(e, "thumbnail") {
		if v, ok := nonEmpty(t.Attrs["url"]); ok {
			return v, true
		}
	}
	return "", false
}

func feedItemImage(e *gofeed.Item) (string, bool) {
	if e.Image == nil {
		return "", false
	}
	return nonEmpty(e.Image.URL)
}

func imageEnclosure(e *gofeed.Item) (string, bool) {
	for _, enc := range e.Enclosures {
		if enc == nil || !strings.HasPrefix(strings.ToLower(enc.Type), "image/") {
			continue
		}
		if v, ok := nonEmpty(enc.URL); ok {
			return v, true
		}
	}
	return "", false
}

func summaryInlineImage(e *gofeed.Item) (string, bool) {
	for _, fragment := range []string{e.Description, e.Content} {
		if !strings.Contains(strings.ToLower(fragment), "<img") {
			continue
		}
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
		if err != nil {
			continue
		}
		if src, ok := doc.Find("img[src]").First().Attr("src"); ok {
			if v, ok := nonEmpty(src); ok {
				return v, true
			}
		}
	}
	return "", false
}
