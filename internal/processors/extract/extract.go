package extract

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"nieuwsdraad/internal/fetch"
	"nieuwsdraad/internal/types"
	"nieuwsdraad/internal/utils"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
)

const (
	DefaultMinParagraph = 40
	DefaultMinText      = 400
)

var (
	containerSelectors = []string{"article", "main", "body"}
	strippedElements   = "script, style, noscript, iframe, embed, object, form"
)

type Config struct {
	MinParagraph int
	MinText      int
	GatePhrases  []string
}

type docStrategy func(doc *goquery.Document) (string, bool)

var (
	titleStrategies = []docStrategy{metaContent(`meta[property="og:title"]`, `meta[name="og:title"]`), documentTitle}
	imageStrategies = []docStrategy{metaContent(`meta[property="og:image"]`, `meta[name="og:image"]`)}
)

// Extractor pulls readable body text out of article pages.
type Extractor struct {
	client *fetch.Client
	gates  *GateDetector
	config Config
	logger *slog.Logger
}

func NewExtractor(client *fetch.Client, config Config, logger *slog.Logger) *Extractor {
	if config.MinParagraph <= 0 {
		config.MinParagraph = DefaultMinParagraph
	}
	if config.MinText <= 0 {
		config.MinText = DefaultMinText
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		client: client,
		gates:  NewGateDetector(config.GatePhrases),
		config: config,
		logger: logger,
	}
}

// Extract fetches link, following redirects, and parses the page.
func (e *Extractor) Extract(ctx context.Context, link string) types.ArticleContent {
	resp, err := e.client.Get(ctx, link, fetch.Options{Accept: fetch.AcceptHTML})
	if err != nil {
		e.logger.Warn("Article fetch failed", "url", link, "error", err)
		return types.FailedArticle(link, types.ErrorFetchFailed)
	}

	if ct := strings.ToLower(resp.Header.Get("Content-Type")); ct != "" && !strings.Contains(ct, "html") && !strings.Contains(ct, "xml") {
		e.logger.Warn("Article is not HTML", "url", link, "content_type", ct)
		return types.FailedArticle(link, types.ErrorFetchFailed)
	}

	article := e.Parse(resp.FinalURL, resp.Body)
	article.Link = link
	return article
}

// Parse runs gate detection and text extraction on a fetched page. It never
// panics; parser failures come back as fetch_failed.
func (e *Extractor) Parse(pageURL string, body []byte) (article types.ArticleContent) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Article parse panicked", "url", pageURL, "panic", fmt.Sprint(r))
			article = types.FailedArticle(pageURL, types.ErrorFetchFailed)
		}
	}()

	if signal, blocked := e.gates.Blocked(pageURL, body); blocked {
		e.logger.Info("Article behind gate", "url", pageURL, "signal", signal)
		return types.FailedArticle(pageURL, types.ErrorBlockedByGate)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		e.logger.Warn("Article parse failed", "url", pageURL, "error", err)
		return types.FailedArticle(pageURL, types.ErrorFetchFailed)
	}

	article = types.ArticleContent{Link: pageURL}
	if title, ok := firstOf(doc, titleStrategies); ok {
		article.Title = utils.CleanText(title)
	}
	if img, ok := firstOf(doc, imageStrategies); ok {
		article.ImageURL = utils.ResolveReference(pageURL, img)
	}

	text := e.bodyText(doc)
	if utils.RuneLen(text) < e.config.MinText {
		article.ErrorKind = types.ErrorInsufficientText
		e.fillFromReadability(&article, pageURL, body)
		return article
	}

	article.OK = true
	article.Text = text
	article.ErrorKind = types.ErrorNone
	e.fillFromReadability(&article, pageURL, body)
	return article
}

func (e *Extractor) bodyText(doc *goquery.Document) string {
	container := doc.Selection
	for _, sel := range containerSelectors {
		if found := doc.Find(sel).First(); found.Length() > 0 {
			container = found
			break
		}
	}

	container.Find(strippedElements).Remove()

	var blocks []string
	container.Find("p, li").Each(func(_ int, s *goquery.Selection) {
		if goquery.NodeName(s) == "li" && s.Find("p").Length() > 0 {
			return
		}
		text := utils.CleanText(s.Text())
		if utils.RuneLen(text) > e.config.MinParagraph {
			blocks = append(blocks, text)
		}
	})

	return utils.CollapseBlankLines(strings.Join(blocks, "\n\n"))
}

// fillFromReadability adds byline and site name, and a title when the page
// carries neither an og:title nor a title element.
func (e *Extractor) fillFromReadability(article *types.ArticleContent, pageURL string, body []byte) {
	if !article.OK && article.Title != "" {
		return
	}
	parsedURL, err := url.Parse(pageURL)
	if err != nil {
		return
	}
	meta, err := readability.FromReader(bytes.NewReader(body), parsedURL)
	if err != nil {
		e.logger.Debug("Readability metadata unavailable", "url", pageURL, "error", err)
		return
	}
	if article.Title == "" {
		article.Title = utils.CleanText(meta.Title)
	}
	article.Byline = utils.CleanText(meta.Byline)
	article.SiteName = utils.CleanText(meta.SiteName)
}

func firstOf(doc *goquery.Document, strategies []docStrategy) (string, bool) {
	for _, s := range strategies {
		if v, ok := s(doc); ok {
			return v, true
		}
	}
	return "", false
}

func metaContent(selectors ...string) docStrategy {
	return func(doc *goquery.Document) (string, bool) {
		for _, sel := range selectors {
			if v, ok := doc.Find(sel).First().Attr("content"); ok && strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v), true
			}
		}
		return "", false
	}
}

func documentTitle(doc *goquery.Document) (string, bool) {
	title := strings.TrimSpace(doc.Find("title").First().Text())
	return title, title != ""
}
