package processors

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"text/template"

	"nieuwsdraad/internal/metrics"
	"nieuwsdraad/internal/types"
	"nieuwsdraad/internal/utils"
)

// Summarizer is the text-generation collaborator. It may fail or return
// nothing useful; callers fall back to an extractive summary.
type Summarizer interface {
	Summarize(ctx context.Context, prompt string) (string, error)
}

type BriefingSource string

const (
	SourceModel      BriefingSource = "model"
	SourceExtractive BriefingSource = "extractive"
	SourceNone       BriefingSource = "none"
)

type Briefing struct {
	Link    string                `json:"link"`
	Title   string                `json:"title,omitempty"`
	Text    string                `json:"text"`
	Source  BriefingSource        `json:"source"`
	Article *types.ArticleContent `json:"article,omitempty"`
	Related []types.Item          `json:"related,omitempty"`
}

const defaultArticlePrompt = `Je bent een nieuwsredacteur. Vat het onderstaande artikel samen in drie tot vijf feitelijke alinea's in het Nederlands. Voeg geen informatie toe die niet in de tekst staat.

Titel: {{ .Title }}

Artikel:
"""
{{ truncate .Text 12000 }}
"""
`

const defaultRelatedPrompt = `Je bent een nieuwsredacteur. Het volledige artikel "{{ .Title }}" kon niet worden gelezen. Schrijf op basis van de onderstaande berichten uit andere bronnen een korte achtergrondschets in het Nederlands. Noem geen feiten die niet in de berichten staan.

{{ range .Related }}- {{ .Title }} ({{ .SourceHost }}){{ if .Summary }}: {{ truncate .Summary 400 }}{{ end }}
{{ end }}`

type BrieferConfig struct {
	ArticlePrompt  *template.Template
	RelatedPrompt  *template.Template
	ExtractiveSize int
}

// Briefer hands clean input to the Summarizer and falls back to an
// extractive summary when it yields nothing.
type Briefer struct {
	summarizer     Summarizer
	articlePrompt  *template.Template
	relatedPrompt  *template.Template
	extractiveSize int
	logger         *slog.Logger
}

func NewBriefer(summarizer Summarizer, config BrieferConfig, logger *slog.Logger) (*Briefer, error) {
	var err error
	if config.ArticlePrompt == nil {
		if config.ArticlePrompt, err = utils.ParseTemplate("article_prompt", defaultArticlePrompt); err != nil {
			return nil, err
		}
	}
	if config.RelatedPrompt == nil {
		if config.RelatedPrompt, err = utils.ParseTemplate("related_prompt", defaultRelatedPrompt); err != nil {
			return nil, err
		}
	}
	if config.ExtractiveSize <= 0 {
		config.ExtractiveSize = 600
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Briefer{
		summarizer:     summarizer,
		articlePrompt:  config.ArticlePrompt,
		relatedPrompt:  config.RelatedPrompt,
		extractiveSize: config.ExtractiveSize,
		logger:         logger,
	}, nil
}

// FromArticle briefs a successfully extracted article.
func (b *Briefer) FromArticle(ctx context.Context, article types.ArticleContent) Briefing {
	briefing := Briefing{Link: article.Link, Title: article.Title, Article: &article}

	if text, ok := b.generate(ctx, b.articlePrompt, article); ok {
		return b.done(briefing, text, SourceModel)
	}
	if text := ExtractiveSummary(article.Text, b.extractiveSize); text != "" {
		return b.done(briefing, text, SourceExtractive)
	}
	return b.done(briefing, "", SourceNone)
}

// FromRelated briefs a link whose article could not be read, using items
// from other sources.
func (b *Briefer) FromRelated(ctx context.Context, link, title string, article *types.ArticleContent, related []types.Item) Briefing {
	briefing := Briefing{Link: link, Title: title, Article: article, Related: related}
	if len(related) == 0 {
		return b.done(briefing, "", SourceNone)
	}

	data := struct {
		Title   string
		Related []types.Item
	}{title, related}

	if text, ok := b.generate(ctx, b.relatedPrompt, data); ok {
		return b.done(briefing, text, SourceModel)
	}
	return b.done(briefing, snippetSummary(related), SourceExtractive)
}

func (b *Briefer) generate(ctx context.Context, tmpl *template.Template, data any) (string, bool) {
	if b.summarizer == nil {
		return "", false
	}

	prompt, err := utils.ExecuteTemplate(tmpl, data)
	if err != nil {
		b.logger.Error("Prompt rendering failed", "template", tmpl.Name(), "error", err)
		return "", false
	}

	text, err := b.summarizer.Summarize(ctx, prompt)
	if err != nil {
		b.logger.Warn("Summarizer failed, using extractive summary", "error", err)
		return "", false
	}
	text = strings.TrimSpace(text)
	return text, text != ""
}

func (b *Briefer) done(briefing Briefing, text string, source BriefingSource) Briefing {
	briefing.Text = text
	briefing.Source = source
	metrics.RecordBriefing(string(source))
	return briefing
}

// ExtractiveSummary returns the leading sentences of text up to roughly
// maxChars characters. The first sentence is always kept whole.
func ExtractiveSummary(text string, maxChars int) string {
	var out []string
	size := 0
	for _, s := range utils.Sentences(strings.ReplaceAll(text, "\n\n", " ")) {
		n := utils.RuneLen(s)
		if len(out) > 0 && size+n+1 > maxChars {
			break
		}
		out = append(out, s)
		size += n + 1
	}
	return strings.Join(out, " ")
}

func snippetSummary(related []types.Item) string {
	lines := make([]string, 0, len(related))
	for _, it := range related {
		line := fmt.Sprintf("%s (%s)", it.Title, it.SourceHost)
		if it.Summary != "" {
			line += ": " + utils.Truncate(it.Summary, 200)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
