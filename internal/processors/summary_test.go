package processors

import (
	"context"
	"errors"
	"strings"
	"testing"

	"nieuwsdraad/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSummarizer struct {
	out     string
	err     error
	prompts []string
}

func (s *stubSummarizer) Summarize(_ context.Context, prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	return s.out, s.err
}

func okArticle() types.ArticleContent {
	return types.ArticleContent{
		OK:        true,
		Link:      "https://nos.nl/artikel/1",
		Title:     "Storm raakt kustregio",
		Text:      "Eerste zin over de storm. Tweede zin met details.\n\nDerde zin in een nieuwe alinea.",
		ErrorKind: types.ErrorNone,
	}
}

func TestBriefer_UsesModelOutput(t *testing.T) {
	stub := &stubSummarizer{out: "  Samenvatting van het model.  "}
	b, err := NewBriefer(stub, BrieferConfig{}, nil)
	require.NoError(t, err)

	got := b.FromArticle(context.Background(), okArticle())

	assert.Equal(t, SourceModel, got.Source)
	assert.Equal(t, "Samenvatting van het model.", got.Text)
	require.Len(t, stub.prompts, 1)
	assert.Contains(t, stub.prompts[0], "Titel: Storm raakt kustregio")
	assert.Contains(t, stub.prompts[0], "Derde zin in een nieuwe alinea.")
}

func TestBriefer_FallsBackToExtractive(t *testing.T) {
	for name, stub := range map[string]Summarizer{
		"error": &stubSummarizer{err: errors.New("connection refused")},
		"blank": &stubSummarizer{out: "   "},
		"none":  nil,
	} {
		t.Run(name, func(t *testing.T) {
			b, err := NewBriefer(stub, BrieferConfig{ExtractiveSize: 60}, nil)
			require.NoError(t, err)

			got := b.FromArticle(context.Background(), okArticle())
			assert.Equal(t, SourceExtractive, got.Source)
			assert.Equal(t, "Eerste zin over de storm. Tweede zin met details.", got.Text)
		})
	}
}

func TestBriefer_FromRelated(t *testing.T) {
	related := []types.Item{
		{Title: "Kustregio getroffen door storm", SourceHost: "ad.nl", Summary: "Veel schade."},
		{Title: "Storm houdt aan", SourceHost: "nu.nl"},
	}

	stub := &stubSummarizer{out: "Achtergrond."}
	b, err := NewBriefer(stub, BrieferConfig{}, nil)
	require.NoError(t, err)

	got := b.FromRelated(context.Background(), "https://rtl.nl/x", "Storm raakt kustregio", nil, related)
	assert.Equal(t, SourceModel, got.Source)
	assert.Contains(t, stub.prompts[0], "- Kustregio getroffen door storm (ad.nl): Veel schade.")

	b, err = NewBriefer(&stubSummarizer{err: errors.New("down")}, BrieferConfig{}, nil)
	require.NoError(t, err)
	got = b.FromRelated(context.Background(), "https://rtl.nl/x", "Storm raakt kustregio", nil, related)
	assert.Equal(t, SourceExtractive, got.Source)
	assert.Equal(t, "Kustregio getroffen door storm (ad.nl): Veel schade.\nStorm houdt aan (nu.nl)", got.Text)

	got = b.FromRelated(context.Background(), "https://rtl.nl/x", "Storm", nil, nil)
	assert.Equal(t, SourceNone, got.Source)
	assert.Empty(t, got.Text)
}

func TestExtractiveSummary(t *testing.T) {
	long := strings.Repeat("woord ", 200) + "einde."
	assert.Equal(t, strings.TrimSpace(long), ExtractiveSummary(long, 50), "first sentence is kept whole")
	assert.Equal(t, "", ExtractiveSummary("", 100))
}
