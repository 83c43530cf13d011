package config

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimal = `
[feeds.nos]
url = "https://feeds.nos.nl/nosnieuwsalgemeen"
`

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse(minimal)
	require.NoError(t, err)

	assert.Equal(t, "nieuwsdraad", cfg.Service.Name)
	assert.Equal(t, ":8080", cfg.Service.Listen)
	assert.Equal(t, "12s", cfg.HTTP.Timeout)
	assert.Equal(t, "90s", cfg.Cache.FeedTTL)
	assert.Equal(t, "15m", cfg.Cache.ArticleTTL)
	assert.Equal(t, "6h", cfg.Cache.RedirectTTL)
	assert.Equal(t, 20, cfg.Collect.MaxPerFeed)
	assert.Equal(t, 48, cfg.Related.WindowHours)
	assert.Equal(t, 7, cfg.Related.K)
	assert.Equal(t, "rss", cfg.Feeds["nos"].Type)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"no feeds", `[service]
name = "x"`},
		{"bad duration", minimal + `
[cache]
feed_ttl = "soon"`},
		{"unknown feed type", `
[feeds.x]
type = "carrier_pigeon"
url = "https://example.org"`},
		{"summary without model", minimal + `
[summary]
enabled = true`},
		{"related overlap below two", minimal + `
[related]
min_overlap = 1`},
		{"related source cap above two", minimal + `
[related]
per_source_cap = 5`},
		{"bad log format", minimal + `
[log]
format = "xml"`},
		{"empty category", minimal + `
[categories]
leeg = []`},
		{"malformed toml", `[feeds.nos`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.data)
			assert.Error(t, err)
		})
	}
}

func TestParse_StricterRelatedLimits(t *testing.T) {
	cfg, err := Parse(minimal + `
[related]
min_overlap = 3
per_source_cap = 1
`)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Related.MinOverlap)
	assert.Equal(t, 1, cfg.Related.PerSourceCap)
}

func TestParse_DeclarationOrder(t *testing.T) {
	cfg, err := Parse(`
[feeds.zeta]
url = "https://z.example/rss"

[feeds.alpha]
url = "https://a.example/rss"

[feeds.mid]
url = "https://m.example/rss"

[categories]
later = ["mid"]
eerst = ["zeta", "alpha"]
`)
	require.NoError(t, err)
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, cfg.FeedOrder())
	assert.Equal(t, []string{"later", "eerst"}, cfg.CategoryOrder())
}

func TestLoader_BuildsRegistry(t *testing.T) {
	dir := t.TempDir()
	opml := `<?xml version="1.0"?><opml version="2.0"><body>
<outline text="Tech"><outline text="Tweakers" type="rss" xmlUrl="https://feeds.tweakers.net/nieuws"/></outline>
</body></opml>`
	opmlPath := filepath.Join(dir, "feeds.opml")
	require.NoError(t, os.WriteFile(opmlPath, []byte(opml), 0o644))

	cfg, err := Parse(`
[feeds.nos]
url = "https://feeds.nos.nl/nosnieuwsalgemeen"

[feeds.storm]
type = "google_news"
query = "storm"
days = 1

[feeds.tech]
type = "opml_file"
path = "` + filepath.ToSlash(opmlPath) + `"

[categories]
alles = ["nos", "storm", "tech"]
`)
	require.NoError(t, err)

	loader := NewLoader(cfg, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	require.NoError(t, loader.Initialize(context.Background()))

	registry := loader.Registry()
	assert.Equal(t, 3, registry.Len())
	assert.Equal(t, []string{"nos", "storm", "tech_tweakers"}, registry.All())

	storm, ok := registry.Lookup("storm")
	require.True(t, ok)
	assert.True(t, storm.Wrapper())
	assert.Contains(t, storm.URL, "news.google.com/rss/search")

	feeds, unknown := registry.Resolve([]string{"tech"})
	assert.Empty(t, unknown)
	require.Len(t, feeds, 1)
	assert.Equal(t, "https://feeds.tweakers.net/nieuws", feeds[0].URL)

	ids, err := registry.Category("alles")
	require.NoError(t, err)
	assert.Equal(t, []string{"nos", "storm", "tech"}, ids)

	assert.NotNil(t, loader.Collector())
	assert.NotNil(t, loader.Server())
}

func TestLoader_UnknownCategoryMember(t *testing.T) {
	cfg, err := Parse(minimal + `
[categories]
sport = ["nos", "espn"]
`)
	require.NoError(t, err)

	loader := NewLoader(cfg, nil)
	assert.Error(t, loader.Initialize(context.Background()))
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "warn", Format: "json"}, &buf)

	logger.Info("hidden")
	logger.Warn("shown", "feed", "nos")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"feed":"nos"`)
}
