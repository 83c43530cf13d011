package rss

import (
	"context"
	"encoding/xml"
	"fmt"
	"os"
	"strings"

	"nieuwsdraad/internal/fetch"
)

type OPML struct {
	XMLName xml.Name `xml:"opml"`
	Body    OPMLBody `xml:"body"`
}

type OPMLBody struct {
	Outlines []OPMLOutline `xml:"outline"`
}

type OPMLOutline struct {
	Title    string        `xml:"title,attr"`
	Text     string        `xml:"text,attr"`
	Type     string        `xml:"type,attr"`
	XMLURL   string        `xml:"xmlUrl,attr"`
	Outlines []OPMLOutline `xml:"outline"`
}

// ParseOPML flattens every outline carrying an xmlUrl into a feed. Ids are
// sanitized titles, suffixed on collision.
func ParseOPML(data []byte) ([]Feed, error) {
	var opml OPML
	if err := xml.Unmarshal(data, &opml); err != nil {
		return nil, fmt.Errorf("failed to parse OPML: %w", err)
	}

	var feeds []Feed
	seen := make(map[string]int)
	extractFeeds(&feeds, seen, opml.Body.Outlines)

	return feeds, nil
}

func extractFeeds(result *[]Feed, seen map[string]int, outlines []OPMLOutline) {
	for _, outline := range outlines {
		if outline.XMLURL != "" {
			label := outline.Title
			if label == "" {
				label = outline.Text
			}
			if label == "" {
				label = outline.XMLURL
			}

			id := sanitizeName(label)
			if n := seen[id]; n > 0 {
				seen[id] = n + 1
				id = fmt.Sprintf("%s_%d", id, n+1)
			} else {
				seen[id] = 1
			}

			*result = append(*result, Feed{
				ID:    id,
				URL:   outline.XMLURL,
				Label: label,
				Kind:  KindRSS,
			})
		}

		if len(outline.Outlines) > 0 {
			extractFeeds(result, seen, outline.Outlines)
		}
	}
}

func sanitizeName(name string) string {
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, " ", "_")
	name = strings.ReplaceAll(name, ".", "_")
	name = strings.ReplaceAll(name, "-", "_")
	name = strings.ReplaceAll(name, "&", "and")

	var result strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			result.WriteRune(r)
		}
	}

	return result.String()
}

func LoadOPMLFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read OPML file: %w", err)
	}
	return data, nil
}

func FetchOPML(ctx context.Context, client *fetch.Client, url string) ([]byte, error) {
	resp, err := client.Get(ctx, url, fetch.Options{Accept: "text/x-opml, application/xml;q=0.9, */*;q=0.5"})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch OPML: %w", err)
	}
	return resp.Body, nil
}
