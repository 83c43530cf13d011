package extract

import (
	"bytes"
	"strings"

	"nieuwsdraad/internal/utils"
)

// Phrases that only appear on JavaScript walls and consent interstitials.
var defaultGatePhrases = []string{
	"please enable javascript",
	"you need to enable javascript",
	"javascript is required",
	"javascript is disabled",
	"enable javascript to",
	"je hebt javascript nodig",
	"javascript staat uit",
	"schakel javascript in",
	"zet javascript aan",
	"javascript moet ingeschakeld",
	"cookiewall",
	"cookie wall",
	"myprivacy.dpgmedia",
	"before you continue to google",
	"voordat je verdergaat naar google",
	"accept cookies to continue",
	"accepteer cookies om verder te gaan",
	"geef toestemming voor cookies",
}

type GateDetector struct {
	phrases [][]byte
	hosts   []string
}

func NewGateDetector(extraPhrases []string) *GateDetector {
	g := &GateDetector{hosts: utils.ConsentHosts}
	for _, p := range append(append([]string(nil), defaultGatePhrases...), extraPhrases...) {
		if p = strings.TrimSpace(strings.ToLower(p)); p != "" {
			g.phrases = append(g.phrases, []byte(p))
		}
	}
	return g
}

// Blocked reports whether the page is a gate, either by the host it ended
// up on or by a gate phrase in its markup.
func (g *GateDetector) Blocked(finalURL string, body []byte) (string, bool) {
	host := utils.Hostname(finalURL)
	for _, h := range g.hosts {
		if host == h {
			return h, true
		}
	}

	lower := bytes.ToLower(body)
	for _, p := range g.phrases {
		if bytes.Contains(lower, p) {
			return string(p), true
		}
	}
	return "", false
}
