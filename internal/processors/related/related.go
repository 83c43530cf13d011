package related

import (
	"sort"
	"strings"
	"time"

	"nieuwsdraad/internal/processors/filters"
	"nieuwsdraad/internal/types"
	"nieuwsdraad/internal/utils"
)

type Config struct {
	MinTokenLen  int
	MinOverlap   int
	PerSourceCap int
}

type Request struct {
	FocusTitle  string
	ExcludeLink string
	Window      time.Duration
	K           int
}

// Selector picks items whose titles share keywords with a focus title.
type Selector struct {
	config Config
}

func NewSelector(config Config) *Selector {
	if config.MinTokenLen <= 0 {
		config.MinTokenLen = DefaultMinTokenLen
	}
	if config.MinOverlap <= 0 {
		config.MinOverlap = 2
	}
	if config.PerSourceCap <= 0 {
		config.PerSourceCap = 2
	}
	return &Selector{config: config}
}

type scored struct {
	item  types.Item
	score int
}

// Select returns up to req.K candidates ordered by shared-token count, then
// recency, with at most PerSourceCap items per source host.
func (s *Selector) Select(candidates []types.Item, req Request, now time.Time) []types.Item {
	if req.K <= 0 {
		return nil
	}

	focus := Tokens(req.FocusTitle, s.config.MinTokenLen)
	if len(focus) < s.config.MinOverlap {
		return nil
	}
	exclude := utils.StripTracking(req.ExcludeLink)

	var pool []scored
	for _, c := range candidates {
		if exclude != "" && utils.StripTracking(c.Link) == exclude {
			continue
		}
		if !filters.InWindow(c.PublishedAt, req.Window, now) {
			continue
		}
		score := overlap(focus, Tokens(c.Title, s.config.MinTokenLen))
		if score < s.config.MinOverlap {
			continue
		}
		pool = append(pool, scored{item: c, score: score})
	}

	sort.SliceStable(pool, func(i, j int) bool {
		if pool[i].score != pool[j].score {
			return pool[i].score > pool[j].score
		}
		return pool[i].item.Newer(&pool[j].item)
	})

	perHost := make(map[string]int)
	out := make([]types.Item, 0, req.K)
	for _, p := range pool {
		host := strings.ToLower(p.item.SourceHost)
		if perHost[host] >= s.config.PerSourceCap {
			continue
		}
		perHost[host]++
		out = append(out, p.item)
		if len(out) == req.K {
			break
		}
	}
	return out
}
