package processors

import (
	"nieuwsdraad/internal/processors/names"
	"nieuwsdraad/internal/types"
)

// Deduplicator drops repeated identities within one collection pass. It
// keeps no memory between calls.
type Deduplicator struct {
	name string
}

func NewDeduplicator() *Deduplicator {
	return &Deduplicator{name: names.Dedupe}
}

func (d *Deduplicator) Name() string {
	return d.name
}

// Dedupe returns items with later repeats of an id removed; the first
// occurrence wins and order is kept. It also reports how many were dropped.
func (d *Deduplicator) Dedupe(items []types.Item) ([]types.Item, int) {
	seen := make(map[string]struct{}, len(items))
	out := make([]types.Item, 0, len(items))

	for _, item := range items {
		if _, exists := seen[item.ID]; exists {
			continue
		}
		seen[item.ID] = struct{}{}
		out = append(out, item)
	}

	return out, len(items) - len(out)
}
