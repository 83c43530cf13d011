package filters

import (
	"strings"

	"nieuwsdraad/internal/processors/names"
	"nieuwsdraad/internal/types"
)

// QueryFilter keeps items whose title or summary contains query,
// case-insensitively. An empty query returns nil, which Apply skips.
func QueryFilter(query string) Filter {
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return nil
	}

	return NewFilterProcessor(names.QueryFilter, func(item *types.Item) error {
		haystack := strings.ToLower(item.Title + " " + item.Summary)
		if strings.Contains(haystack, needle) {
			return nil
		}
		return types.NewDiscardError(names.QueryFilter, names.ReasonNoMatch).
			WithDetail("query", query)
	})
}
