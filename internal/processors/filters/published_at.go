package filters

import (
	"time"

	"nieuwsdraad/internal/processors/names"
	"nieuwsdraad/internal/types"
)

type TimeFilter struct {
	cutoff time.Time
	name   string
}

func NewTimeFilter(name string, cutoff time.Time) *TimeFilter {
	return &TimeFilter{cutoff: cutoff, name: name}
}

func (t *TimeFilter) FilterAfter(itemTime time.Time) error {
	if itemTime.Before(t.cutoff) {
		return types.NewDiscardError(t.name, names.ReasonOutOfWindow).
			WithDetail("published_at", itemTime).
			WithDetail("after", t.cutoff)
	}
	return nil
}

// WindowFilter keeps items published at or after now minus window. Items
// without a timestamp are dropped. A non-positive window returns nil.
func WindowFilter(window time.Duration, now time.Time) Filter {
	if window <= 0 {
		return nil
	}

	tf := NewTimeFilter(names.WindowFilter, now.Add(-window))
	return NewFilterProcessor(names.WindowFilter, func(item *types.Item) error {
		if item.PublishedAt == nil {
			return types.NewDiscardError(names.WindowFilter, names.ReasonUndated)
		}
		return tf.FilterAfter(*item.PublishedAt)
	})
}

// InWindow reports whether ts lies within window of now.
func InWindow(ts *time.Time, window time.Duration, now time.Time) bool {
	if window <= 0 {
		return true
	}
	return ts != nil && !ts.Before(now.Add(-window))
}
