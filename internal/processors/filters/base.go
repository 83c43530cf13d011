package filters

import "nieuwsdraad/internal/types"

// Filter decides whether an item stays. A non-nil error is a
// *types.DiscardError carrying the reason.
type Filter interface {
	Name() string
	Check(item *types.Item) error
}

type FilterFunc func(*types.Item) error

type FilterProcessor struct {
	name     string
	filterFn FilterFunc
}

func NewFilterProcessor(name string, filterFn FilterFunc) *FilterProcessor {
	return &FilterProcessor{
		name:     name,
		filterFn: filterFn,
	}
}

func (f *FilterProcessor) Name() string {
	return f.name
}

func (f *FilterProcessor) Check(item *types.Item) error {
	if f.filterFn == nil {
		return nil
	}
	return f.filterFn(item)
}

// Apply keeps the items every filter accepts, in order. onDiscard, when set,
// sees each rejection.
func Apply(items []types.Item, onDiscard func(types.Item, error), chain ...Filter) []types.Item {
	kept := make([]types.Item, 0, len(items))
	for _, item := range items {
		if err := check(&item, chain); err != nil {
			if onDiscard != nil {
				onDiscard(item, err)
			}
			continue
		}
		kept = append(kept, item)
	}
	return kept
}

func check(item *types.Item, chain []Filter) error {
	for _, f := range chain {
		if f == nil {
			continue
		}
		if err := f.Check(item); err != nil {
			return err
		}
	}
	return nil
}
