package rss

import (
	"errors"
	"fmt"
	"sync"
)

var (
	loaders = make(map[string]SourceLoader)
	mu      sync.RWMutex
)

func RegisterLoader(loaderType string, loader SourceLoader) {
	mu.Lock()
	defer mu.Unlock()
	loaders[loaderType] = loader
}

func GetLoader(loaderType string) (SourceLoader, error) {
	mu.RLock()
	defer mu.RUnlock()

	loader, exists := loaders[loaderType]
	if !exists {
		return nil, fmt.Errorf("unknown loader type: %s", loaderType)
	}

	return loader, nil
}

var (
	ErrUnknownFeed     = errors.New("unknown feed")
	ErrUnknownCategory = errors.New("unknown category")
	ErrDuplicateFeed   = errors.New("duplicate feed id")
)

// Registry maps feed ids to feeds and category names to ordered feed ids.
// An id may also name a group, which is the set of feeds one loader entry
// produced (an OPML file, for instance).
type Registry struct {
	feeds         map[string]Feed
	order         []string
	groups        map[string][]string
	categories    map[string][]string
	categoryOrder []string
}

func NewRegistry() *Registry {
	return &Registry{
		feeds:      make(map[string]Feed),
		groups:     make(map[string][]string),
		categories: make(map[string][]string),
	}
}

func (r *Registry) Add(feed Feed) error {
	if feed.ID == "" {
		return fmt.Errorf("feed without id: %s", feed.URL)
	}
	if _, exists := r.feeds[feed.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateFeed, feed.ID)
	}
	r.feeds[feed.ID] = feed
	r.order = append(r.order, feed.ID)
	return nil
}

// AddGroup registers feeds produced by one entry so that the entry id
// expands to all of them.
func (r *Registry) AddGroup(id string, feeds []Feed) error {
	if len(feeds) == 1 && feeds[0].ID == id {
		return r.Add(feeds[0])
	}
	ids := make([]string, 0, len(feeds))
	for _, f := range feeds {
		if err := r.Add(f); err != nil {
			return err
		}
		ids = append(ids, f.ID)
	}
	r.groups[id] = ids
	return nil
}

func (r *Registry) SetCategory(name string, ids []string) error {
	for _, id := range ids {
		if !r.known(id) {
			return fmt.Errorf("category %s: %w: %s", name, ErrUnknownFeed, id)
		}
	}
	if _, exists := r.categories[name]; !exists {
		r.categoryOrder = append(r.categoryOrder, name)
	}
	r.categories[name] = append([]string(nil), ids...)
	return nil
}

func (r *Registry) known(id string) bool {
	if _, ok := r.feeds[id]; ok {
		return true
	}
	_, ok := r.groups[id]
	return ok
}

func (r *Registry) Lookup(id string) (Feed, bool) {
	f, ok := r.feeds[id]
	return f, ok
}

// Category returns the feed ids of a category in declared order.
func (r *Registry) Category(name string) ([]string, error) {
	ids, ok := r.categories[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCategory, name)
	}
	return append([]string(nil), ids...), nil
}

func (r *Registry) Categories() []string {
	return append([]string(nil), r.categoryOrder...)
}

// All returns every feed id in registration order.
func (r *Registry) All() []string {
	return append([]string(nil), r.order...)
}

// Resolve expands ids (and group ids) into feeds, keeping order and dropping
// repeats. Unknown ids are returned separately.
func (r *Registry) Resolve(ids []string) (feeds []Feed, unknown []string) {
	seen := make(map[string]bool)
	var add func(id string)
	add = func(id string) {
		if f, ok := r.feeds[id]; ok {
			if !seen[id] {
				seen[id] = true
				feeds = append(feeds, f)
			}
			return
		}
		if members, ok := r.groups[id]; ok {
			for _, m := range members {
				add(m)
			}
			return
		}
		unknown = append(unknown, id)
	}
	for _, id := range ids {
		add(id)
	}
	return feeds, unknown
}

func (r *Registry) Len() int {
	return len(r.feeds)
}
