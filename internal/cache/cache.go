package cache

import (
	"log/slog"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Group shares one lock between several caches so that clearing them
// together is atomic for readers of any member.
type Group struct {
	mu      sync.RWMutex
	members []*gocache.Cache
}

func NewGroup() *Group {
	return &Group{}
}

func (g *Group) add(c *gocache.Cache) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.members = append(g.members, c)
}

// Clear flushes every member cache under a single write lock.
func (g *Group) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, c := range g.members {
		c.Flush()
	}
	slog.Debug("Cache group cleared", "members", len(g.members))
}

type CacheConfig struct {
	Name  string
	TTL   time.Duration
	Group *Group
	Now   func() time.Time
}

type entry[V any] struct {
	value    V
	storedAt time.Time
}

// Cache keeps the last value per key forever and reports whether it is
// still within TTL. Stale entries stay readable until overwritten.
type Cache[K comparable, V any] struct {
	name        string
	cache       *gocache.Cache
	group       *Group
	ttl         time.Duration
	now         func() time.Time
	keyToString func(K) string
}

func NewCache[K comparable, V any](config CacheConfig, keyToString func(K) string) *Cache[K, V] {
	if config.TTL == 0 {
		config.TTL = 1 * time.Hour
	}
	if config.Group == nil {
		config.Group = NewGroup()
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	goCacheInstance := gocache.New(gocache.NoExpiration, 0)
	config.Group.add(goCacheInstance)
	slog.Debug("Cache initialized", "name", config.Name, "ttl", config.TTL)

	return &Cache[K, V]{
		name:        config.Name,
		cache:       goCacheInstance,
		group:       config.Group,
		ttl:         config.TTL,
		now:         config.Now,
		keyToString: keyToString,
	}
}

// StringKey is the identity key function for string-keyed caches.
func StringKey(s string) string { return s }

// Get returns the stored value, whether it is still fresh, and whether
// anything was stored at all.
func (c *Cache[K, V]) Get(key K) (value V, fresh bool, ok bool) {
	c.group.mu.RLock()
	defer c.group.mu.RUnlock()

	raw, found := c.cache.Get(c.keyToString(key))
	if !found {
		return value, false, false
	}

	e, isEntry := raw.(entry[V])
	if !isEntry {
		return value, false, false
	}

	return e.value, c.now().Sub(e.storedAt) < c.ttl, true
}

// Put replaces the whole entry for key and restarts its TTL.
func (c *Cache[K, V]) Put(key K, value V) {
	c.group.mu.RLock()
	defer c.group.mu.RUnlock()

	stringKey := c.keyToString(key)
	c.cache.Set(stringKey, entry[V]{value: value, storedAt: c.now()}, gocache.NoExpiration)
	slog.Debug("Cache stored", "name", c.name, "key", stringKey)
}

// Clear empties this cache only. Use Group.Clear to purge related caches together.
func (c *Cache[K, V]) Clear() {
	c.group.mu.Lock()
	defer c.group.mu.Unlock()

	c.cache.Flush()
	slog.Debug("Cache cleared", "name", c.name)
}

func (c *Cache[K, V]) Len() int {
	c.group.mu.RLock()
	defer c.group.mu.RUnlock()

	return c.cache.ItemCount()
}
