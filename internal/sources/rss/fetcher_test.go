package rss

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"nieuwsdraad/internal/cache"
	"nieuwsdraad/internal/fetch"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const twoItemFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Test</title>
    <item><title>Een</title><link>https://nos.nl/1</link></item>
    <item><title>Twee</title><link>https://nos.nl/2</link></item>
  </channel>
</rss>`

const emptyFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Leeg</title></channel></rss>`

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type feedServer struct {
	*httptest.Server
	hits   atomic.Int32
	body   atomic.Value
	status atomic.Int32
}

func newFeedServer(t *testing.T, body string) *feedServer {
	fs := &feedServer{}
	fs.body.Store(body)
	fs.status.Store(http.StatusOK)
	fs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fs.hits.Add(1)
		w.WriteHeader(int(fs.status.Load()))
		_, _ = w.Write([]byte(fs.body.Load().(string)))
	}))
	t.Cleanup(fs.Close)
	return fs
}

func newTestFetcher(c *clock) *Fetcher {
	feedCache := NewFeedCache(cache.CacheConfig{TTL: 90 * time.Second, Now: c.Now})
	return NewFetcher(fetch.NewClient(fetch.Config{Timeout: 2 * time.Second}, nil), feedCache, nil)
}

func TestFetcher_CachesFreshResult(t *testing.T) {
	srv := newFeedServer(t, twoItemFeed)
	c := &clock{now: time.Now()}
	f := newTestFetcher(c)
	ctx := context.Background()

	items, outcome := f.Fetch(ctx, srv.URL)
	require.Len(t, items, 2)
	assert.Equal(t, OutcomeFetched, outcome)

	items, outcome = f.Fetch(ctx, srv.URL)
	require.Len(t, items, 2)
	assert.Equal(t, OutcomeFresh, outcome)
	assert.Equal(t, int32(1), srv.hits.Load())

	c.Advance(2 * time.Minute)
	_, outcome = f.Fetch(ctx, srv.URL)
	assert.Equal(t, OutcomeFetched, outcome)
	assert.Equal(t, int32(2), srv.hits.Load())
}

func TestFetcher_ServesStaleOnFailure(t *testing.T) {
	srv := newFeedServer(t, twoItemFeed)
	c := &clock{now: time.Now()}
	f := newTestFetcher(c)
	ctx := context.Background()

	_, outcome := f.Fetch(ctx, srv.URL)
	require.Equal(t, OutcomeFetched, outcome)

	c.Advance(10 * time.Minute)
	srv.status.Store(http.StatusBadGateway)

	items, outcome := f.Fetch(ctx, srv.URL)
	assert.Equal(t, OutcomeStale, outcome)
	assert.Len(t, items, 2)
}

func TestFetcher_MalformedWithoutCacheIsEmpty(t *testing.T) {
	srv := newFeedServer(t, "<html>not a feed")
	f := newTestFetcher(&clock{now: time.Now()})

	items, outcome := f.Fetch(context.Background(), srv.URL)
	assert.Empty(t, items)
	assert.Equal(t, OutcomeFailed, outcome)
}

func TestFetcher_EmptyParseIsCached(t *testing.T) {
	srv := newFeedServer(t, emptyFeed)
	f := newTestFetcher(&clock{now: time.Now()})
	ctx := context.Background()

	items, outcome := f.Fetch(ctx, srv.URL)
	assert.Empty(t, items)
	assert.Equal(t, OutcomeFetched, outcome)

	_, outcome = f.Fetch(ctx, srv.URL)
	assert.Equal(t, OutcomeFresh, outcome)
	assert.Equal(t, int32(1), srv.hits.Load())
}

func TestFetcher_CoalescesConcurrentFetches(t *testing.T) {
	release := make(chan struct{})
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-release
		_, _ = w.Write([]byte(twoItemFeed))
	}))
	defer srv.Close()

	f := newTestFetcher(&clock{now: time.Now()})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			items, _ := f.Fetch(context.Background(), srv.URL)
			assert.Len(t, items, 2)
		}()
	}
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), hits.Load())
}

func TestFetcher_SendsFeedHeaders(t *testing.T) {
	var accept, lang string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accept = r.Header.Get("Accept")
		lang = r.Header.Get("Accept-Language")
		_, _ = w.Write([]byte(emptyFeed))
	}))
	defer srv.Close()

	f := newTestFetcher(&clock{now: time.Now()})
	f.Fetch(context.Background(), srv.URL)

	assert.Equal(t, fetch.AcceptFeed, accept)
	assert.Equal(t, fetch.DefaultAcceptLanguage, lang)
}
