package processors

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"nieuwsdraad/internal/cache"
	"nieuwsdraad/internal/fetch"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// httptest servers listen on 127.0.0.1, so that host plays the aggregator
// and "localhost" plays the publisher.
func newTestResolver() *RedirectResolver {
	client := fetch.NewClient(fetch.Config{Timeout: 2 * time.Second}, nil)
	return NewRedirectResolver(client, RedirectConfig{WrapperHosts: []string{"127.0.0.1", "news.google.com"}}, nil)
}

func publisherURL(srv *httptest.Server, path string) string {
	return strings.Replace(srv.URL, "127.0.0.1", "localhost", 1) + path
}

func TestRedirectResolver_NonWrapperOnlyStripped(t *testing.T) {
	r := newTestResolver()
	got := r.Resolve(context.Background(), "https://nos.nl/artikel/1?utm_source=rss")
	assert.Equal(t, "https://nos.nl/artikel/1", got)
}

func TestRedirectResolver_QueryParamWithoutNetwork(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	r := newTestResolver()
	wrapper := srv.URL + "/rss/articles/abc?url=https%3A%2F%2Fwww.rtl.nl%2Fnieuws%2F1%3Futm_medium%3Dx%26id%3D7"
	got := r.Resolve(context.Background(), wrapper)

	assert.Equal(t, "https://www.rtl.nl/nieuws/1?id=7", got)
	assert.Equal(t, int32(0), hits.Load())
}

func TestRedirectResolver_CanonicalHint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><head>
			<link rel="canonical" href="https://news.google.com/rss/articles/self">
			<link rel="canonical" href="https://www.ad.nl/binnenland/storm~a1/?utm_source=google">
			</head><body></body></html>`))
	}))
	defer srv.Close()

	r := newTestResolver()
	got := r.Resolve(context.Background(), srv.URL+"/rss/articles/xyz")
	assert.Equal(t, "https://www.ad.nl/binnenland/storm~a1/", got)
}

func TestRedirectResolver_EmbeddedParameter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body>
			<a href="/redirect?url=https%3A%2F%2Fwww.nu.nl%2Fbinnenland%2F123%2Fstorm.html&amp;fbclid=zz">lees</a>
			</body></html>`))
	}))
	defer srv.Close()

	r := newTestResolver()
	got := r.Resolve(context.Background(), srv.URL+"/rss/articles/xyz")
	assert.Equal(t, "https://www.nu.nl/binnenland/123/storm.html", got)
}

func TestRedirectResolver_LocationHeader(t *testing.T) {
	var hits atomic.Int32
	wrapper := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Redirect(w, r, "https://www.nu.nl/artikel/1?utm_source=gn", http.StatusFound)
	}))
	defer wrapper.Close()

	r := newTestResolver()
	got := r.Resolve(context.Background(), wrapper.URL+"/rss/articles/xyz")

	assert.Equal(t, "https://www.nu.nl/artikel/1", got)
	assert.Equal(t, int32(1), hits.Load())
}

func TestRedirectResolver_FollowRedirectFallback(t *testing.T) {
	publisher := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><body>artikel</body></html>"))
	}))
	defer publisher.Close()

	target := publisherURL(publisher, "/artikel/9?utm_campaign=gn&p=2")
	wrapper := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/hop" {
			http.Redirect(w, r, target, http.StatusFound)
			return
		}
		// The first hop stays on the aggregator, so only following the
		// whole chain reaches the publisher.
		http.Redirect(w, r, "/hop", http.StatusFound)
	}))
	defer wrapper.Close()

	r := newTestResolver()
	got := r.Resolve(context.Background(), wrapper.URL+"/rss/articles/xyz")
	assert.Equal(t, publisherURL(publisher, "/artikel/9?p=2"), got)
}

func TestRedirectResolver_RejectsConsentWall(t *testing.T) {
	consent := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><head><title>Before you continue to Google</title></head><body>Accept all</body></html>"))
	}))
	defer consent.Close()

	wall := publisherURL(consent, "/ml?continue=https://www.nu.nl/artikel/2")
	wrapper := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, wall, http.StatusFound)
	}))
	defer wrapper.Close()

	client := fetch.NewClient(fetch.Config{Timeout: 2 * time.Second}, nil)
	r := NewRedirectResolver(client, RedirectConfig{
		WrapperHosts: []string{"127.0.0.1"},
		RejectHosts:  []string{"localhost"},
	}, nil)

	link := wrapper.URL + "/rss/articles/xyz"
	assert.Equal(t, link, r.Resolve(context.Background(), link))
	assert.Equal(t, 0, r.cache.Len())
}

func TestRedirectResolver_DefaultRejectsConsentHosts(t *testing.T) {
	r := NewRedirectResolver(fetch.NewClient(fetch.Config{}, nil), RedirectConfig{}, nil)

	_, ok := r.acceptable("https://consent.google.com/ml?continue=https://news.google.com/rss/articles/x")
	assert.False(t, ok)
	_, ok = r.acceptable("https://myprivacy.dpgmedia.nl/consent?siteKey=abc")
	assert.False(t, ok)

	got, ok := r.acceptable("https://www.ad.nl/binnenland/storm~a1/")
	assert.True(t, ok)
	assert.Equal(t, "https://www.ad.nl/binnenland/storm~a1/", got)
}

func TestRedirectResolver_TotalFailureReturnsWrapper(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	r := newTestResolver()
	wrapper := srv.URL + "/rss/articles/xyz"
	assert.Equal(t, wrapper, r.Resolve(context.Background(), wrapper))
}

func TestRedirectResolver_CachesResolution(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`<link rel="canonical" href="https://nos.nl/artikel/5">`))
	}))
	defer srv.Close()

	r := newTestResolver()
	wrapper := srv.URL + "/rss/articles/cached"
	require.Equal(t, "https://nos.nl/artikel/5", r.Resolve(context.Background(), wrapper))
	require.Equal(t, "https://nos.nl/artikel/5", r.Resolve(context.Background(), wrapper))
	assert.Equal(t, int32(1), hits.Load())
}

func TestRedirectResolver_SharedGroupClear(t *testing.T) {
	group := cache.NewGroup()
	client := fetch.NewClient(fetch.Config{}, nil)
	r := NewRedirectResolver(client, RedirectConfig{Group: group}, nil)

	got := r.Resolve(context.Background(), "https://news.google.com/rss/articles/abc?url=https%3A%2F%2Fnos.nl%2Fartikel%2F3")
	require.Equal(t, "https://nos.nl/artikel/3", got)
	require.Equal(t, 1, r.cache.Len())

	group.Clear()
	assert.Equal(t, 0, r.cache.Len())
}

func TestRedirectResolver_IsWrapper(t *testing.T) {
	r := NewRedirectResolver(fetch.NewClient(fetch.Config{}, nil), RedirectConfig{}, nil)
	assert.True(t, r.IsWrapper("https://news.google.com/rss/articles/CBMi"))
	assert.False(t, r.IsWrapper("https://nos.nl/artikel/1"))
	assert.False(t, r.IsWrapper("not a url"))
}
