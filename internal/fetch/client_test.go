package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_SendsBrowserHeaders(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := NewClient(Config{}, nil)
	resp, err := c.Get(context.Background(), srv.URL, Options{Accept: AcceptFeed})
	require.NoError(t, err)

	assert.Equal(t, "ok", string(resp.Body))
	assert.Equal(t, DefaultUserAgent, got.Get("User-Agent"))
	assert.Equal(t, "nl,en;q=0.8", got.Get("Accept-Language"))
	assert.Equal(t, AcceptFeed, got.Get("Accept"))
}

func TestClient_FollowsRedirectsUnlessDisabled(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/from", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/to", http.StatusFound)
	})
	mux.HandleFunc("/to", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("landed"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(Config{}, nil)

	resp, err := c.Get(context.Background(), srv.URL+"/from", Options{})
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/to", resp.FinalURL)
	assert.Equal(t, "landed", string(resp.Body))

	resp, err = c.Get(context.Background(), srv.URL+"/from", Options{NoRedirect: true})
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/to", resp.Header.Get("Location"))
}

func TestClient_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewClient(Config{}, nil)
	resp, err := c.Get(context.Background(), srv.URL, Options{})

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusForbidden, statusErr.StatusCode)
	require.NotNil(t, resp)
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := NewClient(Config{Timeout: 50 * time.Millisecond}, nil)
	start := time.Now()
	_, err := c.Get(context.Background(), srv.URL, Options{})

	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestClient_TimeoutBoundsRateLimitWait(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := NewClient(Config{Timeout: 100 * time.Millisecond, PerHostInterval: time.Hour}, nil)
	_, err := c.Get(context.Background(), srv.URL, Options{})
	require.NoError(t, err)

	start := time.Now()
	_, err = c.Get(context.Background(), srv.URL, Options{})
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestClient_RejectsNonHTTP(t *testing.T) {
	c := NewClient(Config{}, nil)
	_, err := c.Get(context.Background(), "ftp://example.com/x", Options{})
	assert.ErrorIs(t, err, ErrInvalidURL)
}

func TestClient_BodyLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(make([]byte, 1024))
	}))
	defer srv.Close()

	c := NewClient(Config{MaxBodyBytes: 100}, nil)
	resp, err := c.Get(context.Background(), srv.URL, Options{})
	require.NoError(t, err)
	assert.Len(t, resp.Body, 100)
}

func TestHostLimiter_SpacesRequests(t *testing.T) {
	l := NewHostLimiter(40*time.Millisecond, 1)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, l.Wait(ctx, "nos.nl"))
	}
	assert.GreaterOrEqual(t, time.Since(start), 70*time.Millisecond)

	start = time.Now()
	require.NoError(t, l.Wait(ctx, "nu.nl"))
	assert.Less(t, time.Since(start), 30*time.Millisecond)
}

func TestHostLimiter_Disabled(t *testing.T) {
	var l *HostLimiter
	assert.NoError(t, l.Wait(context.Background(), "nos.nl"))
	assert.NoError(t, NewHostLimiter(0, 1).Wait(context.Background(), "nos.nl"))
}
