package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

const (
	DefaultUserAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	DefaultAcceptLanguage = "nl,en;q=0.8"

	AcceptHTML = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
	AcceptFeed = "application/rss+xml, application/atom+xml, application/xml;q=0.9, text/xml;q=0.8, */*;q=0.5"
)

var ErrInvalidURL = errors.New("invalid url")

type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
}

type Config struct {
	Timeout         time.Duration
	UserAgent       string
	AcceptLanguage  string
	PerHostInterval time.Duration
	PerHostBurst    int
	MaxBodyBytes    int64
	MaxRedirects    int
}

type Options struct {
	Accept     string
	NoRedirect bool
}

type Response struct {
	StatusCode int
	FinalURL   string
	Header     http.Header
	Body       []byte
}

// Client performs bounded, polite GET requests with a browser identity.
type Client struct {
	config     Config
	follow     *http.Client
	noRedirect *http.Client
	limiter    *HostLimiter
	logger     *slog.Logger
}

func NewClient(config Config, logger *slog.Logger) *Client {
	if config.Timeout <= 0 {
		config.Timeout = 12 * time.Second
	}
	if config.UserAgent == "" {
		config.UserAgent = DefaultUserAgent
	}
	if config.AcceptLanguage == "" {
		config.AcceptLanguage = DefaultAcceptLanguage
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = 8 << 20
	}
	if config.MaxRedirects <= 0 {
		config.MaxRedirects = 10
	}
	if logger == nil {
		logger = slog.Default()
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	maxRedirects := config.MaxRedirects

	return &Client{
		config: config,
		follow: &http.Client{
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
		noRedirect: &http.Client{
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		limiter: NewHostLimiter(config.PerHostInterval, config.PerHostBurst),
		logger:  logger,
	}
}

func (c *Client) Timeout() time.Duration { return c.config.Timeout }

// Get fetches rawURL within the configured timeout, which also bounds the
// per-host rate limit wait. Statuses of 400 and
// above are returned as *StatusError together with the response.
func (c *Client) Get(ctx context.Context, rawURL string, opts Options) (*Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx, u.Host); err != nil {
		return nil, fmt.Errorf("rate limit wait for %s: %w", u.Host, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	accept := opts.Accept
	if accept == "" {
		accept = AcceptHTML
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", accept)
	req.Header.Set("Accept-Language", c.config.AcceptLanguage)
	req.Header.Set("Upgrade-Insecure-Requests", "1")
	req.Header.Set("Sec-Fetch-Dest", "document")
	req.Header.Set("Sec-Fetch-Mode", "navigate")

	client := c.follow
	if opts.NoRedirect {
		client = c.noRedirect
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.config.MaxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body of %s: %w", rawURL, err)
	}

	out := &Response{
		StatusCode: resp.StatusCode,
		FinalURL:   resp.Request.URL.String(),
		Header:     resp.Header,
		Body:       body,
	}

	c.logger.Debug("Fetched", "url", rawURL, "final", out.FinalURL, "status", resp.StatusCode, "bytes", len(body))

	if resp.StatusCode >= http.StatusBadRequest {
		return out, &StatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}
	return out, nil
}
