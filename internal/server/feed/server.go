package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"nieuwsdraad/internal/core"
	"nieuwsdraad/internal/sources/rss"
	"nieuwsdraad/internal/types"

	"github.com/gorilla/feeds"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Config struct {
	Name     string
	Listen   string
	BaseURL  string
	FeedSize int
}

// Server exposes the collector over HTTP: a JSON API and RSS, Atom and
// JSON Feed re-syndication of collected categories.
type Server struct {
	name      string
	config    Config
	collector *core.Collector
	server    *http.Server
	logger    *slog.Logger
}

func New(config Config, collector *core.Collector, logger *slog.Logger) *Server {
	if config.Name == "" {
		config.Name = "nieuwsdraad"
	}
	if config.Listen == "" {
		config.Listen = ":8080"
	}
	if config.FeedSize <= 0 {
		config.FeedSize = 50
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		name:      config.Name,
		config:    config,
		collector: collector,
		logger:    logger,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/collect", s.handleCollect)
	mux.HandleFunc("GET /api/extract", s.handleExtract)
	mux.HandleFunc("GET /api/related", s.handleRelated)
	mux.HandleFunc("GET /api/briefing", s.handleBriefing)
	mux.HandleFunc("POST /api/refresh", s.handleRefresh)
	mux.HandleFunc("GET /api/categories", s.handleCategories)
	mux.HandleFunc("GET /feed.rss", s.handleRSSFeed)
	mux.HandleFunc("GET /feed.atom", s.handleAtomFeed)
	mux.HandleFunc("GET /feed.json", s.handleJSONFeed)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

// Start binds the listen address and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.config.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Listen, err)
	}

	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Server stopped", "error", err)
		}
	}()

	s.logger.Info("Server listening", "name", s.name, "addr", listener.Addr().String())
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleCollect(w http.ResponseWriter, r *http.Request) {
	ids, err := s.feedIDs(r, false)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	q := r.URL.Query()
	items, err := s.collector.Collect(r.Context(), core.CollectRequest{
		FeedIDs:     ids,
		Query:       q.Get("q"),
		MaxPerFeed:  intParam(q.Get("max"), 0),
		WindowHours: intParam(q.Get("window"), 0),
		Enrich:      boolParam(q.Get("enrich")),
	})
	if err != nil {
		s.writeCollectError(w, err)
		return
	}
	if items == nil {
		items = []types.Item{}
	}
	s.writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	link := strings.TrimSpace(r.URL.Query().Get("url"))
	if link == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("url is required"))
		return
	}
	s.writeJSON(w, http.StatusOK, s.collector.Extract(r.Context(), link))
}

func (s *Server) handleRelated(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	title := strings.TrimSpace(q.Get("title"))
	if title == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("title is required"))
		return
	}

	items, err := s.collector.Related(r.Context(), core.RelatedRequest{
		FocusTitle:  title,
		ExcludeLink: q.Get("exclude"),
		WindowHours: intParam(q.Get("window"), 0),
		K:           intParam(q.Get("k"), 0),
	})
	if err != nil {
		s.writeCollectError(w, err)
		return
	}
	if items == nil {
		items = []types.Item{}
	}
	s.writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleBriefing(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	link := strings.TrimSpace(q.Get("url"))
	if link == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("url is required"))
		return
	}

	briefing, err := s.collector.Briefing(r.Context(), link, q.Get("title"))
	if err != nil {
		s.writeCollectError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, briefing)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.collector.Clear()
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	registry := s.collector.Registry()
	out := make(map[string][]string)
	for _, name := range registry.Categories() {
		ids, _ := registry.Category(name)
		out[name] = ids
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRSSFeed(w http.ResponseWriter, r *http.Request) {
	s.serveFeed(w, r, "application/rss+xml; charset=utf-8", (*feeds.Feed).ToRss)
}

func (s *Server) handleAtomFeed(w http.ResponseWriter, r *http.Request) {
	s.serveFeed(w, r, "application/atom+xml; charset=utf-8", (*feeds.Feed).ToAtom)
}

func (s *Server) handleJSONFeed(w http.ResponseWriter, r *http.Request) {
	s.serveFeed(w, r, "application/feed+json; charset=utf-8", (*feeds.Feed).ToJSON)
}

func (s *Server) serveFeed(w http.ResponseWriter, r *http.Request, contentType string, render func(*feeds.Feed) (string, error)) {
	ids, err := s.feedIDs(r, true)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	items, err := s.collector.Collect(r.Context(), core.CollectRequest{
		FeedIDs:     ids,
		Query:       r.URL.Query().Get("q"),
		WindowHours: intParam(r.URL.Query().Get("window"), 0),
	})
	if err != nil {
		s.writeCollectError(w, err)
		return
	}

	body, err := render(s.buildFeed(r.URL.Query().Get("category"), items))
	if err != nil {
		s.logger.Error("Failed to render feed", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=60")
	fmt.Fprint(w, body)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"name":   s.name,
		"feeds":  s.collector.Registry().Len(),
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// feedIDs reads the feed selection of a request: a category, or an explicit
// comma separated feeds list. With allowAll, no selection means every feed.
func (s *Server) feedIDs(r *http.Request, allowAll bool) ([]string, error) {
	q := r.URL.Query()
	registry := s.collector.Registry()

	if category := q.Get("category"); category != "" {
		return registry.Category(category)
	}
	if list := q.Get("feeds"); list != "" {
		var ids []string
		for _, id := range strings.Split(list, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
		if len(ids) > 0 {
			return ids, nil
		}
	}
	if allowAll {
		return registry.All(), nil
	}
	return nil, errors.New("category or feeds is required")
}

func (s *Server) buildFeed(category string, collected []types.Item) *feeds.Feed {
	if len(collected) > s.config.FeedSize {
		collected = collected[:s.config.FeedSize]
	}

	items := make([]*feeds.Item, 0, len(collected))
	for _, it := range collected {
		item := &feeds.Item{
			Id:          it.ID,
			Title:       it.Title,
			Link:        &feeds.Link{Href: it.Link},
			Description: it.Summary,
			Author:      &feeds.Author{Name: it.SourceHost},
		}
		if it.PublishedAt != nil {
			item.Created = *it.PublishedAt
		}
		items = append(items, item)
	}

	title := s.name
	if category != "" {
		title = fmt.Sprintf("%s (%s)", s.name, category)
	}
	link := s.config.BaseURL
	if link == "" {
		link = "http://localhost/"
	}

	return &feeds.Feed{
		Title:       title,
		Link:        &feeds.Link{Href: link},
		Description: "Collected news items",
		Author:      &feeds.Author{Name: s.name},
		Created:     time.Now().UTC(),
		Items:       items,
	}
}

func (s *Server) writeCollectError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrNoFeeds), errors.Is(err, rss.ErrUnknownCategory):
		s.writeError(w, http.StatusBadRequest, err)
	default:
		s.logger.Warn("Request failed", "error", err)
		s.writeError(w, http.StatusServiceUnavailable, err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("Failed to write response", "error", err)
	}
}

func intParam(value string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func boolParam(value string) bool {
	b, err := strconv.ParseBool(value)
	return err == nil && b
}
