// Package metrics provides Prometheus metrics for the ingestion pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "nieuwsdraad"

var (
	// FeedFetchTotal counts feed lookups by outcome (fresh, fetched, stale, failed).
	FeedFetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_fetch_total",
			Help:      "Feed lookups by outcome",
		},
		[]string{"outcome"},
	)

	// ArticleExtractTotal counts extraction results by error kind.
	ArticleExtractTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "article_extract_total",
			Help:      "Article extractions by result kind",
		},
		[]string{"kind"},
	)

	// RedirectResolveTotal counts wrapper resolutions by the step that succeeded.
	RedirectResolveTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "redirect_resolve_total",
			Help:      "Redirect wrapper resolutions by resolving step",
		},
		[]string{"step"},
	)

	DiscardedEntriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discarded_entries_total",
			Help:      "Feed entries dropped during normalization",
		},
		[]string{"reason"},
	)

	CollectDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "collect_duration_seconds",
			Help:      "Duration of collect calls in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	CollectItems = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "collect_items",
			Help:      "Items returned per collect call",
			Buckets:   []float64{0, 5, 10, 25, 50, 100, 250, 500},
		},
	)

	SummaryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "briefing_total",
			Help:      "Briefings produced by source (model, extractive, none)",
		},
		[]string{"source"},
	)
)

func RecordFeedFetch(outcome string) {
	FeedFetchTotal.WithLabelValues(outcome).Inc()
}

func RecordExtract(kind string) {
	ArticleExtractTotal.WithLabelValues(kind).Inc()
}

func RecordRedirect(step string) {
	RedirectResolveTotal.WithLabelValues(step).Inc()
}

func RecordDiscard(reason string) {
	DiscardedEntriesTotal.WithLabelValues(reason).Inc()
}

// RecordCollect records one collect call.
func RecordCollect(items int, seconds float64) {
	CollectDuration.Observe(seconds)
	CollectItems.Observe(float64(items))
}

func RecordBriefing(source string) {
	SummaryTotal.WithLabelValues(source).Inc()
}
