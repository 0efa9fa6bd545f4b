// Package metrics exposes Prometheus collectors for the news service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	articlesFetchedTotal       *prometheus.CounterVec
	articlesAnalyzedTotal      *prometheus.CounterVec
	documentsSavedTotal        *prometheus.CounterVec
	crawlRunsTotal             *prometheus.CounterVec
	crawlDurationSeconds       *prometheus.HistogramVec
	analyzerDurationSeconds    prometheus.Histogram
	digestEmailsTotal          *prometheus.CounterVec
	retentionDeletedTotal      *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		articlesFetchedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "news_articles_fetched_total",
				Help: "Total number of articles scraped, labeled by ticker.",
			},
			[]string{"ticker"},
		)

		articlesAnalyzedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "news_articles_analyzed_total",
				Help: "Total number of articles analyzed, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		documentsSavedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "news_documents_saved_total",
				Help: "Total number of documents written to the index, labeled by ticker.",
			},
			[]string{"ticker"},
		)

		crawlRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "news_crawl_runs_total",
				Help: "Total number of crawl runs, labeled by status.",
			},
			[]string{"status"},
		)

		crawlDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "news_crawl_duration_seconds",
				Help:    "Histogram of per-ticker crawl durations.",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
			},
			[]string{"ticker"},
		)

		analyzerDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "news_analyzer_duration_seconds",
				Help:    "Histogram of per-article analysis latencies.",
				Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40},
			},
		)

		digestEmailsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "news_digest_emails_total",
				Help: "Total number of digest emails attempted, labeled by status.",
			},
			[]string{"status"},
		)

		retentionDeletedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "news_retention_deleted_total",
				Help: "Total rows and documents removed by retention, labeled by target.",
			},
			[]string{"target"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFetched adds scraped article counts for a ticker.
func ObserveFetched(ticker string, count int) {
	if count > 0 {
		articlesFetchedTotal.WithLabelValues(ticker).Add(float64(count))
	}
}

// ObserveAnalyzed increments the analysis counter. Outcome is "model" or
// "fallback".
func ObserveAnalyzed(outcome string) {
	articlesAnalyzedTotal.WithLabelValues(outcome).Inc()
}

// ObserveSaved adds saved document counts for a ticker.
func ObserveSaved(ticker string, count int) {
	if count > 0 {
		documentsSavedTotal.WithLabelValues(ticker).Add(float64(count))
	}
}

// ObserveCrawlRun records one finished crawl run.
func ObserveCrawlRun(ticker, status string, duration time.Duration) {
	crawlRunsTotal.WithLabelValues(status).Inc()
	crawlDurationSeconds.WithLabelValues(ticker).Observe(duration.Seconds())
}

// ObserveAnalyzerLatency records the duration of one analysis call.
func ObserveAnalyzerLatency(duration time.Duration) {
	analyzerDurationSeconds.Observe(duration.Seconds())
}

// ObserveDigestEmail increments the digest delivery counter.
func ObserveDigestEmail(status string) {
	digestEmailsTotal.WithLabelValues(status).Inc()
}

// ObserveRetention adds deleted counts for a retention target
// ("documents" or "audit").
func ObserveRetention(target string, deleted int64) {
	if deleted > 0 {
		retentionDeletedTotal.WithLabelValues(target).Add(float64(deleted))
	}
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
