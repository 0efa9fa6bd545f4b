// Package api exposes the HTTP interface for the news service.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/finsight/stocknews/internal/config"
	"github.com/finsight/stocknews/internal/metrics"
	"github.com/finsight/stocknews/internal/news"
	"github.com/finsight/stocknews/internal/scheduler"
)

// Crawler runs crawls on demand.
type Crawler interface {
	CrawlTicker(ctx context.Context, ticker string) (news.CrawlRun, error)
	CrawlAll(ctx context.Context) (news.CrawlSummary, error)
}

// DigestRunner delivers the current digest batch on demand.
type DigestRunner interface {
	RunHourly(ctx context.Context) error
}

// Pinger reports whether the search index is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// JobScheduler exposes the scheduled jobs for inspection and triggering.
type JobScheduler interface {
	Trigger(name string) error
	Jobs() []scheduler.JobStatus
}

// Server wires HTTP handlers to the pipeline, stores, and scheduler.
type Server struct {
	router   chi.Router
	crawler  Crawler
	digest   DigestRunner
	store    news.Store
	registry news.Registry
	audit    news.AuditLog
	sched    JobScheduler
	pinger   Pinger
	cfg      config.Config
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	crawler Crawler,
	digest DigestRunner,
	store news.Store,
	registry news.Registry,
	audit news.AuditLog,
	sched JobScheduler,
	pinger Pinger,
	cfg config.Config,
) *Server {
	s := &Server{
		crawler:  crawler,
		digest:   digest,
		store:    store,
		registry: registry,
		audit:    audit,
		sched:    sched,
		pinger:   pinger,
		cfg:      cfg,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware)
	r.Use(recoverMiddleware)
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(60 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		if cfg.Auth.Enabled {
			r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
		}
		r.Route("/crawl", func(r chi.Router) {
			r.Post("/trigger", s.triggerCrawl)
			r.Get("/runs", s.listCrawlRuns)
		})
		r.Route("/news", func(r chi.Router) {
			r.Get("/search", s.searchNews)
			r.Get("/id/{newsID}", s.newsByID)
			r.Get("/{ticker}", s.newsByTicker)
		})
		r.Get("/stats", s.stats)
		r.Get("/stats/daily", s.dailyStats)
		r.Get("/stocks", s.listStocks)
		r.Get("/jobs", s.listJobs)
		r.Post("/digest/trigger", s.triggerDigest)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}
