package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/finsight/stocknews/internal/news"
)

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := s.pinger.Ping(ctx); err != nil {
			writeError(w, http.StatusServiceUnavailable, "search index unreachable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// triggerCrawl runs one ticker synchronously when ?ticker= is given, or
// kicks off a full sweep in the background otherwise.
func (s *Server) triggerCrawl(w http.ResponseWriter, r *http.Request) {
	ticker := r.URL.Query().Get("ticker")
	if ticker == "" {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Hour)
			defer cancel()
			if _, err := s.crawler.CrawlAll(ctx); err != nil {
				zap.L().Error("manual sweep failed", zap.Error(err))
			}
		}()
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "sweep started"})
		return
	}

	run, err := s.crawler.CrawlTicker(r.Context(), ticker)
	if errors.Is(err, news.ErrUnknownTicker) {
		writeError(w, http.StatusNotFound, "unknown ticker")
		return
	}
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"error": err.Error(),
			"run":   run,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"run": run})
}

func (s *Server) listCrawlRuns(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	runs, err := s.audit.RecentCrawlRuns(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load crawl runs")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) searchNews(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, "missing query parameter q")
		return
	}
	fromDate, err := queryTime(r, "from_date")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid from_date")
		return
	}
	toDate, err := queryTime(r, "to_date")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid to_date")
		return
	}

	result, err := s.store.Search(r.Context(), news.SearchQuery{
		Query:     q,
		Ticker:    r.URL.Query().Get("ticker"),
		Sentiment: r.URL.Query().Get("sentiment"),
		FromDate:  fromDate,
		ToDate:    toDate,
		From:      queryInt(r, "from", 0),
		Size:      queryInt(r, "size", 20),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) newsByID(w http.ResponseWriter, r *http.Request) {
	doc, err := s.store.FindByID(r.Context(), chi.URLParam(r, "newsID"))
	if errors.Is(err, news.ErrNotFound) {
		writeError(w, http.StatusNotFound, "news not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) newsByTicker(w http.ResponseWriter, r *http.Request) {
	ticker := chi.URLParam(r, "ticker")
	if _, err := s.registry.LookupStock(r.Context(), ticker); err != nil {
		if errors.Is(err, news.ErrUnknownTicker) {
			writeError(w, http.StatusNotFound, "unknown ticker")
			return
		}
		writeError(w, http.StatusInternalServerError, "registry lookup failed")
		return
	}
	result, err := s.store.ByTicker(r.Context(), ticker, queryInt(r, "from", 0), queryInt(r, "size", 20))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Statistics(r.Context(), r.URL.Query().Get("ticker"), queryInt(r, "days", 0))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "statistics failed")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) dailyStats(w http.ResponseWriter, r *http.Request) {
	days := queryInt(r, "days", 7)
	var tickers []string
	if raw := r.URL.Query().Get("tickers"); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				tickers = append(tickers, t)
			}
		}
	}
	since := time.Now().UTC().AddDate(0, 0, -days)
	counts, err := s.store.DateStatistics(r.Context(), tickers, since)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "statistics failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"days": days, "counts": counts})
}

func (s *Server) listStocks(w http.ResponseWriter, r *http.Request) {
	stocks, err := s.registry.ListStocks(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load stocks")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stocks": stocks})
}

func (s *Server) listJobs(w http.ResponseWriter, _ *http.Request) {
	if s.sched == nil {
		writeJSON(w, http.StatusOK, map[string]any{"jobs": []any{}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": s.sched.Jobs()})
}

func (s *Server) triggerDigest(w http.ResponseWriter, _ *http.Request) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()
		if err := s.digest.RunHourly(ctx); err != nil {
			zap.L().Error("manual digest failed", zap.Error(err))
		}
	}()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "digest started"})
}

// queryTime parses a date-only or RFC 3339 query parameter. Absent means
// the zero time, which leaves that search bound open.
func queryTime(r *http.Request, name string) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, raw)
}

func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return def
	}
	return v
}
