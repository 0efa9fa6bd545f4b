package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsight/stocknews/internal/config"
	"github.com/finsight/stocknews/internal/metrics"
	"github.com/finsight/stocknews/internal/news"
	"github.com/finsight/stocknews/internal/scheduler"
)

func TestMain(m *testing.M) {
	metrics.Init()
	os.Exit(m.Run())
}

type fakeCrawler struct {
	mu         sync.Mutex
	run        news.CrawlRun
	runErr     error
	sweepCalls int
}

func (f *fakeCrawler) CrawlTicker(_ context.Context, ticker string) (news.CrawlRun, error) {
	if ticker == "NOPE" {
		return news.CrawlRun{}, fmt.Errorf("ticker %s: %w", ticker, news.ErrUnknownTicker)
	}
	return f.run, f.runErr
}

func (f *fakeCrawler) CrawlAll(context.Context) (news.CrawlSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sweepCalls++
	return news.CrawlSummary{}, nil
}

func (f *fakeCrawler) sweeps() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sweepCalls
}

type fakeDigest struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeDigest) RunHourly(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return nil
}

func (f *fakeDigest) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeAPIStore struct {
	news.Store

	searchQuery news.SearchQuery
	result      news.SearchResult
	stats       news.Statistics
	statsTicker string
	statsDays   int
	docs        map[string]news.Document
	dateTickers []string
	dateCounts  []news.DateCount
}

func (f *fakeAPIStore) Search(_ context.Context, q news.SearchQuery) (news.SearchResult, error) {
	f.searchQuery = q
	return f.result, nil
}

func (f *fakeAPIStore) ByTicker(_ context.Context, ticker string, from, size int) (news.SearchResult, error) {
	return f.result, nil
}

func (f *fakeAPIStore) FindByID(_ context.Context, newsID string) (news.Document, error) {
	doc, ok := f.docs[newsID]
	if !ok {
		return news.Document{}, fmt.Errorf("news %s: %w", newsID, news.ErrNotFound)
	}
	return doc, nil
}

func (f *fakeAPIStore) Statistics(_ context.Context, ticker string, windowDays int) (news.Statistics, error) {
	f.statsTicker = ticker
	f.statsDays = windowDays
	return f.stats, nil
}

func (f *fakeAPIStore) DateStatistics(_ context.Context, tickers []string, _ time.Time) ([]news.DateCount, error) {
	f.dateTickers = tickers
	return f.dateCounts, nil
}

type fakeAPIRegistry struct {
	stocks []news.Stock
}

func (f *fakeAPIRegistry) LookupStock(_ context.Context, ticker string) (news.Stock, error) {
	for _, s := range f.stocks {
		if s.Ticker == ticker {
			return s, nil
		}
	}
	return news.Stock{}, fmt.Errorf("ticker %s: %w", ticker, news.ErrUnknownTicker)
}

func (f *fakeAPIRegistry) ListStocks(context.Context) ([]news.Stock, error) {
	return f.stocks, nil
}

func (f *fakeAPIRegistry) WatchedTickers(context.Context) ([]string, error) {
	var out []string
	for _, s := range f.stocks {
		out = append(out, s.Ticker)
	}
	return out, nil
}

func (f *fakeAPIRegistry) UsersForHour(context.Context, int) ([]news.User, error) {
	return nil, nil
}

type fakeAPIAudit struct {
	runs []news.CrawlRun
}

func (f *fakeAPIAudit) RecordCrawlRun(context.Context, news.CrawlRun) error { return nil }

func (f *fakeAPIAudit) RecentCrawlRuns(_ context.Context, limit int) ([]news.CrawlRun, error) {
	if limit < len(f.runs) {
		return f.runs[:limit], nil
	}
	return f.runs, nil
}

func (f *fakeAPIAudit) RecordEmail(context.Context, news.EmailLog) error { return nil }

func (f *fakeAPIAudit) DeleteOlderThan(context.Context, time.Time) (int64, error) { return 0, nil }

type fakeSched struct{ jobs []scheduler.JobStatus }

func (f *fakeSched) Trigger(string) error        { return nil }
func (f *fakeSched) Jobs() []scheduler.JobStatus { return f.jobs }

type fakePinger struct{ err error }

func (f *fakePinger) Ping(context.Context) error { return f.err }

type testServer struct {
	srv     *httptest.Server
	crawler *fakeCrawler
	digest  *fakeDigest
	store   *fakeAPIStore
	audit   *fakeAPIAudit
	pinger  *fakePinger
}

func newTestServer(t *testing.T, cfg config.Config) *testServer {
	t.Helper()
	ts := &testServer{
		crawler: &fakeCrawler{run: news.CrawlRun{ID: "run-1", Ticker: "TSLA", Status: news.RunSuccess}},
		digest:  &fakeDigest{},
		store:   &fakeAPIStore{result: news.SearchResult{Total: 1}},
		audit:   &fakeAPIAudit{runs: []news.CrawlRun{{ID: "run-1"}, {ID: "run-2"}}},
		pinger:  &fakePinger{},
	}
	registry := &fakeAPIRegistry{stocks: []news.Stock{{Ticker: "TSLA", CompanyName: "Tesla Inc"}}}
	sched := &fakeSched{jobs: []scheduler.JobStatus{{Name: "crawl", Schedule: "@every 3h"}}}

	server := NewServer(ts.crawler, ts.digest, ts.store, registry, ts.audit, sched, ts.pinger, cfg)
	ts.srv = httptest.NewServer(server.Handler())
	t.Cleanup(ts.srv.Close)
	return ts
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func postJSON(t *testing.T, url string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Post(url, "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	var body map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&body)
	return resp.StatusCode, body
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, config.Config{})
	var body map[string]string
	code := getJSON(t, ts.srv.URL+"/healthz", &body)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
}

func TestReadyzReportsIndexOutage(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, config.Config{})
	assert.Equal(t, http.StatusOK, getJSON(t, ts.srv.URL+"/readyz", nil))

	ts.pinger.err = fmt.Errorf("connection refused")
	assert.Equal(t, http.StatusServiceUnavailable, getJSON(t, ts.srv.URL+"/readyz", nil))
}

func TestTriggerCrawlSingleTicker(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, config.Config{})
	code, body := postJSON(t, ts.srv.URL+"/v1/crawl/trigger?ticker=TSLA")
	require.Equal(t, http.StatusOK, code)
	run := body["run"].(map[string]any)
	assert.Equal(t, "SUCCESS", run["status"])
}

func TestTriggerCrawlUnknownTicker(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, config.Config{})
	code, _ := postJSON(t, ts.srv.URL+"/v1/crawl/trigger?ticker=NOPE")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestTriggerCrawlSweepIsAsync(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, config.Config{})
	code, body := postJSON(t, ts.srv.URL+"/v1/crawl/trigger")
	assert.Equal(t, http.StatusAccepted, code)
	assert.Equal(t, "sweep started", body["status"])

	require.Eventually(t, func() bool { return ts.crawler.sweeps() == 1 },
		2*time.Second, 10*time.Millisecond)
}

func TestListCrawlRunsHonorsLimit(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, config.Config{})
	var body struct {
		Runs []news.CrawlRun `json:"runs"`
	}
	code := getJSON(t, ts.srv.URL+"/v1/crawl/runs?limit=1", &body)
	assert.Equal(t, http.StatusOK, code)
	assert.Len(t, body.Runs, 1)
}

func TestSearchRequiresQuery(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, config.Config{})
	assert.Equal(t, http.StatusBadRequest, getJSON(t, ts.srv.URL+"/v1/news/search", nil))
}

func TestSearchPassesParameters(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, config.Config{})
	code := getJSON(t, ts.srv.URL+"/v1/news/search?q=earnings&ticker=TSLA&from=10&size=5", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, news.SearchQuery{Query: "earnings", Ticker: "TSLA", From: 10, Size: 5}, ts.store.searchQuery)
}

func TestSearchDateAndSentimentParameters(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, config.Config{})
	code := getJSON(t, ts.srv.URL+"/v1/news/search?q=earnings&sentiment=Positive&from_date=2025-06-01&to_date=2025-06-30", nil)
	assert.Equal(t, http.StatusOK, code)

	q := ts.store.searchQuery
	assert.Equal(t, "Positive", q.Sentiment)
	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), q.FromDate)
	assert.Equal(t, time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC), q.ToDate)

	assert.Equal(t, http.StatusBadRequest,
		getJSON(t, ts.srv.URL+"/v1/news/search?q=earnings&from_date=june", nil))
}

func TestNewsByID(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, config.Config{})
	ts.store.docs = map[string]news.Document{
		"abc123": {NewsID: "abc123", Ticker: "TSLA", Title: "hit"},
	}

	var doc news.Document
	code := getJSON(t, ts.srv.URL+"/v1/news/id/abc123", &doc)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "abc123", doc.NewsID)

	assert.Equal(t, http.StatusNotFound, getJSON(t, ts.srv.URL+"/v1/news/id/missing", nil))
}

func TestStatsScopedByTickerAndDays(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, config.Config{})
	code := getJSON(t, ts.srv.URL+"/v1/stats?ticker=TSLA&days=7", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "TSLA", ts.store.statsTicker)
	assert.Equal(t, 7, ts.store.statsDays)
}

func TestDailyStats(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, config.Config{})
	ts.store.dateCounts = []news.DateCount{{Date: "2025-06-01", Count: 3}}

	var body struct {
		Days   int              `json:"days"`
		Counts []news.DateCount `json:"counts"`
	}
	code := getJSON(t, ts.srv.URL+"/v1/stats/daily?tickers=TSLA,AAPL&days=3", &body)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 3, body.Days)
	require.Len(t, body.Counts, 1)
	assert.Equal(t, []string{"TSLA", "AAPL"}, ts.store.dateTickers)
}

func TestNewsByUnknownTicker(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, config.Config{})
	assert.Equal(t, http.StatusNotFound, getJSON(t, ts.srv.URL+"/v1/news/NOPE", nil))
	assert.Equal(t, http.StatusOK, getJSON(t, ts.srv.URL+"/v1/news/TSLA", nil))
}

func TestTriggerDigestIsAsync(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, config.Config{})
	code, _ := postJSON(t, ts.srv.URL+"/v1/digest/trigger")
	assert.Equal(t, http.StatusAccepted, code)
	require.Eventually(t, func() bool { return ts.digest.count() == 1 },
		2*time.Second, 10*time.Millisecond)
}

func TestAPIKeyGuardsV1Routes(t *testing.T) {
	t.Parallel()

	cfg := config.Config{}
	cfg.Auth.Enabled = true
	cfg.Auth.APIKey = "secret"
	ts := newTestServer(t, cfg)

	// Probes stay open.
	assert.Equal(t, http.StatusOK, getJSON(t, ts.srv.URL+"/healthz", nil))

	assert.Equal(t, http.StatusForbidden, getJSON(t, ts.srv.URL+"/v1/stats", nil))
	assert.Equal(t, http.StatusOK, getJSON(t, ts.srv.URL+"/v1/stats?api_key=secret", nil))

	req, err := http.NewRequest(http.MethodGet, ts.srv.URL+"/v1/stats", nil)
	require.NoError(t, err)
	req.Header.Set("X-API-Key", "secret")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestListJobs(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, config.Config{})
	var body struct {
		Jobs []scheduler.JobStatus `json:"jobs"`
	}
	code := getJSON(t, ts.srv.URL+"/v1/jobs", &body)
	assert.Equal(t, http.StatusOK, code)
	require.Len(t, body.Jobs, 1)
	assert.Equal(t, "crawl", body.Jobs[0].Name)
}
