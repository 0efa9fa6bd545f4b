package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsight/stocknews/internal/metrics"
	"github.com/finsight/stocknews/internal/news"
)

func TestMain(m *testing.M) {
	metrics.Init()
	os.Exit(m.Run())
}

type fakeFetcher struct {
	articles []news.RawArticle
	err      error
}

func (f *fakeFetcher) FetchNews(context.Context, string, int) ([]news.RawArticle, error) {
	return f.articles, f.err
}

type fakeContent struct {
	body string
	err  error
}

func (f *fakeContent) FetchContent(context.Context, string) (string, error) {
	return f.body, f.err
}

type fakeAnalyzer struct {
	err       error
	panicWith any
	calls     int
}

func (f *fakeAnalyzer) Analyze(_ context.Context, article news.RawArticle) (news.Analysis, error) {
	f.calls++
	if f.panicWith != nil {
		panic(f.panicWith)
	}
	if f.err != nil {
		return news.Analysis{}, f.err
	}
	return news.Analysis{
		Summaries: news.Summaries{KO: "ko", EN: "en " + article.Title, ES: "es", JA: "ja"},
		Sentiment: news.Sentiment{Classification: news.SentimentPositive, Score: 3},
	}, nil
}

type fakeStore struct {
	news.Store

	mu           sync.Mutex
	existing     map[string]bool
	findCalls    int
	findErr      error
	savedDocs    []news.Document
	bulkErr      error
	bulkFailures int
}

func (f *fakeStore) FindExisting(_ context.Context, ids []string, _ string) (map[string]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.findCalls++
	if f.findErr != nil {
		return nil, f.findErr
	}
	out := map[string]bool{}
	for _, id := range ids {
		if f.existing[id] {
			out[id] = true
		}
	}
	return out, nil
}

func (f *fakeStore) BulkSave(_ context.Context, docs []news.Document) (news.BulkResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.bulkErr != nil {
		return news.BulkResult{}, f.bulkErr
	}
	f.savedDocs = append(f.savedDocs, docs...)
	return news.BulkResult{
		Success: len(docs) - f.bulkFailures,
		Failed:  f.bulkFailures,
		Total:   len(docs),
	}, nil
}

type fakeRegistry struct {
	stocks map[string]news.Stock
	// extra watched tickers missing from lookups
	orphans    []string
	watchedErr error
}

func (f *fakeRegistry) LookupStock(_ context.Context, ticker string) (news.Stock, error) {
	stock, ok := f.stocks[ticker]
	if !ok {
		return news.Stock{}, fmt.Errorf("ticker %s: %w", ticker, news.ErrUnknownTicker)
	}
	return stock, nil
}

func (f *fakeRegistry) ListStocks(context.Context) ([]news.Stock, error) {
	var out []news.Stock
	for _, s := range f.stocks {
		out = append(out, s)
	}
	for _, t := range f.orphans {
		out = append(out, news.Stock{Ticker: t})
	}
	return out, nil
}

func (f *fakeRegistry) WatchedTickers(context.Context) ([]string, error) {
	if f.watchedErr != nil {
		return nil, f.watchedErr
	}
	var out []string
	for t := range f.stocks {
		out = append(out, t)
	}
	out = append(out, f.orphans...)
	sort.Strings(out)
	return out, nil
}

func (f *fakeRegistry) UsersForHour(context.Context, int) ([]news.User, error) {
	return nil, nil
}

type fakeAudit struct {
	mu   sync.Mutex
	runs []news.CrawlRun
}

func (f *fakeAudit) RecordCrawlRun(_ context.Context, run news.CrawlRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, run)
	return nil
}

func (f *fakeAudit) RecentCrawlRuns(context.Context, int) ([]news.CrawlRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]news.CrawlRun(nil), f.runs...), nil
}

func (f *fakeAudit) RecordEmail(context.Context, news.EmailLog) error { return nil }

func (f *fakeAudit) DeleteOlderThan(context.Context, time.Time) (int64, error) { return 0, nil }

func (f *fakeAudit) recorded() []news.CrawlRun {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]news.CrawlRun(nil), f.runs...)
}

type fakeHasher struct{}

func (fakeHasher) NewsID(url string) string { return "id-" + url }

type fakeIDs struct{ n int }

func (f *fakeIDs) NewID() (string, error) {
	f.n++
	return fmt.Sprintf("run-%d", f.n), nil
}

type fakeClock struct{ now time.Time }

func (f fakeClock) Now() time.Time { return f.now }

type deps struct {
	fetcher  *fakeFetcher
	content  *fakeContent
	analyzer *fakeAnalyzer
	store    *fakeStore
	registry *fakeRegistry
	audit    *fakeAudit
}

func newTestPipeline(d *deps) *Pipeline {
	if d.fetcher == nil {
		d.fetcher = &fakeFetcher{}
	}
	if d.content == nil {
		d.content = &fakeContent{body: "article body"}
	}
	if d.analyzer == nil {
		d.analyzer = &fakeAnalyzer{}
	}
	if d.store == nil {
		d.store = &fakeStore{}
	}
	if d.registry == nil {
		d.registry = &fakeRegistry{stocks: map[string]news.Stock{
			"TSLA": {Ticker: "TSLA", CompanyName: "Tesla Inc", Slug: "tesla-motors"},
		}}
	}
	if d.audit == nil {
		d.audit = &fakeAudit{}
	}
	return New(
		Config{ArticlesPerTicker: 10, Concurrency: 2},
		d.fetcher,
		d.content,
		d.analyzer,
		d.store,
		d.registry,
		d.audit,
		fakeHasher{},
		&fakeIDs{},
		fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)},
		nil,
	)
}

func rawArticle(title, url string) news.RawArticle {
	return news.RawArticle{
		Ticker:      "TSLA",
		Title:       title,
		URL:         url,
		PublishedAt: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestCrawlTickerSavesNewArticles(t *testing.T) {
	t.Parallel()

	d := &deps{
		fetcher: &fakeFetcher{articles: []news.RawArticle{
			rawArticle("first", "https://example.com/a"),
			rawArticle("second", "https://example.com/b"),
			rawArticle("third", "https://example.com/c"),
		}},
		store: &fakeStore{existing: map[string]bool{"id-https://example.com/b": true}},
	}
	p := newTestPipeline(d)

	run, err := p.CrawlTicker(context.Background(), "TSLA")
	require.NoError(t, err)

	assert.Equal(t, news.RunSuccess, run.Status)
	assert.Equal(t, 3, run.Fetched)
	assert.Equal(t, 2, run.Analyzed)
	assert.Equal(t, 2, run.Saved)
	assert.Zero(t, run.Failed)

	require.Len(t, d.store.savedDocs, 2)
	doc := d.store.savedDocs[0]
	assert.Equal(t, "id-https://example.com/a", doc.NewsID)
	assert.Equal(t, "Tesla Inc", doc.CompanyName)
	assert.Equal(t, "article body", doc.Content)
	assert.True(t, doc.Summary.Complete())

	runs := d.audit.recorded()
	require.Len(t, runs, 1, "exactly one audit row per invocation")
	assert.Equal(t, run.ID, runs[0].ID)
}

func TestCrawlTickerUnknownTickerFailsFast(t *testing.T) {
	t.Parallel()

	d := &deps{fetcher: &fakeFetcher{articles: []news.RawArticle{rawArticle("x", "https://example.com/x")}}}
	p := newTestPipeline(d)

	run, err := p.CrawlTicker(context.Background(), "NOPE")
	assert.True(t, errors.Is(err, news.ErrUnknownTicker))
	assert.Equal(t, news.RunFailed, run.Status)
	assert.Zero(t, run.Fetched)

	runs := d.audit.recorded()
	require.Len(t, runs, 1, "failed lookups still get an audit row")
	assert.Equal(t, news.RunFailed, runs[0].Status)
}

func TestCrawlTickerFetchErrorNoArticlesIsPartial(t *testing.T) {
	t.Parallel()

	d := &deps{fetcher: &fakeFetcher{err: errors.New("navigation timeout")}}
	p := newTestPipeline(d)

	run, err := p.CrawlTicker(context.Background(), "TSLA")
	require.NoError(t, err, "a fetch error is a handled degradation, not a failed run")
	assert.Equal(t, news.RunPartial, run.Status)
	assert.Contains(t, run.Error, "navigation timeout")
	assert.Zero(t, run.Saved)
	require.Len(t, d.audit.recorded(), 1)
}

func TestCrawlTickerFetchErrorWithArticlesIsPartial(t *testing.T) {
	t.Parallel()

	d := &deps{fetcher: &fakeFetcher{
		articles: []news.RawArticle{rawArticle("only", "https://example.com/a")},
		err:      errors.New("second page failed"),
	}}
	p := newTestPipeline(d)

	run, err := p.CrawlTicker(context.Background(), "TSLA")
	require.NoError(t, err)
	assert.Equal(t, news.RunPartial, run.Status)
	assert.Equal(t, 1, run.Saved)
	assert.Contains(t, run.Error, "second page failed")
}

func TestCrawlTickerAllDuplicatesIsZeroCountSuccess(t *testing.T) {
	t.Parallel()

	d := &deps{
		fetcher: &fakeFetcher{articles: []news.RawArticle{rawArticle("dup", "https://example.com/a")}},
		store:   &fakeStore{existing: map[string]bool{"id-https://example.com/a": true}},
	}
	p := newTestPipeline(d)

	run, err := p.CrawlTicker(context.Background(), "TSLA")
	require.NoError(t, err)
	assert.Equal(t, news.RunSuccess, run.Status, "nothing new and no error is a clean run")
	assert.Zero(t, run.Saved)
	assert.Empty(t, d.store.savedDocs)
	assert.Zero(t, d.analyzer.calls)
}

func TestCrawlTickerEmptyFetchSkipsStoreLookup(t *testing.T) {
	t.Parallel()

	d := &deps{fetcher: &fakeFetcher{}}
	p := newTestPipeline(d)

	run, err := p.CrawlTicker(context.Background(), "TSLA")
	require.NoError(t, err)
	assert.Equal(t, news.RunSuccess, run.Status)
	assert.Zero(t, run.Saved)
	assert.Zero(t, d.store.findCalls, "empty fetch must not query the store")
}

func TestCrawlTickerMissingBodyFallsBackToSummary(t *testing.T) {
	t.Parallel()

	d := &deps{
		fetcher: &fakeFetcher{articles: []news.RawArticle{rawArticle("headline only", "https://example.com/a")}},
		content: &fakeContent{err: errors.New("article page blocked")},
	}
	p := newTestPipeline(d)

	run, err := p.CrawlTicker(context.Background(), "TSLA")
	require.NoError(t, err)
	assert.Equal(t, news.RunSuccess, run.Status)

	require.Len(t, d.store.savedDocs, 1)
	assert.Equal(t, "en headline only", d.store.savedDocs[0].Content,
		"the English summary stands in for an unfetchable body")
}

func TestCrawlTickerPanicStillRecordsRun(t *testing.T) {
	t.Parallel()

	d := &deps{
		fetcher:  &fakeFetcher{articles: []news.RawArticle{rawArticle("x", "https://example.com/a")}},
		analyzer: &fakeAnalyzer{panicWith: "boom"},
	}
	p := newTestPipeline(d)

	run, err := p.CrawlTicker(context.Background(), "TSLA")
	assert.Error(t, err)
	assert.Equal(t, news.RunFailed, run.Status)
	assert.Contains(t, run.Error, "panic")

	runs := d.audit.recorded()
	require.Len(t, runs, 1)
	assert.Equal(t, news.RunFailed, runs[0].Status)
}

func TestCrawlTickerAnalyzerErrorsAreCounted(t *testing.T) {
	t.Parallel()

	d := &deps{
		fetcher:  &fakeFetcher{articles: []news.RawArticle{rawArticle("x", "https://example.com/a")}},
		analyzer: &fakeAnalyzer{err: errors.New("model unavailable")},
	}
	p := newTestPipeline(d)

	run, err := p.CrawlTicker(context.Background(), "TSLA")
	require.NoError(t, err)
	assert.Equal(t, news.RunPartial, run.Status)
	assert.Equal(t, 1, run.Failed)
	assert.Zero(t, run.Saved)
}

func TestCrawlAllIsolatesTickerFailures(t *testing.T) {
	t.Parallel()

	registry := &fakeRegistry{
		stocks: map[string]news.Stock{
			"TSLA": {Ticker: "TSLA", CompanyName: "Tesla Inc"},
			"AAPL": {Ticker: "AAPL", CompanyName: "Apple Inc"},
			"MSFT": {Ticker: "MSFT", CompanyName: "Microsoft"},
		},
		orphans: []string{"GONE"},
	}
	d := &deps{
		fetcher:  &fakeFetcher{articles: []news.RawArticle{rawArticle("x", "https://example.com/a")}},
		registry: registry,
	}
	p := newTestPipeline(d)

	summary, err := p.CrawlAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Tickers)
	assert.Equal(t, 3, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)

	runs := d.audit.recorded()
	require.Len(t, runs, 5, "four per-ticker rows plus the aggregate sweep row")

	sweep := runs[len(runs)-1]
	assert.Equal(t, "AAPL,GONE,MSFT,TSLA", sweep.Ticker)
	assert.Equal(t, news.RunSuccess, sweep.Status)
	assert.Equal(t, summary.Saved, sweep.Saved)
}

func TestCrawlAllNoWatchedTickersIsNoOp(t *testing.T) {
	t.Parallel()

	d := &deps{registry: &fakeRegistry{stocks: map[string]news.Stock{}}}
	p := newTestPipeline(d)

	summary, err := p.CrawlAll(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.Tickers)
	assert.Empty(t, d.audit.recorded(), "an empty sweep records nothing")
}

func TestCrawlAllNothingSavedRecordsNoNews(t *testing.T) {
	t.Parallel()

	d := &deps{fetcher: &fakeFetcher{}}
	p := newTestPipeline(d)

	summary, err := p.CrawlAll(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.Saved)

	runs := d.audit.recorded()
	require.NotEmpty(t, runs)
	sweep := runs[len(runs)-1]
	assert.Equal(t, news.RunNoNews, sweep.Status)
	assert.Equal(t, "TSLA", sweep.Ticker)
}

func TestCrawlAllSweepFailureRecordsErrorRow(t *testing.T) {
	t.Parallel()

	d := &deps{registry: &fakeRegistry{watchedErr: errors.New("db down")}}
	p := newTestPipeline(d)

	_, err := p.CrawlAll(context.Background())
	require.Error(t, err)

	runs := d.audit.recorded()
	require.Len(t, runs, 1)
	assert.Equal(t, "ALL", runs[0].Ticker)
	assert.Equal(t, news.RunError, runs[0].Status)
	assert.Contains(t, runs[0].Error, "db down")
}
