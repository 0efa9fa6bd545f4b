// Package pipeline orchestrates the fetch, dedup, analyze, store flow for
// stock news articles.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/finsight/stocknews/internal/metrics"
	"github.com/finsight/stocknews/internal/news"
)

// Config holds the orchestration knobs.
type Config struct {
	ArticlesPerTicker int
	Concurrency       int
}

// Pipeline runs crawls for single tickers and full sweeps.
type Pipeline struct {
	cfg      Config
	fetcher  news.Fetcher
	content  news.ContentFetcher
	dedup    *Deduplicator
	analyzer news.Analyzer
	store    news.Store
	registry news.Registry
	audit    news.AuditLog
	hasher   news.Hasher
	ids      news.IDGenerator
	clock    news.Clock
	logger   *zap.Logger
}

// New wires a pipeline from its collaborators.
func New(
	cfg Config,
	fetcher news.Fetcher,
	content news.ContentFetcher,
	analyzer news.Analyzer,
	store news.Store,
	registry news.Registry,
	audit news.AuditLog,
	hasher news.Hasher,
	ids news.IDGenerator,
	clock news.Clock,
	logger *zap.Logger,
) *Pipeline {
	if cfg.ArticlesPerTicker <= 0 {
		cfg.ArticlesPerTicker = 10
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		cfg:      cfg,
		fetcher:  fetcher,
		content:  content,
		dedup:    NewDeduplicator(store, hasher),
		analyzer: analyzer,
		store:    store,
		registry: registry,
		audit:    audit,
		hasher:   hasher,
		ids:      ids,
		clock:    clock,
		logger:   logger,
	}
}

// CrawlTicker runs the full pipeline for one ticker. Exactly one audit row
// is recorded per invocation, whatever the exit path.
func (p *Pipeline) CrawlTicker(ctx context.Context, ticker string) (run news.CrawlRun, err error) {
	runID, idErr := p.ids.NewID()
	if idErr != nil {
		return news.CrawlRun{}, fmt.Errorf("new run id: %w", idErr)
	}
	run = news.CrawlRun{ID: runID, Ticker: ticker, StartedAt: p.clock.Now()}

	defer func() {
		if r := recover(); r != nil {
			run.Status = news.RunFailed
			run.Error = fmt.Sprintf("panic: %v", r)
			err = fmt.Errorf("crawl %s: %s", ticker, run.Error)
		}
		run.FinishedAt = p.clock.Now()
		metrics.ObserveCrawlRun(ticker, string(run.Status), run.FinishedAt.Sub(run.StartedAt))
		// The audit row must land even when the crawl context is gone.
		recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if recErr := p.audit.RecordCrawlRun(recordCtx, run); recErr != nil {
			p.logger.Error("record crawl run",
				zap.String("ticker", ticker),
				zap.String("run_id", run.ID),
				zap.Error(recErr))
		}
	}()

	stock, err := p.registry.LookupStock(ctx, ticker)
	if err != nil {
		run.Status = news.RunFailed
		run.Error = err.Error()
		return run, err
	}

	articles, fetchErr := p.fetcher.FetchNews(ctx, ticker, p.cfg.ArticlesPerTicker)
	run.Fetched = len(articles)
	metrics.ObserveFetched(ticker, len(articles))

	fresh, err := p.dedup.FilterNew(ctx, ticker, articles)
	if err != nil {
		run.Status = news.RunFailed
		run.Error = err.Error()
		return run, err
	}

	if len(fresh) == 0 {
		// A fetch error makes the run partial even with zero items; a
		// clean fetch with nothing new is a zero-count success.
		if fetchErr != nil {
			run.Status = news.RunPartial
			run.Error = fetchErr.Error()
		} else {
			run.Status = news.RunSuccess
		}
		p.logger.Info("no new articles",
			zap.String("ticker", ticker),
			zap.String("status", string(run.Status)),
			zap.Int("fetched", run.Fetched))
		return run, nil
	}

	docs := p.analyzeArticles(ctx, stock, fresh, &run)

	result, err := p.store.BulkSave(ctx, docs)
	if err != nil {
		run.Status = news.RunFailed
		run.Error = err.Error()
		return run, err
	}
	run.Saved = result.Success
	run.Failed += result.Failed
	metrics.ObserveSaved(ticker, result.Success)

	switch {
	case fetchErr != nil:
		run.Status = news.RunPartial
		run.Error = fetchErr.Error()
	case run.Failed > 0:
		run.Status = news.RunPartial
	default:
		run.Status = news.RunSuccess
	}

	p.logger.Info("crawl finished",
		zap.String("ticker", ticker),
		zap.String("status", string(run.Status)),
		zap.Int("fetched", run.Fetched),
		zap.Int("analyzed", run.Analyzed),
		zap.Int("saved", run.Saved))
	return run, nil
}

// analyzeArticles enriches fresh articles with content and analysis and
// builds the documents to index. Per-article failures are counted, not
// propagated.
func (p *Pipeline) analyzeArticles(ctx context.Context, stock news.Stock, fresh []news.RawArticle, run *news.CrawlRun) []news.Document {
	now := p.clock.Now()
	docs := make([]news.Document, 0, len(fresh))
	for i, article := range fresh {
		if ctx.Err() != nil {
			run.Failed += len(fresh) - i
			break
		}
		if article.Content == "" && p.content != nil {
			content, err := p.content.FetchContent(ctx, article.URL)
			if err != nil {
				p.logger.Warn("fetch article body",
					zap.String("url", article.URL),
					zap.Error(err))
			} else {
				article.Content = content
			}
		}

		started := time.Now()
		analysis, err := p.analyzer.Analyze(ctx, article)
		metrics.ObserveAnalyzerLatency(time.Since(started))
		if err != nil {
			run.Failed++
			p.logger.Warn("analyze article",
				zap.String("url", article.URL),
				zap.Error(err))
			continue
		}
		outcome := "model"
		if analysis.Fallback {
			outcome = "fallback"
		}
		metrics.ObserveAnalyzed(outcome)
		run.Analyzed++

		// An article whose body never loaded still indexes; the English
		// summary stands in for the content.
		content := article.Content
		if content == "" {
			content = analysis.Summaries.EN
		}

		docs = append(docs, news.Document{
			NewsID:      p.hasher.NewsID(article.URL),
			Ticker:      stock.Ticker,
			CompanyName: stock.CompanyName,
			Title:       article.Title,
			URL:         article.URL,
			Content:     content,
			PublishedAt: article.PublishedAt,
			Summary:     analysis.Summaries,
			Sentiment:   analysis.Sentiment,
			CreatedAt:   now,
		})
	}
	return docs
}

// CrawlAll sweeps the distinct tickers watched by active users with
// bounded concurrency. A failing ticker never aborts the others. The
// sweep itself gets one aggregate audit row on top of the per-ticker
// ones; a sweep with nothing to crawl records nothing.
func (p *Pipeline) CrawlAll(ctx context.Context) (news.CrawlSummary, error) {
	startedAt := p.clock.Now()

	tickers, err := p.registry.WatchedTickers(ctx)
	if err != nil {
		err = fmt.Errorf("watched tickers: %w", err)
		p.recordSweep(ctx, nil, news.CrawlSummary{}, startedAt, err)
		return news.CrawlSummary{}, err
	}
	if len(tickers) == 0 {
		p.logger.Info("no watched tickers, skipping sweep")
		return news.CrawlSummary{}, nil
	}

	var (
		mu      sync.Mutex
		summary = news.CrawlSummary{Tickers: len(tickers)}
		wg      sync.WaitGroup
		jobs    = make(chan string)
	)

	for i := 0; i < p.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ticker := range jobs {
				run, crawlErr := p.CrawlTicker(ctx, ticker)
				if crawlErr != nil {
					p.logger.Warn("ticker crawl failed",
						zap.String("ticker", ticker),
						zap.Error(crawlErr))
				}
				mu.Lock()
				switch run.Status {
				case news.RunSuccess:
					summary.Succeeded++
				case news.RunPartial:
					summary.Partial++
				default:
					summary.Failed++
				}
				summary.Fetched += run.Fetched
				summary.Saved += run.Saved
				mu.Unlock()
			}
		}()
	}

	for _, ticker := range tickers {
		select {
		case jobs <- ticker:
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			p.recordSweep(ctx, tickers, summary, startedAt, ctx.Err())
			return summary, ctx.Err()
		}
	}
	close(jobs)
	wg.Wait()

	p.recordSweep(ctx, tickers, summary, startedAt, nil)

	p.logger.Info("sweep finished",
		zap.Int("tickers", summary.Tickers),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("partial", summary.Partial),
		zap.Int("failed", summary.Failed),
		zap.Int("fetched", summary.Fetched),
		zap.Int("saved", summary.Saved))
	return summary, nil
}

// recordSweep writes the aggregate audit row for one sweep. The ticker
// column carries the comma-joined sweep set, or ALL for a failed sweep.
func (p *Pipeline) recordSweep(ctx context.Context, tickers []string, summary news.CrawlSummary, startedAt time.Time, sweepErr error) {
	runID, err := p.ids.NewID()
	if err != nil {
		p.logger.Error("new sweep run id", zap.Error(err))
		return
	}
	run := news.CrawlRun{
		ID:         runID,
		Ticker:     strings.Join(tickers, ","),
		StartedAt:  startedAt,
		FinishedAt: p.clock.Now(),
		Fetched:    summary.Fetched,
		Saved:      summary.Saved,
	}
	switch {
	case sweepErr != nil:
		run.Ticker = "ALL"
		run.Status = news.RunError
		run.Error = sweepErr.Error()
	case summary.Saved > 0:
		run.Status = news.RunSuccess
	default:
		run.Status = news.RunNoNews
	}

	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if recErr := p.audit.RecordCrawlRun(recordCtx, run); recErr != nil {
		p.logger.Error("record sweep run",
			zap.String("run_id", run.ID),
			zap.Error(recErr))
	}
}
