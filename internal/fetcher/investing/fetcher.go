// Package investing scrapes per-ticker news listings from Investing.com
// using a headless browser.
package investing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/finsight/stocknews/internal/news"
)

// Config controls the behavior of the Investing.com fetcher.
type Config struct {
	UserAgent         string
	NavTimeout        time.Duration
	MaxParallelPages  int
	RequestsPerSecond float64
	MaxAgeHours       int
}

// Fetcher implements news.Fetcher with chromedp and headless Chrome.
// Browser sessions are bounded by a slot channel and navigations are rate
// limited because everything targets a single host.
type Fetcher struct {
	cfg         Config
	retry       news.RetryPolicy
	clock       news.Clock
	logger      *zap.Logger
	limiter     chan struct{}
	rate        *rate.Limiter
	allocator   context.Context
	allocCancel context.CancelFunc
}

// New creates a fetcher backed by a shared Chrome exec allocator.
func New(cfg Config, retry news.RetryPolicy, clock news.Clock, logger *zap.Logger) (*Fetcher, error) {
	if cfg.MaxParallelPages <= 0 {
		cfg.MaxParallelPages = 1
	}
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = 30 * time.Second
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 1
	}
	if cfg.MaxAgeHours <= 0 {
		cfg.MaxAgeHours = 24
	}
	if retry == nil {
		retry = news.NewExponentialRetryPolicy(0, 0, 0)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("lang", "en-US"),
		chromedp.Flag("blink-settings", "imagesEnabled=false"),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Fetcher{
		cfg:         cfg,
		retry:       retry,
		clock:       clock,
		logger:      logger,
		limiter:     make(chan struct{}, cfg.MaxParallelPages),
		rate:        rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		allocator:   allocCtx,
		allocCancel: allocCancel,
	}, nil
}

// Close cancels the allocator context.
func (f *Fetcher) Close() {
	f.allocCancel()
}

// errEmptyListing marks an attempt that rendered fine but found nothing;
// empty listings are retried like failures.
var errEmptyListing = errors.New("no articles in listing")

// FetchNews scrapes up to limit fresh headlines for the ticker, retrying
// both failures and empty results. An empty result with a nil error after
// the attempt budget means there genuinely is no fresh news.
func (f *Fetcher) FetchNews(ctx context.Context, ticker string, limit int) ([]news.RawArticle, error) {
	if limit <= 0 {
		limit = 10
	}
	url := newsURL(ticker)
	return f.fetchWithRetry(ctx, ticker, func(ctx context.Context) ([]news.RawArticle, error) {
		return f.fetchOnce(ctx, ticker, url, limit)
	})
}

func (f *Fetcher) fetchWithRetry(ctx context.Context, ticker string, fetch func(context.Context) ([]news.RawArticle, error)) ([]news.RawArticle, error) {
	for attempt := 0; ; attempt++ {
		articles, err := fetch(ctx)
		if err == nil && len(articles) > 0 {
			return articles, nil
		}

		retryErr := err
		if retryErr == nil {
			retryErr = errEmptyListing
		}
		if !f.retry.ShouldRetry(retryErr, attempt+1) {
			// Exhausted: empty with a nil error is valid "no news".
			return nil, err
		}

		delay := f.retry.Backoff(attempt)
		f.logger.Warn("fetch attempt unsuccessful, retrying",
			zap.String("ticker", ticker),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", delay),
			zap.Error(retryErr),
		)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, fmt.Errorf("fetch retry wait: %w", ctx.Err())
		}
	}
}

func (f *Fetcher) fetchOnce(ctx context.Context, ticker, url string, limit int) ([]news.RawArticle, error) {
	if err := f.rate.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	if err := f.acquire(ctx); err != nil {
		return nil, err
	}
	defer f.release()

	taskCtx, taskCancel := chromedp.NewContext(f.allocator)
	defer taskCancel()
	taskCtx, cancel := context.WithTimeout(taskCtx, f.cfg.NavTimeout)
	defer cancel()

	html, err := f.renderPage(taskCtx, url)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", url, err)
	}

	now := f.clock.Now()
	parsed, err := parseArticles(html, ticker, now)
	if err != nil {
		return nil, fmt.Errorf("parse listing: %w", err)
	}

	// Read past the limit before age filtering so a page full of stale
	// entries still surfaces whatever fresh ones sit below them.
	if overfetch := limit * 2; len(parsed) > overfetch {
		parsed = parsed[:overfetch]
	}
	cutoff := now.Add(-time.Duration(f.cfg.MaxAgeHours) * time.Hour)
	fresh := make([]news.RawArticle, 0, len(parsed))
	for _, a := range parsed {
		if a.PublishedAt.Before(cutoff) {
			continue
		}
		fresh = append(fresh, a)
		if len(fresh) == limit {
			break
		}
	}
	return fresh, nil
}

func (f *Fetcher) renderPage(ctx context.Context, url string) (string, error) {
	var html string
	actions := []chromedp.Action{
		f.networkSetupAction(),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(1500 * time.Millisecond),
		f.dismissCookieBanner(),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}
	if err := chromedp.Run(ctx, actions...); err != nil {
		return "", fmt.Errorf("chromedp run: %w", err)
	}
	return html, nil
}

func (f *Fetcher) networkSetupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if f.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(f.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		return nil
	})
}

// dismissCookieBanner clicks the first visible consent button, if any.
// Absence of a banner is not an error.
func (f *Fetcher) dismissCookieBanner() chromedp.Action {
	quoted := make([]string, len(cookieSelectors))
	for i, s := range cookieSelectors {
		b, _ := json.Marshal(s)
		quoted[i] = string(b)
	}
	script := fmt.Sprintf(`(function() {
	const selectors = [%s];
	for (const s of selectors) {
		const el = document.querySelector(s);
		if (el && el.offsetParent !== null) {
			el.click();
			return s;
		}
	}
	return "";
})()`, strings.Join(quoted, ", "))

	return chromedp.ActionFunc(func(ctx context.Context) error {
		var clicked string
		if err := chromedp.Evaluate(script, &clicked).Do(ctx); err != nil {
			return nil
		}
		if clicked != "" {
			f.logger.Debug("cookie banner dismissed", zap.String("selector", clicked))
			return chromedp.Sleep(500 * time.Millisecond).Do(ctx)
		}
		return nil
	})
}

func (f *Fetcher) acquire(ctx context.Context) error {
	select {
	case f.limiter <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("browser slot wait canceled: %w", ctx.Err())
	}
}

func (f *Fetcher) release() {
	select {
	case <-f.limiter:
	default:
	}
}
