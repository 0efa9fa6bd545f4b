// Package content fetches article bodies over plain HTTP using gocolly.
package content

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"github.com/finsight/stocknews/internal/news"
)

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
	MaxChars  int
}

// bodySelectors locate the article text on Investing.com article pages,
// newest markup first.
var bodySelectors = []string{
	`div[data-test="article-content"]`,
	`div.WYSIWYG.articlePage`,
	`div.articlePage`,
	`article`,
}

// Fetcher implements news.ContentFetcher using the Colly collector.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = 2000
	}
	c := colly.NewCollector(colly.Async(false))
	c.WithTransport(newHTTPTransport())
	return &Fetcher{cfg: cfg, baseCollector: c}
}

// FetchContent retrieves the article body text, truncated to MaxChars runes.
func (f *Fetcher) FetchContent(ctx context.Context, url string) (string, error) {
	var (
		body     string
		fetchErr error
	)

	collector := f.baseCollector.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.IgnoreRobotsTxt = false
	collector.SetRequestTimeout(f.cfg.Timeout)

	collector.OnResponse(func(r *colly.Response) {
		body = extractBody(r.Body)
	})
	collector.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("content fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return "", fmt.Errorf("content visit failed: %w", err)
		}
		if fetchErr != nil {
			return "", fmt.Errorf("content response failed: %w", fetchErr)
		}
	}

	return truncate(body, f.cfg.MaxChars), nil
}

func extractBody(html []byte) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(html)))
	if err != nil {
		return ""
	}
	for _, selector := range bodySelectors {
		sel := doc.Find(selector)
		if sel.Length() == 0 {
			continue
		}
		var parts []string
		sel.First().Find("p").Each(func(_ int, p *goquery.Selection) {
			if text := strings.TrimSpace(p.Text()); text != "" {
				parts = append(parts, text)
			}
		})
		if len(parts) == 0 {
			if text := strings.TrimSpace(sel.First().Text()); text != "" {
				parts = append(parts, text)
			}
		}
		if len(parts) > 0 {
			return strings.Join(parts, "\n\n")
		}
	}
	return ""
}

func truncate(s string, maxChars int) string {
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}
	return string(runes[:maxChars])
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}

var _ news.ContentFetcher = (*Fetcher)(nil)
