package news

import (
	"context"
	"time"
)

// Fetcher scrapes recent headlines for a ticker from the source site.
// An empty slice with a nil error is a valid "no fresh news" outcome.
type Fetcher interface {
	FetchNews(ctx context.Context, ticker string, limit int) ([]RawArticle, error)
}

// ContentFetcher retrieves the article body for a headline. Failures
// degrade to empty content rather than failing the article.
type ContentFetcher interface {
	FetchContent(ctx context.Context, url string) (string, error)
}

// Analyzer produces multilingual summaries and a sentiment verdict for an
// article. Implementations must always return a complete Analysis; when the
// model output is unusable they fall back to a heuristic one.
type Analyzer interface {
	Analyze(ctx context.Context, article RawArticle) (Analysis, error)
}

// Store persists and queries analyzed news documents.
type Store interface {
	Save(ctx context.Context, doc Document) error
	BulkSave(ctx context.Context, docs []Document) (BulkResult, error)
	FindByID(ctx context.Context, newsID string) (Document, error)
	FindExisting(ctx context.Context, newsIDs []string, ticker string) (map[string]bool, error)
	Search(ctx context.Context, q SearchQuery) (SearchResult, error)
	ByTicker(ctx context.Context, ticker string, from, size int) (SearchResult, error)
	Recent(ctx context.Context, since time.Time, tickers []string) ([]Document, error)
	Statistics(ctx context.Context, ticker string, windowDays int) (Statistics, error)
	DateStatistics(ctx context.Context, tickers []string, since time.Time) ([]DateCount, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Registry resolves tickers and digest recipients.
type Registry interface {
	LookupStock(ctx context.Context, ticker string) (Stock, error)
	ListStocks(ctx context.Context) ([]Stock, error)
	WatchedTickers(ctx context.Context) ([]string, error)
	UsersForHour(ctx context.Context, hour int) ([]User, error)
}

// AuditLog records pipeline activity for later inspection.
type AuditLog interface {
	RecordCrawlRun(ctx context.Context, run CrawlRun) error
	RecentCrawlRuns(ctx context.Context, limit int) ([]CrawlRun, error)
	RecordEmail(ctx context.Context, entry EmailLog) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Mailer delivers a rendered digest email.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// Hasher derives stable document ids from article URLs.
type Hasher interface {
	NewsID(url string) string
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run and log ids (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}

// RetryPolicy decides whether and when a failed fetch is retried.
type RetryPolicy interface {
	ShouldRetry(err error, attempt int) bool
	Backoff(attempt int) time.Duration
}
