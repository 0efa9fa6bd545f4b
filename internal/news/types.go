package news

import (
	"time"
)

// RawArticle is a headline scraped from a listing page, before analysis.
// Content may be empty until the article body has been fetched.
type RawArticle struct {
	Ticker      string    `json:"ticker"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"published_at"`
	Content     string    `json:"content"`
	Source      string    `json:"source"`
}

// Summaries holds the article summary in every supported language.
type Summaries struct {
	KO string `json:"ko"`
	EN string `json:"en"`
	ES string `json:"es"`
	JA string `json:"ja"`
}

// Complete reports whether every language slot is populated.
func (s Summaries) Complete() bool {
	return s.KO != "" && s.EN != "" && s.ES != "" && s.JA != ""
}

// ForLanguage returns the summary for a two-letter language code,
// falling back to English for unknown codes.
func (s Summaries) ForLanguage(lang string) string {
	switch lang {
	case "ko":
		return s.KO
	case "es":
		return s.ES
	case "ja":
		return s.JA
	default:
		return s.EN
	}
}

// SentimentLabel is the classification bucket for an article.
type SentimentLabel string

const (
	SentimentPositive SentimentLabel = "Positive"
	SentimentNegative SentimentLabel = "Negative"
	SentimentNeutral  SentimentLabel = "Neutral"
)

// Valid reports whether the label is one of the three known buckets.
func (l SentimentLabel) Valid() bool {
	switch l {
	case SentimentPositive, SentimentNegative, SentimentNeutral:
		return true
	}
	return false
}

// Sentiment scores range over [MinSentimentScore, MaxSentimentScore].
const (
	MinSentimentScore = -10
	MaxSentimentScore = 10
)

// Sentiment pairs a classification with a numeric score.
type Sentiment struct {
	Classification SentimentLabel `json:"classification"`
	Score          int            `json:"score"`
}

// ClampScore forces a score into the valid range.
func ClampScore(score int) int {
	if score < MinSentimentScore {
		return MinSentimentScore
	}
	if score > MaxSentimentScore {
		return MaxSentimentScore
	}
	return score
}

// Analysis is the outcome of analyzing a single article.
type Analysis struct {
	Summaries Summaries `json:"summaries"`
	Sentiment Sentiment `json:"sentiment"`
	Fallback  bool      `json:"fallback"`
}

// AnalyzedArticle is a raw article enriched with its analysis.
type AnalyzedArticle struct {
	RawArticle
	Analysis   Analysis  `json:"analysis"`
	AnalyzedAt time.Time `json:"analyzed_at"`
}

// Document is the shape persisted to the search index. The document id is
// NewsID, derived from the article URL, so re-crawling the same URL
// overwrites rather than duplicates.
type Document struct {
	NewsID      string    `json:"news_id"`
	Ticker      string    `json:"ticker_symbol"`
	CompanyName string    `json:"company_name"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Content     string    `json:"content"`
	PublishedAt time.Time `json:"published_at"`
	Summary     Summaries `json:"summary"`
	Sentiment   Sentiment `json:"sentiment"`
	CreatedAt   time.Time `json:"created_at"`
}

// BulkResult reports the outcome of a bulk save.
type BulkResult struct {
	Success int `json:"success"`
	Failed  int `json:"failed"`
	Total   int `json:"total"`
}

// RunStatus is the terminal state of a crawl run. SUCCESS, PARTIAL, and
// FAILED describe per-ticker runs; NO_NEWS and ERROR are the aggregate
// variants written by the scheduled sweep.
type RunStatus string

const (
	RunSuccess RunStatus = "SUCCESS"
	RunPartial RunStatus = "PARTIAL"
	RunFailed  RunStatus = "FAILED"
	RunNoNews  RunStatus = "NO_NEWS"
	RunError   RunStatus = "ERROR"
)

// CrawlRun is the audit record for one CrawlTicker invocation. Exactly one
// run row is written per invocation, on every exit path.
type CrawlRun struct {
	ID         string    `json:"id"`
	Ticker     string    `json:"ticker"`
	Status     RunStatus `json:"status"`
	Fetched    int       `json:"fetched"`
	Analyzed   int       `json:"analyzed"`
	Saved      int       `json:"saved"`
	Failed     int       `json:"failed"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// CrawlSummary aggregates a full sweep over the watched tickers.
type CrawlSummary struct {
	Tickers   int `json:"tickers"`
	Succeeded int `json:"succeeded"`
	Partial   int `json:"partial"`
	Failed    int `json:"failed"`
	Fetched   int `json:"fetched"`
	Saved     int `json:"saved"`
}

// EmailStatus is the delivery outcome for a digest email.
type EmailStatus string

const (
	EmailSent   EmailStatus = "SENT"
	EmailFailed EmailStatus = "FAILED"
)

// EmailLog is the audit record for one digest recipient in one digest run.
type EmailLog struct {
	ID       string      `json:"id"`
	Email    string      `json:"email"`
	Subject  string      `json:"subject"`
	Status   EmailStatus `json:"status"`
	Error    string      `json:"error,omitempty"`
	Articles int         `json:"articles"`
	SentAt   time.Time   `json:"sent_at"`
}

// Stock is a registry entry mapping a ticker to its company and source slug.
type Stock struct {
	Ticker      string `json:"ticker_symbol"`
	CompanyName string `json:"company_name"`
	Slug        string `json:"slug"`
}

// User is a digest recipient with notification preferences. NotifyHour is
// the hour of day (0-23) in the service's reference timezone.
type User struct {
	ID            int64    `json:"id"`
	Email         string   `json:"email"`
	Language      string   `json:"language"`
	NotifyHour    int      `json:"notify_hour"`
	NotifyEnabled bool     `json:"notify_enabled"`
	Watchlist     []string `json:"watchlist"`
}

// SearchQuery describes a filtered search against stored news. The date
// range is inclusive on both bounds; a zero bound is unbounded on that
// side. Sentiment is an exact match on the classification.
type SearchQuery struct {
	Query     string    `json:"query"`
	Ticker    string    `json:"ticker,omitempty"`
	FromDate  time.Time `json:"from_date,omitempty"`
	ToDate    time.Time `json:"to_date,omitempty"`
	Sentiment string    `json:"sentiment,omitempty"`
	From      int       `json:"from"`
	Size      int       `json:"size"`
}

// SearchResult is a page of matching documents.
type SearchResult struct {
	Total     int64      `json:"total"`
	Documents []Document `json:"documents"`
}

// Statistics summarizes stored news, optionally scoped to one ticker and a
// trailing window of days.
type Statistics struct {
	TotalDocuments int64            `json:"total_documents"`
	ByTicker       map[string]int64 `json:"by_ticker"`
	BySentiment    map[string]int64 `json:"by_sentiment"`
	AvgScore       float64          `json:"avg_score"`
}

// DateCount is one day's bucket in a per-date article histogram.
type DateCount struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}
