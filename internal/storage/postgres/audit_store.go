package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/finsight/stocknews/internal/news"
)

// AuditStore writes crawl run and email delivery records into Postgres.
type AuditStore struct {
	pool querier
}

var _ news.AuditLog = (*AuditStore)(nil)

// NewAuditStore constructs a store from an existing pool.
func NewAuditStore(pool querier) (*AuditStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &AuditStore{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *AuditStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// RecordCrawlRun inserts one audit row for a crawl invocation.
func (s *AuditStore) RecordCrawlRun(ctx context.Context, run news.CrawlRun) error {
	if run.ID == "" {
		return fmt.Errorf("run id is required")
	}
	const query = `
INSERT INTO crawl_runs (
	id,
	ticker,
	status,
	fetched,
	analyzed,
	saved,
	failed,
	error,
	started_at,
	finished_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10
)`

	args := []any{
		run.ID,
		run.Ticker,
		string(run.Status),
		run.Fetched,
		run.Analyzed,
		run.Saved,
		run.Failed,
		run.Error,
		run.StartedAt,
		run.FinishedAt,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert crawl run: %w", err)
	}
	return nil
}

// RecentCrawlRuns lists the latest runs, newest first.
func (s *AuditStore) RecentCrawlRuns(ctx context.Context, limit int) ([]news.CrawlRun, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `
SELECT id, ticker, status, fetched, analyzed, saved, failed, error, started_at, finished_at
FROM crawl_runs
ORDER BY started_at DESC
LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("recent crawl runs: %w", err)
	}
	defer rows.Close()

	var runs []news.CrawlRun
	for rows.Next() {
		var (
			run    news.CrawlRun
			status string
		)
		if err := rows.Scan(
			&run.ID,
			&run.Ticker,
			&status,
			&run.Fetched,
			&run.Analyzed,
			&run.Saved,
			&run.Failed,
			&run.Error,
			&run.StartedAt,
			&run.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("scan crawl run: %w", err)
		}
		run.Status = news.RunStatus(status)
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate crawl runs: %w", err)
	}
	return runs, nil
}

// RecordEmail inserts one audit row for a digest delivery attempt.
func (s *AuditStore) RecordEmail(ctx context.Context, entry news.EmailLog) error {
	if entry.ID == "" {
		return fmt.Errorf("email log id is required")
	}
	const query = `
INSERT INTO email_logs (
	id,
	email,
	subject,
	status,
	error,
	articles,
	sent_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7
)`

	args := []any{
		entry.ID,
		entry.Email,
		entry.Subject,
		string(entry.Status),
		entry.Error,
		entry.Articles,
		entry.SentAt,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert email log: %w", err)
	}
	return nil
}

// DeleteOlderThan removes audit rows started strictly before the cutoff
// from both tables and returns the total removed.
func (s *AuditStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tagRuns, err := s.pool.Exec(ctx, `DELETE FROM crawl_runs WHERE started_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete crawl runs: %w", err)
	}
	tagEmails, err := s.pool.Exec(ctx, `DELETE FROM email_logs WHERE sent_at < $1`, cutoff)
	if err != nil {
		return tagRuns.RowsAffected(), fmt.Errorf("delete email logs: %w", err)
	}
	return tagRuns.RowsAffected() + tagEmails.RowsAffected(), nil
}
