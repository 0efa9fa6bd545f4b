package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/finsight/stocknews/internal/news"
)

// RegistryStore reads tickers and digest recipients from Postgres.
type RegistryStore struct {
	pool querier
}

var _ news.Registry = (*RegistryStore)(nil)

// NewRegistryStore constructs a store from an existing pool.
func NewRegistryStore(pool querier) (*RegistryStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &RegistryStore{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *RegistryStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// LookupStock resolves a ticker to its registry entry.
func (s *RegistryStore) LookupStock(ctx context.Context, ticker string) (news.Stock, error) {
	const query = `
SELECT ticker_symbol, company_name, slug
FROM stock_master
WHERE ticker_symbol = $1`

	var stock news.Stock
	err := s.pool.QueryRow(ctx, query, ticker).Scan(&stock.Ticker, &stock.CompanyName, &stock.Slug)
	if errors.Is(err, pgx.ErrNoRows) {
		return news.Stock{}, fmt.Errorf("ticker %s: %w", ticker, news.ErrUnknownTicker)
	}
	if err != nil {
		return news.Stock{}, fmt.Errorf("lookup stock: %w", err)
	}
	return stock, nil
}

// ListStocks returns every registered ticker.
func (s *RegistryStore) ListStocks(ctx context.Context) ([]news.Stock, error) {
	const query = `
SELECT ticker_symbol, company_name, slug
FROM stock_master
ORDER BY ticker_symbol`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list stocks: %w", err)
	}
	defer rows.Close()

	var stocks []news.Stock
	for rows.Next() {
		var stock news.Stock
		if err := rows.Scan(&stock.Ticker, &stock.CompanyName, &stock.Slug); err != nil {
			return nil, fmt.Errorf("scan stock: %w", err)
		}
		stocks = append(stocks, stock)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stocks: %w", err)
	}
	return stocks, nil
}

// WatchedTickers returns the distinct tickers on active users' watchlists,
// the set a scheduled sweep crawls.
func (s *RegistryStore) WatchedTickers(ctx context.Context) ([]string, error) {
	const query = `
SELECT DISTINCT us.ticker_symbol
FROM user_stocks us
JOIN users u ON u.id = us.user_id
WHERE u.is_active
ORDER BY us.ticker_symbol`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("watched tickers: %w", err)
	}
	defer rows.Close()

	var tickers []string
	for rows.Next() {
		var ticker string
		if err := rows.Scan(&ticker); err != nil {
			return nil, fmt.Errorf("scan ticker: %w", err)
		}
		tickers = append(tickers, ticker)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tickers: %w", err)
	}
	return tickers, nil
}

// UsersForHour returns enabled digest recipients whose notification hour
// matches, with their watchlists aggregated in.
func (s *RegistryStore) UsersForHour(ctx context.Context, hour int) ([]news.User, error) {
	const query = `
SELECT
	u.id,
	u.email,
	u.language,
	u.notify_hour,
	u.notify_enabled,
	COALESCE(array_agg(us.ticker_symbol) FILTER (WHERE us.ticker_symbol IS NOT NULL), '{}')
FROM users u
LEFT JOIN user_stocks us ON us.user_id = u.id
WHERE u.notify_enabled AND u.notify_hour = $1
GROUP BY u.id, u.email, u.language, u.notify_hour, u.notify_enabled
ORDER BY u.id`

	rows, err := s.pool.Query(ctx, query, hour)
	if err != nil {
		return nil, fmt.Errorf("users for hour: %w", err)
	}
	defer rows.Close()

	var users []news.User
	for rows.Next() {
		var u news.User
		if err := rows.Scan(&u.ID, &u.Email, &u.Language, &u.NotifyHour, &u.NotifyEnabled, &u.Watchlist); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}
