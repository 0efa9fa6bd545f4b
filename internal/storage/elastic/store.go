// Package elastic provides the Elasticsearch-backed news document store.
package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"go.uber.org/zap"

	"github.com/finsight/stocknews/internal/news"
)

// Config controls the Elasticsearch connection.
type Config struct {
	Addresses []string
	Index     string
	Username  string
	Password  string
}

// Store implements news.Store on top of go-elasticsearch.
type Store struct {
	es     *elasticsearch.Client
	index  string
	logger *zap.Logger
}

var _ news.Store = (*Store)(nil)

// New instantiates the store.
func New(cfg Config, logger *zap.Logger) (*Store, error) {
	if cfg.Index == "" {
		return nil, fmt.Errorf("elastic.index is required")
	}
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}
	return &Store{es: es, index: cfg.Index, logger: logger}, nil
}

// Ping checks cluster availability.
func (s *Store) Ping(ctx context.Context) error {
	res, err := s.es.Ping(s.es.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("ping elasticsearch: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("elasticsearch ping failed: %s", res.Status())
	}
	return nil
}

// EnsureIndex creates the news index with its mapping if it does not exist.
func (s *Store) EnsureIndex(ctx context.Context) error {
	exists, err := s.es.Indices.Exists([]string{s.index}, s.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("check index: %w", err)
	}
	defer exists.Body.Close()
	if exists.StatusCode == 200 {
		return nil
	}

	res, err := s.es.Indices.Create(
		s.index,
		s.es.Indices.Create.WithContext(ctx),
		s.es.Indices.Create.WithBody(strings.NewReader(indexMapping)),
	)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("create index failed: %s", strings.TrimSpace(string(body)))
	}
	s.logger.Info("news index created", zap.String("index", s.index))
	return nil
}

// Save upserts a document keyed by its NewsID. A document missing a
// required field is rejected here, item by item, so BulkSave counts it
// without aborting the batch.
func (s *Store) Save(ctx context.Context, doc news.Document) error {
	if err := validateDocument(doc); err != nil {
		return err
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal doc: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      s.index,
		DocumentID: doc.NewsID,
		Body:       bytes.NewReader(payload),
		Refresh:    "false",
	}
	res, err := req.Do(ctx, s.es)
	if err != nil {
		return fmt.Errorf("index doc: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("index doc failed: %s", strings.TrimSpace(string(body)))
	}
	return nil
}

// BulkSave saves documents one by one; a failed document is counted and
// logged but does not abort the batch.
func (s *Store) BulkSave(ctx context.Context, docs []news.Document) (news.BulkResult, error) {
	result := news.BulkResult{Total: len(docs)}
	for _, doc := range docs {
		if err := s.Save(ctx, doc); err != nil {
			result.Failed++
			s.logger.Warn("bulk save document failed",
				zap.String("news_id", doc.NewsID),
				zap.String("ticker", doc.Ticker),
				zap.Error(err),
			)
			continue
		}
		result.Success++
	}
	return result, nil
}

func validateDocument(doc news.Document) error {
	switch {
	case doc.NewsID == "":
		return fmt.Errorf("document news_id is required")
	case doc.Ticker == "":
		return fmt.Errorf("document %s: ticker is required", doc.NewsID)
	case doc.Title == "":
		return fmt.Errorf("document %s: title is required", doc.NewsID)
	case doc.Content == "":
		return fmt.Errorf("document %s: content is required", doc.NewsID)
	case doc.PublishedAt.IsZero():
		return fmt.Errorf("document %s: published_at is required", doc.NewsID)
	}
	return nil
}

// FindByID fetches one document by its NewsID.
func (s *Store) FindByID(ctx context.Context, newsID string) (news.Document, error) {
	if newsID == "" {
		return news.Document{}, fmt.Errorf("news_id is required")
	}

	req := esapi.GetRequest{Index: s.index, DocumentID: newsID}
	res, err := req.Do(ctx, s.es)
	if err != nil {
		return news.Document{}, fmt.Errorf("get doc: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == 404 {
		return news.Document{}, fmt.Errorf("news %s: %w", newsID, news.ErrNotFound)
	}
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return news.Document{}, fmt.Errorf("get doc failed: %s", strings.TrimSpace(string(body)))
	}

	var parsed struct {
		Source news.Document `json:"_source"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return news.Document{}, fmt.Errorf("decode doc: %w", err)
	}
	return parsed.Source, nil
}

// FindExisting returns which of the given ids are already indexed.
// An empty input returns an empty set without touching the cluster.
func (s *Store) FindExisting(ctx context.Context, newsIDs []string, ticker string) (map[string]bool, error) {
	existing := make(map[string]bool)
	if len(newsIDs) == 0 {
		return existing, nil
	}

	filters := []map[string]any{
		{"terms": map[string]any{"news_id": newsIDs}},
	}
	if ticker != "" {
		filters = append(filters, map[string]any{
			"term": map[string]any{"ticker_symbol": ticker},
		})
	}
	body := map[string]any{
		"size":    len(newsIDs),
		"_source": []string{"news_id"},
		"query": map[string]any{
			"bool": map[string]any{"filter": filters},
		},
	}

	parsed, err := s.search(ctx, body)
	if err != nil {
		return nil, err
	}
	for _, hit := range parsed.Hits.Hits {
		existing[hit.Source.NewsID] = true
	}
	return existing, nil
}

// Search executes a full-text query over title and content, title weighted
// double, optionally filtered by ticker.
func (s *Store) Search(ctx context.Context, q news.SearchQuery) (news.SearchResult, error) {
	size := q.Size
	if size <= 0 {
		size = 20
	}
	if size > 200 {
		size = 200
	}
	from := q.From
	if from < 0 {
		from = 0
	}

	boolQuery := map[string]any{}
	if q.Query != "" {
		boolQuery["must"] = []map[string]any{
			{
				"multi_match": map[string]any{
					"query":  q.Query,
					"fields": []string{"title^2", "content"},
				},
			},
		}
	} else {
		boolQuery["must"] = []map[string]any{
			{"match_all": map[string]any{}},
		}
	}
	var filters []map[string]any
	if q.Ticker != "" {
		filters = append(filters, map[string]any{
			"term": map[string]any{"ticker_symbol": q.Ticker},
		})
	}
	if q.Sentiment != "" {
		filters = append(filters, map[string]any{
			"term": map[string]any{"sentiment.classification": q.Sentiment},
		})
	}
	// Inclusive on both bounds; a zero bound leaves that side open.
	if !q.FromDate.IsZero() || !q.ToDate.IsZero() {
		dateRange := map[string]any{}
		if !q.FromDate.IsZero() {
			dateRange["gte"] = q.FromDate.UTC().Format(time.RFC3339)
		}
		if !q.ToDate.IsZero() {
			dateRange["lte"] = q.ToDate.UTC().Format(time.RFC3339)
		}
		filters = append(filters, map[string]any{
			"range": map[string]any{"published_at": dateRange},
		})
	}
	if len(filters) > 0 {
		boolQuery["filter"] = filters
	}

	body := map[string]any{
		"from":             from,
		"size":             size,
		"track_total_hits": true,
		"query":            map[string]any{"bool": boolQuery},
		"sort": []map[string]any{
			{"published_at": map[string]any{"order": "desc"}},
		},
	}
	return s.searchDocuments(ctx, body)
}

// ByTicker lists stored documents for one ticker, newest first.
func (s *Store) ByTicker(ctx context.Context, ticker string, from, size int) (news.SearchResult, error) {
	return s.Search(ctx, news.SearchQuery{Ticker: ticker, From: from, Size: size})
}

// Recent returns documents published since the given time, optionally
// limited to a set of tickers. Used by the digest builder.
func (s *Store) Recent(ctx context.Context, since time.Time, tickers []string) ([]news.Document, error) {
	filters := []map[string]any{
		{
			"range": map[string]any{
				"published_at": map[string]any{
					"gte": since.UTC().Format(time.RFC3339),
				},
			},
		},
	}
	if len(tickers) > 0 {
		filters = append(filters, map[string]any{
			"terms": map[string]any{"ticker_symbol": tickers},
		})
	}

	body := map[string]any{
		"size":             500,
		"track_total_hits": true,
		"query": map[string]any{
			"bool": map[string]any{"filter": filters},
		},
		"sort": []map[string]any{
			{"published_at": map[string]any{"order": "desc"}},
		},
	}
	result, err := s.searchDocuments(ctx, body)
	if err != nil {
		return nil, err
	}
	return result.Documents, nil
}

// Statistics aggregates counts and the average sentiment score. An empty
// ticker and a zero window mean the whole corpus; windowDays scopes to the
// trailing N days using index-side date math.
func (s *Store) Statistics(ctx context.Context, ticker string, windowDays int) (news.Statistics, error) {
	var filters []map[string]any
	if ticker != "" {
		filters = append(filters, map[string]any{
			"term": map[string]any{"ticker_symbol": ticker},
		})
	}
	if windowDays > 0 {
		filters = append(filters, map[string]any{
			"range": map[string]any{
				"published_at": map[string]any{
					"gte": fmt.Sprintf("now-%dd/d", windowDays),
				},
			},
		})
	}

	body := map[string]any{
		"size":             0,
		"track_total_hits": true,
		"aggs": map[string]any{
			"by_ticker": map[string]any{
				"terms": map[string]any{"field": "ticker_symbol", "size": 100},
			},
			"by_sentiment": map[string]any{
				"terms": map[string]any{"field": "sentiment.classification", "size": 10},
			},
			"avg_score": map[string]any{
				"avg": map[string]any{"field": "sentiment.score"},
			},
		},
	}
	if len(filters) > 0 {
		body["query"] = map[string]any{
			"bool": map[string]any{"filter": filters},
		}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return news.Statistics{}, fmt.Errorf("marshal stats body: %w", err)
	}
	res, err := s.es.Search(
		s.es.Search.WithContext(ctx),
		s.es.Search.WithIndex(s.index),
		s.es.Search.WithBody(bytes.NewReader(payload)),
	)
	if err != nil {
		return news.Statistics{}, fmt.Errorf("stats search: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		data, _ := io.ReadAll(res.Body)
		return news.Statistics{}, fmt.Errorf("stats search failed: %s", strings.TrimSpace(string(data)))
	}

	var parsed struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
		} `json:"hits"`
		Aggregations struct {
			ByTicker struct {
				Buckets []struct {
					Key      string `json:"key"`
					DocCount int64  `json:"doc_count"`
				} `json:"buckets"`
			} `json:"by_ticker"`
			BySentiment struct {
				Buckets []struct {
					Key      string `json:"key"`
					DocCount int64  `json:"doc_count"`
				} `json:"buckets"`
			} `json:"by_sentiment"`
			AvgScore struct {
				Value *float64 `json:"value"`
			} `json:"avg_score"`
		} `json:"aggregations"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return news.Statistics{}, fmt.Errorf("decode stats response: %w", err)
	}

	stats := news.Statistics{
		TotalDocuments: parsed.Hits.Total.Value,
		ByTicker:       make(map[string]int64, len(parsed.Aggregations.ByTicker.Buckets)),
		BySentiment:    make(map[string]int64, len(parsed.Aggregations.BySentiment.Buckets)),
	}
	for _, b := range parsed.Aggregations.ByTicker.Buckets {
		stats.ByTicker[b.Key] = b.DocCount
	}
	for _, b := range parsed.Aggregations.BySentiment.Buckets {
		stats.BySentiment[b.Key] = b.DocCount
	}
	if parsed.Aggregations.AvgScore.Value != nil {
		stats.AvgScore = *parsed.Aggregations.AvgScore.Value
	}
	return stats, nil
}

// DateStatistics buckets article counts per day since the given time,
// newest day first, optionally limited to a set of tickers.
func (s *Store) DateStatistics(ctx context.Context, tickers []string, since time.Time) ([]news.DateCount, error) {
	filters := []map[string]any{
		{
			"range": map[string]any{
				"published_at": map[string]any{
					"gte": since.UTC().Format(time.RFC3339),
				},
			},
		},
	}
	if len(tickers) > 0 {
		filters = append(filters, map[string]any{
			"terms": map[string]any{"ticker_symbol": tickers},
		})
	}

	body := map[string]any{
		"size": 0,
		"query": map[string]any{
			"bool": map[string]any{"filter": filters},
		},
		"aggs": map[string]any{
			"by_date": map[string]any{
				"date_histogram": map[string]any{
					"field":             "published_at",
					"calendar_interval": "day",
					"format":            "yyyy-MM-dd",
					"order":             map[string]any{"_key": "desc"},
				},
			},
		},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal date stats body: %w", err)
	}
	res, err := s.es.Search(
		s.es.Search.WithContext(ctx),
		s.es.Search.WithIndex(s.index),
		s.es.Search.WithBody(bytes.NewReader(payload)),
	)
	if err != nil {
		return nil, fmt.Errorf("date stats search: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		data, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("date stats search failed: %s", strings.TrimSpace(string(data)))
	}

	var parsed struct {
		Aggregations struct {
			ByDate struct {
				Buckets []struct {
					KeyAsString string `json:"key_as_string"`
					DocCount    int64  `json:"doc_count"`
				} `json:"buckets"`
			} `json:"by_date"`
		} `json:"aggregations"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode date stats response: %w", err)
	}

	counts := make([]news.DateCount, 0, len(parsed.Aggregations.ByDate.Buckets))
	for _, b := range parsed.Aggregations.ByDate.Buckets {
		counts = append(counts, news.DateCount{Date: b.KeyAsString, Count: b.DocCount})
	}
	return counts, nil
}

// DeleteOlderThan removes documents published strictly before the cutoff,
// using batched delete-by-query. A document exactly at the cutoff survives.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	const batchSize = 1000
	cutoffStr := cutoff.UTC().Format(time.RFC3339)
	totalDeleted := int64(0)

	for {
		body := map[string]any{
			"query": map[string]any{
				"range": map[string]any{
					"published_at": map[string]any{
						"lt": cutoffStr,
					},
				},
			},
		}
		payload, err := json.Marshal(body)
		if err != nil {
			return totalDeleted, fmt.Errorf("marshal delete body: %w", err)
		}

		res, err := s.es.DeleteByQuery(
			[]string{s.index},
			bytes.NewReader(payload),
			s.es.DeleteByQuery.WithContext(ctx),
			s.es.DeleteByQuery.WithWaitForCompletion(true),
			s.es.DeleteByQuery.WithConflicts("proceed"),
			s.es.DeleteByQuery.WithScrollSize(batchSize),
		)
		if err != nil {
			return totalDeleted, fmt.Errorf("delete by query: %w", err)
		}

		if res.IsError() {
			data, _ := io.ReadAll(res.Body)
			res.Body.Close()
			return totalDeleted, fmt.Errorf("delete by query failed: %s", strings.TrimSpace(string(data)))
		}

		var parsed struct {
			Deleted int64 `json:"deleted"`
		}
		if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
			res.Body.Close()
			return totalDeleted, fmt.Errorf("decode delete response: %w", err)
		}
		res.Body.Close()

		totalDeleted += parsed.Deleted
		if parsed.Deleted < int64(batchSize) {
			break
		}
	}
	return totalDeleted, nil
}

type searchHits struct {
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []struct {
			Source news.Document `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func (s *Store) search(ctx context.Context, body map[string]any) (searchHits, error) {
	var parsed searchHits

	payload, err := json.Marshal(body)
	if err != nil {
		return parsed, fmt.Errorf("marshal search body: %w", err)
	}
	res, err := s.es.Search(
		s.es.Search.WithContext(ctx),
		s.es.Search.WithIndex(s.index),
		s.es.Search.WithBody(bytes.NewReader(payload)),
	)
	if err != nil {
		return parsed, fmt.Errorf("search: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		data, _ := io.ReadAll(res.Body)
		return parsed, fmt.Errorf("search failed: %s", strings.TrimSpace(string(data)))
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return parsed, fmt.Errorf("decode search response: %w", err)
	}
	return parsed, nil
}

func (s *Store) searchDocuments(ctx context.Context, body map[string]any) (news.SearchResult, error) {
	parsed, err := s.search(ctx, body)
	if err != nil {
		return news.SearchResult{}, err
	}
	docs := make([]news.Document, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		docs = append(docs, hit.Source)
	}
	return news.SearchResult{Total: parsed.Hits.Total.Value, Documents: docs}, nil
}
