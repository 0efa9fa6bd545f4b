package pipeline

import (
	"context"
	"fmt"

	"github.com/finsight/stocknews/internal/news"
)

// Deduplicator filters out articles already present in the index before any
// analysis work is spent on them.
type Deduplicator struct {
	store  news.Store
	hasher news.Hasher
}

// NewDeduplicator builds a deduplicator over the given store.
func NewDeduplicator(store news.Store, hasher news.Hasher) *Deduplicator {
	return &Deduplicator{store: store, hasher: hasher}
}

// FilterNew returns the articles whose URL hash is not yet stored, in input
// order. An empty input returns immediately without touching the store.
func (d *Deduplicator) FilterNew(ctx context.Context, ticker string, articles []news.RawArticle) ([]news.RawArticle, error) {
	if len(articles) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(articles))
	for _, a := range articles {
		ids = append(ids, d.hasher.NewsID(a.URL))
	}

	existing, err := d.store.FindExisting(ctx, ids, ticker)
	if err != nil {
		return nil, fmt.Errorf("find existing: %w", err)
	}

	fresh := make([]news.RawArticle, 0, len(articles))
	for i, a := range articles {
		if existing[ids[i]] {
			continue
		}
		fresh = append(fresh, a)
	}
	return fresh, nil
}
