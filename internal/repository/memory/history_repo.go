package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/google/uuid"
)

// SearchHistoryRepo — журнал поисковых запросов в памяти, только добавление.
type SearchHistoryRepo struct {
	mu      sync.RWMutex
	records []*domain.SearchHistory
}

func NewSearchHistoryRepo() *SearchHistoryRepo {
	return &SearchHistoryRepo{}
}

func (r *SearchHistoryRepo) Append(_ context.Context, record *domain.SearchHistory) (*domain.SearchHistory, error) {
	stored := cloneHistory(record)
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}

	r.mu.Lock()
	r.records = append(r.records, stored)
	r.mu.Unlock()

	return cloneHistory(stored), nil
}

// List возвращает не более limit последних записей, новые первыми.
func (r *SearchHistoryRepo) List(_ context.Context, limit int) ([]*domain.SearchHistory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := min(limit, len(r.records))
	res := make([]*domain.SearchHistory, 0, n)
	for i := len(r.records) - 1; i >= 0 && len(res) < n; i-- {
		res = append(res, cloneHistory(r.records[i]))
	}

	return res, nil
}

func cloneHistory(h *domain.SearchHistory) *domain.SearchHistory {
	c := *h
	c.QueryEmbedding = h.QueryEmbedding.Clone()
	c.ResultIDs = slices.Clone(h.ResultIDs)
	return &c
}
