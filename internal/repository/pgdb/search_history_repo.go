package pgdb

import (
	"context"

	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/internal/repository/pgdb/converter"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jimlawless/whereami"
)

// SearchHistoryRepo — журнал поисковых запросов в PostgreSQL, только добавление.
type SearchHistoryRepo struct {
	pool *pgxpool.Pool
	conv converter.SearchHistoryConverter
}

func NewSearchHistoryRepo(pool *pgxpool.Pool, conv converter.SearchHistoryConverter) *SearchHistoryRepo {
	return &SearchHistoryRepo{
		pool: pool,
		conv: conv,
	}
}

func (s *SearchHistoryRepo) Append(ctx context.Context, record *domain.SearchHistory) (*domain.SearchHistory, error) {
	model := s.conv.ToModel(record)
	if model.ID == "" {
		model.ID = uuid.NewString()
	}

	query := `
		INSERT INTO search_history (id, query_image_url, query_embedding, result_ids, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	if _, err := conn(ctx, s.pool).Exec(ctx, query,
		model.ID,
		model.QueryImageURL,
		model.QueryEmbedding,
		model.ResultIDs,
		model.CreatedAt,
	); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return s.conv.ToEntity(model), nil
}

// List возвращает не более limit последних записей, новые первыми.
func (s *SearchHistoryRepo) List(ctx context.Context, limit int) ([]*domain.SearchHistory, error) {
	query := `
		SELECT id, query_image_url, query_embedding, result_ids, created_at
		FROM search_history
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := conn(ctx, s.pool).Query(ctx, query, limit)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	defer rows.Close()

	res := make([]*domain.SearchHistory, 0, limit)
	for rows.Next() {
		var model converter.SearchHistoryModel
		if err := rows.Scan(
			&model.ID,
			&model.QueryImageURL,
			&model.QueryEmbedding,
			&model.ResultIDs,
			&model.CreatedAt,
		); err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}
		res = append(res, s.conv.ToEntity(&model))
	}

	if err := rows.Err(); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return res, nil
}
