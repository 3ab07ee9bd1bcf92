package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/internal/repository/pgdb/converter"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/google/uuid"
	"github.com/jimlawless/whereami"
)

// SearchHistoryRepo — журнал поисковых запросов в SQLite, только добавление.
type SearchHistoryRepo struct {
	db   *sql.DB
	conv converter.SearchHistoryConverter
}

func NewSearchHistoryRepo(db *sql.DB, conv converter.SearchHistoryConverter) *SearchHistoryRepo {
	return &SearchHistoryRepo{
		db:   db,
		conv: conv,
	}
}

func (s *SearchHistoryRepo) Append(ctx context.Context, record *domain.SearchHistory) (*domain.SearchHistory, error) {
	model := s.conv.ToModel(record)
	if model.ID == "" {
		model.ID = uuid.NewString()
	}
	if model.ResultIDs == nil {
		model.ResultIDs = []string{}
	}

	embedding, err := json.Marshal(model.QueryEmbedding)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	resultIDs, err := json.Marshal(model.ResultIDs)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	query := `
		INSERT INTO search_history (id, query_image_url, query_embedding, result_ids, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	if _, err := s.db.ExecContext(ctx, query,
		model.ID,
		model.QueryImageURL,
		string(embedding),
		string(resultIDs),
		model.CreatedAt.UnixNano(),
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
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	defer rows.Close()

	res := make([]*domain.SearchHistory, 0)
	for rows.Next() {
		var (
			model     converter.SearchHistoryModel
			embedding string
			resultIDs string
			createdAt int64
		)
		if err := rows.Scan(&model.ID, &model.QueryImageURL, &embedding, &resultIDs, &createdAt); err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}
		if err := json.Unmarshal([]byte(embedding), &model.QueryEmbedding); err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}
		if err := json.Unmarshal([]byte(resultIDs), &model.ResultIDs); err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}
		model.CreatedAt = time.Unix(0, createdAt)

		res = append(res, s.conv.ToEntity(&model))
	}

	if err := rows.Err(); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return res, nil
}
