//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -destination=mocks/mock_repository.go -package=mocks github.com/DRSN-tech/visual-search/internal/usecase ProductRepository,SearchHistoryRepository,VectorIndex

package usecase

import (
	"context"
	"time"

	"github.com/DRSN-tech/visual-search/internal/domain"
)

// ProductRepository — каталог товаров. Пустой ID при вставке заполняется хранилищем.
type ProductRepository interface {
	Insert(ctx context.Context, product *domain.Product) (string, error)
	BulkInsert(ctx context.Context, products []*domain.Product) ([]string, error)
	Get(ctx context.Context, id string) (*domain.Product, error)
	GetMany(ctx context.Context, ids []string) (map[string]*domain.Product, error)
	List(ctx context.Context, category string) ([]*domain.Product, error)
	Delete(ctx context.Context, id string) error
}

type SearchHistoryRepository interface {
	Append(ctx context.Context, record *domain.SearchHistory) (*domain.SearchHistory, error)
	List(ctx context.Context, limit int) ([]*domain.SearchHistory, error)
}

// VectorIndex хранит тройки (id, вектор, категория) и отвечает на top-K запросы
// по косинусному сходству. Пустая категория в Query означает отсутствие фильтра.
type VectorIndex interface {
	Insert(ctx context.Context, id string, vector domain.Vector, category string) error
	Query(ctx context.Context, vector domain.Vector, topK int, category string) ([]domain.Match, error)
	Remove(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

type CacheRepository interface {
	GetProducts(ctx context.Context, ids []string) (map[string]*domain.Product, error)
	SetProducts(ctx context.Context, products []*domain.Product) error
}

// ImageRepository — бакетное хранилище объектов.
type ImageRepository interface {
	Upload(ctx context.Context, image *domain.Image) (string, error)
	Delete(ctx context.Context, bucket, key string) error
}

type OutboxRepository interface {
	GetAndMarkAsProcessing(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkAsProcessed(ctx context.Context, id int64) error
	ReleaseStale(ctx context.Context, timeout time.Duration) (int64, error)
}
