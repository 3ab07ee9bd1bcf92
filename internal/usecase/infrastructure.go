//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -destination=mocks/mock_infrastructure.go -package=mocks github.com/DRSN-tech/visual-search/internal/usecase EventPublisher,ImagesInfra,MlServiceInfra

package usecase

import (
	"context"

	"github.com/DRSN-tech/visual-search/internal/domain"
)

// MlServiceInfra — провайдер эмбеддингов. Возвращает вектор ровно той размерности,
// что задана в конфигурации, либо ошибку e.ErrEmbedding.
type MlServiceInfra interface {
	VectorizeRequest(ctx context.Context, req *VectorizeReq) (*VectorizeRes, error)
}

// ImagesInfra — хранилище изображений товаров.
type ImagesInfra interface {
	Store(ctx context.Context, image *ProductImage) (*domain.StoredImage, error)
	StoreByURL(ctx context.Context, url string) (*domain.StoredImage, error)
	CleanupImages(keys []string)
}

type EventPublisher interface {
	Publish(ctx context.Context, event *domain.ProductEvent) error
}
