//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -destination=mocks/mock_usecase.go -package=mocks github.com/DRSN-tech/visual-search/internal/usecase ProductUC,SearchUC

package usecase

import (
	"context"

	"github.com/DRSN-tech/visual-search/internal/domain"
)

type ProductUC interface {
	AddProduct(ctx context.Context, req *AddProductReq) (*domain.Product, error)
	BulkAddProducts(ctx context.Context, req *BulkAddProductsReq) (*BulkAddProductsRes, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	ListProducts(ctx context.Context, category string) ([]*domain.Product, error)
	UploadImage(ctx context.Context, req *UploadImageReq) (*UploadImageRes, error)
	RebuildIndex(ctx context.Context) (int, error)
}

type SearchUC interface {
	Search(ctx context.Context, req *SearchReq) (*SearchRes, error)
	LogSearch(ctx context.Context, record *domain.SearchHistory) (*domain.SearchHistory, error)
	ListHistory(ctx context.Context, limit int) ([]*domain.SearchHistory, error)
}
