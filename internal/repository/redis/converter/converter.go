package converter

import (
	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/shopspring/decimal"
)

// ProductConverter преобразует товар между domain и моделью кэша.
type ProductConverter struct{}

func (ProductConverter) ToRedisModel(entity *domain.Product) *ProductRedisModel {
	model := &ProductRedisModel{
		ID:         entity.ID,
		Name:       entity.Name,
		Category:   entity.Category,
		ImageURL:   entity.ImageURL,
		StorageKey: entity.StorageKey,
		Embedding:  entity.Embedding,
		CreatedAt:  entity.CreatedAt,
	}

	if m := entity.Metadata; m != nil {
		model.HasMetadata = true
		model.Description = m.Description
		model.Brand = m.Brand
		model.UploadedAt = m.UploadedAt
		if m.Price != nil {
			price := m.Price.String()
			model.Price = &price
		}
	}

	return model
}

func (ProductConverter) ToDomain(model *ProductRedisModel) (*domain.Product, error) {
	product := &domain.Product{
		ID:         model.ID,
		Name:       model.Name,
		Category:   model.Category,
		ImageURL:   model.ImageURL,
		StorageKey: model.StorageKey,
		Embedding:  domain.Vector(model.Embedding),
		CreatedAt:  model.CreatedAt,
	}

	if model.HasMetadata {
		metadata := &domain.Metadata{
			Description: model.Description,
			Brand:       model.Brand,
			UploadedAt:  model.UploadedAt,
		}
		if model.Price != nil {
			price, err := decimal.NewFromString(*model.Price)
			if err != nil {
				return nil, err
			}
			metadata.Price = &price
		}
		product.Metadata = metadata
	}

	return product, nil
}

func (c ProductConverter) ToArrRedisModel(entities []*domain.Product) []*ProductRedisModel {
	res := make([]*ProductRedisModel, 0, len(entities))
	for _, entity := range entities {
		if entity == nil {
			continue
		}
		res = append(res, c.ToRedisModel(entity))
	}

	return res
}
