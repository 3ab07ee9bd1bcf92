package converter

import (
	"encoding/json"

	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/internal/usecase"
)

// ProductConverter преобразует Product между domain и моделью хранилища.
type ProductConverter struct{}

func (ProductConverter) ToModel(entity *domain.Product) (*ProductModel, error) {
	var metadata []byte
	if entity.Metadata != nil {
		var err error
		metadata, err = json.Marshal(entity.Metadata)
		if err != nil {
			return nil, err
		}
	}

	return &ProductModel{
		ID:         entity.ID,
		Name:       entity.Name,
		Category:   entity.Category,
		ImageURL:   entity.ImageURL,
		StorageKey: entity.StorageKey,
		Embedding:  entity.Embedding,
		Metadata:   metadata,
		CreatedAt:  entity.CreatedAt,
	}, nil
}

func (ProductConverter) ToEntity(model *ProductModel) (*domain.Product, error) {
	var metadata *domain.Metadata
	if len(model.Metadata) > 0 && string(model.Metadata) != "null" {
		metadata = &domain.Metadata{}
		if err := json.Unmarshal(model.Metadata, metadata); err != nil {
			return nil, err
		}
	}

	return &domain.Product{
		ID:         model.ID,
		Name:       model.Name,
		Category:   model.Category,
		ImageURL:   model.ImageURL,
		StorageKey: model.StorageKey,
		Embedding:  domain.Vector(model.Embedding),
		Metadata:   metadata,
		CreatedAt:  model.CreatedAt.UTC(),
	}, nil
}

// SearchHistoryConverter преобразует SearchHistory между domain и моделью хранилища.
type SearchHistoryConverter struct{}

func (SearchHistoryConverter) ToModel(entity *domain.SearchHistory) *SearchHistoryModel {
	return &SearchHistoryModel{
		ID:             entity.ID,
		QueryImageURL:  entity.QueryImageURL,
		QueryEmbedding: entity.QueryEmbedding,
		ResultIDs:      entity.ResultIDs,
		CreatedAt:      entity.Timestamp,
	}
}

func (SearchHistoryConverter) ToEntity(model *SearchHistoryModel) *domain.SearchHistory {
	resultIDs := model.ResultIDs
	if resultIDs == nil {
		resultIDs = []string{}
	}

	return &domain.SearchHistory{
		ID:             model.ID,
		QueryImageURL:  model.QueryImageURL,
		QueryEmbedding: domain.Vector(model.QueryEmbedding),
		ResultIDs:      resultIDs,
		Timestamp:      model.CreatedAt.UTC(),
	}
}

// OutboxEventConverter преобразует события outbox между usecase и моделью PostgreSQL.
type OutboxEventConverter struct{}

// FromDomain сериализует событие каталога в строку outbox.
func (OutboxEventConverter) FromDomain(event *domain.ProductEvent) (*OutboxEventModel, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}

	return &OutboxEventModel{
		EventID:   event.EventID,
		EventType: event.EventType,
		ProductID: event.ProductID,
		Payload:   payload,
		Status:    string(usecase.OutboxStatusPending),
		CreatedAt: event.OccurredAt,
	}, nil
}

func (OutboxEventConverter) ToEntity(model *OutboxEventModel) *usecase.OutboxEvent {
	return &usecase.OutboxEvent{
		ID:          model.ID,
		EventID:     model.EventID,
		EventType:   model.EventType,
		ProductID:   model.ProductID,
		Payload:     model.Payload,
		Status:      usecase.OutboxStatus(model.Status),
		CreatedAt:   model.CreatedAt,
		ProcessedAt: model.ProcessedAt,
	}
}

func (c OutboxEventConverter) ToArrEntity(models []*OutboxEventModel) []*usecase.OutboxEvent {
	res := make([]*usecase.OutboxEvent, 0, len(models))
	for _, m := range models {
		res = append(res, c.ToEntity(m))
	}
	return res
}
