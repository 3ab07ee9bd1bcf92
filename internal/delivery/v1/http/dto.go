package http

import (
	"fmt"
	"time"

	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/internal/usecase"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/shopspring/decimal"
)

// MetadataDTO — необязательные атрибуты товара. Цена принимается строкой или числом.
type MetadataDTO struct {
	Description string           `json:"description,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty" swaggertype:"string"`
	Brand       string           `json:"brand,omitempty"`
	UploadedAt  string           `json:"uploadedAt,omitempty"`
}

// AddProductRequest — JSON-тело создания товара. Изображение задаётся base64 (imageData)
// или ссылкой (imageUrl). storageKey вместе с imageUrl означает уже загруженный объект.
type AddProductRequest struct {
	Name       string       `json:"name"`
	Category   string       `json:"category"`
	ImageURL   string       `json:"imageUrl,omitempty"`
	ImageData  string       `json:"imageData,omitempty"`
	Filename   string       `json:"filename,omitempty"`
	MimeType   string       `json:"mimetype,omitempty"`
	StorageKey string       `json:"storageKey,omitempty"`
	Embedding  []float64    `json:"embedding,omitempty"`
	Metadata   *MetadataDTO `json:"metadata,omitempty"`
}

// BulkAddRequest — пакет товаров. Category применяется к элементам без своей категории.
type BulkAddRequest struct {
	Category string              `json:"category,omitempty"`
	Items    []AddProductRequest `json:"items"`
}

type BulkItemErrorDTO struct {
	Index   int    `json:"index"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type BulkAddResponse struct {
	IDs    []string           `json:"ids"`
	Failed int                `json:"failed"`
	Errors []BulkItemErrorDTO `json:"errors"`
}

type ProductResponse struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	Category      string       `json:"category"`
	ImageURL      string       `json:"imageUrl"`
	StorageKey    string       `json:"storageKey,omitempty"`
	EmbeddingDims int          `json:"embeddingDims"`
	Metadata      *MetadataDTO `json:"metadata,omitempty"`
	CreatedAt     time.Time    `json:"createdAt"`
}

type ProductListResponse struct {
	Products []ProductResponse `json:"products"`
}

type UploadRequest struct {
	ImageData string `json:"imageData,omitempty"`
	Filename  string `json:"filename,omitempty"`
	MimeType  string `json:"mimetype,omitempty"`
	ImageURL  string `json:"imageUrl,omitempty"`
}

type UploadResponse struct {
	URL       string    `json:"url"`
	Key       string    `json:"key"`
	Embedding []float64 `json:"embedding"`
	Dims      int       `json:"dims"`
}

// SearchRequest — ровно одно из imageUrl, imageData, productId.
// topK == 0 означает значение по умолчанию.
type SearchRequest struct {
	ImageURL  string  `json:"imageUrl,omitempty"`
	ImageData string  `json:"imageData,omitempty"`
	MimeType  string  `json:"mimetype,omitempty"`
	ProductID string  `json:"productId,omitempty"`
	TopK      int     `json:"topK,omitempty"`
	MinScore  float64 `json:"minScore,omitempty"`
	Category  string  `json:"category,omitempty"`
}

type SearchResultDTO struct {
	ProductResponse
	Score float64 `json:"score"`
}

type SearchResponse struct {
	QueryEmbeddingDims int               `json:"queryEmbeddingDims"`
	HistoryID          string            `json:"historyId,omitempty"`
	Results            []SearchResultDTO `json:"results"`
}

type HistoryRecordDTO struct {
	ID             string    `json:"id,omitempty"`
	QueryImageURL  string    `json:"queryImageUrl"`
	QueryEmbedding []float64 `json:"queryEmbedding"`
	ResultIDs      []string  `json:"resultIds"`
	Timestamp      time.Time `json:"timestamp"`
}

type HistoryResponse struct {
	Records []HistoryRecordDTO `json:"records"`
}

// MAPPERS

func (m *MetadataDTO) toDomain() (*domain.Metadata, error) {
	if m == nil {
		return nil, nil
	}
	if m.Price != nil {
		if err := validatePrice(*m.Price); err != nil {
			return nil, err
		}
	}

	return &domain.Metadata{
		Description: m.Description,
		Price:       m.Price,
		Brand:       m.Brand,
		UploadedAt:  m.UploadedAt,
	}, nil
}

func metadataFromDomain(m *domain.Metadata) *MetadataDTO {
	if m == nil {
		return nil
	}

	return &MetadataDTO{
		Description: m.Description,
		Price:       m.Price,
		Brand:       m.Brand,
		UploadedAt:  m.UploadedAt,
	}
}

func (a *AddProductRequest) toUsecase() (*usecase.AddProductReq, error) {
	image, err := imageFromBase64(a.ImageData, a.Filename, a.MimeType)
	if err != nil {
		return nil, err
	}

	meta, err := a.Metadata.toDomain()
	if err != nil {
		return nil, err
	}

	return &usecase.AddProductReq{
		Name:       a.Name,
		Category:   a.Category,
		Image:      image,
		ImageURL:   a.ImageURL,
		StorageKey: a.StorageKey,
		Embedding:  domain.Vector(a.Embedding),
		Metadata:   meta,
	}, nil
}

func (b *BulkAddRequest) toUsecase() (*usecase.BulkAddProductsReq, error) {
	if len(b.Items) == 0 {
		return nil, e.ErrNoProducts
	}

	items := make([]usecase.AddProductReq, 0, len(b.Items))
	for i := range b.Items {
		if b.Items[i].Category == "" {
			b.Items[i].Category = b.Category
		}
		req, err := b.Items[i].toUsecase()
		if err != nil {
			return nil, e.Wrap(fmt.Sprintf("item %d", i), err)
		}
		items = append(items, *req)
	}

	return &usecase.BulkAddProductsReq{Items: items}, nil
}

func toProductResponse(p *domain.Product) ProductResponse {
	return ProductResponse{
		ID:            p.ID,
		Name:          p.Name,
		Category:      p.Category,
		ImageURL:      p.ImageURL,
		StorageKey:    p.StorageKey,
		EmbeddingDims: len(p.Embedding),
		Metadata:      metadataFromDomain(p.Metadata),
		CreatedAt:     p.CreatedAt,
	}
}

func toProductListResponse(products []*domain.Product) *ProductListResponse {
	res := make([]ProductResponse, 0, len(products))
	for _, p := range products {
		res = append(res, toProductResponse(p))
	}
	return &ProductListResponse{Products: res}
}

func toBulkAddResponse(res *usecase.BulkAddProductsRes) *BulkAddResponse {
	errs := make([]BulkItemErrorDTO, 0, len(res.Errors))
	for _, item := range res.Errors {
		_, kind, msg := ToHTTPResponse(item.Err)
		errs = append(errs, BulkItemErrorDTO{Index: item.Index, Kind: kind, Message: msg})
	}

	ids := res.IDs
	if ids == nil {
		ids = []string{}
	}

	return &BulkAddResponse{IDs: ids, Failed: res.Failed, Errors: errs}
}

func toUploadResponse(res *usecase.UploadImageRes) *UploadResponse {
	return &UploadResponse{
		URL:       res.URL,
		Key:       res.Key,
		Embedding: res.Embedding,
		Dims:      len(res.Embedding),
	}
}

func (s *SearchRequest) toUsecase() (*usecase.SearchReq, error) {
	image, err := imageFromBase64(s.ImageData, "query", s.MimeType)
	if err != nil {
		return nil, err
	}

	return &usecase.SearchReq{
		Image:     image,
		ImageURL:  s.ImageURL,
		ProductID: s.ProductID,
		TopK:      s.TopK,
		MinScore:  s.MinScore,
		Category:  s.Category,
	}, nil
}

func toSearchResponse(res *usecase.SearchRes) *SearchResponse {
	results := make([]SearchResultDTO, 0, len(res.Results))
	for _, r := range res.Results {
		results = append(results, SearchResultDTO{
			ProductResponse: toProductResponse(r.Product),
			Score:           r.Score,
		})
	}

	return &SearchResponse{
		QueryEmbeddingDims: res.QueryEmbeddingDims,
		HistoryID:          res.HistoryID,
		Results:            results,
	}
}

func (h *HistoryRecordDTO) toDomain() *domain.SearchHistory {
	record := domain.NewSearchHistory(h.QueryImageURL, domain.Vector(h.QueryEmbedding), h.ResultIDs)
	record.Timestamp = h.Timestamp
	return record
}

func toHistoryRecordDTO(record *domain.SearchHistory) HistoryRecordDTO {
	ids := record.ResultIDs
	if ids == nil {
		ids = []string{}
	}

	return HistoryRecordDTO{
		ID:             record.ID,
		QueryImageURL:  record.QueryImageURL,
		QueryEmbedding: record.QueryEmbedding,
		ResultIDs:      ids,
		Timestamp:      record.Timestamp,
	}
}

func toHistoryResponse(records []*domain.SearchHistory) *HistoryResponse {
	res := make([]HistoryRecordDTO, 0, len(records))
	for _, r := range records {
		res = append(res, toHistoryRecordDTO(r))
	}
	return &HistoryResponse{Records: res}
}
