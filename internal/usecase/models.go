package usecase

import (
	"time"

	"github.com/DRSN-tech/visual-search/internal/domain"
)

// PRODUCT USECASE

// AddProductReq — запрос на добавление товара. Изображение задаётся байтами (Image)
// или ссылкой (ImageURL). Если вместе со ссылкой передан StorageKey, изображение
// считается уже загруженным. Embedding можно передать заранее посчитанным.
type AddProductReq struct {
	Name       string
	Category   string
	Image      *ProductImage
	ImageURL   string
	StorageKey string
	Embedding  domain.Vector
	Metadata   *domain.Metadata
}

// ProductImage представляет изображение, загруженное через multipart/form-data или base64.
type ProductImage struct {
	Data     []byte // байты изображения
	MimeType string // Content-Type (image/jpeg)
	Size     int64  // фактический размер в байтах
	Name     string // оригинальное имя файла (для логов и ключа объекта)
}

type BulkAddProductsReq struct {
	Items []AddProductReq
}

// BulkAddProductsRes — итог пакетной загрузки. IDs идут в порядке исходного запроса,
// упавшие элементы пропущены и перечислены в Errors.
type BulkAddProductsRes struct {
	IDs    []string
	Failed int
	Errors []BulkItemError
}

type BulkItemError struct {
	Index int
	Err   error
}

type UploadImageReq struct {
	Image    *ProductImage
	ImageURL string
}

type UploadImageRes struct {
	URL       string
	Key       string
	Embedding domain.Vector
}

// SEARCH USECASE

// SearchReq — поисковый запрос. Должен быть задан ровно один источник вектора:
// Image, ImageURL или ProductID. TopK == 0 означает значение по умолчанию.
type SearchReq struct {
	Image     *ProductImage
	ImageURL  string
	ProductID string
	TopK      int
	MinScore  float64
	Category  string
}

type SearchRes struct {
	QueryEmbeddingDims int
	Results            []SearchResult
	HistoryID          string
}

type SearchResult struct {
	Product *domain.Product
	Score   float64
}

// INFRASTUCTURE

// VectorizeReq — запрос на векторизацию одного изображения (байты или ссылка).
type VectorizeReq struct {
	Image    *ProductImage
	ImageURL string
}

// VectorizeRes — результат векторизации изображения.
type VectorizeRes struct {
	Vector       domain.Vector
	ModelVersion string
}

// OUTBOX

type OutboxStatus string

const (
	OutboxStatusPending    OutboxStatus = "pending"
	OutboxStatusProcessing OutboxStatus = "processing"
	OutboxStatusProcessed  OutboxStatus = "processed"
)

// OutboxEvent — строка outbox-таблицы. Payload хранит JSON domain.ProductEvent.
type OutboxEvent struct {
	ID          int64
	EventID     string
	EventType   string
	ProductID   string
	Payload     []byte
	Status      OutboxStatus
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

// MAPPERS

func NewProductImage(data []byte, mimeType string, size int64, name string) *ProductImage {
	return &ProductImage{
		Data:     data,
		MimeType: mimeType,
		Size:     size,
		Name:     name,
	}
}

func NewVectorizeReq(image *ProductImage, imageURL string) *VectorizeReq {
	return &VectorizeReq{
		Image:    image,
		ImageURL: imageURL,
	}
}

func NewVectorizeRes(vector domain.Vector, modelVersion string) *VectorizeRes {
	return &VectorizeRes{
		Vector:       vector,
		ModelVersion: modelVersion,
	}
}

func NewUploadImageRes(stored *domain.StoredImage, embedding domain.Vector) *UploadImageRes {
	return &UploadImageRes{
		URL:       stored.URL,
		Key:       stored.Key,
		Embedding: embedding,
	}
}

func NewSearchRes(dims int, results []SearchResult, historyID string) *SearchRes {
	return &SearchRes{
		QueryEmbeddingDims: dims,
		Results:            results,
		HistoryID:          historyID,
	}
}
