package converter

import "time"

// ProductRedisModel — представление товара в кэше. Цена хранится строкой,
// чтобы не терять точность decimal.
type ProductRedisModel struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Category    string    `json:"category"`
	ImageURL    string    `json:"image_url"`
	StorageKey  string    `json:"storage_key"`
	Embedding   []float64 `json:"embedding"`
	HasMetadata bool      `json:"has_metadata"`
	Description string    `json:"description,omitempty"`
	Price       *string   `json:"price,omitempty"`
	Brand       string    `json:"brand,omitempty"`
	UploadedAt  string    `json:"uploaded_at,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
