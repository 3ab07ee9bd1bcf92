package converter

import "time"

// ProductModel представляет запись таблицы products в PostgreSQL и SQLite.
type ProductModel struct {
	ID         string    `db:"id"`
	Name       string    `db:"name"`
	Category   string    `db:"category"`
	ImageURL   string    `db:"image_url"`
	StorageKey string    `db:"storage_key"`
	Embedding  []float64 `db:"embedding"`
	Metadata   []byte    `db:"metadata"` // JSON, nil если метаданных нет
	CreatedAt  time.Time `db:"created_at"`
}

// SearchHistoryModel представляет запись таблицы search_history.
type SearchHistoryModel struct {
	ID             string    `db:"id"`
	QueryImageURL  string    `db:"query_image_url"`
	QueryEmbedding []float64 `db:"query_embedding"`
	ResultIDs      []string  `db:"result_ids"`
	CreatedAt      time.Time `db:"created_at"`
}

// OutboxEventModel представляет запись таблицы outbox_events.
type OutboxEventModel struct {
	ID          int64      `db:"id"`
	EventID     string     `db:"event_id"`
	EventType   string     `db:"event_type"`
	ProductID   string     `db:"product_id"`
	Payload     []byte     `db:"payload"`
	Status      string     `db:"status"`
	CreatedAt   time.Time  `db:"created_at"`
	ProcessedAt *time.Time `db:"processed_at"`
}
