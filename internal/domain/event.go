package domain

import "time"

const EventTypeProductIndexed = "product.indexed"

// ProductEvent — событие каталога, которое уходит в Kafka после того,
// как товар сохранён и в каталоге, и в векторном индексе.
type ProductEvent struct {
	EventID    string    `json:"event_id"`
	EventType  string    `json:"event_type"`
	ProductID  string    `json:"product_id"`
	Category   string    `json:"category"`
	ImageURL   string    `json:"image_url"`
	OccurredAt time.Time `json:"occurred_at"`
}

func NewProductIndexedEvent(eventID string, product *Product) *ProductEvent {
	return &ProductEvent{
		EventID:    eventID,
		EventType:  EventTypeProductIndexed,
		ProductID:  product.ID,
		Category:   product.Category,
		ImageURL:   product.ImageURL,
		OccurredAt: time.Now().UTC(),
	}
}
