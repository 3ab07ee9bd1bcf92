package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product описывает товар каталога вместе с эмбеддингом его изображения.
// После сохранения товар не изменяется: повторная загрузка того же изображения создаёт новый товар.
type Product struct {
	ID         string
	Name       string
	Category   string // единственный атрибут, по которому фильтруется поиск
	ImageURL   string
	StorageKey string
	Embedding  Vector
	Metadata   *Metadata
	CreatedAt  time.Time
}

// Metadata — дополнительные атрибуты товара, только для отображения, в ранжировании не участвуют.
type Metadata struct {
	Description string           `json:"description,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	Brand       string           `json:"brand,omitempty"`
	UploadedAt  string           `json:"uploadedAt,omitempty"`
}

func NewProduct(name, category, imageURL, storageKey string, embedding Vector, metadata *Metadata) *Product {
	return &Product{
		Name:       name,
		Category:   category,
		ImageURL:   imageURL,
		StorageKey: storageKey,
		Embedding:  embedding,
		Metadata:   metadata,
	}
}

// Clone возвращает глубокую копию товара, чтобы хранилища не отдавали наружу свои срезы.
func (p *Product) Clone() *Product {
	if p == nil {
		return nil
	}

	c := *p
	c.Embedding = p.Embedding.Clone()
	if p.Metadata != nil {
		m := *p.Metadata
		c.Metadata = &m
	}

	return &c
}
