package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/google/uuid"
	"github.com/jimlawless/whereami"
)

// ProductRepo — каталог в памяти для разработки и тестов. Наружу отдаются копии.
type ProductRepo struct {
	mu       sync.RWMutex
	products map[string]*domain.Product
	order    []string
}

func NewProductRepo() *ProductRepo {
	return &ProductRepo{
		products: make(map[string]*domain.Product),
	}
}

func (r *ProductRepo) Insert(_ context.Context, product *domain.Product) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, err := r.insertLocked(product)
	if err != nil {
		return "", e.Wrap(whereami.WhereAmI(), err)
	}

	return id, nil
}

// BulkInsert вставляет все товары или ни одного.
func (r *ProductRepo) BulkInsert(_ context.Context, products []*domain.Product) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]struct{}, len(products))
	for _, p := range products {
		if p.ID == "" {
			continue
		}
		if _, ok := r.products[p.ID]; ok {
			return nil, e.Wrap(whereami.WhereAmI(), fmt.Errorf("%w: %s", e.ErrProductExists, p.ID))
		}
		if _, ok := seen[p.ID]; ok {
			return nil, e.Wrap(whereami.WhereAmI(), fmt.Errorf("%w: %s", e.ErrProductExists, p.ID))
		}
		seen[p.ID] = struct{}{}
	}

	ids := make([]string, 0, len(products))
	for _, p := range products {
		id, err := r.insertLocked(p)
		if err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}
		ids = append(ids, id)
	}

	return ids, nil
}

func (r *ProductRepo) Get(_ context.Context, id string) (*domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.products[id]
	if !ok {
		return nil, e.Wrap(whereami.WhereAmI(), e.ErrProductNotFound)
	}

	return p.Clone(), nil
}

func (r *ProductRepo) GetMany(_ context.Context, ids []string) (map[string]*domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res := make(map[string]*domain.Product, len(ids))
	for _, id := range ids {
		if p, ok := r.products[id]; ok {
			res[id] = p.Clone()
		}
	}

	return res, nil
}

func (r *ProductRepo) List(_ context.Context, category string) ([]*domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res := make([]*domain.Product, 0, len(r.order))
	for _, id := range r.order {
		p := r.products[id]
		if category != "" && p.Category != category {
			continue
		}
		res = append(res, p.Clone())
	}

	return res, nil
}

// Delete удаляет товар. Отсутствующий id не считается ошибкой.
func (r *ProductRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.products[id]; !ok {
		return nil
	}

	delete(r.products, id)
	r.order = slices.DeleteFunc(r.order, func(cur string) bool { return cur == id })

	return nil
}

func (r *ProductRepo) insertLocked(product *domain.Product) (string, error) {
	stored := product.Clone()
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}

	if _, ok := r.products[stored.ID]; ok {
		return "", fmt.Errorf("%w: %s", e.ErrProductExists, stored.ID)
	}

	r.products[stored.ID] = stored
	r.order = append(r.order, stored.ID)

	return stored.ID, nil
}
