package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/jimlawless/whereami"
)

type entry struct {
	id       string
	vector   domain.Vector
	norm     float64
	category string
}

// snapshot неизменяем после публикации. Срезы entries и byCategory могут делить
// backing array со следующим снимком: писатель добавляет элементы только за пределами
// длины опубликованного среза, поэтому читатели их не видят.
type snapshot struct {
	entries    []*entry // в порядке вставки
	byCategory map[string][]*entry
}

// VectorIndex — точный индекс с полным перебором по косинусному сходству.
// Читатели работают без блокировок с последним опубликованным снимком,
// писатели сериализуются мьютексом и публикуют новый снимок.
type VectorIndex struct {
	dim  int
	mu   sync.Mutex
	ids  map[string]*entry // только под mu
	snap atomic.Pointer[snapshot]
}

func NewVectorIndex(dim int) *VectorIndex {
	idx := &VectorIndex{
		dim: dim,
		ids: make(map[string]*entry),
	}
	idx.snap.Store(&snapshot{byCategory: map[string][]*entry{}})

	return idx
}

// Insert добавляет вектор. Повторная вставка существующего id заменяет вектор
// и категорию, сохраняя исходную позицию в порядке вставки.
func (v *VectorIndex) Insert(ctx context.Context, id string, vector domain.Vector, category string) error {
	if err := vector.Validate(v.dim); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	if err := ctx.Err(); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	ent := &entry{
		id:       id,
		vector:   vector.Clone(),
		norm:     vector.Norm(),
		category: category,
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	old := v.snap.Load()

	if _, ok := v.ids[id]; ok {
		entries := make([]*entry, len(old.entries))
		for i, cur := range old.entries {
			if cur.id == id {
				entries[i] = ent
				continue
			}
			entries[i] = cur
		}
		v.ids[id] = ent
		v.snap.Store(newSnapshot(entries))
		return nil
	}

	byCategory := make(map[string][]*entry, len(old.byCategory)+1)
	for c, list := range old.byCategory {
		byCategory[c] = list
	}
	byCategory[category] = append(old.byCategory[category], ent)

	v.ids[id] = ent
	v.snap.Store(&snapshot{
		entries:    append(old.entries, ent),
		byCategory: byCategory,
	})

	return nil
}

// Query возвращает topK ближайших векторов по убыванию сходства, при равенстве
// раньше идёт вектор, вставленный раньше. Пустая категория означает все векторы.
func (v *VectorIndex) Query(ctx context.Context, vector domain.Vector, topK int, category string) ([]domain.Match, error) {
	if err := vector.Validate(v.dim); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	if err := ctx.Err(); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	if topK <= 0 {
		return []domain.Match{}, nil
	}

	snap := v.snap.Load()
	candidates := snap.entries
	if category != "" {
		candidates = snap.byCategory[category]
	}

	norm := vector.Norm()
	matches := make([]domain.Match, len(candidates))
	for i, ent := range candidates {
		matches[i] = domain.Match{
			ID:    ent.id,
			Score: domain.CosineWithNorms(vector, ent.vector, norm, ent.norm),
		}
	}

	slices.SortStableFunc(matches, func(a, b domain.Match) int {
		return cmp.Compare(b.Score, a.Score)
	})

	if len(matches) > topK {
		matches = matches[:topK]
	}

	return matches, nil
}

// Remove удаляет вектор. Отсутствующий id не считается ошибкой.
func (v *VectorIndex) Remove(_ context.Context, id string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if _, ok := v.ids[id]; !ok {
		return nil
	}
	delete(v.ids, id)

	old := v.snap.Load()
	entries := make([]*entry, 0, len(old.entries)-1)
	for _, ent := range old.entries {
		if ent.id != id {
			entries = append(entries, ent)
		}
	}
	v.snap.Store(newSnapshot(entries))

	return nil
}

func (v *VectorIndex) Count(_ context.Context) (int, error) {
	return v.Len(), nil
}

func (v *VectorIndex) Len() int {
	return len(v.snap.Load().entries)
}

// newSnapshot строит снимок с собственными backing array.
func newSnapshot(entries []*entry) *snapshot {
	byCategory := make(map[string][]*entry)
	for _, ent := range entries {
		byCategory[ent.category] = append(byCategory[ent.category], ent)
	}

	return &snapshot{
		entries:    entries,
		byCategory: byCategory,
	}
}
