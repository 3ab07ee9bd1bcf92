package qdrant

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/jimlawless/whereami"
	"github.com/qdrant/go-client/qdrant"
)

const (
	payloadProductID = "product_id"
	payloadCategory  = "category"
	payloadSeq       = "seq"
)

// PointsClient — часть qdrant.Client, которой пользуется индекс.
type PointsClient interface {
	Upsert(ctx context.Context, request *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Query(ctx context.Context, request *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
	Delete(ctx context.Context, request *qdrant.DeletePoints) (*qdrant.UpdateResult, error)
	Count(ctx context.Context, request *qdrant.CountPoints) (uint64, error)
}

// VectorIndex хранит векторы товаров в коллекции Qdrant (cosine, размер D).
// Поиск по сходству приближённый (HNSW), фильтр по категории точный.
// В payload лежит seq, монотонный номер вставки: внутри выдачи
// равные score упорядочиваются по нему.
type VectorIndex struct {
	client     PointsClient
	collection string
	dim        int
	lastSeq    atomic.Int64
}

func NewVectorIndex(client PointsClient, collection string, dim int) *VectorIndex {
	return &VectorIndex{
		client:     client,
		collection: collection,
		dim:        dim,
	}
}

func (v *VectorIndex) Insert(ctx context.Context, id string, vector domain.Vector, category string) error {
	if err := vector.Validate(v.dim); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	point := &qdrant.PointStruct{
		Id:      qdrant.NewIDUUID(id),
		Vectors: qdrant.NewVectors(vector.Float32()...),
		Payload: map[string]*qdrant.Value{
			payloadProductID: qdrant.NewValueString(id),
			payloadCategory:  qdrant.NewValueString(category),
			payloadSeq:       qdrant.NewValueInt(v.nextSeq()),
		},
	}

	wait := true
	_, err := v.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: v.collection,
		Wait:           &wait,
		Points:         []*qdrant.PointStruct{point},
	})
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), fmt.Errorf("%w: %w", e.ErrStorage, err))
	}

	return nil
}

func (v *VectorIndex) Query(ctx context.Context, vector domain.Vector, topK int, category string) ([]domain.Match, error) {
	if err := vector.Validate(v.dim); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	if topK <= 0 {
		return []domain.Match{}, nil
	}

	limit := uint64(topK)
	req := &qdrant.QueryPoints{
		CollectionName: v.collection,
		Query:          qdrant.NewQuery(vector.Float32()...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if category != "" {
		req.Filter = &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch(payloadCategory, category)},
		}
	}

	points, err := v.client.Query(ctx, req)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), fmt.Errorf("%w: %w", e.ErrStorage, err))
	}

	type ranked struct {
		match domain.Match
		seq   int64
	}
	res := make([]ranked, 0, len(points))
	for _, p := range points {
		id := p.GetPayload()[payloadProductID].GetStringValue()
		if id == "" {
			id = p.GetId().GetUuid()
		}
		res = append(res, ranked{
			match: domain.Match{ID: id, Score: max(-1, min(1, float64(p.GetScore())))},
			seq:   p.GetPayload()[payloadSeq].GetIntegerValue(),
		})
	}

	slices.SortStableFunc(res, func(a, b ranked) int {
		if c := cmp.Compare(b.match.Score, a.match.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.seq, b.seq)
	})

	matches := make([]domain.Match, 0, min(len(res), topK))
	for _, r := range res[:min(len(res), topK)] {
		matches = append(matches, r.match)
	}

	return matches, nil
}

// Remove удаляет точку. Отсутствующий id не считается ошибкой.
func (v *VectorIndex) Remove(ctx context.Context, id string) error {
	wait := true
	_, err := v.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: v.collection,
		Wait:           &wait,
		Points:         qdrant.NewPointsSelector(qdrant.NewIDUUID(id)),
	})
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), fmt.Errorf("%w: %w", e.ErrStorage, err))
	}

	return nil
}

func (v *VectorIndex) Count(ctx context.Context) (int, error) {
	exact := true
	n, err := v.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: v.collection,
		Exact:          &exact,
	})
	if err != nil {
		return 0, e.Wrap(whereami.WhereAmI(), fmt.Errorf("%w: %w", e.ErrStorage, err))
	}

	return int(n), nil
}

// nextSeq возвращает строго возрастающий номер, привязанный ко времени,
// чтобы порядок сохранялся и между перезапусками процесса.
func (v *VectorIndex) nextSeq() int64 {
	for {
		last := v.lastSeq.Load()
		next := max(time.Now().UnixNano(), last+1)
		if v.lastSeq.CompareAndSwap(last, next) {
			return next
		}
	}
}
