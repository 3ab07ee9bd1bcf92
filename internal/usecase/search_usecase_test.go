package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/DRSN-tech/visual-search/internal/cfg"
	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/internal/usecase"
	"github.com/DRSN-tech/visual-search/internal/usecase/mocks"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/DRSN-tech/visual-search/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// seedABC кладёт в каталог и индекс товары A, B (shoes) и C (bags).
func seedABC(t *testing.T, f *fixture) map[string]string {
	t.Helper()

	ids := make(map[string]string)
	for _, p := range []struct {
		name, category string
		vector         domain.Vector
	}{
		{"A", "shoes", domain.Vector{1, 0}},
		{"B", "shoes", domain.Vector{0.9, 0.1}},
		{"C", "bags", domain.Vector{0, 1}},
	} {
		product, err := f.uc.AddProduct(context.Background(), &usecase.AddProductReq{
			Name:       p.name,
			Category:   p.category,
			ImageURL:   "http://cdn/" + p.name,
			StorageKey: p.name,
			Embedding:  p.vector,
		})
		require.NoError(t, err)
		ids[p.name] = product.ID
	}

	return ids
}

func names(results []usecase.SearchResult) []string {
	res := make([]string, len(results))
	for i, r := range results {
		res[i] = r.Product.Name
	}
	return res
}

func TestSearch_ByImageURLWithCategory(t *testing.T) {
	f := newFixture(t)
	seedABC(t, f)
	ctx := context.Background()

	f.ml.EXPECT().VectorizeRequest(gomock.Any(), gomock.Any()).Return(vectorRes(1, 0), nil).Times(2)

	res, err := f.search.Search(ctx, &usecase.SearchReq{ImageURL: "http://q.jpg", TopK: 2, Category: "shoes"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.QueryEmbeddingDims)
	require.Equal(t, []string{"A", "B"}, names(res.Results))
	assert.InDelta(t, 1.0, res.Results[0].Score, 1e-12)
	assert.InDelta(t, 0.9939, res.Results[1].Score, 1e-4)

	res, err = f.search.Search(ctx, &usecase.SearchReq{ImageURL: "http://q.jpg", TopK: 2, Category: "bags"})
	require.NoError(t, err)
	require.Equal(t, []string{"C"}, names(res.Results))
	assert.InDelta(t, 0.0, res.Results[0].Score, 1e-12)
}

func TestSearch_MinScoreIsInclusiveAndMonotonic(t *testing.T) {
	f := newFixture(t)
	ids := seedABC(t, f)
	ctx := context.Background()

	low, err := f.search.Search(ctx, &usecase.SearchReq{ProductID: ids["A"], MinScore: 0})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, names(low.Results))

	high, err := f.search.Search(ctx, &usecase.SearchReq{ProductID: ids["A"], MinScore: 0.5})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, names(high.Results))

	exact, err := f.search.Search(ctx, &usecase.SearchReq{ProductID: ids["A"], MinScore: low.Results[1].Score})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, names(exact.Results))
}

func TestSearch_ByProductIDWritesHistory(t *testing.T) {
	f := newFixture(t)
	ids := seedABC(t, f)
	ctx := context.Background()

	res, err := f.search.Search(ctx, &usecase.SearchReq{ProductID: ids["C"], TopK: 1})
	require.NoError(t, err)
	require.Equal(t, []string{"C"}, names(res.Results))
	assert.InDelta(t, 1.0, res.Results[0].Score, 1e-12)

	history, err := f.search.ListHistory(ctx, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, res.HistoryID, history[0].ID)
	assert.Empty(t, history[0].QueryImageURL)
	assert.Equal(t, []string{ids["C"]}, history[0].ResultIDs)
	assert.Equal(t, domain.Vector{0, 1}, history[0].QueryEmbedding)
	assert.False(t, history[0].Timestamp.IsZero())
}

func TestSearch_ByImageStoresQueryImage(t *testing.T) {
	f := newFixture(t)
	seedABC(t, f)
	ctx := context.Background()

	f.images.EXPECT().Store(gomock.Any(), gomock.Any()).
		Return(domain.NewStoredImage("http://cdn/query.jpg", "queries/query.jpg"), nil)
	f.ml.EXPECT().VectorizeRequest(gomock.Any(), gomock.Any()).Return(vectorRes(0, 1), nil)

	res, err := f.search.Search(ctx, &usecase.SearchReq{Image: image("query"), TopK: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"C"}, names(res.Results))

	history, err := f.search.ListHistory(ctx, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "http://cdn/query.jpg", history[0].QueryImageURL)
}

func TestSearch_ByImageCleansUpQueryImageOnLateFailure(t *testing.T) {
	f := newFixture(t)
	seedABC(t, f)

	ctrl := gomock.NewController(t)
	history := mocks.NewMockSearchHistoryRepository(ctrl)
	history.EXPECT().Append(gomock.Any(), gomock.Any()).Return(nil, errors.New("disk full"))

	search := usecase.NewSearchUC(
		f.catalog, history, f.index, f.ml, f.images, nil, logger.NewNopLogger(),
		&cfg.IndexCfg{VectorSize: testDim},
		&cfg.SearchCfg{DefaultTopK: 20},
	)

	f.images.EXPECT().Store(gomock.Any(), gomock.Any()).
		Return(domain.NewStoredImage("http://cdn/query.jpg", "queries/query.jpg"), nil)
	f.ml.EXPECT().VectorizeRequest(gomock.Any(), gomock.Any()).Return(vectorRes(0, 1), nil)
	f.images.EXPECT().CleanupImages([]string{"queries/query.jpg"})

	_, err := search.Search(context.Background(), &usecase.SearchReq{Image: image("query"), TopK: 1})
	require.Error(t, err)
}

func TestSearch_ByImageURLDoesNotCleanUp(t *testing.T) {
	f := newFixture(t)
	seedABC(t, f)

	ctrl := gomock.NewController(t)
	index := mocks.NewMockVectorIndex(ctrl)
	index.EXPECT().Query(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, e.ErrStorage)

	search := usecase.NewSearchUC(
		f.catalog, f.history, index, f.ml, f.images, nil, logger.NewNopLogger(),
		&cfg.IndexCfg{VectorSize: testDim},
		&cfg.SearchCfg{DefaultTopK: 20},
	)

	f.ml.EXPECT().VectorizeRequest(gomock.Any(), gomock.Any()).Return(vectorRes(0, 1), nil)

	_, err := search.Search(context.Background(), &usecase.SearchReq{ImageURL: "http://q.jpg"})
	require.ErrorIs(t, err, e.ErrStorage)
}

func TestSearch_InvalidInput(t *testing.T) {
	f := newFixture(t)
	seedABC(t, f)

	tests := []struct {
		name    string
		req     usecase.SearchReq
		wantErr error
	}{
		{name: "no input", req: usecase.SearchReq{TopK: 5}, wantErr: e.ErrNoQueryInput},
		{name: "url and product", req: usecase.SearchReq{ImageURL: "u", ProductID: "p"}, wantErr: e.ErrAmbiguousQuery},
		{name: "unknown product", req: usecase.SearchReq{ProductID: "missing"}, wantErr: e.ErrProductNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.search.Search(context.Background(), &tt.req)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}

	history, err := f.search.ListHistory(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestSearch_TopKDefaults(t *testing.T) {
	f := newFixture(t)
	ids := seedABC(t, f)
	ctx := context.Background()

	res, err := f.search.Search(ctx, &usecase.SearchReq{ProductID: ids["A"], TopK: 0})
	require.NoError(t, err)
	assert.Len(t, res.Results, 3)

	res, err = f.search.Search(ctx, &usecase.SearchReq{ProductID: ids["A"], TopK: -3})
	require.NoError(t, err)
	assert.Empty(t, res.Results)
}

func TestSearch_TopKAboveConfiguredMaximum(t *testing.T) {
	f := newFixture(t)
	ids := seedABC(t, f)
	ctx := context.Background()

	_, err := f.search.Search(ctx, &usecase.SearchReq{ProductID: ids["A"], TopK: 101})
	require.ErrorIs(t, err, e.ErrTopKTooLarge)
	assert.Equal(t, e.KindValidation, e.Kind(err))

	history, err := f.search.ListHistory(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, history)

	unbounded := usecase.NewSearchUC(
		f.catalog, f.history, f.index, f.ml, f.images, nil, logger.NewNopLogger(),
		&cfg.IndexCfg{VectorSize: testDim},
		&cfg.SearchCfg{DefaultTopK: 20},
	)
	res, err := unbounded.Search(ctx, &usecase.SearchReq{ProductID: ids["A"], TopK: 1000})
	require.NoError(t, err)
	assert.Len(t, res.Results, 3)
}

func TestSearch_SkipsIndexedButMissingProducts(t *testing.T) {
	f := newFixture(t)
	ids := seedABC(t, f)
	ctx := context.Background()

	require.NoError(t, f.catalog.Delete(ctx, ids["B"]))

	res, err := f.search.Search(ctx, &usecase.SearchReq{ProductID: ids["A"]})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "C"}, names(res.Results))

	history, err := f.search.ListHistory(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{ids["A"], ids["C"]}, history[0].ResultIDs)
}

func TestSearch_HistoryFailureFailsQuery(t *testing.T) {
	f := newFixture(t)
	ids := seedABC(t, f)

	ctrl := gomock.NewController(t)
	history := mocks.NewMockSearchHistoryRepository(ctrl)
	history.EXPECT().Append(gomock.Any(), gomock.Any()).Return(nil, errors.New("disk full"))

	search := usecase.NewSearchUC(
		f.catalog, history, f.index, f.ml, f.images, nil, logger.NewNopLogger(),
		&cfg.IndexCfg{VectorSize: testDim},
		&cfg.SearchCfg{DefaultTopK: 20},
	)

	_, err := search.Search(context.Background(), &usecase.SearchReq{ProductID: ids["A"]})
	require.Error(t, err)
}

func TestLogSearch_RejectsWrongDimension(t *testing.T) {
	f := newFixture(t)

	_, err := f.search.LogSearch(context.Background(), domain.NewSearchHistory("u", domain.Vector{1}, nil))
	assert.ErrorIs(t, err, e.ErrDimensionMismatch)
}
