package http

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/internal/usecase"
	"github.com/DRSN-tech/visual-search/internal/usecase/mocks"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/DRSN-tech/visual-search/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type testAPI struct {
	handler  http.Handler
	products *mocks.MockProductUC
	search   *mocks.MockSearchUC
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	ctrl := gomock.NewController(t)
	api := &testAPI{
		products: mocks.NewMockProductUC(ctrl),
		search:   mocks.NewMockSearchUC(ctrl),
	}

	mux := chi.NewRouter()
	NewRouter(mux, logger.NewNopLogger()).Init(api.products, api.search)
	api.handler = mux

	return api
}

func (a *testAPI) do(t *testing.T, method, path, contentType string, body []byte) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)

	return rec
}

func (a *testAPI) doJSON(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	raw, err := json.Marshal(body)
	require.NoError(t, err)

	return a.do(t, method, path, "application/json", raw)
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func sampleProduct() *domain.Product {
	price := decimal.RequireFromString("19.99")
	return &domain.Product{
		ID:         "p1",
		Name:       "Runner",
		Category:   "shoes",
		ImageURL:   "http://cdn/products/p1.png",
		StorageKey: "products/p1.png",
		Embedding:  domain.Vector{1, 0, 0},
		Metadata:   &domain.Metadata{Brand: "Acme", Price: &price},
		CreatedAt:  time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestHealthz(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodGet, "/healthz", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestAddProduct_JSONWithDataURL(t *testing.T) {
	api := newTestAPI(t)

	api.products.EXPECT().
		AddProduct(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req *usecase.AddProductReq) (*domain.Product, error) {
			assert.Equal(t, "Runner", req.Name)
			assert.Equal(t, "shoes", req.Category)
			require.NotNil(t, req.Image)
			assert.Equal(t, pngHeader, req.Image.Data)
			assert.Equal(t, "image/png", req.Image.MimeType)
			assert.Equal(t, "runner.png", req.Image.Name)
			require.NotNil(t, req.Metadata)
			require.NotNil(t, req.Metadata.Price)
			assert.Equal(t, "19.99", req.Metadata.Price.String())
			return sampleProduct(), nil
		})

	rec := api.doJSON(t, http.MethodPost, "/api/v1/products", map[string]any{
		"name":      "Runner",
		"category":  "shoes",
		"imageData": "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngHeader),
		"filename":  "runner.png",
		"metadata":  map[string]any{"brand": "Acme", "price": 19.99},
	})

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	res := decodeBody[ProductResponse](t, rec)
	assert.Equal(t, "p1", res.ID)
	assert.Equal(t, 3, res.EmbeddingDims)
	require.NotNil(t, res.Metadata)
	assert.Equal(t, "19.99", res.Metadata.Price.String())
	assert.Contains(t, rec.Body.String(), `"price":"19.99"`)
}

func TestAddProduct_Multipart(t *testing.T) {
	api := newTestAPI(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("name", "Tote"))
	require.NoError(t, mw.WriteField("category", "bags"))
	require.NoError(t, mw.WriteField("price", "600"))
	fw, err := mw.CreateFormFile("image", "tote.png")
	require.NoError(t, err)
	_, err = fw.Write(pngHeader)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	api.products.EXPECT().
		AddProduct(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req *usecase.AddProductReq) (*domain.Product, error) {
			assert.Equal(t, "Tote", req.Name)
			assert.Equal(t, "bags", req.Category)
			require.NotNil(t, req.Image)
			assert.Equal(t, pngHeader, req.Image.Data)
			assert.Equal(t, "tote.png", req.Image.Name)
			require.NotNil(t, req.Metadata)
			assert.Equal(t, "600", req.Metadata.Price.String())
			return sampleProduct(), nil
		})

	rec := api.do(t, http.MethodPost, "/api/v1/products", mw.FormDataContentType(), body.Bytes())

	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestAddProduct_RejectsBadInputBeforeUsecase(t *testing.T) {
	api := newTestAPI(t)

	tests := []struct {
		name    string
		body    string
		message string
	}{
		{name: "price precision", body: `{"name":"a","category":"b","imageUrl":"http://x","metadata":{"price":"1.999"}}`, message: e.ErrPricePrecision.Error()},
		{name: "negative price", body: `{"name":"a","category":"b","imageUrl":"http://x","metadata":{"price":-1}}`, message: e.ErrInvalidPrice.Error()},
		{name: "broken base64", body: `{"name":"a","category":"b","imageData":"%%%"}`, message: e.ErrInvalidImageData.Error()},
		{name: "malformed json", body: `{"name":`, message: e.ErrExpectedJSON.Error()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := api.do(t, http.MethodPost, "/api/v1/products", "application/json", []byte(tt.body))

			require.Equal(t, http.StatusBadRequest, rec.Code)
			res := decodeBody[ErrorResponse](t, rec)
			assert.Equal(t, http.StatusBadRequest, res.Code)
			assert.Equal(t, e.KindValidation, res.Kind)
			assert.Equal(t, tt.message, res.Message)
		})
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{name: "not found", err: e.Wrap("/srv/internal/repo.go:42", e.ErrProductNotFound), status: http.StatusNotFound, kind: e.KindNotFound},
		{name: "dimension", err: e.Wrap("ProductUseCase.AddProduct", e.ErrDimensionMismatch), status: http.StatusBadRequest, kind: e.KindValidation},
		{name: "ambiguous query", err: e.ErrAmbiguousQuery, status: http.StatusBadRequest, kind: e.KindInvalidRequest},
		{name: "embedding", err: fmt.Errorf("%w: api key sk-secret rejected", e.ErrEmbedding), status: http.StatusBadGateway, kind: e.KindEmbedding},
		{name: "storage", err: fmt.Errorf("%w: bucket down", e.ErrStorage), status: http.StatusBadGateway, kind: e.KindStorage},
		{name: "internal", err: errors.New("boom"), status: http.StatusInternalServerError, kind: e.KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newTestAPI(t)
			api.products.EXPECT().GetProduct(gomock.Any(), "p1").Return(nil, tt.err)

			rec := api.do(t, http.MethodGet, "/api/v1/products/p1", "", nil)

			require.Equal(t, tt.status, rec.Code)
			res := decodeBody[ErrorResponse](t, rec)
			assert.Equal(t, tt.kind, res.Kind)
			assert.NotContains(t, res.Message, "secret")
			assert.NotContains(t, res.Message, ".go:")
		})
	}
}

func TestListProducts_PassesCategory(t *testing.T) {
	api := newTestAPI(t)

	api.products.EXPECT().ListProducts(gomock.Any(), "shoes").Return([]*domain.Product{sampleProduct()}, nil)
	api.products.EXPECT().ListProducts(gomock.Any(), "").Return(nil, nil)

	rec := api.do(t, http.MethodGet, "/api/v1/products?category=shoes", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	res := decodeBody[ProductListResponse](t, rec)
	require.Len(t, res.Products, 1)
	assert.Equal(t, "Runner", res.Products[0].Name)

	rec = api.do(t, http.MethodGet, "/api/v1/products", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"products":[]}`, rec.Body.String())
}

func TestBulkAddProducts(t *testing.T) {
	api := newTestAPI(t)

	api.products.EXPECT().
		BulkAddProducts(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req *usecase.BulkAddProductsReq) (*usecase.BulkAddProductsRes, error) {
			require.Len(t, req.Items, 3)
			assert.Equal(t, "shoes", req.Items[0].Category)
			assert.Equal(t, "bags", req.Items[1].Category)
			assert.Equal(t, "shoes", req.Items[2].Category)
			return &usecase.BulkAddProductsRes{
				IDs:    []string{"a", "c"},
				Failed: 1,
				Errors: []usecase.BulkItemError{{Index: 1, Err: e.Wrap("/x.go:1", e.ErrCategoryRequired)}},
			}, nil
		})

	rec := api.doJSON(t, http.MethodPost, "/api/v1/products/bulk", map[string]any{
		"category": "shoes",
		"items": []map[string]any{
			{"name": "a", "imageUrl": "http://img/a.png"},
			{"name": "b", "category": "bags", "imageUrl": "http://img/b.png"},
			{"name": "c", "imageUrl": "http://img/c.png"},
		},
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decodeBody[BulkAddResponse](t, rec)
	assert.Equal(t, []string{"a", "c"}, res.IDs)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, BulkItemErrorDTO{Index: 1, Kind: e.KindValidation, Message: e.ErrCategoryRequired.Error()}, res.Errors[0])
}

func TestBulkAddProducts_EmptyBatch(t *testing.T) {
	api := newTestAPI(t)

	rec := api.doJSON(t, http.MethodPost, "/api/v1/products/bulk", map[string]any{"items": []any{}})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, e.ErrNoProducts.Error(), decodeBody[ErrorResponse](t, rec).Message)
}

func TestUploadImage(t *testing.T) {
	api := newTestAPI(t)

	api.products.EXPECT().
		UploadImage(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req *usecase.UploadImageReq) (*usecase.UploadImageRes, error) {
			require.NotNil(t, req.Image)
			assert.Equal(t, "image/jpeg", req.Image.MimeType)
			assert.Empty(t, req.ImageURL)
			return &usecase.UploadImageRes{URL: "http://cdn/k.jpg", Key: "products/k.jpg", Embedding: domain.Vector{0.6, 0.8}}, nil
		})

	rec := api.doJSON(t, http.MethodPost, "/api/v1/upload", map[string]any{
		"imageData": base64.StdEncoding.EncodeToString([]byte("\xff\xd8\xff\xe0 jpeg")),
		"filename":  "k.jpg",
		"mimetype":  "image/jpeg",
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"url":"http://cdn/k.jpg","key":"products/k.jpg","embedding":[0.6,0.8],"dims":2}`, rec.Body.String())
}

func TestSearch(t *testing.T) {
	api := newTestAPI(t)

	api.search.EXPECT().
		Search(gomock.Any(), &usecase.SearchReq{ImageURL: "http://img/q.png", TopK: 5, MinScore: 0.5, Category: "shoes"}).
		Return(&usecase.SearchRes{
			QueryEmbeddingDims: 3,
			HistoryID:          "h1",
			Results:            []usecase.SearchResult{{Product: sampleProduct(), Score: 0.93}},
		}, nil)

	rec := api.doJSON(t, http.MethodPost, "/api/v1/search", map[string]any{
		"imageUrl": "http://img/q.png",
		"topK":     5,
		"minScore": 0.5,
		"category": "shoes",
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decodeBody[SearchResponse](t, rec)
	assert.Equal(t, 3, res.QueryEmbeddingDims)
	assert.Equal(t, "h1", res.HistoryID)
	require.Len(t, res.Results, 1)
	assert.Equal(t, "p1", res.Results[0].ID)
	assert.InDelta(t, 0.93, res.Results[0].Score, 1e-9)
}

func TestSearch_InvalidRequest(t *testing.T) {
	api := newTestAPI(t)

	api.search.EXPECT().Search(gomock.Any(), gomock.Any()).Return(nil, e.Wrap("SearchUseCase.Search", e.ErrNoQueryInput))

	rec := api.doJSON(t, http.MethodPost, "/api/v1/search", map[string]any{"topK": 3})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	res := decodeBody[ErrorResponse](t, rec)
	assert.Equal(t, e.KindInvalidRequest, res.Kind)
	assert.Equal(t, e.ErrNoQueryInput.Error(), res.Message)
}

func TestSearchHistory(t *testing.T) {
	api := newTestAPI(t)
	ts := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	api.search.EXPECT().ListHistory(gomock.Any(), 2).Return([]*domain.SearchHistory{
		{ID: "h2", QueryImageURL: "u", QueryEmbedding: domain.Vector{1, 0}, ResultIDs: nil, Timestamp: ts},
	}, nil)

	rec := api.do(t, http.MethodGet, "/api/v1/search/history?limit=2", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	res := decodeBody[HistoryResponse](t, rec)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "h2", res.Records[0].ID)
	assert.Equal(t, []string{}, res.Records[0].ResultIDs)

	rec = api.do(t, http.MethodGet, "/api/v1/search/history?limit=two", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	api.search.EXPECT().
		LogSearch(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, record *domain.SearchHistory) (*domain.SearchHistory, error) {
			assert.Equal(t, domain.Vector{0, 1}, record.QueryEmbedding)
			assert.Equal(t, []string{"p1"}, record.ResultIDs)
			saved := *record
			saved.ID = "h3"
			return &saved, nil
		})

	rec = api.doJSON(t, http.MethodPost, "/api/v1/search/history", map[string]any{
		"queryImageUrl":  "http://img/q.png",
		"queryEmbedding": []float64{0, 1},
		"resultIds":      []string{"p1"},
		"timestamp":      ts,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "h3", decodeBody[HistoryRecordDTO](t, rec).ID)
}

func TestDecodeImageData(t *testing.T) {
	raw := base64.StdEncoding.EncodeToString(pngHeader)

	data, mimeType, err := decodeImageData("data:image/png;base64," + raw)
	require.NoError(t, err)
	assert.Equal(t, pngHeader, data)
	assert.Equal(t, "image/png", mimeType)

	data, mimeType, err = decodeImageData(raw)
	require.NoError(t, err)
	assert.Equal(t, pngHeader, data)
	assert.Empty(t, mimeType)

	_, _, err = decodeImageData("data:image/png," + raw)
	assert.ErrorIs(t, err, e.ErrInvalidImageData)
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr error
	}{
		{in: "", want: ""},
		{in: "599.99", want: "599.99"},
		{in: " 600 ", want: "600"},
		{in: "1.50", want: "1.5"},
		{in: "1.999", wantErr: e.ErrPricePrecision},
		{in: "-5", wantErr: e.ErrInvalidPrice},
		{in: "abc", wantErr: e.ErrInvalidPrice},
		{in: "1000000001", wantErr: e.ErrInvalidPrice},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parsePrice(tt.in)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			if tt.want == "" {
				assert.Nil(t, got)
				return
			}
			assert.Equal(t, tt.want, got.String())
		})
	}
}
