package grpc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/DRSN-tech/visual-search/internal/cfg"
	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/internal/usecase"
	"github.com/DRSN-tech/visual-search/internal/usecase/mocks"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/DRSN-tech/visual-search/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

type testServer struct {
	conn     *grpc.ClientConn
	products *mocks.MockProductUC
	search   *mocks.MockSearchUC
}

func startTestServer(t *testing.T) *testServer {
	t.Helper()

	ctrl := gomock.NewController(t)
	ts := &testServer{
		products: mocks.NewMockProductUC(ctrl),
		search:   mocks.NewMockSearchUC(ctrl),
	}

	lis := bufconn.Listen(1 << 20)
	srv := NewGRPCServer(&cfg.GRPCConfig{NetworkMode: "tcp"}, logger.NewNopLogger())
	srv.RegisterServices(ts.products, ts.search)

	go func() { _ = srv.Serve(lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	ts.conn = conn

	t.Cleanup(func() {
		_ = conn.Close()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Stop(ctx)
	})

	return ts
}

func TestHealth(t *testing.T) {
	ts := startTestServer(t)

	res, err := healthpb.NewHealthClient(ts.conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, res.GetStatus())
}

func TestGetProducts(t *testing.T) {
	ts := startTestServer(t)

	ts.products.EXPECT().GetProduct(gomock.Any(), "p1").Return(&domain.Product{
		ID: "p1", Name: "Runner", Category: "shoes", Embedding: domain.Vector{1, 0},
	}, nil)
	ts.products.EXPECT().GetProduct(gomock.Any(), "missing").Return(nil, e.Wrap("repo", e.ErrProductNotFound))

	req, err := structpb.NewStruct(map[string]any{"ids": []any{"p1", "missing"}})
	require.NoError(t, err)

	out := new(structpb.Struct)
	require.NoError(t, ts.conn.Invoke(context.Background(), GetProductsFullMethod, req, out))

	got := out.AsMap()
	products := got["products"].([]any)
	require.Len(t, products, 1)
	assert.Equal(t, "Runner", products[0].(map[string]any)["name"])
	assert.Equal(t, float64(2), products[0].(map[string]any)["embeddingDims"])
	assert.Equal(t, []any{"missing"}, got["productsNotFound"])
}

func TestSearchSimilar(t *testing.T) {
	ts := startTestServer(t)

	ts.search.EXPECT().
		Search(gomock.Any(), &usecase.SearchReq{ProductID: "p1", TopK: 2, MinScore: 0.1}).
		Return(&usecase.SearchRes{
			QueryEmbeddingDims: 2,
			Results: []usecase.SearchResult{
				{Product: &domain.Product{ID: "p1", Name: "Runner"}, Score: 1},
				{Product: &domain.Product{ID: "p2", Name: "Trail"}, Score: 0.7},
			},
		}, nil)

	req, err := structpb.NewStruct(map[string]any{"productId": "p1", "topK": 2, "minScore": 0.1})
	require.NoError(t, err)

	out := new(structpb.Struct)
	require.NoError(t, ts.conn.Invoke(context.Background(), SearchSimilarFullMethod, req, out))

	got := out.AsMap()
	assert.Equal(t, float64(2), got["queryEmbeddingDims"])
	results := got["results"].([]any)
	require.Len(t, results, 2)
	assert.Equal(t, "p1", results[0].(map[string]any)["id"])
	assert.Equal(t, 0.7, results[1].(map[string]any)["score"])
}

func TestSearchSimilar_ErrorCodes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code codes.Code
	}{
		{name: "invalid", err: e.ErrAmbiguousQuery, code: codes.InvalidArgument},
		{name: "not found", err: e.ErrProductNotFound, code: codes.NotFound},
		{name: "embedding", err: e.ErrEmptyVector, code: codes.Unavailable},
		{name: "internal", err: context.Canceled, code: codes.Internal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := startTestServer(t)
			ts.search.EXPECT().Search(gomock.Any(), gomock.Any()).Return(nil, tt.err)

			err := ts.conn.Invoke(context.Background(), SearchSimilarFullMethod, &structpb.Struct{}, new(structpb.Struct))

			require.Error(t, err)
			assert.Equal(t, tt.code, status.Code(err))
		})
	}
}
