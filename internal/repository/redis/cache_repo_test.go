package redis

import (
	"context"
	"testing"
	"time"

	"github.com/DRSN-tech/visual-search/internal/cfg"
	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/internal/repository/redis/converter"
	"github.com/DRSN-tech/visual-search/pkg/logger"
	"github.com/alicebob/miniredis/v2"
	r "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*CacheRepo, *miniredis.Miniredis) {
	t.Helper()

	server := miniredis.RunT(t)
	client := r.NewClient(&r.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := NewCacheRepo(client, converter.ProductConverter{},
		&cfg.RedisCfg{ProductTTL: time.Minute}, logger.NewNopLogger())

	return repo, server
}

func TestCacheRepo_SetThenGet(t *testing.T) {
	repo, server := newTestCache(t)
	ctx := context.Background()

	price := decimal.RequireFromString("10.50")
	products := []*domain.Product{
		{
			ID: "a", Name: "Runner", Category: "shoes", Embedding: domain.Vector{1, 0},
			Metadata:  &domain.Metadata{Brand: "Acme", Price: &price},
			CreatedAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		},
		{ID: "b", Name: "Tote", Category: "bags", Embedding: domain.Vector{0, 1}},
	}
	require.NoError(t, repo.SetProducts(ctx, products))

	assert.True(t, server.Exists("product:a"))
	assert.Equal(t, time.Minute, server.TTL("product:a"))

	got, err := repo.GetProducts(ctx, []string{"a", "missing", "b"})
	require.NoError(t, err)
	require.Len(t, got, 2)

	a := got["a"]
	require.NotNil(t, a)
	assert.Equal(t, "Runner", a.Name)
	assert.Equal(t, domain.Vector{1, 0}, a.Embedding)
	assert.True(t, products[0].CreatedAt.Equal(a.CreatedAt))
	require.NotNil(t, a.Metadata)
	assert.Equal(t, "Acme", a.Metadata.Brand)
	assert.True(t, price.Equal(*a.Metadata.Price))

	assert.Nil(t, got["b"].Metadata)
}

func TestCacheRepo_MismatchedEntryIsEvicted(t *testing.T) {
	repo, server := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, server.Set("product:x", `{"id":"y","name":"wrong"}`))
	require.NoError(t, server.Set("product:z", `not json`))

	got, err := repo.GetProducts(ctx, []string{"x", "z"})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.False(t, server.Exists("product:x"))
}

func TestCacheRepo_EmptyInput(t *testing.T) {
	repo, _ := newTestCache(t)
	ctx := context.Background()

	got, err := repo.GetProducts(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, repo.SetProducts(ctx, nil))
}

func TestCacheRepo_UnavailableServer(t *testing.T) {
	repo, server := newTestCache(t)
	server.Close()

	_, err := repo.GetProducts(context.Background(), []string{"a"})
	assert.Error(t, err)
	assert.NoError(t, repo.SetProducts(context.Background(), []*domain.Product{{ID: "a"}}))
}
