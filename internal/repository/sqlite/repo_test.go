package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/DRSN-tech/visual-search/internal/cfg"
	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/internal/repository/pgdb/converter"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/DRSN-tech/visual-search/pkg/logger"
	"github.com/DRSN-tech/visual-search/pkg/sqlitedb"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sqlitedb.SQLiteDatabase {
	t.Helper()

	database, err := sqlitedb.Open(&cfg.SQLiteCfg{Path: filepath.Join(t.TempDir(), "catalog.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	require.NoError(t, database.RunMigrations(logger.NewNopLogger()))
	// повторный запуск миграций ничего не делает
	require.NoError(t, database.RunMigrations(logger.NewNopLogger()))

	return database
}

func TestProductRepo_RoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewProductRepo(openTestDB(t).DB, converter.ProductConverter{})

	price := decimal.RequireFromString("19.99")
	created := time.Date(2025, 3, 1, 12, 0, 0, 123, time.UTC)
	product := domain.NewProduct("Runner", "shoes", "http://cdn/runner.jpg", "products/runner.jpg",
		domain.Vector{0.25, -0.5, 1}, &domain.Metadata{Description: "light", Price: &price, Brand: "Acme"})
	product.CreatedAt = created

	id, err := repo.Insert(ctx, product)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Runner", got.Name)
	assert.Equal(t, "shoes", got.Category)
	assert.Equal(t, "products/runner.jpg", got.StorageKey)
	assert.Equal(t, domain.Vector{0.25, -0.5, 1}, got.Embedding)
	assert.True(t, created.Equal(got.CreatedAt))
	require.NotNil(t, got.Metadata)
	assert.Equal(t, "Acme", got.Metadata.Brand)
	require.NotNil(t, got.Metadata.Price)
	assert.True(t, price.Equal(*got.Metadata.Price))

	plain, err := repo.Insert(ctx, domain.NewProduct("Tote", "bags", "u", "k", domain.Vector{1, 0, 0}, nil))
	require.NoError(t, err)
	gotPlain, err := repo.Get(ctx, plain)
	require.NoError(t, err)
	assert.Nil(t, gotPlain.Metadata)

	_, err = repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, e.ErrProductNotFound)
}

func TestProductRepo_ListKeepsInsertionOrder(t *testing.T) {
	ctx := context.Background()
	repo := NewProductRepo(openTestDB(t).DB, converter.ProductConverter{})

	ts := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, p := range []struct{ name, category string }{
		{"a", "shoes"}, {"b", "bags"}, {"c", "shoes"},
	} {
		product := domain.NewProduct(p.name, p.category, "u", "k", domain.Vector{1}, nil)
		product.CreatedAt = ts
		_, err := repo.Insert(ctx, product)
		require.NoError(t, err)
	}

	all, err := repo.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{all[0].Name, all[1].Name, all[2].Name})

	shoes, err := repo.List(ctx, "shoes")
	require.NoError(t, err)
	require.Len(t, shoes, 2)
	assert.Equal(t, "a", shoes[0].Name)
	assert.Equal(t, "c", shoes[1].Name)

	none, err := repo.List(ctx, "hats")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestProductRepo_BulkInsertIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	repo := NewProductRepo(openTestDB(t).DB, converter.ProductConverter{})

	existing, err := repo.Insert(ctx, &domain.Product{Name: "a", Category: "c", Embedding: domain.Vector{1}})
	require.NoError(t, err)

	_, err = repo.Insert(ctx, &domain.Product{ID: existing, Name: "dup", Category: "c", Embedding: domain.Vector{1}})
	require.ErrorIs(t, err, e.ErrProductExists)

	_, err = repo.BulkInsert(ctx, []*domain.Product{
		{Name: "b", Category: "c", Embedding: domain.Vector{1}},
		{ID: existing, Name: "dup", Category: "c", Embedding: domain.Vector{1}},
	})
	require.ErrorIs(t, err, e.ErrProductExists)

	all, err := repo.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 1)

	ids, err := repo.BulkInsert(ctx, []*domain.Product{
		{Name: "b", Category: "c", Embedding: domain.Vector{1}},
		{Name: "d", Category: "c", Embedding: domain.Vector{1}},
	})
	require.NoError(t, err)
	require.Len(t, ids, 2)

	found, err := repo.GetMany(ctx, append(ids, "missing"))
	require.NoError(t, err)
	assert.Len(t, found, 2)
	assert.Equal(t, "b", found[ids[0]].Name)
	assert.Equal(t, "d", found[ids[1]].Name)

	empty, err := repo.GetMany(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)

	require.NoError(t, repo.Delete(ctx, ids[0]))
	require.NoError(t, repo.Delete(ctx, ids[0]))
	_, err = repo.Get(ctx, ids[0])
	assert.ErrorIs(t, err, e.ErrNotFound)
}

func TestSearchHistoryRepo_NewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := NewSearchHistoryRepo(openTestDB(t).DB, converter.SearchHistoryConverter{})

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, url := range []string{"u1", "u2", "u3"} {
		record := domain.NewSearchHistory(url, domain.Vector{1, 0}, []string{"a", url})
		record.Timestamp = base.Add(time.Duration(i) * time.Second)
		stored, err := repo.Append(ctx, record)
		require.NoError(t, err)
		assert.NotEmpty(t, stored.ID)
	}

	empty := domain.NewSearchHistory("", domain.Vector{0, 1}, nil)
	empty.Timestamp = base.Add(time.Minute)
	_, err := repo.Append(ctx, empty)
	require.NoError(t, err)

	got, err := repo.List(ctx, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "", got[0].QueryImageURL)
	assert.Equal(t, []string{}, got[0].ResultIDs)
	assert.Equal(t, "u3", got[1].QueryImageURL)
	assert.Equal(t, []string{"a", "u3"}, got[1].ResultIDs)
	assert.Equal(t, domain.Vector{1, 0}, got[1].QueryEmbedding)
	assert.Equal(t, "u2", got[2].QueryImageURL)
}
