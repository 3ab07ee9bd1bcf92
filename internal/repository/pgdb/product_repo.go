package pgdb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/internal/repository/pgdb/converter"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/DRSN-tech/visual-search/pkg/tr"
	transaction "github.com/avito-tech/go-transaction-manager/drivers/pgxv5/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jimlawless/whereami"
)

const productColumns = `id, name, category, image_url, storage_key, embedding, metadata, created_at`

// ProductRepo реализует каталог товаров поверх PostgreSQL.
type ProductRepo struct {
	pool *pgxpool.Pool
	conv converter.ProductConverter
}

func NewProductRepo(pool *pgxpool.Pool, conv converter.ProductConverter) *ProductRepo {
	return &ProductRepo{
		pool: pool,
		conv: conv,
	}
}

// Insert сохраняет товар. Пустой ID заполняется новым UUID.
func (p *ProductRepo) Insert(ctx context.Context, product *domain.Product) (string, error) {
	id, err := p.insert(ctx, conn(ctx, p.pool), product)
	if err != nil {
		return "", e.Wrap(whereami.WhereAmI(), err)
	}

	return id, nil
}

// BulkInsert сохраняет товары в одной транзакции: либо все, либо ни одного.
func (p *ProductRepo) BulkInsert(ctx context.Context, products []*domain.Product) (ids []string, err error) {
	ctx, tx, err := transaction.NewTransaction(ctx, pgx.TxOptions{}, p.pool)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	defer func() {
		if err != nil && tx.IsActive() {
			_ = tx.Rollback(ctx)
		}
	}()

	pgxTx, ok := tx.Transaction().(pgx.Tx)
	if !ok {
		return nil, e.Wrap(whereami.WhereAmI(), e.ErrTransactionNotFound)
	}
	ctx = tr.WithTx(ctx, pgxTx)

	ids = make([]string, 0, len(products))
	for _, product := range products {
		id, err := p.insert(ctx, pgxTx, product)
		if err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}
		ids = append(ids, id)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return ids, nil
}

func (p *ProductRepo) Get(ctx context.Context, id string) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	product, err := p.scanProduct(conn(ctx, p.pool).QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, e.Wrap(whereami.WhereAmI(), e.ErrProductNotFound)
		}
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return product, nil
}

// GetMany возвращает найденные товары по id, отсутствующие просто не попадают в map.
func (p *ProductRepo) GetMany(ctx context.Context, ids []string) (map[string]*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = ANY($1)`

	rows, err := conn(ctx, p.pool).Query(ctx, query, ids)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	defer rows.Close()

	res := make(map[string]*domain.Product, len(ids))
	for rows.Next() {
		product, err := p.scanProduct(rows)
		if err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}
		res[product.ID] = product
	}

	if err := rows.Err(); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return res, nil
}

// List возвращает товары категории или все товары, если категория пустая.
func (p *ProductRepo) List(ctx context.Context, category string) ([]*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE ($1 = '' OR category = $1) ORDER BY created_at`

	rows, err := conn(ctx, p.pool).Query(ctx, query, category)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	defer rows.Close()

	res := make([]*domain.Product, 0)
	for rows.Next() {
		product, err := p.scanProduct(rows)
		if err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}
		res = append(res, product)
	}

	if err := rows.Err(); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return res, nil
}

func (p *ProductRepo) Delete(ctx context.Context, id string) error {
	if _, err := conn(ctx, p.pool).Exec(ctx, `DELETE FROM products WHERE id = $1`, id); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

func (p *ProductRepo) insert(ctx context.Context, q querier, product *domain.Product) (string, error) {
	model, err := p.conv.ToModel(product)
	if err != nil {
		return "", err
	}
	if model.ID == "" {
		model.ID = uuid.NewString()
	}
	if model.CreatedAt.IsZero() {
		model.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err = q.Exec(ctx, query,
		model.ID,
		model.Name,
		model.Category,
		model.ImageURL,
		model.StorageKey,
		model.Embedding,
		model.Metadata,
		model.CreatedAt,
	)
	if err != nil {
		if postgresDuplicate(err) {
			return "", fmt.Errorf("%w: %s", e.ErrProductExists, model.ID)
		}
		return "", err
	}

	return model.ID, nil
}

func (p *ProductRepo) scanProduct(row pgx.Row) (*domain.Product, error) {
	var model converter.ProductModel
	if err := row.Scan(
		&model.ID,
		&model.Name,
		&model.Category,
		&model.ImageURL,
		&model.StorageKey,
		&model.Embedding,
		&model.Metadata,
		&model.CreatedAt,
	); err != nil {
		return nil, err
	}

	return p.conv.ToEntity(&model)
}
