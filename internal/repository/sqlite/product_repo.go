package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/internal/repository/pgdb/converter"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/google/uuid"
	"github.com/jimlawless/whereami"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const productColumns = `id, name, category, image_url, storage_key, embedding, metadata, created_at`

// execer — общее подмножество *sql.DB и *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// rowScanner — общее подмножество *sql.Row и *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// ProductRepo реализует каталог товаров поверх SQLite. Вектор и метаданные
// хранятся как JSON, время создания в наносекундах unix.
type ProductRepo struct {
	db   *sql.DB
	conv converter.ProductConverter
}

func NewProductRepo(db *sql.DB, conv converter.ProductConverter) *ProductRepo {
	return &ProductRepo{
		db:   db,
		conv: conv,
	}
}

func (p *ProductRepo) Insert(ctx context.Context, product *domain.Product) (string, error) {
	id, err := p.insert(ctx, p.db, product)
	if err != nil {
		return "", e.Wrap(whereami.WhereAmI(), err)
	}

	return id, nil
}

// BulkInsert сохраняет товары в одной транзакции: либо все, либо ни одного.
func (p *ProductRepo) BulkInsert(ctx context.Context, products []*domain.Product) (ids []string, err error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	ids = make([]string, 0, len(products))
	for _, product := range products {
		id, err := p.insert(ctx, tx, product)
		if err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}
		ids = append(ids, id)
	}

	if err = tx.Commit(); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return ids, nil
}

func (p *ProductRepo) Get(ctx context.Context, id string) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = ?`

	product, err := p.scanProduct(p.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, e.Wrap(whereami.WhereAmI(), e.ErrProductNotFound)
		}
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return product, nil
}

// GetMany возвращает найденные товары по id, отсутствующие просто не попадают в map.
func (p *ProductRepo) GetMany(ctx context.Context, ids []string) (map[string]*domain.Product, error) {
	res := make(map[string]*domain.Product, len(ids))
	if len(ids) == 0 {
		return res, nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	query := `SELECT ` + productColumns + ` FROM products WHERE id IN (` + placeholders + `)`

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	defer rows.Close()

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

// List возвращает товары категории (или все) в порядке добавления.
func (p *ProductRepo) List(ctx context.Context, category string) ([]*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE (?1 = '' OR category = ?1) ORDER BY created_at, rowid`

	rows, err := p.db.QueryContext(ctx, query, category)
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
	if _, err := p.db.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

func (p *ProductRepo) insert(ctx context.Context, ex execer, product *domain.Product) (string, error) {
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

	embedding, err := json.Marshal(model.Embedding)
	if err != nil {
		return "", err
	}

	var metadata sql.NullString
	if model.Metadata != nil {
		metadata = sql.NullString{String: string(model.Metadata), Valid: true}
	}

	query := `INSERT INTO products (` + productColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = ex.ExecContext(ctx, query,
		model.ID,
		model.Name,
		model.Category,
		model.ImageURL,
		model.StorageKey,
		string(embedding),
		metadata,
		model.CreatedAt.UnixNano(),
	)
	if err != nil {
		if sqliteDuplicate(err) {
			return "", fmt.Errorf("%w: %s", e.ErrProductExists, model.ID)
		}
		return "", err
	}

	return model.ID, nil
}

func (p *ProductRepo) scanProduct(row rowScanner) (*domain.Product, error) {
	var (
		model     converter.ProductModel
		embedding string
		metadata  sql.NullString
		createdAt int64
	)
	if err := row.Scan(
		&model.ID,
		&model.Name,
		&model.Category,
		&model.ImageURL,
		&model.StorageKey,
		&embedding,
		&metadata,
		&createdAt,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(embedding), &model.Embedding); err != nil {
		return nil, err
	}
	if metadata.Valid {
		model.Metadata = []byte(metadata.String)
	}
	model.CreatedAt = time.Unix(0, createdAt)

	return p.conv.ToEntity(&model)
}

func sqliteDuplicate(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}

	code := sqliteErr.Code()
	return code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY || code == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}
