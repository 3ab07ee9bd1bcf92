package usecase

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/DRSN-tech/visual-search/internal/cfg"
	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/DRSN-tech/visual-search/pkg/logger"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const compensationTimeout = 10 * time.Second

// ProductUseCase реализует загрузку товаров: каталог и векторный индекс
// обновляются вместе, либо не обновляется ни один из них.
type ProductUseCase struct {
	productRepo       ProductRepository
	index             VectorIndex
	mlService         MlServiceInfra
	imagesInfra       ImagesInfra
	events            EventPublisher
	logger            logger.Logger
	vectorSize        int
	ingestConcurrency int
}

// NewProductUC создаёт usecase товаров. events может быть nil, тогда события не публикуются.
func NewProductUC(
	productRepo ProductRepository,
	index VectorIndex,
	mlService MlServiceInfra,
	imagesInfra ImagesInfra,
	events EventPublisher,
	logger logger.Logger,
	indexCfg *cfg.IndexCfg,
	ingestCfg *cfg.IngestCfg,
) *ProductUseCase {
	return &ProductUseCase{
		productRepo:       productRepo,
		index:             index,
		mlService:         mlService,
		imagesInfra:       imagesInfra,
		events:            events,
		logger:            logger,
		vectorSize:        indexCfg.VectorSize,
		ingestConcurrency: max(ingestCfg.Concurrency, 1),
	}
}

// preparedItem — товар, у которого уже есть изображение в хранилище и эмбеддинг,
// но который ещё не записан ни в каталог, ни в индекс.
type preparedItem struct {
	product     *domain.Product
	uploadedKey string // пусто, если изображение не загружалось этим запросом
}

// AddProduct добавляет один товар. Любая ошибка до коммита в индекс откатывает
// запись в каталоге и удаляет загруженное изображение.
func (p *ProductUseCase) AddProduct(ctx context.Context, req *AddProductReq) (*domain.Product, error) {
	const op = "ProductUseCase.AddProduct"

	item, err := p.prepare(ctx, req)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	id, err := p.productRepo.Insert(ctx, item.product)
	if err != nil {
		p.discard(item, err)
		return nil, e.Wrap(op, err)
	}
	item.product.ID = id

	if err := p.indexCommitted(ctx, item.product); err != nil {
		p.discard(item, err)
		return nil, e.Wrap(op, err)
	}

	p.publishIndexed(ctx, item.product)

	return item.product, nil
}

// BulkAddProducts загружает товары независимо друг от друга: ошибка одного элемента
// не прерывает остальные. Подготовка (загрузка изображения и эмбеддинг) и запись
// в индекс идут с ограниченным параллелизмом. Каталог сначала пишется одной транзакцией,
// если она не прошла, товары вставляются по одному и ошибка достаётся только своему элементу.
func (p *ProductUseCase) BulkAddProducts(ctx context.Context, req *BulkAddProductsReq) (*BulkAddProductsRes, error) {
	const op = "ProductUseCase.BulkAddProducts"

	if len(req.Items) == 0 {
		return nil, e.Wrap(op, e.ErrNoProducts)
	}

	n := len(req.Items)
	prepared := make([]*preparedItem, n)
	errs := make([]error, n)

	var g errgroup.Group
	g.SetLimit(p.ingestConcurrency)
	for i := range req.Items {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return nil
			}

			item, err := p.prepare(ctx, &req.Items[i])
			if err != nil {
				errs[i] = err
				return nil
			}
			prepared[i] = item

			return nil
		})
	}
	_ = g.Wait()

	positions := make([]int, 0, n)
	batch := make([]*domain.Product, 0, n)
	for i, item := range prepared {
		if item != nil {
			positions = append(positions, i)
			batch = append(batch, item.product)
		}
	}

	if len(batch) > 0 {
		ids, err := p.insertBatch(ctx, batch)
		if err != nil {
			p.logger.Warnf("%s: batch insert failed, inserting items one by one: %v", op, err)
			ids = p.insertEach(ctx, positions, prepared, errs)
		}
		for k, i := range positions {
			if prepared[i] != nil {
				prepared[i].product.ID = ids[k]
			}
		}

		var ig errgroup.Group
		ig.SetLimit(p.ingestConcurrency)
		for _, i := range positions {
			if prepared[i] == nil {
				continue
			}
			ig.Go(func() error {
				if err := p.indexCommitted(ctx, prepared[i].product); err != nil {
					errs[i] = err
					p.discard(prepared[i], err)
					prepared[i] = nil
				}
				return nil
			})
		}
		_ = ig.Wait()
	}

	res := &BulkAddProductsRes{IDs: make([]string, 0, n)}
	for i := range n {
		if errs[i] != nil {
			res.Failed++
			res.Errors = append(res.Errors, BulkItemError{Index: i, Err: errs[i]})
			p.logger.Warnf("%s: item %d failed: %v", op, i, errs[i])
			continue
		}

		res.IDs = append(res.IDs, prepared[i].product.ID)
		p.publishIndexed(ctx, prepared[i].product)
	}

	p.logger.Infof("%s: ingested %d of %d products", op, len(res.IDs), n)

	return res, nil
}

// GetProduct возвращает товар по идентификатору.
func (p *ProductUseCase) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	const op = "ProductUseCase.GetProduct"

	if strings.TrimSpace(id) == "" {
		return nil, e.Wrap(op, e.ErrProductNotFound)
	}

	product, err := p.productRepo.Get(ctx, id)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	return product, nil
}

// ListProducts возвращает товары каталога, пустая категория означает все товары.
func (p *ProductUseCase) ListProducts(ctx context.Context, category string) ([]*domain.Product, error) {
	const op = "ProductUseCase.ListProducts"

	products, err := p.productRepo.List(ctx, strings.TrimSpace(category))
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	return products, nil
}

// UploadImage сохраняет изображение и возвращает его адрес вместе с эмбеддингом.
// Товар при этом не создаётся.
func (p *ProductUseCase) UploadImage(ctx context.Context, req *UploadImageReq) (*UploadImageRes, error) {
	const op = "ProductUseCase.UploadImage"

	if err := validateImageSource(req.Image, req.ImageURL); err != nil {
		return nil, e.Wrap(op, err)
	}

	var (
		stored *domain.StoredImage
		err    error
	)
	if req.Image != nil {
		stored, err = p.imagesInfra.Store(ctx, req.Image)
	} else {
		stored, err = p.imagesInfra.StoreByURL(ctx, req.ImageURL)
	}
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	vector, err := p.getVector(ctx, req.Image, req.ImageURL)
	if err != nil {
		p.imagesInfra.CleanupImages([]string{stored.Key})
		return nil, e.Wrap(op, err)
	}

	return NewUploadImageRes(stored, vector), nil
}

// RebuildIndex заново записывает в индекс векторы всех товаров каталога в порядке создания.
// Если у какого-то товара эмбеддинг не подходит к размерности индекса, перестроение
// не начинается: товар без вектора нарушил бы соответствие каталога и индекса.
func (p *ProductUseCase) RebuildIndex(ctx context.Context) (int, error) {
	const op = "ProductUseCase.RebuildIndex"

	products, err := p.productRepo.List(ctx, "")
	if err != nil {
		return 0, e.Wrap(op, err)
	}

	slices.SortStableFunc(products, func(a, b *domain.Product) int {
		return cmp.Compare(a.CreatedAt.UnixNano(), b.CreatedAt.UnixNano())
	})

	for _, product := range products {
		if err := product.Embedding.Validate(p.vectorSize); err != nil {
			return 0, e.Wrap(op, fmt.Errorf("product %s: %w", product.ID, err))
		}
	}

	indexed := 0
	for _, product := range products {
		if err := ctx.Err(); err != nil {
			return indexed, e.Wrap(op, err)
		}

		if err := p.index.Insert(ctx, product.ID, product.Embedding, product.Category); err != nil {
			return indexed, e.Wrap(op, err)
		}
		indexed++
	}

	p.logger.Infof("%s: indexed %d of %d products", op, indexed, len(products))

	return indexed, nil
}

// prepare проверяет запрос, сохраняет изображение и получает эмбеддинг.
// При ошибке эмбеддинга загруженное изображение удаляется.
func (p *ProductUseCase) prepare(ctx context.Context, req *AddProductReq) (*preparedItem, error) {
	if err := p.validateProduct(req); err != nil {
		return nil, err
	}

	stored, uploaded, err := p.storeImage(ctx, req)
	if err != nil {
		return nil, err
	}

	item := &preparedItem{}
	if uploaded {
		item.uploadedKey = stored.Key
	}

	vector := req.Embedding
	if vector == nil {
		vector, err = p.getVector(ctx, req.Image, req.ImageURL)
		if err != nil {
			p.discard(item, err)
			return nil, err
		}
	}

	item.product = domain.NewProduct(
		strings.TrimSpace(req.Name),
		strings.TrimSpace(req.Category),
		stored.URL,
		stored.Key,
		vector.Clone(),
		req.Metadata,
	)
	item.product.CreatedAt = time.Now().UTC()

	return item, nil
}

// storeImage загружает изображение в хранилище. Если ссылка пришла вместе с ключом,
// изображение уже лежит в хранилище и повторно не загружается.
func (p *ProductUseCase) storeImage(ctx context.Context, req *AddProductReq) (*domain.StoredImage, bool, error) {
	switch {
	case req.Image != nil:
		stored, err := p.imagesInfra.Store(ctx, req.Image)
		return stored, err == nil, err
	case req.StorageKey != "":
		return domain.NewStoredImage(req.ImageURL, req.StorageKey), false, nil
	default:
		stored, err := p.imagesInfra.StoreByURL(ctx, req.ImageURL)
		return stored, err == nil, err
	}
}

// getVector запрашивает эмбеддинг у ML-сервиса и проверяет его размерность.
func (p *ProductUseCase) getVector(ctx context.Context, image *ProductImage, imageURL string) (domain.Vector, error) {
	return vectorize(ctx, p.mlService, p.vectorSize, image, imageURL)
}

func (p *ProductUseCase) insertBatch(ctx context.Context, batch []*domain.Product) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ids, err := p.productRepo.BulkInsert(ctx, batch)
	if err != nil {
		return nil, err
	}

	if len(ids) != len(batch) {
		return nil, fmt.Errorf("%w: bulk insert returned %d ids for %d products", e.ErrInternalServerError, len(ids), len(batch))
	}

	return ids, nil
}

// insertEach вставляет подготовленные товары по одному. Элемент, который каталог
// не принял, получает свою ошибку в errs и обнуляется в prepared.
func (p *ProductUseCase) insertEach(ctx context.Context, positions []int, prepared []*preparedItem, errs []error) []string {
	ids := make([]string, len(positions))
	for k, i := range positions {
		id, err := p.productRepo.Insert(ctx, prepared[i].product)
		if err != nil {
			errs[i] = err
			p.discard(prepared[i], err)
			prepared[i] = nil
			continue
		}
		ids[k] = id
	}

	return ids
}

// indexCommitted записывает вектор уже сохранённого в каталоге товара.
// Если запрос отменён или индекс вернул ошибку, запись каталога удаляется.
func (p *ProductUseCase) indexCommitted(ctx context.Context, product *domain.Product) error {
	if err := ctx.Err(); err != nil {
		p.rollbackCatalog(ctx, product.ID, err)
		return err
	}

	if err := p.index.Insert(ctx, product.ID, product.Embedding, product.Category); err != nil {
		p.rollbackIndex(ctx, product.ID)
		p.rollbackCatalog(ctx, product.ID, err)
		return err
	}

	return nil
}

// rollbackCatalog удаляет запись каталога, если вектор так и не попал в индекс.
// Если удаление не удалось, товар остаётся без вектора до запуска reindex.
func (p *ProductUseCase) rollbackCatalog(ctx context.Context, id string, cause error) {
	const op = "ProductUseCase.rollbackCatalog"

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	if err := p.productRepo.Delete(ctx, id); err != nil {
		p.logger.Errorf(e.Wrap(op, err), "catalog rollback failed, product %s requires reindex (cause: %v)", id, cause)
	}
}

// rollbackIndex удаляет вектор, который мог успеть записаться до ошибки.
func (p *ProductUseCase) rollbackIndex(ctx context.Context, id string) {
	const op = "ProductUseCase.rollbackIndex"

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	if err := p.index.Remove(ctx, id); err != nil {
		p.logger.Warnf("%s: failed to remove vector %s: %v", op, id, err)
	}
}

// discard удаляет изображение, загруженное для товара, который не удалось сохранить.
func (p *ProductUseCase) discard(item *preparedItem, cause error) {
	if item == nil || item.uploadedKey == "" {
		return
	}

	p.logger.Warnf("Cleaning up orphaned image after ingestion failure. key: %s, error: %v", item.uploadedKey, cause)
	p.imagesInfra.CleanupImages([]string{item.uploadedKey})
}

func (p *ProductUseCase) publishIndexed(ctx context.Context, product *domain.Product) {
	const op = "ProductUseCase.publishIndexed"

	if p.events == nil {
		return
	}

	event := domain.NewProductIndexedEvent(uuid.NewString(), product)
	if err := p.events.Publish(context.WithoutCancel(ctx), event); err != nil {
		p.logger.Warnf("%s: product %s: %v", op, product.ID, err)
	}
}

// validateProduct проверяет корректность входных данных запроса на добавление товара.
func (p *ProductUseCase) validateProduct(req *AddProductReq) error {
	if strings.TrimSpace(req.Name) == "" {
		return e.ErrProductNameRequired
	}

	if strings.TrimSpace(req.Category) == "" {
		return e.ErrCategoryRequired
	}

	if err := validateImageSource(req.Image, req.ImageURL); err != nil {
		return err
	}

	if req.StorageKey != "" && req.Image != nil {
		return e.ErrAmbiguousImage
	}

	if req.Embedding != nil {
		if err := req.Embedding.Validate(p.vectorSize); err != nil {
			return err
		}
	}

	if req.Metadata != nil && req.Metadata.Price != nil && req.Metadata.Price.IsNegative() {
		return e.ErrInvalidPrice
	}

	return nil
}

func validateImageSource(image *ProductImage, imageURL string) error {
	hasImage := image != nil
	hasURL := strings.TrimSpace(imageURL) != ""

	switch {
	case hasImage && hasURL:
		return e.ErrAmbiguousImage
	case !hasImage && !hasURL:
		return e.ErrNoImages
	case hasImage && len(image.Data) == 0:
		return e.ErrNoImages
	}

	return nil
}

// vectorize — общий для загрузки и поиска вызов ML-сервиса. Вектор неверной длины
// или с NaN считается ошибкой провайдера, а не запроса.
func vectorize(ctx context.Context, ml MlServiceInfra, dim int, image *ProductImage, imageURL string) (domain.Vector, error) {
	res, err := ml.VectorizeRequest(ctx, NewVectorizeReq(image, imageURL))
	if err != nil {
		return nil, err
	}

	if res == nil || len(res.Vector) == 0 {
		return nil, e.ErrEmptyVector
	}

	if err := res.Vector.Validate(dim); err != nil {
		return nil, fmt.Errorf("%w: invalid vector from provider: %v", e.ErrEmbedding, err)
	}

	return res.Vector, nil
}
