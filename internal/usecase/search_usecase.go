package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/DRSN-tech/visual-search/internal/cfg"
	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/DRSN-tech/visual-search/pkg/logger"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// SearchUseCase превращает запрос в вектор, ищет похожие товары в индексе
// и пишет запись в историю поиска.
type SearchUseCase struct {
	productRepo ProductRepository
	historyRepo SearchHistoryRepository
	index       VectorIndex
	mlService   MlServiceInfra
	imagesInfra ImagesInfra
	cacheRepo   CacheRepository
	logger      logger.Logger
	vectorSize  int
	defaultTopK int
	maxTopK     int
}

// NewSearchUC создаёт usecase поиска. cacheRepo может быть nil.
func NewSearchUC(
	productRepo ProductRepository,
	historyRepo SearchHistoryRepository,
	index VectorIndex,
	mlService MlServiceInfra,
	imagesInfra ImagesInfra,
	cacheRepo CacheRepository,
	logger logger.Logger,
	indexCfg *cfg.IndexCfg,
	searchCfg *cfg.SearchCfg,
) *SearchUseCase {
	return &SearchUseCase{
		productRepo: productRepo,
		historyRepo: historyRepo,
		index:       index,
		mlService:   mlService,
		imagesInfra: imagesInfra,
		cacheRepo:   cacheRepo,
		logger:      logger,
		vectorSize:  indexCfg.VectorSize,
		defaultTopK: searchCfg.DefaultTopK,
		maxTopK:     searchCfg.MaxTopK,
	}
}

// Search выполняет поиск похожих товаров. Порядок результатов совпадает с порядком
// индекса (score по убыванию), результаты со score < MinScore отбрасываются.
func (s *SearchUseCase) Search(ctx context.Context, req *SearchReq) (*SearchRes, error) {
	const op = "SearchUseCase.Search"

	if err := validateSearchReq(req); err != nil {
		return nil, e.Wrap(op, err)
	}

	topK, err := s.topK(req.TopK)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	vector, queryImage, err := s.resolveQuery(ctx, req)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	results, record, err := s.rankAndLog(ctx, req, topK, vector, queryImage.URL)
	if err != nil {
		if queryImage.Key != "" {
			s.imagesInfra.CleanupImages([]string{queryImage.Key})
		}
		return nil, e.Wrap(op, err)
	}

	return NewSearchRes(len(vector), results, record.ID), nil
}

// rankAndLog выполняет запрос к индексу, отбрасывает результаты ниже MinScore,
// подтягивает товары и пишет запись в историю.
func (s *SearchUseCase) rankAndLog(ctx context.Context, req *SearchReq, topK int, vector domain.Vector, queryImageURL string) ([]SearchResult, *domain.SearchHistory, error) {
	matches, err := s.index.Query(ctx, vector, topK, strings.TrimSpace(req.Category))
	if err != nil {
		return nil, nil, err
	}

	filtered := make([]domain.Match, 0, len(matches))
	for _, m := range matches {
		if m.Score < req.MinScore {
			continue
		}
		filtered = append(filtered, m)
	}

	results, err := s.joinProducts(ctx, filtered)
	if err != nil {
		return nil, nil, err
	}

	resultIDs := make([]string, len(results))
	for i, r := range results {
		resultIDs[i] = r.Product.ID
	}

	record, err := s.LogSearch(ctx, domain.NewSearchHistory(queryImageURL, vector, resultIDs))
	if err != nil {
		return nil, nil, err
	}

	return results, record, nil
}

// LogSearch добавляет запись в историю поиска.
func (s *SearchUseCase) LogSearch(ctx context.Context, record *domain.SearchHistory) (*domain.SearchHistory, error) {
	const op = "SearchUseCase.LogSearch"

	if err := record.QueryEmbedding.Validate(s.vectorSize); err != nil {
		return nil, e.Wrap(op, err)
	}

	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}
	if record.ResultIDs == nil {
		record.ResultIDs = []string{}
	}

	saved, err := s.historyRepo.Append(ctx, record)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	return saved, nil
}

// ListHistory возвращает последние записи истории, новые первыми.
func (s *SearchUseCase) ListHistory(ctx context.Context, limit int) ([]*domain.SearchHistory, error) {
	const op = "SearchUseCase.ListHistory"

	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	limit = min(limit, maxHistoryLimit)

	records, err := s.historyRepo.List(ctx, limit)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	return records, nil
}

// topK подставляет значение по умолчанию для нуля. Отрицательное значение передаётся
// индексу как есть и даёт пустой результат. Превышение заданного максимума
// считается ошибкой запроса, а не обрезается молча.
func (s *SearchUseCase) topK(requested int) (int, error) {
	if requested == 0 {
		requested = s.defaultTopK
	}

	if s.maxTopK > 0 && requested > s.maxTopK {
		return 0, fmt.Errorf("%w: %d > %d", e.ErrTopKTooLarge, requested, s.maxTopK)
	}

	return requested, nil
}

// resolveQuery возвращает вектор запроса и изображение запроса. URL пишется в историю,
// Key заполнен, только если изображение загружено этим запросом.
func (s *SearchUseCase) resolveQuery(ctx context.Context, req *SearchReq) (domain.Vector, domain.StoredImage, error) {
	switch {
	case strings.TrimSpace(req.ProductID) != "":
		product, err := s.productRepo.Get(ctx, strings.TrimSpace(req.ProductID))
		if err != nil {
			return nil, domain.StoredImage{}, err
		}
		return product.Embedding, domain.StoredImage{}, nil

	case req.Image != nil:
		stored, err := s.imagesInfra.Store(ctx, req.Image)
		if err != nil {
			return nil, domain.StoredImage{}, err
		}

		vector, err := vectorize(ctx, s.mlService, s.vectorSize, req.Image, "")
		if err != nil {
			s.imagesInfra.CleanupImages([]string{stored.Key})
			return nil, domain.StoredImage{}, err
		}
		return vector, *stored, nil

	default:
		vector, err := vectorize(ctx, s.mlService, s.vectorSize, nil, req.ImageURL)
		if err != nil {
			return nil, domain.StoredImage{}, err
		}
		return vector, domain.StoredImage{URL: req.ImageURL}, nil
	}
}

// joinProducts подтягивает товары по найденным id: сначала из кэша, затем из каталога.
// Порядок совпадений сохраняется, товары, которых уже нет в каталоге, пропускаются.
func (s *SearchUseCase) joinProducts(ctx context.Context, matches []domain.Match) ([]SearchResult, error) {
	const op = "SearchUseCase.joinProducts"

	if len(matches) == 0 {
		return []SearchResult{}, nil
	}

	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.ID
	}

	var cached map[string]*domain.Product
	if s.cacheRepo != nil {
		var err error
		cached, err = s.cacheRepo.GetProducts(ctx, ids)
		if err != nil {
			s.logger.Warnf("%s: cache lookup failed: %v", op, err)
			cached = nil
		}
	}

	missing := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := cached[id]; !ok {
			missing = append(missing, id)
		}
	}

	var fromDB map[string]*domain.Product
	if len(missing) > 0 {
		var err error
		fromDB, err = s.productRepo.GetMany(ctx, missing)
		if err != nil {
			return nil, err
		}

		if s.cacheRepo != nil && len(fromDB) > 0 {
			toCache := make([]*domain.Product, 0, len(fromDB))
			for _, product := range fromDB {
				toCache = append(toCache, product)
			}

			// Фоновое добавление товаров в кэш
			go func() {
				bgCtx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
				defer cancel()

				if err := s.cacheRepo.SetProducts(bgCtx, toCache); err != nil {
					s.logger.Warnf("Failed to cache products in background: %v", e.Wrap(op, err))
				}
			}()
		}
	}

	results := make([]SearchResult, 0, len(matches))
	for _, m := range matches {
		product, ok := cached[m.ID]
		if !ok {
			product, ok = fromDB[m.ID]
		}
		if !ok {
			s.logger.Warnf("%s: product %s is indexed but missing from catalog", op, m.ID)
			continue
		}

		results = append(results, SearchResult{Product: product, Score: m.Score})
	}

	return results, nil
}

func validateSearchReq(req *SearchReq) error {
	inputs := 0
	if req.Image != nil {
		if len(req.Image.Data) == 0 {
			return e.ErrNoQueryInput
		}
		inputs++
	}
	if strings.TrimSpace(req.ImageURL) != "" {
		inputs++
	}
	if strings.TrimSpace(req.ProductID) != "" {
		inputs++
	}

	switch inputs {
	case 0:
		return e.ErrNoQueryInput
	case 1:
		return nil
	default:
		return e.ErrAmbiguousQuery
	}
}
