package ml_service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/DRSN-tech/visual-search/internal/cfg"
	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/internal/infrastructure"
	"github.com/DRSN-tech/visual-search/internal/usecase"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/DRSN-tech/visual-search/pkg/jitter"
	"github.com/DRSN-tech/visual-search/pkg/logger"
	"golang.org/x/time/rate"
)

// EmbeddingModel превращает изображение в вектор признаков.
type EmbeddingModel interface {
	EmbedImage(ctx context.Context, data []byte, mimeType string) (domain.Vector, error)
	Version() string
}

// MLService — клиент провайдера эмбеддингов: ограничивает частоту и число
// одновременных запросов и повторяет неудачные с экспоненциальной задержкой.
type MLService struct {
	model          EmbeddingModel
	limiter        *rate.Limiter
	sem            chan struct{}
	maxRetries     int
	requestTimeout time.Duration
	httpClient     *http.Client
	maxImageSize   int64
	logger         logger.Logger

	// backoff переопределяется в тестах
	backoff func(attempt int) time.Duration
}

func NewMLService(model EmbeddingModel, mlCfg *cfg.MLServiceCfg, minioCfg *cfg.MinIOCfg, logger logger.Logger) *MLService {
	const (
		baseJitter = 1 * time.Second
		maxJitter  = 30 * time.Second
	)

	return &MLService{
		model:          model,
		limiter:        rate.NewLimiter(rate.Limit(mlCfg.RequestsPerSecond), mlCfg.Burst),
		sem:            make(chan struct{}, mlCfg.MaxConcurrent),
		maxRetries:     mlCfg.MaxRetries,
		requestTimeout: mlCfg.RequestTimeout,
		httpClient:     &http.Client{Timeout: minioCfg.FetchTimeout},
		maxImageSize:   minioCfg.MaxImageSize,
		logger:         logger,
		backoff: func(attempt int) time.Duration {
			return jitter.ExponentialBackoff(baseJitter, maxJitter, attempt, jitter.DefaultJitter)
		},
	}
}

// VectorizeRequest возвращает вектор изображения из байтов запроса или по ссылке.
// Ошибки провайдера оборачиваются в e.ErrEmbedding.
func (m *MLService) VectorizeRequest(ctx context.Context, req *usecase.VectorizeReq) (*usecase.VectorizeRes, error) {
	const op = "MLService.VectorizeRequest"

	data, mimeType, err := m.imageBytes(ctx, req)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	var lastErr error
	for attempt := 0; attempt < m.maxRetries; attempt++ {
		vector, err := m.embedOnce(ctx, data, mimeType)
		if err == nil {
			return usecase.NewVectorizeRes(vector, m.model.Version()), nil
		}
		if !retryable(ctx, err) {
			return nil, e.Wrap(op, asEmbeddingErr(err))
		}
		lastErr = err

		if attempt == m.maxRetries-1 {
			break
		}

		sleepTime := m.backoff(attempt)
		m.logger.Warnf("vectorization failed, retrying in %v (attempt %d): %v", sleepTime, attempt+1, err)
		select {
		case <-time.After(sleepTime):
		case <-ctx.Done():
			return nil, e.Wrap(op, ctx.Err())
		}
	}

	return nil, e.Wrap(op, fmt.Errorf("%w: all %d attempts failed: %w", e.ErrEmbedding, m.maxRetries, lastErr))
}

// embedOnce выполняет один вызов модели под лимитером и семафором.
func (m *MLService) embedOnce(ctx context.Context, data []byte, mimeType string) (domain.Vector, error) {
	if err := m.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	select {
	case m.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-m.sem }()

	callCtx := ctx
	if m.requestTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, m.requestTimeout)
		defer cancel()
	}

	vector, err := m.model.EmbedImage(callCtx, data, mimeType)
	if err != nil {
		return nil, err
	}
	if len(vector) == 0 {
		return nil, e.ErrEmptyVector
	}

	return vector, nil
}

func (m *MLService) imageBytes(ctx context.Context, req *usecase.VectorizeReq) ([]byte, string, error) {
	if req.Image != nil && len(req.Image.Data) > 0 {
		return req.Image.Data, infrastructure.DetectImageType(req.Image.MimeType, req.Image.Data), nil
	}
	if req.ImageURL != "" {
		return infrastructure.FetchImage(ctx, m.httpClient, req.ImageURL, m.maxImageSize)
	}

	return nil, "", e.ErrNoImages
}

// retryable: ошибки валидации, пустой ответ модели и отмена вызывающего не повторяются.
func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	return !errors.Is(err, e.ErrValidation) && !errors.Is(err, e.ErrEmbedding)
}

func asEmbeddingErr(err error) error {
	if errors.Is(err, e.ErrEmbedding) || errors.Is(err, e.ErrValidation) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", e.ErrEmbedding, err)
}
