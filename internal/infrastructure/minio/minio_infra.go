package minio

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/DRSN-tech/visual-search/internal/cfg"
	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/internal/infrastructure"
	"github.com/DRSN-tech/visual-search/internal/usecase"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/DRSN-tech/visual-search/pkg/jitter"
	"github.com/DRSN-tech/visual-search/pkg/logger"
	"github.com/google/uuid"
)

const (
	objectPrefix        = "products"
	cleanupAttempts     = 3
	cleanupBaseBackoff  = time.Second
	cleanupMaxBackoff   = 4 * time.Second
	cleanupTotalTimeout = 30 * time.Second
)

// MinioInfrastructure сохраняет изображения в MinIO, выдаёт публичные ссылки
// и в фоне удаляет объекты, которые не удалось связать с товаром.
type MinioInfrastructure struct {
	minioRepo   usecase.ImageRepository
	cfg         *cfg.MinIOCfg
	httpClient  *http.Client
	logger      logger.Logger
	shutdownCtx context.Context
	wg          sync.WaitGroup

	// backoff переопределяется в тестах
	backoff func(attempt int) time.Duration
}

func NewMinioInfrastructure(minioRepo usecase.ImageRepository, cfg *cfg.MinIOCfg, logger logger.Logger, shutdownCtx context.Context) *MinioInfrastructure {
	return &MinioInfrastructure{
		minioRepo:   minioRepo,
		cfg:         cfg,
		httpClient:  &http.Client{Timeout: cfg.FetchTimeout},
		logger:      logger,
		shutdownCtx: shutdownCtx,
		backoff: func(attempt int) time.Duration {
			return jitter.ExponentialBackoff(cleanupBaseBackoff, cleanupMaxBackoff, attempt, jitter.DefaultJitter)
		},
	}
}

// Store загружает изображение из запроса и возвращает его публичный адрес и ключ.
func (m *MinioInfrastructure) Store(ctx context.Context, image *usecase.ProductImage) (*domain.StoredImage, error) {
	const op = "MinioInfrastructure.Store"

	if image == nil || len(image.Data) == 0 {
		return nil, e.Wrap(op, e.ErrNoImages)
	}
	if int64(len(image.Data)) > m.cfg.MaxImageSize {
		return nil, e.Wrap(op, fmt.Errorf("%w: %d bytes, limit %d", e.ErrFileTooLarge, len(image.Data), m.cfg.MaxImageSize))
	}

	mimeType := infrastructure.DetectImageType(image.MimeType, image.Data)

	stored, err := m.upload(ctx, image.Data, mimeType, image.Name)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	return stored, nil
}

// StoreByURL скачивает изображение по внешней ссылке и сохраняет его копию.
func (m *MinioInfrastructure) StoreByURL(ctx context.Context, url string) (*domain.StoredImage, error) {
	const op = "MinioInfrastructure.StoreByURL"

	data, mimeType, err := infrastructure.FetchImage(ctx, m.httpClient, url, m.cfg.MaxImageSize)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	stored, err := m.upload(ctx, data, mimeType, path.Base(url))
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	return stored, nil
}

func (m *MinioInfrastructure) upload(ctx context.Context, data []byte, mimeType, name string) (*domain.StoredImage, error) {
	ext, err := infrastructure.GetExtensionFromMIME(mimeType)
	if err != nil {
		return nil, fmt.Errorf("invalid mime type %s for %s: %w", mimeType, name, err)
	}

	imageID := uuid.NewString()
	objKey := fmt.Sprintf("%s/%s.%s", objectPrefix, imageID, ext)
	image := domain.NewImage(imageID, m.cfg.BucketName, objKey, data, mimeType)

	key, err := m.minioRepo.Upload(ctx, image)
	if err != nil {
		return nil, fmt.Errorf("upload %s failed: %w", name, err)
	}

	return domain.NewStoredImage(m.PublicURL(key), key), nil
}

// PublicURL строит публичную ссылку на объект.
func (m *MinioInfrastructure) PublicURL(key string) string {
	return strings.TrimRight(m.cfg.PublicBaseURL, "/") + "/" + key
}

// CleanupImages запускает фоновую очистку указанных ключей MinIO
func (m *MinioInfrastructure) CleanupImages(keys []string) {
	if len(keys) == 0 {
		return
	}
	m.wg.Add(1)
	go m.cleanupUploadedKeys(keys)
}

// cleanupUploadedKeys удаляет указанные объекты из MinIO с экспоненциальной задержкой и jitter.
func (m *MinioInfrastructure) cleanupUploadedKeys(keys []string) {
	defer m.wg.Done()
	const op = "MinioInfrastructure.cleanupUploadedKeys"
	m.logger.Infof("%s: cleaning up %d uploaded keys", op, len(keys))

	ctx, cancel := context.WithTimeout(m.shutdownCtx, cleanupTotalTimeout)
	defer cancel()

	for _, key := range keys {
		for attempt := range cleanupAttempts {
			err := m.minioRepo.Delete(ctx, m.cfg.BucketName, key)
			if err == nil {
				break
			}

			select {
			case <-ctx.Done():
				m.logger.Warnf("cleanup interrupted by shutdown, key=%v", key)
				return
			default:
			}

			if attempt == cleanupAttempts-1 {
				m.logger.Errorf(err, "%s: giving up on key=%v", op, key)
				break
			}

			select {
			case <-time.After(m.backoff(attempt)):
			case <-ctx.Done():
				m.logger.Warnf("cleanup interrupted by shutdown during backoff, key=%v", key)
				return
			}
		}
	}
}

// WaitForCleanup ожидает завершения всех фоновых задач очистки с учётом таймаута завершения приложения.
func (m *MinioInfrastructure) WaitForCleanup(shutdownTimeoutCtx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-shutdownTimeoutCtx.Done():
		return fmt.Errorf("minio cleanup timeout during shutdown: %w", shutdownTimeoutCtx.Err())
	}
}
