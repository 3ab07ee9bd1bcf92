package e

import (
	"errors"
	"fmt"
)

// Базовые виды ошибок. Конкретные ошибки ниже оборачивают один из них,
// поэтому вызывающая сторона проверяет вид через errors.Is.
var (
	ErrValidation     = errors.New("validation error")
	ErrEmbedding      = errors.New("embedding error")
	ErrStorage        = errors.New("storage error")
	ErrNotFound       = errors.New("not found")
	ErrInvalidRequest = errors.New("invalid request")
)

var (
	// Внутренние ошибки с транзакциями
	ErrTransactionNotFound = fmt.Errorf("transaction not found")

	// Внутренние ошибки с векторами
	ErrDimensionMismatch = fmt.Errorf("%w: embedding dimension mismatch", ErrValidation)
	ErrNonFiniteVector   = fmt.Errorf("%w: embedding contains NaN or Inf", ErrValidation)
	ErrEmptyVector       = fmt.Errorf("%w: provider returned empty vector", ErrEmbedding)
	ErrEmptyCaption      = fmt.Errorf("%w: provider returned empty caption", ErrEmbedding)

	// 400 Bad Request
	ErrProductNameRequired  = fmt.Errorf("%w: product name is required", ErrValidation)
	ErrCategoryRequired     = fmt.Errorf("%w: product category is required", ErrValidation)
	ErrNoImages             = fmt.Errorf("%w: no image provided", ErrValidation)
	ErrAmbiguousImage       = fmt.Errorf("%w: provide either image data or image url, not both", ErrValidation)
	ErrUnsupportedMediaType = fmt.Errorf("%w: unsupported media type", ErrValidation)
	ErrFileTooLarge         = fmt.Errorf("%w: file too large", ErrValidation)
	ErrInvalidPrice         = fmt.Errorf("%w: invalid price", ErrValidation)
	ErrPricePrecision       = fmt.Errorf("%w: price must have at most 2 decimal places", ErrValidation)
	ErrExpectedMultipart    = fmt.Errorf("%w: expected multipart/form-data", ErrValidation)
	ErrExpectedJSON         = fmt.Errorf("%w: malformed json body", ErrValidation)
	ErrMissingFields        = fmt.Errorf("%w: missing required fields", ErrValidation)
	ErrInvalidImageData     = fmt.Errorf("%w: image data is not valid base64", ErrValidation)
	ErrNoProducts           = fmt.Errorf("%w: no products provided", ErrValidation)

	// Ошибки запроса поиска
	ErrNoQueryInput   = fmt.Errorf("%w: provide an image, an image url or a product id", ErrInvalidRequest)
	ErrAmbiguousQuery = fmt.Errorf("%w: provide exactly one of image, image url or product id", ErrInvalidRequest)
	ErrTopKTooLarge   = fmt.Errorf("%w: topK exceeds the configured maximum", ErrValidation)

	// 404 Not Found
	ErrProductNotFound = fmt.Errorf("product %w", ErrNotFound)

	ErrProductExists = fmt.Errorf("%w: product with this id already exists", ErrValidation)

	// 502 Bad Gateway
	ErrImageFetchFailed = fmt.Errorf("%w: failed to fetch image", ErrStorage)

	ErrIncorrectEnvVariable = fmt.Errorf("incorrect environment variable")
	ErrInternalServerError  = fmt.Errorf("internal server error")
)

// Виды ошибок для структурированных ответов.
const (
	KindValidation     = "validation"
	KindEmbedding      = "embedding"
	KindStorage        = "storage"
	KindNotFound       = "not_found"
	KindInvalidRequest = "invalid_request"
	KindInternal       = "internal"
)

// Wrap оборачивает ошибку
func Wrap(msg string, err error) error {
	return fmt.Errorf("%s: %w", msg, err)
}

// Kind возвращает вид ошибки из таксономии сервиса.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrInvalidRequest):
		return KindInvalidRequest
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrEmbedding):
		return KindEmbedding
	case errors.Is(err, ErrStorage):
		return KindStorage
	default:
		return KindInternal
	}
}

// публичные ошибки, текст которых можно отдавать клиенту как есть
var publicErrors = []error{
	ErrDimensionMismatch,
	ErrNonFiniteVector,
	ErrProductNameRequired,
	ErrCategoryRequired,
	ErrNoImages,
	ErrAmbiguousImage,
	ErrUnsupportedMediaType,
	ErrFileTooLarge,
	ErrInvalidPrice,
	ErrPricePrecision,
	ErrExpectedMultipart,
	ErrExpectedJSON,
	ErrMissingFields,
	ErrInvalidImageData,
	ErrNoProducts,
	ErrProductExists,
	ErrNoQueryInput,
	ErrAmbiguousQuery,
	ErrTopKTooLarge,
	ErrProductNotFound,
	ErrImageFetchFailed,
	ErrEmptyVector,
	ErrEmptyCaption,
}

// PublicMessage возвращает текст для клиента: самую конкретную известную ошибку
// из цепочки или базовый вид. Пути из whereami и ответы внешних сервисов не попадают наружу.
func PublicMessage(err error) string {
	for _, known := range publicErrors {
		if errors.Is(err, known) {
			return known.Error()
		}
	}

	switch Kind(err) {
	case KindValidation:
		return ErrValidation.Error()
	case KindInvalidRequest:
		return ErrInvalidRequest.Error()
	case KindNotFound:
		return ErrNotFound.Error()
	case KindEmbedding:
		return ErrEmbedding.Error()
	case KindStorage:
		return ErrStorage.Error()
	default:
		return ErrInternalServerError.Error()
	}
}
