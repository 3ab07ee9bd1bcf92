package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"

	"github.com/DRSN-tech/visual-search/pkg/e"
)

// GetExtensionFromMIME возвращает расширение файла по MIME-типу изображения.
// Поддерживает jpeg, jpg, png, webp, gif. Возвращает ошибку e.ErrUnsupportedMediaType для неподдерживаемых типов.
func GetExtensionFromMIME(mimeType string) (string, error) {
	switch mimeType {
	case "image/jpeg", "image/jpg":
		return "jpg", nil
	case "image/png":
		return "png", nil
	case "image/webp":
		return "webp", nil
	case "image/gif":
		return "gif", nil
	default:
		return "bin", e.ErrUnsupportedMediaType
	}
}

// DetectImageType определяет MIME-тип по заголовку, а если он пустой или
// неинформативный, по первым байтам содержимого.
func DetectImageType(header string, data []byte) string {
	if header != "" {
		if mediaType, _, err := mime.ParseMediaType(header); err == nil && mediaType != "application/octet-stream" {
			return mediaType
		}
	}

	return http.DetectContentType(data)
}

// FetchImage скачивает изображение по http(s)-ссылке, читая не больше maxSize байт.
// Возвращает байты и MIME-тип.
func FetchImage(ctx context.Context, client *http.Client, rawURL string, maxSize int64) ([]byte, string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, "", fmt.Errorf("%w: unsupported image url %q", e.ErrValidation, rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", e.ErrImageFetchFailed, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, "", err
		}
		return nil, "", fmt.Errorf("%w: %w", e.ErrImageFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("%w: %s returned status %d", e.ErrImageFetchFailed, rawURL, resp.StatusCode)
	}
	if resp.ContentLength > maxSize {
		return nil, "", fmt.Errorf("%w: %d bytes, limit %d", e.ErrFileTooLarge, resp.ContentLength, maxSize)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", e.ErrImageFetchFailed, err)
	}
	if int64(len(data)) > maxSize {
		return nil, "", fmt.Errorf("%w: limit %d bytes", e.ErrFileTooLarge, maxSize)
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("%w: empty body from %s", e.ErrImageFetchFailed, rawURL)
	}

	contentType := DetectImageType(resp.Header.Get("Content-Type"), data)
	if _, err := GetExtensionFromMIME(contentType); err != nil {
		return nil, "", fmt.Errorf("%w: %s", err, contentType)
	}

	return data, contentType, nil
}
