package http

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/DRSN-tech/visual-search/internal/usecase"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/jimlawless/whereami"
	"github.com/shopspring/decimal"
)

const (
	maxJSONBodySize  = 32 << 20
	maxMultipartSize = 32 << 20
	maxFormMemory    = 8 << 20
)

type ErrorResponse struct {
	Code    int    `json:"code"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func NewErrorResponse(code int, kind, message string) *ErrorResponse {
	return &ErrorResponse{
		Code:    code,
		Kind:    kind,
		Message: message,
	}
}

// ToHTTPResponse сопоставляет вид ошибки со статусом ответа.
func ToHTTPResponse(err error) (int, string, string) {
	kind := e.Kind(err)

	switch kind {
	case e.KindValidation, e.KindInvalidRequest:
		return http.StatusBadRequest, kind, e.PublicMessage(err)
	case e.KindNotFound:
		return http.StatusNotFound, kind, e.PublicMessage(err)
	case e.KindEmbedding, e.KindStorage:
		return http.StatusBadGateway, kind, e.PublicMessage(err)
	default:
		return http.StatusInternalServerError, e.KindInternal, e.PublicMessage(err)
	}
}

func WriteError(w http.ResponseWriter, err error) {
	code, kind, msg := ToHTTPResponse(err)
	WriteSuccess(w, code, NewErrorResponse(code, kind, msg))
}

func WriteSuccess(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// decodeJSON читает тело запроса в dst, ограничивая его размер.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodySize)

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return e.Wrap(whereami.WhereAmI(), e.ErrFileTooLarge)
		}
		return e.Wrap(whereami.WhereAmI(), fmt.Errorf("%w: %v", e.ErrExpectedJSON, err))
	}

	return nil
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}

func ensureMultipartForm(w http.ResponseWriter, r *http.Request) error {
	if !isMultipart(r) {
		return e.Wrap(whereami.WhereAmI(), e.ErrExpectedMultipart)
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxMultipartSize)
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return e.Wrap(whereami.WhereAmI(), e.ErrFileTooLarge)
		}
		return e.Wrap(whereami.WhereAmI(), fmt.Errorf("%w: %v", e.ErrExpectedMultipart, err))
	}

	return nil
}

// parsePrice разбирает цену вида "599.99" или "600".
// Отрицательные значения и больше двух знаков после запятой отклоняются.
func parsePrice(s string) (*decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, e.ErrInvalidPrice
	}
	if err := validatePrice(d); err != nil {
		return nil, err
	}

	return &d, nil
}

func validatePrice(d decimal.Decimal) error {
	maxPrice := decimal.NewFromInt(1_000_000_000)

	if d.IsNegative() || d.GreaterThan(maxPrice) {
		return e.ErrInvalidPrice
	}
	if d.Exponent() < -2 && !d.Equal(d.Round(2)) {
		return e.ErrPricePrecision
	}

	return nil
}

// decodeImageData декодирует base64, в том числе в виде data URL
// ("data:image/png;base64,..."). Возвращает байты и MIME из префикса, если он был.
func decodeImageData(s string) ([]byte, string, error) {
	var mimeType string

	if rest, ok := strings.CutPrefix(s, "data:"); ok {
		header, payload, found := strings.Cut(rest, ",")
		if !found || !strings.HasSuffix(header, ";base64") {
			return nil, "", e.ErrInvalidImageData
		}
		mimeType = strings.TrimSuffix(header, ";base64")
		s = payload
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, "", e.ErrInvalidImageData
	}
	if len(data) == 0 {
		return nil, "", e.ErrNoImages
	}

	return data, mimeType, nil
}

// imageFromBase64 собирает ProductImage из полей JSON-запроса. Пустая строка даёт nil.
func imageFromBase64(imageData, filename, mimeType string) (*usecase.ProductImage, error) {
	if imageData == "" {
		return nil, nil
	}

	data, prefixMime, err := decodeImageData(imageData)
	if err != nil {
		return nil, err
	}
	if mimeType == "" {
		mimeType = prefixMime
	}

	return usecase.NewProductImage(data, mimeType, int64(len(data)), filename), nil
}

// formImage читает необязательный файл из multipart-формы.
func formImage(r *http.Request, field string) (*usecase.ProductImage, error) {
	files := r.MultipartForm.File[field]
	if len(files) == 0 {
		return nil, nil
	}

	data, mimeType, err := readFile(files[0])
	if err != nil {
		return nil, err
	}

	return usecase.NewProductImage(data, mimeType, int64(len(data)), files[0].Filename), nil
}

func readFile(fh *multipart.FileHeader) ([]byte, string, error) {
	src, err := fh.Open()
	if err != nil {
		return nil, "", e.Wrap(whereami.WhereAmI(), err)
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return nil, "", e.Wrap(whereami.WhereAmI(), err)
	}
	if len(data) == 0 {
		return nil, "", e.Wrap(fh.Filename, e.ErrNoImages)
	}

	return data, fh.Header.Get("Content-Type"), nil
}

// queryInt читает целый параметр строки запроса, пустое значение даёт def.
func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", e.ErrInvalidRequest, key)
	}

	return v, nil
}
