package http

import (
	"net/http"

	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/internal/usecase"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/DRSN-tech/visual-search/pkg/logger"
	"github.com/go-chi/chi/v5"
)

type ProductHandler struct {
	productUsecase usecase.ProductUC
	logger         logger.Logger
}

func NewProductHandler(productUsecase usecase.ProductUC, logger logger.Logger) *ProductHandler {
	return &ProductHandler{productUsecase: productUsecase, logger: logger}
}

// addProduct
//
//	@Summary		Добавление товара
//	@Description	Сохраняет изображение, считает эмбеддинг и добавляет товар в каталог и индекс.
//	@Description	Принимает JSON (imageData в base64 или imageUrl) либо multipart/form-data с полем image.
//	@Tags			products
//	@Accept			json,mpfd
//	@Produce		json
//	@Param			request		body		AddProductRequest	false	"Товар (JSON)"
//	@Param			name		formData	string				false	"Название товара"
//	@Param			category	formData	string				false	"Категория"
//	@Param			price		formData	string				false	"Цена"
//	@Param			image		formData	file				false	"Изображение товара"
//	@Success		201			{object}	ProductResponse
//	@Failure		400			{object}	ErrorResponse	"Ошибка валидации"
//	@Failure		502			{object}	ErrorResponse	"Ошибка эмбеддинга или хранилища"
//	@Router			/products [post]
func (p *ProductHandler) addProduct(w http.ResponseWriter, r *http.Request) {
	var (
		req *usecase.AddProductReq
		err error
	)
	if isMultipart(r) {
		req, err = p.parseProductForm(w, r)
	} else {
		var body AddProductRequest
		if err = decodeJSON(w, r, &body); err == nil {
			req, err = body.toUsecase()
		}
	}
	if err != nil {
		p.logger.Warnf("%d add product: %v", http.StatusBadRequest, err)
		WriteError(w, err)
		return
	}

	product, err := p.productUsecase.AddProduct(r.Context(), req)
	if err != nil {
		p.logError(err, "add product failed")
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusCreated, toProductResponse(product))
}

func (p *ProductHandler) parseProductForm(w http.ResponseWriter, r *http.Request) (*usecase.AddProductReq, error) {
	if err := ensureMultipartForm(w, r); err != nil {
		return nil, err
	}

	price, err := parsePrice(r.FormValue("price"))
	if err != nil {
		return nil, err
	}

	image, err := formImage(r, "image")
	if err != nil {
		return nil, err
	}

	var meta *domain.Metadata
	description, brand := r.FormValue("description"), r.FormValue("brand")
	if price != nil || description != "" || brand != "" {
		meta = &domain.Metadata{Description: description, Price: price, Brand: brand}
	}

	return &usecase.AddProductReq{
		Name:     r.FormValue("name"),
		Category: r.FormValue("category"),
		Image:    image,
		ImageURL: r.FormValue("imageUrl"),
		Metadata: meta,
	}, nil
}

// bulkAddProducts
//
//	@Summary		Пакетное добавление товаров
//	@Description	Каждый элемент обрабатывается независимо: ошибки одного не мешают остальным.
//	@Tags			products
//	@Accept			json
//	@Produce		json
//	@Param			request	body		BulkAddRequest	true	"Пакет товаров"
//	@Success		200		{object}	BulkAddResponse
//	@Failure		400		{object}	ErrorResponse
//	@Router			/products/bulk [post]
func (p *ProductHandler) bulkAddProducts(w http.ResponseWriter, r *http.Request) {
	var body BulkAddRequest
	if err := decodeJSON(w, r, &body); err != nil {
		WriteError(w, err)
		return
	}

	req, err := body.toUsecase()
	if err != nil {
		p.logger.Warnf("%d bulk add: %v", http.StatusBadRequest, err)
		WriteError(w, err)
		return
	}

	res, err := p.productUsecase.BulkAddProducts(r.Context(), req)
	if err != nil {
		p.logError(err, "bulk add failed")
		WriteError(w, err)
		return
	}

	if res.Failed > 0 {
		p.logger.Warnf("bulk add: %d of %d items failed", res.Failed, len(req.Items))
	}

	WriteSuccess(w, http.StatusOK, toBulkAddResponse(res))
}

// listProducts
//
//	@Summary	Список товаров
//	@Tags		products
//	@Produce	json
//	@Param		category	query		string	false	"Фильтр по категории"
//	@Success	200			{object}	ProductListResponse
//	@Router		/products [get]
func (p *ProductHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := p.productUsecase.ListProducts(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		p.logError(err, "list products failed")
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, toProductListResponse(products))
}

// getProduct
//
//	@Summary	Товар по идентификатору
//	@Tags		products
//	@Produce	json
//	@Param		id	path		string	true	"ID товара"
//	@Success	200	{object}	ProductResponse
//	@Failure	404	{object}	ErrorResponse
//	@Router		/products/{id} [get]
func (p *ProductHandler) getProduct(w http.ResponseWriter, r *http.Request) {
	product, err := p.productUsecase.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		p.logError(err, "get product failed")
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, toProductResponse(product))
}

// uploadImage
//
//	@Summary		Загрузка изображения
//	@Description	Сохраняет изображение в хранилище и возвращает ссылку, ключ и эмбеддинг. Товар не создаётся.
//	@Tags			upload
//	@Accept			json,mpfd
//	@Produce		json
//	@Param			request	body		UploadRequest	false	"Изображение (JSON)"
//	@Param			image	formData	file			false	"Изображение"
//	@Success		200		{object}	UploadResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		502		{object}	ErrorResponse
//	@Router			/upload [post]
func (p *ProductHandler) uploadImage(w http.ResponseWriter, r *http.Request) {
	req := &usecase.UploadImageReq{}

	if isMultipart(r) {
		if err := ensureMultipartForm(w, r); err != nil {
			WriteError(w, err)
			return
		}
		image, err := formImage(r, "image")
		if err != nil {
			WriteError(w, err)
			return
		}
		req.Image, req.ImageURL = image, r.FormValue("imageUrl")
	} else {
		var body UploadRequest
		if err := decodeJSON(w, r, &body); err != nil {
			WriteError(w, err)
			return
		}
		image, err := imageFromBase64(body.ImageData, body.Filename, body.MimeType)
		if err != nil {
			WriteError(w, err)
			return
		}
		req.Image, req.ImageURL = image, body.ImageURL
	}

	res, err := p.productUsecase.UploadImage(r.Context(), req)
	if err != nil {
		p.logError(err, "upload failed")
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, toUploadResponse(res))
}

// logError пишет клиентские ошибки предупреждением, остальные ошибкой.
func (p *ProductHandler) logError(err error, msg string) {
	logAtLevel(p.logger, err, msg)
}

func logAtLevel(l logger.Logger, err error, msg string) {
	switch e.Kind(err) {
	case e.KindValidation, e.KindInvalidRequest, e.KindNotFound:
		l.Warnf("%s: %v", msg, err)
	default:
		l.Errorf(err, "%s", msg)
	}
}
