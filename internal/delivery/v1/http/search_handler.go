package http

import (
	"net/http"

	"github.com/DRSN-tech/visual-search/internal/usecase"
	"github.com/DRSN-tech/visual-search/pkg/logger"
)

type SearchHandler struct {
	searchUsecase usecase.SearchUC
	logger        logger.Logger
}

func NewSearchHandler(searchUsecase usecase.SearchUC, logger logger.Logger) *SearchHandler {
	return &SearchHandler{searchUsecase: searchUsecase, logger: logger}
}

// search
//
//	@Summary		Поиск похожих товаров
//	@Description	Источник запроса: ровно одно из imageUrl, imageData (base64) или productId.
//	@Description	Результаты упорядочены по убыванию score, ниже minScore отбрасываются.
//	@Tags			search
//	@Accept			json
//	@Produce		json
//	@Param			request	body		SearchRequest	true	"Поисковый запрос"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse	"Товар-образец не найден"
//	@Failure		502		{object}	ErrorResponse
//	@Router			/search [post]
func (s *SearchHandler) search(w http.ResponseWriter, r *http.Request) {
	var body SearchRequest
	if err := decodeJSON(w, r, &body); err != nil {
		WriteError(w, err)
		return
	}

	req, err := body.toUsecase()
	if err != nil {
		WriteError(w, err)
		return
	}

	res, err := s.searchUsecase.Search(r.Context(), req)
	if err != nil {
		logAtLevel(s.logger, err, "search failed")
		WriteError(w, err)
		return
	}

	s.logger.Debugf("search: %d results, history=%s", len(res.Results), res.HistoryID)
	WriteSuccess(w, http.StatusOK, toSearchResponse(res))
}

// listHistory
//
//	@Summary	История поиска
//	@Tags		search
//	@Produce	json
//	@Param		limit	query		int	false	"Сколько последних записей вернуть"
//	@Success	200		{object}	HistoryResponse
//	@Router		/search/history [get]
func (s *SearchHandler) listHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		WriteError(w, err)
		return
	}

	records, err := s.searchUsecase.ListHistory(r.Context(), limit)
	if err != nil {
		logAtLevel(s.logger, err, "list history failed")
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, toHistoryResponse(records))
}

// logSearch
//
//	@Summary	Запись в историю поиска
//	@Tags		search
//	@Accept		json
//	@Produce	json
//	@Param		request	body		HistoryRecordDTO	true	"Запись"
//	@Success	201		{object}	HistoryRecordDTO
//	@Failure	400		{object}	ErrorResponse
//	@Router		/search/history [post]
func (s *SearchHandler) logSearch(w http.ResponseWriter, r *http.Request) {
	var body HistoryRecordDTO
	if err := decodeJSON(w, r, &body); err != nil {
		WriteError(w, err)
		return
	}

	saved, err := s.searchUsecase.LogSearch(r.Context(), body.toDomain())
	if err != nil {
		logAtLevel(s.logger, err, "log search failed")
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusCreated, toHistoryRecordDTO(saved))
}
