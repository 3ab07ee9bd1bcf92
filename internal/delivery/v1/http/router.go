package http

import (
	"net/http"
	"time"

	_ "github.com/DRSN-tech/visual-search/docs" // Регистрация swagger-спецификации
	"github.com/DRSN-tech/visual-search/internal/usecase"
	"github.com/DRSN-tech/visual-search/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger/v2"
)

const requestTimeout = 2 * time.Minute

type Router struct {
	router *chi.Mux
	logger logger.Logger
}

func NewRouter(router *chi.Mux, logger logger.Logger) *Router {
	return &Router{router: router, logger: logger}
}

func (r *Router) Init(prUC usecase.ProductUC, searchUC usecase.SearchUC) {
	r.router.Use(middleware.RequestID)
	r.router.Use(middleware.Recoverer)
	r.router.Use(middleware.Timeout(requestTimeout))

	r.router.Get("/healthz", healthz)
	r.router.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	r.router.Route("/api/v1", func(v1 chi.Router) {
		prHandler := NewProductHandler(prUC, r.logger)
		registerProductRoutes(v1, prHandler)

		searchHandler := NewSearchHandler(searchUC, r.logger)
		registerSearchRoutes(v1, searchHandler)
	})
}

func registerProductRoutes(router chi.Router, prHandler *ProductHandler) {
	router.Route("/products", func(pr chi.Router) {
		pr.Post("/", prHandler.addProduct)
		pr.Post("/bulk", prHandler.bulkAddProducts)
		pr.Get("/", prHandler.listProducts)
		pr.Get("/{id}", prHandler.getProduct)
	})
	router.Post("/upload", prHandler.uploadImage)
}

func registerSearchRoutes(router chi.Router, searchHandler *SearchHandler) {
	router.Route("/search", func(sr chi.Router) {
		sr.Post("/", searchHandler.search)
		sr.Get("/history", searchHandler.listHistory)
		sr.Post("/history", searchHandler.logSearch)
	})
}

// healthz отвечает 200, пока процесс принимает запросы.
func healthz(w http.ResponseWriter, _ *http.Request) {
	WriteSuccess(w, http.StatusOK, map[string]string{"status": "ok"})
}
