package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/voyago/travel-sagas/internal/httpx/middlewares"
)

func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middlewares.AttachRequestMetadata)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", handler.Health)

	r.Route("/reservations", func(r chi.Router) {
		r.Post("/", handler.Submit)
		r.Post("/cancel", handler.Cancel)
		r.Post("/modify", handler.Modify)
		r.Get("/{id}", handler.Status)
	})

	return r
}
