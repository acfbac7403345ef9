package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jcmexdev/marketplace-sagas/internal/api-gateway/infra/httpx/middlewares"
)

func NewRouter(handler *Handler, serviceName string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middlewares.AttachRequestMetadata)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", handler.Healthz)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middlewares.Tracing(serviceName))
		r.Use(middlewares.PrometheusMetrics)
		r.Use(middleware.Logger)

		r.Get("/products/{id}", handler.GetProduct)
		r.Route("/orders", func(r chi.Router) {
			r.Post("/", handler.CreateOrder)
			r.Get("/{id}", handler.GetOrder)
			r.Put("/{id}", handler.UpdateOrder)
			r.Delete("/{id}", handler.CancelOrder)
		})
	})
	return r
}
