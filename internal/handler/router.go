package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"github.com/baechuer/cityevents/services/crop-service/internal/config"
	"github.com/baechuer/cityevents/services/crop-service/internal/metrics"
)

// ReadyFunc reports whether the backing services are reachable.
type ReadyFunc func(ctx context.Context) error

// NewRouter wires the crop routes with the common middleware stack.
func NewRouter(h *CropHandler, ready ReadyFunc, cfg *config.Config) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if ready != nil {
			if err := ready(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte("not ready"))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", metrics.MetricsHandler())

	r.Route("/crop/v1", func(r chi.Router) {
		if cfg.RLEnabled {
			r.Use(httprate.LimitByIP(cfg.RLLimit, cfg.RLWindow))
		}
		r.Get("/references/{id}/variants/{variant}", h.GetPlan)
		r.Get("/references/{id}/picture", h.GetPicture)
		r.Get("/crop-variants", h.GetCropVariants)
		r.Post("/references/{id}/croppings", h.ProcessReference)
		r.Post("/croppings", h.RunBatch)
	})

	return r
}
