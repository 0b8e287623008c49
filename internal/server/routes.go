package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/epireve/currency-api/internal/metrics"
)

// NewHandler builds the status API: health, prometheus metrics and the run
// history.
func NewHandler(runs RunService, rates RateCounter, m *metrics.Metrics, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &handler{runs: runs, rates: rates, logger: logger}

	r := chi.NewRouter()
	r.Use(recovery(logger))
	r.Use(requestID)
	r.Use(logging(logger, m))

	r.Get("/health", h.health)
	if m != nil {
		r.Handle("/metrics", promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{Registry: m.Registry()}))
	}

	r.Route("/api/v1/runs", func(r chi.Router) {
		r.Get("/", h.listRuns)
		r.Get("/{id}", h.getRun)
	})

	return r
}
