package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// snapshotAger is implemented by pricing services that can report the age of
// their cached tables.
type snapshotAger interface {
	FetchedAt() time.Time
}

type healthResponse struct {
	Status           string     `json:"status"`
	PricingFetchedAt *time.Time `json:"pricing_fetched_at,omitempty"`
}

// NewRouter mounts the API next to the health and metrics endpoints. A nil
// gatherer leaves /metrics out.
func NewRouter(h *Handler, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", h.handleHealth)
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	h.Register(r)
	return r
}

// handleHealth reports liveness and, when the tables are cached, when they
// were fetched. An empty cache is still healthy.
func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{Status: "ok"}
	if a, ok := h.pricing.(snapshotAger); ok {
		if at := a.FetchedAt(); !at.IsZero() {
			at = at.UTC()
			resp.PricingFetchedAt = &at
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
