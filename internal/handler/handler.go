// Package handler exposes pricing and registration verification to the
// storefront's order workflow over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/benithors/resellerkit/internal/pricing"
	"github.com/benithors/resellerkit/internal/verify"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// maxVerifyBatch bounds one request; at five per batch with a one second
// pause this is roughly twenty seconds of upstream calls.
const maxVerifyBatch = 100

type PricingService interface {
	TLDPricing(ctx context.Context, tlds []string, promoEnabled bool) (map[string]pricing.Resolved, error)
	OperationPrice(ctx context.Context, tld string, op pricing.Operation, years int) (*pricing.Quote, error)
	PriceList(ctx context.Context, tld string) ([]pricing.Quote, error)
	Purge()
}

type Verifier interface {
	VerifyMany(ctx context.Context, names []string) []verify.Result
}

// Handler wires the HTTP routes to the pricing and verification services.
type Handler struct {
	pricing PricingService
	verify  Verifier
	promo   func() bool
	log     *zap.Logger
}

// New builds a Handler. promoEnabled is the operator's promotional pricing
// switch; it is called on every request, so a caller backing it with mutable
// state can flip it while serving. A nil func means promotions are on.
func New(p PricingService, v Verifier, promoEnabled func() bool, log *zap.Logger) *Handler {
	if promoEnabled == nil {
		promoEnabled = func() bool { return true }
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{pricing: p, verify: v, promo: promoEnabled, log: log.Named("http")}
}

// Register mounts the v1 routes on r.
func (h *Handler) Register(r chi.Router) {
	v1 := chi.NewRouter()
	v1.Use(middleware.RequestID)
	v1.Use(middleware.Recoverer)
	v1.Use(middleware.Timeout(60 * time.Second))

	v1.Get("/pricing", h.handlePricing)
	v1.Post("/pricing/purge", h.handlePurge)
	v1.Get("/pricing/{tld}", h.handlePriceList)
	v1.Get("/pricing/{tld}/{operation}/{years}", h.handleQuote)
	v1.Post("/verifications", h.handleVerify)

	r.Mount("/v1", v1)
}

func (h *Handler) handlePricing(w http.ResponseWriter, r *http.Request) {
	tlds := splitList(r.URL.Query().Get("tlds"))
	if len(tlds) == 0 {
		writeError(w, http.StatusBadRequest, "tlds query parameter is required")
		return
	}
	promo := h.promo()
	if v := r.URL.Query().Get("promo"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "promo must be true or false")
			return
		}
		// Callers may only switch promotions off, never force them on.
		promo = promo && b
	}

	prices, err := h.pricing.TLDPricing(r.Context(), tlds, promo)
	if err != nil {
		h.upstreamError(w, r, "tld pricing failed", err)
		return
	}
	writeJSON(w, http.StatusOK, prices)
}

func (h *Handler) handlePriceList(w http.ResponseWriter, r *http.Request) {
	tld := chi.URLParam(r, "tld")
	rows, err := h.pricing.PriceList(r.Context(), tld)
	if err != nil {
		h.upstreamError(w, r, "price list failed", err)
		return
	}
	if len(rows) == 0 {
		writeError(w, http.StatusNotFound, "tld is not priced")
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *Handler) handleQuote(w http.ResponseWriter, r *http.Request) {
	op, err := pricing.ParseOperation(chi.URLParam(r, "operation"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	years, err := strconv.Atoi(chi.URLParam(r, "years"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "years must be an integer")
		return
	}

	q, err := h.pricing.OperationPrice(r.Context(), chi.URLParam(r, "tld"), op, years)
	switch {
	case errors.Is(err, pricing.ErrInvalidYears), errors.Is(err, pricing.ErrUnknownOperation):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		h.upstreamError(w, r, "operation price failed", err)
		return
	case q == nil:
		writeError(w, http.StatusNotFound, "no price for this tld, operation and duration")
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *Handler) handlePurge(w http.ResponseWriter, r *http.Request) {
	h.pricing.Purge()
	w.WriteHeader(http.StatusNoContent)
}

type verifyRequest struct {
	Domains []string `json:"domains"`
}

type verifyResponse struct {
	Results []verify.Result `json:"results"`
	Summary verify.Summary  `json:"summary"`
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	var names []string
	for _, d := range req.Domains {
		if d = strings.TrimSpace(d); d != "" {
			names = append(names, d)
		}
	}
	if len(names) == 0 {
		writeError(w, http.StatusBadRequest, "domains must not be empty")
		return
	}
	if len(names) > maxVerifyBatch {
		writeError(w, http.StatusBadRequest, "too many domains in one request")
		return
	}

	results := h.verify.VerifyMany(r.Context(), names)
	summary := verify.Summarize(results)
	if summary.NeedsFollowUp() {
		h.log.Warn("verification batch needs follow-up",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Strings("pending", summary.PendingDomains),
			zap.Strings("failed", summary.FailedDomains),
		)
	}
	writeJSON(w, http.StatusOK, verifyResponse{Results: results, Summary: summary})
}

func (h *Handler) upstreamError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	h.log.Error(msg,
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.Error(err),
	)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		writeError(w, http.StatusGatewayTimeout, "registrar did not respond in time")
		return
	}
	writeError(w, http.StatusBadGateway, "registrar pricing unavailable")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
