// Package handlers contains the HTTP handler implementations for the Expanse
// storefront API. Each handler file defines the narrow service interfaces it
// depends on and receives implementations via its constructor, which keeps
// handlers decoupled from concrete types and easy to mock in tests.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"expanse/internal/core"
	"expanse/internal/pricing"
	"expanse/internal/telemetry"
	"expanse/internal/types"
)

// PriceReader serves the current price snapshot, refreshing it when stale.
type PriceReader interface {
	Get(ctx context.Context) (pricing.Snapshot, bool)
}

// KeyVerifier checks a presented API key against the configured secret.
type KeyVerifier interface {
	Verify(presented string) bool
}

// PricesHandler serves the authenticated plan-price endpoint.
type PricesHandler struct {
	prices  PriceReader
	gate    KeyVerifier
	metrics telemetry.Collector
	logger  *slog.Logger
}

// NewPricesHandler constructs a PricesHandler with its dependencies.
func NewPricesHandler(prices PriceReader, gate KeyVerifier, metrics telemetry.Collector, logger *slog.Logger) *PricesHandler {
	if metrics == nil {
		metrics = telemetry.NoopCollector{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PricesHandler{
		prices:  prices,
		gate:    gate,
		metrics: metrics,
		logger:  logger,
	}
}

// RegisterRoutes mounts the pricing endpoints onto the given router group.
func (h *PricesHandler) RegisterRoutes(r chi.Router) {
	r.Get("/prices", h.HandleGetPrices)
}

// pricesResponse is the envelope returned by GET /v1/prices. LastUpdated is
// epoch milliseconds of the snapshot fetch time.
type pricesResponse struct {
	Success     bool               `json:"success"`
	Data        map[string]float64 `json:"data"`
	Cached      bool               `json:"cached"`
	LastUpdated int64              `json:"lastUpdated"`
}

// HandleGetPrices returns the current plan-to-price mapping.
//
// The endpoint requires a pre-shared API key, presented either in the
// X-Api-Key header or as an Authorization bearer token. An empty mapping is a
// valid (degraded) response, never an error: the storefront falls back to its
// static prices.
func (h *PricesHandler) HandleGetPrices(w http.ResponseWriter, r *http.Request) {
	key := presentedKey(r)
	if key == "" {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthKeyMissing, "API key is required", nil))
		return
	}
	if !h.gate.Verify(key) {
		h.logger.Warn("rejected price request with invalid API key",
			"request_id", types.GetRequestID(r.Context()),
			"remote_addr", r.RemoteAddr,
		)
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthKeyInvalid, "invalid API key", nil))
		return
	}

	snap, cached := h.prices.Get(r.Context())
	h.metrics.RecordCacheRead(cached)

	prices := snap.Prices
	if prices == nil {
		prices = map[string]float64{}
	}

	core.JSON(w, r, http.StatusOK, pricesResponse{
		Success:     true,
		Data:        prices,
		Cached:      cached,
		LastUpdated: snap.FetchedAt.UnixMilli(),
	})
}

// presentedKey extracts the API key from the X-Api-Key header, falling back
// to an Authorization bearer token.
func presentedKey(r *http.Request) string {
	if key := strings.TrimSpace(r.Header.Get("X-Api-Key")); key != "" {
		return key
	}
	authz := strings.TrimSpace(r.Header.Get("Authorization"))
	if rest, ok := strings.CutPrefix(authz, "Bearer "); ok {
		return strings.TrimSpace(rest)
	}
	return ""
}
