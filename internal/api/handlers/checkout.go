package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"expanse/internal/checkout"
	"expanse/internal/core"
	"expanse/internal/types"
)

// URLResolver maps a cart configuration to a complete checkout URL.
type URLResolver interface {
	BuildURL(cfg checkout.CartConfiguration) (string, error)
}

// CheckoutHandler serves cart-configuration resolution.
type CheckoutHandler struct {
	resolver URLResolver
	logger   *slog.Logger
}

// NewCheckoutHandler constructs a CheckoutHandler.
func NewCheckoutHandler(resolver URLResolver, logger *slog.Logger) *CheckoutHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CheckoutHandler{resolver: resolver, logger: logger}
}

// RegisterRoutes mounts the checkout endpoints onto the given router group.
func (h *CheckoutHandler) RegisterRoutes(r chi.Router) {
	r.Post("/checkout", h.HandleResolveCheckout)
}

// checkoutResponse is the envelope returned by POST /v1/checkout.
type checkoutResponse struct {
	Success bool   `json:"success"`
	URL     string `json:"url"`
}

// HandleResolveCheckout resolves a cart configuration into a checkout URL.
//
// Resolution is fail-fast: the first selection that does not resolve against
// the catalog aborts with a 400 naming the offending field. A partial URL is
// never returned.
func (h *CheckoutHandler) HandleResolveCheckout(w http.ResponseWriter, r *http.Request) {
	var cfg checkout.CartConfiguration
	if err := core.DecodeJSON(w, r, &cfg); err != nil {
		core.Error(w, r, err)
		return
	}

	if cfg.PlanName == "" {
		core.Error(w, r, types.NewFieldError(types.ErrCodeValidationMissingField,
			"planName", "plan_name is required"))
		return
	}
	if cfg.LocationID == "" {
		core.Error(w, r, types.NewFieldError(types.ErrCodeValidationMissingField,
			"locationId", "location is required"))
		return
	}

	url, err := h.resolver.BuildURL(cfg)
	if err != nil {
		h.logger.Warn("checkout resolution failed",
			"request_id", types.GetRequestID(r.Context()),
			"plan", cfg.PlanName,
			"error", err,
		)
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, checkoutResponse{Success: true, URL: url})
}
