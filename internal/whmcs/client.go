// Package whmcs implements the client for the upstream WHMCS billing
// platform. It fetches the product list and normalizes it into the
// storefront's plan->price mapping.
//
// The client is deliberately fail-soft: FetchPrices never returns an error.
// Missing price data must never block storefront rendering, so every failure
// mode (missing credentials, transport errors, API-level errors, malformed
// records) degrades to an empty mapping plus a logged diagnostic.
package whmcs

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"expanse/internal/catalog"
	"expanse/internal/config"
	"expanse/internal/external"
)

// apiPath is the WHMCS API endpoint, relative to the configured base URL.
const apiPath = "/includes/api.php"

// maxBodyLog limits how much of an upstream response body is included in
// diagnostic log entries.
const maxBodyLog = 2048

// maxResponseBody caps how much of the upstream response is read. GetProducts
// responses for the Expanse catalog are a few KB; 4 MB is generous headroom.
const maxResponseBody = 4 << 20

// Client calls the WHMCS API and maps its products onto internal plan ids.
type Client struct {
	cfg     config.WHMCSConfig
	http    *external.BaseClient
	catalog *catalog.Catalog
	logger  *slog.Logger
}

// NewClient creates a Client with a circuit-breaking HTTP client. The
// underlying request is single shot with the configured timeout; there is no
// retry, matching the upstream contract of one synchronous call per fetch.
func NewClient(cfg config.WHMCSConfig, cat *catalog.Catalog, logger *slog.Logger) *Client {
	httpClient := &http.Client{Timeout: cfg.Timeout}
	return NewClientWithBase(cfg, external.NewBaseClient(httpClient, "whmcs", "Expanse-Storefront/1.0"), cat, logger)
}

// NewClientWithBase creates a Client with a caller-supplied BaseClient.
// This constructor exists for testing against httptest servers.
func NewClientWithBase(cfg config.WHMCSConfig, base *external.BaseClient, cat *catalog.Catalog, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:     cfg,
		http:    base,
		catalog: cat,
		logger:  logger,
	}
}

// FetchPrices retrieves the upstream product list and returns the mapping of
// internal plan id to monthly price. The mapping is built best-effort,
// product by product; a malformed record is skipped, never fatal. All failure
// modes return an empty (non-nil) map.
func (c *Client) FetchPrices(ctx context.Context) map[string]float64 {
	prices := make(map[string]float64)

	identifier := c.cfg.Identifier.Unmask()
	secret := c.cfg.Secret.Unmask()
	if identifier == "" || secret == "" {
		c.logger.Warn("whmcs credentials not configured; serving empty price map")
		return prices
	}

	form := url.Values{
		"action":       {"GetProducts"},
		"identifier":   {identifier},
		"secret":       {secret},
		"responsetype": {"json"},
	}

	endpoint := strings.TrimSuffix(c.cfg.BaseURL, "/") + apiPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		c.logger.Error("whmcs request build failed", "error", err)
		return prices
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("whmcs request failed", "error", err)
		return prices
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		c.logger.Error("whmcs response read failed", "status", resp.StatusCode, "error", err)
		return prices
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		args := []any{
			"status", resp.StatusCode,
			"body", truncate(body, maxBodyLog),
		}
		if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized {
			args = append(args, "hint", "check WHMCS API credentials, the server IP allowlist, and the API role's GetProducts permission")
		}
		c.logger.Error("whmcs returned non-success status", args...)
		return prices
	}

	records, err := normalizeProducts(body)
	if err != nil {
		c.logger.Error("whmcs response parse failed", "error", err, "body", truncate(body, maxBodyLog))
		return prices
	}

	for _, rec := range records {
		pid, ok := productID(rec.fields)
		if !ok {
			c.logger.Warn("whmcs product record has no usable pid", "record", string(rec.raw))
			continue
		}

		planID, ok := c.catalog.PlanForProduct(pid)
		if !ok {
			// Not a product the storefront exposes.
			continue
		}

		price, ok := extractPrice(rec.fields, c.cfg.Currency)
		if !ok {
			c.logger.Warn("whmcs product has no valid positive price; skipping",
				"pid", pid,
				"plan", planID,
				"record", string(rec.raw),
			)
			continue
		}

		prices[planID] = price
	}

	return prices
}

// productID extracts the upstream product id from a record. WHMCS serializes
// pid as a number, but string ids appear in some deployments.
func productID(fields map[string]any) (int, bool) {
	v, ok := fields["pid"]
	if !ok {
		return 0, false
	}
	n, ok := parseNumber(v)
	if !ok || n <= 0 {
		return 0, false
	}
	return int(n), true
}

// truncate shortens a response body for log output.
func truncate(body []byte, limit int) string {
	if len(body) <= limit {
		return string(body)
	}
	return string(body[:limit]) + "...(truncated)"
}
