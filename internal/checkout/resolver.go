// Package checkout resolves a cart configuration into a billing-platform
// checkout URL.
package checkout

import (
	"fmt"
	"net/url"
	"strings"

	"expanse/internal/catalog"
	"expanse/internal/types"
)

// CartConfiguration is the transient, per-call set of storefront selections.
// Optional fields fall back to catalog defaults only when empty; an explicit
// invalid value still fails resolution.
type CartConfiguration struct {
	PlanName   string `json:"plan_name" validate:"required"`
	LocationID string `json:"location" validate:"required"`
	ServerName string `json:"server_name,omitempty"`
	Software   string `json:"software,omitempty"`
	Splits     string `json:"splits,omitempty"`
	Backups    string `json:"backups,omitempty"`
}

// Resolver maps cart configurations through the catalog's ordered lookup
// tables. It is pure: no I/O, no shared mutable state, safe for any number of
// concurrent callers.
type Resolver struct {
	catalog *catalog.Catalog
}

// NewResolver creates a Resolver over the given catalog.
func NewResolver(cat *catalog.Catalog) *Resolver {
	return &Resolver{catalog: cat}
}

// BuildURL resolves the configuration into a complete checkout URL.
//
// Resolution is sequential and fail-fast: the first unresolved lookup aborts
// with a *types.AppError naming the offending field. A partial URL is never
// returned. An unresolved lookup is a non-recoverable configuration mismatch
// that must block the purchase attempt.
func (r *Resolver) BuildURL(cfg CartConfiguration) (string, error) {
	cat := r.catalog

	planID, ok := cat.PlanNames[cfg.PlanName]
	if !ok {
		return "", types.NewFieldError(types.ErrCodeValidationUnknownPlan,
			"planName", fmt.Sprintf("unknown plan %q", cfg.PlanName))
	}

	productID, ok := cat.Products[planID]
	if !ok || productID == 0 {
		return "", types.NewFieldError(types.ErrCodeValidationUnknownProduct,
			"planName", fmt.Sprintf("plan %q has no product id", cfg.PlanName))
	}

	locationID, ok := cat.Locations[cfg.LocationID]
	if !ok {
		return "", types.NewFieldError(types.ErrCodeValidationUnknownLocation,
			"locationId", fmt.Sprintf("unknown location %q", cfg.LocationID))
	}

	software := cfg.Software
	if software == "" {
		software = catalog.DefaultSoftware
	}
	softwareID, ok := cat.Software[software]
	if !ok || softwareID == 0 {
		return "", types.NewFieldError(types.ErrCodeValidationUnknownSoftware,
			"software", fmt.Sprintf("unknown software %q", software))
	}

	splits := cfg.Splits
	if splits == "" {
		splits = catalog.DefaultSplits
	}
	splitsID, ok := cat.Splits[splits]
	if !ok || splitsID == 0 {
		return "", types.NewFieldError(types.ErrCodeValidationUnknownSplits,
			"splits", fmt.Sprintf("unknown splits option %q", splits))
	}

	backups := cfg.Backups
	if backups == "" {
		backups = catalog.DefaultBackups
	}
	backupsID, ok := cat.Backups[backups]
	if !ok {
		return "", types.NewFieldError(types.ErrCodeValidationUnknownBackups,
			"backups", fmt.Sprintf("unknown backups option %q", backups))
	}

	// The configoption order is fixed by the billing platform's cart:
	// location, software, splits, backups. The option indices are schema
	// constants; only the custom-field VALUE is percent-encoded, never the
	// keys.
	var b strings.Builder
	fmt.Fprintf(&b, "%s/cart.php?a=add&pid=%d", strings.TrimSuffix(cat.CheckoutBaseURL, "/"), productID)
	fmt.Fprintf(&b, "&configoption[%d]=%d", cat.Options.Location, locationID)
	fmt.Fprintf(&b, "&configoption[%d]=%d", cat.Options.Software, softwareID)
	fmt.Fprintf(&b, "&configoption[%d]=%d", cat.Options.Splits, splitsID)
	fmt.Fprintf(&b, "&configoption[%d]=%d", cat.Options.Backups, backupsID)

	if name := strings.TrimSpace(cfg.ServerName); name != "" {
		fmt.Fprintf(&b, "&customfield[%d]=%s", cat.ServerNameField, percentEncode(name))
	}

	return b.String(), nil
}

// percentEncode escapes a query value using %20 for spaces rather than the
// form-encoding + that url.QueryEscape produces.
func percentEncode(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
