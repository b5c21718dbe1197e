// Package catalog holds the commerce lookup tables that map storefront
// selections onto the billing platform's product and configuration-option
// identifiers. The catalog is versioned configuration data: it is loaded once
// at startup (from a JSON file, the embedded default, or Postgres), validated
// for completeness, and immutable thereafter. Catalog changes never require a
// rebuild unless the embedded default itself is being revised.
package catalog

import "fmt"

// Default option keys applied by the checkout resolver when the corresponding
// cart field is omitted. An explicitly supplied invalid value still fails;
// defaults never mask bad input.
const (
	DefaultSoftware = "paper"
	DefaultSplits   = "no-extra"
	DefaultBackups  = "2-included"
)

// OptionIndices are the billing platform's fixed configoption slots for each
// purchase dimension. These are schema constants defined by the upstream
// product setup, never derived values.
type OptionIndices struct {
	Location int `json:"location"`
	Software int `json:"software"`
	Splits   int `json:"splits"`
	Backups  int `json:"backups"`
}

// Catalog is the immutable, process-wide set of lookup tables.
//
// PlanNames maps the human-readable plan label shown on the storefront
// ("4GB Ram") to the internal plan id ("4gb"). Products maps the internal
// plan id to the upstream product id (pid). The four option tables map
// human-selectable keys to configuration-option values.
type Catalog struct {
	PlanNames map[string]string `json:"plan_names"`
	Products  map[string]int    `json:"products"`
	Locations map[string]int    `json:"locations"`
	Software  map[string]int    `json:"software"`
	Splits    map[string]int    `json:"splits"`
	Backups   map[string]int    `json:"backups"`

	Options         OptionIndices `json:"option_indices"`
	ServerNameField int           `json:"server_name_field"`
	CheckoutBaseURL string        `json:"checkout_base_url"`
}

// PlanForProduct reverse-looks-up the internal plan id for an upstream
// product id. Returns ("", false) when the product is not one the storefront
// exposes; the billing client skips such products.
func (c *Catalog) PlanForProduct(pid int) (string, bool) {
	for planID, productID := range c.Products {
		if productID == pid {
			return planID, true
		}
	}
	return "", false
}

// Validate checks the catalog for completeness so that misconfigured lookup
// data fails the process at startup instead of surfacing as per-request
// resolution errors.
func (c *Catalog) Validate() error {
	if c.CheckoutBaseURL == "" {
		return fmt.Errorf("catalog: checkout_base_url is required")
	}
	if len(c.PlanNames) == 0 {
		return fmt.Errorf("catalog: plan_names table is empty")
	}
	for name, planID := range c.PlanNames {
		pid, ok := c.Products[planID]
		if !ok || pid == 0 {
			return fmt.Errorf("catalog: plan %q (%s) has no product id", name, planID)
		}
	}
	if len(c.Locations) == 0 {
		return fmt.Errorf("catalog: locations table is empty")
	}
	for key, table := range map[string]map[string]int{
		DefaultSoftware: c.Software,
		DefaultSplits:   c.Splits,
		DefaultBackups:  c.Backups,
	} {
		if v, ok := table[key]; !ok || v == 0 {
			return fmt.Errorf("catalog: default option %q is missing or zero", key)
		}
	}
	for slot, idx := range map[string]int{
		"location": c.Options.Location,
		"software": c.Options.Software,
		"splits":   c.Options.Splits,
		"backups":  c.Options.Backups,
	} {
		if idx <= 0 {
			return fmt.Errorf("catalog: option index for %s must be positive", slot)
		}
	}
	if c.ServerNameField <= 0 {
		return fmt.Errorf("catalog: server_name_field must be positive")
	}
	return nil
}
