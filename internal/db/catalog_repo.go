package db

import (
	"context"
	"fmt"
	"strconv"

	"expanse/internal/catalog"
	"expanse/internal/types"
)

// CatalogRepository loads the commerce lookup tables from Postgres. It is
// read-only: the storefront never writes catalog data, it only snapshots it
// once at startup. The schema mirrors the catalog JSON layout:
//
//	catalog_plans(label, plan_id, product_id)
//	catalog_options(dimension, option_key, option_value)
//	catalog_settings(setting_key, setting_value)
type CatalogRepository struct {
	db DBTX
}

// NewCatalogRepository creates a CatalogRepository backed by the given
// database connection (pool or transaction).
func NewCatalogRepository(db DBTX) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// Load reads the full catalog and validates it for completeness. Any missing
// table or setting is a startup-fatal configuration error.
func (r *CatalogRepository) Load(ctx context.Context) (*catalog.Catalog, error) {
	c := &catalog.Catalog{
		PlanNames: make(map[string]string),
		Products:  make(map[string]int),
		Locations: make(map[string]int),
		Software:  make(map[string]int),
		Splits:    make(map[string]int),
		Backups:   make(map[string]int),
	}

	if err := r.loadPlans(ctx, c); err != nil {
		return nil, err
	}
	if err := r.loadOptions(ctx, c); err != nil {
		return nil, err
	}
	if err := r.loadSettings(ctx, c); err != nil {
		return nil, err
	}

	if err := c.Validate(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalConfig, "catalog from database failed validation", err)
	}
	return c, nil
}

func (r *CatalogRepository) loadPlans(ctx context.Context, c *catalog.Catalog) error {
	rows, err := r.db.Query(ctx, `SELECT label, plan_id, product_id FROM catalog_plans`)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalConfig, "querying catalog_plans", err)
	}
	defer rows.Close()

	for rows.Next() {
		var label, planID string
		var productID int
		if err := rows.Scan(&label, &planID, &productID); err != nil {
			return types.NewAppError(types.ErrCodeInternalConfig, "scanning catalog_plans row", err)
		}
		c.PlanNames[label] = planID
		c.Products[planID] = productID
	}
	return rows.Err()
}

func (r *CatalogRepository) loadOptions(ctx context.Context, c *catalog.Catalog) error {
	rows, err := r.db.Query(ctx, `SELECT dimension, option_key, option_value FROM catalog_options`)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalConfig, "querying catalog_options", err)
	}
	defer rows.Close()

	for rows.Next() {
		var dimension, key string
		var value int
		if err := rows.Scan(&dimension, &key, &value); err != nil {
			return types.NewAppError(types.ErrCodeInternalConfig, "scanning catalog_options row", err)
		}
		switch dimension {
		case "location":
			c.Locations[key] = value
		case "software":
			c.Software[key] = value
		case "splits":
			c.Splits[key] = value
		case "backups":
			c.Backups[key] = value
		default:
			return types.NewAppError(types.ErrCodeInternalConfig,
				fmt.Sprintf("unknown catalog option dimension %q", dimension), nil)
		}
	}
	return rows.Err()
}

func (r *CatalogRepository) loadSettings(ctx context.Context, c *catalog.Catalog) error {
	rows, err := r.db.Query(ctx, `SELECT setting_key, setting_value FROM catalog_settings`)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalConfig, "querying catalog_settings", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return types.NewAppError(types.ErrCodeInternalConfig, "scanning catalog_settings row", err)
		}
		if err := applySetting(c, key, value); err != nil {
			return err
		}
	}
	return rows.Err()
}

func applySetting(c *catalog.Catalog, key, value string) error {
	if key == "checkout_base_url" {
		c.CheckoutBaseURL = value
		return nil
	}

	n, err := strconv.Atoi(value)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalConfig,
			fmt.Sprintf("catalog setting %q is not numeric", key), err)
	}
	switch key {
	case "option_index_location":
		c.Options.Location = n
	case "option_index_software":
		c.Options.Software = n
	case "option_index_splits":
		c.Options.Splits = n
	case "option_index_backups":
		c.Options.Backups = n
	case "server_name_field":
		c.ServerNameField = n
	default:
		return types.NewAppError(types.ErrCodeInternalConfig,
			fmt.Sprintf("unknown catalog setting %q", key), nil)
	}
	return nil
}
