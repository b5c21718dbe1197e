package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
)

// defaultCatalogJSON ships the production Expanse catalog inside the binary so
// the service can start without any external catalog source.
//
//go:embed default_catalog.json
var defaultCatalogJSON []byte

// Default returns the embedded catalog. The embedded data is validated too;
// a broken default is a packaging bug and must fail startup.
func Default() (*Catalog, error) {
	return parse(defaultCatalogJSON)
}

// LoadFile reads and validates a catalog from a JSON file.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: reading %s: %w", path, err)
	}
	return parse(data)
}

func parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("catalog: invalid JSON: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}
