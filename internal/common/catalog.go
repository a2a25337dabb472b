package common

import (
	"fmt"
	"os"
	"path/filepath"

	"neurosync-rewards-go/internal/models"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v2"
)

// catalogEntry carries the cost as a string so YAML stays human-editable
// ("75", "12.5") and parsing errors fail loudly at startup.
type catalogEntry struct {
	Id   string `yaml:"id"`
	Name string `yaml:"name"`
	Cost string `yaml:"cost"`
}

type catalogFile struct {
	Items []catalogEntry `yaml:"items"`
}

// LoadCatalog reads the redemption catalog. Catalog prices are the
// authoritative cost at redemption time.
func LoadCatalog(catalogPath string) ([]models.CatalogItem, error) {
	var path string
	if filepath.IsAbs(catalogPath) {
		path = catalogPath
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		path = filepath.Join(wd, catalogPath)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", catalogPath, err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("unable to parse %s: %w", catalogPath, err)
	}
	if len(file.Items) == 0 {
		return nil, fmt.Errorf("catalog %s contains no items", catalogPath)
	}

	seen := make(map[string]bool, len(file.Items))
	items := make([]models.CatalogItem, 0, len(file.Items))
	for i, entry := range file.Items {
		if entry.Id == "" {
			return nil, fmt.Errorf("catalog item at index %d missing id", i)
		}
		if entry.Name == "" {
			return nil, fmt.Errorf("catalog item %s missing name", entry.Id)
		}
		if seen[entry.Id] {
			return nil, fmt.Errorf("duplicate catalog item id %s", entry.Id)
		}
		seen[entry.Id] = true

		cost, err := decimal.NewFromString(entry.Cost)
		if err != nil {
			return nil, fmt.Errorf("catalog item %s has invalid cost %q: %w", entry.Id, entry.Cost, err)
		}
		if !cost.IsPositive() {
			return nil, fmt.Errorf("catalog item %s cost must be positive, got %s", entry.Id, cost.String())
		}

		items = append(items, models.CatalogItem{
			Id:   entry.Id,
			Name: entry.Name,
			Cost: cost,
		})
	}

	return items, nil
}
