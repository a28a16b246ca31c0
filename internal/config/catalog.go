package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// CatalogItem is one item collected through the period price endpoint.
type CatalogItem struct {
	Code     string `yaml:"code"`
	Name     string `yaml:"name"`
	KindCode string `yaml:"kind_code"`
	RankCode string `yaml:"rank_code"`
}

// Catalog describes what to collect besides the discovered product universe.
type Catalog struct {
	CategoryCode           string        `yaml:"category_code"`
	CategoryName           string        `yaml:"category_name"`
	Items                  []CatalogItem `yaml:"items"`
	CollectDaysBack        int           `yaml:"collect_days_back"`
	DefaultKindCode        string        `yaml:"default_kind_code"`
	DefaultProductRankCode string        `yaml:"default_product_rank_code"`
	CountryCode            string        `yaml:"country_code"`
	APIURL                 string        `yaml:"api_url"`
	ProductClsCode         string        `yaml:"product_cls_code"`
}

// DefaultCatalog is used when no catalog file exists: retail prices, no fixed items.
func DefaultCatalog() *Catalog {
	c := &Catalog{}
	c.setDefaults()
	return c
}

// LoadCatalog reads a YAML catalog. A missing file yields DefaultCatalog.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return DefaultCatalog(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	c.setDefaults()

	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("invalid catalog %s: %w", path, err)
	}
	return &c, nil
}

func (c *Catalog) setDefaults() {
	if c.CollectDaysBack <= 0 {
		c.CollectDaysBack = 7
	}
	if c.ProductClsCode == "" {
		c.ProductClsCode = "01"
	}
	if c.DefaultProductRankCode == "" {
		c.DefaultProductRankCode = "04"
	}
}

func (c *Catalog) validate() error {
	seen := make(map[string]bool, len(c.Items))
	for i, item := range c.Items {
		if item.Code == "" {
			return fmt.Errorf("items[%d]: code is required", i)
		}
		if seen[item.Code+"/"+item.KindCode] {
			return fmt.Errorf("items[%d]: duplicate item %s", i, item.Code)
		}
		seen[item.Code+"/"+item.KindCode] = true
	}
	return nil
}

// KindFor returns the kind code of an item, falling back to the catalog default.
func (c *Catalog) KindFor(item CatalogItem) string {
	if item.KindCode != "" {
		return item.KindCode
	}
	return c.DefaultKindCode
}

// RankFor returns the rank code of an item, falling back to the catalog default.
func (c *Catalog) RankFor(item CatalogItem) string {
	if item.RankCode != "" {
		return item.RankCode
	}
	return c.DefaultProductRankCode
}
