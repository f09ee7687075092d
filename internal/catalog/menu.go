package catalog

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/fairyhunter13/smoothie-kiosk/internal/model"
)

// Menu is a catalog together with its opening stock.
type Menu struct {
	Catalog *Catalog
	Stock   map[string]decimal.Decimal
}

// DefaultMenu returns the built-in catalog and stock.
func DefaultMenu() Menu {
	return Menu{Catalog: Default(), Stock: DefaultStock()}
}

type menuFile struct {
	Products []struct {
		Name   string             `yaml:"name"`
		Price  float64            `yaml:"price"`
		Recipe map[string]float64 `yaml:"recipe"`
	} `yaml:"products"`
	Inventory map[string]float64 `yaml:"inventory"`
}

// ParseMenu decodes a YAML menu document.
//
// Example:
//
//	products:
//	  - name: Mango Smoothie
//	    price: 4
//	    recipe: {mango: 1, bananas: 1, ice: 1}
//	inventory:
//	  mango: 10
func ParseMenu(data []byte) (Menu, error) {
	var f menuFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Menu{}, fmt.Errorf("decode menu: %w", err)
	}
	products := make([]model.Product, 0, len(f.Products))
	for _, p := range f.Products {
		recipe := make(model.Recipe, len(p.Recipe))
		for ing, q := range p.Recipe {
			recipe[ing] = decimal.NewFromFloat(q)
		}
		products = append(products, model.Product{
			Name:   p.Name,
			Price:  decimal.NewFromFloat(p.Price),
			Recipe: recipe,
		})
	}
	cat, err := New(products...)
	if err != nil {
		return Menu{}, err
	}
	stock := make(map[string]decimal.Decimal, len(f.Inventory))
	for ing, q := range f.Inventory {
		if q < 0 {
			return Menu{}, fmt.Errorf("inventory %q: quantity must be >= 0", ing)
		}
		stock[ing] = decimal.NewFromFloat(q)
	}
	return Menu{Catalog: cat, Stock: stock}, nil
}

// LoadMenu reads a YAML menu file from disk.
func LoadMenu(path string) (Menu, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Menu{}, fmt.Errorf("read menu file %s: %w", path, err)
	}
	return ParseMenu(data)
}
