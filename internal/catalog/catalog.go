// Package catalog holds the fixed menu of products and their recipes.
package catalog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"

	"github.com/fairyhunter13/smoothie-kiosk/internal/model"
)

// Catalog is an immutable set of products keyed by case-folded name.
type Catalog struct {
	byKey map[string]model.Product
	order []string
}

// New validates the products and builds a Catalog.
func New(products ...model.Product) (*Catalog, error) {
	c := &Catalog{byKey: make(map[string]model.Product, len(products))}
	for _, p := range products {
		if err := validate(p); err != nil {
			return nil, err
		}
		k := key(p.Name)
		if _, dup := c.byKey[k]; dup {
			return nil, fmt.Errorf("duplicate product %q", p.Name)
		}
		p.Name = strings.TrimSpace(p.Name)
		p.Recipe = p.Recipe.Clone()
		c.byKey[k] = p
		c.order = append(c.order, k)
	}
	return c, nil
}

func validate(p model.Product) error {
	if strings.TrimSpace(p.Name) == "" {
		return errors.New("product name is required")
	}
	if !p.Price.IsPositive() {
		return fmt.Errorf("product %q: price must be > 0", p.Name)
	}
	if len(p.Recipe) == 0 {
		return fmt.Errorf("product %q: recipe is empty", p.Name)
	}
	for ing, qty := range p.Recipe {
		if strings.TrimSpace(ing) == "" {
			return fmt.Errorf("product %q: empty ingredient name", p.Name)
		}
		if !qty.IsPositive() {
			return fmt.Errorf("product %q: quantity of %q must be > 0", p.Name, ing)
		}
	}
	return nil
}

// key normalizes a product identifier. A fresh Caser is used per call since
// Casers carry state.
func key(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}

// Lookup returns a copy of the named product or ErrUnknownProduct.
func (c *Catalog) Lookup(productID string) (model.Product, error) {
	p, ok := c.byKey[key(productID)]
	if !ok {
		return model.Product{}, fmt.Errorf("%w: %q", model.ErrUnknownProduct, productID)
	}
	p.Recipe = p.Recipe.Clone()
	return p, nil
}

// Products lists the menu in declaration order.
func (c *Catalog) Products() []model.Product {
	out := make([]model.Product, 0, len(c.order))
	for _, k := range c.order {
		p := c.byKey[k]
		p.Recipe = p.Recipe.Clone()
		out = append(out, p)
	}
	return out
}

// Len returns the number of products.
func (c *Catalog) Len() int { return len(c.order) }

func qty(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

// Default returns the kiosk's built-in smoothie menu.
func Default() *Catalog {
	c, err := New(
		model.Product{
			Name:  "Strawberry Smoothie",
			Price: decimal.NewFromInt(5),
			Recipe: model.Recipe{
				"strawberries": qty(5),
				"bananas":      qty(1),
				"greek yogurt": qty(1),
				"ice":          qty(1),
			},
		},
		model.Product{
			Name:  "Mango Smoothie",
			Price: decimal.NewFromInt(4),
			Recipe: model.Recipe{
				"mango":   qty(1),
				"bananas": qty(1),
				"ice":     qty(1),
			},
		},
		model.Product{
			Name:  "Multifruit Smoothie",
			Price: decimal.NewFromInt(6),
			Recipe: model.Recipe{
				"blueberries":  qty(10),
				"strawberries": qty(5),
				"mango":        qty(0.5),
				"greek yogurt": qty(1),
				"orange juice": qty(1),
			},
		},
	)
	if err != nil {
		panic(err)
	}
	return c
}

// DefaultStock is the opening inventory for the built-in menu.
func DefaultStock() map[string]decimal.Decimal {
	return map[string]decimal.Decimal{
		"strawberries": qty(100),
		"bananas":      qty(50),
		"orange juice": qty(20),
		"mango":        qty(10),
		"blueberries":  qty(300),
		"ice":          qty(50),
		"greek yogurt": qty(20),
	}
}
