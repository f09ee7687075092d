// Package store owns the kiosk's mutable shared state: ingredient stock and
// ledger totals.
package store

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/fairyhunter13/smoothie-kiosk/internal/model"
)

// InsufficientStockError lists the ingredients a reservation could not cover.
type InsufficientStockError struct {
	Missing []string
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("%s: %s", model.ErrInsufficientStock, strings.Join(e.Missing, ", "))
}

func (e *InsufficientStockError) Unwrap() error { return model.ErrInsufficientStock }

// Inventory is the ingredient ledger. Stock never goes below zero.
type Inventory struct {
	mu sync.RWMutex
	m  map[string]decimal.Decimal
}

// NewInventory seeds the ledger. Negative quantities are rejected.
func NewInventory(seed map[string]decimal.Decimal) (*Inventory, error) {
	m := make(map[string]decimal.Decimal, len(seed))
	for ing, q := range seed {
		if q.IsNegative() {
			return nil, fmt.Errorf("seed %q: quantity must be >= 0", ing)
		}
		m[ing] = q
	}
	return &Inventory{m: m}, nil
}

// TryReserve decrements every ingredient of the recipe, or none of them.
func (s *Inventory) TryReserve(recipe model.Recipe) error {
	for ing, q := range recipe {
		if !q.IsPositive() {
			return fmt.Errorf("recipe %q: quantity must be > 0", ing)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var missing []string
	for ing, q := range recipe {
		if s.m[ing].LessThan(q) {
			missing = append(missing, ing)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return &InsufficientStockError{Missing: missing}
	}
	for ing, q := range recipe {
		s.m[ing] = s.m[ing].Sub(q)
	}
	return nil
}

// Get returns the current quantity of one ingredient.
func (s *Inventory) Get(ingredient string) decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.m[ingredient]
}

// Snapshot copies the current stock.
func (s *Inventory) Snapshot() map[string]decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]decimal.Decimal, len(s.m))
	for k, v := range s.m {
		out[k] = v
	}
	return out
}
