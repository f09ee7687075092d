package store

import (
	"sync"

	"github.com/shopspring/decimal"
)

// Totals accumulates revenue and fulfilled counts per product.
type Totals struct {
	mu      sync.RWMutex
	counts  map[string]int
	revenue decimal.Decimal
}

func NewTotals() *Totals {
	return &Totals{counts: make(map[string]int)}
}

// Record credits one fulfilled order.
func (t *Totals) Record(productID string, price decimal.Decimal) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counts[productID]++
	t.revenue = t.revenue.Add(price)
}

// Revenue returns cumulative revenue.
func (t *Totals) Revenue() decimal.Decimal {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.revenue
}

// Snapshot copies the per-product counts together with revenue.
func (t *Totals) Snapshot() (map[string]int, decimal.Decimal) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]int, len(t.counts))
	for k, v := range t.counts {
		out[k] = v
	}
	return out, t.revenue
}
