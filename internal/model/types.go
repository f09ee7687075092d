// Package model defines domain types used by the kiosk.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Recipe maps an ingredient to the quantity one unit of a product consumes.
type Recipe map[string]decimal.Decimal

// Clone returns an independent copy of the recipe.
func (r Recipe) Clone() Recipe {
	out := make(Recipe, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Product is a menu item with its price and recipe.
type Product struct {
	Name   string          `json:"name"`
	Price  decimal.Decimal `json:"price"`
	Recipe Recipe          `json:"recipe"`
}

// OrderRequest is a submitted order waiting for the preparation station.
type OrderRequest struct {
	Sequence    uint64    `json:"sequence"`
	ProductID   string    `json:"product_id"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Status is the terminal state of a processed order.
type Status string

const (
	StatusFulfilled                 Status = "fulfilled"
	StatusRejectedInsufficientStock Status = "rejected_insufficient_stock"
	StatusRejectedUnknownProduct    Status = "rejected_unknown_product"
)

// Rejected reports whether the order was turned down.
func (s Status) Rejected() bool { return s != StatusFulfilled }

// OrderResult is published once per processed order.
type OrderResult struct {
	Sequence    uint64          `json:"sequence"`
	ProductID   string          `json:"product_id"`
	Status      Status          `json:"status"`
	Price       decimal.Decimal `json:"price"`
	Missing     []string        `json:"missing,omitempty"`
	CompletedAt time.Time       `json:"completed_at"`
}

// Message is the text shown to the customer for this result.
func (r OrderResult) Message() string {
	switch r.Status {
	case StatusFulfilled:
		return "Enjoy your smoothie!"
	case StatusRejectedInsufficientStock:
		return "Sorry, that smoothie is out of stock."
	case StatusRejectedUnknownProduct:
		return "Sorry, that item is not on the menu."
	default:
		return ""
	}
}

// Snapshot is a read-only view of stock and ledger totals.
type Snapshot struct {
	Inventory     map[string]decimal.Decimal `json:"inventory"`
	Revenue       decimal.Decimal            `json:"revenue"`
	ProductCounts map[string]int             `json:"product_counts"`
}
