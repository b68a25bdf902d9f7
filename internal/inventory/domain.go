package inventory

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-crm/internal/shared"
)

// Direction enumerates stock movements driven by orders.
type Direction string

const (
	// DirectionDeduct decrements stock (baixa).
	DirectionDeduct Direction = "DEDUCT"
	// DirectionReturn reverses a prior deduction (devolução).
	DirectionReturn Direction = "RETURN"
	// DirectionAdjust records a manual catalog edit of the stock level.
	DirectionAdjust Direction = "ADJUST"
)

// Product is a catalog item with its physical stock.
type Product struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	NameKey       string          `json:"name_key"`
	Brand         string          `json:"brand,omitempty"`
	Category      string          `json:"category,omitempty"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	SalePrice     decimal.Decimal `json:"sale_price"`
	Stock         int             `json:"stock"`
	Reserved      int             `json:"reserved"`
	Active        bool            `json:"active"`
	Notes         string          `json:"notes,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Available returns stock not held by reservations.
func (p Product) Available() int {
	if p.Reserved >= p.Stock {
		return 0
	}
	return p.Stock - p.Reserved
}

// StockLine is one order line as seen by the inventory ledger. Lines without
// a ProductID were typed in free text and never touch stock.
type StockLine struct {
	ProductID string
	Name      string
	Quantity  int
}

// Movement is one entry of a product's stock card.
type Movement struct {
	ID           string    `json:"id"`
	ProductID    string    `json:"product_id"`
	Direction    Direction `json:"direction"`
	Quantity     int       `json:"quantity"`
	BalanceAfter int       `json:"balance_after"`
	Reference    string    `json:"reference,omitempty"`
	Note         string    `json:"note,omitempty"`
	At           time.Time `json:"at"`
}

// AdjustResult reports what an adjustment touched.
type AdjustResult struct {
	Applied []Movement
	// Skipped lists product ids referenced by lines but absent from the catalog.
	Skipped []string
}

// AdjustInput groups the lines of one order adjustment.
type AdjustInput struct {
	Reference string
	Direction Direction
	Lines     []StockLine
}

// ProductInput describes a new catalog item.
type ProductInput struct {
	Name          string          `json:"name" validate:"required,max=200"`
	Brand         string          `json:"brand" validate:"max=120"`
	Category      string          `json:"category" validate:"max=120"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	SalePrice     decimal.Decimal `json:"sale_price"`
	Stock         int             `json:"stock" validate:"gte=0"`
	Reserved      int             `json:"reserved" validate:"gte=0"`
	Active        *bool           `json:"active"`
	Notes         string          `json:"notes"`
}

// ProductPatch carries a partial catalog update.
type ProductPatch struct {
	Name          *string          `json:"name" validate:"omitempty,min=1,max=200"`
	Brand         *string          `json:"brand" validate:"omitempty,max=120"`
	Category      *string          `json:"category" validate:"omitempty,max=120"`
	PurchasePrice *decimal.Decimal `json:"purchase_price"`
	SalePrice     *decimal.Decimal `json:"sale_price"`
	Stock         *int             `json:"stock" validate:"omitempty,gte=0"`
	Reserved      *int             `json:"reserved" validate:"omitempty,gte=0"`
	Active        *bool            `json:"active"`
	Notes         *string          `json:"notes"`
}

// ListFilter narrows product listings.
type ListFilter struct {
	Active *bool
	// InStock keeps only products with unreserved stock left.
	InStock bool
}

// ErrProductNotFound indicates the product id is unknown.
var ErrProductNotFound = fmt.Errorf("inventory: product %w", shared.ErrNotFound)

// ErrInvalidDirection indicates an unsupported movement direction.
var ErrInvalidDirection = shared.Invalid("inventory: direction must be DEDUCT or RETURN")
