// Package orders coordinates the order lifecycle: numbering, stock deduction
// and return, revenue posting and lead status propagation.
package orders

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-crm/internal/inventory"
	"github.com/odyssey-erp/odyssey-crm/internal/leads"
	"github.com/odyssey-erp/odyssey-crm/internal/ledger"
	"github.com/odyssey-erp/odyssey-crm/internal/shared"
)

// Status enumerates order states. Any state may follow any other.
type Status string

const (
	StatusDraft           Status = "draft"
	StatusAwaitingPayment Status = "awaiting_payment"
	StatusPaid            Status = "paid"
	StatusShipped         Status = "shipped"
	StatusDelivered       Status = "delivered"
	StatusCancelled       Status = "cancelled"
)

// Valid reports whether s is a known state.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusAwaitingPayment, StatusPaid, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// deducting lists the states in which an order's stock is out of the catalog.
func (s Status) deducting() bool {
	return s == StatusPaid || s == StatusShipped || s == StatusDelivered
}

var leadStatusFor = map[Status]leads.Status{
	StatusPaid:      leads.StatusPaid,
	StatusShipped:   leads.StatusShipped,
	StatusDelivered: leads.StatusFinished,
	StatusCancelled: leads.StatusLost,
}

// Effects are the side effects of entering a state.
type Effects struct {
	Deduct      bool
	Return      bool
	PostRevenue bool
	LeadStatus  leads.Status
}

// Plan maps a transition to its side effects. Effects depend only on the
// target state and the stockDeducted flag; from is accepted so callers can
// log the whole transition. The flag is the only guard against deducting or
// returning twice.
func Plan(from, to Status, stockDeducted bool) Effects {
	return Effects{
		Deduct:      to.deducting() && !stockDeducted,
		Return:      to == StatusCancelled && stockDeducted,
		PostRevenue: to == StatusPaid,
		LeadStatus:  leadStatusFor[to],
	}
}

// LineItem is one order line. ProductID is empty for free-text items.
type LineItem struct {
	ProductID string          `json:"product_id,omitempty"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// Order is a customer order.
type Order struct {
	ID            string          `json:"id"`
	Number        int64           `json:"number"`
	Customer      string          `json:"customer"`
	Phone         string          `json:"phone"`
	Origin        string          `json:"origin,omitempty"`
	LeadID        string          `json:"lead_id,omitempty"`
	Items         []LineItem      `json:"items"`
	Discount      decimal.Decimal `json:"discount"`
	Shipping      decimal.Decimal `json:"shipping"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Total         decimal.Decimal `json:"total"`
	Status        Status          `json:"status"`
	PaymentMethod string          `json:"payment_method,omitempty"`
	Notes         string          `json:"notes,omitempty"`
	StockDeducted bool            `json:"stock_deducted"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Totals returns Σ(qty × price) and max(0, subtotal − discount + shipping).
func Totals(items []LineItem, discount, shipping decimal.Decimal) (subtotal, total decimal.Decimal) {
	for _, it := range items {
		subtotal = subtotal.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	total = subtotal.Sub(discount).Add(shipping)
	if total.IsNegative() {
		total = decimal.Zero
	}
	return subtotal, total
}

// Recalculate refreshes the derived amounts.
func (o *Order) Recalculate() {
	o.Subtotal, o.Total = Totals(o.Items, o.Discount, o.Shipping)
}

// StockLines converts the items for the inventory ledger.
func (o Order) StockLines() []inventory.StockLine {
	lines := make([]inventory.StockLine, 0, len(o.Items))
	for _, it := range o.Items {
		lines = append(lines, inventory.StockLine{ProductID: it.ProductID, Name: it.Name, Quantity: it.Quantity})
	}
	return lines
}

// RevenueSource converts the order for the revenue ledger.
func (o Order) RevenueSource() ledger.Source {
	_, total := Totals(o.Items, o.Discount, o.Shipping)
	return ledger.Source{
		OrderID:   o.ID,
		Number:    o.Number,
		Customer:  o.Customer,
		Total:     total,
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
	}
}

// ListFilter narrows order listings.
type ListFilter struct {
	Status Status
}

// ErrOrderNotFound indicates the order id is unknown.
var ErrOrderNotFound = fmt.Errorf("orders: order %w", shared.ErrNotFound)
