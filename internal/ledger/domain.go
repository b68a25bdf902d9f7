// Package ledger records revenue and expense entries. Revenue derived from an
// order is posted at most once per order.
package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-crm/internal/shared"
)

// EntryType distinguishes money in from money out.
type EntryType string

const (
	// TypeRevenue marks money received.
	TypeRevenue EntryType = "revenue"
	// TypeExpense marks money spent.
	TypeExpense EntryType = "expense"
)

// Entry statuses.
const (
	StatusPaid    = "paid"
	StatusPending = "pending"
)

const (
	// CategorySales is the category of order derived revenue.
	CategorySales = "Sales"
	// DefaultPaymentMethod applies when the caller supplies none.
	DefaultPaymentMethod = "Pix"
	periodLayout         = "2006-01"
)

// Entry is one posted ledger line.
type Entry struct {
	ID            string          `json:"id"`
	Date          time.Time       `json:"date"`
	Period        string          `json:"period"`
	Type          EntryType       `json:"type"`
	Status        string          `json:"status"`
	Description   string          `json:"description"`
	Category      string          `json:"category"`
	PaymentMethod string          `json:"payment_method"`
	Amount        decimal.Decimal `json:"amount"`
	OrderID       string          `json:"order_id,omitempty"`
	Customer      string          `json:"customer,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Source is the view of an order needed to post its revenue.
type Source struct {
	OrderID   string
	Number    int64
	Customer  string
	Total     decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PostingDate is the last update, falling back to creation, then now.
func (s Source) PostingDate(now time.Time) time.Time {
	switch {
	case !s.UpdatedAt.IsZero():
		return s.UpdatedAt
	case !s.CreatedAt.IsZero():
		return s.CreatedAt
	default:
		return now
	}
}

// Description renders the revenue line text for the order.
func (s Source) Description() string {
	return fmt.Sprintf("Pedido #%04d - %s", s.Number, s.Customer)
}

// EntryInput describes a manually entered ledger line.
type EntryInput struct {
	Date          time.Time       `json:"date" validate:"required"`
	Type          EntryType       `json:"type" validate:"required,oneof=revenue expense"`
	Status        string          `json:"status" validate:"omitempty,oneof=paid pending"`
	Description   string          `json:"description" validate:"required,max=300"`
	Category      string          `json:"category" validate:"required,max=120"`
	PaymentMethod string          `json:"payment_method" validate:"max=60"`
	Amount        decimal.Decimal `json:"amount"`
	Customer      string          `json:"customer" validate:"max=200"`
}

// ListFilter narrows entry listings.
type ListFilter struct {
	Period string
	Type   EntryType
}

// Summary totals one period.
type Summary struct {
	Period  string          `json:"period"`
	Revenue decimal.Decimal `json:"revenue"`
	Expense decimal.Decimal `json:"expense"`
	Balance decimal.Decimal `json:"balance"`
	Entries int             `json:"entries"`
}

// PeriodOf returns the YYYY-MM accounting period of t.
func PeriodOf(t time.Time) string {
	return t.Format(periodLayout)
}

// ValidPeriod reports whether p is a YYYY-MM period.
func ValidPeriod(p string) bool {
	_, err := time.Parse(periodLayout, p)
	return err == nil
}

// ErrEntryNotFound indicates the entry id is unknown.
var ErrEntryNotFound = fmt.Errorf("ledger: entry %w", shared.ErrNotFound)
