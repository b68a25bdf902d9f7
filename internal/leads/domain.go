// Package leads keeps the kanban pipeline of prospective customers.
package leads

import (
	"fmt"
	"time"

	"github.com/odyssey-erp/odyssey-crm/internal/shared"
)

// Status is a kanban column.
type Status string

const (
	StatusNew         Status = "novo"
	StatusContacted   Status = "contato"
	StatusNegotiating Status = "negociacao"
	StatusPaid        Status = "pagou"
	StatusShipped     Status = "enviado"
	StatusFinished    Status = "finalizado"
	StatusLost        Status = "perdido"
)

var statuses = map[Status]bool{
	StatusNew: true, StatusContacted: true, StatusNegotiating: true,
	StatusPaid: true, StatusShipped: true, StatusFinished: true, StatusLost: true,
}

// Valid reports whether s is a known column.
func (s Status) Valid() bool { return statuses[s] }

// Lead is a prospective customer.
type Lead struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Origin    string    `json:"origin,omitempty"`
	Status    Status    `json:"status"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateLeadRequest carries a new lead.
type CreateLeadRequest struct {
	Name   string `json:"name" validate:"required,max=200"`
	Phone  string `json:"phone" validate:"required,max=40"`
	Origin string `json:"origin" validate:"max=80"`
	Status Status `json:"status"`
	Notes  string `json:"notes"`
}

// ErrLeadNotFound indicates the lead id is unknown.
var ErrLeadNotFound = fmt.Errorf("leads: lead %w", shared.ErrNotFound)
