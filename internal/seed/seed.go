// Package seed loads a demo catalog and a few leads.
package seed

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-crm/internal/inventory"
	"github.com/odyssey-erp/odyssey-crm/internal/leads"
)

// Catalog is the demo product list.
var Catalog = []inventory.ProductInput{
	{Name: "Kit Presente Lavanda", Brand: "Casa Flor", Category: "Kits", PurchasePrice: decimal.RequireFromString("38.50"), SalePrice: decimal.RequireFromString("89.90"), Stock: 12},
	{Name: "Vela Aromática Baunilha", Brand: "Casa Flor", Category: "Velas", PurchasePrice: decimal.RequireFromString("11.20"), SalePrice: decimal.RequireFromString("29.90"), Stock: 40},
	{Name: "Sabonete Artesanal Alecrim", Brand: "Horta Viva", Category: "Banho", PurchasePrice: decimal.RequireFromString("4.80"), SalePrice: decimal.RequireFromString("14.00"), Stock: 65},
	{Name: "Difusor de Ambiente Capim-Limão", Brand: "Horta Viva", Category: "Casa", PurchasePrice: decimal.RequireFromString("22.00"), SalePrice: decimal.RequireFromString("59.00"), Stock: 18},
	{Name: "Caneca Cerâmica Pintada", Brand: "Barro Fino", Category: "Cozinha", PurchasePrice: decimal.RequireFromString("15.00"), SalePrice: decimal.RequireFromString("42.00"), Stock: 24},
}

// Leads is the demo lead list.
var Leads = []leads.CreateLeadRequest{
	{Name: "Maria Lima", Phone: "(11) 91234-5678", Origin: "instagram"},
	{Name: "João Pereira", Phone: "(21) 99876-5432", Origin: "whatsapp", Status: leads.StatusContacted},
	{Name: "Ana Souza", Phone: "(31) 98765-1234", Origin: "indicação", Status: leads.StatusNegotiating},
}

// Catalogs is the subset of the inventory service the seeder needs.
type Catalogs interface {
	MatchByName(ctx context.Context, name string) (string, bool, error)
	CreateProduct(ctx context.Context, input inventory.ProductInput) (inventory.Product, error)
}

// LeadBoard is the subset of the leads service the seeder needs.
type LeadBoard interface {
	ListLeads(ctx context.Context, status leads.Status) ([]leads.Lead, error)
	CreateLead(ctx context.Context, req leads.CreateLeadRequest) (leads.Lead, error)
}

// Result reports what a run created.
type Result struct {
	Products int `json:"products"`
	Leads    int `json:"leads"`
}

// Run creates the demo products and leads that are not present yet.
// Products are matched by normalised name, leads by phone.
func Run(ctx context.Context, catalog Catalogs, board LeadBoard, logger *slog.Logger) (Result, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var res Result
	for _, p := range Catalog {
		if _, ok, err := catalog.MatchByName(ctx, p.Name); err != nil {
			return res, fmt.Errorf("seed: match %q: %w", p.Name, err)
		} else if ok {
			continue
		}
		if _, err := catalog.CreateProduct(ctx, p); err != nil {
			return res, fmt.Errorf("seed: product %q: %w", p.Name, err)
		}
		res.Products++
	}

	existing, err := board.ListLeads(ctx, "")
	if err != nil {
		return res, fmt.Errorf("seed: list leads: %w", err)
	}
	phones := make(map[string]bool, len(existing))
	for _, l := range existing {
		phones[l.Phone] = true
	}
	for _, l := range Leads {
		if phones[l.Phone] {
			continue
		}
		if _, err := board.CreateLead(ctx, l); err != nil {
			return res, fmt.Errorf("seed: lead %q: %w", l.Name, err)
		}
		res.Leads++
	}
	logger.Info("seed completed", slog.Int("products", res.Products), slog.Int("leads", res.Leads))
	return res, nil
}
