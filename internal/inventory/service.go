package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-crm/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	GetProduct(ctx context.Context, id string) (Product, error)
	SaveProduct(ctx context.Context, p Product) error
	DeleteProduct(ctx context.Context, id string) error
	ListProducts(ctx context.Context, filter ListFilter) ([]Product, error)
	FindByNameKey(ctx context.Context, key string) ([]Product, error)
	InsertMovement(ctx context.Context, m Movement) error
	ListMovements(ctx context.Context, productID string, limit int) ([]Movement, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MetricsPort receives stock movement counts.
type MetricsPort interface {
	StockMoved(direction string, qty int)
}

// Service coordinates inventory operations.
type Service struct {
	repo     RepositoryPort
	audit    AuditPort
	metrics  MetricsPort
	logger   *slog.Logger
	validate *validator.Validate
	now      func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, metrics MetricsPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		audit:    audit,
		metrics:  metrics,
		logger:   logger,
		validate: shared.NewValidator(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// AdjustStock applies one order's lines in the given direction. Lines without
// a product reference and references to unknown products are skipped. A
// failure on one line does not stop the remaining lines; all failures are
// joined into the returned error and nothing already saved is rolled back.
func (s *Service) AdjustStock(ctx context.Context, input AdjustInput) (AdjustResult, error) {
	if input.Direction != DirectionDeduct && input.Direction != DirectionReturn {
		return AdjustResult{}, ErrInvalidDirection
	}
	var (
		result AdjustResult
		errs   []error
	)
	for _, line := range input.Lines {
		if line.ProductID == "" {
			continue
		}
		product, err := s.repo.GetProduct(ctx, line.ProductID)
		if err != nil {
			if errors.Is(err, ErrProductNotFound) {
				result.Skipped = append(result.Skipped, line.ProductID)
				continue
			}
			errs = append(errs, err)
			continue
		}
		qty := max(line.Quantity, 0)
		switch input.Direction {
		case DirectionDeduct:
			product.Stock = max(product.Stock-qty, 0)
		case DirectionReturn:
			product.Stock = max(product.Stock+qty, 0)
		}
		now := s.now()
		product.UpdatedAt = now
		if err := s.repo.SaveProduct(ctx, product); err != nil {
			errs = append(errs, err)
			continue
		}
		move := Movement{
			ID:           uuid.NewString(),
			ProductID:    product.ID,
			Direction:    input.Direction,
			Quantity:     qty,
			BalanceAfter: product.Stock,
			Reference:    input.Reference,
			At:           now,
		}
		if err := s.repo.InsertMovement(ctx, move); err != nil {
			// The stock itself is saved; only the card entry is missing.
			s.logger.Warn("stock movement not recorded",
				slog.String("product_id", product.ID),
				slog.String("reference", input.Reference),
				slog.Any("error", err))
		}
		result.Applied = append(result.Applied, move)
		if s.metrics != nil {
			s.metrics.StockMoved(string(input.Direction), qty)
		}
	}
	if len(errs) > 0 {
		return result, fmt.Errorf("inventory: %s %s: %w", strings.ToLower(string(input.Direction)), input.Reference, errors.Join(errs...))
	}
	return result, nil
}

// CreateProduct registers a catalog item.
func (s *Service) CreateProduct(ctx context.Context, input ProductInput) (Product, error) {
	input.Name = strings.TrimSpace(input.Name)
	if err := s.validate.Struct(input); err != nil {
		return Product{}, shared.ValidationMessage(err)
	}
	if input.PurchasePrice.IsNegative() || input.SalePrice.IsNegative() {
		return Product{}, shared.Invalid("inventory: prices must be >= 0")
	}
	now := s.now()
	active := true
	if input.Active != nil {
		active = *input.Active
	}
	p := Product{
		ID:            uuid.NewString(),
		Name:          input.Name,
		NameKey:       NormalizeName(input.Name),
		Brand:         strings.TrimSpace(input.Brand),
		Category:      strings.TrimSpace(input.Category),
		PurchasePrice: input.PurchasePrice,
		SalePrice:     input.SalePrice,
		Stock:         input.Stock,
		Reserved:      input.Reserved,
		Active:        active,
		Notes:         input.Notes,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.SaveProduct(ctx, p); err != nil {
		return Product{}, err
	}
	s.record(ctx, "inventory:product_create", p.ID, map[string]any{"name": p.Name, "stock": p.Stock})
	return p, nil
}

// GetProduct returns a product by id.
func (s *Service) GetProduct(ctx context.Context, id string) (Product, error) {
	return s.repo.GetProduct(ctx, id)
}

// ListProducts lists the catalog ordered by name.
func (s *Service) ListProducts(ctx context.Context, filter ListFilter) ([]Product, error) {
	products, err := s.repo.ListProducts(ctx, filter)
	if err != nil || !filter.InStock {
		return products, err
	}
	available := products[:0]
	for _, p := range products {
		if p.Available() > 0 {
			available = append(available, p)
		}
	}
	return available, nil
}

// UpdateProduct applies a partial edit. A direct stock edit is recorded on
// the stock card as an ADJUST movement.
func (s *Service) UpdateProduct(ctx context.Context, id string, patch ProductPatch) (Product, error) {
	if err := s.validate.Struct(patch); err != nil {
		return Product{}, shared.ValidationMessage(err)
	}
	p, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return Product{}, err
	}
	before := p.Stock
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return Product{}, shared.Invalid("inventory: name is required")
		}
		p.Name = name
		p.NameKey = NormalizeName(name)
	}
	if patch.Brand != nil {
		p.Brand = strings.TrimSpace(*patch.Brand)
	}
	if patch.Category != nil {
		p.Category = strings.TrimSpace(*patch.Category)
	}
	if patch.PurchasePrice != nil {
		if patch.PurchasePrice.IsNegative() {
			return Product{}, shared.Invalid("inventory: prices must be >= 0")
		}
		p.PurchasePrice = *patch.PurchasePrice
	}
	if patch.SalePrice != nil {
		if patch.SalePrice.IsNegative() {
			return Product{}, shared.Invalid("inventory: prices must be >= 0")
		}
		p.SalePrice = *patch.SalePrice
	}
	if patch.Stock != nil {
		p.Stock = *patch.Stock
	}
	if patch.Reserved != nil {
		p.Reserved = *patch.Reserved
	}
	if patch.Active != nil {
		p.Active = *patch.Active
	}
	if patch.Notes != nil {
		p.Notes = *patch.Notes
	}
	p.UpdatedAt = s.now()
	if err := s.repo.SaveProduct(ctx, p); err != nil {
		return Product{}, err
	}
	if p.Stock != before {
		delta := p.Stock - before
		if delta < 0 {
			delta = -delta
		}
		move := Movement{
			ID:           uuid.NewString(),
			ProductID:    p.ID,
			Direction:    DirectionAdjust,
			Quantity:     delta,
			BalanceAfter: p.Stock,
			Note:         fmt.Sprintf("manual edit %d -> %d", before, p.Stock),
			At:           p.UpdatedAt,
		}
		if err := s.repo.InsertMovement(ctx, move); err != nil {
			s.logger.Warn("stock movement not recorded", slog.String("product_id", p.ID), slog.Any("error", err))
		}
	}
	s.record(ctx, "inventory:product_update", p.ID, map[string]any{"stock_before": before, "stock_after": p.Stock})
	return p, nil
}

// DeleteProduct removes a product. Orders referencing it are not checked.
func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	if _, err := s.repo.GetProduct(ctx, id); err != nil {
		return err
	}
	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		return err
	}
	s.record(ctx, "inventory:product_delete", id, nil)
	return nil
}

// StockCard lists the movements of a product, newest first.
func (s *Service) StockCard(ctx context.Context, productID string, limit int) ([]Movement, error) {
	if _, err := s.repo.GetProduct(ctx, productID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 200
	}
	return s.repo.ListMovements(ctx, productID, limit)
}

// MatchByName returns the id of the product whose normalised name equals
// name. Active products win over inactive ones; ok is false when nothing or
// more than one candidate matches.
func (s *Service) MatchByName(ctx context.Context, name string) (string, bool, error) {
	key := NormalizeName(name)
	if key == "" {
		return "", false, nil
	}
	candidates, err := s.repo.FindByNameKey(ctx, key)
	if err != nil {
		return "", false, err
	}
	var active []Product
	for _, p := range candidates {
		if p.Active {
			active = append(active, p)
		}
	}
	switch {
	case len(active) == 1:
		return active[0].ID, true, nil
	case len(active) == 0 && len(candidates) == 1:
		return candidates[0].ID, true, nil
	default:
		return "", false, nil
	}
}

func (s *Service) record(ctx context.Context, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{Action: action, Entity: "product", EntityID: entityID, Meta: meta}); err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
