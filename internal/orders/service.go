package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/odyssey-crm/internal/inventory"
	"github.com/odyssey-erp/odyssey-crm/internal/leads"
	"github.com/odyssey-erp/odyssey-crm/internal/ledger"
	"github.com/odyssey-erp/odyssey-crm/internal/platform/lock"
	"github.com/odyssey-erp/odyssey-crm/internal/shared"
)

// Sequence mints order numbers.
type Sequence interface {
	Next(ctx context.Context) (int64, error)
}

// Inventory adjusts stock for order lines.
type Inventory interface {
	AdjustStock(ctx context.Context, input inventory.AdjustInput) (inventory.AdjustResult, error)
	MatchByName(ctx context.Context, name string) (string, bool, error)
}

// Ledger posts order revenue.
type Ledger interface {
	PostRevenueForOrder(ctx context.Context, src ledger.Source, method string) (ledger.Entry, bool, error)
	Reconcile(ctx context.Context, sources []ledger.Source) (int, error)
	OrderRefs(ctx context.Context) (map[string]bool, error)
}

// LeadSyncer receives the lead status implied by an order state.
type LeadSyncer interface {
	SetStatus(ctx context.Context, id string, status leads.Status) (leads.Lead, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MetricsPort receives order transitions.
type MetricsPort interface {
	OrderTransition(from, to string)
}

// ServiceConfig groups optional collaborators.
type ServiceConfig struct {
	Locker  lock.Locker
	Audit   AuditPort
	Metrics MetricsPort
	Logger  *slog.Logger
}

// Service coordinates order lifecycle side effects. Writes span several
// documents and are not atomic: a failure midway leaves earlier writes in
// place. The stock_deducted flag and the one-entry-per-order ledger rule make
// retries safe for stock and revenue.
type Service struct {
	repo     Repository
	seq      Sequence
	stock    Inventory
	revenue  Ledger
	leads    LeadSyncer
	locker   lock.Locker
	audit    AuditPort
	metrics  MetricsPort
	logger   *slog.Logger
	validate *validator.Validate
	now      func() time.Time
}

// NewService builds Service.
func NewService(repo Repository, seq Sequence, stock Inventory, revenue Ledger, leadSync LeadSyncer, cfg ServiceConfig) *Service {
	if cfg.Locker == nil {
		cfg.Locker = lock.Noop{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		seq:      seq,
		stock:    stock,
		revenue:  revenue,
		leads:    leadSync,
		locker:   cfg.Locker,
		audit:    cfg.Audit,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
		validate: shared.NewValidator(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) validateCreate(req *CreateOrderRequest) error {
	req.Customer = strings.TrimSpace(req.Customer)
	req.Phone = strings.TrimSpace(req.Phone)
	for i := range req.Items {
		req.Items[i].Name = strings.TrimSpace(req.Items[i].Name)
		req.Items[i].ProductID = strings.TrimSpace(req.Items[i].ProductID)
	}
	if err := s.validate.Struct(req); err != nil {
		return shared.ValidationMessage(err)
	}
	for i, it := range req.Items {
		if it.UnitPrice.IsNegative() {
			return shared.Invalid("items[%d].unit_price must be >= 0", i)
		}
	}
	if req.Discount.IsNegative() {
		return shared.Invalid("discount must be >= 0")
	}
	if req.Shipping.IsNegative() {
		return shared.Invalid("shipping must be >= 0")
	}
	if req.Status == "" {
		req.Status = StatusDraft
	}
	if !req.Status.Valid() {
		return shared.Invalid("unknown status %q", req.Status)
	}
	return nil
}

// CreateOrder validates the request, mints a number and persists the order,
// then applies the side effects of its initial status.
func (s *Service) CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	if err := s.validateCreate(&req); err != nil {
		return nil, err
	}
	items := make([]LineItem, 0, len(req.Items))
	for _, in := range req.Items {
		item := LineItem{ProductID: in.ProductID, Name: in.Name, Quantity: in.Quantity, UnitPrice: in.UnitPrice}
		if item.ProductID == "" && s.stock != nil {
			id, ok, err := s.stock.MatchByName(ctx, item.Name)
			if err != nil {
				return nil, fmt.Errorf("orders: match product %q: %w", item.Name, err)
			}
			if ok {
				item.ProductID = id
			}
		}
		items = append(items, item)
	}

	number, err := s.seq.Next(ctx)
	if err != nil {
		return nil, fmt.Errorf("orders: next number: %w", err)
	}
	now := s.now()
	order := Order{
		ID:            uuid.NewString(),
		Number:        number,
		Customer:      req.Customer,
		Phone:         req.Phone,
		Origin:        strings.TrimSpace(req.Origin),
		LeadID:        strings.TrimSpace(req.LeadID),
		Items:         items,
		Discount:      req.Discount,
		Shipping:      req.Shipping,
		Status:        req.Status,
		PaymentMethod: strings.TrimSpace(req.PaymentMethod),
		Notes:         req.Notes,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	order.Recalculate()
	if err := s.repo.Save(ctx, order); err != nil {
		return nil, err
	}

	effects := Plan("", order.Status, false)
	var errs []error
	if effects.Deduct {
		if err := s.applyStock(ctx, &order, inventory.DirectionDeduct); err != nil {
			errs = append(errs, err)
		}
		if err := s.repo.Save(ctx, order); err != nil {
			errs = append(errs, err)
		}
	}
	if effects.PostRevenue {
		if err := s.postRevenue(ctx, order); err != nil {
			errs = append(errs, err)
		}
	}
	s.syncLead(ctx, order, effects.LeadStatus)
	s.observe(ctx, "order:create", "", order)
	if len(errs) > 0 {
		return &order, errors.Join(errs...)
	}
	return &order, nil
}

// UpdateOrderStatus moves an order to status and applies the transition's
// side effects. paymentMethod, when set, replaces the order's method and is
// used for any revenue posted by this call.
func (s *Service) UpdateOrderStatus(ctx context.Context, id string, status Status, paymentMethod string) (*Order, error) {
	if !status.Valid() {
		return nil, shared.Invalid("unknown status %q", status)
	}
	var (
		order Order
		from  Status
	)
	err := s.locker.WithLock(ctx, lockKey(id), func(ctx context.Context) error {
		var err error
		order, err = s.repo.Get(ctx, id)
		if err != nil {
			return err
		}
		from = order.Status
		effects := Plan(from, status, order.StockDeducted)
		order.Status = status
		order.UpdatedAt = s.now()
		if m := strings.TrimSpace(paymentMethod); m != "" {
			order.PaymentMethod = m
		}

		var errs []error
		switch {
		case effects.Deduct:
			if err := s.applyStock(ctx, &order, inventory.DirectionDeduct); err != nil {
				errs = append(errs, err)
			}
		case effects.Return:
			if err := s.applyStock(ctx, &order, inventory.DirectionReturn); err != nil {
				errs = append(errs, err)
			}
		}
		if effects.PostRevenue {
			if err := s.postRevenue(ctx, order); err != nil {
				errs = append(errs, err)
			}
		}
		if err := s.repo.Save(ctx, order); err != nil {
			errs = append(errs, err)
		}
		s.syncLead(ctx, order, effects.LeadStatus)
		return errors.Join(errs...)
	})
	if order.ID == "" {
		return nil, err
	}
	s.observe(ctx, "order:status", from, order)
	return &order, err
}

// DeleteOrder returns deducted stock and removes the order. Revenue already
// posted for the order stays in the ledger.
func (s *Service) DeleteOrder(ctx context.Context, id string) error {
	return s.locker.WithLock(ctx, lockKey(id), func(ctx context.Context) error {
		order, err := s.repo.Get(ctx, id)
		if err != nil {
			return err
		}
		var errs []error
		if order.StockDeducted {
			if err := s.applyStock(ctx, &order, inventory.DirectionReturn); err != nil {
				errs = append(errs, err)
			}
		}
		if err := s.repo.Delete(ctx, id); err != nil {
			errs = append(errs, err)
		} else {
			s.record(ctx, "order:delete", order.ID, map[string]any{"number": order.Number})
		}
		return errors.Join(errs...)
	})
}

// GetOrder returns an order by id.
func (s *Service) GetOrder(ctx context.Context, id string) (*Order, error) {
	order, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// ListOrders returns orders with the highest number first.
func (s *Service) ListOrders(ctx context.Context, filter ListFilter) ([]Order, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, shared.Invalid("unknown status %q", filter.Status)
	}
	return s.repo.List(ctx, filter)
}

// ReconcileRevenue posts revenue missing for any paid order and returns how
// many entries were written.
func (s *Service) ReconcileRevenue(ctx context.Context) (int, error) {
	var (
		paid []Order
		refs map[string]bool
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		paid, err = s.repo.List(gctx, ListFilter{Status: StatusPaid})
		return err
	})
	g.Go(func() error {
		var err error
		refs, err = s.revenue.OrderRefs(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return 0, fmt.Errorf("orders: reconcile revenue: %w", err)
	}
	var missing []ledger.Source
	for _, o := range paid {
		if !refs[o.ID] {
			missing = append(missing, o.RevenueSource())
		}
	}
	if len(missing) == 0 {
		return 0, nil
	}
	n, err := s.revenue.Reconcile(ctx, missing)
	if n > 0 {
		s.logger.Info("revenue reconciled", slog.Int("posted", n), slog.Int("paid_orders", len(paid)))
	}
	return n, err
}

// applyStock runs the inventory adjustment and flips the flag, also when some
// lines failed.
func (s *Service) applyStock(ctx context.Context, order *Order, dir inventory.Direction) error {
	if s.stock == nil {
		order.StockDeducted = dir == inventory.DirectionDeduct
		return nil
	}
	res, err := s.stock.AdjustStock(ctx, inventory.AdjustInput{
		Reference: order.ID,
		Direction: dir,
		Lines:     order.StockLines(),
	})
	order.StockDeducted = dir == inventory.DirectionDeduct
	if len(res.Skipped) > 0 {
		s.logger.Info("order lines reference unknown products",
			slog.String("order_id", order.ID),
			slog.Any("product_ids", res.Skipped))
	}
	if err != nil {
		s.logger.Error("stock adjustment incomplete",
			slog.String("order_id", order.ID),
			slog.String("direction", string(dir)),
			slog.Any("error", err))
		return err
	}
	return nil
}

func (s *Service) postRevenue(ctx context.Context, order Order) error {
	if s.revenue == nil {
		return nil
	}
	if _, _, err := s.revenue.PostRevenueForOrder(ctx, order.RevenueSource(), order.PaymentMethod); err != nil {
		s.logger.Error("revenue posting failed", slog.String("order_id", order.ID), slog.Any("error", err))
		return err
	}
	return nil
}

func (s *Service) syncLead(ctx context.Context, order Order, status leads.Status) {
	if s.leads == nil || order.LeadID == "" || status == "" {
		return
	}
	if _, err := s.leads.SetStatus(ctx, order.LeadID, status); err != nil {
		s.logger.Warn("lead status not propagated",
			slog.String("order_id", order.ID),
			slog.String("lead_id", order.LeadID),
			slog.Any("error", err))
	}
}

func (s *Service) observe(ctx context.Context, action string, from Status, order Order) {
	if s.metrics != nil {
		s.metrics.OrderTransition(string(from), string(order.Status))
	}
	s.record(ctx, action, order.ID, map[string]any{
		"number":         order.Number,
		"from":           string(from),
		"to":             string(order.Status),
		"stock_deducted": order.StockDeducted,
		"total":          order.Total.String(),
	})
}

func (s *Service) record(ctx context.Context, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{Action: action, Entity: "order", EntityID: entityID, Meta: meta}); err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}

func lockKey(id string) string {
	return "orders:" + id
}
