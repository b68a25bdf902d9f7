package ledger

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

// RepositoryPort abstracts entry persistence.
type RepositoryPort interface {
	Get(ctx context.Context, id string) (Entry, error)
	Save(ctx context.Context, e Entry) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter ListFilter) ([]Entry, error)
	FindByOrder(ctx context.Context, orderID string) ([]Entry, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MetricsPort receives posting counts.
type MetricsPort interface {
	RevenuePosted(source string)
}

// Config groups service settings.
type Config struct {
	DefaultPaymentMethod string
}

// Service posts and lists ledger entries.
type Service struct {
	repo          RepositoryPort
	audit         AuditPort
	metrics       MetricsPort
	logger        *slog.Logger
	validate      *validator.Validate
	defaultMethod string
	now           func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, metrics MetricsPort, logger *slog.Logger, cfg Config) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	method := strings.TrimSpace(cfg.DefaultPaymentMethod)
	if method == "" {
		method = DefaultPaymentMethod
	}
	return &Service{
		repo:          repo,
		audit:         audit,
		metrics:       metrics,
		logger:        logger,
		validate:      shared.NewValidator(),
		defaultMethod: method,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// EntryIDForOrder is the deterministic id of an order's revenue entry.
func EntryIDForOrder(orderID string) string {
	return uuid.NewSHA1(uuid.Nil, []byte("ORDER-REVENUE:"+orderID)).String()
}

// HasRevenue reports whether an entry referencing the order exists.
func (s *Service) HasRevenue(ctx context.Context, orderID string) (bool, error) {
	if _, err := s.repo.Get(ctx, EntryIDForOrder(orderID)); err == nil {
		return true, nil
	} else if !errors.Is(err, ErrEntryNotFound) {
		return false, err
	}
	existing, err := s.repo.FindByOrder(ctx, orderID)
	if err != nil {
		return false, err
	}
	return len(existing) > 0, nil
}

// PostRevenueForOrder posts the revenue of src unless an entry for the order
// already exists or the total is not positive. posted reports whether a new
// entry was written.
func (s *Service) PostRevenueForOrder(ctx context.Context, src Source, method string) (Entry, bool, error) {
	if src.OrderID == "" {
		return Entry{}, false, shared.Invalid("ledger: order id required")
	}
	exists, err := s.HasRevenue(ctx, src.OrderID)
	if err != nil {
		return Entry{}, false, err
	}
	if exists || !src.Total.IsPositive() {
		return Entry{}, false, nil
	}
	method = strings.TrimSpace(method)
	if method == "" {
		method = s.defaultMethod
	}
	now := s.now()
	date := src.PostingDate(now)
	entry := Entry{
		ID:            EntryIDForOrder(src.OrderID),
		Date:          date,
		Period:        PeriodOf(date),
		Type:          TypeRevenue,
		Status:        StatusPaid,
		Description:   src.Description(),
		Category:      CategorySales,
		PaymentMethod: method,
		Amount:        src.Total,
		OrderID:       src.OrderID,
		Customer:      src.Customer,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Save(ctx, entry); err != nil {
		return Entry{}, false, err
	}
	if s.metrics != nil {
		s.metrics.RevenuePosted("order")
	}
	s.record(ctx, "ledger:post_revenue", entry.ID, map[string]any{"order_id": src.OrderID, "amount": entry.Amount.String()})
	return entry, true, nil
}

// Reconcile posts revenue for every source still lacking an entry and returns
// how many entries were written. A failing source does not stop the sweep.
func (s *Service) Reconcile(ctx context.Context, sources []Source) (int, error) {
	posted := 0
	var errs []error
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		_, ok, err := s.PostRevenueForOrder(ctx, src, "")
		if err != nil {
			errs = append(errs, fmt.Errorf("order %s: %w", src.OrderID, err))
			continue
		}
		if ok {
			posted++
			s.logger.Info("reconcile posted missing revenue", slog.String("order_id", src.OrderID), slog.Int64("number", src.Number))
		}
	}
	if len(errs) > 0 {
		return posted, fmt.Errorf("ledger: reconcile: %w", errors.Join(errs...))
	}
	return posted, nil
}

// OrderRefs returns the set of order ids that already have an entry.
func (s *Service) OrderRefs(ctx context.Context) (map[string]bool, error) {
	entries, err := s.repo.List(ctx, ListFilter{})
	if err != nil {
		return nil, err
	}
	refs := make(map[string]bool, len(entries))
	for _, e := range entries {
		if e.OrderID != "" {
			refs[e.OrderID] = true
		}
	}
	return refs, nil
}

// CreateEntry records a manual entry.
func (s *Service) CreateEntry(ctx context.Context, input EntryInput) (Entry, error) {
	input.Description = strings.TrimSpace(input.Description)
	input.Category = strings.TrimSpace(input.Category)
	if err := s.validate.Struct(input); err != nil {
		return Entry{}, shared.ValidationMessage(err)
	}
	if !input.Amount.IsPositive() {
		return Entry{}, shared.Invalid("ledger: amount must be > 0")
	}
	if input.Status == "" {
		input.Status = StatusPaid
	}
	if strings.TrimSpace(input.PaymentMethod) == "" {
		input.PaymentMethod = s.defaultMethod
	}
	now := s.now()
	entry := Entry{
		ID:            uuid.NewString(),
		Date:          input.Date.UTC(),
		Period:        PeriodOf(input.Date.UTC()),
		Type:          input.Type,
		Status:        input.Status,
		Description:   input.Description,
		Category:      input.Category,
		PaymentMethod: input.PaymentMethod,
		Amount:        input.Amount,
		Customer:      strings.TrimSpace(input.Customer),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Save(ctx, entry); err != nil {
		return Entry{}, err
	}
	if s.metrics != nil && entry.Type == TypeRevenue {
		s.metrics.RevenuePosted("manual")
	}
	s.record(ctx, "ledger:create", entry.ID, map[string]any{"type": string(entry.Type), "amount": entry.Amount.String()})
	return entry, nil
}

// ListEntries lists entries newest first.
func (s *Service) ListEntries(ctx context.Context, filter ListFilter) ([]Entry, error) {
	if filter.Period != "" && !ValidPeriod(filter.Period) {
		return nil, shared.Invalid("ledger: period must be YYYY-MM")
	}
	if filter.Type != "" && filter.Type != TypeRevenue && filter.Type != TypeExpense {
		return nil, shared.Invalid("ledger: type must be revenue or expense")
	}
	return s.repo.List(ctx, filter)
}

// DeleteEntry removes an entry. Order revenue may be deleted this way too; a
// later sweep posts it again while the order is still paid.
func (s *Service) DeleteEntry(ctx context.Context, id string) error {
	entry, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, "ledger:delete", id, map[string]any{"order_id": entry.OrderID})
	return nil
}

// Summary totals paid entries of a period.
func (s *Service) Summary(ctx context.Context, period string) (Summary, error) {
	if period == "" {
		period = PeriodOf(s.now())
	}
	entries, err := s.ListEntries(ctx, ListFilter{Period: period})
	if err != nil {
		return Summary{}, err
	}
	sum := Summary{Period: period}
	for _, e := range entries {
		if e.Status != StatusPaid {
			continue
		}
		switch e.Type {
		case TypeRevenue:
			sum.Revenue = sum.Revenue.Add(e.Amount)
		case TypeExpense:
			sum.Expense = sum.Expense.Add(e.Amount)
		}
		sum.Entries++
	}
	sum.Balance = sum.Revenue.Sub(sum.Expense)
	return sum, nil
}

func (s *Service) record(ctx context.Context, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{Action: action, Entity: "ledger_entry", EntityID: entityID, Meta: meta}); err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
