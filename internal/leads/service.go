package leads

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-crm/internal/shared"
)

// RepositoryPort abstracts lead persistence.
type RepositoryPort interface {
	Get(ctx context.Context, id string) (Lead, error)
	Save(ctx context.Context, l Lead) error
	List(ctx context.Context, status Status) ([]Lead, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service manages the lead pipeline.
type Service struct {
	repo     RepositoryPort
	audit    AuditPort
	logger   *slog.Logger
	validate *validator.Validate
	now      func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		audit:    audit,
		logger:   logger,
		validate: shared.NewValidator(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateLead registers a lead in the first column unless a status is given.
func (s *Service) CreateLead(ctx context.Context, req CreateLeadRequest) (Lead, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Phone = strings.TrimSpace(req.Phone)
	if err := s.validate.Struct(req); err != nil {
		return Lead{}, shared.ValidationMessage(err)
	}
	if req.Status == "" {
		req.Status = StatusNew
	}
	if !req.Status.Valid() {
		return Lead{}, shared.Invalid("leads: unknown status %q", req.Status)
	}
	now := s.now()
	lead := Lead{
		ID:        uuid.NewString(),
		Name:      req.Name,
		Phone:     req.Phone,
		Origin:    strings.TrimSpace(req.Origin),
		Status:    req.Status,
		Notes:     req.Notes,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Save(ctx, lead); err != nil {
		return Lead{}, err
	}
	s.record(ctx, "lead:create", lead.ID, map[string]any{"status": string(lead.Status)})
	return lead, nil
}

// GetLead returns a lead by id.
func (s *Service) GetLead(ctx context.Context, id string) (Lead, error) {
	return s.repo.Get(ctx, id)
}

// ListLeads lists leads, optionally of one column.
func (s *Service) ListLeads(ctx context.Context, status Status) ([]Lead, error) {
	if status != "" && !status.Valid() {
		return nil, shared.Invalid("leads: unknown status %q", status)
	}
	return s.repo.List(ctx, status)
}

// SetStatus moves a lead to another column.
func (s *Service) SetStatus(ctx context.Context, id string, status Status) (Lead, error) {
	if !status.Valid() {
		return Lead{}, shared.Invalid("leads: unknown status %q", status)
	}
	lead, err := s.repo.Get(ctx, id)
	if err != nil {
		return Lead{}, err
	}
	if lead.Status == status {
		return lead, nil
	}
	from := lead.Status
	lead.Status = status
	lead.UpdatedAt = s.now()
	if err := s.repo.Save(ctx, lead); err != nil {
		return Lead{}, err
	}
	s.record(ctx, "lead:status", lead.ID, map[string]any{"from": string(from), "to": string(status)})
	return lead, nil
}

func (s *Service) record(ctx context.Context, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{Action: action, Entity: "lead", EntityID: entityID, Meta: meta}); err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
