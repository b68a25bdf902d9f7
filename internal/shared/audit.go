package shared

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-crm/internal/docstore"
)

// AuditCollection stores audit records.
const AuditCollection = "audit_logs"

// AuditLog represents a record stored in audit_logs.
type AuditLog struct {
	ID       string         `json:"id"`
	Actor    string         `json:"actor"`
	Action   string         `json:"action"`
	Entity   string         `json:"entity"`
	EntityID string         `json:"entity_id"`
	Meta     map[string]any `json:"meta,omitempty"`
	At       time.Time      `json:"at"`
}

// AuditLogger writes records into the audit collection.
type AuditLogger struct {
	store docstore.Store
	now   func() time.Time
}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger(store docstore.Store) *AuditLogger {
	return &AuditLogger{store: store, now: func() time.Time { return time.Now().UTC() }}
}

// Record persists the log entry.
func (l *AuditLogger) Record(ctx context.Context, log AuditLog) error {
	if l == nil || l.store == nil {
		return errors.New("audit logger not initialised")
	}
	if log.Action == "" || log.Entity == "" || log.EntityID == "" {
		return errors.New("audit log requires action/entity/entity_id")
	}
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.At.IsZero() {
		log.At = l.now()
	}
	if log.Actor == "" {
		log.Actor = "system"
	}
	return docstore.PutJSON(ctx, l.store, AuditCollection, log.ID, log)
}

// List returns audit records for an entity, newest first.
func (l *AuditLogger) List(ctx context.Context, entity, entityID string) ([]AuditLog, error) {
	if l == nil || l.store == nil {
		return nil, errors.New("audit logger not initialised")
	}
	return docstore.ListJSON[AuditLog](ctx, l.store, AuditCollection, docstore.Query{
		Filter:  map[string]string{"entity": entity, "entity_id": entityID},
		OrderBy: "at",
		Desc:    true,
	})
}
