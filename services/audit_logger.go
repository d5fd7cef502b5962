package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/blogem/hard-delete-gate/models"
	"github.com/blogem/hard-delete-gate/repositories"
	"github.com/blogem/hard-delete-gate/userctx"
)

// AuditLogParams describes one transition to record
type AuditLogParams struct {
	OperationID    string
	EntityType     string
	EntityID       string
	Action         models.AuditAction
	RequesterID    string
	RequesterEmail string
	Status         string
	Reason         string
	ApproverID     *string
	ApproverEmail  *string
	Metadata       map[string]interface{}
}

// AuditLogger appends and reads audit entries
type AuditLogger struct {
	repo repositories.AuditRepository
	now  func() time.Time
}

// NewAuditLogger creates an audit logger over an audit repository
func NewAuditLogger(repo repositories.AuditRepository, now func() time.Time) *AuditLogger {
	if now == nil {
		now = defaultClock
	}
	return &AuditLogger{repo: repo, now: now}
}

// CreateAuditLog appends one entry and returns its id. A failed write is
// returned as INTERNAL_ERROR and must abort the enclosing transition.
func (l *AuditLogger) CreateAuditLog(ctx context.Context, params AuditLogParams) (string, error) {
	metadata := make(map[string]interface{}, len(params.Metadata)+3)
	for k, v := range params.Metadata {
		metadata[k] = v
	}
	client := userctx.GetClientInfo(ctx)
	if client.IPAddress != "" {
		metadata["ip_address"] = client.IPAddress
	}
	if client.UserAgent != "" {
		metadata["user_agent"] = client.UserAgent
	}
	if client.RequestID != "" {
		metadata["request_id"] = client.RequestID
	}

	entry := &models.AuditLogEntry{
		ID:             uuid.NewString(),
		OperationID:    params.OperationID,
		EntityType:     params.EntityType,
		EntityID:       params.EntityID,
		Action:         params.Action,
		RequesterID:    params.RequesterID,
		RequesterEmail: params.RequesterEmail,
		ApproverID:     params.ApproverID,
		ApproverEmail:  params.ApproverEmail,
		Status:         params.Status,
		Reason:         params.Reason,
		Metadata:       metadata,
		Timestamp:      l.now(),
	}

	if err := l.repo.Create(ctx, entry); err != nil {
		return "", models.InternalError("Failed to write audit log", err)
	}

	return entry.ID, nil
}

// GetAuditTrail returns all entries for one record, oldest first
func (l *AuditLogger) GetAuditTrail(ctx context.Context, entityType, entityID string) ([]models.AuditLogEntry, error) {
	entries, err := l.repo.ListByEntity(ctx, entityType, entityID)
	if err != nil {
		return nil, models.InternalError("Failed to read audit trail", err)
	}
	return entries, nil
}

// GetOperationAuditTrail returns all entries for one operation, oldest first
func (l *AuditLogger) GetOperationAuditTrail(ctx context.Context, operationID string) ([]models.AuditLogEntry, error) {
	entries, err := l.repo.ListByOperation(ctx, operationID)
	if err != nil {
		return nil, models.InternalError("Failed to read audit trail", err)
	}
	return entries, nil
}
