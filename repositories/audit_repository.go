package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/blogem/hard-delete-gate/models"
)

// AuditRepository handles audit log persistence. Entries are append-only;
// the table rejects UPDATE and DELETE.
type AuditRepository interface {
	Create(ctx context.Context, entry *models.AuditLogEntry) error
	ListByEntity(ctx context.Context, entityType, entityID string) ([]models.AuditLogEntry, error)
	ListByOperation(ctx context.Context, operationID string) ([]models.AuditLogEntry, error)
}

type sqliteAuditRepository struct {
	db DBTX
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db DBTX) AuditRepository {
	return &sqliteAuditRepository{db: db}
}

const auditColumns = `
	id, operation_id, entity_type, entity_id, action,
	requester_id, requester_email, approver_id, approver_email,
	status, reason, metadata, timestamp`

// Create inserts a new audit log entry
func (r *sqliteAuditRepository) Create(ctx context.Context, entry *models.AuditLogEntry) error {
	query := `
		INSERT INTO audit_logs (` + auditColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var metadata sql.NullString
	if len(entry.Metadata) > 0 {
		raw, err := json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode audit metadata: %w", err)
		}
		metadata = sql.NullString{String: string(raw), Valid: true}
	}

	_, err := r.db.ExecContext(ctx, query,
		entry.ID,
		entry.OperationID,
		entry.EntityType,
		entry.EntityID,
		entry.Action,
		entry.RequesterID,
		entry.RequesterEmail,
		nullString(entry.ApproverID),
		nullString(entry.ApproverEmail),
		entry.Status,
		entry.Reason,
		metadata,
		entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}

	return nil
}

// ListByEntity returns every entry for one record, oldest first
func (r *sqliteAuditRepository) ListByEntity(ctx context.Context, entityType, entityID string) ([]models.AuditLogEntry, error) {
	query := `
		SELECT ` + auditColumns + `
		FROM audit_logs
		WHERE entity_type = ? AND entity_id = ?
		ORDER BY timestamp ASC, seq ASC
	`
	return r.list(ctx, query, entityType, entityID)
}

// ListByOperation returns every entry for one operation, oldest first
func (r *sqliteAuditRepository) ListByOperation(ctx context.Context, operationID string) ([]models.AuditLogEntry, error) {
	query := `
		SELECT ` + auditColumns + `
		FROM audit_logs
		WHERE operation_id = ?
		ORDER BY timestamp ASC, seq ASC
	`
	return r.list(ctx, query, operationID)
}

func (r *sqliteAuditRepository) list(ctx context.Context, query string, args ...interface{}) ([]models.AuditLogEntry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit logs: %w", err)
	}
	defer rows.Close()

	entries := make([]models.AuditLogEntry, 0)
	for rows.Next() {
		var entry models.AuditLogEntry
		var approverID, approverEmail, metadata sql.NullString

		err := rows.Scan(
			&entry.ID,
			&entry.OperationID,
			&entry.EntityType,
			&entry.EntityID,
			&entry.Action,
			&entry.RequesterID,
			&entry.RequesterEmail,
			&approverID,
			&approverEmail,
			&entry.Status,
			&entry.Reason,
			&metadata,
			&entry.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}

		entry.ApproverID = stringPtr(approverID)
		entry.ApproverEmail = stringPtr(approverEmail)
		if metadata.Valid && metadata.String != "" {
			if err := json.Unmarshal([]byte(metadata.String), &entry.Metadata); err != nil {
				return nil, fmt.Errorf("failed to decode audit metadata: %w", err)
			}
		}

		entries = append(entries, entry)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit logs: %w", err)
	}

	return entries, nil
}
