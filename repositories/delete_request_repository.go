package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/blogem/hard-delete-gate/models"
)

// DeleteRequestRepository persists hard-delete requests
type DeleteRequestRepository interface {
	Create(ctx context.Context, req *models.DeleteRequest) error
	GetByID(ctx context.Context, id string) (*models.DeleteRequest, error)
	FindPending(ctx context.Context, tableName, recordID string) (*models.DeleteRequest, error)
	HasOpenRequest(ctx context.Context, tableName, recordID string) (bool, error)
	Resolve(ctx context.Context, req *models.DeleteRequest) error
	MarkExecuted(ctx context.Context, id string, executedAt time.Time) error
	List(ctx context.Context, filter models.DeleteRequestFilter) ([]models.DeleteRequest, int, error)
}

type deleteRequestRepository struct {
	db DBTX
}

// NewDeleteRequestRepository creates a new delete request repository
func NewDeleteRequestRepository(db DBTX) DeleteRequestRepository {
	return &deleteRequestRepository{db: db}
}

const deleteRequestColumns = `
	id, table_name, record_id, requester_id, requester_email,
	approver_id, approver_email, status, reason, urgency, rejection_reason,
	approval_token, requested_at, approved_at, executed_at, expires_at,
	created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDeleteRequest(row rowScanner) (*models.DeleteRequest, error) {
	var req models.DeleteRequest
	var approverID, approverEmail sql.NullString
	var approvedAt, executedAt sql.NullTime

	err := row.Scan(
		&req.ID,
		&req.TableName,
		&req.RecordID,
		&req.RequesterID,
		&req.RequesterEmail,
		&approverID,
		&approverEmail,
		&req.Status,
		&req.Reason,
		&req.Urgency,
		&req.RejectionReason,
		&req.ApprovalToken,
		&req.RequestedAt,
		&approvedAt,
		&executedAt,
		&req.ExpiresAt,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	req.ApproverID = stringPtr(approverID)
	req.ApproverEmail = stringPtr(approverEmail)
	req.ApprovedAt = timePtr(approvedAt)
	req.ExecutedAt = timePtr(executedAt)

	return &req, nil
}

// Create inserts a new pending request. A second pending request for the
// same record violates uq_delete_requests_pending and yields ErrDuplicatePending.
func (r *deleteRequestRepository) Create(ctx context.Context, req *models.DeleteRequest) error {
	query := `
		INSERT INTO delete_requests (` + deleteRequestColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		req.ID,
		req.TableName,
		req.RecordID,
		req.RequesterID,
		req.RequesterEmail,
		nullString(req.ApproverID),
		nullString(req.ApproverEmail),
		req.Status,
		req.Reason,
		req.Urgency,
		req.RejectionReason,
		req.ApprovalToken,
		req.RequestedAt,
		nullTime(req.ApprovedAt),
		nullTime(req.ExecutedAt),
		req.ExpiresAt,
		req.CreatedAt,
		req.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) && strings.Contains(err.Error(), "delete_requests.table_name") {
			return ErrDuplicatePending
		}
		return fmt.Errorf("failed to create delete request: %w", err)
	}

	return nil
}

// GetByID retrieves a delete request by ID
func (r *deleteRequestRepository) GetByID(ctx context.Context, id string) (*models.DeleteRequest, error) {
	query := `SELECT ` + deleteRequestColumns + ` FROM delete_requests WHERE id = ?`

	req, err := scanDeleteRequest(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get delete request: %w", err)
	}

	return req, nil
}

// FindPending returns the open request for a record, or ErrNotFound
func (r *deleteRequestRepository) FindPending(ctx context.Context, tableName, recordID string) (*models.DeleteRequest, error) {
	query := `
		SELECT ` + deleteRequestColumns + `
		FROM delete_requests
		WHERE table_name = ? AND record_id = ? AND status = ?
	`

	req, err := scanDeleteRequest(r.db.QueryRowContext(ctx, query, tableName, recordID, models.StatusPendingApproval))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find pending delete request: %w", err)
	}

	return req, nil
}

// HasOpenRequest reports whether a record has a request that may still lead to deletion
func (r *deleteRequestRepository) HasOpenRequest(ctx context.Context, tableName, recordID string) (bool, error) {
	query := `
		SELECT COUNT(*) FROM delete_requests
		WHERE table_name = ? AND record_id = ? AND status IN (?, ?)
	`

	var count int
	err := r.db.QueryRowContext(ctx, query, tableName, recordID,
		models.StatusPendingApproval, models.StatusApproved).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to count open delete requests: %w", err)
	}

	return count > 0, nil
}

// Resolve moves a pending request to approved or rejected. The write only
// succeeds while the row is still pending, so a replayed token gets ErrStaleState.
func (r *deleteRequestRepository) Resolve(ctx context.Context, req *models.DeleteRequest) error {
	query := `
		UPDATE delete_requests
		SET status = ?, approver_id = ?, approver_email = ?, approved_at = ?,
		    rejection_reason = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		req.Status,
		nullString(req.ApproverID),
		nullString(req.ApproverEmail),
		nullTime(req.ApprovedAt),
		req.RejectionReason,
		req.UpdatedAt,
		req.ID,
		models.StatusPendingApproval,
	)
	if err != nil {
		return fmt.Errorf("failed to resolve delete request: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrStaleState
	}

	return nil
}

// MarkExecuted moves an approved request to executed
func (r *deleteRequestRepository) MarkExecuted(ctx context.Context, id string, executedAt time.Time) error {
	query := `
		UPDATE delete_requests
		SET status = ?, executed_at = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		models.StatusExecuted,
		executedAt,
		executedAt,
		id,
		models.StatusApproved,
	)
	if err != nil {
		return fmt.Errorf("failed to mark delete request executed: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrStaleState
	}

	return nil
}

// List returns one page of requests matching filter, newest first, plus the total match count
func (r *deleteRequestRepository) List(ctx context.Context, filter models.DeleteRequestFilter) ([]models.DeleteRequest, int, error) {
	where := " WHERE 1=1"
	args := make([]interface{}, 0, 4)

	if filter.Status != "" {
		where += " AND status = ?"
		args = append(args, filter.Status)
	}
	if filter.TableName != "" {
		where += " AND table_name = ?"
		args = append(args, filter.TableName)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM delete_requests"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count delete requests: %w", err)
	}

	limit, offset := models.NormalizePage(filter.Limit, filter.Offset)
	query := "SELECT " + deleteRequestColumns + " FROM delete_requests" + where +
		" ORDER BY requested_at DESC, id ASC LIMIT ? OFFSET ?"

	rows, err := r.db.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query delete requests: %w", err)
	}
	defer rows.Close()

	requests := make([]models.DeleteRequest, 0)
	for rows.Next() {
		req, err := scanDeleteRequest(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan delete request: %w", err)
		}
		requests = append(requests, *req)
	}

	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating delete requests: %w", err)
	}

	return requests, total, nil
}
