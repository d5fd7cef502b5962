package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/blogem/hard-delete-gate/logging"
	"github.com/blogem/hard-delete-gate/metrics"
	"github.com/blogem/hard-delete-gate/models"
	"github.com/blogem/hard-delete-gate/repositories"
)

// DeletePolicy is the workflow configuration threaded in at construction
type DeletePolicy struct {
	AllowedTables    []string
	CoolingPeriod    time.Duration
	TokenTTL         time.Duration
	ExecutionTimeout time.Duration
	Now              func() time.Time
}

// DeleteRequestService owns the hard-delete state machine
type DeleteRequestService interface {
	SoftDeleteRecord(ctx context.Context, actor models.Identity, table, recordID, reason string) (*models.SoftDeleteResult, error)
	RestoreRecord(ctx context.Context, actor models.Identity, table, recordID, reason string) (*models.RestoreResult, error)
	RequestHardDelete(ctx context.Context, actor models.Identity, input models.HardDeleteRequestInput) (*models.DeleteRequest, error)
	ApproveHardDelete(ctx context.Context, actor models.Identity, input models.ApprovalInput) (*models.DeleteRequest, error)
	ExecuteHardDelete(ctx context.Context, actor models.Identity, requestID string) (*models.DeleteRequest, error)
	ListDeleteRequests(ctx context.Context, filter models.DeleteRequestFilter) ([]models.DeleteRequest, int, error)
	GetDeleteRequest(ctx context.Context, id string) (*models.DeleteRequestDetail, error)
	GetAuditTrail(ctx context.Context, entityType, entityID string) ([]models.AuditLogEntry, error)
}

type deleteRequestService struct {
	repos      *repositories.Repositories
	validators *Validators
	policy     DeletePolicy
	now        func() time.Time
}

// NewDeleteRequestService creates the delete request orchestrator
func NewDeleteRequestService(repos *repositories.Repositories, policy DeletePolicy) DeleteRequestService {
	now := policy.Now
	if now == nil {
		now = defaultClock
	}
	return &deleteRequestService{
		repos:      repos,
		validators: NewValidators(policy.AllowedTables, now),
		policy:     policy,
		now:        now,
	}
}

func (s *deleteRequestService) safety(repos *repositories.Repositories) *SafetyCheckEngine {
	return NewSafetyCheckEngine(repos.Records, s.policy.CoolingPeriod, s.now)
}

func (s *deleteRequestService) audit(repos *repositories.Repositories) *AuditLogger {
	return NewAuditLogger(repos.Audit, s.now)
}

// SoftDeleteRecord marks a record deleted and starts its cooling-off period
func (s *deleteRequestService) SoftDeleteRecord(ctx context.Context, actor models.Identity, table, recordID, reason string) (result *models.SoftDeleteResult, err error) {
	defer func() { record("soft_delete", err) }()

	if err := s.validateTarget(actor, table, recordID, reason); err != nil {
		return nil, err
	}

	operationID := uuid.NewString()
	softDeletedAt := s.now()

	err = s.repos.WithTx(ctx, func(tx *repositories.Repositories) error {
		existing, err := s.safety(tx).loadRecord(ctx, table, recordID)
		if err != nil {
			return err
		}
		if existing.IsSoftDeleted() {
			return models.NewAppError(models.ErrCodeAlreadySoftDeleted, "Record is already soft deleted").
				WithDetail("soft_deleted_at", existing.SoftDeletedAt)
		}

		if err := tx.Records.MarkSoftDeleted(ctx, table, recordID, softDeletedAt); err != nil {
			if errors.Is(err, repositories.ErrStaleState) {
				return models.NewAppError(models.ErrCodeAlreadySoftDeleted, "Record is already soft deleted")
			}
			return models.InternalError("Failed to soft delete record", err)
		}

		_, err = s.audit(tx).CreateAuditLog(ctx, AuditLogParams{
			OperationID:    operationID,
			EntityType:     table,
			EntityID:       recordID,
			Action:         models.ActionSoftDelete,
			RequesterID:    actor.ID,
			RequesterEmail: actor.Email,
			Status:         models.AuditStatusSoftDeleted,
			Reason:         strings.TrimSpace(reason),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	logging.Logger.WithFields(logrus.Fields{
		"operation_id": operationID,
		"table":        table,
		"record_id":    recordID,
		"actor":        actor.Email,
	}).Info("Record soft deleted")

	return &models.SoftDeleteResult{OperationID: operationID, SoftDeletedAt: softDeletedAt}, nil
}

// RestoreRecord clears a soft delete, provided no hard-delete request is open for the record
func (s *deleteRequestService) RestoreRecord(ctx context.Context, actor models.Identity, table, recordID, reason string) (result *models.RestoreResult, err error) {
	defer func() { record("restore", err) }()

	if err := s.validateTarget(actor, table, recordID, reason); err != nil {
		return nil, err
	}

	operationID := uuid.NewString()
	restoredAt := s.now()

	err = s.repos.WithTx(ctx, func(tx *repositories.Repositories) error {
		existing, err := s.safety(tx).loadRecord(ctx, table, recordID)
		if err != nil {
			return err
		}
		if !existing.IsSoftDeleted() {
			return models.NewAppError(models.ErrCodeNotSoftDeleted, "Record is not soft deleted")
		}

		open, err := tx.DeleteRequests.HasOpenRequest(ctx, table, recordID)
		if err != nil {
			return models.InternalError("Failed to check open requests", err)
		}
		if open {
			return models.NewAppError(models.ErrCodeRequestInProgress,
				"A hard delete request is open for this record; reject it before restoring")
		}

		if err := tx.Records.ClearSoftDeleted(ctx, table, recordID); err != nil {
			return models.InternalError("Failed to restore record", err)
		}

		_, err = s.audit(tx).CreateAuditLog(ctx, AuditLogParams{
			OperationID:    operationID,
			EntityType:     table,
			EntityID:       recordID,
			Action:         models.ActionSoftDeleteRestored,
			RequesterID:    actor.ID,
			RequesterEmail: actor.Email,
			Status:         models.AuditStatusRestored,
			Reason:         strings.TrimSpace(reason),
			Metadata: map[string]interface{}{
				"soft_deleted_at": existing.SoftDeletedAt,
			},
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	logging.Logger.WithFields(logrus.Fields{
		"operation_id": operationID,
		"table":        table,
		"record_id":    recordID,
		"actor":        actor.Email,
	}).Info("Record restored")

	return &models.RestoreResult{OperationID: operationID, RestoredAt: restoredAt}, nil
}

// RequestHardDelete creates a pending request and its single-use approval token
func (s *deleteRequestService) RequestHardDelete(ctx context.Context, actor models.Identity, input models.HardDeleteRequestInput) (req *models.DeleteRequest, err error) {
	defer func() { record("request", err) }()

	if err := s.validateTarget(actor, input.TableName, input.RecordID, input.Reason); err != nil {
		return nil, err
	}

	urgency := input.Urgency
	if urgency == "" {
		urgency = models.UrgencyNormal
	}

	token, err := GenerateApprovalToken()
	if err != nil {
		return nil, models.InternalError("Failed to generate approval token", err)
	}

	now := s.now()
	req = &models.DeleteRequest{
		ID:             uuid.NewString(),
		TableName:      input.TableName,
		RecordID:       input.RecordID,
		RequesterID:    actor.ID,
		RequesterEmail: actor.Email,
		Status:         models.StatusPendingApproval,
		Reason:         strings.TrimSpace(input.Reason),
		Urgency:        urgency,
		ApprovalToken:  token,
		RequestedAt:    now,
		ExpiresAt:      now.Add(s.policy.TokenTTL),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err = s.repos.WithTx(ctx, func(tx *repositories.Repositories) error {
		safety := s.safety(tx)
		if _, err := safety.PreDeleteSafetyChecks(ctx, req.TableName, req.RecordID); err != nil {
			return err
		}

		if err := s.rejectDuplicate(ctx, tx, req.TableName, req.RecordID); err != nil {
			return err
		}

		if err := safety.RequireNoDependencies(ctx, req.TableName, req.RecordID); err != nil {
			return err
		}

		if err := tx.DeleteRequests.Create(ctx, req); err != nil {
			if errors.Is(err, repositories.ErrDuplicatePending) {
				if dupErr := s.rejectDuplicate(ctx, tx, req.TableName, req.RecordID); dupErr != nil {
					return dupErr
				}
				return models.NewAppError(models.ErrCodeDuplicateRequest,
					"A pending hard delete request already exists for this record")
			}
			return models.InternalError("Failed to create delete request", err)
		}

		_, err := s.audit(tx).CreateAuditLog(ctx, AuditLogParams{
			OperationID:    req.ID,
			EntityType:     req.TableName,
			EntityID:       req.RecordID,
			Action:         models.ActionHardDeleteRequested,
			RequesterID:    req.RequesterID,
			RequesterEmail: req.RequesterEmail,
			Status:         string(req.Status),
			Reason:         req.Reason,
			Metadata: map[string]interface{}{
				"urgency":    req.Urgency,
				"expires_at": req.ExpiresAt,
			},
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	logging.Logger.WithFields(logrus.Fields{
		"request_id": req.ID,
		"table":      req.TableName,
		"record_id":  req.RecordID,
		"requester":  req.RequesterEmail,
		"urgency":    req.Urgency,
		"expires_at": req.ExpiresAt,
	}).Info("Hard delete requested")

	return req, nil
}

func (s *deleteRequestService) rejectDuplicate(ctx context.Context, tx *repositories.Repositories, table, recordID string) error {
	existing, err := tx.DeleteRequests.FindPending(ctx, table, recordID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil
	}
	if err != nil {
		return models.InternalError("Failed to check for pending requests", err)
	}
	return models.NewAppError(models.ErrCodeDuplicateRequest,
		"A pending hard delete request already exists for this record").
		WithDetail("existing_request_id", existing.ID)
}

// ApproveHardDelete resolves a pending request as approved or rejected by a second user
func (s *deleteRequestService) ApproveHardDelete(ctx context.Context, actor models.Identity, input models.ApprovalInput) (req *models.DeleteRequest, err error) {
	decision := input.Decision
	if decision == "" {
		decision = models.DecisionApprove
	}
	defer func() { record(string(decision), err) }()

	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.RequestID) == "" {
		return nil, models.NewAppError(models.ErrCodeValidation, "request_id is required")
	}
	if input.ApprovalToken == "" {
		return nil, models.NewAppError(models.ErrCodeInvalidToken, "Approval token is invalid")
	}
	if decision != models.DecisionApprove && decision != models.DecisionReject {
		return nil, models.NewAppError(models.ErrCodeValidation,
			fmt.Sprintf("decision must be %q or %q", models.DecisionApprove, models.DecisionReject))
	}

	err = s.repos.WithTx(ctx, func(tx *repositories.Repositories) error {
		current, err := s.loadRequest(ctx, tx, input.RequestID)
		if err != nil {
			return err
		}

		// Identity is checked before the token so self-approval is always reported as such.
		if err := ValidateDualApproval(current.RequesterID, current.RequesterEmail, actor.ID, actor.Email); err != nil {
			return err
		}
		if err := s.validators.ValidateToken(input.ApprovalToken, current); err != nil {
			return err
		}

		now := s.now()
		approverID, approverEmail := actor.ID, actor.Email
		current.ApproverID = &approverID
		current.ApproverEmail = &approverEmail
		current.ApprovedAt = &now
		current.UpdatedAt = now

		action := models.ActionHardDeleteApproved
		current.Status = models.StatusApproved
		metadata := map[string]interface{}{}
		if decision == models.DecisionReject {
			action = models.ActionHardDeleteRejected
			current.Status = models.StatusRejected
			current.RejectionReason = strings.TrimSpace(input.RejectionReason)
			if current.RejectionReason != "" {
				metadata["rejection_reason"] = current.RejectionReason
			}
		}

		if err := tx.DeleteRequests.Resolve(ctx, current); err != nil {
			if errors.Is(err, repositories.ErrStaleState) {
				return models.NewAppError(models.ErrCodeTokenAlreadyUsed, "Approval token has already been used")
			}
			return models.InternalError("Failed to resolve delete request", err)
		}

		if _, err := s.audit(tx).CreateAuditLog(ctx, AuditLogParams{
			OperationID:    current.ID,
			EntityType:     current.TableName,
			EntityID:       current.RecordID,
			Action:         action,
			RequesterID:    current.RequesterID,
			RequesterEmail: current.RequesterEmail,
			ApproverID:     current.ApproverID,
			ApproverEmail:  current.ApproverEmail,
			Status:         string(current.Status),
			Reason:         current.Reason,
			Metadata:       metadata,
		}); err != nil {
			return err
		}

		req = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	logging.Logger.WithFields(logrus.Fields{
		"request_id": req.ID,
		"table":      req.TableName,
		"record_id":  req.RecordID,
		"requester":  req.RequesterEmail,
		"approver":   actor.Email,
		"status":     req.Status,
	}).Info("Hard delete request resolved")

	return req, nil
}

// ExecuteHardDelete permanently removes the record of an approved request
func (s *deleteRequestService) ExecuteHardDelete(ctx context.Context, actor models.Identity, requestID string) (req *models.DeleteRequest, err error) {
	defer func() { record("execute", err) }()

	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if strings.TrimSpace(requestID) == "" {
		return nil, models.NewAppError(models.ErrCodeValidation, "request_id is required")
	}

	execCtx, cancel := context.WithTimeout(ctx, s.policy.ExecutionTimeout)
	defer cancel()

	started := time.Now()
	err = s.repos.WithTx(execCtx, func(tx *repositories.Repositories) error {
		current, err := s.loadRequest(execCtx, tx, requestID)
		if err != nil {
			return err
		}
		if !current.Status.CanTransitionTo(models.StatusExecuted) {
			return models.NewAppError(models.ErrCodeInvalidState,
				fmt.Sprintf("Request is %s; only approved requests can be executed", current.Status)).
				WithDetail("status", current.Status)
		}

		safety := s.safety(tx)
		target, err := safety.loadRecord(execCtx, current.TableName, current.RecordID)
		if err != nil {
			return err
		}
		if !target.IsSoftDeleted() {
			return models.NewAppError(models.ErrCodeNotSoftDeleted,
				"Record must be soft deleted before hard delete")
		}
		if err := safety.RequireNoDependencies(execCtx, current.TableName, current.RecordID); err != nil {
			return err
		}

		if err := tx.Records.HardDelete(execCtx, current.TableName, current.RecordID); err != nil {
			switch {
			case errors.Is(err, repositories.ErrReferenced):
				return models.NewAppError(models.ErrCodeDependenciesExist,
					"Record is still referenced by other rows; remove them first")
			case errors.Is(err, repositories.ErrStaleState):
				return models.NewAppError(models.ErrCodeNotSoftDeleted,
					"Record must be soft deleted before hard delete")
			case errors.Is(err, repositories.ErrNotFound):
				return models.NewAppError(models.ErrCodeRecordNotFound, "Record not found")
			}
			return models.InternalError("Failed to delete record", err)
		}

		now := s.now()
		if err := tx.DeleteRequests.MarkExecuted(execCtx, current.ID, now); err != nil {
			if errors.Is(err, repositories.ErrStaleState) {
				return models.NewAppError(models.ErrCodeInvalidState, "Request is no longer approved")
			}
			return models.InternalError("Failed to mark request executed", err)
		}
		current.Status = models.StatusExecuted
		current.ExecutedAt = &now
		current.UpdatedAt = now

		if _, err := s.audit(tx).CreateAuditLog(execCtx, AuditLogParams{
			OperationID:    current.ID,
			EntityType:     current.TableName,
			EntityID:       current.RecordID,
			Action:         models.ActionHardDeleteExecuted,
			RequesterID:    current.RequesterID,
			RequesterEmail: current.RequesterEmail,
			ApproverID:     current.ApproverID,
			ApproverEmail:  current.ApproverEmail,
			Status:         string(current.Status),
			Reason:         current.Reason,
			Metadata: map[string]interface{}{
				"executed_by_id":    actor.ID,
				"executed_by_email": actor.Email,
				"soft_deleted_at":   target.SoftDeletedAt,
			},
		}); err != nil {
			return err
		}

		req = current
		return nil
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(execCtx.Err(), context.DeadlineExceeded) ||
			repositories.IsBusy(err) {
			return nil, &models.AppError{
				Code:    models.ErrCodeExecutionTimeout,
				Message: "Hard delete did not complete in time; the request is still approved and can be retried",
				Details: map[string]interface{}{"request_id": requestID},
				Err:     err,
			}
		}
		return nil, err
	}
	metrics.ObserveExecution(time.Since(started).Seconds())

	logging.Logger.WithFields(logrus.Fields{
		"request_id": req.ID,
		"table":      req.TableName,
		"record_id":  req.RecordID,
		"requester":  req.RequesterEmail,
		"executor":   actor.Email,
	}).Warn("Record permanently deleted")

	return req, nil
}

// ListDeleteRequests returns one page of requests and the total match count
func (s *deleteRequestService) ListDeleteRequests(ctx context.Context, filter models.DeleteRequestFilter) ([]models.DeleteRequest, int, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, 0, models.NewAppError(models.ErrCodeValidation,
			fmt.Sprintf("Unknown status %q", filter.Status))
	}
	filter.Limit, filter.Offset = models.NormalizePage(filter.Limit, filter.Offset)

	requests, total, err := s.repos.DeleteRequests.List(ctx, filter)
	if err != nil {
		return nil, 0, models.InternalError("Failed to list delete requests", err)
	}
	return requests, total, nil
}

// GetDeleteRequest returns a request together with its operation audit trail
func (s *deleteRequestService) GetDeleteRequest(ctx context.Context, id string) (*models.DeleteRequestDetail, error) {
	req, err := s.loadRequest(ctx, s.repos, id)
	if err != nil {
		return nil, err
	}

	trail, err := s.audit(s.repos).GetOperationAuditTrail(ctx, req.ID)
	if err != nil {
		return nil, err
	}

	return &models.DeleteRequestDetail{Request: req, AuditTrail: trail}, nil
}

// GetAuditTrail returns every audit entry recorded for one record
func (s *deleteRequestService) GetAuditTrail(ctx context.Context, entityType, entityID string) ([]models.AuditLogEntry, error) {
	if err := s.validators.ValidateTableName(entityType); err != nil {
		return nil, err
	}
	return s.audit(s.repos).GetAuditTrail(ctx, entityType, entityID)
}

func (s *deleteRequestService) loadRequest(ctx context.Context, repos *repositories.Repositories, id string) (*models.DeleteRequest, error) {
	req, err := repos.DeleteRequests.GetByID(ctx, id)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, models.NewAppError(models.ErrCodeRecordNotFound, "Delete request not found")
	}
	if err != nil {
		return nil, models.InternalError("Failed to load delete request", err)
	}
	return req, nil
}

func (s *deleteRequestService) validateTarget(actor models.Identity, table, recordID, reason string) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	if err := s.validators.ValidateTableName(table); err != nil {
		return err
	}
	if strings.TrimSpace(recordID) == "" {
		return models.NewAppError(models.ErrCodeValidation, "record_id is required")
	}
	return ValidateReason(reason)
}

func requireActor(actor models.Identity) error {
	if actor.ID == "" || actor.Email == "" {
		return models.NewAppError(models.ErrCodeUnauthorized, "Authentication required")
	}
	return nil
}

func record(operation string, err error) {
	result := "ok"
	if err != nil {
		result = string(models.CodeOf(err))
	}
	metrics.RecordTransition(operation, result)
}
