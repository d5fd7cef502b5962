package models

import (
	"time"
)

// DeleteRequestStatus is the lifecycle state of a hard-delete request
type DeleteRequestStatus string

const (
	StatusPendingApproval DeleteRequestStatus = "pending_approval"
	StatusApproved        DeleteRequestStatus = "approved"
	StatusRejected        DeleteRequestStatus = "rejected"
	StatusExecuted        DeleteRequestStatus = "executed"
)

// IsValid reports whether s is one of the known statuses
func (s DeleteRequestStatus) IsValid() bool {
	switch s {
	case StatusPendingApproval, StatusApproved, StatusRejected, StatusExecuted:
		return true
	}
	return false
}

// CanTransitionTo reports whether next is a legal successor of s.
// The machine only ever moves forward.
func (s DeleteRequestStatus) CanTransitionTo(next DeleteRequestStatus) bool {
	switch s {
	case StatusPendingApproval:
		return next == StatusApproved || next == StatusRejected
	case StatusApproved:
		return next == StatusExecuted
	}
	return false
}

// Urgency is informational only
type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyNormal   Urgency = "normal"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

// DeleteRequest is one request to permanently remove a single record
type DeleteRequest struct {
	ID              string              `json:"id" db:"id"`
	TableName       string              `json:"table_name" db:"table_name"`
	RecordID        string              `json:"record_id" db:"record_id"`
	RequesterID     string              `json:"requester_id" db:"requester_id"`
	RequesterEmail  string              `json:"requester_email" db:"requester_email"`
	ApproverID      *string             `json:"approver_id" db:"approver_id"`
	ApproverEmail   *string             `json:"approver_email" db:"approver_email"`
	Status          DeleteRequestStatus `json:"status" db:"status"`
	Reason          string              `json:"reason" db:"reason"`
	Urgency         Urgency             `json:"urgency" db:"urgency"`
	RejectionReason string              `json:"rejection_reason,omitempty" db:"rejection_reason"`
	ApprovalToken   string              `json:"-" db:"approval_token"`
	RequestedAt     time.Time           `json:"requested_at" db:"requested_at"`
	ApprovedAt      *time.Time          `json:"approved_at" db:"approved_at"`
	ExecutedAt      *time.Time          `json:"executed_at" db:"executed_at"`
	ExpiresAt       time.Time           `json:"expires_at" db:"expires_at"`
	CreatedAt       time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at" db:"updated_at"`
}

// DeleteRequestFilter narrows ListDeleteRequests
type DeleteRequestFilter struct {
	Status    DeleteRequestStatus
	TableName string
	Limit     int
	Offset    int
}

// Identity is the acting user, as established by the bearer credential
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role,omitempty"`
}

// SoftDeleteResult is returned by SoftDeleteRecord
type SoftDeleteResult struct {
	OperationID   string    `json:"operation_id"`
	SoftDeletedAt time.Time `json:"soft_deleted_at"`
}

// RestoreResult is returned by RestoreRecord
type RestoreResult struct {
	OperationID string    `json:"operation_id"`
	RestoredAt  time.Time `json:"restored_at"`
}

// HardDeleteRequestInput is the input of RequestHardDelete
type HardDeleteRequestInput struct {
	TableName string
	RecordID  string
	Reason    string
	Urgency   Urgency
}

// ApprovalDecision selects the outcome of ApproveHardDelete
type ApprovalDecision string

const (
	DecisionApprove ApprovalDecision = "approve"
	DecisionReject  ApprovalDecision = "reject"
)

// ApprovalInput is the input of ApproveHardDelete
type ApprovalInput struct {
	RequestID       string
	ApprovalToken   string
	Decision        ApprovalDecision
	RejectionReason string
}

// DeleteRequestDetail bundles a request with its operation audit trail
type DeleteRequestDetail struct {
	Request    *DeleteRequest  `json:"request"`
	AuditTrail []AuditLogEntry `json:"audit_trail"`
}
