package models

import "time"

// AuditAction names one lifecycle transition
type AuditAction string

const (
	ActionSoftDelete          AuditAction = "soft_delete"
	ActionSoftDeleteRestored  AuditAction = "soft_delete_restored"
	ActionHardDeleteRequested AuditAction = "hard_delete_requested"
	ActionHardDeleteApproved  AuditAction = "hard_delete_approved"
	ActionHardDeleteRejected  AuditAction = "hard_delete_rejected"
	ActionHardDeleteExecuted  AuditAction = "hard_delete_executed"
)

// Audit entry statuses for flows that have no DeleteRequest
const (
	AuditStatusSoftDeleted = "soft_deleted"
	AuditStatusRestored    = "restored"
)

// AuditLogEntry is one immutable fact about a lifecycle transition
type AuditLogEntry struct {
	ID             string                 `json:"id" db:"id"`
	OperationID    string                 `json:"operation_id" db:"operation_id"`
	EntityType     string                 `json:"entity_type" db:"entity_type"`
	EntityID       string                 `json:"entity_id" db:"entity_id"`
	Action         AuditAction            `json:"action" db:"action"`
	RequesterID    string                 `json:"requester_id" db:"requester_id"`
	RequesterEmail string                 `json:"requester_email" db:"requester_email"`
	ApproverID     *string                `json:"approver_id" db:"approver_id"`
	ApproverEmail  *string                `json:"approver_email" db:"approver_email"`
	Status         string                 `json:"status" db:"status"`
	Reason         string                 `json:"reason" db:"reason"`
	Metadata       map[string]interface{} `json:"metadata,omitempty" db:"metadata"`
	Timestamp      time.Time              `json:"timestamp" db:"timestamp"`
}
