package services

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/blogem/hard-delete-gate/config"
	"github.com/blogem/hard-delete-gate/models"
)

const (
	// ApprovalTokenPrefix marks hard-delete approval tokens
	ApprovalTokenPrefix = "hdel_"
	approvalTokenBytes  = 32
	minReasonLength     = 10
)

// Validators holds the allow-list and clock the stateless checks need
type Validators struct {
	allowedTables map[string]bool
	now           func() time.Time
}

// NewValidators builds validators over the given soft-delete-enabled tables.
// Protected tables are dropped even if listed.
func NewValidators(tables []string, now func() time.Time) *Validators {
	allowed := make(map[string]bool, len(tables))
	for _, table := range tables {
		if !config.IsProtectedTable(table) {
			allowed[table] = true
		}
	}
	if now == nil {
		now = defaultClock
	}
	return &Validators{allowedTables: allowed, now: now}
}

// ValidateTableName succeeds only for tables enrolled in soft delete
func (v *Validators) ValidateTableName(name string) error {
	if !v.allowedTables[name] {
		return models.NewAppError(models.ErrCodeInvalidTable,
			fmt.Sprintf("Table %q is not enabled for deletion", name))
	}
	return nil
}

// ValidateReason requires at least 10 characters after trimming
func ValidateReason(text string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return models.NewAppError(models.ErrCodeInvalidReason, "Reason is required")
	}
	if utf8.RuneCountInString(trimmed) < minReasonLength {
		return models.NewAppError(models.ErrCodeInvalidReason,
			fmt.Sprintf("Reason must be at least %d characters", minReasonLength))
	}
	return nil
}

// ValidateDualApproval rejects an approver that matches the requester on id or email
func ValidateDualApproval(requesterID, requesterEmail, approverID, approverEmail string) error {
	if requesterID == approverID {
		return models.NewAppError(models.ErrCodeDualApprovalViolation,
			"The approver must be a different user than the requester")
	}
	if strings.EqualFold(strings.TrimSpace(requesterEmail), strings.TrimSpace(approverEmail)) {
		return models.NewAppError(models.ErrCodeDualApprovalViolation,
			"The approver must be a different user than the requester")
	}
	return nil
}

// GenerateApprovalToken returns hdel_ followed by 32 random bytes, base64url encoded
func GenerateApprovalToken() (string, error) {
	buf := make([]byte, approvalTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return ApprovalTokenPrefix + base64.RawURLEncoding.EncodeToString(buf), nil
}

// ValidateToken checks the supplied token against the request, in order:
// mismatch, expiry (now >= expires_at is expired), already consumed.
func (v *Validators) ValidateToken(supplied string, req *models.DeleteRequest) error {
	if subtle.ConstantTimeCompare([]byte(supplied), []byte(req.ApprovalToken)) != 1 {
		return models.NewAppError(models.ErrCodeInvalidToken, "Approval token is invalid")
	}
	if !v.now().Before(req.ExpiresAt) {
		return models.NewAppError(models.ErrCodeTokenExpired, "Approval token has expired")
	}
	if req.Status != models.StatusPendingApproval {
		return models.NewAppError(models.ErrCodeTokenAlreadyUsed, "Approval token has already been used")
	}
	return nil
}

func defaultClock() time.Time {
	return time.Now().UTC()
}
