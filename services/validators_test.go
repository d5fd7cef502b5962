package services

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blogem/hard-delete-gate/models"
)

func assertCode(t *testing.T, err error, code models.ErrorCode) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, code, models.CodeOf(err), "unexpected error: %v", err)
}

func TestValidateTableName(t *testing.T) {
	v := NewValidators([]string{"users", "products", "audit_logs"}, nil)

	assert.NoError(t, v.ValidateTableName("users"))
	assert.NoError(t, v.ValidateTableName("products"))

	assertCode(t, v.ValidateTableName("brands"), models.ErrCodeInvalidTable)
	assertCode(t, v.ValidateTableName("Users"), models.ErrCodeInvalidTable)
	assertCode(t, v.ValidateTableName(""), models.ErrCodeInvalidTable)
	// Protected tables never become deletable, even when configured
	assertCode(t, v.ValidateTableName("audit_logs"), models.ErrCodeInvalidTable)
	assertCode(t, v.ValidateTableName("delete_requests"), models.ErrCodeInvalidTable)
}

func TestValidateReason(t *testing.T) {
	tests := []struct {
		name   string
		reason string
		valid  bool
	}{
		{"empty", "", false},
		{"whitespace only", "     \t\n   ", false},
		{"nine characters", "123456789", false},
		{"padded nine characters", "   123456789   ", false},
		{"ten characters", "1234567890", true},
		{"multibyte ten characters", "éééééééééé", true},
		{"sentence", "Duplicate product created by the importer", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateReason(tt.reason)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assertCode(t, err, models.ErrCodeInvalidReason)
			}
		})
	}
}

func TestValidateDualApproval(t *testing.T) {
	assert.NoError(t, ValidateDualApproval("u1", "alice@example.com", "u2", "bob@example.com"))

	assertCode(t, ValidateDualApproval("u1", "alice@example.com", "u1", "bob@example.com"),
		models.ErrCodeDualApprovalViolation)
	assertCode(t, ValidateDualApproval("u1", "alice@example.com", "u2", "alice@example.com"),
		models.ErrCodeDualApprovalViolation)
	assertCode(t, ValidateDualApproval("u1", "alice@example.com", "u2", "ALICE@Example.COM"),
		models.ErrCodeDualApprovalViolation)
}

func TestGenerateApprovalToken(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		token, err := GenerateApprovalToken()
		require.NoError(t, err)
		require.True(t, strings.HasPrefix(token, ApprovalTokenPrefix))

		raw, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(token, ApprovalTokenPrefix))
		require.NoError(t, err)
		assert.Len(t, raw, approvalTokenBytes)

		assert.False(t, seen[token], "token generated twice")
		seen[token] = true
	}
}

func TestValidateToken(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	v := NewValidators(nil, clock)

	req := &models.DeleteRequest{
		Status:        models.StatusPendingApproval,
		ApprovalToken: "hdel_secret",
		ExpiresAt:     now.Add(time.Second),
	}

	assert.NoError(t, v.ValidateToken("hdel_secret", req))
	assertCode(t, v.ValidateToken("hdel_other", req), models.ErrCodeInvalidToken)
	assertCode(t, v.ValidateToken("", req), models.ErrCodeInvalidToken)

	// Expiry is inclusive of the boundary instant
	req.ExpiresAt = now
	assertCode(t, v.ValidateToken("hdel_secret", req), models.ErrCodeTokenExpired)

	req.ExpiresAt = now.Add(-time.Second)
	assertCode(t, v.ValidateToken("hdel_secret", req), models.ErrCodeTokenExpired)
	// A wrong token is reported as invalid even once expired
	assertCode(t, v.ValidateToken("hdel_other", req), models.ErrCodeInvalidToken)

	req.ExpiresAt = now.Add(time.Hour)
	for _, status := range []models.DeleteRequestStatus{models.StatusApproved, models.StatusRejected, models.StatusExecuted} {
		req.Status = status
		assertCode(t, v.ValidateToken("hdel_secret", req), models.ErrCodeTokenAlreadyUsed)
	}
}
