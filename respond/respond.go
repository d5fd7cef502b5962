package respond

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/blogem/hard-delete-gate/logging"
	"github.com/blogem/hard-delete-gate/models"
)

// ErrorBody is the JSON shape of every failed response.
// ExistingRequestID is set for DUPLICATE_REQUEST.
type ErrorBody struct {
	Success           bool                   `json:"success"`
	Code              models.ErrorCode       `json:"code"`
	Message           string                 `json:"message"`
	ExistingRequestID string                 `json:"existing_request_id,omitempty"`
	Details           map[string]interface{} `json:"details,omitempty"`
}

// JSON writes payload with the given status
func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.Logger.WithError(err).Error("Failed to encode response")
	}
}

// ErrorWithCode writes an error body. devErr is logged, never sent.
func ErrorWithCode(w http.ResponseWriter, code models.ErrorCode, message string, details map[string]interface{}, devErr error) {
	status := code.HTTPStatus()

	fields := logrus.Fields{"status": status, "code": code}
	if devErr != nil {
		fields["error"] = devErr.Error()
	}
	entry := logging.Logger.WithFields(fields)
	if status >= http.StatusInternalServerError {
		entry.Error(message)
	} else {
		entry.Info(message)
	}

	body := ErrorBody{
		Success: false,
		Code:    code,
		Message: message,
		Details: details,
	}
	if code == models.ErrCodeDuplicateRequest {
		body.ExistingRequestID, _ = details["existing_request_id"].(string)
	}

	JSON(w, status, body)
}

// Error renders err, using its code when it is an AppError
func Error(w http.ResponseWriter, err error) {
	var appErr *models.AppError
	if !errors.As(err, &appErr) {
		ErrorWithCode(w, models.ErrCodeInternal, "Internal server error", nil, err)
		return
	}

	if appErr.Code == models.ErrCodeInternal {
		ErrorWithCode(w, appErr.Code, "Internal server error", nil, appErr)
		return
	}
	ErrorWithCode(w, appErr.Code, appErr.Message, appErr.Details, appErr.Err)
}
