package models

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode is a stable, caller-visible failure reason
type ErrorCode string

const (
	ErrCodeInvalidTable          ErrorCode = "INVALID_TABLE"
	ErrCodeInvalidReason         ErrorCode = "INVALID_REASON"
	ErrCodeNotSoftDeleted        ErrorCode = "NOT_SOFT_DELETED"
	ErrCodeCoolingPeriodActive   ErrorCode = "COOLING_PERIOD_ACTIVE"
	ErrCodeAlreadySoftDeleted    ErrorCode = "ALREADY_SOFT_DELETED"
	ErrCodeDuplicateRequest      ErrorCode = "DUPLICATE_REQUEST"
	ErrCodeRequestInProgress     ErrorCode = "REQUEST_IN_PROGRESS"
	ErrCodeInvalidToken          ErrorCode = "INVALID_TOKEN"
	ErrCodeTokenExpired          ErrorCode = "TOKEN_EXPIRED"
	ErrCodeTokenAlreadyUsed      ErrorCode = "TOKEN_ALREADY_USED"
	ErrCodeDualApprovalViolation ErrorCode = "DUAL_APPROVAL_VIOLATION"
	ErrCodeDependenciesExist     ErrorCode = "DEPENDENCIES_EXIST"
	ErrCodeInvalidState          ErrorCode = "INVALID_STATE"
	ErrCodeRecordNotFound        ErrorCode = "RECORD_NOT_FOUND"
	ErrCodeUnauthorized          ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden             ErrorCode = "FORBIDDEN"
	ErrCodeExecutionTimeout      ErrorCode = "EXECUTION_TIMEOUT"
	ErrCodeRateLimited           ErrorCode = "RATE_LIMITED"
	ErrCodeValidation            ErrorCode = "VALIDATION_ERROR"
	ErrCodeInternal              ErrorCode = "INTERNAL_ERROR"
)

var statusByCode = map[ErrorCode]int{
	ErrCodeInvalidTable:          http.StatusBadRequest,
	ErrCodeInvalidReason:         http.StatusBadRequest,
	ErrCodeValidation:            http.StatusBadRequest,
	ErrCodeNotSoftDeleted:        http.StatusBadRequest,
	ErrCodeCoolingPeriodActive:   http.StatusBadRequest,
	ErrCodeInvalidToken:          http.StatusBadRequest,
	ErrCodeTokenExpired:          http.StatusBadRequest,
	ErrCodeUnauthorized:          http.StatusUnauthorized,
	ErrCodeDualApprovalViolation: http.StatusForbidden,
	ErrCodeForbidden:             http.StatusForbidden,
	ErrCodeRecordNotFound:        http.StatusNotFound,
	ErrCodeAlreadySoftDeleted:    http.StatusConflict,
	ErrCodeDuplicateRequest:      http.StatusConflict,
	ErrCodeRequestInProgress:     http.StatusConflict,
	ErrCodeTokenAlreadyUsed:      http.StatusConflict,
	ErrCodeDependenciesExist:     http.StatusConflict,
	ErrCodeInvalidState:          http.StatusConflict,
	ErrCodeRateLimited:           http.StatusTooManyRequests,
	ErrCodeExecutionTimeout:      http.StatusGatewayTimeout,
	ErrCodeInternal:              http.StatusInternalServerError,
}

// HTTPStatus returns the response status for the code
func (c ErrorCode) HTTPStatus() int {
	if status, ok := statusByCode[c]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// AppError carries a stable code from the service layer to the controllers
type AppError struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError builds an AppError without an underlying cause
func NewAppError(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// WithDetail attaches a caller-visible detail and returns the same error
func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// InternalError wraps a persistence or infrastructure failure
func InternalError(message string, err error) *AppError {
	return &AppError{Code: ErrCodeInternal, Message: message, Err: err}
}

// CodeOf extracts the code from err, defaulting to INTERNAL_ERROR
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}
