package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/blogem/hard-delete-gate/models"
	"github.com/blogem/hard-delete-gate/respond"
	"github.com/blogem/hard-delete-gate/services"
	"github.com/blogem/hard-delete-gate/userctx"
)

const maxBodyBytes = 1 << 20

// Table and reason are left to the service validators so they report INVALID_TABLE and INVALID_REASON.
type softDeletePayload struct {
	TableName string `json:"table_name"`
	RecordID  string `json:"record_id" validate:"required,max=255"`
	Reason    string `json:"reason" validate:"max=2000"`
}

type hardDeleteRequestPayload struct {
	TableName string `json:"table_name"`
	RecordID  string `json:"record_id" validate:"required,max=255"`
	Reason    string `json:"reason" validate:"max=2000"`
	Urgency   string `json:"urgency" validate:"omitempty,oneof=low normal high critical"`
}

type approvePayload struct {
	RequestID       string `json:"request_id" validate:"required"`
	ApprovalToken   string `json:"approval_token"`
	Decision        string `json:"decision" validate:"omitempty,oneof=approve reject"`
	RejectionReason string `json:"rejection_reason" validate:"max=2000"`
}

type executePayload struct {
	RequestID string `json:"request_id" validate:"required"`
}

type transitionResponse struct {
	Success    bool                       `json:"success"`
	RequestID  string                     `json:"request_id"`
	Status     models.DeleteRequestStatus `json:"status"`
	ExecutedAt *time.Time                 `json:"executed_at"`
}

// DeleteController exposes the soft and hard delete workflow
type DeleteController struct {
	services *services.Services
	validate *validator.Validate
}

// NewDeleteController creates a new delete controller
func NewDeleteController(services *services.Services) *DeleteController {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	return &DeleteController{
		services: services,
		validate: validate,
	}
}

// SoftDelete handles POST /admin/delete/soft
func (c *DeleteController) SoftDelete(w http.ResponseWriter, r *http.Request) {
	actor, ok := c.actor(w, r)
	if !ok {
		return
	}

	var payload softDeletePayload
	if !c.decode(w, r, &payload) {
		return
	}

	result, err := c.services.DeleteRequests.SoftDeleteRecord(r.Context(), actor, payload.TableName, payload.RecordID, payload.Reason)
	if err != nil {
		respond.Error(w, err)
		return
	}

	respond.JSON(w, http.StatusOK, map[string]interface{}{
		"success":         true,
		"operation_id":    result.OperationID,
		"soft_deleted_at": result.SoftDeletedAt,
	})
}

// Restore handles POST /admin/delete/restore
func (c *DeleteController) Restore(w http.ResponseWriter, r *http.Request) {
	actor, ok := c.actor(w, r)
	if !ok {
		return
	}

	var payload softDeletePayload
	if !c.decode(w, r, &payload) {
		return
	}

	result, err := c.services.DeleteRequests.RestoreRecord(r.Context(), actor, payload.TableName, payload.RecordID, payload.Reason)
	if err != nil {
		respond.Error(w, err)
		return
	}

	respond.JSON(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"operation_id": result.OperationID,
		"restored_at":  result.RestoredAt,
	})
}

// RequestHardDelete handles POST /admin/delete/hard/request
func (c *DeleteController) RequestHardDelete(w http.ResponseWriter, r *http.Request) {
	actor, ok := c.actor(w, r)
	if !ok {
		return
	}

	var payload hardDeleteRequestPayload
	if !c.decode(w, r, &payload) {
		return
	}

	req, err := c.services.DeleteRequests.RequestHardDelete(r.Context(), actor, models.HardDeleteRequestInput{
		TableName: payload.TableName,
		RecordID:  payload.RecordID,
		Reason:    payload.Reason,
		Urgency:   models.Urgency(payload.Urgency),
	})
	if err != nil {
		respond.Error(w, err)
		return
	}

	// The only response that ever carries the approval token.
	respond.JSON(w, http.StatusCreated, map[string]interface{}{
		"success":        true,
		"request_id":     req.ID,
		"approval_token": req.ApprovalToken,
		"expires_at":     req.ExpiresAt,
	})
}

// ApproveHardDelete handles POST /admin/delete/hard/approve.
// An approval is executed straight away; if execution fails the request stays
// approved and the execution error is returned.
func (c *DeleteController) ApproveHardDelete(w http.ResponseWriter, r *http.Request) {
	actor, ok := c.actor(w, r)
	if !ok {
		return
	}

	var payload approvePayload
	if !c.decode(w, r, &payload) {
		return
	}

	req, err := c.services.DeleteRequests.ApproveHardDelete(r.Context(), actor, models.ApprovalInput{
		RequestID:       payload.RequestID,
		ApprovalToken:   payload.ApprovalToken,
		Decision:        models.ApprovalDecision(payload.Decision),
		RejectionReason: payload.RejectionReason,
	})
	if err != nil {
		respond.Error(w, err)
		return
	}

	if req.Status == models.StatusApproved {
		req, err = c.services.DeleteRequests.ExecuteHardDelete(r.Context(), actor, req.ID)
		if err != nil {
			respond.Error(w, err)
			return
		}
	}

	respond.JSON(w, http.StatusOK, transitionResponse{
		Success:    true,
		RequestID:  req.ID,
		Status:     req.Status,
		ExecutedAt: req.ExecutedAt,
	})
}

// ExecuteHardDelete handles POST /admin/delete/hard/execute
func (c *DeleteController) ExecuteHardDelete(w http.ResponseWriter, r *http.Request) {
	actor, ok := c.actor(w, r)
	if !ok {
		return
	}

	var payload executePayload
	if !c.decode(w, r, &payload) {
		return
	}

	req, err := c.services.DeleteRequests.ExecuteHardDelete(r.Context(), actor, payload.RequestID)
	if err != nil {
		respond.Error(w, err)
		return
	}

	respond.JSON(w, http.StatusOK, transitionResponse{
		Success:    true,
		RequestID:  req.ID,
		Status:     req.Status,
		ExecutedAt: req.ExecutedAt,
	})
}

// ListRequests handles GET /admin/delete/requests
func (c *DeleteController) ListRequests(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	limit, err := intParam(query.Get("limit"), "limit")
	if err != nil {
		respond.Error(w, err)
		return
	}
	offset, err := intParam(query.Get("offset"), "offset")
	if err != nil {
		respond.Error(w, err)
		return
	}
	limit, offset = models.NormalizePage(limit, offset)

	requests, total, err := c.services.DeleteRequests.ListDeleteRequests(r.Context(), models.DeleteRequestFilter{
		Status:    models.DeleteRequestStatus(query.Get("status")),
		TableName: query.Get("table_name"),
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		respond.Error(w, err)
		return
	}

	if requests == nil {
		requests = []models.DeleteRequest{}
	}

	respond.JSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"requests": requests,
		"total":    total,
		"limit":    limit,
		"offset":   offset,
	})
}

// GetRequest handles GET /admin/delete/requests/{id}
func (c *DeleteController) GetRequest(w http.ResponseWriter, r *http.Request) {
	detail, err := c.services.DeleteRequests.GetDeleteRequest(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, err)
		return
	}

	trail := detail.AuditTrail
	if trail == nil {
		trail = []models.AuditLogEntry{}
	}

	respond.JSON(w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"request":     detail.Request,
		"audit_trail": trail,
	})
}

func (c *DeleteController) actor(w http.ResponseWriter, r *http.Request) (models.Identity, bool) {
	identity, ok := userctx.GetIdentity(r.Context())
	if !ok {
		respond.ErrorWithCode(w, models.ErrCodeUnauthorized, "Authentication required", nil, nil)
		return models.Identity{}, false
	}
	return identity, true
}

// decode reads a JSON body into dst and runs the struct validation tags
func (c *DeleteController) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		respond.ErrorWithCode(w, models.ErrCodeValidation, "Request body must be a JSON object", nil, err)
		return false
	}

	if err := c.validate.Struct(dst); err != nil {
		var validationErrs validator.ValidationErrors
		if !errors.As(err, &validationErrs) {
			respond.ErrorWithCode(w, models.ErrCodeValidation, "Invalid request", nil, err)
			return false
		}

		fields := make(models.ValidationErrors, 0, len(validationErrs))
		for _, fe := range validationErrs {
			fields = append(fields, models.ValidationError{
				Field:   fe.Field(),
				Message: fmt.Sprintf("%s failed on the '%s' rule", fe.Field(), fe.Tag()),
			})
		}
		respond.ErrorWithCode(w, models.ErrCodeValidation, "Invalid request: "+strings.Join(fields.GetMessages(), "; "), map[string]interface{}{
			"fields": fields,
		}, nil)
		return false
	}

	return true
}

func intParam(raw, name string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, models.NewAppError(models.ErrCodeValidation, fmt.Sprintf("%s must be a non-negative integer", name))
	}
	return value, nil
}
