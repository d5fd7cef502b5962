package controllers

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/blogem/hard-delete-gate/database"
	"github.com/blogem/hard-delete-gate/models"
	"github.com/blogem/hard-delete-gate/respond"
	"github.com/blogem/hard-delete-gate/services"
)

// DashboardController serves the service health and the request overview
type DashboardController struct {
	services *services.Services
	db       *sql.DB
}

// NewDashboardController creates a new dashboard controller
func NewDashboardController(services *services.Services, db *sql.DB) *DashboardController {
	return &DashboardController{
		services: services,
		db:       db,
	}
}

// Health handles GET /health
func (c *DashboardController) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := c.db.PingContext(ctx); err != nil {
		respond.JSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":  "unhealthy",
			"service": "hard-delete-gate",
		})
		return
	}

	version, err := database.Version(c.db)
	if err != nil {
		version = -1
	}

	respond.JSON(w, http.StatusOK, map[string]interface{}{
		"status":         "healthy",
		"service":        "hard-delete-gate",
		"schema_version": version,
	})
}

// Summary handles GET /admin/delete/summary
func (c *DashboardController) Summary(w http.ResponseWriter, r *http.Request) {
	statuses := []models.DeleteRequestStatus{
		models.StatusPendingApproval,
		models.StatusApproved,
		models.StatusRejected,
		models.StatusExecuted,
	}

	counts := make(map[models.DeleteRequestStatus]int, len(statuses))
	for _, status := range statuses {
		_, total, err := c.services.DeleteRequests.ListDeleteRequests(r.Context(), models.DeleteRequestFilter{
			Status: status,
			Limit:  1,
		})
		if err != nil {
			respond.Error(w, err)
			return
		}
		counts[status] = total
	}

	respond.JSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"counts":  counts,
	})
}
