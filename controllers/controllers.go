package controllers

import (
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/blogem/hard-delete-gate/authenticator"
	"github.com/blogem/hard-delete-gate/services"
)

// Controllers holds all controller instances
type Controllers struct {
	Auth      *AuthController
	Dashboard *DashboardController
	Delete    *DeleteController
}

// NewControllers creates and initializes all controller instances.
// provider may be nil, in which case the login routes are not served.
func NewControllers(services *services.Services, db *sql.DB, provider authenticator.Provider) *Controllers {
	var auth *AuthController
	if provider != nil {
		auth = NewAuthController(provider)
	}

	return &Controllers{
		Auth:      auth,
		Dashboard: NewDashboardController(services, db),
		Delete:    NewDeleteController(services),
	}
}

// RegisterAdminRoutes mounts the delete workflow routes; callers add authentication.
// approval middlewares wrap only the approve route.
func (c *Controllers) RegisterAdminRoutes(r chi.Router, approval ...func(http.Handler) http.Handler) {
	r.Post("/soft", c.Delete.SoftDelete)
	r.Post("/restore", c.Delete.Restore)
	r.Post("/hard/request", c.Delete.RequestHardDelete)
	r.With(approval...).Post("/hard/approve", c.Delete.ApproveHardDelete)
	r.Post("/hard/execute", c.Delete.ExecuteHardDelete)
	r.Get("/requests", c.Delete.ListRequests)
	r.Get("/requests/{id}", c.Delete.GetRequest)
	r.Get("/summary", c.Dashboard.Summary)
}
