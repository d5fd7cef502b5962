package router

import (
	"fmt"
	"net/http"
	"time"

	"gitea.com/go-chi/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/blogem/hard-delete-gate/authenticator"
	"github.com/blogem/hard-delete-gate/config"
	"github.com/blogem/hard-delete-gate/controllers"
	appmiddleware "github.com/blogem/hard-delete-gate/middleware"
)

// New configures all routes and middleware
func New(cfg *config.Configuration, ctrl *controllers.Controllers, verifier authenticator.Verifier) (*chi.Mux, error) {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	if cfg.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(appmiddleware.RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(appmiddleware.ClientInfo)

	// PUBLIC ROUTES (no authentication required)
	r.Get("/health", ctrl.Dashboard.Health)
	r.Handle("/metrics", promhttp.Handler())

	if ctrl.Auth != nil {
		// Session middleware, only needed to carry the login state
		sessionHandler, err := session.Sessioner(session.Options{
			Provider:    "memory",
			CookieName:  "hard_delete_gate_session",
			Secure:      cfg.UseHTTPS,
			Gclifetime:  600,
			Maxlifetime: 600,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize session: %w", err)
		}

		r.Route("/auth", func(r chi.Router) {
			r.Use(sessionHandler)
			r.Get("/login", ctrl.Auth.Login)
			r.Get("/callback", ctrl.Auth.Callback)
		})
	}

	// PROTECTED ROUTES (bearer authentication required)
	r.Route("/admin/delete", func(r chi.Router) {
		r.Use(appmiddleware.RequireBearer(verifier, cfg.AdminRoles))
		ctrl.RegisterAdminRoutes(r, appmiddleware.RateLimit(cfg.Delete.ApprovalRateLimit))
	})

	return r, nil
}
