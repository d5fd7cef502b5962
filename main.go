package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/blogem/hard-delete-gate/authenticator"
	"github.com/blogem/hard-delete-gate/config"
	"github.com/blogem/hard-delete-gate/controllers"
	"github.com/blogem/hard-delete-gate/database"
	"github.com/blogem/hard-delete-gate/logging"
	"github.com/blogem/hard-delete-gate/repositories"
	"github.com/blogem/hard-delete-gate/router"
	"github.com/blogem/hard-delete-gate/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Logger.Fatalf("Failed to load configuration: %v", err)
	}

	logging.Init("hard-delete-gate", cfg.LogLevel)

	// Initialize database
	db, err := database.InitializeDatabase(cfg.DBPath)
	if err != nil {
		logging.Logger.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	// Initialize repositories
	repos := repositories.NewRepositories(db)

	// Initialize services
	srvs := services.NewServices(repos, services.DeletePolicy{
		AllowedTables:    cfg.Delete.SoftDeleteTables,
		CoolingPeriod:    cfg.Delete.CoolingPeriod,
		TokenTTL:         cfg.Delete.TokenTTL,
		ExecutionTimeout: cfg.Delete.ExecutionTimeout,
	})

	verifier, provider, err := setupAuth(context.Background(), cfg)
	if err != nil {
		logging.Logger.Fatalf("Failed to initialize authentication: %v", err)
	}

	// Initialize controllers
	ctrl := controllers.NewControllers(srvs, db, provider)

	// Set up router
	r, err := router.New(cfg, ctrl, verifier)
	if err != nil {
		logging.Logger.Fatalf("Failed to setup router: %v", err)
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logging.Logger.WithField("port", cfg.Port).WithField("db_path", cfg.DBPath).Info("Hard delete gate starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Logger.Fatalf("Server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logging.Logger.WithError(err).Error("Graceful shutdown failed")
	}
	logging.Logger.Info("Hard delete gate stopped")
}

// setupAuth builds the bearer verifiers and, when OIDC is configured, the login provider
func setupAuth(ctx context.Context, cfg *config.Configuration) (authenticator.Verifier, authenticator.Provider, error) {
	var chain authenticator.Chain
	var provider authenticator.Provider

	if cfg.JWTSecret != "" {
		jwtVerifier, err := authenticator.NewJWTVerifier(cfg.JWTSecret, cfg.JWTIssuer)
		if err != nil {
			return nil, nil, err
		}
		chain = append(chain, jwtVerifier)
	}

	if cfg.OIDC.Enabled() {
		oidcProvider, err := authenticator.NewOpenIDProvider(ctx, authenticator.OpenIDConfig{
			Domain:       cfg.OIDC.Domain,
			ClientID:     cfg.OIDC.ClientID,
			ClientSecret: cfg.OIDC.ClientSecret,
			CallbackURL:  cfg.OIDC.CallbackURL,
			RoleClaim:    cfg.OIDC.RoleClaim,
		})
		if err != nil {
			return nil, nil, err
		}
		chain = append(chain, oidcProvider)
		provider = oidcProvider
	}

	return chain, provider, nil
}
