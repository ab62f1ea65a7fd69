package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sabercon/portal-gateway/auth"
	"github.com/sabercon/portal-gateway/config"
	"github.com/sabercon/portal-gateway/middleware"
	"github.com/sabercon/portal-gateway/repositories"
	"github.com/sabercon/portal-gateway/repositories/postgres"
	"github.com/sabercon/portal-gateway/sessions"
	"github.com/sabercon/portal-gateway/token"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection: every
// collaborator is constructed here once and handed down, nothing is reached
// through package-level state.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	DB     *postgres.DB
	Logger *zap.Logger

	// Repositories and stores
	Users    repositories.UserRepository
	Sessions repositories.SessionStore

	// Token pipeline
	Decoder *token.Decoder
	Issuer  *token.Issuer

	// HTTP layer
	AuthMiddleware *middleware.AuthMiddleware
	AuthHandler    *auth.Handler
}

// NewDependencies creates and wires up all application dependencies
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initDatabase(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	deps.Users = postgres.NewUserRepository(deps.DB, logger)
	deps.Sessions = sessions.NewStore()

	deps.Decoder = token.NewDecoder(cfg.Auth)
	deps.Issuer = token.NewIssuer(cfg.Auth)

	refresh := middleware.NewRefreshCoordinator(deps.Issuer, cfg.Auth, logger)
	deps.AuthMiddleware = middleware.NewAuthMiddleware(deps.Decoder, deps.Sessions, refresh, cfg.Auth, logger)
	deps.AuthHandler = auth.NewHandler(deps.Users, deps.Sessions, deps.Issuer, deps.Decoder, cfg.Auth, logger)

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initDatabase initializes the PostgreSQL database connection
func (d *Dependencies) initDatabase(ctx context.Context, cfg *config.Config) error {
	db, err := postgres.NewDB(cfg.Database, d.Logger)
	if err != nil {
		return err
	}
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	d.DB = db
	return nil
}

// Close releases held resources
func (d *Dependencies) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
