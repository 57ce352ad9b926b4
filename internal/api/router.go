package api

import (
	"context"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/portalcms/account-gateway/internal/api/handler"
	"github.com/portalcms/account-gateway/internal/api/middleware"
	"github.com/portalcms/account-gateway/internal/core/domain"
	"github.com/portalcms/account-gateway/internal/core/service"
	"github.com/portalcms/account-gateway/internal/infrastructure/config"
	mongodb "github.com/portalcms/account-gateway/internal/infrastructure/db/mongo"
	redisdb "github.com/portalcms/account-gateway/internal/infrastructure/db/redis"
	"github.com/portalcms/account-gateway/internal/infrastructure/queue"
)

// NewRouter builds and returns the Echo instance with all routes registered.
// The dispatcher's workers are tied to ctx and stop when it is cancelled.
func NewRouter(ctx context.Context, cfg *config.Config, portal, realm *mongo.Database, rdb *redis.Client, log zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echomiddleware.Logger())
	e.Use(echoprometheus.NewMiddleware("account_gateway"))

	// --- Infrastructure ---
	realmAdapter := mongodb.NewRealmAdapter(realm)
	accountRepo := mongodb.NewAccountRepository(portal)
	groupRepo := mongodb.NewGroupRepository(portal)
	sessionStore := redisdb.NewSessionStore(rdb)

	dispatcher := queue.NewDispatcher(0, log, queue.AuditLogHandler(log))
	dispatcher.Start(ctx)

	// --- Services ---
	permCache := service.NewPermissionCache(groupRepo, log)
	resolver := service.NewIdentityResolver(
		realmAdapter, sessionStore, accountRepo, groupRepo, permCache,
		service.ResolverConfig{
			GuestGroupID:      cfg.Auth.GuestGroupID,
			ProvisionGroupID:  cfg.Auth.ProvisionGroupID,
			RequireActivation: cfg.Auth.RequireEmailVerification,
		},
		log,
	)
	authService := service.NewAuthService(
		realmAdapter, sessionStore, accountRepo, resolver, dispatcher,
		service.AuthConfig{
			SessionLifetime:          cfg.Auth.SessionLifetime,
			RequireEmailVerification: cfg.Auth.RequireEmailVerification,
			ActivationSecret:         cfg.Auth.ActivationSecret,
			ActivationTTL:            cfg.Auth.ActivationTTL,
			ProvisionGroupID:         cfg.Auth.ProvisionGroupID,
		},
		log,
	)

	// Every request carries an identity, authenticated or guest.
	e.Use(middleware.ResolveIdentity(resolver))

	// --- Auth routes ---
	authHandler := handler.NewAuthHandler(authService, cfg.Auth.SessionLifetime)
	e.POST("/auth/register", authHandler.Register)
	e.POST("/auth/login", authHandler.Login)
	e.POST("/auth/logout", authHandler.Logout)
	e.POST("/auth/activate", authHandler.Activate)
	e.GET("/me", authHandler.Me, middleware.RequireAuthenticated())

	// --- Admin routes ---
	groupHandler := handler.NewGroupHandler(groupRepo)
	admin := e.Group("/admin", middleware.RequirePermission(domain.PermAccountAccess, "admin_access"))
	admin.GET("/groups/:id", groupHandler.Get)
	admin.GET("/permissions", groupHandler.PermissionKeys)

	// --- Observability ---
	e.GET("/metrics", echoprometheus.NewHandler())

	// --- Health probes (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	healthDepsHandler := handler.NewHealthDependenciesHandler(portal, realm, rdb)

	e.GET("/health", healthHandler.Liveness)            // liveness  – is the process alive?
	e.GET("/health/ready", healthDepsHandler.Readiness) // readiness – are dependencies up?

	return e
}
