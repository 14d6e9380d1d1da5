package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	oapimiddleware "github.com/oapi-codegen/nethttp-middleware"
	"go.uber.org/zap"

	"github.com/caretrack-hq/caretrack/apps/api/contracts"
	membershipshandler "github.com/caretrack-hq/caretrack/domains/memberships/be/handler"
	membershipsrepo "github.com/caretrack-hq/caretrack/domains/memberships/be/repo"
	membershipsservice "github.com/caretrack-hq/caretrack/domains/memberships/be/service"
	tenantshandler "github.com/caretrack-hq/caretrack/domains/tenants/be/handler"
	tenantsrepo "github.com/caretrack-hq/caretrack/domains/tenants/be/repo"
	tenantsservice "github.com/caretrack-hq/caretrack/domains/tenants/be/service"
	platformlogging "github.com/caretrack-hq/caretrack/platform/go/logging"
	platformmiddleware "github.com/caretrack-hq/caretrack/platform/go/middleware"
	"github.com/caretrack-hq/caretrack/platform/go/persistence"
	"github.com/caretrack-hq/caretrack/platform/go/tenant"
	tenantmiddleware "github.com/caretrack-hq/caretrack/platform/go/tenant/middleware"
)

type config struct {
	Port            string        `env:"PORT" envDefault:"3000"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"15s"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	DatabaseURL     string        `env:"DATABASE_URL,required"`
	AuthProvider    string        `env:"AUTH_PROVIDER" envDefault:"firebase"` // firebase | dev

	// DefaultTenantID is only consulted when TENANT_FALLBACK_MODE=open.
	DefaultTenantID    uuid.UUID `env:"DEFAULT_TENANT_ID"`
	TenantFallbackMode string    `env:"TENANT_FALLBACK_MODE" envDefault:"closed"` // closed | open
}

func main() {
	ctx := context.Background()

	var cfg config
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := platformlogging.NewLogger(platformlogging.Config{
		Component: "api-server",
		Level:     cfg.LogLevel,
	})
	if err != nil {
		log.Fatalf("init zap logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	pool, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: cfg.DatabaseURL})
	if err != nil {
		logger.Fatal("init postgres pool", zap.Error(err))
	}
	defer persistence.ClosePool(pool)

	if err := persistence.ApplyCoreSchema(ctx, pool); err != nil {
		logger.Fatal("apply core schema", zap.Error(err))
	}

	tenantStore, err := persistence.NewTenantStore(pool)
	if err != nil {
		logger.Fatal("init tenant store", zap.Error(err))
	}
	userStore, err := persistence.NewUserStore(pool)
	if err != nil {
		logger.Fatal("init user store", zap.Error(err))
	}
	scopedDB, err := persistence.NewScopedDB(pool, persistence.MembershipsTable, persistence.InvitationsTable)
	if err != nil {
		logger.Fatal("init scoped db", zap.Error(err))
	}
	membershipStore, err := persistence.NewMembershipStore(scopedDB)
	if err != nil {
		logger.Fatal("init membership store", zap.Error(err))
	}
	invitationStore, err := persistence.NewInvitationStore(scopedDB, pool)
	if err != nil {
		logger.Fatal("init invitation store", zap.Error(err))
	}
	settingsValidator, err := persistence.NewSettingsValidator()
	if err != nil {
		logger.Fatal("init settings validator", zap.Error(err))
	}

	membershipRepo := membershipsrepo.NewPostgresRepository(tenantStore, membershipStore, invitationStore, userStore)
	membershipService := membershipsservice.New(membershipRepo)
	membershipHTTPHandler := membershipshandler.New(membershipService, logger)

	tenantRepo := tenantsrepo.NewPostgresRepository(tenantStore)
	tenantService := tenantsservice.New(tenantRepo, settingsValidator, membershipService)
	tenantHTTPHandler := tenantshandler.New(tenantService, logger)

	authMiddleware := buildAuthMiddleware(ctx, cfg, logger)

	resolver := tenant.NewResolver(tenant.ResolverConfig{
		DefaultTenantID: cfg.DefaultTenantID,
		Mode:            tenant.FallbackMode(cfg.TenantFallbackMode),
	}, logger)

	rootRouter := chi.NewRouter()

	rootRouter.Use(
		chimw.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		chimw.Timeout(cfg.RequestTimeout),
		platformmiddleware.DefaultCORS(),
	)

	rootRouter.Use(platformlogging.RequestLogger(logger))

	rootRouter.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	rootRouter.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	apiRouter := chi.NewRouter()
	apiRouter.Use(authMiddleware)
	apiRouter.Use(platformmiddleware.RequestTrace)

	tenantsValidator := mustNewSpecValidator(logger, "contracts/tenants.yaml", contracts.TenantsYAML)
	apiRouter.Group(func(r chi.Router) {
		r.Use(tenantsValidator)
		r.Mount("/tenants", tenantHTTPHandler.Routes())
	})

	// The membership routers mount at static children of the tenantID param so
	// plain /tenants/{id} requests keep falling through to the tenants router.
	membershipsValidator := mustNewSpecValidator(logger, "contracts/memberships.yaml", contracts.MembershipsYAML)
	scoped := tenantmiddleware.WithScope(resolver)
	apiRouter.Group(func(r chi.Router) {
		r.Use(membershipsValidator)
		r.With(scoped).Mount("/tenants/{tenantID}/invitations", membershipHTTPHandler.InvitationRoutes())
		r.With(scoped).Mount("/tenants/{tenantID}/users", membershipHTTPHandler.MemberRoutes())
		// Acceptance carries its own tenant designation in the token, so it
		// sits outside the scope middleware.
		r.Post("/invitations/accept", membershipHTTPHandler.AcceptInvitation)
	})

	rootRouter.Mount("/api/v1", apiRouter)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      rootRouter,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	go func() {
		logger.Info("starting api server", zap.String("port", cfg.Port))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server listen failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// mustNewSpecValidator parses the embedded OpenAPI document and builds
// oapi-codegen validator middleware so each domain group guarantees contract
// compliance before its handlers run.
func mustNewSpecValidator(logger *zap.Logger, name string, data []byte) func(http.Handler) http.Handler {
	loader := openapi3.NewLoader()

	spec, err := loader.LoadFromData(data)
	if err != nil {
		logger.Fatal("load openapi spec", zap.String("path", name), zap.Error(err))
	}
	if err := spec.Validate(loader.Context); err != nil {
		logger.Fatal("validate openapi spec", zap.String("path", name), zap.Error(err))
	}

	return oapimiddleware.OapiRequestValidatorWithOptions(spec, &oapimiddleware.Options{
		Options: openapi3filter.Options{
			AuthenticationFunc: platformmiddleware.ValidateAuthenticationViaSwagger,
		},
	})
}
