package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	gatehttp "github.com/aussiebroadwan/gatekeeper/internal/gate/http"
	"github.com/aussiebroadwan/gatekeeper/internal/gate/kv"
	"github.com/aussiebroadwan/gatekeeper/internal/gate/ratelimit"
	"github.com/aussiebroadwan/gatekeeper/internal/gate/security"
	"github.com/aussiebroadwan/gatekeeper/internal/gate/service"
	"github.com/aussiebroadwan/gatekeeper/internal/gate/store"
	"github.com/aussiebroadwan/gatekeeper/internal/gate/store/drivers/postgres"
	"github.com/aussiebroadwan/gatekeeper/internal/gate/store/drivers/sqlite"
	"github.com/aussiebroadwan/gatekeeper/pkg/cryptox"
	"github.com/aussiebroadwan/gatekeeper/pkg/httpx"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
	"github.com/redis/go-redis/v9"
)

const (
	// BuildVersion is overridden at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// Application owns every long-lived component of the gatekeeper service.
// Nothing here is global; tests build as many as they like.
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db    store.Store
	redis *redis.Client // nil without GATE_REDIS_URL

	// Counter stores. Login counting degrades to memory when Redis is down;
	// the risk check uses the shared store directly and fails closed.
	localCounters *kv.Memory
	loginCounters kv.Counters
	riskCounters  kv.Counters
	bucketStore   ratelimit.Store

	// Services
	policy              *security.Policy
	audit               *service.AuditLogger
	auth                *service.AuthState
	payments            *service.PaymentService
	limiter             *ratelimit.Limiter
	strictLimiter       *ratelimit.Limiter
	housekeepingService *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *gatehttp.Router
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "gatekeeper",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	ctx := context.Background()

	if err := app.initDatabase(ctx); err != nil {
		return nil, err
	}
	if err := app.initCounters(ctx); err != nil {
		app.closeStores()
		return nil, err
	}
	if err := app.initServices(); err != nil {
		app.closeStores()
		return nil, err
	}
	if err := app.initHTTP(); err != nil {
		app.closeStores()
		return nil, err
	}

	return app, nil
}

// Handler is the fully wired HTTP handler, for in-process use.
func (app *Application) Handler() http.Handler { return app.router }

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("gatekeeper starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.housekeepingService.Stop()
			app.closeStores()
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down gatekeeper...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if err := app.closeStores(); err != nil {
		return err
	}

	app.logger.Info("gatekeeper stopped")
	return nil
}

func (app *Application) closeStores() error {
	var errs []error
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error("error closing redis client", "error", err)
			errs = append(errs, err)
		}
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database", "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// sqliteDSN turns a bare path into a modernc DSN with a busy timeout and
// WAL. Anything already shaped like a DSN is used as is.
func sqliteDSN(url string) string {
	if url == ":memory:" || strings.HasPrefix(url, "file:") {
		return url
	}
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", url)
}

// initDatabase opens the configured driver and applies migrations
func (app *Application) initDatabase(ctx context.Context) error {
	var (
		db  store.Store
		err error
	)
	switch app.cfg.DatabaseDriver {
	case "postgres":
		db, err = postgres.NewStore(ctx, app.cfg.DatabaseURL, app.logger)
	default:
		db, err = sqlite.NewStore(sqliteDSN(app.cfg.DatabaseURL))
	}
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		app.db = nil
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully", "driver", app.cfg.DatabaseDriver)
	return nil
}

// initCounters connects Redis when configured. Without it every counter and
// bucket lives in this process, which is only correct for one instance.
func (app *Application) initCounters(ctx context.Context) error {
	app.localCounters = kv.NewMemory()

	if app.cfg.RedisURL == "" {
		app.logger.Warn("GATE_REDIS_URL not set, counters and rate limits are per instance")
		app.loginCounters = app.localCounters
		app.riskCounters = app.localCounters
		return nil
	}

	client, err := kv.NewRedisClient(ctx, app.cfg.RedisURL, app.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize redis: %w", err)
	}
	app.redis = client

	shared := kv.NewRedis(client, app.cfg.RedisPrefix)
	app.loginCounters = kv.NewFallback(shared, app.localCounters)
	app.riskCounters = shared
	app.bucketStore = ratelimit.NewRedisStore(client, app.cfg.RedisPrefix+"rl:")
	return nil
}

// initServices initializes all business logic services
func (app *Application) initServices() error {
	secCfg := app.cfg.SecurityConfig()
	if secCfg.TokenSecret == "" {
		secret, err := cryptox.GenerateToken(cryptox.TokenSize256)
		if err != nil {
			return fmt.Errorf("failed to generate token secret: %w", err)
		}
		secCfg.TokenSecret = secret
		app.logger.Warn("GATE_TOKEN_SECRET not set, using a per-process secret; tokens will not survive a restart")
	}

	policy, err := security.New(secCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize security policy: %w", err)
	}
	app.policy = policy

	svcCfg := app.cfg.ServiceConfig()
	app.audit = service.NewAuditLogger(app.db.SecurityLogs(), svcCfg.ErrorSampleRate)

	app.auth, err = service.NewAuthState(app.db, app.loginCounters, policy, app.audit, svcCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize auth state: %w", err)
	}

	risk := &service.RiskService{
		Payments: app.db.Payments(),
		Counters: app.riskCounters,
		Audit:    app.audit,
		Config:   svcCfg,
	}
	app.payments = service.NewPaymentService(app.db, risk, nil, app.audit, svcCfg)

	app.limiter, err = ratelimit.New(app.cfg.RateLimitConfig(), app.bucketStore)
	if err != nil {
		return fmt.Errorf("failed to initialize rate limiter: %w", err)
	}
	app.strictLimiter, err = ratelimit.New(app.cfg.StrictLimitConfig(), app.bucketStore)
	if err != nil {
		return fmt.Errorf("failed to initialize strict rate limiter: %w", err)
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
		svcCfg.LoginAttemptRetention,
	)
	app.housekeepingService.Sweeper = app.localCounters

	return nil
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() error {
	routes, err := LoadRoutePolicy(app.cfg.RoutePolicyFile)
	if err != nil {
		return err
	}
	sameSite, err := parseSameSite(app.cfg.CookieSameSite)
	if err != nil {
		return err
	}

	proxies, err := httpx.ParseProxyTrust(app.cfg.TrustedProxies)
	if err != nil {
		return err
	}
	if len(app.cfg.TrustedProxies) == 0 {
		app.logger.Info("no trusted proxies configured, forwarding headers are ignored")
	}

	gate := &gatehttp.Gate{
		Policy:  app.policy,
		Auth:    app.auth,
		Limiter: app.limiter,
		Audit:   app.audit,
		Routes:  routes,
		Proxies: proxies,
	}

	router := gatehttp.NewRouter(gate, app.db, app.riskCounters, BuildVersion, app.logger)

	router.Policy = app.policy
	router.Auth = app.auth
	router.Payments = app.payments
	router.Audit = app.audit
	router.ActionLimiter = app.strictLimiter
	router.Cookies = gatehttp.CookieConfig{Secure: app.cfg.CookieSecure, SameSite: sameSite}
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
	return nil
}
