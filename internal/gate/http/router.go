package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/gate/kv"
	"github.com/aussiebroadwan/gatekeeper/internal/gate/ratelimit"
	"github.com/aussiebroadwan/gatekeeper/internal/gate/security"
	"github.com/aussiebroadwan/gatekeeper/internal/gate/service"
	"github.com/aussiebroadwan/gatekeeper/internal/gate/store"
	"github.com/aussiebroadwan/gatekeeper/pkg/httpx"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store    store.Store
	counters kv.Counters

	Gate     *Gate
	Policy   *security.Policy
	Auth     *service.AuthState
	Payments *service.PaymentService
	Audit    *service.AuditLogger

	// ActionLimiter guards the credential endpoints per caller, on top of
	// the gate's per-IP limit. Nil disables it.
	ActionLimiter *ratelimit.Limiter
	Cookies       CookieConfig
}

// CookieConfig controls the attributes of the session and CSRF cookies.
type CookieConfig struct {
	Secure   bool
	SameSite http.SameSite
}

func NewRouter(
	gate *Gate,
	st store.Store,
	counters kv.Counters,
	buildVersion string,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
		store:        st,
		counters:     counters,
		Gate:         gate,
		Cookies:      CookieConfig{Secure: true, SameSite: http.SameSiteStrictMode},
	}

	// Request logging sees everything, including gate rejections.
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		gate.Middleware,
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerSystem()
	r.registerAccounts()
	r.registerAuth()
	r.registerTwoFactor()
	r.registerWhitelist()
	r.registerPayments()
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

// strict wraps h with the per-action limiter when one is configured.
func (r *Router) strict(h http.Handler, action string) http.Handler {
	if r.ActionLimiter == nil {
		return h
	}
	return httpx.Chain(h, ratelimit.ActionMiddleware(r.ActionLimiter, action))
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.buildVersion))
	r.Mux.Handle("GET /readyz", ReadyzHandler(r.startTime, r.buildVersion, r.store, r.counters))

	csrf := &CSRFHandler{Gate: r.Gate, Policy: r.Policy, Audit: r.Audit, Cookies: r.Cookies}
	r.Mux.Handle("GET /v1/csrf", csrf)
}

func (r *Router) registerAccounts() {
	h := &AccountHandler{Auth: r.Auth, Audit: r.Audit}

	// Public signup, limited per IP.
	r.Mux.Handle("POST /v1/accounts", r.strict(http.HandlerFunc(h.HandleRegister), "register"))
	r.Mux.Handle("PUT /v1/account/password", r.strict(http.HandlerFunc(h.HandleChangePassword), "password_change"))
}

func (r *Router) registerAuth() {
	h := &AuthHandler{Auth: r.Auth, Policy: r.Policy, Audit: r.Audit, Cookies: r.Cookies}

	r.Mux.Handle("POST /v1/auth/login", r.strict(http.HandlerFunc(h.HandleLogin), "login"))
	r.Mux.HandleFunc("POST /v1/auth/logout", h.HandleLogout)
	r.Mux.HandleFunc("GET /v1/auth/session", h.HandleSession)
}

func (r *Router) registerTwoFactor() {
	h := &TwoFactorHandler{Auth: r.Auth, Audit: r.Audit}

	r.Mux.HandleFunc("POST /v1/2fa/setup", h.HandleSetup)

	// Code guessing is rate limited per user.
	r.Mux.Handle("POST /v1/2fa/verify", r.strict(http.HandlerFunc(h.HandleVerify), "2fa_verify"))
	r.Mux.Handle("POST /v1/2fa/enable", r.strict(http.HandlerFunc(h.HandleEnable), "2fa_enable"))
	r.Mux.Handle("POST /v1/2fa/disable", r.strict(http.HandlerFunc(h.HandleDisable), "2fa_disable"))
}

func (r *Router) registerWhitelist() {
	h := &WhitelistHandler{Auth: r.Auth, Audit: r.Audit}

	r.Mux.HandleFunc("GET /v1/whitelist", h.HandleList)
	r.Mux.HandleFunc("POST /v1/whitelist", h.HandleAdd)
	r.Mux.HandleFunc("DELETE /v1/whitelist/{ip}", h.HandleRemove)
}

func (r *Router) registerPayments() {
	h := &PaymentHandler{Payments: r.Payments, Audit: r.Audit}

	r.Mux.Handle("POST /v1/payments", r.strict(http.HandlerFunc(h.HandlePay), "payment"))
}
