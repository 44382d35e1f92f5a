package http

import (
	"net/http"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/gate/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/gate/kv"
	"github.com/aussiebroadwan/gatekeeper/internal/gate/security"
	"github.com/aussiebroadwan/gatekeeper/internal/gate/service"
	"github.com/aussiebroadwan/gatekeeper/internal/gate/store"
	"github.com/aussiebroadwan/gatekeeper/pkg/errx"
	"github.com/aussiebroadwan/gatekeeper/pkg/gatesdk"
	"github.com/aussiebroadwan/gatekeeper/pkg/httpx"
)

// LivezHandler always answers 200 while the process is serving.
//
//	@Summary		Liveness check
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	gatesdk.HealthResponse	"status, uptime, version"
//	@Router			/livez [get].
func LivezHandler(startTime time.Time, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, gatesdk.HealthResponse{
			Status:  "ok",
			Uptime:  time.Since(startTime).String(),
			Version: version,
		})
	}
}

// ReadyzHandler reports 503 when the relational store or the shared
// counter store cannot be reached.
//
//	@Summary		Readiness check
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	gatesdk.HealthResponse	"status, uptime, version, checks"
//	@Failure		503	{object}	gatesdk.HealthResponse	"A dependency is down"
//	@Router			/readyz [get].
func ReadyzHandler(
	startTime time.Time,
	version string,
	st store.Store,
	counters kv.Counters,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := &gatesdk.HealthChecks{
			Database: "ok",
			Counters: "ok",
		}
		overallStatus := "ok"
		statusCode := http.StatusOK

		if err := st.Ping(r.Context()); err != nil {
			checks.Database = "error: " + err.Error()
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		if err := counters.Ping(r.Context()); err != nil {
			checks.Counters = "error: " + err.Error()
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		httpx.WriteJSON(w, statusCode, gatesdk.HealthResponse{
			Status:  overallStatus,
			Uptime:  time.Since(startTime).String(),
			Version: version,
			Checks:  checks,
		})
	}
}

// CSRFHandler issues a token as both a cookie and a JSON field. Clients
// echo the field back in the X-CSRF-Token header. A caller presenting a
// session gets the token bound to it; anyone else gets a random one.
type CSRFHandler struct {
	Gate    *Gate
	Policy  *security.Policy
	Audit   *service.AuditLogger
	Cookies CookieConfig
}

// ServeHTTP handles GET /v1/csrf
//
//	@Summary		Issue a CSRF token
//	@Description	Sets the csrf_token cookie and returns the same value. Mutating requests echo it in X-CSRF-Token.
//	@Tags			Security
//	@Produce		json
//	@Success		200	{object}	gatesdk.CSRFResponse	"CSRF token"
//	@Failure		429	{object}	gatesdk.ErrorResponse	"Rate limited"
//	@Failure		500	{object}	gatesdk.ErrorResponse	"Internal server error"
//	@Router			/v1/csrf [get].
func (h *CSRFHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	tok := ""
	if h.Gate != nil {
		tok = h.Policy.SessionCSRFToken(h.Gate.sessionCredential(r))
	}
	if tok == "" {
		var err error
		if tok, err = h.Policy.GenerateCSRFToken(); err != nil {
			writeError(w, r, h.Audit, errx.System("Unable to issue CSRF token").WithCause(err))
			return
		}
	}

	setCSRFCookie(w, tok, h.Cookies)
	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, gatesdk.CSRFResponse{Token: tok})
}

func setCSRFCookie(w http.ResponseWriter, tok string, cookies CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     CSRFCookie,
		Value:    tok,
		Path:     "/",
		HttpOnly: true,
		Secure:   cookies.Secure,
		SameSite: cookies.SameSite,
	})
}

func clientContext(r *http.Request) domain.ClientContext {
	return domain.ClientContext{IPAddress: httpx.IPKeyExtractor(r), UserAgent: r.UserAgent()}
}

// requireUser returns the session user, writing a 401 when there is none.
func requireUser(w http.ResponseWriter, r *http.Request, audit *service.AuditLogger) (string, bool) {
	userID := httpx.UserID(r.Context())
	if userID == "" {
		writeError(w, r, audit, errx.Authentication("Authentication required"))
		return "", false
	}
	return userID, true
}
