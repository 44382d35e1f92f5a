package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/gatekeeper/internal/gate/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/gate/ratelimit"
	"github.com/aussiebroadwan/gatekeeper/internal/gate/security"
	"github.com/aussiebroadwan/gatekeeper/internal/gate/service"
	"github.com/aussiebroadwan/gatekeeper/pkg/errx"
	"github.com/aussiebroadwan/gatekeeper/pkg/httpx"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
)

const (
	SessionCookie   = "session_id"
	CSRFCookie      = "csrf_token"
	CSRFHeader      = "X-CSRF-Token"
	TwoFactorHeader = "X-2FA-Token"
)

// RoutePolicy names the path prefixes that get special treatment.
//
// Sensitive prefixes require a whitelisted IP and, where two-factor is
// required, a valid token. Whitelist prefixes manage the IP whitelist:
// mutations there get the same checks as soon as the user has at least one
// entry, so the first entry can always be added. Public prefixes skip CSRF
// and both of the above.
type RoutePolicy struct {
	Sensitive []string `yaml:"sensitive"`
	Whitelist []string `yaml:"whitelist"`
	Public    []string `yaml:"public"`
}

func DefaultRoutePolicy() RoutePolicy {
	return RoutePolicy{
		Sensitive: []string{"/v1/payments"},
		Whitelist: []string{"/v1/whitelist"},
		Public:    []string{"/v1/accounts", "/v1/2fa/setup", "/v1/2fa/enable"},
	}
}

func hasPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if path == p || strings.HasPrefix(path, strings.TrimSuffix(p, "/")+"/") {
			return true
		}
	}
	return false
}

// Gate runs every request through the security pipeline before it reaches
// a handler.
type Gate struct {
	Policy  *security.Policy
	Auth    *service.AuthState
	Limiter *ratelimit.Limiter
	Audit   *service.AuditLogger
	Routes  RoutePolicy

	// Proxies lists the peers allowed to forward the client address. Nil
	// keys every request by its direct peer.
	Proxies *httpx.ProxyTrust
}

// Middleware applies, in order: security headers, rate limiting, CSRF,
// JSON sanitising, session resolution and sensitive-route enforcement.
// Headers are set first so every rejection carries them. A panic anywhere
// below is classified and answered with a 500, unless the handler already
// started its response.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		security.ApplyHeaders(rw.Header())
		w := &trackingWriter{ResponseWriter: rw}

		r = r.WithContext(httpx.WithClientIP(r.Context(), g.Proxies.ClientIP(r)))
		ip := httpx.IPKeyExtractor(r)

		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				err := errx.System("An unexpected error occurred").WithCause(fmt.Errorf("panic: %v", rec))
				if w.wrote {
					e := errx.Classify(err, httpx.RequestContext(r))
					slogx.LogError(r.Context(), "panic after response started", e)
					if g.Audit != nil {
						g.Audit.RecordError(r.Context(), e)
					}
					return
				}
				g.writeError(w, r, err)
			}
		}()

		d := g.Limiter.Consume(r.Context(), ip)
		ratelimit.SetHeaders(w, d)
		if !d.Allowed {
			slogx.FromContext(r.Context()).Warn("rate limit exceeded", "key", ip, "retry_after", d.ResetSeconds())
			ratelimit.WriteLimited(w, d)
			return
		}

		public := hasPrefix(r.URL.Path, g.Routes.Public)

		if !public && isMutating(r.Method) && !g.validCSRF(r) {
			slogx.FromContext(r.Context()).Warn("csrf validation failed", "ip", ip)
			httpx.WriteJSON(w, http.StatusForbidden, map[string]string{"error": "Invalid CSRF token"})
			return
		}

		if err := sanitizeBody(w, r); err != nil {
			g.writeError(w, r, err)
			return
		}

		sess, ok, err := g.resolveSession(r)
		if err != nil {
			g.writeError(w, r, err)
			return
		}
		if ok {
			r = r.WithContext(httpx.WithSession(r.Context(), sess.UserID, sess.ID))
		}

		switch {
		case public:
		case hasPrefix(r.URL.Path, g.Routes.Sensitive):
			if !ok {
				g.writeError(w, r, errx.Authentication("Authentication required"))
				return
			}
			if !g.allowSensitive(w, r, sess.UserID, ip) {
				return
			}
		case ok && isMutating(r.Method) && hasPrefix(r.URL.Path, g.Routes.Whitelist):
			entries, err := g.Auth.GetWhitelistedIPs(r.Context(), sess.UserID)
			if err != nil {
				g.writeError(w, r, err)
				return
			}
			if len(entries) > 0 && !g.allowSensitive(w, r, sess.UserID, ip) {
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

// trackingWriter records whether the response has been started.
type trackingWriter struct {
	http.ResponseWriter
	wrote bool
}

func (t *trackingWriter) WriteHeader(code int) {
	t.wrote = true
	t.ResponseWriter.WriteHeader(code)
}

func (t *trackingWriter) Write(b []byte) (int, error) {
	t.wrote = true
	return t.ResponseWriter.Write(b)
}

func (t *trackingWriter) Unwrap() http.ResponseWriter { return t.ResponseWriter }

func isMutating(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	default:
		return true
	}
}

// validCSRF checks the X-CSRF-Token header. A request presenting a session
// must carry the token derived from that session; one without a session
// falls back to matching the cookie issued by /v1/csrf.
func (g *Gate) validCSRF(r *http.Request) bool {
	supplied := r.Header.Get(CSRFHeader)
	if sid := g.sessionCredential(r); sid != "" {
		return g.Policy.ValidateCSRFToken(supplied, g.Policy.SessionCSRFToken(sid))
	}

	cookie, err := r.Cookie(CSRFCookie)
	if err != nil {
		return false
	}
	return g.Policy.ValidateCSRFToken(supplied, cookie.Value)
}

// sessionCredential returns the raw session id the request presents: the
// session cookie, or failing that the "sid" of a valid bearer token.
func (g *Gate) sessionCredential(r *http.Request) string {
	if c, err := r.Cookie(SessionCookie); err == nil {
		return c.Value
	}
	tok, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !found {
		return ""
	}
	payload, err := g.Policy.VerifyToken(strings.TrimSpace(tok))
	if err != nil {
		slogx.FromContext(r.Context()).Debug("ignoring invalid bearer token", "err", err)
		return ""
	}
	sid, _ := payload["sid"].(string)
	return sid
}

// sanitizeBody rewrites a JSON body with every string leaf sanitised. Other
// content types, and JSON that does not parse, are left for the handler.
func sanitizeBody(w http.ResponseWriter, r *http.Request) error {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mt != "application/json" {
		return nil
	}

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, httpx.MaxBodyBytes))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return errx.Validation("Request body too large")
		}
		return errx.Validation("Unable to read request body").WithCause(err)
	}

	out := raw
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err == nil {
		if clean, err := json.Marshal(security.SanitizeValue(v)); err == nil {
			out = clean
		}
	}

	r.Body = io.NopCloser(bytes.NewReader(out))
	r.ContentLength = int64(len(out))
	return nil
}

// resolveSession reads the session cookie, or failing that a bearer token
// naming a session. A missing or dead session is not an error here.
func (g *Gate) resolveSession(r *http.Request) (domain.Session, bool, error) {
	id := g.sessionCredential(r)
	if id == "" {
		return domain.Session{}, false, nil
	}

	sess, err := g.Auth.GetSession(r.Context(), id)
	if errors.Is(err, service.ErrSessionInvalid) {
		return domain.Session{}, false, nil
	}
	if err != nil {
		return domain.Session{}, false, err
	}
	return sess, true, nil
}

// allowSensitive enforces the whitelist and two-factor checks. It writes
// the rejection itself and reports whether the request may continue.
func (g *Gate) allowSensitive(w http.ResponseWriter, r *http.Request, userID, ip string) bool {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	decision, err := g.Auth.ValidateLogin(ctx, userID, ip, r.UserAgent())
	if err != nil {
		g.writeError(w, r, err)
		return false
	}
	if !decision.Valid {
		log.Warn("sensitive route denied", "user_id", userID, "reason", decision.Reason)
		httpx.WriteJSON(w, http.StatusForbidden, map[string]string{
			"error":   "Access denied",
			"message": decision.Reason,
		})
		return false
	}
	if !decision.RequiresTwoFactor {
		return true
	}

	token := strings.TrimSpace(r.Header.Get(TwoFactorHeader))
	if token == "" {
		httpx.WriteJSON(w, http.StatusForbidden, map[string]string{"error": "2FA required"})
		return false
	}

	valid, err := g.Auth.VerifyTwoFactor(ctx, userID, token)
	if err != nil && !errors.Is(err, service.ErrTwoFactorNotSetUp) {
		g.writeError(w, r, err)
		return false
	}
	if !valid {
		log.Warn("invalid two-factor token on sensitive route", "user_id", userID)
		httpx.WriteJSON(w, http.StatusForbidden, map[string]string{"error": "Invalid 2FA token"})
		return false
	}
	return true
}

func (g *Gate) writeError(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, g.Audit, err)
}

// writeError classifies err, records it in the audit trail when it
// warrants it and renders the public body.
func writeError(w http.ResponseWriter, r *http.Request, audit *service.AuditLogger, err error) {
	e := errx.Classify(err, httpx.RequestContext(r))
	if audit != nil {
		audit.RecordError(r.Context(), e)
	}
	httpx.WriteError(w, r, e)
}
