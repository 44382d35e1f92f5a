package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/gate/domain"
	gatehttp "github.com/aussiebroadwan/gatekeeper/internal/gate/http"
	"github.com/aussiebroadwan/gatekeeper/internal/gate/kv"
	"github.com/aussiebroadwan/gatekeeper/internal/gate/ratelimit"
	"github.com/aussiebroadwan/gatekeeper/internal/gate/security"
	"github.com/aussiebroadwan/gatekeeper/internal/gate/service"
	"github.com/aussiebroadwan/gatekeeper/internal/gate/store/drivers/sqlite"
	"github.com/aussiebroadwan/gatekeeper/pkg/gatesdk"
	"github.com/aussiebroadwan/gatekeeper/pkg/httpx"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
	"github.com/stretchr/testify/require"
)

const (
	testPassword = "StrongP@ss123"
	testIP       = "203.0.113.7"
)

type clock struct{ t time.Time }

func (c *clock) Now() time.Time          { return c.t }
func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type harness struct {
	t      *testing.T
	router *gatehttp.Router
	auth   *service.AuthState
	store  *sqlite.Store
	clock  *clock

	ip      string
	csrf    string
	session string
}

type harnessOpts struct {
	rate    ratelimit.Config
	proxies []string
}

func newHarness(t *testing.T, opts ...func(*harnessOpts)) *harness {
	t.Helper()

	o := harnessOpts{rate: ratelimit.Config{MaxRequests: 1000, Window: time.Minute}}
	for _, fn := range opts {
		fn(&o)
	}

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	policy, err := security.New(security.Config{
		PasswordMinLength:      8,
		PasswordRequireSpecial: true,
		PasswordRequireDigit:   true,
		PasswordRequireUpper:   true,
		TokenSecret:            "0123456789abcdef0123456789abcdef",
		TokenTTL:               time.Hour,
		Issuer:                 "gatekeeper-test",
	})
	require.NoError(t, err)

	c := &clock{t: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)}
	counters := kv.NewMemory()
	counters.Now = c.Now

	cfg := service.Config{
		SessionTimeout:        time.Hour,
		MaxLoginAttempts:      3,
		LockoutDuration:       15 * time.Minute,
		TwoFactorIssuer:       "Gatekeeper",
		TwoFactorGraceDays:    7,
		MaxWhitelistEntries:   5,
		WhitelistEnabled:      true,
		MaxPaymentAmount:      1_000_000,
		MaxDailyPayments:      10,
		SuspiciousAmount:      50_000,
		MaxUsersPerIP:         5,
		IPHistoryTTL:          time.Hour,
		LoginAttemptRetention: 24 * time.Hour,
	}

	audit := service.NewAuditLogger(st.SecurityLogs(), 0)
	audit.Now = c.Now

	auth, err := service.NewAuthState(st, counters, policy, audit, cfg)
	require.NoError(t, err)
	auth.Now = c.Now

	risk := &service.RiskService{Payments: st.Payments(), Counters: counters, Audit: audit, Config: cfg}
	payments := service.NewPaymentService(st, risk, nil, audit, cfg)
	payments.Now = c.Now

	limiter, err := ratelimit.New(o.rate, nil)
	require.NoError(t, err)
	limiter.Now = c.Now

	proxies, err := httpx.ParseProxyTrust(o.proxies)
	require.NoError(t, err)

	gate := &gatehttp.Gate{
		Policy:  policy,
		Auth:    auth,
		Limiter: limiter,
		Audit:   audit,
		Routes:  gatehttp.DefaultRoutePolicy(),
		Proxies: proxies,
	}

	r := gatehttp.NewRouter(gate, st, counters, "test", slogx.Discard())
	r.Policy = policy
	r.Auth = auth
	r.Payments = payments
	r.Audit = audit
	r.Cookies = gatehttp.CookieConfig{Secure: false, SameSite: http.SameSiteStrictMode}
	r.ApplyRoutes()

	return &harness{t: t, router: r, auth: auth, store: st, clock: c, ip: testIP}
}

// do sends a request carrying whatever CSRF and session state the harness
// holds.
func (h *harness) do(method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	h.t.Helper()

	var rdr io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			rdr = bytes.NewBufferString(b)
		default:
			buf, err := json.Marshal(b)
			require.NoError(h.t, err)
			rdr = bytes.NewReader(buf)
		}
	}

	req := httptest.NewRequest(method, path, rdr)
	req.RemoteAddr = h.ip + ":52100"
	req.Header.Set("User-Agent", "go-test")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if h.csrf != "" {
		req.AddCookie(&http.Cookie{Name: gatehttp.CSRFCookie, Value: h.csrf})
		req.Header.Set(gatehttp.CSRFHeader, h.csrf)
	}
	if h.session != "" {
		req.AddCookie(&http.Cookie{Name: gatehttp.SessionCookie, Value: h.session})
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func (h *harness) fetchCSRF() {
	h.t.Helper()

	rec := h.do(http.MethodGet, "/v1/csrf", nil)
	require.Equal(h.t, http.StatusOK, rec.Code)

	var out gatesdk.CSRFResponse
	decode(h.t, rec, &out)
	require.NotEmpty(h.t, out.Token)
	h.csrf = out.Token
}

// signIn registers userID, logs in and keeps the session cookie.
func (h *harness) signIn(userID string) gatesdk.LoginResponse {
	h.t.Helper()

	rec := h.do(http.MethodPost, "/v1/accounts", gatesdk.RegisterRequest{UserID: userID, Password: testPassword})
	require.Equal(h.t, http.StatusCreated, rec.Code, rec.Body.String())

	if h.csrf == "" {
		h.fetchCSRF()
	}
	rec = h.do(http.MethodPost, "/v1/auth/login", gatesdk.LoginRequest{UserID: userID, Password: testPassword})
	require.Equal(h.t, http.StatusOK, rec.Code, rec.Body.String())

	for _, c := range rec.Result().Cookies() {
		if c.Name == gatehttp.SessionCookie {
			h.session = c.Value
		}
	}
	require.NotEmpty(h.t, h.session)

	var out gatesdk.LoginResponse
	decode(h.t, rec, &out)
	require.NotEmpty(h.t, out.CSRFToken)
	h.csrf = out.CSRFToken
	return out
}

func (h *harness) whitelist(userID, ip string) {
	h.t.Helper()
	_, err := h.auth.AddIPToWhitelist(context.Background(), userID, ip, "test", domain.ClientContext{IPAddress: ip})
	require.NoError(h.t, err)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) gatesdk.ErrorResponse {
	t.Helper()
	var out gatesdk.ErrorResponse
	decode(t, rec, &out)
	return out
}

func requireSecurityHeaders(t *testing.T, rec *httptest.ResponseRecorder) {
	t.Helper()
	for k, v := range security.SecurityHeaders() {
		require.Equal(t, v, rec.Header().Get(k), k)
	}
}
