package service_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/gate/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/gate/kv"
	"github.com/aussiebroadwan/gatekeeper/internal/gate/security"
	"github.com/aussiebroadwan/gatekeeper/internal/gate/service"
	"github.com/aussiebroadwan/gatekeeper/internal/gate/store/drivers/sqlite"
	"github.com/aussiebroadwan/gatekeeper/pkg/cryptox"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
	"github.com/stretchr/testify/require"
)

const testPassword = "StrongP@ss123"

var client = domain.ClientContext{IPAddress: "203.0.113.7", UserAgent: "go-test"}

type clock struct{ t time.Time }

func (c *clock) Now() time.Time          { return c.t }
func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func testConfig() service.Config {
	return service.Config{
		SessionTimeout:        time.Hour,
		MaxLoginAttempts:      3,
		LockoutDuration:       15 * time.Minute,
		TwoFactorIssuer:       "Gatekeeper",
		TwoFactorGraceDays:    7,
		MaxWhitelistEntries:   5,
		WhitelistEnabled:      true,
		MaxPaymentAmount:      1_000_000,
		MaxDailyPayments:      3,
		SuspiciousAmount:      50_000,
		MaxUsersPerIP:         5,
		IPHistoryTTL:          time.Hour,
		LoginAttemptRetention: 30 * 24 * time.Hour,
		ErrorSampleRate:       0,
	}
}

type fixture struct {
	store    *sqlite.Store
	counters *kv.Memory
	clock    *clock
	audit    *service.AuditLogger
	auth     *service.AuthState
}

func newFixture(t *testing.T, mutate ...func(*service.Config)) *fixture {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	cfg := testConfig()
	for _, m := range mutate {
		m(&cfg)
	}

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

	audit := service.NewAuditLogger(st.SecurityLogs(), cfg.ErrorSampleRate)
	audit.Now = c.Now

	auth, err := service.NewAuthState(st, counters, policy, audit, cfg)
	require.NoError(t, err)
	auth.Now = c.Now

	return &fixture{store: st, counters: counters, clock: c, audit: audit, auth: auth}
}

func (f *fixture) register(t *testing.T, userID string) {
	t.Helper()
	require.NoError(t, f.auth.Register(context.Background(), userID, testPassword))
}

// eventTypes returns the user's audit events, oldest first.
func (f *fixture) eventTypes(t *testing.T, userID string) []string {
	t.Helper()

	logs, err := f.store.SecurityLogs().ListLogsByUser(context.Background(), userID, 100)
	require.NoError(t, err)

	out := make([]string, 0, len(logs))
	for i := len(logs) - 1; i >= 0; i-- {
		out = append(out, logs[i].EventType)
	}
	return out
}

func (f *fixture) code(t *testing.T, secret string) string {
	t.Helper()
	code, err := service.GenerateTwoFactorCode(secret, f.clock.Now())
	require.NoError(t, err)
	return code
}

func testLogger() *slog.Logger { return slogx.Discard() }

func fingerprint(id string) string { return cryptox.FingerprintToken(id) }
