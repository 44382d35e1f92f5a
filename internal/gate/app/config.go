package app

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/gate/ratelimit"
	"github.com/aussiebroadwan/gatekeeper/internal/gate/security"
	"github.com/aussiebroadwan/gatekeeper/internal/gate/service"
	"github.com/aussiebroadwan/gatekeeper/pkg/httpx"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Env                  string        `env:"ENV"                   envDefault:"dev"`  // dev, staging, prod
	LogLevel             string        `env:"LOG_LEVEL"             envDefault:"info"` // debug, info, warn, error
	LogFormat            string        `env:"LOG_FORMAT"            envDefault:"json"` // json, text
	Port                 int           `env:"PORT"                  envDefault:"8080"`
	ShutdownGracePeriod  time.Duration `env:"SHUTDOWN_GRACE_PERIOD" envDefault:"10s"`
	HousekeepingInterval time.Duration `env:"HOUSEKEEPING_INTERVAL" envDefault:"1h"`

	// Storage
	DatabaseDriver string `env:"GATE_DATABASE_DRIVER" envDefault:"sqlite"` // sqlite, postgres
	DatabaseURL    string `env:"GATE_DATABASE_URL"    envDefault:"gatekeeper.db"`
	RedisURL       string `env:"GATE_REDIS_URL"` // empty keeps counters in process
	RedisPrefix    string `env:"GATE_REDIS_PREFIX"    envDefault:"gate:"`

	// HTTP surface
	RoutePolicyFile string       `env:"GATE_ROUTE_POLICY_FILE"` // optional YAML
	CookieSecure    bool         `env:"GATE_COOKIE_SECURE"      envDefault:"true"`
	CookieSameSite  string       `env:"GATE_COOKIE_SAMESITE"    envDefault:"strict"` // strict, lax, none
	RateLimit       RateLimitEnv `envPrefix:"GATE_RATE_LIMIT_"`
	StrictLimit     RateLimitEnv `envPrefix:"GATE_STRICT_LIMIT_"`

	// Peers allowed to set X-Forwarded-For / X-Real-IP, as CIDRs or
	// addresses. Empty keys every request by its socket peer.
	TrustedProxies []string `env:"GATE_TRUSTED_PROXIES" envSeparator:","`

	Security SecurityEnv `envPrefix:"GATE_"`
	Policy   PolicyEnv   `envPrefix:"GATE_"`
	Payments PaymentsEnv `envPrefix:"GATE_"`
	Audit    AuditEnv    `envPrefix:"GATE_"`
}

type RateLimitEnv struct {
	MaxRequests int           `env:"MAX_REQUESTS"`
	Window      time.Duration `env:"WINDOW"`
}

type SecurityEnv struct {
	PasswordMinLength      int           `env:"PASSWORD_MIN_LENGTH"      envDefault:"8"`
	PasswordRequireSpecial bool          `env:"PASSWORD_REQUIRE_SPECIAL" envDefault:"true"`
	PasswordRequireDigit   bool          `env:"PASSWORD_REQUIRE_DIGIT"   envDefault:"true"`
	PasswordRequireUpper   bool          `env:"PASSWORD_REQUIRE_UPPER"   envDefault:"true"`
	TokenSecret            string        `env:"TOKEN_SECRET"` // generated per process in dev when empty
	TokenTTL               time.Duration `env:"TOKEN_TTL"                envDefault:"1h"`
	Issuer                 string        `env:"ISSUER"                   envDefault:"gatekeeper"`
}

type PolicyEnv struct {
	SessionTimeout      time.Duration `env:"SESSION_TIMEOUT"       envDefault:"24h"`
	MaxLoginAttempts    int           `env:"MAX_LOGIN_ATTEMPTS"    envDefault:"5"`
	LockoutDuration     time.Duration `env:"LOCKOUT_DURATION"      envDefault:"15m"`
	TwoFactorIssuer     string        `env:"TWO_FACTOR_ISSUER"     envDefault:"Gatekeeper"`
	TwoFactorGraceDays  int           `env:"TWO_FACTOR_GRACE_DAYS" envDefault:"7"`
	MaxWhitelistEntries int           `env:"MAX_WHITELIST_ENTRIES" envDefault:"10"`
	WhitelistEnabled    bool          `env:"WHITELIST_ENABLED"     envDefault:"true"`
	MaxUsersPerIP       int           `env:"MAX_USERS_PER_IP"      envDefault:"5"`
	IPHistoryTTL        time.Duration `env:"IP_HISTORY_TTL"        envDefault:"1h"`
}

type PaymentsEnv struct {
	MaxPaymentAmount int64 `env:"MAX_PAYMENT_AMOUNT" envDefault:"1000000"` // minor units
	MaxDailyPayments int   `env:"MAX_DAILY_PAYMENTS" envDefault:"10"`
	SuspiciousAmount int64 `env:"SUSPICIOUS_AMOUNT"  envDefault:"100000"` // minor units
}

type AuditEnv struct {
	ErrorSampleRate       float64       `env:"ERROR_SAMPLE_RATE"       envDefault:"0.1"`
	LoginAttemptRetention time.Duration `env:"LOGIN_ATTEMPT_RETENTION" envDefault:"720h"`
}

// LoadConfig reads an optional .env file and then the environment.
func LoadConfig() (Config, error) {
	// A missing .env is the normal case outside development.
	_ = godotenv.Load()

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}

	if cfg.RateLimit.MaxRequests == 0 {
		cfg.RateLimit.MaxRequests = 100
	}
	if cfg.RateLimit.Window == 0 {
		cfg.RateLimit.Window = 15 * time.Minute
	}
	if cfg.StrictLimit.MaxRequests == 0 {
		cfg.StrictLimit.MaxRequests = 5
	}
	if cfg.StrictLimit.Window == 0 {
		cfg.StrictLimit.Window = 15 * time.Minute
	}

	return cfg, nil
}

// Validate checks the settings that are not owned by a component config.
// Component configs validate themselves when their component is built.
func (c Config) Validate() error {
	var errs []error

	switch c.DatabaseDriver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("unknown database driver %q", c.DatabaseDriver))
	}
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("database url is required"))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if _, err := parseSameSite(c.CookieSameSite); err != nil {
		errs = append(errs, err)
	}
	if _, err := httpx.ParseProxyTrust(c.TrustedProxies); err != nil {
		errs = append(errs, err)
	}
	if c.Security.TokenSecret == "" && c.Env != "dev" {
		errs = append(errs, errors.New("GATE_TOKEN_SECRET is required outside dev"))
	}

	return errors.Join(errs...)
}

func (c Config) SecurityConfig() security.Config {
	return security.Config{
		PasswordMinLength:      c.Security.PasswordMinLength,
		PasswordRequireSpecial: c.Security.PasswordRequireSpecial,
		PasswordRequireDigit:   c.Security.PasswordRequireDigit,
		PasswordRequireUpper:   c.Security.PasswordRequireUpper,
		TokenSecret:            c.Security.TokenSecret,
		TokenTTL:               c.Security.TokenTTL,
		Issuer:                 c.Security.Issuer,
	}
}

func (c Config) ServiceConfig() service.Config {
	return service.Config{
		SessionTimeout:        c.Policy.SessionTimeout,
		MaxLoginAttempts:      c.Policy.MaxLoginAttempts,
		LockoutDuration:       c.Policy.LockoutDuration,
		TwoFactorIssuer:       c.Policy.TwoFactorIssuer,
		TwoFactorGraceDays:    c.Policy.TwoFactorGraceDays,
		MaxWhitelistEntries:   c.Policy.MaxWhitelistEntries,
		WhitelistEnabled:      c.Policy.WhitelistEnabled,
		MaxPaymentAmount:      c.Payments.MaxPaymentAmount,
		MaxDailyPayments:      c.Payments.MaxDailyPayments,
		SuspiciousAmount:      c.Payments.SuspiciousAmount,
		MaxUsersPerIP:         c.Policy.MaxUsersPerIP,
		IPHistoryTTL:          c.Policy.IPHistoryTTL,
		LoginAttemptRetention: c.Audit.LoginAttemptRetention,
		ErrorSampleRate:       c.Audit.ErrorSampleRate,
	}
}

func (c Config) RateLimitConfig() ratelimit.Config {
	return ratelimit.Config{MaxRequests: c.RateLimit.MaxRequests, Window: c.RateLimit.Window}
}

func (c Config) StrictLimitConfig() ratelimit.Config {
	return ratelimit.Config{MaxRequests: c.StrictLimit.MaxRequests, Window: c.StrictLimit.Window}
}

func parseSameSite(s string) (http.SameSite, error) {
	switch strings.ToLower(s) {
	case "strict":
		return http.SameSiteStrictMode, nil
	case "lax":
		return http.SameSiteLaxMode, nil
	case "none":
		return http.SameSiteNoneMode, nil
	default:
		return 0, fmt.Errorf("unknown cookie SameSite mode %q", s)
	}
}
