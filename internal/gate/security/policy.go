// Package security holds the stateless request-time policy: password rules,
// password hashing, signed tokens, CSRF tokens, input sanitising and the
// response security headers.
package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/gatekeeper/pkg/jwtx"
)

var ErrInvalidConfig = errors.New("security: invalid config")

// Config is read once at startup and never mutated.
type Config struct {
	PasswordMinLength      int
	PasswordRequireSpecial bool
	PasswordRequireDigit   bool
	PasswordRequireUpper   bool

	// TokenSecret signs HS256 tokens and must be at least 32 bytes.
	TokenSecret string
	TokenTTL    time.Duration
	Issuer      string
}

// Validate rejects a config with any protection missing. A zero value is
// treated as absent rather than as "disabled".
func (c Config) Validate() error {
	var errs []error
	if c.PasswordMinLength <= 0 {
		errs = append(errs, errors.New("password min length must be positive"))
	}
	if c.TokenSecret == "" {
		errs = append(errs, errors.New("token secret is required"))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("token ttl must be positive"))
	}
	if c.Issuer == "" {
		errs = append(errs, errors.New("issuer is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// Policy is safe for concurrent use.
type Policy struct {
	cfg    Config
	signer *jwtx.HS256

	// Now is the token clock. Defaults to time.Now.
	Now func() time.Time
}

func New(cfg Config) (*Policy, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	signer, err := jwtx.NewHS256([]byte(cfg.TokenSecret), cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	p := &Policy{cfg: cfg, signer: signer, Now: time.Now}
	signer.Now = func() time.Time { return p.Now() }
	return p, nil
}

func (p *Policy) Config() Config { return p.cfg }
