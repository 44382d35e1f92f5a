package service

import (
	"errors"

	"github.com/aussiebroadwan/gatekeeper/pkg/errx"
)

// Sentinels carried as the cause of the typed errors below so callers can
// match with errors.Is.
var (
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrAccountLocked         = errors.New("account locked")
	ErrSessionInvalid        = errors.New("session invalid or expired")
	ErrTwoFactorRequired     = errors.New("two-factor token required")
	ErrTwoFactorNotSetUp     = errors.New("two-factor not set up")
	ErrTwoFactorEnabled      = errors.New("two-factor already enabled")
	ErrInvalidTwoFactorToken = errors.New("invalid two-factor token")
	ErrWhitelistLimit        = errors.New("ip whitelist limit reached")
	ErrInvalidIP             = errors.New("invalid ip address")
	ErrSuspiciousActivity    = errors.New("suspicious activity")
)

func invalidCredentials() *errx.Error {
	return errx.Authentication("Invalid credentials").WithCause(ErrInvalidCredentials)
}

func accountLocked() *errx.Error {
	return errx.Authentication("Account is temporarily locked", "Wait for the lockout to expire", "Contact support").
		WithCause(ErrAccountLocked)
}

func twoFactorNotSetUp() *errx.Error {
	return errx.Security("Two-factor authentication is not set up").WithCause(ErrTwoFactorNotSetUp)
}

func invalidTwoFactorToken() *errx.Error {
	return errx.Authentication("Invalid 2FA token").WithCause(ErrInvalidTwoFactorToken)
}
