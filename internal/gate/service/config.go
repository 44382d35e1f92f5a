package service

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidConfig = errors.New("service: invalid config")

// Config is the security policy enforced by the services. It is built once
// at startup and never mutated.
type Config struct {
	SessionTimeout time.Duration

	MaxLoginAttempts int
	LockoutDuration  time.Duration

	TwoFactorIssuer     string
	TwoFactorGraceDays  int
	MaxWhitelistEntries int
	WhitelistEnabled    bool

	MaxPaymentAmount int64 // minor units
	MaxDailyPayments int
	SuspiciousAmount int64 // minor units

	// MaxUsersPerIP is how many distinct users one IP may be seen with
	// inside IPHistoryTTL before it is treated as suspicious.
	MaxUsersPerIP int
	IPHistoryTTL  time.Duration

	LoginAttemptRetention time.Duration

	// ErrorSampleRate is the fraction of low and medium severity
	// operational errors persisted to the audit log. Security and critical
	// errors are always persisted.
	ErrorSampleRate float64
}

// Validate fails on any absent knob so a missing setting can never switch a
// protection off.
func (c Config) Validate() error {
	var errs []error
	positive := func(name string, ok bool) {
		if !ok {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}

	positive("session timeout", c.SessionTimeout > 0)
	positive("max login attempts", c.MaxLoginAttempts > 0)
	positive("lockout duration", c.LockoutDuration > 0)
	positive("two-factor grace days", c.TwoFactorGraceDays > 0)
	positive("max whitelist entries", c.MaxWhitelistEntries > 0)
	positive("max payment amount", c.MaxPaymentAmount > 0)
	positive("max daily payments", c.MaxDailyPayments > 0)
	positive("suspicious amount", c.SuspiciousAmount > 0)
	positive("max users per ip", c.MaxUsersPerIP > 0)
	positive("ip history ttl", c.IPHistoryTTL > 0)
	positive("login attempt retention", c.LoginAttemptRetention > 0)

	if c.TwoFactorIssuer == "" {
		errs = append(errs, errors.New("two-factor issuer is required"))
	}
	if c.ErrorSampleRate < 0 || c.ErrorSampleRate > 1 {
		errs = append(errs, errors.New("error sample rate must be within [0, 1]"))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// TwoFactorGracePeriod is TwoFactorGraceDays as a duration.
func (c Config) TwoFactorGracePeriod() time.Duration {
	return time.Duration(c.TwoFactorGraceDays) * 24 * time.Hour
}
