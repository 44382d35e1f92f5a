// Package service implements the stateful half of the gate: sessions,
// failed-login lockout, two-factor enrolment, IP whitelists, the
// suspicious-activity check and the audit trail.
package service

import (
	"errors"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/gate/kv"
	"github.com/aussiebroadwan/gatekeeper/internal/gate/security"
	"github.com/aussiebroadwan/gatekeeper/internal/gate/store"
)

// AuthState owns every per-user security record. Nothing outside it writes
// sessions, lock state, two-factor state or whitelist entries.
type AuthState struct {
	Store    store.Store
	Counters kv.Counters
	Policy   *security.Policy
	Audit    *AuditLogger
	Config   Config

	// Now is the service clock. Defaults to time.Now.
	Now func() time.Time
}

func NewAuthState(st store.Store, counters kv.Counters, policy *security.Policy, audit *AuditLogger, cfg Config) (*AuthState, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if st == nil || counters == nil || policy == nil || audit == nil {
		return nil, errors.New("service: auth state requires a store, counters, policy and audit logger")
	}

	return &AuthState{
		Store:    st,
		Counters: counters,
		Policy:   policy,
		Audit:    audit,
		Config:   cfg,
		Now:      time.Now,
	}, nil
}

func (s *AuthState) now() time.Time { return s.Now().UTC() }
