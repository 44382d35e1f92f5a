package service

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"strings"

	"github.com/aussiebroadwan/gatekeeper/internal/gate/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/gate/store"
	"github.com/aussiebroadwan/gatekeeper/pkg/errx"
	"github.com/aussiebroadwan/gatekeeper/pkg/idx"
)

const reasonIPNotWhitelisted = "IP not whitelisted"

// normalizeIP returns the canonical text form so "::ffff:10.0.0.1" and
// "10.0.0.1" are the same entry.
func normalizeIP(raw string) (string, bool) {
	addr, err := netip.ParseAddr(strings.TrimSpace(raw))
	if err != nil {
		return "", false
	}
	return addr.Unmap().String(), true
}

// AddIPToWhitelist adds ip for userID. Once the user holds
// MaxWhitelistEntries entries further adds fail; nothing is evicted.
func (s *AuthState) AddIPToWhitelist(ctx context.Context, userID, ip, description string, cc domain.ClientContext) (domain.WhitelistEntry, error) {
	addr, ok := normalizeIP(ip)
	if !ok {
		return domain.WhitelistEntry{}, errx.Validation("Invalid IP address").WithCause(ErrInvalidIP)
	}

	now := s.now()
	entry := domain.WhitelistEntry{
		ID:          idx.NewAt(now).String(),
		UserID:      userID,
		IPAddress:   addr,
		Description: description,
		CreatedAt:   now,
	}

	// The user row lock serialises concurrent adds so the count below
	// cannot go stale before the insert.
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.SecurityRecords().LockUser(ctx, userID); err != nil {
			return fmt.Errorf("lock user: %w", err)
		}
		n, err := tx.Whitelist().CountEntries(ctx, userID)
		if err != nil {
			return err
		}
		if n >= s.Config.MaxWhitelistEntries {
			return errx.Security("IP whitelist limit reached", "Remove an existing entry first").
				WithCause(ErrWhitelistLimit)
		}
		return tx.Whitelist().AddEntry(ctx, entry)
	})
	if errors.Is(err, store.ErrAlreadyExists) {
		return domain.WhitelistEntry{}, errx.Validation("IP address is already whitelisted").
			WithCode(errx.CodeDuplicate).WithCause(err)
	}
	if err != nil {
		return domain.WhitelistEntry{}, err
	}

	s.Audit.Log(ctx, SecurityEvent{
		UserID:  userID,
		Type:    domain.EventWhitelistAdd,
		Details: map[string]any{"ip": addr, "description": description},
		Client:  cc,
	})
	return entry, nil
}

func (s *AuthState) RemoveIPFromWhitelist(ctx context.Context, userID, ip string, cc domain.ClientContext) error {
	addr, ok := normalizeIP(ip)
	if !ok {
		return errx.Validation("Invalid IP address").WithCause(ErrInvalidIP)
	}

	err := s.Store.Whitelist().RemoveEntry(ctx, userID, addr)
	if errors.Is(err, store.ErrNotFound) {
		return errx.Validation("IP address is not whitelisted").WithCause(err)
	}
	if err != nil {
		return fmt.Errorf("remove whitelist entry: %w", err)
	}

	s.Audit.Log(ctx, SecurityEvent{
		UserID:  userID,
		Type:    domain.EventWhitelistDel,
		Details: map[string]any{"ip": addr},
		Client:  cc,
	})
	return nil
}

// IsIPWhitelisted is always true when the whitelist feature is off. With it
// on, a user without entries is not whitelisted anywhere.
func (s *AuthState) IsIPWhitelisted(ctx context.Context, userID, ip string) (bool, error) {
	if !s.Config.WhitelistEnabled {
		return true, nil
	}
	addr, ok := normalizeIP(ip)
	if !ok {
		return false, nil
	}
	return s.Store.Whitelist().HasEntry(ctx, userID, addr)
}

func (s *AuthState) GetWhitelistedIPs(ctx context.Context, userID string) ([]domain.WhitelistEntry, error) {
	return s.Store.Whitelist().ListEntries(ctx, userID)
}

// ValidateLogin decides whether userID may act from ip. The whitelist is
// checked first; a failure there returns before two-factor state is read.
func (s *AuthState) ValidateLogin(ctx context.Context, userID, ip, userAgent string) (domain.LoginDecision, error) {
	ok, err := s.IsIPWhitelisted(ctx, userID, ip)
	if err != nil {
		return domain.LoginDecision{}, fmt.Errorf("check whitelist: %w", err)
	}
	if !ok {
		return domain.LoginDecision{Valid: false, Reason: reasonIPNotWhitelisted}, nil
	}

	required, err := s.IsTwoFactorRequired(ctx, userID)
	if err != nil {
		return domain.LoginDecision{}, err
	}
	return domain.LoginDecision{Valid: true, RequiresTwoFactor: required}, nil
}
